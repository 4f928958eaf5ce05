package repository

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"
)

// ErrEmptyToken is returned when saving a blank token.
var ErrEmptyToken = errors.New("token is empty")

// TokenRepository persists the single session token under a well-known key.
// Absence of a token means the process starts unauthenticated.
type TokenRepository interface {
	Load(ctx context.Context) (string, bool, error)
	Save(ctx context.Context, token string, expiresAt time.Time) error
	Erase(ctx context.Context) error
}

type memoryTokenRepository struct {
	mu    sync.RWMutex
	token string
}

// NewMemoryTokenRepository keeps the token in process memory only.
func NewMemoryTokenRepository() TokenRepository {
	return &memoryTokenRepository{}
}

func (r *memoryTokenRepository) Load(_ context.Context) (string, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.token, r.token != "", nil
}

func (r *memoryTokenRepository) Save(_ context.Context, token string, _ time.Time) error {
	if strings.TrimSpace(token) == "" {
		return ErrEmptyToken
	}
	r.mu.Lock()
	r.token = token
	r.mu.Unlock()
	return nil
}

func (r *memoryTokenRepository) Erase(_ context.Context) error {
	r.mu.Lock()
	r.token = ""
	r.mu.Unlock()
	return nil
}
