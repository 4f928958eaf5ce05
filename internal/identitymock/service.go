package identitymock

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/portal-auth/internal/auth"
	"github.com/spec-kit/portal-auth/internal/config"
	"github.com/spec-kit/portal-auth/internal/domain"
	"github.com/spec-kit/portal-auth/internal/observability"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrEmailTaken         = errors.New("email already registered")
	ErrAccountNotFound    = errors.New("account not found")
	ErrInvalidToken       = errors.New("token invalid or revoked")
	ErrResetTokenInvalid  = errors.New("reset token expired or used")
	ErrUnknownRole        = errors.New("unknown role")
	ErrWeakPassword       = errors.New("password must be at least 8 characters")
)

// Account is an operator known to the development identity service.
type Account struct {
	ID           string
	Name         string
	Email        string
	Role         domain.Role
	PasswordHash string
	CreatedAt    time.Time
}

type resetGrant struct {
	accountID string
	expiresAt time.Time
	used      bool
}

// Service coordinates registration, login and token lifecycle flows for local
// development. All state lives in memory.
type Service struct {
	tokens    *auth.TokenManager
	passwords *passwordHasher
	resetTTL  time.Duration
	logger    *zap.Logger
	now       func() time.Time

	mu      sync.RWMutex
	byEmail map[string]*Account
	byID    map[string]*Account
	revoked map[string]time.Time
	resets  map[string]*resetGrant
}

// NewService builds the service.
func NewService(cfg config.MockConfig, logger *zap.Logger) *Service {
	resetTTL := time.Duration(cfg.PasswordResetTTLMinutes) * time.Minute
	if resetTTL <= 0 {
		resetTTL = 30 * time.Minute
	}
	return &Service{
		tokens:    auth.NewTokenManager(cfg.JWTSecret, cfg.AccessTokenTTLMinutes),
		passwords: newPasswordHasher(cfg.BcryptCost),
		resetTTL:  resetTTL,
		logger:    observability.OrNop(logger),
		now:       time.Now,
		byEmail:   make(map[string]*Account),
		byID:      make(map[string]*Account),
		revoked:   make(map[string]time.Time),
		resets:    make(map[string]*resetGrant),
	}
}

// TokenManager exposes the signer, mostly for tests.
func (s *Service) TokenManager() *auth.TokenManager {
	return s.tokens
}

// Seed registers accounts from "email:role:password" entries separated by commas.
func (s *Service) Seed(ctx context.Context, entries string) error {
	for _, entry := range strings.Split(entries, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		parts := strings.SplitN(entry, ":", 3)
		if len(parts) != 3 {
			return fmt.Errorf("invalid seed entry %q", entry)
		}
		email, role, password := parts[0], domain.ParseRole(parts[1]), parts[2]
		name := strings.SplitN(email, "@", 2)[0]
		if _, err := s.Register(ctx, name, email, password, role); err != nil {
			return fmt.Errorf("seed %s: %w", email, err)
		}
	}
	return nil
}

// Register creates a new account. Role defaults to staff.
func (s *Service) Register(_ context.Context, name, email, password string, role domain.Role) (*Account, error) {
	email = normalizeEmail(email)
	if role == "" {
		role = domain.RoleStaff
	}
	if !role.Known() {
		return nil, ErrUnknownRole
	}
	hash, err := s.passwords.hash(password)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.byEmail[email]; exists {
		return nil, ErrEmailTaken
	}
	account := &Account{
		ID:           uuid.NewString(),
		Name:         strings.TrimSpace(name),
		Email:        email,
		Role:         role,
		PasswordHash: hash,
		CreatedAt:    s.now().UTC(),
	}
	s.byEmail[email] = account
	s.byID[account.ID] = account
	return copyAccount(account), nil
}

// Login authenticates an account and issues a role-bearing token.
func (s *Service) Login(_ context.Context, email, password string) (*Account, string, time.Time, error) {
	s.mu.RLock()
	account, ok := s.byEmail[normalizeEmail(email)]
	s.mu.RUnlock()
	hashed := ""
	if ok {
		hashed = account.PasswordHash
	}
	if err := s.passwords.verify(hashed, password); err != nil {
		return nil, "", time.Time{}, err
	}

	token, exp, err := s.tokens.GenerateTokenAt(account.ID, account.Role, s.now())
	if err != nil {
		return nil, "", time.Time{}, err
	}
	s.logger.Debug("issued token", zap.String("account_id", account.ID), zap.Time("expires_at", exp))
	return copyAccount(account), token, exp, nil
}

// Logout revokes the presented token.
func (s *Service) Logout(_ context.Context, token string) error {
	claims, _, err := s.verify(token)
	if err != nil {
		return err
	}
	s.revoke(claims)
	return nil
}

// Refresh revokes the presented token and issues a replacement.
func (s *Service) Refresh(_ context.Context, token string) (string, time.Time, error) {
	claims, account, err := s.verify(token)
	if err != nil {
		return "", time.Time{}, err
	}
	fresh, exp, err := s.tokens.GenerateTokenAt(account.ID, account.Role, s.now())
	if err != nil {
		return "", time.Time{}, err
	}
	s.revoke(claims)
	return fresh, exp, nil
}

// Validate returns the account behind a live token.
func (s *Service) Validate(_ context.Context, token string) (*Account, error) {
	_, account, err := s.verify(token)
	if err != nil {
		return nil, err
	}
	return account, nil
}

// RequestPasswordReset records a single-use reset grant for the account.
func (s *Service) RequestPasswordReset(_ context.Context, email string) (string, time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	account, ok := s.byEmail[normalizeEmail(email)]
	if !ok {
		return "", time.Time{}, ErrAccountNotFound
	}
	token := uuid.NewString()
	expiresAt := s.now().Add(s.resetTTL)
	s.resets[token] = &resetGrant{accountID: account.ID, expiresAt: expiresAt}
	return token, expiresAt, nil
}

// ResetPassword consumes a reset grant and replaces the password hash.
func (s *Service) ResetPassword(_ context.Context, token, newPassword string) error {
	hash, err := s.passwords.hash(newPassword)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	grant, ok := s.resets[token]
	if !ok || grant.used || s.now().After(grant.expiresAt) {
		return ErrResetTokenInvalid
	}
	account, ok := s.byID[grant.accountID]
	if !ok {
		return ErrAccountNotFound
	}
	account.PasswordHash = hash
	grant.used = true
	return nil
}

func (s *Service) verify(token string) (*auth.SignedClaims, *Account, error) {
	claims, err := s.tokens.ParseToken(token)
	if err != nil {
		return nil, nil, ErrInvalidToken
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, revoked := s.revoked[claims.ID]; revoked {
		return nil, nil, ErrInvalidToken
	}
	account, ok := s.byID[claims.Subject]
	if !ok {
		return nil, nil, ErrInvalidToken
	}
	return claims, copyAccount(account), nil
}

func (s *Service) revoke(claims *auth.SignedClaims) {
	var exp time.Time
	if claims.ExpiresAt != nil {
		exp = claims.ExpiresAt.Time
	}
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()
	for id, until := range s.revoked {
		if now.After(until) {
			delete(s.revoked, id)
		}
	}
	s.revoked[claims.ID] = exp
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func copyAccount(account *Account) *Account {
	cp := *account
	return &cp
}
