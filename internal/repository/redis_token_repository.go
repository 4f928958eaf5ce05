package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

const redisTokenPrefix = "portal:token:"

type redisTokenRepository struct {
	client *goredis.Client
	key    string
}

// NewRedisTokenRepository stores the token in redis, expiring with the credential.
func NewRedisTokenRepository(client *goredis.Client, key string) TokenRepository {
	return &redisTokenRepository{client: client, key: redisTokenPrefix + key}
}

func (r *redisTokenRepository) Load(ctx context.Context) (string, bool, error) {
	if r.client == nil {
		return "", false, fmt.Errorf("redis client is nil")
	}
	token, err := r.client.Get(ctx, r.key).Result()
	if err == goredis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("load redis token: %w", err)
	}
	return token, token != "", nil
}

func (r *redisTokenRepository) Save(ctx context.Context, token string, expiresAt time.Time) error {
	if r.client == nil {
		return fmt.Errorf("redis client is nil")
	}
	if strings.TrimSpace(token) == "" {
		return ErrEmptyToken
	}
	if err := r.client.Set(ctx, r.key, token, ttlFor(expiresAt)).Err(); err != nil {
		return fmt.Errorf("save redis token: %w", err)
	}
	return nil
}

func (r *redisTokenRepository) Erase(ctx context.Context) error {
	if r.client == nil {
		return fmt.Errorf("redis client is nil")
	}
	if err := r.client.Del(ctx, r.key).Err(); err != nil {
		return fmt.Errorf("erase redis token: %w", err)
	}
	return nil
}

// ttlFor keeps the key no longer than the credential; zero expiry means no TTL.
func ttlFor(expiresAt time.Time) time.Duration {
	if expiresAt.IsZero() {
		return 0
	}
	ttl := time.Until(expiresAt)
	if ttl <= 0 {
		return time.Second
	}
	return ttl
}
