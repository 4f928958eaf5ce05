package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// PgQuerier is the subset of *pgxpool.Pool the token repository uses.
type PgQuerier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type postgresTokenRepository struct {
	pool PgQuerier
	key  string
}

// NewPostgresTokenRepository stores the token in the persisted_tokens table.
func NewPostgresTokenRepository(pool PgQuerier, key string) TokenRepository {
	return &postgresTokenRepository{pool: pool, key: key}
}

func (r *postgresTokenRepository) Load(ctx context.Context) (string, bool, error) {
	const query = `SELECT token FROM persisted_tokens WHERE key=$1`
	var token string
	if err := r.pool.QueryRow(ctx, query, r.key).Scan(&token); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("load postgres token: %w", err)
	}
	return token, token != "", nil
}

func (r *postgresTokenRepository) Save(ctx context.Context, token string, expiresAt time.Time) error {
	if strings.TrimSpace(token) == "" {
		return ErrEmptyToken
	}
	const query = `
        INSERT INTO persisted_tokens (key, token, expires_at, updated_at)
        VALUES ($1,$2,$3,NOW())
        ON CONFLICT (key) DO UPDATE SET
            token=EXCLUDED.token,
            expires_at=EXCLUDED.expires_at,
            updated_at=NOW()`
	var expires *time.Time
	if !expiresAt.IsZero() {
		expires = &expiresAt
	}
	if _, err := r.pool.Exec(ctx, query, r.key, token, expires); err != nil {
		return fmt.Errorf("save postgres token: %w", err)
	}
	return nil
}

func (r *postgresTokenRepository) Erase(ctx context.Context) error {
	const query = `DELETE FROM persisted_tokens WHERE key=$1`
	if _, err := r.pool.Exec(ctx, query, r.key); err != nil {
		return fmt.Errorf("erase postgres token: %w", err)
	}
	return nil
}
