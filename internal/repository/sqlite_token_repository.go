package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

type sqliteTokenRepository struct {
	db  *sql.DB
	key string
}

// NewSQLiteTokenRepository stores the token in the local persisted_tokens table.
func NewSQLiteTokenRepository(db *sql.DB, key string) TokenRepository {
	return &sqliteTokenRepository{db: db, key: key}
}

func (r *sqliteTokenRepository) Load(ctx context.Context) (string, bool, error) {
	const query = `SELECT token FROM persisted_tokens WHERE key = ?`
	var token string
	if err := r.db.QueryRowContext(ctx, query, r.key).Scan(&token); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("load sqlite token: %w", err)
	}
	return token, token != "", nil
}

func (r *sqliteTokenRepository) Save(ctx context.Context, token string, expiresAt time.Time) error {
	if strings.TrimSpace(token) == "" {
		return ErrEmptyToken
	}
	const query = `
        INSERT INTO persisted_tokens (key, token, expires_at, updated_at)
        VALUES (?, ?, ?, ?)
        ON CONFLICT(key) DO UPDATE SET
            token = excluded.token,
            expires_at = excluded.expires_at,
            updated_at = excluded.updated_at`
	if _, err := r.db.ExecContext(ctx, query, r.key, token, unixOrZero(expiresAt), time.Now().Unix()); err != nil {
		return fmt.Errorf("save sqlite token: %w", err)
	}
	return nil
}

func (r *sqliteTokenRepository) Erase(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM persisted_tokens WHERE key = ?`, r.key); err != nil {
		return fmt.Errorf("erase sqlite token: %w", err)
	}
	return nil
}

func unixOrZero(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.Unix()
}
