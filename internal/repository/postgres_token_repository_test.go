package repository

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRow struct {
	value string
	err   error
}

func (r fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	*(dest[0].(*string)) = r.value
	return nil
}

// fakePool emulates the persisted_tokens table keyed by the first argument.
type fakePool struct {
	rows    map[string]string
	execErr error
	queries []string
}

func (p *fakePool) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	p.queries = append(p.queries, sql)
	if p.execErr != nil {
		return pgconn.CommandTag{}, p.execErr
	}
	key := args[0].(string)
	switch {
	case strings.Contains(sql, "INSERT INTO persisted_tokens"):
		p.rows[key] = args[1].(string)
	case strings.Contains(sql, "DELETE FROM persisted_tokens"):
		delete(p.rows, key)
	}
	return pgconn.CommandTag{}, nil
}

func (p *fakePool) QueryRow(_ context.Context, sql string, args ...any) pgx.Row {
	p.queries = append(p.queries, sql)
	value, ok := p.rows[args[0].(string)]
	if !ok {
		return fakeRow{err: pgx.ErrNoRows}
	}
	return fakeRow{value: value}
}

func TestPostgresTokenRepository(t *testing.T) {
	exerciseRepository(t, NewPostgresTokenRepository(&fakePool{rows: map[string]string{}}, "auth_token"))
}

func TestPostgresTokenRepositoryWrapsErrors(t *testing.T) {
	pool := &fakePool{rows: map[string]string{}, execErr: errors.New("connection reset")}
	repo := NewPostgresTokenRepository(pool, "auth_token")

	err := repo.Save(context.Background(), "a.b.c", time.Now())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "save postgres token")
	assert.Contains(t, repo.Erase(context.Background()).Error(), "connection reset")
}
