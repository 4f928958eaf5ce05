package persistence

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/portal-auth/internal/config"
)

func TestNewSQLiteCreatesSchema(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "session.db")

	store, err := NewSQLite(context.Background(), config.SQLiteConfig{Path: path}, zap.NewNop())
	require.NoError(t, err)
	defer store.Close()

	var name string
	err = store.DB.QueryRow(`SELECT name FROM sqlite_master WHERE type='table' AND name='persisted_tokens'`).Scan(&name)
	require.NoError(t, err)
	assert.Equal(t, "persisted_tokens", name)
	assert.NoError(t, store.Ping(context.Background()))
}

func TestNilHandlesAreSafe(t *testing.T) {
	var pg *Postgres
	var rd *Redis
	var lite *SQLite

	assert.Nil(t, pg.PoolHandle())
	assert.Error(t, pg.Ping(context.Background()))
	assert.Error(t, rd.Ping(context.Background()))
	assert.Error(t, lite.Ping(context.Background()))
	pg.Close()
	rd.Close()
	lite.Close()
}

func TestNewPostgresRequiresDSN(t *testing.T) {
	_, err := NewPostgres(context.Background(), config.PostgresConfig{}, zap.NewNop())
	assert.Error(t, err)

	_, err = NewPostgres(context.Background(), config.PostgresConfig{DSN: "postgres://%zz"}, zap.NewNop())
	assert.Error(t, err)
}

func TestApplyPoolLimits(t *testing.T) {
	poolCfg, err := pgxpool.ParseConfig("postgres://portal@localhost:5432/portal")
	require.NoError(t, err)

	applyPoolLimits(poolCfg, config.PostgresConfig{MaxConns: 4, MinConns: 9, ConnMaxIdleSec: 30, ConnMaxLifeSec: 300})

	assert.Equal(t, int32(4), poolCfg.MaxConns)
	assert.NotEqual(t, int32(9), poolCfg.MinConns)
	assert.Equal(t, 30*time.Second, poolCfg.MaxConnIdleTime)
	assert.Equal(t, 5*time.Minute, poolCfg.MaxConnLifetime)
}

func TestNewRedis(t *testing.T) {
	mr := miniredis.RunT(t)

	rd, err := NewRedis(context.Background(), config.RedisConfig{Addr: mr.Addr()}, zap.NewNop())
	require.NoError(t, err)
	defer rd.Close()
	assert.NoError(t, rd.Ping(context.Background()))

	mr.Close()
	_, err = NewRedis(context.Background(), config.RedisConfig{Addr: mr.Addr()}, zap.NewNop())
	assert.Error(t, err)
}
