package repository

import (
	"database/sql"
	"fmt"

	goredis "github.com/redis/go-redis/v9"

	"github.com/spec-kit/portal-auth/internal/config"
)

// Handles carries the opened backends a token repository may be built on.
type Handles struct {
	SQLite   *sql.DB
	Redis    *goredis.Client
	Postgres PgQuerier
}

// NewTokenRepository selects the token repository for the configured driver.
func NewTokenRepository(cfg config.Config, handles Handles) (TokenRepository, error) {
	key := cfg.Session.TokenKey
	switch cfg.TokenStore.Driver {
	case config.DriverMemory:
		return NewMemoryTokenRepository(), nil
	case config.DriverSQLite:
		if handles.SQLite == nil {
			return nil, fmt.Errorf("token store sqlite: database not opened")
		}
		return NewSQLiteTokenRepository(handles.SQLite, key), nil
	case config.DriverRedis:
		if handles.Redis == nil {
			return nil, fmt.Errorf("token store redis: client not configured")
		}
		return NewRedisTokenRepository(handles.Redis, key), nil
	case config.DriverPostgres:
		if handles.Postgres == nil {
			return nil, fmt.Errorf("token store postgres: pool not configured")
		}
		return NewPostgresTokenRepository(handles.Postgres, key), nil
	default:
		return nil, fmt.Errorf("unknown token store driver %q", cfg.TokenStore.Driver)
	}
}
