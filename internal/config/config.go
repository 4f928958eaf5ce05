package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config aggregates runtime configuration for the portal and the mock identity service.
type Config struct {
	App        AppConfig
	Logger     LoggerConfig
	Identity   IdentityConfig
	Session    SessionConfig
	TokenStore TokenStoreConfig
	SQLite     SQLiteConfig
	Postgres   PostgresConfig
	Redis      RedisConfig
	Mock       MockConfig
}

// AppConfig controls server level behavior.
type AppConfig struct {
	Name                  string
	Env                   string
	Host                  string
	Port                  string
	Version               string
	RequestTimeoutSeconds int
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level string
}

// IdentityConfig points at the remote identity service.
type IdentityConfig struct {
	BaseURL        string
	TimeoutSeconds int
}

// SessionConfig tunes the credential store, guard and expiry notifier.
type SessionConfig struct {
	TokenKey                string
	CheckIntervalSeconds    int
	WarningThresholdSeconds int
	LoginPath               string
	UnauthorizedPath        string
	ValidateOnStart         bool
}

// TokenStoreConfig selects where the token is persisted.
type TokenStoreConfig struct {
	Driver string
}

// SQLiteConfig holds the local durable store path.
type SQLiteConfig struct {
	Path string
}

// PostgresConfig holds DB connection values.
type PostgresConfig struct {
	DSN            string
	MaxConns       int32
	MinConns       int32
	RunMigrations  bool
	MigrationsDir  string
	ConnMaxIdleSec int32
	ConnMaxLifeSec int32
}

// RedisConfig holds Redis connection values.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// MockConfig drives the mock identity service used in development.
type MockConfig struct {
	Host                    string
	Port                    string
	JWTSecret               string
	AccessTokenTTLMinutes   int
	PasswordResetTTLMinutes int
	BcryptCost              int
	SeedUsers               string
}

// Token store drivers.
const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverRedis    = "redis"
	DriverPostgres = "postgres"
)

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	driver := strings.ToLower(getEnv("TOKEN_STORE", DriverSQLite))
	switch driver {
	case DriverMemory, DriverSQLite, DriverRedis, DriverPostgres:
	default:
		return nil, fmt.Errorf("invalid TOKEN_STORE %q", driver)
	}

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "staff-portal"),
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", "8080"),
			Version:               getEnv("APP_VERSION", "dev"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 30),
		},
		Logger: LoggerConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Identity: IdentityConfig{
			BaseURL:        getEnv("IDENTITY_BASE_URL", "http://127.0.0.1:8081"),
			TimeoutSeconds: getEnvAsInt("IDENTITY_TIMEOUT_SECONDS", 8),
		},
		Session: SessionConfig{
			TokenKey:                getEnv("SESSION_TOKEN_KEY", "auth_token"),
			CheckIntervalSeconds:    getEnvAsInt("SESSION_CHECK_INTERVAL_SECONDS", 60),
			WarningThresholdSeconds: getEnvAsInt("SESSION_WARNING_SECONDS", 300),
			LoginPath:               getEnv("SESSION_LOGIN_PATH", "/login"),
			UnauthorizedPath:        getEnv("SESSION_UNAUTHORIZED_PATH", "/unauthorized"),
			ValidateOnStart:         getEnvAsBool("SESSION_VALIDATE_ON_START", true),
		},
		TokenStore: TokenStoreConfig{
			Driver: driver,
		},
		SQLite: SQLiteConfig{
			Path: getEnv("SQLITE_PATH", ".portal/session.db"),
		},
		Postgres: PostgresConfig{
			DSN:            os.Getenv("POSTGRES_DSN"),
			MaxConns:       int32(getEnvAsInt("POSTGRES_MAX_CONNS", 4)),
			MinConns:       int32(getEnvAsInt("POSTGRES_MIN_CONNS", 1)),
			RunMigrations:  getEnvAsBool("POSTGRES_RUN_MIGRATIONS", true),
			MigrationsDir:  getEnv("POSTGRES_MIGRATIONS_DIR", "migrations"),
			ConnMaxIdleSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30)),
			ConnMaxLifeSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300)),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "127.0.0.1:6379"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       redisDB,
		},
		Mock: MockConfig{
			Host:                    getEnv("MOCK_HOST", "127.0.0.1"),
			Port:                    getEnv("MOCK_PORT", "8081"),
			JWTSecret:               getEnv("MOCK_JWT_SECRET", "dev-secret"),
			AccessTokenTTLMinutes:   getEnvAsInt("MOCK_ACCESS_TOKEN_TTL_MINUTES", 60),
			PasswordResetTTLMinutes: getEnvAsInt("MOCK_PASSWORD_RESET_TTL_MINUTES", 30),
			BcryptCost:              getEnvAsInt("MOCK_BCRYPT_COST", 10),
			SeedUsers:               getEnv("MOCK_SEED_USERS", "admin@example.com:admin:admin123,staff@example.com:staff:staff123"),
		},
	}

	if cfg.TokenStore.Driver == DriverPostgres && cfg.Postgres.DSN == "" {
		return nil, fmt.Errorf("TOKEN_STORE=postgres requires POSTGRES_DSN")
	}

	return cfg, nil
}

// Addr returns the HTTP bind address.
func (a AppConfig) Addr() string {
	return fmt.Sprintf("%s:%s", a.Host, a.Port)
}

// RequestTimeout returns the configured request timeout duration.
func (a AppConfig) RequestTimeout() time.Duration {
	if a.RequestTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(a.RequestTimeoutSeconds) * time.Second
}

// Timeout returns the per-call timeout for identity requests.
func (i IdentityConfig) Timeout() time.Duration {
	if i.TimeoutSeconds <= 0 {
		return 8 * time.Second
	}
	return time.Duration(i.TimeoutSeconds) * time.Second
}

// CheckInterval returns how often the expiry notifier polls.
func (s SessionConfig) CheckInterval() time.Duration {
	if s.CheckIntervalSeconds <= 0 {
		return time.Minute
	}
	return time.Duration(s.CheckIntervalSeconds) * time.Second
}

// WarningThreshold returns how long before expiry the warning is raised.
func (s SessionConfig) WarningThreshold() time.Duration {
	if s.WarningThresholdSeconds <= 0 {
		return 5 * time.Minute
	}
	return time.Duration(s.WarningThresholdSeconds) * time.Second
}

// Addr returns the mock identity bind address.
func (m MockConfig) Addr() string {
	return fmt.Sprintf("%s:%s", m.Host, m.Port)
}

func getEnv(key, fallback string) string {
	if val := strings.TrimSpace(os.Getenv(key)); val != "" {
		return val
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsBool(key string, fallback bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return fallback
	}
	return parsed
}
