package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

const defaultJWTSecret = "dev-secret"

// Config aggregates runtime configuration for the service.
type Config struct {
	App      AppConfig
	Postgres PostgresConfig
	Redis    RedisConfig
	Logger   LoggerConfig
	Auth     AuthConfig
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

// PostgresConfig holds DB connection values.
type PostgresConfig struct {
	DSN            string
	MaxConns       int32
	MinConns       int32
	RunMigrations  bool
	ConnMaxIdleSec int32
	ConnMaxLifeSec int32
	QueryTimeoutMS int
}

// RedisConfig holds Redis connection values.
type RedisConfig struct {
	Addr        string
	Password    string
	DB          int
	OpTimeoutMS int
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level       string
	Development bool
}

// AuthConfig defines authentication parameters.
type AuthConfig struct {
	JWTSecret             string
	JWTIssuer             string
	AccessTokenTTLMinutes int
	RefreshTokenTTLDays   int
	RoleCacheTTLHours     int
	ClockSkewSeconds      int
	RotateRefreshOnRenew  bool
	BcryptCost            int
}

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "petcare-service"),
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", "8080"),
			Version:               getEnv("APP_VERSION", "dev"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 30),
		},
		Postgres: PostgresConfig{
			DSN:            os.Getenv("POSTGRES_DSN"),
			MaxConns:       int32(getEnvAsInt("POSTGRES_MAX_CONNS", 10)),
			MinConns:       int32(getEnvAsInt("POSTGRES_MIN_CONNS", 2)),
			RunMigrations:  getEnvAsBool("POSTGRES_RUN_MIGRATIONS", true),
			ConnMaxIdleSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30)),
			ConnMaxLifeSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300)),
			QueryTimeoutMS: getEnvAsInt("POSTGRES_QUERY_TIMEOUT_MS", 3000),
		},
		Redis: RedisConfig{
			Addr:        getEnv("REDIS_ADDR", "127.0.0.1:6379"),
			Password:    os.Getenv("REDIS_PASSWORD"),
			DB:          redisDB,
			OpTimeoutMS: getEnvAsInt("REDIS_OP_TIMEOUT_MS", 250),
		},
		Logger: LoggerConfig{
			Level:       getEnv("LOG_LEVEL", "info"),
			Development: getEnv("APP_ENV", "development") == "development",
		},
		Auth: AuthConfig{
			JWTSecret:             getEnv("AUTH_JWT_SECRET", defaultJWTSecret),
			JWTIssuer:             getEnv("AUTH_JWT_ISSUER", "petcare-service"),
			AccessTokenTTLMinutes: getEnvAsInt("AUTH_ACCESS_TOKEN_TTL_MINUTES", 30),
			RefreshTokenTTLDays:   getEnvAsInt("AUTH_REFRESH_TOKEN_TTL_DAYS", 14),
			RoleCacheTTLHours:     getEnvAsInt("AUTH_ROLE_CACHE_TTL_HOURS", 6),
			ClockSkewSeconds:      getEnvAsInt("AUTH_CLOCK_SKEW_SECONDS", 0),
			RotateRefreshOnRenew:  getEnvAsBool("AUTH_ROTATE_REFRESH_ON_RENEW", false),
			BcryptCost:            getEnvAsInt("AUTH_BCRYPT_COST", 12),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects configurations that cannot run safely.
func (c *Config) Validate() error {
	if c.Auth.JWTSecret == "" {
		return errors.New("AUTH_JWT_SECRET must not be empty")
	}
	if c.App.Env == "production" && c.Auth.JWTSecret == defaultJWTSecret {
		return errors.New("AUTH_JWT_SECRET must be set in production")
	}
	if c.Auth.AccessTokenTTLMinutes <= 0 {
		return errors.New("AUTH_ACCESS_TOKEN_TTL_MINUTES must be positive")
	}
	if c.Auth.RefreshTokenTTLDays <= 0 {
		return errors.New("AUTH_REFRESH_TOKEN_TTL_DAYS must be positive")
	}
	if c.Auth.ClockSkewSeconds < 0 {
		return errors.New("AUTH_CLOCK_SKEW_SECONDS must not be negative")
	}
	return nil
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

// QueryTimeout bounds a single store call.
func (p PostgresConfig) QueryTimeout() time.Duration {
	return time.Duration(p.QueryTimeoutMS) * time.Millisecond
}

// OpTimeout bounds a single cache call.
func (r RedisConfig) OpTimeout() time.Duration {
	return time.Duration(r.OpTimeoutMS) * time.Millisecond
}

// AccessTTL is the lifetime of access tokens.
func (a AuthConfig) AccessTTL() time.Duration {
	return time.Duration(a.AccessTokenTTLMinutes) * time.Minute
}

// RefreshTTL is the lifetime of refresh tokens.
func (a AuthConfig) RefreshTTL() time.Duration {
	return time.Duration(a.RefreshTokenTTLDays) * 24 * time.Hour
}

// RoleCacheTTL is the authorization cache window.
func (a AuthConfig) RoleCacheTTL() time.Duration {
	return time.Duration(a.RoleCacheTTLHours) * time.Hour
}

// ClockSkew is the leeway applied to expiry checks.
func (a AuthConfig) ClockSkew() time.Duration {
	return time.Duration(a.ClockSkewSeconds) * time.Second
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
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
