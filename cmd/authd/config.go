package main

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/goliatone/go-auth-session"
	"github.com/goliatone/go-errors"
	"github.com/joho/godotenv"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Auth     auth.Options
	Login    LoginConfig
	Owner    OwnerConfig
}

type ServerConfig struct {
	Addr            string
	ShutdownTimeout time.Duration
	Debug           bool
}

type DatabaseConfig struct {
	// DSN may embed credentials, keep it out of debug dumps
	DSN string `json:"-"`
}

// IsPostgres reports whether the DSN targets postgres rather than sqlite.
func (c DatabaseConfig) IsPostgres() bool {
	dsn := strings.ToLower(c.DSN)
	return strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://")
}

type RedisConfig struct {
	Addr     string
	Password string `json:"-"`
	DB       int
}

type LoginConfig struct {
	BcryptCost     int
	RateInterval   time.Duration
	RateBurst      int
	StoreTimeout   time.Duration
	StrictRotation bool
}

// OwnerConfig seeds a first owner principal when both fields are set.
type OwnerConfig struct {
	Email    string
	Password string `json:"-"`
}

func LoadConfig() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Server: ServerConfig{
			Addr:            getEnv("SERVER_ADDR", ":8080"),
			ShutdownTimeout: getDurationEnv("SERVER_SHUTDOWN_TIMEOUT", 10*time.Second),
			Debug:           getBoolEnv("AUTH_DEBUG", false),
		},
		Database: DatabaseConfig{
			DSN: getEnv("DATABASE_DSN", "file:authd.db?cache=shared"),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", ""),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getIntEnv("REDIS_DB", 0),
		},
		Auth: auth.Options{
			SigningKey:      os.Getenv("AUTH_SIGNING_KEY"),
			Issuer:          getEnv("AUTH_ISSUER", auth.DefaultIssuer),
			Audience:        splitList(os.Getenv("AUTH_AUDIENCE")),
			AccessTokenTTL:  getDurationEnv("AUTH_ACCESS_TTL", auth.DefaultAccessTokenTTL),
			RefreshTokenTTL: getDurationEnv("AUTH_REFRESH_TTL", auth.DefaultRefreshTokenTTL),
			TokenLookup:     getEnv("AUTH_TOKEN_LOOKUP", auth.DefaultTokenLookup),
			AuthScheme:      getEnv("AUTH_SCHEME", auth.DefaultAuthScheme),
			ContextKey:      getEnv("AUTH_CONTEXT_KEY", auth.DefaultContextKey),
		},
		Login: LoginConfig{
			BcryptCost:     getIntEnv("AUTH_BCRYPT_COST", 12),
			RateInterval:   getDurationEnv("AUTH_LOGIN_RATE_INTERVAL", 2*time.Second),
			RateBurst:      getIntEnv("AUTH_LOGIN_RATE_BURST", 5),
			StoreTimeout:   getDurationEnv("AUTH_STORE_TIMEOUT", 3*time.Second),
			StrictRotation: getBoolEnv("AUTH_STRICT_ROTATION", false),
		},
		Owner: OwnerConfig{
			Email:    os.Getenv("AUTH_OWNER_EMAIL"),
			Password: os.Getenv("AUTH_OWNER_PASSWORD"),
		},
	}

	if len(cfg.Auth.SigningKey) < auth.MinSigningKeyLength {
		return nil, errors.New("AUTH_SIGNING_KEY must be set to at least 32 bytes", errors.CategoryBadInput).
			WithTextCode("MISSING_SIGNING_KEY")
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
