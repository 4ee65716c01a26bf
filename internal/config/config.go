package config

import (
	"log/slog"
	"os"
	"strconv"
	"time"
)

type Config struct {
	Port         string
	Env          string
	DatabaseDSN  string
	JWTSecret    string
	JWTExpiry    time.Duration
	CursorSecret string
	MaxPageSize  int
	MaxBatchSize int
	AuthRPS      int
	AuthBurst    int
}

func Load() Config {
	cfg := Config{
		Port:         getEnv("PORT", "8080"),
		Env:          getEnv("ENV", "development"),
		DatabaseDSN:  getEnv("DATABASE_DSN", "root:password@tcp(127.0.0.1:3306)/keywarden?parseTime=true"),
		JWTSecret:    getEnv("JWT_SECRET", "dev-secret-change-in-production"),
		JWTExpiry:    24 * time.Hour,
		MaxPageSize:  getEnvInt("SYNC_MAX_PAGE_SIZE", 1000),
		MaxBatchSize: getEnvInt("SYNC_MAX_BATCH_SIZE", 1000),
		AuthRPS:      getEnvInt("AUTH_RATE_RPS", 5),
		AuthBurst:    getEnvInt("AUTH_RATE_BURST", 10),
	}

	// Cursor tokens are HMAC-signed; a single-secret deployment falls back
	// to the JWT secret.
	cfg.CursorSecret = getEnv("CURSOR_SECRET", cfg.JWTSecret)

	if cfg.Env == "production" && cfg.JWTSecret == "dev-secret-change-in-production" {
		slog.Error("JWT_SECRET must be set in production environment")
		os.Exit(1)
	}

	return cfg
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		slog.Warn("invalid integer in environment, using default", "key", key, "value", v)
		return fallback
	}
	return n
}
