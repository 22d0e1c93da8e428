// Package config loads application configuration from environment variables
// and the gateway routing file.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ericfisherdev/sqlgate/internal/domain/model"
)

// MinKDFIterations is the lowest accepted PBKDF2 work factor.
const MinKDFIterations = 10000

// Config holds the application configuration loaded from environment variables.
type Config struct {
	ListenAddr      string
	DBPath          string
	ConfigFile      string
	TokenDir        string
	KDFIterations   int
	IPRateLimit     model.RateLimit
	TokenRateLimit  model.RateLimit
	RateLimitSweep  time.Duration
	RedisURL        string
	MaxBodyBytes    int64
	RequestTimeout  time.Duration
	StrictAllowList bool
	TrustProxy      bool // client IP from X-Forwarded-For / X-Real-IP
	Log             LogConfig
}

// LogConfig selects the slog handler and its output.
type LogConfig struct {
	Level      string
	Format     string
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// Load reads configuration from environment variables and returns a validated Config.
// Every variable is optional:
// SQLGATE_LISTEN_ADDR (127.0.0.1:8080), SQLGATE_DB_PATH (sqlgate.db),
// SQLGATE_CONFIG_FILE (sqlgate.yaml), SQLGATE_TOKEN_DIR (tokens),
// SQLGATE_TOKEN_KDF_ITERATIONS (100000), SQLGATE_RATE_LIMIT_IP (60/1m),
// SQLGATE_RATE_LIMIT_TOKEN (600/1m), SQLGATE_RATE_LIMIT_SWEEP (5m),
// SQLGATE_REDIS_URL (unset: in-process limiter), SQLGATE_MAX_BODY_BYTES (1048576),
// SQLGATE_REQUEST_TIMEOUT (30s), SQLGATE_STRICT_ALLOW_LIST (false), SQLGATE_TRUST_PROXY (false),
// SQLGATE_LOG_LEVEL (info), SQLGATE_LOG_FORMAT (text), SQLGATE_LOG_FILE (stderr),
// SQLGATE_LOG_MAX_SIZE_MB (100), SQLGATE_LOG_MAX_BACKUPS (10), SQLGATE_LOG_MAX_AGE_DAYS (30).
func Load() (*Config, error) {
	cfg := &Config{
		ListenAddr:     envOr("SQLGATE_LISTEN_ADDR", "127.0.0.1:8080"),
		DBPath:         envOr("SQLGATE_DB_PATH", "sqlgate.db"),
		ConfigFile:     envOr("SQLGATE_CONFIG_FILE", "sqlgate.yaml"),
		TokenDir:       envOr("SQLGATE_TOKEN_DIR", "tokens"),
		RedisURL:       os.Getenv("SQLGATE_REDIS_URL"),
		KDFIterations:  100000,
		IPRateLimit:    model.RateLimit{Limit: 60, Window: time.Minute},
		TokenRateLimit: model.RateLimit{Limit: 600, Window: time.Minute},
		RateLimitSweep: 5 * time.Minute,
		MaxBodyBytes:   1 << 20,
		RequestTimeout: 30 * time.Second,
		Log: LogConfig{
			Level:      envOr("SQLGATE_LOG_LEVEL", "info"),
			Format:     envOr("SQLGATE_LOG_FORMAT", "text"),
			File:       os.Getenv("SQLGATE_LOG_FILE"),
			MaxSizeMB:  100,
			MaxBackups: 10,
			MaxAgeDays: 30,
		},
	}

	var err error
	if cfg.KDFIterations, err = envInt("SQLGATE_TOKEN_KDF_ITERATIONS", cfg.KDFIterations); err != nil {
		return nil, err
	}
	if cfg.KDFIterations < MinKDFIterations {
		return nil, fmt.Errorf("SQLGATE_TOKEN_KDF_ITERATIONS must be at least %d, got %d", MinKDFIterations, cfg.KDFIterations)
	}

	if v, ok := os.LookupEnv("SQLGATE_RATE_LIMIT_IP"); ok {
		if cfg.IPRateLimit, err = ParseRateLimit(v); err != nil {
			return nil, fmt.Errorf("SQLGATE_RATE_LIMIT_IP: %w", err)
		}
	}
	if v, ok := os.LookupEnv("SQLGATE_RATE_LIMIT_TOKEN"); ok {
		if cfg.TokenRateLimit, err = ParseRateLimit(v); err != nil {
			return nil, fmt.Errorf("SQLGATE_RATE_LIMIT_TOKEN: %w", err)
		}
	}

	if cfg.RateLimitSweep, err = envDuration("SQLGATE_RATE_LIMIT_SWEEP", cfg.RateLimitSweep); err != nil {
		return nil, err
	}
	if cfg.RequestTimeout, err = envDuration("SQLGATE_REQUEST_TIMEOUT", cfg.RequestTimeout); err != nil {
		return nil, err
	}

	maxBody, err := envInt("SQLGATE_MAX_BODY_BYTES", int(cfg.MaxBodyBytes))
	if err != nil {
		return nil, err
	}
	if maxBody <= 0 {
		return nil, fmt.Errorf("SQLGATE_MAX_BODY_BYTES must be positive, got %d", maxBody)
	}
	cfg.MaxBodyBytes = int64(maxBody)

	if v, ok := os.LookupEnv("SQLGATE_STRICT_ALLOW_LIST"); ok {
		if cfg.StrictAllowList, err = strconv.ParseBool(v); err != nil {
			return nil, fmt.Errorf("SQLGATE_STRICT_ALLOW_LIST has invalid boolean %q: %w", v, err)
		}
	}

	if v, ok := os.LookupEnv("SQLGATE_TRUST_PROXY"); ok {
		if cfg.TrustProxy, err = strconv.ParseBool(v); err != nil {
			return nil, fmt.Errorf("SQLGATE_TRUST_PROXY has invalid boolean %q: %w", v, err)
		}
	}

	if cfg.Log.MaxSizeMB, err = envInt("SQLGATE_LOG_MAX_SIZE_MB", cfg.Log.MaxSizeMB); err != nil {
		return nil, err
	}
	if cfg.Log.MaxBackups, err = envInt("SQLGATE_LOG_MAX_BACKUPS", cfg.Log.MaxBackups); err != nil {
		return nil, err
	}
	if cfg.Log.MaxAgeDays, err = envInt("SQLGATE_LOG_MAX_AGE_DAYS", cfg.Log.MaxAgeDays); err != nil {
		return nil, err
	}

	return cfg, nil
}

// ParseRateLimit parses "N/duration", e.g. "100/1m" or "5/30s".
func ParseRateLimit(s string) (model.RateLimit, error) {
	countStr, windowStr, ok := strings.Cut(strings.TrimSpace(s), "/")
	if !ok {
		return model.RateLimit{}, fmt.Errorf("rate limit %q: expected N/duration", s)
	}

	limit, err := strconv.Atoi(strings.TrimSpace(countStr))
	if err != nil || limit <= 0 {
		return model.RateLimit{}, fmt.Errorf("rate limit %q: count must be a positive integer", s)
	}

	window, err := time.ParseDuration(strings.TrimSpace(windowStr))
	if err != nil || window <= 0 {
		return model.RateLimit{}, fmt.Errorf("rate limit %q: window must be a positive duration", s)
	}

	return model.RateLimit{Limit: limit, Window: window}, nil
}

func envOr(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) (int, error) {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s has invalid integer %q: %w", key, v, err)
	}
	return n, nil
}

func envDuration(key string, def time.Duration) (time.Duration, error) {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s has invalid duration %q: %w", key, v, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%s must be positive, got %s", key, v)
	}
	return d, nil
}
