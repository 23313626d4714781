// Package config loads server settings from the environment.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Server        ServerConfig
	Database      DatabaseConfig
	Auth          AuthConfig
	Observability ObservabilityConfig
	Profiling     ProfilingConfig
	Staging       StagingConfig
}

type ServerConfig struct {
	Host               string
	Port               int
	RateLimitPerSecond int
	RateLimitBurst     int
	MaxBodyBytes       int64
}

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Name     string
	SSLMode  string
	MaxConns int32
	MinConns int32
}

type AuthConfig struct {
	JWTSecret string
}

type ObservabilityConfig struct {
	MetricsEnabled bool
	LogLevel       string
}

type ProfilingConfig struct {
	Enabled bool
	Port    int
}

// StagingConfig tunes the import pipeline and the wizard.
type StagingConfig struct {
	GroupWindow    time.Duration
	GroupMaxRows   int
	SessionTTL     time.Duration
	AnchorCurrency string
	SearchDebounce time.Duration
	SearchLimit    int
	Timezone       string
}

// DSN builds a postgres connection URL.
func (d DatabaseConfig) DSN() string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(d.User, d.Password),
		Host:   fmt.Sprintf("%s:%d", d.Host, d.Port),
		Path:   d.Name,
	}
	q := u.Query()
	q.Set("sslmode", d.SSLMode)
	u.RawQuery = q.Encode()
	return u.String()
}

// Level maps LOG_LEVEL to a slog level, defaulting to info.
func (o ObservabilityConfig) Level() slog.Level {
	switch strings.ToLower(o.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Location resolves STAGING_TIMEZONE, UTC when unset.
func (s StagingConfig) Location() (*time.Location, error) {
	if s.Timezone == "" {
		return time.UTC, nil
	}
	return time.LoadLocation(s.Timezone)
}

// Load reads the environment. Unset variables fall back to defaults;
// malformed ones are reported together.
func Load() (*Config, error) {
	e := &envReader{}

	cfg := &Config{
		Server: ServerConfig{
			Host:               e.getString("SERVER_HOST", "0.0.0.0"),
			Port:               e.getInt("SERVER_PORT", 8080),
			RateLimitPerSecond: e.getInt("RATE_LIMIT_PER_SECOND", 20),
			RateLimitBurst:     e.getInt("RATE_LIMIT_BURST", 40),
			MaxBodyBytes:       int64(e.getInt("MAX_BODY_BYTES", 10<<20)),
		},
		Database: DatabaseConfig{
			Host:     e.getString("DB_HOST", "localhost"),
			Port:     e.getInt("DB_PORT", 5432),
			User:     e.getString("DB_USER", "postgres"),
			Password: e.getString("DB_PASSWORD", "postgres"),
			Name:     e.getString("DB_NAME", "wealth"),
			SSLMode:  e.getString("DB_SSLMODE", "disable"),
			MaxConns: int32(e.getInt("DB_MAX_CONNS", 25)),
			MinConns: int32(e.getInt("DB_MIN_CONNS", 5)),
		},
		Auth: AuthConfig{
			JWTSecret: e.getString("JWT_SECRET", ""),
		},
		Observability: ObservabilityConfig{
			MetricsEnabled: e.getBool("METRICS_ENABLED", true),
			LogLevel:       e.getString("LOG_LEVEL", "info"),
		},
		Profiling: ProfilingConfig{
			Enabled: e.getBool("PPROF_ENABLED", false),
			Port:    e.getInt("PPROF_PORT", 6060),
		},
		Staging: StagingConfig{
			GroupWindow:    e.getDuration("STAGING_GROUP_WINDOW", 2*time.Second),
			GroupMaxRows:   e.getInt("STAGING_GROUP_MAX_ROWS", 16),
			SessionTTL:     e.getDuration("STAGING_SESSION_TTL", 30*time.Minute),
			AnchorCurrency: strings.ToUpper(e.getString("STAGING_ANCHOR_CURRENCY", "EUR")),
			SearchDebounce: e.getDuration("STAGING_SEARCH_DEBOUNCE", 300*time.Millisecond),
			SearchLimit:    e.getInt("STAGING_SEARCH_LIMIT", 10),
			Timezone:       e.getString("STAGING_TIMEZONE", ""),
		},
	}

	if err := errors.Join(e.errs...); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	if _, err := cfg.Staging.Location(); err != nil {
		return nil, fmt.Errorf("invalid STAGING_TIMEZONE: %w", err)
	}
	return cfg, nil
}

type envReader struct {
	errs []error
}

func (e *envReader) getString(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v)
	}
	return fallback
}

func (e *envReader) getInt(key string, fallback int) int {
	raw := e.getString(key, "")
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("%s: %q is not an integer", key, raw))
		return fallback
	}
	return v
}

func (e *envReader) getBool(key string, fallback bool) bool {
	raw := e.getString(key, "")
	if raw == "" {
		return fallback
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("%s: %q is not a boolean", key, raw))
		return fallback
	}
	return v
}

func (e *envReader) getDuration(key string, fallback time.Duration) time.Duration {
	raw := e.getString(key, "")
	if raw == "" {
		return fallback
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("%s: %q is not a duration", key, raw))
		return fallback
	}
	return v
}
