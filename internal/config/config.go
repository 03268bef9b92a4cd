// Package config reads the server settings from the environment.
//
// Every setting has a development default except JWT_SECRET. A .env file
// in the working directory, if present, is loaded first; variables already
// set in the real environment win over it.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const minSecretLength = 16

// Config holds runtime settings for the flashcards server.
type Config struct {
	Port               int
	DBPath             string
	JWTSecret          string
	AccessTokenTTL     time.Duration
	RefreshTokenTTL    time.Duration
	CORSAllowedOrigins []string
	AuthRateLimit      int // requests per minute per client on login/register
	LogLevel           slog.Level
	LogFormat          string // "text" or "json"
}

// LoadDotEnv loads the given .env files (default ".env") into the process
// environment. Missing files are not an error.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("config: loading %s: %w", p, err)
		}
	}
	return nil
}

// Load builds a Config from the process environment.
func Load() (*Config, error) {
	return load(os.Getenv)
}

func load(getenv func(string) string) (*Config, error) {
	env := func(key, def string) string {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			return v
		}
		return def
	}

	var errs []error
	cfg := &Config{
		DBPath:             env("DB_PATH", "data/flashcards.db"),
		JWTSecret:          getenv("JWT_SECRET"),
		CORSAllowedOrigins: splitList(env("CORS_ALLOWED_ORIGINS", "http://localhost:3000")),
		LogFormat:          strings.ToLower(env("LOG_FORMAT", "text")),
	}

	var err error
	if cfg.Port, err = strconv.Atoi(env("PORT", "8080")); err != nil || cfg.Port < 1 || cfg.Port > 65535 {
		errs = append(errs, fmt.Errorf("PORT: %q is not a valid port", getenv("PORT")))
	}
	if cfg.AccessTokenTTL, err = positiveDuration(env("ACCESS_TOKEN_TTL", "15m")); err != nil {
		errs = append(errs, fmt.Errorf("ACCESS_TOKEN_TTL: %w", err))
	}
	if cfg.RefreshTokenTTL, err = positiveDuration(env("REFRESH_TOKEN_TTL", "24h")); err != nil {
		errs = append(errs, fmt.Errorf("REFRESH_TOKEN_TTL: %w", err))
	}
	if cfg.AuthRateLimit, err = strconv.Atoi(env("AUTH_RATE_LIMIT", "20")); err != nil || cfg.AuthRateLimit < 1 {
		errs = append(errs, fmt.Errorf("AUTH_RATE_LIMIT: %q must be a positive integer", getenv("AUTH_RATE_LIMIT")))
	}
	if err := cfg.LogLevel.UnmarshalText([]byte(env("LOG_LEVEL", "info"))); err != nil {
		errs = append(errs, fmt.Errorf("LOG_LEVEL: %w", err))
	}
	if cfg.LogFormat != "text" && cfg.LogFormat != "json" {
		errs = append(errs, fmt.Errorf("LOG_FORMAT: %q must be text or json", cfg.LogFormat))
	}

	switch {
	case cfg.JWTSecret == "":
		errs = append(errs, errors.New("JWT_SECRET is required (generate one with: openssl rand -hex 32)"))
	case len(cfg.JWTSecret) < minSecretLength:
		errs = append(errs, fmt.Errorf("JWT_SECRET must be at least %d characters", minSecretLength))
	}

	if err := errors.Join(errs...); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

// Addr is the listen address for http.Server.
func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

// NewLogger builds the process logger: text for humans, JSON for log
// shippers.
func (c *Config) NewLogger() *slog.Logger {
	opts := &slog.HandlerOptions{Level: c.LogLevel}
	if c.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}

func positiveDuration(raw string) (time.Duration, error) {
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, err
	}
	if d <= 0 {
		return 0, fmt.Errorf("%q must be positive", raw)
	}
	return d, nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
