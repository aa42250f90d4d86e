// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package config loads the gatekeeper server configuration from the
// environment.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// knownWeakSecrets contains example secrets that must never be used.
var knownWeakSecrets = []string{
	"change-me-to-32-byte-secret-key!",
	"una_clave_secreta_por_defecto_si_no_se_encuentra",
}

// Config holds the application configuration loaded from environment variables.
type Config struct {
	DBPath        string `env:"GATEKEEPER_DB_PATH" envDefault:"./data/gatekeeper.db"`
	SessionSecret string `env:"GATEKEEPER_SESSION_SECRET,required"`
	ServerHost    string `env:"GATEKEEPER_SERVER_HOST" envDefault:"localhost"`
	ServerPort    int    `env:"GATEKEEPER_SERVER_PORT" envDefault:"8080"`
	Env           string `env:"GATEKEEPER_ENV" envDefault:"development"`
	LogLevel      string `env:"GATEKEEPER_LOG_LEVEL" envDefault:"info"`

	// TrustProxy takes the client address from X-Forwarded-For/X-Real-IP.
	// Only enable it behind a reverse proxy that sets those headers.
	TrustProxy bool `env:"GATEKEEPER_TRUST_PROXY" envDefault:"false"`

	// WASMDir holds gate.wasm and wasm_exec.js; empty disables the
	// client-side gate and the page relies on the server-rendered state.
	WASMDir string `env:"GATEKEEPER_WASM_DIR"`

	// Login protection
	RedisURL          string        `env:"GATEKEEPER_REDIS_URL"` // shared lockout state across instances
	RedisPrefix       string        `env:"GATEKEEPER_REDIS_PREFIX" envDefault:"gatekeeper:"`
	MaxFailedAttempts int           `env:"GATEKEEPER_MAX_FAILED_ATTEMPTS" envDefault:"5"`
	LockoutDuration   time.Duration `env:"GATEKEEPER_LOCKOUT_DURATION" envDefault:"15m"`

	// Audit log
	EventRetentionDays int `env:"GATEKEEPER_EVENT_RETENTION_DAYS" envDefault:"90"`

	DoSeed bool `env:"GATEKEEPER_DO_SEED" envDefault:"false"`
}

// IsDevelopment returns true if the application is running in development mode.
func (c Config) IsDevelopment() bool {
	return c.Env == "development"
}

// ServerAddr returns the full server address in host:port format.
func (c Config) ServerAddr() string {
	return fmt.Sprintf("%s:%d", c.ServerHost, c.ServerPort)
}

// UseRedisLockout returns true if lockout state should be kept in Redis.
func (c Config) UseRedisLockout() bool {
	return c.RedisURL != ""
}

// EventRetention returns the audit log retention window.
func (c Config) EventRetention() time.Duration {
	return time.Duration(c.EventRetentionDays) * 24 * time.Hour
}

// SlogLevel maps LogLevel to a slog.Level, defaulting to info.
func (c Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
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

// MinSessionSecretLength is the minimum required length for the session secret.
const MinSessionSecretLength = 32

// Load parses environment variables and returns a Config struct.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	if !hasMinimumEntropy(cfg.SessionSecret) {
		slog.Warn("GATEKEEPER_SESSION_SECRET has low character diversity; " +
			"consider generating a random secret with: openssl rand -base64 32")
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if len(c.SessionSecret) < MinSessionSecretLength {
		return fmt.Errorf("GATEKEEPER_SESSION_SECRET must be at least %d bytes long, got %d bytes",
			MinSessionSecretLength, len(c.SessionSecret))
	}
	for _, weak := range knownWeakSecrets {
		if c.SessionSecret == weak {
			return errors.New("GATEKEEPER_SESSION_SECRET is a known default value and must not be used")
		}
	}
	if c.MaxFailedAttempts < 1 {
		return fmt.Errorf("GATEKEEPER_MAX_FAILED_ATTEMPTS must be positive, got %d", c.MaxFailedAttempts)
	}
	if c.EventRetentionDays < 1 {
		return fmt.Errorf("GATEKEEPER_EVENT_RETENTION_DAYS must be positive, got %d", c.EventRetentionDays)
	}
	return nil
}

// hasMinimumEntropy checks that a secret mixes at least 3 character classes.
func hasMinimumEntropy(s string) bool {
	classes := []string{
		"abcdefghijklmnopqrstuvwxyz",
		"ABCDEFGHIJKLMNOPQRSTUVWXYZ",
		"0123456789",
		"!@#$%^&*()-_=+[]{}|;:,.<>?/~`'\"\\",
	}
	n := 0
	for _, class := range classes {
		if strings.ContainsAny(s, class) {
			n++
		}
	}
	return n >= 3
}
