// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package config

import (
	"log/slog"
	"os"
	"strings"
	"testing"
	"time"
)

const testSecret = "test-secret-key-32-bytes-long!!!"

func setEnv(t *testing.T, key, value string) {
	t.Helper()
	t.Setenv(key, value)
}

func TestLoad_Defaults(t *testing.T) {
	os.Clearenv()
	setEnv(t, "GATEKEEPER_SESSION_SECRET", testSecret)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.DBPath != "./data/gatekeeper.db" {
		t.Errorf("DBPath = %q, want %q", cfg.DBPath, "./data/gatekeeper.db")
	}
	if cfg.ServerAddr() != "localhost:8080" {
		t.Errorf("ServerAddr() = %q, want %q", cfg.ServerAddr(), "localhost:8080")
	}
	if !cfg.IsDevelopment() {
		t.Error("expected development mode by default")
	}
	if cfg.MaxFailedAttempts != 5 {
		t.Errorf("MaxFailedAttempts = %d, want 5", cfg.MaxFailedAttempts)
	}
	if cfg.LockoutDuration != 15*time.Minute {
		t.Errorf("LockoutDuration = %v, want 15m", cfg.LockoutDuration)
	}
	if cfg.EventRetention() != 90*24*time.Hour {
		t.Errorf("EventRetention() = %v, want 90 days", cfg.EventRetention())
	}
	if cfg.UseRedisLockout() {
		t.Error("Redis lockout should be off without a URL")
	}
	if cfg.TrustProxy {
		t.Error("proxy headers should not be trusted by default")
	}
}

func TestLoad_CustomValues(t *testing.T) {
	os.Clearenv()
	setEnv(t, "GATEKEEPER_SESSION_SECRET", testSecret)
	setEnv(t, "GATEKEEPER_DB_PATH", "/custom/path.db")
	setEnv(t, "GATEKEEPER_SERVER_HOST", "0.0.0.0")
	setEnv(t, "GATEKEEPER_SERVER_PORT", "3000")
	setEnv(t, "GATEKEEPER_ENV", "production")
	setEnv(t, "GATEKEEPER_REDIS_URL", "redis://localhost:6379/0")
	setEnv(t, "GATEKEEPER_LOCKOUT_DURATION", "2m")
	setEnv(t, "GATEKEEPER_TRUST_PROXY", "true")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.DBPath != "/custom/path.db" {
		t.Errorf("DBPath = %q", cfg.DBPath)
	}
	if cfg.ServerAddr() != "0.0.0.0:3000" {
		t.Errorf("ServerAddr() = %q", cfg.ServerAddr())
	}
	if cfg.IsDevelopment() {
		t.Error("expected production mode")
	}
	if !cfg.UseRedisLockout() {
		t.Error("expected Redis lockout")
	}
	if cfg.LockoutDuration != 2*time.Minute {
		t.Errorf("LockoutDuration = %v, want 2m", cfg.LockoutDuration)
	}
	if !cfg.TrustProxy {
		t.Error("expected TrustProxy")
	}
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		wantErr string
	}{
		{"missing secret", map[string]string{}, "GATEKEEPER_SESSION_SECRET"},
		{"short secret", map[string]string{"GATEKEEPER_SESSION_SECRET": "short"}, "at least 32 bytes"},
		{"weak secret", map[string]string{"GATEKEEPER_SESSION_SECRET": "change-me-to-32-byte-secret-key!"}, "known default"},
		{"bad attempts", map[string]string{
			"GATEKEEPER_SESSION_SECRET":      testSecret,
			"GATEKEEPER_MAX_FAILED_ATTEMPTS": "0",
		}, "MAX_FAILED_ATTEMPTS"},
		{"bad retention", map[string]string{
			"GATEKEEPER_SESSION_SECRET":       testSecret,
			"GATEKEEPER_EVENT_RETENTION_DAYS": "-1",
		}, "RETENTION_DAYS"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			os.Clearenv()
			for k, v := range tt.env {
				setEnv(t, k, v)
			}

			_, err := Load()
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %q, want substring %q", err, tt.wantErr)
			}
		})
	}
}

func TestSlogLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"WARN":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"info":    slog.LevelInfo,
		"bogus":   slog.LevelInfo,
	}
	for in, want := range tests {
		if got := (Config{LogLevel: in}).SlogLevel(); got != want {
			t.Errorf("SlogLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestHasMinimumEntropy(t *testing.T) {
	if hasMinimumEntropy("aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa") {
		t.Error("single class should fail")
	}
	if !hasMinimumEntropy("abcDEF123") {
		t.Error("three classes should pass")
	}
}
