// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package testutil provides shared test helpers.
package testutil

import (
	"context"
	"database/sql"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/olegiv/gatekeeper-go/internal/auth"
	"github.com/olegiv/gatekeeper-go/internal/store"
)

// TestLogger creates a test logger that only outputs warnings and errors.
func TestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelWarn,
	}))
}

// TestDB creates a temporary migrated database with the roles seeded.
// It is closed when the test ends.
func TestDB(t *testing.T) *sql.DB {
	t.Helper()

	f, err := os.CreateTemp(t.TempDir(), "gatekeeper-test-*.db")
	if err != nil {
		t.Fatalf("creating temp file: %v", err)
	}
	dbPath := f.Name()
	_ = f.Close()

	db, err := store.NewDB(dbPath)
	if err != nil {
		t.Fatalf("NewDB: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	if err := store.Migrate(db); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	if err := store.SeedRoles(context.Background(), db); err != nil {
		t.Fatalf("SeedRoles: %v", err)
	}

	return db
}

// CreateUser inserts a user with the given role name and plain password.
func CreateUser(t *testing.T, db *sql.DB, username, password, role string) store.User {
	t.Helper()
	ctx := context.Background()
	q := store.New(db)

	r, err := q.GetRoleByName(ctx, role)
	if err != nil {
		t.Fatalf("GetRoleByName(%q): %v", role, err)
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}

	now := time.Now().UTC()
	user, err := q.CreateUser(ctx, store.CreateUserParams{
		Username:     username,
		PasswordHash: hash,
		FullName:     "Test " + username,
		RoleID:       r.ID,
		CreatedAt:    now,
		UpdatedAt:    now,
	})
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	return user
}

// RoleID returns the ID of a seeded role.
func RoleID(t *testing.T, db *sql.DB, role string) int64 {
	t.Helper()
	r, err := store.New(db).GetRoleByName(context.Background(), role)
	if err != nil {
		t.Fatalf("GetRoleByName(%q): %v", role, err)
	}
	return r.ID
}
