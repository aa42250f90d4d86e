// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/olegiv/gatekeeper-go/internal/auth"
	"github.com/olegiv/gatekeeper-go/internal/model"
)

// Default admin credentials
const (
	DefaultAdminUsername = "admin"
	DefaultAdminPassword = "changeme"
	DefaultAdminName     = "Administrator"
)

// SeedRoles makes sure every known role exists. Existing roles are kept.
func SeedRoles(ctx context.Context, db *sql.DB) error {
	queries := New(db)

	for _, name := range model.Roles {
		_, err := queries.GetRoleByName(ctx, name)
		if err == nil {
			continue
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("checking role %s: %w", name, err)
		}
		if _, err := queries.CreateRole(ctx, name); err != nil {
			return fmt.Errorf("creating role %s: %w", name, err)
		}
		slog.Info("created role", "role", name)
	}

	return nil
}

// Seed creates the roles and, on an empty database, a default admin user.
func Seed(ctx context.Context, db *sql.DB) error {
	if err := SeedRoles(ctx, db); err != nil {
		return err
	}

	queries := New(db)

	count, err := queries.CountUsers(ctx)
	if err != nil {
		return fmt.Errorf("counting users: %w", err)
	}
	if count > 0 {
		slog.Info("users already exist, skipping admin seed")
		return nil
	}

	role, err := queries.GetRoleByName(ctx, model.RoleAdmin)
	if err != nil {
		return fmt.Errorf("loading admin role: %w", err)
	}

	passwordHash, err := auth.HashPassword(DefaultAdminPassword)
	if err != nil {
		return fmt.Errorf("hashing password: %w", err)
	}

	now := time.Now().UTC()
	user, err := queries.CreateUser(ctx, CreateUserParams{
		Username:     DefaultAdminUsername,
		PasswordHash: passwordHash,
		FullName:     DefaultAdminName,
		RoleID:       role.ID,
		CreatedAt:    now,
		UpdatedAt:    now,
	})
	if err != nil {
		return fmt.Errorf("creating admin user: %w", err)
	}

	slog.Info("created default admin user",
		"id", user.ID,
		"username", user.Username,
		"password", DefaultAdminPassword,
	)

	return nil
}
