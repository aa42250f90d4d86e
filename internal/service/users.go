// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"html"
	"log/slog"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"

	"github.com/olegiv/gatekeeper-go/internal/auth"
	"github.com/olegiv/gatekeeper-go/internal/store"
)

// User service errors.
var (
	ErrInvalidCredentials  = errors.New("invalid credentials")
	ErrFieldsRequired      = errors.New("all fields are required")
	ErrPasswordMismatch    = errors.New("passwords do not match")
	ErrUsernameTaken       = errors.New("username already exists")
	ErrUnknownRole         = errors.New("unknown role")
	ErrUserNotFound        = errors.New("user not found")
	ErrCannotDeleteSelf    = errors.New("cannot delete own account")
	ErrCannotChangeOwnRole = errors.New("cannot change own role")
)

// UserService authenticates and manages users.
type UserService struct {
	db      *sql.DB
	queries *store.Queries
	policy  *bluemonday.Policy
	now     func() time.Time
}

// NewUserService creates a new UserService.
func NewUserService(db *sql.DB) *UserService {
	return &UserService{
		db:      db,
		queries: store.New(db),
		policy:  bluemonday.StrictPolicy(),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Roles returns the selectable roles.
func (s *UserService) Roles(ctx context.Context) ([]store.Role, error) {
	return s.queries.ListRoles(ctx)
}

// RoleByName looks up a selectable role.
func (s *UserService) RoleByName(ctx context.Context, name string) (store.Role, error) {
	role, err := s.queries.GetRoleByName(ctx, name)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return store.Role{}, ErrUnknownRole
		}
		return store.Role{}, fmt.Errorf("loading role: %w", err)
	}
	return role, nil
}

// Authenticate checks a username/password pair for the given role. A user
// that exists under a different role is rejected like a wrong password.
func (s *UserService) Authenticate(ctx context.Context, username, password string, roleID int64) (store.User, error) {
	user, err := s.queries.GetUserByUsernameAndRole(ctx, store.GetUserByUsernameAndRoleParams{
		Username: strings.TrimSpace(username),
		RoleID:   roleID,
	})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return store.User{}, ErrInvalidCredentials
		}
		return store.User{}, fmt.Errorf("loading user: %w", err)
	}

	ok, err := auth.CheckPassword(password, user.PasswordHash)
	if err != nil {
		slog.Error("password check error", "error", err, "user_id", user.ID)
		return store.User{}, ErrInvalidCredentials
	}
	if !ok {
		return user, ErrInvalidCredentials
	}

	if auth.NeedsRehash(user.PasswordHash) {
		if newHash, err := auth.HashPassword(password); err == nil {
			if err := s.queries.UpdateUserPassword(ctx, store.UpdateUserPasswordParams{
				PasswordHash: newHash,
				UpdatedAt:    s.now(),
				ID:           user.ID,
			}); err != nil {
				slog.Error("failed to re-hash password", "error", err, "user_id", user.ID)
			}
		}
	}

	if err := s.queries.UpdateUserLastLogin(ctx, store.UpdateUserLastLoginParams{
		LastLoginAt: sql.NullTime{Time: s.now(), Valid: true},
		ID:          user.ID,
	}); err != nil {
		// Don't block login on this error
		slog.Error("failed to update last login time", "error", err, "user_id", user.ID)
	}

	return user, nil
}

// Get loads a user by ID.
func (s *UserService) Get(ctx context.Context, id int64) (store.User, error) {
	user, err := s.queries.GetUserByID(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return store.User{}, ErrUserNotFound
	}
	return user, err
}

// List returns all users.
func (s *UserService) List(ctx context.Context) ([]store.User, error) {
	return s.queries.ListUsers(ctx)
}

// CreateUserInput is the submitted new-user form.
type CreateUserInput struct {
	Username        string
	FullName        string
	Password        string
	ConfirmPassword string
	RoleID          int64
}

// Create validates in and stores a new user. The full name is stripped of
// markup.
func (s *UserService) Create(ctx context.Context, in CreateUserInput) (store.User, error) {
	username := strings.TrimSpace(in.Username)
	fullName := s.cleanFullName(in.FullName)

	if username == "" || fullName == "" || in.Password == "" || in.ConfirmPassword == "" || in.RoleID == 0 {
		return store.User{}, ErrFieldsRequired
	}
	if in.Password != in.ConfirmPassword {
		return store.User{}, ErrPasswordMismatch
	}

	if _, err := s.queries.GetRoleByID(ctx, in.RoleID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return store.User{}, ErrUnknownRole
		}
		return store.User{}, fmt.Errorf("loading role: %w", err)
	}

	if _, err := s.queries.GetUserByUsername(ctx, username); err == nil {
		return store.User{}, ErrUsernameTaken
	} else if !errors.Is(err, sql.ErrNoRows) {
		return store.User{}, fmt.Errorf("checking username: %w", err)
	}

	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return store.User{}, fmt.Errorf("hashing password: %w", err)
	}

	now := s.now()
	user, err := s.queries.CreateUser(ctx, store.CreateUserParams{
		Username:     username,
		PasswordHash: hash,
		FullName:     fullName,
		RoleID:       in.RoleID,
		CreatedAt:    now,
		UpdatedAt:    now,
	})
	if err != nil {
		return store.User{}, fmt.Errorf("creating user: %w", err)
	}
	return user, nil
}

// cleanFullName strips markup from a submitted full name. The strict
// policy escapes entities; templates escape again on output.
func (s *UserService) cleanFullName(name string) string {
	return strings.TrimSpace(html.UnescapeString(s.policy.Sanitize(name)))
}

// UpdateUserInput is the submitted edit-user form. An empty Password keeps
// the current password.
type UpdateUserInput struct {
	ID              int64
	Username        string
	FullName        string
	Password        string
	ConfirmPassword string
	RoleID          int64
}

// Update validates in and stores the changes to an existing user on behalf
// of actorID. Admins cannot change their own role.
func (s *UserService) Update(ctx context.Context, actorID int64, in UpdateUserInput) (store.User, error) {
	username := strings.TrimSpace(in.Username)
	fullName := s.cleanFullName(in.FullName)

	if username == "" || fullName == "" || in.RoleID == 0 {
		return store.User{}, ErrFieldsRequired
	}
	if in.Password != "" && in.Password != in.ConfirmPassword {
		return store.User{}, ErrPasswordMismatch
	}

	current, err := s.Get(ctx, in.ID)
	if err != nil {
		return store.User{}, err
	}

	role, err := s.queries.GetRoleByID(ctx, in.RoleID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return store.User{}, ErrUnknownRole
		}
		return store.User{}, fmt.Errorf("loading role: %w", err)
	}
	if actorID == current.ID && role.ID != current.RoleID {
		return store.User{}, ErrCannotChangeOwnRole
	}

	if other, err := s.queries.GetUserByUsername(ctx, username); err == nil {
		if other.ID != current.ID {
			return store.User{}, ErrUsernameTaken
		}
	} else if !errors.Is(err, sql.ErrNoRows) {
		return store.User{}, fmt.Errorf("checking username: %w", err)
	}

	var hash string
	if in.Password != "" {
		if hash, err = auth.HashPassword(in.Password); err != nil {
			return store.User{}, fmt.Errorf("hashing password: %w", err)
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return store.User{}, fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	qtx := s.queries.WithTx(tx)
	now := s.now()
	if err := qtx.UpdateUser(ctx, store.UpdateUserParams{
		Username:  username,
		FullName:  fullName,
		RoleID:    role.ID,
		UpdatedAt: now,
		ID:        current.ID,
	}); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return store.User{}, ErrUserNotFound
		}
		return store.User{}, fmt.Errorf("updating user: %w", err)
	}
	if hash != "" {
		if err := qtx.UpdateUserPassword(ctx, store.UpdateUserPasswordParams{
			PasswordHash: hash,
			UpdatedAt:    now,
			ID:           current.ID,
		}); err != nil {
			return store.User{}, fmt.Errorf("updating password: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return store.User{}, fmt.Errorf("committing user update: %w", err)
	}

	return s.Get(ctx, current.ID)
}

// Delete removes user id on behalf of actorID.
func (s *UserService) Delete(ctx context.Context, actorID, id int64) error {
	if actorID == id {
		return ErrCannotDeleteSelf
	}
	if err := s.queries.DeleteUser(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrUserNotFound
		}
		return fmt.Errorf("deleting user: %w", err)
	}
	return nil
}
