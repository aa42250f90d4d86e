// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package store

import (
	"context"
	"database/sql"
	"time"
)

const userColumns = `u.id, u.username, u.password_hash, u.full_name, u.role_id, r.name,
	u.last_login_at, u.created_at, u.updated_at`

const userFrom = ` FROM users u JOIN roles r ON r.id = u.role_id`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (User, error) {
	var u User
	err := row.Scan(
		&u.ID,
		&u.Username,
		&u.PasswordHash,
		&u.FullName,
		&u.RoleID,
		&u.RoleName,
		&u.LastLoginAt,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	return u, err
}

// CreateUserParams holds the fields of a new user.
type CreateUserParams struct {
	Username     string
	PasswordHash string
	FullName     string
	RoleID       int64
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

const createUser = `INSERT INTO users (username, password_hash, full_name, role_id, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?) RETURNING id`

// CreateUser inserts a user and returns it with its role name.
func (q *Queries) CreateUser(ctx context.Context, arg CreateUserParams) (User, error) {
	var id int64
	err := q.db.QueryRowContext(ctx, createUser,
		arg.Username,
		arg.PasswordHash,
		arg.FullName,
		arg.RoleID,
		arg.CreatedAt,
		arg.UpdatedAt,
	).Scan(&id)
	if err != nil {
		return User{}, err
	}
	return q.GetUserByID(ctx, id)
}

const getUserByID = `SELECT ` + userColumns + userFrom + ` WHERE u.id = ?`

// GetUserByID fetches a user by ID.
func (q *Queries) GetUserByID(ctx context.Context, id int64) (User, error) {
	return scanUser(q.db.QueryRowContext(ctx, getUserByID, id))
}

const getUserByUsername = `SELECT ` + userColumns + userFrom + ` WHERE u.username = ?`

// GetUserByUsername fetches a user by username.
func (q *Queries) GetUserByUsername(ctx context.Context, username string) (User, error) {
	return scanUser(q.db.QueryRowContext(ctx, getUserByUsername, username))
}

// GetUserByUsernameAndRoleParams selects a user holding a specific role.
type GetUserByUsernameAndRoleParams struct {
	Username string
	RoleID   int64
}

const getUserByUsernameAndRole = `SELECT ` + userColumns + userFrom + ` WHERE u.username = ? AND u.role_id = ?`

// GetUserByUsernameAndRole fetches a user only if it has the given role.
func (q *Queries) GetUserByUsernameAndRole(ctx context.Context, arg GetUserByUsernameAndRoleParams) (User, error) {
	return scanUser(q.db.QueryRowContext(ctx, getUserByUsernameAndRole, arg.Username, arg.RoleID))
}

const listUsers = `SELECT ` + userColumns + userFrom + ` ORDER BY u.username`

// ListUsers returns all users ordered by username.
func (q *Queries) ListUsers(ctx context.Context) ([]User, error) {
	rows, err := q.db.QueryContext(ctx, listUsers)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var items []User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, u)
	}
	return items, rows.Err()
}

const countUsers = `SELECT COUNT(*) FROM users`

// CountUsers returns the number of users.
func (q *Queries) CountUsers(ctx context.Context) (int64, error) {
	var n int64
	err := q.db.QueryRowContext(ctx, countUsers).Scan(&n)
	return n, err
}

// UpdateUserParams holds the editable profile fields of a user.
type UpdateUserParams struct {
	Username  string
	FullName  string
	RoleID    int64
	UpdatedAt time.Time
	ID        int64
}

const updateUser = `UPDATE users SET username = ?, full_name = ?, role_id = ?, updated_at = ? WHERE id = ?`

// UpdateUser replaces a user's username, full name and role. It returns
// sql.ErrNoRows if no row matched.
func (q *Queries) UpdateUser(ctx context.Context, arg UpdateUserParams) error {
	res, err := q.db.ExecContext(ctx, updateUser, arg.Username, arg.FullName, arg.RoleID, arg.UpdatedAt, arg.ID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// UpdateUserPasswordParams holds a new password hash.
type UpdateUserPasswordParams struct {
	PasswordHash string
	UpdatedAt    time.Time
	ID           int64
}

const updateUserPassword = `UPDATE users SET password_hash = ?, updated_at = ? WHERE id = ?`

// UpdateUserPassword replaces a user's password hash.
func (q *Queries) UpdateUserPassword(ctx context.Context, arg UpdateUserPasswordParams) error {
	_, err := q.db.ExecContext(ctx, updateUserPassword, arg.PasswordHash, arg.UpdatedAt, arg.ID)
	return err
}

// UpdateUserLastLoginParams records a login time.
type UpdateUserLastLoginParams struct {
	LastLoginAt sql.NullTime
	ID          int64
}

const updateUserLastLogin = `UPDATE users SET last_login_at = ? WHERE id = ?`

// UpdateUserLastLogin records the time of a successful login.
func (q *Queries) UpdateUserLastLogin(ctx context.Context, arg UpdateUserLastLoginParams) error {
	_, err := q.db.ExecContext(ctx, updateUserLastLogin, arg.LastLoginAt, arg.ID)
	return err
}

const deleteUser = `DELETE FROM users WHERE id = ?`

// DeleteUser removes a user. It returns sql.ErrNoRows if no row matched.
func (q *Queries) DeleteUser(ctx context.Context, id int64) error {
	res, err := q.db.ExecContext(ctx, deleteUser, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}
