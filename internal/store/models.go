// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package store

import (
	"database/sql"
	"time"
)

// Role is a login role such as admin, cashier or waiter.
type Role struct {
	ID   int64
	Name string
}

// User is an account together with its role name.
type User struct {
	ID           int64
	Username     string
	PasswordHash string
	FullName     string
	RoleID       int64
	RoleName     string
	LastLoginAt  sql.NullTime
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Event is an audit log entry.
type Event struct {
	ID        int64
	Level     string
	Category  string
	Message   string
	UserID    sql.NullInt64
	Metadata  string
	CreatedAt time.Time
}
