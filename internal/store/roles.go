// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package store

import "context"

const createRole = `INSERT INTO roles (name) VALUES (?) RETURNING id, name`

// CreateRole inserts a role.
func (q *Queries) CreateRole(ctx context.Context, name string) (Role, error) {
	var r Role
	err := q.db.QueryRowContext(ctx, createRole, name).Scan(&r.ID, &r.Name)
	return r, err
}

const getRoleByID = `SELECT id, name FROM roles WHERE id = ?`

// GetRoleByID fetches a role by ID.
func (q *Queries) GetRoleByID(ctx context.Context, id int64) (Role, error) {
	var r Role
	err := q.db.QueryRowContext(ctx, getRoleByID, id).Scan(&r.ID, &r.Name)
	return r, err
}

const getRoleByName = `SELECT id, name FROM roles WHERE name = ?`

// GetRoleByName fetches a role by name.
func (q *Queries) GetRoleByName(ctx context.Context, name string) (Role, error) {
	var r Role
	err := q.db.QueryRowContext(ctx, getRoleByName, name).Scan(&r.ID, &r.Name)
	return r, err
}

const listRoles = `SELECT id, name FROM roles ORDER BY id`

// ListRoles returns all roles in creation order.
func (q *Queries) ListRoles(ctx context.Context) ([]Role, error) {
	rows, err := q.db.QueryContext(ctx, listRoles)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var items []Role
	for rows.Next() {
		var r Role
		if err := rows.Scan(&r.ID, &r.Name); err != nil {
			return nil, err
		}
		items = append(items, r)
	}
	return items, rows.Err()
}
