// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package model defines the roles and event vocabulary shared by the
// handlers, middleware and store.
package model

// Login roles.
const (
	RoleAdmin   = "admin"
	RoleCashier = "cashier"
	RoleWaiter  = "waiter"
)

// Roles lists the seeded roles in display order.
var Roles = []string{RoleAdmin, RoleCashier, RoleWaiter}

// IsKnownRole reports whether role is one of Roles.
func IsKnownRole(role string) bool {
	for _, r := range Roles {
		if r == role {
			return true
		}
	}
	return false
}

// DashboardPath returns the landing page for a role. Unknown roles land on
// the generic dashboard.
func DashboardPath(role string) string {
	switch role {
	case RoleAdmin:
		return "/admin"
	case RoleCashier:
		return "/cashier"
	case RoleWaiter:
		return "/waiter"
	default:
		return "/dashboard"
	}
}
