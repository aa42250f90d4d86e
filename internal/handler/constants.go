// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package handler

// Route pattern constants for chi router registration.
const (
	// RouteRoot is the root path.
	RouteRoot = "/"
	// RouteParamID is the ID parameter pattern.
	RouteParamID = "/{id}"

	// RouteLogin is the login route.
	RouteLogin = "/login"
	// RouteLoginCheck answers whether a set of field values may be submitted.
	RouteLoginCheck = "/login/check"
	// RouteLogout is the logout route.
	RouteLogout = "/logout"

	// RouteDashboard is the generic dashboard.
	RouteDashboard = "/dashboard"
	// RouteAdmin is the admin dashboard.
	RouteAdmin = "/admin"
	// RouteCashier is the cashier dashboard.
	RouteCashier = "/cashier"
	// RouteWaiter is the waiter dashboard.
	RouteWaiter = "/waiter"

	// RouteUsers is the users admin route, mounted under RouteAdmin.
	RouteUsers = "/users"
	// RouteSuffixEdit is the suffix for edit routes.
	RouteSuffixEdit = "/edit"
	// RouteSuffixDelete is the suffix for delete routes.
	RouteSuffixDelete = "/delete"

	// RouteHealth is the health check route.
	RouteHealth = "/health"
)

// Full paths used for redirects.
const (
	redirectLogin      = RouteLogin
	redirectAdminUsers = RouteAdmin + RouteUsers
)

// Flash message types understood by the flash partial.
const (
	flashTypeSuccess = "success"
	flashTypeError   = "error"
	flashTypeInfo    = "info"
)

// recentEventsLimit is how many audit events the admin dashboard shows.
const recentEventsLimit = 20
