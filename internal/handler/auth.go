// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package handler

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/alexedwards/scs/v2"
	"github.com/google/uuid"

	"github.com/olegiv/gatekeeper-go/internal/gatekeeper"
	"github.com/olegiv/gatekeeper-go/internal/i18n"
	"github.com/olegiv/gatekeeper-go/internal/middleware"
	"github.com/olegiv/gatekeeper-go/internal/model"
	"github.com/olegiv/gatekeeper-go/internal/render"
	"github.com/olegiv/gatekeeper-go/internal/service"
	"github.com/olegiv/gatekeeper-go/internal/session"
	"github.com/olegiv/gatekeeper-go/internal/store"
)

// attemptsWarningThreshold is the remaining-attempts count at which the
// login page starts warning about an upcoming lockout.
const attemptsWarningThreshold = 3

// AuthHandler handles authentication routes.
type AuthHandler struct {
	users           *service.UserService
	events          *service.EventService
	renderer        *render.Renderer
	sessionManager  *scs.SessionManager
	loginProtection *middleware.LoginProtection
}

// NewAuthHandler creates a new AuthHandler. lp may be nil to disable
// account lockout.
func NewAuthHandler(users *service.UserService, events *service.EventService, renderer *render.Renderer, sm *scs.SessionManager, lp *middleware.LoginProtection) *AuthHandler {
	return &AuthHandler{
		users:           users,
		events:          events,
		renderer:        renderer,
		sessionManager:  sm,
		loginProtection: lp,
	}
}

// LoginPageData is the login template data.
type LoginPageData struct {
	Username  string
	Role      string
	Roles     []store.Role
	CanSubmit bool
}

// LoginForm renders the login page. Authenticated users are sent to their
// dashboard.
func (h *AuthHandler) LoginForm(w http.ResponseWriter, r *http.Request) {
	if user := middleware.GetUser(r); user != nil {
		http.Redirect(w, r, model.DashboardPath(user.RoleName), http.StatusSeeOther)
		return
	}

	h.renderLogin(w, r, http.StatusOK, "", "", "")
}

// renderLogin renders the login page with the username and role preserved.
// The password is never echoed back, so the submit control starts out
// disabled until the browser gate sees a password.
func (h *AuthHandler) renderLogin(w http.ResponseWriter, r *http.Request, status int, username, role, errMsg string) {
	lang := middleware.GetLang(r)

	roles, err := h.users.Roles(r.Context())
	if err != nil {
		logAndInternalError(w, r, "failed to load roles", "error", err)
		return
	}

	data := render.TemplateData{
		Title: i18n.T(lang, "auth.login"),
		Lang:  lang,
		Data: LoginPageData{
			Username:  username,
			Role:      role,
			Roles:     roles,
			CanSubmit: gatekeeper.Evaluate(username, "", role),
		},
	}
	if errMsg != "" {
		data.Flash = errMsg
		data.FlashType = flashTypeError
	}

	renderPage(w, r, h.renderer, status, "auth/login", data)
}

// Login handles POST /login.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	lang := middleware.GetLang(r)

	if err := r.ParseForm(); err != nil {
		h.renderLogin(w, r, http.StatusBadRequest, "", "", i18n.T(lang, "auth.invalid_form_data"))
		return
	}

	username := r.FormValue("username")
	password := r.FormValue("password")
	roleName := r.FormValue("role")

	// The browser gate is advisory; apply the same rule here.
	if !gatekeeper.Evaluate(username, password, roleName) {
		h.renderLogin(w, r, http.StatusUnprocessableEntity, username, roleName, i18n.T(lang, "auth.incomplete"))
		return
	}

	reqInfo := service.RequestInfo{
		IP:        middleware.ClientIP(r),
		UserAgent: r.UserAgent(),
		AttemptID: uuid.NewString(),
	}

	if h.loginProtection != nil {
		if locked, remaining := h.loginProtection.IsAccountLocked(ctx, username); locked {
			slog.Info("login attempt on locked account", "username", username, "ip", reqInfo.IP, "remaining", remaining)
			_ = h.events.LogAuthEvent(ctx, model.EventLevelWarning, "Login attempt on locked account", nil, reqInfo,
				map[string]any{"username": username, "role": roleName})
			h.renderLogin(w, r, http.StatusTooManyRequests, username, roleName,
				i18n.T(lang, "auth.account_locked", formatDuration(remaining)))
			return
		}
	}

	role, err := h.users.RoleByName(ctx, roleName)
	if err != nil && !errors.Is(err, service.ErrUnknownRole) {
		logAndInternalError(w, r, "failed to load role", "error", err, "role", roleName)
		return
	}

	var user store.User
	if err == nil {
		user, err = h.users.Authenticate(ctx, username, password, role.ID)
	}
	if err != nil {
		if !errors.Is(err, service.ErrInvalidCredentials) && !errors.Is(err, service.ErrUnknownRole) {
			logAndInternalError(w, r, "failed to authenticate", "error", err)
			return
		}
		h.loginFailed(w, r, user, username, roleName, reqInfo)
		return
	}

	if h.loginProtection != nil {
		h.loginProtection.RecordSuccessfulLogin(ctx, username)
	}

	// Prevent session fixation
	if err := h.sessionManager.RenewToken(ctx); err != nil {
		logAndInternalError(w, r, "failed to renew session token", "error", err)
		return
	}
	h.sessionManager.Put(ctx, session.KeyUserID, user.ID)

	slog.Info("user logged in", "user_id", user.ID, "username", user.Username, "role", role.Name)
	_ = h.events.LogAuthEvent(ctx, model.EventLevelInfo, "User logged in", &user.ID, reqInfo,
		map[string]any{"role": role.Name})

	flashSuccess(w, r, h.renderer, model.DashboardPath(role.Name), i18n.T(lang, "auth.welcome_back", user.FullName))
}

// loginFailed records a failed attempt and re-renders the form. user is
// the zero User when no account matched the username and role.
func (h *AuthHandler) loginFailed(w http.ResponseWriter, r *http.Request, user store.User, username, roleName string, reqInfo service.RequestInfo) {
	ctx := r.Context()
	lang := middleware.GetLang(r)

	var userID *int64
	if user.ID != 0 {
		userID = &user.ID
	}

	slog.Info("failed login attempt", "username", username, "role", roleName, "ip", reqInfo.IP)
	_ = h.events.LogAuthEvent(ctx, model.EventLevelWarning, "Failed login attempt", userID, reqInfo,
		map[string]any{"username": username, "role": roleName})

	msg := i18n.T(lang, "auth.invalid_credentials")
	status := http.StatusUnauthorized

	if h.loginProtection != nil {
		locked, lockDuration := h.loginProtection.RecordFailedAttempt(ctx, username)
		if locked {
			_ = h.events.LogAuthEvent(ctx, model.EventLevelWarning, "Account locked after failed attempts", userID, reqInfo,
				map[string]any{"username": username, "duration": lockDuration.String()})
			msg = i18n.T(lang, "auth.too_many_attempts", formatDuration(lockDuration))
			status = http.StatusTooManyRequests
		} else if remaining := h.loginProtection.GetRemainingAttempts(ctx, username); remaining > 0 && remaining <= attemptsWarningThreshold {
			msg = i18n.T(lang, "auth.attempts_remaining", remaining)
		}
	}

	h.renderLogin(w, r, status, username, roleName, msg)
}

// CheckResponse is the body returned by Check.
type CheckResponse struct {
	CanSubmit bool `json:"can_submit"`
}

// Check handles POST /login/check. It reports whether the posted username,
// password and role would enable the submit control.
func (h *AuthHandler) Check(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeJSONError(w, http.StatusBadRequest, i18n.T(middleware.GetLang(r), "auth.invalid_form_data"))
		return
	}

	writeJSON(w, http.StatusOK, CheckResponse{
		CanSubmit: gatekeeper.Evaluate(r.FormValue("username"), r.FormValue("password"), r.FormValue("role")),
	})
}

// Logout handles POST /logout.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	// Get user ID for logging before destroying session
	userID := h.sessionManager.GetInt64(ctx, session.KeyUserID)
	if userID > 0 {
		_ = h.events.LogAuthEvent(ctx, model.EventLevelInfo, "User logged out", &userID,
			service.RequestInfo{IP: middleware.ClientIP(r), UserAgent: r.UserAgent()}, nil)
	}

	if err := h.sessionManager.Destroy(ctx); err != nil {
		slog.Error("session destroy error", "error", err)
	}

	slog.Info("user logged out", "user_id", userID)

	flashAndRedirect(w, r, h.renderer, redirectLogin, i18n.T(middleware.GetLang(r), "auth.logged_out"), flashTypeInfo)
}

// formatDuration formats a duration into a human-readable string.
func formatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%d seconds", int(d.Seconds()))
	}
	if d < time.Hour {
		mins := int(d.Minutes())
		if mins == 1 {
			return "1 minute"
		}
		return fmt.Sprintf("%d minutes", mins)
	}
	hours := int(d.Hours())
	if hours == 1 {
		return "1 hour"
	}
	return fmt.Sprintf("%d hours", hours)
}
