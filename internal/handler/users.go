// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/olegiv/gatekeeper-go/internal/i18n"
	"github.com/olegiv/gatekeeper-go/internal/middleware"
	"github.com/olegiv/gatekeeper-go/internal/model"
	"github.com/olegiv/gatekeeper-go/internal/render"
	"github.com/olegiv/gatekeeper-go/internal/service"
	"github.com/olegiv/gatekeeper-go/internal/store"
)

// UsersHandler handles user management routes.
type UsersHandler struct {
	users    *service.UserService
	events   *service.EventService
	renderer *render.Renderer
}

// NewUsersHandler creates a new UsersHandler.
func NewUsersHandler(users *service.UserService, events *service.EventService, renderer *render.Renderer) *UsersHandler {
	return &UsersHandler{
		users:    users,
		events:   events,
		renderer: renderer,
	}
}

// UserFormValues holds the re-displayable fields of the create form.
type UserFormValues struct {
	Username string
	FullName string
	Role     string
}

// UsersListData is the users template data.
type UsersListData struct {
	Users         []store.User
	Roles         []store.Role
	CurrentUserID int64
	Form          UserFormValues
}

// userErrorKeys maps service errors to translation keys.
var userErrorKeys = map[error]string{
	service.ErrFieldsRequired:   "users.all_required",
	service.ErrUnknownRole:      "users.all_required",
	service.ErrPasswordMismatch: "users.password_mismatch",
	service.ErrUsernameTaken:    "users.username_taken",
	service.ErrCannotDeleteSelf: "users.cannot_delete_self",
	service.ErrUserNotFound:     "users.not_found",

	service.ErrCannotChangeOwnRole: "users.cannot_change_own_role",
}

// userErrorKey returns the translation key for a known service error.
func userErrorKey(err error) (string, bool) {
	for target, key := range userErrorKeys {
		if errors.Is(err, target) {
			return key, true
		}
	}
	return "", false
}

// List handles GET /admin/users.
func (h *UsersHandler) List(w http.ResponseWriter, r *http.Request) {
	h.renderList(w, r, http.StatusOK, UserFormValues{}, "")
}

func (h *UsersHandler) renderList(w http.ResponseWriter, r *http.Request, status int, form UserFormValues, errMsg string) {
	ctx := r.Context()
	lang := middleware.GetLang(r)

	users, err := h.users.List(ctx)
	if err != nil {
		logAndInternalError(w, r, "failed to list users", "error", err)
		return
	}
	roles, err := h.users.Roles(ctx)
	if err != nil {
		logAndInternalError(w, r, "failed to load roles", "error", err)
		return
	}

	data := render.TemplateData{
		Title: i18n.T(lang, "users.title"),
		Lang:  lang,
		User:  middleware.GetUser(r),
		Data: UsersListData{
			Users:         users,
			Roles:         roles,
			CurrentUserID: middleware.GetUserID(r),
			Form:          form,
		},
	}
	if errMsg != "" {
		data.Flash = errMsg
		data.FlashType = flashTypeError
	}

	renderPage(w, r, h.renderer, status, "admin/users", data)
}

// Create handles POST /admin/users. On a validation error the form is
// re-rendered with everything but the passwords preserved.
func (h *UsersHandler) Create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	lang := middleware.GetLang(r)

	if err := r.ParseForm(); err != nil {
		flashError(w, r, h.renderer, redirectAdminUsers, i18n.T(lang, "auth.invalid_form_data"))
		return
	}

	form := UserFormValues{
		Username: strings.TrimSpace(r.FormValue("username")),
		FullName: strings.TrimSpace(r.FormValue("full_name")),
		Role:     r.FormValue("role"),
	}

	var roleID int64
	role, err := h.users.RoleByName(ctx, form.Role)
	switch {
	case err == nil:
		roleID = role.ID
	case !errors.Is(err, service.ErrUnknownRole):
		logAndInternalError(w, r, "failed to load role", "error", err, "role", form.Role)
		return
	}

	user, err := h.users.Create(ctx, service.CreateUserInput{
		Username:        form.Username,
		FullName:        form.FullName,
		Password:        r.FormValue("password"),
		ConfirmPassword: r.FormValue("confirm_password"),
		RoleID:          roleID,
	})
	if err != nil {
		if key, ok := userErrorKey(err); ok {
			h.renderList(w, r, http.StatusUnprocessableEntity, form, i18n.T(lang, key))
			return
		}
		logAndInternalError(w, r, "failed to create user", "error", err)
		return
	}

	slog.Info("user created", "user_id", user.ID, "username", user.Username, "role", form.Role, "created_by", middleware.GetUserID(r))
	_ = h.events.LogUserEvent(ctx, model.EventLevelInfo, "User created", middleware.GetUserIDPtr(r),
		service.RequestInfo{IP: middleware.ClientIP(r), UserAgent: r.UserAgent()},
		map[string]any{"new_user_id": user.ID, "username": user.Username, "role": form.Role})

	flashSuccess(w, r, h.renderer, redirectAdminUsers, i18n.T(lang, "users.created"))
}

// userIDParam parses the {id} route parameter.
func userIDParam(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// UserEditData is the edit-user template data.
type UserEditData struct {
	ID     int64
	IsSelf bool
	Roles  []store.Role
	Form   UserFormValues
}

// Edit handles GET /admin/users/{id}/edit.
func (h *UsersHandler) Edit(w http.ResponseWriter, r *http.Request) {
	lang := middleware.GetLang(r)

	id, ok := userIDParam(r)
	if !ok {
		flashError(w, r, h.renderer, redirectAdminUsers, i18n.T(lang, "users.not_found"))
		return
	}

	user, err := h.users.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, service.ErrUserNotFound) {
			flashError(w, r, h.renderer, redirectAdminUsers, i18n.T(lang, "users.not_found"))
			return
		}
		logAndInternalError(w, r, "failed to load user", "error", err, "user_id", id)
		return
	}

	h.renderEdit(w, r, http.StatusOK, id, UserFormValues{
		Username: user.Username,
		FullName: user.FullName,
		Role:     user.RoleName,
	}, "")
}

func (h *UsersHandler) renderEdit(w http.ResponseWriter, r *http.Request, status int, id int64, form UserFormValues, errMsg string) {
	lang := middleware.GetLang(r)

	roles, err := h.users.Roles(r.Context())
	if err != nil {
		logAndInternalError(w, r, "failed to load roles", "error", err)
		return
	}

	data := render.TemplateData{
		Title: i18n.T(lang, "users.edit"),
		Lang:  lang,
		User:  middleware.GetUser(r),
		Data: UserEditData{
			ID:     id,
			IsSelf: id == middleware.GetUserID(r),
			Roles:  roles,
			Form:   form,
		},
	}
	if errMsg != "" {
		data.Flash = errMsg
		data.FlashType = flashTypeError
	}

	renderPage(w, r, h.renderer, status, "admin/user_edit", data)
}

// Update handles POST /admin/users/{id}/edit. A blank password keeps the
// current one.
func (h *UsersHandler) Update(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	lang := middleware.GetLang(r)

	id, ok := userIDParam(r)
	if !ok {
		flashError(w, r, h.renderer, redirectAdminUsers, i18n.T(lang, "users.not_found"))
		return
	}
	if err := r.ParseForm(); err != nil {
		flashError(w, r, h.renderer, redirectAdminUsers, i18n.T(lang, "auth.invalid_form_data"))
		return
	}

	form := UserFormValues{
		Username: strings.TrimSpace(r.FormValue("username")),
		FullName: strings.TrimSpace(r.FormValue("full_name")),
		Role:     r.FormValue("role"),
	}

	var roleID int64
	role, err := h.users.RoleByName(ctx, form.Role)
	switch {
	case err == nil:
		roleID = role.ID
	case !errors.Is(err, service.ErrUnknownRole):
		logAndInternalError(w, r, "failed to load role", "error", err, "role", form.Role)
		return
	}

	password := r.FormValue("password")
	actorID := middleware.GetUserID(r)
	user, err := h.users.Update(ctx, actorID, service.UpdateUserInput{
		ID:              id,
		Username:        form.Username,
		FullName:        form.FullName,
		Password:        password,
		ConfirmPassword: r.FormValue("confirm_password"),
		RoleID:          roleID,
	})
	if err != nil {
		if errors.Is(err, service.ErrUserNotFound) {
			flashError(w, r, h.renderer, redirectAdminUsers, i18n.T(lang, "users.not_found"))
			return
		}
		if key, ok := userErrorKey(err); ok {
			h.renderEdit(w, r, http.StatusUnprocessableEntity, id, form, i18n.T(lang, key))
			return
		}
		logAndInternalError(w, r, "failed to update user", "error", err, "user_id", id)
		return
	}

	slog.Info("user updated", "user_id", user.ID, "username", user.Username, "role", user.RoleName, "updated_by", actorID)
	_ = h.events.LogUserEvent(ctx, model.EventLevelInfo, "User updated", &actorID,
		service.RequestInfo{IP: middleware.ClientIP(r), UserAgent: r.UserAgent()},
		map[string]any{"updated_user_id": user.ID, "username": user.Username, "role": user.RoleName, "password_changed": password != ""})

	flashSuccess(w, r, h.renderer, redirectAdminUsers, i18n.T(lang, "users.updated"))
}

// Delete handles POST /admin/users/{id}/delete.
func (h *UsersHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	lang := middleware.GetLang(r)

	id, ok := userIDParam(r)
	if !ok {
		flashError(w, r, h.renderer, redirectAdminUsers, i18n.T(lang, "users.not_found"))
		return
	}

	actorID := middleware.GetUserID(r)
	if err := h.users.Delete(ctx, actorID, id); err != nil {
		if key, ok := userErrorKey(err); ok {
			flashError(w, r, h.renderer, redirectAdminUsers, i18n.T(lang, key))
			return
		}
		logAndInternalError(w, r, "failed to delete user", "error", err, "user_id", id)
		return
	}

	slog.Info("user deleted", "user_id", id, "deleted_by", actorID)
	_ = h.events.LogUserEvent(ctx, model.EventLevelInfo, "User deleted", &actorID,
		service.RequestInfo{IP: middleware.ClientIP(r), UserAgent: r.UserAgent()},
		map[string]any{"deleted_user_id": id})

	flashSuccess(w, r, h.renderer, redirectAdminUsers, i18n.T(lang, "users.deleted"))
}
