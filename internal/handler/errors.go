// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package handler

import (
	"net/http"

	"github.com/olegiv/gatekeeper-go/internal/i18n"
	"github.com/olegiv/gatekeeper-go/internal/middleware"
	"github.com/olegiv/gatekeeper-go/internal/model"
	"github.com/olegiv/gatekeeper-go/internal/render"
)

// ErrorPageData is the error template data.
type ErrorPageData struct {
	Status  int
	Message string
}

// NotFound returns a handler rendering the localized 404 page.
func NotFound(renderer *render.Renderer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		lang := middleware.GetLang(r)
		msg := i18n.T(lang, "error.not_found")
		renderPage(w, r, renderer, http.StatusNotFound, "errors/error", render.TemplateData{
			Title: msg,
			Lang:  lang,
			User:  middleware.GetUser(r),
			Data:  ErrorPageData{Status: http.StatusNotFound, Message: msg},
		})
	}
}

// Root redirects / to the user's dashboard, or to the login page.
func Root(w http.ResponseWriter, r *http.Request) {
	if user := middleware.GetUser(r); user != nil {
		http.Redirect(w, r, model.DashboardPath(user.RoleName), http.StatusSeeOther)
		return
	}
	http.Redirect(w, r, redirectLogin, http.StatusSeeOther)
}
