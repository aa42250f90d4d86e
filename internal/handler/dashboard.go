// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package handler

import (
	"log/slog"
	"net/http"

	"github.com/olegiv/gatekeeper-go/internal/i18n"
	"github.com/olegiv/gatekeeper-go/internal/middleware"
	"github.com/olegiv/gatekeeper-go/internal/model"
	"github.com/olegiv/gatekeeper-go/internal/render"
	"github.com/olegiv/gatekeeper-go/internal/service"
	"github.com/olegiv/gatekeeper-go/internal/store"
)

// DashboardHandler renders the role landing pages.
type DashboardHandler struct {
	renderer *render.Renderer
	events   *service.EventService
}

// NewDashboardHandler creates a new DashboardHandler.
func NewDashboardHandler(renderer *render.Renderer, events *service.EventService) *DashboardHandler {
	return &DashboardHandler{
		renderer: renderer,
		events:   events,
	}
}

// DashboardData is the dashboard template data.
type DashboardData struct {
	Events []store.Event
}

// Home handles GET /dashboard. Users with a known role are sent to their
// own dashboard.
func (h *DashboardHandler) Home(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r)
	if user != nil && model.IsKnownRole(user.RoleName) {
		http.Redirect(w, r, model.DashboardPath(user.RoleName), http.StatusSeeOther)
		return
	}
	h.render(w, r, "dashboard.title", DashboardData{})
}

// Admin handles GET /admin and lists the most recent audit events.
func (h *DashboardHandler) Admin(w http.ResponseWriter, r *http.Request) {
	events, err := h.events.Recent(r.Context(), recentEventsLimit)
	if err != nil {
		slog.Error("failed to load recent events", "error", err)
	}
	h.render(w, r, "dashboard.admin", DashboardData{Events: events})
}

// Cashier handles GET /cashier.
func (h *DashboardHandler) Cashier(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, "dashboard.cashier", DashboardData{})
}

// Waiter handles GET /waiter.
func (h *DashboardHandler) Waiter(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, "dashboard.waiter", DashboardData{})
}

func (h *DashboardHandler) render(w http.ResponseWriter, r *http.Request, titleKey string, data DashboardData) {
	lang := middleware.GetLang(r)
	renderPage(w, r, h.renderer, http.StatusOK, "dashboard/home", render.TemplateData{
		Title: i18n.T(lang, titleKey),
		Lang:  lang,
		User:  middleware.GetUser(r),
		Data:  data,
	})
}
