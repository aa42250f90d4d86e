// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package handler

import (
	"database/sql"
	"io"
	"io/fs"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/alexedwards/scs/v2"
	"github.com/go-chi/chi/v5"

	"github.com/olegiv/gatekeeper-go/internal/i18n"
	"github.com/olegiv/gatekeeper-go/internal/middleware"
	"github.com/olegiv/gatekeeper-go/internal/model"
	"github.com/olegiv/gatekeeper-go/internal/render"
	"github.com/olegiv/gatekeeper-go/internal/service"
	"github.com/olegiv/gatekeeper-go/internal/testutil"
	"github.com/olegiv/gatekeeper-go/web"
)

// testEnv is a running server wired like the real one, minus CSRF.
type testEnv struct {
	db     *sql.DB
	sm     *scs.SessionManager
	users  *service.UserService
	events *service.EventService
	lp     *middleware.LoginProtection
	server *httptest.Server
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	return newTestEnvWithPolicy(t, middleware.LockoutPolicy{
		MaxFailedAttempts: 5,
		LockoutDuration:   15 * time.Minute,
		AttemptWindow:     15 * time.Minute,
	})
}

func newTestEnvWithPolicy(t *testing.T, policy middleware.LockoutPolicy) *testEnv {
	t.Helper()

	if err := i18n.Init(nil); err != nil {
		t.Fatalf("i18n.Init: %v", err)
	}

	db := testutil.TestDB(t)
	sm := testSessionManager(t)

	templatesFS, err := fs.Sub(web.Templates, "templates")
	if err != nil {
		t.Fatalf("fs.Sub: %v", err)
	}
	renderer, err := render.New(render.Config{
		TemplatesFS:    templatesFS,
		SessionManager: sm,
		IsDev:          true,
		Version:        "test",
	})
	if err != nil {
		t.Fatalf("render.New: %v", err)
	}

	env := &testEnv{
		db:     db,
		sm:     sm,
		users:  service.NewUserService(db),
		events: service.NewEventService(db),
		lp: middleware.NewLoginProtection(middleware.LoginProtectionConfig{
			IPRateLimit:   1000,
			IPBurst:       1000,
			LockoutPolicy: policy,
		}, nil),
	}

	authHandler := NewAuthHandler(env.users, env.events, renderer, sm, env.lp)
	dashboardHandler := NewDashboardHandler(renderer, env.events)
	usersHandler := NewUsersHandler(env.users, env.events, renderer)
	healthHandler := NewHealthHandler(db, "test")

	r := chi.NewRouter()
	r.Use(sm.LoadAndSave)
	r.Use(middleware.Language(sm))
	r.NotFound(NotFound(renderer))

	r.Get(RouteHealth, healthHandler.Health)

	r.Group(func(r chi.Router) {
		r.Use(middleware.OptionalLoadUser(sm, db))
		r.Get(RouteRoot, Root)
		r.Get(RouteLogin, authHandler.LoginForm)
		r.Post(RouteLogin, authHandler.Login)
		r.Post(RouteLoginCheck, authHandler.Check)
	})

	r.Group(func(r chi.Router) {
		r.Use(middleware.Auth(sm))
		r.Use(middleware.LoadUser(sm, db))

		r.Post(RouteLogout, authHandler.Logout)
		r.Get(RouteDashboard, dashboardHandler.Home)
		r.With(middleware.RequireRole(sm, env.events, model.RoleCashier)).Get(RouteCashier, dashboardHandler.Cashier)
		r.With(middleware.RequireRole(sm, env.events, model.RoleWaiter)).Get(RouteWaiter, dashboardHandler.Waiter)

		r.Route(RouteAdmin, func(r chi.Router) {
			r.Use(middleware.RequireAdmin(sm, env.events))
			r.Get(RouteRoot, dashboardHandler.Admin)
			r.Get(RouteUsers, usersHandler.List)
			r.Post(RouteUsers, usersHandler.Create)
			r.Get(RouteUsers+RouteParamID+RouteSuffixEdit, usersHandler.Edit)
			r.Post(RouteUsers+RouteParamID+RouteSuffixEdit, usersHandler.Update)
			r.Post(RouteUsers+RouteParamID+RouteSuffixDelete, usersHandler.Delete)
		})
	})

	env.server = httptest.NewServer(r)
	t.Cleanup(env.server.Close)

	return env
}

// testSessionManager creates a session manager for testing.
func testSessionManager(t *testing.T) *scs.SessionManager {
	t.Helper()
	sm := scs.New()
	sm.Lifetime = 24 * time.Hour
	return sm
}

// newClient returns a client with its own cookie jar that does not follow
// redirects.
func (e *testEnv) newClient(t *testing.T) *http.Client {
	t.Helper()
	jar, err := cookiejar.New(nil)
	if err != nil {
		t.Fatalf("cookiejar.New: %v", err)
	}
	return &http.Client{
		Jar: jar,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}

// testResponse is a fully read response.
type testResponse struct {
	Status   int
	Location string
	Header   http.Header
	Body     string
}

func (e *testEnv) do(t *testing.T, c *http.Client, method, path string, form url.Values) testResponse {
	t.Helper()

	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}
	req, err := http.NewRequest(method, e.server.URL+path, body)
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	req.Header.Set("Accept-Language", "en")

	resp, err := c.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	b, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("reading body: %v", err)
	}
	return testResponse{
		Status:   resp.StatusCode,
		Location: resp.Header.Get("Location"),
		Header:   resp.Header,
		Body:     string(b),
	}
}

func (e *testEnv) get(t *testing.T, c *http.Client, path string) testResponse {
	t.Helper()
	return e.do(t, c, http.MethodGet, path, nil)
}

func (e *testEnv) post(t *testing.T, c *http.Client, path string, form url.Values) testResponse {
	t.Helper()
	if form == nil {
		form = url.Values{}
	}
	return e.do(t, c, http.MethodPost, path, form)
}

func loginForm(username, password, role string) url.Values {
	return url.Values{
		"username": {username},
		"password": {password},
		"role":     {role},
	}
}

// login signs c in and fails the test unless it lands on the dashboard.
func (e *testEnv) login(t *testing.T, c *http.Client, username, password, role string) {
	t.Helper()
	resp := e.post(t, c, RouteLogin, loginForm(username, password, role))
	if resp.Status != http.StatusSeeOther {
		t.Fatalf("login %s/%s: status = %d; want %d", username, role, resp.Status, http.StatusSeeOther)
	}
	if want := model.DashboardPath(role); resp.Location != want {
		t.Fatalf("login %s/%s: Location = %q; want %q", username, role, resp.Location, want)
	}
}

// assertStatus checks if the response status code matches the expected value.
func assertStatus(t *testing.T, got, want int) {
	t.Helper()
	if got != want {
		t.Errorf("status = %d; want %d", got, want)
	}
}

func assertLocation(t *testing.T, resp testResponse, want string) {
	t.Helper()
	if resp.Location != want {
		t.Errorf("Location = %q; want %q", resp.Location, want)
	}
}

func assertContains(t *testing.T, body, want string) {
	t.Helper()
	if !strings.Contains(body, want) {
		t.Errorf("body does not contain %q", want)
	}
}

func assertNotContains(t *testing.T, body, unwanted string) {
	t.Helper()
	if strings.Contains(body, unwanted) {
		t.Errorf("body unexpectedly contains %q", unwanted)
	}
}
