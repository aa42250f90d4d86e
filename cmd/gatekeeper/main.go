// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"

	"github.com/olegiv/gatekeeper-go/internal/config"
	"github.com/olegiv/gatekeeper-go/internal/handler"
	"github.com/olegiv/gatekeeper-go/internal/i18n"
	"github.com/olegiv/gatekeeper-go/internal/logging"
	"github.com/olegiv/gatekeeper-go/internal/middleware"
	"github.com/olegiv/gatekeeper-go/internal/model"
	"github.com/olegiv/gatekeeper-go/internal/render"
	"github.com/olegiv/gatekeeper-go/internal/scheduler"
	"github.com/olegiv/gatekeeper-go/internal/service"
	"github.com/olegiv/gatekeeper-go/internal/session"
	"github.com/olegiv/gatekeeper-go/internal/store"
	"github.com/olegiv/gatekeeper-go/internal/version"
	"github.com/olegiv/gatekeeper-go/web"
)

// Version information - injected at build time via ldflags
var (
	appVersion   = "dev"
	appGitCommit = "unknown"
	appBuildTime = "unknown"
)

func main() {
	// Parse CLI flags
	showVersion := flag.Bool("version", false, "Show version information")
	flag.BoolVar(showVersion, "v", false, "Show version information (shorthand)")
	showHelp := flag.Bool("help", false, "Show help information")
	flag.BoolVar(showHelp, "h", false, "Show help information (shorthand)")
	seed := flag.Bool("seed", false, "Create the default admin user on an empty database")

	flag.Usage = func() {
		_, _ = fmt.Fprintf(os.Stderr, "gatekeeper - role-based login server\n\n")
		_, _ = fmt.Fprintf(os.Stderr, "Usage: %s [options]\n\n", os.Args[0])
		_, _ = fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		_, _ = fmt.Fprintf(os.Stderr, "\nEnvironment Variables:\n")
		_, _ = fmt.Fprintf(os.Stderr, "  GATEKEEPER_SESSION_SECRET          Session encryption key (required, min 32 bytes)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  GATEKEEPER_DB_PATH                 SQLite database path (default: ./data/gatekeeper.db)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  GATEKEEPER_SERVER_PORT             Server port (default: 8080)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  GATEKEEPER_ENV                     Environment: development|production (default: development)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  GATEKEEPER_WASM_DIR                Directory with gate.wasm and wasm_exec.js (optional)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  GATEKEEPER_TRUST_PROXY             Take client IPs from proxy headers (default: false)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  GATEKEEPER_REDIS_URL               Redis URL for shared login lockout state (optional)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  GATEKEEPER_MAX_FAILED_ATTEMPTS     Failed logins before lockout (default: 5)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  GATEKEEPER_EVENT_RETENTION_DAYS    Audit log retention (default: 90)\n")
	}

	flag.Parse()

	// Handle -h/-help flag
	if *showHelp {
		flag.Usage()
		os.Exit(0)
	}

	versionInfo := version.Info{
		Version:   appVersion,
		GitCommit: appGitCommit,
		BuildTime: appBuildTime,
	}

	// Handle -v/-version flag
	if *showVersion {
		_, _ = fmt.Println(versionInfo.String())
		os.Exit(0)
	}

	if err := run(versionInfo, *seed); err != nil {
		slog.Error("application error", "error", err)
		os.Exit(1)
	}
}

func run(versionInfo version.Info, seed bool) error {
	// Load .env file if present (development)
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := slog.New(logging.NewBaseHandler(os.Stdout, cfg.SlogLevel(), cfg.IsDevelopment()))
	slog.SetDefault(logger)

	if err := i18n.Init(logger); err != nil {
		return fmt.Errorf("initializing i18n: %w", err)
	}
	slog.Info("i18n system initialized", "languages", i18n.SupportedLanguages)

	// Ensure data directory exists
	if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0o750); err != nil {
		return fmt.Errorf("creating data directory: %w", err)
	}

	slog.Info("initializing database", "path", cfg.DBPath)
	db, err := store.NewDB(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("initializing database: %w", err)
	}
	defer func(db *sql.DB) {
		if err := db.Close(); err != nil {
			slog.Error("error closing database connection", "error", err)
		}
	}(db)

	slog.Info("running database migrations")
	if err := store.Migrate(db); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}

	// Upgrade logger to also write WARN and ERROR logs to the event log
	logger = slog.New(logging.NewEventLogHandler(logging.NewBaseHandler(os.Stdout, cfg.SlogLevel(), cfg.IsDevelopment()), db))
	slog.SetDefault(logger)
	slog.Info("event log integration enabled", "min_level", "warn")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if seed || cfg.DoSeed {
		if err := store.Seed(ctx, db); err != nil {
			return fmt.Errorf("seeding database: %w", err)
		}
	} else if err := store.SeedRoles(ctx, db); err != nil {
		return fmt.Errorf("seeding roles: %w", err)
	}
	slog.Info("database ready")

	sessionManager := session.New(db, cfg.IsDevelopment())

	users := service.NewUserService(db)
	events := service.NewEventService(db)

	loginProtection, closeAttempts, err := newLoginProtection(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeAttempts()

	templatesFS, err := fs.Sub(web.Templates, "templates")
	if err != nil {
		return fmt.Errorf("getting templates fs: %w", err)
	}
	renderer, err := render.New(render.Config{
		TemplatesFS:    templatesFS,
		SessionManager: sessionManager,
		IsDev:          cfg.IsDevelopment(),
		Version:        versionInfo.Version,
	})
	if err != nil {
		return fmt.Errorf("initializing renderer: %w", err)
	}

	authHandler := handler.NewAuthHandler(users, events, renderer, sessionManager, loginProtection)
	dashboardHandler := handler.NewDashboardHandler(renderer, events)
	usersHandler := handler.NewUsersHandler(users, events, renderer)
	healthHandler := handler.NewHealthHandler(db, versionInfo.Version)
	if check, ok := loginProtectionHealth(loginProtection); ok {
		healthHandler.AddCheck("redis", check)
	}

	r := chi.NewRouter()

	// Middleware stack
	r.Use(chimw.RequestID)
	if cfg.TrustProxy {
		r.Use(chimw.RealIP)
	}
	r.Use(chimw.Logger)
	r.Use(chimw.Recoverer)
	r.Use(chimw.Compress(5))
	r.Use(chimw.GetHead)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(middleware.SecurityHeaders(middleware.DefaultSecurityHeadersConfig(cfg.IsDevelopment())))
	r.Use(middleware.RequestPath)

	r.Get(handler.RouteHealth, healthHandler.Health)

	staticHandler, err := web.StaticHandler()
	if err != nil {
		return err
	}
	if cfg.WASMDir != "" {
		r.Handle("/static/wasm/*", http.StripPrefix("/static/wasm/", http.FileServer(http.Dir(cfg.WASMDir))))
		slog.Info("serving login gate wasm", "dir", cfg.WASMDir)
	}
	r.Handle("/static/*", http.StripPrefix("/static/", staticHandler))

	csrfMiddleware := middleware.CSRF(middleware.DefaultCSRFConfig([]byte(cfg.SessionSecret), cfg.IsDevelopment(), cfg.ServerPort))

	r.Group(func(r chi.Router) {
		r.Use(sessionManager.LoadAndSave)
		r.Use(csrfMiddleware)
		r.Use(middleware.Language(sessionManager))

		r.NotFound(handler.NotFound(renderer))

		// Public routes
		r.Group(func(r chi.Router) {
			r.Use(middleware.OptionalLoadUser(sessionManager, db))

			r.Get(handler.RouteRoot, handler.Root)
			r.Get(handler.RouteLogin, authHandler.LoginForm)
			r.With(loginProtection.Middleware()).Post(handler.RouteLogin, authHandler.Login)
			r.Post(handler.RouteLoginCheck, authHandler.Check)
		})

		// Authenticated routes
		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(sessionManager))
			r.Use(middleware.LoadUser(sessionManager, db))

			r.Post(handler.RouteLogout, authHandler.Logout)
			r.Get(handler.RouteDashboard, dashboardHandler.Home)
			r.With(middleware.RequireRole(sessionManager, events, model.RoleCashier)).Get(handler.RouteCashier, dashboardHandler.Cashier)
			r.With(middleware.RequireRole(sessionManager, events, model.RoleWaiter)).Get(handler.RouteWaiter, dashboardHandler.Waiter)

			r.Route(handler.RouteAdmin, func(r chi.Router) {
				r.Use(middleware.RequireAdmin(sessionManager, events))

				r.Get(handler.RouteRoot, dashboardHandler.Admin)
				r.Get(handler.RouteUsers, usersHandler.List)
				r.Post(handler.RouteUsers, usersHandler.Create)
				r.Get(handler.RouteUsers+handler.RouteParamID+handler.RouteSuffixEdit, usersHandler.Edit)
				r.Post(handler.RouteUsers+handler.RouteParamID+handler.RouteSuffixEdit, usersHandler.Update)
				r.Post(handler.RouteUsers+handler.RouteParamID+handler.RouteSuffixDelete, usersHandler.Delete)
			})
		})
	})

	sched := scheduler.New(events, scheduler.Config{Retention: cfg.EventRetention()}, logger)
	if err := sched.Start(); err != nil {
		return fmt.Errorf("starting scheduler: %w", err)
	}
	defer sched.Stop()

	srv := &http.Server{
		Addr:              cfg.ServerAddr(),
		Handler:           r,
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}

	serveErr := make(chan error, 1)
	go func() {
		slog.Info("starting server", "addr", cfg.ServerAddr(), "env", cfg.Env, "version", versionInfo.Version)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("server: %w", err)
		}
	case <-ctx.Done():
	}

	slog.Info("shutting down server...")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	slog.Info("server stopped")
	return nil
}

// newLoginProtection builds login protection backed by Redis when
// configured, else by memory. The returned func releases the store.
func newLoginProtection(ctx context.Context, cfg *config.Config) (*middleware.LoginProtection, func(), error) {
	lpCfg := middleware.DefaultLoginProtectionConfig()
	lpCfg.MaxFailedAttempts = cfg.MaxFailedAttempts
	lpCfg.LockoutDuration = cfg.LockoutDuration

	if !cfg.UseRedisLockout() {
		lp := middleware.NewLoginProtection(lpCfg, nil)
		lp.StartCleanup(ctx, time.Minute)
		slog.Info("login protection initialized", "backend", "memory",
			"max_failed_attempts", lpCfg.MaxFailedAttempts, "lockout_duration", lpCfg.LockoutDuration.String())
		return lp, func() {}, nil
	}

	client, err := middleware.NewRedisClient(cfg.RedisURL)
	if err != nil {
		return nil, nil, fmt.Errorf("connecting to redis: %w", err)
	}
	attempts := middleware.NewRedisAttemptStore(client, cfg.RedisPrefix)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := attempts.Health(pingCtx); err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("pinging redis: %w", err)
	}

	lp := middleware.NewLoginProtection(lpCfg, attempts)
	lp.StartCleanup(ctx, time.Minute)
	slog.Info("login protection initialized", "backend", "redis",
		"max_failed_attempts", lpCfg.MaxFailedAttempts, "lockout_duration", lpCfg.LockoutDuration.String())

	return lp, func() {
		if err := client.Close(); err != nil {
			slog.Error("error closing redis client", "error", err)
		}
	}, nil
}

// loginProtectionHealth returns a health check for the lockout store when
// it has one.
func loginProtectionHealth(lp *middleware.LoginProtection) (handler.Pinger, bool) {
	h, ok := lp.Attempts().(interface {
		Health(ctx context.Context) error
	})
	if !ok {
		return nil, false
	}
	return handler.PingerFunc(h.Health), true
}
