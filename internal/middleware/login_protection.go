// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package middleware

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/olegiv/gatekeeper-go/internal/i18n"
)

// maxLockout caps the exponential backoff.
const maxLockout = 24 * time.Hour

// LockoutPolicy controls when an account is locked and for how long.
type LockoutPolicy struct {
	// MaxFailedAttempts within AttemptWindow lock the account.
	MaxFailedAttempts int
	// LockoutDuration is the first lockout; each further lockout doubles it.
	LockoutDuration time.Duration
	// AttemptWindow is how long failures are counted.
	AttemptWindow time.Duration
}

// lockDuration returns the lock time after previous earlier lockouts.
func (p LockoutPolicy) lockDuration(previous int) time.Duration {
	d := p.LockoutDuration
	for i := 0; i < previous; i++ {
		d *= 2
		if d >= maxLockout {
			return maxLockout
		}
	}
	return d
}

// AttemptStore keeps per-account failure counters and lock state.
type AttemptStore interface {
	// LockedFor returns the remaining lock time, or 0 if not locked.
	LockedFor(ctx context.Context, key string) (time.Duration, error)
	// Failures returns the failures counted in the current window.
	Failures(ctx context.Context, key string) (int, error)
	// RecordFailure counts a failure and returns the lock duration if the
	// account is now locked, or 0.
	RecordFailure(ctx context.Context, key string, policy LockoutPolicy) (time.Duration, error)
	// Reset forgets all state for key.
	Reset(ctx context.Context, key string) error
}

// LoginProtection combines per-IP rate limiting with per-account lockout.
type LoginProtection struct {
	ipLimiters *limiterCache[string]
	attempts   AttemptStore
	policy     LockoutPolicy
}

// LoginProtectionConfig holds configuration for login protection.
type LoginProtectionConfig struct {
	// IPRateLimit is login posts per second per IP.
	IPRateLimit float64
	// IPBurst is the burst size for IP rate limiting.
	IPBurst int

	LockoutPolicy
}

// DefaultLoginProtectionConfig returns the defaults: one post every two
// seconds per IP with a burst of 5, and a 15 minute lock after 5 failures.
func DefaultLoginProtectionConfig() LoginProtectionConfig {
	return LoginProtectionConfig{
		IPRateLimit: 0.5,
		IPBurst:     5,
		LockoutPolicy: LockoutPolicy{
			MaxFailedAttempts: 5,
			LockoutDuration:   15 * time.Minute,
			AttemptWindow:     15 * time.Minute,
		},
	}
}

// NewLoginProtection creates login protection backed by attempts. A nil
// store means an in-memory store.
func NewLoginProtection(cfg LoginProtectionConfig, attempts AttemptStore) *LoginProtection {
	def := DefaultLoginProtectionConfig()
	if cfg.IPRateLimit <= 0 {
		cfg.IPRateLimit = def.IPRateLimit
	}
	if cfg.IPBurst <= 0 {
		cfg.IPBurst = def.IPBurst
	}
	if cfg.MaxFailedAttempts <= 0 {
		cfg.MaxFailedAttempts = def.MaxFailedAttempts
	}
	if cfg.LockoutDuration <= 0 {
		cfg.LockoutDuration = def.LockoutDuration
	}
	if cfg.AttemptWindow <= 0 {
		cfg.AttemptWindow = def.AttemptWindow
	}
	if attempts == nil {
		attempts = NewMemoryAttemptStore()
	}

	return &LoginProtection{
		ipLimiters: newLimiterCache[string](cfg.IPRateLimit, cfg.IPBurst),
		attempts:   attempts,
		policy:     cfg.LockoutPolicy,
	}
}

// Policy returns the effective lockout policy.
func (lp *LoginProtection) Policy() LockoutPolicy {
	return lp.policy
}

// Attempts returns the backing attempt store.
func (lp *LoginProtection) Attempts() AttemptStore {
	return lp.attempts
}

// AccountKey normalizes a username into a lockout key.
func AccountKey(username string) string {
	return strings.ToLower(strings.TrimSpace(username))
}

// CheckIPRateLimit reports whether a login post from ip is allowed.
func (lp *LoginProtection) CheckIPRateLimit(ip string) bool {
	return lp.ipLimiters.get(ip).Allow()
}

// IsAccountLocked reports whether the account is locked and for how long.
// Store errors are logged and treated as unlocked.
func (lp *LoginProtection) IsAccountLocked(ctx context.Context, username string) (bool, time.Duration) {
	d, err := lp.attempts.LockedFor(ctx, AccountKey(username))
	if err != nil {
		slog.Error("lockout lookup failed", "error", err, "category", "auth")
		return false, 0
	}
	return d > 0, d
}

// RecordFailedAttempt counts a failed login. It returns true and the lock
// duration when this failure locked the account.
func (lp *LoginProtection) RecordFailedAttempt(ctx context.Context, username string) (bool, time.Duration) {
	key := AccountKey(username)
	d, err := lp.attempts.RecordFailure(ctx, key, lp.policy)
	if err != nil {
		slog.Error("recording failed login failed", "error", err, "category", "auth")
		return false, 0
	}
	if d > 0 {
		slog.Info("account locked due to failed login attempts",
			"username", key,
			"duration", d.String(),
			"category", "auth",
		)
		return true, d
	}
	return false, 0
}

// RecordSuccessfulLogin clears failure tracking for the account.
func (lp *LoginProtection) RecordSuccessfulLogin(ctx context.Context, username string) {
	if err := lp.attempts.Reset(ctx, AccountKey(username)); err != nil {
		slog.Error("clearing login attempts failed", "error", err, "category", "auth")
	}
}

// GetRemainingAttempts returns the failures left before lockout.
func (lp *LoginProtection) GetRemainingAttempts(ctx context.Context, username string) int {
	n, err := lp.attempts.Failures(ctx, AccountKey(username))
	if err != nil {
		slog.Error("reading login attempts failed", "error", err, "category", "auth")
		return lp.policy.MaxFailedAttempts
	}
	return max(lp.policy.MaxFailedAttempts-n, 0)
}

// StartCleanup periodically drops stale limiter and attempt entries until
// ctx is cancelled.
func (lp *LoginProtection) StartCleanup(ctx context.Context, every time.Duration) {
	go func() {
		ticker := time.NewTicker(every)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				lp.cleanupStaleEntries()
			}
		}
	}()
}

func (lp *LoginProtection) cleanupStaleEntries() {
	if lp.ipLimiters.clearIfExceeds(10000) {
		slog.Info("cleared IP rate limiters due to size")
	}
	if m, ok := lp.attempts.(*MemoryAttemptStore); ok {
		m.Cleanup(lp.policy.AttemptWindow)
	}
}

// Middleware rate limits login posts per client IP.
func (lp *LoginProtection) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost {
				next.ServeHTTP(w, r)
				return
			}

			ip := ClientIP(r)
			if !lp.CheckIPRateLimit(ip) {
				slog.Warn("login rate limit exceeded", "ip", ip, "category", "auth")
				http.Error(w, i18n.T(GetLang(r), "auth.rate_limit"), http.StatusTooManyRequests)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// ClientIP returns the host part of r.RemoteAddr. Forwarding headers are
// not consulted here; behind a trusted proxy chi's RealIP middleware
// rewrites RemoteAddr before this runs.
func ClientIP(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

// limiterCache is a keyed rate limiter cache with double-check locking.
type limiterCache[K comparable] struct {
	limiters map[K]*rate.Limiter
	mu       sync.RWMutex
	rate     rate.Limit
	burst    int
}

func newLimiterCache[K comparable](rps float64, burst int) *limiterCache[K] {
	return &limiterCache[K]{
		limiters: make(map[K]*rate.Limiter),
		rate:     rate.Limit(rps),
		burst:    burst,
	}
}

func (lc *limiterCache[K]) get(key K) *rate.Limiter {
	lc.mu.RLock()
	limiter, exists := lc.limiters[key]
	lc.mu.RUnlock()

	if exists {
		return limiter
	}

	lc.mu.Lock()
	defer lc.mu.Unlock()

	if limiter, exists = lc.limiters[key]; exists {
		return limiter
	}

	limiter = rate.NewLimiter(lc.rate, lc.burst)
	lc.limiters[key] = limiter
	return limiter
}

// clearIfExceeds drops every entry once the cache grows past maxSize.
func (lc *limiterCache[K]) clearIfExceeds(maxSize int) bool {
	lc.mu.Lock()
	defer lc.mu.Unlock()

	if len(lc.limiters) > maxSize {
		lc.limiters = make(map[K]*rate.Limiter)
		return true
	}
	return false
}

// MemoryAttemptStore is a process-local AttemptStore.
type MemoryAttemptStore struct {
	mu       sync.Mutex
	attempts map[string]*loginAttempt
	now      func() time.Time
}

type loginAttempt struct {
	count       int
	firstFailed time.Time
	window      time.Duration
	lockedUntil time.Time
	lockouts    int
}

// NewMemoryAttemptStore creates an empty MemoryAttemptStore.
func NewMemoryAttemptStore() *MemoryAttemptStore {
	return &MemoryAttemptStore{
		attempts: make(map[string]*loginAttempt),
		now:      time.Now,
	}
}

// LockedFor implements AttemptStore.
func (m *MemoryAttemptStore) LockedFor(_ context.Context, key string) (time.Duration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	a, ok := m.attempts[key]
	if !ok {
		return 0, nil
	}
	if now := m.now(); now.Before(a.lockedUntil) {
		return a.lockedUntil.Sub(now), nil
	}
	return 0, nil
}

// Failures implements AttemptStore.
func (m *MemoryAttemptStore) Failures(_ context.Context, key string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	a, ok := m.attempts[key]
	if !ok || a.count == 0 || m.now().Sub(a.firstFailed) > a.window {
		return 0, nil
	}
	return a.count, nil
}

// RecordFailure implements AttemptStore.
func (m *MemoryAttemptStore) RecordFailure(_ context.Context, key string, policy LockoutPolicy) (time.Duration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	a, ok := m.attempts[key]
	if !ok {
		a = &loginAttempt{}
		m.attempts[key] = a
	}

	if a.count == 0 || now.Sub(a.firstFailed) > policy.AttemptWindow {
		a.count = 0
		a.firstFailed = now
	}
	a.window = policy.AttemptWindow
	a.count++

	if a.count < policy.MaxFailedAttempts {
		return 0, nil
	}

	d := policy.lockDuration(a.lockouts)
	a.lockedUntil = now.Add(d)
	a.lockouts++
	a.count = 0
	return d, nil
}

// Reset implements AttemptStore.
func (m *MemoryAttemptStore) Reset(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.attempts, key)
	return nil
}

// Cleanup removes entries that are neither locked nor inside window.
func (m *MemoryAttemptStore) Cleanup(window time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	for key, a := range m.attempts {
		if now.After(a.lockedUntil) && now.Sub(a.firstFailed) > window {
			delete(m.attempts, key)
		}
	}
}

// Len returns the number of tracked accounts.
func (m *MemoryAttemptStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.attempts)
}
