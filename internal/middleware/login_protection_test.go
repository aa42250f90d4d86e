// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package middleware

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

// fakeClock drives a MemoryAttemptStore without sleeping.
type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

// newTestLoginProtection returns login protection with a generous IP limit
// and a memory store on a fake clock.
func newTestLoginProtection(maxAttempts int, lockout, window time.Duration) (*LoginProtection, *fakeClock) {
	clock := &fakeClock{t: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
	store := NewMemoryAttemptStore()
	store.now = clock.now

	lp := NewLoginProtection(LoginProtectionConfig{
		IPRateLimit: 10,
		IPBurst:     100,
		LockoutPolicy: LockoutPolicy{
			MaxFailedAttempts: maxAttempts,
			LockoutDuration:   lockout,
			AttemptWindow:     window,
		},
	}, store)
	return lp, clock
}

func TestDefaultLoginProtectionConfig(t *testing.T) {
	cfg := DefaultLoginProtectionConfig()

	if cfg.IPRateLimit != 0.5 {
		t.Errorf("IPRateLimit = %v, want 0.5", cfg.IPRateLimit)
	}
	if cfg.IPBurst != 5 {
		t.Errorf("IPBurst = %d, want 5", cfg.IPBurst)
	}
	if cfg.MaxFailedAttempts != 5 {
		t.Errorf("MaxFailedAttempts = %d, want 5", cfg.MaxFailedAttempts)
	}
	if cfg.LockoutDuration != 15*time.Minute {
		t.Errorf("LockoutDuration = %v, want 15m", cfg.LockoutDuration)
	}
	if cfg.AttemptWindow != 15*time.Minute {
		t.Errorf("AttemptWindow = %v, want 15m", cfg.AttemptWindow)
	}
}

func TestNewLoginProtectionDefaultValues(t *testing.T) {
	lp := NewLoginProtection(LoginProtectionConfig{}, nil)

	p := lp.Policy()
	if p.MaxFailedAttempts != 5 {
		t.Errorf("MaxFailedAttempts = %d, want 5 (default)", p.MaxFailedAttempts)
	}
	if p.LockoutDuration != 15*time.Minute {
		t.Errorf("LockoutDuration = %v, want 15m (default)", p.LockoutDuration)
	}
	if _, ok := lp.Attempts().(*MemoryAttemptStore); !ok {
		t.Errorf("Attempts() = %T, want *MemoryAttemptStore", lp.Attempts())
	}
}

func TestLoginProtectionIsAccountLocked(t *testing.T) {
	ctx := context.Background()
	lp, clock := newTestLoginProtection(3, time.Minute, 10*time.Minute)

	if locked, _ := lp.IsAccountLocked(ctx, "alice"); locked {
		t.Error("account should not be locked initially")
	}

	for i := 0; i < 3; i++ {
		lp.RecordFailedAttempt(ctx, "alice")
	}

	locked, remaining := lp.IsAccountLocked(ctx, "alice")
	if !locked {
		t.Fatal("account should be locked after max failed attempts")
	}
	if remaining != time.Minute {
		t.Errorf("remaining = %v, want 1m", remaining)
	}

	clock.advance(time.Minute + time.Second)

	if locked, _ := lp.IsAccountLocked(ctx, "alice"); locked {
		t.Error("account should be unlocked after lockout expires")
	}
}

func TestLoginProtectionRecordFailedAttempt(t *testing.T) {
	ctx := context.Background()
	lp, _ := newTestLoginProtection(3, time.Minute, time.Minute)

	if locked, _ := lp.RecordFailedAttempt(ctx, "alice"); locked {
		t.Error("first attempt should not lock account")
	}
	if locked, _ := lp.RecordFailedAttempt(ctx, "alice"); locked {
		t.Error("second attempt should not lock account")
	}

	locked, d := lp.RecordFailedAttempt(ctx, "alice")
	if !locked {
		t.Error("third attempt should lock account")
	}
	if d != time.Minute {
		t.Errorf("lock duration = %v, want 1m", d)
	}
}

func TestLoginProtectionAccountKeyNormalization(t *testing.T) {
	ctx := context.Background()
	lp, _ := newTestLoginProtection(2, time.Minute, time.Minute)

	lp.RecordFailedAttempt(ctx, "Alice")
	lp.RecordFailedAttempt(ctx, "  alice ")

	if locked, _ := lp.IsAccountLocked(ctx, "ALICE"); !locked {
		t.Error("usernames differing only in case and padding should share a lockout")
	}
}

func TestLoginProtectionRecordSuccessfulLogin(t *testing.T) {
	ctx := context.Background()
	lp, _ := newTestLoginProtection(3, time.Minute, time.Minute)

	lp.RecordFailedAttempt(ctx, "alice")
	lp.RecordFailedAttempt(ctx, "alice")
	lp.RecordSuccessfulLogin(ctx, "alice")

	if got := lp.GetRemainingAttempts(ctx, "alice"); got != 3 {
		t.Errorf("GetRemainingAttempts() = %d, want 3", got)
	}
}

func TestLoginProtectionGetRemainingAttempts(t *testing.T) {
	ctx := context.Background()
	lp, _ := newTestLoginProtection(5, time.Minute, time.Minute)

	if got := lp.GetRemainingAttempts(ctx, "alice"); got != 5 {
		t.Errorf("GetRemainingAttempts() = %d, want 5", got)
	}

	lp.RecordFailedAttempt(ctx, "alice")
	if got := lp.GetRemainingAttempts(ctx, "alice"); got != 4 {
		t.Errorf("GetRemainingAttempts() = %d, want 4", got)
	}

	lp.RecordFailedAttempt(ctx, "alice")
	lp.RecordFailedAttempt(ctx, "alice")
	if got := lp.GetRemainingAttempts(ctx, "alice"); got != 2 {
		t.Errorf("GetRemainingAttempts() = %d, want 2", got)
	}
}

func TestLoginProtectionExponentialBackoff(t *testing.T) {
	ctx := context.Background()
	lp, clock := newTestLoginProtection(2, time.Minute, time.Hour)

	want := []time.Duration{time.Minute, 2 * time.Minute, 4 * time.Minute}
	for i, w := range want {
		lp.RecordFailedAttempt(ctx, "alice")
		_, d := lp.RecordFailedAttempt(ctx, "alice")
		if d != w {
			t.Errorf("lockout %d duration = %v, want %v", i+1, d, w)
		}
		clock.advance(d + time.Second)
	}
}

func TestLockoutPolicyCap(t *testing.T) {
	p := LockoutPolicy{LockoutDuration: time.Hour}

	if got := p.lockDuration(0); got != time.Hour {
		t.Errorf("lockDuration(0) = %v, want 1h", got)
	}
	if got := p.lockDuration(10); got != 24*time.Hour {
		t.Errorf("lockDuration(10) = %v, want 24h", got)
	}
}

func TestLoginProtectionAttemptWindowReset(t *testing.T) {
	ctx := context.Background()
	lp, clock := newTestLoginProtection(5, time.Minute, 10*time.Minute)

	lp.RecordFailedAttempt(ctx, "alice")
	if got := lp.GetRemainingAttempts(ctx, "alice"); got != 4 {
		t.Errorf("GetRemainingAttempts() = %d, want 4", got)
	}

	clock.advance(11 * time.Minute)

	if got := lp.GetRemainingAttempts(ctx, "alice"); got != 5 {
		t.Errorf("GetRemainingAttempts() after window = %d, want 5", got)
	}

	// A failure after the window starts a new count.
	lp.RecordFailedAttempt(ctx, "alice")
	if got := lp.GetRemainingAttempts(ctx, "alice"); got != 4 {
		t.Errorf("GetRemainingAttempts() = %d, want 4", got)
	}
}

func TestMemoryAttemptStoreCleanup(t *testing.T) {
	ctx := context.Background()
	lp, clock := newTestLoginProtection(2, time.Minute, time.Minute)
	store := lp.attempts.(*MemoryAttemptStore)

	lp.RecordFailedAttempt(ctx, "alice")
	lp.RecordFailedAttempt(ctx, "bob")
	lp.RecordFailedAttempt(ctx, "bob")

	clock.advance(90 * time.Second)
	lp.RecordFailedAttempt(ctx, "carol")

	store.Cleanup(time.Minute)

	if got := store.Len(); got != 1 {
		t.Errorf("Len() after cleanup = %d, want 1", got)
	}
	if n, _ := store.Failures(ctx, "carol"); n != 1 {
		t.Errorf("carol failures = %d, want 1", n)
	}
}

func TestClientIP(t *testing.T) {
	tests := []struct {
		name       string
		remoteAddr string
		xForwarded string
		xRealIP    string
		want       string
	}{
		{
			name:       "simple remote addr",
			remoteAddr: "192.168.1.1:12345",
			want:       "192.168.1.1",
		},
		{
			name:       "remote addr without port",
			remoteAddr: "192.168.1.1",
			want:       "192.168.1.1",
		},
		{
			name:       "X-Forwarded-For ignored",
			remoteAddr: "127.0.0.1:8080",
			xForwarded: "10.0.0.1, 10.0.0.2",
			want:       "127.0.0.1",
		},
		{
			name:       "X-Real-IP ignored",
			remoteAddr: "127.0.0.1:8080",
			xRealIP:    "10.0.0.5",
			want:       "127.0.0.1",
		},
		{
			name:       "IPv6 remote addr",
			remoteAddr: "[::1]:8080",
			want:       "::1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remoteAddr
			if tt.xForwarded != "" {
				req.Header.Set("X-Forwarded-For", tt.xForwarded)
			}
			if tt.xRealIP != "" {
				req.Header.Set("X-Real-IP", tt.xRealIP)
			}

			if got := ClientIP(req); got != tt.want {
				t.Errorf("ClientIP() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestLoginProtectionMiddleware(t *testing.T) {
	lp := NewLoginProtection(LoginProtectionConfig{IPRateLimit: 0.001, IPBurst: 2}, nil)

	handler := lp.Middleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	post := func(ip string) int {
		req := httptest.NewRequest(http.MethodPost, "/login", nil)
		req.RemoteAddr = ip + ":1234"
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)
		return rr.Code
	}

	for i := 0; i < 2; i++ {
		if code := post("10.0.0.1"); code != http.StatusOK {
			t.Errorf("POST %d status = %d, want %d", i+1, code, http.StatusOK)
		}
	}
	if code := post("10.0.0.1"); code != http.StatusTooManyRequests {
		t.Errorf("POST over burst status = %d, want %d", code, http.StatusTooManyRequests)
	}
	if code := post("10.0.0.2"); code != http.StatusOK {
		t.Errorf("POST from another IP status = %d, want %d", code, http.StatusOK)
	}

	// GET requests are never limited.
	for i := 0; i < 5; i++ {
		req := httptest.NewRequest(http.MethodGet, "/login", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)
		if rr.Code != http.StatusOK {
			t.Errorf("GET status = %d, want %d", rr.Code, http.StatusOK)
		}
	}
}

func TestLimiterCacheClearIfExceeds(t *testing.T) {
	lc := newLimiterCache[string](1, 1)
	lc.get("a")
	lc.get("b")

	if lc.clearIfExceeds(2) {
		t.Error("clearIfExceeds(2) should not clear 2 entries")
	}
	lc.get("c")
	if !lc.clearIfExceeds(2) {
		t.Error("clearIfExceeds(2) should clear 3 entries")
	}
}

func TestLoginProtectionMiddlewareIgnoresForwardedFor(t *testing.T) {
	lp := NewLoginProtection(LoginProtectionConfig{IPRateLimit: 0.001, IPBurst: 2}, nil)

	handler := lp.Middleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	codes := make([]int, 0, 4)
	for i := 0; i < 4; i++ {
		req := httptest.NewRequest(http.MethodPost, "/login", nil)
		req.RemoteAddr = "10.0.0.9:1234"
		req.Header.Set("X-Forwarded-For", fmt.Sprintf("203.0.113.%d", i+1))
		req.Header.Set("X-Real-IP", fmt.Sprintf("198.51.100.%d", i+1))
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)
		codes = append(codes, rr.Code)
	}

	want := []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests, http.StatusTooManyRequests}
	for i := range want {
		if codes[i] != want[i] {
			t.Errorf("POST %d with a new forwarded address: status = %d, want %d", i+1, codes[i], want[i])
		}
	}
}
