// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/alexedwards/scs/v2"

	"github.com/olegiv/gatekeeper-go/internal/i18n"
	"github.com/olegiv/gatekeeper-go/internal/session"
)

// Language picks the UI language for the request.
// Priority order:
//  1. ?lang=XX query parameter, saved to the session
//  2. language saved in the session
//  3. Accept-Language header
//  4. i18n.DefaultLanguage
func Language(sm *scs.SessionManager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			lang := resolveLanguage(sm, r)
			next.ServeHTTP(w, r.WithContext(WithLang(r.Context(), lang)))
		})
	}
}

func resolveLanguage(sm *scs.SessionManager, r *http.Request) string {
	ctx := r.Context()

	if q := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("lang"))); q != "" && i18n.IsSupported(q) {
		if sm != nil {
			sm.Put(ctx, session.KeyLang, q)
		}
		return q
	}

	if sm != nil {
		if saved := sm.GetString(ctx, session.KeyLang); saved != "" && i18n.IsSupported(saved) {
			return saved
		}
	}

	if accept := r.Header.Get("Accept-Language"); accept != "" {
		return i18n.MatchLanguage(accept)
	}

	return i18n.DefaultLanguage
}

// WithLang returns ctx carrying lang.
func WithLang(ctx context.Context, lang string) context.Context {
	return context.WithValue(ctx, ContextKeyLang, lang)
}

// GetLang returns the request language, or i18n.DefaultLanguage.
func GetLang(r *http.Request) string {
	if lang, ok := r.Context().Value(ContextKeyLang).(string); ok && lang != "" {
		return lang
	}
	return i18n.DefaultLanguage
}
