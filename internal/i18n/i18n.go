// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package i18n translates the login and dashboard pages.
package i18n

import (
	"embed"
	"encoding/json"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"

	"golang.org/x/text/language"
)

//go:embed locales
var localesFS embed.FS

// DefaultLanguage is used when nothing better matches.
const DefaultLanguage = "en"

// SupportedLanguages lists the UI languages.
var SupportedLanguages = []string{"en", "es"}

type message struct {
	ID          string `json:"id"`
	Translation string `json:"translation"`
}

type messageFile struct {
	Language string    `json:"language"`
	Messages []message `json:"messages"`
}

type catalog struct {
	mu           sync.RWMutex
	translations map[string]map[string]string
	matcher      language.Matcher
	tags         []language.Tag
}

var current *catalog

// Init loads all embedded catalogs. It is safe to call more than once.
func Init(logger *slog.Logger) error {
	c := &catalog{translations: make(map[string]map[string]string)}

	for _, lang := range SupportedLanguages {
		c.tags = append(c.tags, language.MustParse(lang))

		path := fmt.Sprintf("locales/%s/messages.json", lang)
		data, err := localesFS.ReadFile(path)
		if err != nil {
			return fmt.Errorf("reading %s: %w", path, err)
		}

		var mf messageFile
		if err := json.Unmarshal(data, &mf); err != nil {
			return fmt.Errorf("parsing %s: %w", path, err)
		}

		m := make(map[string]string, len(mf.Messages))
		for _, msg := range mf.Messages {
			m[msg.ID] = msg.Translation
		}
		c.translations[lang] = m
	}
	c.matcher = language.NewMatcher(c.tags)

	current = c

	if logger != nil {
		logger.Info("i18n initialized", "languages", SupportedLanguages)
	}
	return nil
}

// T translates key into lang, falling back to the default language and
// then to the key itself. Args are applied with fmt.Sprintf.
func T(lang, key string, args ...any) string {
	c := current
	if c == nil {
		return key
	}

	c.mu.RLock()
	translation, ok := c.translations[lang][key]
	if !ok {
		translation, ok = c.translations[DefaultLanguage][key]
	}
	c.mu.RUnlock()

	if !ok {
		return key
	}
	if len(args) > 0 {
		return fmt.Sprintf(translation, args...)
	}
	return translation
}

// MatchLanguage picks the best supported language for an Accept-Language
// header or a bare language code.
func MatchLanguage(acceptLang string) string {
	c := current
	if c == nil || strings.TrimSpace(acceptLang) == "" {
		return DefaultLanguage
	}

	tags, _, err := language.ParseAcceptLanguage(acceptLang)
	if err != nil || len(tags) == 0 {
		return DefaultLanguage
	}

	_, idx, conf := c.matcher.Match(tags...)
	if conf == language.No || idx < 0 || idx >= len(c.tags) {
		return DefaultLanguage
	}
	return SupportedLanguages[idx]
}

// IsSupported checks if a language code is supported.
func IsSupported(lang string) bool {
	return slices.Contains(SupportedLanguages, strings.ToLower(lang))
}

// TranslationCount returns the number of messages loaded for lang.
func TranslationCount(lang string) int {
	c := current
	if c == nil {
		return 0
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.translations[lang])
}
