// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package web embeds the HTML templates and static assets.
package web

import (
	"embed"
	"fmt"
	"io/fs"
	"net/http"
)

//go:embed all:templates
var Templates embed.FS

//go:embed all:static
var Static embed.FS

// StaticHandler serves the embedded static tree. Mount it under /static/.
func StaticHandler() (http.Handler, error) {
	staticFS, err := fs.Sub(Static, "static")
	if err != nil {
		return nil, fmt.Errorf("getting static fs: %w", err)
	}
	return http.FileServer(http.FS(staticFS)), nil
}
