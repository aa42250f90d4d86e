// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package domgate adapts browser DOM elements to the gatekeeper Field and
// Control interfaces. It only builds for js/wasm.
package domgate
