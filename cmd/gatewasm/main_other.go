// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

//go:build !(js && wasm)

package main

import (
	"fmt"
	"os"
)

// Stub for non-WASM builds so ./... still compiles.
func main() {
	_, _ = fmt.Fprintln(os.Stderr, "gatewasm must be built with GOOS=js GOARCH=wasm")
	os.Exit(1)
}
