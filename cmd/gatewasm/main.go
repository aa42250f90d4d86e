// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

//go:build js && wasm

// Command gatewasm keeps the login button disabled until the form is
// complete. Build with GOOS=js GOARCH=wasm and serve as /static/wasm/gate.wasm.
package main

import (
	"syscall/js"

	"github.com/olegiv/gatekeeper-go/internal/gatekeeper/domgate"
)

func main() {
	if _, err := domgate.BindForm(domgate.DefaultFormIDs()); err != nil {
		js.Global().Get("console").Call("error", "gatekeeper: "+err.Error())
		return
	}

	// Listeners live as long as the page.
	select {}
}
