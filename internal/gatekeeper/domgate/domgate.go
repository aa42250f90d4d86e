// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

//go:build js && wasm

package domgate

import (
	"fmt"
	"syscall/js"

	"github.com/olegiv/gatekeeper-go/internal/gatekeeper"
)

// DOM events the login form listens to.
const (
	EventInput  = "input"  // text and password inputs
	EventChange = "change" // select elements
)

// Element is a DOM element reference.
type Element struct {
	v js.Value
}

// ByID looks up an element once. Missing elements are an error so that a
// broken page is reported at load time.
func ByID(id string) (Element, error) {
	v := js.Global().Get("document").Call("getElementById", id)
	if v.IsNull() || v.IsUndefined() {
		return Element{}, fmt.Errorf("element #%s not found", id)
	}
	return Element{v: v}, nil
}

// Input is a gatekeeper.Field backed by an element's value property.
type Input struct {
	el    Element
	event string
}

// NewInput binds el, re-evaluating on event (EventInput or EventChange).
func NewInput(el Element, event string) *Input {
	return &Input{el: el, event: event}
}

// Value implements gatekeeper.Field.
func (in *Input) Value() string {
	v := in.el.v.Get("value")
	// An unselected <select> may report null in some widgets; treat it as
	// the empty sentinel.
	if v.IsNull() || v.IsUndefined() {
		return ""
	}
	return v.String()
}

// OnChange implements gatekeeper.Field.
func (in *Input) OnChange(fn func()) func() {
	cb := js.FuncOf(func(this js.Value, args []js.Value) any {
		fn()
		return nil
	})
	in.el.v.Call("addEventListener", in.event, cb)

	return func() {
		in.el.v.Call("removeEventListener", in.event, cb)
		cb.Release()
	}
}

// Submit is a gatekeeper.Control toggling an element's disabled property.
type Submit struct {
	el Element
}

// NewSubmit binds el.
func NewSubmit(el Element) *Submit {
	return &Submit{el: el}
}

// SetDisabled implements gatekeeper.Control.
func (s *Submit) SetDisabled(disabled bool) {
	s.el.v.Set("disabled", disabled)
}

// FormIDs names the elements of a login form.
type FormIDs struct {
	Username string
	Password string
	Role     string
	Submit   string
}

// DefaultFormIDs matches the server-rendered login page.
func DefaultFormIDs() FormIDs {
	return FormIDs{
		Username: "username",
		Password: "password",
		Role:     "role",
		Submit:   "loginButton",
	}
}

// BindForm looks up the form elements and binds a gatekeeper to them.
func BindForm(ids FormIDs) (*gatekeeper.Gatekeeper, error) {
	username, err := ByID(ids.Username)
	if err != nil {
		return nil, err
	}
	password, err := ByID(ids.Password)
	if err != nil {
		return nil, err
	}
	role, err := ByID(ids.Role)
	if err != nil {
		return nil, err
	}
	submit, err := ByID(ids.Submit)
	if err != nil {
		return nil, err
	}

	return gatekeeper.Bind(gatekeeper.Fields{
		Username: NewInput(username, EventInput),
		Password: NewInput(password, EventInput),
		Role:     NewInput(role, EventChange),
	}, NewSubmit(submit))
}
