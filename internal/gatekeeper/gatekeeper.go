// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package gatekeeper decides whether a login form may be submitted.
//
// A form is submittable when the username and password are non-blank and a
// role has been selected. The decision is recomputed from the current field
// values on every change notification and once when the gatekeeper is
// initialized, so fields that were pre-filled (autofill, a re-rendered form)
// are honoured before any event fires.
package gatekeeper

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"unicode"
)

// Errors returned by New when a binding is missing.
var (
	ErrMissingField   = errors.New("gatekeeper: missing field")
	ErrMissingControl = errors.New("gatekeeper: missing submit control")
)

// Field is an externally owned input with a current value and a change
// subscription. OnChange returns a function that removes the subscription.
type Field interface {
	Value() string
	OnChange(fn func()) (unsubscribe func())
}

// Control is the externally owned submit control.
type Control interface {
	SetDisabled(disabled bool)
}

// Fields groups the three inputs the gatekeeper observes.
type Fields struct {
	Username Field
	Password Field
	Role     Field
}

// State is the enabled/disabled state last applied to the control.
type State int

// Control states.
const (
	Disabled State = iota
	Enabled
)

// String implements fmt.Stringer.
func (s State) String() string {
	if s == Enabled {
		return "enabled"
	}
	return "disabled"
}

// Evaluate reports whether a form with the given values may be submitted.
// Username and password are trimmed; the role is compared as-is.
func Evaluate(username, password, role string) bool {
	return Trim(username) != "" &&
		Trim(password) != "" &&
		role != ""
}

// Trim removes the whitespace a browser strips from form values: the
// Unicode space characters plus U+FEFF, but not U+0085.
func Trim(s string) string {
	return strings.TrimFunc(s, isFormSpace)
}

func isFormSpace(r rune) bool {
	if r == '\ufeff' {
		return true
	}
	return r != '\u0085' && unicode.IsSpace(r)
}

// Gatekeeper keeps a Control's disabled state in sync with three Fields.
type Gatekeeper struct {
	fields  Fields
	control Control

	// refreshMu serializes evaluate and apply so the control and state
	// always reflect the same, latest evaluation.
	refreshMu sync.Mutex

	mu     sync.Mutex
	state  State
	unsubs []func()
}

// New validates the bindings and returns an unattached Gatekeeper.
// Nothing is evaluated until Initialize or Attach is called.
func New(fields Fields, control Control) (*Gatekeeper, error) {
	for _, f := range []struct {
		name  string
		field Field
	}{
		{"username", fields.Username},
		{"password", fields.Password},
		{"role", fields.Role},
	} {
		if f.field == nil {
			return nil, fmt.Errorf("%w: %s", ErrMissingField, f.name)
		}
	}
	if control == nil {
		return nil, ErrMissingControl
	}

	return &Gatekeeper{
		fields:  fields,
		control: control,
		state:   Disabled,
	}, nil
}

// Bind is New followed by Attach and Initialize.
func Bind(fields Fields, control Control) (*Gatekeeper, error) {
	g, err := New(fields, control)
	if err != nil {
		return nil, err
	}
	g.Attach()
	g.Initialize()
	return g, nil
}

// CanSubmit evaluates the current field values. Nothing is cached.
func (g *Gatekeeper) CanSubmit() bool {
	return Evaluate(g.fields.Username.Value(), g.fields.Password.Value(), g.fields.Role.Value())
}

// Initialize evaluates once and applies the result to the control.
func (g *Gatekeeper) Initialize() bool {
	return g.refresh()
}

// Attach subscribes to all three fields. Calling it again while attached
// does nothing.
func (g *Gatekeeper) Attach() {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.unsubs != nil {
		return
	}

	g.unsubs = []func(){
		g.fields.Username.OnChange(g.onChange),
		g.fields.Password.OnChange(g.onChange),
		g.fields.Role.OnChange(g.onChange),
	}
}

// Detach removes the subscriptions made by Attach.
func (g *Gatekeeper) Detach() {
	g.mu.Lock()
	unsubs := g.unsubs
	g.unsubs = nil
	g.mu.Unlock()

	for _, unsub := range unsubs {
		if unsub != nil {
			unsub()
		}
	}
}

// Attached reports whether the gatekeeper is subscribed to its fields.
func (g *Gatekeeper) Attached() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.unsubs != nil
}

// State returns the state last applied to the control.
func (g *Gatekeeper) State() State {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state
}

func (g *Gatekeeper) onChange() {
	g.refresh()
}

// refresh re-evaluates and pushes the result to the control. The state is
// recorded after the control has been updated.
func (g *Gatekeeper) refresh() bool {
	g.refreshMu.Lock()
	defer g.refreshMu.Unlock()

	ok := g.CanSubmit()
	g.control.SetDisabled(!ok)

	g.mu.Lock()
	if ok {
		g.state = Enabled
	} else {
		g.state = Disabled
	}
	g.mu.Unlock()

	return ok
}
