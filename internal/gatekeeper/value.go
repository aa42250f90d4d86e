// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package gatekeeper

import "sync"

// Value is an in-memory observable Field.
type Value struct {
	mu     sync.RWMutex
	value  string
	nextID int
	subs   map[int]func()
}

// NewValue creates a Value holding initial.
func NewValue(initial string) *Value {
	return &Value{value: initial, subs: make(map[int]func())}
}

// Value implements Field.
func (v *Value) Value() string {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.value
}

// Set stores s and notifies subscribers. Subscribers run after the lock is
// released so they may read the value again.
func (v *Value) Set(s string) {
	v.mu.Lock()
	v.value = s
	subs := make([]func(), 0, len(v.subs))
	for id := 0; id < v.nextID; id++ {
		if fn, ok := v.subs[id]; ok {
			subs = append(subs, fn)
		}
	}
	v.mu.Unlock()

	for _, fn := range subs {
		fn()
	}
}

// OnChange implements Field.
func (v *Value) OnChange(fn func()) func() {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.subs == nil {
		v.subs = make(map[int]func())
	}
	id := v.nextID
	v.nextID++
	v.subs[id] = fn

	return func() {
		v.mu.Lock()
		defer v.mu.Unlock()
		delete(v.subs, id)
	}
}

// Subscribers returns the number of active subscriptions.
func (v *Value) Subscribers() int {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return len(v.subs)
}

// Button is an in-memory Control.
type Button struct {
	mu       sync.Mutex
	disabled bool
	updates  int
}

// NewButton returns a Button that starts disabled, like a freshly rendered
// submit button.
func NewButton() *Button {
	return &Button{disabled: true}
}

// SetDisabled implements Control.
func (b *Button) SetDisabled(disabled bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.disabled = disabled
	b.updates++
}

// Disabled reports the current state.
func (b *Button) Disabled() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.disabled
}

// Updates returns how many times SetDisabled has been called.
func (b *Button) Updates() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.updates
}
