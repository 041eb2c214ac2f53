// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

// =============================================================================
// PROGRAM REFERENCE
// =============================================================================

// Sender delivers messages into a running program. *tea.Program
// implements it.
type Sender interface {
	Send(msg tea.Msg)
}

// programRef lets the turn goroutine reach the program, which is created
// after the model.
type programRef struct {
	mu sync.Mutex
	p  Sender
}

func (r *programRef) set(p Sender) {
	r.mu.Lock()
	r.p = p
	r.mu.Unlock()
}

// Send is a no-op until a program is set.
func (r *programRef) Send(msg tea.Msg) {
	r.mu.Lock()
	p := r.p
	r.mu.Unlock()
	if p != nil {
		p.Send(msg)
	}
}

// =============================================================================
// REDRAW THROTTLE
// =============================================================================

// defaultMaxFPS caps redraws while streaming.
const defaultMaxFPS = 30

// redrawThrottle turns the controller's per-event change callbacks into at
// most one StreamUpdateMsg per interval. A change inside the interval
// schedules one trailing redraw, so the last state is always drawn.
type redrawThrottle struct {
	mu       sync.Mutex
	send     func(tea.Msg)
	interval time.Duration
	last     time.Time
	timer    *time.Timer
}

func newRedrawThrottle(send func(tea.Msg), maxFPS int) *redrawThrottle {
	if maxFPS <= 0 {
		maxFPS = defaultMaxFPS
	}
	return &redrawThrottle{
		send:     send,
		interval: time.Second / time.Duration(maxFPS),
	}
}

// Notify records a change. It is called on the turn goroutine.
func (t *redrawThrottle) Notify() {
	t.mu.Lock()
	if t.timer != nil {
		t.mu.Unlock()
		return
	}
	wait := t.interval - time.Since(t.last)
	if wait > 0 {
		t.timer = time.AfterFunc(wait, t.flush)
		t.mu.Unlock()
		return
	}
	t.last = time.Now()
	t.mu.Unlock()
	t.send(StreamUpdateMsg{})
}

func (t *redrawThrottle) flush() {
	t.mu.Lock()
	t.timer = nil
	t.last = time.Now()
	t.mu.Unlock()
	t.send(StreamUpdateMsg{})
}

// Stop cancels a scheduled redraw.
func (t *redrawThrottle) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
}
