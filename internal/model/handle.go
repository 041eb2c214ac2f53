// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"encoding/json"
	"time"
)

// Handle is the only way to mutate an in-flight assistant message. It is
// returned by AppendPlaceholderAssistantMessage and stops accepting writes
// once closed, after which the message is immutable.
type Handle struct {
	conv   *Conversation
	msg    *Message
	closed bool
}

// mutate runs fn under the conversation lock unless the handle is closed.
func (h *Handle) mutate(fn func(m *Message)) error {
	h.conv.mu.Lock()
	defer h.conv.mu.Unlock()
	if h.closed {
		return ErrMessageFrozen
	}
	fn(h.msg)
	h.conv.UpdatedAt = time.Now()
	return nil
}

// ID returns the message ID.
func (h *Handle) ID() string {
	return h.msg.ID
}

// AppendText concatenates s onto the message text.
func (h *Handle) AppendText(s string) error {
	return h.mutate(func(m *Message) {
		p := m.textPart()
		p.Text += s
	})
}

// SetText replaces the message text.
func (h *Handle) SetText(s string) error {
	return h.mutate(func(m *Message) {
		m.textPart().Text = s
	})
}

// SetIteration records the agent round that is currently producing output.
func (h *Handle) SetIteration(n int) error {
	return h.mutate(func(m *Message) {
		m.IterationCount = n
	})
}

// SetToolsTotal records the advisory size of the upcoming tool batch.
func (h *Handle) SetToolsTotal(n int) error {
	return h.mutate(func(m *Message) {
		m.ToolsTotal = n
	})
}

// AddTool appends a running invocation.
func (h *Handle) AddTool(name string, args json.RawMessage) error {
	return h.mutate(func(m *Message) {
		m.Tools = append(m.Tools, ToolInvocation{
			Name:   name,
			Args:   append(json.RawMessage(nil), args...),
			Status: ToolRunning,
		})
	})
}

// CompleteTool resolves the oldest running invocation named name. It
// returns false when none matches, leaving the tool list untouched.
func (h *Handle) CompleteTool(name, result, preview string) (bool, error) {
	matched := false
	err := h.mutate(func(m *Message) {
		for i := range m.Tools {
			t := &m.Tools[i]
			if t.Name == name && t.IsRunning() {
				matched = t.Complete(result, preview) == nil
				return
			}
		}
	})
	return matched, err
}

// SetError records a failure on the message.
func (h *Handle) SetError(msg string) error {
	return h.mutate(func(m *Message) {
		m.Error = msg
	})
}

// Close freezes the message. Closing twice is harmless.
func (h *Handle) Close() {
	h.conv.mu.Lock()
	defer h.conv.mu.Unlock()
	h.closed = true
	if h.conv.active == h {
		h.conv.active = nil
	}
}

// Closed reports whether the handle still accepts writes.
func (h *Handle) Closed() bool {
	h.conv.mu.Lock()
	defer h.conv.mu.Unlock()
	return h.closed
}

// Snapshot returns a copy of the message in its current state.
func (h *Handle) Snapshot() *Message {
	h.conv.mu.Lock()
	defer h.conv.mu.Unlock()
	return h.msg.Clone()
}

// Text returns the current message text.
func (h *Handle) Text() string {
	h.conv.mu.Lock()
	defer h.conv.mu.Unlock()
	return h.msg.Text()
}
