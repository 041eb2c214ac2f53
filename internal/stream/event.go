// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package stream

import (
	"encoding/json"
	"strings"
)

// =============================================================================
// EVENT TYPES
// =============================================================================

// EventType is the value of an event record's "type" field.
type EventType string

const (
	EventIterationStart EventType = "iteration_start"
	EventTextDelta      EventType = "text_delta"
	EventToolsStart     EventType = "tools_start"
	EventToolCall       EventType = "tool_call"
	EventToolResult     EventType = "tool_result"
	EventToolsEnd       EventType = "tools_end"
	EventError          EventType = "error"
	EventDone           EventType = "done"
)

// legacyTypes maps names emitted by older backends onto the current set.
var legacyTypes = map[EventType]EventType{
	"tool_start": EventToolsStart,
	"tool_log":   EventToolCall,
	"tool_end":   EventToolsEnd,
}

// Canonical returns the current name for t, translating legacy names.
func (t EventType) Canonical() EventType {
	if c, ok := legacyTypes[t]; ok {
		return c
	}
	return t
}

// Known reports whether t (after translation) is handled by Apply.
func (t EventType) Known() bool {
	switch t.Canonical() {
	case EventIterationStart, EventTextDelta, EventToolsStart, EventToolCall,
		EventToolResult, EventToolsEnd, EventError, EventDone:
		return true
	}
	return false
}

// =============================================================================
// EVENT RECORD
// =============================================================================

// Event is one decoded `data: ` record. Only the fields relevant to Type
// are populated.
type Event struct {
	Type      EventType       `json:"type"`
	Iteration int             `json:"iteration,omitempty"`
	Content   string          `json:"content,omitempty"`
	Count     int             `json:"count,omitempty"`
	Name      string          `json:"name,omitempty"`
	Args      json.RawMessage `json:"args,omitempty"`
	Result    string          `json:"-"`
	Preview   string          `json:"preview,omitempty"`
	Message   string          `json:"message,omitempty"`
}

// UnmarshalJSON decodes an event. A non-string "result" is kept as its raw
// JSON text, and the type is translated to its canonical name.
func (e *Event) UnmarshalJSON(data []byte) error {
	type plain Event
	var aux struct {
		plain
		Result json.RawMessage `json:"result,omitempty"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	*e = Event(aux.plain)
	e.Type = e.Type.Canonical()
	e.Result = rawToText(aux.Result)
	return nil
}

// MarshalJSON encodes the event in the wire shape.
func (e Event) MarshalJSON() ([]byte, error) {
	type plain Event
	aux := struct {
		plain
		Result string `json:"result,omitempty"`
	}{plain: plain(e), Result: e.Result}
	return json.Marshal(aux)
}

func rawToText(raw json.RawMessage) string {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" || trimmed == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return trimmed
}
