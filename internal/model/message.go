// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jeranaias/streamchat/internal/util"
)

// DefaultPreviewLength is the rune count kept when a tool result has to be
// shortened into a preview.
const DefaultPreviewLength = 100

// =============================================================================
// ROLE TYPE
// =============================================================================

// Role represents the sender of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// String returns the string representation of the role.
func (r Role) String() string {
	return string(r)
}

// DisplayName returns a human-readable name for the role.
func (r Role) DisplayName() string {
	switch r {
	case RoleUser:
		return "You"
	case RoleAssistant:
		return "Assistant"
	default:
		return string(r)
	}
}

// Title returns the role name used in exported documents.
func (r Role) Title() string {
	switch r {
	case RoleUser:
		return "User"
	case RoleAssistant:
		return "Assistant"
	default:
		return string(r)
	}
}

// =============================================================================
// CONTENT PARTS
// =============================================================================

// PartKind tags the variant held by a Part.
type PartKind string

const (
	PartText  PartKind = "text"
	PartImage PartKind = "image"
)

// Part is one element of a message's content: either text or an image
// carried as a data URL. Exactly one of Text or ImageURL is meaningful,
// selected by Kind.
type Part struct {
	Kind     PartKind
	Text     string
	ImageURL string
}

// TextPart returns a text part.
func TextPart(s string) Part {
	return Part{Kind: PartText, Text: s}
}

// ImagePart returns an image part for a data URL.
func ImagePart(dataURL string) Part {
	return Part{Kind: PartImage, ImageURL: dataURL}
}

// wirePart is the backend's JSON shape for a part.
type wirePart struct {
	Text     *string `json:"text,omitempty"`
	ImageURL *string `json:"image_url,omitempty"`
}

// MarshalJSON encodes the part as {"text": ...} or {"image_url": ...}.
func (p Part) MarshalJSON() ([]byte, error) {
	switch p.Kind {
	case PartText:
		return json.Marshal(wirePart{Text: &p.Text})
	case PartImage:
		return json.Marshal(wirePart{ImageURL: &p.ImageURL})
	default:
		return nil, fmt.Errorf("unknown part kind %q", p.Kind)
	}
}

// UnmarshalJSON decodes either part shape. An object carrying neither key
// is rejected.
func (p *Part) UnmarshalJSON(data []byte) error {
	var w wirePart
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	switch {
	case w.ImageURL != nil:
		*p = ImagePart(*w.ImageURL)
	case w.Text != nil:
		*p = TextPart(*w.Text)
	default:
		return errors.New("content part has neither text nor image_url")
	}
	return nil
}

// =============================================================================
// TOOL INVOCATIONS
// =============================================================================

// ToolStatus is the lifecycle state of a tool invocation.
type ToolStatus string

const (
	ToolRunning ToolStatus = "running"
	ToolDone    ToolStatus = "done"
)

// ToolInvocation records one delegation from the assistant to a backend
// capability. Status only ever moves from running to done.
type ToolInvocation struct {
	Name    string          `json:"name"`
	Args    json.RawMessage `json:"args,omitempty"`
	Status  ToolStatus      `json:"status"`
	Result  string          `json:"result,omitempty"`
	Preview string          `json:"preview,omitempty"`
}

// Complete marks the invocation done. The preview falls back to a shortened
// copy of result. Calling Complete twice returns ErrToolAlreadyDone and
// leaves the first result in place.
func (t *ToolInvocation) Complete(result, preview string) error {
	if t.Status == ToolDone {
		return ErrToolAlreadyDone
	}
	if preview == "" {
		preview = util.Preview(result, DefaultPreviewLength)
	}
	t.Status = ToolDone
	t.Result = result
	t.Preview = preview
	return nil
}

// IsRunning reports whether the invocation is still waiting for its result.
func (t ToolInvocation) IsRunning() bool {
	return t.Status == ToolRunning
}

// ArgsString renders the arguments compactly for display.
func (t ToolInvocation) ArgsString() string {
	if len(t.Args) == 0 || string(t.Args) == "null" {
		return ""
	}
	return string(t.Args)
}

// =============================================================================
// MESSAGE TYPE
// =============================================================================

// Message represents a single message in a conversation.
type Message struct {
	// Identity
	ID        string    `json:"id"`
	Role      Role      `json:"role"`
	CreatedAt time.Time `json:"created_at"`

	// Content
	Parts []Part `json:"content"`

	// Streaming path
	Tools          []ToolInvocation `json:"tools,omitempty"`
	IterationCount int              `json:"iteration_count,omitempty"`
	ToolsTotal     int              `json:"tools_total,omitempty"`

	// Non-streaming path
	ToolUsed string `json:"tool_used,omitempty"`

	// Error is set when the turn that produced this message failed.
	Error string `json:"error,omitempty"`
}

// NewMessage creates a message with a fresh ID.
func NewMessage(role Role, parts ...Part) *Message {
	return &Message{
		ID:        generateID(),
		Role:      role,
		CreatedAt: time.Now(),
		Parts:     parts,
	}
}

// NewUserMessage creates a user message from text and an optional image.
// Empty values are left out of the parts.
func NewUserMessage(text, imageURL string) *Message {
	var parts []Part
	if text != "" {
		parts = append(parts, TextPart(text))
	}
	if imageURL != "" {
		parts = append(parts, ImagePart(imageURL))
	}
	return NewMessage(RoleUser, parts...)
}

// Text joins all text parts of the message.
func (m *Message) Text() string {
	var sb strings.Builder
	for _, p := range m.Parts {
		if p.Kind == PartText {
			sb.WriteString(p.Text)
		}
	}
	return sb.String()
}

// Image returns the first image data URL, or "".
func (m *Message) Image() string {
	for _, p := range m.Parts {
		if p.Kind == PartImage {
			return p.ImageURL
		}
	}
	return ""
}

// HasImage reports whether the message carries an image part.
func (m *Message) HasImage() bool {
	return m.Image() != ""
}

// IsUser returns true if this is a user message.
func (m *Message) IsUser() bool {
	return m.Role == RoleUser
}

// IsAssistant returns true if this is an assistant message.
func (m *Message) IsAssistant() bool {
	return m.Role == RoleAssistant
}

// Failed reports whether the turn that produced this message hit an error.
func (m *Message) Failed() bool {
	return m.Error != ""
}

// Preview returns the first maxLen runes of the text on a single line.
func (m *Message) Preview(maxLen int) string {
	text := strings.ReplaceAll(m.Text(), "\n", " ")
	if text == "" && m.HasImage() {
		text = "[image]"
	}
	return util.TruncateRunes(text, maxLen)
}

// textPart returns the message's text part, creating one at the front if
// the message has none yet.
func (m *Message) textPart() *Part {
	for i := range m.Parts {
		if m.Parts[i].Kind == PartText {
			return &m.Parts[i]
		}
	}
	m.Parts = append([]Part{TextPart("")}, m.Parts...)
	return &m.Parts[0]
}

// Clone returns a deep copy of the message.
func (m *Message) Clone() *Message {
	cp := *m
	cp.Parts = append([]Part(nil), m.Parts...)
	if m.Tools != nil {
		cp.Tools = make([]ToolInvocation, len(m.Tools))
		for i, t := range m.Tools {
			t.Args = append(json.RawMessage(nil), t.Args...)
			cp.Tools[i] = t
		}
	}
	return &cp
}

// ToWire converts the message to the backend request shape.
func (m *Message) ToWire() WireMessage {
	parts := m.Parts
	if parts == nil {
		parts = []Part{}
	}
	return WireMessage{Role: m.Role, Content: parts}
}

// =============================================================================
// WIRE FORMAT
// =============================================================================

// WireMessage is a message as the backend expects it in request bodies.
type WireMessage struct {
	Role    Role   `json:"role"`
	Content []Part `json:"content"`
}

func generateID() string {
	return "msg_" + uuid.NewString()
}
