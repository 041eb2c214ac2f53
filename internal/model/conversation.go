// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jeranaias/streamchat/internal/util"
)

// MaxTitleLength bounds titles derived from the first user message.
const MaxTitleLength = 50

var (
	// ErrTurnInProgress is returned when a turn is started while another is
	// still loading.
	ErrTurnInProgress = errors.New("a turn is already in progress")

	// ErrEmptyInput is returned when a turn has neither text nor image.
	ErrEmptyInput = errors.New("nothing to send")

	// ErrMessageFrozen is returned by handle mutations after Close.
	ErrMessageFrozen = errors.New("message is no longer in flight")

	// ErrToolAlreadyDone is returned when completing a finished invocation.
	ErrToolAlreadyDone = errors.New("tool invocation already done")
)

// =============================================================================
// PENDING INPUT
// =============================================================================

// PendingInput is what the user has typed or attached but not yet sent.
type PendingInput struct {
	Text     string
	ImageURL string
}

// IsEmpty reports whether there is nothing worth sending. Whitespace-only
// text counts as empty.
func (p PendingInput) IsEmpty() bool {
	return strings.TrimSpace(p.Text) == "" && p.ImageURL == ""
}

// =============================================================================
// CONVERSATION TYPE
// =============================================================================

// Conversation owns the ordered message list, the loading flag and the
// pending input. All methods are safe for concurrent use.
type Conversation struct {
	ID        string
	Title     string
	CreatedAt time.Time
	UpdatedAt time.Time

	mu       sync.Mutex
	messages []*Message
	loading  bool
	pending  PendingInput
	active   *Handle
}

// NewConversation creates an empty conversation.
func NewConversation() *Conversation {
	now := time.Now()
	return &Conversation{
		ID:        "conv_" + uuid.NewString(),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// RestoreConversation rebuilds a conversation from saved messages. The
// result is idle with no pending input.
func RestoreConversation(id, title string, createdAt, updatedAt time.Time, messages []*Message) *Conversation {
	c := &Conversation{
		ID:        id,
		Title:     title,
		CreatedAt: createdAt,
		UpdatedAt: updatedAt,
	}
	for _, m := range messages {
		c.messages = append(c.messages, m.Clone())
	}
	return c
}

// =============================================================================
// PENDING INPUT
// =============================================================================

// SetPendingText replaces the text waiting to be sent.
func (c *Conversation) SetPendingText(text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pending.Text = text
}

// AttachImage sets the image waiting to be sent. A later attach replaces it.
func (c *Conversation) AttachImage(dataURL string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pending.ImageURL = dataURL
}

// ClearPendingImage drops the attached image.
func (c *Conversation) ClearPendingImage() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pending.ImageURL = ""
}

// Pending returns a copy of the pending input.
func (c *Conversation) Pending() PendingInput {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pending
}

// =============================================================================
// STORE OPERATIONS
// =============================================================================

// AppendUserMessage appends a user message built from parts plus the
// pending image, then clears the pending input. It refuses while a turn is
// loading and when there is neither text nor an image.
func (c *Conversation) AppendUserMessage(parts ...Part) (*Message, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.appendUserLocked(parts)
}

// BeginTurn appends the pending input as a user message and sets loading,
// atomically. The returned message is a snapshot.
func (c *Conversation) BeginTurn() (*Message, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.beginLocked(c.pending.Text, "", false)
}

// BeginTurnWith is BeginTurn for input that did not go through the pending
// buffer. A pending image is still attached when imageURL is empty. A
// refused call leaves the pending input as it was.
func (c *Conversation) BeginTurnWith(text, imageURL string) (*Message, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.beginLocked(text, imageURL, false)
}

// BeginTextTurn is BeginTurn for a backend that only takes text. Input
// without text is refused with ErrEmptyInput even when an image is
// attached, and the pending input is kept.
func (c *Conversation) BeginTextTurn() (*Message, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.beginLocked(c.pending.Text, "", true)
}

// BeginTextTurnWith is BeginTurnWith with the rule of BeginTextTurn.
func (c *Conversation) BeginTextTurnWith(text, imageURL string) (*Message, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.beginLocked(text, imageURL, true)
}

func (c *Conversation) beginLocked(text, imageURL string, textOnly bool) (*Message, error) {
	if textOnly && !c.loading && strings.TrimSpace(text) == "" {
		return nil, ErrEmptyInput
	}
	var parts []Part
	if strings.TrimSpace(text) != "" {
		parts = append(parts, TextPart(text))
	}
	if imageURL != "" {
		parts = append(parts, ImagePart(imageURL))
	}
	msg, err := c.appendUserLocked(parts)
	if err != nil {
		return nil, err
	}
	c.loading = true
	return msg.Clone(), nil
}

func (c *Conversation) appendUserLocked(parts []Part) (*Message, error) {
	if c.loading {
		return nil, ErrTurnInProgress
	}

	var kept []Part
	hasImage := false
	for _, p := range parts {
		switch p.Kind {
		case PartText:
			if strings.TrimSpace(p.Text) != "" {
				kept = append(kept, p)
			}
		case PartImage:
			if p.ImageURL != "" {
				kept = append(kept, p)
				hasImage = true
			}
		}
	}
	if !hasImage && c.pending.ImageURL != "" {
		kept = append(kept, ImagePart(c.pending.ImageURL))
	}
	if len(kept) == 0 {
		return nil, ErrEmptyInput
	}

	msg := NewMessage(RoleUser, kept...)
	c.pending = PendingInput{}
	c.appendLocked(msg)
	if c.Title == "" {
		c.Title = util.TruncateRunes(util.FirstLine(msg.Text()), MaxTitleLength)
	}
	return msg, nil
}

// AppendPlaceholderAssistantMessage appends an empty assistant message and
// returns the handle through which the stream mutates it. Only one handle
// is live at a time; opening a new one closes the previous.
func (c *Conversation) AppendPlaceholderAssistantMessage() *Handle {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.active != nil {
		c.active.closed = true
	}
	msg := NewMessage(RoleAssistant, TextPart(""))
	msg.Tools = []ToolInvocation{}
	c.appendLocked(msg)
	h := &Handle{conv: c, msg: msg}
	c.active = h
	return h
}

// AppendCompletedAssistantMessage appends a fully formed assistant reply.
func (c *Conversation) AppendCompletedAssistantMessage(text, toolUsed string) *Message {
	c.mu.Lock()
	defer c.mu.Unlock()

	msg := NewMessage(RoleAssistant, TextPart(text))
	msg.ToolUsed = toolUsed
	c.appendLocked(msg)
	return msg.Clone()
}

// AppendErrorMessage appends an assistant message whose text is the error
// string, as the non-streaming path does on failure.
func (c *Conversation) AppendErrorMessage(text string, cause error) *Message {
	c.mu.Lock()
	defer c.mu.Unlock()

	msg := NewMessage(RoleAssistant, TextPart(text))
	if cause != nil {
		msg.Error = cause.Error()
	}
	c.appendLocked(msg)
	return msg.Clone()
}

func (c *Conversation) appendLocked(m *Message) {
	c.messages = append(c.messages, m)
	c.UpdatedAt = time.Now()
}

// SetLoading sets the loading flag.
func (c *Conversation) SetLoading(loading bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.loading = loading
}

// Loading reports whether a turn is outstanding.
func (c *Conversation) Loading() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loading
}

// =============================================================================
// READS
// =============================================================================

// Messages returns deep copies of all messages in order.
func (c *Conversation) Messages() []*Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*Message, len(c.messages))
	for i, m := range c.messages {
		out[i] = m.Clone()
	}
	return out
}

// History returns all messages in the backend request shape.
func (c *Conversation) History() []WireMessage {
	c.mu.Lock()
	defer c.mu.Unlock()
	return historyOf(c.messages)
}

// HistoryBefore returns the wire history excluding the last message. The
// non-streaming endpoint takes the new message separately.
func (c *Conversation) HistoryBefore() []WireMessage {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.messages) == 0 {
		return []WireMessage{}
	}
	return historyOf(c.messages[:len(c.messages)-1])
}

func historyOf(msgs []*Message) []WireMessage {
	out := make([]WireMessage, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, m.ToWire())
	}
	return out
}

// Len returns the number of messages.
func (c *Conversation) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.messages)
}

// Last returns a copy of the last message, or nil.
func (c *Conversation) Last() *Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.messages) == 0 {
		return nil
	}
	return c.messages[len(c.messages)-1].Clone()
}

// IsEmpty returns true if the conversation has no messages.
func (c *Conversation) IsEmpty() bool {
	return c.Len() == 0
}

// Clone returns an idle deep copy with the same identity.
func (c *Conversation) Clone() *Conversation {
	c.mu.Lock()
	defer c.mu.Unlock()
	return RestoreConversation(c.ID, c.Title, c.CreatedAt, c.UpdatedAt, c.messages)
}

// =============================================================================
// CONVERSATION SUMMARY
// =============================================================================

// ConversationMeta is the lightweight summary used in listings.
type ConversationMeta struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	Preview      string    `json:"preview"`
	MessageCount int       `json:"message_count"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Meta returns the conversation summary.
func (c *Conversation) Meta() ConversationMeta {
	c.mu.Lock()
	defer c.mu.Unlock()

	preview := ""
	for _, m := range c.messages {
		if m.IsUser() {
			preview = m.Preview(100)
			break
		}
	}
	return ConversationMeta{
		ID:           c.ID,
		Title:        c.Title,
		Preview:      preview,
		MessageCount: len(c.messages),
		CreatedAt:    c.CreatedAt,
		UpdatedAt:    c.UpdatedAt,
	}
}
