// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/jeranaias/streamchat/internal/config"
	"github.com/jeranaias/streamchat/internal/model"
	"github.com/jeranaias/streamchat/internal/util"
)

// MaxSummaryLength bounds the generated summary of a stored conversation.
const MaxSummaryLength = 50

// PreviewLength bounds the preview shown in listings.
const PreviewLength = 80

// =============================================================================
// STORE INTERFACE
// =============================================================================

// Store persists conversations.
type Store interface {
	// Save writes the conversation, replacing any earlier copy with the same ID.
	Save(conv *StoredConversation) error

	// Load returns the conversation or ErrConversationNotFound.
	Load(id string) (*StoredConversation, error)

	// List returns summaries, most recently updated first.
	List() ([]ConversationMeta, error)

	// Search matches the query case-insensitively against the summary,
	// the preview and the text of every message.
	Search(query string) ([]ConversationMeta, error)

	Delete(id string) error
	Clear() error
	Close() error
}

// Open returns the store selected by cfg. Backend "none" yields a store
// that keeps nothing.
func Open(cfg *config.Config) (Store, error) {
	if cfg.Storage.Backend == config.BackendNone {
		return NopStore{}, nil
	}

	dir, err := cfg.StorageDir()
	if err != nil {
		return nil, err
	}

	switch cfg.Storage.Backend {
	case config.BackendSQLite:
		s, err := OpenSQLite(filepath.Join(filepath.Dir(dir), "conversations.db"))
		if err != nil {
			return nil, err
		}
		s.MaxConversations = cfg.Storage.MaxConversations
		return s, nil
	case config.BackendFile, "":
		s, err := NewFileStore(dir)
		if err != nil {
			return nil, err
		}
		s.MaxConversations = cfg.Storage.MaxConversations
		return s, nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
	}
}

// =============================================================================
// STORED CONVERSATION TYPE
// =============================================================================

// StoredConversation is the persisted form of a conversation.
type StoredConversation struct {
	ID        string           `json:"id"`
	Title     string           `json:"title"`
	Summary   string           `json:"summary"`
	CreatedAt time.Time        `json:"created_at"`
	UpdatedAt time.Time        `json:"updated_at"`
	Messages  []*model.Message `json:"messages"`
}

// ConversationMeta contains metadata for listing conversations.
type ConversationMeta struct {
	ID           string    `json:"id"`
	Summary      string    `json:"summary"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
	MessageCount int       `json:"message_count"`
	Preview      string    `json:"preview"`
}

// FromConversation snapshots a live conversation.
func FromConversation(conv *model.Conversation) *StoredConversation {
	snap := conv.Clone()
	sc := &StoredConversation{
		ID:        snap.ID,
		Title:     snap.Title,
		CreatedAt: snap.CreatedAt,
		UpdatedAt: snap.UpdatedAt,
		Messages:  snap.Messages(),
	}
	sc.Summary = sc.generateSummary()
	return sc
}

// ToConversation rebuilds an idle conversation from the stored copy.
func (c *StoredConversation) ToConversation() *model.Conversation {
	return model.RestoreConversation(c.ID, c.Title, c.CreatedAt, c.UpdatedAt, c.Messages)
}

// Meta returns the listing summary.
func (c *StoredConversation) Meta() ConversationMeta {
	summary := c.Summary
	if summary == "" {
		summary = c.generateSummary()
	}
	return ConversationMeta{
		ID:           c.ID,
		Summary:      summary,
		CreatedAt:    c.CreatedAt,
		UpdatedAt:    c.UpdatedAt,
		MessageCount: len(c.Messages),
		Preview:      c.GetPreview(),
	}
}

// GetPreview returns the first user message, truncated.
func (c *StoredConversation) GetPreview() string {
	for _, msg := range c.Messages {
		if msg.IsUser() && msg.Text() != "" {
			return msg.Preview(PreviewLength)
		}
	}
	return ""
}

// MessageCount returns the number of messages in the conversation.
func (c *StoredConversation) MessageCount() int {
	return len(c.Messages)
}

func (c *StoredConversation) generateSummary() string {
	if c.Title != "" {
		return util.TruncateRunes(c.Title, MaxSummaryLength)
	}
	for _, msg := range c.Messages {
		if msg.IsUser() && msg.Text() != "" {
			s := strings.ReplaceAll(msg.Text(), "\r", "")
			s = strings.ReplaceAll(s, "\n", " ")
			return util.TruncateRunes(s, MaxSummaryLength)
		}
	}
	return "New conversation"
}

// matches reports whether query (already lowercased) occurs in the
// summary, the preview or any message text.
func (c *StoredConversation) matches(query string) bool {
	if query == "" {
		return true
	}
	meta := c.Meta()
	if strings.Contains(strings.ToLower(meta.Summary), query) ||
		strings.Contains(strings.ToLower(meta.Preview), query) {
		return true
	}
	return strings.Contains(strings.ToLower(c.searchText()), query)
}

// searchText concatenates the text of every message. Image data is left out.
func (c *StoredConversation) searchText() string {
	var sb strings.Builder
	for _, msg := range c.Messages {
		if t := msg.Text(); t != "" {
			sb.WriteString(t)
			sb.WriteByte('\n')
		}
	}
	return sb.String()
}

// prepare fills the generated fields before a write.
func (c *StoredConversation) prepare() error {
	if !validID(c.ID) {
		return ErrInvalidID
	}
	if c.Summary == "" {
		c.Summary = c.generateSummary()
	}
	if c.UpdatedAt.IsZero() {
		c.UpdatedAt = time.Now()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = c.UpdatedAt
	}
	return nil
}

var idPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,128}$`)

func validID(id string) bool {
	return idPattern.MatchString(id)
}

// =============================================================================
// ERRORS
// =============================================================================

// ErrConversationNotFound is returned when a conversation doesn't exist.
// Use errors.Is(err, ErrConversationNotFound) to check for this error.
var ErrConversationNotFound = &ConversationError{Message: "conversation not found"}

// ErrInvalidID is returned for IDs that cannot name a stored conversation.
var ErrInvalidID = &ConversationError{Message: "invalid conversation id"}

// ConversationError represents a conversation-related error.
type ConversationError struct {
	Message string
	ID      string
}

// Error implements the error interface.
func (e *ConversationError) Error() string {
	if e.ID != "" {
		return e.Message + ": " + e.ID
	}
	return e.Message
}

// Is matches on Message so errors carrying an ID still compare equal.
func (e *ConversationError) Is(target error) bool {
	t, ok := target.(*ConversationError)
	if !ok {
		return false
	}
	return e.Message == t.Message
}

func notFound(id string) error {
	return &ConversationError{Message: ErrConversationNotFound.Message, ID: id}
}

// =============================================================================
// NOP STORE
// =============================================================================

// NopStore discards saves and never finds anything.
type NopStore struct{}

func (NopStore) Save(*StoredConversation) error { return nil }

func (NopStore) Load(id string) (*StoredConversation, error) { return nil, notFound(id) }

func (NopStore) List() ([]ConversationMeta, error) { return []ConversationMeta{}, nil }

func (NopStore) Search(string) ([]ConversationMeta, error) { return []ConversationMeta{}, nil }

func (NopStore) Delete(id string) error { return notFound(id) }

func (NopStore) Clear() error { return nil }

func (NopStore) Close() error { return nil }
