// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"encoding/json"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/streamchat/internal/config"
	"github.com/jeranaias/streamchat/internal/model"
)

// sampleConversation builds a finished two-turn conversation.
func sampleConversation(t *testing.T, question, answer string) *model.Conversation {
	t.Helper()
	conv := model.NewConversation()
	_, err := conv.BeginTurnWith(question, "")
	require.NoError(t, err)
	h := conv.AppendPlaceholderAssistantMessage()
	require.NoError(t, h.AppendText(answer))
	require.NoError(t, h.AddTool("lookup", json.RawMessage(`{"q":"x"}`)))
	_, err = h.CompleteTool("lookup", "found it", "found it")
	require.NoError(t, err)
	h.Close()
	conv.SetLoading(false)
	return conv
}

type backend struct {
	name string
	open func(t *testing.T) Store
}

func backends() []backend {
	return []backend{
		{"file", func(t *testing.T) Store {
			s, err := NewFileStore(t.TempDir())
			require.NoError(t, err)
			return s
		}},
		{"sqlite", func(t *testing.T) Store {
			s, err := OpenSQLite(filepath.Join(t.TempDir(), "conversations.db"))
			require.NoError(t, err)
			t.Cleanup(func() { s.Close() })
			return s
		}},
	}
}

// =============================================================================
// STORE TESTS
// =============================================================================

func TestStore_SaveAndLoad(t *testing.T) {
	for _, b := range backends() {
		t.Run(b.name, func(t *testing.T) {
			store := b.open(t)
			conv := sampleConversation(t, "What is Go?", "A language.")

			require.NoError(t, store.Save(FromConversation(conv)))

			loaded, err := store.Load(conv.ID)
			require.NoError(t, err)
			assert.Equal(t, conv.ID, loaded.ID)
			assert.Equal(t, "What is Go?", loaded.Title)
			assert.True(t, conv.CreatedAt.Equal(loaded.CreatedAt))
			require.Len(t, loaded.Messages, 2)
			assert.Equal(t, "What is Go?", loaded.Messages[0].Text())
			assert.Equal(t, "A language.", loaded.Messages[1].Text())
			require.Len(t, loaded.Messages[1].Tools, 1)
			assert.Equal(t, model.ToolDone, loaded.Messages[1].Tools[0].Status)

			restored := loaded.ToConversation()
			assert.Equal(t, conv.ID, restored.ID)
			assert.False(t, restored.Loading())
			assert.Equal(t, conv.History(), restored.History())
		})
	}
}

func TestStore_SaveReplaces(t *testing.T) {
	for _, b := range backends() {
		t.Run(b.name, func(t *testing.T) {
			store := b.open(t)
			conv := sampleConversation(t, "first", "one")
			require.NoError(t, store.Save(FromConversation(conv)))

			_, err := conv.BeginTurnWith("second", "")
			require.NoError(t, err)
			conv.AppendCompletedAssistantMessage("two", "")
			conv.SetLoading(false)
			require.NoError(t, store.Save(FromConversation(conv)))

			metas, err := store.List()
			require.NoError(t, err)
			require.Len(t, metas, 1)
			assert.Equal(t, 4, metas[0].MessageCount)
		})
	}
}

func TestStore_LoadNotFound(t *testing.T) {
	for _, b := range backends() {
		t.Run(b.name, func(t *testing.T) {
			store := b.open(t)

			_, err := store.Load("conv_missing")
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrConversationNotFound))

			var ce *ConversationError
			require.ErrorAs(t, err, &ce)
			assert.Equal(t, "conv_missing", ce.ID)

			assert.ErrorIs(t, store.Delete("conv_missing"), ErrConversationNotFound)
		})
	}
}

func TestStore_InvalidID(t *testing.T) {
	for _, b := range backends() {
		t.Run(b.name, func(t *testing.T) {
			store := b.open(t)
			_, err := store.Load("../etc/passwd")
			assert.ErrorIs(t, err, ErrInvalidID)
			assert.ErrorIs(t, store.Save(&StoredConversation{ID: "a/b"}), ErrInvalidID)
		})
	}
}

func TestStore_ListOrderAndSearch(t *testing.T) {
	for _, b := range backends() {
		t.Run(b.name, func(t *testing.T) {
			store := b.open(t)

			older := FromConversation(sampleConversation(t, "Tell me about cats", "Cats purr."))
			older.UpdatedAt = time.Now().Add(-time.Hour)
			newer := FromConversation(sampleConversation(t, "Weather today", "Sunny with 100% chance of fun_stuff."))
			require.NoError(t, store.Save(older))
			require.NoError(t, store.Save(newer))

			metas, err := store.List()
			require.NoError(t, err)
			require.Len(t, metas, 2)
			assert.Equal(t, newer.ID, metas[0].ID)
			assert.Equal(t, older.ID, metas[1].ID)

			// summary
			res, err := store.Search("CATS")
			require.NoError(t, err)
			require.Len(t, res, 1)
			assert.Equal(t, older.ID, res[0].ID)

			// assistant text
			res, err = store.Search("purr")
			require.NoError(t, err)
			require.Len(t, res, 1)

			// LIKE metacharacters are literal
			res, err = store.Search("100%")
			require.NoError(t, err)
			require.Len(t, res, 1)
			assert.Equal(t, newer.ID, res[0].ID)

			res, err = store.Search("nothing matches")
			require.NoError(t, err)
			assert.Empty(t, res)

			res, err = store.Search("")
			require.NoError(t, err)
			assert.Len(t, res, 2)
		})
	}
}

func TestStore_DeleteAndClear(t *testing.T) {
	for _, b := range backends() {
		t.Run(b.name, func(t *testing.T) {
			store := b.open(t)
			a := FromConversation(sampleConversation(t, "a", "1"))
			c := FromConversation(sampleConversation(t, "c", "3"))
			require.NoError(t, store.Save(a))
			require.NoError(t, store.Save(c))

			require.NoError(t, store.Delete(a.ID))
			_, err := store.Load(a.ID)
			assert.ErrorIs(t, err, ErrConversationNotFound)

			require.NoError(t, store.Clear())
			metas, err := store.List()
			require.NoError(t, err)
			assert.Empty(t, metas)
		})
	}
}

func TestFileStore_EnforceLimit(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	require.NoError(t, err)
	store.MaxConversations = 2

	base := time.Now().Add(-time.Hour)
	var ids []string
	for i := 0; i < 3; i++ {
		sc := FromConversation(sampleConversation(t, "q", "a"))
		sc.UpdatedAt = base.Add(time.Duration(i) * time.Minute)
		require.NoError(t, store.Save(sc))
		ids = append(ids, sc.ID)
	}

	metas, err := store.List()
	require.NoError(t, err)
	require.Len(t, metas, 2)
	_, err = store.Load(ids[0])
	assert.ErrorIs(t, err, ErrConversationNotFound)
}

func TestSQLiteStore_EnforceLimit(t *testing.T) {
	store, err := OpenSQLite(filepath.Join(t.TempDir(), "c.db"))
	require.NoError(t, err)
	defer store.Close()
	store.MaxConversations = 1

	first := FromConversation(sampleConversation(t, "first", "a"))
	first.UpdatedAt = time.Now().Add(-time.Minute)
	second := FromConversation(sampleConversation(t, "second", "b"))
	require.NoError(t, store.Save(first))
	require.NoError(t, store.Save(second))

	metas, err := store.List()
	require.NoError(t, err)
	require.Len(t, metas, 1)
	assert.Equal(t, second.ID, metas[0].ID)
}

func TestFileStore_SkipsCorruptFiles(t *testing.T) {
	dir := t.TempDir()
	store, err := NewFileStore(dir)
	require.NoError(t, err)
	require.NoError(t, store.Save(FromConversation(sampleConversation(t, "ok", "fine"))))
	require.NoError(t, writeFile(filepath.Join(dir, "conv_broken.json"), "{not json"))

	metas, err := store.List()
	require.NoError(t, err)
	assert.Len(t, metas, 1)
}

// =============================================================================
// OPEN TESTS
// =============================================================================

func TestOpen(t *testing.T) {
	tests := []struct {
		backend string
		check   func(t *testing.T, s Store)
	}{
		{config.BackendFile, func(t *testing.T, s Store) { assert.IsType(t, &FileStore{}, s) }},
		{config.BackendSQLite, func(t *testing.T, s Store) { assert.IsType(t, &SQLiteStore{}, s) }},
		{config.BackendNone, func(t *testing.T, s Store) { assert.IsType(t, NopStore{}, s) }},
	}

	for _, tt := range tests {
		t.Run(tt.backend, func(t *testing.T) {
			cfg := config.Default()
			cfg.Storage.Backend = tt.backend
			cfg.Storage.Dir = filepath.Join(t.TempDir(), "conversations")

			s, err := Open(cfg)
			require.NoError(t, err)
			defer s.Close()
			tt.check(t, s)

			require.NoError(t, s.Save(FromConversation(sampleConversation(t, "x", "y"))))
		})
	}

	cfg := config.Default()
	cfg.Storage.Backend = "tape"
	cfg.Storage.Dir = t.TempDir()
	_, err := Open(cfg)
	assert.Error(t, err)
}

func TestNopStore(t *testing.T) {
	var s NopStore
	require.NoError(t, s.Save(FromConversation(sampleConversation(t, "x", "y"))))
	metas, err := s.List()
	require.NoError(t, err)
	assert.Empty(t, metas)
	_, err = s.Load("conv_x")
	assert.ErrorIs(t, err, ErrConversationNotFound)
}

// =============================================================================
// STORED CONVERSATION TESTS
// =============================================================================

func TestStoredConversation_Summary(t *testing.T) {
	sc := &StoredConversation{
		Messages: []*model.Message{
			model.NewUserMessage("line one\nline two", ""),
		},
	}
	assert.Equal(t, "line one line two", sc.generateSummary())

	sc = &StoredConversation{}
	assert.Equal(t, "New conversation", sc.generateSummary())

	long := strings.Repeat("é", 80)
	sc = &StoredConversation{Title: long}
	got := sc.generateSummary()
	assert.Len(t, []rune(got), MaxSummaryLength)
	assert.True(t, strings.HasSuffix(got, "..."))
}

func TestStoredConversation_Preview(t *testing.T) {
	sc := &StoredConversation{
		Messages: []*model.Message{
			model.NewUserMessage("", "data:image/png;base64,AAAA"),
			model.NewUserMessage("hello there", ""),
		},
	}
	assert.Equal(t, "hello there", sc.GetPreview())
	assert.Equal(t, 2, sc.MessageCount())
}
