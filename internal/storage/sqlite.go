// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS conversations (
    id TEXT PRIMARY KEY,
    title TEXT NOT NULL,
    summary TEXT NOT NULL,
    preview TEXT NOT NULL,
    message_count INTEGER NOT NULL,
    created_at INTEGER NOT NULL,
    updated_at INTEGER NOT NULL,
    search_text TEXT NOT NULL,
    messages TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_conversations_updated_at ON conversations(updated_at);
`

// =============================================================================
// SQLITE STORE
// =============================================================================

// SQLiteStore keeps conversations in a single SQLite database.
type SQLiteStore struct {
	db   *sql.DB
	path string

	// MaxConversations limits stored conversations (0 = unlimited).
	MaxConversations int
}

// OpenSQLite opens (creating if needed) the database at path.
func OpenSQLite(path string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("create database dir: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite serializes writers; one connection avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set pragma %q: %w", pragma, err)
		}
	}

	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &SQLiteStore{db: db, path: path, MaxConversations: 100}, nil
}

// Path returns the database file path.
func (s *SQLiteStore) Path() string { return s.path }

// Save upserts a conversation.
func (s *SQLiteStore) Save(conv *StoredConversation) error {
	if err := conv.prepare(); err != nil {
		return err
	}

	msgs, err := json.Marshal(conv.Messages)
	if err != nil {
		return err
	}
	meta := conv.Meta()

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.Exec(`
		INSERT INTO conversations
			(id, title, summary, preview, message_count, created_at, updated_at, search_text, messages)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			summary = excluded.summary,
			preview = excluded.preview,
			message_count = excluded.message_count,
			updated_at = excluded.updated_at,
			search_text = excluded.search_text,
			messages = excluded.messages`,
		conv.ID, conv.Title, meta.Summary, meta.Preview, meta.MessageCount,
		conv.CreatedAt.UnixNano(), conv.UpdatedAt.UnixNano(),
		strings.ToLower(conv.searchText()), string(msgs),
	)
	if err != nil {
		return fmt.Errorf("save %s: %w", conv.ID, err)
	}

	if s.MaxConversations > 0 {
		_, err = tx.Exec(`
			DELETE FROM conversations WHERE id NOT IN (
				SELECT id FROM conversations ORDER BY updated_at DESC LIMIT ?
			)`, s.MaxConversations)
		if err != nil {
			return fmt.Errorf("enforce limit: %w", err)
		}
	}

	return tx.Commit()
}

// Load retrieves a conversation by ID.
func (s *SQLiteStore) Load(id string) (*StoredConversation, error) {
	if !validID(id) {
		return nil, ErrInvalidID
	}

	var (
		conv             StoredConversation
		created, updated int64
		msgs             string
	)
	err := s.db.QueryRow(`
		SELECT id, title, summary, created_at, updated_at, messages
		FROM conversations WHERE id = ?`, id,
	).Scan(&conv.ID, &conv.Title, &conv.Summary, &created, &updated, &msgs)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound(id)
	}
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(msgs), &conv.Messages); err != nil {
		return nil, fmt.Errorf("decode %s: %w", id, err)
	}
	conv.CreatedAt = time.Unix(0, created)
	conv.UpdatedAt = time.Unix(0, updated)
	return &conv, nil
}

// List returns all saved conversations, most recent first.
func (s *SQLiteStore) List() ([]ConversationMeta, error) {
	return s.queryMetas(`
		SELECT id, summary, preview, message_count, created_at, updated_at
		FROM conversations ORDER BY updated_at DESC`)
}

// Search matches summary, preview and message text case-insensitively.
func (s *SQLiteStore) Search(query string) ([]ConversationMeta, error) {
	if query == "" {
		return s.List()
	}
	pattern := "%" + escapeLike(strings.ToLower(query)) + "%"
	return s.queryMetas(`
		SELECT id, summary, preview, message_count, created_at, updated_at
		FROM conversations
		WHERE lower(summary) LIKE ?1 ESCAPE '\'
		   OR lower(preview) LIKE ?1 ESCAPE '\'
		   OR search_text LIKE ?1 ESCAPE '\'
		ORDER BY updated_at DESC`, pattern)
}

func (s *SQLiteStore) queryMetas(query string, args ...any) ([]ConversationMeta, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	metas := []ConversationMeta{}
	for rows.Next() {
		var (
			m                ConversationMeta
			created, updated int64
		)
		if err := rows.Scan(&m.ID, &m.Summary, &m.Preview, &m.MessageCount, &created, &updated); err != nil {
			return nil, err
		}
		m.CreatedAt = time.Unix(0, created)
		m.UpdatedAt = time.Unix(0, updated)
		metas = append(metas, m)
	}
	return metas, rows.Err()
}

// Delete removes a conversation by ID.
func (s *SQLiteStore) Delete(id string) error {
	if !validID(id) {
		return ErrInvalidID
	}
	res, err := s.db.Exec(`DELETE FROM conversations WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return notFound(id)
	}
	return nil
}

// Clear removes all saved conversations.
func (s *SQLiteStore) Clear() error {
	_, err := s.db.Exec(`DELETE FROM conversations`)
	return err
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
