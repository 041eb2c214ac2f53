// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package storage provides conversation persistence for streamchat.
//
// # Key Types
//
//   - Store: storage interface implemented by every backend
//   - FileStore: one JSON file per conversation
//   - SQLiteStore: a single SQLite database (modernc.org/sqlite)
//   - StoredConversation: serializable conversation with metadata
//   - ConversationMeta: lightweight metadata for listing
//
// # Usage
//
//	store, err := storage.Open(cfg)
//	err = store.Save(storage.FromConversation(conv))
//
//	metas, err := store.List()
//	sc, err := store.Load(metas[0].ID)
//	conv := sc.ToConversation()
//
// # Storage Location
//
// The file backend writes ~/.streamchat/conversations/<id>.json; the SQLite
// backend writes ~/.streamchat/conversations.db.
package storage
