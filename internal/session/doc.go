// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package session runs chat turns: it starts a turn on the conversation,
// calls the backend in the configured mode, feeds a streamed reply through
// the reducer, and applies the failure policy when the request breaks.
//
// # Key Types
//
//   - Controller: runs turns against one conversation
//   - Config: mode (stream or once), failure policy and error prefix
//   - Result: the user and assistant messages a turn produced, plus stats
//
// # Failure Policies
//
//   - keep_partial: leave whatever text arrived, record the error
//   - replace_with_error: replace the text with "<prefix><error>"
//   - append_error: add "<prefix><error>" after the partial text
//
// Once mode always appends a separate error reply.
//
// # Usage
//
//	ctrl := session.NewController(conv, client, session.ConfigFrom(cfg),
//	    session.WithLogger(logger),
//	    session.WithOnChange(redraw))
//	res, err := ctrl.Send(ctx, "hello", "")
package session
