// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the conversation store: messages, their content
// parts and tool invocations, and the loading guard that keeps one turn in
// flight at a time.
//
// # Key Types
//
//   - Conversation: ordered messages, loading flag and pending input
//   - Message: role, content parts (text or image data URL), tool invocations
//   - Handle: the active message handle for a streaming reply
//   - ToolInvocation: name, args, running/done status, result and preview
//
// # Usage
//
//	conv := model.NewConversation()
//	conv.SetPendingText("hello")
//	if _, err := conv.BeginTurn(); err != nil {
//	    return err // ErrTurnInProgress or ErrEmptyInput
//	}
//	h := conv.AppendPlaceholderAssistantMessage()
//	h.AppendText("Hi")
//	h.Close()
//	conv.SetLoading(false)
package model
