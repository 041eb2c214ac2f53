// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package transport is the HTTP client for the chat backend.
//
// Two chat endpoints are supported:
//
//   - POST /api/chat: {message, history} in, {response, tool_used} out
//   - POST /api/chat_stream: {messages} in, server-sent event body out
//
// Health queries GET /health for the doctor command.
//
// SendStream hands back the response body unread so the stream reducer can
// consume it as it arrives. There are no retries. Failures are typed:
// *StatusError for non-2xx replies (matching ErrBadStatus), ErrNetwork for
// connection and read failures, ErrDecode for a reply that is not JSON.
//
// # Usage
//
//	client, err := transport.New("http://localhost:8000",
//	    transport.WithRateLimit(rate.Limit(1), 2))
//	body, err := client.SendStream(ctx, conv.History())
//	defer body.Close()
package transport
