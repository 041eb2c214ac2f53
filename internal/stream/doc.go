// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package stream turns a server-sent event body into mutations of the
// in-flight assistant message.
//
// The body is a sequence of `data: <json>` lines separated by blank lines.
// Chunks may split a record anywhere, including inside a multi-byte rune;
// the Decoder carries the trailing partial line between chunks and only
// decodes complete lines. Lines without the `data: ` prefix are discarded,
// and records that fail to decode are logged and skipped without stopping
// the stream.
//
// # Event Types
//
//   - iteration_start: sets the iteration count
//   - text_delta: appends content to the message text
//   - tools_start: records the advisory tool count
//   - tool_call: appends a running tool invocation
//   - tool_result: completes the oldest running invocation with that name
//   - tools_end: no state change
//   - error: records the backend's error message on the message
//   - done: ends consumption
//
// The older names tool_start, tool_log and tool_end are accepted as
// tools_start, tool_call and tools_end.
//
// # Usage
//
//	h := conv.AppendPlaceholderAssistantMessage()
//	defer h.Close()
//	stats, err := stream.NewReducer(logger).Consume(ctx, body, h)
package stream
