// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/jeranaias/streamchat/internal/model"
)

// ChatRequest is the body of POST /api/chat.
type ChatRequest struct {
	Message string              `json:"message"`
	History []model.WireMessage `json:"history"`
}

// StreamRequest is the body of POST /api/chat_stream. Messages includes
// the new user turn.
type StreamRequest struct {
	Messages []model.WireMessage `json:"messages"`
}

// Reply is the body returned by POST /api/chat.
type Reply struct {
	Response string `json:"response"`
	ToolUsed string `json:"tool_used,omitempty"`
}

// SendOnce posts message and history to the non-streaming endpoint and
// decodes the reply.
func (c *Client) SendOnce(ctx context.Context, message string, history []model.WireMessage) (*Reply, error) {
	if history == nil {
		history = []model.WireMessage{}
	}
	resp, err := c.post(ctx, ChatPath, ChatRequest{Message: message, History: history}, "application/json")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, MaxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("%w: reading reply: %v", ErrNetwork, err)
	}

	var reply Reply
	if err := json.Unmarshal(data, &reply); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	return &reply, nil
}

// SendStream posts the full history to the streaming endpoint and returns
// the response body unread. The caller must close it.
func (c *Client) SendStream(ctx context.Context, history []model.WireMessage) (io.ReadCloser, error) {
	if history == nil {
		history = []model.WireMessage{}
	}
	resp, err := c.post(ctx, ChatStreamPath, StreamRequest{Messages: history}, "text/event-stream")
	if err != nil {
		return nil, err
	}
	return &streamBody{rc: resp.Body}, nil
}

// streamBody tags read failures from the response body as network errors.
type streamBody struct {
	rc io.ReadCloser
}

func (b *streamBody) Read(p []byte) (int, error) {
	n, err := b.rc.Read(p)
	if err != nil && err != io.EOF {
		err = fmt.Errorf("%w: %w", ErrNetwork, err)
	}
	return n, err
}

func (b *streamBody) Close() error {
	return b.rc.Close()
}
