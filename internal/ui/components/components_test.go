// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"encoding/json"
	"os"
	"strings"
	"testing"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"github.com/stretchr/testify/assert"

	"github.com/jeranaias/streamchat/internal/model"
	"github.com/jeranaias/streamchat/internal/ui/styles"
)

func TestMain(m *testing.M) {
	lipgloss.SetColorProfile(termenv.Ascii)
	os.Exit(m.Run())
}

func assistant(text string) *model.Message {
	msg := model.NewMessage(model.RoleAssistant)
	if text != "" {
		msg.Parts = []model.Part{model.TextPart(text)}
	}
	return msg
}

func TestMessageBubble_User(t *testing.T) {
	msg := model.NewUserMessage("What is in this picture?", "data:image/png;base64,AAAA")
	b := NewMessageBubble(msg, styles.NewTheme())
	b.ShowTimestamp = false

	out := b.View()
	assert.Contains(t, out, "You")
	assert.Contains(t, out, "What is in this picture?")
	assert.Contains(t, out, "[image]")
}

func TestMessageBubble_AssistantTools(t *testing.T) {
	msg := assistant("The answer is 4.")
	msg.Tools = []model.ToolInvocation{
		{Name: "calc", Args: json.RawMessage(`{"x":"2+2"}`), Status: model.ToolDone, Preview: "4"},
		{Name: "search", Status: model.ToolRunning},
	}
	msg.IterationCount = 2
	b := NewMessageBubble(msg, styles.NewTheme())
	b.ShowTimestamp = false

	out := b.View()
	assert.Contains(t, out, "Assistant")
	assert.Contains(t, out, "✓ calc: 4")
	assert.Contains(t, out, "⚙ search running")
	assert.Contains(t, out, "The answer is 4.")
	assert.Contains(t, out, "(2 rounds)")

	b.ShowTools = false
	assert.NotContains(t, b.View(), "calc")
}

func TestMessageBubble_ErrorAndToolUsed(t *testing.T) {
	msg := assistant("partial")
	msg.Error = "connection reset"
	msg.ToolUsed = "weather"
	b := NewMessageBubble(msg, styles.NewTheme())
	b.ErrorPrefix = "Erreur: "

	out := b.View()
	assert.Contains(t, out, "Erreur: connection reset")
	assert.Contains(t, out, "(tool: weather)")
}

func TestMessageBubble_StreamingPlaceholder(t *testing.T) {
	b := NewMessageBubble(assistant(""), styles.NewTheme())
	b.Streaming = true
	b.Placeholder = "thinking"
	assert.Contains(t, b.View(), "thinking")

	b.Streaming = false
	assert.NotContains(t, b.View(), "thinking")
}

func TestWordWrap(t *testing.T) {
	tests := []struct {
		name  string
		text  string
		width int
		want  string
	}{
		{"fits", "hello world", 20, "hello world"},
		{"wraps at words", "hello big world", 9, "hello big\nworld"},
		{"keeps newlines", "a\nb", 10, "a\nb"},
		{"splits long words", "abcdefghij", 4, "abcd\nefgh\nij"},
		{"wide runes", "日本語 テキスト", 8, "日本語\nテキスト"},
		{"zero width", "as is", 0, "as is"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, wordWrap(tt.text, tt.width))
		})
	}
}

func TestMessageList_View(t *testing.T) {
	ml := NewMessageList(styles.NewTheme())
	ml.Messages = []*model.Message{model.NewUserMessage("hi", ""), assistant("")}
	ml.Loading = true
	ml.Placeholder = "thinking"

	out := ml.View()
	assert.Equal(t, 1, strings.Count(out, "thinking"))
	assert.Less(t, strings.Index(out, "hi"), strings.Index(out, "thinking"))
}

func TestStatusBar_View(t *testing.T) {
	s := NewStatusBar(styles.NewTheme())
	s.SetWidth(120)
	s.Policy = "keep_partial"
	s.Messages = 3
	s.HasImage = true
	s.Shortcuts = []Shortcut{{Key: "Esc", Desc: "quit"}}
	s.SetNotice("saved", false)

	out := s.View()
	assert.Contains(t, out, "STREAM")
	assert.Contains(t, out, "on failure: keep_partial")
	assert.Contains(t, out, "3 msgs")
	assert.Contains(t, out, "[img]")
	assert.Contains(t, out, "saved")
	assert.Contains(t, out, "Esc quit")

	s.Mode = "once"
	s.SetWidth(50)
	out = s.View()
	assert.Contains(t, out, "ONCE")
	assert.NotContains(t, out, "on failure")
	assert.NotContains(t, out, "Esc quit")
}

func TestStatus_Icon(t *testing.T) {
	assert.Equal(t, "[OK]", StatusReady.Icon())
	assert.Equal(t, "[X]", StatusError.Icon())
	assert.Equal(t, "Streaming...", StatusStreaming.String())
}
