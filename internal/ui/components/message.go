// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"github.com/jeranaias/streamchat/internal/model"
	"github.com/jeranaias/streamchat/internal/ui/styles"
)

// Tool line glyphs, shared with the line REPL.
const (
	GlyphToolRunning = "⚙"
	GlyphToolDone    = "✓"
)

// =============================================================================
// MESSAGE BUBBLE COMPONENT
// =============================================================================

// MessageBubble renders one conversation message.
type MessageBubble struct {
	Message *model.Message
	Theme   *styles.Theme
	Width   int

	// Streaming marks the assistant message of the turn in flight.
	Streaming bool

	// Placeholder is drawn while a streaming message has no text yet.
	Placeholder string

	ErrorPrefix   string
	ShowTools     bool
	ShowTimestamp bool
}

// NewMessageBubble creates a bubble with tools and timestamps shown.
func NewMessageBubble(msg *model.Message, theme *styles.Theme) *MessageBubble {
	return &MessageBubble{
		Message:       msg,
		Theme:         theme,
		Width:         80,
		ShowTools:     true,
		ShowTimestamp: true,
	}
}

// View renders the bubble.
func (b *MessageBubble) View() string {
	if b.Message == nil {
		return ""
	}
	if b.Message.IsUser() {
		return b.renderUser()
	}
	return b.renderAssistant()
}

func (b *MessageBubble) contentWidth() int {
	w := b.Width - 2 // border and padding
	if w < 20 {
		w = 20
	}
	return w
}

func (b *MessageBubble) header(label lipgloss.Style) string {
	h := label.Render(b.Message.Role.DisplayName())
	if b.ShowTimestamp && !b.Message.CreatedAt.IsZero() {
		h += " " + b.Theme.Timestamp.Render(formatTime(b.Message.CreatedAt))
	}
	return h
}

func (b *MessageBubble) renderUser() string {
	t := b.Theme
	var body []string
	if text := b.Message.Text(); text != "" {
		body = append(body, wordWrap(text, b.contentWidth()-1))
	}
	if b.Message.HasImage() {
		body = append(body, t.Attachment.Render("[image]"))
	}
	if len(body) == 0 {
		body = append(body, "...")
	}
	return lipgloss.JoinVertical(lipgloss.Left,
		b.header(t.UserLabel),
		t.UserText.Render(strings.Join(body, "\n")),
	)
}

func (b *MessageBubble) renderAssistant() string {
	t := b.Theme
	msg := b.Message
	var body []string

	if b.ShowTools {
		for _, tool := range msg.Tools {
			body = append(body, b.renderTool(tool))
		}
	}

	text := msg.Text()
	switch {
	case text != "":
		body = append(body, wordWrap(text, b.contentWidth()-1))
	case b.Streaming && b.Placeholder != "":
		body = append(body, t.Muted.Render(b.Placeholder))
	}

	if msg.Failed() && !strings.Contains(text, msg.Error) {
		body = append(body, t.MessageError.Render(b.ErrorPrefix+msg.Error))
	}

	var meta []string
	if msg.ToolUsed != "" {
		meta = append(meta, "tool: "+msg.ToolUsed)
	}
	if msg.IterationCount > 1 {
		meta = append(meta, fmt.Sprintf("%d rounds", msg.IterationCount))
	}
	if len(meta) > 0 {
		body = append(body, t.Iteration.Render("("+strings.Join(meta, ", ")+")"))
	}

	if len(body) == 0 {
		body = append(body, "...")
	}
	return lipgloss.JoinVertical(lipgloss.Left,
		b.header(t.AssistantLabel),
		t.AssistantText.Render(strings.Join(body, "\n")),
	)
}

func (b *MessageBubble) renderTool(tool model.ToolInvocation) string {
	t := b.Theme
	if tool.IsRunning() {
		line := GlyphToolRunning + " " + tool.Name
		if args := tool.ArgsString(); args != "" {
			line += " " + args
		}
		line = runewidth.Truncate(line+" running", b.contentWidth()-1, "...")
		return t.ToolRunning.Render(line)
	}
	line := t.ToolDone.Render(GlyphToolDone + " " + tool.Name)
	if tool.Preview != "" {
		preview := runewidth.Truncate(tool.Preview, b.contentWidth()-runewidth.StringWidth(tool.Name)-5, "...")
		line += ": " + t.ToolPreview.Render(preview)
	}
	return line
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

// wordWrap wraps text at word boundaries, measuring display columns.
func wordWrap(text string, width int) string {
	if width <= 0 {
		return text
	}
	var result strings.Builder
	for i, line := range strings.Split(text, "\n") {
		if i > 0 {
			result.WriteByte('\n')
		}
		if runewidth.StringWidth(line) <= width {
			result.WriteString(line)
			continue
		}
		col := 0
		for j, word := range strings.Fields(line) {
			w := runewidth.StringWidth(word)
			if j > 0 {
				if col+1+w > width {
					result.WriteByte('\n')
					col = 0
				} else {
					result.WriteByte(' ')
					col++
				}
			}
			for w > width {
				head := runewidth.Truncate(word, width, "")
				result.WriteString(head)
				result.WriteByte('\n')
				word = strings.TrimPrefix(word, head)
				w = runewidth.StringWidth(word)
			}
			result.WriteString(word)
			col += w
		}
	}
	return result.String()
}

// formatTime shows the clock time for today and the date otherwise.
func formatTime(t time.Time) string {
	now := time.Now()
	if t.Year() == now.Year() && t.YearDay() == now.YearDay() {
		return t.Format("15:04")
	}
	return t.Format("Jan 2 15:04")
}

// =============================================================================
// MESSAGE LIST
// =============================================================================

// MessageList renders a whole conversation.
type MessageList struct {
	Messages []*model.Message
	Theme    *styles.Theme
	Width    int

	// Loading marks the last assistant message as streaming.
	Loading     bool
	Placeholder string
	ErrorPrefix string
	ShowTools   bool
}

// NewMessageList creates an empty list.
func NewMessageList(theme *styles.Theme) *MessageList {
	return &MessageList{Theme: theme, Width: 80, ShowTools: true}
}

// View renders every message separated by a blank line.
func (ml *MessageList) View() string {
	parts := make([]string, 0, len(ml.Messages))
	for i, msg := range ml.Messages {
		b := NewMessageBubble(msg, ml.Theme)
		b.Width = ml.Width
		b.ErrorPrefix = ml.ErrorPrefix
		b.ShowTools = ml.ShowTools
		b.Streaming = ml.Loading && i == len(ml.Messages)-1 && msg.IsAssistant()
		b.Placeholder = ml.Placeholder
		parts = append(parts, b.View())
	}
	return strings.Join(parts, "\n\n")
}
