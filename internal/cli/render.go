// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// render.go - Incremental printing of an assistant message as it streams.

package cli

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/jeranaias/streamchat/internal/model"
	"github.com/jeranaias/streamchat/internal/ui/components"
	"github.com/jeranaias/streamchat/internal/util"
)

// Tool status glyphs, the same as the TUI's.
const (
	glyphToolRunning = components.GlyphToolRunning
	glyphToolDone    = components.GlyphToolDone
)

// streamPrinter writes the difference between successive snapshots of the
// in-flight message, so deltas appear as they arrive.
type streamPrinter struct {
	w         io.Writer
	showTools bool
	label     bool // print the "Assistant:" label before the first output

	msgID     string
	text      string
	toolsSeen int
	toolsDone map[int]bool
	midLine   bool
	started   bool
}

func newStreamPrinter(w io.Writer, showTools, label bool) *streamPrinter {
	return &streamPrinter{w: w, showTools: showTools, label: label, toolsDone: map[int]bool{}}
}

// Update prints whatever m has gained since the last call.
func (p *streamPrinter) Update(m *model.Message) {
	if m == nil || !m.IsAssistant() {
		return
	}
	if m.ID != p.msgID {
		p.reset(m.ID)
	}

	if p.showTools {
		for i, t := range m.Tools {
			if i >= p.toolsSeen {
				p.line(toolRunningStyle.Render(toolRunningLine(t)))
				p.toolsSeen = i + 1
			}
			if !t.IsRunning() && !p.toolsDone[i] {
				p.line(toolDoneStyle.Render(toolDoneLine(t)))
				p.toolsDone[i] = true
			}
		}
	}

	text := m.Text()
	switch {
	case text == p.text:
	case strings.HasPrefix(text, p.text):
		p.write(text[len(p.text):])
	default:
		// Replaced wholesale (failure policy); start over on a new line.
		p.line("")
		p.write(text)
	}
	p.text = text
}

// Finish ends the message: closes the line and reports the error or the
// tool used, if any.
func (p *streamPrinter) Finish(m *model.Message, errorPrefix string) {
	if m != nil {
		p.Update(m)
		if m.ToolUsed != "" && p.showTools {
			p.line(DimStyle.Render("(tool: " + m.ToolUsed + ")"))
		}
		if m.Failed() && !strings.Contains(m.Text(), m.Error) {
			p.line(ErrorStyle.Render(errorPrefix + m.Error))
		}
	}
	if p.midLine {
		fmt.Fprintln(p.w)
		p.midLine = false
	}
}

func (p *streamPrinter) reset(id string) {
	if p.midLine {
		fmt.Fprintln(p.w)
	}
	*p = streamPrinter{w: p.w, showTools: p.showTools, label: p.label, msgID: id, toolsDone: map[int]bool{}}
}

func (p *streamPrinter) begin() {
	if p.started {
		return
	}
	p.started = true
	if p.label {
		fmt.Fprintln(p.w, assistantLabelStyle.Render(model.RoleAssistant.DisplayName()+":"))
	}
}

func (p *streamPrinter) write(s string) {
	if s == "" {
		return
	}
	p.begin()
	io.WriteString(p.w, s)
	p.midLine = !strings.HasSuffix(s, "\n")
}

// line prints s on a line of its own.
func (p *streamPrinter) line(s string) {
	p.begin()
	if p.midLine {
		fmt.Fprintln(p.w)
		p.midLine = false
	}
	if s != "" {
		fmt.Fprintln(p.w, s)
	}
}

func toolRunningLine(t model.ToolInvocation) string {
	line := glyphToolRunning + " " + t.Name
	if args := t.ArgsString(); args != "" && args != "{}" {
		line += " " + util.TruncateRunes(args, 60)
	}
	return line + " running"
}

func toolDoneLine(t model.ToolInvocation) string {
	preview := strings.ReplaceAll(t.Preview, "\n", " ")
	if preview == "" {
		return glyphToolDone + " " + t.Name
	}
	return glyphToolDone + " " + t.Name + ": " + preview
}

// =============================================================================
// TRANSCRIPT FORMATTING
// =============================================================================

// writeTranscript prints every message of a conversation for /history and
// sessions show. maxLen truncates message text; 0 prints it whole.
func writeTranscript(w io.Writer, msgs []*model.Message, maxLen int) {
	for i, m := range msgs {
		label := userLabelStyle.Render(m.Role.DisplayName())
		if m.IsAssistant() {
			label = assistantLabelStyle.Render(m.Role.DisplayName())
		}

		text := m.Text()
		if maxLen > 0 {
			text = m.Preview(maxLen)
		}
		if m.HasImage() {
			text = DimStyle.Render("[image]") + " " + text
		}
		fmt.Fprintf(w, "  %d. %s %s: %s\n", i+1, DimStyle.Render(m.CreatedAt.Format("15:04")), label, text)

		for _, t := range m.Tools {
			if t.IsRunning() {
				fmt.Fprintf(w, "       %s\n", toolRunningStyle.Render(toolRunningLine(t)))
			} else {
				fmt.Fprintf(w, "       %s\n", toolDoneStyle.Render(toolDoneLine(t)))
			}
		}
		if m.Failed() {
			fmt.Fprintf(w, "       %s\n", ErrorStyle.Render("error: "+m.Error))
		}
	}
}

// formatDurationShort formats a short duration string.
func formatDurationShort(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	m := int(d.Minutes())
	s := int(d.Seconds()) % 60
	return fmt.Sprintf("%dm%ds", m, s)
}
