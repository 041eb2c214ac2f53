// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package components provides the visual UI components for the streamchat TUI.
package components

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/streamchat/internal/ui/styles"
)

// =============================================================================
// STATUS BAR COMPONENT
// =============================================================================

// Status represents the current application status.
type Status int

const (
	StatusReady Status = iota
	StatusStreaming
	StatusError
)

// String returns the display string for the status.
func (s Status) String() string {
	switch s {
	case StatusReady:
		return "Ready"
	case StatusStreaming:
		return "Streaming..."
	case StatusError:
		return "Error"
	default:
		return "Unknown"
	}
}

// Icon returns an icon for the status.
// ACCESSIBILITY: Uses distinct shapes alongside colors for colorblind users
func (s Status) Icon() string {
	switch s {
	case StatusReady:
		return styles.StatusIndicators.Success
	case StatusStreaming:
		return "~"
	case StatusError:
		return styles.StatusIndicators.Error
	default:
		return "?"
	}
}

// Shortcut is one key hint shown on the right of the bar.
type Shortcut struct {
	Key  string
	Desc string
}

// StatusBar is the bottom line of the chat screen.
type StatusBar struct {
	Theme *styles.Theme
	Width int

	Mode     string // "stream" or "once"
	Policy   string
	Messages int
	Status   Status
	HasImage bool

	Notice      string
	NoticeError bool

	Shortcuts []Shortcut
}

// NewStatusBar creates a status bar.
func NewStatusBar(theme *styles.Theme) *StatusBar {
	return &StatusBar{
		Theme:  theme,
		Width:  80,
		Mode:   "stream",
		Status: StatusReady,
	}
}

// SetWidth sets the bar width.
func (s *StatusBar) SetWidth(width int) {
	s.Width = width
}

// SetNotice shows msg until the next call; isErr picks the error style.
func (s *StatusBar) SetNotice(msg string, isErr bool) {
	s.Notice = msg
	s.NoticeError = isErr
}

// View renders the bar. Narrow terminals drop the policy and shortcuts.
func (s *StatusBar) View() string {
	t := s.Theme
	sep := t.Muted.Render(" | ")

	left := []string{s.renderModeBadge(), s.Status.Icon()}
	if s.Width >= 60 && s.Policy != "" {
		left = append(left, "on failure: "+s.Policy)
	}
	left = append(left, fmt.Sprintf("%d msgs", s.Messages))
	if s.HasImage {
		left = append(left, t.Attachment.Render("[img]"))
	}
	if s.Notice != "" {
		style := t.Notice
		if s.NoticeError {
			style = t.NoticeError
		}
		left = append(left, style.Render(s.Notice))
	}
	bar := strings.Join(left, sep)

	if s.Width >= 100 && len(s.Shortcuts) > 0 {
		right := s.renderShortcuts()
		gap := s.Width - lipgloss.Width(bar) - lipgloss.Width(right)
		if gap > 1 {
			bar += strings.Repeat(" ", gap) + right
		}
	}

	return t.StatusBar.Width(s.Width).MaxWidth(s.Width).Render(bar)
}

func (s *StatusBar) renderModeBadge() string {
	if s.Mode == "once" {
		return s.Theme.ModeOnce.Render("ONCE")
	}
	return s.Theme.ModeStream.Render("STREAM")
}

func (s *StatusBar) renderShortcuts() string {
	parts := make([]string, 0, len(s.Shortcuts))
	for _, sc := range s.Shortcuts {
		parts = append(parts, s.Theme.ShortcutKey.Render(sc.Key)+" "+s.Theme.ShortcutDesc.Render(sc.Desc))
	}
	return strings.Join(parts, "  ")
}
