// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/streamchat/internal/session"
	"github.com/jeranaias/streamchat/internal/ui/components"
)

// View implements tea.Model.
func (m *Model) View() string {
	if m.quitting {
		return ""
	}
	if !m.ready {
		return "Initializing..."
	}

	body := m.viewport.View()
	if m.showHelp {
		body = lipgloss.Place(m.width, m.viewport.Height, lipgloss.Center, lipgloss.Center, m.renderHelp())
	}
	return lipgloss.JoinVertical(lipgloss.Left,
		m.renderHeader(),
		body,
		m.renderInput(),
		m.renderStatusBar(),
	)
}

func (m *Model) renderHeader() string {
	t := m.theme
	subtitle := m.cfg.Server.URL
	if title := m.ctrl.Conversation().Meta().Title; title != "" {
		subtitle += " - " + title
	}
	line := t.HeaderBrand.Render("streamchat") + " " + t.HeaderSubtitle.Render(subtitle)
	return t.Header.Width(m.width).MaxWidth(m.width).Render(line)
}

// renderConversation draws every message for the viewport.
func (m *Model) renderConversation() string {
	conv := m.ctrl.Conversation()
	msgs := conv.Messages()
	if len(msgs) == 0 {
		return m.theme.Muted.Render("No messages yet. Type below and press Enter.")
	}

	list := components.NewMessageList(m.theme)
	list.Messages = msgs
	list.Width = m.width - 1
	list.Loading = conv.Loading()
	list.Placeholder = "thinking..."
	list.ErrorPrefix = m.ctrl.Config().ErrorPrefix
	list.ShowTools = m.cfg.UI.ShowTools
	return list.View()
}

func (m *Model) renderInput() string {
	line := m.input.View()
	if m.busy {
		line = m.spinner.View() + " " + m.theme.Muted.Render("waiting for the reply...")
	}
	return m.theme.InputContainer.Width(m.width).Render(line)
}

func (m *Model) renderStatusBar() string {
	conv := m.ctrl.Conversation()
	cfg := m.ctrl.Config()

	s := m.statusBar
	s.Mode = string(session.ModeStream)
	if cfg.Mode == session.ModeOnce {
		s.Mode = string(session.ModeOnce)
	}
	s.Policy = string(cfg.Policy)
	s.Messages = conv.Len()
	s.HasImage = conv.Pending().ImageURL != ""
	s.SetNotice(m.notice, m.noticeErr)
	return s.View()
}

func (m *Model) renderHelp() string {
	t := m.theme
	var b strings.Builder
	b.WriteString(t.HelpTitle.Render("Keys"))
	b.WriteString("\n")
	for _, group := range m.keys.FullHelp() {
		for _, k := range group {
			h := k.Help()
			b.WriteString(t.ShortcutKey.Render(padRight(h.Key, 10)) + t.ShortcutDesc.Render(h.Desc) + "\n")
		}
	}
	b.WriteString("\n")
	b.WriteString(t.HelpTitle.Render("Commands"))
	b.WriteString("\n")
	for _, c := range commandHelp {
		b.WriteString(t.ShortcutKey.Render(padRight(c[0], 16)) + t.ShortcutDesc.Render(c[1]) + "\n")
	}
	return t.HelpBox.Render(strings.TrimRight(b.String(), "\n"))
}

var commandHelp = [][2]string{
	{"/image <path>", "attach an image to the next message"},
	{"/image none", "remove the attached image"},
	{"/clear", "start a new conversation"},
	{"/save", "save the conversation"},
	{"/mode [m]", "stream or once (toggles without m)"},
	{"/status", "connection and conversation details"},
	{"/help", "toggle this panel"},
	{"/quit", "leave"},
}

func padRight(s string, n int) string {
	if w := lipgloss.Width(s); w < n {
		return s + strings.Repeat(" ", n-w)
	}
	return s + " "
}
