// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"fmt"
	"path/filepath"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/streamchat/internal/model"
	"github.com/jeranaias/streamchat/internal/session"
	"github.com/jeranaias/streamchat/internal/storage"
	"github.com/jeranaias/streamchat/internal/util"
)

// =============================================================================
// SLASH COMMANDS
// =============================================================================

// runCommand executes a "/" line typed into the input.
func (m *Model) runCommand(line string) tea.Cmd {
	name, arg, _ := strings.Cut(strings.TrimPrefix(line, "/"), " ")
	arg = strings.TrimSpace(arg)

	switch strings.ToLower(name) {
	case "help", "h", "?":
		m.showHelp = !m.showHelp
	case "image", "img":
		m.cmdImage(arg)
	case "clear", "c", "new":
		m.cmdClear()
	case "save":
		m.cmdSave()
	case "mode", "m":
		m.cmdMode(arg)
	case "status", "s":
		m.cmdStatus()
	case "quit", "q", "exit":
		return m.quit()
	default:
		m.setNotice(fmt.Sprintf("unknown command: /%s (try /help)", name), true)
	}
	return nil
}

func (m *Model) cmdImage(arg string) {
	conv := m.ctrl.Conversation()
	switch strings.ToLower(arg) {
	case "":
		if conv.Pending().ImageURL != "" {
			m.setNotice("an image is attached to the next message", false)
		} else {
			m.setNotice("usage: /image <path> (or /image none)", false)
		}
		return
	case "none", "clear", "off":
		conv.ClearPendingImage()
		m.setNotice("image removed", false)
		return
	}

	path := strings.Trim(arg, `"'`)
	dataURL, err := util.ImageDataURLFromFile(path)
	if err != nil {
		m.setNotice(err.Error(), true)
		return
	}
	conv.AttachImage(dataURL)
	m.setNotice(filepath.Base(path)+" attached to the next message", false)
}

func (m *Model) cmdClear() {
	if m.busy {
		m.setNotice("wait for the reply to finish", true)
		return
	}
	m.autoSave()
	if err := m.ctrl.SetConversation(model.NewConversation()); err != nil {
		m.setNotice(err.Error(), true)
		return
	}
	m.viewport.GotoTop()
	m.setNotice("new conversation", false)
	m.refresh()
}

func (m *Model) cmdSave() {
	conv := m.ctrl.Conversation()
	if conv.IsEmpty() {
		m.setNotice("nothing to save yet", true)
		return
	}
	if err := m.store.Save(storage.FromConversation(conv)); err != nil {
		m.setNotice("save failed: "+err.Error(), true)
		return
	}
	m.setNotice("saved as "+conv.ID, false)
}

func (m *Model) cmdMode(arg string) {
	mode := session.Mode(strings.ToLower(arg))
	switch mode {
	case "":
		if m.ctrl.Config().Mode == session.ModeOnce {
			mode = session.ModeStream
		} else {
			mode = session.ModeOnce
		}
	case session.ModeStream, session.ModeOnce:
	default:
		m.setNotice("usage: /mode stream|once", true)
		return
	}
	m.ctrl.SetMode(mode)
	m.setNotice(fmt.Sprintf("switched to %s mode", mode), false)
}

func (m *Model) cmdStatus() {
	cfg := m.ctrl.Config()
	conv := m.ctrl.Conversation()
	m.setNotice(fmt.Sprintf("%s | %s | %d messages | %s",
		m.cfg.Server.URL, cfg.Mode, conv.Len(), m.cfg.Storage.Backend), false)
}
