// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"errors"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/streamchat/internal/config"
)

// Run shows the chat screen until the user quits or ctx is cancelled. The
// conversation is saved on the way out when auto-save is on.
func Run(ctx context.Context, opts Options) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	m := New(ctx, opts)
	p := tea.NewProgram(m,
		tea.WithAltScreen(),
		tea.WithMouseCellMotion(),
		tea.WithContext(ctx),
	)
	m.SetProgram(p)

	if opts.ConfigPath != "" {
		err := config.Watch(ctx, opts.ConfigPath, m.logger, func(cfg *config.Config) {
			p.Send(ConfigReloadedMsg{Config: cfg})
		})
		if err != nil {
			m.logger.Warn("config reload disabled", "path", opts.ConfigPath, "error", err)
		}
	}

	_, err := p.Run()

	// Stop a turn still running (ctx cancelled from outside) and wait so
	// the saved conversation is complete.
	cancel()
	m.Wait()
	m.throttle.Stop()
	m.autoSave()

	if errors.Is(err, tea.ErrProgramKilled) {
		return nil
	}
	return err
}
