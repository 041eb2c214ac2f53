// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"github.com/jeranaias/streamchat/internal/config"
	"github.com/jeranaias/streamchat/internal/session"
)

// =============================================================================
// TURN MESSAGES
// =============================================================================

// StreamUpdateMsg asks for a redraw because the conversation changed.
type StreamUpdateMsg struct{}

// TurnDoneMsg carries the outcome of a finished turn. Result is nil when
// the turn was refused before it began.
type TurnDoneMsg struct {
	Result *session.Result
	Err    error
}

// =============================================================================
// CONFIG MESSAGES
// =============================================================================

// ConfigReloadedMsg is sent when the config file changed on disk.
type ConfigReloadedMsg struct {
	Config *config.Config
}
