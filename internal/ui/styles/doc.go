// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

/*
Package styles provides the visual styling system for the streamchat TUI
and the colored CLI output.

All colors use Lip Gloss AdaptiveColor for automatic light/dark terminal
detection.

# Color System (colors.go)

  - Purple - Assistant messages and overlays
  - Cyan - Brand color, prompts and commands
  - Emerald - Success, finished tools, stream mode
  - Amber - Warnings, running tools, once mode
  - Rose - Errors and failed turns

Status helpers pair every color with an ASCII indicator ([OK], [X], [!],
[i]) so state stays readable on monochrome terminals.

# Theme (theme.go)

Theme groups the lipgloss styles of the chat screen: header, messages,
tool lines, input and status bar.

	theme := styles.NewTheme()
	line := theme.ToolRunning.Render("⚙ search running")

# Animations (animations.go)

SpinnerConfig describes a frame animation and converts to a bubbles
spinner with Bubbles().
*/
package styles
