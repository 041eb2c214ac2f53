// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cli provides command-line parsing and the non-TUI commands of
// streamchat.
//
// # Key Types
//
//   - Command: Enumeration of the CLI commands
//   - Args: Parsed command-line arguments with global and command-specific flags
//   - Runtime: Config, logger, store and transport shared by every command
//   - ArgParser: Flag and positional splitting for subcommands
//
// # Usage
//
//	cmd, args := cli.Parse()
//	switch cmd {
//	case cli.CmdAsk:
//	    err = cli.HandleAskCommand(ctx, rt, args)
//	case cli.CmdChat:
//	    err = cli.HandleChatCommand(ctx, rt, args)
//	// ... other commands
//	}
//	os.Exit(cli.GetExitCode(err))
//
// # Commands
//
//   - ask: One question, reply streamed to stdout
//   - chat: Line-mode interactive chat with history
//   - sessions: List, show, export and delete saved conversations
//   - config: Show and edit the configuration
//   - doctor: Health checks
//
// Commands that print structured data accept --json.
package cli
