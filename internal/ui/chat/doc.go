// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package chat implements the full-screen chat interface.
//
// The Model wraps a session.Controller. Enter submits the input as a turn
// that runs in its own goroutine; the controller's change callback wakes
// the program with StreamUpdateMsg (throttled to about 30 redraws a
// second) and the finished turn arrives as TurnDoneMsg. Lines starting with
// "/" are commands:
//
//	/image <path>   attach an image to the next message (/image none clears)
//	/clear          start a new conversation
//	/save           save the conversation now
//	/mode [m]       switch between stream and once
//	/status         show connection and conversation details
//	/help           toggle the help panel
//	/quit           leave
//
// Esc or Ctrl+C quits, cancelling a turn still in flight.
package chat
