// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// cli.go - CLI parsing for streamchat.
package cli

import (
	"fmt"
	"io"
	"os"
	"strings"
)

// Version information (can be overridden at build time)
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// Command represents the CLI command to execute.
type Command int

const (
	CmdTUI Command = iota
	CmdChat
	CmdAsk
	CmdSessions
	CmdConfig
	CmdDoctor
	CmdVersion
	CmdHelp
)

// String returns the command name as typed.
func (c Command) String() string {
	switch c {
	case CmdTUI:
		return "tui"
	case CmdChat:
		return "chat"
	case CmdAsk:
		return "ask"
	case CmdSessions:
		return "sessions"
	case CmdConfig:
		return "config"
	case CmdDoctor:
		return "doctor"
	case CmdVersion:
		return "version"
	case CmdHelp:
		return "help"
	default:
		return "unknown"
	}
}

// Args holds parsed CLI arguments.
type Args struct {
	// Global flags
	Quiet      bool
	Verbose    bool
	JSON       bool
	ConfigFile string
	ServerURL  string
	Mode       string // stream or once, overrides config

	// Command-specific
	Query      string
	ImagePath  string
	Subcommand string
	ConfigKey  string
	ConfigVal  string

	// Raw args (remaining after flag parsing)
	Raw []string
}

const usageText = `streamchat - terminal client for a streaming agent chat backend

Usage:
  streamchat                         Start the TUI (default)
  streamchat chat                    Line-mode interactive chat
  streamchat ask "question"          Ask a single question
  streamchat sessions [subcommand]   Saved conversation management
  streamchat config [subcommand]     Configuration
  streamchat doctor                  Check config, storage and server
  streamchat version                 Show version
  streamchat help                    Show this help

Ask:
  streamchat ask "What is in this picture?" --image cat.png
  streamchat ask "Hello" --once      Use the non-streaming endpoint

Sessions:
  streamchat sessions list           List saved conversations (alias: ls)
    --search TEXT                    Only conversations mentioning TEXT
  streamchat sessions show <id|n>    Print a conversation
  streamchat sessions export <id|n>  Export a conversation
    --format md|json                 Export format (default: md)
    -o, --output FILE                Write to FILE instead of stdout
  streamchat sessions delete <id|n>  Delete a conversation
  streamchat sessions clear --confirm
                                     Delete every saved conversation

Config:
  streamchat config show             Show the effective configuration
  streamchat config get <key>        Print one value (e.g. server.url)
  streamchat config set <key> <val>  Set and save a value
  streamchat config path             Show the config file location

Chat commands (chat and TUI):
  /image <path>   Attach an image to the next message
  /clear          Start a new conversation
  /save           Save the conversation
  /history        List the messages so far
  /mode stream|once
  /status         Show connection and conversation status
  /help           Show commands
  /quit           Exit

Global Flags:
  --server URL    Backend base URL (default http://localhost:8000)
  --once          Use the non-streaming endpoint
  --stream        Use the streaming endpoint
  --config FILE   Read configuration from FILE
  --json          JSON output where supported
  -q, --quiet     Minimal output
  -v, --verbose   Debug logging

Version: %s
`

// PrintUsage writes the usage text.
func PrintUsage(w io.Writer) {
	fmt.Fprintf(w, usageText, Version)
}

// PrintVersion writes version information.
func PrintVersion(w io.Writer) {
	fmt.Fprintf(w, "streamchat version %s\n", Version)
	fmt.Fprintf(w, "  Git commit: %s\n", GitCommit)
	fmt.Fprintf(w, "  Build date: %s\n", BuildDate)
}

// Parse parses os.Args.
func Parse() (Command, Args) {
	return ParseArgs(os.Args[1:])
}

// ParseArgs parses argv (without the program name) into a command and its
// arguments.
func ParseArgs(argv []string) (Command, Args) {
	remaining, parsedArgs := parseGlobalFlags(argv)

	if len(remaining) == 0 {
		return CmdTUI, parsedArgs
	}

	first := remaining[0]
	cmd := strings.ToLower(first)
	remaining = remaining[1:]
	parsedArgs.Raw = remaining

	switch cmd {
	case "tui":
		return CmdTUI, parsedArgs

	case "chat", "repl":
		return CmdChat, parsedArgs

	case "ask":
		parseAskArgs(&parsedArgs, remaining)
		return CmdAsk, parsedArgs

	case "session", "sessions":
		if len(remaining) > 0 {
			parsedArgs.Subcommand = strings.ToLower(remaining[0])
		}
		return CmdSessions, parsedArgs

	case "config":
		parseConfigArgs(&parsedArgs, remaining)
		return CmdConfig, parsedArgs

	case "doctor", "diag":
		return CmdDoctor, parsedArgs

	case "version":
		return CmdVersion, parsedArgs

	case "help":
		return CmdHelp, parsedArgs

	default:
		// Bare text is a question.
		parsedArgs.Raw = append([]string{first}, remaining...)
		parseAskArgs(&parsedArgs, parsedArgs.Raw)
		return CmdAsk, parsedArgs
	}
}

// parseGlobalFlags extracts global flags from anywhere in the argument list.
func parseGlobalFlags(args []string) ([]string, Args) {
	var remaining []string
	var parsedArgs Args

	for i := 0; i < len(args); i++ {
		arg := args[i]

		switch arg {
		case "-q", "--quiet":
			parsedArgs.Quiet = true
		case "-v", "--verbose":
			parsedArgs.Verbose = true
		case "--json":
			parsedArgs.JSON = true
		case "--once":
			parsedArgs.Mode = "once"
		case "--stream":
			parsedArgs.Mode = "stream"
		case "-h", "--help":
			remaining = append([]string{"help"}, remaining...)
		case "--version":
			remaining = append([]string{"version"}, remaining...)
		case "--server", "--config":
			if i+1 < len(args) {
				i++
				setValueFlag(&parsedArgs, arg, args[i])
			}
		default:
			if name, value, ok := strings.Cut(arg, "="); ok && (name == "--server" || name == "--config") {
				setValueFlag(&parsedArgs, name, value)
			} else {
				remaining = append(remaining, arg)
			}
		}
	}

	return remaining, parsedArgs
}

func setValueFlag(a *Args, name, value string) {
	switch name {
	case "--server":
		a.ServerURL = value
	case "--config":
		a.ConfigFile = value
	}
}

// parseAskArgs parses ask command arguments.
func parseAskArgs(args *Args, remaining []string) {
	var query []string

	for i := 0; i < len(remaining); i++ {
		arg := remaining[i]

		switch arg {
		case "-i", "--image":
			if i+1 < len(remaining) {
				i++
				args.ImagePath = remaining[i]
			}
		default:
			if strings.HasPrefix(arg, "--image=") {
				args.ImagePath = strings.TrimPrefix(arg, "--image=")
			} else if arg == "--" {
				query = append(query, remaining[i+1:]...)
				i = len(remaining)
			} else if !strings.HasPrefix(arg, "-") || arg == "-" {
				query = append(query, arg)
			}
		}
	}

	args.Query = strings.Join(query, " ")
}

// parseConfigArgs parses config command arguments.
func parseConfigArgs(args *Args, remaining []string) {
	if len(remaining) > 0 {
		args.Subcommand = strings.ToLower(remaining[0])
		if len(remaining) > 1 {
			args.ConfigKey = remaining[1]
		}
		if len(remaining) > 2 {
			args.ConfigVal = strings.Join(remaining[2:], " ")
		}
	}
}
