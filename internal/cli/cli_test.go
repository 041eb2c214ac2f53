// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"errors"
	"fmt"
	"os"
	"testing"

	"github.com/jeranaias/streamchat/internal/config"
	"github.com/jeranaias/streamchat/internal/model"
	"github.com/jeranaias/streamchat/internal/session"
	"github.com/jeranaias/streamchat/internal/storage"
	"github.com/jeranaias/streamchat/internal/transport"
)

func TestMain(m *testing.M) {
	ConfigureColor("never")
	os.Exit(m.Run())
}

// =============================================================================
// ARG PARSER TESTS (args.go)
// =============================================================================

func TestArgParser_BasicParsing(t *testing.T) {
	tests := []struct {
		name       string
		args       []string
		bools      []string
		wantSub    string
		wantFlags  map[string]string
		wantBools  []string
		wantPosLen int
	}{
		{
			name:       "subcommand only",
			args:       []string{"list"},
			wantSub:    "list",
			wantPosLen: 1,
		},
		{
			name:       "flag with value",
			args:       []string{"export", "conv_1", "--format", "json"},
			wantSub:    "export",
			wantFlags:  map[string]string{"format": "json"},
			wantPosLen: 2,
		},
		{
			name:       "equals form",
			args:       []string{"export", "--format=md", "conv_1"},
			wantSub:    "export",
			wantFlags:  map[string]string{"format": "md"},
			wantPosLen: 2,
		},
		{
			name:       "short flag",
			args:       []string{"export", "1", "-o", "out.md"},
			wantSub:    "export",
			wantFlags:  map[string]string{"o": "out.md"},
			wantPosLen: 2,
		},
		{
			name:       "declared bool does not consume",
			args:       []string{"clear", "--confirm", "extra"},
			bools:      []string{"confirm"},
			wantSub:    "clear",
			wantBools:  []string{"confirm"},
			wantPosLen: 2,
		},
		{
			name:       "trailing flag is bool",
			args:       []string{"list", "--verbose"},
			wantSub:    "list",
			wantBools:  []string{"verbose"},
			wantPosLen: 1,
		},
		{
			name:       "double dash ends flags",
			args:       []string{"show", "--", "--weird-id"},
			wantSub:    "show",
			wantPosLen: 2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewArgParser(tt.args, tt.bools...)
			if got := p.Subcommand(); got != tt.wantSub {
				t.Errorf("Subcommand() = %q, want %q", got, tt.wantSub)
			}
			for k, v := range tt.wantFlags {
				if got := p.Flag(k); got != v {
					t.Errorf("Flag(%q) = %q, want %q", k, got, v)
				}
			}
			for _, b := range tt.wantBools {
				if !p.BoolFlag(b) {
					t.Errorf("BoolFlag(%q) = false, want true", b)
				}
			}
			if got := p.PositionalCount(); got != tt.wantPosLen {
				t.Errorf("PositionalCount() = %d, want %d", got, tt.wantPosLen)
			}
		})
	}
}

func TestArgParser_FlagAliasesAndDefaults(t *testing.T) {
	p := NewArgParser([]string{"export", "1", "-o", "x.json"})
	if got := p.Flag("output", "o"); got != "x.json" {
		t.Errorf("Flag(output, o) = %q, want x.json", got)
	}
	if got := p.FlagOrDefault("format", "md"); got != "md" {
		t.Errorf("FlagOrDefault = %q, want md", got)
	}
	if got := p.Positional(5); got != "" {
		t.Errorf("Positional(5) = %q, want empty", got)
	}
	if got := p.PositionalFrom(1); len(got) != 1 || got[0] != "1" {
		t.Errorf("PositionalFrom(1) = %v", got)
	}
	if got := p.PositionalFrom(9); got != nil {
		t.Errorf("PositionalFrom(9) = %v, want nil", got)
	}
}

func TestArgParser_EmptyArgs(t *testing.T) {
	p := NewArgParser(nil)
	if p.Subcommand() != "" || p.PositionalCount() != 0 {
		t.Error("empty parser should have no positionals")
	}
	if p.BoolFlag("anything") {
		t.Error("empty parser should have no flags")
	}
}

// =============================================================================
// COMMAND PARSING TESTS (cli.go)
// =============================================================================

func TestParseArgs(t *testing.T) {
	tests := []struct {
		name        string
		args        []string
		wantCommand Command
		validate    func(*testing.T, Args)
	}{
		{
			name:        "no args starts the TUI",
			args:        nil,
			wantCommand: CmdTUI,
		},
		{
			name:        "ask command",
			args:        []string{"ask", "What is Go?"},
			wantCommand: CmdAsk,
			validate: func(t *testing.T, a Args) {
				if a.Query != "What is Go?" {
					t.Errorf("Query = %q, want %q", a.Query, "What is Go?")
				}
			},
		},
		{
			name:        "ask joins words",
			args:        []string{"ask", "What", "is", "Go?"},
			wantCommand: CmdAsk,
			validate: func(t *testing.T, a Args) {
				if a.Query != "What is Go?" {
					t.Errorf("Query = %q", a.Query)
				}
			},
		},
		{
			name:        "ask with image",
			args:        []string{"ask", "--image", "cat.png", "Describe"},
			wantCommand: CmdAsk,
			validate: func(t *testing.T, a Args) {
				if a.ImagePath != "cat.png" || a.Query != "Describe" {
					t.Errorf("ImagePath = %q, Query = %q", a.ImagePath, a.Query)
				}
			},
		},
		{
			name:        "ask with image equals form",
			args:        []string{"ask", "--image=dog.jpg", "Hi"},
			wantCommand: CmdAsk,
			validate: func(t *testing.T, a Args) {
				if a.ImagePath != "dog.jpg" {
					t.Errorf("ImagePath = %q", a.ImagePath)
				}
			},
		},
		{
			name:        "ask once mode",
			args:        []string{"--once", "ask", "Hi"},
			wantCommand: CmdAsk,
			validate: func(t *testing.T, a Args) {
				if a.Mode != "once" {
					t.Errorf("Mode = %q, want once", a.Mode)
				}
			},
		},
		{
			name:        "bare text is a question",
			args:        []string{"Hello", "there"},
			wantCommand: CmdAsk,
			validate: func(t *testing.T, a Args) {
				if a.Query != "Hello there" {
					t.Errorf("Query = %q, want %q", a.Query, "Hello there")
				}
			},
		},
		{
			name:        "chat command",
			args:        []string{"chat"},
			wantCommand: CmdChat,
		},
		{
			name:        "repl alias",
			args:        []string{"REPL"},
			wantCommand: CmdChat,
		},
		{
			name:        "sessions subcommand",
			args:        []string{"sessions", "Export", "1", "--format", "json"},
			wantCommand: CmdSessions,
			validate: func(t *testing.T, a Args) {
				if a.Subcommand != "export" {
					t.Errorf("Subcommand = %q, want export", a.Subcommand)
				}
				if len(a.Raw) != 4 {
					t.Errorf("Raw = %v", a.Raw)
				}
			},
		},
		{
			name:        "config set",
			args:        []string{"config", "set", "chat.error_prefix", "Error:", "x"},
			wantCommand: CmdConfig,
			validate: func(t *testing.T, a Args) {
				if a.Subcommand != "set" || a.ConfigKey != "chat.error_prefix" || a.ConfigVal != "Error: x" {
					t.Errorf("got %q %q %q", a.Subcommand, a.ConfigKey, a.ConfigVal)
				}
			},
		},
		{
			name:        "doctor",
			args:        []string{"doctor", "--json"},
			wantCommand: CmdDoctor,
			validate: func(t *testing.T, a Args) {
				if !a.JSON {
					t.Error("JSON should be true")
				}
			},
		},
		{
			name:        "global flags anywhere",
			args:        []string{"ask", "-q", "Hi", "--server", "http://h:1", "--config=/tmp/c.toml"},
			wantCommand: CmdAsk,
			validate: func(t *testing.T, a Args) {
				if !a.Quiet || a.ServerURL != "http://h:1" || a.ConfigFile != "/tmp/c.toml" || a.Query != "Hi" {
					t.Errorf("got %+v", a)
				}
			},
		},
		{
			name:        "help flag",
			args:        []string{"--help"},
			wantCommand: CmdHelp,
		},
		{
			name:        "version flag",
			args:        []string{"--version"},
			wantCommand: CmdVersion,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd, args := ParseArgs(tt.args)
			if cmd != tt.wantCommand {
				t.Errorf("command = %v, want %v", cmd, tt.wantCommand)
			}
			if tt.validate != nil {
				tt.validate(t, args)
			}
		})
	}
}

func TestCommandString(t *testing.T) {
	for cmd, want := range map[Command]string{
		CmdTUI: "tui", CmdAsk: "ask", CmdSessions: "sessions", CmdDoctor: "doctor", Command(99): "unknown",
	} {
		if got := cmd.String(); got != want {
			t.Errorf("%d.String() = %q, want %q", cmd, got, want)
		}
	}
}

// =============================================================================
// TERMINAL TESTS (terminal.go)
// =============================================================================

func TestDecideColor(t *testing.T) {
	env := func(vals map[string]string) func(string) string {
		return func(k string) string { return vals[k] }
	}
	tty := func() bool { return true }
	notty := func() bool { return false }

	tests := []struct {
		name   string
		mode   string
		env    map[string]string
		isTTY  func() bool
		expect bool
	}{
		{"always wins over NO_COLOR", "always", map[string]string{"NO_COLOR": "1"}, notty, true},
		{"never wins over tty", "never", nil, tty, false},
		{"NO_COLOR", "auto", map[string]string{"NO_COLOR": "1"}, tty, false},
		{"FORCE_COLOR", "auto", map[string]string{"FORCE_COLOR": "1"}, notty, true},
		{"tty", "auto", nil, tty, true},
		{"pipe", "", nil, notty, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := decideColor(tt.mode, env(tt.env), tt.isTTY); got != tt.expect {
				t.Errorf("decideColor() = %v, want %v", got, tt.expect)
			}
		})
	}
}

// =============================================================================
// EXIT CODE TESTS (errors.go)
// =============================================================================

func TestGetExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, ExitSuccess},
		{"usage", ErrMissingArgument("id", "x"), ExitUsageError},
		{"empty input", fmt.Errorf("send: %w", model.ErrEmptyInput), ExitUsageError},
		{"config", config.ValidateErrors{{Field: "server.url", Message: "bad"}}, ExitConfigError},
		{"not found", storage.ErrConversationNotFound, ExitNotFound},
		{"network", fmt.Errorf("%w: refused", transport.ErrNetwork), ExitNetworkError},
		{"status", &transport.StatusError{Status: 500}, ExitNetworkError},
		{"backend", fmt.Errorf("%w: boom", session.ErrBackend), ExitNetworkError},
		{"reported keeps code", Reported(storage.ErrConversationNotFound), ExitNotFound},
		{"other", errors.New("boom"), ExitGeneralError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := GetExitCode(tt.err); got != tt.want {
				t.Errorf("GetExitCode() = %d, want %d", got, tt.want)
			}
		})
	}
}
