// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// chat.go - Interactive line-mode chat for streamchat.
//
// Command: chat
// Short:   Start an interactive chat session without the full-screen UI
//
// Interactive Commands (during chat):
//   /image <path>       Attach an image to the next message (/image none drops it)
//   /clear, /c          Start a new conversation
//   /save               Save the conversation now
//   /history            Show conversation history
//   /mode [stream|once] Show or switch the endpoint
//   /status, /s         Show session status
//   /help, /h           Show available commands
//   /quit, /q           Exit chat
//   Ctrl+C, Ctrl+D      Exit chat
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/peterh/liner"

	"github.com/jeranaias/streamchat/internal/config"
	"github.com/jeranaias/streamchat/internal/model"
	"github.com/jeranaias/streamchat/internal/session"
	"github.com/jeranaias/streamchat/internal/storage"
	"github.com/jeranaias/streamchat/internal/util"
)

// =============================================================================
// INPUT HISTORY
// =============================================================================

// lineReader reads one line of user input.
type lineReader interface {
	ReadInput(prompt string) (string, error)
	Close()
}

// ChatCLI provides input history and line editing for interactive chat.
type ChatCLI struct {
	line        *liner.State
	historyFile string
}

// NewChatCLI creates a ChatCLI whose history lives in historyFile.
func NewChatCLI(historyFile string) *ChatCLI {
	line := liner.NewLiner()
	line.SetCtrlCAborts(true)

	c := &ChatCLI{
		line:        line,
		historyFile: historyFile,
	}
	c.LoadHistory()
	return c
}

// HistoryPath returns ~/.streamchat/history.
func HistoryPath() string {
	dir, err := config.ConfigDir()
	if err != nil {
		dir = os.TempDir()
	}
	return filepath.Join(dir, "history")
}

// LoadHistory loads command history from file.
func (c *ChatCLI) LoadHistory() {
	if f, err := os.Open(c.historyFile); err == nil {
		c.line.ReadHistory(f)
		f.Close()
	}
}

// ReadInput reads a line of input with the given prompt.
func (c *ChatCLI) ReadInput(prompt string) (string, error) {
	input, err := c.line.Prompt(prompt)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(input) != "" {
		c.line.AppendHistory(input)
	}
	return input, nil
}

// SaveHistory persists command history with owner-only permissions.
func (c *ChatCLI) SaveHistory() {
	if err := os.MkdirAll(filepath.Dir(c.historyFile), 0700); err != nil {
		return
	}
	f, err := os.OpenFile(c.historyFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return
	}
	defer f.Close()
	c.line.WriteHistory(f)
}

// Close saves history and restores the terminal.
func (c *ChatCLI) Close() {
	c.SaveHistory()
	c.line.Close()
}

// =============================================================================
// SESSION STATE
// =============================================================================

// ChatSession holds the state for an interactive chat session.
type ChatSession struct {
	rt      *Runtime
	ctrl    *session.Controller
	in      lineReader
	out     io.Writer
	printer *streamPrinter
	quiet   bool

	StartTime time.Time
	Turns     int
	Failures  int
}

// NewChatSession creates a chat session reading from in.
func NewChatSession(rt *Runtime, in lineReader, quiet bool) *ChatSession {
	s := &ChatSession{
		rt:        rt,
		in:        in,
		out:       rt.stdout(),
		quiet:     quiet,
		StartTime: time.Now(),
	}
	s.printer = newStreamPrinter(s.out, rt.Config.UI.ShowTools, false)
	s.ctrl = rt.NewController(model.NewConversation(), session.WithOnChange(func() {
		s.printer.Update(s.ctrl.Conversation().Last())
	}))
	return s
}

// Controller returns the session's turn controller.
func (s *ChatSession) Controller() *session.Controller {
	return s.ctrl
}

// =============================================================================
// CHAT HANDLER
// =============================================================================

// HandleChatCommand runs the interactive REPL until the user quits or ctx
// is cancelled.
func HandleChatCommand(ctx context.Context, rt *Runtime, args Args) error {
	if err := RequiresTTY("chat"); err != nil {
		return err
	}
	if err := config.EnsureConfigDir(); err != nil {
		rt.logger().Warn("could not create config dir", "error", err)
	}

	in := NewChatCLI(HistoryPath())
	defer in.Close()

	s := NewChatSession(rt, in, args.Quiet)
	return s.Run(ctx)
}

// Run is the REPL loop.
func (s *ChatSession) Run(ctx context.Context) error {
	if !s.quiet {
		s.printWelcome()
	}
	defer s.rt.AutoSave(s.ctrl.Conversation())

	for {
		if ctx.Err() != nil {
			s.printExitSummary()
			return nil
		}

		input, err := s.in.ReadInput(promptStyle.Render(s.prompt()))
		if err != nil {
			// Ctrl+C at the prompt, Ctrl+D, or closed input.
			fmt.Fprintln(s.out)
			s.printExitSummary()
			if errors.Is(err, liner.ErrPromptAborted) || errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}

		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}

		if strings.HasPrefix(input, "/") {
			shouldContinue, err := s.handleSlashCommand(input)
			if err != nil {
				fmt.Fprintf(s.out, "%s %v\n", ErrorStyle.Render("[Error]"), err)
			}
			if !shouldContinue {
				s.printExitSummary()
				return nil
			}
			continue
		}

		if strings.EqualFold(input, "exit") || strings.EqualFold(input, "quit") {
			s.printExitSummary()
			return nil
		}

		if err := s.processMessage(ctx, input); err != nil && !s.handled(err) {
			fmt.Fprintf(s.out, "%s %v\n", ErrorStyle.Render("[Error]"), err)
		}
	}
}

func (s *ChatSession) prompt() string {
	if s.ctrl.Conversation().Pending().ImageURL != "" {
		return "streamchat [img]> "
	}
	return "streamchat> "
}

// handled reports errors that were already shown in the transcript.
func (s *ChatSession) handled(err error) bool {
	return !errors.Is(err, model.ErrEmptyInput) && !errors.Is(err, model.ErrTurnInProgress)
}

// =============================================================================
// MESSAGE PROCESSING
// =============================================================================

// processMessage sends input as one turn and streams the reply.
func (s *ChatSession) processMessage(ctx context.Context, input string) error {
	conv := s.ctrl.Conversation()
	conv.SetPendingText(util.NormalizeInput(input))

	res, err := s.ctrl.Submit(ctx)
	if res == nil {
		return err
	}

	s.Turns++
	s.printer.Finish(res.Assistant, s.ctrl.Config().ErrorPrefix)
	if err != nil {
		s.Failures++
	}
	if !s.quiet {
		s.printTurnStats(res)
	}
	s.rt.AutoSave(conv)
	return err
}

func (s *ChatSession) printTurnStats(res *session.Result) {
	parts := []string{formatDurationShort(res.Duration)}
	if res.Stats.Events > 0 {
		parts = append(parts, fmt.Sprintf("%d events", res.Stats.Events))
	}
	if res.Stats.Malformed > 0 {
		parts = append(parts, fmt.Sprintf("%d malformed", res.Stats.Malformed))
	}
	if res.Assistant != nil && res.Assistant.IterationCount > 1 {
		parts = append(parts, fmt.Sprintf("%d rounds", res.Assistant.IterationCount))
	}
	fmt.Fprintln(s.out, DimStyle.Render("["+strings.Join(parts, ", ")+"]"))
	fmt.Fprintln(s.out)
}

// =============================================================================
// SLASH COMMANDS
// =============================================================================

// handleSlashCommand processes slash commands.
// Returns (shouldContinue, error) where shouldContinue=false means exit.
func (s *ChatSession) handleSlashCommand(cmd string) (bool, error) {
	parts := strings.Fields(cmd)
	if len(parts) == 0 {
		return true, nil
	}

	command := strings.ToLower(parts[0])
	args := parts[1:]

	switch command {
	case "/help", "/h", "/?", "/":
		s.printHelp()
		return true, nil

	case "/image", "/img":
		return true, s.handleImageCommand(strings.TrimSpace(strings.TrimPrefix(cmd, parts[0])))

	case "/clear", "/c", "/new":
		s.rt.AutoSave(s.ctrl.Conversation())
		if err := s.ctrl.SetConversation(model.NewConversation()); err != nil {
			return true, err
		}
		fmt.Fprintln(s.out, commandStyle.Render("[New conversation]"))
		return true, nil

	case "/save":
		conv := s.ctrl.Conversation()
		if conv.IsEmpty() {
			return true, fmt.Errorf("nothing to save yet")
		}
		if err := s.rt.store().Save(storage.FromConversation(conv)); err != nil {
			return true, err
		}
		fmt.Fprintf(s.out, "%s Saved as %s\n", commandStyle.Render("[OK]"), conv.ID)
		return true, nil

	case "/history":
		s.printHistory()
		return true, nil

	case "/mode", "/m":
		return true, s.handleModeCommand(args)

	case "/status", "/s":
		s.printStatus()
		return true, nil

	case "/quit", "/q", "/exit":
		return false, nil

	default:
		return true, fmt.Errorf("unknown command: %s (type /help for commands)", command)
	}
}

// handleImageCommand attaches, reports or drops the pending image.
func (s *ChatSession) handleImageCommand(path string) error {
	conv := s.ctrl.Conversation()
	switch strings.ToLower(path) {
	case "":
		if conv.Pending().ImageURL == "" {
			fmt.Fprintln(s.out, DimStyle.Render("[No image attached]"))
		} else {
			fmt.Fprintln(s.out, DimStyle.Render("[An image is attached to the next message]"))
		}
		return nil
	case "none", "clear", "off":
		conv.ClearPendingImage()
		fmt.Fprintln(s.out, commandStyle.Render("[Image removed]"))
		return nil
	}

	path = strings.Trim(path, `"'`)
	dataURL, err := util.ImageDataURLFromFile(path)
	if err != nil {
		return err
	}
	conv.AttachImage(dataURL)
	fmt.Fprintf(s.out, "%s %s attached to the next message\n",
		commandStyle.Render("[Image]"), filepath.Base(path))
	return nil
}

// handleModeCommand shows or switches the endpoint.
func (s *ChatSession) handleModeCommand(args []string) error {
	if len(args) == 0 {
		fmt.Fprintf(s.out, "%s %s\n", DimStyle.Render("[Mode]"), commandStyle.Render(string(s.ctrl.Config().Mode)))
		return nil
	}
	switch m := session.Mode(strings.ToLower(args[0])); m {
	case session.ModeStream, session.ModeOnce:
		s.ctrl.SetMode(m)
		fmt.Fprintf(s.out, "%s Switched to %s mode\n", commandStyle.Render("[OK]"), m)
		return nil
	default:
		return fmt.Errorf("unknown mode %q (want stream or once)", args[0])
	}
}

// =============================================================================
// DISPLAY FUNCTIONS
// =============================================================================

func (s *ChatSession) printWelcome() {
	fmt.Fprintln(s.out)
	fmt.Fprintln(s.out, TitleStyle.Render("streamchat interactive chat"))
	fmt.Fprintln(s.out, RenderSeparator(30))
	fmt.Fprintf(s.out, "%s %s\n", RenderLabel("Server:"), commandStyle.Render(s.rt.Config.Server.URL))
	fmt.Fprintf(s.out, "%s %s\n", RenderLabel("Mode:"), commandStyle.Render(string(s.ctrl.Config().Mode)))
	fmt.Fprintln(s.out)
	fmt.Fprintln(s.out, DimStyle.Render("Type your message and press Enter. Commands: /help, /quit"))
	fmt.Fprintln(s.out)
}

func (s *ChatSession) printHelp() {
	fmt.Fprintln(s.out)
	fmt.Fprintln(s.out, TitleStyle.Render("Available Commands"))
	fmt.Fprintln(s.out, RenderSeparator(20))

	commands := []struct {
		cmd  string
		desc string
	}{
		{"/image <path>", "Attach an image to the next message"},
		{"/image none", "Drop the attached image"},
		{"/clear, /c", "Start a new conversation"},
		{"/save", "Save the conversation"},
		{"/history", "Show conversation history"},
		{"/mode [m]", "Show or switch mode (stream, once)"},
		{"/status, /s", "Show session status"},
		{"/quit, /q", "Exit chat"},
	}
	for _, c := range commands {
		fmt.Fprintf(s.out, "  %s  %s\n",
			commandStyle.Render(util.PadRight(c.cmd, 15)),
			DimStyle.Render(c.desc))
	}
	fmt.Fprintln(s.out)
}

func (s *ChatSession) printStatus() {
	conv := s.ctrl.Conversation()
	cfg := s.ctrl.Config()

	fmt.Fprintln(s.out)
	fmt.Fprintln(s.out, TitleStyle.Render("Session Status"))
	fmt.Fprintln(s.out, RenderSeparator(20))
	fmt.Fprintf(s.out, "  %s %s\n", RenderLabel("Server:"), s.rt.Config.Server.URL)
	fmt.Fprintf(s.out, "  %s %s\n", RenderLabel("Mode:"), cfg.Mode)
	fmt.Fprintf(s.out, "  %s %s\n", RenderLabel("On failure:"), cfg.Policy)
	fmt.Fprintf(s.out, "  %s %s\n", RenderLabel("Conversation:"), conv.ID)
	fmt.Fprintf(s.out, "  %s %d\n", RenderLabel("Messages:"), conv.Len())
	fmt.Fprintf(s.out, "  %s %d (%d failed)\n", RenderLabel("Turns:"), s.Turns, s.Failures)
	fmt.Fprintf(s.out, "  %s %s\n", RenderLabel("Duration:"), time.Since(s.StartTime).Round(time.Second))
	fmt.Fprintf(s.out, "  %s %s\n", RenderLabel("Storage:"), s.rt.Config.Storage.Backend)
	fmt.Fprintln(s.out)
}

func (s *ChatSession) printHistory() {
	msgs := s.ctrl.Conversation().Messages()
	if len(msgs) == 0 {
		fmt.Fprintln(s.out, DimStyle.Render("[No messages yet]"))
		return
	}
	fmt.Fprintln(s.out)
	fmt.Fprintln(s.out, TitleStyle.Render("Conversation History"))
	fmt.Fprintln(s.out, RenderSeparator(25))
	writeTranscript(s.out, msgs, s.rt.Config.Chat.PreviewLength)
	fmt.Fprintln(s.out)
}

func (s *ChatSession) printExitSummary() {
	if s.quiet || s.Turns == 0 {
		fmt.Fprintln(s.out, DimStyle.Render("Goodbye!"))
		return
	}
	fmt.Fprintln(s.out)
	fmt.Fprintln(s.out, TitleStyle.Render("Session Summary"))
	fmt.Fprintln(s.out, RenderSeparator(15))
	fmt.Fprintf(s.out, "  %s %d (%d failed)\n", RenderLabel("Turns:"), s.Turns, s.Failures)
	fmt.Fprintf(s.out, "  %s %s\n", RenderLabel("Duration:"), time.Since(s.StartTime).Round(time.Second))
	if s.rt.Config.Storage.AutoSave && s.rt.Config.Storage.Backend != config.BackendNone {
		fmt.Fprintf(s.out, "  %s %s\n", RenderLabel("Saved as:"), s.ctrl.Conversation().ID)
	}
	fmt.Fprintln(s.out)
	fmt.Fprintln(s.out, DimStyle.Render("Goodbye!"))
}
