// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/streamchat/internal/config"
	"github.com/jeranaias/streamchat/internal/model"
	"github.com/jeranaias/streamchat/internal/session"
	"github.com/jeranaias/streamchat/internal/storage"
	"github.com/jeranaias/streamchat/internal/ui/components"
	"github.com/jeranaias/streamchat/internal/ui/styles"
	"github.com/jeranaias/streamchat/internal/util"
)

// Layout rows outside the viewport: header, input (with its top border)
// and status bar.
const chromeHeight = 4

// Options configures a Model.
type Options struct {
	Config    *config.Config
	Transport session.Transport
	Store     storage.Store
	Logger    *slog.Logger
	Theme     *styles.Theme

	// ConfigPath is watched for changes by Run; "" disables reloading.
	ConfigPath string

	// MaxFPS caps streaming redraws; 0 means 30.
	MaxFPS int
}

// =============================================================================
// MODEL
// =============================================================================

// Model is the bubbletea model of the chat screen.
type Model struct {
	ctx    context.Context
	ctrl   *session.Controller
	cfg    *config.Config
	store  storage.Store
	logger *slog.Logger
	theme  *styles.Theme
	keys   KeyMap

	viewport  viewport.Model
	input     textinput.Model
	spinner   spinner.Model
	statusBar *components.StatusBar

	width    int
	height   int
	ready    bool
	showHelp bool
	quitting bool

	busy       bool
	turnCancel context.CancelFunc
	turns      sync.WaitGroup

	program  *programRef
	throttle *redrawThrottle

	notice    string
	noticeErr bool
}

// New creates the model. ctx bounds every turn it starts.
func New(ctx context.Context, opts Options) *Model {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.Default()
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	theme := opts.Theme
	if theme == nil {
		theme = styles.NewTheme()
	}
	store := opts.Store
	if store == nil {
		store = storage.NopStore{}
	}
	m := &Model{
		ctx:     ctx,
		cfg:     cfg,
		store:   store,
		logger:  logger,
		theme:   theme,
		keys:    DefaultKeyMap(),
		program: &programRef{},
	}
	m.throttle = newRedrawThrottle(m.program.Send, opts.MaxFPS)
	m.ctrl = session.NewController(model.NewConversation(), opts.Transport, session.ConfigFrom(cfg),
		session.WithLogger(logger),
		session.WithOnChange(m.throttle.Notify),
	)

	ti := textinput.New()
	ti.Placeholder = "Type a message, or /help"
	ti.Prompt = "> "
	ti.PromptStyle = theme.InputPrompt
	ti.PlaceholderStyle = theme.InputPlaceholder
	ti.CharLimit = 0
	ti.Focus()
	m.input = ti

	sp := spinner.New()
	sp.Spinner = styles.BrailleSpinner.Bubbles()
	sp.Style = theme.Spinner
	m.spinner = sp

	m.statusBar = components.NewStatusBar(theme)
	m.statusBar.Shortcuts = shortcuts(m.keys)
	return m
}

func shortcuts(k KeyMap) []components.Shortcut {
	var out []components.Shortcut
	for _, b := range k.ShortHelp() {
		h := b.Help()
		out = append(out, components.Shortcut{Key: h.Key, Desc: h.Desc})
	}
	return out
}

// SetProgram connects the model to the program that runs it, so turn
// goroutines can trigger redraws.
func (m *Model) SetProgram(p Sender) {
	m.program.set(p)
}

// Controller returns the session controller.
func (m *Model) Controller() *session.Controller {
	return m.ctrl
}

// Wait blocks until every started turn has finished.
func (m *Model) Wait() {
	m.turns.Wait()
}

// Busy reports whether a turn is in flight.
func (m *Model) Busy() bool {
	return m.busy
}

// Init implements tea.Model.
func (m *Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.spinner.Tick)
}

// Update implements tea.Model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)
		return m, nil

	case tea.KeyMsg:
		return m, m.handleKey(msg)

	case tea.MouseMsg:
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd

	case StreamUpdateMsg:
		m.refresh()
		return m, nil

	case TurnDoneMsg:
		m.finishTurn(msg)
		return m, nil

	case ConfigReloadedMsg:
		m.applyConfig(msg.Config)
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *Model) handleKey(msg tea.KeyMsg) tea.Cmd {
	switch {
	case key.Matches(msg, m.keys.Quit):
		return m.quit()
	case key.Matches(msg, m.keys.Submit):
		return m.submit()
	case key.Matches(msg, m.keys.Help):
		m.showHelp = !m.showHelp
		return nil
	case key.Matches(msg, m.keys.PageUp):
		m.viewport.ViewUp()
		return nil
	case key.Matches(msg, m.keys.PageDown):
		m.viewport.ViewDown()
		return nil
	case key.Matches(msg, m.keys.Home):
		m.viewport.GotoTop()
		return nil
	case key.Matches(msg, m.keys.End):
		m.viewport.GotoBottom()
		return nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return cmd
}

// quit cancels a turn in flight and stops the program.
func (m *Model) quit() tea.Cmd {
	m.quitting = true
	if m.turnCancel != nil {
		m.turnCancel()
	}
	return tea.Quit
}

// =============================================================================
// TURNS
// =============================================================================

func (m *Model) submit() tea.Cmd {
	value := strings.TrimSpace(m.input.Value())
	if strings.HasPrefix(value, "/") {
		m.input.Reset()
		return m.runCommand(value)
	}
	if m.busy {
		m.setNotice("wait for the reply to finish", true)
		return nil
	}

	conv := m.ctrl.Conversation()
	conv.SetPendingText(util.NormalizeInput(value))
	if conv.Pending().IsEmpty() {
		return nil
	}
	m.input.Reset()
	return m.startTurn()
}

// startTurn runs the pending input as a turn on its own goroutine.
func (m *Model) startTurn() tea.Cmd {
	ctx, cancel := context.WithCancel(m.ctx)
	m.turnCancel = cancel
	m.busy = true
	m.statusBar.Status = components.StatusStreaming
	m.clearNotice()
	m.turns.Add(1)

	ctrl := m.ctrl
	return func() tea.Msg {
		defer m.turns.Done()
		defer cancel()
		res, err := ctrl.Submit(ctx)
		return TurnDoneMsg{Result: res, Err: err}
	}
}

func (m *Model) finishTurn(msg TurnDoneMsg) {
	m.busy = false
	m.turnCancel = nil
	m.throttle.Stop()

	switch {
	case msg.Err == nil:
		m.statusBar.Status = components.StatusReady
		if msg.Result != nil {
			m.setNotice(fmt.Sprintf("done in %s", msg.Result.Duration.Round(100*time.Millisecond)), false)
		}
	case errors.Is(msg.Err, context.Canceled) && m.quitting:
		m.statusBar.Status = components.StatusReady
	case msg.Result == nil:
		// refused before it began
		m.statusBar.Status = components.StatusReady
		m.setNotice(msg.Err.Error(), true)
	default:
		m.statusBar.Status = components.StatusError
		m.setNotice("turn failed: "+msg.Err.Error(), true)
	}

	if msg.Result != nil {
		m.autoSave()
	}
	m.refresh()
}

// autoSave saves the conversation when storage.auto_save is on.
func (m *Model) autoSave() {
	conv := m.ctrl.Conversation()
	if !m.cfg.Storage.AutoSave || conv.IsEmpty() {
		return
	}
	if err := m.store.Save(storage.FromConversation(conv)); err != nil {
		m.logger.Warn("auto-save failed", "conversation", conv.ID, "error", err)
	}
}

func (m *Model) applyConfig(cfg *config.Config) {
	if cfg == nil {
		return
	}
	m.cfg = cfg
	m.ctrl.SetConfig(session.ConfigFrom(cfg))
	m.setNotice("config reloaded", false)
	m.refresh()
}

// =============================================================================
// LAYOUT
// =============================================================================

func (m *Model) resize(width, height int) {
	m.width = width
	m.height = height
	m.theme.SetSize(width, height)

	vpHeight := height - chromeHeight
	if vpHeight < 1 {
		vpHeight = 1
	}
	if !m.ready {
		m.viewport = viewport.New(width, vpHeight)
		m.ready = true
	} else {
		m.viewport.Width = width
		m.viewport.Height = vpHeight
	}
	m.input.Width = width - 6
	m.statusBar.SetWidth(width)
	m.refresh()
}

// refresh redraws the conversation, following the bottom unless the user
// has scrolled up.
func (m *Model) refresh() {
	if !m.ready {
		return
	}
	follow := m.viewport.AtBottom()
	m.viewport.SetContent(m.renderConversation())
	if follow {
		m.viewport.GotoBottom()
	}
}

func (m *Model) setNotice(msg string, isErr bool) {
	m.notice = msg
	m.noticeErr = isErr
}

func (m *Model) clearNotice() {
	m.notice = ""
	m.noticeErr = false
}
