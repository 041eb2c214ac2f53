// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/streamchat/internal/config"
	"github.com/jeranaias/streamchat/internal/session"
	"github.com/jeranaias/streamchat/internal/storage"
	"github.com/jeranaias/streamchat/internal/transport"
)

func TestMain(m *testing.M) {
	lipgloss.SetColorProfile(termenv.Ascii)
	os.Exit(m.Run())
}

// =============================================================================
// HELPERS
// =============================================================================

func sseBody(events ...string) string {
	var sb strings.Builder
	for _, e := range events {
		sb.WriteString("data: " + e + "\n\n")
	}
	return sb.String()
}

func backend(events ...string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case transport.ChatPath:
			w.Header().Set("Content-Type", "application/json")
			io.WriteString(w, `{"response":"Once reply","tool_used":"calc"}`)
		case transport.ChatStreamPath:
			w.Header().Set("Content-Type", "text/event-stream")
			io.WriteString(w, sseBody(events...))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}
}

type recordSender struct {
	mu   sync.Mutex
	msgs []tea.Msg
}

func (r *recordSender) Send(msg tea.Msg) {
	r.mu.Lock()
	r.msgs = append(r.msgs, msg)
	r.mu.Unlock()
}

func (r *recordSender) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.msgs)
}

func newTestModel(t *testing.T, handler http.HandlerFunc) (*Model, *storage.FileStore) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	cfg := config.Default()
	cfg.Server.URL = srv.URL
	cfg.Storage.Dir = filepath.Join(t.TempDir(), "conversations")

	client, err := transport.New(srv.URL)
	require.NoError(t, err)
	store, err := storage.NewFileStore(cfg.Storage.Dir)
	require.NoError(t, err)

	m := New(context.Background(), Options{
		Config:    cfg,
		Transport: client,
		Store:     store,
		Logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	m.Update(tea.WindowSizeMsg{Width: 110, Height: 40})
	return m, store
}

func enter() tea.KeyMsg { return tea.KeyMsg{Type: tea.KeyEnter} }

// send types text, presses Enter and runs the resulting turn to the end.
func send(t *testing.T, m *Model, text string) TurnDoneMsg {
	t.Helper()
	m.input.SetValue(text)
	_, cmd := m.Update(enter())
	require.NotNil(t, cmd, "Enter should start a turn")
	require.True(t, m.Busy())

	done, ok := cmd().(TurnDoneMsg)
	require.True(t, ok)
	m.Update(done)
	return done
}

// command types a slash command and presses Enter.
func command(m *Model, line string) tea.Cmd {
	m.input.SetValue(line)
	_, cmd := m.Update(enter())
	return cmd
}

// =============================================================================
// TURN TESTS
// =============================================================================

func TestModel_StreamTurn(t *testing.T) {
	m, store := newTestModel(t, backend(
		`{"type":"iteration_start","iteration":1}`,
		`{"type":"tool_call","name":"lookup","args":{"q":"answer"}}`,
		`{"type":"tool_result","name":"lookup","preview":"42"}`,
		`{"type":"text_delta","content":"Hello"}`,
		`{"type":"text_delta","content":" world"}`,
		`{"type":"done"}`,
	))
	rec := &recordSender{}
	m.SetProgram(rec)

	done := send(t, m, "what is the answer?")
	require.NoError(t, done.Err)
	require.NotNil(t, done.Result)

	assert.False(t, m.Busy())
	assert.Equal(t, "", m.input.Value())
	assert.Equal(t, 2, m.Controller().Conversation().Len())
	assert.True(t, strings.HasPrefix(m.notice, "done in"), m.notice)

	view := m.View()
	assert.Contains(t, view, "streamchat")
	assert.Contains(t, view, "what is the answer?")
	assert.Contains(t, view, "✓ lookup: 42")
	assert.Contains(t, view, "Hello world")
	assert.Contains(t, view, "2 msgs")

	assert.Eventually(t, func() bool { return rec.count() > 0 }, time.Second, 10*time.Millisecond)

	metas, err := store.List()
	require.NoError(t, err)
	require.Len(t, metas, 1)
	assert.Equal(t, 2, metas[0].MessageCount)
}

func TestModel_BackendError(t *testing.T) {
	m, _ := newTestModel(t, backend(
		`{"type":"text_delta","content":"Par"}`,
		`{"type":"error","message":"model overloaded"}`,
	))

	done := send(t, m, "hi")
	require.Error(t, done.Err)
	assert.ErrorIs(t, done.Err, session.ErrBackend)
	assert.True(t, m.noticeErr)
	assert.Contains(t, m.notice, "turn failed")

	view := m.View()
	assert.Contains(t, view, "Par")
	assert.Contains(t, view, "model overloaded")
}

func TestModel_ServerError(t *testing.T) {
	m, store := newTestModel(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusServiceUnavailable)
	})

	done := send(t, m, "hi")
	require.Error(t, done.Err)
	assert.True(t, m.noticeErr)
	assert.False(t, m.Controller().Conversation().Loading())

	// the failed turn is still saved
	metas, err := store.List()
	require.NoError(t, err)
	assert.Len(t, metas, 1)
}

func TestModel_EmptyInputIgnored(t *testing.T) {
	m, _ := newTestModel(t, backend())

	m.input.SetValue("   ")
	_, cmd := m.Update(enter())
	assert.Nil(t, cmd)
	assert.False(t, m.Busy())
	assert.True(t, m.Controller().Conversation().IsEmpty())
}

func TestModel_BusyRefusesSecondSubmit(t *testing.T) {
	m, _ := newTestModel(t, backend(`{"type":"text_delta","content":"ok"}`, `{"type":"done"}`))

	m.input.SetValue("first")
	_, first := m.Update(enter())
	require.NotNil(t, first)

	m.input.SetValue("second")
	_, cmd := m.Update(enter())
	assert.Nil(t, cmd)
	assert.Equal(t, "second", m.input.Value(), "input is kept for later")
	assert.Contains(t, m.notice, "wait for the reply")

	m.Update(first())
	assert.False(t, m.Busy())
	assert.Equal(t, 2, m.Controller().Conversation().Len())
}

func TestModel_OnceMode(t *testing.T) {
	m, _ := newTestModel(t, backend())

	assert.Nil(t, command(m, "/mode once"))
	assert.Equal(t, session.ModeOnce, m.Controller().Config().Mode)

	done := send(t, m, "hi")
	require.NoError(t, done.Err)

	view := m.View()
	assert.Contains(t, view, "Once reply")
	assert.Contains(t, view, "(tool: calc)")
	assert.Contains(t, view, "ONCE")
}

func TestModel_QuitCancelsTurn(t *testing.T) {
	started := make(chan struct{})
	m, _ := newTestModel(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		io.WriteString(w, sseBody(`{"type":"text_delta","content":"slow"}`))
		w.(http.Flusher).Flush()
		close(started)
		<-r.Context().Done()
	})

	m.input.SetValue("hi")
	_, cmd := m.Update(enter())
	require.NotNil(t, cmd)

	result := make(chan tea.Msg, 1)
	go func() { result <- cmd() }()
	<-started

	_, quit := m.Update(tea.KeyMsg{Type: tea.KeyEsc})
	require.NotNil(t, quit)
	assert.IsType(t, tea.QuitMsg{}, quit())

	select {
	case msg := <-result:
		done := msg.(TurnDoneMsg)
		assert.Error(t, done.Err)
		m.Update(done)
	case <-time.After(5 * time.Second):
		t.Fatal("turn was not cancelled")
	}
	m.Wait()
	assert.False(t, m.Busy())
	assert.Equal(t, "", m.View())
}

func TestModel_ConfigReloaded(t *testing.T) {
	m, _ := newTestModel(t, backend())

	cfg := config.Default()
	cfg.Server.Mode = config.ModeOnce
	cfg.Chat.FailurePolicy = config.PolicyAppendError
	m.Update(ConfigReloadedMsg{Config: cfg})

	got := m.Controller().Config()
	assert.Equal(t, session.ModeOnce, got.Mode)
	assert.Equal(t, session.AppendError, got.Policy)
	assert.Equal(t, "config reloaded", m.notice)
}

// =============================================================================
// COMMAND TESTS
// =============================================================================

func TestModel_ModeCommand(t *testing.T) {
	m, _ := newTestModel(t, backend())

	command(m, "/mode")
	assert.Equal(t, session.ModeOnce, m.Controller().Config().Mode)
	command(m, "/m")
	assert.Equal(t, session.ModeStream, m.Controller().Config().Mode)

	command(m, "/mode sideways")
	assert.True(t, m.noticeErr)
	assert.Equal(t, session.ModeStream, m.Controller().Config().Mode)
}

func TestModel_ImageCommand(t *testing.T) {
	m, _ := newTestModel(t, backend())
	conv := m.Controller().Conversation()

	png := filepath.Join(t.TempDir(), "cat.png")
	require.NoError(t, os.WriteFile(png, append([]byte("\x89PNG\r\n\x1a\n"), make([]byte, 32)...), 0600))

	command(m, "/image "+png)
	assert.False(t, m.noticeErr, m.notice)
	assert.Contains(t, m.notice, "cat.png attached")
	assert.True(t, strings.HasPrefix(conv.Pending().ImageURL, "data:image/png;base64,"))
	assert.Contains(t, m.View(), "[img]")

	command(m, "/image none")
	assert.Empty(t, conv.Pending().ImageURL)

	command(m, "/image "+filepath.Join(t.TempDir(), "missing.png"))
	assert.True(t, m.noticeErr)
	assert.Empty(t, conv.Pending().ImageURL)
}

func TestModel_ImageOnlyTurn(t *testing.T) {
	m, _ := newTestModel(t, backend(`{"type":"text_delta","content":"A cat."}`, `{"type":"done"}`))

	png := filepath.Join(t.TempDir(), "cat.png")
	require.NoError(t, os.WriteFile(png, append([]byte("\x89PNG\r\n\x1a\n"), make([]byte, 32)...), 0600))
	command(m, "/img "+png)

	done := send(t, m, "")
	require.NoError(t, done.Err)
	assert.True(t, done.Result.User.HasImage())
	assert.Empty(t, m.Controller().Conversation().Pending().ImageURL)
	assert.Contains(t, m.View(), "[image]")
}

func TestModel_ClearAndSave(t *testing.T) {
	m, store := newTestModel(t, backend(`{"type":"text_delta","content":"ok"}`, `{"type":"done"}`))

	command(m, "/save")
	assert.Equal(t, "nothing to save yet", m.notice)

	send(t, m, "hello")
	id := m.Controller().Conversation().ID

	command(m, "/save")
	assert.Equal(t, "saved as "+id, m.notice)

	command(m, "/clear")
	assert.Equal(t, "new conversation", m.notice)
	assert.True(t, m.Controller().Conversation().IsEmpty())
	assert.NotEqual(t, id, m.Controller().Conversation().ID)

	loaded, err := store.Load(id)
	require.NoError(t, err)
	assert.Len(t, loaded.Messages, 2)
}

func TestModel_MiscCommands(t *testing.T) {
	m, _ := newTestModel(t, backend())

	command(m, "/status")
	assert.Contains(t, m.notice, m.cfg.Server.URL)
	assert.Contains(t, m.notice, "0 messages")

	command(m, "/bogus")
	assert.True(t, m.noticeErr)
	assert.Contains(t, m.notice, "unknown command: /bogus")

	command(m, "/help")
	assert.True(t, m.showHelp)
	assert.Contains(t, m.View(), "Commands")
	m.Update(tea.KeyMsg{Type: tea.KeyF1})
	assert.False(t, m.showHelp)

	cmd := command(m, "/quit")
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
}

// =============================================================================
// STREAMING TESTS
// =============================================================================

func TestRedrawThrottle_Coalesces(t *testing.T) {
	rec := &recordSender{}
	th := newRedrawThrottle(rec.Send, 10)

	for i := 0; i < 5; i++ {
		th.Notify()
	}
	assert.Equal(t, 1, rec.count(), "first change draws at once")

	assert.Eventually(t, func() bool { return rec.count() == 2 }, time.Second, 5*time.Millisecond,
		"later changes collapse into one trailing redraw")
	time.Sleep(150 * time.Millisecond)
	assert.Equal(t, 2, rec.count())

	rec.mu.Lock()
	defer rec.mu.Unlock()
	for _, msg := range rec.msgs {
		assert.IsType(t, StreamUpdateMsg{}, msg)
	}
}

func TestRedrawThrottle_Stop(t *testing.T) {
	rec := &recordSender{}
	th := newRedrawThrottle(rec.Send, 10)

	th.Notify()
	th.Notify()
	th.Stop()
	time.Sleep(150 * time.Millisecond)
	assert.Equal(t, 1, rec.count())
}

func TestProgramRef(t *testing.T) {
	var ref programRef
	ref.Send(StreamUpdateMsg{}) // no program yet

	rec := &recordSender{}
	ref.set(rec)
	ref.Send(StreamUpdateMsg{})
	assert.Equal(t, 1, rec.count())
}

func TestKeyMap_Help(t *testing.T) {
	k := DefaultKeyMap()
	assert.Len(t, k.ShortHelp(), 3)
	assert.Len(t, k.FullHelp(), 2)
	assert.Equal(t, "Enter", k.Submit.Help().Key)
}
