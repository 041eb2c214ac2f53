// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/jeranaias/streamchat/internal/config"
	"github.com/jeranaias/streamchat/internal/model"
	"github.com/jeranaias/streamchat/internal/stream"
	"github.com/jeranaias/streamchat/internal/transport"
)

// =============================================================================
// MODES AND POLICIES
// =============================================================================

// Mode selects the endpoint a turn uses.
type Mode string

const (
	ModeStream Mode = config.ModeStream
	ModeOnce   Mode = config.ModeOnce
)

// FailurePolicy decides what a failed stream leaves in its message.
type FailurePolicy string

const (
	// KeepPartial leaves the text received so far and records the error.
	KeepPartial FailurePolicy = config.PolicyKeepPartial

	// ReplaceWithError swaps the partial text for the error string.
	ReplaceWithError FailurePolicy = config.PolicyReplaceWithError

	// AppendError adds the error string after the partial text.
	AppendError FailurePolicy = config.PolicyAppendError
)

// ErrBackend wraps an error event sent by the backend inside a stream.
var ErrBackend = errors.New("backend error")

// Config holds the per-turn settings.
type Config struct {
	Mode        Mode
	Policy      FailurePolicy
	ErrorPrefix string
}

// DefaultConfig returns streaming mode with partial text kept on failure.
func DefaultConfig() Config {
	return Config{
		Mode:        ModeStream,
		Policy:      KeepPartial,
		ErrorPrefix: "Erreur: ",
	}
}

// ConfigFrom extracts the turn settings from the application config.
func ConfigFrom(cfg *config.Config) Config {
	return Config{
		Mode:        Mode(strings.ToLower(cfg.Server.Mode)),
		Policy:      FailurePolicy(strings.ToLower(cfg.Chat.FailurePolicy)),
		ErrorPrefix: cfg.Chat.ErrorPrefix,
	}
}

// =============================================================================
// TRANSPORT INTERFACE
// =============================================================================

// Transport is the part of *transport.Client a turn needs.
type Transport interface {
	SendOnce(ctx context.Context, message string, history []model.WireMessage) (*transport.Reply, error)
	SendStream(ctx context.Context, history []model.WireMessage) (io.ReadCloser, error)
}

// =============================================================================
// CONTROLLER
// =============================================================================

// Result describes a finished turn.
type Result struct {
	User      *model.Message
	Assistant *model.Message
	Stats     stream.Stats
	Duration  time.Duration
	Err       error
}

// Controller runs turns against one conversation.
type Controller struct {
	mu        sync.Mutex
	conv      *model.Conversation
	transport Transport
	cfg       Config
	logger    *slog.Logger
	onChange  func()
	readSize  int
}

// Option configures a Controller.
type Option func(*Controller)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Controller) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithOnChange registers a callback run after every state change of a
// turn: start, each stream event, and end. It runs on the turn's goroutine.
func WithOnChange(fn func()) Option {
	return func(c *Controller) {
		c.onChange = fn
	}
}

// WithReadSize sets the body read chunk size.
func WithReadSize(n int) Option {
	return func(c *Controller) {
		c.readSize = n
	}
}

// NewController creates a controller.
func NewController(conv *model.Conversation, t Transport, cfg Config, opts ...Option) *Controller {
	c := &Controller{
		conv:      conv,
		transport: t,
		cfg:       cfg,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Conversation returns the current conversation.
func (c *Controller) Conversation() *model.Conversation {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conv
}

// SetConversation switches to another conversation. It fails while the
// current one has a turn in flight.
func (c *Controller) SetConversation(conv *model.Conversation) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conv != nil && c.conv.Loading() {
		return model.ErrTurnInProgress
	}
	c.conv = conv
	return nil
}

// Config returns the current turn settings.
func (c *Controller) Config() Config {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cfg
}

// SetConfig replaces the turn settings. A turn in flight keeps the
// settings it started with.
func (c *Controller) SetConfig(cfg Config) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cfg = cfg
}

// SetMode switches the endpoint used by later turns.
func (c *Controller) SetMode(m Mode) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cfg.Mode = m
}

func (c *Controller) notify() {
	if c.onChange != nil {
		c.onChange()
	}
}

// Submit sends the conversation's pending input as a new turn.
func (c *Controller) Submit(ctx context.Context) (*Result, error) {
	conv := c.Conversation()
	return c.run(ctx, conv, func(textOnly bool) (*model.Message, error) {
		if textOnly {
			return conv.BeginTextTurn()
		}
		return conv.BeginTurn()
	})
}

// Send sends text (and imageURL, if set) as a new turn. A pending image
// attached to the conversation is included when imageURL is empty.
func (c *Controller) Send(ctx context.Context, text, imageURL string) (*Result, error) {
	conv := c.Conversation()
	return c.run(ctx, conv, func(textOnly bool) (*model.Message, error) {
		if textOnly {
			return conv.BeginTextTurnWith(text, imageURL)
		}
		return conv.BeginTurnWith(text, imageURL)
	})
}

// run executes one turn. A refused turn returns ErrTurnInProgress or
// ErrEmptyInput with no request made and nothing changed. Once mode sends
// text only, so input without text is refused there. Once a turn has
// begun, loading is cleared on every path. A failed turn still returns a
// Result showing what the conversation was left with, along with the
// error.
func (c *Controller) run(ctx context.Context, conv *model.Conversation, begin func(textOnly bool) (*model.Message, error)) (*Result, error) {
	cfg := c.Config()
	user, err := begin(cfg.Mode == ModeOnce)
	if err != nil {
		return nil, err
	}
	start := time.Now()

	res := &Result{User: user}
	defer func() {
		conv.SetLoading(false)
		res.Duration = time.Since(start)
		c.notify()
	}()
	c.notify()

	switch cfg.Mode {
	case ModeOnce:
		c.runOnce(ctx, conv, cfg, user, res)
	default:
		c.runStream(ctx, conv, cfg, res)
	}

	if res.Err != nil {
		c.logger.Error("turn failed",
			"mode", cfg.Mode,
			"policy", cfg.Policy,
			"error", res.Err)
	} else {
		c.logger.Info("turn complete",
			"mode", cfg.Mode,
			"events", res.Stats.Events,
			"malformed", res.Stats.Malformed,
			"elapsed", time.Since(start))
	}
	return res, res.Err
}

func (c *Controller) runOnce(ctx context.Context, conv *model.Conversation, cfg Config, user *model.Message, res *Result) {
	if user.HasImage() {
		c.logger.Warn("image attachments are not sent in once mode")
	}

	reply, err := c.transport.SendOnce(ctx, user.Text(), conv.HistoryBefore())
	if err != nil {
		res.Err = err
		res.Assistant = conv.AppendErrorMessage(cfg.ErrorPrefix+describe(err), err)
		return
	}
	res.Assistant = conv.AppendCompletedAssistantMessage(reply.Response, reply.ToolUsed)
}

func (c *Controller) runStream(ctx context.Context, conv *model.Conversation, cfg Config, res *Result) {
	// History is taken before the placeholder exists.
	history := conv.History()
	h := conv.AppendPlaceholderAssistantMessage()
	defer func() {
		h.Close()
		res.Assistant = h.Snapshot()
	}()
	c.notify()

	body, err := c.transport.SendStream(ctx, history)
	if err != nil {
		res.Err = err
		c.applyFailure(h, cfg, err)
		return
	}
	defer body.Close()

	reducer := stream.NewReducer(c.logger)
	reducer.ReadSize = c.readSize
	reducer.OnEvent = func(stream.Event) { c.notify() }

	stats, err := reducer.Consume(ctx, body, h)
	res.Stats = stats
	if err != nil {
		res.Err = err
		c.applyFailure(h, cfg, err)
		return
	}
	if stats.Failed {
		res.Err = fmt.Errorf("%w: %s", ErrBackend, h.Snapshot().Error)
	}
}

// applyFailure records err on the message and treats its partial text per
// the configured policy.
func (c *Controller) applyFailure(h *model.Handle, cfg Config, err error) {
	msg := describe(err)
	_ = h.SetError(msg)

	errText := cfg.ErrorPrefix + msg
	switch cfg.Policy {
	case ReplaceWithError:
		_ = h.SetText(errText)
	case AppendError:
		if partial := h.Text(); partial != "" {
			_ = h.SetText(partial + "\n\n" + errText)
		} else {
			_ = h.SetText(errText)
		}
	default:
		// KeepPartial: the text stays as received.
	}
}

// describe returns the user-facing text for a turn failure.
func describe(err error) string {
	var se *stream.StreamError
	if errors.As(err, &se) {
		err = se.Err
	}
	if errors.Is(err, context.Canceled) {
		return "request cancelled"
	}
	return err.Error()
}
