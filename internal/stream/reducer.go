// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package stream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/jeranaias/streamchat/internal/model"
)

// DefaultReadSize is the chunk size used when reading a response body.
const DefaultReadSize = 4096

// =============================================================================
// ERRORS
// =============================================================================

// StreamError reports a stream that stopped before it ended normally.
// Partial holds the message text reached at that point.
type StreamError struct {
	Partial string
	Err     error
}

func (e *StreamError) Error() string {
	if e.Partial != "" {
		return fmt.Sprintf("stream error (partial content received: %d chars): %v", len(e.Partial), e.Err)
	}
	return fmt.Sprintf("stream error: %v", e.Err)
}

func (e *StreamError) Unwrap() error {
	return e.Err
}

// =============================================================================
// APPLY
// =============================================================================

// Apply folds one event into the in-flight message behind h. Each event
// causes at most one mutation. Unknown types and a tool_result with no
// running invocation of that name change nothing. It reports whether the
// event changed the message.
func Apply(h *model.Handle, ev Event) (bool, error) {
	switch ev.Type.Canonical() {
	case EventIterationStart:
		return true, h.SetIteration(ev.Iteration)
	case EventTextDelta:
		return true, h.AppendText(ev.Content)
	case EventToolsStart:
		return true, h.SetToolsTotal(ev.Count)
	case EventToolCall:
		return true, h.AddTool(ev.Name, ev.Args)
	case EventToolResult:
		return h.CompleteTool(ev.Name, ev.Result, ev.Preview)
	case EventError:
		return true, h.SetError(ev.Message)
	default:
		// tools_end, done and anything unrecognized.
		return false, nil
	}
}

// =============================================================================
// REDUCER
// =============================================================================

// Stats summarizes one consumed stream.
type Stats struct {
	Events    int   // events applied
	Ignored   int   // decoded events that changed nothing
	Malformed int   // data lines that failed to decode
	Skipped   int   // non-data lines
	Bytes     int64 // body bytes read
	Done      bool  // a done event was seen
	Failed    bool  // the backend sent an error event
}

// Reducer drains a response body into an active message.
type Reducer struct {
	Logger *slog.Logger

	// OnEvent, when set, runs after each decoded event has been applied.
	OnEvent func(Event)

	// ReadSize overrides DefaultReadSize.
	ReadSize int
}

// NewReducer creates a reducer. A nil logger uses slog.Default.
func NewReducer(logger *slog.Logger) *Reducer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reducer{Logger: logger}
}

func (r *Reducer) logger() *slog.Logger {
	if r.Logger == nil {
		return slog.Default()
	}
	return r.Logger
}

// Consume reads body chunk by chunk and applies events in arrival order
// until EOF, a done event, or cancellation of ctx. Any read failure comes
// back as a *StreamError carrying the partial text; events already applied
// stay applied. Consume does not close body or h.
func (r *Reducer) Consume(ctx context.Context, body io.Reader, h *model.Handle) (Stats, error) {
	var stats Stats
	logger := r.logger()
	dec := NewDecoder(logger)

	size := r.ReadSize
	if size <= 0 {
		size = DefaultReadSize
	}
	buf := make([]byte, size)

	finish := func() {
		stats.Malformed = dec.Malformed()
		stats.Skipped = dec.Skipped()
	}

	for {
		if err := ctx.Err(); err != nil {
			finish()
			return stats, &StreamError{Partial: h.Text(), Err: err}
		}

		n, readErr := body.Read(buf)
		if n > 0 {
			stats.Bytes += int64(n)
			if r.applyAll(dec.Feed(buf[:n]), h, &stats) {
				finish()
				return stats, nil
			}
		}

		if readErr != nil {
			if errors.Is(readErr, io.EOF) {
				r.applyAll(dec.Flush(), h, &stats)
				finish()
				return stats, nil
			}
			finish()
			return stats, &StreamError{Partial: h.Text(), Err: readErr}
		}
	}
}

// applyAll applies events in order. It returns true once a done event is
// reached; later events in the same batch are dropped.
func (r *Reducer) applyAll(events []Event, h *model.Handle, stats *Stats) bool {
	logger := r.logger()
	for _, ev := range events {
		if ev.Type == EventDone {
			stats.Done = true
			return true
		}

		changed, err := Apply(h, ev)
		if err != nil {
			logger.Debug("event not applied", "type", ev.Type, "error", err)
			stats.Ignored++
			continue
		}
		switch {
		case ev.Type == EventError:
			stats.Failed = true
			logger.Error("backend reported error", "message", ev.Message)
		case !changed && ev.Type == EventToolResult:
			logger.Debug("tool result with no running invocation", "name", ev.Name)
		case !changed && !ev.Type.Known():
			logger.Debug("ignoring unknown event type", "type", ev.Type)
		}
		if changed {
			stats.Events++
		} else {
			stats.Ignored++
		}

		if r.OnEvent != nil {
			r.OnEvent(ev)
		}
	}
	return false
}
