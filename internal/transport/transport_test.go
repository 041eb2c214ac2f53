// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package transport

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/jeranaias/streamchat/internal/config"
	"github.com/jeranaias/streamchat/internal/model"
)

func newTestClient(t *testing.T, handler http.HandlerFunc, opts ...Option) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c, err := New(srv.URL, opts...)
	require.NoError(t, err)
	return c
}

// =============================================================================
// CONSTRUCTOR TESTS
// =============================================================================

func TestNew_InvalidURL(t *testing.T) {
	for _, raw := range []string{"", "localhost:8000", "ftp://host", "http://", "://bad"} {
		_, err := New(raw)
		if !errors.Is(err, ErrInvalidURL) {
			t.Errorf("New(%q) err = %v, want ErrInvalidURL", raw, err)
		}
	}
}

func TestNew_TrimsTrailingSlash(t *testing.T) {
	c, err := New("http://example.com/base/")
	require.NoError(t, err)
	assert.Equal(t, "http://example.com/base/api/chat", c.endpoint(ChatPath))
}

// =============================================================================
// SEND ONCE TESTS
// =============================================================================

func TestSendOnce(t *testing.T) {
	var got ChatRequest
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, ChatPath, r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"response":"42","tool_used":"calculator"}`)
	})

	history := []model.WireMessage{model.NewUserMessage("earlier", "").ToWire()}
	reply, err := c.SendOnce(context.Background(), "what is 6*7", history)
	require.NoError(t, err)

	assert.Equal(t, "42", reply.Response)
	assert.Equal(t, "calculator", reply.ToolUsed)
	assert.Equal(t, "what is 6*7", got.Message)
	require.Len(t, got.History, 1)
	assert.Equal(t, "earlier", got.History[0].Content[0].Text)
}

func TestSendOnce_NilHistorySendsEmptyArray(t *testing.T) {
	var raw map[string]json.RawMessage
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&raw))
		io.WriteString(w, `{"response":"ok"}`)
	})

	_, err := c.SendOnce(context.Background(), "hi", nil)
	require.NoError(t, err)
	assert.Equal(t, "[]", string(raw["history"]))
}

func TestSendOnce_BadStatus(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	})

	_, err := c.SendOnce(context.Background(), "hi", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrBadStatus)

	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusInternalServerError, statusErr.Status)
	assert.Contains(t, statusErr.Error(), "boom")
}

func TestSendOnce_DecodeError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `<html>not json</html>`)
	})

	_, err := c.SendOnce(context.Background(), "hi", nil)
	assert.ErrorIs(t, err, ErrDecode)
}

func TestSendOnce_NetworkError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c, err := New(url)
	require.NoError(t, err)
	_, err = c.SendOnce(context.Background(), "hi", nil)
	assert.ErrorIs(t, err, ErrNetwork)
}

func TestSendOnce_SingleRequestNoRetry(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	_, err := c.SendOnce(context.Background(), "hi", nil)
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())
}

// =============================================================================
// SEND STREAM TESTS
// =============================================================================

func TestSendStream(t *testing.T) {
	var got StreamRequest
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, ChatStreamPath, r.URL.Path)
		assert.Equal(t, "text/event-stream", r.Header.Get("Accept"))
		assert.Equal(t, "no-cache", r.Header.Get("Cache-Control"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.Header().Set("Content-Type", "text/event-stream")
		flusher := w.(http.Flusher)
		io.WriteString(w, "data: {\"type\":\"text_delta\",\"content\":\"Hi\"}\n\n")
		flusher.Flush()
		io.WriteString(w, "data: {\"type\":\"done\"}\n\n")
	})

	msg := model.NewUserMessage("hello", "data:image/png;base64,AA==")
	body, err := c.SendStream(context.Background(), []model.WireMessage{msg.ToWire()})
	require.NoError(t, err)
	defer body.Close()

	data, err := io.ReadAll(body)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "data: "))
	assert.Contains(t, string(data), `"done"`)

	require.Len(t, got.Messages, 1)
	require.Len(t, got.Messages[0].Content, 2)
	assert.Equal(t, model.PartImage, got.Messages[0].Content[1].Kind)
}

func TestSendStream_BadStatus(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	body, err := c.SendStream(context.Background(), nil)
	assert.Nil(t, body)
	assert.ErrorIs(t, err, ErrBadStatus)
}

func TestSendStream_ContextCancelDuringBody(t *testing.T) {
	release := make(chan struct{})
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "data: {\"type\":\"text_delta\",\"content\":\"a\"}\n\n")
		w.(http.Flusher).Flush()
		select {
		case <-release:
		case <-r.Context().Done():
		}
	})
	defer close(release)

	ctx, cancel := context.WithCancel(context.Background())
	body, err := c.SendStream(ctx, nil)
	require.NoError(t, err)
	defer body.Close()

	buf := make([]byte, 256)
	n, err := body.Read(buf)
	require.NoError(t, err)
	assert.Contains(t, string(buf[:n]), "text_delta")

	cancel()
	_, err = io.ReadAll(body)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNetwork)
}

// =============================================================================
// OPTION TESTS
// =============================================================================

func TestWithHeader(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "token", r.Header.Get("X-Api-Key"))
		io.WriteString(w, `{"response":"ok"}`)
	}, WithHeader("X-Api-Key", "token"))

	_, err := c.SendOnce(context.Background(), "hi", nil)
	require.NoError(t, err)
}

func TestWithTimeout(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(2 * time.Second):
		case <-r.Context().Done():
		}
	}, WithTimeout(50*time.Millisecond))

	_, err := c.SendOnce(context.Background(), "hi", nil)
	assert.ErrorIs(t, err, ErrNetwork)
}

func TestWithRateLimit_WaitHonoursContext(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"response":"ok"}`)
	}, WithRateLimit(rate.Every(time.Hour), 1))

	_, err := c.SendOnce(context.Background(), "first", nil)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = c.SendOnce(ctx, "second", nil)
	assert.ErrorIs(t, err, ErrNetwork)
}

func TestNewFromConfig(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"response":"ok"}`)
	}))
	defer srv.Close()

	cfg := config.Default().Server
	cfg.URL = srv.URL + "/"
	cfg.Timeout = time.Second
	cfg.RateLimit = 100

	c, err := NewFromConfig(cfg, nil)
	require.NoError(t, err)
	assert.Equal(t, srv.URL, c.BaseURL())
	require.NotNil(t, c.limiter)
	assert.Equal(t, time.Second, c.httpClient.Timeout)

	reply, err := c.SendOnce(context.Background(), "hi", nil)
	require.NoError(t, err)
	assert.Equal(t, "ok", reply.Response)

	cfg.URL = "ftp://example.com"
	_, err = NewFromConfig(cfg, nil)
	assert.ErrorIs(t, err, ErrInvalidURL)
}

func TestPing(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		w.WriteHeader(http.StatusNotFound)
	})
	status, err := c.Ping(context.Background())
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestPing_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c, err := New(url)
	require.NoError(t, err)
	_, err = c.Ping(context.Background())
	assert.True(t, errors.Is(err, ErrNetwork))
}

func TestHealth(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, HealthPath, r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"status":"ok","mcp_url":"http://mcp:8000","streaming":true}`)
	})
	h, err := c.Health(context.Background())
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, h.StatusCode)
	assert.Equal(t, "ok", h.Status)
	assert.Equal(t, "http://mcp:8000", h.MCPURL)
	require.NotNil(t, h.Streaming)
	assert.True(t, *h.Streaming)
	assert.False(t, h.Fallback)
}

func TestHealth_FallsBackToBaseURL(t *testing.T) {
	var paths []string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.Path)
		if r.URL.Path == HealthPath {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusOK)
	})
	h, err := c.Health(context.Background())
	require.NoError(t, err)
	assert.True(t, h.Fallback)
	assert.Equal(t, http.StatusOK, h.StatusCode)
	assert.Nil(t, h.Streaming)
	assert.Equal(t, []string{HealthPath, "/"}, paths)
}

func TestHealth_NonJSONBody(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "OK")
	})
	h, err := c.Health(context.Background())
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, h.StatusCode)
	assert.Nil(t, h.Streaming)
	assert.Empty(t, h.Status)
}
