// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// runtime.go - Shared dependencies handed to every command.

package cli

import (
	"io"
	"log/slog"
	"os"

	"github.com/jeranaias/streamchat/internal/config"
	"github.com/jeranaias/streamchat/internal/model"
	"github.com/jeranaias/streamchat/internal/session"
	"github.com/jeranaias/streamchat/internal/storage"
)

// Runtime bundles what the commands need. main builds one per process.
type Runtime struct {
	Config     *config.Config
	ConfigPath string // file Config was read from; "" means the default
	Logger     *slog.Logger
	Store      storage.Store
	Transport  session.Transport

	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
}

func (r *Runtime) stdout() io.Writer {
	if r.Stdout != nil {
		return r.Stdout
	}
	return os.Stdout
}

func (r *Runtime) stderr() io.Writer {
	if r.Stderr != nil {
		return r.Stderr
	}
	return os.Stderr
}

func (r *Runtime) stdin() io.Reader {
	if r.Stdin != nil {
		return r.Stdin
	}
	return os.Stdin
}

func (r *Runtime) configPath() (string, error) {
	if r.ConfigPath != "" {
		return r.ConfigPath, nil
	}
	return config.ConfigPath()
}

func (r *Runtime) logger() *slog.Logger {
	if r.Logger != nil {
		return r.Logger
	}
	return slog.Default()
}

func (r *Runtime) store() storage.Store {
	if r.Store != nil {
		return r.Store
	}
	return storage.NopStore{}
}

// TurnConfig returns the per-turn settings from the current config.
func (r *Runtime) TurnConfig() session.Config {
	return session.ConfigFrom(r.Config)
}

// NewController creates a controller for conv using the runtime's
// transport and logger.
func (r *Runtime) NewController(conv *model.Conversation, opts ...session.Option) *session.Controller {
	opts = append([]session.Option{session.WithLogger(r.logger())}, opts...)
	return session.NewController(conv, r.Transport, r.TurnConfig(), opts...)
}

// AutoSave saves conv when storage.auto_save is on and conv has messages.
// Failures are logged, not returned.
func (r *Runtime) AutoSave(conv *model.Conversation) {
	if !r.Config.Storage.AutoSave || conv.IsEmpty() {
		return
	}
	if err := r.store().Save(storage.FromConversation(conv)); err != nil {
		r.logger().Warn("auto-save failed", "conversation", conv.ID, "error", err)
	}
}
