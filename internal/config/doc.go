// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides configuration loading and management for
// streamchat.
//
// # Key Types
//
//   - Config: root structure with server, chat, logging, storage and ui sections
//   - ValidationError / ValidateErrors: every problem Validate found
//   - Watcher: reloads the config file when it changes (fsnotify)
//
// # Configuration Precedence
//
// Configuration is loaded from (in order of precedence):
//   - Environment variables (STREAMCHAT_*)
//   - ~/.streamchat/config.toml (or $STREAMCHAT_HOME/config.toml)
//   - Built-in defaults
//
// # Usage
//
//	cfg, err := config.Load()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	policy := cfg.Chat.FailurePolicy
//
//	_ = cfg.Set("server.mode", "once")
//	v, _ := cfg.Get("server.url")
package config
