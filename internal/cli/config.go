// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// config.go - Config command implementation.
//
// Command: config [subcommand]
// Short:   View and modify configuration
//
// Subcommands:
//   show (default)      Display the effective configuration
//   get <key>           Print one value
//   set <key> <value>   Set a value in the config file
//   keys                List every key
//   reset               Reset the config file to defaults
//   path                Show the config file path
//
// Examples:
//   streamchat config
//   streamchat config show --json
//   streamchat config get server.url
//   streamchat config set server.mode once
//   streamchat config set chat.failure_policy replace_with_error
//   streamchat config set server.timeout 2m
//
// Environment variables (STREAMCHAT_SERVER_URL and friends) override the
// file; show and get report the effective value, set only edits the file.
package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/jeranaias/streamchat/internal/config"
)

const configUsage = "streamchat config [show|get|set|keys|reset|path]"

// HandleConfig dispatches the config subcommands.
func HandleConfig(rt *Runtime, args Args) error {
	switch args.Subcommand {
	case "", "show", "list":
		return handleConfigShow(rt, args.JSON)
	case "get":
		return handleConfigGet(rt, args.ConfigKey, args.JSON)
	case "set":
		return handleConfigSet(rt, args.ConfigKey, args.ConfigVal)
	case "keys":
		for _, k := range config.GetAllKeys() {
			fmt.Fprintln(rt.stdout(), k)
		}
		return nil
	case "reset":
		return handleConfigReset(rt)
	case "path":
		return handleConfigPath(rt, args.JSON)
	default:
		return ErrUnknownSubcommand("config", args.Subcommand, configUsage)
	}
}

func handleConfigShow(rt *Runtime, jsonMode bool) error {
	if jsonMode {
		return NewJSONResponse("config show", rt.Config).Print(rt.stdout())
	}
	path, _ := rt.configPath()
	fmt.Fprintln(rt.stdout(), DimStyle.Render("# "+path))
	fmt.Fprint(rt.stdout(), rt.Config.String())
	return nil
}

func handleConfigGet(rt *Runtime, key string, jsonMode bool) error {
	if key == "" {
		return ErrMissingArgument("key", "streamchat config get <key>")
	}
	v, err := rt.Config.Get(key)
	if err != nil {
		return &UsageError{Reason: err.Error(), Example: "streamchat config keys"}
	}
	if jsonMode {
		return NewJSONResponse("config get", map[string]interface{}{"key": key, "value": v}).Print(rt.stdout())
	}
	fmt.Fprintln(rt.stdout(), v)
	return nil
}

func handleConfigSet(rt *Runtime, key, value string) error {
	if key == "" {
		return ErrMissingArgument("key", "streamchat config set <key> <value>")
	}
	path, err := rt.configPath()
	if err != nil {
		return err
	}

	// Edit the file as written, without environment overrides.
	cfg := config.Default()
	if _, err := os.Stat(path); err == nil {
		if err := config.LoadTOML(cfg, path); err != nil {
			return &CommandError{Command: "config", Action: "set", Reason: "cannot read " + path, Err: err}
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return err
	}

	if err := cfg.Set(key, value); err != nil {
		return &UsageError{Reason: err.Error(), Example: "streamchat config set <key> <value>"}
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := config.SaveTo(cfg, path); err != nil {
		return &CommandError{Command: "config", Action: "set", Reason: "cannot write " + path, Err: err}
	}

	v, _ := cfg.Get(key)
	fmt.Fprintf(rt.stdout(), "%s %s = %v\n", SuccessStyle.Render("[OK]"), key, v)
	return nil
}

func handleConfigReset(rt *Runtime) error {
	path, err := rt.configPath()
	if err != nil {
		return err
	}
	if err := config.SaveTo(config.Default(), path); err != nil {
		return &CommandError{Command: "config", Action: "reset", Reason: "cannot write " + path, Err: err}
	}
	fmt.Fprintf(rt.stdout(), "%s Configuration reset to defaults\n", SuccessStyle.Render("[OK]"))
	return nil
}

func handleConfigPath(rt *Runtime, jsonMode bool) error {
	path, err := rt.configPath()
	if err != nil {
		return err
	}
	_, statErr := os.Stat(path)
	exists := statErr == nil

	if jsonMode {
		return NewJSONResponse("config path", map[string]interface{}{"path": path, "exists": exists}).Print(rt.stdout())
	}
	fmt.Fprintln(rt.stdout(), path)
	if !exists {
		fmt.Fprintln(rt.stderr(), DimStyle.Render("(not created yet; defaults are in use)"))
	}
	return nil
}
