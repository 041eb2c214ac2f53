// streamchat - a terminal client for a streaming agent chat backend.
//
// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/jeranaias/streamchat/internal/cli"
	"github.com/jeranaias/streamchat/internal/config"
	"github.com/jeranaias/streamchat/internal/logging"
	"github.com/jeranaias/streamchat/internal/storage"
	"github.com/jeranaias/streamchat/internal/transport"
	"github.com/jeranaias/streamchat/internal/ui/chat"
	"github.com/jeranaias/streamchat/internal/ui/styles"
)

// Version information (set at build time)
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

func init() {
	cli.Version = Version
	cli.GitCommit = GitCommit
	cli.BuildDate = BuildDate
}

func main() {
	cmd, args := cli.Parse()

	switch cmd {
	case cli.CmdHelp:
		cli.PrintUsage(os.Stdout)
		return
	case cli.CmdVersion:
		cli.PrintVersion(os.Stdout)
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := run(ctx, cmd, args)
	stop()

	if err != nil {
		cli.DisplayError(os.Stderr, err, args.JSON)
		os.Exit(cli.GetExitCode(err))
	}
}

func run(ctx context.Context, cmd cli.Command, args cli.Args) error {
	cfg, path, err := loadConfig(args)
	if err != nil {
		// config and doctor must still run to repair a broken file.
		if cmd != cli.CmdConfig && cmd != cli.CmdDoctor {
			return err
		}
		fmt.Fprintf(os.Stderr, "warning: %v (using defaults)\n", err)
		cfg = config.Default()
		path = args.ConfigFile
	}
	cli.ConfigureColor(cfg.UI.Color)

	// The full-screen UI owns the terminal; fall back to the REPL when
	// it is disabled or there is no terminal to draw on.
	if cmd == cli.CmdTUI && (!cfg.UI.TUI || !cli.IsTTY()) {
		cmd = cli.CmdChat
	}

	logCfg := cfg.Logging
	if args.Verbose {
		logCfg.Level = "debug"
	}
	if cmd == cli.CmdTUI {
		if logCfg, err = logging.ForTUI(logCfg); err != nil {
			return err
		}
	}
	logger, closeLog, err := logging.New(logCfg)
	if err != nil {
		return &cli.CommandError{Command: cmd.String(), Action: "open log", Err: err}
	}
	defer closeLog()
	slog.SetDefault(logger)

	client, err := transport.NewFromConfig(cfg.Server, logger)
	if err != nil {
		return err
	}
	store, err := storage.Open(cfg)
	if err != nil {
		return err
	}
	if c, ok := store.(io.Closer); ok {
		defer c.Close()
	}

	rt := &cli.Runtime{
		Config:     cfg,
		ConfigPath: path,
		Logger:     logger,
		Store:      store,
		Transport:  client,
	}

	switch cmd {
	case cli.CmdTUI:
		return chat.Run(ctx, chat.Options{
			Config:     cfg,
			Transport:  client,
			Store:      store,
			Logger:     logger,
			Theme:      styles.NewTheme(),
			ConfigPath: path,
		})
	case cli.CmdChat:
		return cli.HandleChatCommand(ctx, rt, args)
	case cli.CmdAsk:
		return cli.HandleAskCommand(ctx, rt, args)
	case cli.CmdSessions:
		return cli.HandleSessions(rt, args)
	case cli.CmdConfig:
		return cli.HandleConfig(rt, args)
	case cli.CmdDoctor:
		return cli.HandleDoctor(ctx, rt, args)
	default:
		return fmt.Errorf("unhandled command %s", cmd)
	}
}

// loadConfig reads the config file (--config or the default path), then
// applies --server and --mode on top.
func loadConfig(args cli.Args) (*config.Config, string, error) {
	path := args.ConfigFile
	if path == "" {
		p, err := config.ConfigPath()
		if err != nil {
			return nil, "", err
		}
		path = p
	}

	cfg, err := config.LoadFrom(path)
	if err != nil {
		return nil, "", err
	}
	if args.ServerURL != "" {
		cfg.Server.URL = args.ServerURL
	}
	if args.Mode != "" {
		cfg.Server.Mode = args.Mode
	}
	if err := cfg.Validate(); err != nil {
		return nil, "", err
	}
	config.SetGlobal(cfg)
	return cfg, path, nil
}
