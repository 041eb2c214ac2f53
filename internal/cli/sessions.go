// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// sessions.go - Saved conversation management commands.
//
// Command: sessions [subcommand]
// Short:   Manage saved conversations
// Aliases: session
//
// Subcommands:
//   list (default)      List saved conversations
//   show <id|n>         Print a conversation
//   export <id|n>       Export to markdown or JSON
//   delete <id|n>       Delete a conversation
//   clear               Delete every saved conversation
//
// A conversation can be named by its ID or by its 1-based position in the
// list output.
//
// Examples:
//   streamchat sessions
//   streamchat sessions list --search weather
//   streamchat sessions show 1
//   streamchat sessions export conv_1700000000_ab12cd34 --format json -o chat.json
//   streamchat sessions delete 3
//   streamchat sessions clear --confirm
package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/jeranaias/streamchat/internal/storage"
	"github.com/jeranaias/streamchat/internal/util"
)

const sessionsUsage = "streamchat sessions [list|show|export|delete|clear]"

// HandleSessions dispatches the sessions subcommands.
func HandleSessions(rt *Runtime, args Args) error {
	p := NewArgParser(args.Raw, "confirm", "json")
	jsonMode := args.JSON || p.BoolFlag("json")

	switch sub := strings.ToLower(p.Subcommand()); sub {
	case "", "list", "ls":
		return handleSessionsList(rt, p, jsonMode)
	case "show", "view":
		return handleSessionsShow(rt, p, jsonMode)
	case "export":
		return handleSessionsExport(rt, p)
	case "delete", "rm":
		return handleSessionsDelete(rt, p, jsonMode)
	case "clear":
		return handleSessionsClear(rt, p, jsonMode)
	default:
		return ErrUnknownSubcommand("sessions", sub, sessionsUsage)
	}
}

func handleSessionsList(rt *Runtime, p *ArgParser, jsonMode bool) error {
	var metas []storage.ConversationMeta
	var err error
	if q := p.Flag("search", "s"); q != "" {
		metas, err = rt.store().Search(q)
	} else {
		metas, err = rt.store().List()
	}
	if err != nil {
		return &CommandError{Command: "sessions", Action: "list", Reason: "cannot read saved conversations", Err: err}
	}

	if jsonMode {
		return NewJSONResponse("sessions list", metas).Print(rt.stdout())
	}
	fmt.Fprint(rt.stdout(), storage.FormatSessionList(metas))
	return nil
}

func handleSessionsShow(rt *Runtime, p *ArgParser, jsonMode bool) error {
	conv, err := loadByIDOrIndex(rt, p.Positional(1))
	if err != nil {
		return err
	}
	if jsonMode {
		return NewJSONResponse("sessions show", conv).Print(rt.stdout())
	}

	out := rt.stdout()
	fmt.Fprintln(out, TitleStyle.Render(conv.Summary))
	fmt.Fprintf(out, "%s %s\n", RenderLabel("ID:"), conv.ID)
	fmt.Fprintf(out, "%s %s\n", RenderLabel("Created:"), conv.CreatedAt.Format("2006-01-02 15:04"))
	fmt.Fprintf(out, "%s %s\n", RenderLabel("Updated:"), conv.UpdatedAt.Format("2006-01-02 15:04"))
	fmt.Fprintln(out, RenderSeparator(40))
	writeTranscript(out, conv.Messages, 0)
	return nil
}

func handleSessionsExport(rt *Runtime, p *ArgParser) error {
	conv, err := loadByIDOrIndex(rt, p.Positional(1))
	if err != nil {
		return err
	}

	data, err := conv.Export(p.FlagOrDefault("format", storage.FormatMarkdown))
	if err != nil {
		return &UsageError{Reason: err.Error(), Example: "streamchat sessions export <id> --format md|json"}
	}

	output := p.Flag("output", "o")
	if output == "" || output == "-" {
		_, err := rt.stdout().Write(data)
		return err
	}
	if err := util.AtomicWriteFile(output, data, 0600); err != nil {
		return &CommandError{Command: "sessions", Action: "export", Reason: "cannot write " + output, Err: err}
	}
	fmt.Fprintf(rt.stderr(), "%s Exported %s to %s\n", SuccessStyle.Render("[OK]"), conv.ID, output)
	return nil
}

func handleSessionsDelete(rt *Runtime, p *ArgParser, jsonMode bool) error {
	conv, err := loadByIDOrIndex(rt, p.Positional(1))
	if err != nil {
		return err
	}
	if err := rt.store().Delete(conv.ID); err != nil {
		return &CommandError{Command: "sessions", Action: "delete", Reason: conv.ID, Err: err}
	}

	if jsonMode {
		return NewJSONResponse("sessions delete", map[string]string{"deleted": conv.ID}).Print(rt.stdout())
	}
	fmt.Fprintf(rt.stdout(), "%s Deleted %s\n", SuccessStyle.Render("[OK]"), conv.ID)
	return nil
}

func handleSessionsClear(rt *Runtime, p *ArgParser, jsonMode bool) error {
	if !p.BoolFlag("confirm", "y", "yes") {
		return &UsageError{Reason: "refusing to delete every conversation without --confirm", Example: "streamchat sessions clear --confirm"}
	}
	metas, err := rt.store().List()
	if err != nil {
		return &CommandError{Command: "sessions", Action: "clear", Reason: "cannot read saved conversations", Err: err}
	}
	if err := rt.store().Clear(); err != nil {
		return &CommandError{Command: "sessions", Action: "clear", Reason: "cannot delete saved conversations", Err: err}
	}

	if jsonMode {
		return NewJSONResponse("sessions clear", map[string]int{"deleted": len(metas)}).Print(rt.stdout())
	}
	fmt.Fprintf(rt.stdout(), "%s Deleted %d conversation(s)\n", SuccessStyle.Render("[OK]"), len(metas))
	return nil
}

// loadByIDOrIndex loads a conversation by ID, or by its 1-based position
// in List when ref is a small number.
func loadByIDOrIndex(rt *Runtime, ref string) (*storage.StoredConversation, error) {
	if ref == "" {
		return nil, ErrMissingArgument("conversation ID or number", "streamchat sessions show <id|n>")
	}

	if n, err := strconv.Atoi(ref); err == nil {
		metas, err := rt.store().List()
		if err != nil {
			return nil, err
		}
		if n >= 1 && n <= len(metas) {
			ref = metas[n-1].ID
		}
	}
	return rt.store().Load(ref)
}
