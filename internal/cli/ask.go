// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// ask.go - Single question command handler.
//
// Handles "streamchat ask" which sends one message and prints the reply as
// it streams.
//
// Command: ask [question]
// Short:   Ask a single question
//
// Examples:
//   streamchat ask "What is the capital of France?"
//   streamchat ask "Describe this" --image photo.png
//   echo "Summarize this" | streamchat ask
//   streamchat ask --once --json "Hello"
//
// Flags:
//   -i, --image FILE    Attach an image
//   --once, --stream    Pick the endpoint (overrides config)
//   --json              Print the reply as JSON once finished
//   -q, --quiet         Reply text only
package cli

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/jeranaias/streamchat/internal/model"
	"github.com/jeranaias/streamchat/internal/session"
	"github.com/jeranaias/streamchat/internal/util"
)

// maxStdinQuery caps a question read from stdin.
const maxStdinQuery = 1 << 20

// AskToolResult is one tool invocation in the JSON output of ask.
type AskToolResult struct {
	Name    string `json:"name"`
	Status  string `json:"status"`
	Preview string `json:"preview,omitempty"`
}

// AskResult is the data field of ask's JSON output.
type AskResult struct {
	ConversationID string          `json:"conversation_id"`
	Reply          string          `json:"reply"`
	ToolUsed       string          `json:"tool_used,omitempty"`
	Tools          []AskToolResult `json:"tools,omitempty"`
	Iterations     int             `json:"iterations,omitempty"`
	Error          string          `json:"error,omitempty"`
	DurationMs     int64           `json:"duration_ms"`
	Mode           string          `json:"mode"`
}

// HandleAskCommand sends one question and prints the reply.
func HandleAskCommand(ctx context.Context, rt *Runtime, args Args) error {
	query, err := askQuery(rt, args)
	if err != nil {
		return err
	}

	conv := model.NewConversation()
	conv.SetPendingText(query)
	if args.ImagePath != "" {
		dataURL, err := util.ImageDataURLFromFile(args.ImagePath)
		if err != nil {
			return &CommandError{Command: "ask", Action: "attach", Reason: "cannot read image", Err: err}
		}
		conv.AttachImage(dataURL)
	}
	if conv.Pending().IsEmpty() {
		return &UsageError{Reason: "no question given", Example: `streamchat ask "your question"`}
	}

	out := rt.stdout()
	var opts []session.Option
	var printer *streamPrinter
	if !args.JSON {
		printer = newStreamPrinter(out, rt.Config.UI.ShowTools && !args.Quiet, false)
		opts = append(opts, session.WithOnChange(func() {
			printer.Update(conv.Last())
		}))
	}
	ctrl := rt.NewController(conv, opts...)

	res, err := ctrl.Submit(ctx)
	if res == nil {
		return err
	}
	rt.AutoSave(conv)

	if args.JSON {
		return printAskJSON(out, conv, ctrl.Config(), res)
	}

	printer.Finish(res.Assistant, ctrl.Config().ErrorPrefix)
	if !args.Quiet && res.Err == nil {
		fmt.Fprintln(rt.stderr(), DimStyle.Render("["+formatDurationShort(res.Duration)+"]"))
	}
	return res.Err
}

// askQuery returns the question from the arguments, or from stdin when
// the question is "-" or missing and stdin is piped.
func askQuery(rt *Runtime, args Args) (string, error) {
	query := strings.TrimSpace(args.Query)
	if query != "-" && (query != "" || (rt.Stdin == nil && IsTTY())) {
		return util.NormalizeInput(query), nil
	}

	data, err := io.ReadAll(io.LimitReader(rt.stdin(), maxStdinQuery))
	if err != nil {
		return "", &CommandError{Command: "ask", Action: "read", Reason: "cannot read stdin", Err: err}
	}
	return util.NormalizeInput(strings.TrimSpace(string(data))), nil
}

func printAskJSON(w io.Writer, conv *model.Conversation, cfg session.Config, res *session.Result) error {
	data := AskResult{
		ConversationID: conv.ID,
		DurationMs:     res.Duration.Milliseconds(),
		Mode:           string(cfg.Mode),
	}
	if m := res.Assistant; m != nil {
		data.Reply = m.Text()
		data.ToolUsed = m.ToolUsed
		data.Iterations = m.IterationCount
		data.Error = m.Error
		for _, t := range m.Tools {
			data.Tools = append(data.Tools, AskToolResult{Name: t.Name, Status: string(t.Status), Preview: t.Preview})
		}
	}

	resp := NewJSONResponse("ask", data)
	if res.Err != nil {
		msg := res.Err.Error()
		resp.Success = false
		resp.Error = &msg
	}
	if err := resp.Print(w); err != nil {
		return err
	}
	return Reported(res.Err)
}
