// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/jeranaias/streamchat/internal/model"
	"github.com/jeranaias/streamchat/internal/util"
)

// Export formats.
const (
	FormatMarkdown = "md"
	FormatJSON     = "json"
)

// Export renders the conversation in the named format.
func (c *StoredConversation) Export(format string) ([]byte, error) {
	switch strings.ToLower(format) {
	case FormatMarkdown, "markdown", "":
		return []byte(c.ExportMarkdown()), nil
	case FormatJSON:
		return c.ExportJSON()
	default:
		return nil, fmt.Errorf("unknown export format %q (want md or json)", format)
	}
}

// ExportMarkdown exports the conversation as Markdown. Images are noted,
// not inlined.
func (c *StoredConversation) ExportMarkdown() string {
	var sb strings.Builder
	title := c.Title
	if title == "" {
		title = "Session " + c.ID
	}
	sb.WriteString("# " + title + "\n\n")
	sb.WriteString("Created: " + c.CreatedAt.Format(time.RFC3339) + "\n\n")
	sb.WriteString("---\n\n")

	for _, msg := range c.Messages {
		sb.WriteString("**" + msg.Role.Title() + "** (" + msg.CreatedAt.Format("15:04") + "):\n\n")
		if msg.HasImage() {
			sb.WriteString("_[image attached]_\n\n")
		}
		if t := msg.Text(); t != "" {
			sb.WriteString(t)
			sb.WriteString("\n\n")
		}
		writeTools(&sb, msg)
		if msg.ToolUsed != "" {
			sb.WriteString("_Tool used: " + msg.ToolUsed + "_\n\n")
		}
		if msg.Failed() {
			sb.WriteString("> Error: " + msg.Error + "\n\n")
		}
		sb.WriteString("---\n\n")
	}

	return sb.String()
}

func writeTools(sb *strings.Builder, msg *model.Message) {
	if len(msg.Tools) == 0 {
		return
	}
	for _, t := range msg.Tools {
		line := "- `" + t.Name + "`"
		if args := t.ArgsString(); args != "" {
			line += " " + util.TruncateRunes(args, 80)
		}
		if t.IsRunning() {
			line += " (interrupted)"
		} else if t.Preview != "" {
			line += ": " + strings.ReplaceAll(t.Preview, "\n", " ")
		}
		sb.WriteString(line + "\n")
	}
	sb.WriteString("\n")
}

// ExportJSON exports the conversation as pretty-printed JSON.
func (c *StoredConversation) ExportJSON() ([]byte, error) {
	return json.MarshalIndent(c, "", "  ")
}

// =============================================================================
// SESSION LIST FORMATTING
// =============================================================================

// FormatSessionList formats sessions as a table of ID, creation time,
// message count and preview.
func FormatSessionList(sessions []ConversationMeta) string {
	if len(sessions) == 0 {
		return "No sessions found."
	}

	const (
		idWidth      = 41
		createdWidth = 17
		countWidth   = 8
		previewWidth = 40
	)

	var sb strings.Builder
	rule := strings.Repeat("-", idWidth+createdWidth+countWidth+previewWidth+3) + "\n"
	sb.WriteString("Sessions:\n")
	sb.WriteString(rule)
	sb.WriteString(util.PadRight("ID", idWidth) + " " +
		util.PadRight("Created", createdWidth) + " " +
		util.PadRight("Messages", countWidth) + " Preview\n")
	sb.WriteString(rule)

	for _, s := range sessions {
		preview := s.Preview
		if preview == "" {
			preview = s.Summary
		}
		sb.WriteString(util.PadRight(util.TruncateWidth(s.ID, idWidth), idWidth) + " " +
			util.PadRight(s.CreatedAt.Format("2006-01-02 15:04"), createdWidth) + " " +
			util.PadRight(fmt.Sprintf("%d", s.MessageCount), countWidth) + " " +
			util.TruncateWidth(preview, previewWidth) + "\n")
	}
	return sb.String()
}
