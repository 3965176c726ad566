// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/jeranaias/jiyu/internal/storage"
	"github.com/jeranaias/jiyu/internal/util"
)

// =============================================================================
// ARGUMENT VALIDATION
// =============================================================================

func exactArgs(n int, usage string) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if len(args) != n {
			return usageErrorf("usage: jiyu %s", usage)
		}
		return nil
	}
}

func minArgs(n int, usage string) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if len(args) < n {
			return usageErrorf("usage: jiyu %s", usage)
		}
		return nil
	}
}

// =============================================================================
// CONVERSATION LOOKUP
// =============================================================================

// minPrefixLen is the shortest id prefix accepted as a reference.
const minPrefixLen = 4

// conversationLister is the part of storage.Store used for lookups.
type conversationLister interface {
	Conversations() []storage.ConversationMeta
}

// resolveConversation finds a conversation by list number (1 = most
// recent), full id, or a unique id prefix or suffix (listings show the
// suffix).
func resolveConversation(store conversationLister, ref string) (string, error) {
	ref = strings.TrimSpace(ref)
	metas := store.Conversations()

	if n, err := strconv.Atoi(ref); err == nil {
		if n >= 1 && n <= len(metas) {
			return metas[n-1].ID, nil
		}
		return "", &NotFoundError{Resource: "conversation", ID: ref}
	}

	var matches []string
	for _, m := range metas {
		if m.ID == ref {
			return m.ID, nil
		}
		if len(ref) >= minPrefixLen && (strings.HasPrefix(m.ID, ref) || strings.HasSuffix(m.ID, ref)) {
			matches = append(matches, m.ID)
		}
	}
	switch len(matches) {
	case 1:
		return matches[0], nil
	case 0:
		return "", &NotFoundError{Resource: "conversation", ID: ref}
	default:
		return "", usageErrorf("'%s' matches %d conversations; use more of the id", ref, len(matches))
	}
}

// =============================================================================
// OUTPUT
// =============================================================================

// shortID is the id form shown in listings.
func shortID(id string) string {
	if len(id) <= 13 {
		return id
	}
	return id[len(id)-12:]
}

// printConversationList prints metas numbered from 1, marking current.
func printConversationList(w io.Writer, metas []storage.ConversationMeta, current string) {
	if len(metas) == 0 {
		fmt.Fprintln(w, MutedStyle.Render("No conversations yet."))
		return
	}
	previewWidth := TerminalWidth() - 40
	if previewWidth < 20 {
		previewWidth = 20
	}
	for i, m := range metas {
		marker := " "
		if m.ID == current {
			marker = "*"
		}
		preview := util.SingleLine(m.Preview)
		if preview == "" {
			preview = "(no messages from you yet)"
		}
		fmt.Fprintf(w, "%s %3d  %s  %s  %s\n",
			marker,
			i+1,
			MutedStyle.Render(util.PadWidth(shortID(m.ID), 12)),
			MutedStyle.Render(formatWhen(m.UpdatedAt)),
			util.TruncateWidth(preview, previewWidth),
		)
	}
}

// printTurns prints a transcript.
func printTurns(w io.Writer, turns []storage.Turn, userName string, render func(string) string) {
	if userName == "" {
		userName = "You"
	}
	for _, t := range turns {
		if t.Role == storage.RoleUser {
			fmt.Fprintf(w, "%s %s\n", UserStyle.Render(userName+":"), t.Content)
		} else {
			fmt.Fprintf(w, "%s %s\n", JiyuStyle.Render("Jiyu:"), render(t.Content))
		}
	}
}

func formatWhen(t time.Time) string {
	if t.IsZero() {
		return util.PadWidth("", 16)
	}
	return t.Local().Format("2006-01-02 15:04")
}
