// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jeranaias/jiyu/internal/export"
)

func (c *CLI) conversationsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "conversations",
		Aliases: []string{"conv", "history"},
		Short:   "List, view, export and delete conversations",
		Args:    exactArgs(0, "conversations"),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.listConversations(cmd)
		},
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List conversations, most recent first",
			Args:  exactArgs(0, "conversations list"),
			RunE: func(cmd *cobra.Command, args []string) error {
				return c.listConversations(cmd)
			},
		},
		c.showConversationCommand(),
		c.exportConversationCommand(),
		c.deleteConversationCommand(),
		c.searchConversationsCommand(),
		c.clearConversationsCommand(),
	)
	return cmd
}

func (c *CLI) listConversations(cmd *cobra.Command) error {
	a, err := c.open()
	if err != nil {
		return err
	}
	printConversationList(cmd.OutOrStdout(), a.Conversations.Conversations(), "")
	return nil
}

func (c *CLI) showConversationCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show <number|id>",
		Short: "Print a conversation",
		Args:  exactArgs(1, "conversations show <number|id>"),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := c.open()
			if err != nil {
				return err
			}
			id, err := resolveConversation(a.Conversations, args[0])
			if err != nil {
				return err
			}
			renderer := NewRenderer(a.Config.UI, IsTerminal(cmd.OutOrStdout()))
			printTurns(cmd.OutOrStdout(), a.Conversations.Turns(id), a.Settings.UserName(), renderer.Render)
			return nil
		},
	}
}

func (c *CLI) exportConversationCommand() *cobra.Command {
	var (
		format string
		output string
	)
	cmd := &cobra.Command{
		Use:   "export <number|id>",
		Short: "Export a conversation to Markdown or JSON",
		Example: `  jiyu conversations export 1
  jiyu conversations export 1 --format json --output ~/exports`,
		Args: exactArgs(1, "conversations export <number|id> [--format markdown|json] [--output DIR]"),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := c.open()
			if err != nil {
				return err
			}
			id, err := resolveConversation(a.Conversations, args[0])
			if err != nil {
				return err
			}
			tr, err := a.Conversations.Transcript(id)
			if err != nil {
				return err
			}

			opts := export.DefaultOptions()
			opts.OutputDir = output
			if name := a.Settings.UserName(); name != "" {
				opts.UserName = name
			}
			exporter, err := export.ForFormat(format, opts)
			if err != nil {
				return &UsageError{Message: err.Error()}
			}
			path, err := export.ExportToFile(tr, exporter, opts)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), SuccessStyle.Render("Exported to "+path))
			return nil
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "markdown", "export format: markdown or json")
	cmd.Flags().StringVarP(&output, "output", "o", ".", "output directory")
	return cmd
}

func (c *CLI) deleteConversationCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "delete <number|id>",
		Aliases: []string{"rm"},
		Short:   "Delete a conversation",
		Args:    exactArgs(1, "conversations delete <number|id>"),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := c.open()
			if err != nil {
				return err
			}
			id, err := resolveConversation(a.Conversations, args[0])
			if err != nil {
				return err
			}
			if err := a.Conversations.DeleteConversation(id); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), SuccessStyle.Render("Deleted conversation "+shortID(id)))
			return nil
		},
	}
}

func (c *CLI) searchConversationsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "search <text>",
		Short: "Find conversations containing text",
		Args:  exactArgs(1, "conversations search <text>"),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := c.open()
			if err != nil {
				return err
			}
			printConversationList(cmd.OutOrStdout(), a.Conversations.Search(args[0]), "")
			return nil
		},
	}
}

func (c *CLI) clearConversationsCommand() *cobra.Command {
	var confirm bool
	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete every conversation",
		Args:  exactArgs(0, "conversations clear --confirm"),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !confirm {
				return usageErrorf("this deletes every conversation; re-run with --confirm")
			}
			a, err := c.open()
			if err != nil {
				return err
			}
			metas := a.Conversations.Conversations()
			for _, m := range metas {
				if err := a.Conversations.DeleteConversation(m.ID); err != nil {
					return err
				}
			}
			fmt.Fprintln(cmd.OutOrStdout(), SuccessStyle.Render(fmt.Sprintf("Deleted %d conversations", len(metas))))
			return nil
		},
	}
	cmd.Flags().BoolVar(&confirm, "confirm", false, "confirm deletion")
	return cmd
}
