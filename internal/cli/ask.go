// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func (c *CLI) askCommand() *cobra.Command {
	var (
		conversation string
		newConv      bool
	)
	cmd := &cobra.Command{
		Use:   "ask <message>",
		Short: "Send one message and print the reply",
		Long: `Send one message and print Jiyu's reply.

The message joins the most recent conversation unless --conversation or
--new is given, so follow-up questions keep their context.`,
		Example: `  jiyu ask "what should I cook tonight?"
  jiyu ask --new "tell me a joke"`,
		Args: minArgs(1, "ask <message>"),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := c.open()
			if err != nil {
				return err
			}
			r := &repl{app: a, out: cmd.OutOrStdout()}
			if err := r.selectConversation(chatOptions{conversation: conversation, newConv: newConv}); err != nil {
				return err
			}

			reply, err := a.Controller.Submit(cmd.Context(), strings.Join(args, " "))
			if err != nil {
				return err
			}
			if reply.Skipped {
				return usageErrorf("message is empty")
			}
			fmt.Fprintln(cmd.OutOrStdout(), NewRenderer(a.Config.UI, IsTerminal(cmd.OutOrStdout())).Render(reply.Text))

			// Let a spoken reply finish before the process exits.
			a.Voice.Wait(cmd.Context())
			return nil
		},
	}
	cmd.Flags().StringVarP(&conversation, "conversation", "c", "", "conversation to continue (number, id or id suffix)")
	cmd.Flags().BoolVarP(&newConv, "new", "n", false, "start a new conversation")
	return cmd
}
