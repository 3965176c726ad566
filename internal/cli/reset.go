// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func (c *CLI) resetCommand() *cobra.Command {
	var confirm bool
	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Delete all conversations, settings and keys",
		Args:  exactArgs(0, "reset --confirm"),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !confirm {
				return usageErrorf("this erases all conversations, settings and API keys; re-run with --confirm")
			}
			a, err := c.open()
			if err != nil {
				return err
			}
			if err := a.Reset(); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), SuccessStyle.Render("All data cleared"))
			return nil
		},
	}
	cmd.Flags().BoolVar(&confirm, "confirm", false, "confirm the reset")
	return cmd
}
