// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jeranaias/jiyu/internal/session"
)

func (c *CLI) onboardCommand() *cobra.Command {
	var name string
	cmd := &cobra.Command{
		Use:   "onboard",
		Short: "Set your name and start a first conversation",
		Long: `Set your name and start a fresh conversation that opens with a welcome
from Jiyu. 'jiyu chat' asks for your name the first time it runs, so this is
only needed to redo onboarding or to script it.`,
		Args: exactArgs(0, "onboard --name NAME"),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := c.open()
			if err != nil {
				return err
			}
			reply, err := a.Controller.CompleteOnboarding(cmd.Context(), name)
			if errors.Is(err, session.ErrEmptyName) {
				return usageErrorf("a name is required: jiyu onboard --name NAME")
			}
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), JiyuStyle.Render("Jiyu:")+" "+reply.Display)
			a.Voice.Wait(cmd.Context())
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "your name")
	return cmd
}
