// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func (c *CLI) loginCommand() *cobra.Command {
	var idToken string
	cmd := &cobra.Command{
		Use:   "login <guest|google>",
		Short: "Sign in as a guest or with a Google ID token",
		Long: `Sign in. Signing in is optional; it only sets the account shown in
'jiyu settings' and, for Google, seeds your name.

  guest    continue without an account
  google   verify a Google ID token passed with --id-token (or read from stdin)`,
		Args: exactArgs(1, "login <guest|google> [--id-token TOKEN]"),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := c.open()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			switch strings.ToLower(args[0]) {
			case "guest":
				id, err := a.Identity.LoginGuest()
				if err != nil {
					return err
				}
				fmt.Fprintln(out, SuccessStyle.Render("Signed in as "+id.Name))
			case "google":
				token := idToken
				if token == "" {
					token, err = ReadSecret(out, c.in, "Google ID token: ")
					if err != nil {
						return err
					}
				}
				if token == "" {
					return usageErrorf("an ID token is required for google sign-in")
				}
				id, err := a.Identity.LoginGoogle(cmd.Context(), token)
				if err != nil {
					return err
				}
				fmt.Fprintln(out, SuccessStyle.Render("Signed in as "+id.Name))
			default:
				return usageErrorf("unknown provider %q (use guest or google)", args[0])
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&idToken, "id-token", "", "Google ID token (JWT)")
	return cmd
}

func (c *CLI) logoutCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Sign out",
		Args:  exactArgs(0, "logout"),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := c.open()
			if err != nil {
				return err
			}
			if err := a.Identity.SignOut(); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), SuccessStyle.Render("Signed out"))
			return nil
		},
	}
}
