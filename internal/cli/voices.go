// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jeranaias/jiyu/internal/util"
	"github.com/jeranaias/jiyu/internal/voice"
)

func (c *CLI) voicesCommand() *cobra.Command {
	var say string
	cmd := &cobra.Command{
		Use:   "voices",
		Short: "List voices available for spoken replies",
		Long: `List the voices of the remote speech service. Requires a speech API key
('jiyu settings set-key speech'). Use --say to hear the current voice.`,
		Args: exactArgs(0, "voices [--say TEXT]"),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := c.open()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			if say != "" {
				a.Voice.Speak(cmd.Context(), say)
				a.Voice.Wait(cmd.Context())
				return nil
			}

			voices, err := a.Voice.ListVoices(cmd.Context())
			if err != nil {
				return err
			}
			if len(voices) == 0 {
				fmt.Fprintln(out, MutedStyle.Render("No voices available."))
				return nil
			}
			current := a.Settings.Voice()
			if current == "" {
				current = voice.DefaultVoiceID
			}
			for _, v := range voices {
				marker := " "
				if v.VoiceID == current {
					marker = "*"
				}
				fmt.Fprintf(out, "%s %s  %s  %s\n",
					marker,
					MutedStyle.Render(util.PadWidth(v.VoiceID, 22)),
					util.PadWidth(util.TruncateWidth(v.Name, 24), 24),
					MutedStyle.Render(v.Category))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&say, "say", "", "speak TEXT with the current voice settings")
	return cmd
}
