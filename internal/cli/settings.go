// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jeranaias/jiyu/internal/gateway"
	"github.com/jeranaias/jiyu/internal/settings"
	"github.com/jeranaias/jiyu/internal/voice"
)

func (c *CLI) settingsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "View and change settings",
		Args:  exactArgs(0, "settings"),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.showSettings(cmd, false)
		},
	}

	var asJSON bool
	show := &cobra.Command{
		Use:   "show",
		Short: "Show current settings (API keys are never printed)",
		Args:  exactArgs(0, "settings show [--json]"),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.showSettings(cmd, asJSON)
		},
	}
	show.Flags().BoolVar(&asJSON, "json", false, "output as JSON")

	cmd.AddCommand(show, c.setSettingCommand(), c.setKeyCommand())
	return cmd
}

func (c *CLI) showSettings(cmd *cobra.Command, asJSON bool) error {
	a, err := c.open()
	if err != nil {
		return err
	}
	snap := a.Settings.Snapshot()
	out := cmd.OutOrStdout()

	if asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(snap)
	}

	name := snap.UserName
	if name == "" {
		name = MutedStyle.Render("(not set)")
	}
	voiceID := snap.Voice
	if voiceID == "" {
		voiceID = voice.DefaultVoiceID + MutedStyle.Render(" (default)")
	}
	account := MutedStyle.Render("signed out")
	if snap.Identity != nil {
		account = fmt.Sprintf("%s (%s)", snap.Identity.Name, snap.Identity.Provider)
	}

	fmt.Fprintln(out, TitleStyle.Render("Settings"))
	fmt.Fprintln(out, labelValue("Name", name))
	fmt.Fprintln(out, labelValue("Account", account))
	fmt.Fprintln(out, labelValue("Gemini key", keyStatus(a.Settings.ModelAPIKey())))
	fmt.Fprintln(out, labelValue("Speech key", keyStatus(a.Settings.SpeechAPIKey())))
	fmt.Fprintln(out, labelValue("Voice", voiceID))
	fmt.Fprintln(out, labelValue("Voice engine", string(snap.VoiceEngine)))
	fmt.Fprintln(out, labelValue("Voice enabled", strconv.FormatBool(snap.VoiceEnabled)))
	fmt.Fprintln(out, labelValue("Model backend", a.Config.Model.Backend))
	fmt.Fprintln(out, labelValue("Models", strings.Join(a.Config.Model.Candidates, ", ")))
	fmt.Fprintln(out, labelValue("Data directory", a.Config.Storage.DataDir))
	return nil
}

// keyStatus shows whether a key is set without revealing it.
func keyStatus(key string) string {
	if key == "" {
		return WarningStyle.Render("not set")
	}
	return SuccessStyle.Render("set") + MutedStyle.Render(" ("+gateway.KeyFingerprint(key)+")")
}

func (c *CLI) setSettingCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "set <field> <value>",
		Short: "Change a setting",
		Long: `Change a setting. Fields:

  name            your display name
  voice           speech voice id (see 'jiyu voices')
  engine          speech engine: browser (local) or remote
  voice-enabled   speak replies aloud: true or false

Pass an empty value ("") to reset name or voice.`,
		Example: `  jiyu settings set name Ana
  jiyu settings set voice-enabled false`,
		Args: exactArgs(2, "settings set <field> <value>"),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := c.open()
			if err != nil {
				return err
			}
			s := a.Settings
			field, value := strings.ToLower(args[0]), args[1]

			switch field {
			case "name", "user-name":
				err = s.SetUserName(value)
			case "voice", "voice-id":
				err = s.SetVoice(value)
			case "engine", "voice-engine":
				engine, perr := settings.ParseEngine(value)
				if perr != nil {
					return &UsageError{Message: perr.Error()}
				}
				err = s.SetVoiceEngine(engine)
			case "voice-enabled", "speak":
				enabled, perr := strconv.ParseBool(value)
				if perr != nil {
					return usageErrorf("voice-enabled must be true or false, got %q", value)
				}
				err = s.SetVoiceEnabled(enabled)
			default:
				return usageErrorf("unknown setting %q (use name, voice, engine or voice-enabled)", args[0])
			}
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), SuccessStyle.Render("Saved "+field))
			return nil
		},
	}
}

func (c *CLI) setKeyCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "set-key <model|speech>",
		Short: "Store an API key (read from the terminal without echo)",
		Long: `Store an API key. The key is read from stdin without echo and sealed
at rest when a passphrase is configured. Enter an empty key to remove it.

  model    Gemini API key used for replies
  speech   ElevenLabs API key used for spoken replies`,
		Args: exactArgs(1, "settings set-key <model|speech>"),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := c.open()
			if err != nil {
				return err
			}
			var (
				set   func(string) error
				label string
			)
			switch strings.ToLower(args[0]) {
			case "model", "gemini":
				set, label = a.Settings.SetModelAPIKey, "Gemini"
			case "speech", "voice", "elevenlabs":
				set, label = a.Settings.SetSpeechAPIKey, "speech"
			default:
				return usageErrorf("unknown key %q (use model or speech)", args[0])
			}

			key, err := ReadSecret(cmd.OutOrStdout(), c.in, label+" API key: ")
			if err != nil {
				return err
			}
			if err := set(key); err != nil {
				return err
			}
			if key == "" {
				fmt.Fprintln(cmd.OutOrStdout(), SuccessStyle.Render("Removed "+label+" API key"))
			} else {
				fmt.Fprintln(cmd.OutOrStdout(), SuccessStyle.Render("Saved "+label+" API key ("+gateway.KeyFingerprint(key)+")"))
			}
			return nil
		},
	}
}
