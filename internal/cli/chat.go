// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"github.com/peterh/liner"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jeranaias/jiyu/internal/app"
	"github.com/jeranaias/jiyu/internal/config"
	"github.com/jeranaias/jiyu/internal/session"
)

type chatOptions struct {
	conversation string
	newConv      bool
}

func (c *CLI) chatCommand() *cobra.Command {
	var opts chatOptions
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Start an interactive conversation",
		Long: `Start an interactive conversation with Jiyu.

By default the most recent conversation is resumed. Type /help inside the
chat for commands. Ctrl+C cancels a pending reply; Ctrl+D or /quit exits.`,
		Args: exactArgs(0, "chat [--new | --conversation REF]"),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runChat(cmd, opts)
		},
	}
	cmd.Flags().StringVarP(&opts.conversation, "conversation", "c", "", "conversation to resume (number, id or id suffix)")
	cmd.Flags().BoolVarP(&opts.newConv, "new", "n", false, "start a new conversation")
	return cmd
}

// =============================================================================
// INPUT HISTORY
// =============================================================================

// lineReader provides line editing and persistent input history.
// USABILITY: Supports arrow keys for history navigation and line editing.
type lineReader struct {
	line        *liner.State
	historyFile string
}

func newLineReader(historyFile string) *lineReader {
	line := liner.NewLiner()
	line.SetCtrlCAborts(true)
	r := &lineReader{line: line, historyFile: historyFile}
	if f, err := os.Open(historyFile); err == nil {
		line.ReadHistory(f)
		f.Close()
	}
	return r
}

func (r *lineReader) Prompt(prompt string) (string, error) {
	input, err := r.line.Prompt(prompt)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(input) != "" {
		r.line.AppendHistory(input)
	}
	return input, nil
}

// Close saves history with owner-only permissions and restores the terminal.
func (r *lineReader) Close() {
	if err := os.MkdirAll(filepath.Dir(r.historyFile), 0700); err == nil {
		if f, err := os.OpenFile(r.historyFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600); err == nil {
			r.line.WriteHistory(f)
			f.Close()
		}
	}
	r.line.Close()
}

// =============================================================================
// REPL
// =============================================================================

type repl struct {
	app      *app.App
	out      io.Writer
	renderer *Renderer
	logger   *zap.Logger
}

func (c *CLI) runChat(cmd *cobra.Command, opts chatOptions) error {
	a, err := c.open()
	if err != nil {
		return err
	}
	r := &repl{
		app:      a,
		out:      cmd.OutOrStdout(),
		renderer: NewRenderer(a.Config.UI, IsTerminal(cmd.OutOrStdout())),
		logger:   c.logger.Named("chat"),
	}

	if err := r.selectConversation(opts); err != nil {
		return err
	}

	input := newLineReader(a.Config.HistoryPath())
	defer input.Close()

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()
	if a.Config.Storage.Backend != "memory" {
		go func() {
			err := config.Watch(ctx, c.cfgPath, 0, func(cfg *config.Config, err error) {
				if err != nil {
					r.logger.Warn("config reload failed", zap.Error(err))
					return
				}
				r.renderer.Update(cfg.UI)
				r.logger.Info("config reloaded", zap.String("path", c.cfgPath))
			})
			if err != nil {
				r.logger.Debug("config watch stopped", zap.Error(err))
			}
		}()
	}

	fmt.Fprintln(r.out, TitleStyle.Render("Jiyu")+MutedStyle.Render("  /help for commands, Ctrl+D to exit"))
	if !a.Settings.OnboardingDone() {
		if err := r.onboard(ctx, input); err != nil {
			if errors.Is(err, liner.ErrPromptAborted) || errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
	} else {
		r.welcomeBack()
	}
	if a.Settings.ModelAPIKey() == "" {
		fmt.Fprintln(r.out, WarningStyle.Render("No Gemini API key yet. Add one with `jiyu settings set-key model`."))
	}

	for {
		line, err := input.Prompt(PromptStyle.Render("you› "))
		if err != nil {
			if errors.Is(err, liner.ErrPromptAborted) || errors.Is(err, io.EOF) {
				fmt.Fprintln(r.out)
				return nil
			}
			return fmt.Errorf("failed to read input: %w", err)
		}

		line = strings.TrimSpace(line)
		switch {
		case line == "":
			continue
		case strings.HasPrefix(line, "/"):
			keepGoing, err := r.handleSlashCommand(line)
			if err != nil {
				DisplayError(r.out, err)
			}
			if !keepGoing {
				return nil
			}
		case strings.EqualFold(line, "exit"), strings.EqualFold(line, "quit"):
			return nil
		default:
			r.send(ctx, line)
		}
	}
}

func (r *repl) selectConversation(opts chatOptions) error {
	ctrl := r.app.Controller
	switch {
	case opts.conversation != "":
		id, err := resolveConversation(r.app.Conversations, opts.conversation)
		if err != nil {
			return err
		}
		return ctrl.SwitchToConversation(id)
	case opts.newConv:
		ctrl.StartNewConversation()
	default:
		metas := r.app.Conversations.Conversations()
		if len(metas) == 0 {
			ctrl.StartNewConversation()
			return nil
		}
		return ctrl.SwitchToConversation(metas[0].ID)
	}
	return nil
}

func (r *repl) onboard(ctx context.Context, input *lineReader) error {
	fmt.Fprintln(r.out, JiyuStyle.Render("Jiyu:")+" Hi! I'm Jiyu. Before we start, what should I call you?")
	for {
		name, err := input.Prompt(PromptStyle.Render("name› "))
		if err != nil {
			return err
		}
		reply, err := r.app.Controller.CompleteOnboarding(ctx, name)
		if errors.Is(err, session.ErrEmptyName) {
			continue
		}
		if err != nil {
			return err
		}
		r.printJiyu(reply.Display)
		return nil
	}
}

func (r *repl) welcomeBack() {
	if greeting, ok := r.app.Controller.Greeting(time.Now()); ok {
		r.printJiyu(greeting)
		return
	}
	turns := r.app.Controller.History()
	const tail = 6
	if len(turns) > tail {
		fmt.Fprintln(r.out, MutedStyle.Render(fmt.Sprintf("… %d earlier messages (/history shows all)", len(turns)-tail)))
		turns = turns[len(turns)-tail:]
	}
	printTurns(r.out, turns, r.app.Settings.UserName(), r.renderer.Render)
}

// send submits one message. Ctrl+C cancels the pending reply.
func (r *repl) send(parent context.Context, text string) {
	ctx, stop := signal.NotifyContext(parent, os.Interrupt)
	defer stop()

	fmt.Fprintln(r.out, MutedStyle.Render("Jiyu is typing…"))
	reply, err := r.app.Controller.Submit(ctx, text)
	if reply.Skipped {
		return
	}
	if err != nil {
		if errors.Is(err, context.Canceled) {
			fmt.Fprintln(r.out, WarningStyle.Render("[Cancelled]"))
			return
		}
		fmt.Fprintln(r.out, JiyuStyle.Render("Jiyu:")+" "+ErrorStyle.Render(reply.Display))
		return
	}
	if reply.ConversationID != r.app.Controller.Current() {
		fmt.Fprintln(r.out, MutedStyle.Render("(reply saved to conversation "+shortID(reply.ConversationID)+")"))
		return
	}
	r.printJiyu(reply.Text)
}

func (r *repl) printJiyu(text string) {
	fmt.Fprintln(r.out, JiyuStyle.Render("Jiyu:"))
	fmt.Fprintln(r.out, r.renderer.Render(text))
}

// =============================================================================
// SLASH COMMANDS
// =============================================================================

// handleSlashCommand runs one slash command. It returns false to exit.
func (r *repl) handleSlashCommand(input string) (bool, error) {
	parts := strings.Fields(input)
	command := strings.ToLower(parts[0])
	args := parts[1:]
	ctrl := r.app.Controller

	switch command {
	case "/help", "/h", "/?", "/":
		printChatHelp(r.out)

	case "/new", "/n":
		ctrl.StartNewConversation()
		fmt.Fprintln(r.out, CommandStyle.Render("[New conversation]"))

	case "/list", "/l":
		printConversationList(r.out, r.app.Conversations.Conversations(), ctrl.Current())

	case "/switch", "/s":
		if len(args) != 1 {
			return true, usageErrorf("usage: /switch <number|id>")
		}
		id, err := resolveConversation(r.app.Conversations, args[0])
		if err != nil {
			return true, err
		}
		if err := ctrl.SwitchToConversation(id); err != nil {
			return true, err
		}
		fmt.Fprintln(r.out, CommandStyle.Render("[Switched to "+shortID(id)+"]"))
		printTurns(r.out, ctrl.History(), r.app.Settings.UserName(), r.renderer.Render)

	case "/history":
		turns := ctrl.History()
		if len(turns) == 0 {
			fmt.Fprintln(r.out, MutedStyle.Render("No messages in this conversation yet."))
		}
		printTurns(r.out, turns, r.app.Settings.UserName(), r.renderer.Render)

	case "/voice", "/v":
		return true, r.voiceCommand(args)

	case "/delete":
		id := ctrl.Current()
		if err := r.app.Conversations.DeleteConversation(id); err != nil {
			return true, err
		}
		ctrl.StartNewConversation()
		fmt.Fprintln(r.out, CommandStyle.Render("[Conversation deleted; started a new one]"))

	case "/quit", "/q", "/exit":
		return false, nil

	default:
		return true, usageErrorf("unknown command: %s (type /help for commands)", command)
	}
	return true, nil
}

func (r *repl) voiceCommand(args []string) error {
	s := r.app.Settings
	if len(args) == 0 {
		state := "off"
		if s.VoiceEnabled() {
			state = "on"
		}
		fmt.Fprintf(r.out, "Voice is %s (engine: %s)\n", state, s.VoiceEngine())
		return nil
	}
	switch strings.ToLower(args[0]) {
	case "on":
		if err := s.SetVoiceEnabled(true); err != nil {
			return err
		}
		fmt.Fprintln(r.out, CommandStyle.Render("[Voice on]"))
	case "off":
		r.app.Voice.Stop()
		if err := s.SetVoiceEnabled(false); err != nil {
			return err
		}
		fmt.Fprintln(r.out, CommandStyle.Render("[Voice off]"))
	case "stop":
		r.app.Voice.Stop()
	default:
		return usageErrorf("usage: /voice [on|off|stop]")
	}
	return nil
}

func printChatHelp(w io.Writer) {
	rows := [][2]string{
		{"/new", "start a new conversation"},
		{"/list", "list conversations (* marks the current one)"},
		{"/switch <n|id>", "switch to a conversation from /list"},
		{"/history", "show every message in this conversation"},
		{"/voice [on|off|stop]", "toggle spoken replies"},
		{"/delete", "delete this conversation"},
		{"/quit", "exit (or Ctrl+D)"},
	}
	fmt.Fprintln(w, TitleStyle.Render("Commands"))
	for _, row := range rows {
		fmt.Fprintf(w, "  %s %s\n", CommandStyle.Render(fmt.Sprintf("%-22s", row[0])), row[1])
	}
}
