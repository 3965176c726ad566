// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jeranaias/jiyu/internal/app"
	"github.com/jeranaias/jiyu/internal/config"
	"github.com/jeranaias/jiyu/internal/logging"
)

// Version information (set at build time).
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// =============================================================================
// CLI STATE
// =============================================================================

type globalFlags struct {
	configPath string
	dataDir    string
	logLevel   string
	ephemeral  bool
}

// CLI carries state shared by every command in one invocation.
type CLI struct {
	flags   globalFlags
	appOpts []app.Option
	in      io.Reader

	cfgPath string
	cfg     *config.Config
	logger  *zap.Logger
	app     *app.App
}

// New creates a CLI. appOpts are passed to app.New.
func New(appOpts ...app.Option) *CLI {
	return &CLI{appOpts: appOpts, in: os.Stdin}
}

// SetInput replaces stdin for prompts.
func (c *CLI) SetInput(r io.Reader) {
	c.in = r
}

// loadConfig resolves configuration and applies global flags.
func (c *CLI) loadConfig() error {
	if c.cfg != nil {
		return nil
	}
	path := c.flags.configPath
	if path == "" {
		p, err := config.DefaultPath()
		if err != nil {
			return &ConfigError{Err: err}
		}
		path = p
	}

	cfg, err := config.Load(path)
	if err != nil {
		return &ConfigError{Err: err}
	}
	if c.flags.dataDir != "" {
		cfg.Storage.DataDir = config.ExpandHome(c.flags.dataDir)
	}
	if c.flags.logLevel != "" {
		cfg.Log.Level = strings.ToLower(c.flags.logLevel)
	}
	if c.flags.ephemeral {
		cfg.Storage.Backend = "memory"
	}
	if err := cfg.Validate(); err != nil {
		return &ConfigError{Err: err}
	}

	logger, err := logging.New(cfg.Log)
	if err != nil {
		return &ConfigError{Err: err}
	}

	c.cfgPath = path
	c.cfg = cfg
	c.logger = logger
	config.SetGlobal(cfg)
	return nil
}

// open returns the App, building it on first use.
func (c *CLI) open() (*app.App, error) {
	if c.app != nil {
		return c.app, nil
	}
	if err := c.loadConfig(); err != nil {
		return nil, err
	}
	a, err := app.New(c.cfg, c.logger, c.appOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to start: %w", err)
	}
	c.app = a
	return a, nil
}

// Close releases the App.
func (c *CLI) Close() error {
	if c.app == nil {
		return nil
	}
	err := c.app.Close()
	c.app = nil
	return err
}

// =============================================================================
// ROOT COMMAND
// =============================================================================

// RootCommand builds the command tree.
func (c *CLI) RootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "jiyu",
		Short: "Jiyu - your AI best friend, in the terminal",
		Long: `Jiyu is a friendly chat companion backed by Gemini.

Run without arguments to start chatting. Conversations and settings are kept
in ~/.jiyu unless --data-dir or --ephemeral is given.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// Plain text when output is piped or captured.
			if !IsTerminal(cmd.OutOrStdout()) || os.Getenv("NO_COLOR") != "" {
				lipgloss.SetColorProfile(termenv.Ascii)
			}
			if cmd.Name() == "version" || cmd.Name() == "help" {
				return nil
			}
			return c.loadConfig()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runChat(cmd, chatOptions{})
		},
	}
	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return &UsageError{Message: err.Error()}
	})

	pf := root.PersistentFlags()
	pf.StringVar(&c.flags.configPath, "config", "", "config file (default ~/.jiyu/config.toml)")
	pf.StringVar(&c.flags.dataDir, "data-dir", "", "directory for conversations and settings")
	pf.StringVar(&c.flags.logLevel, "log-level", "", "log level: debug, info, warn, error")
	pf.BoolVar(&c.flags.ephemeral, "ephemeral", false, "keep everything in memory for this run")

	root.AddCommand(
		c.chatCommand(),
		c.askCommand(),
		c.conversationsCommand(),
		c.settingsCommand(),
		c.voicesCommand(),
		c.loginCommand(),
		c.logoutCommand(),
		c.onboardCommand(),
		c.resetCommand(),
		versionCommand(),
	)
	return root
}

// Execute runs the CLI with args and returns the process exit code.
func Execute(ctx context.Context, args []string) int {
	c := New()
	defer c.Close()

	root := c.RootCommand()
	root.SetArgs(args)
	err := root.ExecuteContext(ctx)
	if err != nil {
		if isUnknownCommand(err) {
			err = &UsageError{Message: err.Error()}
		}
		DisplayError(root.ErrOrStderr(), err)
	}
	return ExitCode(err)
}

func isUnknownCommand(err error) bool {
	return strings.HasPrefix(err.Error(), "unknown command")
}

func versionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "jiyu %s (commit %s, built %s)\n", Version, GitCommit, BuildDate)
		},
	}
}
