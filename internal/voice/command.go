// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package voice

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// ErrNoCommand is returned when a command is empty or not installed.
var ErrNoCommand = errors.New("voice command not available")

// Default commands. Both read their input on stdin.
var (
	DefaultSpeakCommand  = []string{"espeak"}
	DefaultPlayerCommand = []string{"ffplay", "-nodisp", "-autoexit", "-loglevel", "quiet", "-i", "-"}
)

// Player plays encoded audio.
type Player interface {
	Play(ctx context.Context, audio []byte) error
}

// Synthesizer speaks text on the local machine.
type Synthesizer interface {
	Say(ctx context.Context, text string) error
}

// Command runs an external program with its input on stdin. It serves as
// both a Player (audio bytes) and a Synthesizer (text).
type Command struct {
	Argv []string
}

// NewCommand parses a command line such as "mpv --no-video -".
func NewCommand(line string, fallback []string) *Command {
	argv := strings.Fields(line)
	if len(argv) == 0 {
		argv = append([]string(nil), fallback...)
	}
	return &Command{Argv: argv}
}

// Available reports whether the program is on PATH.
func (c *Command) Available() bool {
	if len(c.Argv) == 0 {
		return false
	}
	_, err := exec.LookPath(c.Argv[0])
	return err == nil
}

// Play implements Player.
func (c *Command) Play(ctx context.Context, audio []byte) error {
	return c.run(ctx, audio)
}

// Say implements Synthesizer.
func (c *Command) Say(ctx context.Context, text string) error {
	return c.run(ctx, []byte(CleanForSpeech(text)))
}

func (c *Command) run(ctx context.Context, input []byte) error {
	if !c.Available() {
		return ErrNoCommand
	}
	cmd := exec.CommandContext(ctx, c.Argv[0], c.Argv[1:]...)
	cmd.Stdin = bytes.NewReader(input)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%s failed: %w: %s", c.Argv[0], err, strings.TrimSpace(stderr.String()))
	}
	return nil
}
