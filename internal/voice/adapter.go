// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package voice

import (
	"context"
	"errors"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/jeranaias/jiyu/internal/settings"
)

// ErrNoSpeechKey is returned when listing voices without a speech API key.
var ErrNoSpeechKey = errors.New("no ElevenLabs key set. Add one with `jiyu settings set-key speech`")

// Preferences is the voice part of the user's settings.
type Preferences interface {
	VoiceEnabled() bool
	VoiceEngine() settings.Engine
	SpeechAPIKey() string
	Voice() string
}

// Remote synthesizes audio through a hosted API.
type Remote interface {
	Synthesize(ctx context.Context, apiKey, voiceID, text string) ([]byte, error)
	ListVoices(ctx context.Context, apiKey string) ([]VoiceInfo, error)
}

// Adapter speaks text with the engine selected in Preferences.
type Adapter struct {
	prefs  Preferences
	remote Remote
	player Player
	local  Synthesizer
	logger *zap.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewAdapter creates an Adapter. Any engine may be nil, in which case that
// engine is skipped.
func NewAdapter(prefs Preferences, remote Remote, player Player, local Synthesizer, logger *zap.Logger) *Adapter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Adapter{prefs: prefs, remote: remote, player: player, local: local, logger: logger}
}

// Speak stops any current playback and starts speaking text in the
// background. It does nothing when voice output is disabled.
func (a *Adapter) Speak(ctx context.Context, text string) {
	a.Stop()
	if !a.prefs.VoiceEnabled() || strings.TrimSpace(text) == "" {
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})

	a.mu.Lock()
	a.cancel = cancel
	a.done = done
	a.mu.Unlock()

	go func() {
		defer close(done)
		defer cancel()
		a.speak(ctx, text)
	}()
}

// Stop cancels current playback and waits for it to wind down.
func (a *Adapter) Stop() {
	a.mu.Lock()
	cancel, done := a.cancel, a.done
	a.cancel, a.done = nil, nil
	a.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
}

// Wait blocks until current playback finishes or ctx is done.
func (a *Adapter) Wait(ctx context.Context) {
	a.mu.Lock()
	done := a.done
	a.mu.Unlock()
	if done == nil {
		return
	}
	select {
	case <-done:
	case <-ctx.Done():
	}
}

// ListVoices returns the remote voices for the configured speech key.
func (a *Adapter) ListVoices(ctx context.Context) ([]VoiceInfo, error) {
	key := a.prefs.SpeechAPIKey()
	if key == "" {
		return nil, ErrNoSpeechKey
	}
	if a.remote == nil {
		return []VoiceInfo{}, nil
	}
	return a.remote.ListVoices(ctx, key)
}

func (a *Adapter) speak(ctx context.Context, text string) {
	if a.prefs.VoiceEngine() == settings.EngineRemote && a.remote != nil && a.player != nil {
		if key := a.prefs.SpeechAPIKey(); key != "" {
			audio, err := a.remote.Synthesize(ctx, key, a.prefs.Voice(), text)
			if err == nil {
				if err := a.player.Play(ctx, audio); err != nil && ctx.Err() == nil {
					a.logger.Warn("audio playback failed", zap.Error(err))
				}
				return
			}
			if ctx.Err() != nil {
				return
			}
			a.logger.Warn("remote speech failed, using local voice", zap.Error(err))
		}
	}

	if a.local == nil {
		return
	}
	if err := a.local.Say(ctx, text); err != nil && ctx.Err() == nil {
		a.logger.Debug("local speech failed", zap.Error(err))
	}
}
