// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package app wires the components of jiyu together from a Config.
package app

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/jeranaias/jiyu/internal/config"
	"github.com/jeranaias/jiyu/internal/gateway"
	"github.com/jeranaias/jiyu/internal/identity"
	"github.com/jeranaias/jiyu/internal/kvstore"
	"github.com/jeranaias/jiyu/internal/secrets"
	"github.com/jeranaias/jiyu/internal/session"
	"github.com/jeranaias/jiyu/internal/settings"
	"github.com/jeranaias/jiyu/internal/storage"
	"github.com/jeranaias/jiyu/internal/voice"
)

// App holds every long-lived component.
type App struct {
	Config        *config.Config
	Logger        *zap.Logger
	KV            kvstore.Store
	Settings      *settings.Settings
	Conversations *storage.Store
	Gateway       *gateway.Gateway
	Voice         *voice.Adapter
	Identity      *identity.Service
	Controller    *session.Controller
}

// Option customizes construction, mainly for tests.
type Option func(*options)

type options struct {
	kv        kvstore.Store
	transport gateway.Transport
	remote    voice.Remote
	player    voice.Player
	local     voice.Synthesizer
	voiceSet  bool
	observer  session.StateObserver
	validator identity.Validator
}

// WithStore uses kv instead of opening the configured backend.
func WithStore(kv kvstore.Store) Option {
	return func(o *options) { o.kv = kv }
}

// WithTransport replaces the model transport.
func WithTransport(t gateway.Transport) Option {
	return func(o *options) { o.transport = t }
}

// WithVoiceEngines replaces the speech engines. Nil values disable that
// engine.
func WithVoiceEngines(remote voice.Remote, player voice.Player, local voice.Synthesizer) Option {
	return func(o *options) {
		o.remote, o.player, o.local = remote, player, local
		o.voiceSet = true
	}
}

// WithObserver registers a controller state observer.
func WithObserver(fn session.StateObserver) Option {
	return func(o *options) { o.observer = fn }
}

// WithTokenValidator replaces Google ID token validation.
func WithTokenValidator(v identity.Validator) Option {
	return func(o *options) { o.validator = v }
}

// New builds an App. The caller must Close it.
func New(cfg *config.Config, logger *zap.Logger, opts ...Option) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}

	kv, sealer, err := openStore(cfg.Storage, o.kv)
	if err != nil {
		return nil, err
	}

	a := &App{Config: cfg, Logger: logger, KV: kv}

	a.Settings = settings.New(kv, sealer, logger.Named("settings")).
		WithKeyFallbacks(cfg.Model.APIKey, cfg.Voice.APIKey)

	a.Conversations = storage.New(kv,
		storage.WithLimits(cfg.Storage.MaxTurns, cfg.Storage.MaxConversations),
		storage.WithLogger(logger.Named("storage")))

	transport := o.transport
	if transport == nil {
		transport, err = NewTransport(cfg.Model.Backend, cfg.Model.BaseURL, cfg.ModelTimeout())
		if err != nil {
			kv.Close()
			return nil, err
		}
	}
	a.Gateway = gateway.New(a.Settings, transport, gateway.Config{
		Candidates:        cfg.Model.Candidates,
		Generation:        cfg.Model.Generation,
		RequestsPerMinute: cfg.Model.RequestsPerMinute,
	}, logger.Named("gateway"))

	remote, player, local := o.remote, o.player, o.local
	if !o.voiceSet {
		remote = voice.NewElevenLabs(cfg.Voice.BaseURL, cfg.VoiceTimeout())
		player = voice.NewCommand(cfg.Voice.PlayerCommand, voice.DefaultPlayerCommand)
		local = voice.NewCommand(cfg.Voice.SpeakCommand, voice.DefaultSpeakCommand)
	}
	a.Voice = voice.NewAdapter(a.Settings, remote, player, local, logger.Named("voice"))

	a.Identity = identity.NewService(a.Settings, cfg.Identity.GoogleClientID, logger.Named("identity"))
	if o.validator != nil {
		a.Identity.WithValidator(o.validator)
	}

	ctrlOpts := []session.Option{
		session.WithWindowSize(cfg.Storage.WindowSize),
		session.WithLogger(logger.Named("session")),
	}
	if o.observer != nil {
		ctrlOpts = append(ctrlOpts, session.WithObserver(o.observer))
	}
	a.Controller = session.New(a.Conversations, a.Gateway, a.Voice, a.Settings, ctrlOpts...)

	return a, nil
}

// NewTransport returns the model transport for backend.
func NewTransport(backend, baseURL string, timeout time.Duration) (gateway.Transport, error) {
	switch strings.ToLower(backend) {
	case "", "rest":
		return gateway.NewRESTTransport(baseURL, timeout), nil
	case "genai":
		return gateway.NewGenAITransport(baseURL, timeout), nil
	case "openai":
		return gateway.NewOpenAITransport(baseURL, timeout), nil
	default:
		return nil, fmt.Errorf("unknown model backend %q", backend)
	}
}

func openStore(cfg config.StorageConfig, injected kvstore.Store) (kvstore.Store, *secrets.Sealer, error) {
	if injected != nil {
		return injected, nil, nil
	}
	switch strings.ToLower(cfg.Backend) {
	case "memory":
		return kvstore.NewMemory(), nil, nil
	case "", "sqlite":
		sealer, err := secrets.Open(cfg.DataDir, cfg.Passphrase)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open key store: %w", err)
		}
		kv, err := kvstore.OpenSQLite(filepath.Join(cfg.DataDir, kvstore.DefaultDBName))
		if err != nil {
			return nil, nil, err
		}
		return kv, sealer, nil
	default:
		return nil, nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
}

// Reset deletes every conversation and setting.
func (a *App) Reset() error {
	a.Voice.Stop()
	return a.Conversations.ClearAll()
}

// Close stops playback and closes the store.
func (a *App) Close() error {
	a.Voice.Stop()
	err := a.KV.Close()
	if syncErr := a.Logger.Sync(); syncErr != nil && !isStdSyncError(syncErr) {
		err = errors.Join(err, syncErr)
	}
	return err
}

// isStdSyncError reports the harmless error zap returns when syncing a
// terminal.
func isStdSyncError(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "inappropriate ioctl") || strings.Contains(msg, "invalid argument") ||
		strings.Contains(msg, "bad file descriptor")
}
