// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package settings is the persisted settings singleton: display name, API
// keys, voice preferences, identity and onboarding state.
//
// Reads never fail. A missing or unreadable value yields its default and the
// problem is logged. Writes trim surrounding whitespace; writing an empty
// value removes the key so the default applies again.
package settings

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/jeranaias/jiyu/internal/identity"
	"github.com/jeranaias/jiyu/internal/kvstore"
	"github.com/jeranaias/jiyu/internal/secrets"
)

// =============================================================================
// KEYS
// =============================================================================

const (
	KeyUserName       = "jiyu_user_name"
	KeyModelAPIKey    = "jiyu_gemini_key"
	KeySpeechAPIKey   = "jiyu_elevenlabs_key"
	KeyVoice          = "jiyu_elevenlabs_voice"
	KeyVoiceEngine    = "jiyu_voice_engine"
	KeyVoiceEnabled   = "jiyu_voice_enabled"
	KeyIdentity       = "jiyu_auth_user"
	KeyOnboardingDone = "jiyu_onboarding_done"
)

// AllKeys lists every settings key.
var AllKeys = []string{
	KeyUserName, KeyModelAPIKey, KeySpeechAPIKey, KeyVoice,
	KeyVoiceEngine, KeyVoiceEnabled, KeyIdentity, KeyOnboardingDone,
}

// Engine selects the speech engine.
type Engine string

const (
	// EngineBrowser is the local speech engine. The stored name is kept
	// from earlier releases.
	EngineBrowser Engine = "browser"

	// EngineRemote is the hosted text-to-speech API.
	EngineRemote Engine = "remote"
)

// ParseEngine validates an engine name. "local" is accepted as an alias for
// EngineBrowser.
func ParseEngine(s string) (Engine, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "browser", "local":
		return EngineBrowser, nil
	case "remote", "elevenlabs":
		return EngineRemote, nil
	default:
		return "", fmt.Errorf("unknown voice engine %q (use browser or remote)", s)
	}
}

// =============================================================================
// SETTINGS
// =============================================================================

// Settings reads and writes settings in a kvstore.Store. API keys are sealed
// with the configured Sealer before they are stored.
type Settings struct {
	kv     kvstore.Store
	sealer *secrets.Sealer
	logger *zap.Logger

	// Fallbacks from configuration, used when no key is stored.
	modelKeyFallback  string
	speechKeyFallback string
}

// New creates a Settings view over kv. sealer may be nil, in which case keys
// are stored in plain text.
func New(kv kvstore.Store, sealer *secrets.Sealer, logger *zap.Logger) *Settings {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Settings{kv: kv, sealer: sealer, logger: logger}
}

// WithKeyFallbacks sets API keys to report when none is stored.
func (s *Settings) WithKeyFallbacks(modelKey, speechKey string) *Settings {
	s.modelKeyFallback = strings.TrimSpace(modelKey)
	s.speechKeyFallback = strings.TrimSpace(speechKey)
	return s
}

// Snapshot is a read-only copy of all settings, safe to print.
type Snapshot struct {
	UserName       string             `json:"user_name"`
	ModelKeySet    bool               `json:"model_key_set"`
	SpeechKeySet   bool               `json:"speech_key_set"`
	Voice          string             `json:"voice"`
	VoiceEngine    Engine             `json:"voice_engine"`
	VoiceEnabled   bool               `json:"voice_enabled"`
	Identity       *identity.Identity `json:"identity,omitempty"`
	OnboardingDone bool               `json:"onboarding_done"`
}

// Snapshot returns the current settings without secret values.
func (s *Settings) Snapshot() Snapshot {
	snap := Snapshot{
		UserName:       s.UserName(),
		ModelKeySet:    s.ModelAPIKey() != "",
		SpeechKeySet:   s.SpeechAPIKey() != "",
		Voice:          s.Voice(),
		VoiceEngine:    s.VoiceEngine(),
		VoiceEnabled:   s.VoiceEnabled(),
		OnboardingDone: s.OnboardingDone(),
	}
	if id, ok := s.Identity(); ok {
		snap.Identity = &id
	}
	return snap
}

// ----- display name -----

// UserName returns the display name, or "".
func (s *Settings) UserName() string { return s.get(KeyUserName) }

// SetUserName stores the display name.
func (s *Settings) SetUserName(name string) error { return s.set(KeyUserName, name) }

// ----- API keys -----

// ModelAPIKey returns the model API key, or "".
func (s *Settings) ModelAPIKey() string {
	if v := s.getSecret(KeyModelAPIKey); v != "" {
		return v
	}
	return s.modelKeyFallback
}

// SetModelAPIKey stores the model API key.
func (s *Settings) SetModelAPIKey(key string) error { return s.setSecret(KeyModelAPIKey, key) }

// SpeechAPIKey returns the speech-service API key, or "".
func (s *Settings) SpeechAPIKey() string {
	if v := s.getSecret(KeySpeechAPIKey); v != "" {
		return v
	}
	return s.speechKeyFallback
}

// SetSpeechAPIKey stores the speech-service API key.
func (s *Settings) SetSpeechAPIKey(key string) error { return s.setSecret(KeySpeechAPIKey, key) }

// ----- voice -----

// Voice returns the selected remote voice id, or "".
func (s *Settings) Voice() string { return s.get(KeyVoice) }

// SetVoice stores the remote voice id.
func (s *Settings) SetVoice(id string) error { return s.set(KeyVoice, id) }

// VoiceEngine returns the selected engine, EngineBrowser by default.
func (s *Settings) VoiceEngine() Engine {
	raw := s.get(KeyVoiceEngine)
	if raw == "" {
		return EngineBrowser
	}
	engine, err := ParseEngine(raw)
	if err != nil {
		s.logger.Warn("stored voice engine is invalid, using default", zap.String("value", raw))
		return EngineBrowser
	}
	return engine
}

// SetVoiceEngine stores the engine.
func (s *Settings) SetVoiceEngine(e Engine) error {
	if _, err := ParseEngine(string(e)); err != nil {
		return err
	}
	return s.set(KeyVoiceEngine, string(e))
}

// VoiceEnabled reports whether replies are spoken. Defaults to true.
func (s *Settings) VoiceEnabled() bool { return s.getBool(KeyVoiceEnabled, true) }

// SetVoiceEnabled toggles spoken replies.
func (s *Settings) SetVoiceEnabled(enabled bool) error {
	return s.set(KeyVoiceEnabled, strconv.FormatBool(enabled))
}

// ----- identity -----

// Identity returns the stored identity record, if present and readable.
func (s *Settings) Identity() (identity.Identity, bool) {
	raw := s.get(KeyIdentity)
	if raw == "" {
		return identity.Identity{}, false
	}
	var id identity.Identity
	if err := json.Unmarshal([]byte(raw), &id); err != nil {
		s.logger.Warn("stored identity is corrupt, ignoring", zap.Error(err))
		return identity.Identity{}, false
	}
	return id, true
}

// SetIdentity stores the identity record.
func (s *Settings) SetIdentity(id identity.Identity) error {
	data, err := json.Marshal(id)
	if err != nil {
		return fmt.Errorf("failed to encode identity: %w", err)
	}
	return s.set(KeyIdentity, string(data))
}

// ClearIdentity removes the identity record.
func (s *Settings) ClearIdentity() error { return s.set(KeyIdentity, "") }

// ----- onboarding -----

// OnboardingDone reports whether the first-run flow has completed.
func (s *Settings) OnboardingDone() bool { return s.getBool(KeyOnboardingDone, false) }

// SetOnboardingDone records first-run completion.
func (s *Settings) SetOnboardingDone(done bool) error {
	return s.set(KeyOnboardingDone, strconv.FormatBool(done))
}

// Clear removes every settings key. Conversations are untouched.
func (s *Settings) Clear() error {
	return s.kv.Update(func(tx kvstore.Tx) error {
		for _, k := range AllKeys {
			if err := tx.Delete(k); err != nil {
				return err
			}
		}
		return nil
	})
}

// =============================================================================
// HELPERS
// =============================================================================

func (s *Settings) get(key string) string {
	v, ok, err := s.kv.Get(key)
	if err != nil {
		s.logger.Warn("failed to read setting", zap.String("key", key), zap.Error(err))
		return ""
	}
	if !ok {
		return ""
	}
	return v
}

func (s *Settings) set(key, value string) error {
	value = strings.TrimSpace(value)
	var err error
	if value == "" {
		err = s.kv.Delete(key)
	} else {
		err = s.kv.Set(key, value)
	}
	if err != nil {
		return fmt.Errorf("failed to save setting %s: %w", key, err)
	}
	return nil
}

func (s *Settings) getBool(key string, def bool) bool {
	raw := s.get(key)
	if raw == "" {
		return def
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return def
	}
	return b
}

func (s *Settings) getSecret(key string) string {
	raw := s.get(key)
	if raw == "" || s.sealer == nil {
		return raw
	}
	plain, err := s.sealer.Unseal(raw)
	if err != nil {
		s.logger.Warn("failed to unseal stored key", zap.String("key", key), zap.Error(err))
		return ""
	}
	return plain
}

func (s *Settings) setSecret(key, value string) error {
	value = strings.TrimSpace(value)
	if value == "" || s.sealer == nil {
		return s.set(key, value)
	}
	sealed, err := s.sealer.Seal(value)
	if err != nil {
		return fmt.Errorf("failed to seal %s: %w", key, err)
	}
	return s.set(key, sealed)
}
