// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package settings

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/jeranaias/jiyu/internal/identity"
	"github.com/jeranaias/jiyu/internal/kvstore"
	"github.com/jeranaias/jiyu/internal/secrets"
)

func newTestSettings(t *testing.T) (*Settings, kvstore.Store) {
	t.Helper()
	kv := kvstore.NewMemory()
	sealer, err := secrets.Open(t.TempDir(), "")
	require.NoError(t, err)
	return New(kv, sealer, zaptest.NewLogger(t)), kv
}

func TestDefaults(t *testing.T) {
	s, _ := newTestSettings(t)

	snap := s.Snapshot()
	assert.Equal(t, "", snap.UserName)
	assert.False(t, snap.ModelKeySet)
	assert.False(t, snap.SpeechKeySet)
	assert.Equal(t, "", snap.Voice)
	assert.Equal(t, EngineBrowser, snap.VoiceEngine)
	assert.True(t, snap.VoiceEnabled)
	assert.Nil(t, snap.Identity)
	assert.False(t, snap.OnboardingDone)
}

func TestSetTrimsAndEmptyRemoves(t *testing.T) {
	s, kv := newTestSettings(t)

	require.NoError(t, s.SetUserName("  Ana  "))
	assert.Equal(t, "Ana", s.UserName())

	require.NoError(t, s.SetUserName("   "))
	assert.Equal(t, "", s.UserName())
	_, ok, _ := kv.Get(KeyUserName)
	assert.False(t, ok)
}

func TestAPIKeysAreSealedAtRest(t *testing.T) {
	s, kv := newTestSettings(t)

	require.NoError(t, s.SetModelAPIKey(" AIza-model "))
	require.NoError(t, s.SetSpeechAPIKey("xi-speech"))

	raw, ok, err := kv.Get(KeyModelAPIKey)
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, secrets.IsSealed(raw))
	assert.NotContains(t, raw, "AIza")

	assert.Equal(t, "AIza-model", s.ModelAPIKey())
	assert.Equal(t, "xi-speech", s.SpeechAPIKey())
}

func TestAPIKeyFallbacks(t *testing.T) {
	s, _ := newTestSettings(t)
	s.WithKeyFallbacks("env-model", "env-speech")

	assert.Equal(t, "env-model", s.ModelAPIKey())
	assert.Equal(t, "env-speech", s.SpeechAPIKey())

	require.NoError(t, s.SetModelAPIKey("stored"))
	assert.Equal(t, "stored", s.ModelAPIKey(), "stored key wins over fallback")
}

func TestPlainStorageWithoutSealer(t *testing.T) {
	kv := kvstore.NewMemory()
	s := New(kv, nil, nil)
	require.NoError(t, s.SetModelAPIKey("plain"))

	raw, _, _ := kv.Get(KeyModelAPIKey)
	assert.Equal(t, "plain", raw)
	assert.Equal(t, "plain", s.ModelAPIKey())
}

func TestVoiceEngine(t *testing.T) {
	s, kv := newTestSettings(t)

	require.NoError(t, s.SetVoiceEngine(EngineRemote))
	assert.Equal(t, EngineRemote, s.VoiceEngine())

	assert.Error(t, s.SetVoiceEngine(Engine("carrier-pigeon")))

	require.NoError(t, kv.Set(KeyVoiceEngine, "garbage"))
	assert.Equal(t, EngineBrowser, s.VoiceEngine())
}

func TestParseEngine(t *testing.T) {
	e, err := ParseEngine("Local")
	require.NoError(t, err)
	assert.Equal(t, EngineBrowser, e)

	e, err = ParseEngine("remote")
	require.NoError(t, err)
	assert.Equal(t, EngineRemote, e)

	_, err = ParseEngine("")
	assert.Error(t, err)
}

func TestVoiceEnabled(t *testing.T) {
	s, kv := newTestSettings(t)

	require.NoError(t, s.SetVoiceEnabled(false))
	assert.False(t, s.VoiceEnabled())

	require.NoError(t, kv.Set(KeyVoiceEnabled, "maybe"))
	assert.True(t, s.VoiceEnabled(), "unparseable flag falls back to default")
}

func TestIdentityRoundTrip(t *testing.T) {
	s, kv := newTestSettings(t)

	require.NoError(t, s.SetIdentity(identity.Guest()))
	id, ok := s.Identity()
	require.True(t, ok)
	assert.Equal(t, identity.ProviderGuest, id.Provider)

	require.NoError(t, kv.Set(KeyIdentity, "{broken"))
	_, ok = s.Identity()
	assert.False(t, ok)

	require.NoError(t, s.ClearIdentity())
	_, ok = s.Identity()
	assert.False(t, ok)
}

func TestClear(t *testing.T) {
	s, kv := newTestSettings(t)
	require.NoError(t, s.SetUserName("Ana"))
	require.NoError(t, s.SetOnboardingDone(true))
	require.NoError(t, kv.Set("jiyu_conversations", `["a"]`))

	require.NoError(t, s.Clear())

	assert.Equal(t, "", s.UserName())
	assert.False(t, s.OnboardingDone())
	_, ok, _ := kv.Get("jiyu_conversations")
	assert.True(t, ok, "conversations are not settings")
}
