// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/jiyu/internal/gateway"
)

func withoutDotEnv(t *testing.T) {
	t.Helper()
	saved := DotEnvFiles
	DotEnvFiles = nil
	t.Cleanup(func() { DotEnvFiles = saved })
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

// =============================================================================
// DEFAULTS
// =============================================================================

func TestDefault_IsValid(t *testing.T) {
	cfg := Default()
	cfg.SetDefaults()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "sqlite", cfg.Storage.Backend)
	assert.Equal(t, 200, cfg.Storage.MaxTurns)
	assert.Equal(t, 50, cfg.Storage.MaxConversations)
	assert.Equal(t, 20, cfg.Storage.WindowSize)
	assert.Equal(t, "rest", cfg.Model.Backend)
	assert.Equal(t, gateway.DefaultCandidates, cfg.Model.Candidates)
	assert.Equal(t, 60*time.Second, cfg.ModelTimeout())
	assert.Equal(t, "warn", cfg.Log.Level)
	assert.True(t, cfg.UI.Markdown)
	assert.False(t, filepath.Base(cfg.Storage.DataDir) == "~", "data dir is expanded")
}

func TestSetDefaults_FillsZeroValues(t *testing.T) {
	cfg := &Config{}
	cfg.Model.Candidates = []string{" ", ""}
	cfg.SetDefaults()

	assert.Equal(t, Default().Model.Candidates, cfg.Model.Candidates)
	assert.Equal(t, gateway.DefaultGenerationConfig(), cfg.Model.Generation)
	assert.Equal(t, "espeak", cfg.Voice.SpeakCommand)
	assert.Equal(t, "history", cfg.UI.HistoryFile)
	assert.Equal(t, filepath.Join(cfg.Storage.DataDir, "history"), cfg.HistoryPath())
}

func TestExpandHome(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	assert.Equal(t, home, ExpandHome("~"))
	assert.Equal(t, filepath.Join(home, ".jiyu"), ExpandHome("~/.jiyu"))
	assert.Equal(t, "/var/lib/jiyu", ExpandHome("/var/lib/jiyu"))
	assert.Equal(t, "~other/x", ExpandHome("~other/x"))
}

// =============================================================================
// LOADING
// =============================================================================

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	withoutDotEnv(t)
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	require.NoError(t, err)
	assert.Equal(t, "sqlite", cfg.Storage.Backend)
}

func TestLoad_FileAndPermissions(t *testing.T) {
	withoutDotEnv(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	writeFile(t, path, `
[storage]
data_dir = "`+filepath.ToSlash(dir)+`/data"
backend = "memory"
window_size = 10

[model]
backend = "openai"
base_url = "http://localhost:11434/v1"
candidates = ["llama3", "mistral"]

[model.generation]
temperature = 0.5
top_p = 0.9
top_k = 20
max_output_tokens = 512

[ui]
markdown = false
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, filepath.ToSlash(dir)+"/data", filepath.ToSlash(cfg.Storage.DataDir))
	assert.Equal(t, "memory", cfg.Storage.Backend)
	assert.Equal(t, 10, cfg.Storage.WindowSize)
	assert.Equal(t, 200, cfg.Storage.MaxTurns, "unset fields keep defaults")
	assert.Equal(t, "openai", cfg.Model.Backend)
	assert.Equal(t, []string{"llama3", "mistral"}, cfg.Model.Candidates)
	assert.Equal(t, gateway.GenerationConfig{Temperature: 0.5, TopP: 0.9, TopK: 20, MaxOutputTokens: 512}, cfg.Model.Generation)
	assert.False(t, cfg.UI.Markdown)

	info, err := os.Stat(path)
	require.NoError(t, err)
	if os.PathSeparator == '/' {
		assert.Equal(t, os.FileMode(0600), info.Mode().Perm(), "permissions are tightened on load")
	}
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	withoutDotEnv(t)
	path := filepath.Join(t.TempDir(), "config.toml")
	writeFile(t, path, "[model]\nbackend = \"genai\"\napi_key = \"from-file\"\n")

	t.Setenv("JIYU_MODEL_BACKEND", "rest")
	t.Setenv("JIYU_MODELS", "gemini-a, gemini-b")
	t.Setenv("JIYU_LOG_LEVEL", "DEBUG")
	t.Setenv("JIYU_GEMINI_KEY", "")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "rest", cfg.Model.Backend)
	assert.Equal(t, []string{"gemini-a", "gemini-b"}, cfg.Model.Candidates)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "from-file", cfg.Model.APIKey, "empty variables do not override")
}

func TestLoad_DotEnv(t *testing.T) {
	dir := t.TempDir()
	envFile := filepath.Join(dir, ".env")
	writeFile(t, envFile, "JIYU_GOOGLE_CLIENT_ID=client-123.apps.googleusercontent.com\n")

	saved := DotEnvFiles
	DotEnvFiles = []string{envFile}
	t.Cleanup(func() {
		DotEnvFiles = saved
		os.Unsetenv("JIYU_GOOGLE_CLIENT_ID")
	})

	cfg, err := Load(filepath.Join(dir, "config.toml"))
	require.NoError(t, err)
	assert.Equal(t, "client-123.apps.googleusercontent.com", cfg.Identity.GoogleClientID)
}

func TestLoad_InvalidValues(t *testing.T) {
	withoutDotEnv(t)
	path := filepath.Join(t.TempDir(), "config.toml")
	writeFile(t, path, "[storage]\nbackend = \"postgres\"\n[log]\nlevel = \"loud\"\n")

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "storage.backend")
	assert.Contains(t, err.Error(), "log.level")
}

func TestLoad_MalformedFile(t *testing.T) {
	withoutDotEnv(t)
	path := filepath.Join(t.TempDir(), "config.toml")
	writeFile(t, path, "[storage\nbackend = ")

	_, err := Load(path)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"model backend", func(c *Config) { c.Model.Backend = "grpc" }, "model.backend"},
		{"window exceeds turns", func(c *Config) { c.Storage.WindowSize = 500 }, "storage.window_size"},
		{"temperature", func(c *Config) { c.Model.Generation.Temperature = 3 }, "model.generation.temperature"},
		{"top_p", func(c *Config) { c.Model.Generation.TopP = 1.5 }, "model.generation.top_p"},
		{"negative rpm", func(c *Config) { c.Model.RequestsPerMinute = -1 }, "model.requests_per_minute"},
		{"glamour style", func(c *Config) { c.UI.GlamourStyle = "neon" }, "ui.glamour_style"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			cfg.SetDefaults()
			tt.mutate(cfg)

			err := cfg.Validate()
			require.Error(t, err)
			var verrs ValidateErrors
			require.ErrorAs(t, err, &verrs)
			assert.Equal(t, tt.field, verrs[0].Field)
		})
	}
}

// =============================================================================
// SAVE / WATCH
// =============================================================================

func TestSave_RoundTrip(t *testing.T) {
	withoutDotEnv(t)
	path := filepath.Join(t.TempDir(), "sub", "config.toml")

	cfg := Default()
	cfg.SetDefaults()
	cfg.Model.Backend = "genai"
	cfg.Voice.APIKey = "xi-secret"
	cfg.Storage.Passphrase = "never-written"
	require.NoError(t, Save(cfg, path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "never-written")

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "genai", loaded.Model.Backend)
	assert.Equal(t, "xi-secret", loaded.Voice.APIKey)
}

func TestWatch_ReloadsOnChange(t *testing.T) {
	withoutDotEnv(t)
	path := filepath.Join(t.TempDir(), "config.toml")
	writeFile(t, path, "[log]\nlevel = \"info\"\n")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	changes := make(chan *Config, 4)
	done := make(chan error, 1)
	go func() {
		done <- Watch(ctx, path, 20*time.Millisecond, func(cfg *Config, err error) {
			if err == nil {
				changes <- cfg
			}
		})
	}()

	// Give the watcher time to register before writing.
	time.Sleep(100 * time.Millisecond)
	writeFile(t, path, "[log]\nlevel = \"debug\"\n")

	select {
	case cfg := <-changes:
		assert.Equal(t, "debug", cfg.Log.Level)
	case <-time.After(5 * time.Second):
		t.Fatal("no reload after change")
	}

	cancel()
	assert.NoError(t, <-done)
}

func TestGlobal(t *testing.T) {
	cfg := Default()
	cfg.Log.Level = "error"
	SetGlobal(cfg)
	t.Cleanup(func() { SetGlobal(nil) })

	assert.Same(t, cfg, Global())
}
