// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/caarlos0/env/v6"
	"github.com/joho/godotenv"

	"github.com/jeranaias/jiyu/internal/gateway"
	"github.com/jeranaias/jiyu/internal/storage"
	"github.com/jeranaias/jiyu/internal/util"
)

// =============================================================================
// CONFIG STRUCTURES
// =============================================================================

// Config is the complete jiyu configuration.
type Config struct {
	Storage  StorageConfig  `toml:"storage"`
	Model    ModelConfig    `toml:"model"`
	Voice    VoiceConfig    `toml:"voice"`
	Identity IdentityConfig `toml:"identity"`
	Log      LogConfig      `toml:"log"`
	UI       UIConfig       `toml:"ui"`
}

// StorageConfig controls where and how much history is kept.
type StorageConfig struct {
	// DataDir holds the database and key files. "~" is expanded.
	DataDir string `toml:"data_dir" env:"JIYU_DATA_DIR"`

	// Backend is "sqlite" or "memory".
	Backend string `toml:"backend" env:"JIYU_STORAGE_BACKEND"`

	MaxTurns         int `toml:"max_turns"`
	MaxConversations int `toml:"max_conversations"`
	WindowSize       int `toml:"window_size"`

	// Passphrase derives the key that seals API keys at rest. When empty a
	// random key file is created in DataDir.
	Passphrase string `toml:"-" env:"JIYU_PASSPHRASE"`
}

// ModelConfig selects the model endpoint.
type ModelConfig struct {
	// Backend is "rest", "genai" or "openai".
	Backend    string   `toml:"backend" env:"JIYU_MODEL_BACKEND"`
	BaseURL    string   `toml:"base_url" env:"JIYU_MODEL_BASE_URL"`
	Candidates []string `toml:"candidates" env:"JIYU_MODELS" envSeparator:","`

	// APIKey is used when no key has been saved with `settings set-key`.
	APIKey string `toml:"api_key" env:"JIYU_GEMINI_KEY"`

	TimeoutSecs       int `toml:"timeout_secs" env:"JIYU_MODEL_TIMEOUT"`
	RequestsPerMinute int `toml:"requests_per_minute" env:"JIYU_MODEL_RPM"`

	Generation gateway.GenerationConfig `toml:"generation"`
}

// VoiceConfig configures speech output.
type VoiceConfig struct {
	BaseURL string `toml:"base_url" env:"JIYU_ELEVENLABS_BASE_URL"`

	// APIKey is used when no speech key has been saved in settings.
	APIKey string `toml:"api_key" env:"JIYU_ELEVENLABS_KEY"`

	// SpeakCommand reads text on stdin (local engine).
	SpeakCommand string `toml:"speak_command" env:"JIYU_SPEAK_COMMAND"`

	// PlayerCommand reads audio on stdin (remote engine).
	PlayerCommand string `toml:"player_command" env:"JIYU_PLAYER_COMMAND"`

	TimeoutSecs int `toml:"timeout_secs"`
}

// IdentityConfig configures sign-in.
type IdentityConfig struct {
	// GoogleClientID enables ID token validation when set.
	GoogleClientID string `toml:"google_client_id" env:"JIYU_GOOGLE_CLIENT_ID"`
}

// LogConfig configures the logger.
type LogConfig struct {
	Level  string `toml:"level" env:"JIYU_LOG_LEVEL"`
	Format string `toml:"format" env:"JIYU_LOG_FORMAT"`
	File   string `toml:"file" env:"JIYU_LOG_FILE"`
}

// UIConfig configures terminal output.
type UIConfig struct {
	// Markdown renders replies with glamour when stdout is a terminal.
	Markdown bool `toml:"markdown" env:"JIYU_MARKDOWN"`

	// GlamourStyle is "auto", "dark", "light" or "notty".
	GlamourStyle string `toml:"glamour_style" env:"JIYU_GLAMOUR_STYLE"`

	// Width wraps rendered replies. 0 uses the terminal width.
	Width int `toml:"width"`

	// HistoryFile stores REPL input history. Relative paths are inside DataDir.
	HistoryFile string `toml:"history_file"`
}

// =============================================================================
// DEFAULTS
// =============================================================================

// Valid enumerations.
var (
	StorageBackends = []string{"sqlite", "memory"}
	ModelBackends   = []string{"rest", "genai", "openai"}
	LogLevels       = []string{"debug", "info", "warn", "error"}
	LogFormats      = []string{"console", "json"}
	GlamourStyles   = []string{"auto", "dark", "light", "notty"}
)

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Storage: StorageConfig{
			DataDir:          "~/.jiyu",
			Backend:          "sqlite",
			MaxTurns:         storage.DefaultMaxTurns,
			MaxConversations: storage.DefaultMaxConversations,
			WindowSize:       storage.DefaultWindowSize,
		},
		Model: ModelConfig{
			Backend:     "rest",
			Candidates:  append([]string(nil), gateway.DefaultCandidates...),
			TimeoutSecs: int(gateway.DefaultTimeout / time.Second),
			Generation:  gateway.DefaultGenerationConfig(),
		},
		Voice: VoiceConfig{
			SpeakCommand:  "espeak",
			PlayerCommand: "ffplay -nodisp -autoexit -loglevel quiet -i -",
			TimeoutSecs:   30,
		},
		Log: LogConfig{
			Level:  "warn",
			Format: "console",
		},
		UI: UIConfig{
			Markdown:     true,
			GlamourStyle: "auto",
			HistoryFile:  "history",
		},
	}
}

// SetDefaults fills zero values from Default and expands paths.
func (c *Config) SetDefaults() {
	d := Default()

	if c.Storage.DataDir == "" {
		c.Storage.DataDir = d.Storage.DataDir
	}
	c.Storage.DataDir = ExpandHome(c.Storage.DataDir)
	if c.Storage.Backend == "" {
		c.Storage.Backend = d.Storage.Backend
	}
	if c.Storage.MaxTurns <= 0 {
		c.Storage.MaxTurns = d.Storage.MaxTurns
	}
	if c.Storage.MaxConversations <= 0 {
		c.Storage.MaxConversations = d.Storage.MaxConversations
	}
	if c.Storage.WindowSize <= 0 {
		c.Storage.WindowSize = d.Storage.WindowSize
	}

	if c.Model.Backend == "" {
		c.Model.Backend = d.Model.Backend
	}
	c.Model.Candidates = cleanList(c.Model.Candidates)
	if len(c.Model.Candidates) == 0 {
		c.Model.Candidates = d.Model.Candidates
	}
	if c.Model.TimeoutSecs <= 0 {
		c.Model.TimeoutSecs = d.Model.TimeoutSecs
	}
	if c.Model.Generation == (gateway.GenerationConfig{}) {
		c.Model.Generation = d.Model.Generation
	}

	if c.Voice.SpeakCommand == "" {
		c.Voice.SpeakCommand = d.Voice.SpeakCommand
	}
	if c.Voice.PlayerCommand == "" {
		c.Voice.PlayerCommand = d.Voice.PlayerCommand
	}
	if c.Voice.TimeoutSecs <= 0 {
		c.Voice.TimeoutSecs = d.Voice.TimeoutSecs
	}

	c.Log.Level = strings.ToLower(c.Log.Level)
	if c.Log.Level == "" {
		c.Log.Level = d.Log.Level
	}
	if c.Log.Format == "" {
		c.Log.Format = d.Log.Format
	}
	if c.Log.File != "" {
		c.Log.File = ExpandHome(c.Log.File)
	}

	if c.UI.GlamourStyle == "" {
		c.UI.GlamourStyle = d.UI.GlamourStyle
	}
	if c.UI.HistoryFile == "" {
		c.UI.HistoryFile = d.UI.HistoryFile
	}
}

// ModelTimeout returns the model HTTP timeout.
func (c *Config) ModelTimeout() time.Duration {
	return time.Duration(c.Model.TimeoutSecs) * time.Second
}

// VoiceTimeout returns the speech HTTP timeout.
func (c *Config) VoiceTimeout() time.Duration {
	return time.Duration(c.Voice.TimeoutSecs) * time.Second
}

// HistoryPath returns the REPL history file path.
func (c *Config) HistoryPath() string {
	if filepath.IsAbs(c.UI.HistoryFile) {
		return c.UI.HistoryFile
	}
	return filepath.Join(c.Storage.DataDir, c.UI.HistoryFile)
}

// =============================================================================
// PATHS
// =============================================================================

// Dir returns the default configuration directory (~/.jiyu).
func Dir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}
	return filepath.Join(home, ".jiyu"), nil
}

// DefaultPath returns ~/.jiyu/config.toml.
func DefaultPath() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// ExpandHome replaces a leading "~" with the home directory.
func ExpandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}

// ensureSecurePermissions tightens a config file to 0600.
// SECURITY: the file may hold API keys.
func ensureSecurePermissions(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if mode := info.Mode().Perm(); mode != 0600 {
		if err := os.Chmod(path, 0600); err != nil {
			return fmt.Errorf("failed to fix insecure permissions (was %o): %w", mode, err)
		}
	}
	return nil
}

// =============================================================================
// LOAD / SAVE
// =============================================================================

// DotEnvFiles are loaded into the process environment before overrides are
// applied. Variables already set are not replaced.
var DotEnvFiles = []string{".env"}

// Load reads the config file at path ("" for DefaultPath), then .env files,
// then environment overrides, and validates the result. A missing file is
// not an error.
func Load(path string) (*Config, error) {
	if path == "" {
		p, err := DefaultPath()
		if err != nil {
			return nil, err
		}
		path = p
	}

	cfg := Default()
	if err := LoadFile(cfg, path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}

	if err := loadDotEnv(DotEnvFiles); err != nil {
		return nil, err
	}
	if err := cfg.ApplyEnvOverrides(); err != nil {
		return nil, err
	}

	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// LoadFile decodes the TOML file at path into cfg.
// SECURITY: Checks and fixes file permissions on load.
func LoadFile(cfg *Config, path string) error {
	if _, err := os.Stat(path); err != nil {
		return err
	}
	if err := ensureSecurePermissions(path); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not ensure secure permissions on %s: %v\n", path, err)
	}
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return fmt.Errorf("failed to decode %s: %w", path, err)
	}
	return nil
}

func loadDotEnv(files []string) error {
	for _, f := range files {
		if _, err := os.Stat(f); err != nil {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return fmt.Errorf("failed to load %s: %w", f, err)
		}
	}
	return nil
}

// ApplyEnvOverrides applies JIYU_* environment variables. Unset or empty
// variables leave the current value alone.
func (c *Config) ApplyEnvOverrides() error {
	if err := env.Parse(c); err != nil {
		return fmt.Errorf("invalid environment override: %w", err)
	}
	return nil
}

// Save writes cfg as TOML to path with 0600 permissions.
// RELIABILITY: Atomic write with fsync prevents data loss on crash
func Save(cfg *Config, path string) error {
	var buf bytes.Buffer
	buf.WriteString("# jiyu configuration file\n")
	buf.WriteString("# API keys saved here are used only when none is stored in settings.\n\n")
	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := util.AtomicWriteFile(path, buf.Bytes(), 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

func cleanList(items []string) []string {
	out := items[:0:0]
	for _, item := range items {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

// =============================================================================
// VALIDATION
// =============================================================================

// ValidationError is one invalid field.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidateErrors collects every invalid field.
type ValidateErrors []ValidationError

func (e ValidateErrors) Error() string {
	msgs := make([]string, 0, len(e))
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

// Validate checks enumerations and ranges.
func (c *Config) Validate() error {
	var errs ValidateErrors

	oneOf := func(field, value string, allowed []string) {
		for _, a := range allowed {
			if strings.EqualFold(value, a) {
				return
			}
		}
		errs = append(errs, ValidationError{
			Field:   field,
			Message: fmt.Sprintf("invalid value '%s', must be one of: %s", value, strings.Join(allowed, ", ")),
		})
	}

	oneOf("storage.backend", c.Storage.Backend, StorageBackends)
	oneOf("model.backend", c.Model.Backend, ModelBackends)
	oneOf("log.level", c.Log.Level, LogLevels)
	oneOf("log.format", c.Log.Format, LogFormats)
	oneOf("ui.glamour_style", c.UI.GlamourStyle, GlamourStyles)

	if c.Storage.WindowSize > c.Storage.MaxTurns {
		errs = append(errs, ValidationError{
			Field:   "storage.window_size",
			Message: fmt.Sprintf("must not exceed storage.max_turns (%d)", c.Storage.MaxTurns),
		})
	}
	if len(c.Model.Candidates) == 0 {
		errs = append(errs, ValidationError{Field: "model.candidates", Message: "at least one model is required"})
	}
	if c.Model.RequestsPerMinute < 0 {
		errs = append(errs, ValidationError{Field: "model.requests_per_minute", Message: "must not be negative"})
	}
	g := c.Model.Generation
	if g.Temperature < 0 || g.Temperature > 2 {
		errs = append(errs, ValidationError{Field: "model.generation.temperature", Message: "must be between 0 and 2"})
	}
	if g.TopP < 0 || g.TopP > 1 {
		errs = append(errs, ValidationError{Field: "model.generation.top_p", Message: "must be between 0 and 1"})
	}
	if g.MaxOutputTokens < 0 {
		errs = append(errs, ValidationError{Field: "model.generation.max_output_tokens", Message: "must not be negative"})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// =============================================================================
// GLOBAL
// =============================================================================

var (
	globalMu     sync.RWMutex
	globalConfig *Config
)

// Global returns the process-wide config, loading it on first use.
func Global() *Config {
	globalMu.RLock()
	cfg := globalConfig
	globalMu.RUnlock()
	if cfg != nil {
		return cfg
	}

	globalMu.Lock()
	defer globalMu.Unlock()
	if globalConfig == nil {
		loaded, err := Load("")
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: %v; using defaults\n", err)
			loaded = Default()
			loaded.SetDefaults()
		}
		globalConfig = loaded
	}
	return globalConfig
}

// SetGlobal replaces the process-wide config.
func SetGlobal(cfg *Config) {
	globalMu.Lock()
	defer globalMu.Unlock()
	globalConfig = cfg
}
