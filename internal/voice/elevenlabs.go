// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package voice

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// =============================================================================
// CONSTANTS
// =============================================================================

const (
	// DefaultBaseURL is the ElevenLabs API root.
	DefaultBaseURL = "https://api.elevenlabs.io/v1"

	// DefaultVoiceID is used when no voice is selected ("Bella").
	DefaultVoiceID = "EXAVITQu4vr4xnSDxMaL"

	// DefaultModelID is the synthesis model.
	DefaultModelID = "eleven_multilingual_v2"

	// MaxAudioSize bounds a synthesized clip.
	MaxAudioSize = 25 * 1024 * 1024

	defaultTimeout = 30 * time.Second
)

// VoiceSettings tune the remote voice.
type VoiceSettings struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
	Style           float64 `json:"style"`
	UseSpeakerBoost bool    `json:"use_speaker_boost"`
}

// DefaultVoiceSettings returns the settings Jiyu speaks with.
func DefaultVoiceSettings() VoiceSettings {
	return VoiceSettings{
		Stability:       0.5,
		SimilarityBoost: 0.75,
		Style:           0.3,
		UseSpeakerBoost: true,
	}
}

// VoiceInfo describes one remote voice.
type VoiceInfo struct {
	VoiceID  string `json:"voice_id"`
	Name     string `json:"name"`
	Category string `json:"category,omitempty"`
}

// =============================================================================
// CLIENT
// =============================================================================

// ElevenLabs is a text-to-speech API client.
type ElevenLabs struct {
	baseURL  string
	modelID  string
	settings VoiceSettings
	client   *http.Client
}

// NewElevenLabs creates a client for baseURL ("" for DefaultBaseURL).
func NewElevenLabs(baseURL string, timeout time.Duration) *ElevenLabs {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &ElevenLabs{
		baseURL:  strings.TrimSuffix(baseURL, "/"),
		modelID:  DefaultModelID,
		settings: DefaultVoiceSettings(),
		client:   &http.Client{Timeout: timeout},
	}
}

type synthesizeRequest struct {
	Text          string        `json:"text"`
	ModelID       string        `json:"model_id"`
	VoiceSettings VoiceSettings `json:"voice_settings"`
}

// Synthesize returns audio for text spoken by voiceID. The text is cleaned
// and truncated first. An empty voiceID uses DefaultVoiceID.
func (e *ElevenLabs) Synthesize(ctx context.Context, apiKey, voiceID, text string) ([]byte, error) {
	if voiceID == "" {
		voiceID = DefaultVoiceID
	}
	body, err := json.Marshal(synthesizeRequest{
		Text:          truncateForRemote(CleanForSpeech(text)),
		ModelID:       e.modelID,
		VoiceSettings: e.settings,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	endpoint := e.baseURL + "/text-to-speech/" + url.PathEscape(voiceID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("xi-api-key", apiKey)

	return e.do(req)
}

// ListVoices returns the voices available to apiKey.
func (e *ElevenLabs) ListVoices(ctx context.Context, apiKey string) ([]VoiceInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.baseURL+"/voices", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("xi-api-key", apiKey)

	data, err := e.do(req)
	if err != nil {
		return nil, err
	}
	var parsed struct {
		Voices []VoiceInfo `json:"voices"`
	}
	if err := json.Unmarshal(data, &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse voices: %w", err)
	}
	if parsed.Voices == nil {
		return []VoiceInfo{}, nil
	}
	return parsed.Voices, nil
}

func (e *ElevenLabs) do(req *http.Request) ([]byte, error) {
	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("speech request failed: %w", err)
	}
	defer resp.Body.Close()

	// SECURITY: Response size limit prevents memory exhaustion.
	data, err := io.ReadAll(io.LimitReader(resp.Body, MaxAudioSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if len(data) > MaxAudioSize {
		return nil, fmt.Errorf("response exceeded maximum size of %d bytes", MaxAudioSize)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{Status: resp.StatusCode}
	}
	return data, nil
}

// StatusError reports a non-success response from the speech API.
type StatusError struct {
	Status int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("speech API error (%d)", e.Status)
}
