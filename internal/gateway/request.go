// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package gateway

import (
	"strings"

	"github.com/jeranaias/jiyu/internal/storage"
)

// Wire roles for generateContent.
const (
	RoleUser  = "user"
	RoleModel = "model"
)

// Part is a text fragment of a Content.
type Part struct {
	Text string `json:"text"`
}

// Content is one role-tagged message.
type Content struct {
	Role  string `json:"role,omitempty"`
	Parts []Part `json:"parts"`
}

// Text joins the content's parts.
func (c Content) Text() string {
	if len(c.Parts) == 1 {
		return c.Parts[0].Text
	}
	var sb strings.Builder
	for _, p := range c.Parts {
		sb.WriteString(p.Text)
	}
	return sb.String()
}

// GenerationConfig holds sampling parameters.
type GenerationConfig struct {
	Temperature     float64 `json:"temperature" toml:"temperature"`
	TopP            float64 `json:"topP" toml:"top_p"`
	TopK            int     `json:"topK" toml:"top_k"`
	MaxOutputTokens int     `json:"maxOutputTokens" toml:"max_output_tokens"`
}

// DefaultGenerationConfig returns the sampling parameters jiyu sends.
func DefaultGenerationConfig() GenerationConfig {
	return GenerationConfig{
		Temperature:     0.9,
		TopP:            0.95,
		TopK:            40,
		MaxOutputTokens: 2048,
	}
}

// SafetySetting sets the block threshold of one harm category.
type SafetySetting struct {
	Category  string `json:"category"`
	Threshold string `json:"threshold"`
}

// DefaultSafetySettings disables blocking for the four adjustable
// categories.
func DefaultSafetySettings() []SafetySetting {
	categories := []string{
		"HARM_CATEGORY_HARASSMENT",
		"HARM_CATEGORY_HATE_SPEECH",
		"HARM_CATEGORY_SEXUALLY_EXPLICIT",
		"HARM_CATEGORY_DANGEROUS_CONTENT",
	}
	settings := make([]SafetySetting, len(categories))
	for i, c := range categories {
		settings[i] = SafetySetting{Category: c, Threshold: "BLOCK_NONE"}
	}
	return settings
}

// Request is a generateContent request body.
type Request struct {
	SystemInstruction *Content         `json:"system_instruction,omitempty"`
	Contents          []Content        `json:"contents"`
	GenerationConfig  GenerationConfig `json:"generationConfig"`
	SafetySettings    []SafetySetting  `json:"safetySettings"`
}

// BuildRequest assembles the request for userMessage following history.
// History roles map user to "user" and assistant to "model".
func BuildRequest(systemPrompt string, history []storage.Turn, userMessage string, gen GenerationConfig) *Request {
	contents := make([]Content, 0, len(history)+1)
	for _, turn := range history {
		role := RoleUser
		if turn.Role == storage.RoleAssistant {
			role = RoleModel
		}
		contents = append(contents, Content{Role: role, Parts: []Part{{Text: turn.Content}}})
	}
	contents = append(contents, Content{Role: RoleUser, Parts: []Part{{Text: userMessage}}})

	req := &Request{
		Contents:         contents,
		GenerationConfig: gen,
		SafetySettings:   DefaultSafetySettings(),
	}
	if systemPrompt != "" {
		req.SystemInstruction = &Content{Parts: []Part{{Text: systemPrompt}}}
	}
	return req
}
