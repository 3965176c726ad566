// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package gateway

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"google.golang.org/genai"
)

// GenAITransport calls the Gemini API through the google.golang.org/genai
// SDK. One SDK client is kept per API key.
type GenAITransport struct {
	baseURL    string
	httpClient *http.Client

	mu      sync.Mutex
	clients map[string]*genai.Client
}

// NewGenAITransport creates a transport. baseURL is the API root (for
// example "https://generativelanguage.googleapis.com/"); "" uses the SDK
// default.
func NewGenAITransport(baseURL string, timeout time.Duration) *GenAITransport {
	return &GenAITransport{
		baseURL:    baseURL,
		httpClient: newHTTPClient(timeout),
		clients:    make(map[string]*genai.Client),
	}
}

// WithHTTPClient replaces the HTTP client used by new SDK clients.
func (t *GenAITransport) WithHTTPClient(c *http.Client) *GenAITransport {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.httpClient = c
	t.clients = make(map[string]*genai.Client)
	return t
}

func (t *GenAITransport) client(ctx context.Context, apiKey string) (*genai.Client, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	fp := KeyFingerprint(apiKey)
	if c, ok := t.clients[fp]; ok {
		return c, nil
	}
	c, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:      apiKey,
		Backend:     genai.BackendGeminiAPI,
		HTTPClient:  t.httpClient,
		HTTPOptions: genai.HTTPOptions{BaseURL: t.baseURL},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}
	t.clients[fp] = c
	return c, nil
}

// Generate implements Transport.
func (t *GenAITransport) Generate(ctx context.Context, model, apiKey string, req *Request) (string, error) {
	client, err := t.client(ctx, apiKey)
	if err != nil {
		return "", err
	}

	contents := make([]*genai.Content, 0, len(req.Contents))
	for _, c := range req.Contents {
		contents = append(contents, genai.NewContentFromText(c.Text(), genai.Role(c.Role)))
	}

	cfg := &genai.GenerateContentConfig{
		Temperature:     genai.Ptr(float32(req.GenerationConfig.Temperature)),
		TopP:            genai.Ptr(float32(req.GenerationConfig.TopP)),
		TopK:            genai.Ptr(float32(req.GenerationConfig.TopK)),
		MaxOutputTokens: int32(req.GenerationConfig.MaxOutputTokens),
	}
	if req.SystemInstruction != nil {
		cfg.SystemInstruction = genai.NewContentFromText(req.SystemInstruction.Text(), genai.RoleUser)
	}
	for _, s := range req.SafetySettings {
		cfg.SafetySettings = append(cfg.SafetySettings, &genai.SafetySetting{
			Category:  genai.HarmCategory(s.Category),
			Threshold: genai.HarmBlockThreshold(s.Threshold),
		})
	}

	resp, err := client.Models.GenerateContent(ctx, model, contents, cfg)
	if err != nil {
		var apiErr genai.APIError
		if errors.As(err, &apiErr) {
			return "", &StatusError{Status: apiErr.Code, Message: apiErr.Message}
		}
		return "", err
	}
	return resp.Text(), nil
}
