// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package gateway

import (
	"context"
	"errors"
	"net/http"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAITransport sends the same conversation to an OpenAI-compatible chat
// completions endpoint (OpenAI, OpenRouter, local servers). The persona
// becomes a system message and "model" turns become "assistant" turns.
// topK and the safety settings have no equivalent and are not sent.
type OpenAITransport struct {
	baseURL    string
	httpClient *http.Client
}

// NewOpenAITransport creates a transport for baseURL ("" for the OpenAI
// default).
func NewOpenAITransport(baseURL string, timeout time.Duration) *OpenAITransport {
	return &OpenAITransport{baseURL: baseURL, httpClient: newHTTPClient(timeout)}
}

// WithHTTPClient replaces the HTTP client.
func (t *OpenAITransport) WithHTTPClient(c *http.Client) *OpenAITransport {
	t.httpClient = c
	return t
}

// Generate implements Transport.
func (t *OpenAITransport) Generate(ctx context.Context, model, apiKey string, req *Request) (string, error) {
	cfg := openai.DefaultConfig(apiKey)
	if t.baseURL != "" {
		cfg.BaseURL = t.baseURL
	}
	cfg.HTTPClient = t.httpClient
	client := openai.NewClientWithConfig(cfg)

	messages := make([]openai.ChatCompletionMessage, 0, len(req.Contents)+1)
	if req.SystemInstruction != nil {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: req.SystemInstruction.Text(),
		})
	}
	for _, c := range req.Contents {
		role := openai.ChatMessageRoleUser
		if c.Role == RoleModel {
			role = openai.ChatMessageRoleAssistant
		}
		messages = append(messages, openai.ChatCompletionMessage{Role: role, Content: c.Text()})
	}

	resp, err := client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       model,
		Messages:    messages,
		Temperature: float32(req.GenerationConfig.Temperature),
		TopP:        float32(req.GenerationConfig.TopP),
		MaxTokens:   req.GenerationConfig.MaxOutputTokens,
	})
	if err != nil {
		var apiErr *openai.APIError
		if errors.As(err, &apiErr) && apiErr.HTTPStatusCode > 0 {
			return "", &StatusError{Status: apiErr.HTTPStatusCode, Message: apiErr.Message}
		}
		var reqErr *openai.RequestError
		if errors.As(err, &reqErr) && reqErr.HTTPStatusCode > 0 {
			msg := ""
			if reqErr.Err != nil {
				msg = reqErr.Err.Error()
			}
			return "", &StatusError{Status: reqErr.HTTPStatusCode, Message: msg}
		}
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", nil
	}
	return resp.Choices[0].Message.Content, nil
}
