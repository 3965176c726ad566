// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package gateway

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/jiyu/internal/storage"
)

func sampleRequest() *Request {
	return BuildRequest(SystemPrompt("Ana"),
		[]storage.Turn{{Role: storage.RoleUser, Content: "a"}, {Role: storage.RoleAssistant, Content: "b"}},
		"c", DefaultGenerationConfig())
}

// =============================================================================
// GENAI TRANSPORT
// =============================================================================

func TestGenAITransport_Success(t *testing.T) {
	var gotKey, gotPath string
	var body map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("x-goog-api-key")
		gotPath = r.URL.Path
		raw, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(raw, &body)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"candidates":[{"content":{"role":"model","parts":[{"text":"sdk hello"}]}}]}`))
	}))
	defer server.Close()

	tr := NewGenAITransport(server.URL+"/", time.Second)
	text, err := tr.Generate(context.Background(), "gemini-2.0-flash", "sdk-key", sampleRequest())
	require.NoError(t, err)
	assert.Equal(t, "sdk hello", text)
	assert.Equal(t, "sdk-key", gotKey)
	assert.True(t, strings.HasSuffix(gotPath, "models/gemini-2.0-flash:generateContent"), gotPath)

	contents, _ := body["contents"].([]any)
	assert.Len(t, contents, 3)
}

func TestGenAITransport_APIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error":{"code":429,"message":"Resource has been exhausted","status":"RESOURCE_EXHAUSTED"}}`))
	}))
	defer server.Close()

	_, err := NewGenAITransport(server.URL+"/", time.Second).Generate(context.Background(), "m", "k", sampleRequest())
	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusTooManyRequests, se.Status)
	assert.Equal(t, "Resource has been exhausted", se.Message)
}

// =============================================================================
// OPENAI-COMPATIBLE TRANSPORT
// =============================================================================

func TestOpenAITransport_Success(t *testing.T) {
	var req struct {
		Model    string `json:"model"`
		Messages []struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"messages"`
		MaxTokens int `json:"max_tokens"`
	}
	var gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		raw, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(raw, &req)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":"x","object":"chat.completion","choices":[{"index":0,"message":{"role":"assistant","content":"oa hello"},"finish_reason":"stop"}]}`))
	}))
	defer server.Close()

	tr := NewOpenAITransport(server.URL+"/v1", time.Second)
	text, err := tr.Generate(context.Background(), "gpt-4o-mini", "oa-key", sampleRequest())
	require.NoError(t, err)
	assert.Equal(t, "oa hello", text)
	assert.Equal(t, "Bearer oa-key", gotAuth)

	assert.Equal(t, "gpt-4o-mini", req.Model)
	assert.Equal(t, 2048, req.MaxTokens)
	require.Len(t, req.Messages, 4)
	assert.Equal(t, "system", req.Messages[0].Role)
	assert.Equal(t, "user", req.Messages[1].Role)
	assert.Equal(t, "assistant", req.Messages[2].Role)
	assert.Equal(t, "c", req.Messages[3].Content)
}

func TestOpenAITransport_APIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":{"message":"bad model","type":"invalid_request_error"}}`))
	}))
	defer server.Close()

	_, err := NewOpenAITransport(server.URL+"/v1", time.Second).Generate(context.Background(), "m", "k", sampleRequest())
	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusBadRequest, se.Status)
	assert.Equal(t, "bad model", se.Message)
}

func TestOpenAITransport_NoChoicesIsEmpty(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":"x","choices":[]}`))
	}))
	defer server.Close()

	text, err := NewOpenAITransport(server.URL+"/v1", time.Second).Generate(context.Background(), "m", "k", sampleRequest())
	require.NoError(t, err)
	assert.Equal(t, "", text)
}
