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
	"go.uber.org/zap/zaptest"

	"github.com/jeranaias/jiyu/internal/storage"
)

func TestRESTTransport_RequestShape(t *testing.T) {
	var (
		gotPath  string
		gotKey   string
		gotBody  map[string]any
		gotCType string
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotKey = r.URL.Query().Get("key")
		gotCType = r.Header.Get("Content-Type")
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &gotBody)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"candidates":[{"content":{"role":"model","parts":[{"text":"hello!"}]}}]}`))
	}))
	defer server.Close()

	tr := NewRESTTransport(server.URL+"/v1beta/models", time.Second)
	req := BuildRequest(SystemPrompt("Ana"), []storage.Turn{{Role: storage.RoleAssistant, Content: "hey"}}, "hi", DefaultGenerationConfig())

	text, err := tr.Generate(context.Background(), "gemini-2.5-flash", "test-key", req)
	require.NoError(t, err)
	assert.Equal(t, "hello!", text)

	assert.Equal(t, "/v1beta/models/gemini-2.5-flash:generateContent", gotPath)
	assert.Equal(t, "test-key", gotKey)
	assert.Equal(t, "application/json", gotCType)

	require.Contains(t, gotBody, "system_instruction")
	gen := gotBody["generationConfig"].(map[string]any)
	assert.Equal(t, 0.9, gen["temperature"])
	assert.Equal(t, 0.95, gen["topP"])
	assert.Equal(t, float64(40), gen["topK"])
	assert.Equal(t, float64(2048), gen["maxOutputTokens"])

	contents := gotBody["contents"].([]any)
	require.Len(t, contents, 2)
	assert.Equal(t, "model", contents[0].(map[string]any)["role"])
	assert.Len(t, gotBody["safetySettings"], 4)
}

func TestRESTTransport_ErrorBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte(`{"error":{"code":403,"message":"API key not valid. Reason: API_KEY_INVALID","status":"PERMISSION_DENIED"}}`))
	}))
	defer server.Close()

	tr := NewRESTTransport(server.URL, time.Second)
	_, err := tr.Generate(context.Background(), "m", "k", BuildRequest("", nil, "hi", DefaultGenerationConfig()))

	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusForbidden, se.Status)
	assert.Contains(t, se.Message, "API_KEY_INVALID")
}

func TestRESTTransport_UnparseableErrorBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte("<html>bad gateway</html>"))
	}))
	defer server.Close()

	_, err := NewRESTTransport(server.URL, time.Second).Generate(context.Background(), "m", "k", &Request{})
	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "", se.Message)
	assert.Equal(t, "API error (502)", se.Error())
}

func TestRESTTransport_EmptyCandidates(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"candidates":[]}`))
	}))
	defer server.Close()

	text, err := NewRESTTransport(server.URL, time.Second).Generate(context.Background(), "m", "k", &Request{})
	require.NoError(t, err)
	assert.Equal(t, "", text)
}

func TestRESTTransport_NetworkErrorHidesKey(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := server.URL
	server.Close()

	_, err := NewRESTTransport(url, time.Second).Generate(context.Background(), "m", "super-secret", &Request{})
	require.Error(t, err)
	assert.NotContains(t, err.Error(), "super-secret")
}

// TestGateway_REST_FallbackEndToEnd drives the full gateway against a fake
// endpoint where the first model is rate limited.
func TestGateway_REST_FallbackEndToEnd(t *testing.T) {
	var calls []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls = append(calls, r.URL.Path)
		if strings.Contains(r.URL.Path, modelA+":") {
			w.WriteHeader(http.StatusTooManyRequests)
			w.Write([]byte(`{"error":{"code":429,"message":"Resource exhausted"}}`))
			return
		}
		w.Write([]byte(`{"candidates":[{"content":{"parts":[{"text":"hello from B"}]}}]}`))
	}))
	defer server.Close()

	g := New(staticCreds{key: "k"}, NewRESTTransport(server.URL, time.Second), DefaultConfig(), zaptest.NewLogger(t))
	reply, err := g.SendMessage(context.Background(), "hi", nil)
	require.NoError(t, err)
	assert.Equal(t, "hello from B", reply)
	assert.Len(t, calls, 2)
}
