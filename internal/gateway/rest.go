// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// DefaultBaseURL is the generateContent endpoint prefix; the model name and
// ":generateContent" are appended to it.
const DefaultBaseURL = "https://generativelanguage.googleapis.com/v1beta/models/"

// RESTTransport calls generateContent over plain HTTPS with the key in the
// query string.
type RESTTransport struct {
	baseURL string
	client  *http.Client
}

// NewRESTTransport creates a transport for baseURL ("" for DefaultBaseURL).
func NewRESTTransport(baseURL string, timeout time.Duration) *RESTTransport {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}
	return &RESTTransport{baseURL: baseURL, client: newHTTPClient(timeout)}
}

// WithHTTPClient replaces the HTTP client.
func (t *RESTTransport) WithHTTPClient(c *http.Client) *RESTTransport {
	t.client = c
	return t
}

type generateResponse struct {
	Candidates []struct {
		Content Content `json:"content"`
	} `json:"candidates"`
}

type apiErrorResponse struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

// Generate implements Transport.
func (t *RESTTransport) Generate(ctx context.Context, model, apiKey string, req *Request) (string, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	endpoint := t.baseURL + url.PathEscape(model) + ":generateContent?key=" + url.QueryEscape(apiKey)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(httpReq)
	if err != nil {
		// SECURITY: url.Error embeds the request URL, which carries the key.
		var uerr *url.Error
		if errors.As(err, &uerr) {
			return "", fmt.Errorf("request failed: %w", uerr.Err)
		}
		return "", fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := readResponse(resp)
	if err != nil {
		return "", err
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var apiErr apiErrorResponse
		_ = json.Unmarshal(data, &apiErr)
		return "", &StatusError{Status: resp.StatusCode, Message: apiErr.Error.Message}
	}

	var parsed generateResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return "", fmt.Errorf("failed to parse response: %w", err)
	}
	if len(parsed.Candidates) == 0 || len(parsed.Candidates[0].Content.Parts) == 0 {
		return "", nil
	}
	return parsed.Candidates[0].Content.Parts[0].Text, nil
}
