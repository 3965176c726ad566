// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package gateway

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"time"
)

// MaxResponseSize bounds how much of a response body is read (10 MiB).
const MaxResponseSize = 10 * 1024 * 1024

// DefaultTimeout is the HTTP client timeout used when none is configured.
const DefaultTimeout = 60 * time.Second

// Transport performs one generate call against one model.
//
// It returns the reply text ("" for an empty reply), a *StatusError for a
// non-success HTTP response, or another error when no response arrived.
type Transport interface {
	Generate(ctx context.Context, model, apiKey string, req *Request) (string, error)
}

// newHTTPClient returns a client with connection pooling and the given
// timeout.
func newHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			Proxy:               http.ProxyFromEnvironment,
			MaxIdleConns:        10,
			MaxIdleConnsPerHost: 4,
			IdleConnTimeout:     90 * time.Second,
			TLSHandshakeTimeout: 10 * time.Second,
		},
	}
}

// readResponse reads the body through MaxResponseSize.
//
// SECURITY: Response size limit prevents memory exhaustion.
func readResponse(resp *http.Response) ([]byte, error) {
	body, err := io.ReadAll(io.LimitReader(resp.Body, MaxResponseSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if int64(len(body)) > MaxResponseSize {
		return nil, fmt.Errorf("response exceeded maximum size of %d bytes", MaxResponseSize)
	}
	return body, nil
}

// KeyFingerprint returns a short SHA-256 fingerprint of an API key for logs.
// SECURITY: Never log key fragments.
func KeyFingerprint(apiKey string) string {
	if apiKey == "" {
		return "none"
	}
	h := sha256.Sum256([]byte(apiKey))
	return hex.EncodeToString(h[:4])
}
