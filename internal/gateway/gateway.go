// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package gateway

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/jeranaias/jiyu/internal/storage"
)

// =============================================================================
// CONFIGURATION
// =============================================================================

// DefaultCandidates are tried in this order.
var DefaultCandidates = []string{
	"gemini-2.5-flash",
	"gemini-2.0-flash",
	"gemini-2.0-flash-lite",
}

// Config controls candidate selection and sampling.
type Config struct {
	// Candidates in priority order.
	Candidates []string

	// Generation is sent with every request.
	Generation GenerationConfig

	// RequestsPerMinute caps calls per candidate on the client side.
	// 0 disables the limiter.
	RequestsPerMinute int
}

// DefaultConfig returns the default gateway configuration.
func DefaultConfig() Config {
	return Config{
		Candidates: append([]string(nil), DefaultCandidates...),
		Generation: DefaultGenerationConfig(),
	}
}

// Credentials supplies the API key and display name at call time, so
// settings changes apply to the next message without rebuilding the gateway.
type Credentials interface {
	ModelAPIKey() string
	UserName() string
}

// =============================================================================
// GATEWAY
// =============================================================================

// Gateway sends messages to the model with candidate fallback.
type Gateway struct {
	creds     Credentials
	transport Transport
	cfg       Config
	logger    *zap.Logger

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// New creates a Gateway. A nil transport uses RESTTransport with defaults.
func New(creds Credentials, transport Transport, cfg Config, logger *zap.Logger) *Gateway {
	if transport == nil {
		transport = NewRESTTransport("", DefaultTimeout)
	}
	if len(cfg.Candidates) == 0 {
		cfg.Candidates = append([]string(nil), DefaultCandidates...)
	}
	if cfg.Generation == (GenerationConfig{}) {
		cfg.Generation = DefaultGenerationConfig()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Gateway{
		creds:     creds,
		transport: transport,
		cfg:       cfg,
		logger:    logger,
		limiters:  make(map[string]*rate.Limiter),
	}
}

// Candidates returns the models tried, in order.
func (g *Gateway) Candidates() []string {
	return append([]string(nil), g.cfg.Candidates...)
}

// SendMessage sends userMessage with history (oldest first, not including
// userMessage) and returns the first non-empty reply.
func (g *Gateway) SendMessage(ctx context.Context, userMessage string, history []storage.Turn) (string, error) {
	apiKey := strings.TrimSpace(g.creds.ModelAPIKey())
	if apiKey == "" {
		return "", ErrMissingCredential
	}

	req := BuildRequest(SystemPrompt(g.creds.UserName()), history, userMessage, g.cfg.Generation)
	log := g.logger.With(zap.String("key_fingerprint", KeyFingerprint(apiKey)))

	var last *Error
	for _, model := range g.cfg.Candidates {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		if !g.allow(model) {
			last = &Error{Kind: KindRateLimited, Model: model, Status: http.StatusTooManyRequests,
				Message: fmt.Sprintf("Rate limited on %s", model)}
			log.Info("local rate limit reached, trying next model", zap.String("model", model))
			continue
		}

		start := time.Now()
		text, err := g.transport.Generate(ctx, model, apiKey, req)
		elapsed := time.Since(start)

		if err == nil && text != "" {
			log.Debug("model replied", zap.String("model", model), zap.Duration("elapsed", elapsed))
			return text, nil
		}

		failure, retry := classify(ctx, model, err)
		log.Warn("model failed",
			zap.String("model", model),
			zap.String("kind", failure.Kind.String()),
			zap.Int("status", failure.Status),
			zap.Duration("elapsed", elapsed),
			zap.String("message", failure.Message))
		if !retry {
			return "", failure
		}
		last = failure
	}

	msg := ErrAllModelsUnavailable.Message
	if last != nil && last.Message != "" {
		msg = last.Message
	}
	return "", &Error{Kind: KindAllModelsUnavailable, Message: msg, Err: last}
}

// classify turns one candidate's outcome into an *Error and reports whether
// the next candidate should be tried.
func classify(ctx context.Context, model string, err error) (*Error, bool) {
	if err == nil {
		return &Error{Kind: KindEmptyReply, Model: model, Message: "Empty response"}, true
	}

	if ctx.Err() != nil || errors.Is(err, context.Canceled) {
		return &Error{Kind: KindRemote, Model: model, Message: "Request cancelled", Err: err}, false
	}

	var se *StatusError
	if errors.As(err, &se) {
		switch {
		case se.Status == http.StatusTooManyRequests:
			return &Error{Kind: KindRateLimited, Model: model, Status: se.Status,
				Message: fmt.Sprintf("Rate limited on %s", model), Err: err}, true
		case se.Status == http.StatusForbidden && strings.Contains(se.Message, "API_KEY"):
			e := *ErrInvalidCredential
			e.Model, e.Status, e.Err = model, se.Status, err
			return &e, false
		case strings.Contains(se.Message, "leaked"):
			e := *ErrRevokedCredential
			e.Model, e.Status, e.Err = model, se.Status, err
			return &e, false
		default:
			msg := se.Message
			if msg == "" {
				msg = fmt.Sprintf("API error (%d)", se.Status)
			}
			return &Error{Kind: KindRemote, Model: model, Status: se.Status, Message: msg, Err: err}, false
		}
	}

	// No response at all (DNS, refused connection, timeout): try the next
	// candidate.
	return &Error{Kind: KindRemote, Model: model, Message: err.Error(), Err: err}, true
}

// allow takes a token from model's limiter, creating it on first use.
func (g *Gateway) allow(model string) bool {
	if g.cfg.RequestsPerMinute <= 0 {
		return true
	}
	g.mu.Lock()
	lim, ok := g.limiters[model]
	if !ok {
		lim = rate.NewLimiter(rate.Every(time.Minute/time.Duration(g.cfg.RequestsPerMinute)), g.cfg.RequestsPerMinute)
		g.limiters[model] = lim
	}
	g.mu.Unlock()
	return lim.Allow()
}
