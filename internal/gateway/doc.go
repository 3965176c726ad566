// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package gateway sends a user message plus recent history to the hosted
// model and returns the reply text.
//
// # Fallback
//
// Candidate models are tried in priority order. A rate-limited model (HTTP
// 429 or a denied local token) or an empty reply moves on to the next
// candidate. Credential problems and any other remote error stop at once.
// When every candidate is exhausted the last failure is reported as
// KindAllModelsUnavailable.
//
// # Transports
//
//   - RESTTransport: direct generateContent calls (default)
//   - GenAITransport: the google.golang.org/genai SDK
//   - OpenAITransport: OpenAI-compatible chat completion endpoints
//
// Every transport reports non-success responses as *StatusError, so the
// classification above does not depend on the wire.
package gateway
