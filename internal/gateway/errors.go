// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package gateway

import (
	"errors"
	"fmt"
)

// =============================================================================
// ERROR KINDS
// =============================================================================

// Kind classifies a gateway failure.
type Kind int

const (
	KindUnknown Kind = iota

	// KindMissingCredential: no model API key is configured.
	KindMissingCredential

	// KindInvalidCredential: the remote rejected the key (403 + API_KEY).
	KindInvalidCredential

	// KindRevokedCredential: the remote reported the key as leaked.
	KindRevokedCredential

	// KindRemote: any other non-success response.
	KindRemote

	// KindAllModelsUnavailable: every candidate was rate limited or empty.
	KindAllModelsUnavailable

	// KindRateLimited and KindEmptyReply describe a single candidate's
	// failure; they trigger substitution and never escape SendMessage.
	KindRateLimited
	KindEmptyReply
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindMissingCredential:
		return "missing_credential"
	case KindInvalidCredential:
		return "invalid_credential"
	case KindRevokedCredential:
		return "revoked_credential"
	case KindRemote:
		return "remote_error"
	case KindAllModelsUnavailable:
		return "all_models_unavailable"
	case KindRateLimited:
		return "rate_limited"
	case KindEmptyReply:
		return "empty_reply"
	default:
		return "unknown"
	}
}

// =============================================================================
// ERROR TYPE
// =============================================================================

// Error is the single terminal error SendMessage returns for a turn.
type Error struct {
	Kind    Kind
	Model   string // candidate that produced the failure, if any
	Status  int    // HTTP status, if any
	Message string // user-facing text
	Err     error  // underlying cause, if any
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return e.Kind.String()
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error of the same Kind, so the sentinels below work with
// errors.Is regardless of message.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// Sentinels for errors.Is.
var (
	ErrMissingCredential    = &Error{Kind: KindMissingCredential, Message: "No API key set. Add your Gemini key with `jiyu settings set-key model`."}
	ErrInvalidCredential    = &Error{Kind: KindInvalidCredential, Message: "Invalid API key. Check your Gemini key in settings."}
	ErrRevokedCredential    = &Error{Kind: KindRevokedCredential, Message: "This API key was reported as leaked. Create a new one at aistudio.google.com/apikey"}
	ErrRemote               = &Error{Kind: KindRemote}
	ErrAllModelsUnavailable = &Error{Kind: KindAllModelsUnavailable, Message: "All models are currently unavailable. Try again in a minute."}
)

// KindOf returns the Kind of err, or KindUnknown.
func KindOf(err error) Kind {
	var ge *Error
	if errors.As(err, &ge) {
		return ge.Kind
	}
	return KindUnknown
}

// =============================================================================
// TRANSPORT STATUS ERROR
// =============================================================================

// StatusError is how transports report a non-success HTTP response.
// Message is the remote's error message, possibly empty.
type StatusError struct {
	Status  int
	Message string
}

// Error implements the error interface.
func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("API error (%d)", e.Status)
	}
	return fmt.Sprintf("API error (%d): %s", e.Status, e.Message)
}
