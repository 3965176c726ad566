// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package identity manages the signed-in user record.
//
// jiyu never talks to an identity provider itself. A Google sign-in hands it
// an ID token obtained elsewhere (for example from a browser sign-in flow);
// the token's claims become the stored Identity. Guests get a fixed record.
package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"google.golang.org/api/idtoken"
)

// =============================================================================
// IDENTITY RECORD
// =============================================================================

// Provider names who vouched for an identity.
type Provider string

const (
	ProviderGoogle Provider = "google"
	ProviderGuest  Provider = "guest"
)

// GuestName is the display name given to guest identities.
const GuestName = "Guest"

// Identity is the persisted authenticated-user record.
type Identity struct {
	Name     string   `json:"name"`
	Email    string   `json:"email,omitempty"`
	Picture  string   `json:"picture,omitempty"`
	Provider Provider `json:"provider"`
}

// Guest returns the guest identity.
func Guest() Identity {
	return Identity{Name: GuestName, Provider: ProviderGuest}
}

// FirstName returns the first whitespace-separated word of name.
func FirstName(name string) string {
	fields := strings.Fields(name)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}

// =============================================================================
// SERVICE
// =============================================================================

// Store persists the identity record and the display name it may seed.
type Store interface {
	Identity() (Identity, bool)
	SetIdentity(id Identity) error
	ClearIdentity() error
	UserName() string
	SetUserName(name string) error
}

// Validator verifies an ID token for audience and returns its payload.
type Validator func(ctx context.Context, token, audience string) (*idtoken.Payload, error)

// ErrInvalidToken is returned when an ID token cannot be parsed or verified.
var ErrInvalidToken = errors.New("invalid identity token")

// Service performs sign-in and sign-out against a Store.
type Service struct {
	store    Store
	clientID string
	validate Validator
	logger   *zap.Logger
}

// NewService creates a Service. When clientID is set, Google tokens are
// verified against it; otherwise their claims are read without verification.
func NewService(store Store, clientID string, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		store:    store,
		clientID: clientID,
		validate: idtoken.Validate,
		logger:   logger,
	}
}

// WithValidator replaces the token validator.
func (s *Service) WithValidator(v Validator) *Service {
	s.validate = v
	return s
}

// Current returns the stored identity, if any.
func (s *Service) Current() (Identity, bool) {
	return s.store.Identity()
}

// LoggedIn reports whether an identity is stored.
func (s *Service) LoggedIn() bool {
	_, ok := s.store.Identity()
	return ok
}

// LoginGuest stores the guest identity.
func (s *Service) LoginGuest() (Identity, error) {
	id := Guest()
	if err := s.store.SetIdentity(id); err != nil {
		return Identity{}, err
	}
	s.logger.Info("signed in", zap.String("provider", string(id.Provider)))
	return id, nil
}

// LoginGoogle stores the identity carried by a Google ID token. If no
// display name is set yet, the first word of the token's name becomes it.
func (s *Service) LoginGoogle(ctx context.Context, token string) (Identity, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return Identity{}, fmt.Errorf("%w: empty token", ErrInvalidToken)
	}

	var (
		payload *idtoken.Payload
		err     error
	)
	if s.clientID != "" {
		payload, err = s.validate(ctx, token, s.clientID)
	} else {
		s.logger.Warn("no Google client id configured, token signature not verified")
		payload, err = idtoken.ParsePayload(token)
	}
	if err != nil {
		return Identity{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	id := Identity{
		Name:     claim(payload, "name"),
		Email:    claim(payload, "email"),
		Picture:  claim(payload, "picture"),
		Provider: ProviderGoogle,
	}
	if id.Name == "" {
		id.Name, _, _ = strings.Cut(id.Email, "@")
	}
	if err := s.store.SetIdentity(id); err != nil {
		return Identity{}, err
	}

	if s.store.UserName() == "" {
		if first := FirstName(id.Name); first != "" {
			if err := s.store.SetUserName(first); err != nil {
				return id, err
			}
		}
	}

	s.logger.Info("signed in", zap.String("provider", string(id.Provider)))
	return id, nil
}

// SignOut removes the stored identity. The display name is kept.
func (s *Service) SignOut() error {
	return s.store.ClearIdentity()
}

func claim(p *idtoken.Payload, name string) string {
	if p == nil || p.Claims == nil {
		return ""
	}
	v, _ := p.Claims[name].(string)
	return strings.TrimSpace(v)
}
