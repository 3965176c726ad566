// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/text/unicode/norm"

	"github.com/jeranaias/jiyu/internal/gateway"
	"github.com/jeranaias/jiyu/internal/storage"
)

// =============================================================================
// STATE
// =============================================================================

// State is the controller's turn-taking state.
type State int

const (
	StateIdle State = iota
	StateAwaitingResponse
	StateErrorDisplayed
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAwaitingResponse:
		return "awaiting_response"
	case StateErrorDisplayed:
		return "error_displayed"
	default:
		return "unknown"
	}
}

// StateObserver is called after every state transition.
type StateObserver func(from, to State)

// =============================================================================
// COLLABORATORS
// =============================================================================

// Conversations is the part of the conversation store the controller uses.
type Conversations interface {
	storage.WindowSource
	CreateConversation() string
	AppendTurn(id string, role storage.Role, content string) error
	Turns(id string) []storage.Turn
	Exists(id string) bool
}

// Gateway produces the assistant's reply.
type Gateway interface {
	SendMessage(ctx context.Context, userMessage string, history []storage.Turn) (string, error)
}

// Speaker plays replies aloud. Speak must not block on playback.
type Speaker interface {
	Speak(ctx context.Context, text string)
	Stop()
}

// Profile holds the user's display name and onboarding flag.
type Profile interface {
	UserName() string
	SetUserName(name string) error
	SetOnboardingDone(done bool) error
}

type silentSpeaker struct{}

func (silentSpeaker) Speak(context.Context, string) {}
func (silentSpeaker) Stop()                         {}

// ErrEmptyName is returned by CompleteOnboarding for a blank name.
var ErrEmptyName = errors.New("name must not be empty")

// =============================================================================
// CONTROLLER
// =============================================================================

// Reply is the outcome of one submission.
type Reply struct {
	// ConversationID is the conversation the turn was stored in: the one
	// current when the message was submitted.
	ConversationID string

	// Text is the assistant reply. Empty on failure.
	Text string

	// Display is what the UI shows in the assistant bubble: the reply, or
	// the formatted error.
	Display string

	// Skipped is true when the submission was ignored (blank input or a
	// reply already pending).
	Skipped bool
}

// Controller drives one chat session.
type Controller struct {
	conversations Conversations
	gateway       Gateway
	speaker       Speaker
	profile       Profile
	logger        *zap.Logger

	windowSize int
	observer   StateObserver
	pick       func(n int) int

	mu      sync.Mutex
	state   State
	current string
}

// Option configures a Controller.
type Option func(*Controller)

// WithWindowSize sets how many recent turns feed the context window.
func WithWindowSize(n int) Option {
	return func(c *Controller) {
		if n > 0 {
			c.windowSize = n
		}
	}
}

// WithObserver registers fn for state transitions.
func WithObserver(fn StateObserver) Option {
	return func(c *Controller) { c.observer = fn }
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Controller) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithPicker replaces the random choice among greeting variants.
func WithPicker(pick func(n int) int) Option {
	return func(c *Controller) {
		if pick != nil {
			c.pick = pick
		}
	}
}

// New creates a Controller. speaker may be nil.
func New(conversations Conversations, gw Gateway, speaker Speaker, profile Profile, opts ...Option) *Controller {
	if speaker == nil {
		speaker = silentSpeaker{}
	}
	c := &Controller{
		conversations: conversations,
		gateway:       gw,
		speaker:       speaker,
		profile:       profile,
		logger:        zap.NewNop(),
		windowSize:    storage.DefaultWindowSize,
		pick:          rand.IntN,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// State returns the current state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Current returns the id of the conversation being viewed, or "".
func (c *Controller) Current() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// History returns the turns of the current conversation.
func (c *Controller) History() []storage.Turn {
	id := c.Current()
	if id == "" {
		return []storage.Turn{}
	}
	return c.conversations.Turns(id)
}

// StartNewConversation points the controller at a fresh, unregistered
// conversation and returns its id. A pending reply still lands in the
// conversation it was submitted to.
func (c *Controller) StartNewConversation() string {
	id := c.conversations.CreateConversation()
	c.mu.Lock()
	c.current = id
	c.mu.Unlock()
	c.logger.Debug("started conversation", zap.String("conversation", id))
	return id
}

// SwitchToConversation points the controller at an existing conversation.
// Stored data is not touched.
func (c *Controller) SwitchToConversation(id string) error {
	if !c.conversations.Exists(id) {
		return fmt.Errorf("%w: %s", storage.ErrConversationNotFound, id)
	}
	c.mu.Lock()
	c.current = id
	c.mu.Unlock()
	return nil
}

// Submit sends text as a user turn in the current conversation and waits for
// the reply. Blank text, or a call while a reply is pending, returns a
// skipped Reply and a nil error.
//
// On failure the returned error is the gateway's, and Reply.Display carries
// the formatted message. Failures are never stored as turns.
func (c *Controller) Submit(ctx context.Context, text string) (Reply, error) {
	// Stored turns are NFC so search and previews match what was typed.
	text = norm.NFC.String(strings.TrimSpace(text))
	if text == "" {
		return Reply{Skipped: true}, nil
	}

	c.mu.Lock()
	if c.state != StateIdle {
		c.mu.Unlock()
		c.logger.Debug("submit ignored, reply pending")
		return Reply{Skipped: true}, nil
	}
	if c.current == "" {
		c.current = c.conversations.CreateConversation()
	}
	id := c.current
	c.state = StateAwaitingResponse
	c.mu.Unlock()
	c.notify(StateIdle, StateAwaitingResponse)

	c.speaker.Stop()

	if err := c.conversations.AppendTurn(id, storage.RoleUser, text); err != nil {
		c.transition(StateIdle)
		return Reply{ConversationID: id}, fmt.Errorf("failed to save message: %w", err)
	}

	history := storage.ContextWindow(c.conversations, id, c.windowSize)
	reply, err := c.gateway.SendMessage(ctx, text, history)
	if err != nil {
		c.transition(StateErrorDisplayed)
		c.logger.Warn("reply failed",
			zap.String("conversation", id),
			zap.String("kind", gateway.KindOf(err).String()),
			zap.Error(err))
		display := FormatError(err)
		c.transition(StateIdle)
		return Reply{ConversationID: id, Display: display}, err
	}

	if err := c.conversations.AppendTurn(id, storage.RoleAssistant, reply); err != nil {
		// RELIABILITY: the reply is still shown even if it could not be kept.
		c.logger.Error("failed to save reply", zap.String("conversation", id), zap.Error(err))
	}
	c.speaker.Speak(context.WithoutCancel(ctx), reply)
	c.transition(StateIdle)

	return Reply{ConversationID: id, Text: reply, Display: reply}, nil
}

// CompleteOnboarding stores the user's name, starts a conversation and
// stores Jiyu's welcome message in it.
func (c *Controller) CompleteOnboarding(ctx context.Context, name string) (Reply, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Reply{}, ErrEmptyName
	}
	if err := c.profile.SetUserName(name); err != nil {
		return Reply{}, fmt.Errorf("failed to save name: %w", err)
	}
	if err := c.profile.SetOnboardingDone(true); err != nil {
		return Reply{}, fmt.Errorf("failed to save onboarding state: %w", err)
	}

	id := c.StartNewConversation()
	greeting := WelcomeMessage(name)
	if err := c.conversations.AppendTurn(id, storage.RoleAssistant, greeting); err != nil {
		return Reply{ConversationID: id}, fmt.Errorf("failed to save greeting: %w", err)
	}
	c.speaker.Speak(context.WithoutCancel(ctx), greeting)
	return Reply{ConversationID: id, Text: greeting, Display: greeting}, nil
}

// Greeting returns a time-of-day greeting for a returning user. ok is false
// when the current conversation already has turns. The greeting is not
// stored.
func (c *Controller) Greeting(now time.Time) (greeting string, ok bool) {
	if len(c.History()) > 0 {
		return "", false
	}
	name := strings.TrimSpace(c.profile.UserName())
	if name == "" {
		name = gateway.DefaultUserName
	}
	options := greetingsFor(now.Hour())
	return fmt.Sprintf(options[c.pick(len(options))], name), true
}

func (c *Controller) transition(to State) {
	c.mu.Lock()
	from := c.state
	c.state = to
	c.mu.Unlock()
	c.notify(from, to)
}

func (c *Controller) notify(from, to State) {
	if c.observer != nil && from != to {
		c.observer(from, to)
	}
}
