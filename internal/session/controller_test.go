// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"golang.org/x/sync/errgroup"

	"github.com/jeranaias/jiyu/internal/gateway"
	"github.com/jeranaias/jiyu/internal/kvstore"
	"github.com/jeranaias/jiyu/internal/storage"
)

// =============================================================================
// TEST DOUBLES
// =============================================================================

type call struct {
	message string
	history []storage.Turn
}

type fakeGateway struct {
	mu      sync.Mutex
	calls   []call
	reply   string
	err     error
	release chan struct{} // when set, SendMessage blocks until closed
	entered chan struct{}
}

func (g *fakeGateway) SendMessage(ctx context.Context, msg string, history []storage.Turn) (string, error) {
	g.mu.Lock()
	g.calls = append(g.calls, call{message: msg, history: history})
	release, entered := g.release, g.entered
	g.mu.Unlock()

	if entered != nil {
		close(entered)
	}
	if release != nil {
		<-release
	}
	return g.reply, g.err
}

func (g *fakeGateway) callCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.calls)
}

type fakeSpeaker struct {
	mu     sync.Mutex
	events []string
}

func (s *fakeSpeaker) Speak(_ context.Context, text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, "speak:"+text)
}

func (s *fakeSpeaker) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, "stop")
}

type fakeProfile struct {
	name string
	done bool
}

func (p *fakeProfile) UserName() string               { return p.name }
func (p *fakeProfile) SetUserName(name string) error  { p.name = name; return nil }
func (p *fakeProfile) SetOnboardingDone(d bool) error { p.done = d; return nil }

type fixture struct {
	store   *storage.Store
	gw      *fakeGateway
	speaker *fakeSpeaker
	profile *fakeProfile
	ctrl    *Controller
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	n := 0
	store := storage.New(kvstore.NewMemory(), storage.WithIDGenerator(func() string {
		n++
		return fmt.Sprintf("conv-%d", n)
	}))
	f := &fixture{
		store:   store,
		gw:      &fakeGateway{reply: "hello!"},
		speaker: &fakeSpeaker{},
		profile: &fakeProfile{},
	}
	opts = append([]Option{WithLogger(zaptest.NewLogger(t))}, opts...)
	f.ctrl = New(store, f.gw, f.speaker, f.profile, opts...)
	return f
}

// =============================================================================
// SUBMIT TESTS
// =============================================================================

func TestSubmit_HiHello(t *testing.T) {
	f := newFixture(t)
	id := f.ctrl.StartNewConversation()

	reply, err := f.ctrl.Submit(context.Background(), "hi")
	require.NoError(t, err)
	assert.Equal(t, Reply{ConversationID: id, Text: "hello!", Display: "hello!"}, reply)

	turns := f.store.Turns(id)
	require.Len(t, turns, 2)
	assert.Equal(t, storage.RoleUser, turns[0].Role)
	assert.Equal(t, "hi", turns[0].Content)
	assert.Equal(t, storage.RoleAssistant, turns[1].Role)
	assert.Equal(t, "hello!", turns[1].Content)

	require.Len(t, f.gw.calls, 1)
	assert.Equal(t, "hi", f.gw.calls[0].message)
	assert.Empty(t, f.gw.calls[0].history, "first message has no prior context")

	assert.Equal(t, []string{"stop", "speak:hello!"}, f.speaker.events)
	assert.Equal(t, StateIdle, f.ctrl.State())
}

func TestSubmit_ContextExcludesCurrentMessage(t *testing.T) {
	f := newFixture(t)
	f.ctrl.StartNewConversation()

	_, err := f.ctrl.Submit(context.Background(), "first")
	require.NoError(t, err)
	_, err = f.ctrl.Submit(context.Background(), "hello")
	require.NoError(t, err)

	require.Len(t, f.gw.calls, 2)
	history := f.gw.calls[1].history
	require.Len(t, history, 2)
	assert.Equal(t, "first", history[0].Content)
	assert.Equal(t, "hello!", history[1].Content)
	for _, turn := range history {
		assert.NotEqual(t, "hello", turn.Content)
	}
}

func TestSubmit_BlankIsNoop(t *testing.T) {
	f := newFixture(t)
	for _, text := range []string{"", "   ", "\n\t"} {
		reply, err := f.ctrl.Submit(context.Background(), text)
		require.NoError(t, err)
		assert.True(t, reply.Skipped)
	}
	assert.Zero(t, f.gw.callCount())
	assert.Empty(t, f.store.ListConversationIDs())
}

func TestSubmit_NormalizesInput(t *testing.T) {
	f := newFixture(t)
	id := f.ctrl.StartNewConversation()

	_, err := f.ctrl.Submit(context.Background(), "  cafe\u0301  ")
	require.NoError(t, err)
	assert.Equal(t, "caf\u00e9", f.store.Turns(id)[0].Content)
	assert.Equal(t, "caf\u00e9", f.gw.calls[0].message)
}

func TestSubmit_StartsConversationWhenNoneCurrent(t *testing.T) {
	f := newFixture(t)
	require.Empty(t, f.ctrl.Current())

	reply, err := f.ctrl.Submit(context.Background(), "hi")
	require.NoError(t, err)
	assert.Equal(t, "conv-1", reply.ConversationID)
	assert.Equal(t, "conv-1", f.ctrl.Current())
}

func TestSubmit_BusyIsNoop(t *testing.T) {
	f := newFixture(t)
	f.gw.release = make(chan struct{})
	f.gw.entered = make(chan struct{})
	id := f.ctrl.StartNewConversation()

	done := make(chan Reply)
	go func() {
		reply, _ := f.ctrl.Submit(context.Background(), "first")
		done <- reply
	}()
	<-f.gw.entered
	assert.Equal(t, StateAwaitingResponse, f.ctrl.State())

	second, err := f.ctrl.Submit(context.Background(), "second")
	require.NoError(t, err)
	assert.True(t, second.Skipped)

	close(f.gw.release)
	first := <-done
	assert.Equal(t, "hello!", first.Text)

	assert.Equal(t, 1, f.gw.callCount())
	turns := f.store.Turns(id)
	require.Len(t, turns, 2, "the skipped message is not stored")
	assert.Equal(t, "first", turns[0].Content)
}

func TestSubmit_ConcurrentCallersWhileBusy(t *testing.T) {
	f := newFixture(t)
	f.gw.release = make(chan struct{})
	f.gw.entered = make(chan struct{})
	id := f.ctrl.StartNewConversation()

	done := make(chan struct{})
	go func() {
		defer close(done)
		f.ctrl.Submit(context.Background(), "first")
	}()
	<-f.gw.entered

	var g errgroup.Group
	for i := 0; i < 8; i++ {
		g.Go(func() error {
			reply, err := f.ctrl.Submit(context.Background(), fmt.Sprintf("extra %d", i))
			if err != nil {
				return err
			}
			if !reply.Skipped {
				return fmt.Errorf("submit %d was not skipped", i)
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())

	close(f.gw.release)
	<-done
	assert.Equal(t, 1, f.gw.callCount())
	assert.Len(t, f.store.Turns(id), 2)
}

func TestSubmit_ReplyLandsInSubmittedConversation(t *testing.T) {
	f := newFixture(t)
	f.gw.release = make(chan struct{})
	f.gw.entered = make(chan struct{})

	original := f.ctrl.StartNewConversation()
	done := make(chan Reply)
	go func() {
		reply, _ := f.ctrl.Submit(context.Background(), "question")
		done <- reply
	}()
	<-f.gw.entered

	other := f.ctrl.StartNewConversation()
	close(f.gw.release)
	reply := <-done

	assert.Equal(t, original, reply.ConversationID)
	assert.Len(t, f.store.Turns(original), 2)
	assert.Empty(t, f.store.Turns(other))
	assert.Equal(t, other, f.ctrl.Current(), "switching is not undone by the late reply")
}

func TestSubmit_ErrorNotPersisted(t *testing.T) {
	var transitions []string
	f := newFixture(t, WithObserver(func(from, to State) {
		transitions = append(transitions, from.String()+">"+to.String())
	}))
	f.gw.err = gateway.ErrInvalidCredential
	id := f.ctrl.StartNewConversation()

	reply, err := f.ctrl.Submit(context.Background(), "hi")
	require.Error(t, err)
	assert.ErrorIs(t, err, gateway.ErrInvalidCredential)
	assert.Equal(t, "Oops, something went wrong 😅 — Invalid API key. Check your Gemini key in settings.", reply.Display)
	assert.Empty(t, reply.Text)

	turns := f.store.Turns(id)
	require.Len(t, turns, 1, "only the user turn is stored")
	assert.Equal(t, "hi", turns[0].Content)

	assert.Equal(t, []string{
		"idle>awaiting_response",
		"awaiting_response>error_displayed",
		"error_displayed>idle",
	}, transitions)
	assert.Equal(t, StateIdle, f.ctrl.State())
	assert.Equal(t, []string{"stop"}, f.speaker.events, "errors are not spoken")

	// The next send's context does not contain the error text.
	f.gw.err = nil
	_, err = f.ctrl.Submit(context.Background(), "again")
	require.NoError(t, err)
	last := f.gw.calls[len(f.gw.calls)-1].history
	require.Len(t, last, 1)
	assert.Equal(t, "hi", last[0].Content)
}

// =============================================================================
// NAVIGATION TESTS
// =============================================================================

func TestSwitchToConversation(t *testing.T) {
	f := newFixture(t)
	first := f.ctrl.StartNewConversation()
	_, err := f.ctrl.Submit(context.Background(), "one")
	require.NoError(t, err)
	f.ctrl.StartNewConversation()

	require.NoError(t, f.ctrl.SwitchToConversation(first))
	assert.Equal(t, first, f.ctrl.Current())
	assert.Len(t, f.ctrl.History(), 2)

	err = f.ctrl.SwitchToConversation("missing")
	assert.ErrorIs(t, err, storage.ErrConversationNotFound)
	assert.Equal(t, first, f.ctrl.Current())
}

func TestStartNewConversation_IsLazy(t *testing.T) {
	f := newFixture(t)
	id := f.ctrl.StartNewConversation()
	assert.NotEmpty(t, id)
	assert.Empty(t, f.store.ListConversationIDs(), "nothing is registered until the first turn")
	assert.Empty(t, f.ctrl.History())
}

// =============================================================================
// ONBOARDING AND GREETING TESTS
// =============================================================================

func TestCompleteOnboarding(t *testing.T) {
	f := newFixture(t)

	reply, err := f.ctrl.CompleteOnboarding(context.Background(), "  Ana ")
	require.NoError(t, err)
	assert.Equal(t, "Ana", f.profile.name)
	assert.True(t, f.profile.done)
	assert.True(t, strings.HasPrefix(reply.Text, "Heyy Ana! 🎉"))

	turns := f.store.Turns(reply.ConversationID)
	require.Len(t, turns, 1)
	assert.Equal(t, storage.RoleAssistant, turns[0].Role)
	assert.Equal(t, reply.Text, turns[0].Content)
	assert.Equal(t, []string{"speak:" + reply.Text}, f.speaker.events)

	_, err = f.ctrl.CompleteOnboarding(context.Background(), " ")
	assert.ErrorIs(t, err, ErrEmptyName)
}

func TestGreeting(t *testing.T) {
	f := newFixture(t, WithPicker(func(int) int { return 0 }))
	f.profile.name = "Bo"
	day := func(hour int) time.Time { return time.Date(2025, 3, 1, hour, 0, 0, 0, time.Local) }

	tests := []struct {
		hour int
		want string
	}{
		{7, "Good morning, Bo! ☀️ Ready to take on the day?"},
		{11, "Good morning, Bo! ☀️ Ready to take on the day?"},
		{12, "Hey Bo! 👋 How's your day going so far?"},
		{17, "Hey Bo! 👋 How's your day going so far?"},
		{18, "Hey Bo! 🌙 How was your day? I'm all ears."},
		{23, "Hey Bo! 🌙 How was your day? I'm all ears."},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("hour_%d", tt.hour), func(t *testing.T) {
			got, ok := f.ctrl.Greeting(day(tt.hour))
			assert.True(t, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestGreeting_SkippedWhenConversationHasTurns(t *testing.T) {
	f := newFixture(t)
	f.ctrl.StartNewConversation()
	_, err := f.ctrl.Submit(context.Background(), "hi")
	require.NoError(t, err)

	_, ok := f.ctrl.Greeting(time.Now())
	assert.False(t, ok)
}

func TestGreeting_DefaultName(t *testing.T) {
	f := newFixture(t, WithPicker(func(int) int { return 2 }))
	got, ok := f.ctrl.Greeting(time.Date(2025, 3, 1, 14, 0, 0, 0, time.Local))
	assert.True(t, ok)
	assert.Equal(t, "Heyy friend! Good to see you back 😊 What's on your mind?", got)
}

func TestFormatError(t *testing.T) {
	assert.Equal(t, "", FormatError(nil))
	assert.Equal(t, "Oops, something went wrong 😅 — boom", FormatError(fmt.Errorf("boom")))
}
