// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jeranaias/jiyu/internal/kvstore"
	"github.com/jeranaias/jiyu/internal/util"
)

// =============================================================================
// CONSTANTS
// =============================================================================

const (
	// Namespace prefixes every key jiyu writes to the key-value store.
	Namespace = "jiyu_"

	// IndexKey holds the JSON array of conversation ids in creation order.
	IndexKey = Namespace + "conversations"

	// ConversationKeyPrefix prefixes each conversation's turn array.
	ConversationKeyPrefix = Namespace + "conv_"

	// DefaultMaxTurns caps the turns kept per conversation.
	DefaultMaxTurns = 200

	// DefaultMaxConversations caps the number of stored conversations.
	DefaultMaxConversations = 50

	// DefaultWindowSize is the number of recent turns sent as context.
	DefaultWindowSize = 20

	previewWidth = 80
)

// =============================================================================
// TURN TYPE
// =============================================================================

// Role identifies who produced a turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAssistant
}

// Turn is one message in a conversation. Timestamp is epoch milliseconds.
type Turn struct {
	Role      Role   `json:"role"`
	Content   string `json:"content"`
	Timestamp int64  `json:"timestamp"`
}

// Time returns the turn's timestamp as a time.Time.
func (t Turn) Time() time.Time {
	return time.UnixMilli(t.Timestamp)
}

// ConversationMeta contains metadata for listing conversations.
type ConversationMeta struct {
	ID        string    `json:"id"`
	TurnCount int       `json:"turn_count"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Preview   string    `json:"preview"` // First user message, truncated
}

// Transcript is a full conversation with its derived metadata.
type Transcript struct {
	ConversationMeta
	Title string `json:"title"`
	Turns []Turn `json:"turns"`
}

// =============================================================================
// CONVERSATION STORE
// =============================================================================

// Store persists conversations in a kvstore.Store.
//
// The index and every conversation record are only ever written together
// inside one kvstore transaction, so an id is listed exactly when its record
// exists.
type Store struct {
	kv     kvstore.Store
	logger *zap.Logger

	maxTurns         int
	maxConversations int

	now   func() time.Time
	newID func() string
}

// Option configures a Store.
type Option func(*Store)

// WithLimits overrides the per-conversation turn cap and the conversation
// cap. Non-positive values keep the defaults.
func WithLimits(maxTurns, maxConversations int) Option {
	return func(s *Store) {
		if maxTurns > 0 {
			s.maxTurns = maxTurns
		}
		if maxConversations > 0 {
			s.maxConversations = maxConversations
		}
	}
}

// WithClock sets the time source used for turn timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithIDGenerator sets the conversation id generator.
func WithIDGenerator(gen func() string) Option {
	return func(s *Store) { s.newID = gen }
}

// WithLogger sets the logger used to report degraded reads and evictions.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Store) { s.logger = logger }
}

// New creates a conversation store on top of kv.
func New(kv kvstore.Store, opts ...Option) *Store {
	s := &Store{
		kv:               kv,
		logger:           zap.NewNop(),
		maxTurns:         DefaultMaxTurns,
		maxConversations: DefaultMaxConversations,
		now:              time.Now,
		newID:            newConversationID,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// MaxTurns returns the per-conversation turn cap.
func (s *Store) MaxTurns() int { return s.maxTurns }

// MaxConversations returns the conversation cap.
func (s *Store) MaxConversations() int { return s.maxConversations }

// =============================================================================
// WRITE OPERATIONS
// =============================================================================

// CreateConversation returns a fresh id. Nothing is persisted until the
// first AppendTurn for that id.
func (s *Store) CreateConversation() string {
	return s.newID()
}

// AppendTurn appends a turn to conversation id, registering the id first if
// it is new. Registering the id beyond the conversation cap evicts the oldest
// conversations. The conversation keeps only its newest MaxTurns turns.
//
// An empty id is a no-op.
func (s *Store) AppendTurn(id string, role Role, content string) error {
	if id == "" {
		return nil
	}
	if !role.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidRole, role)
	}

	turn := Turn{Role: role, Content: content, Timestamp: s.now().UnixMilli()}
	var evicted []string

	err := s.kv.Update(func(tx kvstore.Tx) error {
		index := s.readIndex(tx)
		if !contains(index, id) {
			index = append(index, id)
			for len(index) > s.maxConversations {
				victim := index[0]
				index = index[1:]
				if err := tx.Delete(conversationKey(victim)); err != nil {
					return err
				}
				evicted = append(evicted, victim)
			}
			if err := writeJSON(tx, IndexKey, index); err != nil {
				return err
			}
		}

		turns := s.readTurns(tx, id)
		turns = append(turns, turn)
		if len(turns) > s.maxTurns {
			turns = turns[len(turns)-s.maxTurns:]
		}
		return writeJSON(tx, conversationKey(id), turns)
	})
	if err != nil {
		return fmt.Errorf("failed to append turn: %w", err)
	}

	for _, victim := range evicted {
		s.logger.Info("evicted oldest conversation", zap.String("conversation_id", victim))
	}
	return nil
}

// =============================================================================
// READ OPERATIONS
// =============================================================================

// Turns returns every stored turn of id in order. Unknown ids and corrupt
// records yield an empty slice.
func (s *Store) Turns(id string) []Turn {
	var turns []Turn
	err := s.kv.View(func(tx kvstore.Reader) error {
		turns = s.readTurns(tx, id)
		return nil
	})
	if err != nil {
		s.logger.Warn("failed to read conversation", zap.String("conversation_id", id), zap.Error(err))
		return []Turn{}
	}
	return turns
}

// RecentWindow returns the last n turns of id in order, or all of them when
// fewer exist. A non-positive n falls back to DefaultWindowSize.
func (s *Store) RecentWindow(id string, n int) []Turn {
	if n <= 0 {
		n = DefaultWindowSize
	}
	turns := s.Turns(id)
	if len(turns) > n {
		turns = turns[len(turns)-n:]
	}
	return turns
}

// ListConversationIDs returns the stored ids in creation order.
func (s *Store) ListConversationIDs() []string {
	var index []string
	err := s.kv.View(func(tx kvstore.Reader) error {
		index = s.readIndex(tx)
		return nil
	})
	if err != nil {
		s.logger.Warn("failed to read conversation index", zap.Error(err))
		return []string{}
	}
	return index
}

// Exists reports whether id is a stored conversation.
func (s *Store) Exists(id string) bool {
	return id != "" && contains(s.ListConversationIDs(), id)
}

// Conversations returns listing metadata for every stored conversation,
// most recently updated first.
func (s *Store) Conversations() []ConversationMeta {
	var metas []ConversationMeta
	err := s.kv.View(func(tx kvstore.Reader) error {
		ids := s.readIndex(tx)
		// Newest first, so equal timestamps keep the later conversation on top.
		for i := len(ids) - 1; i >= 0; i-- {
			metas = append(metas, buildMeta(ids[i], s.readTurns(tx, ids[i])))
		}
		return nil
	})
	if err != nil {
		s.logger.Warn("failed to list conversations", zap.Error(err))
		return []ConversationMeta{}
	}

	sort.SliceStable(metas, func(i, j int) bool {
		return metas[i].UpdatedAt.After(metas[j].UpdatedAt)
	})
	return metas
}

// Search returns conversations with at least one turn containing query,
// case-insensitively, most recently updated first.
func (s *Store) Search(query string) []ConversationMeta {
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		return []ConversationMeta{}
	}

	results := []ConversationMeta{}
	for _, meta := range s.Conversations() {
		for _, turn := range s.Turns(meta.ID) {
			if strings.Contains(strings.ToLower(turn.Content), query) {
				results = append(results, meta)
				break
			}
		}
	}
	return results
}

// Transcript returns the full conversation id with metadata.
func (s *Store) Transcript(id string) (*Transcript, error) {
	if !s.Exists(id) {
		return nil, ErrConversationNotFound
	}
	turns := s.Turns(id)
	meta := buildMeta(id, turns)
	title := meta.Preview
	if title == "" {
		title = "New conversation"
	}
	return &Transcript{ConversationMeta: meta, Title: title, Turns: turns}, nil
}

// =============================================================================
// DELETE OPERATIONS
// =============================================================================

// DeleteConversation removes the record and index entry of id. Deleting an
// unknown id is not an error.
func (s *Store) DeleteConversation(id string) error {
	if id == "" {
		return nil
	}
	err := s.kv.Update(func(tx kvstore.Tx) error {
		index := s.readIndex(tx)
		kept := index[:0:0]
		for _, existing := range index {
			if existing != id {
				kept = append(kept, existing)
			}
		}
		if len(kept) != len(index) {
			if err := writeJSON(tx, IndexKey, kept); err != nil {
				return err
			}
		}
		return tx.Delete(conversationKey(id))
	})
	if err != nil {
		return fmt.Errorf("failed to delete conversation: %w", err)
	}
	return nil
}

// ClearAll removes every key in the jiyu namespace: all conversations, the
// index, and all settings.
func (s *Store) ClearAll() error {
	err := s.kv.Update(func(tx kvstore.Tx) error {
		keys, err := tx.Keys(Namespace)
		if err != nil {
			return err
		}
		for _, k := range keys {
			if err := tx.Delete(k); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to clear data: %w", err)
	}
	return nil
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

// readIndex parses the index. A missing or malformed index reads as empty;
// duplicates and blank ids are dropped.
func (s *Store) readIndex(tx kvstore.Reader) []string {
	raw, ok, err := tx.Get(IndexKey)
	if err != nil || !ok {
		return []string{}
	}
	var ids []string
	if err := json.Unmarshal([]byte(raw), &ids); err != nil {
		s.logger.Warn("conversation index is corrupt, treating as empty", zap.Error(err))
		return []string{}
	}

	seen := make(map[string]bool, len(ids))
	clean := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		clean = append(clean, id)
	}
	return clean
}

// readTurns parses a conversation record. Missing or malformed records read
// as empty; turns with unknown roles are skipped.
func (s *Store) readTurns(tx kvstore.Reader, id string) []Turn {
	if id == "" {
		return []Turn{}
	}
	raw, ok, err := tx.Get(conversationKey(id))
	if err != nil || !ok {
		return []Turn{}
	}
	var turns []Turn
	if err := json.Unmarshal([]byte(raw), &turns); err != nil {
		s.logger.Warn("conversation record is corrupt, treating as empty",
			zap.String("conversation_id", id), zap.Error(err))
		return []Turn{}
	}

	valid := turns[:0]
	for _, t := range turns {
		if t.Role.Valid() {
			valid = append(valid, t)
		}
	}
	return valid
}

func buildMeta(id string, turns []Turn) ConversationMeta {
	meta := ConversationMeta{ID: id, TurnCount: len(turns)}
	if len(turns) == 0 {
		return meta
	}
	meta.CreatedAt = turns[0].Time()
	meta.UpdatedAt = turns[len(turns)-1].Time()
	for _, t := range turns {
		if t.Role == RoleUser {
			meta.Preview = util.TruncateWidth(util.SingleLine(t.Content), previewWidth)
			break
		}
	}
	return meta
}

func writeJSON(tx kvstore.Tx, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", key, err)
	}
	return tx.Set(key, string(data))
}

func conversationKey(id string) string {
	return ConversationKeyPrefix + id
}

func contains(ids []string, id string) bool {
	for _, existing := range ids {
		if existing == id {
			return true
		}
	}
	return false
}

// newConversationID returns a time-ordered UUIDv7, falling back to a random
// UUID if the clock source fails.
func newConversationID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

// =============================================================================
// ERRORS
// =============================================================================

// ErrConversationNotFound is returned when a conversation doesn't exist.
// Use errors.Is(err, ErrConversationNotFound) to check for this error.
var ErrConversationNotFound = &ConversationError{Message: "conversation not found"}

// ErrInvalidRole is returned when appending a turn with an unknown role.
var ErrInvalidRole = errors.New("invalid turn role")

// ConversationError represents a conversation-related error.
type ConversationError struct {
	Message string
}

// Error implements the error interface.
func (e *ConversationError) Error() string {
	return e.Message
}

// Is implements errors.Is support for comparing conversation errors.
func (e *ConversationError) Is(target error) bool {
	t, ok := target.(*ConversationError)
	if !ok {
		return false
	}
	return e.Message == t.Message
}
