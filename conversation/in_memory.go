package conversation

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/hupe1980/convomesh/core"
)

// InMemoryStore is a volatile ConversationStore keeping conversations and
// their turns in process local maps. It is safe for concurrent access and
// best suited for tests or ephemeral demo servers. Returned values are copies
// so callers cannot mutate internal state.
type InMemoryStore struct {
	mu            sync.RWMutex
	conversations map[string]core.Conversation
	turns         map[string][]core.Turn // conversationID -> turns in insertion order
}

// NewInMemoryStore constructs an empty in-memory conversation store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		conversations: make(map[string]core.Conversation),
		turns:         make(map[string][]core.Turn),
	}
}

// CreateConversation stores c. Creating an existing id fails.
func (s *InMemoryStore) CreateConversation(_ context.Context, c core.Conversation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.conversations[c.ID]; exists {
		return fmt.Errorf("conversation %s already exists", c.ID)
	}
	s.conversations[c.ID] = cloneConversation(c)
	return nil
}

// GetConversation returns the conversation or core.ErrNotFound.
func (s *InMemoryStore) GetConversation(_ context.Context, id string) (core.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.conversations[id]
	if !ok {
		return core.Conversation{}, core.ErrNotFound
	}
	return cloneConversation(c), nil
}

// AppendTurn adds t to its conversation.
func (s *InMemoryStore) AppendTurn(_ context.Context, t core.Turn) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.conversations[t.ConversationID]; !ok {
		return fmt.Errorf("append turn to %s: %w", t.ConversationID, core.ErrNotFound)
	}
	s.turns[t.ConversationID] = append(s.turns[t.ConversationID], cloneTurn(t))
	return nil
}

// ListTurns returns non-deleted turns ordered by creation time. Turns created
// at the same instant keep insertion order.
func (s *InMemoryStore) ListTurns(_ context.Context, conversationID string) ([]core.Turn, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	all := s.turns[conversationID]
	out := make([]core.Turn, 0, len(all))
	for _, t := range all {
		if t.Deleted != nil {
			continue
		}
		out = append(out, cloneTurn(t))
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Created.Before(out[j].Created) })
	return out, nil
}

// SoftDeleteTurn stamps the turn as deleted.
func (s *InMemoryStore) SoftDeleteTurn(_ context.Context, conversationID, turnID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	turns := s.turns[conversationID]
	for i := range turns {
		if turns[i].ID == turnID {
			now := time.Now().UTC()
			turns[i].Deleted = &now
			return nil
		}
	}
	return core.ErrNotFound
}

func cloneConversation(c core.Conversation) core.Conversation {
	md := make(map[string]string, len(c.Metadata))
	for k, v := range c.Metadata {
		md[k] = v
	}
	c.Metadata = md
	return c
}

func cloneTurn(t core.Turn) core.Turn {
	if t.Images != nil {
		imgs := make([]string, len(t.Images))
		copy(imgs, t.Images)
		t.Images = imgs
	}
	if t.Deleted != nil {
		d := *t.Deleted
		t.Deleted = &d
	}
	return t
}
