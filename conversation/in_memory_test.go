package conversation

import (
	"context"
	"testing"
	"time"

	"github.com/hupe1980/convomesh/core"
	"github.com/hupe1980/convomesh/internal/storetest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Interface compliance (compile-time assertion)
var _ core.ConversationStore = (*InMemoryStore)(nil)

func TestInMemoryStore_CreateGet(t *testing.T) {
	ctx := context.Background()
	s := NewInMemoryStore()
	conv := core.NewConversation("t", "u1", map[string]string{"source": "chat"})

	require.NoError(t, s.CreateConversation(ctx, conv))
	assert.Error(t, s.CreateConversation(ctx, conv))

	got, err := s.GetConversation(ctx, conv.ID)
	require.NoError(t, err)
	assert.Equal(t, "u1", got.Owner)
	got.Metadata["source"] = "mutated"

	again, _ := s.GetConversation(ctx, conv.ID)
	assert.Equal(t, "chat", again.Metadata["source"])

	_, err = s.GetConversation(ctx, "missing")
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestInMemoryStore_ListTurnsOrderAndSoftDelete(t *testing.T) {
	ctx := context.Background()
	s := NewInMemoryStore()
	conv := core.NewConversation("t", "", nil)
	require.NoError(t, s.CreateConversation(ctx, conv))

	base := time.Now().UTC()
	mk := func(content string, offset time.Duration) core.Turn {
		turn := core.NewTurn(conv.ID, core.RoleUser, content, nil)
		turn.Created = base.Add(offset)
		return turn
	}
	third := mk("tres", 3*time.Second)
	first := mk("uno", time.Second)
	second := mk("dos", 2*time.Second)
	for _, turn := range []core.Turn{third, first, second} {
		require.NoError(t, s.AppendTurn(ctx, turn))
	}

	require.NoError(t, s.SoftDeleteTurn(ctx, conv.ID, second.ID))
	assert.ErrorIs(t, s.SoftDeleteTurn(ctx, conv.ID, "missing"), core.ErrNotFound)

	turns, err := s.ListTurns(ctx, conv.ID)
	require.NoError(t, err)
	require.Len(t, turns, 2)
	assert.Equal(t, "uno", turns[0].Content)
	assert.Equal(t, "tres", turns[1].Content)
}

func TestInMemoryStore_AppendUnknownConversation(t *testing.T) {
	s := NewInMemoryStore()
	err := s.AppendTurn(context.Background(), core.NewTurn("missing", core.RoleUser, "x", nil))
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestInMemoryStore_Conformance(t *testing.T) {
	storetest.ConversationStore(t, func(*testing.T) core.ConversationStore { return NewInMemoryStore() })
}
