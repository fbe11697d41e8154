// Package storetest holds conformance suites shared by every FactStore and
// ConversationStore backend.
package storetest

import (
	"context"
	"testing"
	"time"

	"github.com/hupe1980/convomesh/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// FactStore exercises the core.FactStore contract against a fresh store
// returned by newStore.
func FactStore(t *testing.T, newStore func(t *testing.T) core.FactStore) {
	t.Helper()
	ctx := context.Background()

	t.Run("upsert", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.Put(ctx, core.GlobalScope, "horario", "9 a 18"))
		require.NoError(t, s.Put(ctx, core.GlobalScope, "horario", "10 a 19"))

		facts, err := s.List(ctx, core.GlobalScope)
		require.NoError(t, err)
		require.Len(t, facts, 1)
		assert.Equal(t, "10 a 19", facts[0].Value)
	})

	t.Run("tiers are isolated", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.Put(ctx, core.GlobalScope, "k", "global"))
		require.NoError(t, s.Put(ctx, core.ScopedTo("ana"), "k", "ana"))
		require.NoError(t, s.Put(ctx, core.ScopedTo("bob"), "k", "bob"))

		ana, err := s.List(ctx, core.ScopedTo("ana"))
		require.NoError(t, err)
		require.Len(t, ana, 1)
		assert.Equal(t, "ana", ana[0].Value)
		assert.Equal(t, core.ScopedTo("ana"), ana[0].Scope)

		global, err := s.List(ctx, core.GlobalScope)
		require.NoError(t, err)
		require.Len(t, global, 1)
		assert.Equal(t, "global", global[0].Value)
	})

	t.Run("list is ordered by key", func(t *testing.T) {
		s := newStore(t)
		for _, k := range []string{"b", "c", "a"} {
			require.NoError(t, s.Put(ctx, core.ScopedTo("ana"), k, k))
		}
		facts, err := s.List(ctx, core.ScopedTo("ana"))
		require.NoError(t, err)
		keys := make([]string, 0, len(facts))
		for _, f := range facts {
			keys = append(keys, f.Key)
		}
		assert.Equal(t, []string{"a", "b", "c"}, keys)
	})

	t.Run("delete", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.Put(ctx, core.ScopedTo("ana"), "k", "v"))

		removed, err := s.Delete(ctx, core.GlobalScope, "k")
		require.NoError(t, err)
		assert.False(t, removed)

		removed, err = s.Delete(ctx, core.ScopedTo("ana"), "k")
		require.NoError(t, err)
		assert.True(t, removed)

		removed, err = s.Delete(ctx, core.ScopedTo("ana"), "k")
		require.NoError(t, err)
		assert.False(t, removed)

		facts, err := s.List(ctx, core.ScopedTo("ana"))
		require.NoError(t, err)
		assert.Empty(t, facts)
	})
}

// ConversationStore exercises the core.ConversationStore contract against a
// fresh store returned by newStore.
func ConversationStore(t *testing.T, newStore func(t *testing.T) core.ConversationStore) {
	t.Helper()
	ctx := context.Background()

	t.Run("create and get", func(t *testing.T) {
		s := newStore(t)
		conv := core.NewConversation("Consulta", "ana", map[string]string{"source": "voice"})
		require.NoError(t, s.CreateConversation(ctx, conv))

		got, err := s.GetConversation(ctx, conv.ID)
		require.NoError(t, err)
		assert.Equal(t, conv.ID, got.ID)
		assert.Equal(t, "Consulta", got.Title)
		assert.Equal(t, "ana", got.Owner)
		assert.Equal(t, "voice", got.Metadata["source"])

		_, err = s.GetConversation(ctx, core.NewID())
		assert.ErrorIs(t, err, core.ErrNotFound)
	})

	t.Run("anonymous owner", func(t *testing.T) {
		s := newStore(t)
		conv := core.NewConversation("Anon", "", nil)
		require.NoError(t, s.CreateConversation(ctx, conv))
		got, err := s.GetConversation(ctx, conv.ID)
		require.NoError(t, err)
		assert.Empty(t, got.Owner)
	})

	t.Run("turns in creation order", func(t *testing.T) {
		s := newStore(t)
		conv := core.NewConversation("c", "", nil)
		require.NoError(t, s.CreateConversation(ctx, conv))

		first := core.NewTurn(conv.ID, core.RoleUser, "hola", []string{"https://img/1.jpg", "https://img/2.jpg"})
		second := core.NewTurn(conv.ID, core.RoleAgent, "¿qué tal?", nil)
		second.Created = first.Created.Add(time.Millisecond)
		third := core.NewTurn(conv.ID, core.RoleUser, "bien", nil)
		third.Created = second.Created
		for _, turn := range []core.Turn{first, second, third} {
			require.NoError(t, s.AppendTurn(ctx, turn))
		}

		turns, err := s.ListTurns(ctx, conv.ID)
		require.NoError(t, err)
		require.Len(t, turns, 3)
		assert.Equal(t, "hola", turns[0].Content)
		assert.Equal(t, []string{"https://img/1.jpg", "https://img/2.jpg"}, turns[0].Images)
		assert.Equal(t, core.RoleAgent, turns[1].Role)
		assert.Empty(t, turns[1].Images)
		assert.Equal(t, "bien", turns[2].Content)
	})

	t.Run("append to unknown conversation", func(t *testing.T) {
		s := newStore(t)
		err := s.AppendTurn(ctx, core.NewTurn(core.NewID(), core.RoleUser, "x", nil))
		assert.ErrorIs(t, err, core.ErrNotFound)
	})

	t.Run("soft delete", func(t *testing.T) {
		s := newStore(t)
		conv := core.NewConversation("c", "", nil)
		require.NoError(t, s.CreateConversation(ctx, conv))
		keep := core.NewTurn(conv.ID, core.RoleUser, "keep", nil)
		drop := core.NewTurn(conv.ID, core.RoleUser, "drop", nil)
		require.NoError(t, s.AppendTurn(ctx, keep))
		require.NoError(t, s.AppendTurn(ctx, drop))

		require.NoError(t, s.SoftDeleteTurn(ctx, conv.ID, drop.ID))
		assert.ErrorIs(t, s.SoftDeleteTurn(ctx, conv.ID, core.NewID()), core.ErrNotFound)

		turns, err := s.ListTurns(ctx, conv.ID)
		require.NoError(t, err)
		require.Len(t, turns, 1)
		assert.Equal(t, "keep", turns[0].Content)
	})
}
