package memory

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/hupe1980/convomesh/core"
	"github.com/hupe1980/convomesh/internal/storetest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Interface compliance (compile-time assertions)
var _ core.FactStore = (*InMemoryStore)(nil)

func TestInMemoryStore_PutListUpsert(t *testing.T) {
	ctx := context.Background()
	s := NewInMemoryStore()

	facts, err := s.List(ctx, core.GlobalScope)
	require.NoError(t, err)
	assert.Empty(t, facts)

	require.NoError(t, s.Put(ctx, core.GlobalScope, "b", "1"))
	require.NoError(t, s.Put(ctx, core.GlobalScope, "a", "1"))
	require.NoError(t, s.Put(ctx, core.GlobalScope, "a", "2"))

	facts, err = s.List(ctx, core.GlobalScope)
	require.NoError(t, err)
	require.Len(t, facts, 2)
	assert.Equal(t, core.Fact{Key: "a", Value: "2", Scope: core.GlobalScope}, facts[0])
	assert.Equal(t, "b", facts[1].Key)
}

func TestInMemoryStore_TiersDoNotCollide(t *testing.T) {
	ctx := context.Background()
	s := NewInMemoryStore()

	require.NoError(t, s.Put(ctx, core.GlobalScope, "nombre", "global"))
	require.NoError(t, s.Put(ctx, core.ScopedTo("u1"), "nombre", "ana"))
	require.NoError(t, s.Put(ctx, core.ScopedTo("u2"), "nombre", "luis"))

	g, _ := s.List(ctx, core.GlobalScope)
	u1, _ := s.List(ctx, core.ScopedTo("u1"))
	u2, _ := s.List(ctx, core.ScopedTo("u2"))
	assert.Equal(t, "global", g[0].Value)
	assert.Equal(t, "ana", u1[0].Value)
	assert.Equal(t, "luis", u2[0].Value)

	removed, err := s.Delete(ctx, core.ScopedTo("u1"), "nombre")
	require.NoError(t, err)
	assert.True(t, removed)

	removed, err = s.Delete(ctx, core.ScopedTo("u1"), "nombre")
	require.NoError(t, err)
	assert.False(t, removed)

	removed, err = s.Delete(ctx, core.ScopedTo("nobody"), "nombre")
	require.NoError(t, err)
	assert.False(t, removed)

	g, _ = s.List(ctx, core.GlobalScope)
	assert.Len(t, g, 1)
}

func TestInMemoryStore_ListIsSnapshot(t *testing.T) {
	ctx := context.Background()
	s := NewInMemoryStore()
	require.NoError(t, s.Put(ctx, core.GlobalScope, "k", "v"))

	facts, _ := s.List(ctx, core.GlobalScope)
	facts[0].Value = "changed"

	again, _ := s.List(ctx, core.GlobalScope)
	assert.Equal(t, "v", again[0].Value)
}

func TestInMemoryStore_ConcurrentAccess(t *testing.T) {
	ctx := context.Background()
	s := NewInMemoryStore()
	wg := sync.WaitGroup{}
	for i := 0; i < 25; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			scope := core.ScopedTo(fmt.Sprintf("u%d", i%3))
			if err := s.Put(ctx, scope, fmt.Sprintf("k%d", i%5), "v"); err != nil {
				t.Errorf("put error: %v", err)
			}
			if _, err := s.List(ctx, scope); err != nil {
				t.Errorf("list error: %v", err)
			}
			if _, err := s.Delete(ctx, core.GlobalScope, "missing"); err != nil {
				t.Errorf("delete error: %v", err)
			}
		}(i)
	}
	wg.Wait()

	facts, _ := s.List(ctx, core.ScopedTo("u0"))
	assert.NotEmpty(t, facts)
}

func TestInMemoryStore_Conformance(t *testing.T) {
	storetest.FactStore(t, func(*testing.T) core.FactStore { return NewInMemoryStore() })
}
