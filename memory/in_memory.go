package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/hupe1980/convomesh/core"
)

// InMemoryStore is a naive process-local FactStore. Facts live in two tiers:
//  1. global facts keyed by fact key
//  2. scoped facts keyed by owner then fact key
//
// Concurrency: protected by RWMutex. List returns a sorted snapshot so
// callers can mutate it freely. Suitable for tests and single-process demos;
// swap for a durable store (store/postgres, store/sqlite) in production.
type InMemoryStore struct {
	mu     sync.RWMutex
	global map[string]string            // key -> value
	scoped map[string]map[string]string // owner -> key -> value
}

// NewInMemoryStore creates a new in-memory fact store
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		global: make(map[string]string),
		scoped: make(map[string]map[string]string),
	}
}

// Put upserts key within scope.
func (m *InMemoryStore) Put(_ context.Context, scope core.Scope, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if scope.IsGlobal() {
		m.global[key] = value
		return nil
	}
	if _, exists := m.scoped[scope.Owner]; !exists {
		m.scoped[scope.Owner] = make(map[string]string)
	}
	m.scoped[scope.Owner][key] = value
	return nil
}

// Delete removes key from scope and reports whether it existed.
func (m *InMemoryStore) Delete(_ context.Context, scope core.Scope, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	tier := m.global
	if !scope.IsGlobal() {
		tier = m.scoped[scope.Owner]
	}
	if _, exists := tier[key]; !exists {
		return false, nil
	}
	delete(tier, key)
	return true, nil
}

// List returns the facts of one tier ordered by key.
func (m *InMemoryStore) List(_ context.Context, scope core.Scope) ([]core.Fact, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	tier := m.global
	if !scope.IsGlobal() {
		tier = m.scoped[scope.Owner]
	}
	facts := make([]core.Fact, 0, len(tier))
	for k, v := range tier {
		facts = append(facts, core.Fact{Key: k, Value: v, Scope: scope})
	}
	sort.Slice(facts, func(i, j int) bool { return facts[i].Key < facts[j].Key })
	return facts, nil
}
