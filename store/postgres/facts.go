package postgres

import (
	"context"
	"fmt"

	"github.com/hupe1980/convomesh/core"
	"github.com/jackc/pgx/v5"
)

// FactStore is a core.FactStore on the shared_memory and user_memory
// tables.
type FactStore struct {
	db DB
}

var _ core.FactStore = (*FactStore)(nil)

// NewFactStore creates a fact store on db.
func NewFactStore(db DB) *FactStore {
	return &FactStore{db: db}
}

// Put implements core.FactStore.
func (s *FactStore) Put(ctx context.Context, scope core.Scope, key, value string) error {
	var err error
	if scope.IsGlobal() {
		_, err = s.db.Exec(ctx, `
			INSERT INTO shared_memory (key, value) VALUES ($1, $2)
			ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = now()`,
			key, value)
	} else {
		_, err = s.db.Exec(ctx, `
			INSERT INTO user_memory (user_id, key, value) VALUES ($1, $2, $3)
			ON CONFLICT (user_id, key) DO UPDATE SET value = EXCLUDED.value, updated_at = now()`,
			scope.Owner, key, value)
	}
	if err != nil {
		return fmt.Errorf("put fact: %w", err)
	}
	return nil
}

// Delete implements core.FactStore.
func (s *FactStore) Delete(ctx context.Context, scope core.Scope, key string) (bool, error) {
	var (
		sql  = `DELETE FROM shared_memory WHERE key = $1`
		args = []any{key}
	)
	if !scope.IsGlobal() {
		sql = `DELETE FROM user_memory WHERE user_id = $1 AND key = $2`
		args = []any{scope.Owner, key}
	}
	tag, err := s.db.Exec(ctx, sql, args...)
	if err != nil {
		return false, fmt.Errorf("delete fact: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// List implements core.FactStore.
func (s *FactStore) List(ctx context.Context, scope core.Scope) ([]core.Fact, error) {
	var (
		rows pgx.Rows
		err  error
	)
	if scope.IsGlobal() {
		rows, err = s.db.Query(ctx, `SELECT key, value FROM shared_memory ORDER BY key`)
	} else {
		rows, err = s.db.Query(ctx, `SELECT key, value FROM user_memory WHERE user_id = $1 ORDER BY key`, scope.Owner)
	}
	if err != nil {
		return nil, fmt.Errorf("list facts: %w", err)
	}
	facts, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (core.Fact, error) {
		f := core.Fact{Scope: scope}
		err := row.Scan(&f.Key, &f.Value)
		return f, err
	})
	if err != nil {
		return nil, fmt.Errorf("list facts: %w", err)
	}
	return facts, nil
}
