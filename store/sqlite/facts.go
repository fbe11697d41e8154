package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/hupe1980/convomesh/core"
)

// FactStore is a core.FactStore on the shared_memory and user_memory
// tables.
type FactStore struct {
	db *sql.DB
}

var _ core.FactStore = (*FactStore)(nil)

// NewFactStore creates a fact store on db. The schema must be migrated.
func NewFactStore(db *sql.DB) *FactStore {
	return &FactStore{db: db}
}

// Put implements core.FactStore.
func (s *FactStore) Put(ctx context.Context, scope core.Scope, key, value string) error {
	now := time.Now().UnixNano()
	var err error
	if scope.IsGlobal() {
		_, err = s.db.ExecContext(ctx, `
			INSERT INTO shared_memory (key, value, updated_at) VALUES (?, ?, ?)
			ON CONFLICT (key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
			key, value, now)
	} else {
		_, err = s.db.ExecContext(ctx, `
			INSERT INTO user_memory (user_id, key, value, updated_at) VALUES (?, ?, ?, ?)
			ON CONFLICT (user_id, key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
			scope.Owner, key, value, now)
	}
	if err != nil {
		return fmt.Errorf("put fact: %w", err)
	}
	return nil
}

// Delete implements core.FactStore.
func (s *FactStore) Delete(ctx context.Context, scope core.Scope, key string) (bool, error) {
	var (
		res sql.Result
		err error
	)
	if scope.IsGlobal() {
		res, err = s.db.ExecContext(ctx, `DELETE FROM shared_memory WHERE key = ?`, key)
	} else {
		res, err = s.db.ExecContext(ctx, `DELETE FROM user_memory WHERE user_id = ? AND key = ?`, scope.Owner, key)
	}
	if err != nil {
		return false, fmt.Errorf("delete fact: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete fact: %w", err)
	}
	return n > 0, nil
}

// List implements core.FactStore.
func (s *FactStore) List(ctx context.Context, scope core.Scope) ([]core.Fact, error) {
	var (
		rows *sql.Rows
		err  error
	)
	if scope.IsGlobal() {
		rows, err = s.db.QueryContext(ctx, `SELECT key, value FROM shared_memory ORDER BY key`)
	} else {
		rows, err = s.db.QueryContext(ctx, `SELECT key, value FROM user_memory WHERE user_id = ? ORDER BY key`, scope.Owner)
	}
	if err != nil {
		return nil, fmt.Errorf("list facts: %w", err)
	}
	defer rows.Close()

	var facts []core.Fact
	for rows.Next() {
		f := core.Fact{Scope: scope}
		if err := rows.Scan(&f.Key, &f.Value); err != nil {
			return nil, fmt.Errorf("list facts: %w", err)
		}
		facts = append(facts, f)
	}
	return facts, rows.Err()
}
