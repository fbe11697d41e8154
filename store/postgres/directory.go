package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/hupe1980/convomesh/core"
	"github.com/jackc/pgx/v5"
)

// Directory is a core.Directory on the profiles, subcategories and
// profile_subcategories tables.
type Directory struct {
	db DB
}

var _ core.Directory = (*Directory)(nil)

// NewDirectory creates a directory on db.
func NewDirectory(db DB) *Directory {
	return &Directory{db: db}
}

// CountUsers implements core.Directory.
func (d *Directory) CountUsers(ctx context.Context) (int, error) {
	var n int
	if err := d.db.QueryRow(ctx, `SELECT count(*) FROM profiles`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count users: %w", err)
	}
	return n, nil
}

// CountBySubcategory implements core.Directory. The first subcategory whose
// name contains name, case-insensitively, is counted.
func (d *Directory) CountBySubcategory(ctx context.Context, name string) (core.SubcategoryCount, error) {
	res := core.SubcategoryCount{Query: name, Name: name}
	var id int64
	err := d.db.QueryRow(ctx, `
		SELECT id, name FROM subcategories
		WHERE name ILIKE '%' || $1 || '%'
		ORDER BY id LIMIT 1`, name).Scan(&id, &res.Name)
	if errors.Is(err, pgx.ErrNoRows) {
		return res, nil
	}
	if err != nil {
		return res, fmt.Errorf("find subcategory: %w", err)
	}
	res.Found = true
	if err := d.db.QueryRow(ctx,
		`SELECT count(*) FROM profile_subcategories WHERE subcategory_id = $1`, id).Scan(&res.Count); err != nil {
		return res, fmt.Errorf("count subcategory %s: %w", res.Name, err)
	}
	return res, nil
}
