package core

import "context"

// SubcategoryCount is the outcome of counting users for one requested
// subcategory name. Name is the matched subcategory (or the query when not
// found).
type SubcategoryCount struct {
	Query string `json:"query"`
	Name  string `json:"name"`
	Found bool   `json:"found"`
	Count int    `json:"count"`
}

// Directory is the external user directory used by the read-only reporting
// tools.
type Directory interface {
	CountUsers(ctx context.Context) (int, error)
	CountBySubcategory(ctx context.Context, name string) (SubcategoryCount, error)
}
