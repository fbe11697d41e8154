package core

import "context"

// SearchResult represents a retrieved knowledge chunk with a relevance score and arbitrary metadata.
type SearchResult struct {
	ID       string
	Source   string
	Content  string
	Score    float64
	Metadata map[string]any
}

// KnowledgeBase answers free text queries with ranked chunks.
type KnowledgeBase interface {
	Search(ctx context.Context, query string, limit int) ([]SearchResult, error)
}
