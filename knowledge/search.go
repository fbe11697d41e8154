package knowledge

import (
	"context"
	"fmt"

	"github.com/hupe1980/convomesh/core"
)

// Matching defaults for knowledge base lookups.
const (
	DefaultMatchThreshold = 0.3
	DefaultMatchCount     = 6
)

// VectorIndex returns the chunks whose similarity to embedding reaches
// threshold, best first, at most count of them.
type VectorIndex interface {
	Match(ctx context.Context, embedding []float32, threshold float64, count int) ([]core.SearchResult, error)
}

// VectorSearchOptions configures a VectorSearch.
type VectorSearchOptions struct {
	// Threshold is the minimal similarity. Defaults to DefaultMatchThreshold.
	Threshold float64
}

// VectorSearch is a core.KnowledgeBase answering queries by embedding them
// and matching the vector against an index.
type VectorSearch struct {
	embedder  Embedder
	index     VectorIndex
	threshold float64
}

var _ core.KnowledgeBase = (*VectorSearch)(nil)

// NewVectorSearch creates a vector search over index.
func NewVectorSearch(embedder Embedder, index VectorIndex, optFns ...func(o *VectorSearchOptions)) *VectorSearch {
	opts := VectorSearchOptions{Threshold: DefaultMatchThreshold}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &VectorSearch{embedder: embedder, index: index, threshold: opts.Threshold}
}

// Search implements core.KnowledgeBase.
func (s *VectorSearch) Search(ctx context.Context, query string, limit int) ([]core.SearchResult, error) {
	if limit <= 0 {
		limit = DefaultMatchCount
	}
	vec, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	results, err := s.index.Match(ctx, vec, s.threshold, limit)
	if err != nil {
		return nil, fmt.Errorf("match documents: %w", err)
	}
	return results, nil
}
