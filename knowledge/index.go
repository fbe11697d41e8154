package knowledge

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/hupe1980/convomesh/core"
)

type indexedChunk struct {
	result core.SearchResult
	vector []float32
}

// InMemoryIndex is a process-local VectorIndex ranking chunks by cosine
// similarity. Suitable for tests and small document sets.
type InMemoryIndex struct {
	mu     sync.RWMutex
	chunks []indexedChunk
}

var _ VectorIndex = (*InMemoryIndex)(nil)

// NewInMemoryIndex creates an empty index.
func NewInMemoryIndex() *InMemoryIndex {
	return &InMemoryIndex{}
}

// Add indexes chunks of the document source, embedding each one.
func (x *InMemoryIndex) Add(ctx context.Context, embedder Embedder, source string, chunks ...string) error {
	indexed := make([]indexedChunk, 0, len(chunks))
	for _, chunk := range chunks {
		vec, err := embedder.Embed(ctx, chunk)
		if err != nil {
			return fmt.Errorf("embed chunk of %s: %w", source, err)
		}
		indexed = append(indexed, indexedChunk{
			result: core.SearchResult{ID: uuid.NewString(), Source: source, Content: chunk},
			vector: vec,
		})
	}
	x.mu.Lock()
	defer x.mu.Unlock()
	x.chunks = append(x.chunks, indexed...)
	return nil
}

// Len returns the number of indexed chunks.
func (x *InMemoryIndex) Len() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.chunks)
}

// Match implements VectorIndex.
func (x *InMemoryIndex) Match(_ context.Context, embedding []float32, threshold float64, count int) ([]core.SearchResult, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()
	var out []core.SearchResult
	for _, c := range x.chunks {
		score := Cosine(embedding, c.vector)
		if score < threshold {
			continue
		}
		r := c.result
		r.Score = score
		out = append(out, r)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	if count > 0 && len(out) > count {
		out = out[:count]
	}
	return out, nil
}

// Cosine returns the cosine similarity of a and b, 0 when either is zero or
// their lengths differ.
func Cosine(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
