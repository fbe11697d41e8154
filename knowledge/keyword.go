package knowledge

import (
	"context"
	"sort"
	"strings"
	"sync"
	"unicode"

	"github.com/google/uuid"
	"github.com/hupe1980/convomesh/core"
)

// KeywordIndex is a core.KnowledgeBase ranking chunks by the share of query
// terms they contain. It needs no embedding provider.
type KeywordIndex struct {
	mu     sync.RWMutex
	chunks []keywordChunk
}

type keywordChunk struct {
	result core.SearchResult
	terms  map[string]struct{}
}

var _ core.KnowledgeBase = (*KeywordIndex)(nil)

// NewKeywordIndex creates an empty keyword index.
func NewKeywordIndex() *KeywordIndex {
	return &KeywordIndex{}
}

// Add indexes chunks of the document source.
func (x *KeywordIndex) Add(source string, chunks ...string) {
	x.mu.Lock()
	defer x.mu.Unlock()
	for _, chunk := range chunks {
		terms := map[string]struct{}{}
		for _, t := range Terms(chunk) {
			terms[t] = struct{}{}
		}
		x.chunks = append(x.chunks, keywordChunk{
			result: core.SearchResult{ID: uuid.NewString(), Source: source, Content: chunk},
			terms:  terms,
		})
	}
}

// Search implements core.KnowledgeBase. Chunks sharing no term with the
// query are never returned.
func (x *KeywordIndex) Search(_ context.Context, query string, limit int) ([]core.SearchResult, error) {
	terms := Terms(query)
	if len(terms) == 0 {
		return nil, nil
	}
	x.mu.RLock()
	defer x.mu.RUnlock()
	var out []core.SearchResult
	for _, c := range x.chunks {
		hits := 0
		for _, t := range terms {
			if _, ok := c.terms[t]; ok {
				hits++
			}
		}
		if hits == 0 {
			continue
		}
		r := c.result
		r.Score = float64(hits) / float64(len(terms))
		out = append(out, r)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Terms lower-cases text and splits it into distinct words of at least three
// letters or digits.
func Terms(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	seen := map[string]struct{}{}
	var out []string
	for _, f := range fields {
		if len([]rune(f)) < 3 {
			continue
		}
		if _, ok := seen[f]; ok {
			continue
		}
		seen[f] = struct{}{}
		out = append(out, f)
	}
	return out
}
