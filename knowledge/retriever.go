package knowledge

import (
	"context"
	"fmt"
	"strings"

	"github.com/hupe1980/convomesh/core"
	"github.com/hupe1980/convomesh/logging"
)

// NoResults is returned by Lookup when nothing relevant was found.
const NoResults = "No se encontró información relevante en la base de conocimiento."

// UnknownDocument names results without a source.
const UnknownDocument = "Documento desconocido"

// RetrieverOptions configures a Retriever.
type RetrieverOptions struct {
	// Count bounds the number of chunks returned. Defaults to DefaultMatchCount.
	Count int
	// Logger defaults to a no-op logger.
	Logger logging.Logger
}

// Retriever turns knowledge base results into context for the model. It
// implements the searcher used by the search_knowledge tool.
type Retriever struct {
	kb     core.KnowledgeBase
	count  int
	logger logging.Logger
}

// NewRetriever creates a retriever over kb.
func NewRetriever(kb core.KnowledgeBase, optFns ...func(o *RetrieverOptions)) *Retriever {
	opts := RetrieverOptions{Count: DefaultMatchCount, Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Count <= 0 {
		opts.Count = DefaultMatchCount
	}
	return &Retriever{kb: kb, count: opts.Count, logger: logging.OrNoOp(opts.Logger)}
}

// Lookup searches the knowledge base and formats the results.
func (r *Retriever) Lookup(ctx context.Context, query string) (string, error) {
	results, err := r.kb.Search(ctx, query, r.count)
	if err != nil {
		r.logger.Error("knowledge.search.failed", "error", err.Error())
		return "", fmt.Errorf("search knowledge: %w", err)
	}
	r.logger.Info("knowledge.search", "results", len(results))
	return Format(results), nil
}

// Format renders results as numbered sources separated by rules.
func Format(results []core.SearchResult) string {
	if len(results) == 0 {
		return NoResults
	}
	parts := make([]string, 0, len(results))
	for i, res := range results {
		source := res.Source
		if source == "" {
			source = UnknownDocument
		}
		parts = append(parts, fmt.Sprintf("[Fuente %d: %s (relevancia: %.2f%%)]\n%s", i+1, source, res.Score*100, res.Content))
	}
	return strings.Join(parts, "\n\n---\n\n")
}
