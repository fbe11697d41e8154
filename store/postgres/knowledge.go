package postgres

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/hupe1980/convomesh/core"
	"github.com/jackc/pgx/v5"
)

// KnowledgeIndex matches query embeddings against the documents table
// through the match_documents function.
type KnowledgeIndex struct {
	db DB
}

// NewKnowledgeIndex creates a knowledge index on db.
func NewKnowledgeIndex(db DB) *KnowledgeIndex {
	return &KnowledgeIndex{db: db}
}

// Match returns the chunks whose similarity exceeds threshold, best first.
func (x *KnowledgeIndex) Match(ctx context.Context, embedding []float32, threshold float64, count int) ([]core.SearchResult, error) {
	rows, err := x.db.Query(ctx,
		`SELECT id, document_name, chunk_text, similarity FROM match_documents($1::vector, $2, $3)`,
		VectorLiteral(embedding), threshold, count)
	if err != nil {
		return nil, fmt.Errorf("match documents: %w", err)
	}
	results, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (core.SearchResult, error) {
		var (
			r  core.SearchResult
			id int64
		)
		err := row.Scan(&id, &r.Source, &r.Content, &r.Score)
		r.ID = strconv.FormatInt(id, 10)
		return r, err
	})
	if err != nil {
		return nil, fmt.Errorf("match documents: %w", err)
	}
	return results, nil
}

// AddDocument stores one embedded chunk.
func (x *KnowledgeIndex) AddDocument(ctx context.Context, name, chunk string, embedding []float32) error {
	_, err := x.db.Exec(ctx,
		`INSERT INTO documents (document_name, chunk_text, embedding) VALUES ($1, $2, $3::vector)`,
		name, chunk, VectorLiteral(embedding))
	if err != nil {
		return fmt.Errorf("add document: %w", err)
	}
	return nil
}

// VectorLiteral renders v in pgvector text form.
func VectorLiteral(v []float32) string {
	var b strings.Builder
	b.WriteByte('[')
	for i, f := range v {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.FormatFloat(float64(f), 'f', -1, 32))
	}
	b.WriteByte(']')
	return b.String()
}
