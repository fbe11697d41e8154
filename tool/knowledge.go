package tool

import (
	"context"

	"github.com/hupe1980/convomesh/core"
)

// SearchKnowledgeName names the knowledge base lookup tool.
const SearchKnowledgeName = "search_knowledge"

// KnowledgeSearcher returns the knowledge base context for a query, already
// formatted for the model.
type KnowledgeSearcher interface {
	Lookup(ctx context.Context, query string) (string, error)
}

type searchKnowledgeArgs struct {
	Query string `json:"query" description:"Pregunta o tema a buscar en la base de conocimiento"`
}

// NewSearchKnowledgeTool returns the search_knowledge tool.
func NewSearchKnowledgeTool(searcher KnowledgeSearcher) Tool {
	return NewFunctionToolFromStruct(
		SearchKnowledgeName,
		"Busca información en la base de conocimiento (documentos, contratos, servicios). "+
			"Úsala antes de decir que no tienes información.",
		searchKnowledgeArgs{},
		func(tc *core.ToolContext, args map[string]any) (Result, error) {
			query := stringArg(args, "query")
			if query == "" {
				return Fail("Error: No se especificó qué buscar."), nil
			}
			tc.Logger().Info("tool.search_knowledge", "query", query)
			text, err := searcher.Lookup(tc.Context(), query)
			if err != nil {
				return Result{}, err
			}
			return OK("Información encontrada.").WithData("informacion", text), nil
		},
	)
}
