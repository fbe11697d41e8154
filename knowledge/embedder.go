package knowledge

import (
	"context"
	"fmt"

	"github.com/openai/openai-go"
	"google.golang.org/genai"
)

// Embedder turns text into a vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// EmbedderFunc adapts a function to the Embedder interface.
type EmbedderFunc func(ctx context.Context, text string) ([]float32, error)

// Embed implements Embedder.
func (f EmbedderFunc) Embed(ctx context.Context, text string) ([]float32, error) {
	return f(ctx, text)
}

// DefaultOpenAIEmbeddingModel is the embedding model used by the knowledge
// base documents.
const DefaultOpenAIEmbeddingModel = openai.EmbeddingModelTextEmbedding3Small

// OpenAIEmbedder embeds text with the OpenAI embeddings API.
type OpenAIEmbedder struct {
	client *openai.Client
	model  openai.EmbeddingModel
}

// NewOpenAIEmbedder creates an embedder. An empty model selects
// DefaultOpenAIEmbeddingModel.
func NewOpenAIEmbedder(client *openai.Client, model string) *OpenAIEmbedder {
	m := openai.EmbeddingModel(model)
	if model == "" {
		m = DefaultOpenAIEmbeddingModel
	}
	return &OpenAIEmbedder{client: client, model: m}
}

// Embed implements Embedder.
func (e *OpenAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	resp, err := e.client.Embeddings.New(ctx, openai.EmbeddingNewParams{
		Model: e.model,
		Input: openai.EmbeddingNewParamsInputUnion{OfString: openai.String(text)},
	})
	if err != nil {
		return nil, fmt.Errorf("openai embed: %w", err)
	}
	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("openai embed: no embeddings returned")
	}
	values := resp.Data[0].Embedding
	out := make([]float32, len(values))
	for i, v := range values {
		out[i] = float32(v)
	}
	return out, nil
}

// DefaultGenAIEmbeddingModel is the Gemini embedding model.
const DefaultGenAIEmbeddingModel = "gemini-embedding-001"

// GenAIEmbedder embeds text with the Gemini embeddings API using the
// retrieval-query task type.
type GenAIEmbedder struct {
	client *genai.Client
	model  string
}

// NewGenAIEmbedder creates an embedder. An empty model selects
// DefaultGenAIEmbeddingModel.
func NewGenAIEmbedder(client *genai.Client, model string) *GenAIEmbedder {
	if model == "" {
		model = DefaultGenAIEmbeddingModel
	}
	return &GenAIEmbedder{client: client, model: model}
}

// Embed implements Embedder.
func (e *GenAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	result, err := e.client.Models.EmbedContent(ctx,
		e.model,
		[]*genai.Content{genai.NewContentFromText(text, genai.RoleUser)},
		&genai.EmbedContentConfig{TaskType: "RETRIEVAL_QUERY"},
	)
	if err != nil {
		return nil, fmt.Errorf("genai embed: %w", err)
	}
	if len(result.Embeddings) == 0 {
		return nil, fmt.Errorf("genai embed: no embeddings returned")
	}
	return result.Embeddings[0].Values, nil
}
