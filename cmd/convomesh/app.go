package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	anthropicsdk "github.com/anthropics/anthropic-sdk-go"
	openaisdk "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"google.golang.org/genai"

	"github.com/hupe1980/convomesh/config"
	"github.com/hupe1980/convomesh/conversation"
	"github.com/hupe1980/convomesh/core"
	"github.com/hupe1980/convomesh/knowledge"
	"github.com/hupe1980/convomesh/logging"
	"github.com/hupe1980/convomesh/memory"
	"github.com/hupe1980/convomesh/model"
	"github.com/hupe1980/convomesh/model/anthropic"
	"github.com/hupe1980/convomesh/model/gemini"
	"github.com/hupe1980/convomesh/model/openai"
	"github.com/hupe1980/convomesh/store/postgres"
	"github.com/hupe1980/convomesh/store/sqlite"
	"github.com/hupe1980/convomesh/tool"
)

// stores holds the persistence backends selected by storage.driver.
type stores struct {
	facts         core.FactStore
	conversations core.ConversationStore
	// directory and index are only available on postgres.
	directory core.Directory
	index     *postgres.KnowledgeIndex
	close     func()
}

// Close releases the backend connections.
func (s *stores) Close() {
	if s.close != nil {
		s.close()
	}
}

// openStores connects the configured backend and brings its schema up to
// date.
func openStores(ctx context.Context, c *config.Config) (*stores, error) {
	switch c.Storage.Driver {
	case "", "memory":
		return &stores{
			facts:         memory.NewInMemoryStore(),
			conversations: conversation.NewInMemoryStore(),
		}, nil
	case "sqlite":
		db, err := openSQLite(ctx, c.Storage.Path)
		if err != nil {
			return nil, err
		}
		return &stores{
			facts:         sqlite.NewFactStore(db),
			conversations: sqlite.NewConversationStore(db),
			close:         func() { _ = db.Close() },
		}, nil
	case "postgres":
		pool, err := postgres.Open(ctx, c.Storage.DSN)
		if err != nil {
			return nil, err
		}
		version, err := postgres.Migrate(ctx, pool)
		if err != nil {
			pool.Close()
			return nil, err
		}
		logger.Debug("storage.migrated", "driver", "postgres", "version", version)
		return &stores{
			facts:         postgres.NewFactStore(pool),
			conversations: postgres.NewConversationStore(pool),
			directory:     postgres.NewDirectory(pool),
			index:         postgres.NewKnowledgeIndex(pool),
			close:         pool.Close,
		}, nil
	default:
		return nil, fmt.Errorf("unknown storage driver %q", c.Storage.Driver)
	}
}

// openSQLite opens the database at path, creating its directory.
func openSQLite(ctx context.Context, path string) (*sql.DB, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create sqlite directory: %w", err)
		}
	}
	return sqlite.Open(ctx, path)
}

// migrateStorage applies the schema migrations and reports the resulting
// version.
func migrateStorage(ctx context.Context, c *config.Config) (int64, error) {
	switch c.Storage.Driver {
	case "sqlite":
		db, err := openSQLite(ctx, c.Storage.Path)
		if err != nil {
			return 0, err
		}
		defer db.Close()
		return sqlite.Migrate(ctx, db)
	case "postgres":
		pool, err := postgres.Open(ctx, c.Storage.DSN)
		if err != nil {
			return 0, err
		}
		defer pool.Close()
		return postgres.Migrate(ctx, pool)
	default:
		return 0, fmt.Errorf("storage driver %q has no schema", c.Storage.Driver)
	}
}

// newMemory builds the scoped fact layer over facts.
func newMemory(c *config.Config, facts core.FactStore) (*memory.Service, error) {
	policy, err := memory.ParseDeletePolicy(c.Memory.DeletePolicy)
	if err != nil {
		return nil, err
	}
	return memory.NewService(func(o *memory.Options) {
		o.Store = facts
		o.DeletePolicy = policy
		o.Logger = logger
	}), nil
}

// newModel builds the chat model adapter selected by model.provider.
func newModel(ctx context.Context, c *config.Config) (model.Model, error) {
	m := c.Model
	switch m.Provider {
	case "openai":
		reqOpts := []option.RequestOption{option.WithAPIKey(c.APIKeys.OpenAI)}
		if m.BaseURL != "" {
			reqOpts = append(reqOpts, option.WithBaseURL(m.BaseURL))
		}
		client := openaisdk.NewClient(reqOpts...)
		return openai.NewModelFromClient(&client, func(o *openai.Options) {
			if m.Name != "" {
				o.Model = m.Name
			}
			if m.Temperature > 0 {
				o.Temperature = m.Temperature
			}
			if m.MaxTokens > 0 {
				o.MaxCompletionTokens = int64(m.MaxTokens)
			}
		}), nil
	case "anthropic":
		return anthropic.NewModel(func(o *anthropic.Options) {
			o.APIKey = c.APIKeys.Anthropic
			if m.Name != "" {
				o.Model = anthropicsdk.Model(m.Name)
			}
			if m.Temperature > 0 {
				o.Temperature = m.Temperature
			}
			if m.MaxTokens > 0 {
				o.MaxTokens = int64(m.MaxTokens)
			}
		}), nil
	case "gemini":
		return gemini.NewModel(ctx, func(o *gemini.Options) {
			o.APIKey = c.APIKeys.Gemini
			if m.Name != "" {
				o.Model = m.Name
			}
			if m.Temperature > 0 {
				o.Temperature = float32(m.Temperature)
			}
			if m.MaxTokens > 0 {
				o.MaxOutputTokens = int32(m.MaxTokens)
			}
		})
	case "mock":
		return model.NewMockModel(m.Name, "mock"), nil
	default:
		return nil, fmt.Errorf("unknown model provider %q", m.Provider)
	}
}

// errNoEmbedder is returned by newEmbedder for embeddings provider none.
var errNoEmbedder = errors.New("no embeddings provider configured")

// newEmbedder builds the embedder selected by embeddings.provider.
func newEmbedder(ctx context.Context, c *config.Config) (knowledge.Embedder, error) {
	e := c.Embeddings
	switch e.Provider {
	case "openai":
		client := openaisdk.NewClient(option.WithAPIKey(c.APIKeys.OpenAI))
		return knowledge.NewOpenAIEmbedder(&client, e.Model), nil
	case "gemini":
		client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: c.APIKeys.Gemini})
		if err != nil {
			return nil, fmt.Errorf("create genai client: %w", err)
		}
		return knowledge.NewGenAIEmbedder(client, e.Model), nil
	case "", "none":
		return nil, errNoEmbedder
	default:
		return nil, fmt.Errorf("unknown embeddings provider %q", e.Provider)
	}
}

// newKnowledge builds the searcher behind search_knowledge. Postgres
// matches against its documents table; other drivers index the configured
// documents in memory, by embedding or by keyword when no embeddings
// provider is set. A nil searcher leaves the tool out.
func newKnowledge(ctx context.Context, c *config.Config, st *stores, log logging.Logger) (tool.KnowledgeSearcher, error) {
	k := c.Knowledge
	if !k.Enabled {
		return nil, nil
	}
	embedder, err := newEmbedder(ctx, c)
	noEmbedder := errors.Is(err, errNoEmbedder)
	if err != nil && !noEmbedder {
		return nil, err
	}

	var kb core.KnowledgeBase
	switch {
	case st.index != nil && !noEmbedder:
		kb = knowledge.NewVectorSearch(knowledge.NewCachedEmbedder(embedder, c.Embeddings.CacheSize), st.index, func(o *knowledge.VectorSearchOptions) {
			o.Threshold = k.Threshold
		})
	case len(k.Documents) == 0:
		log.Warn("knowledge.disabled", "reason", "no documents")
		return nil, nil
	case noEmbedder:
		idx := knowledge.NewKeywordIndex()
		err = eachDocument(k.Documents, k.ChunkSize, func(name string, chunks []string) error {
			idx.Add(name, chunks...)
			return nil
		})
		kb = idx
	default:
		idx := knowledge.NewInMemoryIndex()
		err = eachDocument(k.Documents, k.ChunkSize, func(name string, chunks []string) error {
			return idx.Add(ctx, embedder, name, chunks...)
		})
		kb = knowledge.NewVectorSearch(knowledge.NewCachedEmbedder(embedder, c.Embeddings.CacheSize), idx, func(o *knowledge.VectorSearchOptions) {
			o.Threshold = k.Threshold
		})
	}
	if err != nil {
		return nil, err
	}
	log.Info("knowledge.ready", "documents", len(k.Documents))
	return knowledge.NewRetriever(kb, func(o *knowledge.RetrieverOptions) {
		o.Count = k.Count
		o.Logger = log
	}), nil
}

// eachDocument reads and chunks every file, naming it by its base name.
func eachDocument(paths []string, chunkSize int, fn func(name string, chunks []string) error) error {
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			return fmt.Errorf("read document: %w", err)
		}
		if err := fn(filepath.Base(p), knowledge.Chunk(string(data), chunkSize)); err != nil {
			return fmt.Errorf("index %s: %w", p, err)
		}
	}
	return nil
}
