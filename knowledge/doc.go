// Package knowledge backs the search_knowledge tool.
//
// A query flows through three layers:
//
//   - an Embedder turns the query into a vector (OpenAIEmbedder,
//     GenAIEmbedder), usually wrapped in a CachedEmbedder
//   - a core.KnowledgeBase ranks chunks: VectorSearch matches the vector
//     against a VectorIndex (InMemoryIndex, or postgres match_documents),
//     KeywordIndex ranks by term overlap without embeddings
//   - Retriever formats the ranked chunks as context for the model
package knowledge
