package knowledge

import (
	"context"
	"sync"

	"github.com/golang/groupcache/lru"
)

// DefaultCacheSize is the number of query embeddings kept by a
// CachedEmbedder.
const DefaultCacheSize = 100

// CachedEmbedder memoizes the embeddings of recent texts. Failed embeddings
// are not cached.
type CachedEmbedder struct {
	next Embedder

	mu    sync.Mutex
	cache *lru.Cache
}

// NewCachedEmbedder wraps next with an LRU cache of size entries; size <= 0
// selects DefaultCacheSize.
func NewCachedEmbedder(next Embedder, size int) *CachedEmbedder {
	if size <= 0 {
		size = DefaultCacheSize
	}
	return &CachedEmbedder{next: next, cache: lru.New(size)}
}

// Embed implements Embedder. The returned slice is shared with the cache and
// must not be modified.
func (c *CachedEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	c.mu.Lock()
	if v, ok := c.cache.Get(text); ok {
		c.mu.Unlock()
		return v.([]float32), nil
	}
	c.mu.Unlock()

	vec, err := c.next.Embed(ctx, text)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.cache.Add(text, vec)
	c.mu.Unlock()
	return vec, nil
}

// Len returns the number of cached embeddings.
func (c *CachedEmbedder) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cache.Len()
}
