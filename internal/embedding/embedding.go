// Package embedding fronts a ports.EmbeddingProvider with an LRU cache,
// mirroring a RAG embedder's caching layer: repeated spawn attempts for
// the same need text, or repeated lineage-reuse probes, never pay the
// provider's latency twice for identical input.
package embedding

import (
	"context"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/Pharbi/arachnid/internal/ports"
	"github.com/Pharbi/arachnid/internal/vector"
)

// DefaultCacheSize mirrors a typical embedder cache's default.
const DefaultCacheSize = 10000

// CachedProvider wraps a base EmbeddingProvider with an LRU cache keyed on
// the exact input text. Embeddings are tolerated to be non-deterministic
// but the cache makes repeated identical calls deterministic in
// practice, which is exactly what lineage-reuse checks want.
type CachedProvider struct {
	base  ports.EmbeddingProvider
	cache *lru.Cache[string, vector.Vector]
}

// New wraps base with an LRU cache of the given size (DefaultCacheSize if
// size <= 0).
func New(base ports.EmbeddingProvider, size int) (*CachedProvider, error) {
	if size <= 0 {
		size = DefaultCacheSize
	}
	cache, err := lru.New[string, vector.Vector](size)
	if err != nil {
		return nil, err
	}
	return &CachedProvider{base: base, cache: cache}, nil
}

// Embed returns the cached vector for text if present, otherwise delegates
// to the base provider and caches the result.
func (c *CachedProvider) Embed(ctx context.Context, text string) (vector.Vector, error) {
	if v, ok := c.cache.Get(text); ok {
		return v.Clone(), nil
	}
	v, err := c.base.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	c.cache.Add(text, v.Clone())
	return v, nil
}

// Len reports the number of distinct texts currently cached.
func (c *CachedProvider) Len() int {
	return c.cache.Len()
}
