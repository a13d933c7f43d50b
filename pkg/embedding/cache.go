package embedding

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/rizal/memdex/internal/observability"
)

// CacheStats reports cache and fallback counters.
type CacheStats struct {
	Hits      int64 `json:"hits"`
	Misses    int64 `json:"misses"`
	Evictions int64 `json:"evictions"`
	Fallbacks int64 `json:"fallbacks"`
	Entries   int   `json:"entries"`
	Capacity  int   `json:"capacity"`
}

// CachedProvider wraps a Provider with a content-addressed LRU cache and a
// deterministic fallback. Provider failures never propagate: the fallback
// vector keeps indexing moving and the degradation is surfaced through the
// embedding_fallback_total counter.
type CachedProvider struct {
	inner    Provider
	fallback *FakeProvider
	cache    *lruCache
	logger   zerolog.Logger

	hits      atomic.Int64
	misses    atomic.Int64
	evictions atomic.Int64
	fallbacks atomic.Int64
}

// NewCachedProvider wraps inner with a cache of the given entry capacity.
func NewCachedProvider(inner Provider, capacity int, logger zerolog.Logger) *CachedProvider {
	observability.EnsureRegistered()

	p := &CachedProvider{
		inner:    inner,
		fallback: NewFakeProvider(inner.Dimension()),
		logger:   logger,
	}
	p.cache = newLRUCache(capacity, func(string) {
		p.evictions.Add(1)
		observability.RecordEmbeddingCacheEviction()
	})
	return p
}

func (p *CachedProvider) Name() string { return p.inner.Name() }

func (p *CachedProvider) Model() string { return p.inner.Model() }

func (p *CachedProvider) Dimension() int { return p.inner.Dimension() }

// CacheKey derives the content-addressed cache key for a text.
func (p *CachedProvider) CacheKey(text string) string {
	sum := sha256.Sum256([]byte(p.inner.Name() + "|" + p.inner.Model() + "|" + text))
	return hex.EncodeToString(sum[:])
}

func (p *CachedProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	key := p.CacheKey(text)

	if vec, ok := p.cache.Get(key); ok {
		p.hits.Add(1)
		observability.RecordEmbeddingCacheHit()
		return vec, nil
	}

	p.misses.Add(1)
	observability.RecordEmbeddingCacheMiss()

	vec, err := p.inner.Embed(ctx, text)
	if err != nil {
		vec = p.fallbackEmbed(ctx, text, err)
	} else {
		vec = Normalize(vec)
	}

	p.cache.Put(key, vec)
	return vec, nil
}

func (p *CachedProvider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	results := make([][]float32, len(texts))

	// Resolve cache hits first so a single remote call covers the rest
	var missTexts []string
	var missIdx []int
	for i, text := range texts {
		if vec, ok := p.cache.Get(p.CacheKey(text)); ok {
			p.hits.Add(1)
			observability.RecordEmbeddingCacheHit()
			results[i] = vec
			continue
		}
		p.misses.Add(1)
		observability.RecordEmbeddingCacheMiss()
		missTexts = append(missTexts, text)
		missIdx = append(missIdx, i)
	}

	if len(missTexts) == 0 {
		return results, nil
	}

	vecs, err := p.inner.EmbedBatch(ctx, missTexts)
	if err != nil || len(vecs) != len(missTexts) {
		if err == nil {
			err = fmt.Errorf("provider returned %d embeddings for %d texts", len(vecs), len(missTexts))
		}
		for j, text := range missTexts {
			vec := p.fallbackEmbed(ctx, text, err)
			results[missIdx[j]] = vec
			p.cache.Put(p.CacheKey(text), vec)
		}
		return results, nil
	}

	for j, vec := range vecs {
		vec = Normalize(vec)
		results[missIdx[j]] = vec
		p.cache.Put(p.CacheKey(missTexts[j]), vec)
	}

	return results, nil
}

func (p *CachedProvider) fallbackEmbed(ctx context.Context, text string, cause error) []float32 {
	p.fallbacks.Add(1)
	observability.IncEmbeddingFallback()
	p.logger.Warn().
		Err(cause).
		Str("provider", p.inner.Name()).
		Msg("Embedding provider failed, using deterministic fallback")

	vec, _ := p.fallback.Embed(ctx, text)
	return vec
}

// Stats returns a snapshot of cache counters.
func (p *CachedProvider) Stats() CacheStats {
	return CacheStats{
		Hits:      p.hits.Load(),
		Misses:    p.misses.Load(),
		Evictions: p.evictions.Load(),
		Fallbacks: p.fallbacks.Load(),
		Entries:   p.cache.Len(),
		Capacity:  p.cache.capacity,
	}
}
