package embedding

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// failingProvider always errors, exercising the fallback path.
type failingProvider struct {
	dimension int
	calls     int
}

func (p *failingProvider) Name() string   { return "failing" }
func (p *failingProvider) Model() string  { return "none" }
func (p *failingProvider) Dimension() int { return p.dimension }

func (p *failingProvider) Embed(_ context.Context, _ string) ([]float32, error) {
	p.calls++
	return nil, errors.New("provider unavailable")
}

func (p *failingProvider) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	p.calls++
	return nil, errors.New("provider unavailable")
}

func TestCachedProvider_CacheHitSkipsProvider(t *testing.T) {
	inner := NewFakeProvider(16)
	p := NewCachedProvider(inner, 10, zerolog.Nop())

	first, err := p.Embed(context.Background(), "repeat")
	require.NoError(t, err)
	second, err := p.Embed(context.Background(), "repeat")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	stats := p.Stats()
	assert.Equal(t, int64(1), stats.Hits)
	assert.Equal(t, int64(1), stats.Misses)
	assert.Equal(t, 1, stats.Entries)
}

func TestCachedProvider_FallbackOnProviderFailure(t *testing.T) {
	inner := &failingProvider{dimension: 16}
	p := NewCachedProvider(inner, 10, zerolog.Nop())

	vec, err := p.Embed(context.Background(), "still works")
	require.NoError(t, err)
	assert.Len(t, vec, 16)
	assert.InDelta(t, 1.0, vectorNorm(vec), 1e-5)
	assert.Equal(t, int64(1), p.Stats().Fallbacks)

	// fallback result is cached like any other embedding
	again, err := p.Embed(context.Background(), "still works")
	require.NoError(t, err)
	assert.Equal(t, vec, again)
	assert.Equal(t, 1, inner.calls)
}

func TestCachedProvider_FallbackIsDeterministic(t *testing.T) {
	a := NewCachedProvider(&failingProvider{dimension: 8}, 10, zerolog.Nop())
	b := NewCachedProvider(&failingProvider{dimension: 8}, 10, zerolog.Nop())

	va, err := a.Embed(context.Background(), "same input")
	require.NoError(t, err)
	vb, err := b.Embed(context.Background(), "same input")
	require.NoError(t, err)

	assert.Equal(t, va, vb)
}

func TestCachedProvider_EmbedBatchMixesHitsAndMisses(t *testing.T) {
	inner := NewFakeProvider(16)
	p := NewCachedProvider(inner, 10, zerolog.Nop())

	warm, err := p.Embed(context.Background(), "warm")
	require.NoError(t, err)

	vecs, err := p.EmbedBatch(context.Background(), []string{"warm", "cold"})
	require.NoError(t, err)
	require.Len(t, vecs, 2)
	assert.Equal(t, warm, vecs[0])
	assert.Len(t, vecs[1], 16)

	stats := p.Stats()
	assert.Equal(t, int64(1), stats.Hits)
	assert.Equal(t, int64(2), stats.Misses)
}

func TestCachedProvider_CacheKeyVariesByProviderAndModel(t *testing.T) {
	fake := NewCachedProvider(NewFakeProvider(8), 10, zerolog.Nop())
	failing := NewCachedProvider(&failingProvider{dimension: 8}, 10, zerolog.Nop())

	assert.NotEqual(t, fake.CacheKey("text"), failing.CacheKey("text"))
	assert.NotEqual(t, fake.CacheKey("one"), fake.CacheKey("two"))
}

func TestCachedProvider_EvictionAtCapacity(t *testing.T) {
	p := NewCachedProvider(NewFakeProvider(8), 2, zerolog.Nop())

	ctx := context.Background()
	_, err := p.Embed(ctx, "a")
	require.NoError(t, err)
	_, err = p.Embed(ctx, "b")
	require.NoError(t, err)
	_, err = p.Embed(ctx, "c")
	require.NoError(t, err)

	stats := p.Stats()
	assert.Equal(t, int64(1), stats.Evictions)
	assert.Equal(t, 2, stats.Entries)
}
