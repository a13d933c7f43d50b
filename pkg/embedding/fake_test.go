package embedding

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func vectorNorm(vec []float32) float64 {
	var sum float64
	for _, v := range vec {
		sum += float64(v) * float64(v)
	}
	return math.Sqrt(sum)
}

func TestFakeProvider_Deterministic(t *testing.T) {
	p := NewFakeProvider(64)

	a, err := p.Embed(context.Background(), "the same text")
	require.NoError(t, err)
	b, err := p.Embed(context.Background(), "the same text")
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.Len(t, a, 64)
}

func TestFakeProvider_DifferentTextsDiffer(t *testing.T) {
	p := NewFakeProvider(64)

	a, err := p.Embed(context.Background(), "first")
	require.NoError(t, err)
	b, err := p.Embed(context.Background(), "second")
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
}

func TestFakeProvider_VectorsAreNormalized(t *testing.T) {
	p := NewFakeProvider(32)

	vec, err := p.Embed(context.Background(), "normalize me")
	require.NoError(t, err)
	assert.InDelta(t, 1.0, vectorNorm(vec), 1e-5)
}

func TestFakeProvider_SetVectorPinsEmbedding(t *testing.T) {
	p := NewFakeProvider(3)
	p.SetVector("pinned", []float32{2, 0, 0})

	vec, err := p.Embed(context.Background(), "pinned")
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 0, 0}, vec)
}

func TestNormalize_ZeroVectorUnchanged(t *testing.T) {
	zero := []float32{0, 0, 0}
	assert.Equal(t, zero, Normalize(zero))
}
