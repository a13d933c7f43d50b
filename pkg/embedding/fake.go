package embedding

import (
	"context"
	"hash/fnv"
	"math"
	"sync"
)

// FakeProvider generates deterministic embeddings from a text hash.
// It backs the provider fallback path and tests; identical text always
// maps to the identical unit vector.
type FakeProvider struct {
	dimension int

	mu    sync.RWMutex
	fixed map[string][]float32
}

// NewFakeProvider creates a deterministic fake provider
func NewFakeProvider(dimension int) *FakeProvider {
	if dimension <= 0 {
		dimension = 384
	}
	return &FakeProvider{
		dimension: dimension,
		fixed:     make(map[string][]float32),
	}
}

func (p *FakeProvider) Name() string { return "fake" }

func (p *FakeProvider) Model() string { return "deterministic" }

func (p *FakeProvider) Dimension() int { return p.dimension }

// SetVector pins an exact embedding for a text, letting tests construct
// controlled similarity relationships between inputs.
func (p *FakeProvider) SetVector(text string, vec []float32) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.fixed[text] = Normalize(vec)
}

func (p *FakeProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	p.mu.RLock()
	pinned, ok := p.fixed[text]
	p.mu.RUnlock()
	if ok {
		out := make([]float32, len(pinned))
		copy(out, pinned)
		return out, nil
	}

	h := fnv.New64a()
	h.Write([]byte(text))
	seed := h.Sum64()

	embedding := make([]float32, p.dimension)
	for i := 0; i < p.dimension; i++ {
		// LCG keeps generation deterministic per text
		seed = seed*6364136223846793005 + 1442695040888963407
		embedding[i] = float32(int64(seed)) / float32(math.MaxInt64)
	}

	return Normalize(embedding), nil
}

func (p *FakeProvider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	embeddings := make([][]float32, len(texts))
	for i, text := range texts {
		embedding, err := p.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		embeddings[i] = embedding
	}
	return embeddings, nil
}

// Normalize scales a vector to unit length. Zero vectors are returned unchanged.
func Normalize(vec []float32) []float32 {
	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm == 0 {
		return vec
	}

	scale := float32(1 / math.Sqrt(norm))
	normalized := make([]float32, len(vec))
	for i, v := range vec {
		normalized[i] = v * scale
	}
	return normalized
}
