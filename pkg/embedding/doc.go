// Package embedding turns text into fixed-length vectors.
//
// Invariants:
// - Vectors returned to callers are L2-normalized, so cosine similarity
//   reduces to a dot product downstream.
// - Provider failures never propagate through CachedProvider: a deterministic
//   fallback vector is substituted and counted.
// - The cache is content-addressed by (provider, model, text) and bounded by
//   entry count with strict LRU eviction.
//
// Usage:
//
//	provider := embedding.NewCachedProvider(embedding.NewFakeProvider(384), 1000, logger)
//	vec, _ := provider.Embed(ctx, "some text")
//	_ = vec
package embedding
