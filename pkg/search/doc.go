// Package search fuses vector and keyword retrieval into one
// relevance-ordered result set.
//
// Strategies: vector-only, keyword-only, weighted hybrid, and rank fusion
// (Reciprocal Rank Fusion plus Borda count, each min-max normalized and
// summed by id). Hybrid legs run concurrently; losing one leg degrades the
// search instead of failing it.
//
// Results are cached in an LRU keyed by the normalized query configuration.
// Cache entries expire by TTL or capacity eviction only; writes to records
// do not invalidate them, which is an accepted staleness window.
package search
