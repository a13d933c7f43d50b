// Package vector stores normalized embeddings and answers nearest-neighbor
// queries by cosine similarity.
//
// Invariants:
// - Identical content with an identical vector deduplicates to one id.
// - Similarity is symmetric, bounded in [-1, 1], and 0 for zero vectors.
// - Entries with a mismatched dimension are skipped during search, not errors.
// - The index is rebuildable from the structured store and is never the sole
//   source of truth for a record's existence.
package vector
