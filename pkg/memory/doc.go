// Package memory is the ingestion pipeline and structured store for the
// retrieval engine: chunking, importance scoring, write-through to the
// sqlite/FTS5/vec0 stores, and lifecycle cleanup.
//
// Invariants:
// - Record ids are content-hash derived and stable; re-indexing identical
//   input is idempotent unless forced.
// - Importance is recomputed on every write and clamped to [0, 1].
// - Cleanup deletes only records that are both past max age AND below the
//   importance threshold.
// - Chunks belong to exactly one record and are deleted with it.
package memory
