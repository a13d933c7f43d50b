// Package retrieval exposes the memory system behind a single Engine
// facade: ingestion, hybrid search, batch storage, lifecycle cleanup, and
// statistics, all constructed from one configuration value.
package retrieval
