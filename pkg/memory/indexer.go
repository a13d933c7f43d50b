package memory

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/rizal/memdex/internal/observability"
	"github.com/rizal/memdex/internal/tracing"
	"github.com/rizal/memdex/pkg/embedding"
	"github.com/rizal/memdex/pkg/vector"
)

const tracerName = "memdex.memory"

// IndexerConfig bounds chunking and toggles vector indexing.
type IndexerConfig struct {
	ChunkSize      int
	ChunkOverlap   int
	DisableVectors bool
}

// Indexer is the ingestion pipeline: id derivation, chunking, importance
// scoring, and write-through to the structured, full-text, and vector stores.
type Indexer struct {
	store    *Store
	index    *vector.Index
	provider embedding.Provider
	cfg      IndexerConfig
	logger   zerolog.Logger
}

// NewIndexer creates an indexer. The provider may be nil only when vector
// indexing is disabled.
func NewIndexer(store *Store, index *vector.Index, provider embedding.Provider, cfg IndexerConfig, logger zerolog.Logger) (*Indexer, error) {
	if store == nil {
		return nil, errors.New("store is required")
	}
	if !cfg.DisableVectors && (index == nil || provider == nil) {
		return nil, errors.New("vector index and provider are required unless vectors are disabled")
	}
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = 1000
	}
	if cfg.ChunkOverlap < 0 {
		cfg.ChunkOverlap = 0
	}
	if cfg.ChunkOverlap >= cfg.ChunkSize {
		return nil, fmt.Errorf("chunk overlap (%d) must be smaller than chunk size (%d)", cfg.ChunkOverlap, cfg.ChunkSize)
	}

	return &Indexer{
		store:    store,
		index:    index,
		provider: provider,
		cfg:      cfg,
		logger:   logger,
	}, nil
}

// RecordID derives the stable, content-addressed id for an ingestion request.
func RecordID(content string, source Source, typ Type, metadata map[string]interface{}) string {
	// json.Marshal sorts map keys, so the metadata encoding is canonical
	meta, _ := json.Marshal(metadata)
	sum := sha256.Sum256([]byte(content + "|" + string(source) + "|" + string(typ) + "|" + string(meta)))
	return hex.EncodeToString(sum[:16])
}

// Index ingests one record and returns its id. Re-indexing identical input
// is idempotent unless ForceReindex is set. Embedding failure is non-fatal:
// the record stays searchable by keyword.
func (ix *Indexer) Index(ctx context.Context, req IndexRequest) (string, error) {
	if strings.TrimSpace(req.Content) == "" {
		return "", errors.New("content must not be empty")
	}
	if req.Source == "" {
		req.Source = SourceManual
	}
	if req.Type == "" {
		req.Type = TypeFact
	}
	if req.Priority < 1 || req.Priority > 5 {
		req.Priority = 3
	}

	ctx, span := tracing.StartSpan(ctx, tracerName, "memory.index",
		attribute.String("source", string(req.Source)),
		attribute.Int("content_len", len(req.Content)),
	)
	defer span.End()

	logger := tracing.LoggerFromContext(ctx, ix.logger)
	start := time.Now()
	defer func() { observability.RecordIndex(time.Since(start)) }()

	id := RecordID(req.Content, req.Source, req.Type, req.Metadata)

	if !req.ForceReindex {
		if _, err := ix.store.GetRecord(ctx, id); err == nil {
			logger.Debug().Str("id", id).Msg("Record already indexed, short-circuiting")
			return id, nil
		} else if !errors.Is(err, ErrNotFound) {
			span.RecordError(err)
			return "", fmt.Errorf("failed to check existing record: %w", err)
		}
	}

	chunks := splitChunks(id, req.Content, ix.cfg.ChunkSize, ix.cfg.ChunkOverlap)

	var emb []float32
	if !ix.cfg.DisableVectors {
		var err error
		emb, err = ix.provider.Embed(ctx, req.Content)
		if err != nil {
			// keyword search still covers the record
			logger.Warn().Err(err).Str("id", id).Msg("Embedding failed, storing record without vector")
			emb = nil
		}
	}

	now := time.Now()
	rec := &Record{
		ID:           id,
		Content:      req.Content,
		Source:       req.Source,
		Type:         req.Type,
		Priority:     req.Priority,
		Tags:         req.Tags,
		Metadata:     req.Metadata,
		Importance:   importanceScore(req.Priority, len(req.Content), req.Tags, req.Metadata),
		State:        StateActive,
		CreatedAt:    now,
		UpdatedAt:    now,
		HasEmbedding: len(emb) > 0,
		UserID:       req.UserID,
	}
	for _, c := range chunks {
		rec.ChunkIDs = append(rec.ChunkIDs, c.ID)
	}

	if err := ix.store.SaveRecord(ctx, rec, chunks, emb); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "store write failed")
		return "", fmt.Errorf("failed to persist record: %w", err)
	}

	if len(emb) > 0 {
		ix.index.Insert(&vector.Entry{
			ID:        id,
			Content:   req.Content,
			Embedding: emb,
			Metadata:  req.Metadata,
			CreatedAt: now,
		})
	}

	ix.publishCounts(ctx)
	logger.Debug().
		Str("id", id).
		Int("chunks", len(chunks)).
		Bool("has_embedding", rec.HasEmbedding).
		Msg("Record indexed")

	return id, nil
}

// Get returns a record and bumps its access stats.
func (ix *Indexer) Get(ctx context.Context, id string) (*Record, error) {
	rec, err := ix.store.GetRecord(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := ix.store.Touch(ctx, id); err != nil {
		ix.logger.Warn().Err(err).Str("id", id).Msg("Failed to update access stats")
	}
	return rec, nil
}

// Update mutates a record's mutable fields, recomputing importance and
// re-deriving chunks and the vector when content changed. Identity is
// preserved across updates.
func (ix *Indexer) Update(ctx context.Context, id string, req UpdateRequest) (*Record, error) {
	ctx, span := tracing.StartSpan(ctx, tracerName, "memory.update", attribute.String("id", id))
	defer span.End()

	rec, err := ix.store.GetRecord(ctx, id)
	if err != nil {
		return nil, err
	}

	rec.State = StateUpdating
	contentChanged := false
	if req.Content != nil && *req.Content != rec.Content {
		rec.Content = *req.Content
		contentChanged = true
	}
	if req.Priority != nil {
		rec.Priority = *req.Priority
	}
	if req.Tags != nil {
		rec.Tags = req.Tags
	}
	if req.Metadata != nil {
		rec.Metadata = req.Metadata
	}

	rec.Importance = importanceScore(rec.Priority, len(rec.Content), rec.Tags, rec.Metadata)
	rec.UpdatedAt = time.Now()
	rec.State = StateActive

	var chunks []Chunk
	var emb []float32
	if contentChanged {
		chunks = splitChunks(rec.ID, rec.Content, ix.cfg.ChunkSize, ix.cfg.ChunkOverlap)
		rec.ChunkIDs = nil
		for _, c := range chunks {
			rec.ChunkIDs = append(rec.ChunkIDs, c.ID)
		}
		if !ix.cfg.DisableVectors {
			emb, err = ix.provider.Embed(ctx, rec.Content)
			if err != nil {
				ix.logger.Warn().Err(err).Str("id", id).Msg("Embedding failed during update")
				emb = nil
			}
		}
		rec.HasEmbedding = len(emb) > 0
	} else {
		chunks, err = ix.store.Chunks(ctx, id)
		if err != nil {
			return nil, err
		}
		if rec.HasEmbedding {
			if entry, ierr := ix.index.Get(id); ierr == nil {
				emb = entry.Embedding
			} else if stored, serr := ix.store.Vector(ctx, id); serr == nil && len(stored) > 0 {
				// index may be cold; the durable row is authoritative
				emb = stored
			}
			if len(emb) == 0 {
				rec.HasEmbedding = false
			}
		}
	}

	if err := ix.store.SaveRecord(ctx, rec, chunks, emb); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to persist update: %w", err)
	}

	if contentChanged && len(emb) > 0 {
		ix.index.Insert(&vector.Entry{
			ID:        id,
			Content:   rec.Content,
			Embedding: emb,
			Metadata:  rec.Metadata,
			CreatedAt: rec.CreatedAt,
		})
	} else if contentChanged && !rec.HasEmbedding {
		_ = ix.index.Delete(id)
	}

	return rec, nil
}

// Delete removes a record, cascading to chunks and the vector entry.
func (ix *Indexer) Delete(ctx context.Context, id string) error {
	if err := ix.store.DeleteRecord(ctx, id); err != nil {
		return err
	}
	if ix.index != nil {
		if err := ix.index.Delete(id); err != nil && !errors.Is(err, vector.ErrNotFound) {
			return err
		}
	}
	ix.publishCounts(ctx)
	return nil
}

// RebuildVectorIndex reloads the in-memory index from the durable vector
// table. The index is a secondary structure; this makes it so.
func (ix *Indexer) RebuildVectorIndex(ctx context.Context) (int, error) {
	if ix.cfg.DisableVectors || ix.index == nil {
		return 0, nil
	}

	stored, err := ix.store.LoadVectors(ctx)
	if err != nil {
		return 0, err
	}

	for _, sv := range stored {
		ix.index.Insert(&vector.Entry{
			ID:          sv.RecordID,
			Content:     sv.Content,
			Embedding:   sv.Embedding,
			Metadata:    sv.Metadata,
			CreatedAt:   sv.CreatedAt,
			AccessCount: sv.AccessCount,
		})
	}

	ix.logger.Info().Int("vectors", len(stored)).Msg("Vector index rebuilt from store")
	return len(stored), nil
}

// SyncSources walks a directory of text documents and indexes each file as a
// document-source record. Unchanged files short-circuit through the stable
// content-derived id.
func (ix *Indexer) SyncSources(ctx context.Context, dir string) (int, error) {
	ctx, span := tracing.StartSpan(ctx, tracerName, "memory.sync_sources", attribute.String("dir", dir))
	defer span.End()

	indexed := 0
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !isSourceFile(d.Name()) {
			return nil
		}

		content, err := os.ReadFile(path)
		if err != nil {
			ix.logger.Warn().Err(err).Str("file", path).Msg("Failed to read source file")
			return nil
		}
		if strings.TrimSpace(string(content)) == "" {
			return nil
		}

		rel, _ := filepath.Rel(dir, path)
		_, err = ix.Index(ctx, IndexRequest{
			Content:  string(content),
			Source:   SourceDocument,
			Type:     TypeKnowledge,
			Priority: 3,
			Metadata: map[string]interface{}{"path": rel},
		})
		if err != nil {
			ix.logger.Warn().Err(err).Str("file", rel).Msg("Failed to index source file")
			return nil
		}
		indexed++
		return nil
	})
	if err != nil {
		span.RecordError(err)
		return indexed, fmt.Errorf("failed to walk sources: %w", err)
	}

	return indexed, nil
}

func (ix *Indexer) publishCounts(ctx context.Context) {
	records, chunks, err := ix.store.Counts(ctx)
	if err == nil {
		observability.SetRecordCounts(records, chunks)
	}
}

func isSourceFile(name string) bool {
	lower := strings.ToLower(name)
	return strings.HasSuffix(lower, ".md") || strings.HasSuffix(lower, ".txt")
}
