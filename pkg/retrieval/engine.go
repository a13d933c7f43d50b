package retrieval

import (
	"context"
	"fmt"
	"sync"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/rs/zerolog"

	"github.com/rizal/memdex/internal/config"
	"github.com/rizal/memdex/internal/observability"
	"github.com/rizal/memdex/internal/tracing"
	"github.com/rizal/memdex/pkg/batch"
	"github.com/rizal/memdex/pkg/embedding"
	"github.com/rizal/memdex/pkg/memory"
	"github.com/rizal/memdex/pkg/search"
	"github.com/rizal/memdex/pkg/vector"
)

// Engine is the single entry point into the memory system. It owns every
// subsystem it composes; there are no ambient singletons behind it.
type Engine struct {
	cfg      *config.Config
	logger   zerolog.Logger
	store    *memory.Store
	index    *vector.Index
	provider *embedding.CachedProvider
	indexer  *memory.Indexer
	searcher *search.Engine
	executor *batch.Executor
	cleaner  *memory.Cleaner
	watcher  *memory.SourceWatcher

	startOnce sync.Once
	closeOnce sync.Once
	closeErr  error
}

// New wires the full stack from configuration. The returned engine is ready
// for one-shot operations; call Start to run the background cleaner and
// source watcher.
func New(cfg *config.Config, logger zerolog.Logger) (*Engine, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	observability.EnsureRegistered()

	inner, err := buildProvider(cfg.Embedding)
	if err != nil {
		return nil, fmt.Errorf("embedding provider: %w", err)
	}
	provider := embedding.NewCachedProvider(inner, cfg.Embedding.CacheCapacity, logger)

	dimension := cfg.Embedding.Dimension
	if cfg.Embedding.Disabled {
		dimension = 0
	}

	store, err := memory.OpenStore(cfg.DBPath, dimension, logger)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	index := vector.NewIndex(logger)

	indexer, err := memory.NewIndexer(store, index, provider, memory.IndexerConfig{
		ChunkSize:      cfg.Indexer.ChunkSize,
		ChunkOverlap:   cfg.Indexer.ChunkOverlap,
		DisableVectors: cfg.Embedding.Disabled,
	}, logger)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("indexer: %w", err)
	}

	searcher, err := search.NewEngine(index, store, provider, search.Config{
		VectorWeight:   cfg.Search.VectorWeight,
		KeywordWeight:  cfg.Search.KeywordWeight,
		DefaultLimit:   cfg.Search.DefaultLimit,
		MinScore:       cfg.Search.MinScore,
		CacheCapacity:  cfg.Search.CacheCapacity,
		CacheTTL:       time.Duration(cfg.Search.CacheTTLSecs) * time.Second,
		SnippetWindow:  cfg.Search.SnippetWindow,
		ExpandSynonyms: cfg.Search.ExpandSynonyms,
		Rerank: search.RerankConfig{
			DecayEnabled: cfg.Search.DecayEnabled,
			DecayLambda:  cfg.Search.DecayLambda,
			RecencyBoost: cfg.Search.RecencyBoost,
			RecencyDays:  cfg.Search.RecencyDays,
			AccessBoost:  cfg.Search.AccessBoost,
		},
	}, logger)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("search engine: %w", err)
	}

	cleaner, err := memory.NewCleaner(store, index, memory.CleanerConfig{
		Schedule:           cfg.Indexer.CleanupSchedule,
		MaxAgeDays:         cfg.Indexer.MaxAgeDays,
		MinImportanceScore: cfg.Indexer.MinImportanceScore,
	}, logger)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("cleaner: %w", err)
	}

	return &Engine{
		cfg:      cfg,
		logger:   logger,
		store:    store,
		index:    index,
		provider: provider,
		indexer:  indexer,
		searcher: searcher,
		executor: batch.NewExecutor(cfg.Batch.MaxConcurrentBatches, logger),
		cleaner:  cleaner,
	}, nil
}

func buildProvider(cfg config.EmbeddingConfig) (embedding.Provider, error) {
	switch cfg.Provider {
	case "openai":
		return embedding.NewOpenAIProvider(cfg.APIKey, cfg.Model), nil
	case "local":
		return embedding.NewLocalProvider(cfg.Endpoint, cfg.Model, cfg.Dimension), nil
	case "fake", "":
		return embedding.NewFakeProvider(cfg.Dimension), nil
	default:
		return nil, fmt.Errorf("unknown embedding provider: %s", cfg.Provider)
	}
}

// Warm rebuilds the in-memory vector index from the store without starting
// any background work. One-shot callers use this instead of Start.
func (e *Engine) Warm(ctx context.Context) error {
	n, err := e.indexer.RebuildVectorIndex(ctx)
	if err != nil {
		return fmt.Errorf("rebuild vector index: %w", err)
	}
	e.logger.Debug().Int("vectors", n).Msg("Vector index rebuilt from store")
	return nil
}

// Start rebuilds the vector index from the store, then launches the cleanup
// scheduler and, when a sources path is configured, the document watcher.
func (e *Engine) Start(ctx context.Context) error {
	var startErr error
	e.startOnce.Do(func() {
		if err := e.Warm(ctx); err != nil {
			startErr = err
			return
		}

		if err := e.cleaner.Start(); err != nil {
			startErr = fmt.Errorf("start cleaner: %w", err)
			return
		}

		if e.cfg.SourcesPath != "" {
			if err := e.startWatcher(ctx); err != nil {
				startErr = fmt.Errorf("start source watcher: %w", err)
				return
			}
		}
	})
	return startErr
}

func (e *Engine) startWatcher(ctx context.Context) error {
	dir := e.cfg.SourcesPath
	watcher, err := memory.NewSourceWatcher(e.logger, func() {
		if _, err := e.indexer.SyncSources(context.Background(), dir); err != nil {
			e.logger.Error().Err(err).Str("dir", dir).Msg("Source sync failed")
		}
	})
	if err != nil {
		return err
	}
	if err := watcher.Watch(dir); err != nil {
		watcher.Stop()
		return err
	}
	e.watcher = watcher

	// initial sync so the watcher only has to handle deltas
	if _, err := e.indexer.SyncSources(ctx, dir); err != nil {
		e.logger.Warn().Err(err).Str("dir", dir).Msg("Initial source sync failed")
	}
	return nil
}

// StoreMemory ingests one memory and returns its content-derived id.
// Storing identical content with identical identity fields is idempotent.
func (e *Engine) StoreMemory(ctx context.Context, req memory.IndexRequest) (string, error) {
	ctx = e.opContext(ctx)
	return e.indexer.Index(ctx, req)
}

// GetMemory fetches one record and bumps its access statistics.
func (e *Engine) GetMemory(ctx context.Context, id string) (*memory.Record, error) {
	return e.indexer.Get(e.opContext(ctx), id)
}

// UpdateMemory applies a partial update, re-chunking and re-embedding only
// when the content changed.
func (e *Engine) UpdateMemory(ctx context.Context, id string, req memory.UpdateRequest) (*memory.Record, error) {
	return e.indexer.Update(e.opContext(ctx), id, req)
}

// DeleteMemory removes a record and all derived state.
func (e *Engine) DeleteMemory(ctx context.Context, id string) error {
	return e.indexer.Delete(e.opContext(ctx), id)
}

// ListMemories returns records matching the filter, newest first.
func (e *Engine) ListMemories(ctx context.Context, filter memory.ListFilter) ([]*memory.Record, error) {
	return e.store.List(e.opContext(ctx), filter)
}

// SearchMemories runs a query under the options' strategy.
func (e *Engine) SearchMemories(ctx context.Context, query string, opts search.Options) ([]search.Result, error) {
	ctx = e.opContext(ctx)
	return e.searcher.Search(ctx, query, opts)
}

// BatchStoreMemories ingests many memories through the batch executor. Item
// failures are collected, not fatal; the result reports partial success.
func (e *Engine) BatchStoreMemories(ctx context.Context, reqs []memory.IndexRequest) (*batch.Result, error) {
	ctx = e.opContext(ctx)
	logger := tracing.LoggerFromContext(ctx, e.logger)

	result, _ := batch.Process(ctx, e.executor, reqs, func(ctx context.Context, req memory.IndexRequest) error {
		_, err := e.indexer.Index(ctx, req)
		return err
	}, batch.Config{
		MaxWorkers:    e.cfg.Batch.MaxWorkers,
		ChunkSize:     e.cfg.Batch.ChunkSize,
		Timeout:       time.Duration(e.cfg.Batch.TimeoutSecs) * time.Second,
		RetryAttempts: e.cfg.Batch.RetryAttempts,
		RetryDelay:    time.Duration(e.cfg.Batch.RetryDelayMs) * time.Millisecond,
	})

	logger.Info().
		Str("run_id", result.RunID).
		Int("successful", result.SuccessfulItems).
		Int("failed", result.FailedItems).
		Msg("Batch store finished")
	return result, nil
}

// CleanupReport aggregates per-subsystem cleanup counts.
type CleanupReport struct {
	RecordsDeleted int `json:"records_deleted"`
	ChunksDeleted  int `json:"chunks_deleted"`
	VectorsDeleted int `json:"vectors_deleted"`
	CacheEvictions int `json:"cache_evictions"`
}

// CleanupOldMemories runs one cleanup pass immediately, outside the
// scheduler.
func (e *Engine) CleanupOldMemories(ctx context.Context) (CleanupReport, error) {
	ctx = e.opContext(ctx)
	before := e.provider.Stats().Evictions

	res, err := e.cleaner.RunOnce(ctx)
	if err != nil {
		return CleanupReport{}, err
	}
	return CleanupReport{
		RecordsDeleted: res.RecordsDeleted,
		ChunksDeleted:  res.ChunksDeleted,
		VectorsDeleted: res.VectorsDeleted,
		CacheEvictions: int(e.provider.Stats().Evictions - before),
	}, nil
}

// OptimizeReport maps each subsystem to its optimization outcome.
type OptimizeReport struct {
	Store       string `json:"store"`
	VectorIndex string `json:"vector_index"`
	Duration    time.Duration
}

// OptimizeMemorySystems compacts the structured store and reports per
// subsystem. A subsystem failure is recorded, not fatal.
func (e *Engine) OptimizeMemorySystems(ctx context.Context) (OptimizeReport, error) {
	ctx = e.opContext(ctx)
	start := time.Now()
	report := OptimizeReport{Store: "ok", VectorIndex: "ok"}

	if err := e.store.Optimize(ctx); err != nil {
		report.Store = err.Error()
		e.logger.Error().Err(err).Msg("Store optimization failed")
	}

	// the in-memory index needs no compaction; refresh its gauge instead
	observability.SetVectorEntries(e.index.Len())

	report.Duration = time.Since(start)
	return report, nil
}

// EngineStats is a point-in-time snapshot across every subsystem.
type EngineStats struct {
	Records        int                  `json:"records"`
	Chunks         int                  `json:"chunks"`
	EmbeddingCache embedding.CacheStats `json:"embedding_cache"`
	VectorIndex    vector.Stats         `json:"vector_index"`
	Batch          batch.Stats          `json:"batch"`
	SearchCacheLen int                  `json:"search_cache_len"`
}

// Stats gathers counts and cache statistics from every subsystem.
func (e *Engine) Stats(ctx context.Context) (EngineStats, error) {
	records, chunks, err := e.store.Counts(e.opContext(ctx))
	if err != nil {
		return EngineStats{}, err
	}
	return EngineStats{
		Records:        records,
		Chunks:         chunks,
		EmbeddingCache: e.provider.Stats(),
		VectorIndex:    e.index.Stats(),
		Batch:          e.executor.Stats(),
		SearchCacheLen: e.searcher.CacheLen(),
	}, nil
}

// Close stops background work and releases the store. Safe to call more
// than once.
func (e *Engine) Close() error {
	e.closeOnce.Do(func() {
		if e.watcher != nil {
			if err := e.watcher.Stop(); err != nil {
				e.logger.Warn().Err(err).Msg("Source watcher stop failed")
			}
		}
		e.cleaner.Stop()
		e.closeErr = e.store.Close()
	})
	return e.closeErr
}

// opContext attaches a fresh operation id unless the caller already set one.
func (e *Engine) opContext(ctx context.Context) context.Context {
	if tracing.GetOpID(ctx) != "" {
		return ctx
	}
	opID, err := gonanoid.New()
	if err != nil {
		opID = tracing.NewTraceID()
	}
	if tracing.GetTraceID(ctx) == "" {
		ctx = tracing.NewRequestContext(ctx)
	}
	return tracing.WithOpID(ctx, opID)
}
