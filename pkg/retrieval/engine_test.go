package retrieval

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rizal/memdex/internal/config"
	"github.com/rizal/memdex/pkg/memory"
	"github.com/rizal/memdex/pkg/search"
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()

	cfg := config.DefaultConfig()
	cfg.DataDir = t.TempDir()
	cfg.DBPath = filepath.Join(cfg.DataDir, "memdex.db")
	cfg.Embedding.Provider = "fake"
	cfg.Embedding.Dimension = 8
	cfg.Batch.RetryAttempts = 0

	e, err := New(cfg, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { e.Close() })
	return e
}

func TestEngine_StoreAndGetRoundTrip(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	id, err := e.StoreMemory(ctx, memory.IndexRequest{
		Content: "standup is at ten every morning",
		Source:  memory.SourceConversation,
		Type:    memory.TypeEvent,
	})
	require.NoError(t, err)
	require.NotEmpty(t, id)

	rec, err := e.GetMemory(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "standup is at ten every morning", rec.Content)
	assert.True(t, rec.HasEmbedding)
}

func TestEngine_StoreIsIdempotent(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	req := memory.IndexRequest{Content: "only stored once"}
	id1, err := e.StoreMemory(ctx, req)
	require.NoError(t, err)
	id2, err := e.StoreMemory(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, id1, id2)

	stats, err := e.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Records)
}

func TestEngine_SearchFindsStoredMemory(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	_, err := e.StoreMemory(ctx, memory.IndexRequest{Content: "notes about python programming patterns"})
	require.NoError(t, err)
	_, err = e.StoreMemory(ctx, memory.IndexRequest{Content: "watering schedule for the garden"})
	require.NoError(t, err)

	results, err := e.SearchMemories(ctx, "python programming", search.Options{Strategy: search.StrategyHybrid})
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.Contains(t, results[0].Content, "python")
}

func TestEngine_UpdateAndDelete(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	id, err := e.StoreMemory(ctx, memory.IndexRequest{Content: "draft note"})
	require.NoError(t, err)

	content := "final note"
	rec, err := e.UpdateMemory(ctx, id, memory.UpdateRequest{Content: &content})
	require.NoError(t, err)
	assert.Equal(t, "final note", rec.Content)

	require.NoError(t, e.DeleteMemory(ctx, id))
	_, err = e.GetMemory(ctx, id)
	assert.ErrorIs(t, err, memory.ErrNotFound)
}

func TestEngine_BatchStorePartialSuccess(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	reqs := make([]memory.IndexRequest, 10)
	for i := range reqs {
		reqs[i] = memory.IndexRequest{Content: "batch memory " + string(rune('a'+i))}
	}
	reqs[7].Content = "   " // rejected by the indexer

	result, err := e.BatchStoreMemories(ctx, reqs)
	require.NoError(t, err)
	assert.Equal(t, 9, result.SuccessfulItems)
	assert.Equal(t, 1, result.FailedItems)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, 7, result.Errors[0].Index)

	stats, err := e.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 9, stats.Records)
}

func TestEngine_CleanupReportsSubsystems(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	_, err := e.StoreMemory(ctx, memory.IndexRequest{Content: "recent memory stays"})
	require.NoError(t, err)

	report, err := e.CleanupOldMemories(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, report.RecordsDeleted)

	rec, err := e.ListMemories(ctx, memory.ListFilter{})
	require.NoError(t, err)
	assert.Len(t, rec, 1)
}

func TestEngine_OptimizeSucceeds(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	_, err := e.StoreMemory(ctx, memory.IndexRequest{Content: "optimize survives this"})
	require.NoError(t, err)

	report, err := e.OptimizeMemorySystems(ctx)
	require.NoError(t, err)
	assert.Equal(t, "ok", report.Store)

	_, err = e.SearchMemories(ctx, "optimize", search.Options{Strategy: search.StrategyKeyword})
	assert.NoError(t, err)
}

func TestEngine_WarmRebuildsVectorIndex(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.DataDir = t.TempDir()
	cfg.DBPath = filepath.Join(cfg.DataDir, "memdex.db")
	cfg.Embedding.Provider = "fake"
	cfg.Embedding.Dimension = 8

	first, err := New(cfg, zerolog.Nop())
	require.NoError(t, err)
	_, err = first.StoreMemory(context.Background(), memory.IndexRequest{Content: "survives restart"})
	require.NoError(t, err)
	require.NoError(t, first.Close())

	second, err := New(cfg, zerolog.Nop())
	require.NoError(t, err)
	defer second.Close()
	require.NoError(t, second.Warm(context.Background()))

	stats, err := second.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.VectorIndex.Entries)
}

func TestEngine_StatsSnapshot(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	_, err := e.StoreMemory(ctx, memory.IndexRequest{Content: "counted memory"})
	require.NoError(t, err)

	stats, err := e.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Records)
	assert.Equal(t, 1, stats.VectorIndex.Entries)
	assert.Equal(t, 1000, stats.EmbeddingCache.Capacity)
}

func TestBuildProvider_UnknownProvider(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.DataDir = t.TempDir()
	cfg.DBPath = filepath.Join(cfg.DataDir, "memdex.db")
	cfg.Embedding.Provider = "psychic"

	_, err := New(cfg, zerolog.Nop())
	assert.Error(t, err)
}
