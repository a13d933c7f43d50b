package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, "fake", cfg.Embedding.Provider)
	assert.Equal(t, 384, cfg.Embedding.Dimension)
	assert.Equal(t, 1000, cfg.Indexer.ChunkSize)
	assert.Equal(t, 90, cfg.Indexer.MaxAgeDays)
	assert.Equal(t, 0.3, cfg.Indexer.MinImportanceScore)
	assert.Equal(t, "0 3 * * *", cfg.Indexer.CleanupSchedule)
	assert.Equal(t, 0.7, cfg.Search.VectorWeight)
	assert.Equal(t, 0.3, cfg.Search.KeywordWeight)
	assert.Equal(t, 2, cfg.Batch.MaxConcurrentBatches)
}

func TestLoader_MissingFileUsesDefaults(t *testing.T) {
	loader := NewLoader(filepath.Join(t.TempDir(), "does-not-exist.json"))
	cfg, err := loader.Load()
	require.NoError(t, err)
	assert.Equal(t, "fake", cfg.Embedding.Provider)
	assert.NotEmpty(t, cfg.DataDir)
	assert.NotEmpty(t, cfg.DBPath)
}

func TestLoader_ReadsFileOverDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "memdex.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
		"embedding": {"provider": "local", "endpoint": "http://localhost:11434", "dimension": 768},
		"indexer": {"chunk_size": 500}
	}`), 0o644))

	cfg, err := NewLoader(path).Load()
	require.NoError(t, err)
	assert.Equal(t, "local", cfg.Embedding.Provider)
	assert.Equal(t, 768, cfg.Embedding.Dimension)
	assert.Equal(t, 500, cfg.Indexer.ChunkSize)
	// untouched sections keep their defaults
	assert.Equal(t, 90, cfg.Indexer.MaxAgeDays)
}

func TestLoader_SaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "memdex.json")
	loader := NewLoader(path)

	cfg := DefaultConfig()
	cfg.Embedding.Dimension = 512
	require.NoError(t, loader.Save(cfg))

	loaded, err := loader.Load()
	require.NoError(t, err)
	assert.Equal(t, 512, loaded.Embedding.Dimension)
}

func TestValidator_OpenAIRequiresKey(t *testing.T) {
	v := NewValidator()

	cfg := DefaultConfig()
	cfg.Embedding.Provider = "openai"
	assert.Error(t, v.Validate(cfg))

	cfg.Embedding.APIKey = "not-a-key"
	assert.Error(t, v.Validate(cfg))

	cfg.Embedding.APIKey = "sk-valid"
	assert.NoError(t, v.Validate(cfg))
}

func TestValidator_LocalRequiresEndpoint(t *testing.T) {
	v := NewValidator()

	cfg := DefaultConfig()
	cfg.Embedding.Provider = "local"
	assert.Error(t, v.Validate(cfg))

	cfg.Embedding.Endpoint = "http://localhost:11434"
	assert.NoError(t, v.Validate(cfg))
}

func TestValidator_UnknownProvider(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Embedding.Provider = "psychic"
	assert.Error(t, NewValidator().Validate(cfg))
}

func TestValidator_ChunkOverlapMustBeSmaller(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Indexer.ChunkSize = 100
	cfg.Indexer.ChunkOverlap = 100
	assert.Error(t, NewValidator().Validate(cfg))
}

func TestValidator_BadCronScheduleRejected(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Indexer.CleanupSchedule = "every tuesday"
	assert.Error(t, NewValidator().Validate(cfg))
}

func TestValidator_SearchWeightsRenormalized(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Search.VectorWeight = 3
	cfg.Search.KeywordWeight = 1
	require.NoError(t, NewValidator().Validate(cfg))

	assert.InDelta(t, 0.75, cfg.Search.VectorWeight, 1e-9)
	assert.InDelta(t, 0.25, cfg.Search.KeywordWeight, 1e-9)
}

func TestValidator_NormalizesOutOfRangeValues(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Indexer.MinImportanceScore = 4.2
	cfg.Batch.MaxWorkers = -1
	require.NoError(t, NewValidator().Validate(cfg))

	assert.Equal(t, 0.3, cfg.Indexer.MinImportanceScore)
	assert.Equal(t, 4, cfg.Batch.MaxWorkers)
}
