package config

import (
	"fmt"
	"strings"

	"github.com/robfig/cron/v3"
)

// Validator validates and normalizes configuration values
type Validator struct{}

// NewValidator creates a new validator
func NewValidator() *Validator {
	return &Validator{}
}

// Validate checks the whole configuration and normalizes out-of-range values.
// Hard errors are returned for settings that cannot be defaulted safely.
func (v *Validator) Validate(cfg *Config) error {
	if err := v.validateEmbedding(&cfg.Embedding); err != nil {
		return err
	}
	if err := v.validateIndexer(&cfg.Indexer); err != nil {
		return err
	}
	v.normalizeSearch(&cfg.Search)
	v.normalizeBatch(&cfg.Batch)
	return nil
}

func (v *Validator) validateEmbedding(cfg *EmbeddingConfig) error {
	switch cfg.Provider {
	case "", "fake":
		cfg.Provider = "fake"
	case "openai":
		if cfg.APIKey == "" {
			return fmt.Errorf("openai embedding provider requires an API key")
		}
		if !strings.HasPrefix(cfg.APIKey, "sk-") {
			return fmt.Errorf("invalid OpenAI API key format (should start with sk-)")
		}
	case "local":
		if cfg.Endpoint == "" {
			return fmt.Errorf("local embedding provider requires an endpoint")
		}
	default:
		return fmt.Errorf("unknown embedding provider: %s", cfg.Provider)
	}

	if cfg.Dimension <= 0 {
		cfg.Dimension = 384
	}
	if cfg.CacheCapacity <= 0 {
		cfg.CacheCapacity = 1000
	}
	return nil
}

func (v *Validator) validateIndexer(cfg *IndexerConfig) error {
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = 1000
	}
	if cfg.ChunkOverlap < 0 {
		cfg.ChunkOverlap = 0
	}
	if cfg.ChunkOverlap >= cfg.ChunkSize {
		return fmt.Errorf("chunk overlap (%d) must be smaller than chunk size (%d)", cfg.ChunkOverlap, cfg.ChunkSize)
	}
	if cfg.MaxAgeDays <= 0 {
		cfg.MaxAgeDays = 90
	}
	if cfg.MinImportanceScore < 0 || cfg.MinImportanceScore > 1 {
		cfg.MinImportanceScore = 0.3
	}
	if cfg.CleanupSchedule != "" {
		if _, err := cron.ParseStandard(cfg.CleanupSchedule); err != nil {
			return fmt.Errorf("invalid cleanup schedule %q: %w", cfg.CleanupSchedule, err)
		}
	}
	return nil
}

func (v *Validator) normalizeSearch(cfg *SearchConfig) {
	if cfg.VectorWeight <= 0 && cfg.KeywordWeight <= 0 {
		cfg.VectorWeight = 0.7
		cfg.KeywordWeight = 0.3
	}
	total := cfg.VectorWeight + cfg.KeywordWeight
	if total > 0 {
		cfg.VectorWeight /= total
		cfg.KeywordWeight /= total
	}
	if cfg.DefaultLimit <= 0 {
		cfg.DefaultLimit = 20
	}
	if cfg.CacheCapacity <= 0 {
		cfg.CacheCapacity = 100
	}
	if cfg.CacheTTLSecs <= 0 {
		cfg.CacheTTLSecs = 60
	}
	if cfg.SnippetWindow <= 0 {
		cfg.SnippetWindow = 200
	}
	if cfg.RecencyDays <= 0 {
		cfg.RecencyDays = 30
	}
}

func (v *Validator) normalizeBatch(cfg *BatchConfig) {
	if cfg.MaxWorkers <= 0 {
		cfg.MaxWorkers = 4
	}
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = 50
	}
	if cfg.TimeoutSecs <= 0 {
		cfg.TimeoutSecs = 30
	}
	if cfg.RetryAttempts < 0 {
		cfg.RetryAttempts = 0
	}
	if cfg.RetryDelayMs <= 0 {
		cfg.RetryDelayMs = 100
	}
	if cfg.MaxConcurrentBatches <= 0 {
		cfg.MaxConcurrentBatches = 2
	}
}
