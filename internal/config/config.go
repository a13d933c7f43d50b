package config

// Config represents the main memdex configuration
type Config struct {
	// Embedding provider
	Embedding EmbeddingConfig `json:"embedding" mapstructure:"embedding"`

	// Indexer
	Indexer IndexerConfig `json:"indexer" mapstructure:"indexer"`

	// Search
	Search SearchConfig `json:"search" mapstructure:"search"`

	// Batch execution
	Batch BatchConfig `json:"batch" mapstructure:"batch"`

	// Logging
	Logging LoggingConfig `json:"logging" mapstructure:"logging"`

	// Data directory
	DataDir string `json:"data_dir" mapstructure:"data_dir"`

	// Database file path (derived from DataDir when empty)
	DBPath string `json:"db_path" mapstructure:"db_path"`

	// Optional directory of source documents to watch and auto-index
	SourcesPath string `json:"sources_path" mapstructure:"sources_path"`
}

// EmbeddingConfig holds embedding provider and cache configuration
type EmbeddingConfig struct {
	Provider      string `json:"provider" mapstructure:"provider"` // openai, local, fake
	Model         string `json:"model" mapstructure:"model"`
	APIKey        string `json:"api_key" mapstructure:"api_key"`
	Endpoint      string `json:"endpoint" mapstructure:"endpoint"` // local provider base URL
	Dimension     int    `json:"dimension" mapstructure:"dimension"`
	CacheCapacity int    `json:"cache_capacity" mapstructure:"cache_capacity"`
	Disabled      bool   `json:"disabled" mapstructure:"disabled"` // skip vector indexing entirely
}

// IndexerConfig holds ingestion and lifecycle configuration
type IndexerConfig struct {
	ChunkSize          int     `json:"chunk_size" mapstructure:"chunk_size"`
	ChunkOverlap       int     `json:"chunk_overlap" mapstructure:"chunk_overlap"`
	MaxAgeDays         int     `json:"max_age_days" mapstructure:"max_age_days"`
	MinImportanceScore float64 `json:"min_importance_score" mapstructure:"min_importance_score"`
	CleanupSchedule    string  `json:"cleanup_schedule" mapstructure:"cleanup_schedule"` // cron expression
}

// SearchConfig holds hybrid search configuration
type SearchConfig struct {
	VectorWeight   float64 `json:"vector_weight" mapstructure:"vector_weight"`
	KeywordWeight  float64 `json:"keyword_weight" mapstructure:"keyword_weight"`
	DefaultLimit   int     `json:"default_limit" mapstructure:"default_limit"`
	MinScore       float64 `json:"min_score" mapstructure:"min_score"`
	CacheCapacity  int     `json:"cache_capacity" mapstructure:"cache_capacity"`
	CacheTTLSecs   int     `json:"cache_ttl_secs" mapstructure:"cache_ttl_secs"`
	DecayLambda    float64 `json:"decay_lambda" mapstructure:"decay_lambda"`
	DecayEnabled   bool    `json:"decay_enabled" mapstructure:"decay_enabled"`
	RecencyBoost   float64 `json:"recency_boost" mapstructure:"recency_boost"`
	RecencyDays    int     `json:"recency_days" mapstructure:"recency_days"`
	AccessBoost    float64 `json:"access_boost" mapstructure:"access_boost"`
	SnippetWindow  int     `json:"snippet_window" mapstructure:"snippet_window"`
	ExpandSynonyms bool    `json:"expand_synonyms" mapstructure:"expand_synonyms"`
}

// BatchConfig holds batch executor defaults
type BatchConfig struct {
	MaxWorkers           int `json:"max_workers" mapstructure:"max_workers"`
	ChunkSize            int `json:"chunk_size" mapstructure:"chunk_size"`
	TimeoutSecs          int `json:"timeout_secs" mapstructure:"timeout_secs"`
	RetryAttempts        int `json:"retry_attempts" mapstructure:"retry_attempts"`
	RetryDelayMs         int `json:"retry_delay_ms" mapstructure:"retry_delay_ms"`
	MaxConcurrentBatches int `json:"max_concurrent_batches" mapstructure:"max_concurrent_batches"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level   string `json:"level" mapstructure:"level"`
	File    string `json:"file" mapstructure:"file"`
	Console bool   `json:"console" mapstructure:"console"`
	Pretty  bool   `json:"pretty" mapstructure:"pretty"`
	MaxSize int    `json:"max_size" mapstructure:"max_size"`
}

// DefaultConfig returns a config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Embedding: EmbeddingConfig{
			Provider:      "fake",
			Model:         "text-embedding-3-small",
			Dimension:     384,
			CacheCapacity: 1000,
		},
		Indexer: IndexerConfig{
			ChunkSize:          1000,
			ChunkOverlap:       50,
			MaxAgeDays:         90,
			MinImportanceScore: 0.3,
			CleanupSchedule:    "0 3 * * *",
		},
		Search: SearchConfig{
			VectorWeight:   0.7,
			KeywordWeight:  0.3,
			DefaultLimit:   20,
			CacheCapacity:  100,
			CacheTTLSecs:   60,
			DecayLambda:    0.01,
			RecencyBoost:   1.15,
			RecencyDays:    30,
			AccessBoost:    0.05,
			SnippetWindow:  200,
			ExpandSynonyms: true,
		},
		Batch: BatchConfig{
			MaxWorkers:           4,
			ChunkSize:            50,
			TimeoutSecs:          30,
			RetryAttempts:        2,
			RetryDelayMs:         100,
			MaxConcurrentBatches: 2,
		},
		Logging: LoggingConfig{
			Level:   "info",
			Console: true,
			Pretty:  false,
		},
	}
}
