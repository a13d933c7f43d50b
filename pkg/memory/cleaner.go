package memory

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/rizal/memdex/internal/observability"
	"github.com/rizal/memdex/pkg/vector"
)

// CleanerConfig bounds the retention policy.
type CleanerConfig struct {
	Schedule           string  // standard cron expression
	MaxAgeDays         int     // records older than this are cleanup candidates
	MinImportanceScore float64 // candidates below this are deleted
}

// Cleaner owns the periodic lifecycle cleanup. A record is deleted only when
// it is BOTH older than MaxAgeDays AND below MinImportanceScore; either
// condition alone retains it. The Cleaner has an explicit Start/Stop
// lifecycle rather than a detached goroutine.
type Cleaner struct {
	store  *Store
	index  *vector.Index
	cfg    CleanerConfig
	logger zerolog.Logger

	mu      sync.Mutex
	cron    *cron.Cron
	running bool
}

// NewCleaner creates a cleaner. Start must be called to schedule runs.
func NewCleaner(store *Store, index *vector.Index, cfg CleanerConfig, logger zerolog.Logger) (*Cleaner, error) {
	if store == nil {
		return nil, errors.New("store is required")
	}
	if cfg.MaxAgeDays <= 0 {
		cfg.MaxAgeDays = 90
	}
	if cfg.MinImportanceScore <= 0 || cfg.MinImportanceScore > 1 {
		cfg.MinImportanceScore = 0.3
	}
	if cfg.Schedule == "" {
		cfg.Schedule = "0 3 * * *"
	}
	if _, err := cron.ParseStandard(cfg.Schedule); err != nil {
		return nil, err
	}

	return &Cleaner{
		store:  store,
		index:  index,
		cfg:    cfg,
		logger: logger,
	}, nil
}

// Start schedules periodic cleanup runs. Calling Start twice is a no-op.
func (c *Cleaner) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.running {
		return nil
	}

	c.cron = cron.New()
	_, err := c.cron.AddFunc(c.cfg.Schedule, func() {
		if _, err := c.RunOnce(context.Background()); err != nil {
			c.logger.Error().Err(err).Msg("Scheduled cleanup failed")
		}
	})
	if err != nil {
		return err
	}

	c.cron.Start()
	c.running = true
	c.logger.Info().Str("schedule", c.cfg.Schedule).Msg("Cleanup scheduler started")
	return nil
}

// Stop halts the scheduler and waits for an in-flight run to finish.
func (c *Cleaner) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.running {
		return
	}
	ctx := c.cron.Stop()
	<-ctx.Done()
	c.running = false
	c.logger.Info().Msg("Cleanup scheduler stopped")
}

// RunOnce executes one cleanup pass immediately.
func (c *Cleaner) RunOnce(ctx context.Context) (CleanupResult, error) {
	cutoff := time.Now().AddDate(0, 0, -c.cfg.MaxAgeDays)

	result, err := c.store.DeleteExpired(ctx, cutoff, c.cfg.MinImportanceScore)
	if err != nil {
		return result, err
	}

	if c.index != nil {
		for _, id := range result.DeletedIDs {
			// not every deleted record has an in-memory vector entry
			_ = c.index.Delete(id)
		}
	}

	observability.AddCleanupDeleted("records", result.RecordsDeleted)
	observability.AddCleanupDeleted("chunks", result.ChunksDeleted)
	observability.AddCleanupDeleted("vectors", result.VectorsDeleted)

	if result.RecordsDeleted > 0 {
		c.logger.Info().
			Int("records", result.RecordsDeleted).
			Int("chunks", result.ChunksDeleted).
			Int("vectors", result.VectorsDeleted).
			Msg("Cleanup pass completed")
	}
	return result, nil
}
