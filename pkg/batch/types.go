package batch

import (
	"context"
	"time"
)

// Status is a batch- or item-level state.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// Item wraps one input with its processing state. Index is the item's
// identity: execution order across workers is unspecified, but results are
// always reported by original index.
type Item[T any] struct {
	Index    int           `json:"index"`
	Input    T             `json:"-"`
	Status   Status        `json:"status"`
	Attempts int           `json:"attempts"`
	Err      error         `json:"-"`
	Duration time.Duration `json:"duration"`
}

// ItemError is one failed item in a result's ordered error list.
type ItemError struct {
	Index int    `json:"index"`
	Error string `json:"error"`
}

// Result aggregates a finished batch. A failed batch still carries every
// partial success; callers must treat it as partially usable, never as
// discard-everything.
type Result struct {
	RunID           string        `json:"run_id"`
	TotalItems      int           `json:"total_items"`
	SuccessfulItems int           `json:"successful_items"`
	FailedItems     int           `json:"failed_items"`
	Duration        time.Duration `json:"duration"`
	Errors          []ItemError   `json:"errors,omitempty"`
	Status          Status        `json:"status"`
}

// Processor handles one item.
type Processor[T any] func(ctx context.Context, input T) error

// Config tunes one batch run.
type Config struct {
	MaxWorkers    int           // bounded worker pool size, default 4
	ChunkSize     int           // items dispatched between cancellation checks, default 50
	Timeout       time.Duration // per-item timeout, 0 disables
	RetryAttempts int           // retries after the first attempt
	RetryDelay    time.Duration // base backoff delay, doubled per attempt
	OnProgress    func(done, total int)
	OnError       func(index int, err error)
}

func (c Config) withDefaults() Config {
	if c.MaxWorkers <= 0 {
		c.MaxWorkers = 4
	}
	if c.ChunkSize <= 0 {
		c.ChunkSize = 50
	}
	if c.RetryAttempts < 0 {
		c.RetryAttempts = 0
	}
	if c.RetryDelay <= 0 {
		c.RetryDelay = 100 * time.Millisecond
	}
	return c
}

// RunInfo is a snapshot of one active run.
type RunInfo struct {
	RunID     string    `json:"run_id"`
	StartedAt time.Time `json:"started_at"`
	Total     int       `json:"total"`
	Done      int       `json:"done"`
}

// Stats is a snapshot of executor counters.
type Stats struct {
	ActiveRuns    int   `json:"active_runs"`
	CompletedRuns int64 `json:"completed_runs"`
	FailedRuns    int64 `json:"failed_runs"`
	CancelledRuns int64 `json:"cancelled_runs"`
	TotalItems    int64 `json:"total_items"`
	FailedItems   int64 `json:"failed_items"`
}
