package batch

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/rizal/memdex/internal/observability"
)

// Executor runs batches under a system-wide concurrency bound. Each batch
// gets its own fixed worker pool; the executor's semaphore limits how many
// batches run at once.
type Executor struct {
	sem    chan struct{}
	logger zerolog.Logger

	mu     sync.Mutex
	active map[string]*runState

	completedRuns atomic.Int64
	failedRuns    atomic.Int64
	cancelledRuns atomic.Int64
	totalItems    atomic.Int64
	failedItems   atomic.Int64
}

type runState struct {
	startedAt time.Time
	total     int
	done      atomic.Int64
}

// NewExecutor creates an executor allowing maxConcurrentBatches simultaneous
// runs system-wide.
func NewExecutor(maxConcurrentBatches int, logger zerolog.Logger) *Executor {
	if maxConcurrentBatches <= 0 {
		maxConcurrentBatches = 2
	}
	observability.EnsureRegistered()
	return &Executor{
		sem:    make(chan struct{}, maxConcurrentBatches),
		logger: logger,
		active: make(map[string]*runState),
	}
}

// Process executes every item through fn under the batch config. The run
// blocks until all items reach a terminal state or cancellation stops new
// chunk dispatch. A failing item never aborts its siblings.
func Process[T any](ctx context.Context, e *Executor, inputs []T, fn Processor[T], cfg Config) (*Result, []Item[T]) {
	i := -1
	next := func() (T, bool) {
		i++
		if i < len(inputs) {
			return inputs[i], true
		}
		var zero T
		return zero, false
	}
	return ProcessStreaming(ctx, e, next, len(inputs), fn, cfg)
}

// ProcessStreaming pulls items lazily from next, bounding memory to one
// chunk at a time. totalHint sizes progress reporting when the producer's
// length is known; pass 0 when it is not.
func ProcessStreaming[T any](ctx context.Context, e *Executor, next func() (T, bool), totalHint int, fn Processor[T], cfg Config) (*Result, []Item[T]) {
	cfg = cfg.withDefaults()
	runID := uuid.New().String()
	start := time.Now()

	// system-wide batch concurrency bound
	select {
	case e.sem <- struct{}{}:
	case <-ctx.Done():
		e.cancelledRuns.Add(1)
		return &Result{RunID: runID, Status: StatusCancelled}, nil
	}
	defer func() { <-e.sem }()

	state := &runState{startedAt: start, total: totalHint}
	e.mu.Lock()
	e.active[runID] = state
	activeCount := len(e.active)
	e.mu.Unlock()
	observability.SetBatchActiveRuns(activeCount)

	defer func() {
		e.mu.Lock()
		delete(e.active, runID)
		activeCount := len(e.active)
		e.mu.Unlock()
		observability.SetBatchActiveRuns(activeCount)
	}()

	e.logger.Debug().Str("run_id", runID).Int("total_hint", totalHint).Msg("Batch run started")

	var (
		items     []Item[T]
		cancelled bool
	)

	for {
		// cancellation is cooperative: checked between chunks only
		if ctx.Err() != nil {
			cancelled = true
			break
		}

		chunk := make([]Item[T], 0, cfg.ChunkSize)
		for len(chunk) < cfg.ChunkSize {
			input, ok := next()
			if !ok {
				break
			}
			chunk = append(chunk, Item[T]{
				Index:  len(items) + len(chunk),
				Input:  input,
				Status: StatusPending,
			})
		}
		if len(chunk) == 0 {
			break
		}

		runChunk(ctx, e, chunk, fn, cfg, state, totalHint)
		items = append(items, chunk...)

		if len(chunk) < cfg.ChunkSize {
			break
		}
	}

	result := summarize(runID, items, cancelled, time.Since(start))

	e.totalItems.Add(int64(result.TotalItems))
	e.failedItems.Add(int64(result.FailedItems))
	switch result.Status {
	case StatusCompleted:
		e.completedRuns.Add(1)
	case StatusCancelled:
		e.cancelledRuns.Add(1)
	default:
		e.failedRuns.Add(1)
	}
	observability.RecordBatchRun(string(result.Status), result.Duration)

	e.logger.Info().
		Str("run_id", runID).
		Int("total", result.TotalItems).
		Int("successful", result.SuccessfulItems).
		Int("failed", result.FailedItems).
		Str("status", string(result.Status)).
		Dur("duration", result.Duration).
		Msg("Batch run finished")

	return result, items
}

// runChunk dispatches one chunk across the bounded worker pool and waits for
// every item to finish. In-flight items always run to completion or their
// own timeout, even under batch cancellation.
func runChunk[T any](ctx context.Context, e *Executor, chunk []Item[T], fn Processor[T], cfg Config, state *runState, totalHint int) {
	jobs := make(chan int)
	var wg sync.WaitGroup

	workers := cfg.MaxWorkers
	if workers > len(chunk) {
		workers = len(chunk)
	}

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range jobs {
				runItem(ctx, &chunk[idx], fn, cfg)
				done := state.done.Add(1)
				if cfg.OnProgress != nil {
					cfg.OnProgress(int(done), totalHint)
				}
			}
		}()
	}

	for idx := range chunk {
		jobs <- idx
	}
	close(jobs)
	wg.Wait()
}

// runItem executes one item with retry and exponential backoff.
func runItem[T any](ctx context.Context, item *Item[T], fn Processor[T], cfg Config) {
	item.Status = StatusRunning
	start := time.Now()

	var lastErr error
	for attempt := 0; attempt <= cfg.RetryAttempts; attempt++ {
		if attempt > 0 {
			observability.IncBatchRetries()
			backoff := cfg.RetryDelay * time.Duration(1<<uint(attempt-1))
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
			}
		}

		item.Attempts = attempt + 1
		lastErr = invoke(ctx, item.Input, fn, cfg.Timeout)
		if lastErr == nil {
			break
		}
	}

	item.Duration = time.Since(start)
	if lastErr != nil {
		item.Status = StatusFailed
		item.Err = lastErr
		observability.RecordBatchItem(false)
		if cfg.OnError != nil {
			cfg.OnError(item.Index, lastErr)
		}
		return
	}

	item.Status = StatusCompleted
	observability.RecordBatchItem(true)
}

func invoke[T any](ctx context.Context, input T, fn Processor[T], timeout time.Duration) (err error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("processor panicked: %v", r)
		}
	}()

	return fn(ctx, input)
}

func summarize[T any](runID string, items []Item[T], cancelled bool, duration time.Duration) *Result {
	result := &Result{
		RunID:      runID,
		TotalItems: len(items),
		Duration:   duration,
	}

	for _, item := range items {
		switch item.Status {
		case StatusCompleted:
			result.SuccessfulItems++
		case StatusFailed:
			result.FailedItems++
			result.Errors = append(result.Errors, ItemError{Index: item.Index, Error: item.Err.Error()})
		}
	}

	sort.Slice(result.Errors, func(i, j int) bool {
		return result.Errors[i].Index < result.Errors[j].Index
	})

	switch {
	case cancelled:
		result.Status = StatusCancelled
	case result.FailedItems > 0:
		result.Status = StatusFailed
	default:
		result.Status = StatusCompleted
	}
	return result
}

// ActiveRuns returns a snapshot of currently executing runs.
func (e *Executor) ActiveRuns() []RunInfo {
	e.mu.Lock()
	defer e.mu.Unlock()

	runs := make([]RunInfo, 0, len(e.active))
	for id, state := range e.active {
		runs = append(runs, RunInfo{
			RunID:     id,
			StartedAt: state.startedAt,
			Total:     state.total,
			Done:      int(state.done.Load()),
		})
	}
	sort.Slice(runs, func(i, j int) bool { return runs[i].StartedAt.Before(runs[j].StartedAt) })
	return runs
}

// Stats returns a snapshot of executor counters.
func (e *Executor) Stats() Stats {
	e.mu.Lock()
	activeRuns := len(e.active)
	e.mu.Unlock()

	return Stats{
		ActiveRuns:    activeRuns,
		CompletedRuns: e.completedRuns.Load(),
		FailedRuns:    e.failedRuns.Load(),
		CancelledRuns: e.cancelledRuns.Load(),
		TotalItems:    e.totalItems.Load(),
		FailedItems:   e.failedItems.Load(),
	}
}
