package observability

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type moduleMetrics struct {
	embeddingRequestsTotal *prometheus.CounterVec
	embeddingFallbackTotal prometheus.Counter
	embeddingCacheTotal    *prometheus.CounterVec
	embeddingDuration      prometheus.Histogram

	vectorEntriesTotal   prometheus.Gauge
	vectorSearchDuration prometheus.Histogram

	recordsTotal        prometheus.Gauge
	chunksTotal         prometheus.Gauge
	indexDuration       prometheus.Histogram
	searchDuration      *prometheus.HistogramVec
	searchCacheTotal    *prometheus.CounterVec
	cleanupDeletedTotal *prometheus.CounterVec

	batchRunsTotal    *prometheus.CounterVec
	batchItemsTotal   *prometheus.CounterVec
	batchDuration     prometheus.Histogram
	batchActiveRuns   prometheus.Gauge
	batchRetriesTotal prometheus.Counter
}

var (
	metricsOnce sync.Once
	metricsInst *moduleMetrics
)

func getMetrics() *moduleMetrics {
	metricsOnce.Do(func() {
		m := &moduleMetrics{
			embeddingRequestsTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "embedding_requests_total",
					Help: "Total embedding requests by provider and status.",
				},
				[]string{"provider", "status"},
			),
			embeddingFallbackTotal: prometheus.NewCounter(
				prometheus.CounterOpts{
					Name: "embedding_fallback_total",
					Help: "Total embeddings served by the deterministic fallback after provider failure.",
				},
			),
			embeddingCacheTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "embedding_cache_total",
					Help: "Embedding cache lookups by outcome (hit, miss, evict).",
				},
				[]string{"outcome"},
			),
			embeddingDuration: prometheus.NewHistogram(
				prometheus.HistogramOpts{
					Name:    "embedding_duration_seconds",
					Help:    "Embedding generation duration in seconds.",
					Buckets: prometheus.DefBuckets,
				},
			),
			vectorEntriesTotal: prometheus.NewGauge(
				prometheus.GaugeOpts{
					Name: "vector_entries_total",
					Help: "Total entries in the vector index.",
				},
			),
			vectorSearchDuration: prometheus.NewHistogram(
				prometheus.HistogramOpts{
					Name:    "vector_search_duration_seconds",
					Help:    "Vector similarity search duration in seconds.",
					Buckets: prometheus.DefBuckets,
				},
			),
			recordsTotal: prometheus.NewGauge(
				prometheus.GaugeOpts{
					Name: "memory_records_total",
					Help: "Total memory records in the structured store.",
				},
			),
			chunksTotal: prometheus.NewGauge(
				prometheus.GaugeOpts{
					Name: "memory_chunks_total",
					Help: "Total content chunks in the structured store.",
				},
			),
			indexDuration: prometheus.NewHistogram(
				prometheus.HistogramOpts{
					Name:    "memory_index_duration_seconds",
					Help:    "Single-record indexing duration in seconds.",
					Buckets: prometheus.DefBuckets,
				},
			),
			searchDuration: prometheus.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "memory_search_duration_seconds",
					Help:    "Memory search duration in seconds by strategy.",
					Buckets: prometheus.DefBuckets,
				},
				[]string{"strategy"},
			),
			searchCacheTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "search_cache_total",
					Help: "Search result cache lookups by outcome (hit, miss).",
				},
				[]string{"outcome"},
			),
			cleanupDeletedTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "cleanup_deleted_total",
					Help: "Total items deleted by lifecycle cleanup by subsystem.",
				},
				[]string{"subsystem"},
			),
			batchRunsTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "batch_runs_total",
					Help: "Total batch runs by terminal status.",
				},
				[]string{"status"},
			),
			batchItemsTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "batch_items_total",
					Help: "Total batch items by terminal status.",
				},
				[]string{"status"},
			),
			batchDuration: prometheus.NewHistogram(
				prometheus.HistogramOpts{
					Name:    "batch_duration_seconds",
					Help:    "Batch run duration in seconds.",
					Buckets: prometheus.DefBuckets,
				},
			),
			batchActiveRuns: prometheus.NewGauge(
				prometheus.GaugeOpts{
					Name: "batch_active_runs",
					Help: "Batch runs currently executing.",
				},
			),
			batchRetriesTotal: prometheus.NewCounter(
				prometheus.CounterOpts{
					Name: "batch_retries_total",
					Help: "Total per-item retry attempts across all batch runs.",
				},
			),
		}

		prometheus.MustRegister(
			m.embeddingRequestsTotal,
			m.embeddingFallbackTotal,
			m.embeddingCacheTotal,
			m.embeddingDuration,
			m.vectorEntriesTotal,
			m.vectorSearchDuration,
			m.recordsTotal,
			m.chunksTotal,
			m.indexDuration,
			m.searchDuration,
			m.searchCacheTotal,
			m.cleanupDeletedTotal,
			m.batchRunsTotal,
			m.batchItemsTotal,
			m.batchDuration,
			m.batchActiveRuns,
			m.batchRetriesTotal,
		)

		metricsInst = m
	})

	return metricsInst
}

// EnsureRegistered initializes and registers metrics the first time it is called.
func EnsureRegistered() {
	_ = getMetrics()
}

func MetricsHandler() http.Handler {
	EnsureRegistered()
	return promhttp.Handler()
}

func RecordEmbeddingRequest(provider string, duration time.Duration, success bool) {
	m := getMetrics()
	status := "error"
	if success {
		status = "success"
	}
	m.embeddingRequestsTotal.WithLabelValues(provider, status).Inc()
	m.embeddingDuration.Observe(duration.Seconds())
}

// IncEmbeddingFallback records one embedding served by the deterministic
// fallback instead of the configured provider.
func IncEmbeddingFallback() {
	getMetrics().embeddingFallbackTotal.Inc()
}

func RecordEmbeddingCacheHit() {
	getMetrics().embeddingCacheTotal.WithLabelValues("hit").Inc()
}

func RecordEmbeddingCacheMiss() {
	getMetrics().embeddingCacheTotal.WithLabelValues("miss").Inc()
}

func RecordEmbeddingCacheEviction() {
	getMetrics().embeddingCacheTotal.WithLabelValues("evict").Inc()
}

func SetVectorEntries(total int) {
	getMetrics().vectorEntriesTotal.Set(float64(total))
}

func RecordVectorSearch(duration time.Duration) {
	getMetrics().vectorSearchDuration.Observe(duration.Seconds())
}

func SetRecordCounts(records, chunks int) {
	m := getMetrics()
	m.recordsTotal.Set(float64(records))
	m.chunksTotal.Set(float64(chunks))
}

func RecordIndex(duration time.Duration) {
	getMetrics().indexDuration.Observe(duration.Seconds())
}

func RecordSearch(strategy string, duration time.Duration) {
	getMetrics().searchDuration.WithLabelValues(strategy).Observe(duration.Seconds())
}

func RecordSearchCache(hit bool) {
	outcome := "miss"
	if hit {
		outcome = "hit"
	}
	getMetrics().searchCacheTotal.WithLabelValues(outcome).Inc()
}

func AddCleanupDeleted(subsystem string, count int) {
	if count <= 0 {
		return
	}
	getMetrics().cleanupDeletedTotal.WithLabelValues(subsystem).Add(float64(count))
}

func RecordBatchRun(status string, duration time.Duration) {
	m := getMetrics()
	m.batchRunsTotal.WithLabelValues(status).Inc()
	m.batchDuration.Observe(duration.Seconds())
}

func RecordBatchItem(success bool) {
	status := "failed"
	if success {
		status = "completed"
	}
	getMetrics().batchItemsTotal.WithLabelValues(status).Inc()
}

func SetBatchActiveRuns(count int) {
	getMetrics().batchActiveRuns.Set(float64(count))
}

func IncBatchRetries() {
	getMetrics().batchRetriesTotal.Inc()
}
