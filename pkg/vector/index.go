package vector

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"math"
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/rizal/memdex/internal/observability"
	"github.com/rizal/memdex/pkg/embedding"
)

// ErrNotFound is returned when an entry id is not present in the index.
var ErrNotFound = errors.New("vector entry not found")

// parallelThreshold is the candidate-set size above which similarity
// scoring is sharded across cores.
const parallelThreshold = 256

// Entry is one stored vector with its content snapshot and access stats.
type Entry struct {
	ID           string                 `json:"id"`
	Content      string                 `json:"content"`
	Embedding    []float32              `json:"embedding"`
	Metadata     map[string]interface{} `json:"metadata,omitempty"`
	CreatedAt    time.Time              `json:"created_at"`
	AccessCount  int64                  `json:"access_count"`
	LastAccessed time.Time              `json:"last_accessed"`
}

// Match pairs an entry with its similarity score for a query.
type Match struct {
	Entry *Entry
	Score float64
}

// Stats is a snapshot of index counters.
type Stats struct {
	Entries    int `json:"entries"`
	Dimensions int `json:"dimensions"`
}

// Index is an in-memory nearest-neighbor index over normalized vectors.
// It is a secondary, rebuildable structure; the structured store remains
// the source of truth for record existence.
type Index struct {
	mu        sync.RWMutex
	entries   map[string]*Entry
	dedup     map[string]string // content+embedding hash -> id
	dimension int
	logger    zerolog.Logger
}

// NewIndex creates an empty vector index.
func NewIndex(logger zerolog.Logger) *Index {
	observability.EnsureRegistered()
	return &Index{
		entries: make(map[string]*Entry),
		dedup:   make(map[string]string),
		logger:  logger,
	}
}

// Store inserts a vector and returns its id. Storing identical content with an
// identical vector returns the existing id instead of creating a duplicate.
// The check-then-insert runs under one write lock, so concurrent stores of the
// same content cannot race into duplicate ids.
func (ix *Index) Store(content string, emb []float32, metadata map[string]interface{}) (string, error) {
	if len(emb) == 0 {
		return "", errors.New("embedding must not be empty")
	}

	normalized := embedding.Normalize(emb)
	hash := contentHash(content, normalized)

	ix.mu.Lock()
	defer ix.mu.Unlock()

	if id, ok := ix.dedup[hash]; ok {
		return id, nil
	}

	id := hash[:32]
	now := time.Now()
	ix.entries[id] = &Entry{
		ID:           id,
		Content:      content,
		Embedding:    normalized,
		Metadata:     metadata,
		CreatedAt:    now,
		LastAccessed: now,
	}
	ix.dedup[hash] = id
	if ix.dimension == 0 {
		ix.dimension = len(normalized)
	}

	observability.SetVectorEntries(len(ix.entries))
	return id, nil
}

// Insert adds an entry under a caller-provided id, replacing any previous
// entry with that id. Used when the indexer owns id derivation and when
// rebuilding from the durable store.
func (ix *Index) Insert(entry *Entry) {
	if entry == nil || len(entry.Embedding) == 0 {
		return
	}

	normalized := embedding.Normalize(entry.Embedding)
	entry.Embedding = normalized
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}

	ix.mu.Lock()
	defer ix.mu.Unlock()

	if prev, ok := ix.entries[entry.ID]; ok {
		delete(ix.dedup, contentHash(prev.Content, prev.Embedding))
	}
	ix.entries[entry.ID] = entry
	ix.dedup[contentHash(entry.Content, normalized)] = entry.ID
	if ix.dimension == 0 {
		ix.dimension = len(normalized)
	}

	observability.SetVectorEntries(len(ix.entries))
}

// Get returns an entry by id and bumps its access stats.
func (ix *Index) Get(id string) (*Entry, error) {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	entry, ok := ix.entries[id]
	if !ok {
		return nil, ErrNotFound
	}

	entry.AccessCount++
	entry.LastAccessed = time.Now()
	return entry, nil
}

// Filter restricts a similarity search to entries whose metadata matches
// every key/value pair.
type Filter map[string]interface{}

func (f Filter) matches(entry *Entry) bool {
	for k, want := range f {
		got, ok := entry.Metadata[k]
		if !ok || got != want {
			return false
		}
	}
	return true
}

// SearchSimilar returns up to k entries by descending cosine similarity.
// Entries whose dimension differs from the query are skipped, not errors.
func (ix *Index) SearchSimilar(ctx context.Context, query []float32, k int, minScore float64, filter Filter) ([]Match, error) {
	if len(query) == 0 {
		return nil, errors.New("query vector must not be empty")
	}
	if k <= 0 {
		return nil, nil
	}

	start := time.Now()
	defer func() { observability.RecordVectorSearch(time.Since(start)) }()

	queryNorm := embedding.Normalize(query)

	ix.mu.RLock()
	candidates := make([]*Entry, 0, len(ix.entries))
	for _, entry := range ix.entries {
		if len(filter) > 0 && !filter.matches(entry) {
			continue
		}
		candidates = append(candidates, entry)
	}
	ix.mu.RUnlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	scores := ix.scoreCandidates(queryNorm, candidates)

	matches := make([]Match, 0, len(candidates))
	for i, entry := range candidates {
		if math.IsNaN(scores[i]) {
			// dimension mismatch marker
			continue
		}
		if scores[i] < minScore {
			continue
		}
		matches = append(matches, Match{Entry: entry, Score: scores[i]})
	}

	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		return matches[i].Entry.ID < matches[j].Entry.ID
	})

	if len(matches) > k {
		matches = matches[:k]
	}

	now := time.Now()
	ix.mu.Lock()
	for _, m := range matches {
		m.Entry.AccessCount++
		m.Entry.LastAccessed = now
	}
	ix.mu.Unlock()

	return matches, nil
}

// scoreCandidates computes similarity for every candidate, sharding the work
// across cores when the candidate set is large. Scoring is pure CPU work and
// runs outside any lock; NaN marks a skipped dimension mismatch.
func (ix *Index) scoreCandidates(query []float32, candidates []*Entry) []float64 {
	scores := make([]float64, len(candidates))

	scoreRange := func(lo, hi int) {
		for i := lo; i < hi; i++ {
			if len(candidates[i].Embedding) != len(query) {
				scores[i] = math.NaN()
				continue
			}
			scores[i] = Cosine(query, candidates[i].Embedding)
		}
	}

	if len(candidates) < parallelThreshold {
		scoreRange(0, len(candidates))
		return scores
	}

	workers := runtime.NumCPU()
	if workers > len(candidates) {
		workers = len(candidates)
	}
	shard := (len(candidates) + workers - 1) / workers

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		lo := w * shard
		hi := lo + shard
		if hi > len(candidates) {
			hi = len(candidates)
		}
		if lo >= hi {
			break
		}
		wg.Add(1)
		go func(lo, hi int) {
			defer wg.Done()
			scoreRange(lo, hi)
		}(lo, hi)
	}
	wg.Wait()

	return scores
}

// Delete removes an entry by id.
func (ix *Index) Delete(id string) error {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	entry, ok := ix.entries[id]
	if !ok {
		return ErrNotFound
	}

	delete(ix.dedup, contentHash(entry.Content, entry.Embedding))
	delete(ix.entries, id)
	observability.SetVectorEntries(len(ix.entries))
	return nil
}

// Cleanup removes entries older than maxAge. When requireUnaccessed is set,
// only entries that were never read are removed. Returns removed ids.
func (ix *Index) Cleanup(maxAge time.Duration, requireUnaccessed bool) []string {
	cutoff := time.Now().Add(-maxAge)

	ix.mu.Lock()
	defer ix.mu.Unlock()

	var removed []string
	for id, entry := range ix.entries {
		if entry.CreatedAt.After(cutoff) {
			continue
		}
		if requireUnaccessed && entry.AccessCount > 0 {
			continue
		}
		delete(ix.dedup, contentHash(entry.Content, entry.Embedding))
		delete(ix.entries, id)
		removed = append(removed, id)
	}

	if len(removed) > 0 {
		ix.logger.Debug().Int("removed", len(removed)).Msg("Vector index cleanup")
		observability.SetVectorEntries(len(ix.entries))
	}
	return removed
}

// Len returns the number of stored entries.
func (ix *Index) Len() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.entries)
}

// Stats returns a snapshot of index counters.
func (ix *Index) Stats() Stats {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return Stats{
		Entries:    len(ix.entries),
		Dimensions: ix.dimension,
	}
}

// contentHash derives the dedup identity from content plus the vector bytes.
func contentHash(content string, emb []float32) string {
	h := sha256.New()
	h.Write([]byte(content))
	var buf [4]byte
	for _, v := range emb {
		binary.LittleEndian.PutUint32(buf[:], math.Float32bits(v))
		h.Write(buf[:])
	}
	return hex.EncodeToString(h.Sum(nil))
}
