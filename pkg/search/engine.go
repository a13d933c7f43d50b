package search

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/rizal/memdex/internal/observability"
	"github.com/rizal/memdex/internal/tracing"
	"github.com/rizal/memdex/pkg/embedding"
	"github.com/rizal/memdex/pkg/memory"
	"github.com/rizal/memdex/pkg/vector"
)

const tracerName = "memdex.search"

// Strategy selects how a query is executed and fused.
type Strategy string

const (
	StrategyVector     Strategy = "vector"
	StrategyKeyword    Strategy = "keyword"
	StrategyHybrid     Strategy = "hybrid"
	StrategyRankFusion Strategy = "rankfusion"
)

// ParseStrategy maps a string to a Strategy, defaulting to hybrid.
func ParseStrategy(s string) (Strategy, error) {
	switch Strategy(strings.ToLower(s)) {
	case StrategyVector, StrategyKeyword, StrategyHybrid, StrategyRankFusion:
		return Strategy(strings.ToLower(s)), nil
	case "":
		return StrategyHybrid, nil
	default:
		return "", fmt.Errorf("unknown search strategy: %s", s)
	}
}

// VectorSearcher is the nearest-neighbor leg.
type VectorSearcher interface {
	SearchSimilar(ctx context.Context, query []float32, k int, minScore float64, filter vector.Filter) ([]vector.Match, error)
}

// RecordStore is the keyword leg plus record resolution.
type RecordStore interface {
	SearchKeyword(ctx context.Context, match string, limit int) ([]memory.KeywordMatch, error)
	GetRecord(ctx context.Context, id string) (*memory.Record, error)
	Touch(ctx context.Context, id string) error
}

// Config tunes the engine.
type Config struct {
	VectorWeight   float64
	KeywordWeight  float64
	DefaultLimit   int
	MinScore       float64
	CacheCapacity  int
	CacheTTL       time.Duration
	SnippetWindow  int
	ExpandSynonyms bool
	Rerank         RerankConfig
}

// Options bound one query.
type Options struct {
	Strategy Strategy
	Limit    int
	MinScore float64
	Source   memory.Source
	Type     memory.Type
	Tags     []string
}

// Result is one relevance-ordered hit.
type Result struct {
	ID           string                 `json:"id"`
	Content      string                 `json:"content"`
	Score        float64                `json:"score"`
	Source       memory.Source          `json:"source"`
	Metadata     map[string]interface{} `json:"metadata,omitempty"`
	Snippet      string                 `json:"snippet"`
	VectorScore  *float64               `json:"vector_score,omitempty"`
	KeywordScore *float64               `json:"keyword_score,omitempty"`
}

// Engine fuses vector and keyword retrieval into one ranked result set.
type Engine struct {
	index    VectorSearcher
	store    RecordStore
	provider embedding.Provider
	cfg      Config
	cache    *resultCache
	logger   zerolog.Logger
}

// NewEngine creates a search engine. The provider may be nil when only
// keyword strategies will be used.
func NewEngine(index VectorSearcher, store RecordStore, provider embedding.Provider, cfg Config, logger zerolog.Logger) (*Engine, error) {
	if store == nil {
		return nil, errors.New("record store is required")
	}
	if cfg.VectorWeight <= 0 && cfg.KeywordWeight <= 0 {
		cfg.VectorWeight = 0.7
		cfg.KeywordWeight = 0.3
	}
	if cfg.DefaultLimit <= 0 {
		cfg.DefaultLimit = 20
	}
	if cfg.SnippetWindow <= 0 {
		cfg.SnippetWindow = 200
	}

	observability.EnsureRegistered()
	return &Engine{
		index:    index,
		store:    store,
		provider: provider,
		cfg:      cfg,
		cache:    newResultCache(cfg.CacheCapacity, cfg.CacheTTL),
		logger:   logger,
	}, nil
}

type leg struct {
	ids    []string // best-first
	scores map[string]float64
	err    error
}

// Search executes a query under the given strategy. Empty results are valid,
// not errors.
func (e *Engine) Search(ctx context.Context, query string, opts Options) ([]Result, error) {
	if strings.TrimSpace(query) == "" {
		return []Result{}, nil
	}

	if opts.Strategy == "" {
		opts.Strategy = StrategyHybrid
	}
	if opts.Limit <= 0 {
		opts.Limit = e.cfg.DefaultLimit
	}
	if opts.MinScore <= 0 {
		opts.MinScore = e.cfg.MinScore
	}

	ctx, span := tracing.StartSpan(ctx, tracerName, "search.query",
		attribute.String("strategy", string(opts.Strategy)),
		attribute.Int("limit", opts.Limit),
	)
	defer span.End()

	logger := tracing.LoggerFromContext(ctx, e.logger)
	start := time.Now()
	defer func() { observability.RecordSearch(string(opts.Strategy), time.Since(start)) }()

	terms := preprocessQuery(query, e.cfg.ExpandSynonyms)
	if len(terms) == 0 {
		return []Result{}, nil
	}

	cacheKey := e.cacheKey(terms, opts)
	if cached, ok := e.cache.Get(cacheKey); ok {
		observability.RecordSearchCache(true)
		logger.Debug().Str("strategy", string(opts.Strategy)).Msg("Search served from cache")
		return cached, nil
	}
	observability.RecordSearchCache(false)

	candidateLimit := opts.Limit * 3
	if candidateLimit < 50 {
		candidateLimit = 50
	}

	var vectorLeg, keywordLeg leg
	switch opts.Strategy {
	case StrategyVector:
		vectorLeg = e.runVectorLeg(ctx, terms, candidateLimit)
		if vectorLeg.err != nil {
			span.RecordError(vectorLeg.err)
			return nil, vectorLeg.err
		}
	case StrategyKeyword:
		keywordLeg = e.runKeywordLeg(ctx, terms, candidateLimit)
		if keywordLeg.err != nil {
			span.RecordError(keywordLeg.err)
			return nil, keywordLeg.err
		}
	case StrategyHybrid, StrategyRankFusion:
		// both legs run concurrently; the merge below is the barrier
		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			vectorLeg = e.runVectorLeg(ctx, terms, candidateLimit)
		}()
		go func() {
			defer wg.Done()
			keywordLeg = e.runKeywordLeg(ctx, terms, candidateLimit)
		}()
		wg.Wait()

		if vectorLeg.err != nil {
			logger.Warn().Err(vectorLeg.err).Msg("Vector leg failed, degrading to keyword only")
		}
		if keywordLeg.err != nil {
			logger.Warn().Err(keywordLeg.err).Msg("Keyword leg failed, degrading to vector only")
		}
		if vectorLeg.err != nil && keywordLeg.err != nil {
			span.SetStatus(codes.Error, "both search legs failed")
			return nil, errors.New("both search legs failed")
		}
	default:
		return nil, fmt.Errorf("unknown search strategy: %s", opts.Strategy)
	}

	var fused map[string]float64
	switch opts.Strategy {
	case StrategyVector:
		fused = vectorLeg.scores
	case StrategyKeyword:
		fused = keywordLeg.scores
	case StrategyHybrid:
		fused = weightedMerge(
			minMaxNormalize(vectorLeg.scores),
			minMaxNormalize(keywordLeg.scores),
			e.cfg.VectorWeight, e.cfg.KeywordWeight,
		)
	case StrategyRankFusion:
		var lists [][]string
		if len(vectorLeg.ids) > 0 {
			lists = append(lists, vectorLeg.ids)
		}
		if len(keywordLeg.ids) > 0 {
			lists = append(lists, keywordLeg.ids)
		}
		fused = fuseRanks(lists...)
	}

	results := e.materialize(ctx, fused, vectorLeg.scores, keywordLeg.scores, terms, opts)

	e.cache.Put(cacheKey, results)
	logger.Debug().
		Str("strategy", string(opts.Strategy)).
		Int("results", len(results)).
		Msg("Search completed")

	return results, nil
}

func (e *Engine) runVectorLeg(ctx context.Context, terms []string, limit int) leg {
	if e.index == nil || e.provider == nil {
		return leg{err: errors.New("vector search is not configured")}
	}

	queryVec, err := e.provider.Embed(ctx, strings.Join(terms, " "))
	if err != nil {
		return leg{err: fmt.Errorf("failed to embed query: %w", err)}
	}

	matches, err := e.index.SearchSimilar(ctx, queryVec, limit, 0, nil)
	if err != nil {
		return leg{err: err}
	}

	l := leg{scores: make(map[string]float64, len(matches))}
	for _, m := range matches {
		l.ids = append(l.ids, m.Entry.ID)
		l.scores[m.Entry.ID] = m.Score
	}
	return l
}

func (e *Engine) runKeywordLeg(ctx context.Context, terms []string, limit int) leg {
	matches, err := e.store.SearchKeyword(ctx, ftsMatchExpr(terms), limit)
	if err != nil {
		return leg{err: err}
	}

	l := leg{scores: make(map[string]float64, len(matches))}
	for _, m := range matches {
		l.ids = append(l.ids, m.RecordID)
		l.scores[m.RecordID] = m.Score
	}
	return l
}

// materialize resolves fused ids to records, applies filters and reranking,
// and produces the final ordered, snippeted result set.
func (e *Engine) materialize(ctx context.Context, fused, vectorScores, keywordScores map[string]float64, terms []string, opts Options) []Result {
	now := time.Now()
	results := make([]Result, 0, len(fused))

	for _, id := range sortByScore(fused) {
		rec, err := e.store.GetRecord(ctx, id)
		if err != nil {
			if !errors.Is(err, memory.ErrNotFound) {
				e.logger.Warn().Err(err).Str("id", id).Msg("Failed to resolve search hit")
			}
			continue
		}

		if !matchesFilters(rec, opts) {
			continue
		}

		score := rerank(fused[id], rec.CreatedAt, rec.AccessCount, e.cfg.Rerank, now)
		if opts.MinScore > 0 && score < opts.MinScore {
			continue
		}

		result := Result{
			ID:       rec.ID,
			Content:  rec.Content,
			Score:    score,
			Source:   rec.Source,
			Metadata: rec.Metadata,
			Snippet:  makeSnippet(rec.Content, terms, e.cfg.SnippetWindow),
		}
		if s, ok := vectorScores[id]; ok {
			v := s
			result.VectorScore = &v
		}
		if s, ok := keywordScores[id]; ok {
			k := s
			result.KeywordScore = &k
		}
		results = append(results, result)
	}

	// reranking can reorder relative to the fused scores
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})

	if len(results) > opts.Limit {
		results = results[:opts.Limit]
	}

	for _, r := range results {
		if err := e.store.Touch(ctx, r.ID); err != nil {
			e.logger.Warn().Err(err).Str("id", r.ID).Msg("Failed to update access stats")
		}
	}

	return results
}

// CacheLen reports the number of cached result sets.
func (e *Engine) CacheLen() int {
	return e.cache.Len()
}

func (e *Engine) cacheKey(terms []string, opts Options) string {
	return strings.Join([]string{
		string(opts.Strategy),
		fmt.Sprintf("%d|%.4f", opts.Limit, opts.MinScore),
		string(opts.Source),
		string(opts.Type),
		strings.Join(opts.Tags, ","),
		strings.Join(terms, " "),
	}, "\x1f")
}

func matchesFilters(rec *memory.Record, opts Options) bool {
	if opts.Source != "" && rec.Source != opts.Source {
		return false
	}
	if opts.Type != "" && rec.Type != opts.Type {
		return false
	}
	for _, want := range opts.Tags {
		found := false
		for _, tag := range rec.Tags {
			if strings.EqualFold(tag, want) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}
