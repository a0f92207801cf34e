package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/user/listing-aggregator/internal/entity"
	"github.com/user/listing-aggregator/internal/repository"
	"github.com/user/listing-aggregator/pkg/metrics"
	"github.com/user/listing-aggregator/pkg/utils"
)

const (
	StrategyVector        = "vector"
	StrategyDeterministic = "deterministic"
	StrategyCached        = "cached"

	DefaultMaxResults       = 10
	DefaultAnalysisCacheTTL = time.Hour
)

// ErrVectorSearchDisabled is returned by SimilarListings when no embedding backend is configured.
var ErrVectorSearchDisabled = errors.New("vector search is not configured")

// RankingEngine scores a corpus against a query and explains the result.
type RankingEngine interface {
	Analyze(ctx context.Context, query string, listings []entity.Listing, maxResults int) (*entity.Analysis, error)
	SimilarListings(ctx context.Context, target entity.Listing, candidates []entity.Listing, topK int) ([]entity.SimilarListing, error)
	// ClearCache drops every cached analysis and returns how many were removed.
	ClearCache(ctx context.Context) (int, error)
	CacheStats(ctx context.Context) (int, error)
}

// RankingDeps lists the collaborators of the ranking engine. Completer, Embedder
// and Cache are all optional; a nil one disables that feature.
type RankingDeps struct {
	Completer repository.Completer
	Embedder  repository.Embedder
	Cache     repository.AnalysisCache
	CacheTTL  time.Duration
}

type rankingEngine struct {
	completer repository.Completer
	vectors   *vectorIndex
	cache     repository.AnalysisCache
	cacheTTL  time.Duration
	flight    singleflight.Group
	now       func() time.Time
}

// NewRankingEngine creates a new instance of the ranking use case.
func NewRankingEngine(deps RankingDeps) RankingEngine {
	return newRankingEngine(deps)
}

func newRankingEngine(deps RankingDeps) *rankingEngine {
	e := &rankingEngine{
		completer: deps.Completer,
		cache:     deps.Cache,
		cacheTTL:  deps.CacheTTL,
		now:       time.Now,
	}
	if e.cacheTTL <= 0 {
		e.cacheTTL = DefaultAnalysisCacheTTL
	}
	if deps.Embedder != nil {
		e.vectors = newVectorIndex(deps.Embedder)
	}
	return e
}

func (e *rankingEngine) Analyze(ctx context.Context, query string, listings []entity.Listing, maxResults int) (*entity.Analysis, error) {
	if maxResults <= 0 {
		maxResults = DefaultMaxResults
	}
	key := utils.NormalizeQuery(query)

	if cached := e.cached(ctx, key, len(listings)); cached != nil {
		metrics.RankingRequestsTotal.WithLabelValues(StrategyCached).Inc()
		return cached, nil
	}

	// Identical concurrent requests share one computation.
	flightKey := fmt.Sprintf("%s:%d:%d", key, len(listings), maxResults)
	v, err, _ := e.flight.Do(flightKey, func() (any, error) {
		analysis := e.analyze(context.WithoutCancel(ctx), query, listings, maxResults)
		e.store(ctx, key, len(listings), analysis)
		return analysis, nil
	})
	if err != nil {
		return nil, err
	}

	analysis := *v.(*entity.Analysis)
	metrics.RankingRequestsTotal.WithLabelValues(analysis.Strategy).Inc()
	return &analysis, nil
}

// cached returns a hit from the result cache. Cache errors count as misses.
func (e *rankingEngine) cached(ctx context.Context, key string, corpusSize int) *entity.Analysis {
	if e.cache == nil {
		return nil
	}
	analysis, ok, err := e.cache.Get(ctx, key, corpusSize)
	switch {
	case err != nil:
		metrics.RankingCacheTotal.WithLabelValues("error").Inc()
		slog.Warn("Failed to read analysis cache, recomputing", "query", key, "error", err)
		return nil
	case !ok:
		metrics.RankingCacheTotal.WithLabelValues("miss").Inc()
		return nil
	}
	metrics.RankingCacheTotal.WithLabelValues("hit").Inc()
	analysis.Strategy = StrategyCached
	return analysis
}

func (e *rankingEngine) store(ctx context.Context, key string, corpusSize int, analysis *entity.Analysis) {
	if e.cache == nil {
		return
	}
	if err := e.cache.Set(context.WithoutCancel(ctx), key, corpusSize, analysis, e.cacheTTL); err != nil {
		slog.Warn("Failed to cache analysis", "query", key, "error", err)
	}
}

func (e *rankingEngine) analyze(ctx context.Context, query string, listings []entity.Listing, maxResults int) *entity.Analysis {
	keywords := e.relatedKeywords(ctx, query)
	scorer := newKeywordScorer(query, keywords, e.now())

	ranked, strategy := e.rank(ctx, scorer, listings, maxResults)
	insights := e.marketInsights(ctx, query, listings)

	analysis := &entity.Analysis{
		SearchQuery:      query,
		AnalyzedAt:       e.now(),
		TotalListings:    len(listings),
		Strategy:         strategy,
		Recommendations:  ranked,
		Insights:         insights,
		SuggestedFilters: suggestFilters(insights),
		RelatedKeywords:  keywords,
	}
	if len(ranked) > 0 {
		analysis.TopListing = e.analyzeTopListing(ctx, ranked[0].Listing, listings)
	}

	slog.Info("Ranking analysis completed",
		"query", query,
		"strategy", strategy,
		"corpus_size", len(listings),
		"recommendations", len(ranked),
	)
	return analysis
}

// rank prefers vector similarity and falls back to keyword scoring when embeddings are unavailable.
func (e *rankingEngine) rank(ctx context.Context, scorer keywordScorer, listings []entity.Listing, maxResults int) ([]entity.RankedResult, string) {
	if e.vectors != nil && len(listings) > 0 {
		ranked, err := e.vectors.rankByVector(ctx, scorer, listings, maxResults)
		if err == nil {
			return ranked, StrategyVector
		}
		slog.Warn("Vector ranking failed, using keyword scoring", "query", scorer.query, "error", err)
	}
	return rankDeterministic(scorer, listings, maxResults), StrategyDeterministic
}

func (e *rankingEngine) SimilarListings(ctx context.Context, target entity.Listing, candidates []entity.Listing, topK int) ([]entity.SimilarListing, error) {
	if e.vectors == nil {
		return nil, ErrVectorSearchDisabled
	}
	if topK <= 0 {
		topK = 5
	}
	return e.vectors.similar(ctx, target, candidates, topK)
}

func (e *rankingEngine) ClearCache(ctx context.Context) (int, error) {
	if e.cache == nil {
		return 0, nil
	}
	n, err := e.cache.Clear(ctx)
	if err != nil {
		return 0, fmt.Errorf("clear analysis cache: %w", err)
	}
	slog.Info("Analysis cache cleared", "removed", n)
	return n, nil
}

func (e *rankingEngine) CacheStats(ctx context.Context) (int, error) {
	if e.cache == nil {
		return 0, nil
	}
	n, err := e.cache.Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("count analysis cache: %w", err)
	}
	return n, nil
}
