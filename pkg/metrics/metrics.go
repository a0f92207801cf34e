package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	// CrawlRunsTotal counts ingestion runs by terminal status: completed, failed, skipped.
	CrawlRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crawl_runs_total",
			Help: "Total number of ingestion runs.",
		},
		[]string{"status"},
	)

	CrawlDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "crawl_duration_seconds",
			Help:    "Duration of full ingestion runs.",
			Buckets: []float64{1, 5, 10, 30, 60, 120, 300, 600},
		},
	)

	// RegionFetchTotal counts per-region fetch outcomes: success, retry, failed.
	RegionFetchTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "region_fetch_total",
			Help: "Upstream fetch attempts per outcome.",
		},
		[]string{"result"},
	)

	ListingsIngestedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "listings_ingested_total",
			Help: "Listings written to the store per region.",
		},
		[]string{"region"},
	)

	RollbacksTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "store_rollbacks_total",
			Help: "Number of times live partitions were restored from backup.",
		},
	)

	StorePartitions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "store_partitions",
			Help: "Live listing partitions observed by the last stats call.",
		},
	)

	SearchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "search_duration_seconds",
			Help:    "Duration of search requests.",
			Buckets: []float64{.001, .005, .01, .05, .1, .5, 1},
		},
	)

	// RankingRequestsTotal counts analyses by the strategy that produced them: vector, deterministic, cached.
	RankingRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ranking_requests_total",
			Help: "Ranking requests by scoring strategy.",
		},
		[]string{"strategy"},
	)

	RankingCacheTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ranking_cache_total",
			Help: "Ranking cache lookups by result: hit, miss, error.",
		},
		[]string{"result"},
	)
)
