// Package app builds the dependency graph once at process start.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/user/listing-aggregator/internal/adapter/daangn"
	"github.com/user/listing-aggregator/internal/adapter/gormstore"
	"github.com/user/listing-aggregator/internal/adapter/openai"
	"github.com/user/listing-aggregator/internal/adapter/postgres"
	redis_adapter "github.com/user/listing-aggregator/internal/adapter/redis"
	"github.com/user/listing-aggregator/internal/delivery/http/handler"
	"github.com/user/listing-aggregator/internal/delivery/http/router"
	"github.com/user/listing-aggregator/internal/repository"
	"github.com/user/listing-aggregator/internal/scheduler"
	"github.com/user/listing-aggregator/internal/usecase"
	"github.com/user/listing-aggregator/pkg/config"
)

const (
	AuditPostgres = "postgres"
	AuditSQLite   = "sqlite"

	UpstreamHTTP    = "http"
	UpstreamBrowser = "browser"
)

// App holds the wired components. Close releases every connection it opened.
type App struct {
	Catalog   usecase.RegionCatalog
	Pipeline  usecase.IngestionPipeline
	Search    usecase.SearchEngine
	Ranking   usecase.RankingEngine
	Scheduler *scheduler.Coordinator
	Handler   http.Handler

	closers []func()
}

type auditStore struct {
	regions  repository.RegionRepository
	runs     repository.CrawlRunRepository
	searches repository.SearchLogRepository
}

// New connects to the backing stores and wires every component.
// Scheduler is nil when scheduling is disabled.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	a := &App{}
	if err := a.build(ctx, cfg); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) build(ctx context.Context, cfg *config.Config) error {
	audit, err := a.openAuditStore(ctx, cfg)
	if err != nil {
		return err
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	a.closers = append(a.closers, func() { _ = rdb.Close() })
	if _, err := rdb.Ping(ctx).Result(); err != nil {
		return fmt.Errorf("connect to redis: %w", err)
	}
	slog.Info("Redis connection established", "addr", cfg.RedisAddr)

	store := redis_adapter.NewListingStore(rdb, cfg.PartitionTTL)

	a.Catalog = usecase.NewRegionCatalog(audit.regions)
	if err := a.seedRegions(ctx, cfg.RegionsFile); err != nil {
		return err
	}

	fetcher := usecase.NewListingFetcher(a.upstream(cfg), usecase.FetcherConfig{
		MaxRetries: cfg.FetchMaxRetries,
		RetryDelay: cfg.FetchRetryDelay,
		BaseURL:    cfg.UpstreamBaseURL,
	})

	a.Pipeline = usecase.NewIngestionPipeline(usecase.PipelineDeps{
		Regions:   a.Catalog,
		Fetcher:   fetcher,
		Writer:    store,
		Snapshots: store,
		Runs:      audit.runs,
	}, cfg.RegionDelay)

	a.Search = usecase.NewSearchEngine(store, audit.searches)

	rankingDeps := usecase.RankingDeps{
		Cache:    redis_adapter.NewAnalysisCache(rdb),
		CacheTTL: cfg.AnalysisCacheTTL,
	}
	if cfg.AIEnabled() {
		aiCfg := openai.Config{
			BaseURL:        cfg.OpenAIBaseURL,
			APIKey:         cfg.OpenAIAPIKey,
			ChatModel:      cfg.OpenAIChatModel,
			EmbeddingModel: cfg.OpenAIEmbeddingModel,
			Timeout:        cfg.AITimeout,
		}
		rankingDeps.Completer = openai.NewChatClient(aiCfg, nil)
		rankingDeps.Embedder = openai.NewEmbeddingClient(aiCfg, nil)
		slog.Info("AI backend enabled", "chat_model", cfg.OpenAIChatModel, "embedding_model", cfg.OpenAIEmbeddingModel)
	} else {
		slog.Warn("OPENAI_API_KEY not set, ranking runs in rule-based mode")
	}
	a.Ranking = usecase.NewRankingEngine(rankingDeps)

	deps := handler.Deps{
		Pipeline: a.Pipeline,
		Runs:     audit.runs,
		Store:    store,
		Search:   a.Search,
		Searches: audit.searches,
		Ranking:  a.Ranking,
	}
	if cfg.SchedulerEnabled {
		coord, err := scheduler.New(a.Pipeline, cfg.ScheduleTimezone)
		if err != nil {
			return err
		}
		if err := coord.RegisterDefaults(cfg.ScheduleTestTrigger); err != nil {
			return err
		}
		a.Scheduler = coord
		deps.Scheduler = coord
	}

	a.Handler = router.New(handler.NewHandler(deps))
	return nil
}

func (a *App) openAuditStore(ctx context.Context, cfg *config.Config) (*auditStore, error) {
	switch cfg.AuditDriver {
	case AuditSQLite:
		db, err := gormstore.Open(cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, func() { _ = db.Close() })
		slog.Info("SQLite audit store opened", "path", cfg.SQLitePath)
		return &auditStore{regions: db.Regions(), runs: db.CrawlRuns(), searches: db.SearchLogs()}, nil

	case AuditPostgres:
		connString := fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable",
			cfg.PostgresUser, cfg.PostgresPassword, cfg.PostgresHost, cfg.PostgresPort, cfg.PostgresDB)
		pool, err := pgxpool.New(ctx, connString)
		if err != nil {
			return nil, fmt.Errorf("connect to postgres: %w", err)
		}
		a.closers = append(a.closers, pool.Close)
		if err := postgres.Migrate(ctx, pool); err != nil {
			return nil, err
		}
		slog.Info("PostgreSQL connection pool established")
		return &auditStore{
			regions:  postgres.NewRegionRepo(pool),
			runs:     postgres.NewCrawlRunRepo(pool),
			searches: postgres.NewSearchLogRepo(pool),
		}, nil

	default:
		return nil, fmt.Errorf("unknown AUDIT_DRIVER %q", cfg.AuditDriver)
	}
}

func (a *App) upstream(cfg *config.Config) repository.UpstreamSource {
	if cfg.UpstreamMode == UpstreamBrowser {
		src := daangn.NewBrowserSource(cfg.BrowserPoolSize, cfg.UpstreamBaseURL, cfg.UpstreamTimeout)
		a.closers = append(a.closers, src.Close)
		slog.Info("Using headless browser upstream", "pool_size", cfg.BrowserPoolSize)
		return src
	}
	return daangn.NewHTTPSource(nil, cfg.UpstreamBaseURL, cfg.UpstreamTimeout, cfg.UpstreamMaxRPS)
}

// seedRegions loads the YAML seed file into the catalog. Existing ids are kept.
func (a *App) seedRegions(ctx context.Context, path string) error {
	if path == "" {
		return nil
	}
	regions, err := config.LoadRegions(path)
	if err != nil {
		return err
	}
	n, err := a.Catalog.BulkInsert(ctx, regions)
	if err != nil {
		return fmt.Errorf("seed regions: %w", err)
	}
	slog.Info("Region catalog seeded", "file", path, "inserted", n, "total", len(regions))
	return nil
}

// Close releases resources in reverse order of acquisition.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
