package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/user/listing-aggregator/internal/entity"
	"github.com/user/listing-aggregator/internal/repository"
	"github.com/user/listing-aggregator/pkg/metrics"
)

const defaultRegionDelay = 2 * time.Second

var (
	ErrCatalogEmpty    = errors.New("region catalog is empty")
	ErrNoTargetRegions = errors.New("no catalog region matches the requested names")
	ErrRunInProgress   = errors.New("an ingestion run is already in progress")
)

// RegionLister is the slice of the region catalog the pipeline reads.
type RegionLister interface {
	GetAll(ctx context.Context) ([]entity.Region, error)
}

// IngestionPipeline refreshes store partitions from the upstream, one region at a time.
// Every entry point is single-flight: an overlapping call returns ErrRunInProgress.
type IngestionPipeline interface {
	// Run fetches the target regions and replaces each non-empty partition.
	Run(ctx context.Context, names ...string) (*entity.RunSummary, error)
	// RunWithLogging wraps Run in a CrawlRun record.
	RunWithLogging(ctx context.Context, names ...string) (*entity.RunSummary, error)
	// RunWithBackup snapshots every live partition first and restores them
	// when the run fails or ingests nothing. The snapshot is part of the
	// CrawlRun record, so a failed backup is logged as a failed run.
	RunWithBackup(ctx context.Context, names ...string) (*entity.RunSummary, error)
	Running() bool
}

// PipelineDeps lists the collaborators of the pipeline. Runs may be nil.
type PipelineDeps struct {
	Regions   RegionLister
	Fetcher   ListingFetcher
	Writer    repository.PartitionWriter
	Snapshots repository.SnapshotStore
	Runs      repository.CrawlRunRecorder
}

type ingestionPipeline struct {
	regions     RegionLister
	fetcher     ListingFetcher
	writer      repository.PartitionWriter
	snapshots   repository.SnapshotStore
	runs        repository.CrawlRunRecorder
	regionDelay time.Duration
	platform    entity.Platform

	running atomic.Bool
	sleep   func(ctx context.Context, d time.Duration) error
	now     func() time.Time
}

// NewIngestionPipeline creates a new instance of the ingestion pipeline use case.
// A negative regionDelay selects the default of two seconds.
func NewIngestionPipeline(deps PipelineDeps, regionDelay time.Duration) IngestionPipeline {
	return newIngestionPipeline(deps, regionDelay)
}

func newIngestionPipeline(deps PipelineDeps, regionDelay time.Duration) *ingestionPipeline {
	if regionDelay < 0 {
		regionDelay = defaultRegionDelay
	}
	return &ingestionPipeline{
		regions:     deps.Regions,
		fetcher:     deps.Fetcher,
		writer:      deps.Writer,
		snapshots:   deps.Snapshots,
		runs:        deps.Runs,
		regionDelay: regionDelay,
		platform:    entity.PlatformDaangn,
		sleep:       sleepContext,
		now:         time.Now,
	}
}

func (p *ingestionPipeline) Running() bool {
	return p.running.Load()
}

func (p *ingestionPipeline) acquire() error {
	if !p.running.CompareAndSwap(false, true) {
		metrics.CrawlRunsTotal.WithLabelValues("skipped").Inc()
		return ErrRunInProgress
	}
	return nil
}

func (p *ingestionPipeline) Run(ctx context.Context, names ...string) (*entity.RunSummary, error) {
	if err := p.acquire(); err != nil {
		return nil, err
	}
	defer p.running.Store(false)

	return p.run(ctx, names)
}

func (p *ingestionPipeline) RunWithLogging(ctx context.Context, names ...string) (*entity.RunSummary, error) {
	if err := p.acquire(); err != nil {
		return nil, err
	}
	defer p.running.Store(false)

	return p.runWithLogging(ctx, names)
}

func (p *ingestionPipeline) RunWithBackup(ctx context.Context, names ...string) (*entity.RunSummary, error) {
	if err := p.acquire(); err != nil {
		return nil, err
	}
	defer p.running.Store(false)

	started, runID := p.openRun(ctx)

	backups, err := p.snapshots.BackupAll(ctx)
	if err != nil {
		err = fmt.Errorf("failed to back up partitions: %w", err)
		if len(backups) > 0 {
			if _, delErr := p.snapshots.DeleteBackups(context.WithoutCancel(ctx)); delErr != nil {
				slog.Error("Failed to remove partial backups", "keys", len(backups), "error", delErr)
			}
		}
		metrics.CrawlRunsTotal.WithLabelValues("failed").Inc()
		p.closeRun(ctx, runID, started, nil, err)
		return nil, err
	}
	slog.Info("Backed up live partitions", "count", len(backups))

	summary, runErr := p.run(ctx, names)
	p.closeRun(ctx, runID, started, summary, runErr)
	if runErr != nil {
		// The caller's context may already be done; the restore must still run.
		restoreCtx := context.WithoutCancel(ctx)
		if _, err := p.rollback(restoreCtx); err != nil {
			slog.Error("Failed to restore partitions after run error", "run_error", runErr, "error", err)
		}
		return nil, runErr
	}

	if summary.TotalListings > 0 {
		if n, err := p.snapshots.DeleteBackups(ctx); err != nil {
			slog.Warn("Failed to delete backups after successful run", "error", err)
		} else {
			slog.Info("Committed run, backups removed", "count", n)
		}
		return summary, nil
	}

	slog.Warn("Run ingested no listings, restoring backups")
	if _, err := p.rollback(ctx); err != nil {
		return summary, fmt.Errorf("failed to restore partitions: %w", err)
	}
	summary.Success = false
	summary.RolledBack = true
	return summary, nil
}

func (p *ingestionPipeline) rollback(ctx context.Context) (int, error) {
	n, err := p.snapshots.RestoreFromBackup(ctx)
	if err != nil {
		return 0, err
	}
	metrics.RollbacksTotal.Inc()
	slog.Info("Restored partitions from backup", "count", n)
	return n, nil
}

func (p *ingestionPipeline) runWithLogging(ctx context.Context, names []string) (*entity.RunSummary, error) {
	started, runID := p.openRun(ctx)
	summary, runErr := p.run(ctx, names)
	p.closeRun(ctx, runID, started, summary, runErr)
	return summary, runErr
}

// openRun records a running CrawlRun. The returned id is empty when no record was opened.
func (p *ingestionPipeline) openRun(ctx context.Context) (time.Time, string) {
	started := p.now()
	if p.runs == nil {
		return started, ""
	}
	id, err := p.runs.Start(ctx, p.platform, started)
	if err != nil {
		slog.Error("Failed to open crawl run record, continuing without it", "error", err)
		return started, ""
	}
	return started, id
}

// closeRun moves the record to its terminal state: failed when runErr is set, completed otherwise.
func (p *ingestionPipeline) closeRun(ctx context.Context, runID string, started time.Time, summary *entity.RunSummary, runErr error) {
	if runID == "" {
		return
	}
	duration := p.now().Sub(started)
	logCtx := context.WithoutCancel(ctx)

	var err error
	if runErr != nil {
		err = p.runs.Fail(logCtx, runID, runErr.Error(), duration)
	} else {
		err = p.runs.Complete(logCtx, runID, entity.CrawlRun{
			TotalListings:   summary.TotalListings,
			NewListings:     summary.TotalListings,
			UpdatedListings: 0,
			ErrorCount:      len(summary.FailedRegions),
			Duration:        duration,
		})
	}
	if err != nil {
		slog.Error("Failed to close crawl run record", "run_id", runID, "error", err)
	}
}

func (p *ingestionPipeline) run(ctx context.Context, names []string) (*entity.RunSummary, error) {
	started := p.now()

	catalog, err := p.regions.GetAll(ctx)
	if err != nil {
		metrics.CrawlRunsTotal.WithLabelValues("failed").Inc()
		return nil, fmt.Errorf("failed to load region catalog: %w", err)
	}
	targets, err := selectTargets(catalog, names)
	if err != nil {
		metrics.CrawlRunsTotal.WithLabelValues("failed").Inc()
		return nil, err
	}

	slog.Info("Starting ingestion run", "regions", len(targets))

	summary := &entity.RunSummary{
		Regions:       make([]string, 0, len(targets)),
		FailedRegions: []string{},
	}
	for i, region := range targets {
		if i > 0 {
			if err := p.sleep(ctx, p.regionDelay); err != nil {
				metrics.CrawlRunsTotal.WithLabelValues("failed").Inc()
				return nil, fmt.Errorf("ingestion interrupted: %w", err)
			}
		}

		listings, err := p.fetcher.Fetch(ctx, region)
		if err != nil {
			slog.Error("Region fetch failed, excluding region", "region", region.Name, "error", err)
			summary.FailedRegions = append(summary.FailedRegions, region.Name)
			continue
		}
		if len(listings) == 0 {
			slog.Info("Region returned no listings, keeping existing partition", "region", region.Name)
			continue
		}

		if err := p.writer.WritePartition(ctx, region.Name, listings); err != nil {
			metrics.CrawlRunsTotal.WithLabelValues("failed").Inc()
			return nil, fmt.Errorf("failed to write partition %s: %w", region.Name, err)
		}
		metrics.ListingsIngestedTotal.WithLabelValues(region.Name).Add(float64(len(listings)))
		summary.TotalListings += len(listings)
		summary.Regions = append(summary.Regions, region.Name)
	}

	summary.Success = true
	summary.Duration = p.now().Sub(started)
	metrics.CrawlRunsTotal.WithLabelValues("completed").Inc()
	metrics.CrawlDuration.Observe(summary.Duration.Seconds())
	slog.Info("Ingestion run finished",
		"total_listings", summary.TotalListings,
		"regions", len(summary.Regions),
		"failed_regions", len(summary.FailedRegions),
		"duration", summary.Duration,
	)
	return summary, nil
}

// selectTargets keeps catalog order. An empty names list selects the whole catalog.
func selectTargets(catalog []entity.Region, names []string) ([]entity.Region, error) {
	if len(catalog) == 0 {
		return nil, ErrCatalogEmpty
	}

	wanted := make(map[string]struct{}, len(names))
	for _, n := range names {
		if n = strings.TrimSpace(n); n != "" {
			wanted[n] = struct{}{}
		}
	}
	if len(wanted) == 0 {
		return catalog, nil
	}

	targets := make([]entity.Region, 0, len(wanted))
	for _, r := range catalog {
		if _, ok := wanted[r.Name]; ok {
			targets = append(targets, r)
		}
	}
	if len(targets) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoTargetRegions, strings.Join(names, ", "))
	}
	return targets, nil
}
