package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/user/listing-aggregator/internal/entity"
)

// CrawlRunRepoImpl records ingestion runs in the crawling_logs table.
type CrawlRunRepoImpl struct {
	db *pgxpool.Pool
}

// NewCrawlRunRepo creates a new instance of CrawlRunRepoImpl.
func NewCrawlRunRepo(db *pgxpool.Pool) *CrawlRunRepoImpl {
	return &CrawlRunRepoImpl{db: db}
}

func (r *CrawlRunRepoImpl) Start(ctx context.Context, platform entity.Platform, startedAt time.Time) (string, error) {
	id := uuid.NewString()
	query := `
		INSERT INTO crawling_logs (id, platform, status, started_at)
		VALUES ($1, $2, $3, $4);
	`
	if _, err := r.db.Exec(ctx, query, id, string(platform), string(entity.CrawlRunning), startedAt); err != nil {
		return "", err
	}
	return id, nil
}

// Complete moves a running row to completed. Rows already terminal are left alone.
func (r *CrawlRunRepoImpl) Complete(ctx context.Context, id string, run entity.CrawlRun) error {
	query := `
		UPDATE crawling_logs SET
			status = $2,
			total_products = $3,
			new_products = $4,
			updated_products = $5,
			error_count = $6,
			duration = $7,
			completed_at = NOW()
		WHERE id = $1 AND status = $8;
	`
	tag, err := r.db.Exec(ctx, query,
		id,
		string(entity.CrawlCompleted),
		run.TotalListings,
		run.NewListings,
		run.UpdatedListings,
		run.ErrorCount,
		int(run.Duration.Seconds()),
		string(entity.CrawlRunning),
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("crawl run %s is not running", id)
	}
	return nil
}

func (r *CrawlRunRepoImpl) Fail(ctx context.Context, id string, message string, duration time.Duration) error {
	query := `
		UPDATE crawling_logs SET
			status = $2,
			error_message = $3,
			duration = $4,
			completed_at = NOW()
		WHERE id = $1 AND status = $5;
	`
	tag, err := r.db.Exec(ctx, query, id, string(entity.CrawlFailed), message, int(duration.Seconds()), string(entity.CrawlRunning))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("crawl run %s is not running", id)
	}
	return nil
}

func (r *CrawlRunRepoImpl) Recent(ctx context.Context, limit int) ([]entity.CrawlRun, error) {
	query := `
		SELECT id::text, platform, status, total_products, new_products, updated_products, error_count,
		       COALESCE(duration, 0), COALESCE(error_message, ''), started_at, completed_at
		FROM crawling_logs
		ORDER BY started_at DESC
		LIMIT $1;
	`
	rows, err := r.db.Query(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []entity.CrawlRun
	for rows.Next() {
		var (
			run      entity.CrawlRun
			platform string
			status   string
			seconds  int
		)
		if err := rows.Scan(
			&run.ID,
			&platform,
			&status,
			&run.TotalListings,
			&run.NewListings,
			&run.UpdatedListings,
			&run.ErrorCount,
			&seconds,
			&run.ErrorMessage,
			&run.StartedAt,
			&run.CompletedAt,
		); err != nil {
			return nil, err
		}
		run.Platform = entity.Platform(platform)
		run.Status = entity.CrawlRunStatus(status)
		run.Duration = time.Duration(seconds) * time.Second
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// Stats aggregates runs started since the given time.
func (r *CrawlRunRepoImpl) Stats(ctx context.Context, since time.Time) (*entity.CrawlRunStats, error) {
	query := `
		SELECT
			COUNT(*),
			COALESCE(AVG(CASE WHEN status = 'completed' THEN 100.0 ELSE 0 END), 0),
			COALESCE(AVG(duration) FILTER (WHERE status = 'completed'), 0),
			COALESCE(SUM(total_products) FILTER (WHERE status = 'completed'), 0)
		FROM crawling_logs
		WHERE started_at >= $1;
	`
	var stats entity.CrawlRunStats
	err := r.db.QueryRow(ctx, query, since).Scan(
		&stats.TotalRuns,
		&stats.SuccessRate,
		&stats.AverageDuration,
		&stats.TotalListings,
	)
	if err != nil {
		return nil, err
	}
	return &stats, nil
}
