package gormstore

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/user/listing-aggregator/internal/entity"
)

type CrawlRunRepo struct {
	db *gorm.DB
}

func (r *CrawlRunRepo) Start(ctx context.Context, platform entity.Platform, startedAt time.Time) (string, error) {
	row := crawlRunModel{
		ID:        uuid.NewString(),
		Platform:  string(platform),
		Status:    string(entity.CrawlRunning),
		StartedAt: startedAt,
	}
	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		return "", fmt.Errorf("start crawl run: %w", err)
	}
	return row.ID, nil
}

func (r *CrawlRunRepo) Complete(ctx context.Context, id string, run entity.CrawlRun) error {
	now := time.Now()
	return r.finish(ctx, id, map[string]any{
		"status":           string(entity.CrawlCompleted),
		"total_products":   run.TotalListings,
		"new_products":     run.NewListings,
		"updated_products": run.UpdatedListings,
		"error_count":      run.ErrorCount,
		"duration":         int(run.Duration.Seconds()),
		"completed_at":     &now,
	})
}

func (r *CrawlRunRepo) Fail(ctx context.Context, id string, message string, duration time.Duration) error {
	now := time.Now()
	return r.finish(ctx, id, map[string]any{
		"status":        string(entity.CrawlFailed),
		"error_message": message,
		"duration":      int(duration.Seconds()),
		"completed_at":  &now,
	})
}

// finish applies a terminal transition only to a row that is still running.
func (r *CrawlRunRepo) finish(ctx context.Context, id string, updates map[string]any) error {
	tx := r.db.WithContext(ctx).Model(&crawlRunModel{}).
		Where("id = ? AND status = ?", id, string(entity.CrawlRunning)).
		Updates(updates)
	if tx.Error != nil {
		return fmt.Errorf("finish crawl run: %w", tx.Error)
	}
	if tx.RowsAffected == 0 {
		return fmt.Errorf("crawl run %s is not running", id)
	}
	return nil
}

func (r *CrawlRunRepo) Recent(ctx context.Context, limit int) ([]entity.CrawlRun, error) {
	var rows []crawlRunModel
	if err := r.db.WithContext(ctx).Order("started_at DESC").Limit(limit).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list crawl runs: %w", err)
	}
	runs := make([]entity.CrawlRun, 0, len(rows))
	for _, row := range rows {
		runs = append(runs, entity.CrawlRun{
			ID:              row.ID,
			Platform:        entity.Platform(row.Platform),
			Status:          entity.CrawlRunStatus(row.Status),
			TotalListings:   row.TotalProducts,
			NewListings:     row.NewProducts,
			UpdatedListings: row.UpdatedProducts,
			ErrorCount:      row.ErrorCount,
			Duration:        time.Duration(row.Duration) * time.Second,
			ErrorMessage:    row.ErrorMessage,
			StartedAt:       row.StartedAt,
			CompletedAt:     row.CompletedAt,
		})
	}
	return runs, nil
}

func (r *CrawlRunRepo) Stats(ctx context.Context, since time.Time) (*entity.CrawlRunStats, error) {
	var rows []crawlRunModel
	if err := r.db.WithContext(ctx).Where("started_at >= ?", since).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("crawl run stats: %w", err)
	}

	stats := &entity.CrawlRunStats{TotalRuns: len(rows)}
	completed, durationSum := 0, 0
	for _, row := range rows {
		if row.Status != string(entity.CrawlCompleted) {
			continue
		}
		completed++
		durationSum += row.Duration
		stats.TotalListings += row.TotalProducts
	}
	if stats.TotalRuns > 0 {
		stats.SuccessRate = float64(completed) * 100 / float64(stats.TotalRuns)
	}
	if completed > 0 {
		stats.AverageDuration = float64(durationSum) / float64(completed)
	}
	return stats, nil
}
