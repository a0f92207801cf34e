package repository

import (
	"context"
	"time"

	"github.com/user/listing-aggregator/internal/entity"
)

// CrawlRunRecorder is the write contract of the ingestion audit sink.
type CrawlRunRecorder interface {
	// Start opens a run in the running state and returns its id.
	Start(ctx context.Context, platform entity.Platform, startedAt time.Time) (string, error)
	Complete(ctx context.Context, id string, run entity.CrawlRun) error
	Fail(ctx context.Context, id string, message string, duration time.Duration) error
}

// CrawlRunRepository adds history queries on top of the recorder.
type CrawlRunRepository interface {
	CrawlRunRecorder
	Recent(ctx context.Context, limit int) ([]entity.CrawlRun, error)
	Stats(ctx context.Context, since time.Time) (*entity.CrawlRunStats, error)
}
