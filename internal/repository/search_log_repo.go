package repository

import (
	"context"
	"time"

	"github.com/user/listing-aggregator/internal/entity"
)

// SearchLogSink is the append-only write contract for search audit records.
type SearchLogSink interface {
	Save(ctx context.Context, log entity.SearchLog) error
}

type SearchLogRepository interface {
	SearchLogSink
	Recent(ctx context.Context, limit int) ([]entity.SearchLog, error)
	// Popular groups searches since the given time by query text, most frequent first.
	Popular(ctx context.Context, since time.Time, limit int) ([]entity.PopularSearch, error)
}
