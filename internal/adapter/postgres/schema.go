package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS areas (
		id VARCHAR(50) PRIMARY KEY,
		name VARCHAR(100) NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);`,
	`CREATE INDEX IF NOT EXISTS idx_areas_name ON areas(name);`,
	`CREATE TABLE IF NOT EXISTS crawling_logs (
		id UUID PRIMARY KEY,
		platform VARCHAR(50) NOT NULL,
		status VARCHAR(50) NOT NULL,
		total_products INTEGER NOT NULL DEFAULT 0 CHECK (total_products >= 0),
		new_products INTEGER NOT NULL DEFAULT 0 CHECK (new_products >= 0),
		updated_products INTEGER NOT NULL DEFAULT 0,
		error_count INTEGER NOT NULL DEFAULT 0,
		duration INTEGER CHECK (duration >= 0),
		error_message TEXT,
		started_at TIMESTAMPTZ NOT NULL,
		completed_at TIMESTAMPTZ
	);`,
	`CREATE INDEX IF NOT EXISTS idx_crawling_logs_platform_time ON crawling_logs(platform, started_at DESC);`,
	`CREATE INDEX IF NOT EXISTS idx_crawling_logs_status ON crawling_logs(status);`,
	`CREATE TABLE IF NOT EXISTS search_logs (
		id BIGSERIAL PRIMARY KEY,
		query VARCHAR(500) NOT NULL,
		filters JSONB,
		result_count INTEGER NOT NULL DEFAULT 0 CHECK (result_count >= 0),
		search_time NUMERIC(8,2) CHECK (search_time >= 0),
		user_ip VARCHAR(45),
		user_agent TEXT,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);`,
	`CREATE INDEX IF NOT EXISTS idx_search_logs_query_time ON search_logs(query, created_at DESC);`,
}

// Migrate creates the tables backing the region catalog and the audit logs.
func Migrate(ctx context.Context, db *pgxpool.Pool) error {
	for i, stmt := range schema {
		if _, err := db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migration step %d: %w", i, err)
		}
	}
	return nil
}
