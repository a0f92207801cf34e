package postgres

import (
	"context"
	"encoding/json"
	"math"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/user/listing-aggregator/internal/entity"
)

// SearchLogRepoImpl appends search audit records to search_logs.
type SearchLogRepoImpl struct {
	db *pgxpool.Pool
}

// NewSearchLogRepo creates a new instance of SearchLogRepoImpl.
func NewSearchLogRepo(db *pgxpool.Pool) *SearchLogRepoImpl {
	return &SearchLogRepoImpl{db: db}
}

func (r *SearchLogRepoImpl) Save(ctx context.Context, log entity.SearchLog) error {
	filtersJSON, err := json.Marshal(log.Filters)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO search_logs (query, filters, result_count, search_time, user_ip, user_agent)
		VALUES ($1, $2, $3, $4, $5, $6);
	`
	_, err = r.db.Exec(ctx, query,
		log.Query,
		filtersJSON,
		log.ResultCount,
		roundSeconds(log.SearchTime),
		log.ClientIP,
		log.UserAgent,
	)
	return err
}

func (r *SearchLogRepoImpl) Recent(ctx context.Context, limit int) ([]entity.SearchLog, error) {
	query := `
		SELECT id, query, COALESCE(filters, '{}'::jsonb), result_count, COALESCE(search_time, 0)::float8,
		       COALESCE(user_ip, ''), COALESCE(user_agent, ''), created_at
		FROM search_logs
		ORDER BY created_at DESC
		LIMIT $1;
	`
	rows, err := r.db.Query(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var logs []entity.SearchLog
	for rows.Next() {
		var (
			l           entity.SearchLog
			filtersJSON []byte
			seconds     float64
		)
		if err := rows.Scan(&l.ID, &l.Query, &filtersJSON, &l.ResultCount, &seconds, &l.ClientIP, &l.UserAgent, &l.CreatedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(filtersJSON, &l.Filters); err != nil {
			return nil, err
		}
		l.SearchTime = time.Duration(math.Round(seconds*1000)) * time.Millisecond
		logs = append(logs, l)
	}
	return logs, rows.Err()
}

func (r *SearchLogRepoImpl) Popular(ctx context.Context, since time.Time, limit int) ([]entity.PopularSearch, error) {
	query := `
		SELECT query, COUNT(*) AS cnt
		FROM search_logs
		WHERE created_at >= $1
		GROUP BY query
		ORDER BY cnt DESC, query
		LIMIT $2;
	`
	rows, err := r.db.Query(ctx, query, since, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var popular []entity.PopularSearch
	for rows.Next() {
		var p entity.PopularSearch
		if err := rows.Scan(&p.Query, &p.Count); err != nil {
			return nil, err
		}
		popular = append(popular, p)
	}
	return popular, rows.Err()
}

// roundSeconds converts a duration to seconds with two decimals.
func roundSeconds(d time.Duration) float64 {
	return math.Round(d.Seconds()*100) / 100
}
