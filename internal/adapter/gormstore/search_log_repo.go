package gormstore

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/user/listing-aggregator/internal/entity"
)

type SearchLogRepo struct {
	db *gorm.DB
}

func (r *SearchLogRepo) Save(ctx context.Context, log entity.SearchLog) error {
	filters, err := json.Marshal(log.Filters)
	if err != nil {
		return fmt.Errorf("encode filters: %w", err)
	}
	row := searchLogModel{
		Query:       log.Query,
		Filters:     datatypes.JSON(filters),
		ResultCount: log.ResultCount,
		SearchTime:  math.Round(log.SearchTime.Seconds()*100) / 100,
		UserIP:      log.ClientIP,
		UserAgent:   log.UserAgent,
		CreatedAt:   log.CreatedAt,
	}
	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("save search log: %w", err)
	}
	return nil
}

func (r *SearchLogRepo) Recent(ctx context.Context, limit int) ([]entity.SearchLog, error) {
	var rows []searchLogModel
	if err := r.db.WithContext(ctx).Order("created_at DESC, id DESC").Limit(limit).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list search logs: %w", err)
	}
	logs := make([]entity.SearchLog, 0, len(rows))
	for _, row := range rows {
		l := entity.SearchLog{
			ID:          row.ID,
			Query:       row.Query,
			ResultCount: row.ResultCount,
			SearchTime:  time.Duration(math.Round(row.SearchTime*1000)) * time.Millisecond,
			ClientIP:    row.UserIP,
			UserAgent:   row.UserAgent,
			CreatedAt:   row.CreatedAt,
		}
		if len(row.Filters) > 0 {
			if err := json.Unmarshal(row.Filters, &l.Filters); err != nil {
				return nil, fmt.Errorf("decode filters: %w", err)
			}
		}
		logs = append(logs, l)
	}
	return logs, nil
}

func (r *SearchLogRepo) Popular(ctx context.Context, since time.Time, limit int) ([]entity.PopularSearch, error) {
	var popular []entity.PopularSearch
	err := r.db.WithContext(ctx).Model(&searchLogModel{}).
		Select("query, COUNT(*) AS count").
		Where("created_at >= ?", since).
		Group("query").
		Order("count DESC, query").
		Limit(limit).
		Scan(&popular).Error
	if err != nil {
		return nil, fmt.Errorf("popular searches: %w", err)
	}
	return popular, nil
}
