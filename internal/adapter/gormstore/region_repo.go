package gormstore

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/user/listing-aggregator/internal/entity"
	"github.com/user/listing-aggregator/internal/repository"
)

type RegionRepo struct {
	db *gorm.DB
}

// Insert adds a region; an existing id is left as is.
func (r *RegionRepo) Insert(ctx context.Context, region entity.Region) error {
	row := regionModel{ID: region.ID, Name: region.Name}
	if err := r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&row).Error; err != nil {
		return fmt.Errorf("insert region: %w", err)
	}
	return nil
}

func (r *RegionRepo) GetAll(ctx context.Context) ([]entity.Region, error) {
	var rows []regionModel
	if err := r.db.WithContext(ctx).Order("name").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list regions: %w", err)
	}
	regions := make([]entity.Region, 0, len(rows))
	for _, row := range rows {
		regions = append(regions, toRegion(row))
	}
	return regions, nil
}

func (r *RegionRepo) GetByID(ctx context.Context, id string) (*entity.Region, error) {
	return r.first(ctx, "id = ?", id)
}

func (r *RegionRepo) GetByName(ctx context.Context, name string) (*entity.Region, error) {
	return r.first(ctx, "name = ?", name)
}

func (r *RegionRepo) first(ctx context.Context, cond string, arg string) (*entity.Region, error) {
	var row regionModel
	err := r.db.WithContext(ctx).Where(cond, arg).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, repository.ErrRegionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get region: %w", err)
	}
	region := toRegion(row)
	return &region, nil
}

func (r *RegionRepo) Count(ctx context.Context) (int, error) {
	var n int64
	if err := r.db.WithContext(ctx).Model(&regionModel{}).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("count regions: %w", err)
	}
	return int(n), nil
}

func (r *RegionRepo) Delete(ctx context.Context, id string) (bool, error) {
	tx := r.db.WithContext(ctx).Delete(&regionModel{}, "id = ?", id)
	if tx.Error != nil {
		return false, fmt.Errorf("delete region: %w", tx.Error)
	}
	return tx.RowsAffected > 0, nil
}

func (r *RegionRepo) DeleteAll(ctx context.Context) (int64, error) {
	tx := r.db.WithContext(ctx).Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&regionModel{})
	if tx.Error != nil {
		return 0, fmt.Errorf("delete regions: %w", tx.Error)
	}
	return tx.RowsAffected, nil
}

func toRegion(row regionModel) entity.Region {
	return entity.Region{ID: row.ID, Name: row.Name, CreatedAt: row.CreatedAt}
}
