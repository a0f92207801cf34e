package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/user/listing-aggregator/internal/entity"
	"github.com/user/listing-aggregator/internal/repository"
)

// RegionCatalog manages the set of regions the pipeline crawls.
type RegionCatalog interface {
	Insert(ctx context.Context, region entity.Region) error
	// BulkInsert inserts each region independently and returns how many succeeded.
	BulkInsert(ctx context.Context, regions []entity.Region) (int, error)
	GetAll(ctx context.Context) ([]entity.Region, error)
	GetByID(ctx context.Context, id string) (*entity.Region, error)
	GetByName(ctx context.Context, name string) (*entity.Region, error)
	Delete(ctx context.Context, id string) (bool, error)
	DeleteAll(ctx context.Context) (int64, error)
	Count(ctx context.Context) (int, error)
}

type regionCatalog struct {
	repo repository.RegionRepository
}

// NewRegionCatalog creates a new instance of the region catalog use case.
func NewRegionCatalog(repo repository.RegionRepository) RegionCatalog {
	return &regionCatalog{repo: repo}
}

func (uc *regionCatalog) Insert(ctx context.Context, region entity.Region) error {
	region.ID = strings.TrimSpace(region.ID)
	region.Name = strings.TrimSpace(region.Name)
	if region.ID == "" || region.Name == "" {
		return fmt.Errorf("region id and name are required")
	}
	if err := uc.repo.Insert(ctx, region); err != nil {
		return fmt.Errorf("failed to insert region %s: %w", region.ID, err)
	}
	return nil
}

func (uc *regionCatalog) BulkInsert(ctx context.Context, regions []entity.Region) (int, error) {
	inserted := 0
	for _, region := range regions {
		if err := ctx.Err(); err != nil {
			return inserted, err
		}
		if err := uc.Insert(ctx, region); err != nil {
			slog.Error("Failed to insert region, continuing", "region_id", region.ID, "region", region.Name, "error", err)
			continue
		}
		inserted++
	}
	slog.Info("Bulk region insert finished", "inserted", inserted, "requested", len(regions))
	return inserted, nil
}

func (uc *regionCatalog) GetAll(ctx context.Context) ([]entity.Region, error) {
	regions, err := uc.repo.GetAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list regions: %w", err)
	}
	return regions, nil
}

func (uc *regionCatalog) GetByID(ctx context.Context, id string) (*entity.Region, error) {
	return uc.repo.GetByID(ctx, id)
}

func (uc *regionCatalog) GetByName(ctx context.Context, name string) (*entity.Region, error) {
	return uc.repo.GetByName(ctx, name)
}

func (uc *regionCatalog) Delete(ctx context.Context, id string) (bool, error) {
	deleted, err := uc.repo.Delete(ctx, id)
	if err != nil {
		return false, fmt.Errorf("failed to delete region %s: %w", id, err)
	}
	return deleted, nil
}

func (uc *regionCatalog) DeleteAll(ctx context.Context) (int64, error) {
	n, err := uc.repo.DeleteAll(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to delete regions: %w", err)
	}
	return n, nil
}

func (uc *regionCatalog) Count(ctx context.Context) (int, error) {
	n, err := uc.repo.Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to count regions: %w", err)
	}
	return n, nil
}
