package repository

import (
	"context"
	"errors"

	"github.com/user/listing-aggregator/internal/entity"
)

var ErrRegionNotFound = errors.New("region not found")

// RegionRepository defines persistent storage for crawl targets.
type RegionRepository interface {
	// Insert stores a region. Inserting an existing id is a no-op.
	Insert(ctx context.Context, region entity.Region) error
	// GetAll returns every region ordered by name.
	GetAll(ctx context.Context) ([]entity.Region, error)
	GetByID(ctx context.Context, id string) (*entity.Region, error)
	GetByName(ctx context.Context, name string) (*entity.Region, error)
	Count(ctx context.Context) (int, error)
	// Delete removes a region and reports whether it existed.
	Delete(ctx context.Context, id string) (bool, error)
	DeleteAll(ctx context.Context) (int64, error)
}
