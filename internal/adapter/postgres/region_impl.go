package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/user/listing-aggregator/internal/entity"
	"github.com/user/listing-aggregator/internal/repository"
)

// RegionRepoImpl provides a concrete implementation for the RegionRepository interface using PostgreSQL.
type RegionRepoImpl struct {
	db *pgxpool.Pool
}

// NewRegionRepo creates a new instance of RegionRepoImpl.
func NewRegionRepo(db *pgxpool.Pool) *RegionRepoImpl {
	return &RegionRepoImpl{db: db}
}

// Insert adds a region, ignoring duplicates of an existing id.
func (r *RegionRepoImpl) Insert(ctx context.Context, region entity.Region) error {
	query := `
		INSERT INTO areas (id, name)
		VALUES ($1, $2)
		ON CONFLICT (id) DO NOTHING;
	`
	_, err := r.db.Exec(ctx, query, region.ID, region.Name)
	return err
}

func (r *RegionRepoImpl) GetAll(ctx context.Context) ([]entity.Region, error) {
	rows, err := r.db.Query(ctx, `SELECT id, name, created_at FROM areas ORDER BY name;`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var regions []entity.Region
	for rows.Next() {
		var region entity.Region
		if err := rows.Scan(&region.ID, &region.Name, &region.CreatedAt); err != nil {
			return nil, err
		}
		regions = append(regions, region)
	}
	return regions, rows.Err()
}

func (r *RegionRepoImpl) GetByID(ctx context.Context, id string) (*entity.Region, error) {
	return r.getOne(ctx, `SELECT id, name, created_at FROM areas WHERE id = $1;`, id)
}

func (r *RegionRepoImpl) GetByName(ctx context.Context, name string) (*entity.Region, error) {
	return r.getOne(ctx, `SELECT id, name, created_at FROM areas WHERE name = $1 LIMIT 1;`, name)
}

func (r *RegionRepoImpl) getOne(ctx context.Context, query string, arg string) (*entity.Region, error) {
	var region entity.Region
	err := r.db.QueryRow(ctx, query, arg).Scan(&region.ID, &region.Name, &region.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, repository.ErrRegionNotFound
	}
	if err != nil {
		return nil, err
	}
	return &region, nil
}

func (r *RegionRepoImpl) Count(ctx context.Context) (int, error) {
	var n int
	err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM areas;`).Scan(&n)
	return n, err
}

func (r *RegionRepoImpl) Delete(ctx context.Context, id string) (bool, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM areas WHERE id = $1;`, id)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (r *RegionRepoImpl) DeleteAll(ctx context.Context) (int64, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM areas;`)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
