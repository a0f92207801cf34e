package repository

import (
	"context"
	"errors"

	"github.com/user/listing-aggregator/internal/entity"
)

var (
	// ErrUpstreamFetch marks transport failures and non-2xx upstream responses.
	ErrUpstreamFetch = errors.New("upstream fetch failed")
	// ErrUpstreamParse marks an upstream body that is not the expected JSON document.
	ErrUpstreamParse = errors.New("upstream response malformed")
)

// UpstreamSource retrieves the raw region-scoped listing document.
type UpstreamSource interface {
	FetchRegion(ctx context.Context, region entity.Region) ([]byte, error)
}
