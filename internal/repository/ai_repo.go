package repository

import (
	"context"
	"errors"
	"time"

	"github.com/user/listing-aggregator/internal/entity"
)

// Completer sends a prompt to a text-completion backend.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// Embedder turns text into a fixed-length vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float64, error)
}

// AnalysisCache stores full ranking responses keyed by normalized query and corpus size.
type AnalysisCache interface {
	// Get returns (nil, false, nil) on a miss.
	Get(ctx context.Context, query string, corpusSize int) (*entity.Analysis, bool, error)
	Set(ctx context.Context, query string, corpusSize int, analysis *entity.Analysis, ttl time.Duration) error
	Clear(ctx context.Context) (int, error)
	Count(ctx context.Context) (int, error)
}

// ErrAIBackend marks a failed or empty response from the completion or embedding backend.
var ErrAIBackend = errors.New("ai backend failed")
