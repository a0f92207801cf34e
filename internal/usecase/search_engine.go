package usecase

import (
	"context"
	"log/slog"
	"time"

	"github.com/user/listing-aggregator/internal/entity"
	"github.com/user/listing-aggregator/internal/repository"
	"github.com/user/listing-aggregator/pkg/metrics"
	"github.com/user/listing-aggregator/pkg/utils"
)

const searchLogTimeout = 5 * time.Second

// SearchEngine filters the live corpus by free text and structured filters.
type SearchEngine interface {
	Search(ctx context.Context, query entity.SearchQuery, client entity.ClientMeta) (*entity.SearchResult, error)
	// Corpus returns every live listing, or an empty slice when the store is unavailable.
	Corpus(ctx context.Context) []entity.Listing
}

type searchEngine struct {
	corpus repository.CorpusReader
	logs   repository.SearchLogSink
	now    func() time.Time
}

// NewSearchEngine creates a new instance of the search engine use case. logs may be nil.
func NewSearchEngine(corpus repository.CorpusReader, logs repository.SearchLogSink) SearchEngine {
	return &searchEngine{corpus: corpus, logs: logs, now: time.Now}
}

func (s *searchEngine) Corpus(ctx context.Context) []entity.Listing {
	listings, err := s.corpus.ReadAll(ctx)
	if err != nil {
		slog.Error("Failed to read listing corpus, serving empty result", "error", err)
		return []entity.Listing{}
	}
	return listings
}

func (s *searchEngine) Search(ctx context.Context, query entity.SearchQuery, client entity.ClientMeta) (*entity.SearchResult, error) {
	started := s.now()

	matches := FilterListings(s.Corpus(ctx), query)

	elapsed := s.now().Sub(started)
	metrics.SearchDuration.Observe(elapsed.Seconds())

	s.recordSearch(ctx, entity.SearchLog{
		Query:       query.Text,
		Filters:     query.Filters,
		ResultCount: len(matches),
		SearchTime:  elapsed,
		ClientIP:    client.IP,
		UserAgent:   client.UserAgent,
		CreatedAt:   started,
	})

	return &entity.SearchResult{
		TotalCount: len(matches),
		SearchTime: elapsed,
		Listings:   matches,
	}, nil
}

// recordSearch writes the audit record in the background; failures are only logged.
func (s *searchEngine) recordSearch(ctx context.Context, log entity.SearchLog) {
	if s.logs == nil {
		return
	}
	go func() {
		logCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), searchLogTimeout)
		defer cancel()
		if err := s.logs.Save(logCtx, log); err != nil {
			slog.Warn("Failed to save search log", "query", log.Query, "error", err)
		}
	}()
}

// FilterListings applies the text match and then each filter in turn, preserving corpus order.
func FilterListings(listings []entity.Listing, query entity.SearchQuery) []entity.Listing {
	text := utils.NormalizeQuery(query.Text)
	f := query.Filters

	var locations map[string]struct{}
	if len(f.Locations) > 0 {
		locations = make(map[string]struct{}, len(f.Locations))
		for _, l := range f.Locations {
			locations[l] = struct{}{}
		}
	}

	out := make([]entity.Listing, 0)
	for _, l := range listings {
		if text != "" && !utils.ContainsFold(l.Title, text) && !utils.ContainsFold(l.Description, text) {
			continue
		}
		if locations != nil {
			if _, ok := locations[l.Location]; !ok {
				continue
			}
		}
		if pr := f.PriceRange; pr != nil {
			if pr.Min != nil && l.Price < *pr.Min {
				continue
			}
			if pr.Max != nil && l.Price > *pr.Max {
				continue
			}
		}
		if f.TradeMethod != "" && l.TradeMethod != f.TradeMethod {
			continue
		}
		if f.Status != "" && l.Status != f.Status {
			continue
		}
		if f.Platform != "" && l.Platform != f.Platform {
			continue
		}
		out = append(out, l)
	}
	return out
}
