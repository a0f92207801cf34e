package usecase

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"log/slog"
	"math"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"

	"github.com/user/listing-aggregator/internal/entity"
	"github.com/user/listing-aggregator/internal/repository"
	"github.com/user/listing-aggregator/pkg/metrics"
	"github.com/user/listing-aggregator/pkg/utils"
)

const (
	defaultFetchRetries    = 3
	defaultFetchRetryDelay = 5 * time.Second
)

// ErrRegionFetchFailed is returned once every attempt for a region has failed.
var ErrRegionFetchFailed = errors.New("region fetch failed")

// ListingFetcher retrieves and normalizes one region's listings.
type ListingFetcher interface {
	Fetch(ctx context.Context, region entity.Region) ([]entity.Listing, error)
}

// FetcherConfig tunes the retry policy. Zero values are taken literally:
// MaxRetries 0 makes a single attempt and RetryDelay 0 retries immediately.
// A negative value selects the default (3 retries, 5s apart); start from
// DefaultFetcherConfig to get both.
type FetcherConfig struct {
	// MaxRetries is the number of attempts after the first one.
	MaxRetries int
	RetryDelay time.Duration
	// BaseURL resolves relative article links.
	BaseURL string
}

func DefaultFetcherConfig() FetcherConfig {
	return FetcherConfig{MaxRetries: defaultFetchRetries, RetryDelay: defaultFetchRetryDelay}
}

type listingFetcher struct {
	source     repository.UpstreamSource
	maxRetries int
	retryDelay time.Duration
	baseURL    *url.URL
	sanitizer  *bluemonday.Policy
	now        func() time.Time
	sleep      func(ctx context.Context, d time.Duration) error
}

// NewListingFetcher creates a new instance of the listing fetcher use case.
func NewListingFetcher(source repository.UpstreamSource, cfg FetcherConfig) ListingFetcher {
	return newListingFetcher(source, cfg)
}

func newListingFetcher(source repository.UpstreamSource, cfg FetcherConfig) *listingFetcher {
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = defaultFetchRetries
	}
	if cfg.RetryDelay < 0 {
		cfg.RetryDelay = defaultFetchRetryDelay
	}
	base, err := url.Parse(cfg.BaseURL)
	if err != nil || cfg.BaseURL == "" {
		base, _ = url.Parse("https://www.daangn.com")
	}
	return &listingFetcher{
		source:     source,
		maxRetries: cfg.MaxRetries,
		retryDelay: cfg.RetryDelay,
		baseURL:    base,
		sanitizer:  bluemonday.StrictPolicy(),
		now:        time.Now,
		sleep:      sleepContext,
	}
}

// Fetch makes one attempt plus up to maxRetries retries with a fixed delay.
func (f *listingFetcher) Fetch(ctx context.Context, region entity.Region) ([]entity.Listing, error) {
	var lastErr error
	for attempt := 0; attempt <= f.maxRetries; attempt++ {
		if attempt > 0 {
			metrics.RegionFetchTotal.WithLabelValues("retry").Inc()
			slog.Warn("Retrying region fetch", "region", region.Name, "attempt", attempt, "max_retries", f.maxRetries, "error", lastErr)
			if err := f.sleep(ctx, f.retryDelay); err != nil {
				lastErr = err
				break
			}
		}

		body, err := f.source.FetchRegion(ctx, region)
		if err == nil {
			var listings []entity.Listing
			listings, err = f.normalize(body, region)
			if err == nil {
				metrics.RegionFetchTotal.WithLabelValues("success").Inc()
				slog.Info("Fetched region", "region", region.Name, "listings", len(listings), "attempt", attempt+1)
				return listings, nil
			}
		}
		lastErr = err
	}

	metrics.RegionFetchTotal.WithLabelValues("failed").Inc()
	return nil, fmt.Errorf("%w: %s: %w", ErrRegionFetchFailed, region.Name, lastErr)
}

type articleDocument struct {
	AllPage struct {
		FleamarketArticles []json.RawMessage `json:"fleamarketArticles"`
	} `json:"allPage"`
}

type rawArticle struct {
	ID        string          `json:"id"`
	Href      string          `json:"href"`
	Price     json.RawMessage `json:"price"`
	Title     string          `json:"title"`
	Thumbnail string          `json:"thumbnail"`
	Status    string          `json:"status"`
	Content   string          `json:"content"`
	CreatedAt string          `json:"createdAt"`
}

// normalize fails only when the body or its article array cannot be decoded.
// Individual articles that do not decode or map are skipped.
func (f *listingFetcher) normalize(body []byte, region entity.Region) ([]entity.Listing, error) {
	var doc articleDocument
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", repository.ErrUpstreamParse, err)
	}

	now := f.now()
	seen := make(map[string]struct{}, len(doc.AllPage.FleamarketArticles))
	listings := make([]entity.Listing, 0, len(doc.AllPage.FleamarketArticles))
	for i, raw := range doc.AllPage.FleamarketArticles {
		var a rawArticle
		if err := json.Unmarshal(raw, &a); err != nil {
			slog.Warn("Skipping undecodable article", "region", region.Name, "index", i, "error", err)
			continue
		}
		listing, ok := f.toListing(a, region, now)
		if !ok {
			slog.Warn("Skipping malformed article", "region", region.Name, "index", i, "id", a.ID)
			continue
		}
		if _, dup := seen[listing.ID]; dup {
			continue
		}
		seen[listing.ID] = struct{}{}
		listings = append(listings, listing)
	}
	return listings, nil
}

func (f *listingFetcher) toListing(a rawArticle, region entity.Region, now time.Time) (entity.Listing, bool) {
	title := strings.TrimSpace(a.Title)
	originalID := utils.LastPathSegment(a.Href)
	if originalID == "" {
		originalID = utils.LastPathSegment(a.ID)
	}
	if title == "" || originalID == "" {
		return entity.Listing{}, false
	}

	originalURL := a.Href
	if a.Href != "" {
		if abs, err := utils.ToAbsoluteURL(f.baseURL, a.Href); err == nil {
			originalURL = abs
		}
	}

	images := []string{}
	if a.Thumbnail != "" {
		images = append(images, a.Thumbnail)
	}

	createdAt := now
	if t, err := time.Parse(time.RFC3339Nano, strings.TrimSpace(a.CreatedAt)); err == nil {
		createdAt = t
	}

	return entity.Listing{
		ID:          entity.ListingID(entity.PlatformDaangn, originalID),
		Platform:    entity.PlatformDaangn,
		OriginalID:  originalID,
		Title:       title,
		Price:       parsePrice(a.Price),
		Description: strings.TrimSpace(html.UnescapeString(f.sanitizer.Sanitize(a.Content))),
		Location:    region.Name,
		OriginalURL: originalURL,
		ImageURLs:   images,
		Status:      mapStatus(a.Status),
		CreatedAt:   createdAt,
		UpdatedAt:   now,
	}, true
}

// parsePrice accepts a JSON number or numeric string and truncates the fraction.
// Anything else yields 0.
func parsePrice(raw json.RawMessage) int64 {
	s := string(bytes.Trim(bytes.TrimSpace(raw), `"`))
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return 0
	}
	return int64(v)
}

func mapStatus(s string) entity.ListingStatus {
	switch {
	case strings.EqualFold(s, "Sold"):
		return entity.StatusSold
	case strings.EqualFold(s, "Reserved"):
		return entity.StatusReserved
	default:
		return entity.StatusAvailable
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
