package daangn

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/user/listing-aggregator/internal/entity"
	"github.com/user/listing-aggregator/internal/repository"
)

const maxBodyBytes = 16 << 20

// HTTPSource fetches the data route with a plain HTTP client.
// All requests, retries included, share one rate limiter.
type HTTPSource struct {
	client  *http.Client
	baseURL string
	lim     *rate.Limiter
}

// NewHTTPSource creates an HTTPSource. A nil client gets one with the given timeout.
// maxRPS <= 0 disables request pacing.
func NewHTTPSource(client *http.Client, baseURL string, timeout time.Duration, maxRPS float64) *HTTPSource {
	if client == nil {
		client = &http.Client{Timeout: timeout}
	}
	limit := rate.Inf
	if maxRPS > 0 {
		limit = rate.Limit(maxRPS)
	}
	return &HTTPSource{client: client, baseURL: baseURL, lim: rate.NewLimiter(limit, 1)}
}

func (s *HTTPSource) FetchRegion(ctx context.Context, region entity.Region) ([]byte, error) {
	if err := s.lim.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%w: %v", repository.ErrUpstreamFetch, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, RegionURL(s.baseURL, region), nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "*/*")
	req.Header.Set("Accept-Language", acceptLanguage)
	req.Header.Set("User-Agent", userAgent)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", repository.ErrUpstreamFetch, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: status %d", repository.ErrUpstreamFetch, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %v", repository.ErrUpstreamFetch, err)
	}
	return body, nil
}
