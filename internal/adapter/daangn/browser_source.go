package daangn

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"

	"github.com/user/listing-aggregator/internal/entity"
	"github.com/user/listing-aggregator/internal/repository"
)

// BrowserSource loads the data route in headless Chrome and returns the rendered body text.
// It is used when the plain HTTP client is blocked by the upstream.
type BrowserSource struct {
	allocatorPool *sync.Pool
	cancels       []context.CancelFunc
	mu            sync.Mutex
	baseURL       string
	timeout       time.Duration
}

// NewBrowserSource creates a browser-backed source with a pre-warmed pool of allocators.
func NewBrowserSource(poolSize int, baseURL string, pageLoadTimeout time.Duration) *BrowserSource {
	s := &BrowserSource{baseURL: baseURL, timeout: pageLoadTimeout}
	s.allocatorPool = &sync.Pool{
		New: func() interface{} {
			opts := append(chromedp.DefaultExecAllocatorOptions[:],
				chromedp.Flag("headless", true),
				chromedp.Flag("disable-gpu", true),
				chromedp.Flag("no-sandbox", true),
				chromedp.Flag("disable-dev-shm-usage", true),
				chromedp.UserAgent(userAgent),
			)
			allocCtx, cancel := chromedp.NewExecAllocator(context.Background(), opts...)
			s.mu.Lock()
			s.cancels = append(s.cancels, cancel)
			s.mu.Unlock()
			return allocCtx
		},
	}

	for i := 0; i < poolSize; i++ {
		allocCtx := s.allocatorPool.Get().(context.Context)
		s.allocatorPool.Put(allocCtx)
	}
	return s
}

func (s *BrowserSource) FetchRegion(ctx context.Context, region entity.Region) ([]byte, error) {
	allocCtx := s.allocatorPool.Get().(context.Context)
	defer s.allocatorPool.Put(allocCtx)

	taskCtx, cancel := chromedp.NewContext(allocCtx)
	defer cancel()

	taskCtx, cancelTimeout := context.WithTimeout(taskCtx, s.timeout)
	defer cancelTimeout()

	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	url := RegionURL(s.baseURL, region)
	started := time.Now()

	var body string
	err := chromedp.Run(taskCtx,
		network.Enable(),
		network.SetExtraHTTPHeaders(network.Headers{"Accept-Language": acceptLanguage}),
		chromedp.Navigate(url),
		chromedp.Evaluate(`document.body.innerText`, &body),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: browser: %v", repository.ErrUpstreamFetch, err)
	}

	slog.Debug("Browser fetch finished", "region", region.Name, "bytes", len(body), "elapsed", time.Since(started))
	return []byte(body), nil
}

// Close shuts down every browser process started by the pool.
func (s *BrowserSource) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, cancel := range s.cancels {
		cancel()
	}
	s.cancels = nil
}
