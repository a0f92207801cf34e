package usecase

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/user/listing-aggregator/internal/entity"
	"github.com/user/listing-aggregator/internal/repository"
)

type stubSource struct {
	mu        sync.Mutex
	responses []sourceResponse
	calls     int
}

type sourceResponse struct {
	body string
	err  error
}

func (s *stubSource) FetchRegion(context.Context, entity.Region) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.calls
	s.calls++
	if i >= len(s.responses) {
		i = len(s.responses) - 1
	}
	r := s.responses[i]
	return []byte(r.body), r.err
}

const threeArticles = `{"allPage":{"fleamarketArticles":[
 {"id":"/kr/buy-sell/phone-a1/","href":"https://www.daangn.com/kr/buy-sell/phone-a1/","price":"15000.0","title":"아이폰 13","thumbnail":"https://img/1.jpg","status":"Ongoing","content":"<p>깨끗한 <b>아이폰</b> &amp; 케이스</p>","createdAt":"2025-10-14T11:32:01.451+09:00"},
 {"id":"/kr/buy-sell/bag-b2/","href":"/kr/buy-sell/bag-b2/","price":"abc","title":"가방","status":"Ongoing","createdAt":"not a date"},
 {"id":"/kr/buy-sell/desk-c3/","href":"https://www.daangn.com/kr/buy-sell/desk-c3/","price":"7000.9","title":"책상","status":"Sold","content":"","createdAt":"2025-10-13T09:00:00Z"}
]}}`

func newTestFetcher(src repository.UpstreamSource, retries int) *listingFetcher {
	f := newListingFetcher(src, FetcherConfig{MaxRetries: retries, RetryDelay: time.Second, BaseURL: "https://www.daangn.com"})
	f.sleep = noSleep
	return f
}

func TestListingFetcherNormalizes(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 10, 15, 0, 0, 0, 0, time.UTC)
	f := newTestFetcher(&stubSource{responses: []sourceResponse{{body: threeArticles}}}, 3)
	f.now = func() time.Time { return now }

	got, err := f.Fetch(context.Background(), entity.Region{ID: "6035", Name: "Yeoksam"})
	if err != nil {
		t.Fatalf("Fetch error: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 listings, got %d", len(got))
	}

	first := got[0]
	if first.ID != "daangn:phone-a1" || first.OriginalID != "phone-a1" {
		t.Fatalf("unexpected ids: %q %q", first.ID, first.OriginalID)
	}
	if first.Price != 15000 || first.Location != "Yeoksam" || first.Status != entity.StatusAvailable {
		t.Fatalf("unexpected listing: %+v", first)
	}
	if first.Description != "깨끗한 아이폰 & 케이스" {
		t.Fatalf("expected stripped description, got %q", first.Description)
	}
	if len(first.ImageURLs) != 1 || first.UpdatedAt != now {
		t.Fatalf("unexpected images or updatedAt: %+v", first)
	}
	if first.CreatedAt.UTC() != time.Date(2025, 10, 14, 2, 32, 1, 451000000, time.UTC) {
		t.Fatalf("unexpected createdAt %v", first.CreatedAt)
	}

	second := got[1]
	if second.Price != 0 || !second.CreatedAt.Equal(now) {
		t.Fatalf("expected fallbacks for price and createdAt, got %+v", second)
	}
	if second.OriginalURL != "https://www.daangn.com/kr/buy-sell/bag-b2/" {
		t.Fatalf("expected absolute URL, got %q", second.OriginalURL)
	}
	if len(second.ImageURLs) != 0 {
		t.Fatalf("expected no images, got %v", second.ImageURLs)
	}

	if got[2].Price != 7000 || got[2].Status != entity.StatusSold {
		t.Fatalf("unexpected third listing: %+v", got[2])
	}
}

func TestListingFetcherSkipsMalformedAndDuplicates(t *testing.T) {
	t.Parallel()

	body := `{"allPage":{"fleamarketArticles":[
	 {"id":"x","href":"/kr/buy-sell/a-1/","title":"one","price":1000},
	 {"id":"y","href":"/kr/buy-sell/a-1/","title":"one again","price":"2000"},
	 {"id":"","href":"","title":"no id"},
	 {"id":"z","href":"/kr/buy-sell/z-9/","title":"   "},
	 {"id":"w","title":"id only","status":"Reserved"},
	 {"id":"n","href":"/kr/buy-sell/n-2/","title":12345},
	 {"id":"p","href":"/kr/buy-sell/p-3/","title":"object price","price":{"amount":1}},
	 {"id":7,"href":["/kr/buy-sell/q-4/"],"title":"bad types"},
	 null,
	 "not an object"
	]}}`
	src := &stubSource{responses: []sourceResponse{{body: body}}}
	f := newTestFetcher(src, 3)

	got, err := f.Fetch(context.Background(), entity.Region{ID: "1", Name: "a"})
	if err != nil {
		t.Fatalf("Fetch error: %v", err)
	}
	if src.calls != 1 {
		t.Fatalf("expected malformed items not to trigger retries, got %d calls", src.calls)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 listings, got %+v", got)
	}
	if got[0].Title != "one" || got[0].Price != 1000 {
		t.Fatalf("expected first occurrence to win, got %+v", got[0])
	}
	if got[1].ID != "daangn:w" || got[1].Status != entity.StatusReserved {
		t.Fatalf("expected id fallback, got %+v", got[1])
	}
	if got[2].ID != "daangn:p-3" || got[2].Price != 0 {
		t.Fatalf("expected unparsable price to fall back to 0, got %+v", got[2])
	}
}

func TestListingFetcherMissingArrayIsEmpty(t *testing.T) {
	t.Parallel()

	f := newTestFetcher(&stubSource{responses: []sourceResponse{{body: `{"other":1}`}}}, 0)
	got, err := f.Fetch(context.Background(), entity.Region{ID: "1", Name: "a"})
	if err != nil || len(got) != 0 {
		t.Fatalf("expected empty result, got %v, %v", got, err)
	}
}

func TestListingFetcherRejectsBadArrayShape(t *testing.T) {
	t.Parallel()

	src := &stubSource{responses: []sourceResponse{{body: `{"allPage":{"fleamarketArticles":{"id":"x"}}}`}}}
	f := newTestFetcher(src, 1)

	_, err := f.Fetch(context.Background(), entity.Region{ID: "1", Name: "a"})
	if !errors.Is(err, repository.ErrUpstreamParse) {
		t.Fatalf("expected parse failure, got %v", err)
	}
	if src.calls != 2 {
		t.Fatalf("expected a retry after the parse failure, got %d calls", src.calls)
	}
}

func TestListingFetcherRetries(t *testing.T) {
	t.Parallel()

	src := &stubSource{responses: []sourceResponse{
		{err: repository.ErrUpstreamFetch},
		{body: "<html>blocked</html>"},
		{body: threeArticles},
	}}
	f := newTestFetcher(src, 3)

	var delays []time.Duration
	f.sleep = func(_ context.Context, d time.Duration) error {
		delays = append(delays, d)
		return nil
	}

	got, err := f.Fetch(context.Background(), entity.Region{ID: "1", Name: "a"})
	if err != nil {
		t.Fatalf("Fetch error: %v", err)
	}
	if len(got) != 3 || src.calls != 3 {
		t.Fatalf("expected success on third attempt, got %d listings after %d calls", len(got), src.calls)
	}
	if len(delays) != 2 || delays[0] != time.Second {
		t.Fatalf("unexpected retry delays %v", delays)
	}
}

func TestListingFetcherExhaustsRetries(t *testing.T) {
	t.Parallel()

	src := &stubSource{responses: []sourceResponse{{err: repository.ErrUpstreamFetch}}}
	f := newTestFetcher(src, 3)

	_, err := f.Fetch(context.Background(), entity.Region{ID: "1", Name: "a"})
	if !errors.Is(err, ErrRegionFetchFailed) || !errors.Is(err, repository.ErrUpstreamFetch) {
		t.Fatalf("expected wrapped fetch failure, got %v", err)
	}
	if src.calls != 4 {
		t.Fatalf("expected 1 attempt plus 3 retries, got %d calls", src.calls)
	}
}

func TestListingFetcherStopsOnCancel(t *testing.T) {
	t.Parallel()

	src := &stubSource{responses: []sourceResponse{{err: repository.ErrUpstreamFetch}}}
	f := newTestFetcher(src, 3)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.Fetch(ctx, entity.Region{ID: "1", Name: "a"})
	if !errors.Is(err, ErrRegionFetchFailed) || !errors.Is(err, context.Canceled) {
		t.Fatalf("expected cancellation to stop retries, got %v", err)
	}
	if src.calls != 1 {
		t.Fatalf("expected a single attempt, got %d", src.calls)
	}
}

func TestFetcherConfigDefaults(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		cfg         FetcherConfig
		wantRetries int
		wantDelay   time.Duration
	}{
		{"default config", DefaultFetcherConfig(), 3, 5 * time.Second},
		{"negative selects defaults", FetcherConfig{MaxRetries: -1, RetryDelay: -1}, 3, 5 * time.Second},
		{"zero is literal", FetcherConfig{}, 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			f := newListingFetcher(&stubSource{}, tt.cfg)
			if f.maxRetries != tt.wantRetries || f.retryDelay != tt.wantDelay {
				t.Fatalf("got %d retries / %v, want %d / %v", f.maxRetries, f.retryDelay, tt.wantRetries, tt.wantDelay)
			}
		})
	}
}

func TestParsePrice(t *testing.T) {
	t.Parallel()

	tests := []struct {
		raw  string
		want int64
	}{
		{`"15000.0"`, 15000},
		{`"99.99"`, 99},
		{`12000`, 12000},
		{`""`, 0},
		{`null`, 0},
		{`"free"`, 0},
		{`"-5"`, 0},
	}
	for _, tt := range tests {
		if got := parsePrice([]byte(tt.raw)); got != tt.want {
			t.Errorf("parsePrice(%s) = %d, want %d", tt.raw, got, tt.want)
		}
	}
}
