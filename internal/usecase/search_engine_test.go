package usecase

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/user/listing-aggregator/internal/entity"
)

type stubLogSink struct {
	mu   sync.Mutex
	logs []entity.SearchLog
	err  error
	done chan struct{}
}

func (s *stubLogSink) Save(_ context.Context, log entity.SearchLog) error {
	s.mu.Lock()
	s.logs = append(s.logs, log)
	s.mu.Unlock()
	if s.done != nil {
		s.done <- struct{}{}
	}
	return s.err
}

func int64p(v int64) *int64 { return &v }

func searchCorpus() []entity.Listing {
	return []entity.Listing{
		{ID: "daangn:1", Title: "Smart Phone", Price: 300000, Location: "역삼동", Status: entity.StatusAvailable, Platform: entity.PlatformDaangn},
		{ID: "daangn:2", Title: "Bag", Description: "leather", Price: 50000, Location: "논현동", Status: entity.StatusSold, Platform: entity.PlatformDaangn},
		{ID: "daangn:3", Title: "폰 케이스", Description: "아이폰 phone case", Price: 5000, Location: "역삼동", Status: entity.StatusAvailable, TradeMethod: entity.TradeDirect, Platform: entity.PlatformDaangn},
		{ID: "bunjang:4", Title: "Old phone", Price: 0, Location: "서초동", Status: entity.StatusReserved, Platform: entity.PlatformBunjang},
	}
}

func ids(listings []entity.Listing) []string {
	out := make([]string, 0, len(listings))
	for _, l := range listings {
		out = append(out, l.ID)
	}
	return out
}

func TestFilterListings(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		query entity.SearchQuery
		want  []string
	}{
		{name: "text title", query: entity.SearchQuery{Text: "phone"}, want: []string{"daangn:1", "daangn:3", "bunjang:4"}},
		{name: "text trimmed and case folded", query: entity.SearchQuery{Text: "  SMART "}, want: []string{"daangn:1"}},
		{name: "text description", query: entity.SearchQuery{Text: "leather"}, want: []string{"daangn:2"}},
		{name: "empty text keeps all", query: entity.SearchQuery{}, want: []string{"daangn:1", "daangn:2", "daangn:3", "bunjang:4"}},
		{name: "locations", query: entity.SearchQuery{Filters: entity.SearchFilters{Locations: []string{"역삼동"}}}, want: []string{"daangn:1", "daangn:3"}},
		{name: "price inclusive", query: entity.SearchQuery{Filters: entity.SearchFilters{PriceRange: &entity.PriceRange{Min: int64p(5000), Max: int64p(50000)}}}, want: []string{"daangn:2", "daangn:3"}},
		{name: "price open max", query: entity.SearchQuery{Filters: entity.SearchFilters{PriceRange: &entity.PriceRange{Min: int64p(100000)}}}, want: []string{"daangn:1"}},
		{name: "trade method", query: entity.SearchQuery{Filters: entity.SearchFilters{TradeMethod: entity.TradeDirect}}, want: []string{"daangn:3"}},
		{name: "status", query: entity.SearchQuery{Text: "phone", Filters: entity.SearchFilters{Status: entity.StatusAvailable}}, want: []string{"daangn:1", "daangn:3"}},
		{name: "platform", query: entity.SearchQuery{Filters: entity.SearchFilters{Platform: entity.PlatformBunjang}}, want: []string{"bunjang:4"}},
		{name: "no match", query: entity.SearchQuery{Text: "laptop"}, want: []string{}},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := ids(FilterListings(searchCorpus(), tt.query))
			if len(got) != len(tt.want) {
				t.Fatalf("got %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Fatalf("got %v, want %v", got, tt.want)
				}
			}
		})
	}
}

func TestFilterListingsMonotonic(t *testing.T) {
	t.Parallel()

	base := entity.SearchQuery{Text: "phone"}
	narrowed := entity.SearchQuery{Text: "phone", Filters: entity.SearchFilters{
		Locations: []string{"역삼동"},
		Status:    entity.StatusAvailable,
	}}

	wide := map[string]bool{}
	for _, id := range ids(FilterListings(searchCorpus(), base)) {
		wide[id] = true
	}
	for _, id := range ids(FilterListings(searchCorpus(), narrowed)) {
		if !wide[id] {
			t.Fatalf("adding filters produced %s outside the unfiltered result", id)
		}
	}
}

func TestSearchEngineScenarioB(t *testing.T) {
	t.Parallel()

	store := newMemStore()
	_ = store.WritePartition(context.Background(), "p", []entity.Listing{
		{ID: "1", Title: "Smart Phone"},
		{ID: "2", Title: "Bag"},
	})
	sink := &stubLogSink{done: make(chan struct{}, 1)}
	engine := NewSearchEngine(store, sink)

	res, err := engine.Search(context.Background(), entity.SearchQuery{Text: "phone"}, entity.ClientMeta{IP: "10.0.0.1", UserAgent: "test"})
	if err != nil {
		t.Fatalf("Search error: %v", err)
	}
	if res.TotalCount != 1 || res.Listings[0].Title != "Smart Phone" {
		t.Fatalf("unexpected result: %+v", res)
	}

	select {
	case <-sink.done:
	case <-time.After(2 * time.Second):
		t.Fatal("search log was not written")
	}
	sink.mu.Lock()
	defer sink.mu.Unlock()
	if sink.logs[0].Query != "phone" || sink.logs[0].ResultCount != 1 || sink.logs[0].ClientIP != "10.0.0.1" {
		t.Fatalf("unexpected log: %+v", sink.logs[0])
	}
}

func TestSearchEngineDegradesOnStoreError(t *testing.T) {
	t.Parallel()

	store := newMemStore()
	store.readErr = errStub
	sink := &stubLogSink{err: errStub, done: make(chan struct{}, 1)}
	engine := NewSearchEngine(store, sink)

	res, err := engine.Search(context.Background(), entity.SearchQuery{Text: "x"}, entity.ClientMeta{})
	if err != nil {
		t.Fatalf("expected degraded result, got error %v", err)
	}
	if res.TotalCount != 0 || res.Listings == nil {
		t.Fatalf("expected empty non-nil result, got %+v", res)
	}
	<-sink.done
}

func TestSearchEngineWithoutLogSink(t *testing.T) {
	t.Parallel()

	engine := NewSearchEngine(newMemStore(), nil)
	if _, err := engine.Search(context.Background(), entity.SearchQuery{}, entity.ClientMeta{}); err != nil {
		t.Fatalf("Search error: %v", err)
	}
}
