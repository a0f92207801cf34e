package entity

import "time"

// PriceRange bounds are inclusive; a nil bound is open.
type PriceRange struct {
	Min *int64 `json:"min,omitempty"`
	Max *int64 `json:"max,omitempty"`
}

type SearchFilters struct {
	Locations   []string      `json:"locations,omitempty"`
	PriceRange  *PriceRange   `json:"priceRange,omitempty"`
	TradeMethod TradeMethod   `json:"tradeMethod,omitempty"`
	Status      ListingStatus `json:"status,omitempty"`
	Platform    Platform      `json:"platform,omitempty"`
}

type SearchQuery struct {
	Text    string        `json:"query"`
	Filters SearchFilters `json:"filters"`
}

// ClientMeta carries request metadata recorded with each search.
type ClientMeta struct {
	IP        string
	UserAgent string
}

type SearchResult struct {
	TotalCount int           `json:"totalCount"`
	SearchTime time.Duration `json:"-"`
	Listings   []Listing     `json:"products"`
}

// SearchLog mirrors the `search_logs` table.
type SearchLog struct {
	ID          int64
	Query       string
	Filters     SearchFilters
	ResultCount int
	SearchTime  time.Duration
	ClientIP    string
	UserAgent   string
	CreatedAt   time.Time
}

type PopularSearch struct {
	Query string `json:"query"`
	Count int    `json:"count"`
}
