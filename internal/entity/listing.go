package entity

import "time"

type Platform string

const (
	PlatformDaangn  Platform = "daangn"
	PlatformJoonggo Platform = "joonggo"
	PlatformBunjang Platform = "bunjang"
)

type ListingStatus string

const (
	StatusAvailable ListingStatus = "available"
	StatusSold      ListingStatus = "sold"
	StatusReserved  ListingStatus = "reserved"
)

type TradeMethod string

const (
	TradeDirect   TradeMethod = "direct"
	TradeDelivery TradeMethod = "delivery"
	TradeBoth     TradeMethod = "both"
)

// Listing is the normalized secondhand item stored in a partition.
// ID is Platform + ":" + OriginalID, so re-ingesting an item overwrites it.
type Listing struct {
	ID          string        `json:"id"`
	Platform    Platform      `json:"platform"`
	OriginalID  string        `json:"originalId"`
	Title       string        `json:"title"`
	Price       int64         `json:"price"`
	Description string        `json:"description"`
	Location    string        `json:"location"`
	OriginalURL string        `json:"originalUrl"`
	ImageURLs   []string      `json:"imageUrls"`
	Status      ListingStatus `json:"status"`
	TradeMethod TradeMethod   `json:"tradeMethod,omitempty"`
	Category    string        `json:"category,omitempty"`
	CreatedAt   time.Time     `json:"createdAt"`
	UpdatedAt   time.Time     `json:"updatedAt"`
}

// ListingID builds the deterministic listing identifier.
func ListingID(platform Platform, originalID string) string {
	return string(platform) + ":" + originalID
}
