package entity

import "time"

type RankedResult struct {
	Listing         Listing  `json:"product"`
	Score           float64  `json:"score"`
	Reasons         []string `json:"reasons"`
	MatchedKeywords []string `json:"matchedKeywords"`
}

type IntRange struct {
	Min int64 `json:"min"`
	Max int64 `json:"max"`
}

type MarketInsights struct {
	AveragePrice        int64    `json:"averagePrice"`
	PriceRange          IntRange `json:"priceRange"`
	MostCommonLocations []string `json:"mostCommonLocations"`
	TrendingItems       []string `json:"trendingItems"`
	Summary             string   `json:"summary"`
}

type SuggestedFilters struct {
	PriceRange *IntRange `json:"priceRange,omitempty"`
	Locations  []string  `json:"locations,omitempty"`
}

type PricePrediction struct {
	PredictedPrice int64    `json:"predictedPrice"`
	Confidence     float64  `json:"confidence"`
	PriceRange     IntRange `json:"priceRange"`
	Reasoning      string   `json:"reasoning"`
}

type FraudDetection struct {
	IsSuspicious    bool     `json:"isSuspicious"`
	RiskScore       int      `json:"riskScore"`
	RedFlags        []string `json:"redFlags"`
	Recommendations []string `json:"recommendations"`
}

type CategoryClassification struct {
	Category      string   `json:"category"`
	Confidence    float64  `json:"confidence"`
	SubCategories []string `json:"subCategories"`
	Reasoning     string   `json:"reasoning"`
}

// TopListingAnalysis holds the extra analyses run against the best-ranked listing.
type TopListingAnalysis struct {
	PricePrediction        PricePrediction        `json:"pricePrediction"`
	FraudDetection         FraudDetection         `json:"fraudDetection"`
	CategoryClassification CategoryClassification `json:"categoryClassification"`
}

// Analysis is the full ranking response. It is cached per (query, corpus size).
type Analysis struct {
	SearchQuery      string              `json:"searchQuery"`
	AnalyzedAt       time.Time           `json:"analyzedAt"`
	TotalListings    int                 `json:"totalProducts"`
	Strategy         string              `json:"strategy"`
	Recommendations  []RankedResult      `json:"recommendations"`
	Insights         MarketInsights      `json:"insights"`
	SuggestedFilters SuggestedFilters    `json:"suggestedFilters"`
	RelatedKeywords  []string            `json:"relatedKeywords"`
	TopListing       *TopListingAnalysis `json:"topProductAnalysis,omitempty"`
}

type SimilarListing struct {
	Listing    Listing `json:"product"`
	Similarity float64 `json:"similarity"`
	Reason     string  `json:"reason"`
}

// StoreStats summarises the live partitions of the listing store.
type StoreStats struct {
	PartitionCount int            `json:"totalLocations"`
	TotalListings  int            `json:"totalProducts"`
	PerPartition   map[string]int `json:"locations"`
}
