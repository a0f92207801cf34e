package response

import (
	"time"

	"github.com/user/listing-aggregator/internal/entity"
	"github.com/user/listing-aggregator/internal/scheduler"
)

type ErrorResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

type CrawlResponse struct {
	Success         bool     `json:"success"`
	Message         string   `json:"message"`
	TotalListings   int      `json:"totalProducts"`
	Regions         []string `json:"locations"`
	FailedRegions   []string `json:"failedLocations,omitempty"`
	DurationSeconds float64  `json:"duration"`
	RolledBack      bool     `json:"rolledBack"`
}

// CrawlRunResponse is a DTO for one crawling_logs row.
type CrawlRunResponse struct {
	ID              string     `json:"id"`
	Platform        string     `json:"platform"`
	Status          string     `json:"status"`
	TotalListings   int        `json:"totalProducts"`
	ErrorCount      int        `json:"errorCount"`
	DurationSeconds float64    `json:"durationSeconds"`
	ErrorMessage    string     `json:"errorMessage,omitempty"`
	StartedAt       time.Time  `json:"startedAt"`
	CompletedAt     *time.Time `json:"completedAt,omitempty"`
}

type CrawlStatusResponse struct {
	Running   bool                  `json:"running"`
	Store     *entity.StoreStats    `json:"store,omitempty"`
	Scheduler *scheduler.Info       `json:"scheduler,omitempty"`
	Stats     *entity.CrawlRunStats `json:"stats,omitempty"`
	Recent    []CrawlRunResponse    `json:"recentRuns"`
}

type SearchResponse struct {
	Success    bool             `json:"success"`
	TotalCount int              `json:"totalCount"`
	SearchTime float64          `json:"searchTime"`
	Listings   []entity.Listing `json:"products"`
}

type ListingsResponse struct {
	Success    bool             `json:"success"`
	Location   string           `json:"location,omitempty"`
	TotalCount int              `json:"totalCount"`
	Listings   []entity.Listing `json:"products"`
}

type CacheStatsResponse struct {
	Success bool `json:"success"`
	Entries int  `json:"totalCached"`
}

type CacheClearResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Removed int    `json:"removed"`
}

// NewCrawlRunResponse converts a CrawlRun entity into its DTO.
func NewCrawlRunResponse(run entity.CrawlRun) CrawlRunResponse {
	return CrawlRunResponse{
		ID:              run.ID,
		Platform:        string(run.Platform),
		Status:          string(run.Status),
		TotalListings:   run.TotalListings,
		ErrorCount:      run.ErrorCount,
		DurationSeconds: run.Duration.Seconds(),
		ErrorMessage:    run.ErrorMessage,
		StartedAt:       run.StartedAt,
		CompletedAt:     run.CompletedAt,
	}
}
