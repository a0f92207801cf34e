package entity

import "time"

type CrawlRunStatus string

const (
	CrawlRunning   CrawlRunStatus = "running"
	CrawlCompleted CrawlRunStatus = "completed"
	CrawlFailed    CrawlRunStatus = "failed"
)

// CrawlRun mirrors the `crawling_logs` table. A run leaves CrawlRunning exactly once.
type CrawlRun struct {
	ID              string
	Platform        Platform
	Status          CrawlRunStatus
	TotalListings   int
	NewListings     int
	UpdatedListings int
	ErrorCount      int
	Duration        time.Duration
	ErrorMessage    string
	StartedAt       time.Time
	CompletedAt     *time.Time
}

// RunSummary is the outcome of one ingestion run.
type RunSummary struct {
	Success       bool          `json:"success"`
	TotalListings int           `json:"total_listings"`
	Regions       []string      `json:"regions"`
	FailedRegions []string      `json:"failed_regions,omitempty"`
	Duration      time.Duration `json:"duration"`
	RolledBack    bool          `json:"rolled_back,omitempty"`
}

// CrawlRunStats aggregates runs over a time window.
type CrawlRunStats struct {
	TotalRuns       int     `json:"total_runs"`
	SuccessRate     float64 `json:"success_rate"`
	AverageDuration float64 `json:"average_duration_seconds"`
	TotalListings   int     `json:"total_listings"`
}
