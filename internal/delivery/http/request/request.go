package request

type CrawlRequest struct {
	// Regions limits the run to these region names; empty means the whole catalog.
	Regions []string `json:"regions"`
	Backup  bool     `json:"backup"`
}

type AnalyzeRequest struct {
	Query      string   `json:"query"`
	Locations  []string `json:"locations"`
	MaxResults int      `json:"maxResults"`
}

type SimilarRequest struct {
	ListingID string `json:"productId"`
	TopK      int    `json:"topK"`
}
