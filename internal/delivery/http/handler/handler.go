package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/user/listing-aggregator/internal/delivery/http/request"
	"github.com/user/listing-aggregator/internal/delivery/http/response"
	"github.com/user/listing-aggregator/internal/entity"
	"github.com/user/listing-aggregator/internal/scheduler"
	"github.com/user/listing-aggregator/internal/usecase"
)

const (
	recentRunsLimit   = 10
	runStatsWindow    = 30 * 24 * time.Hour
	popularWindowDays = 7
	popularLimit      = 10
	maxBodyBytes      = 1 << 20
)

// CrawlRunner starts ingestion runs on demand.
type CrawlRunner interface {
	RunWithLogging(ctx context.Context, names ...string) (*entity.RunSummary, error)
	RunWithBackup(ctx context.Context, names ...string) (*entity.RunSummary, error)
	Running() bool
}

type CrawlHistory interface {
	Recent(ctx context.Context, limit int) ([]entity.CrawlRun, error)
	Stats(ctx context.Context, since time.Time) (*entity.CrawlRunStats, error)
}

type StoreInspector interface {
	ReadPartition(ctx context.Context, name string) ([]entity.Listing, error)
	Stats(ctx context.Context) (*entity.StoreStats, error)
}

type SearchHistory interface {
	Popular(ctx context.Context, since time.Time, limit int) ([]entity.PopularSearch, error)
}

type ScheduleReporter interface {
	Info() scheduler.Info
}

// Deps wires the handler. Runs, Searches and Scheduler may be nil.
type Deps struct {
	Pipeline  CrawlRunner
	Runs      CrawlHistory
	Store     StoreInspector
	Search    usecase.SearchEngine
	Searches  SearchHistory
	Ranking   usecase.RankingEngine
	Scheduler ScheduleReporter
}

type Handler struct {
	pipeline  CrawlRunner
	runs      CrawlHistory
	store     StoreInspector
	search    usecase.SearchEngine
	searches  SearchHistory
	ranking   usecase.RankingEngine
	scheduler ScheduleReporter
	now       func() time.Time
}

func NewHandler(deps Deps) *Handler {
	return &Handler{
		pipeline:  deps.Pipeline,
		runs:      deps.Runs,
		store:     deps.Store,
		search:    deps.Search,
		searches:  deps.Searches,
		ranking:   deps.Ranking,
		scheduler: deps.Scheduler,
		now:       time.Now,
	}
}

func (h *Handler) HandleHealthCheck(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// HandleCrawl runs the pipeline and answers once it finishes.
func (h *Handler) HandleCrawl(w http.ResponseWriter, r *http.Request) {
	var req request.CrawlRequest
	if err := decodeBody(r, &req); err != nil {
		h.writeJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	run := h.pipeline.RunWithLogging
	if req.Backup {
		run = h.pipeline.RunWithBackup
	}
	summary, err := run(r.Context(), req.Regions...)
	if err != nil {
		switch {
		case errors.Is(err, usecase.ErrRunInProgress):
			h.writeJSONError(w, "크롤링이 이미 진행 중입니다", http.StatusConflict)
		case errors.Is(err, usecase.ErrCatalogEmpty), errors.Is(err, usecase.ErrNoTargetRegions):
			h.writeJSONError(w, err.Error(), http.StatusUnprocessableEntity)
		default:
			slog.Error("Failed to run ingestion", "regions", req.Regions, "error", err)
			h.writeJSONError(w, "Internal server error", http.StatusInternalServerError)
		}
		return
	}

	resp := response.CrawlResponse{
		Success:         summary.Success,
		Message:         crawlMessage(summary),
		TotalListings:   summary.TotalListings,
		Regions:         summary.Regions,
		FailedRegions:   summary.FailedRegions,
		DurationSeconds: summary.Duration.Seconds(),
		RolledBack:      summary.RolledBack,
	}
	h.writeJSON(w, http.StatusOK, resp)
}

func crawlMessage(s *entity.RunSummary) string {
	switch {
	case s.RolledBack:
		return "수집된 상품이 없어 이전 데이터로 복구했습니다"
	case s.TotalListings == 0:
		return "수집된 상품이 없습니다"
	default:
		return "크롤링이 완료되었습니다"
	}
}

// HandleCrawlStatus reports pipeline, store, scheduler and run-history state.
// Sections whose backend fails are omitted.
func (h *Handler) HandleCrawlStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	resp := response.CrawlStatusResponse{
		Running: h.pipeline.Running(),
		Recent:  []response.CrawlRunResponse{},
	}

	if stats, err := h.store.Stats(ctx); err != nil {
		slog.Warn("Failed to read store stats", "error", err)
	} else {
		resp.Store = stats
	}

	if h.scheduler != nil {
		info := h.scheduler.Info()
		resp.Scheduler = &info
	}

	if h.runs != nil {
		if stats, err := h.runs.Stats(ctx, h.now().Add(-runStatsWindow)); err != nil {
			slog.Warn("Failed to read crawl run stats", "error", err)
		} else {
			resp.Stats = stats
		}
		if runs, err := h.runs.Recent(ctx, recentRunsLimit); err != nil {
			slog.Warn("Failed to read recent crawl runs", "error", err)
		} else {
			for _, run := range runs {
				resp.Recent = append(resp.Recent, response.NewCrawlRunResponse(run))
			}
		}
	}

	h.writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) HandleListings(w http.ResponseWriter, r *http.Request) {
	listings := h.search.Corpus(r.Context())
	h.writeJSON(w, http.StatusOK, response.ListingsResponse{
		Success:    true,
		TotalCount: len(listings),
		Listings:   listings,
	})
}

func (h *Handler) HandleListingsByLocation(w http.ResponseWriter, r *http.Request) {
	location := chi.URLParam(r, "location")
	listings, err := h.store.ReadPartition(r.Context(), location)
	if err != nil {
		slog.Error("Failed to read partition", "location", location, "error", err)
		h.writeJSONError(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	h.writeJSON(w, http.StatusOK, response.ListingsResponse{
		Success:    true,
		Location:   location,
		TotalCount: len(listings),
		Listings:   listings,
	})
}

func (h *Handler) HandleSearch(w http.ResponseWriter, r *http.Request) {
	query, err := parseSearchQuery(r)
	if err != nil {
		h.writeJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	result, err := h.search.Search(r.Context(), query, clientMeta(r))
	if err != nil {
		slog.Error("Failed to search listings", "query", query.Text, "error", err)
		h.writeJSONError(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, http.StatusOK, response.SearchResponse{
		Success:    true,
		TotalCount: result.TotalCount,
		SearchTime: result.SearchTime.Seconds(),
		Listings:   result.Listings,
	})
}

func (h *Handler) HandlePopularSearches(w http.ResponseWriter, r *http.Request) {
	if h.searches == nil {
		h.writeJSON(w, http.StatusOK, []entity.PopularSearch{})
		return
	}

	days := queryInt(r, "days", popularWindowDays)
	limit := queryInt(r, "limit", popularLimit)
	popular, err := h.searches.Popular(r.Context(), h.now().AddDate(0, 0, -days), limit)
	if err != nil {
		slog.Error("Failed to read popular searches", "error", err)
		h.writeJSONError(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	h.writeJSON(w, http.StatusOK, popular)
}

func (h *Handler) HandleAnalyze(w http.ResponseWriter, r *http.Request) {
	var req request.AnalyzeRequest
	if err := decodeBody(r, &req); err != nil {
		h.writeJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		h.writeJSONError(w, "검색어를 입력해주세요", http.StatusBadRequest)
		return
	}

	listings := h.search.Corpus(r.Context())
	if len(req.Locations) > 0 {
		listings = usecase.FilterListings(listings, entity.SearchQuery{
			Filters: entity.SearchFilters{Locations: req.Locations},
		})
	}
	if len(listings) == 0 {
		h.writeJSONError(w, "분석할 상품이 없습니다. 먼저 크롤링을 실행해주세요.", http.StatusNotFound)
		return
	}

	analysis, err := h.ranking.Analyze(r.Context(), req.Query, listings, req.MaxResults)
	if err != nil {
		slog.Error("Failed to analyze listings", "query", req.Query, "error", err)
		h.writeJSONError(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	h.writeJSON(w, http.StatusOK, analysis)
}

func (h *Handler) HandleSimilar(w http.ResponseWriter, r *http.Request) {
	var req request.SimilarRequest
	if err := decodeBody(r, &req); err != nil || req.ListingID == "" {
		h.writeJSONError(w, "productId is required", http.StatusBadRequest)
		return
	}

	corpus := h.search.Corpus(r.Context())
	var target *entity.Listing
	for i := range corpus {
		if corpus[i].ID == req.ListingID {
			target = &corpus[i]
			break
		}
	}
	if target == nil {
		h.writeJSONError(w, "상품을 찾을 수 없습니다", http.StatusNotFound)
		return
	}

	similar, err := h.ranking.SimilarListings(r.Context(), *target, corpus, req.TopK)
	if err != nil {
		if errors.Is(err, usecase.ErrVectorSearchDisabled) {
			h.writeJSONError(w, err.Error(), http.StatusServiceUnavailable)
			return
		}
		slog.Error("Failed to find similar listings", "listing_id", req.ListingID, "error", err)
		h.writeJSONError(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	h.writeJSON(w, http.StatusOK, similar)
}

func (h *Handler) HandleCacheStats(w http.ResponseWriter, r *http.Request) {
	n, err := h.ranking.CacheStats(r.Context())
	if err != nil {
		slog.Error("Failed to read analysis cache stats", "error", err)
		h.writeJSONError(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	h.writeJSON(w, http.StatusOK, response.CacheStatsResponse{Success: true, Entries: n})
}

func (h *Handler) HandleClearCache(w http.ResponseWriter, r *http.Request) {
	n, err := h.ranking.ClearCache(r.Context())
	if err != nil {
		slog.Error("Failed to clear analysis cache", "error", err)
		h.writeJSONError(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	h.writeJSON(w, http.StatusOK, response.CacheClearResponse{
		Success: true,
		Message: "AI 캐시가 모두 삭제되었습니다",
		Removed: n,
	})
}

// decodeBody decodes a JSON body. An empty body leaves v untouched.
func decodeBody(r *http.Request, v any) error {
	err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(v)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

func parseSearchQuery(r *http.Request) (entity.SearchQuery, error) {
	q := r.URL.Query()
	query := entity.SearchQuery{Text: strings.TrimSpace(q.Get("q"))}

	for _, v := range q["locations"] {
		for _, loc := range strings.Split(v, ",") {
			if loc = strings.TrimSpace(loc); loc != "" {
				query.Filters.Locations = append(query.Filters.Locations, loc)
			}
		}
	}

	minPrice, err := optionalInt64(q.Get("minPrice"))
	if err != nil {
		return query, errors.New("minPrice must be an integer")
	}
	maxPrice, err := optionalInt64(q.Get("maxPrice"))
	if err != nil {
		return query, errors.New("maxPrice must be an integer")
	}
	if minPrice != nil || maxPrice != nil {
		query.Filters.PriceRange = &entity.PriceRange{Min: minPrice, Max: maxPrice}
	}

	query.Filters.TradeMethod = entity.TradeMethod(q.Get("tradeMethod"))
	query.Filters.Status = entity.ListingStatus(q.Get("status"))
	query.Filters.Platform = entity.Platform(q.Get("platform"))
	return query, nil
}

func optionalInt64(raw string) (*int64, error) {
	if raw == "" {
		return nil, nil
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return nil, err
	}
	return &n, nil
}

func queryInt(r *http.Request, key string, fallback int) int {
	n, err := strconv.Atoi(r.URL.Query().Get(key))
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}

func clientMeta(r *http.Request) entity.ClientMeta {
	ip := r.RemoteAddr
	if host, _, err := net.SplitHostPort(ip); err == nil {
		ip = host
	}
	return entity.ClientMeta{IP: ip, UserAgent: r.UserAgent()}
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("Failed to write JSON response", "error", err)
	}
}

func (h *Handler) writeJSONError(w http.ResponseWriter, message string, status int) {
	h.writeJSON(w, status, response.ErrorResponse{Success: false, Message: message})
}
