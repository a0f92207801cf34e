package router

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/user/listing-aggregator/internal/delivery/http/handler"
	"github.com/user/listing-aggregator/internal/delivery/http/middleware"
)

const requestTimeout = 60 * time.Second

func New(h *handler.Handler) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.Logging)
	r.Use(middleware.Metrics)
	r.Use(chimw.Recoverer)

	r.Handle("/metrics", promhttp.Handler())
	r.Get("/api/health", h.HandleHealthCheck)

	r.Route("/api", func(r chi.Router) {
		// Crawls answer when the run finishes, so they are not bound by the request timeout.
		r.Post("/crawl", h.HandleCrawl)

		r.Group(func(r chi.Router) {
			r.Use(chimw.Timeout(requestTimeout))

			r.Get("/crawl/status", h.HandleCrawlStatus)
			r.Get("/listings", h.HandleListings)
			r.Get("/listings/{location}", h.HandleListingsByLocation)
			r.Get("/search", h.HandleSearch)
			r.Get("/search/popular", h.HandlePopularSearches)

			r.Route("/ai", func(r chi.Router) {
				r.Post("/analyze", h.HandleAnalyze)
				r.Post("/similar", h.HandleSimilar)
				r.Get("/cache/stats", h.HandleCacheStats)
				r.Delete("/cache", h.HandleClearCache)
			})
		})
	})

	return r
}
