package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	"github.com/user/listing-aggregator/pkg/config"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()

	mr := miniredis.RunT(t)
	dir := t.TempDir()
	seed := filepath.Join(dir, "regions.yaml")
	yaml := "regions:\n  - id: \"6035\"\n    name: 역삼동\n  - id: \"6036\"\n    name: 논현동\n"
	if err := os.WriteFile(seed, []byte(yaml), 0o644); err != nil {
		t.Fatalf("write seed: %v", err)
	}

	return &config.Config{
		AuditDriver:      AuditSQLite,
		SQLitePath:       filepath.Join(dir, "db", "audit.db"),
		RedisAddr:        mr.Addr(),
		PartitionTTL:     24 * time.Hour,
		UpstreamMode:     UpstreamHTTP,
		UpstreamBaseURL:  "http://127.0.0.1:1",
		UpstreamTimeout:  time.Second,
		RegionsFile:      seed,
		AnalysisCacheTTL: time.Hour,
		SchedulerEnabled: true,
		ScheduleTimezone: "Asia/Seoul",
	}
}

func TestNew_SQLiteWiring(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	a, err := New(context.Background(), cfg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer a.Close()

	n, err := a.Catalog.Count(context.Background())
	if err != nil || n != 2 {
		t.Errorf("Catalog.Count() = %d, %v; want 2 seeded regions", n, err)
	}

	// Seeding again keeps the catalog idempotent.
	if err := a.seedRegions(context.Background(), cfg.RegionsFile); err != nil {
		t.Fatalf("seedRegions() error = %v", err)
	}
	if n, _ := a.Catalog.Count(context.Background()); n != 2 {
		t.Errorf("Count after reseed = %d, want 2", n)
	}

	if a.Scheduler == nil || a.Scheduler.Info().Count != 2 {
		t.Errorf("Scheduler = %+v, want two default triggers", a.Scheduler)
	}

	rec := httptest.NewRecorder()
	a.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("health status = %d, want 200", rec.Code)
	}
}

func TestNew_SchedulerDisabled(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	cfg.SchedulerEnabled = false
	cfg.RegionsFile = ""

	a, err := New(context.Background(), cfg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer a.Close()

	if a.Scheduler != nil {
		t.Error("Scheduler should be nil when disabled")
	}
	if n, _ := a.Catalog.Count(context.Background()); n != 0 {
		t.Errorf("Count = %d, want empty catalog without a seed file", n)
	}
}

func TestNew_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(*config.Config)
	}{
		{"unknown audit driver", func(c *config.Config) { c.AuditDriver = "mongo" }},
		{"redis unreachable", func(c *config.Config) { c.RedisAddr = "127.0.0.1:1" }},
		{"missing seed file", func(c *config.Config) { c.RegionsFile = "/nonexistent/regions.yaml" }},
		{"bad timezone", func(c *config.Config) { c.ScheduleTimezone = "Nowhere/City" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := testConfig(t)
			tt.mutate(cfg)
			if a, err := New(context.Background(), cfg); err == nil {
				a.Close()
				t.Fatal("New() error = nil, want failure")
			}
		})
	}
}
