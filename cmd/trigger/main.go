// Command trigger runs one logged ingestion pass and exits.
//
//	trigger                 # every catalog region
//	trigger 역삼동 논현동     # only these regions
//	trigger -backup 역삼동   # snapshot first, roll back on failure
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/user/listing-aggregator/internal/app"
	"github.com/user/listing-aggregator/pkg/config"
	"github.com/user/listing-aggregator/pkg/logger"
)

func main() {
	backup := flag.Bool("backup", false, "snapshot partitions first and restore them if the run fails")
	flag.Parse()

	cfg := config.Load()
	logger.Init(os.Stdout, logger.ParseLevel(cfg.LogLevel))
	cfg.SchedulerEnabled = false

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	application, err := app.New(ctx, cfg)
	if err != nil {
		slog.Error("Failed to build application", "error", err)
		os.Exit(1)
	}
	defer application.Close()

	run := application.Pipeline.RunWithLogging
	if *backup {
		run = application.Pipeline.RunWithBackup
	}

	summary, err := run(ctx, flag.Args()...)
	if err != nil {
		slog.Error("Ingestion failed", "error", err)
		application.Close()
		os.Exit(1)
	}

	slog.Info("Ingestion finished",
		"success", summary.Success,
		"total_listings", summary.TotalListings,
		"regions", summary.Regions,
		"failed_regions", summary.FailedRegions,
		"rolled_back", summary.RolledBack,
		"duration", summary.Duration.String(),
	)
	if !summary.Success {
		application.Close()
		os.Exit(2)
	}
}
