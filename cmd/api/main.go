package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/user/listing-aggregator/internal/app"
	"github.com/user/listing-aggregator/pkg/config"
	"github.com/user/listing-aggregator/pkg/logger"
)

func main() {
	// --- Configuration ---
	cfg := config.Load()

	// --- Logger ---
	logLevel := logger.ParseLevel(cfg.LogLevel)
	logger.Init(os.Stdout, logLevel)
	slog.Info("Logger initialized", "level", logLevel.String())

	// --- Dependency graph ---
	ctx := context.Background()
	application, err := app.New(ctx, cfg)
	if err != nil {
		slog.Error("Failed to build application", "error", err)
		os.Exit(1)
	}
	defer application.Close()

	if application.Scheduler != nil {
		application.Scheduler.Start()
	}

	// --- HTTP Server ---
	// Crawls are answered synchronously, so writes get a long deadline.
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      application.Handler,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 15 * time.Minute,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		slog.Info("Starting server", "port", cfg.ServerPort)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Could not listen on port", "port", cfg.ServerPort, "error", err)
			os.Exit(1)
		}
	}()

	// --- Graceful Shutdown ---
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	slog.Info("Shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if application.Scheduler != nil {
		if err := application.Scheduler.Stop(shutdownCtx); err != nil {
			slog.Warn("Scheduler did not stop cleanly", "error", err)
		}
	}
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
	}
	slog.Info("Server exiting")
}
