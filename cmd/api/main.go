package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	nethttp "net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"stationlog/internal/caption"
	"stationlog/internal/catalog"
	"stationlog/internal/config"
	"stationlog/internal/http"
	"stationlog/internal/pipeline"
	"stationlog/internal/storage"
	"stationlog/internal/uploader"
	"stationlog/internal/visits"
)

func main() {
	// Load configuration first (needed for log level)
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Configure structured logging with configurable level and format
	opts := &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}
	var handler slog.Handler
	if cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	logger := slog.New(handler)
	slog.SetDefault(logger)
	slog.Debug("Logging configured", "level", cfg.LogLevel.String(), "format", cfg.LogFormat)

	// Initialize database
	db, err := storage.New(cfg.DBPath)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer func() {
		_ = db.Close()
	}()

	if err := storage.Migrate(db); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}
	slog.Info("Database initialized", "path", cfg.DBPath)

	// Load the station catalog
	cat, err := catalog.Load()
	if err != nil {
		log.Fatalf("Failed to load station catalog: %v", err)
	}
	slog.Info("Station catalog loaded", "lines", len(cat.Lines()), "stations", cat.TotalStations())

	// Load the visit record store from its persisted snapshot
	ctx := context.Background()
	snapshots := storage.NewSnapshotRepo(db)
	store := visits.Load(ctx, snapshots)
	visited, total := store.Progress(cat)
	slog.Info("Visit store loaded", "visited", visited, "total", total)

	// Create external service clients
	uploadClient := uploader.NewClient(cfg.UploadBaseURL, cfg.UploadAPIKey)

	var generator pipeline.Generator
	if cfg.CaptionEnabled() {
		generator = caption.NewClient(cfg.CaptionBaseURL, cfg.CaptionAPIKey, cfg.CaptionModel)
		slog.Info("Caption generation enabled", "model", cfg.CaptionModel)
	} else {
		slog.Info("Caption generation disabled, no credential configured")
	}

	// Create the entry pipeline
	pipe := pipeline.New(store, cat, uploadClient, generator)

	// Create router with dependencies
	deps := &http.Deps{
		Catalog:        cat,
		Store:          store,
		Pipeline:       pipe,
		DB:             db,
		CaptionEnabled: cfg.CaptionEnabled(),
	}
	router := http.NewRouter(deps)

	// Start API server
	addr := ":" + cfg.APIPort
	server := &nethttp.Server{Addr: addr, Handler: router}

	go func() {
		slog.Info("Starting API server", "addr", addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, nethttp.ErrServerClosed) {
			log.Fatalf("API server failed to start: %v", err)
		}
	}()

	// Wait for shutdown signal, then drain in-flight pipeline work so
	// background upload/caption goroutines finish before the process exits.
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	slog.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server shutdown failed", "error", err)
	}
	pipe.Wait()
	slog.Info("Shutdown complete")
}
