// Package main is the entry point for the sidecar dataset synchronizer.
// It runs on the robot PC next to the recorder and mirrors finished dataset
// files to the ingestion server.
package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/nsmlab/teleop-ingest/internal/config"
	"github.com/nsmlab/teleop-ingest/internal/sync"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	scanner := sync.NewScanner(cfg.Sync.WatchDir)
	uploader := sync.NewUploader(cfg.Sync.ServerURL, cfg.Auth.APIKey, cfg.Sync.UploadTimeout)
	syncer := sync.NewSyncer(scanner, uploader, cfg.Sync.PollInterval, logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("starting synchronizer",
		"watch_dir", cfg.Sync.WatchDir,
		"server_url", cfg.Sync.ServerURL,
		"poll_interval", cfg.Sync.PollInterval,
	)

	if err := syncer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("synchronizer stopped", "error", err)
		os.Exit(1)
	}
	logger.Info("synchronizer shut down")
}
