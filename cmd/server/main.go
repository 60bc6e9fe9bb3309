// Package main is the entry point for the teleop ingestion HTTP server.
package main

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/nsmlab/teleop-ingest/internal/config"
	"github.com/nsmlab/teleop-ingest/internal/database"
	"github.com/nsmlab/teleop-ingest/internal/filestore"
	"github.com/nsmlab/teleop-ingest/internal/registry"
	"github.com/nsmlab/teleop-ingest/internal/repository"
	"github.com/nsmlab/teleop-ingest/internal/server"
	"github.com/nsmlab/teleop-ingest/internal/telemetry"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	db, err := database.New(&cfg.Database)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := db.Close(); err != nil {
			logger.Error("error closing database", "error", err)
		}
	}()

	migrateCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := db.Migrate(migrateCtx); err != nil {
		logger.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}
	logger.Info("database ready")

	robotRepo := repository.NewPostgresRobotRepository(db.DB)
	sessionRepo := repository.NewPostgresSessionRepository(db.DB)
	frameRepo := repository.NewPostgresFrameRepository(db.DB)
	chunkRepo := repository.NewPostgresVideoChunkRepository(db.DB)

	store := filestore.NewStore(cfg.Storage.Root, cfg.Storage.MaxVideoBytes())
	reg := registry.New()
	manager := telemetry.NewManager()
	writer := telemetry.NewWriter(frameRepo, cfg.Ingest.WriteRetries, cfg.Ingest.WriteRetryBackoff, logger)

	deps := &server.Dependencies{
		Config:      cfg,
		Health:      db,
		RobotRepo:   robotRepo,
		SessionRepo: sessionRepo,
		FrameRepo:   frameRepo,
		ChunkRepo:   chunkRepo,
		Store:       store,
		Registry:    reg,
		Manager:     manager,
		Writer:      writer,
		Logger:      logger,
	}

	srv := server.New(deps)

	logger.Info("starting server", "port", cfg.Server.Port, "auth_enabled", cfg.Auth.APIKey != "")
	if err := srv.Run(":" + cfg.Server.Port); err != nil {
		logger.Error("server stopped", "error", err)
		os.Exit(1)
	}
}
