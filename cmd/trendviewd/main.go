// Package main is the entry point for the Trend View console daemon.
//
// The daemon keeps a local cache of the upstream Trend View backend's
// datasets, exposes them (plus analysis overlays, preferences and
// snapshots) over a local HTTP API, and runs scheduled syncs, cache
// cleanup and cloud backups in the background.
package main

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/quantlens/trendview/internal/backup"
	"github.com/quantlens/trendview/internal/clientdata"
	"github.com/quantlens/trendview/internal/config"
	"github.com/quantlens/trendview/internal/control"
	"github.com/quantlens/trendview/internal/database"
	"github.com/quantlens/trendview/internal/events"
	"github.com/quantlens/trendview/internal/prefs"
	"github.com/quantlens/trendview/internal/scheduler"
	"github.com/quantlens/trendview/internal/server"
	"github.com/quantlens/trendview/internal/snapshot"
	"github.com/quantlens/trendview/internal/trendapi"
	"github.com/quantlens/trendview/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fallbackLog := logger.New(logger.Config{Level: "info", Pretty: true})
		fallbackLog.Fatal().Err(err).Msg("Failed to load configuration")
	}

	log := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Pretty: cfg.DevMode,
	})

	log.Info().Str("api", cfg.APIBaseURL).Msg("Starting Trend View console")

	db, err := database.New(database.Config{
		Path: filepath.Join(cfg.DataDir, "client_data.db"),
		Name: "client_data",
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open cache database")
	}
	defer db.Close()

	repo := clientdata.NewRepository(db.Conn())
	if err := repo.InitSchema(); err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize cache schema")
	}

	bus := events.NewBus()

	api := trendapi.NewClient(cfg.APIBaseURL, log)
	api.SetTimeout(cfg.UpstreamTimeout)
	api.SetRetry(cfg.RetryMaxAttempts, cfg.RetryBackoffStep)

	runner := control.NewRunner(api, repo, bus, log, cfg.PollInterval, cfg.PollTimeout)
	defer runner.Close()

	snapshots, err := snapshot.NewStore(cfg.DataDir, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open snapshot store")
	}

	prefStore := prefs.NewStore(repo, cfg.DefaultLanguage, log)

	// Cloud backups only run when a bucket is configured
	var backupService *backup.Service
	if cfg.Backup.Enabled() {
		s3Client, err := backup.NewS3Client(context.Background(), cfg.Backup, log)
		if err != nil {
			log.Warn().Err(err).Msg("Failed to initialize S3 client - backups disabled")
		} else {
			backupService = backup.NewService(s3Client, cfg.DataDir, bus, log)
			log.Info().Str("bucket", cfg.Backup.Bucket).Msg("Cloud backups enabled")
		}
	}

	srv := server.New(server.Config{
		Log:       log,
		Port:      cfg.Port,
		DevMode:   cfg.DevMode,
		API:       api,
		Runner:    runner,
		Repo:      repo,
		Prefs:     prefStore,
		Snapshots: snapshots,
		Bus:       bus,
		Backup:    backupService,
	})

	go func() {
		if err := srv.Start(); err != nil {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()
	log.Info().Int("port", cfg.Port).Msg("Server started")

	cleanup := clientdata.NewCleanupJob(repo, 500, log)
	sched := scheduler.New(runner, cleanup, backupService, log)
	if err := sched.Register(scheduler.Config{
		SyncSpec:    cfg.SyncCron,
		CleanupSpec: cfg.CleanupCron,
		BackupSpec:  cfg.BackupCron,
	}); err != nil {
		log.Fatal().Err(err).Msg("Failed to register scheduled jobs")
	}
	sched.Start()

	// Warm the cache so the first dashboard paint has data
	go func() {
		warmCtx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()
		runner.RefreshAll(warmCtx)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down...")

	sched.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Stopped")
}
