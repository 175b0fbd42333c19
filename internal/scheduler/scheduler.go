// Package scheduler runs the periodic maintenance jobs: dataset syncs,
// cache cleanup and cloud backups, each on its own cron spec.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/quantlens/trendview/internal/backup"
	"github.com/quantlens/trendview/internal/clientdata"
	"github.com/quantlens/trendview/internal/control"
)

// Config holds the cron specs. An empty spec disables that job.
type Config struct {
	SyncSpec    string
	CleanupSpec string
	BackupSpec  string
}

// Scheduler drives the runner, the cache cleaner and the backup service
// on their cron schedules.
type Scheduler struct {
	cron    *cron.Cron
	runner  *control.Runner
	cleanup *clientdata.CleanupJob
	backup  *backup.Service // nil when backups are not configured
	log     zerolog.Logger
}

// New creates a scheduler. backupService may be nil.
func New(runner *control.Runner, cleanup *clientdata.CleanupJob, backupService *backup.Service, log zerolog.Logger) *Scheduler {
	return &Scheduler{
		cron:    cron.New(),
		runner:  runner,
		cleanup: cleanup,
		backup:  backupService,
		log:     log.With().Str("component", "scheduler").Logger(),
	}
}

// Register wires the configured cron specs. Must be called before Start.
func (s *Scheduler) Register(cfg Config) error {
	if cfg.SyncSpec != "" {
		if _, err := s.cron.AddFunc(cfg.SyncSpec, s.runSyncAll); err != nil {
			return fmt.Errorf("invalid sync cron spec %q: %w", cfg.SyncSpec, err)
		}
		s.log.Info().Str("spec", cfg.SyncSpec).Msg("Scheduled dataset sync")
	}

	if cfg.CleanupSpec != "" {
		if _, err := s.cron.AddFunc(cfg.CleanupSpec, s.runCleanup); err != nil {
			return fmt.Errorf("invalid cleanup cron spec %q: %w", cfg.CleanupSpec, err)
		}
		s.log.Info().Str("spec", cfg.CleanupSpec).Msg("Scheduled cache cleanup")
	}

	if cfg.BackupSpec != "" && s.backup != nil {
		if _, err := s.cron.AddFunc(cfg.BackupSpec, s.runBackup); err != nil {
			return fmt.Errorf("invalid backup cron spec %q: %w", cfg.BackupSpec, err)
		}
		s.log.Info().Str("spec", cfg.BackupSpec).Msg("Scheduled backup")
	}

	return nil
}

// Start begins running scheduled jobs in the background.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.log.Info().Msg("Scheduler started")
}

// Stop halts scheduling and waits for running jobs to finish.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.log.Info().Msg("Scheduler stopped")
}

// runSyncAll triggers every registered sync job sequentially, waiting for
// each to settle. Sequential on purpose: the upstream runs the heavy
// lifting and parallel triggers just pile onto its queue.
func (s *Scheduler) runSyncAll() {
	s.log.Info().Msg("Scheduled sync starting")
	started := time.Now()

	failures := 0
	for _, job := range control.Jobs {
		if _, err := s.runner.TriggerAndWait(context.Background(), job, nil); err != nil {
			failures++
			s.log.Warn().Err(err).Str("job", job.Key).Msg("Scheduled sync job failed")
		}
	}

	s.log.Info().
		Dur("duration_ms", time.Since(started)).
		Int("jobs", len(control.Jobs)).
		Int("failures", failures).
		Msg("Scheduled sync finished")
}

func (s *Scheduler) runCleanup() {
	s.cleanup.Run()
}

func (s *Scheduler) runBackup() {
	if err := s.backup.Run(context.Background()); err != nil {
		s.log.Error().Err(err).Msg("Scheduled backup failed")
	}
}
