package clientdata

import (
	"github.com/rs/zerolog"
)

// CleanupJob removes expired entries from all dataset cache tables and
// prunes old job run records. It should be scheduled to run daily.
type CleanupJob struct {
	repo     *Repository
	keepRuns int
	log      zerolog.Logger
}

// NewCleanupJob creates a new cache cleanup job.
func NewCleanupJob(repo *Repository, keepRuns int, log zerolog.Logger) *CleanupJob {
	return &CleanupJob{
		repo:     repo,
		keepRuns: keepRuns,
		log:      log.With().Str("job", "cache_cleanup").Logger(),
	}
}

// Run executes the cleanup job, removing all expired entries from all tables.
func (j *CleanupJob) Run() {
	results, err := j.repo.DeleteAllExpired()
	if err != nil {
		j.log.Error().Err(err).Msg("Failed to delete expired cache entries")
		return
	}

	var totalDeleted int64
	for table, count := range results {
		if count > 0 {
			j.log.Info().
				Str("table", table).
				Int64("deleted", count).
				Msg("Cleaned up expired cache entries")
			totalDeleted += count
		}
	}

	pruned, err := j.repo.PruneRuns(j.keepRuns)
	if err != nil {
		j.log.Error().Err(err).Msg("Failed to prune job runs")
	} else if pruned > 0 {
		j.log.Info().Int64("pruned", pruned).Msg("Pruned old job runs")
	}

	if totalDeleted > 0 {
		j.log.Info().
			Int64("total_deleted", totalDeleted).
			Msg("Cache cleanup completed")
	}
}

// Name returns the job name for scheduling and logging.
func (j *CleanupJob) Name() string {
	return "cache_cleanup"
}
