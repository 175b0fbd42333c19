package clientdata

import (
	"database/sql"
	"fmt"
	"time"
)

// JobRun is one recorded trigger-and-poll cycle for a named job.
type JobRun struct {
	ID         string     `json:"id"`
	Job        string     `json:"job"`
	State      string     `json:"state"` // running, success, error, timeout
	Error      string     `json:"error,omitempty"`
	StartedAt  time.Time  `json:"startedAt"`
	FinishedAt *time.Time `json:"finishedAt,omitempty"`
}

// RecordRunStart inserts a run in the running state.
func (r *Repository) RecordRunStart(run JobRun) error {
	_, err := r.db.Exec(
		"INSERT INTO job_runs (id, job, state, error, started_at) VALUES (?, ?, ?, '', ?)",
		run.ID, run.Job, run.State, run.StartedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to record run start: %w", err)
	}
	return nil
}

// RecordRunFinish marks a run terminal.
func (r *Repository) RecordRunFinish(id, state, errText string, finishedAt time.Time) error {
	_, err := r.db.Exec(
		"UPDATE job_runs SET state = ?, error = ?, finished_at = ? WHERE id = ?",
		state, errText, finishedAt.Unix(), id,
	)
	if err != nil {
		return fmt.Errorf("failed to record run finish: %w", err)
	}
	return nil
}

// RecentRuns returns the newest runs first, bounded by limit.
func (r *Repository) RecentRuns(limit int) ([]JobRun, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := r.db.Query(
		"SELECT id, job, state, error, started_at, finished_at FROM job_runs ORDER BY started_at DESC LIMIT ?",
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query job runs: %w", err)
	}
	defer rows.Close()

	var runs []JobRun
	for rows.Next() {
		var run JobRun
		var startedAt int64
		var finishedAt sql.NullInt64
		if err := rows.Scan(&run.ID, &run.Job, &run.State, &run.Error, &startedAt, &finishedAt); err != nil {
			return nil, fmt.Errorf("failed to scan job run: %w", err)
		}
		run.StartedAt = time.Unix(startedAt, 0)
		if finishedAt.Valid {
			ts := time.Unix(finishedAt.Int64, 0)
			run.FinishedAt = &ts
		}
		runs = append(runs, run)
	}

	return runs, rows.Err()
}

// PruneRuns keeps only the newest keep runs.
func (r *Repository) PruneRuns(keep int) (int64, error) {
	if keep <= 0 {
		keep = 100
	}

	result, err := r.db.Exec(
		`DELETE FROM job_runs WHERE id NOT IN (
			SELECT id FROM job_runs ORDER BY started_at DESC LIMIT ?
		)`, keep,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to prune job runs: %w", err)
	}
	return result.RowsAffected()
}
