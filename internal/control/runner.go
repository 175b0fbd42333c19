package control

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/quantlens/trendview/internal/clientdata"
	"github.com/quantlens/trendview/internal/events"
	"github.com/quantlens/trendview/internal/poll"
	"github.com/quantlens/trendview/internal/trendapi"
)

// ErrAlreadyRunning is returned when a job is re-triggered while a run is
// still in flight. Callers surface the existing run instead of stacking a
// second poll.
var ErrAlreadyRunning = errors.New("job already running")

// Backend is the slice of the upstream client the runner needs.
// Satisfied by *trendapi.Client.
type Backend interface {
	TriggerSync(ctx context.Context, jobSlug string, payload interface{}) error
	ControlStatus(ctx context.Context) (*trendapi.ControlStatus, error)
	Dataset(ctx context.Context, name string, limit, offset int) (*trendapi.Page, error)
}

// Runner triggers sync jobs and tracks their runs.
type Runner struct {
	api    Backend
	poller *poll.Poller
	repo   *clientdata.Repository
	bus    *events.Bus
	log    zerolog.Logger

	pollInterval time.Duration
	pollTimeout  time.Duration

	// Background polls outlive the HTTP request that started them but not
	// the runner itself.
	baseCtx context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	mu     sync.Mutex
	active map[string]string // job key -> run id
}

// NewRunner creates a runner. pollInterval/pollTimeout of zero use the
// poll package defaults.
func NewRunner(api Backend, repo *clientdata.Repository, bus *events.Bus, log zerolog.Logger, pollInterval, pollTimeout time.Duration) *Runner {
	baseCtx, cancel := context.WithCancel(context.Background())
	return &Runner{
		api:          api,
		poller:       poll.New(api, log),
		repo:         repo,
		bus:          bus,
		log:          log.With().Str("component", "control_runner").Logger(),
		pollInterval: pollInterval,
		pollTimeout:  pollTimeout,
		baseCtx:      baseCtx,
		cancel:       cancel,
		active:       make(map[string]string),
	}
}

// Close cancels outstanding background polls and waits for them to unwind.
func (r *Runner) Close() {
	r.cancel()
	r.wg.Wait()
}

// Running returns the in-flight run ids keyed by job key.
func (r *Runner) Running() map[string]string {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make(map[string]string, len(r.active))
	for key, id := range r.active {
		out[key] = id
	}
	return out
}

// Trigger starts a job and polls it in the background, returning the run id
// immediately. Returns ErrAlreadyRunning (with the existing run id) when the
// job has a run in flight.
func (r *Runner) Trigger(ctx context.Context, job SyncJob, payload map[string]interface{}) (string, error) {
	runID, notBefore, err := r.begin(ctx, job, payload)
	if err != nil {
		return runID, err
	}

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		// Detached from the request context: navigating away no longer
		// orphans the poll, shutdown cancels it.
		_ = r.finish(r.baseCtx, job, runID, notBefore)
	}()

	return runID, nil
}

// TriggerAndWait starts a job and blocks until it settles. Used by the
// scheduler and anywhere else that wants the outcome inline.
func (r *Runner) TriggerAndWait(ctx context.Context, job SyncJob, payload map[string]interface{}) (string, error) {
	runID, notBefore, err := r.begin(ctx, job, payload)
	if err != nil {
		return runID, err
	}
	return runID, r.finish(ctx, job, runID, notBefore)
}

// begin performs the single-flight check, the trigger POST and the run
// bookkeeping shared by both entry points.
func (r *Runner) begin(ctx context.Context, job SyncJob, payload map[string]interface{}) (string, time.Time, error) {
	r.mu.Lock()
	if existing, ok := r.active[job.Key]; ok {
		r.mu.Unlock()
		return existing, time.Time{}, ErrAlreadyRunning
	}
	runID := uuid.NewString()
	r.active[job.Key] = runID
	r.mu.Unlock()

	notBefore := time.Now()

	if err := r.api.TriggerSync(ctx, job.Slug, payload); err != nil {
		r.release(job.Key)
		return "", time.Time{}, fmt.Errorf("failed to trigger %s: %w", job.Key, err)
	}

	if err := r.repo.RecordRunStart(clientdata.JobRun{
		ID: runID, Job: job.Key, State: "running", StartedAt: notBefore,
	}); err != nil {
		r.log.Warn().Err(err).Str("job", job.Key).Msg("Failed to record run start")
	}

	r.bus.Emit(events.JobStarted, "control_runner", map[string]interface{}{
		"job": job.Key, "run_id": runID,
	})
	r.log.Info().Str("job", job.Key).Str("run_id", runID).Msg("Job triggered")

	return runID, notBefore, nil
}

func (r *Runner) release(jobKey string) {
	r.mu.Lock()
	delete(r.active, jobKey)
	r.mu.Unlock()
}

// finish polls the job to a terminal state and refreshes its dataset.
func (r *Runner) finish(ctx context.Context, job SyncJob, runID string, notBefore time.Time) error {
	defer r.release(job.Key)

	status, err := r.poller.WaitForJob(ctx, job.Key, poll.Options{
		Interval:  r.pollInterval,
		Timeout:   r.pollTimeout,
		NotBefore: notBefore,
	})
	if err != nil {
		state := "error"
		if errors.Is(err, poll.ErrTimeout) {
			state = "timeout"
		}
		if recErr := r.repo.RecordRunFinish(runID, state, err.Error(), time.Now()); recErr != nil {
			r.log.Warn().Err(recErr).Str("run_id", runID).Msg("Failed to record run finish")
		}
		r.bus.Emit(events.JobFailed, "control_runner", map[string]interface{}{
			"job": job.Key, "run_id": runID, "state": state, "error": err.Error(),
		})
		r.log.Error().Err(err).Str("job", job.Key).Str("run_id", runID).Msg("Job failed")
		return err
	}

	if job.Dataset != "" {
		// Completion is what invalidates the cached dataset
		if _, err := r.RefreshDataset(ctx, job.Dataset); err != nil {
			r.log.Warn().Err(err).Str("dataset", job.Dataset).Msg("Dataset refresh after sync failed")
		}
	}

	if err := r.repo.RecordRunFinish(runID, "success", "", time.Now()); err != nil {
		r.log.Warn().Err(err).Str("run_id", runID).Msg("Failed to record run finish")
	}
	r.bus.Emit(events.JobSucceeded, "control_runner", map[string]interface{}{
		"job": job.Key, "run_id": runID, "message": status.Message,
	})
	r.log.Info().Str("job", job.Key).Str("run_id", runID).Msg("Job completed")
	return nil
}

// RefreshDataset fetches a dataset from upstream and stores it in the cache.
func (r *Runner) RefreshDataset(ctx context.Context, dataset string) (*trendapi.Page, error) {
	page, err := r.api.Dataset(ctx, dataset, 0, 0)
	if err != nil {
		return nil, err
	}

	table := TableFor(dataset)
	if err := r.repo.Store(table, clientdata.DefaultPageKey, page, clientdata.TTLFor(table)); err != nil {
		r.log.Warn().Err(err).Str("dataset", dataset).Msg("Failed to cache dataset")
	}

	r.bus.Emit(events.DatasetRefresh, "control_runner", map[string]interface{}{
		"dataset": dataset, "items": len(page.Items),
	})
	return page, nil
}

// RefreshAll fans out over every dataset concurrently. Failures are
// isolated per dataset - one bad source must not blank the whole board.
func (r *Runner) RefreshAll(ctx context.Context) {
	var wg sync.WaitGroup
	for _, name := range trendapi.DatasetNames() {
		wg.Add(1)
		go func(dataset string) {
			defer wg.Done()
			if _, err := r.RefreshDataset(ctx, dataset); err != nil {
				r.log.Warn().Err(err).Str("dataset", dataset).Msg("Initial dataset refresh failed")
			}
		}(name)
	}
	wg.Wait()
}
