// Package poll waits for named backend jobs to reach a terminal state.
//
// A caller triggers a job via the control endpoint, then polls the status
// endpoint until the job finishes, fails, or the timeout elapses. The status
// endpoint can still report the previous run's terminal state right after a
// trigger, so observations whose start time predates the trigger are
// discarded as stale instead of being mistaken for the awaited completion.
package poll

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/quantlens/trendview/internal/trendapi"
)

const (
	// DefaultInterval matches the dashboard's historical 2.5s cadence.
	DefaultInterval = 2500 * time.Millisecond
	// DefaultTimeout bounds a poll; sync jobs normally finish well inside it.
	DefaultTimeout = 3 * time.Minute
	// ClockSkewTolerance is how far a reported start time may precede the
	// trigger time before the observation counts as stale. Backend and
	// console clocks are close but not identical.
	ClockSkewTolerance = 2 * time.Second
)

// ErrTimeout is returned when a job does not reach a terminal state in time.
var ErrTimeout = errors.New("job polling timed out")

// JobError is a job that reached the error state. It carries the raw status
// for inspection; the message is the backend's error text when present.
type JobError struct {
	Key    string
	Status *trendapi.JobStatus
}

func (e *JobError) Error() string {
	if e.Status != nil && e.Status.Error != "" {
		return e.Status.Error
	}
	return fmt.Sprintf("job %s failed", e.Key)
}

// StatusFetcher fetches the control status payload. Satisfied by
// *trendapi.Client.
type StatusFetcher interface {
	ControlStatus(ctx context.Context) (*trendapi.ControlStatus, error)
}

// Options configures a single poll.
type Options struct {
	Interval time.Duration
	Timeout  time.Duration
	// NotBefore is the trigger time of the run being awaited. Observations
	// started earlier (beyond clock skew tolerance) are stale. Zero disables
	// the guard.
	NotBefore time.Time
}

func (o Options) withDefaults() Options {
	if o.Interval <= 0 {
		o.Interval = DefaultInterval
	}
	if o.Timeout <= 0 {
		o.Timeout = DefaultTimeout
	}
	return o
}

// Poller polls the control status endpoint until jobs settle.
type Poller struct {
	fetch StatusFetcher
	log   zerolog.Logger

	// Injectable for tests
	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// New creates a poller on top of a status fetcher.
func New(fetch StatusFetcher, log zerolog.Logger) *Poller {
	return &Poller{
		fetch: fetch,
		log:   log.With().Str("component", "poller").Logger(),
		now:   time.Now,
		sleep: sleepCtx,
	}
}

// WaitForJob polls until jobKey reaches a terminal state.
//
// Terminal success is success or idle - a job that finished resets to idle,
// so both mean "done". Terminal failure returns a *JobError. Exceeding the
// timeout returns an error wrapping ErrTimeout; the elapsed check runs once
// per iteration, so the actual overrun can exceed the timeout by up to one
// interval. A failed status fetch is returned immediately - transient
// failures are not retried inside the loop (callers surface them and the
// user re-triggers).
func (p *Poller) WaitForJob(ctx context.Context, jobKey string, opts Options) (*trendapi.JobStatus, error) {
	opts = opts.withDefaults()
	started := p.now()

	p.log.Debug().
		Str("job", jobKey).
		Dur("interval", opts.Interval).
		Dur("timeout", opts.Timeout).
		Msg("Polling job status")

	for {
		status, err := p.observe(ctx, jobKey, opts.NotBefore)
		if err != nil {
			return nil, err
		}

		if status != nil {
			switch status.State {
			case trendapi.JobStateSuccess, trendapi.JobStateIdle:
				p.log.Debug().
					Str("job", jobKey).
					Str("state", string(status.State)).
					Msg("Job completed")
				return status, nil
			case trendapi.JobStateError:
				return nil, &JobError{Key: jobKey, Status: status}
			}
		}

		if p.now().Sub(started) >= opts.Timeout {
			return nil, fmt.Errorf("job %s: %w after %s", jobKey, ErrTimeout, opts.Timeout)
		}

		if err := p.sleep(ctx, opts.Interval); err != nil {
			return nil, err
		}
	}
}

// observe fetches the current status for jobKey, returning nil for a stale
// observation (one describing a previous run).
func (p *Poller) observe(ctx context.Context, jobKey string, notBefore time.Time) (*trendapi.JobStatus, error) {
	control, err := p.fetch.ControlStatus(ctx)
	if err != nil {
		return nil, fmt.Errorf("status poll failed: %w", err)
	}

	status := control.Job(jobKey)

	if !notBefore.IsZero() && status.StartedAt != nil &&
		status.StartedAt.Before(notBefore.Add(-ClockSkewTolerance)) {
		p.log.Debug().
			Str("job", jobKey).
			Time("started_at", *status.StartedAt).
			Time("not_before", notBefore).
			Msg("Discarding stale status observation")
		return nil, nil
	}

	return status, nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
