package poll

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantlens/trendview/internal/trendapi"
)

type fetcherFunc func(ctx context.Context) (*trendapi.ControlStatus, error)

func (f fetcherFunc) ControlStatus(ctx context.Context) (*trendapi.ControlStatus, error) {
	return f(ctx)
}

// scriptedFetcher returns the given statuses in order, repeating the last one.
func scriptedFetcher(t *testing.T, jobKey string, statuses ...*trendapi.JobStatus) StatusFetcher {
	t.Helper()
	i := 0
	return fetcherFunc(func(ctx context.Context) (*trendapi.ControlStatus, error) {
		status := statuses[i]
		if i < len(statuses)-1 {
			i++
		}
		return &trendapi.ControlStatus{
			Jobs: map[string]*trendapi.JobStatus{jobKey: status},
		}, nil
	})
}

// fakeClock drives a poller without real sleeping.
type fakeClock struct {
	current time.Time
	slept   []time.Duration
}

func (c *fakeClock) install(p *Poller) {
	p.now = func() time.Time { return c.current }
	p.sleep = func(ctx context.Context, d time.Duration) error {
		c.slept = append(c.slept, d)
		c.current = c.current.Add(d)
		return nil
	}
}

func newTestPoller(fetch StatusFetcher) (*Poller, *fakeClock) {
	p := New(fetch, zerolog.Nop())
	clk := &fakeClock{current: time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)}
	clk.install(p)
	return p, clk
}

func running() *trendapi.JobStatus {
	return &trendapi.JobStatus{State: trendapi.JobStateRunning}
}

func TestWaitForJobResolvesOnSuccess(t *testing.T) {
	fetch := scriptedFetcher(t, "concept_insight",
		running(),
		running(),
		&trendapi.JobStatus{State: trendapi.JobStateSuccess, Message: "synced 120 rows"},
	)
	p, clk := newTestPoller(fetch)

	status, err := p.WaitForJob(context.Background(), "concept_insight", Options{})
	require.NoError(t, err)
	assert.Equal(t, trendapi.JobStateSuccess, status.State)
	assert.Equal(t, "synced 120 rows", status.Message)
	assert.Len(t, clk.slept, 2)
	assert.Equal(t, DefaultInterval, clk.slept[0])
}

func TestWaitForJobTreatsIdleAsDone(t *testing.T) {
	fetch := scriptedFetcher(t, "ppi",
		running(),
		&trendapi.JobStatus{State: trendapi.JobStateIdle},
	)
	p, _ := newTestPoller(fetch)

	status, err := p.WaitForJob(context.Background(), "ppi", Options{})
	require.NoError(t, err)
	assert.Equal(t, trendapi.JobStateIdle, status.State)
}

func TestWaitForJobMissingKeyIsIdle(t *testing.T) {
	fetch := fetcherFunc(func(ctx context.Context) (*trendapi.ControlStatus, error) {
		return &trendapi.ControlStatus{Jobs: map[string]*trendapi.JobStatus{}}, nil
	})
	p, _ := newTestPoller(fetch)

	status, err := p.WaitForJob(context.Background(), "dollar_index", Options{})
	require.NoError(t, err)
	assert.Equal(t, trendapi.JobStateIdle, status.State)
}

func TestWaitForJobRejectsOnError(t *testing.T) {
	fetch := scriptedFetcher(t, "concept_insight",
		running(),
		&trendapi.JobStatus{State: trendapi.JobStateError, Error: "upstream source unavailable"},
	)
	p, _ := newTestPoller(fetch)

	_, err := p.WaitForJob(context.Background(), "concept_insight", Options{})
	require.Error(t, err)
	assert.Equal(t, "upstream source unavailable", err.Error())

	var jobErr *JobError
	require.ErrorAs(t, err, &jobErr)
	assert.Equal(t, trendapi.JobStateError, jobErr.Status.State)
}

func TestWaitForJobErrorFallbackMessage(t *testing.T) {
	fetch := scriptedFetcher(t, "ppi",
		&trendapi.JobStatus{State: trendapi.JobStateError},
	)
	p, _ := newTestPoller(fetch)

	_, err := p.WaitForJob(context.Background(), "ppi", Options{})
	require.Error(t, err)
	assert.Equal(t, "job ppi failed", err.Error())
}

func TestWaitForJobTimesOut(t *testing.T) {
	fetch := scriptedFetcher(t, "index_history", running())
	p, clk := newTestPoller(fetch)

	_, err := p.WaitForJob(context.Background(), "index_history", Options{
		Interval: time.Second,
		Timeout:  10 * time.Second,
	})
	require.ErrorIs(t, err, ErrTimeout)
	// Coarse check once per iteration: overrun bounded by one interval
	assert.Len(t, clk.slept, 10)
}

func TestWaitForJobIgnoresStaleObservation(t *testing.T) {
	notBefore := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	previousRun := notBefore.Add(-time.Minute)
	currentRun := notBefore.Add(time.Second)

	fetch := scriptedFetcher(t, "concept_insight",
		// Previous run's terminal state still visible right after triggering
		&trendapi.JobStatus{State: trendapi.JobStateSuccess, StartedAt: &previousRun},
		&trendapi.JobStatus{State: trendapi.JobStateRunning, StartedAt: &currentRun},
		&trendapi.JobStatus{State: trendapi.JobStateSuccess, StartedAt: &currentRun},
	)
	p, clk := newTestPoller(fetch)

	status, err := p.WaitForJob(context.Background(), "concept_insight", Options{NotBefore: notBefore})
	require.NoError(t, err)
	require.NotNil(t, status.StartedAt)
	assert.Equal(t, currentRun, *status.StartedAt)
	// The stale success did not resolve the wait
	assert.GreaterOrEqual(t, len(clk.slept), 2)
}

func TestWaitForJobClockSkewTolerance(t *testing.T) {
	notBefore := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	// Started 1s before the trigger: within skew tolerance, not stale
	skewed := notBefore.Add(-time.Second)

	fetch := scriptedFetcher(t, "ppi",
		&trendapi.JobStatus{State: trendapi.JobStateSuccess, StartedAt: &skewed},
	)
	p, _ := newTestPoller(fetch)

	status, err := p.WaitForJob(context.Background(), "ppi", Options{NotBefore: notBefore})
	require.NoError(t, err)
	assert.Equal(t, trendapi.JobStateSuccess, status.State)
}

func TestWaitForJobPropagatesFetchFailure(t *testing.T) {
	fetchErr := errors.New("connection refused")
	calls := 0
	fetch := fetcherFunc(func(ctx context.Context) (*trendapi.ControlStatus, error) {
		calls++
		return nil, fetchErr
	})
	p, _ := newTestPoller(fetch)

	_, err := p.WaitForJob(context.Background(), "ppi", Options{})
	require.ErrorIs(t, err, fetchErr)
	// No per-iteration retry of transient fetch failures
	assert.Equal(t, 1, calls)
}

func TestWaitForJobContextCancellation(t *testing.T) {
	fetch := scriptedFetcher(t, "ppi", running())
	p := New(fetch, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := p.WaitForJob(ctx, "ppi", Options{Interval: time.Millisecond})
	require.ErrorIs(t, err, context.Canceled)
}
