package scheduler

import (
	"database/sql"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/quantlens/trendview/internal/clientdata"
	"github.com/quantlens/trendview/internal/control"
	"github.com/quantlens/trendview/internal/events"
	"github.com/quantlens/trendview/internal/trendapi"
)

func newTestScheduler(t *testing.T) *Scheduler {
	t.Helper()

	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })

	repo := clientdata.NewRepository(db)
	require.NoError(t, repo.InitSchema())

	api := trendapi.NewClient("http://localhost:1", zerolog.Nop())
	runner := control.NewRunner(api, repo, events.NewBus(), zerolog.Nop(), time.Millisecond, time.Second)
	t.Cleanup(runner.Close)

	cleanup := clientdata.NewCleanupJob(repo, 100, zerolog.Nop())
	return New(runner, cleanup, nil, zerolog.Nop())
}

func TestRegisterValidSpecs(t *testing.T) {
	s := newTestScheduler(t)

	err := s.Register(Config{
		SyncSpec:    "0 */4 * * *",
		CleanupSpec: "30 3 * * *",
	})
	require.NoError(t, err)
}

func TestRegisterInvalidSpec(t *testing.T) {
	s := newTestScheduler(t)

	err := s.Register(Config{SyncSpec: "not a cron spec"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid sync cron spec")
}

func TestRegisterBackupSpecIgnoredWithoutService(t *testing.T) {
	s := newTestScheduler(t)

	// Backup spec set but no backup service configured: nothing to schedule
	err := s.Register(Config{BackupSpec: "0 2 * * *"})
	require.NoError(t, err)
	assert.Empty(t, s.cron.Entries())
}
