package snapshot

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) (*Store, string) {
	t.Helper()
	dir := t.TempDir()
	store, err := NewStore(dir, zerolog.Nop())
	require.NoError(t, err)
	return store, dir
}

func TestAddAssignsIDAndTimestamp(t *testing.T) {
	store, _ := newTestStore(t)

	entry, err := store.Add(Entry{Title: "concept board"})
	require.NoError(t, err)
	assert.NotEmpty(t, entry.ID)
	assert.False(t, entry.CreatedAt.IsZero())
}

func TestRingCapacity(t *testing.T) {
	store, _ := newTestStore(t)

	for i := 0; i < Capacity+3; i++ {
		_, err := store.Add(Entry{ID: fmt.Sprintf("snap-%d", i)})
		require.NoError(t, err)
	}

	entries := store.List()
	require.Len(t, entries, Capacity)
	// Most recent first, oldest three dropped
	assert.Equal(t, fmt.Sprintf("snap-%d", Capacity+2), entries[0].ID)
	assert.Equal(t, "snap-3", entries[Capacity-1].ID)
}

func TestDedupMovesToFront(t *testing.T) {
	store, _ := newTestStore(t)

	_, err := store.Add(Entry{ID: "a"})
	require.NoError(t, err)
	_, err = store.Add(Entry{ID: "b"})
	require.NoError(t, err)
	_, err = store.Add(Entry{ID: "a", Title: "updated"})
	require.NoError(t, err)

	entries := store.List()
	require.Len(t, entries, 2)
	assert.Equal(t, "a", entries[0].ID)
	assert.Equal(t, "updated", entries[0].Title)
	assert.Equal(t, "b", entries[1].ID)
}

func TestPersistenceAcrossReopen(t *testing.T) {
	store, dir := newTestStore(t)

	_, err := store.Add(Entry{ID: "a", Title: "kept"})
	require.NoError(t, err)

	reopened, err := NewStore(dir, zerolog.Nop())
	require.NoError(t, err)

	entries := reopened.List()
	require.Len(t, entries, 1)
	assert.Equal(t, "kept", entries[0].Title)
}

func TestCorruptFileStartsEmpty(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, fileName), []byte("not msgpack"), 0o644))

	store, err := NewStore(dir, zerolog.Nop())
	require.NoError(t, err)
	assert.Empty(t, store.List())
}

func TestRemove(t *testing.T) {
	store, _ := newTestStore(t)

	_, err := store.Add(Entry{ID: "a"})
	require.NoError(t, err)

	found, err := store.Remove("a")
	require.NoError(t, err)
	assert.True(t, found)

	found, err = store.Remove("a")
	require.NoError(t, err)
	assert.False(t, found)
	assert.Empty(t, store.List())
}

func TestClear(t *testing.T) {
	store, _ := newTestStore(t)

	_, err := store.Add(Entry{ID: "a"})
	require.NoError(t, err)
	require.NoError(t, store.Clear())
	assert.Empty(t, store.List())
}
