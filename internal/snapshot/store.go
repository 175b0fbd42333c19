// Package snapshot keeps a small ring of recent dashboard snapshot summaries,
// the console-side replacement for the browser's localStorage list.
package snapshot

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/vmihailenco/msgpack/v5"
)

// Capacity bounds the ring: most-recent-first, oldest dropped.
const Capacity = 12

const fileName = "recent_snapshots.msgpack"

// Entry is one saved snapshot summary.
type Entry struct {
	ID        string                 `msgpack:"id" json:"id"`
	Title     string                 `msgpack:"title" json:"title"`
	Dataset   string                 `msgpack:"dataset" json:"dataset"`
	Summary   map[string]interface{} `msgpack:"summary" json:"summary,omitempty"`
	CreatedAt time.Time              `msgpack:"created_at" json:"createdAt"`
}

// Store manages the snapshot ring on disk.
type Store struct {
	path    string
	mu      sync.Mutex
	entries []Entry
	log     zerolog.Logger
}

// NewStore creates a Store backed by a file in dir, loading any existing
// entries. A corrupt or missing file yields an empty ring - snapshot
// history is never worth failing startup over.
func NewStore(dir string, log zerolog.Logger) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("snapshot store: mkdir %s: %w", dir, err)
	}

	s := &Store{
		path: filepath.Join(dir, fileName),
		log:  log.With().Str("component", "snapshot_store").Logger(),
	}
	s.load()
	return s, nil
}

func (s *Store) load() {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			s.log.Warn().Err(err).Msg("Failed to read snapshot file, starting empty")
		}
		return
	}

	var entries []Entry
	if err := msgpack.Unmarshal(data, &entries); err != nil {
		s.log.Warn().Err(err).Msg("Corrupt snapshot file, starting empty")
		return
	}

	if len(entries) > Capacity {
		entries = entries[:Capacity]
	}
	s.entries = entries
}

// persist writes the ring atomically. Caller holds the lock.
func (s *Store) persist() error {
	data, err := msgpack.Marshal(s.entries)
	if err != nil {
		return fmt.Errorf("snapshot store: marshal: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("snapshot store: write: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("snapshot store: rename: %w", err)
	}
	return nil
}

// Add puts an entry at the front of the ring. Re-adding an existing id
// moves it to the front instead of duplicating it; the oldest entry is
// dropped when the ring is full.
func (s *Store) Add(entry Entry) (Entry, error) {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	kept := make([]Entry, 0, len(s.entries)+1)
	kept = append(kept, entry)
	for _, existing := range s.entries {
		if existing.ID == entry.ID {
			continue
		}
		kept = append(kept, existing)
	}
	if len(kept) > Capacity {
		kept = kept[:Capacity]
	}
	s.entries = kept

	if err := s.persist(); err != nil {
		return entry, err
	}
	return entry, nil
}

// List returns the entries most-recent-first.
func (s *Store) List() []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Entry, len(s.entries))
	copy(out, s.entries)
	return out
}

// Remove deletes an entry by id, reporting whether it existed.
func (s *Store) Remove(id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.entries[:0]
	found := false
	for _, existing := range s.entries {
		if existing.ID == id {
			found = true
			continue
		}
		kept = append(kept, existing)
	}
	s.entries = kept

	if !found {
		return false, nil
	}
	return true, s.persist()
}

// Clear drops all entries.
func (s *Store) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries = nil
	return s.persist()
}
