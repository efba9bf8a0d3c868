// Package history stores lightweight per-context restoration snapshots.
//
// A snapshot is the last computed viewport state plus the scroll position.
// It exists purely so a revisited context can restore its view instantly
// instead of recomputing from scratch; it never decides whether a network
// fetch is needed (the listing location cache does that).
package history

import (
	"sort"
	"sync"
	"time"

	"github.com/jeffrigby/reacddit-sub000/internal/viewport"
)

const (
	// MaxEntries is the most contexts the store keeps.
	MaxEntries = 7

	// MaxAge is how long a snapshot stays usable.
	MaxAge = time.Hour
)

// Scroll is a saved scroll position.
type Scroll struct {
	X float64
	Y float64
}

// Snapshot is the restoration state for one navigation context.
type Snapshot struct {
	Viewport viewport.State
	Scroll   Scroll
	SavedAt  time.Time
}

// Store holds at most MaxEntries snapshots, none older than MaxAge. Pruning
// is lazy: it runs on every write, removing by age first, then oldest-first
// by count until both constraints hold.
type Store struct {
	mu      sync.Mutex
	entries map[string]Snapshot
	now     func() time.Time
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{
		entries: make(map[string]Snapshot),
		now:     time.Now,
	}
}

// Put saves or overwrites the snapshot for a context and prunes.
func (s *Store) Put(nav string, snap Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap.SavedAt = s.now()
	s.entries[nav] = snap
	s.prune()
}

// Get returns the snapshot for a context if it is still within MaxAge.
func (s *Store) Get(nav string) (Snapshot, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap, ok := s.entries[nav]
	if !ok {
		return Snapshot{}, false
	}
	if s.now().Sub(snap.SavedAt) > MaxAge {
		delete(s.entries, nav)
		return Snapshot{}, false
	}
	return snap, true
}

// Delete removes the snapshot for a context.
func (s *Store) Delete(nav string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, nav)
}

// Len returns the number of stored snapshots.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// prune enforces the age bound, then the count bound. Caller holds the lock.
func (s *Store) prune() {
	cutoff := s.now().Add(-MaxAge)
	for nav, snap := range s.entries {
		if snap.SavedAt.Before(cutoff) {
			delete(s.entries, nav)
		}
	}

	if len(s.entries) <= MaxEntries {
		return
	}

	type aged struct {
		nav     string
		savedAt time.Time
	}
	all := make([]aged, 0, len(s.entries))
	for nav, snap := range s.entries {
		all = append(all, aged{nav, snap.SavedAt})
	}
	sort.Slice(all, func(i, j int) bool {
		return all[i].savedAt.Before(all[j].savedAt)
	})
	for _, a := range all[:len(all)-MaxEntries] {
		delete(s.entries, a.nav)
	}
}
