// Package dataset loads the geocoded school CSV into an immutable record store.
package dataset

import (
	"sync/atomic"

	"schoolmap-api/internal/core/model"
)

// Store holds the full dataset for the session. Records never change after
// load; only the version counter moves, driven by invalidation events.
type Store struct {
	records []model.SchoolRecord
	version atomic.Uint64
}

func newStore(records []model.SchoolRecord) *Store {
	s := &Store{records: records}
	s.version.Store(1)
	return s
}

// Empty returns a store with no records, used when the data source failed to
// load so the rest of the system can stay up in an empty state.
func Empty() *Store {
	return newStore(nil)
}

// All returns every record in input order. Callers must not mutate the slice.
func (s *Store) All() []model.SchoolRecord {
	return s.records
}

func (s *Store) Len() int {
	return len(s.records)
}

// Version is the dataset version used in cache keys.
func (s *Store) Version() uint64 {
	return s.version.Load()
}

// BumpVersion advances the dataset version, making previously cached
// responses unreachable. Returns the new version.
func (s *Store) BumpVersion() uint64 {
	return s.version.Add(1)
}
