// Package history keeps an append-only record of completed executions
// and computes comparisons between two of them.
package history

import (
	"errors"
	"sync"

	"github.com/audiostudio/conductor/pkg/domain"
)

// ErrEntryNotFound is returned when an entry id does not exist.
var ErrEntryNotFound = errors.New("history entry not found")

// Store is an in-memory, append-only history of completed runs, keyed
// by workflow id. Entries are never edited or removed here; retention
// is the persistence collaborator's concern.
type Store struct {
	mu      sync.RWMutex
	entries map[string][]domain.ExecutionHistoryEntry
}

// NewStore creates an empty history store.
func NewStore() *Store {
	return &Store{entries: make(map[string][]domain.ExecutionHistoryEntry)}
}

// Append records one completed run.
func (s *Store) Append(workflowID string, entry domain.ExecutionHistoryEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[workflowID] = append(s.entries[workflowID], entry.Clone())
}

// List returns the entries for a workflow in append order.
func (s *Store) List(workflowID string) []domain.ExecutionHistoryEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries := s.entries[workflowID]
	out := make([]domain.ExecutionHistoryEntry, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.Clone())
	}
	return out
}

// Get returns one entry by id, searching across workflows.
func (s *Store) Get(entryID string) (domain.ExecutionHistoryEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, entries := range s.entries {
		for _, e := range entries {
			if e.ID == entryID {
				return e.Clone(), nil
			}
		}
	}
	return domain.ExecutionHistoryEntry{}, ErrEntryNotFound
}
