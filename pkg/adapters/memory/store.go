package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/aretw0/loom/pkg/domain"
	"github.com/mohae/deepcopy"
)

// Store implements ports.SnapshotStore in memory.
// Safe for concurrent use.
type Store struct {
	data map[string]domain.Snapshot
	mu   sync.RWMutex
}

// NewStore creates a new in-memory store.
func NewStore() *Store {
	return &Store{
		data: make(map[string]domain.Snapshot),
	}
}

func clone(snap domain.Snapshot) domain.Snapshot {
	return deepcopy.Copy(snap).(domain.Snapshot)
}

// Save keeps a deep copy of the snapshot.
func (s *Store) Save(ctx context.Context, sessionID string, snap domain.Snapshot) error {
	if sessionID == "" {
		return domain.ErrEmptySessionID
	}
	copied := clone(snap)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[sessionID] = copied
	return nil
}

// Load returns a copy so callers can't mutate the stored snapshot.
func (s *Store) Load(ctx context.Context, sessionID string) (domain.Snapshot, error) {
	if sessionID == "" {
		return domain.Snapshot{}, domain.ErrEmptySessionID
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap, ok := s.data[sessionID]
	if !ok {
		return domain.Snapshot{}, domain.ErrSnapshotNotFound
	}
	return clone(snap), nil
}

// Delete removes the snapshot.
func (s *Store) Delete(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, sessionID)
	return nil
}

// List returns the stored session IDs, sorted.
func (s *Store) List(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sessions := make([]string, 0, len(s.data))
	for id := range s.data {
		sessions = append(sessions, id)
	}
	sort.Strings(sessions)
	return sessions, nil
}
