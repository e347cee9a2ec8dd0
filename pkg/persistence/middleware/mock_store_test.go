package middleware_test

import (
	"context"

	"github.com/aretw0/loom/pkg/domain"
	"github.com/aretw0/loom/pkg/ports"
)

// MockStore keeps snapshots as given, without copying, so tests can inspect
// exactly what a middleware handed down.
type MockStore struct {
	data map[string]domain.Snapshot
}

func NewMockStore() *MockStore {
	return &MockStore{
		data: make(map[string]domain.Snapshot),
	}
}

func (s *MockStore) Save(ctx context.Context, sessionID string, snap domain.Snapshot) error {
	s.data[sessionID] = snap
	return nil
}

func (s *MockStore) Load(ctx context.Context, sessionID string) (domain.Snapshot, error) {
	snap, ok := s.data[sessionID]
	if !ok {
		return domain.Snapshot{}, domain.ErrSnapshotNotFound
	}
	return snap, nil
}

func (s *MockStore) Delete(ctx context.Context, sessionID string) error {
	delete(s.data, sessionID)
	return nil
}

func (s *MockStore) List(ctx context.Context) ([]string, error) {
	keys := make([]string, 0, len(s.data))
	for k := range s.data {
		keys = append(keys, k)
	}
	return keys, nil
}

var _ ports.SnapshotStore = (*MockStore)(nil)
