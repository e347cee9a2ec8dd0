package ports

import (
	"context"

	"github.com/aretw0/loom/pkg/domain"
)

// SnapshotStore defines the interface for persisting history snapshots.
type SnapshotStore interface {
	// Save persists the snapshot for a given session ID.
	Save(ctx context.Context, sessionID string, snapshot domain.Snapshot) error

	// Load retrieves the snapshot for a given session ID.
	// Returns domain.ErrSnapshotNotFound if the session does not exist.
	Load(ctx context.Context, sessionID string) (domain.Snapshot, error)

	// Delete removes the snapshot for a given session ID.
	// Deleting a missing session is not an error.
	Delete(ctx context.Context, sessionID string) error

	// List returns the IDs of the stored sessions.
	List(ctx context.Context) ([]string, error)
}
