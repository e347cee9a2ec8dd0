package ports

import (
	"context"
	"testing"
	"time"

	"github.com/aretw0/loom/pkg/domain"
	"github.com/aretw0/loom/pkg/state"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func contractSnapshot() domain.Snapshot {
	return domain.Snapshot{
		Version:      domain.SnapshotVersion,
		CurrentState: []any{state.NewDynamicState("x", "LinkableNumber", 5.0)},
		UndoHistory: []domain.LogEntry{{
			ID:           0,
			Forward:      []any{state.NewDynamicState("x", "", 5.0)},
			Backward:     []any{state.NewDynamicState("x", "", 0.0)},
			TriggerDelay: 12,
			DiffDuration: 3,
		}},
		RedoHistory: []domain.LogEntry{},
		NextID:      1,
	}
}

// RunSnapshotStoreContract runs a suite of tests to verify that a SnapshotStore
// implementation adheres to the defined interface contract.
func RunSnapshotStoreContract(t *testing.T, store SnapshotStore) {
	ctx := context.Background()
	sessionID := "contract-test-session-" + time.Now().Format("20060102150405")

	t.Run("Save and Load", func(t *testing.T) {
		snap := contractSnapshot()

		err := store.Save(ctx, sessionID, snap)
		require.NoError(t, err, "Save should not return error")

		loaded, err := store.Load(ctx, sessionID)
		require.NoError(t, err, "Load should not return error")
		assert.Equal(t, snap.Version, loaded.Version)
		assert.Equal(t, snap.NextID, loaded.NextID)
		require.Len(t, loaded.UndoHistory, 1)
		assert.Equal(t, int64(12), loaded.UndoHistory[0].TriggerDelay)
		assert.Empty(t, loaded.RedoHistory)

		// stores may hand back records in their JSON form
		d, changed := state.Diff(snap.CurrentState, loaded.CurrentState)
		assert.False(t, changed, "current state should survive a round trip, diff %#v", d)
		d, changed = state.Diff(snap.UndoHistory[0].Forward, loaded.UndoHistory[0].Forward)
		assert.False(t, changed, "entries should survive a round trip, diff %#v", d)
	})

	t.Run("Load Non-Existent", func(t *testing.T) {
		_, err := store.Load(ctx, "non-existent-"+sessionID)
		assert.ErrorIs(t, err, domain.ErrSnapshotNotFound)
	})

	t.Run("Empty Session ID", func(t *testing.T) {
		assert.ErrorIs(t, store.Save(ctx, "", contractSnapshot()), domain.ErrEmptySessionID)
		_, err := store.Load(ctx, "")
		assert.ErrorIs(t, err, domain.ErrEmptySessionID)
	})

	t.Run("Delete", func(t *testing.T) {
		err := store.Save(ctx, sessionID, contractSnapshot())
		require.NoError(t, err)

		err = store.Delete(ctx, sessionID)
		require.NoError(t, err, "Delete should not return error")

		_, err = store.Load(ctx, sessionID)
		assert.ErrorIs(t, err, domain.ErrSnapshotNotFound, "Load after Delete should return ErrSnapshotNotFound")

		assert.NoError(t, store.Delete(ctx, sessionID), "deleting twice is not an error")
	})

	t.Run("List", func(t *testing.T) {
		id1 := sessionID + "-1"
		id2 := sessionID + "-2"
		require.NoError(t, store.Save(ctx, id1, contractSnapshot()))
		require.NoError(t, store.Save(ctx, id2, contractSnapshot()))

		defer func() {
			_ = store.Delete(ctx, id1)
			_ = store.Delete(ctx, id2)
		}()

		sessions, err := store.List(ctx)
		require.NoError(t, err)
		assert.Contains(t, sessions, id1)
		assert.Contains(t, sessions, id2)
	})
}
