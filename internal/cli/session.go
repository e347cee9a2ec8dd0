package cli

import (
	"context"
	"fmt"

	"github.com/aretw0/loom"
	"github.com/aretw0/loom/pkg/domain"
	"github.com/aretw0/loom/pkg/persistence"
)

// Replay restores a stored session, undoes (negative delta) or redoes
// (positive delta) steps, and stores the result. It returns the number of
// steps applied.
func Replay(ctx context.Context, sessions *persistence.Manager, sessionID string, delta int, newWorkspace func() *loom.Workspace) (int, error) {
	applied := 0
	err := sessions.Update(ctx, sessionID, func(snap *domain.Snapshot) error {
		ws := newWorkspace()
		defer ws.Dispose()

		if err := ws.Restore(*snap); err != nil {
			return fmt.Errorf("failed to restore session %s: %w", sessionID, err)
		}
		before := len(ws.Log().UndoHistory())
		ws.Log().ApplyDiffs(delta)
		applied = len(ws.Log().UndoHistory()) - before
		if applied < 0 {
			applied = -applied
		}
		*snap = ws.Snapshot()
		return nil
	})
	return applied, err
}

// Restore loads a stored session into a new workspace. The caller disposes it.
func Restore(ctx context.Context, sessions *persistence.Manager, sessionID string, newWorkspace func() *loom.Workspace) (*loom.Workspace, error) {
	snap, err := sessions.Load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	ws := newWorkspace()
	if err := ws.Restore(snap); err != nil {
		ws.Dispose()
		return nil, fmt.Errorf("failed to restore session %s: %w", sessionID, err)
	}
	return ws, nil
}
