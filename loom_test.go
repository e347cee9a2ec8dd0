package loom_test

import (
	"context"
	"testing"
	"time"

	"github.com/aretw0/loom"
	"github.com/aretw0/loom/internal/clock"
	"github.com/aretw0/loom/pkg/adapters/memory"
	"github.com/aretw0/loom/pkg/domain"
	"github.com/aretw0/loom/pkg/linkable"
	"github.com/aretw0/loom/pkg/stage"
	"github.com/aretw0/loom/pkg/state"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newWorkspace(opts ...loom.Option) *loom.Workspace {
	clk := clock.NewManual(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	return loom.New(append([]loom.Option{loom.WithClock(clk)}, opts...)...)
}

func settle(ws *loom.Workspace) {
	for i := 0; i < 3; i++ {
		ws.Tick(16 * time.Millisecond)
	}
}

func TestWorkspace_EndToEnd(t *testing.T) {
	ws := newWorkspace()
	x := linkable.Request[*linkable.Number](ws.Root(), "x", linkable.TypeNumber, false)
	x.SetValue(0)
	settle(ws)
	x.SetValue(5)
	settle(ws)

	require.Len(t, ws.Log().UndoHistory(), 2)
	last := ws.Log().UndoHistory()[1]
	assert.Equal(t, []any{state.NewDynamicState("x", "", 5.0)}, last.Forward)
	assert.Equal(t, []any{state.NewDynamicState("x", "", 0.0)}, last.Backward)

	ws.Log().Undo(1)
	assert.Equal(t, 0.0, x.Value())
	ws.Log().Redo(1)
	assert.Equal(t, 5.0, x.Value())
}

func TestWorkspace_SaveLoad(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()

	ws := newWorkspace()
	x := linkable.Request[*linkable.Number](ws.Root(), "x", linkable.TypeNumber, false)
	x.SetValue(1)
	settle(ws)
	x.SetValue(2)
	// saved without settling: Save synchronizes pending changes
	require.NoError(t, ws.Save(ctx, store, "s1"))

	restored := newWorkspace()
	require.NoError(t, restored.Load(ctx, store, "s1"))

	rx, ok := restored.Root().GetObject("x").(*linkable.Number)
	require.True(t, ok)
	assert.Equal(t, 2.0, rx.Value())
	require.Len(t, restored.Log().UndoHistory(), 2)

	restored.Log().Undo(1)
	assert.Equal(t, 1.0, rx.Value())
	restored.Log().Undo(1)
	assert.Nil(t, restored.Root().GetObject("x"))
	restored.Log().Redo(2)
	assert.Equal(t, []string{"x"}, restored.Root().Names())
}

func TestWorkspace_LoadErrors(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	ws := newWorkspace()

	err := ws.Load(ctx, store, "missing")
	assert.ErrorIs(t, err, domain.ErrSnapshotNotFound)

	require.NoError(t, store.Save(ctx, "future", domain.Snapshot{Version: 7}))
	err = ws.Load(ctx, store, "future")
	assert.ErrorIs(t, err, domain.ErrUnsupportedVersion)
	assert.Empty(t, ws.Root().Names())
}

func TestWorkspace_Options(t *testing.T) {
	var saved int
	ws := newWorkspace(
		loom.WithName("demo"),
		loom.WithLogHooks(domain.LogHooks{OnSave: func(*domain.LogEvent) { saved++ }}),
		loom.WithStageSetup(func(s *stage.Stage) { s.SetMaxComputationTimePerFrame(time.Second) }),
	)

	assert.Equal(t, "demo", ws.Tree().Label)
	assert.Equal(t, time.Second, ws.Manager().Stage().MaxComputationTimePerFrame())
	assert.NotNil(t, ws.Registry())

	linkable.Request[*linkable.Boolean](ws.Root(), "flag", linkable.TypeBoolean, false).SetValue(true)
	settle(ws)
	assert.Equal(t, 1, saved)
}

func TestWorkspace_Dispose(t *testing.T) {
	ws := newWorkspace()
	x := linkable.Request[*linkable.Number](ws.Root(), "x", linkable.TypeNumber, false)
	ws.Dispose()

	assert.True(t, ws.Manager().ObjectWasDisposed(ws.Root()))
	assert.True(t, ws.Manager().ObjectWasDisposed(x))
	assert.True(t, ws.Manager().ObjectWasDisposed(ws.Log()))
}
