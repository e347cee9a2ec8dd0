/*
Package loom is a reactive session-state framework.

Objects register in an ownership graph kept by a session.Manager. Every
object has a callback collection; a change to a child triggers its parents,
and grouped callbacks coalesce many triggers into one run per frame. The
state of a composite object serializes to a plain tree (dynamic states), two
trees can be diffed, and diffs combine and apply. A history.Log built on
top records undo and redo steps.

# Usage

A Workspace bundles a manager, a root HashMap and the root's history:

	ws := loom.New()
	x := linkable.Request[*linkable.Number](ws.Root(), "x", linkable.TypeNumber, false)
	x.SetValue(5)

	// Frames drive grouped callbacks and the call-later queue.
	ws.Tick(16 * time.Millisecond)
	ws.Tick(16 * time.Millisecond)

	ws.Log().Undo(1)

Workspaces persist through any ports.SnapshotStore:

	store := file.New(".loom/sessions")
	if err := ws.Save(ctx, store, "session-123"); err != nil {
		log.Fatal(err)
	}

# Threading

A session graph is single-threaded. Tick, every mutation and every callback
must run on one goroutine; use Workspace.Run with a stage.TickSource to own
that goroutine. Stores and the persistence manager are safe for concurrent
use.
*/
package loom
