package cli

import (
	"context"
	"time"

	"github.com/aretw0/loom"
	"github.com/aretw0/loom/pkg/linkable"
	"github.com/aretw0/loom/pkg/persistence"
)

// frame is the simulated frame length of the demo.
const frame = 16 * time.Millisecond

// RunDemo builds a small document, edits it over several frames, undoes the
// last edit and saves the result under sessionID.
func RunDemo(ctx context.Context, sessions *persistence.Manager, sessionID string, ws *loom.Workspace) error {
	settle := func() {
		for i := 0; i < 3; i++ {
			ws.Tick(frame)
		}
	}
	root := ws.Root()

	x := linkable.Request[*linkable.Number](root, "x", linkable.TypeNumber, false)
	x.SetValue(0)
	settle()

	x.SetValue(5)
	settle()

	settings := linkable.Request[*linkable.HashMap](root, "settings", linkable.TypeHashMap, false)
	linkable.Request[*linkable.String](settings, "title", linkable.TypeString, false).SetValue("untitled")
	linkable.Request[*linkable.Boolean](settings, "dark", linkable.TypeBoolean, false).SetValue(true)
	settle()

	settings.RenameObject("title", "name")
	settle()

	// the rename goes to the redo history
	ws.Log().Undo(1)
	settle()

	return sessions.Save(ctx, sessionID, ws.Snapshot())
}
