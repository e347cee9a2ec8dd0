// Package history records the session state of a subject as a log of diffs
// and replays them for undo and redo.
//
// Changes are coalesced: the log saves one entry after the subject's
// grouped callbacks ran and the sync delay elapsed, so a burst of edits in
// one frame becomes a single undoable step.
package history
