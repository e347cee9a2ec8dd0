package domain

import (
	"time"
)

// EventType defines the category of the event.
type EventType string

const (
	EventEntrySaved     EventType = "entry_saved"
	EventEntryRewritten EventType = "entry_rewritten"
	EventUndo           EventType = "undo"
	EventRedo           EventType = "redo"
	EventHistoryCleared EventType = "history_cleared"
)

// LogEvent describes a change of a history log.
type LogEvent struct {
	Timestamp time.Time `json:"timestamp"`
	Type      EventType `json:"type"`

	// EntryID is the entry saved or rewritten, zero for other events.
	EntryID int64 `json:"entry_id,omitempty"`

	// Steps is the number of steps applied by an undo or redo.
	Steps int `json:"steps,omitempty"`

	// DiffDuration is the accumulation time of a saved entry.
	DiffDuration time.Duration `json:"diff_duration,omitempty"`

	UndoSize int `json:"undo_size"`
	RedoSize int `json:"redo_size"`
}

// LogHooks defines callbacks for history log observability.
// Hooks run synchronously on the log's thread and must not modify the log.
type LogHooks struct {
	OnSave  func(*LogEvent)
	OnApply func(*LogEvent)
	OnClear func(*LogEvent)
}

// Merge returns hooks calling h then other.
func (h LogHooks) Merge(other LogHooks) LogHooks {
	return LogHooks{
		OnSave:  chain(h.OnSave, other.OnSave),
		OnApply: chain(h.OnApply, other.OnApply),
		OnClear: chain(h.OnClear, other.OnClear),
	}
}

func chain(a, b func(*LogEvent)) func(*LogEvent) {
	switch {
	case a == nil:
		return b
	case b == nil:
		return a
	}
	return func(e *LogEvent) {
		a(e)
		b(e)
	}
}
