package domain

// SnapshotVersion is the only snapshot format understood by this module.
const SnapshotVersion = 0

// LogEntry is one step of the session history.
type LogEntry struct {
	// ID is unique within a log and grows monotonically.
	ID int64 `json:"id" mapstructure:"id"`

	// Forward is the diff that redoes the step.
	Forward any `json:"forward" mapstructure:"forward"`

	// Backward is the diff that undoes the step.
	Backward any `json:"backward" mapstructure:"backward"`

	// TriggerDelay is the time in milliseconds between the previous
	// synchronization and the first change of this step.
	TriggerDelay int64 `json:"triggerDelay" mapstructure:"triggerDelay"`

	// DiffDuration is the time in milliseconds over which the step's changes
	// accumulated.
	DiffDuration int64 `json:"diffDuration" mapstructure:"diffDuration"`
}

// Snapshot is the serializable form of a history log.
type Snapshot struct {
	Version      int        `json:"version" mapstructure:"version"`
	CurrentState any        `json:"currentState" mapstructure:"currentState"`
	UndoHistory  []LogEntry `json:"undoHistory" mapstructure:"undoHistory"`
	RedoHistory  []LogEntry `json:"redoHistory" mapstructure:"redoHistory"`
	NextID       int64      `json:"nextId" mapstructure:"nextId"`
}

// Steps returns the number of recorded steps in both directions.
func (s Snapshot) Steps() int {
	return len(s.UndoHistory) + len(s.RedoHistory)
}
