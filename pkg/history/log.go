package history

import (
	"log/slog"
	"time"

	"github.com/aretw0/loom/pkg/callback"
	"github.com/aretw0/loom/pkg/domain"
	"github.com/aretw0/loom/pkg/linkable"
	"github.com/aretw0/loom/pkg/session"
	"github.com/aretw0/loom/pkg/stage"
	"github.com/aretw0/loom/pkg/state"
)

// Log keeps undo and redo history for a subject.
type Log struct {
	// EnableLogging turns recording on and off. Turning it off keeps the
	// history; the next undo or redo first reverts unlogged changes.
	EnableLogging *linkable.Boolean

	m       *session.Manager
	subject any
	cc      *callback.Collection
	logger  *slog.Logger
	hooks   domain.LogHooks

	syncDelay time.Duration
	rewrite   bool

	prevState any
	undo      []domain.LogEntry
	redo      []domain.LogEntry
	nextID    int64

	undoActive  bool
	redoActive  bool
	savePending bool
	scheduled   bool
	disposed    bool
	disposing   bool

	syncTime     time.Time
	triggerDelay time.Duration
	delayKnown   bool
	saveTime     time.Time
	holdSave     bool

	immediate *callback.Callback
	grouped   *callback.Callback
}

// Option configures a Log.
type Option func(*Log)

// WithSyncDelay waits d after the last grouped callback before saving.
func WithSyncDelay(d time.Duration) Option {
	return func(l *Log) {
		l.syncDelay = d
	}
}

// WithHistoryRewrite controls what happens to the entry being undone or
// redone when the replay does not reproduce it exactly. When enabled (the
// default) the entry is overwritten; otherwise the replay is kept as a new
// entry.
func WithHistoryRewrite(enabled bool) Option {
	return func(l *Log) {
		l.rewrite = enabled
	}
}

// WithHooks registers observability hooks.
func WithHooks(h domain.LogHooks) Option {
	return func(l *Log) {
		l.hooks = l.hooks.Merge(h)
	}
}

// WithLogger overrides the manager's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Log) {
		l.logger = logger
	}
}

// NewLog starts recording subject. The log is owned by subject and is
// disposed with it.
func NewLog(m *session.Manager, subject any, opts ...Option) *Log {
	l := &Log{
		m:        m,
		subject:  subject,
		cc:       m.NewCallbackCollection(),
		logger:   m.Logger(),
		rewrite:  true,
		syncTime: m.Now(),
	}
	for _, opt := range opts {
		opt(l)
	}
	l.prevState = state.Copy(m.GetSessionState(subject))

	l.EnableLogging = linkable.NewBoolean(m, linkable.WithDefault(true), linkable.WithoutDefaultTrigger())
	m.RegisterLinkableChild(l, l.EnableLogging, session.WithCallback(callback.New(l.SynchronizeNow)))

	m.RegisterDisposableChild(subject, l)

	l.immediate = callback.New(l.immediateCallback)
	l.grouped = callback.New(l.groupedCallback)
	cc := m.GetCallbackCollection(subject)
	cc.AddImmediateCallback(l, l.immediate)
	cc.AddGroupedCallback(l, l.grouped, false)
	return l
}

// CallbackCollection runs when the history changes.
func (l *Log) CallbackCollection() *callback.Collection { return l.cc }

// Subject returns the recorded object.
func (l *Log) Subject() any { return l.subject }

// UndoHistory returns a copy of the undo entries, oldest first.
func (l *Log) UndoHistory() []domain.LogEntry {
	return append([]domain.LogEntry(nil), l.undo...)
}

// RedoHistory returns a copy of the redo entries, next redo first.
func (l *Log) RedoHistory() []domain.LogEntry {
	return append([]domain.LogEntry(nil), l.redo...)
}

// CanUndo reports whether Undo would do anything.
func (l *Log) CanUndo() bool { return len(l.undo) > 0 }

// CanRedo reports whether Redo would do anything.
func (l *Log) CanRedo() bool { return len(l.redo) > 0 }

func (l *Log) enabled() bool {
	return !l.disposed && l.EnableLogging.Value()
}

// SynchronizeNow saves any pending change without waiting for the sync delay.
func (l *Log) SynchronizeNow() {
	l.saveDiff(true)
}

func (l *Log) immediateCallback() {
	if !l.enabled() {
		return
	}
	// wait for grouped callbacks before saving
	l.holdSave = true

	if !l.savePending {
		l.savePending = true
		l.saveDiff(false)
	}
}

func (l *Log) groupedCallback() {
	if !l.enabled() {
		return
	}
	l.immediateCallback()
	l.holdSave = false
	l.saveTime = l.m.Now().Add(l.syncDelay)
}

func (l *Log) saveLater() {
	l.scheduled = false
	if l.savePending {
		l.saveDiff(false)
	}
}

func (l *Log) saveDiff(immediately bool) {
	if !l.enabled() {
		l.savePending = false
		return
	}

	now := l.m.Now()
	if !l.delayKnown {
		l.triggerDelay = now.Sub(l.syncTime)
		l.delayKnown = true
	}

	if !immediately && (l.holdSave || now.Before(l.saveTime)) {
		if !l.scheduled {
			l.scheduled = true
			l.m.CallLater(l, l.saveLater, stage.PriorityImmediate)
		}
		return
	}

	l.cc.DelayCallbacks()

	current := state.Copy(l.m.GetSessionState(l.subject))
	forward, changed := state.Diff(l.prevState, current)
	if changed {
		diffDuration := now.Sub(l.syncTime.Add(l.triggerDelay))
		backward, _ := state.Diff(current, l.prevState)
		l.record(forward, backward, diffDuration)
		l.syncTime = now
		l.cc.TriggerCallbacks()
	}

	// sync time moves after a replay even without a diff
	if l.undoActive || l.redoActive {
		l.syncTime = now
	}
	l.prevState = current
	l.undoActive = false
	l.redoActive = false
	l.savePending = false
	l.delayKnown = false

	l.cc.ResumeCallbacks()
}

func (l *Log) record(forward, backward any, diffDuration time.Duration) {
	id := l.nextID
	l.nextID++

	switch {
	case l.undoActive && len(l.redo) > 0:
		// the replay of an undo replaces the entry it undid
		old := l.redo[0]
		entry := domain.LogEntry{
			ID:           id,
			Forward:      backward,
			Backward:     forward,
			TriggerDelay: old.TriggerDelay,
			DiffDuration: old.DiffDuration,
		}
		if l.rewrite {
			l.redo[0] = entry
		} else if !state.Equal(old.Forward, entry.Forward) {
			l.redo = append([]domain.LogEntry{entry}, l.redo...)
		}
		l.fireSave(domain.EventEntryRewritten, entry, diffDuration)

	case l.redoActive && len(l.undo) > 0:
		old := l.undo[len(l.undo)-1]
		l.undo = l.undo[:len(l.undo)-1]
		entry := domain.LogEntry{
			ID:           id,
			Forward:      forward,
			Backward:     backward,
			TriggerDelay: old.TriggerDelay,
			DiffDuration: old.DiffDuration,
		}
		if !l.rewrite && state.Equal(old.Forward, entry.Forward) {
			entry = old
		}
		l.undo = append(l.undo, entry)
		l.fireSave(domain.EventEntryRewritten, entry, diffDuration)

	default:
		entry := domain.LogEntry{
			ID:           id,
			Forward:      forward,
			Backward:     backward,
			TriggerDelay: l.triggerDelay.Milliseconds(),
			DiffDuration: diffDuration.Milliseconds(),
		}
		if len(l.redo) > 0 {
			l.logger.Debug("history diverged, discarding redo entries", "count", len(l.redo))
			l.redo = nil
		}
		l.undo = append(l.undo, entry)
		l.fireSave(domain.EventEntrySaved, entry, diffDuration)
	}
}

func (l *Log) fireSave(t domain.EventType, entry domain.LogEntry, diffDuration time.Duration) {
	l.logger.Debug("history entry saved",
		"type", t,
		"id", entry.ID,
		"undo", ids(l.undo),
		"redo", ids(l.redo),
	)
	if l.hooks.OnSave != nil {
		l.hooks.OnSave(l.event(t, entry.ID, 0, diffDuration))
	}
}

func (l *Log) event(t domain.EventType, id int64, steps int, d time.Duration) *domain.LogEvent {
	return &domain.LogEvent{
		Timestamp:    l.m.Now(),
		Type:         t,
		EntryID:      id,
		Steps:        steps,
		DiffDuration: d,
		UndoSize:     len(l.undo),
		RedoSize:     len(l.redo),
	}
}

func ids(entries []domain.LogEntry) []int64 {
	out := make([]int64, len(entries))
	for i, e := range entries {
		out[i] = e.ID
	}
	return out
}

// Undo reverts up to steps entries.
func (l *Log) Undo(steps int) {
	l.ApplyDiffs(-steps)
}

// Redo reapplies up to steps undone entries.
func (l *Log) Redo(steps int) {
	l.ApplyDiffs(steps)
}

// ApplyDiffs undoes (delta < 0) or redoes (delta > 0) up to |delta| steps.
// More than two steps are combined into one diff before being applied.
func (l *Log) ApplyDiffs(delta int) {
	if l.disposed || delta == 0 {
		return
	}
	available := len(l.redo)
	if delta < 0 {
		available = len(l.undo)
	}
	steps := min(abs(delta), available)
	if steps == 0 {
		return
	}
	applied := steps

	// commit outstanding changes so they are not folded into the replay
	if l.savePending && !l.undoActive && !l.redoActive {
		l.SynchronizeNow()
	}

	enabled := l.EnableLogging.Value()
	combine := steps > 2
	var base any
	hasBase := false

	subjectCC := l.m.GetCallbackCollection(l.subject)
	subjectCC.DelayCallbacks()

	// without logging, first return to the last logged state
	if !enabled {
		if d, changed := state.Diff(l.m.GetSessionState(l.subject), l.prevState); changed {
			base, hasBase = d, true
			combine = true
		}
	}

	for steps > 0 {
		steps--

		var diff any
		if delta < 0 {
			entry := l.undo[len(l.undo)-1]
			l.undo = l.undo[:len(l.undo)-1]
			l.redo = append([]domain.LogEntry{entry}, l.redo...)
			diff = entry.Backward
		} else {
			entry := l.redo[0]
			l.redo = l.redo[1:]
			l.undo = append(l.undo, entry)
			diff = entry.Forward
		}

		if steps == 0 && enabled {
			// the state before the last step, so the replay can be checked
			l.prevState = state.Copy(l.m.GetSessionState(l.subject))
		}

		if combine {
			if hasBase {
				base = state.Combine(base, diff)
			} else {
				base, hasBase = state.Copy(diff), true
			}
			if steps <= 1 {
				l.m.SetSessionState(l.subject, base, false)
				combine = false
			}
		} else {
			l.m.SetSessionState(l.subject, diff, false)
		}
	}

	subjectCC.ResumeCallbacks()

	l.undoActive = delta < 0 && l.savePending
	l.redoActive = delta > 0 && l.savePending
	if !l.savePending {
		l.prevState = state.Copy(l.m.GetSessionState(l.subject))
	}

	t := domain.EventRedo
	if delta < 0 {
		t = domain.EventUndo
	}
	l.logger.Debug("history replayed", "type", t, "steps", applied, "undo", ids(l.undo), "redo", ids(l.redo))
	if l.hooks.OnApply != nil {
		l.hooks.OnApply(l.event(t, 0, applied, 0))
	}
	l.cc.TriggerCallbacks()
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

// ClearHistory drops undo entries (direction < 0), redo entries
// (direction > 0) or both (direction == 0), after saving pending changes.
func (l *Log) ClearHistory(direction int) {
	if l.disposed {
		return
	}
	l.cc.DelayCallbacks()
	defer l.cc.ResumeCallbacks()

	l.SynchronizeNow()

	if direction <= 0 {
		if len(l.undo) > 0 {
			l.cc.TriggerCallbacks()
		}
		l.undo = nil
	}
	if direction >= 0 {
		if len(l.redo) > 0 {
			l.cc.TriggerCallbacks()
		}
		l.redo = nil
	}
	if l.hooks.OnClear != nil {
		l.hooks.OnClear(l.event(domain.EventHistoryCleared, 0, 0, 0))
	}
}

// SessionState saves pending changes and returns the log as a snapshot.
func (l *Log) SessionState() domain.Snapshot {
	l.cc.DelayCallbacks()
	defer l.cc.ResumeCallbacks()

	l.SynchronizeNow()
	return domain.Snapshot{
		Version:      domain.SnapshotVersion,
		CurrentState: state.Copy(l.prevState),
		UndoHistory:  l.UndoHistory(),
		RedoHistory:  l.RedoHistory(),
		NextID:       l.nextID,
	}
}

// SetSessionState replaces the history with a snapshot and restores the
// subject to its current state. s may be a domain.Snapshot or its untyped
// map form. Unsupported snapshots are logged and ignored.
func (l *Log) SetSessionState(s any) {
	if l.disposed {
		return
	}
	snap, err := DecodeSnapshot(s)
	if err != nil {
		l.logger.Warn("session usage error", "op", "Log.SetSessionState", "reason", "invalid snapshot", "err", err)
		return
	}

	l.cc.DelayCallbacks()
	enableCC := l.EnableLogging.CallbackCollection()
	enableCC.DelayCallbacks()
	defer func() {
		enableCC.ResumeCallbacks()
		l.cc.TriggerCallbacks()
		l.cc.ResumeCallbacks()
	}()

	defaultDelay := l.syncDelay.Milliseconds()
	l.prevState = snap.CurrentState
	l.undo = withDefaultDelay(snap.UndoHistory, defaultDelay)
	l.redo = withDefaultDelay(snap.RedoHistory, defaultDelay)
	l.nextID = snap.NextID

	l.undoActive = false
	l.redoActive = false
	l.savePending = false
	l.holdSave = false
	l.saveTime = time.Time{}
	l.delayKnown = false
	l.syncTime = l.m.Now()

	l.m.SetSessionState(l.subject, state.Copy(l.prevState), true)
}

func withDefaultDelay(entries []domain.LogEntry, delay int64) []domain.LogEntry {
	out := make([]domain.LogEntry, len(entries))
	for i, e := range entries {
		if e.TriggerDelay == 0 {
			e.TriggerDelay = delay
		}
		out[i] = e
	}
	return out
}

// Dispose stops recording and drops the history.
func (l *Log) Dispose() {
	if l.disposed {
		// the manager calls back into Dispose while we dispose ourselves
		if !l.disposing {
			l.logger.Debug("history log disposed more than once")
		}
		return
	}
	l.disposed = true
	l.disposing = true
	l.m.DisposeObject(l)
	l.disposing = false
	l.undo = nil
	l.redo = nil
}
