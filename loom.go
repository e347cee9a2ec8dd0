package loom

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/aretw0/loom/internal/clock"
	"github.com/aretw0/loom/internal/logging"
	"github.com/aretw0/loom/pkg/domain"
	"github.com/aretw0/loom/pkg/history"
	"github.com/aretw0/loom/pkg/linkable"
	"github.com/aretw0/loom/pkg/ports"
	"github.com/aretw0/loom/pkg/session"
	"github.com/aretw0/loom/pkg/stage"
)

// Workspace is the high-level entry point for the loom library.
// It owns a session graph whose root is a HashMap, and records the root's
// history in a Log.
type Workspace struct {
	manager  *session.Manager
	registry *linkable.Registry
	root     *linkable.HashMap
	log      *history.Log
	logger   *slog.Logger
	Name     string
}

type options struct {
	logger      *slog.Logger
	clock       clock.Clock
	registry    *linkable.Registry
	historyOpts []history.Option
	stageSetup  []func(*stage.Stage)
	name        string
}

// Option defines a functional option for configuring the Workspace.
type Option func(*options)

// WithLogger sets a custom structured logger for the workspace.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithClock sets the time source of the graph and its history.
func WithClock(c clock.Clock) Option {
	return func(o *options) {
		o.clock = c
	}
}

// WithRegistry sets the type registry used to create objects by type id.
func WithRegistry(r *linkable.Registry) Option {
	return func(o *options) {
		o.registry = r
	}
}

// WithHistoryOptions configures the history log.
func WithHistoryOptions(opts ...history.Option) Option {
	return func(o *options) {
		o.historyOpts = append(o.historyOpts, opts...)
	}
}

// WithLogHooks registers observability hooks on the history log.
func WithLogHooks(hooks domain.LogHooks) Option {
	return WithHistoryOptions(history.WithHooks(hooks))
}

// WithStageSetup runs fn on the stage before the workspace is returned,
// e.g. to change frame budgets.
func WithStageSetup(fn func(*stage.Stage)) Option {
	return func(o *options) {
		o.stageSetup = append(o.stageSetup, fn)
	}
}

// WithName labels the workspace in logs and trees.
func WithName(name string) Option {
	return func(o *options) {
		o.name = name
	}
}

// New creates an empty workspace.
func New(opts ...Option) *Workspace {
	o := options{
		logger: logging.NewNop(),
		clock:  clock.System{},
		name:   "session",
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.registry == nil {
		o.registry = linkable.NewRegistry()
	}

	logger := o.logger.With("workspace", o.name)
	m := session.NewManager(session.WithLogger(logger), session.WithClock(o.clock))
	for _, fn := range o.stageSetup {
		fn(m.Stage())
	}

	root := linkable.NewHashMap(m, o.registry)
	return &Workspace{
		manager:  m,
		registry: o.registry,
		root:     root,
		log:      history.NewLog(m, root, o.historyOpts...),
		logger:   logger,
		Name:     o.name,
	}
}

// Manager returns the session graph.
func (w *Workspace) Manager() *session.Manager { return w.manager }

// Registry returns the type registry.
func (w *Workspace) Registry() *linkable.Registry { return w.registry }

// Root returns the root HashMap.
func (w *Workspace) Root() *linkable.HashMap { return w.root }

// Log returns the history of the root.
func (w *Workspace) Log() *history.Log { return w.log }

// Tick runs one frame.
func (w *Workspace) Tick(elapsed time.Duration) { w.manager.Tick(elapsed) }

// Run drives frames from src until ctx is done or src closes.
func (w *Workspace) Run(ctx context.Context, src stage.TickSource) error {
	return w.manager.Stage().Run(ctx, src)
}

// Tree returns the session state tree of the root.
func (w *Workspace) Tree() *session.TreeItem {
	return w.manager.GetSessionStateTree(w.root, w.Name, nil)
}

// Snapshot saves pending changes and returns the history as a snapshot.
func (w *Workspace) Snapshot() domain.Snapshot {
	return w.log.SessionState()
}

// Restore replaces the history and the root state with snap.
func (w *Workspace) Restore(snap any) error {
	decoded, err := history.DecodeSnapshot(snap)
	if err != nil {
		return err
	}
	w.log.SetSessionState(decoded)
	return nil
}

// Save stores the workspace history under sessionID.
func (w *Workspace) Save(ctx context.Context, store ports.SnapshotStore, sessionID string) error {
	snap := w.Snapshot()
	if err := store.Save(ctx, sessionID, snap); err != nil {
		return fmt.Errorf("failed to save session %s: %w", sessionID, err)
	}
	w.logger.Debug("session saved", "session_id", sessionID, "steps", snap.Steps())
	return nil
}

// Load restores the workspace from the history stored under sessionID.
func (w *Workspace) Load(ctx context.Context, store ports.SnapshotStore, sessionID string) error {
	snap, err := store.Load(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("failed to load session %s: %w", sessionID, err)
	}
	if err := w.Restore(snap); err != nil {
		return fmt.Errorf("failed to restore session %s: %w", sessionID, err)
	}
	w.logger.Debug("session loaded", "session_id", sessionID, "steps", snap.Steps())
	return nil
}

// Dispose releases the graph. The workspace must not be used afterwards.
func (w *Workspace) Dispose() {
	w.manager.DisposeObject(w.root)
}
