// Package stage drives the per-frame work of a session graph: tick
// callbacks, grouped callbacks and the prioritized call-later queue.
package stage

import (
	"log/slog"
	"time"

	"github.com/aretw0/loom/internal/clock"
	"github.com/aretw0/loom/internal/logging"
	"github.com/aretw0/loom/pkg/callback"
)

const (
	// DefaultMaxComputationTimePerFrame bounds call-later work per tick.
	DefaultMaxComputationTimePerFrame = 100 * time.Millisecond
	// DefaultMaxComputationTimeNoActivity applies when there was no user activity.
	DefaultMaxComputationTimeNoActivity = 250 * time.Millisecond
	// DefaultMaxComputationTimeDeactivated applies while the host is deactivated.
	DefaultMaxComputationTimeDeactivated = 1000 * time.Millisecond
	// MinTaskPriorityTimeAllocation is the floor for a lane budget.
	MinTaskPriorityTimeAllocation = 5 * time.Millisecond

	slowFrameThreshold = 3 * time.Second
)

// Stage owns the tick collection and the call-later queues.
// It is single-threaded: Tick, CallLater and everything they run must be
// called from the same goroutine.
type Stage struct {
	clock      clock.Clock
	tick       *callback.Collection
	isDisposed callback.DisposedFunc
	logger     *slog.Logger

	queues         [priorityCount][]task
	allocated      [priorityCount]time.Duration
	activePriority Priority
	activeElapsed  time.Duration

	maxFrame         time.Duration
	maxNoActivity    time.Duration
	maxDeactivated   time.Duration
	userActivity     bool
	deactivated      bool
	frameStart       time.Time
	lastFrameElapsed time.Duration
	lastTickDelta    time.Duration
	frames           uint64
}

// Option configures a Stage.
type Option func(*Stage)

// WithClock sets the time source.
func WithClock(c clock.Clock) Option {
	return func(s *Stage) {
		s.clock = c
	}
}

// WithDisposedCheck sets how task contexts are checked before running.
func WithDisposedCheck(fn callback.DisposedFunc) Option {
	return func(s *Stage) {
		s.isDisposed = fn
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Stage) {
		s.logger = logger
	}
}

// New creates a stage with the default budgets.
func New(opts ...Option) *Stage {
	s := &Stage{
		clock:          clock.System{},
		logger:         logging.NewNop(),
		activePriority: PriorityHigh,
		maxFrame:       DefaultMaxComputationTimePerFrame,
		maxNoActivity:  DefaultMaxComputationTimeNoActivity,
		maxDeactivated: DefaultMaxComputationTimeDeactivated,
		allocated:      defaultAllocations,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.tick = callback.NewCollection(
		callback.WithDisposedCheck(s.isDisposed),
		callback.WithLogger(s.logger),
	)
	s.tick.AddImmediateCallback(nil, callback.New(s.handleCallLater))
	return s
}

// Now returns the stage clock's current time.
func (s *Stage) Now() time.Time { return s.clock.Now() }

// AddTickCallback runs cb on every tick, after the call-later queue and any
// callbacks added before it.
func (s *Stage) AddTickCallback(ctx any, cb *callback.Callback) {
	s.tick.AddImmediateCallback(ctx, cb)
}

// RemoveTickCallback stops running cb on ticks.
func (s *Stage) RemoveTickCallback(cb *callback.Callback) {
	s.tick.RemoveCallback(cb)
}

// Tick runs one frame. elapsed is the time since the previous tick as
// reported by the tick source.
func (s *Stage) Tick(elapsed time.Duration) {
	start := s.clock.Now()
	s.frameStart = start
	s.lastTickDelta = elapsed
	s.frames++

	s.tick.RunCallbacksImmediately()

	s.lastFrameElapsed = s.clock.Now().Sub(start)
}

// Frames returns how many ticks have run.
func (s *Stage) Frames() uint64 { return s.frames }

// LastTickDelta returns the elapsed time passed to the latest Tick.
func (s *Stage) LastTickDelta() time.Duration { return s.lastTickDelta }

// SetUserActivity records whether the user interacted since the last frame.
func (s *Stage) SetUserActivity(active bool) { s.userActivity = active }

// SetDeactivated switches the deactivated frame budget on or off.
func (s *Stage) SetDeactivated(deactivated bool) { s.deactivated = deactivated }

// MaxComputationTimePerFrame returns the active-user frame budget.
func (s *Stage) MaxComputationTimePerFrame() time.Duration { return s.maxFrame }

// SetMaxComputationTimePerFrame changes the active-user frame budget.
// Zero restores the default.
func (s *Stage) SetMaxComputationTimePerFrame(d time.Duration) {
	if d <= 0 {
		d = DefaultMaxComputationTimePerFrame
	}
	s.maxFrame = d
}

// SetNoActivityBudget changes the frame budget used without user activity.
func (s *Stage) SetNoActivityBudget(d time.Duration) {
	if d > 0 {
		s.maxNoActivity = d
	}
}

// SetDeactivatedBudget changes the frame budget used while deactivated.
func (s *Stage) SetDeactivatedBudget(d time.Duration) {
	if d > 0 {
		s.maxDeactivated = d
	}
}

// frameBudget is the call-later budget for the current frame.
func (s *Stage) frameBudget() time.Duration {
	switch {
	case s.deactivated:
		return s.maxDeactivated
	case !s.userActivity:
		return s.maxNoActivity
	default:
		return s.maxFrame
	}
}
