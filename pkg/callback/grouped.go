package callback

import (
	"log/slog"

	"github.com/aretw0/loom/internal/logging"
)

// GroupScheduler coalesces grouped callbacks so each runs at most once per
// tick. HandleGroupedCallbacks must be driven by the tick source.
type GroupScheduler struct {
	lookup    map[*Callback]*groupedEntry
	triggered []*groupedEntry

	handling          bool
	handlingRecursive bool

	isDisposed DisposedFunc
	logger     *slog.Logger
}

// SchedulerOption configures a GroupScheduler.
type SchedulerOption func(*GroupScheduler)

// WithSchedulerDisposedCheck sets how grouped callback contexts are checked
// for liveness.
func WithSchedulerDisposedCheck(fn DisposedFunc) SchedulerOption {
	return func(g *GroupScheduler) {
		g.isDisposed = fn
	}
}

// WithSchedulerLogger sets the scheduler logger.
func WithSchedulerLogger(logger *slog.Logger) SchedulerOption {
	return func(g *GroupScheduler) {
		g.logger = logger
	}
}

// NewGroupScheduler creates an idle scheduler.
func NewGroupScheduler(opts ...SchedulerOption) *GroupScheduler {
	g := &GroupScheduler{
		lookup: make(map[*Callback]*groupedEntry),
		logger: logging.NewNop(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// groupedEntry is shared by every collection the same callback was added to.
type groupedEntry struct {
	g        *GroupScheduler
	cb       *Callback
	trigger  *Callback
	contexts []any

	recursionCount int
	triggered      bool
	triggeredAgain bool
	disposed       bool
}

func (g *GroupScheduler) add(c *Collection, ctx any, cb *Callback, triggerNow bool) {
	e, ok := g.lookup[cb]
	if !ok {
		e = &groupedEntry{g: g, cb: cb}
		e.trigger = New(e.fire)
		g.lookup[cb] = e
	}

	// the context decides when the entry can be dropped, so never leave it empty
	if ctx == nil {
		ctx = c
	}
	known := false
	for _, existing := range e.contexts {
		if existing == ctx {
			known = true
			break
		}
	}
	if !known {
		e.contexts = append(e.contexts, ctx)
	}

	c.removeEntries(cb)

	// The trigger is added without a context so that one disposed context
	// does not unhook the callback for the others.
	var opts []AddOption
	if triggerNow {
		opts = append(opts, RunNow())
	}
	c.AddImmediateCallback(nil, e.trigger, opts...)
}

func (g *GroupScheduler) remove(c *Collection, cb *Callback) {
	if e, ok := g.lookup[cb]; ok {
		c.removeEntries(e.trigger)
	}
}

// Pending returns the number of grouped callbacks queued for the next tick.
func (g *GroupScheduler) Pending() int { return len(g.triggered) }

// HandleGroupedCallbacks runs every grouped callback triggered since the last
// call, in trigger order. Callbacks re-triggered during that pass get exactly
// one more run in a second pass; the flags then reset for the next tick.
func (g *GroupScheduler) HandleGroupedCallbacks() {
	g.handling = true
	for i := 0; i < len(g.triggered); i++ {
		g.triggered[i].handle()
	}

	g.handlingRecursive = true
	for i := 0; i < len(g.triggered); i++ {
		if e := g.triggered[i]; e.triggeredAgain {
			e.handle()
		}
	}
	g.handlingRecursive = false
	g.handling = false

	for i, e := range g.triggered {
		e.triggered = false
		e.triggeredAgain = false
		g.triggered[i] = nil
	}
	g.triggered = g.triggered[:0]
}

func (e *groupedEntry) fire() {
	if e.disposed {
		return
	}
	g := e.g
	switch {
	case g.handlingRecursive:
		e.handle()
	case !e.triggered:
		g.triggered = append(g.triggered, e)
		e.triggered = true
	case g.handling:
		e.triggeredAgain = true
	}
}

func (e *groupedEntry) handle() {
	if e.disposed {
		return
	}

	live := e.contexts[:0]
	for _, ctx := range e.contexts {
		if !contextDisposed(ctx, e.g.isDisposed) {
			live = append(live, ctx)
		}
	}
	for i := len(live); i < len(e.contexts); i++ {
		e.contexts[i] = nil
	}
	e.contexts = live

	if len(e.contexts) == 0 {
		e.disposed = true
		delete(e.g.lookup, e.cb)
		e.g.logger.Debug("grouped callback dropped", "reason", "all contexts disposed")
		return
	}

	// a re-trigger from inside the run below earns one more pass
	e.triggeredAgain = false
	if e.recursionCount == 0 {
		e.recursionCount++
		e.cb.Call()
		e.recursionCount--
	}
}
