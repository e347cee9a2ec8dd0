package callback

import (
	"log/slog"

	"github.com/aretw0/loom/internal/logging"
)

// Collection is an ordered list of callbacks with delay and dispose support.
// It is not safe for concurrent use; all access happens on the tick goroutine.
type Collection struct {
	entries        []*entry
	disposeEntries []*entry

	preCallback func(args ...any)
	isDisposed  DisposedFunc
	groups      *GroupScheduler
	logger      *slog.Logger

	triggerCounter uint64
	delayCount     int
	pending        bool
	completed      bool
	running        int
	wasDisposed    bool
}

// Option configures a Collection.
type Option func(*Collection)

// WithPreCallback sets a function run before every callback with the
// arguments given to RunCallbacksImmediately. Collections with a pre-callback
// never skip reentrant runs.
func WithPreCallback(fn func(args ...any)) Option {
	return func(c *Collection) {
		c.preCallback = fn
	}
}

// WithDisposedCheck sets how callback contexts are checked for liveness.
func WithDisposedCheck(fn DisposedFunc) Option {
	return func(c *Collection) {
		c.isDisposed = fn
	}
}

// WithScheduler sets the scheduler used by AddGroupedCallback.
func WithScheduler(g *GroupScheduler) Option {
	return func(c *Collection) {
		c.groups = g
	}
}

// WithLogger sets the logger used for usage errors.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Collection) {
		c.logger = logger
	}
}

// NewCollection creates an empty collection.
func NewCollection(opts ...Option) *Collection {
	c := &Collection{
		triggerCounter: DefaultTriggerCount,
		logger:         logging.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// CallbackCollection returns c, so a Collection is its own owner.
func (c *Collection) CallbackCollection() *Collection { return c }

// AddOption tunes AddImmediateCallback.
type AddOption func(*addConfig)

type addConfig struct {
	runNow     bool
	alwaysLast bool
}

// RunNow invokes the callback once right after adding it.
func RunNow() AddOption {
	return func(a *addConfig) { a.runNow = true }
}

// AlwaysLast places the callback in the tier that runs after all others.
func AlwaysLast() AddOption {
	return func(a *addConfig) { a.alwaysLast = true }
}

// AddImmediateCallback registers cb to run synchronously on every trigger.
// Adding the same cb again replaces the previous entry.
func (c *Collection) AddImmediateCallback(ctx any, cb *Callback, opts ...AddOption) {
	if cb == nil {
		c.logger.Warn("callback collection usage error", "op", "AddImmediateCallback", "reason", "nil callback")
		return
	}
	var cfg addConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	c.RemoveCallback(cb)

	e := &entry{context: ctx, cb: cb}
	if cfg.alwaysLast {
		e.schedule = 1
	}
	c.entries = append(c.entries, e)

	if cfg.runNow {
		e.recursionCount++
		cb.Call()
		e.recursionCount--
	}
}

// TriggerCallbacks runs the callbacks now, or records a pending run while
// callbacks are delayed. The trigger counter moves either way.
func (c *Collection) TriggerCallbacks() {
	if c.delayCount > 0 {
		c.triggerCounter++
		c.pending = true
		return
	}
	c.RunCallbacksImmediately()
}

// RunCallbacksImmediately runs the callbacks ignoring any delay. args are
// passed to the pre-callback, if one was configured.
func (c *Collection) RunCallbacksImmediately(args ...any) {
	c.triggerCounter++
	c.run(args)
}

func (c *Collection) run(args []any) {
	c.pending = false
	c.completed = false
	c.running++

	for schedule := 0; schedule < 2; schedule++ {
		for i := 0; i < len(c.entries); i++ {
			// an inner run already finished the list
			if c.completed && c.preCallback == nil {
				break
			}
			e := c.entries[i]
			if e.schedule != schedule {
				continue
			}
			if e.cb == nil || contextDisposed(e.context, c.isDisposed) {
				e.dispose()
				continue
			}
			if e.recursionCount == 0 || c.preCallback != nil {
				e.recursionCount++
				if c.preCallback != nil {
					c.preCallback(args...)
				}
				e.cb.Call()
				e.recursionCount--
			}
		}
	}

	c.running--
	c.completed = true
	if c.running == 0 {
		c.compact()
	}
}

// compact drops soft-deleted entries. Only safe when no run is iterating.
func (c *Collection) compact() {
	live := c.entries[:0]
	for _, e := range c.entries {
		if e.cb != nil {
			live = append(live, e)
		}
	}
	for i := len(live); i < len(c.entries); i++ {
		c.entries[i] = nil
	}
	c.entries = live
}

// RemoveCallback unsubscribes cb, including a grouped registration of it.
// Safe to call while callbacks are running.
func (c *Collection) RemoveCallback(cb *Callback) {
	if cb == nil {
		return
	}
	if c.groups != nil {
		c.groups.remove(c, cb)
	}
	for _, list := range [][]*entry{c.entries, c.disposeEntries} {
		for _, e := range list {
			if e.cb == cb {
				e.dispose()
			}
		}
	}
	if c.running == 0 {
		c.compact()
	}
}

// DelayCallbacks defers callback runs until a matching ResumeCallbacks.
// Calls nest.
func (c *Collection) DelayCallbacks() {
	c.delayCount++
}

// ResumeCallbacks undoes one DelayCallbacks. When the last delay is lifted
// and a trigger is pending, callbacks run once. The counter was already
// advanced by the delayed triggers, so it does not move again here.
func (c *Collection) ResumeCallbacks() {
	if c.delayCount > 0 {
		c.delayCount--
	}
	if c.delayCount == 0 && c.pending {
		c.run(nil)
	}
}

// TriggerCounter returns how many times callbacks were triggered, plus one.
func (c *Collection) TriggerCounter() uint64 { return c.triggerCounter }

// CallbacksAreDelayed reports whether DelayCallbacks is in effect.
func (c *Collection) CallbacksAreDelayed() bool { return c.delayCount > 0 }

// AddDisposeCallback registers cb to run once when the collection is
// disposed, unless ctx was disposed first.
func (c *Collection) AddDisposeCallback(ctx any, cb *Callback) {
	if cb == nil {
		c.logger.Warn("callback collection usage error", "op", "AddDisposeCallback", "reason", "nil callback")
		return
	}
	for _, e := range c.disposeEntries {
		if e.cb == cb {
			return
		}
	}
	c.disposeEntries = append(c.disposeEntries, &entry{context: ctx, cb: cb})
}

// Dispose removes all callbacks and runs the dispose callbacks.
// Later calls are no-ops.
func (c *Collection) Dispose() {
	if c.wasDisposed {
		return
	}
	for _, e := range c.entries {
		e.dispose()
	}
	c.entries = nil
	c.wasDisposed = true

	for len(c.disposeEntries) > 0 {
		e := c.disposeEntries[0]
		c.disposeEntries = c.disposeEntries[1:]
		if e.cb != nil && !contextDisposed(e.context, c.isDisposed) {
			e.cb.Call()
		}
	}
	c.disposeEntries = nil
}

// WasDisposed reports whether Dispose was called.
func (c *Collection) WasDisposed() bool { return c.wasDisposed }

// AddGroupedCallback registers cb to run at most once per tick after this
// collection triggers. ctx defaults to the collection itself; the grouped
// callback lives while any of its contexts is alive.
func (c *Collection) AddGroupedCallback(ctx any, cb *Callback, triggerNow bool) {
	if cb == nil {
		c.logger.Warn("callback collection usage error", "op", "AddGroupedCallback", "reason", "nil callback")
		return
	}
	if c.groups == nil {
		c.logger.Warn("callback collection usage error", "op", "AddGroupedCallback", "reason", "no group scheduler")
		return
	}
	c.groups.add(c, ctx, cb, triggerNow)
}

// removeEntries soft-deletes direct registrations of cb.
func (c *Collection) removeEntries(cb *Callback) {
	for _, e := range c.entries {
		if e.cb == cb {
			e.dispose()
		}
	}
	if c.running == 0 {
		c.compact()
	}
}
