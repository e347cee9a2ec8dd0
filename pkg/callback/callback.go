// Package callback implements ordered, delay-aware callback collections and
// tick-grouped callbacks.
//
// A Collection notifies its subscribers synchronously when triggered. While
// delayed it only counts triggers and runs once when resumed. Grouped callbacks
// are coalesced by a GroupScheduler so they run at most once per tick.
package callback

// DefaultTriggerCount is the initial value of a collection's trigger counter.
// Starting at 1 lets callers use zero as "never observed".
const DefaultTriggerCount uint64 = 1

// Callback wraps a function so it has a stable identity.
// Go funcs are not comparable, so the *Callback pointer is what the
// collection uses to replace, remove and dedupe subscriptions.
type Callback struct {
	fn func()
}

// New wraps fn. Wrap once and keep the pointer to remove it later.
func New(fn func()) *Callback {
	return &Callback{fn: fn}
}

// Call invokes the wrapped function.
func (c *Callback) Call() {
	if c != nil && c.fn != nil {
		c.fn()
	}
}

// DisposedFunc reports whether a callback context has been disposed.
type DisposedFunc func(ctx any) bool

// Owner is implemented by objects exposing their callback collection.
type Owner interface {
	CallbackCollection() *Collection
}

type entry struct {
	context        any
	cb             *Callback
	recursionCount int
	schedule       int
}

func (e *entry) dispose() {
	e.context = nil
	e.cb = nil
}

// contextDisposed is the fallback liveness check used when no DisposedFunc
// was configured.
func contextDisposed(ctx any, check DisposedFunc) bool {
	if ctx == nil {
		return false
	}
	if c, ok := ctx.(*Collection); ok {
		return c.WasDisposed()
	}
	if check != nil {
		return check(ctx)
	}
	if o, ok := ctx.(Owner); ok {
		if cc := o.CallbackCollection(); cc != nil {
			return cc.WasDisposed()
		}
	}
	return false
}
