package session

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/aretw0/loom/internal/clock"
	"github.com/aretw0/loom/internal/logging"
	"github.com/aretw0/loom/pkg/callback"
	"github.com/aretw0/loom/pkg/stage"
	"github.com/aretw0/loom/pkg/state"
)

// Manager holds the relations between linkable objects:
// child to parents, parent to children, owner to children and child to
// owner. Only the owner relation drives disposal.
type Manager struct {
	childToParents   map[any]*edgeSet
	parentToChildren map[any]*edgeSet
	ownerToChildren  map[any]*edgeSet
	childToOwner     map[any]any

	collections    map[any]*callback.Collection
	parentTriggers map[any]*callback.Callback
	disposed       map[any]struct{}

	treeCallbacks *callback.Collection
	groups        *callback.GroupScheduler
	stage         *stage.Stage

	clock  clock.Clock
	logger *slog.Logger
}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the logger shared by the manager, its stage and the
// collections it creates.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		m.logger = logger
	}
}

// WithClock sets the clock used by the stage.
func WithClock(c clock.Clock) Option {
	return func(m *Manager) {
		m.clock = c
	}
}

// NewManager creates an empty graph with its own stage and group scheduler.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		childToParents:   make(map[any]*edgeSet),
		parentToChildren: make(map[any]*edgeSet),
		ownerToChildren:  make(map[any]*edgeSet),
		childToOwner:     make(map[any]any),
		collections:      make(map[any]*callback.Collection),
		parentTriggers:   make(map[any]*callback.Callback),
		disposed:         make(map[any]struct{}),
		clock:            clock.System{},
		logger:           logging.NewNop(),
	}
	for _, opt := range opts {
		opt(m)
	}

	m.groups = callback.NewGroupScheduler(
		callback.WithSchedulerDisposedCheck(m.ObjectWasDisposed),
		callback.WithSchedulerLogger(m.logger),
	)
	m.stage = stage.New(
		stage.WithClock(m.clock),
		stage.WithDisposedCheck(m.ObjectWasDisposed),
		stage.WithLogger(m.logger),
	)
	// grouped callbacks run after the call-later queue on every tick
	m.stage.AddTickCallback(nil, callback.New(m.groups.HandleGroupedCallbacks))
	m.treeCallbacks = m.NewCallbackCollection()
	return m
}

// Stage returns the stage driving this graph.
func (m *Manager) Stage() *stage.Stage { return m.stage }

// Groups returns the grouped callback scheduler.
func (m *Manager) Groups() *callback.GroupScheduler { return m.groups }

// Logger returns the manager logger.
func (m *Manager) Logger() *slog.Logger { return m.logger }

// Now returns the manager clock's current time.
func (m *Manager) Now() time.Time { return m.clock.Now() }

// Tick advances the stage by one frame.
func (m *Manager) Tick(elapsed time.Duration) { m.stage.Tick(elapsed) }

// CallLater queues fn on the stage; it is skipped if ctx gets disposed.
func (m *Manager) CallLater(ctx any, fn func(), priority stage.Priority) {
	m.stage.CallLater(ctx, fn, priority)
}

// NewCallbackCollection creates a collection wired to this manager's
// liveness checks and group scheduler.
func (m *Manager) NewCallbackCollection(opts ...callback.Option) *callback.Collection {
	base := []callback.Option{
		callback.WithDisposedCheck(m.ObjectWasDisposed),
		callback.WithScheduler(m.groups),
		callback.WithLogger(m.logger),
	}
	return callback.NewCollection(append(base, opts...)...)
}

func (m *Manager) usage(op, reason string, args ...any) {
	m.logger.Warn("session usage error", append([]any{"op", op, "reason", reason}, args...)...)
}

// ChildOption configures RegisterLinkableChild.
type ChildOption func(*childConfig)

type childConfig struct {
	cb      *callback.Callback
	grouped bool
}

// WithCallback adds cb to the child's collection in the context of the parent.
func WithCallback(cb *callback.Callback) ChildOption {
	return func(c *childConfig) {
		c.cb = cb
		c.grouped = false
	}
}

// WithGroupedCallback adds cb as a grouped callback on the child's collection.
func WithGroupedCallback(cb *callback.Callback) ChildOption {
	return func(c *childConfig) {
		c.cb = cb
		c.grouped = true
	}
}

// RegisterLinkableChild makes child changes trigger the parent. The first
// parent a child is registered under becomes its owner.
func (m *Manager) RegisterLinkableChild(parent, child any, opts ...ChildOption) {
	const op = "RegisterLinkableChild"
	if !isLinkable(parent) {
		m.usage(op, "parent is not linkable", "type", fmt.Sprintf("%T", parent))
		return
	}
	if !isLinkable(child) {
		m.usage(op, "child is not linkable", "type", fmt.Sprintf("%T", child))
		return
	}
	if !hashable(parent) || !hashable(child) {
		m.usage(op, "objects must be comparable")
		return
	}

	var cfg childConfig
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.cb != nil {
		cc := m.GetCallbackCollection(child)
		if cfg.grouped {
			cc.AddGroupedCallback(parent, cfg.cb, false)
		} else {
			cc.AddImmediateCallback(parent, cfg.cb)
		}
	}

	m.RegisterDisposableChild(parent, child)

	parents := m.parentsOf(child)
	if _, ok := parents.get(parent); !ok {
		parents.set(parent, true)
		m.childrenOf(parent).set(child, true)

		// parents run after the child's other observers
		m.GetCallbackCollection(child).AddImmediateCallback(parent, m.parentTrigger(parent), callback.AlwaysLast())
	}

	m.treeCallbacks.TriggerCallbacks()
}

// RegisterDisposableChild makes parent the owner of child unless the child
// already has one. No change notification is wired.
func (m *Manager) RegisterDisposableChild(parent, child any) {
	if !hashable(parent) || !hashable(child) {
		m.usage("RegisterDisposableChild", "objects must be non-nil and comparable")
		return
	}
	if _, owned := m.childToOwner[child]; owned {
		return
	}
	m.childToOwner[child] = parent
	m.ownedBy(parent).set(child, true)
	m.parentsOf(child)
}

// UnregisterLinkableChild removes the notification edge between parent and
// child. Ownership is unchanged.
func (m *Manager) UnregisterLinkableChild(parent, child any) {
	if !hashable(parent) || !hashable(child) {
		m.usage("UnregisterLinkableChild", "objects must be non-nil and comparable")
		return
	}
	if parents := m.childToParents[child]; parents != nil {
		parents.delete(parent)
	}
	if children := m.parentToChildren[parent]; children != nil {
		children.delete(child)
	}
	if trigger, ok := m.parentTriggers[parent]; ok {
		if cc := m.GetCallbackCollection(child); cc != nil {
			cc.RemoveCallback(trigger)
		}
	}
	m.treeCallbacks.TriggerCallbacks()
}

// ExcludeLinkableChildFromSessionState keeps the notification edge but hides
// the child from session state and tree walks.
func (m *Manager) ExcludeLinkableChildFromSessionState(parent, child any) {
	if !hashable(parent) || !hashable(child) {
		m.usage("ExcludeLinkableChildFromSessionState", "objects must be non-nil and comparable")
		return
	}
	if parents := m.childToParents[child]; parents != nil {
		if included, ok := parents.get(parent); ok && included {
			parents.set(parent, false)
		}
	}
	if children := m.parentToChildren[parent]; children != nil {
		if included, ok := children.get(child); ok && included {
			children.set(child, false)
		}
	}
}

// GetLinkableOwner returns the owner of child, or nil.
func (m *Manager) GetLinkableOwner(child any) any {
	if !hashable(child) {
		return nil
	}
	return m.childToOwner[child]
}

// GetLinkableChildren returns the children registered under parent that are
// part of its session state, in registration order.
func (m *Manager) GetLinkableChildren(parent any) []any {
	if !hashable(parent) {
		return nil
	}
	if children := m.parentToChildren[parent]; children != nil {
		return children.list(true)
	}
	return nil
}

// GetRegisteredChildren returns every child registered under parent,
// including excluded ones.
func (m *Manager) GetRegisteredChildren(parent any) []any {
	if !hashable(parent) {
		return nil
	}
	if children := m.parentToChildren[parent]; children != nil {
		return children.list(false)
	}
	return nil
}

// GetLinkableParents returns the notification parents of child.
func (m *Manager) GetLinkableParents(child any) []any {
	if !hashable(child) {
		return nil
	}
	if parents := m.childToParents[child]; parents != nil {
		return parents.list(false)
	}
	return nil
}

// GetCallbackCollection returns the collection of obj. Linkable objects
// expose their own; any other comparable object gets one created on first
// use, owned by the object.
func (m *Manager) GetCallbackCollection(obj any) *callback.Collection {
	if obj == nil {
		m.usage("GetCallbackCollection", "nil object")
		return nil
	}
	if cc, ok := obj.(*callback.Collection); ok {
		return cc
	}
	if l, ok := obj.(Linkable); ok {
		if cc := l.CallbackCollection(); cc != nil {
			return cc
		}
	}
	if !hashable(obj) {
		m.usage("GetCallbackCollection", "object is not comparable", "type", fmt.Sprintf("%T", obj))
		return nil
	}
	if cc, ok := m.collections[obj]; ok {
		return cc
	}
	cc := m.NewCallbackCollection()
	m.RegisterDisposableChild(obj, cc)
	m.collections[obj] = cc
	return cc
}

// existingCollection is GetCallbackCollection without the lazy creation.
func (m *Manager) existingCollection(obj any) *callback.Collection {
	if cc, ok := obj.(*callback.Collection); ok {
		return cc
	}
	if l, ok := obj.(Linkable); ok {
		if cc := l.CallbackCollection(); cc != nil {
			return cc
		}
	}
	return m.collections[obj]
}

// GetSessionState returns the session state of a variable or composite.
func (m *Manager) GetSessionState(obj any) any {
	if obj == nil {
		m.usage("GetSessionState", "nil object")
		return nil
	}
	if g, ok := obj.(interface{ SessionState() any }); ok {
		return g.SessionState()
	}
	m.usage("GetSessionState", "object has no session state", "type", fmt.Sprintf("%T", obj))
	return nil
}

// SetSessionState applies newState to obj. Composites receive the state
// with removeMissing. A variable given a plain map with removeMissing false
// treats it as a patch over its current state; otherwise the state replaces
// the current one.
func (m *Manager) SetSessionState(obj, newState any, removeMissing bool) {
	const op = "SetSessionState"
	if obj == nil {
		m.usage(op, "nil object")
		return
	}
	switch v := obj.(type) {
	case Composite:
		if newState == nil {
			return
		}
		v.ApplySessionState(newState, removeMissing)
	case Variable:
		if !removeMissing && state.IsMap(newState) {
			v.SetSessionState(state.Apply(v.SessionState(), newState))
			return
		}
		v.SetSessionState(newState)
	default:
		m.usage(op, "object has no session state", "type", fmt.Sprintf("%T", obj))
	}
}

// CopySessionState replaces the state of destination with that of source.
func (m *Manager) CopySessionState(source, destination any) {
	m.SetSessionState(destination, state.Copy(m.GetSessionState(source)), true)
}

// ObjectWasDisposed reports whether obj was disposed, either through its
// callback collection or through DisposeObject.
func (m *Manager) ObjectWasDisposed(obj any) bool {
	if obj == nil {
		return false
	}
	if cc, ok := obj.(*callback.Collection); ok && cc.WasDisposed() {
		return true
	}
	if l, ok := obj.(Linkable); ok {
		if cc := l.CallbackCollection(); cc != nil && cc.WasDisposed() {
			return true
		}
	}
	if !hashable(obj) {
		return false
	}
	_, ok := m.disposed[obj]
	return ok
}

// DisposeObject disposes obj, its callback collection and, depth first,
// every object it owns. Edges to parents and to non-owned children are
// severed. Calling it again is a no-op.
func (m *Manager) DisposeObject(obj any) {
	if !hashable(obj) {
		return
	}
	if _, done := m.disposed[obj]; done {
		return
	}
	m.disposed[obj] = struct{}{}

	if d, ok := obj.(Disposer); ok {
		m.safeDispose(obj, d)
	}

	// this removes every callback, including the ones triggering parents
	if cc := m.existingCollection(obj); cc != nil && any(cc) != obj {
		m.DisposeObject(cc)
	}

	if parents := m.childToParents[obj]; parents != nil {
		for _, p := range parents.list(false) {
			if children := m.parentToChildren[p]; children != nil {
				children.delete(obj)
			}
		}
		delete(m.childToParents, obj)
	}

	if owner, ok := m.childToOwner[obj]; ok {
		if owned := m.ownerToChildren[owner]; owned != nil {
			owned.delete(obj)
		}
		delete(m.childToOwner, obj)
	}

	if children := m.parentToChildren[obj]; children != nil {
		for _, c := range children.list(false) {
			if parents := m.childToParents[c]; parents != nil {
				parents.delete(obj)
			}
		}
		delete(m.parentToChildren, obj)
	}
	delete(m.parentTriggers, obj)

	if owned := m.ownerToChildren[obj]; owned != nil {
		delete(m.ownerToChildren, obj)
		for _, c := range owned.list(false) {
			m.DisposeObject(c)
		}
	}

	m.treeCallbacks.TriggerCallbacks()
}

func (m *Manager) safeDispose(obj any, d Disposer) {
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error("dispose panicked", "type", fmt.Sprintf("%T", obj), "panic", r)
		}
	}()
	d.Dispose()
}

func (m *Manager) parentsOf(child any) *edgeSet {
	s, ok := m.childToParents[child]
	if !ok {
		s = newEdgeSet()
		m.childToParents[child] = s
	}
	return s
}

func (m *Manager) childrenOf(parent any) *edgeSet {
	s, ok := m.parentToChildren[parent]
	if !ok {
		s = newEdgeSet()
		m.parentToChildren[parent] = s
	}
	return s
}

func (m *Manager) ownedBy(owner any) *edgeSet {
	s, ok := m.ownerToChildren[owner]
	if !ok {
		s = newEdgeSet()
		m.ownerToChildren[owner] = s
	}
	return s
}

// parentTrigger returns the callback that forwards a child trigger to
// parent. One per parent, so it can be found again on unregister.
func (m *Manager) parentTrigger(parent any) *callback.Callback {
	if cb, ok := m.parentTriggers[parent]; ok {
		return cb
	}
	cb := callback.New(func() {
		if cc := m.existingCollection(parent); cc != nil {
			cc.TriggerCallbacks()
		}
	})
	m.parentTriggers[parent] = cb
	return cb
}
