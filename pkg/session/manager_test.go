package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/loom/pkg/callback"
)

type node struct {
	cc       *callback.Collection
	value    any
	disposed int
	panics   bool
}

func newNode(m *Manager) *node {
	return &node{cc: m.NewCallbackCollection()}
}

func (n *node) CallbackCollection() *callback.Collection { return n.cc }
func (n *node) SessionState() any                        { return n.value }

func (n *node) SetSessionState(v any) {
	n.value = v
	n.cc.TriggerCallbacks()
}

func (n *node) Dispose() {
	n.disposed++
	if n.panics {
		panic("boom")
	}
}

type group struct {
	*node
	names   []string
	objects []Linkable
}

func (g *group) Names() []string     { return g.names }
func (g *group) Objects() []Linkable { return g.objects }

func TestManager_ChildTriggersParent(t *testing.T) {
	m := NewManager()
	parent, child := newNode(m), newNode(m)

	var order []string
	parent.cc.AddImmediateCallback(nil, callback.New(func() { order = append(order, "parent") }))
	m.RegisterLinkableChild(parent, child, WithCallback(callback.New(func() { order = append(order, "child-observer") })))
	child.cc.AddImmediateCallback(nil, callback.New(func() { order = append(order, "sibling") }))

	child.SetSessionState(1.0)
	assert.Equal(t, []string{"child-observer", "sibling", "parent"}, order)
	assert.Equal(t, parent, m.GetLinkableOwner(child))
	assert.Equal(t, []any{child}, m.GetLinkableChildren(parent))
}

func TestManager_FirstParentOwns(t *testing.T) {
	m := NewManager()
	a, b, child := newNode(m), newNode(m), newNode(m)

	m.RegisterLinkableChild(a, child)
	m.RegisterLinkableChild(b, child)
	m.RegisterLinkableChild(b, child)

	assert.Equal(t, a, m.GetLinkableOwner(child))
	assert.ElementsMatch(t, []any{a, b}, m.GetLinkableParents(child))

	bTriggers := 0
	b.cc.AddImmediateCallback(nil, callback.New(func() { bTriggers++ }))
	child.cc.TriggerCallbacks()
	assert.Equal(t, 1, bTriggers, "re-registering does not add a second edge")
}

func TestManager_Unregister(t *testing.T) {
	m := NewManager()
	parent, child := newNode(m), newNode(m)
	m.RegisterLinkableChild(parent, child)

	triggered := 0
	parent.cc.AddImmediateCallback(nil, callback.New(func() { triggered++ }))
	m.UnregisterLinkableChild(parent, child)
	child.cc.TriggerCallbacks()

	assert.Equal(t, 0, triggered)
	assert.Empty(t, m.GetLinkableChildren(parent))
	assert.Equal(t, parent, m.GetLinkableOwner(child), "ownership survives unregister")
}

func TestManager_Exclude(t *testing.T) {
	m := NewManager()
	parent, child := newNode(m), newNode(m)
	m.RegisterLinkableChild(parent, child)
	m.ExcludeLinkableChildFromSessionState(parent, child)

	triggered := 0
	parent.cc.AddImmediateCallback(nil, callback.New(func() { triggered++ }))
	child.cc.TriggerCallbacks()

	assert.Equal(t, 1, triggered, "excluded children still notify")
	assert.Empty(t, m.GetLinkableChildren(parent))
	assert.Equal(t, []any{child}, m.GetRegisteredChildren(parent))
}

func TestManager_DisposeCascadesToOwned(t *testing.T) {
	m := NewManager()
	owner := newNode(m)
	other := newNode(m)
	children := []*node{newNode(m), newNode(m), newNode(m)}
	for _, c := range children {
		m.RegisterLinkableChild(owner, c)
	}
	shared := newNode(m)
	m.RegisterLinkableChild(other, shared)
	m.RegisterLinkableChild(owner, shared)

	m.DisposeObject(owner)

	assert.True(t, m.ObjectWasDisposed(owner))
	for _, c := range children {
		assert.True(t, m.ObjectWasDisposed(c))
		assert.Equal(t, 1, c.disposed)
	}
	assert.False(t, m.ObjectWasDisposed(shared), "only owned children are disposed")
	assert.Equal(t, []any{other}, m.GetLinkableParents(shared))

	m.DisposeObject(owner)
	assert.Equal(t, 1, owner.disposed, "dispose is idempotent")
}

func TestManager_DisposeTerminatesOnCycles(t *testing.T) {
	m := NewManager()
	a, b := newNode(m), newNode(m)
	m.RegisterLinkableChild(a, b)
	m.RegisterLinkableChild(b, a)

	m.DisposeObject(a)
	assert.True(t, m.ObjectWasDisposed(a))
	assert.True(t, m.ObjectWasDisposed(b))
}

func TestManager_DisposeRecoversPanics(t *testing.T) {
	m := NewManager()
	owner := newNode(m)
	bad, good := newNode(m), newNode(m)
	bad.panics = true
	m.RegisterLinkableChild(owner, bad)
	m.RegisterLinkableChild(owner, good)

	require.NotPanics(t, func() { m.DisposeObject(owner) })
	assert.True(t, m.ObjectWasDisposed(bad))
	assert.True(t, m.ObjectWasDisposed(good))
}

func TestManager_DisposedParentStopsReceiving(t *testing.T) {
	m := NewManager()
	parent, child := newNode(m), newNode(m)
	other := newNode(m)
	m.RegisterLinkableChild(other, child)
	m.RegisterLinkableChild(parent, child)

	m.DisposeObject(parent)
	assert.NotPanics(t, func() { child.cc.TriggerCallbacks() })
	assert.False(t, m.ObjectWasDisposed(child))
}

func TestManager_CallbackCollectionForPlainObjects(t *testing.T) {
	m := NewManager()
	type plain struct{ name string }
	obj := &plain{name: "x"}

	cc := m.GetCallbackCollection(obj)
	require.NotNil(t, cc)
	assert.Same(t, cc, m.GetCallbackCollection(obj))
	assert.Equal(t, obj, m.GetLinkableOwner(cc))

	m.DisposeObject(obj)
	assert.True(t, cc.WasDisposed())
	assert.True(t, m.ObjectWasDisposed(obj))

	assert.Nil(t, m.GetCallbackCollection(nil))
	assert.Nil(t, m.GetCallbackCollection([]int{1}))
}

func TestManager_CollectionIsItsOwnCollection(t *testing.T) {
	m := NewManager()
	cc := m.NewCallbackCollection()
	assert.Same(t, cc, m.GetCallbackCollection(cc))
}

func TestManager_RegisterRejectsNonLinkable(t *testing.T) {
	m := NewManager()
	parent := newNode(m)
	m.RegisterLinkableChild(parent, "not linkable")
	m.RegisterLinkableChild(nil, parent)
	assert.Empty(t, m.GetRegisteredChildren(parent))
	assert.Nil(t, m.GetLinkableOwner(parent))
}

func TestManager_SetSessionStatePatch(t *testing.T) {
	m := NewManager()
	v := newNode(m)
	v.value = map[string]any{"a": 1.0, "b": map[string]any{"c": 1.0, "d": 1.0}}

	m.SetSessionState(v, map[string]any{"b": map[string]any{"c": 2.0}}, false)
	assert.Equal(t, map[string]any{"a": 1.0, "b": map[string]any{"c": 2.0, "d": 1.0}}, v.value)

	m.SetSessionState(v, map[string]any{"z": true}, true)
	assert.Equal(t, map[string]any{"z": true}, v.value)

	v.value = []any{1.0, 2.0}
	m.SetSessionState(v, []any{3.0}, false)
	assert.Equal(t, []any{3.0}, v.value, "array states are never patched")
}

func TestManager_CopySessionState(t *testing.T) {
	m := NewManager()
	src, dst := newNode(m), newNode(m)
	src.value = map[string]any{"a": []any{1.0}}

	m.CopySessionState(src, dst)
	assert.Equal(t, src.value, dst.value)
	dst.value.(map[string]any)["a"].([]any)[0] = 9.0
	assert.Equal(t, 1.0, src.value.(map[string]any)["a"].([]any)[0])
}

func TestManager_GetSessionStateUsageErrors(t *testing.T) {
	m := NewManager()
	assert.Nil(t, m.GetSessionState(nil))
	assert.Nil(t, m.GetSessionState(42))
	assert.NotPanics(t, func() { m.SetSessionState(nil, 1, true) })
	assert.NotPanics(t, func() { m.SetSessionState(42, 1, true) })
}

func TestManager_GroupedChildCallbackRunsOnTick(t *testing.T) {
	m := NewManager()
	parent, child := newNode(m), newNode(m)
	calls := 0
	m.RegisterLinkableChild(parent, child, WithGroupedCallback(callback.New(func() { calls++ })))

	child.SetSessionState(1.0)
	child.SetSessionState(2.0)
	assert.Equal(t, 0, calls)

	m.Tick(16 * time.Millisecond)
	assert.Equal(t, 1, calls)
}

func TestManager_Tree(t *testing.T) {
	m := NewManager()
	root := &group{node: newNode(m)}
	a, b := newNode(m), newNode(m)
	sub := &group{node: newNode(m)}
	leaf := newNode(m)

	for _, c := range []struct {
		name string
		obj  Linkable
	}{{"a", a}, {"b", b}, {"sub", sub}} {
		m.RegisterLinkableChild(root, c.obj)
		root.names = append(root.names, c.name)
		root.objects = append(root.objects, c.obj)
	}
	// b listed twice under another name is shown once
	root.names = append(root.names, "b-again")
	root.objects = append(root.objects, b)

	m.RegisterLinkableChild(sub, leaf)
	sub.names = []string{"leaf"}
	sub.objects = []Linkable{leaf}

	tree := m.GetSessionStateTree(root, "root", nil)
	children := tree.Children()
	require.Len(t, children, 3)
	assert.Equal(t, "a", children[0].Label)
	assert.Equal(t, "b", children[1].Label)
	assert.Equal(t, "sub", children[2].Label)
	require.Len(t, children[2].Children(), 1)

	m.ExcludeLinkableChildFromSessionState(root, a)
	assert.Len(t, tree.Children(), 2)

	onlyGroups := m.GetSessionStateTree(root, "root", func(obj any) bool {
		_, ok := obj.(*group)
		return ok
	})
	filtered := onlyGroups.Children()
	require.Len(t, filtered, 1)
	assert.Equal(t, "sub", filtered[0].Label)
}

func TestManager_TreeWalkHandlesCycles(t *testing.T) {
	m := NewManager()
	a := &group{node: newNode(m)}
	b := &group{node: newNode(m)}
	m.RegisterLinkableChild(a, b)
	m.RegisterLinkableChild(b, a)
	a.names, a.objects = []string{"b"}, []Linkable{b}
	b.names, b.objects = []string{"a"}, []Linkable{a}

	var labels []string
	m.GetSessionStateTree(a, "a", nil).Walk(func(item *TreeItem, depth int) bool {
		labels = append(labels, item.Label)
		return true
	})
	assert.Equal(t, []string{"a", "b"}, labels)
}

func TestManager_FilteredTreeHandlesCycles(t *testing.T) {
	m := NewManager()
	a := &group{node: newNode(m)}
	b := &group{node: newNode(m)}
	leaf := newNode(m)
	m.RegisterLinkableChild(a, b)
	m.RegisterLinkableChild(b, a)
	m.RegisterLinkableChild(b, leaf)
	a.names, a.objects = []string{"b"}, []Linkable{b}
	b.names, b.objects = []string{"a", "leaf"}, []Linkable{a, leaf}

	none := m.GetSessionStateTree(a, "a", func(any) bool { return false })
	assert.Empty(t, none.Children())

	onlyLeaves := m.GetSessionStateTree(a, "a", func(obj any) bool {
		_, ok := obj.(*node)
		return ok
	})
	children := onlyLeaves.Children()
	require.Len(t, children, 1)
	assert.Equal(t, "b", children[0].Label)

	var labels []string
	onlyLeaves.Walk(func(item *TreeItem, depth int) bool {
		labels = append(labels, item.Label)
		return true
	})
	assert.Equal(t, []string{"a", "b", "leaf"}, labels)
}

func TestManager_TreeCallbacks(t *testing.T) {
	m := NewManager()
	calls := 0
	cb := callback.New(func() { calls++ })
	m.AddTreeCallback(nil, cb, false)

	parent, child := newNode(m), newNode(m)
	m.RegisterLinkableChild(parent, child)
	m.DisposeObject(child)
	m.Tick(0)
	assert.Equal(t, 1, calls)

	m.RemoveTreeCallback(cb)
	m.RegisterLinkableChild(parent, newNode(m))
	m.Tick(0)
	assert.Equal(t, 1, calls)
}

func TestManager_CallLaterSkipsDisposedContext(t *testing.T) {
	m := NewManager()
	obj := newNode(m)
	ran := false
	m.CallLater(obj, func() { ran = true }, 0)
	m.DisposeObject(obj)
	m.Tick(0)
	assert.False(t, ran)
}
