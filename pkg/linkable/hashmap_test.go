package linkable

import (
	"testing"

	"github.com/aretw0/loom/pkg/callback"
	"github.com/aretw0/loom/pkg/session"
	"github.com/aretw0/loom/pkg/state"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRoot(t *testing.T) (*session.Manager, *HashMap) {
	t.Helper()
	m := session.NewManager()
	return m, NewHashMap(m, NewRegistry())
}

func TestHashMap_SessionStateAndDiff(t *testing.T) {
	_, root := newRoot(t)
	x := Request[*Number](root, "x", TypeNumber, false)
	require.NotNil(t, x)
	x.SetValue(0)
	prev := root.SessionState()

	x.SetValue(5)
	cur := root.SessionState()

	assert.Equal(t, []any{state.NewDynamicState("x", TypeNumber, 5.0)}, cur)
	diff, changed := state.Diff(prev, cur)
	require.True(t, changed)
	assert.Equal(t, []any{state.NewDynamicState("x", "", 5.0)}, diff)
}

func TestHashMap_ChildChangeTriggersMap(t *testing.T) {
	_, root := newRoot(t)
	calls := counter(root.CallbackCollection())

	x := Request[*Number](root, "x", TypeNumber, false)
	assert.Equal(t, 1, *calls)

	x.SetValue(2)
	assert.Equal(t, 2, *calls)

	root.RemoveObject("x")
	assert.Equal(t, 3, *calls)

	x.SetValue(3)
	assert.Equal(t, 3, *calls)
}

func TestHashMap_RequestExistingKeepsObject(t *testing.T) {
	_, root := newRoot(t)
	first := root.RequestObject("a", TypeNumber, false)
	again := root.RequestObject("a", TypeNumber, false)
	assert.Same(t, first, again)

	replaced := root.RequestObject("a", TypeString, false)
	assert.IsType(t, &String{}, replaced)
	assert.Equal(t, []string{"a"}, root.Names())
}

func TestHashMap_RequestRemovesWithoutType(t *testing.T) {
	m, root := newRoot(t)
	obj := root.RequestObject("a", TypeNumber, false)

	assert.Nil(t, root.RequestObject("a", "", false))
	assert.Empty(t, root.Names())
	assert.True(t, m.ObjectWasDisposed(obj))
}

func TestHashMap_UnknownAndRestrictedTypes(t *testing.T) {
	m := session.NewManager()
	root := NewHashMap(m, NewRegistry(), WithTypeRestriction(TypeNumber))

	assert.Nil(t, root.RequestObject("a", "Unknown", false))
	assert.Nil(t, root.RequestObject("a", TypeString, false))
	assert.NotNil(t, root.RequestObject("a", TypeNumber, false))
	assert.Equal(t, TypeNumber, root.TypeRestriction())
}

func TestHashMap_LockedObjects(t *testing.T) {
	m, root := newRoot(t)
	n := root.RequestObject("a", TypeNumber, true)
	assert.True(t, root.ObjectIsLocked("a"))

	root.RemoveObject("a")
	assert.Same(t, n, root.GetObject("a"))

	assert.Same(t, n, root.RequestObject("a", TypeString, false))

	m.DisposeObject(root)
	assert.Empty(t, root.Names())
	assert.True(t, m.ObjectWasDisposed(n))
}

func TestHashMap_GenerateUniqueName(t *testing.T) {
	_, root := newRoot(t)
	first := root.RequestObject("", TypeNumber, false)
	second := root.RequestObject("", TypeNumber, false)

	assert.Equal(t, TypeNumber, root.GetName(first))
	assert.Equal(t, TypeNumber+"2", root.GetName(second))

	root.RemoveObject(TypeNumber)
	assert.Equal(t, TypeNumber+"3", root.GenerateUniqueName(TypeNumber))
}

func TestHashMap_SetNameOrder(t *testing.T) {
	_, root := newRoot(t)
	for _, name := range []string{"a", "b", "c"} {
		root.RequestObject(name, TypeNumber, false)
	}
	calls := counter(root.ChildListCallbacks().Collection)

	root.SetNameOrder([]string{"a", "b", "c"})
	assert.Equal(t, 0, *calls)

	root.SetNameOrder([]string{"c", "a", "zzz", "c"})
	assert.Equal(t, []string{"b", "c", "a"}, root.Names())
	assert.Equal(t, 1, *calls)
}

func TestHashMap_RenameObject(t *testing.T) {
	m, root := newRoot(t)
	Request[*Number](root, "a", TypeNumber, false).SetValue(1)
	old := Request[*String](root, "b", TypeString, false)
	old.SetValue("hi")
	Request[*Number](root, "c", TypeNumber, false)

	renamed := root.RenameObject("b", "z")

	assert.Equal(t, []string{"a", "z", "c"}, root.Names())
	assert.Equal(t, "hi", m.GetSessionState(renamed))
	assert.True(t, m.ObjectWasDisposed(old))
}

func TestHashMap_RequestObjectCopy(t *testing.T) {
	m, root := newRoot(t)
	inner := NewHashMap(m, NewRegistry())
	Request[*Number](inner, "n", TypeNumber, false).SetValue(4)

	cp := root.RequestObjectCopy("copy", inner)
	require.IsType(t, &HashMap{}, cp)
	assert.Equal(t, inner.SessionState(), m.GetSessionState(cp))
	assert.NotSame(t, inner, cp)
}

func TestHashMap_ChildListCallbacks(t *testing.T) {
	_, root := newRoot(t)
	cl := root.ChildListCallbacks()

	type event struct {
		added, removed string
		hasAdded       bool
		hasRemoved     bool
	}
	var events []event
	cl.AddImmediateCallback(nil, callback.New(func() {
		events = append(events, event{
			added:      cl.LastNameAdded(),
			removed:    cl.LastNameRemoved(),
			hasAdded:   cl.LastObjectAdded() != nil,
			hasRemoved: cl.LastObjectRemoved() != nil,
		})
	}))

	root.RequestObject("a", TypeNumber, false)
	root.RemoveObject("a")

	assert.Equal(t, []event{
		{added: "a", hasAdded: true},
		{removed: "a", hasRemoved: true},
	}, events)
	assert.Equal(t, "", cl.LastNameAdded())
	assert.Nil(t, cl.LastObjectRemoved())
}

func TestHashMap_ChildListRestoresAfterNestedChange(t *testing.T) {
	_, root := newRoot(t)
	cl := root.ChildListCallbacks()

	var seen []string
	cl.AddImmediateCallback(nil, callback.New(func() {
		if cl.LastNameAdded() == "a" {
			root.RequestObject("b", TypeNumber, false)
		}
		seen = append(seen, cl.LastNameAdded())
	}))

	root.RequestObject("a", TypeNumber, false)

	assert.Equal(t, []string{"b", "a"}, seen)
}

func TestHashMap_ApplySessionState(t *testing.T) {
	_, root := newRoot(t)
	root.ApplySessionState([]any{
		state.NewDynamicState("a", TypeNumber, 1.0),
		map[string]any{"objectName": "b", "className": TypeString, "sessionState": "x"},
		state.NewDynamicState("", TypeNumber, 9.0),
		state.NewDynamicState("c", "", 9.0),
	}, true)

	assert.Equal(t, []any{
		state.NewDynamicState("a", TypeNumber, 1.0),
		state.NewDynamicState("b", TypeString, "x"),
	}, root.SessionState())
}

func TestHashMap_ApplyRemoveMissing(t *testing.T) {
	_, root := newRoot(t)
	root.ApplySessionState([]any{
		state.NewDynamicState("a", TypeNumber, 1.0),
		state.NewDynamicState("b", TypeNumber, 2.0),
	}, true)

	root.ApplySessionState([]any{state.NewDynamicState("b", TypeNumber, 3.0)}, false)
	assert.Equal(t, []string{"a", "b"}, root.Names())

	root.ApplySessionState([]any{state.NewDynamicState("b", TypeNumber, 3.0)}, true)
	assert.Equal(t, []string{"b"}, root.Names())
}

func TestHashMap_ApplyRunsCallbacksOnce(t *testing.T) {
	_, root := newRoot(t)
	calls := counter(root.CallbackCollection())

	root.ApplySessionState([]any{
		state.NewDynamicState("a", TypeNumber, 1.0),
		state.NewDynamicState("b", TypeBoolean, true),
		state.NewDynamicState("c", TypeString, "s"),
	}, true)

	assert.Equal(t, 1, *calls)
}

func TestHashMap_NestedMaps(t *testing.T) {
	_, root := newRoot(t)
	root.ApplySessionState([]any{
		state.NewDynamicState("group", TypeHashMap, []any{
			state.NewDynamicState("n", TypeNumber, 2.0),
		}),
	}, true)

	group := Request[*HashMap](root, "group", TypeHashMap, false)
	require.NotNil(t, group)
	n := Request[*Number](group, "n", TypeNumber, false)
	require.NotNil(t, n)
	assert.Equal(t, 2.0, n.Value())
}

func snapshot(root *HashMap, build func(root *HashMap)) any {
	build(root)
	return state.Copy(root.SessionState())
}

func TestHashMap_DiffApplyRoundTrip(t *testing.T) {
	_, root := newRoot(t)
	s1 := snapshot(root, func(h *HashMap) {
		Request[*Number](h, "a", TypeNumber, false).SetValue(1)
		Request[*String](h, "b", TypeString, false).SetValue("x")
		Request[*Boolean](h, "c", TypeBoolean, false).SetValue(true)
	})
	s2 := snapshot(root, func(h *HashMap) {
		h.RemoveObject("c")
		Request[*Number](h, "a", TypeNumber, false).SetValue(2)
		Request[*Number](h, "d", TypeNumber, false).SetValue(3)
	})

	diff, changed := state.Diff(s1, s2)
	require.True(t, changed)
	assert.Equal(t, []any{
		state.NewDynamicState("a", "", 2.0),
		"b",
		state.NewDynamicState("d", TypeNumber, 3.0),
		state.NewDynamicState("c", state.DeleteClass, nil),
	}, diff)

	_, replay := newRoot(t)
	replay.ApplySessionState(s1, true)
	replay.ApplySessionState(diff, false)
	assert.Equal(t, s2, replay.SessionState())
}

func TestHashMap_CombinedDiffsApplyLikeSequence(t *testing.T) {
	_, root := newRoot(t)
	s1 := snapshot(root, func(h *HashMap) {
		Request[*Number](h, "a", TypeNumber, false).SetValue(1)
		Request[*String](h, "b", TypeString, false).SetValue("x")
		Request[*Boolean](h, "c", TypeBoolean, false).SetValue(true)
	})
	s2 := snapshot(root, func(h *HashMap) {
		h.RemoveObject("c")
		Request[*Number](h, "a", TypeNumber, false).SetValue(2)
		Request[*Number](h, "d", TypeNumber, false).SetValue(3)
	})
	s3 := snapshot(root, func(h *HashMap) {
		h.RemoveObject("d")
		Request[*Number](h, "a", TypeNumber, false).SetValue(4)
		Request[*Boolean](h, "e", TypeBoolean, false).SetValue(false)
	})

	d1, _ := state.Diff(s1, s2)
	d2, _ := state.Diff(s2, s3)
	combined := state.Combine(d1, d2)

	_, replay := newRoot(t)
	replay.ApplySessionState(s1, true)
	replay.ApplySessionState(combined, false)
	assert.Equal(t, s3, replay.SessionState())
}
