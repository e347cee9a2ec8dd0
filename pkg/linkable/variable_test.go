package linkable

import (
	"math"
	"testing"
	"time"

	"github.com/aretw0/loom/pkg/callback"
	"github.com/aretw0/loom/pkg/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func counter(cc *callback.Collection) *int {
	n := 0
	cc.AddImmediateCallback(nil, callback.New(func() { n++ }))
	return &n
}

func TestVariable_TriggersOnlyOnChange(t *testing.T) {
	m := session.NewManager()
	v := NewVariable(m)
	calls := counter(v.CallbackCollection())

	v.SetSessionState("a")
	v.SetSessionState("a")
	v.SetSessionState("b")

	assert.Equal(t, 2, *calls)
	assert.Equal(t, "b", v.SessionState())
}

func TestVariable_CopiesCompositeValues(t *testing.T) {
	m := session.NewManager()
	v := NewVariable(m)
	in := map[string]any{"a": 1.0}
	v.SetSessionState(in)
	in["a"] = 2.0

	assert.Equal(t, map[string]any{"a": 1.0}, v.SessionState())
}

func TestVariable_DetectChanges(t *testing.T) {
	m := session.NewManager()
	v := NewVariable(m)
	v.SetSessionState(map[string]any{"a": 1.0})
	calls := counter(v.CallbackCollection())

	v.DetectChanges()
	assert.Equal(t, 0, *calls)

	v.SessionState().(map[string]any)["a"] = 2.0
	v.DetectChanges()
	assert.Equal(t, 1, *calls)

	v.DetectChanges()
	assert.Equal(t, 1, *calls)
}

func TestVariable_VerifierAndLock(t *testing.T) {
	m := session.NewManager()
	n := NewNumber(m, WithVerifier(func(v any) bool { return v.(float64) >= 0 }))

	n.SetValue(3)
	n.SetValue(-1)
	assert.Equal(t, 3.0, n.Value())

	n.Lock()
	n.SetValue(4)
	assert.True(t, n.Locked())
	assert.Equal(t, 3.0, n.Value())
}

func TestVariable_DefaultTriggersOnNextTick(t *testing.T) {
	m := session.NewManager()
	n := NewNumber(m, WithDefault(7))
	calls := counter(n.CallbackCollection())

	m.Tick(time.Millisecond)
	assert.Equal(t, 1, *calls)
	assert.Equal(t, 7.0, n.Value())

	m.Tick(time.Millisecond)
	assert.Equal(t, 1, *calls)
}

func TestVariable_DefaultTriggerSkippedAfterChange(t *testing.T) {
	m := session.NewManager()
	n := NewNumber(m, WithDefault(7))
	n.SetValue(8)
	calls := counter(n.CallbackCollection())

	m.Tick(time.Millisecond)
	assert.Equal(t, 0, *calls)
}

func TestVariable_WithoutDefaultTrigger(t *testing.T) {
	m := session.NewManager()
	n := NewNumber(m, WithDefault(7), WithoutDefaultTrigger())
	calls := counter(n.CallbackCollection())

	m.Tick(time.Millisecond)
	assert.Equal(t, 0, *calls)
}

func TestVariable_DisposeClearsValue(t *testing.T) {
	m := session.NewManager()
	s := NewString(m)
	s.SetValue("x")

	m.DisposeObject(s)

	assert.Nil(t, s.SessionState())
	assert.True(t, m.ObjectWasDisposed(s))
}

func TestNumber_Coercion(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want any
	}{
		{"float", 1.5, 1.5},
		{"int", 3, 3.0},
		{"numeric string", " 12.5 ", 12.5},
		{"empty string", "", nil},
		{"garbage", "abc", nil},
		{"nil", nil, nil},
		{"true", true, 1.0},
		{"int8", int8(-4), -4.0},
		{"int16", int16(300), 300.0},
		{"uint8", uint8(7), 7.0},
		{"uint16", uint16(9), 9.0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n := NewNumber(session.NewManager())
			n.SetSessionState(tt.in)
			assert.Equal(t, tt.want, n.SessionState())
		})
	}
}

func TestNumber_NaNEqualsNaN(t *testing.T) {
	n := NewNumber(session.NewManager())
	n.SetSessionState(math.NaN())
	calls := counter(n.CallbackCollection())

	n.SetSessionState(nil)
	n.SetSessionState("x")

	assert.Equal(t, 0, *calls)
	assert.True(t, n.IsNaN())
}

func TestBoolean_Truthiness(t *testing.T) {
	tests := []struct {
		in   any
		want bool
	}{
		{nil, false},
		{"", false},
		{"no", true},
		{0.0, false},
		{2.0, true},
		{math.NaN(), false},
		{map[string]any{}, true},
		{int8(0), false},
		{int32(0), false},
		{uint(0), false},
		{uint64(0), false},
		{uint16(3), true},
	}
	for _, tt := range tests {
		b := NewBoolean(session.NewManager())
		b.SetSessionState(tt.in)
		assert.Equal(t, tt.want, b.Value(), "input %#v", tt.in)
	}
}

func TestString_Coercion(t *testing.T) {
	s := NewString(session.NewManager())
	assert.Nil(t, s.SessionState())

	s.SetSessionState(3.0)
	assert.Equal(t, "3", s.SessionState())

	s.SetSessionState(true)
	assert.Equal(t, "true", s.Value())

	s.SetSessionState(nil)
	assert.Nil(t, s.SessionState())
	assert.Equal(t, "", s.Value())
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	assert.Equal(t, []string{TypeBoolean, TypeHashMap, TypeNumber, TypeString, TypeVariable}, r.Names())

	f, ok := r.Lookup(TypeNumber)
	require.True(t, ok)
	assert.IsType(t, &Number{}, f(session.NewManager()))

	_, ok = r.Lookup("Nope")
	assert.False(t, ok)
}
