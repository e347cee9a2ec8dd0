package linkable

import (
	"github.com/aretw0/loom/pkg/callback"
	"github.com/aretw0/loom/pkg/session"
	"github.com/aretw0/loom/pkg/stage"
	"github.com/aretw0/loom/pkg/state"
)

// Type ids of the stock linkable objects.
const (
	TypeVariable = "LinkableVariable"
	TypeNumber   = "LinkableNumber"
	TypeBoolean  = "LinkableBoolean"
	TypeString   = "LinkableString"
	TypeHashMap  = "LinkableHashMap"
)

// Verifier decides whether a coerced value is accepted.
type Verifier func(value any) bool

// Variable is a leaf holding one session state value. Composite values are
// copied on the way in so two variables never share a map or slice.
type Variable struct {
	cc       *callback.Collection
	m        *session.Manager
	typeName string

	coerce   func(any) any
	equals   func(a, b any) bool
	export   func(any) any
	verifier Verifier

	internal any
	external any
	wasSet   bool
	locked   bool
}

// VariableOption configures a variable.
type VariableOption func(*variableConfig)

type variableConfig struct {
	verifier        Verifier
	defaultValue    any
	hasDefault      bool
	defaultTriggers bool
}

// WithVerifier rejects values for which fn returns false.
func WithVerifier(fn Verifier) VariableOption {
	return func(c *variableConfig) {
		c.verifier = fn
	}
}

// WithDefault sets the initial value. Unless WithoutDefaultTrigger is given,
// callbacks run again on the next tick if nothing else triggered them, so
// observers added after construction see the initial value too.
func WithDefault(v any) VariableOption {
	return func(c *variableConfig) {
		c.defaultValue = v
		c.hasDefault = true
	}
}

// WithoutDefaultTrigger disables the deferred trigger of WithDefault.
func WithoutDefaultTrigger() VariableOption {
	return func(c *variableConfig) {
		c.defaultTriggers = false
	}
}

// NewVariable creates an untyped variable.
func NewVariable(m *session.Manager, opts ...VariableOption) *Variable {
	return newVariable(m, TypeVariable, nil, nil, nil, opts)
}

func newVariable(m *session.Manager, typeName string, coerce func(any) any, equals func(a, b any) bool, export func(any) any, opts []VariableOption) *Variable {
	cfg := variableConfig{defaultTriggers: true}
	for _, opt := range opts {
		opt(&cfg)
	}
	if equals == nil {
		equals = state.Equal
	}
	v := &Variable{
		cc:       m.NewCallbackCollection(),
		m:        m,
		typeName: typeName,
		coerce:   coerce,
		equals:   equals,
		export:   export,
		verifier: cfg.verifier,
	}
	if coerce != nil {
		v.internal = coerce(nil)
		v.external = v.internal
	}

	if cfg.hasDefault {
		v.SetSessionState(cfg.defaultValue)
		if cfg.defaultTriggers && v.cc.TriggerCounter() > callback.DefaultTriggerCount {
			m.CallLater(v, v.defaultValueTrigger, stage.PriorityImmediate)
		}
	}
	return v
}

// defaultValueTrigger re-runs callbacks unless something triggered them
// after the default value was set.
func (v *Variable) defaultValueTrigger() {
	if !v.cc.WasDisposed() && v.cc.TriggerCounter() == callback.DefaultTriggerCount+1 {
		v.cc.TriggerCallbacks()
	}
}

// CallbackCollection returns the variable's collection.
func (v *Variable) CallbackCollection() *callback.Collection { return v.cc }

// TypeName returns the registry id of the variable's type.
func (v *Variable) TypeName() string { return v.typeName }

// SessionState returns the current value.
func (v *Variable) SessionState() any {
	if v.export != nil {
		return v.export(v.external)
	}
	return v.external
}

// SetSessionState coerces, verifies and stores value, triggering callbacks
// when it differs from the current one. Locked variables ignore it.
func (v *Variable) SetSessionState(value any) {
	if v.locked {
		return
	}
	if v.coerce != nil {
		value = v.coerce(value)
	}
	if v.verifier != nil && !v.verifier(value) {
		return
	}
	if v.wasSet && v.equals(v.internal, value) {
		return
	}

	if isComposite(value) {
		v.external = state.Copy(value)
		v.internal = state.Copy(value)
	} else {
		v.external = value
		v.internal = value
	}
	v.wasSet = true
	v.cc.TriggerCallbacks()
}

// DetectChanges triggers callbacks if the value returned by SessionState was
// modified in place.
func (v *Variable) DetectChanges() {
	if !v.equals(v.internal, v.external) {
		v.internal = state.Copy(v.external)
		v.cc.TriggerCallbacks()
	}
}

// Lock makes the variable read-only.
func (v *Variable) Lock() { v.locked = true }

// Locked reports whether Lock was called.
func (v *Variable) Locked() bool { return v.locked }

// Dispose clears the value and the callbacks.
func (v *Variable) Dispose() {
	v.cc.Dispose()
	v.SetSessionState(nil)
}

func isComposite(x any) bool {
	if x == nil {
		return false
	}
	if _, ok := state.Slice(x); ok {
		return true
	}
	return state.IsMap(x) || state.IsDynamicState(x)
}
