package linkable

import (
	"math"

	"github.com/aretw0/loom/pkg/session"
)

// Boolean holds a bool. Other values are converted by truthiness.
type Boolean struct {
	*Variable
}

// NewBoolean creates a boolean variable initialized to false.
func NewBoolean(m *session.Manager, opts ...VariableOption) *Boolean {
	return &Boolean{Variable: newVariable(m, TypeBoolean, truthy, nil, nil, opts)}
}

// Value returns the current value.
func (b *Boolean) Value() bool {
	return b.internal.(bool)
}

// SetValue stores v.
func (b *Boolean) SetValue(v bool) {
	b.SetSessionState(v)
}

func truthy(x any) any {
	if f, ok := asFloat(x); ok {
		return f != 0 && !math.IsNaN(f)
	}
	switch v := x.(type) {
	case nil:
		return false
	case bool:
		return v
	case string:
		return v != ""
	}
	return true
}
