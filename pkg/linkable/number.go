package linkable

import (
	"math"
	"strconv"
	"strings"

	"github.com/aretw0/loom/pkg/session"
)

// Number holds a float64. Values that are not numbers become NaN, which is
// exported as a nil session state.
type Number struct {
	*Variable
}

// NewNumber creates a number variable initialized to NaN.
func NewNumber(m *session.Manager, opts ...VariableOption) *Number {
	return &Number{Variable: newVariable(m, TypeNumber, toNumber, numberEquals, exportNumber, opts)}
}

// Value returns the current number.
func (n *Number) Value() float64 {
	return n.internal.(float64)
}

// SetValue stores f.
func (n *Number) SetValue(f float64) {
	n.SetSessionState(f)
}

// IsNaN reports whether the number is unset.
func (n *Number) IsNaN() bool {
	return math.IsNaN(n.Value())
}

func toNumber(x any) any {
	if f, ok := asFloat(x); ok {
		return f
	}
	switch v := x.(type) {
	case bool:
		if v {
			return 1.0
		}
		return 0.0
	case string:
		s := strings.TrimSpace(v)
		if s == "" {
			return math.NaN()
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return math.NaN()
		}
		return f
	}
	return math.NaN()
}

func numberEquals(a, b any) bool {
	fa, _ := a.(float64)
	fb, _ := b.(float64)
	if math.IsNaN(fa) && math.IsNaN(fb) {
		return true
	}
	return fa == fb
}

func exportNumber(x any) any {
	if f, ok := x.(float64); ok && math.IsNaN(f) {
		return nil
	}
	return x
}
