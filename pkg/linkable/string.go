package linkable

import (
	"fmt"
	"strconv"

	"github.com/aretw0/loom/pkg/session"
)

// String holds a string. nil is kept as nil; other values are formatted.
type String struct {
	*Variable
}

// NewString creates a string variable with a nil value.
func NewString(m *session.Manager, opts ...VariableOption) *String {
	return &String{Variable: newVariable(m, TypeString, toString, nil, nil, opts)}
}

// Value returns the current string, "" when nil.
func (s *String) Value() string {
	v, _ := s.internal.(string)
	return v
}

// SetValue stores v.
func (s *String) SetValue(v string) {
	s.SetSessionState(v)
}

func toString(x any) any {
	switch v := x.(type) {
	case nil:
		return nil
	case string:
		return v
	case bool:
		return strconv.FormatBool(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case int:
		return strconv.Itoa(v)
	}
	return fmt.Sprint(x)
}
