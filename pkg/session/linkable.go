package session

import (
	"reflect"

	"github.com/aretw0/loom/pkg/callback"
)

// Linkable is any object that participates in the session graph.
type Linkable interface {
	CallbackCollection() *callback.Collection
}

// Variable is a leaf holding a single value.
type Variable interface {
	SessionState() any
	SetSessionState(state any)
}

// Composite owns named children and applies record-array states.
type Composite interface {
	SessionState() any
	ApplySessionState(state any, removeMissing bool)
}

// Container lists named children for tree building.
type Container interface {
	Names() []string
	Objects() []Linkable
}

// Disposer is called once when the manager disposes the object.
type Disposer interface {
	Dispose()
}

// Typed objects report the type id they were registered under.
type Typed interface {
	TypeName() string
}

func isLinkable(x any) bool {
	if x == nil {
		return false
	}
	l, ok := x.(Linkable)
	return ok && l.CallbackCollection() != nil
}

// hashable reports whether x can be used as a graph key.
func hashable(x any) bool {
	if x == nil {
		return false
	}
	return reflect.ValueOf(x).Comparable()
}
