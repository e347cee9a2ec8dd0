package linkable

import (
	"sort"
	"sync"

	"github.com/aretw0/loom/pkg/session"
)

// Factory creates a linkable object bound to m.
type Factory func(m *session.Manager) session.Linkable

// Registry maps type ids to factories. HashMaps use it to create children
// from the class names found in their session state.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry returns a registry holding the stock types.
func NewRegistry() *Registry {
	r := &Registry{factories: make(map[string]Factory)}
	r.Register(TypeVariable, func(m *session.Manager) session.Linkable { return NewVariable(m) })
	r.Register(TypeNumber, func(m *session.Manager) session.Linkable { return NewNumber(m) })
	r.Register(TypeBoolean, func(m *session.Manager) session.Linkable { return NewBoolean(m) })
	r.Register(TypeString, func(m *session.Manager) session.Linkable { return NewString(m) })
	r.Register(TypeHashMap, func(m *session.Manager) session.Linkable { return NewHashMap(m, r) })
	return r
}

// Register binds typeName to f, replacing any previous factory.
func (r *Registry) Register(typeName string, f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[typeName] = f
}

// Lookup returns the factory for typeName.
func (r *Registry) Lookup(typeName string) (Factory, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.factories[typeName]
	return f, ok
}

// Names returns the registered type ids, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// TypeOf returns the type id of obj, or "" if it does not report one.
func TypeOf(obj any) string {
	if t, ok := obj.(session.Typed); ok {
		return t.TypeName()
	}
	return ""
}
