package linkable

import (
	"strconv"
	"strings"

	"github.com/aretw0/loom/pkg/callback"
	"github.com/aretw0/loom/pkg/session"
	"github.com/aretw0/loom/pkg/state"
)

// HashMap is an ordered collection of named linkable objects. Its session
// state is a list of DynamicState records, one per child, in name order.
type HashMap struct {
	cc        *callback.Collection
	m         *session.Manager
	registry  *Registry
	childList *ChildListCallbacks

	typeRestriction string

	names         []string
	nameToObject  map[string]session.Linkable
	objectToName  map[session.Linkable]string
	locked        map[string]bool
	previousNames map[string]bool
}

// HashMapOption configures a HashMap.
type HashMapOption func(*HashMap)

// WithTypeRestriction only allows children of typeName.
func WithTypeRestriction(typeName string) HashMapOption {
	return func(h *HashMap) {
		h.typeRestriction = typeName
	}
}

// NewHashMap creates an empty map creating its children through r.
func NewHashMap(m *session.Manager, r *Registry, opts ...HashMapOption) *HashMap {
	h := &HashMap{
		cc:            m.NewCallbackCollection(),
		m:             m,
		registry:      r,
		nameToObject:  make(map[string]session.Linkable),
		objectToName:  make(map[session.Linkable]string),
		locked:        make(map[string]bool),
		previousNames: make(map[string]bool),
	}
	for _, opt := range opts {
		opt(h)
	}
	h.childList = newChildListCallbacks(m)
	m.RegisterLinkableChild(h, h.childList)
	return h
}

// CallbackCollection returns the map's collection.
func (h *HashMap) CallbackCollection() *callback.Collection { return h.cc }

// TypeName returns TypeHashMap.
func (h *HashMap) TypeName() string { return TypeHashMap }

// TypeRestriction returns the only type id allowed, or "".
func (h *HashMap) TypeRestriction() string { return h.typeRestriction }

// ChildListCallbacks returns the collection notified on structural changes.
func (h *HashMap) ChildListCallbacks() *ChildListCallbacks { return h.childList }

// Names returns the child names in order.
func (h *HashMap) Names() []string {
	out := make([]string, len(h.names))
	copy(out, h.names)
	return out
}

// Objects returns the children in name order.
func (h *HashMap) Objects() []session.Linkable {
	out := make([]session.Linkable, 0, len(h.names))
	for _, name := range h.names {
		out = append(out, h.nameToObject[name])
	}
	return out
}

// GetObject returns the child called name, or nil.
func (h *HashMap) GetObject(name string) session.Linkable {
	return h.nameToObject[name]
}

// GetName returns the name of obj, or "" if it is not a child.
func (h *HashMap) GetName(obj session.Linkable) string {
	if obj == nil {
		return ""
	}
	return h.objectToName[obj]
}

// SetNameOrder moves the given names to the end, in the given order. Names
// not listed keep their relative order at the front. Unknown and repeated
// names are ignored.
func (h *HashMap) SetNameOrder(order []string) {
	original := len(h.names)
	seen := make(map[string]bool, len(order))
	for _, name := range order {
		if _, ok := h.nameToObject[name]; !ok || seen[name] {
			continue
		}
		seen[name] = true
		h.names = append(h.names, name)
	}
	appended := len(h.names) - original

	removed := make([]bool, len(h.names))
	changed := false
	for i := 0; i < appended; i++ {
		newIndex := original + i
		oldIndex := -1
		for j := 0; j < original; j++ {
			if !removed[j] && h.names[j] == h.names[newIndex] {
				oldIndex = j
				break
			}
		}
		if newIndex-oldIndex != appended {
			changed = true
		}
		removed[oldIndex] = true
	}

	kept := h.names[:0]
	for i, name := range h.names {
		if !removed[i] {
			kept = append(kept, name)
		}
	}
	h.names = kept

	if changed {
		h.childList.run("", nil, nil)
	}
}

// RequestObject returns the child called name, creating it with typeName
// if it is missing or of another type. An empty name is replaced by a
// unique one. An empty typeName or DeleteClass removes the child. A locked
// child is never replaced.
func (h *HashMap) RequestObject(name, typeName string, lock bool) session.Linkable {
	if typeName == "" {
		h.RemoveObject(name)
		return nil
	}
	return h.initObject(name, typeName, lock)
}

// Request is RequestObject returning the child as T, or the zero value if
// the child is missing or has another type.
func Request[T session.Linkable](h *HashMap, name, typeName string, lock bool) T {
	var zero T
	t, ok := h.RequestObject(name, typeName, lock).(T)
	if !ok {
		return zero
	}
	return t
}

// RequestObjectCopy replaces the child called name by a copy of source.
// A nil source removes the child.
func (h *HashMap) RequestObjectCopy(name string, source session.Linkable) session.Linkable {
	if source == nil {
		h.RemoveObject(name)
		return nil
	}
	h.cc.DelayCallbacks()
	defer h.cc.ResumeCallbacks()

	st := h.m.GetSessionState(source)
	obj := h.RequestObject(name, TypeOf(source), false)
	if obj != nil {
		h.m.SetSessionState(obj, state.Copy(st), true)
	}
	return obj
}

// RenameObject gives the child oldName the name newName, keeping its
// position. It returns the renamed object.
func (h *HashMap) RenameObject(oldName, newName string) session.Linkable {
	if oldName == newName {
		return h.nameToObject[oldName]
	}
	h.cc.DelayCallbacks()
	defer h.cc.ResumeCallbacks()

	order := h.Names()
	obj := h.RequestObjectCopy(newName, h.nameToObject[oldName])
	h.RemoveObject(oldName)
	for i, name := range order {
		if name == oldName {
			order[i] = newName
		}
	}
	h.SetNameOrder(order)
	return obj
}

// LockObject prevents the child called name from being removed or replaced.
func (h *HashMap) LockObject(name string) {
	if name == "" {
		return
	}
	if _, ok := h.nameToObject[name]; ok {
		h.locked[name] = true
	}
}

// ObjectIsLocked reports whether LockObject was called for name.
func (h *HashMap) ObjectIsLocked(name string) bool {
	return h.locked[name]
}

// RemoveObject removes and disposes the child called name unless it is
// locked.
func (h *HashMap) RemoveObject(name string) {
	if name == "" || h.locked[name] {
		return
	}
	obj, ok := h.nameToObject[name]
	if !ok {
		return
	}
	delete(h.nameToObject, name)
	delete(h.objectToName, obj)
	for i, n := range h.names {
		if n == name {
			h.names = append(h.names[:i], h.names[i+1:]...)
			break
		}
	}
	h.childList.run(name, nil, obj)
	h.m.DisposeObject(obj)
}

// RemoveAllObjects removes every unlocked child.
func (h *HashMap) RemoveAllObjects() {
	h.cc.DelayCallbacks()
	defer h.cc.ResumeCallbacks()
	for _, name := range h.Names() {
		h.RemoveObject(name)
	}
}

// GenerateUniqueName returns baseName, or baseName followed by the first
// number from 2 giving a name that was never used in this map.
func (h *HashMap) GenerateUniqueName(baseName string) string {
	name := baseName
	for i := 2; h.previousNames[name]; i++ {
		name = baseName + strconv.Itoa(i)
	}
	return name
}

// Dispose removes all children, locked ones included.
func (h *HashMap) Dispose() {
	h.cc.Dispose()
	h.RemoveAllObjects()
	for _, name := range h.Names() {
		delete(h.locked, name)
		h.RemoveObject(name)
	}
}

// SessionState returns one record per child, in name order.
func (h *HashMap) SessionState() any {
	out := make([]any, 0, len(h.names))
	for _, name := range h.names {
		obj := h.nameToObject[name]
		out = append(out, state.NewDynamicState(name, TypeOf(obj), h.m.GetSessionState(obj)))
	}
	return out
}

// ApplySessionState creates, updates and reorders children from a list of
// records. Bare strings only take part in the ordering. With removeMissing,
// children absent from the list are removed and existing children get
// their state replaced rather than patched.
func (h *HashMap) ApplySessionState(newState any, removeMissing bool) {
	if newState == nil {
		return
	}
	items, ok := state.Slice(newState)
	if !ok {
		h.m.Logger().Warn("session usage error", "op", "HashMap.ApplySessionState", "reason", "state is not a list")
		return
	}

	h.cc.DelayCallbacks()
	defer h.cc.ResumeCallbacks()

	created := make(map[string]bool)
	for _, item := range items {
		ds, ok := state.AsDynamicState(item)
		if !ok || ds.ObjectName == "" || ds.ClassName == "" {
			continue
		}
		before := h.nameToObject[ds.ObjectName]
		after := h.initObject(ds.ObjectName, ds.ClassName, false)
		if before != after {
			created[ds.ObjectName] = true
		}
	}

	seen := make(map[string]bool)
	var order []string
	for _, item := range items {
		if name, ok := item.(string); ok {
			seen[name] = true
			order = append(order, name)
			continue
		}
		ds, ok := state.AsDynamicState(item)
		if !ok || ds.ObjectName == "" {
			continue
		}
		obj := h.nameToObject[ds.ObjectName]
		if obj == nil {
			continue
		}
		h.m.SetSessionState(obj, ds.SessionState, created[ds.ObjectName] || removeMissing)
		seen[ds.ObjectName] = true
		order = append(order, ds.ObjectName)
	}

	if removeMissing {
		for _, name := range h.Names() {
			if !seen[name] {
				h.RemoveObject(name)
			}
		}
	}
	h.SetNameOrder(order)
}

func (h *HashMap) initObject(name, className string, lock bool) session.Linkable {
	if name == "" {
		base := className
		if i := strings.LastIndex(base, "::"); i >= 0 {
			base = base[i+2:]
		}
		name = h.GenerateUniqueName(base)
	}
	if className == state.DeleteClass {
		h.RemoveObject(name)
		return h.nameToObject[name]
	}
	if h.typeRestriction != "" && className != h.typeRestriction {
		h.usage("RequestObject", "type not allowed", "name", name, "type", className, "restriction", h.typeRestriction)
		return h.nameToObject[name]
	}
	factory, ok := h.registry.Lookup(className)
	if !ok {
		h.usage("RequestObject", "unregistered type", "name", name, "type", className)
		return h.nameToObject[name]
	}

	obj := h.nameToObject[name]
	if obj == nil || TypeOf(obj) != className {
		h.createObject(name, factory, lock)
	} else if lock {
		h.LockObject(name)
	}
	return h.nameToObject[name]
}

func (h *HashMap) createObject(name string, factory Factory, lock bool) {
	if h.locked[name] {
		return
	}
	h.cc.DelayCallbacks()
	defer h.cc.ResumeCallbacks()

	h.RemoveObject(name)

	obj := factory(h.m)
	h.m.RegisterLinkableChild(h, obj)
	h.nameToObject[name] = obj
	h.objectToName[obj] = name
	h.names = append(h.names, name)
	h.previousNames[name] = true
	if lock {
		h.LockObject(name)
	}
	h.childList.run(name, obj, nil)
}

func (h *HashMap) usage(op, reason string, args ...any) {
	h.m.Logger().Warn("session usage error", append([]any{"op", op, "reason", reason}, args...)...)
}
