package session

import "github.com/aretw0/loom/pkg/callback"

// TreeFilter selects which objects are shown in a session state tree.
// Objects failing the filter are still shown when they have children.
type TreeFilter func(obj any) bool

// TreeItem is a lazily expanded node of the session state tree.
type TreeItem struct {
	Label  string
	Source any

	m      *Manager
	filter TreeFilter
}

// GetSessionStateTree returns the root of a tree mirroring the composite
// structure under root. Children are rebuilt on every call to Children so
// the tree always reflects the current graph.
func (m *Manager) GetSessionStateTree(root any, label string, filter TreeFilter) *TreeItem {
	if root == nil {
		m.usage("GetSessionStateTree", "nil root")
		return nil
	}
	return &TreeItem{Label: label, Source: root, m: m, filter: filter}
}

// Children lists the included children of the item's source. A child
// reachable under several names is listed once.
func (t *TreeItem) Children() []*TreeItem {
	return t.children(make(map[any]struct{}))
}

// children tracks the sources on the current path in visited, so the
// filtered lookahead stops at cycles.
func (t *TreeItem) children(visited map[any]struct{}) []*TreeItem {
	if hashable(t.Source) {
		if _, ok := visited[t.Source]; ok {
			return nil
		}
		visited[t.Source] = struct{}{}
		defer delete(visited, t.Source)
	}
	c, ok := t.Source.(Container)
	if !ok {
		return nil
	}
	names := c.Names()
	objects := c.Objects()

	seen := make(map[any]struct{}, len(objects))
	var out []*TreeItem
	for i, obj := range objects {
		if i >= len(names) || !hashable(obj) {
			continue
		}
		parents := t.m.childToParents[obj]
		if parents == nil {
			continue
		}
		if included, ok := parents.get(t.Source); !ok || !included {
			continue
		}
		if _, dup := seen[obj]; dup {
			continue
		}
		seen[obj] = struct{}{}

		sub := t.m.GetSessionStateTree(obj, names[i], t.filter)
		if t.filter != nil && !t.filter(obj) && len(sub.children(visited)) == 0 {
			continue
		}
		out = append(out, sub)
	}
	return out
}

// Walk visits the tree depth first. Each source is visited at most once, so
// walks terminate even when the graph has cycles. Returning false from fn
// skips the item's children.
func (t *TreeItem) Walk(fn func(item *TreeItem, depth int) bool) {
	visited := make(map[any]struct{})
	var walk func(item *TreeItem, depth int)
	walk = func(item *TreeItem, depth int) {
		if hashable(item.Source) {
			if _, ok := visited[item.Source]; ok {
				return
			}
			visited[item.Source] = struct{}{}
		}
		if !fn(item, depth) {
			return
		}
		for _, child := range item.Children() {
			walk(child, depth+1)
		}
	}
	walk(t, 0)
}

// AddTreeCallback runs cb, grouped, whenever the graph structure changes.
func (m *Manager) AddTreeCallback(ctx any, cb *callback.Callback, triggerNow bool) {
	m.treeCallbacks.AddGroupedCallback(ctx, cb, triggerNow)
}

// RemoveTreeCallback removes a callback added with AddTreeCallback.
func (m *Manager) RemoveTreeCallback(cb *callback.Callback) {
	m.treeCallbacks.RemoveCallback(cb)
}
