package state

// Diff computes the change from old to new. changed is false when there is
// no difference, which is distinct from a change to nil.
//
// Values of different kinds diff as the whole new value. Plain slices are
// replaced wholesale when unequal. Slices of dynamic state records are
// diffed by object name: unchanged members become bare names, members with
// the same class carry a nested diff with an empty class, new or re-typed
// members carry their full record, and missing members get a DeleteClass
// tombstone after everything else. Maps diff key by key into a sparse patch;
// removed keys are not represented.
func Diff(old, new any) (diff any, changed bool) {
	ko, kn := kindOf(old), kindOf(new)
	if ko != kn {
		return new, true
	}
	switch ko {
	case kindNull:
		return nil, false
	case kindNumber:
		if numbersEqual(old, new) {
			return nil, false
		}
		return new, true
	case kindBool, kindString:
		if old == new {
			return nil, false
		}
		return new, true
	case kindArray:
		return diffArrays(old, new)
	case kindObject:
		return diffObjects(old, new)
	default:
		if Equal(old, new) {
			return nil, false
		}
		return new, true
	}
}

func diffArrays(old, new any) (any, bool) {
	os, _ := asSlice(old)
	ns, _ := asSlice(new)
	if !IsDynamicStateArray(os) && !IsDynamicStateArray(ns) {
		if Equal(os, ns) {
			return nil, false
		}
		return new, true
	}

	oldLookup := make(map[string]DynamicState, len(os))
	oldOrder := make([]string, 0, len(os))
	for _, item := range os {
		ds := toRecord(item)
		if _, seen := oldLookup[ds.ObjectName]; !seen {
			oldOrder = append(oldOrder, ds.ObjectName)
		}
		oldLookup[ds.ObjectName] = ds
	}

	changed := len(os) != len(ns)
	result := make([]any, 0, len(ns))
	for i, item := range ns {
		ds := toRecord(item)
		name := ds.ObjectName
		className := ds.ClassName
		sessionState := ds.SessionState

		prev, ok := oldLookup[name]
		delete(oldLookup, name)

		if ok && prev.ClassName == className {
			className = ""
			d, ch := Diff(prev.SessionState, sessionState)
			if !ch {
				result = append(result, name)
				if !changed && (i >= len(os) || entryName(os[i]) != name) {
					changed = true
				}
				continue
			}
			sessionState = d
		}
		result = append(result, NewDynamicState(name, className, sessionState))
		changed = true
	}

	for _, name := range oldOrder {
		if _, remaining := oldLookup[name]; remaining {
			result = append(result, NewDynamicState(name, DeleteClass, nil))
			changed = true
		}
	}

	if !changed {
		return nil, false
	}
	return result, true
}

// toRecord treats a bare name marker as a record with no class or state.
func toRecord(x any) DynamicState {
	if ds, ok := AsDynamicState(x); ok {
		return ds
	}
	if s, ok := x.(string); ok {
		return DynamicState{ObjectName: s}
	}
	return DynamicState{}
}

func diffObjects(old, new any) (any, bool) {
	om, _ := asMap(old)
	nm, _ := asMap(new)

	var diff map[string]any
	for _, k := range sortedKeys(om) {
		nv, ok := nm[k]
		if !ok {
			continue
		}
		if d, ch := Diff(om[k], nv); ch {
			if diff == nil {
				diff = make(map[string]any)
			}
			diff[k] = d
		}
	}
	for _, k := range sortedKeys(nm) {
		if _, ok := om[k]; !ok {
			if diff == nil {
				diff = make(map[string]any)
			}
			diff[k] = nm[k]
		}
	}

	if diff == nil {
		return nil, false
	}
	return diff, true
}

// Combine merges two diffs so that applying the result equals applying base
// then incoming. Neither argument is modified.
func Combine(base, incoming any) any {
	kb, ki := kindOf(base), kindOf(incoming)
	if kb != ki || (kb != kindArray && kb != kindObject) {
		return Copy(incoming)
	}
	if kb == kindObject {
		bm, _ := asMap(base)
		im, _ := asMap(incoming)
		out := make(map[string]any, len(bm)+len(im))
		for k, v := range bm {
			out[k] = v
		}
		for _, k := range sortedKeys(im) {
			out[k] = Combine(out[k], im[k])
		}
		return out
	}

	bs, _ := asSlice(base)
	is, _ := asSlice(incoming)
	if IsDynamicStateArray(bs) || IsDynamicStateArray(is) {
		return combineRecords(bs, is)
	}

	// a plain array diff carries the whole new value
	return Copy(incoming)
}

func combineRecords(bs, is []any) any {
	lookup := make(map[string]any, len(bs)+len(is))
	names := make([]string, 0, len(bs)+len(is))
	for _, item := range bs {
		name := entryName(item)
		if _, seen := lookup[name]; !seen {
			names = append(names, name)
		}
		lookup[name] = normalizeEntry(item)
	}

	for _, item := range is {
		name := entryName(item)

		// the name moves to the end of the order
		if _, seen := lookup[name]; seen {
			names = moveToEnd(names, name)
		} else {
			names = append(names, name)
		}

		prev, hadPrev := lookup[name]
		prevDS, prevIsRecord := prev.(DynamicState)
		incomingDS, incomingIsRecord := AsDynamicState(item)

		switch {
		case !hadPrev || !prevIsRecord:
			if incomingIsRecord {
				lookup[name] = Copy(incomingDS)
			} else {
				lookup[name] = name
			}
		case incomingIsRecord:
			if incomingDS.ClassName != "" && incomingDS.ClassName != prevDS.ClassName {
				lookup[name] = Copy(incomingDS)
			} else {
				prevDS.SessionState = Combine(prevDS.SessionState, incomingDS.SessionState)
				lookup[name] = prevDS
			}
		}
	}

	out := make([]any, len(names))
	for i, name := range names {
		out[i] = lookup[name]
	}
	return out
}

func normalizeEntry(x any) any {
	if ds, ok := AsDynamicState(x); ok {
		return ds
	}
	return entryName(x)
}

func moveToEnd(names []string, name string) []string {
	for i, n := range names {
		if n == name {
			copy(names[i:], names[i+1:])
			names[len(names)-1] = name
			break
		}
	}
	return names
}

// Apply overlays a map diff onto a copy of base, key by key. Any other diff
// replaces base wholesale.
func Apply(base, diff any) any {
	bm, okBase := asMap(base)
	dm, okDiff := asMap(diff)
	if !okBase || !okDiff {
		return Copy(diff)
	}
	out := make(map[string]any, len(bm)+len(dm))
	for k, v := range bm {
		out[k] = v
	}
	for _, k := range sortedKeys(dm) {
		out[k] = Apply(out[k], dm[k])
	}
	return out
}
