// Package state encodes, compares and diffs session states.
//
// A session state is an untyped tree of nil, bools, numbers, strings,
// slices, string-keyed maps and DynamicState records. The ordered contents
// of a composite object are a slice of DynamicState records.
package state

import (
	"encoding/json"
	"reflect"
)

// Keys of a dynamic state record.
const (
	KeyObjectName   = "objectName"
	KeyClassName    = "className"
	KeySessionState = "sessionState"
)

// DeleteClass is the reserved class name marking a removed object in a diff.
const DeleteClass = "delete"

// DynamicState names one member of a composite state. An empty ObjectName or
// ClassName stands for null: in a diff, an empty ClassName means the class
// did not change.
type DynamicState struct {
	ObjectName   string
	ClassName    string
	SessionState any
}

// NewDynamicState builds a record.
func NewDynamicState(objectName, className string, sessionState any) DynamicState {
	return DynamicState{ObjectName: objectName, ClassName: className, SessionState: sessionState}
}

type dynamicStateJSON struct {
	ObjectName   *string `json:"objectName"`
	ClassName    *string `json:"className"`
	SessionState any     `json:"sessionState"`
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// MarshalJSON writes the three keys, with null for empty names.
func (d DynamicState) MarshalJSON() ([]byte, error) {
	return json.Marshal(dynamicStateJSON{
		ObjectName:   nullable(d.ObjectName),
		ClassName:    nullable(d.ClassName),
		SessionState: d.SessionState,
	})
}

// UnmarshalJSON reads the three-key form.
func (d *DynamicState) UnmarshalJSON(b []byte) error {
	var raw dynamicStateJSON
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	*d = DynamicState{SessionState: raw.SessionState}
	if raw.ObjectName != nil {
		d.ObjectName = *raw.ObjectName
	}
	if raw.ClassName != nil {
		d.ClassName = *raw.ClassName
	}
	return nil
}

// ToMap returns the untyped three-key form.
func (d DynamicState) ToMap() map[string]any {
	m := map[string]any{
		KeyObjectName:   nil,
		KeyClassName:    nil,
		KeySessionState: d.SessionState,
	}
	if d.ObjectName != "" {
		m[KeyObjectName] = d.ObjectName
	}
	if d.ClassName != "" {
		m[KeyClassName] = d.ClassName
	}
	return m
}

// IsDynamicState reports whether x is a dynamic state record: a
// DynamicState, or a map with exactly the three record keys whose names are
// strings or nil.
func IsDynamicState(x any) bool {
	_, ok := AsDynamicState(x)
	return ok
}

// AsDynamicState converts x to a DynamicState if it is one.
func AsDynamicState(x any) (DynamicState, bool) {
	switch v := x.(type) {
	case DynamicState:
		return v, true
	case *DynamicState:
		if v == nil {
			return DynamicState{}, false
		}
		return *v, true
	case map[string]any:
		if len(v) != 3 {
			return DynamicState{}, false
		}
		name, ok := nameField(v, KeyObjectName)
		if !ok {
			return DynamicState{}, false
		}
		class, ok := nameField(v, KeyClassName)
		if !ok {
			return DynamicState{}, false
		}
		st, ok := v[KeySessionState]
		if !ok {
			return DynamicState{}, false
		}
		return DynamicState{ObjectName: name, ClassName: class, SessionState: st}, true
	default:
		return DynamicState{}, false
	}
}

func nameField(m map[string]any, key string) (string, bool) {
	v, ok := m[key]
	if !ok {
		return "", false
	}
	switch s := v.(type) {
	case nil:
		return "", true
	case string:
		return s, true
	default:
		return "", false
	}
}

// IsDynamicStateArray reports whether xs is a slice made only of strings and
// dynamic state records, with at least one record.
func IsDynamicStateArray(xs any) bool {
	items, ok := asSlice(xs)
	if !ok {
		return false
	}
	found := false
	for _, item := range items {
		if _, isName := item.(string); isName {
			continue
		}
		if !IsDynamicState(item) {
			return false
		}
		found = true
	}
	return found
}

// entryName returns the member name of a record or bare name marker.
func entryName(x any) string {
	if s, ok := x.(string); ok {
		return s
	}
	if ds, ok := AsDynamicState(x); ok {
		return ds.ObjectName
	}
	return ""
}

// asSlice views any slice as []any.
func asSlice(x any) ([]any, bool) {
	switch v := x.(type) {
	case nil:
		return nil, false
	case []any:
		return v, true
	case []DynamicState:
		out := make([]any, len(v))
		for i, d := range v {
			out[i] = d
		}
		return out, true
	}
	rv := reflect.ValueOf(x)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, false
	}
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out, true
}

// asMap views a string-keyed map or a record as map[string]any.
func asMap(x any) (map[string]any, bool) {
	switch v := x.(type) {
	case nil:
		return nil, false
	case map[string]any:
		return v, true
	case DynamicState:
		return v.ToMap(), true
	case *DynamicState:
		if v == nil {
			return nil, false
		}
		return v.ToMap(), true
	}
	rv := reflect.ValueOf(x)
	if rv.Kind() != reflect.Map || rv.Type().Key().Kind() != reflect.String {
		return nil, false
	}
	out := make(map[string]any, rv.Len())
	iter := rv.MapRange()
	for iter.Next() {
		out[iter.Key().String()] = iter.Value().Interface()
	}
	return out, true
}

// Slice views any slice value as []any.
func Slice(x any) ([]any, bool) {
	return asSlice(x)
}
