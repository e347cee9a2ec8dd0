package state

import (
	"math"
	"reflect"
	"sort"

	"github.com/mohae/deepcopy"
)

type kind int

const (
	kindNull kind = iota
	kindBool
	kindNumber
	kindString
	kindArray
	kindObject
	kindOther
)

func kindOf(x any) kind {
	switch x.(type) {
	case nil:
		return kindNull
	case bool:
		return kindBool
	case string:
		return kindString
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, float32, float64:
		return kindNumber
	case DynamicState, *DynamicState:
		return kindObject
	}
	switch reflect.ValueOf(x).Kind() {
	case reflect.Slice, reflect.Array:
		return kindArray
	case reflect.Map:
		if _, ok := asMap(x); ok {
			return kindObject
		}
	}
	return kindOther
}

func toFloat(x any) float64 {
	switch v := x.(type) {
	case int:
		return float64(v)
	case int8:
		return float64(v)
	case int16:
		return float64(v)
	case int32:
		return float64(v)
	case int64:
		return float64(v)
	case uint:
		return float64(v)
	case uint8:
		return float64(v)
	case uint16:
		return float64(v)
	case uint32:
		return float64(v)
	case uint64:
		return float64(v)
	case float32:
		return float64(v)
	case float64:
		return v
	}
	return math.NaN()
}

func numbersEqual(a, b any) bool {
	fa, fb := toFloat(a), toFloat(b)
	if math.IsNaN(fa) && math.IsNaN(fb) {
		return true
	}
	return fa == fb
}

// Equal reports whether two session states are structurally equal. Numbers
// compare by value regardless of Go type, and NaN equals NaN.
func Equal(a, b any) bool {
	ka, kb := kindOf(a), kindOf(b)
	if ka != kb {
		return false
	}
	switch ka {
	case kindNull:
		return true
	case kindNumber:
		return numbersEqual(a, b)
	case kindBool, kindString:
		return a == b
	case kindArray:
		as, _ := asSlice(a)
		bs, _ := asSlice(b)
		if len(as) != len(bs) {
			return false
		}
		for i := range as {
			if !Equal(as[i], bs[i]) {
				return false
			}
		}
		return true
	case kindObject:
		am, _ := asMap(a)
		bm, _ := asMap(b)
		if len(am) != len(bm) {
			return false
		}
		for k, av := range am {
			bv, ok := bm[k]
			if !ok || !Equal(av, bv) {
				return false
			}
		}
		return true
	default:
		return reflect.DeepEqual(a, b)
	}
}

// Copy returns a deep copy of a session state.
func Copy(x any) any {
	if x == nil {
		return nil
	}
	return deepcopy.Copy(x)
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// IsMap reports whether x is a plain string-keyed map.
func IsMap(x any) bool {
	switch x.(type) {
	case DynamicState, *DynamicState:
		return false
	}
	_, ok := asMap(x)
	return ok
}
