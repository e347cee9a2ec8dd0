package state

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsDynamicState(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want bool
	}{
		{name: "record", in: NewDynamicState("x", "LinkableNumber", 1.0), want: true},
		{name: "pointer", in: &DynamicState{ObjectName: "x"}, want: true},
		{name: "nil pointer", in: (*DynamicState)(nil), want: false},
		{name: "map with three keys", in: map[string]any{"objectName": "x", "className": nil, "sessionState": 1.0}, want: true},
		{name: "map with null name", in: map[string]any{"objectName": nil, "className": "c", "sessionState": nil}, want: true},
		{name: "extra key", in: map[string]any{"objectName": "x", "className": "c", "sessionState": 1.0, "other": 1}, want: false},
		{name: "missing key", in: map[string]any{"objectName": "x", "className": "c"}, want: false},
		{name: "wrong key", in: map[string]any{"objectName": "x", "className": "c", "state": 1}, want: false},
		{name: "non string name", in: map[string]any{"objectName": 3, "className": "c", "sessionState": 1}, want: false},
		{name: "string", in: "x", want: false},
		{name: "nil", in: nil, want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsDynamicState(tt.in))
		})
	}
}

func TestIsDynamicStateArray(t *testing.T) {
	rec := NewDynamicState("x", "c", nil)
	tests := []struct {
		name string
		in   any
		want bool
	}{
		{name: "records", in: []any{rec}, want: true},
		{name: "typed records", in: []DynamicState{rec}, want: true},
		{name: "names and records", in: []any{"a", rec}, want: true},
		{name: "only names", in: []any{"a", "b"}, want: false},
		{name: "empty", in: []any{}, want: false},
		{name: "mixed with number", in: []any{rec, 1.0}, want: false},
		{name: "not a slice", in: rec, want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsDynamicStateArray(tt.in))
		})
	}
}

func TestDynamicState_JSON(t *testing.T) {
	b, err := json.Marshal([]any{NewDynamicState("x", "", 5.0)})
	require.NoError(t, err)
	assert.JSONEq(t, `[{"objectName":"x","className":null,"sessionState":5}]`, string(b))

	var back DynamicState
	require.NoError(t, json.Unmarshal([]byte(`{"objectName":null,"className":"c","sessionState":[1]}`), &back))
	assert.Equal(t, "", back.ObjectName)
	assert.Equal(t, "c", back.ClassName)
	assert.Equal(t, []any{1.0}, back.SessionState)

	var untyped any
	require.NoError(t, json.Unmarshal(b, &untyped))
	assert.True(t, IsDynamicStateArray(untyped))
}
