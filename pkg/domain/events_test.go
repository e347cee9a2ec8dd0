package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLogHooks_Merge(t *testing.T) {
	var calls []string
	first := LogHooks{OnSave: func(*LogEvent) { calls = append(calls, "first") }}
	second := LogHooks{
		OnSave:  func(*LogEvent) { calls = append(calls, "second") },
		OnClear: func(*LogEvent) { calls = append(calls, "clear") },
	}

	merged := first.Merge(second)
	merged.OnSave(&LogEvent{Type: EventEntrySaved})
	merged.OnClear(&LogEvent{})
	assert.Nil(t, merged.OnApply)
	assert.Equal(t, []string{"first", "second", "clear"}, calls)
}
