package tui

import (
	"bytes"
	"strings"
	"testing"

	"github.com/aretw0/loom/pkg/domain"
	"github.com/aretw0/loom/pkg/linkable"
	"github.com/aretw0/loom/pkg/session"
	"github.com/aretw0/loom/pkg/state"
	"github.com/muesli/termenv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTreePrinter(t *testing.T) {
	m := session.NewManager()
	root := linkable.NewHashMap(m, linkable.NewRegistry())
	linkable.Request[*linkable.Number](root, "x", linkable.TypeNumber, false).SetValue(5)
	inner := linkable.Request[*linkable.HashMap](root, "inner", linkable.TypeHashMap, false)
	linkable.Request[*linkable.String](inner, "title", linkable.TypeString, false).SetValue("hi")

	var buf bytes.Buffer
	NewTreePrinter(&buf, m, termenv.WithProfile(termenv.Ascii)).Print(m.GetSessionStateTree(root, "session", nil))

	expected := strings.Join([]string{
		"session",
		"├── x (LinkableNumber) = 5",
		"└── inner (LinkableHashMap)",
		"    └── title (LinkableString) = \"hi\"",
		"",
	}, "\n")
	assert.Equal(t, expected, buf.String())
}

func TestFormatValue(t *testing.T) {
	assert.Equal(t, "null", FormatValue(nil))
	assert.Equal(t, `{"a":1}`, FormatValue(map[string]any{"a": 1}))

	long := FormatValue(strings.Repeat("x", 100))
	assert.Len(t, long, maxValueWidth)
	assert.True(t, strings.HasSuffix(long, "..."))
}

func TestInspectMarkdown(t *testing.T) {
	snap := domain.Snapshot{
		CurrentState: []any{state.NewDynamicState("x", linkable.TypeNumber, 5.0)},
		UndoHistory: []domain.LogEntry{
			{ID: 0, Forward: []any{state.NewDynamicState("x", "", 5.0)}, TriggerDelay: 16, DiffDuration: 0},
		},
		NextID: 1,
	}

	md := InspectMarkdown("abc", snap)
	assert.Contains(t, md, "# Session `abc`")
	assert.Contains(t, md, "- **Undo steps**: 1")
	assert.Contains(t, md, "| 0 | 16ms | 0ms | `[{\"objectName\":\"x\",\"className\":null,\"sessionState\":5}]` |")
	assert.Contains(t, md, "## Redo history\n\n_empty_")
	assert.Contains(t, md, "\"objectName\": \"x\"")

	render, err := NewPlainRenderer()
	require.NoError(t, err)
	out, err := render(md)
	require.NoError(t, err)
	assert.Contains(t, out, "Session")
	assert.Contains(t, out, "Undo history")
}

func TestPrintBanner(t *testing.T) {
	var buf bytes.Buffer
	PrintBanner(&buf)
	assert.Equal(t, 7, strings.Count(buf.String(), "\n"))
}
