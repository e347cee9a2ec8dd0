package graph_test

import (
	"strings"
	"testing"

	"github.com/aretw0/loom/internal/presentation/graph"
	"github.com/aretw0/loom/pkg/linkable"
	"github.com/aretw0/loom/pkg/session"
	"github.com/aretw0/loom/pkg/state"
	"github.com/stretchr/testify/assert"
)

func sampleTree() *session.TreeItem {
	m := session.NewManager()
	root := linkable.NewHashMap(m, linkable.NewRegistry())
	linkable.Request[*linkable.Number](root, "x", linkable.TypeNumber, false).SetValue(1)
	inner := linkable.Request[*linkable.HashMap](root, "inner", linkable.TypeHashMap, false)
	linkable.Request[*linkable.String](inner, "title", linkable.TypeString, false).SetValue("hi")
	return m.GetSessionStateTree(root, "session", nil)
}

func TestGenerateMermaid(t *testing.T) {
	tests := []struct {
		name     string
		overlay  *graph.GraphOverlay
		contains []string
		excludes []string
	}{
		{
			name: "Shapes",
			contains: []string{
				"graph TD",
				"root((\"session\"))",
				"root_0[\"x <br/> LinkableNumber\"]",
				"root_1[[\"inner <br/> LinkableHashMap\"]]",
				"root_1_0[\"title <br/> LinkableString\"]",
				"root --> root_0",
				"root_1 --> root_1_0",
			},
			excludes: []string{"classDef"},
		},
		{
			name:    "Changed Overlay",
			overlay: &graph.GraphOverlay{ChangedPaths: []string{"inner", "inner/title", "inner", "nope"}},
			contains: []string{
				"classDef changed",
				"class root_1 changed;",
				"class root_1_0 changed;",
			},
			excludes: []string{"class root_0 changed;"},
		},
		{
			name:    "Removed Overlay",
			overlay: &graph.GraphOverlay{Removed: []string{"inner/old", "gone"}},
			contains: []string{
				"removed_0(\"inner/old\")",
				"root_1 -.-x removed_0",
				"root -.-x removed_1",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := graph.GenerateMermaid(sampleTree(), tt.overlay)
			for _, s := range tt.contains {
				assert.Contains(t, out, s)
			}
			for _, s := range tt.excludes {
				assert.NotContains(t, out, s)
			}
			assert.LessOrEqual(t, strings.Count(out, "class root_1 changed;"), 1)
		})
	}
}

func TestGenerateMermaid_NilRoot(t *testing.T) {
	assert.Equal(t, "graph TD\n", graph.GenerateMermaid(nil, nil))
}

func TestOverlayFromDiff(t *testing.T) {
	diff := []any{
		state.NewDynamicState("inner", "", []any{
			state.NewDynamicState("title", "", "x"),
			state.NewDynamicState("old", state.DeleteClass, nil),
		}),
		"x",
		state.NewDynamicState("n", linkable.TypeNumber, 3.0),
	}

	o := graph.OverlayFromDiff(diff)
	assert.Equal(t, []string{"inner", "inner/title", "n"}, o.ChangedPaths)
	assert.Equal(t, []string{"inner/old"}, o.Removed)

	assert.Empty(t, graph.OverlayFromDiff(5.0).ChangedPaths)
}
