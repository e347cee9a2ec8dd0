package graph

import (
	"fmt"
	"strings"

	"github.com/aretw0/loom/pkg/linkable"
	"github.com/aretw0/loom/pkg/session"
	"github.com/aretw0/loom/pkg/state"
)

// GraphOverlay marks objects on the graph. Paths are object names joined
// with "/" from the root's children down.
type GraphOverlay struct {
	ChangedPaths []string
	Removed      []string
}

// GenerateMermaid produces a Mermaid flowchart of the session state tree.
// It applies semantic styling:
// - Root: ((Circle))
// - Composite: [[Subroutine]]
// - Leaf: [Rectangle]
// It also applies overlay styles (Changed/Removed) if provided.
func GenerateMermaid(root *session.TreeItem, overlay *GraphOverlay) string {
	var sb strings.Builder
	sb.WriteString("graph TD\n")
	if root == nil {
		return sb.String()
	}

	ids := map[string]string{}
	var visit func(item *session.TreeItem, path, id string)
	visit = func(item *session.TreeItem, path, id string) {
		ids[path] = id
		opener, closer := "[", "]"
		switch {
		case path == "":
			opener, closer = "((", "))"
		case isComposite(item.Source):
			opener, closer = "[[", "]]"
		}

		label := item.Label
		if typeName := linkable.TypeOf(item.Source); typeName != "" && path != "" {
			label = fmt.Sprintf("%s <br/> %s", item.Label, typeName)
		}
		fmt.Fprintf(&sb, "    %s%s\"%s\"%s\n", id, opener, strings.ReplaceAll(label, "\"", "'"), closer)

		for i, child := range item.Children() {
			childPath := child.Label
			if path != "" {
				childPath = path + "/" + child.Label
			}
			childID := fmt.Sprintf("%s_%d", id, i)
			fmt.Fprintf(&sb, "    %s --> %s\n", id, childID)
			visit(child, childPath, childID)
		}
	}
	visit(root, "", "root")

	if overlay != nil {
		sb.WriteString("\n    %% Overlay Styles\n")
		// Force black text (color:#000) for high-contrast on light backgrounds, regardless of theme (Light/Dark)
		sb.WriteString("    classDef changed fill:#ffeb3b,stroke:#fbc02d,stroke-width:3px,color:#000;\n")

		styled := make(map[string]bool)
		for _, p := range overlay.ChangedPaths {
			if id, ok := ids[p]; ok && !styled[id] {
				styled[id] = true
				fmt.Fprintf(&sb, "    class %s changed;\n", id)
			}
		}
		for i, p := range overlay.Removed {
			ghost := fmt.Sprintf("removed_%d", i)
			parent := "root"
			if dir, _, ok := cutLast(p, "/"); ok {
				if id, ok := ids[dir]; ok {
					parent = id
				}
			}
			fmt.Fprintf(&sb, "    %s(\"%s\")\n", ghost, p)
			fmt.Fprintf(&sb, "    %s -.-x %s\n", parent, ghost)
		}
	}

	return sb.String()
}

// OverlayFromDiff lists the objects touched by a record-array diff.
func OverlayFromDiff(diff any) *GraphOverlay {
	o := &GraphOverlay{}
	var walk func(d any, prefix string)
	walk = func(d any, prefix string) {
		xs, ok := state.Slice(d)
		if !ok || !state.IsDynamicStateArray(d) {
			return
		}
		for _, x := range xs {
			ds, ok := state.AsDynamicState(x)
			if !ok {
				continue
			}
			path := prefix + ds.ObjectName
			if ds.ClassName == state.DeleteClass {
				o.Removed = append(o.Removed, path)
				continue
			}
			o.ChangedPaths = append(o.ChangedPaths, path)
			walk(ds.SessionState, path+"/")
		}
	}
	walk(diff, "")
	return o
}

func isComposite(x any) bool {
	_, ok := x.(session.Container)
	return ok
}

func cutLast(s, sep string) (before, after string, found bool) {
	if i := strings.LastIndex(s, sep); i >= 0 {
		return s[:i], s[i+len(sep):], true
	}
	return s, "", false
}
