package tui

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/aretw0/loom/pkg/linkable"
	"github.com/aretw0/loom/pkg/session"
	"github.com/muesli/termenv"
)

// maxValueWidth truncates long leaf values.
const maxValueWidth = 60

// TreePrinter draws a session state tree with box characters.
type TreePrinter struct {
	out *termenv.Output
	m   *session.Manager
}

// NewTreePrinter prints to w, coloring as the terminal allows. Pass
// termenv.WithProfile(termenv.Ascii) for uncolored output.
func NewTreePrinter(w io.Writer, m *session.Manager, opts ...termenv.OutputOption) *TreePrinter {
	return &TreePrinter{out: termenv.NewOutput(w, opts...), m: m}
}

// Print writes root and everything below it.
func (p *TreePrinter) Print(root *session.TreeItem) {
	if root == nil {
		return
	}
	fmt.Fprintln(p.out, p.out.String(root.Label).Bold())
	p.children(root, "")
}

func (p *TreePrinter) children(item *session.TreeItem, indent string) {
	kids := item.Children()
	for i, child := range kids {
		branch, next := "├── ", "│   "
		if i == len(kids)-1 {
			branch, next = "└── ", "    "
		}
		fmt.Fprintf(p.out, "%s%s%s\n", indent, branch, p.describe(child))
		p.children(child, indent+next)
	}
}

func (p *TreePrinter) describe(item *session.TreeItem) string {
	var sb strings.Builder
	sb.WriteString(p.out.String(item.Label).Foreground(p.out.Color("#a78bfa")).String())
	if typeName := linkable.TypeOf(item.Source); typeName != "" {
		sb.WriteString(" ")
		sb.WriteString(p.out.String("(" + typeName + ")").Faint().String())
	}
	if _, composite := item.Source.(session.Container); !composite {
		sb.WriteString(" = ")
		sb.WriteString(FormatValue(p.m.GetSessionState(item.Source)))
	}
	return sb.String()
}

// FormatValue renders a session state compactly as JSON.
func FormatValue(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	s := string(b)
	if len(s) > maxValueWidth {
		s = s[:maxValueWidth-3] + "..."
	}
	return s
}
