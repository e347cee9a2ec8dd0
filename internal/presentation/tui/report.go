package tui

import (
	"fmt"
	"strings"

	"github.com/aretw0/loom/pkg/domain"
)

// InspectMarkdown summarizes a stored snapshot as markdown.
func InspectMarkdown(sessionID string, snap domain.Snapshot) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "# Session `%s`\n\n", sessionID)
	fmt.Fprintf(&sb, "- **Version**: %d\n", snap.Version)
	fmt.Fprintf(&sb, "- **Undo steps**: %d\n", len(snap.UndoHistory))
	fmt.Fprintf(&sb, "- **Redo steps**: %d\n", len(snap.RedoHistory))
	fmt.Fprintf(&sb, "- **Next entry id**: %d\n\n", snap.NextID)

	writeEntries(&sb, "Undo history", snap.UndoHistory)
	writeEntries(&sb, "Redo history", snap.RedoHistory)

	sb.WriteString("## Current state\n\n```json\n")
	sb.WriteString(indentJSON(snap.CurrentState))
	sb.WriteString("\n```\n")
	return sb.String()
}

func writeEntries(sb *strings.Builder, title string, entries []domain.LogEntry) {
	fmt.Fprintf(sb, "## %s\n\n", title)
	if len(entries) == 0 {
		sb.WriteString("_empty_\n\n")
		return
	}
	sb.WriteString("| id | trigger delay | duration | forward |\n")
	sb.WriteString("|---:|---:|---:|---|\n")
	for _, e := range entries {
		forward := strings.ReplaceAll(FormatValue(e.Forward), "|", "\\|")
		fmt.Fprintf(sb, "| %d | %dms | %dms | `%s` |\n", e.ID, e.TriggerDelay, e.DiffDuration, forward)
	}
	sb.WriteString("\n")
}
