package tui

import (
	"fmt"
	"io"

	"github.com/muesli/termenv"
)

// PrintBanner writes the loom banner to w.
func PrintBanner(w io.Writer) {
	out := termenv.NewOutput(w)
	// Indigo to rose, one step per line
	lines := []struct {
		text, color string
	}{
		{"  _                       ", "#818cf8"},
		{" | | ___   ___  _ __ ___  ", "#a78bfa"},
		{" | |/ _ \\ / _ \\| '_ ` _ \\ ", "#c084fc"},
		{" | | (_) | (_) | | | | | |", "#e879f9"},
		{" |_|\\___/ \\___/|_| |_| |_|", "#f472b6"},
	}

	fmt.Fprintln(w)
	for _, l := range lines {
		fmt.Fprintln(w, out.String(l.text).Foreground(out.Color(l.color)))
	}
	fmt.Fprintln(w)
}
