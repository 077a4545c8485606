package tui

import (
	"fmt"
	"io"
	"strings"

	"github.com/muesli/termenv"
)

var bannerLines = []struct {
	text, color string
}{
	{"            _ _  __ _               ", "#34d399"},
	{"   ___ __ _| | |/ _| | _____      __", "#2dd4bf"},
	{"  / __/ _` | | | |_| |/ _ \\ \\ /\\ / /", "#22d3ee"},
	{" | (_| (_| | | |  _| | (_) \\ V  V / ", "#38bdf8"},
	{"  \\___\\__,_|_|_|_| |_|\\___/ \\_/\\_/  ", "#60a5fa"},
}

// PrintBanner writes the callflow ASCII banner to w, colored when w is a terminal.
func PrintBanner(w io.Writer, version string) {
	out := termenv.NewOutput(w)
	fmt.Fprintln(w)
	for _, l := range bannerLines {
		fmt.Fprintln(w, out.String(l.text).Foreground(out.Color(l.color)))
	}
	if v := strings.TrimSpace(version); v != "" {
		fmt.Fprintln(w, out.String("  v"+v).Faint())
	}
	fmt.Fprintln(w)
}
