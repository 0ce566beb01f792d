package tui

import (
	"fmt"
	"io"

	"github.com/muesli/termenv"
)

var bannerLines = []string{
	`       _                 _           _   `,
	` _ __ (_)__________ _  | |__   ___ | |_ `,
	`| '_ \| |_  /_  / _' | | '_ \ / _ \| __|`,
	`| |_) | |/ / / / (_| | | |_) | (_) | |_ `,
	`| .__/|_/___/___\__,_| |_.__/ \___/ \__|`,
	`|_|                                     `,
}

// Warm tomato-to-cheese gradient.
var bannerColors = []string{"#ef4444", "#f97316", "#f59e0b", "#eab308", "#facc15", "#fde047"}

// PrintBanner writes the ASCII art banner to w using the colors w supports.
func PrintBanner(w io.Writer) {
	out := termenv.NewOutput(w)
	fmt.Fprintln(w)
	for i, line := range bannerLines {
		fmt.Fprintln(w, out.String(line).Foreground(out.Color(bannerColors[i])))
	}
	fmt.Fprintln(w)
}
