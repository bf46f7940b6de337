package ui

import (
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/glamour"
)

// RenderMarkdown renders md for the terminal on stdout.
func RenderMarkdown(md string) {
	RenderMarkdownTo(os.Stdout, md)
}

// RenderMarkdownTo renders md to w, falling back to the raw text when the
// renderer is unavailable.
func RenderMarkdownTo(w io.Writer, md string) {
	style := "auto"
	if colorDisabled {
		style = "notty"
	}
	renderer, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle(style),
		glamour.WithWordWrap(100),
	)
	if err != nil {
		// Fallback: print raw
		fmt.Fprintln(w, md)
		return
	}

	out, err := renderer.Render(md)
	if err != nil {
		fmt.Fprintln(w, md)
		return
	}

	fmt.Fprint(w, out)
}
