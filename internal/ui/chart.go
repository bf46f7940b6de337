package ui

import (
	"fmt"
	"math"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/kokistudios/kyber/internal/signal"
	"github.com/kokistudios/kyber/internal/trend"
)

var sparkBlocks = []rune("▁▂▃▄▅▆▇█")

// Sparkline maps values onto block characters between their min and max.
// A flat series renders at mid height.
func Sparkline(values []float64) string {
	if len(values) == 0 {
		return ""
	}
	lo, hi := values[0], values[0]
	for _, v := range values {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}

	var b strings.Builder
	for _, v := range values {
		idx := len(sparkBlocks) / 2
		if hi > lo {
			idx = int(math.Round((v - lo) / (hi - lo) * float64(len(sparkBlocks)-1)))
		}
		b.WriteRune(sparkBlocks[idx])
	}
	return b.String()
}

// Chart prints the clean weight series of the current phase as a sparkline
// with its range and dates.
func Chart(points []signal.Point) {
	if len(points) == 0 {
		EmptyState("No clean readings in this phase yet.")
		return
	}
	ws := make([]float64, len(points))
	lo, hi := math.Inf(1), math.Inf(-1)
	for i, p := range points {
		ws[i] = p.Weight
		lo = math.Min(lo, p.Weight)
		hi = math.Max(hi, p.Weight)
	}

	line := phaseNameStyle.Render(Sparkline(ws))
	fmt.Fprintf(os.Stderr, "  %s  %s\n", line, dimStyle.Render(fmt.Sprintf("%.1f–%.1f kg", lo, hi)))
	first := points[0].Date.Format("02/01")
	last := points[len(points)-1].Date.Format("02/01")
	fmt.Fprintf(os.Stderr, "  %s\n", dimStyle.Render(fmt.Sprintf("%s → %s, %d readings", first, last, len(points))))
}

// VerdictBanner renders the trend verdict as a colored box.
func VerdictBanner(v trend.Verdict, p trend.Params) {
	var (
		border lipgloss.Color
		title  string
		body   string
	)
	switch v.Kind {
	case trend.Progressing:
		border = lipgloss.Color("10")
		title = successStyle.Render("PROGRESSING")
		body = fmt.Sprintf("slope %+.3f kg per reading over %d readings", v.Slope, v.Samples)
	case trend.Stalled:
		border = lipgloss.Color("9")
		title = errorStyle.Render("STALLED")
		body = fmt.Sprintf("slope %+.3f kg per reading over %d readings\nEscalate to a professional.", v.Slope, v.Samples)
	default:
		border = lipgloss.Color("240")
		title = dimStyle.Render("NOT ENOUGH DATA")
		body = fmt.Sprintf("%d of %d clean readings needed for a verdict", v.Samples, p.MinSamples)
	}

	box := lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(border).
		PaddingLeft(1).
		PaddingRight(1).
		Render(title + "\n" + dimStyle.Render(body))
	fmt.Fprintln(os.Stderr, box)
}
