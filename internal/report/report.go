// Package report renders the log as a Markdown document for the terminal
// or for export.
package report

import (
	"fmt"
	"strings"
	"time"

	"github.com/kokistudios/kyber/internal/entry"
	"github.com/kokistudios/kyber/internal/journal"
	"github.com/kokistudios/kyber/internal/trend"
)

// Markdown renders the current phase view, every phase summary and the most
// recent entries (up to recent; 0 omits the section).
func Markdown(v journal.View, history []entry.Entry, recent int, generated time.Time) string {
	var b strings.Builder

	b.WriteString("# Kyber report\n\n")
	fmt.Fprintf(&b, "_Generated %s_\n\n", generated.Format("02/01/2006 15:04"))

	if !v.HasData {
		b.WriteString("The log is empty. Record a day with `kyber add`.\n")
		return b.String()
	}

	b.WriteString("## Current phase\n\n")
	fmt.Fprintf(&b, "- **Phase:** %d\n", v.Phase)
	if v.Last != nil {
		fmt.Fprintf(&b, "- **Calorie target:** %d kcal\n", v.Last.CalorieTarget)
		fmt.Fprintf(&b, "- **Last weigh-in:** %.1f kg on %s\n", v.Last.Weight, entry.FormatDate(v.Last.Date))
	}
	fmt.Fprintf(&b, "- **Clean readings:** %d\n", len(v.Signal))
	b.WriteString("\n")

	b.WriteString("## Trend\n\n")
	b.WriteString(verdictText(v.Verdict, v.Params))
	b.WriteString("\n\n")

	if len(v.Phases) > 0 {
		b.WriteString("## Phases\n\n")
		b.WriteString("| Phase | Target (kcal) | From | To | Entries | Clean |\n")
		b.WriteString("|---:|---:|---|---|---:|---:|\n")
		for _, p := range v.Phases {
			fmt.Fprintf(&b, "| %d | %d | %s | %s | %d | %d |\n",
				p.ID, p.CalorieTarget, entry.FormatDate(p.FirstDate), entry.FormatDate(p.LastDate), p.Entries, p.Clean)
		}
		b.WriteString("\n")
	}

	if recent > 0 && len(history) > 0 {
		start := max(0, len(history)-recent)
		b.WriteString("## Recent entries\n\n")
		b.WriteString("| Date | Weight (kg) | Target (kcal) | Deviation | Smoothed | Phase |\n")
		b.WriteString("|---|---:|---:|---:|:---:|---:|\n")
		for _, e := range history[start:] {
			smoothed := ""
			if e.Smoothed {
				smoothed = "✓"
			}
			fmt.Fprintf(&b, "| %s | %.1f | %d | %d | %s | %d |\n",
				entry.FormatDate(e.Date), e.Weight, e.CalorieTarget, e.DeviationAmount, smoothed, e.PhaseID)
		}
		b.WriteString("\n")
	}

	return b.String()
}

func verdictText(v trend.Verdict, p trend.Params) string {
	switch v.Kind {
	case trend.Progressing:
		return fmt.Sprintf("**Progressing.** Slope %+.3f kg per reading over %d clean readings.", v.Slope, v.Samples)
	case trend.Stalled:
		return fmt.Sprintf("**Stalled.** Slope %+.3f kg per reading over %d clean readings is below %.3f. "+
			"Escalate to a professional.", v.Slope, v.Samples, p.StallSlope)
	default:
		return fmt.Sprintf("Not enough data: %d of %d clean readings collected.", v.Samples, p.MinSamples)
	}
}
