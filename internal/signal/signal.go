package signal

import (
	"slices"
	"time"

	"github.com/kokistudios/kyber/internal/entry"
)

// MarkSmoothed reports whether a new entry's weight should be excluded from
// trend fitting. A deviation on the previous day contaminates today's reading.
func MarkSmoothed(prev *entry.Entry) bool {
	return prev != nil && prev.DeviationAmount > 0
}

// SelectPhase returns the clean entries of one phase, in log order.
func SelectPhase(entries []entry.Entry, phaseID int) []entry.Entry {
	var out []entry.Entry
	for _, e := range entries {
		if e.PhaseID == phaseID && !e.Smoothed {
			out = append(out, e)
		}
	}
	return out
}

// Point is one (date, weight) pair of a chart series.
type Point struct {
	Date   time.Time `json:"date"`
	Weight float64   `json:"weight"`
}

// ChartSeries converts a signal into points sorted by date for display.
// Entries sharing a date keep their log order.
func ChartSeries(sig []entry.Entry) []Point {
	points := make([]Point, 0, len(sig))
	for _, e := range sig {
		points = append(points, Point{Date: e.Date, Weight: e.Weight})
	}
	slices.SortStableFunc(points, func(a, b Point) int {
		return a.Date.Compare(b.Date)
	})
	return points
}

// Weights extracts the weight values of a signal, indexed by position.
func Weights(sig []entry.Entry) []float64 {
	ws := make([]float64, len(sig))
	for i, e := range sig {
		ws[i] = e.Weight
	}
	return ws
}
