package phase

import (
	"time"

	"github.com/kokistudios/kyber/internal/entry"
)

// First is the phase id given to the first entry of a log.
const First = 1

// Assign returns the phase id for a new entry with the given calorie target.
// A change of target opens the next phase; otherwise the previous one continues.
func Assign(prev *entry.Entry, calorieTarget int) int {
	if prev == nil {
		return First
	}
	if calorieTarget == prev.CalorieTarget {
		return prev.PhaseID
	}
	return prev.PhaseID + 1
}

// Summary describes one contiguous phase of a log.
type Summary struct {
	ID            int
	CalorieTarget int
	FirstDate     time.Time
	LastDate      time.Time
	Entries       int
	Clean         int // entries not smoothed
}

// Summarize groups the log into phases in order of first appearance.
// Entries are append-ordered, so first/last date are the earliest and latest
// seen within the phase rather than its first and last rows.
func Summarize(entries []entry.Entry) []Summary {
	var out []Summary
	index := make(map[int]int)

	for _, e := range entries {
		i, ok := index[e.PhaseID]
		if !ok {
			out = append(out, Summary{
				ID:            e.PhaseID,
				CalorieTarget: e.CalorieTarget,
				FirstDate:     e.Date,
				LastDate:      e.Date,
			})
			i = len(out) - 1
			index[e.PhaseID] = i
		}
		s := &out[i]
		s.Entries++
		if !e.Smoothed {
			s.Clean++
		}
		if e.Date.Before(s.FirstDate) {
			s.FirstDate = e.Date
		}
		if e.Date.After(s.LastDate) {
			s.LastDate = e.Date
		}
	}
	return out
}
