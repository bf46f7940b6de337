// Package journal applies the log rules to an in-memory, append-ordered
// history: recording a day, removing the last one, and deriving the current
// phase view. It never touches a data store.
package journal

import (
	"errors"
	"slices"

	"github.com/kokistudios/kyber/internal/entry"
	"github.com/kokistudios/kyber/internal/phase"
	"github.com/kokistudios/kyber/internal/signal"
	"github.com/kokistudios/kyber/internal/trend"
)

// ErrEmptyHistory is returned when removing from an empty log.
var ErrEmptyHistory = errors.New("history is empty")

// Options tunes RecordEntry beyond the base field rules.
type Options struct {
	// Menu restricts deviation amounts when non-empty.
	Menu []int
}

// RecordEntry validates a candidate, derives its phase id and smoothing flag
// from the last entry of history, and returns it with the extended history.
// The input slice is never modified or aliased.
func RecordEntry(history []entry.Entry, c entry.Candidate) (entry.Entry, []entry.Entry, error) {
	return RecordEntryWith(history, c, Options{})
}

// RecordEntryWith is RecordEntry with extra options.
func RecordEntryWith(history []entry.Entry, c entry.Candidate, opts Options) (entry.Entry, []entry.Entry, error) {
	if err := c.ValidateMenu(opts.Menu); err != nil {
		return entry.Entry{}, history, err
	}

	prev := Last(history)
	e := entry.Entry{
		Date:            c.Date,
		Weight:          c.Weight,
		CalorieTarget:   c.CalorieTarget,
		DeviationAmount: c.DeviationAmount,
		Smoothed:        signal.MarkSmoothed(prev),
		PhaseID:         phase.Assign(prev, c.CalorieTarget),
	}

	updated := append(slices.Clip(history), e)
	return e, updated, nil
}

// DeleteLast removes the most recently appended entry and returns the
// shortened history together with the removed entry.
func DeleteLast(history []entry.Entry) ([]entry.Entry, entry.Entry, error) {
	if len(history) == 0 {
		return history, entry.Entry{}, ErrEmptyHistory
	}
	n := len(history) - 1
	return slices.Clone(history[:n]), history[n], nil
}

// CurrentPhase returns the phase id of the last entry; ok is false for an
// empty history.
func CurrentPhase(history []entry.Entry) (id int, ok bool) {
	last := Last(history)
	if last == nil {
		return 0, false
	}
	return last.PhaseID, true
}

// Last returns a pointer to a copy of the last entry, or nil.
func Last(history []entry.Entry) *entry.Entry {
	if len(history) == 0 {
		return nil
	}
	e := history[len(history)-1]
	return &e
}

// DefaultCalories is the calorie target to offer for the next entry: the
// last entry's target, or fallback on an empty log.
func DefaultCalories(history []entry.Entry, fallback int) int {
	if last := Last(history); last != nil {
		return last.CalorieTarget
	}
	return fallback
}

// View is what a presentation layer renders for the current phase.
type View struct {
	Phase   int             `json:"phase"`
	HasData bool            `json:"has_data"`
	Last    *entry.Entry    `json:"last,omitempty"`
	Signal  []entry.Entry   `json:"-"`
	Chart   []signal.Point  `json:"chart"`
	Verdict trend.Verdict   `json:"verdict"`
	Params  trend.Params    `json:"-"`
	Phases  []phase.Summary `json:"-"`
}

// Snapshot derives the current phase's clean series, chart and verdict.
// An empty history yields a view with HasData false and no verdict.
func Snapshot(history []entry.Entry, p trend.Params) (View, error) {
	v := View{Params: p, Verdict: trend.Verdict{Kind: trend.Insufficient}}
	id, ok := CurrentPhase(history)
	if !ok {
		return v, nil
	}

	v.Phase = id
	v.HasData = true
	v.Last = Last(history)
	v.Signal = signal.SelectPhase(history, id)
	v.Chart = signal.ChartSeries(v.Signal)
	v.Phases = phase.Summarize(history)

	verdict, err := trend.Estimate(v.Signal, p)
	if err != nil {
		return v, err
	}
	v.Verdict = verdict
	return v, nil
}
