package signal

import (
	"testing"
	"time"

	"github.com/kokistudios/kyber/internal/entry"
)

func date(day int) time.Time { return time.Date(2026, 2, day, 0, 0, 0, 0, time.UTC) }

func TestMarkSmoothed(t *testing.T) {
	if MarkSmoothed(nil) {
		t.Error("first entry must never be smoothed")
	}
	if MarkSmoothed(&entry.Entry{DeviationAmount: 0}) {
		t.Error("no deviation yesterday should not smooth today")
	}
	if !MarkSmoothed(&entry.Entry{DeviationAmount: 500}) {
		t.Error("deviation yesterday should smooth today")
	}
	// Only the previous deviation matters, not the previous smoothing flag.
	if MarkSmoothed(&entry.Entry{DeviationAmount: 0, Smoothed: true}) {
		t.Error("smoothing must not propagate on its own")
	}
}

func TestSelectPhase(t *testing.T) {
	entries := []entry.Entry{
		{Date: date(1), Weight: 82.0, PhaseID: 1},
		{Date: date(2), Weight: 81.8, PhaseID: 1},
		{Date: date(3), Weight: 81.9, PhaseID: 2, Smoothed: true},
		{Date: date(4), Weight: 81.5, PhaseID: 2},
		{Date: date(5), Weight: 81.2, PhaseID: 2},
		{Date: date(6), Weight: 81.6, PhaseID: 3},
	}

	got := SelectPhase(entries, 2)
	if len(got) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(got))
	}
	for _, e := range got {
		if e.Smoothed {
			t.Errorf("smoothed entry leaked into signal: %+v", e)
		}
		if e.PhaseID != 2 {
			t.Errorf("entry from phase %d leaked into phase 2 signal", e.PhaseID)
		}
	}
	if got[0].Weight != 81.5 || got[1].Weight != 81.2 {
		t.Errorf("order not preserved: %v", Weights(got))
	}

	if got := SelectPhase(entries, 9); len(got) != 0 {
		t.Errorf("unknown phase returned %d entries", len(got))
	}
}

func TestChartSeries_SortsByDateStably(t *testing.T) {
	sig := []entry.Entry{
		{Date: date(3), Weight: 80.0},
		{Date: date(1), Weight: 81.0},
		{Date: date(3), Weight: 79.5},
		{Date: date(2), Weight: 80.5},
	}
	got := ChartSeries(sig)
	want := []float64{81.0, 80.5, 80.0, 79.5}
	for i, p := range got {
		if p.Weight != want[i] {
			t.Errorf("point[%d].Weight = %v, want %v", i, p.Weight, want[i])
		}
	}
	// Input is left in log order.
	if sig[0].Weight != 80.0 {
		t.Error("ChartSeries must not reorder its input")
	}
}
