package phase

import (
	"testing"
	"time"

	"github.com/kokistudios/kyber/internal/entry"
)

func TestAssign_EmptyLog(t *testing.T) {
	if got := Assign(nil, 2500); got != 1 {
		t.Errorf("Assign(nil) = %d, want 1", got)
	}
}

func TestAssign(t *testing.T) {
	prev := &entry.Entry{CalorieTarget: 2500, PhaseID: 3}
	if got := Assign(prev, 2500); got != 3 {
		t.Errorf("same target: got %d, want 3", got)
	}
	if got := Assign(prev, 2200); got != 4 {
		t.Errorf("changed target: got %d, want 4", got)
	}
}

func TestAssign_SequenceProperty(t *testing.T) {
	targets := []int{2500, 2500, 2200, 2200, 2200, 2500, 1800, 1800, 1800, 2000}
	var prev *entry.Entry
	var ids []int
	for _, target := range targets {
		id := Assign(prev, target)
		ids = append(ids, id)
		prev = &entry.Entry{CalorieTarget: target, PhaseID: id}
	}

	for i := 1; i < len(ids); i++ {
		changed := targets[i] != targets[i-1]
		step := ids[i] - ids[i-1]
		if changed && step != 1 {
			t.Errorf("position %d: target changed but phase stepped by %d", i, step)
		}
		if !changed && step != 0 {
			t.Errorf("position %d: target unchanged but phase stepped by %d", i, step)
		}
	}
	if ids[len(ids)-1] != 5 {
		t.Errorf("final phase = %d, want 5", ids[len(ids)-1])
	}
}

func TestSummarize(t *testing.T) {
	d := func(day int) time.Time { return time.Date(2026, 1, day, 0, 0, 0, 0, time.UTC) }
	entries := []entry.Entry{
		{Date: d(1), CalorieTarget: 2500, PhaseID: 1},
		{Date: d(2), CalorieTarget: 2500, PhaseID: 1, DeviationAmount: 500},
		{Date: d(3), CalorieTarget: 2200, PhaseID: 2, Smoothed: true},
		{Date: d(5), CalorieTarget: 2200, PhaseID: 2},
		{Date: d(4), CalorieTarget: 2200, PhaseID: 2},
	}

	got := Summarize(entries)
	if len(got) != 2 {
		t.Fatalf("expected 2 phases, got %d", len(got))
	}
	if got[0].ID != 1 || got[0].Entries != 2 || got[0].Clean != 2 {
		t.Errorf("phase 1 = %+v", got[0])
	}
	p2 := got[1]
	if p2.CalorieTarget != 2200 || p2.Entries != 3 || p2.Clean != 2 {
		t.Errorf("phase 2 = %+v", p2)
	}
	if !p2.FirstDate.Equal(d(3)) || !p2.LastDate.Equal(d(5)) {
		t.Errorf("phase 2 span = %v..%v, want %v..%v", p2.FirstDate, p2.LastDate, d(3), d(5))
	}
}

func TestSummarize_Empty(t *testing.T) {
	if got := Summarize(nil); len(got) != 0 {
		t.Errorf("expected no phases, got %v", got)
	}
}
