package tracker

import (
	"context"
	"errors"
	"path/filepath"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/kokistudios/kyber/internal/entry"
	"github.com/kokistudios/kyber/internal/journal"
	"github.com/kokistudios/kyber/internal/store"
	"github.com/kokistudios/kyber/internal/trend"
)

type memStore struct {
	mu       sync.Mutex
	entries  []entry.Entry
	writes   int
	readErr  error
	writeErr error
}

func (m *memStore) Read(ctx context.Context) ([]entry.Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.readErr != nil {
		return nil, m.readErr
	}
	return slices.Clone(m.entries), nil
}

func (m *memStore) Write(ctx context.Context, entries []entry.Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.writeErr != nil {
		return m.writeErr
	}
	m.entries = slices.Clone(entries)
	m.writes++
	return nil
}

var fixedNow = time.Date(2026, 5, 10, 14, 30, 0, 0, time.Local)

func newTracker(s Store) *Tracker {
	return New(s, Options{
		Menu:            entry.DefaultDeviationMenu,
		DefaultCalories: 2500,
		Now:             func() time.Time { return fixedNow },
	})
}

func day(n int) time.Time { return time.Date(2026, 5, n, 0, 0, 0, 0, time.Local) }

func TestRecord(t *testing.T) {
	ctx := context.Background()
	m := &memStore{}
	tr := newTracker(m)

	if _, err := tr.Record(ctx, entry.Candidate{Date: day(1), Weight: 82, CalorieTarget: 2500}); err != nil {
		t.Fatal(err)
	}
	if _, err := tr.Record(ctx, entry.Candidate{Date: day(2), Weight: 81.8, CalorieTarget: 2500, DeviationAmount: 1500}); err != nil {
		t.Fatal(err)
	}
	e, err := tr.Record(ctx, entry.Candidate{Date: day(3), Weight: 81.9, CalorieTarget: 2200})
	if err != nil {
		t.Fatal(err)
	}
	if e.PhaseID != 2 || !e.Smoothed {
		t.Errorf("third entry = phase %d smoothed %v, want phase 2 smoothed", e.PhaseID, e.Smoothed)
	}
	if len(m.entries) != 3 || m.writes != 3 {
		t.Errorf("store has %d entries after %d writes, want 3 and 3", len(m.entries), m.writes)
	}
}

func TestRecord_Defaults(t *testing.T) {
	ctx := context.Background()
	m := &memStore{}
	tr := newTracker(m)

	e, err := tr.Record(ctx, entry.Candidate{Weight: 80})
	if err != nil {
		t.Fatal(err)
	}
	if !e.Date.Equal(entry.Day(fixedNow)) {
		t.Errorf("date = %v, want today", e.Date)
	}
	if e.CalorieTarget != 2500 {
		t.Errorf("calorie target = %d, want configured default 2500", e.CalorieTarget)
	}

	if _, err := tr.Record(ctx, entry.Candidate{Date: day(11), Weight: 80, CalorieTarget: 2100}); err != nil {
		t.Fatal(err)
	}
	e, err = tr.Record(ctx, entry.Candidate{Date: day(12), Weight: 79.9})
	if err != nil {
		t.Fatal(err)
	}
	if e.CalorieTarget != 2100 || e.PhaseID != 2 {
		t.Errorf("prefilled entry = %d kcal phase %d, want 2100 kcal phase 2", e.CalorieTarget, e.PhaseID)
	}
}

func TestRecord_InvalidNotWritten(t *testing.T) {
	ctx := context.Background()
	m := &memStore{}
	tr := newTracker(m)

	_, err := tr.Record(ctx, entry.Candidate{Date: day(1), Weight: 20, CalorieTarget: 2500})
	var ve *entry.ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	_, err = tr.Record(ctx, entry.Candidate{Date: day(1), Weight: 80, CalorieTarget: 2500, DeviationAmount: 700})
	if !errors.As(err, &ve) {
		t.Fatalf("expected ValidationError for off-menu deviation, got %v", err)
	}
	if m.writes != 0 {
		t.Errorf("store written %d times, want 0", m.writes)
	}
}

func TestRecord_StoreErrors(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("disk full")

	tr := newTracker(&memStore{writeErr: boom})
	_, err := tr.Record(ctx, entry.Candidate{Date: day(1), Weight: 80, CalorieTarget: 2500})
	var se *StoreError
	if !errors.As(err, &se) || se.Op != "write" {
		t.Fatalf("expected write StoreError, got %v", err)
	}
	if !errors.Is(err, boom) {
		t.Error("StoreError should unwrap to the cause")
	}

	tr = newTracker(&memStore{readErr: boom})
	if _, err := tr.Status(ctx); !errors.As(err, &se) || se.Op != "read" {
		t.Errorf("expected read StoreError, got %v", err)
	}
}

func TestUndo(t *testing.T) {
	ctx := context.Background()
	m := &memStore{}
	tr := newTracker(m)

	if _, err := tr.Undo(ctx); !errors.Is(err, journal.ErrEmptyHistory) {
		t.Errorf("Undo on empty log: err = %v, want ErrEmptyHistory", err)
	}

	tr.Record(ctx, entry.Candidate{Date: day(1), Weight: 82, CalorieTarget: 2500})
	tr.Record(ctx, entry.Candidate{Date: day(2), Weight: 81, CalorieTarget: 2400})

	removed, err := tr.Undo(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if removed.Weight != 81 {
		t.Errorf("removed = %+v, want day 2", removed)
	}
	if len(m.entries) != 1 {
		t.Errorf("store has %d entries, want 1", len(m.entries))
	}
}

func TestHistoryLimit(t *testing.T) {
	ctx := context.Background()
	tr := newTracker(&memStore{})
	for i := 1; i <= 5; i++ {
		tr.Record(ctx, entry.Candidate{Date: day(i), Weight: 80, CalorieTarget: 2500})
	}

	all, err := tr.History(ctx, 0)
	if err != nil || len(all) != 5 {
		t.Fatalf("History(0) = %d entries, %v", len(all), err)
	}
	last, _ := tr.History(ctx, 2)
	if len(last) != 2 || !last[1].Date.Equal(day(5)) {
		t.Errorf("History(2) = %+v", last)
	}
}

func TestStatusAndPhases(t *testing.T) {
	ctx := context.Background()
	tr := newTracker(&memStore{})
	for i := 0; i < 21; i++ {
		tr.Record(ctx, entry.Candidate{Date: day(1).AddDate(0, 0, i), Weight: 80, CalorieTarget: 2000})
	}

	v, err := tr.Status(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if v.Verdict.Kind != trend.Stalled {
		t.Errorf("verdict = %v, want stalled", v.Verdict.Kind)
	}

	phases, err := tr.Phases(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(phases) != 1 || phases[0].Entries != 21 {
		t.Errorf("phases = %+v", phases)
	}
}

func TestConcurrentRecord(t *testing.T) {
	ctx := context.Background()
	m := &memStore{}
	tr := newTracker(m)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tr.Record(ctx, entry.Candidate{Date: day(1), Weight: 80, CalorieTarget: 2500})
		}()
	}
	wg.Wait()

	if len(m.entries) != 20 {
		t.Errorf("store has %d entries, want 20", len(m.entries))
	}
}

func TestOpenBackends(t *testing.T) {
	ctx := context.Background()
	for _, backend := range []string{store.BackendCSV, store.BackendSQLite} {
		t.Run(backend, func(t *testing.T) {
			cfg := store.DefaultConfig()
			cfg.Storage.Backend = backend
			st := &store.Store{Home: filepath.Join(t.TempDir(), ".kyber"), Config: cfg}

			tr, err := Open(st, nil)
			if err != nil {
				t.Fatalf("Open: %v", err)
			}
			defer tr.Close()

			if _, err := tr.Record(ctx, entry.Candidate{Date: day(1), Weight: 80, CalorieTarget: 2500}); err != nil {
				t.Fatal(err)
			}
			valid, skipped, err := tr.Check(ctx)
			if err != nil {
				t.Fatal(err)
			}
			if valid != 1 || skipped != 0 {
				t.Errorf("Check = %d valid %d skipped, want 1 and 0", valid, skipped)
			}
		})
	}
}

func TestCheck_Unsupported(t *testing.T) {
	tr := newTracker(&memStore{})
	if _, _, err := tr.Check(context.Background()); !errors.Is(err, ErrNoScan) {
		t.Errorf("err = %v, want ErrNoScan", err)
	}
}
