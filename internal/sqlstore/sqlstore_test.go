package sqlstore

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/charmbracelet/log"

	"github.com/kokistudios/kyber/internal/entry"
)

func openTestDB(t *testing.T, logger *log.Logger) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "log.db"), logger)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func sample() []entry.Entry {
	return []entry.Entry{
		{Date: time.Date(2026, 3, 1, 0, 0, 0, 0, time.Local), Weight: 82.0, CalorieTarget: 2500, PhaseID: 1},
		{Date: time.Date(2026, 3, 2, 0, 0, 0, 0, time.Local), Weight: 81.8, CalorieTarget: 2500, DeviationAmount: 1500, PhaseID: 1},
		{Date: time.Date(2026, 3, 3, 0, 0, 0, 0, time.Local), Weight: 81.9, CalorieTarget: 2200, Smoothed: true, PhaseID: 2},
	}
}

func TestReadEmpty(t *testing.T) {
	db := openTestDB(t, nil)
	entries, err := db.Read(context.Background())
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("expected empty log, got %d entries", len(entries))
	}
}

func TestWriteThenRead(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t, nil)

	want := sample()
	if err := db.Write(ctx, want); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, err := db.Read(ctx)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if len(got) != len(want) {
		t.Fatalf("read %d entries, want %d", len(got), len(want))
	}
	for i := range want {
		if !got[i].Date.Equal(want[i].Date) || got[i].Weight != want[i].Weight ||
			got[i].DeviationAmount != want[i].DeviationAmount ||
			got[i].Smoothed != want[i].Smoothed || got[i].PhaseID != want[i].PhaseID {
			t.Errorf("entry %d = %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestWriteReplaces(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t, nil)

	if err := db.Write(ctx, sample()); err != nil {
		t.Fatal(err)
	}
	if err := db.Write(ctx, sample()[:1]); err != nil {
		t.Fatal(err)
	}
	got, err := db.Read(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 {
		t.Errorf("expected 1 entry after shrinking write, got %d", len(got))
	}
}

func TestReopenPersists(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "sub", "log.db")

	db, err := Open(path, nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := db.Write(ctx, sample()); err != nil {
		t.Fatal(err)
	}
	db.Close()

	db, err = Open(path, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()
	got, err := db.Read(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 3 {
		t.Errorf("expected 3 entries after reopen, got %d", len(got))
	}
}

func TestScanSkipsInvalidRows(t *testing.T) {
	ctx := context.Background()
	var buf bytes.Buffer
	db := openTestDB(t, log.New(&buf))

	if err := db.Write(ctx, sample()); err != nil {
		t.Fatal(err)
	}
	if _, err := db.db.Exec(`INSERT INTO entries (seq, date, weight, calorie_target, phase_id) VALUES (4, 'someday', 80, 2200, 2)`); err != nil {
		t.Fatal(err)
	}
	if _, err := db.db.Exec(`INSERT INTO entries (seq, date, weight, calorie_target, phase_id) VALUES (5, '05/03/2026', 999, 2200, 2)`); err != nil {
		t.Fatal(err)
	}

	entries, skipped, err := db.Scan(ctx)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(entries) != 3 {
		t.Errorf("expected 3 valid entries, got %d", len(entries))
	}
	if skipped != 2 {
		t.Errorf("skipped = %d, want 2", skipped)
	}
	if buf.Len() == 0 {
		t.Error("expected warnings for skipped rows")
	}
}
