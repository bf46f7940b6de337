// Package tracker runs log operations against a persistent data store. Each
// operation loads the full history, applies the journal rules and writes the
// result back, all under one lock.
package tracker

import (
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/kokistudios/kyber/internal/entry"
	"github.com/kokistudios/kyber/internal/journal"
	"github.com/kokistudios/kyber/internal/phase"
	"github.com/kokistudios/kyber/internal/sheet"
	"github.com/kokistudios/kyber/internal/sqlstore"
	"github.com/kokistudios/kyber/internal/store"
	"github.com/kokistudios/kyber/internal/trend"
)

// Store loads and saves the whole log in append order.
type Store interface {
	Read(ctx context.Context) ([]entry.Entry, error)
	Write(ctx context.Context, entries []entry.Entry) error
}

// Scanner is implemented by stores that can report skipped rows.
type Scanner interface {
	Scan(ctx context.Context) ([]entry.Entry, int, error)
}

// StoreError wraps a data store failure with the operation that hit it.
type StoreError struct {
	Op  string // "read" or "write"
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("data store %s failed: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

// Options configures a Tracker.
type Options struct {
	Params          trend.Params
	Menu            []int
	DefaultCalories int
	// Now returns the current time; defaults to time.Now.
	Now func() time.Time
}

// Tracker serializes log operations over a Store.
type Tracker struct {
	mu     sync.Mutex
	store  Store
	opts   Options
	closer io.Closer
}

// New returns a Tracker over s.
func New(s Store, opts Options) *Tracker {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Params == (trend.Params{}) {
		opts.Params = trend.DefaultParams()
	}
	return &Tracker{store: s, opts: opts}
}

// Open builds a Tracker for the backend configured in st.
func Open(st *store.Store, logger *log.Logger) (*Tracker, error) {
	opts := Options{
		Params:          st.Config.TrendParams(),
		Menu:            slices.Clone(st.Config.Entry.DeviationMenu),
		DefaultCalories: st.Config.Entry.DefaultCalories,
	}

	switch st.Config.Storage.Backend {
	case store.BackendSQLite:
		db, err := sqlstore.Open(st.DataPath(), logger)
		if err != nil {
			return nil, &StoreError{Op: "open", Err: err}
		}
		t := New(db, opts)
		t.closer = db
		return t, nil
	default:
		return New(sheet.New(st.DataPath(), logger), opts), nil
	}
}

// Close releases the underlying store if it holds resources.
func (t *Tracker) Close() error {
	if t.closer != nil {
		return t.closer.Close()
	}
	return nil
}

// Menu returns the allowed deviation amounts.
func (t *Tracker) Menu() []int {
	return slices.Clone(t.opts.Menu)
}

// Params returns the trend parameters in use.
func (t *Tracker) Params() trend.Params {
	return t.opts.Params
}

func (t *Tracker) load(ctx context.Context) ([]entry.Entry, error) {
	h, err := t.store.Read(ctx)
	if err != nil {
		return nil, &StoreError{Op: "read", Err: err}
	}
	return h, nil
}

func (t *Tracker) save(ctx context.Context, h []entry.Entry) error {
	if err := t.store.Write(ctx, h); err != nil {
		return &StoreError{Op: "write", Err: err}
	}
	return nil
}

// Record appends a new day. A zero date means today and a zero calorie
// target repeats the previous one. Nothing is written when validation fails.
func (t *Tracker) Record(ctx context.Context, c entry.Candidate) (entry.Entry, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	h, err := t.load(ctx)
	if err != nil {
		return entry.Entry{}, err
	}

	if c.Date.IsZero() {
		c.Date = entry.Day(t.opts.Now())
	}
	if c.CalorieTarget == 0 {
		c.CalorieTarget = journal.DefaultCalories(h, t.opts.DefaultCalories)
	}

	e, updated, err := journal.RecordEntryWith(h, c, journal.Options{Menu: t.opts.Menu})
	if err != nil {
		return entry.Entry{}, err
	}
	if err := t.save(ctx, updated); err != nil {
		return entry.Entry{}, err
	}
	return e, nil
}

// Undo removes the most recent entry and returns it.
func (t *Tracker) Undo(ctx context.Context) (entry.Entry, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	h, err := t.load(ctx)
	if err != nil {
		return entry.Entry{}, err
	}
	updated, removed, err := journal.DeleteLast(h)
	if err != nil {
		return entry.Entry{}, err
	}
	if err := t.save(ctx, updated); err != nil {
		return entry.Entry{}, err
	}
	return removed, nil
}

// History returns the last limit entries in append order; limit <= 0 returns
// everything.
func (t *Tracker) History(ctx context.Context, limit int) ([]entry.Entry, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	h, err := t.load(ctx)
	if err != nil {
		return nil, err
	}
	if limit > 0 && len(h) > limit {
		h = h[len(h)-limit:]
	}
	return h, nil
}

// Status derives the current phase view.
func (t *Tracker) Status(ctx context.Context) (journal.View, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	h, err := t.load(ctx)
	if err != nil {
		return journal.View{}, err
	}
	return journal.Snapshot(h, t.opts.Params)
}

// Phases summarizes every phase in the log.
func (t *Tracker) Phases(ctx context.Context) ([]phase.Summary, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	h, err := t.load(ctx)
	if err != nil {
		return nil, err
	}
	return phase.Summarize(h), nil
}

// DefaultCalories returns the calorie target offered for the next entry.
func (t *Tracker) DefaultCalories(ctx context.Context) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	h, err := t.load(ctx)
	if err != nil {
		return 0, err
	}
	return journal.DefaultCalories(h, t.opts.DefaultCalories), nil
}

// ErrNoScan is returned by Check when the store cannot report skipped rows.
var ErrNoScan = errors.New("store does not support row checks")

// Check reads the log and reports how many rows were valid and skipped.
func (t *Tracker) Check(ctx context.Context) (valid, skipped int, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	sc, ok := t.store.(Scanner)
	if !ok {
		return 0, 0, ErrNoScan
	}
	entries, skipped, err := sc.Scan(ctx)
	if err != nil {
		return 0, 0, &StoreError{Op: "read", Err: err}
	}
	return len(entries), skipped, nil
}
