// Package sqlstore keeps the log in a single SQLite table. Rows are read
// back in insertion order, which is the order the tracker appended them.
package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
	_ "modernc.org/sqlite"

	"github.com/kokistudios/kyber/internal/entry"
)

const schema = `
CREATE TABLE IF NOT EXISTS entries (
	seq              INTEGER PRIMARY KEY,
	date             TEXT    NOT NULL,
	weight           REAL    NOT NULL,
	calorie_target   INTEGER NOT NULL,
	deviation_amount INTEGER NOT NULL DEFAULT 0,
	smoothed         INTEGER NOT NULL DEFAULT 0,
	phase_id         INTEGER NOT NULL
)`

// DB is a SQLite-backed log.
type DB struct {
	db     *sql.DB
	path   string
	logger *log.Logger
}

// Open opens (creating if needed) the database at path and ensures the
// entries table exists. A nil logger uses log.Default().
func Open(path string, logger *log.Logger) (*DB, error) {
	if logger == nil {
		logger = log.Default()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	pragmas := []string{
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("pragma %q: %w", p, err)
		}
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create entries table: %w", err)
	}

	return &DB{db: db, path: path, logger: logger}, nil
}

// Close closes the database connection.
func (d *DB) Close() error {
	return d.db.Close()
}

// Path returns the database file.
func (d *DB) Path() string {
	return d.path
}

// Read returns all well-formed entries in insertion order. Rows that fail to
// scan or validate are skipped with a warning.
func (d *DB) Read(ctx context.Context) ([]entry.Entry, error) {
	entries, _, err := d.Scan(ctx)
	return entries, err
}

// Scan is Read that also reports how many rows were skipped.
func (d *DB) Scan(ctx context.Context) ([]entry.Entry, int, error) {
	rows, err := d.db.QueryContext(ctx,
		`SELECT seq, date, weight, calorie_target, deviation_amount, smoothed, phase_id
		 FROM entries ORDER BY seq`)
	if err != nil {
		return nil, 0, fmt.Errorf("query entries: %w", err)
	}
	defer rows.Close()

	entries := []entry.Entry{}
	skipped := 0
	for rows.Next() {
		var (
			seq      int64
			date     string
			smoothed int
			e        entry.Entry
		)
		if err := rows.Scan(&seq, &date, &e.Weight, &e.CalorieTarget, &e.DeviationAmount, &smoothed, &e.PhaseID); err != nil {
			d.logger.Warn("Skipping unreadable row", "row", seq, "err", err)
			skipped++
			continue
		}
		e.Date, err = entry.ParseDate(date)
		if err == nil {
			e.Smoothed = smoothed != 0
			err = e.Validate()
		}
		if err != nil {
			d.logger.Warn("Skipping invalid row", "row", seq, "err", err)
			skipped++
			continue
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate entries: %w", err)
	}
	return entries, skipped, nil
}

// Write replaces the table contents with entries in one transaction.
func (d *DB) Write(ctx context.Context, entries []entry.Entry) error {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM entries`); err != nil {
		return fmt.Errorf("clear entries: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO entries (seq, date, weight, calorie_target, deviation_amount, smoothed, phase_id)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for i, e := range entries {
		smoothed := 0
		if e.Smoothed {
			smoothed = 1
		}
		if _, err := stmt.ExecContext(ctx, i+1, entry.FormatDate(e.Date), e.Weight,
			e.CalorieTarget, e.DeviationAmount, smoothed, e.PhaseID); err != nil {
			return fmt.Errorf("insert entry %d: %w", i+1, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}
