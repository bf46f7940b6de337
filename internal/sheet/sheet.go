// Package sheet keeps the log as a flat CSV table, one row per entry in
// append order.
package sheet

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/kokistudios/kyber/internal/entry"
)

// Header is the first row of every table written by Sheet.
var Header = []string{"date", "weight", "calorie_target", "deviation_amount", "smoothed", "phase_id"}

// Sheet is a CSV-backed log.
type Sheet struct {
	path   string
	logger *log.Logger
}

// New returns a Sheet stored at path. A nil logger uses log.Default().
func New(path string, logger *log.Logger) *Sheet {
	if logger == nil {
		logger = log.Default()
	}
	return &Sheet{path: path, logger: logger}
}

// Path returns the file backing the sheet.
func (s *Sheet) Path() string {
	return s.path
}

// Read returns all well-formed entries in file order. A missing file is an
// empty log. Rows that fail to parse are skipped with a warning.
func (s *Sheet) Read(ctx context.Context) ([]entry.Entry, error) {
	entries, _, err := s.scan(ctx)
	return entries, err
}

// Scan is Read that also reports how many rows were skipped.
func (s *Sheet) Scan(ctx context.Context) ([]entry.Entry, int, error) {
	return s.scan(ctx)
}

func (s *Sheet) scan(ctx context.Context) ([]entry.Entry, int, error) {
	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}

	f, err := os.Open(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return []entry.Entry{}, 0, nil
		}
		return nil, 0, fmt.Errorf("error opening log file: %w", err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	entries := []entry.Entry{}
	skipped := 0
	for row := 1; ; row++ {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			var pe *csv.ParseError
			if errors.As(err, &pe) {
				s.logger.Warn("Skipping malformed row", "row", row, "err", err)
				skipped++
				continue
			}
			return nil, 0, fmt.Errorf("error reading log file: %w", err)
		}

		// Skip header row
		if row == 1 && len(record) > 0 && strings.EqualFold(strings.TrimSpace(record[0]), Header[0]) {
			continue
		}
		if isBlank(record) {
			continue
		}

		e, err := ParseRecord(record)
		if err != nil {
			s.logger.Warn("Skipping unparseable row", "row", row, "err", err)
			skipped++
			continue
		}
		entries = append(entries, e)
	}

	return entries, skipped, nil
}

// Write replaces the table with entries. The file is written to a temporary
// sibling and renamed into place, so readers never see a partial table.
func (s *Sheet) Write(ctx context.Context, entries []entry.Entry) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".log-*.csv")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	writer := csv.NewWriter(tmp)
	if err := writer.Write(Header); err != nil {
		tmp.Close()
		return fmt.Errorf("error writing CSV header: %w", err)
	}
	for _, e := range entries {
		if err := writer.Write(FormatRecord(e)); err != nil {
			tmp.Close()
			return fmt.Errorf("error writing CSV record: %w", err)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		tmp.Close()
		return fmt.Errorf("error flushing CSV: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("error closing temp file: %w", err)
	}

	if err := os.Rename(tmpPath, s.path); err != nil {
		return fmt.Errorf("failed to replace log file: %w", err)
	}
	return nil
}

// FormatRecord renders an entry as a CSV row.
func FormatRecord(e entry.Entry) []string {
	return []string{
		entry.FormatDate(e.Date),
		strconv.FormatFloat(e.Weight, 'f', -1, 64),
		strconv.Itoa(e.CalorieTarget),
		strconv.Itoa(e.DeviationAmount),
		FormatFlag(e.Smoothed),
		strconv.Itoa(e.PhaseID),
	}
}

// ParseRecord parses a CSV row: date,weight,calorie_target,deviation_amount,smoothed,phase_id
func ParseRecord(record []string) (entry.Entry, error) {
	if len(record) != len(Header) {
		return entry.Entry{}, fmt.Errorf("expected %d fields, got %d", len(Header), len(record))
	}
	for i := range record {
		record[i] = strings.TrimSpace(record[i])
	}

	date, err := entry.ParseDate(record[0])
	if err != nil {
		return entry.Entry{}, fmt.Errorf("invalid date: %w", err)
	}

	// Decimal commas come from spreadsheets in comma locales.
	weight, err := strconv.ParseFloat(strings.Replace(record[1], ",", ".", 1), 64)
	if err != nil {
		return entry.Entry{}, fmt.Errorf("invalid weight: %w", err)
	}

	calories, err := parseInt(record[2])
	if err != nil {
		return entry.Entry{}, fmt.Errorf("invalid calorie target: %w", err)
	}

	deviation, err := parseInt(strings.TrimPrefix(record[3], "+"))
	if err != nil {
		return entry.Entry{}, fmt.Errorf("invalid deviation amount: %w", err)
	}

	smoothed, err := ParseFlag(record[4])
	if err != nil {
		return entry.Entry{}, err
	}

	phaseID, err := parseInt(record[5])
	if err != nil {
		return entry.Entry{}, fmt.Errorf("invalid phase id: %w", err)
	}

	e := entry.Entry{
		Date:            date,
		Weight:          weight,
		CalorieTarget:   calories,
		DeviationAmount: deviation,
		Smoothed:        smoothed,
		PhaseID:         phaseID,
	}
	if err := e.Validate(); err != nil {
		return entry.Entry{}, err
	}
	return e, nil
}

// parseInt accepts integers written as whole floats ("2500.0"), which
// spreadsheet exports produce.
func parseInt(s string) (int, error) {
	if n, err := strconv.Atoi(s); err == nil {
		return n, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f != float64(int(f)) {
		return 0, fmt.Errorf("%q is not an integer", s)
	}
	return int(f), nil
}

// FormatFlag renders the smoothed flag.
func FormatFlag(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

// ParseFlag reads a smoothed flag written as yes/no, sì/si, true/false or 1/0.
func ParseFlag(s string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "yes", "y", "sì", "si", "true", "1":
		return true, nil
	case "no", "n", "false", "0":
		return false, nil
	default:
		return false, fmt.Errorf("invalid smoothed flag %q", s)
	}
}

func isBlank(record []string) bool {
	for _, f := range record {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}
