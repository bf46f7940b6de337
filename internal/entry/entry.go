package entry

import (
	"fmt"
	"math"
	"slices"
	"time"
)

// Weight bounds in kilograms, inclusive.
const (
	MinWeight = 30.0
	MaxWeight = 200.0
)

// DateLayout is the day/month/year layout used for persisted rows.
const DateLayout = "02/01/2006"

// DefaultDeviationMenu lists the deviation amounts offered when logging a day.
var DefaultDeviationMenu = []int{0, 500, 1500, 3000}

// Entry is one logged day.
type Entry struct {
	Date            time.Time `yaml:"date" json:"date"`
	Weight          float64   `yaml:"weight" json:"weight"`
	CalorieTarget   int       `yaml:"calorie_target" json:"calorie_target"`
	DeviationAmount int       `yaml:"deviation_amount" json:"deviation_amount"`
	Smoothed        bool      `yaml:"smoothed" json:"smoothed"`
	PhaseID         int       `yaml:"phase_id" json:"phase_id"`
}

// Candidate holds the raw values submitted for a new entry, before the
// phase id and smoothing flag are derived from history.
type Candidate struct {
	Date            time.Time
	Weight          float64
	CalorieTarget   int
	DeviationAmount int
}

// ValidationError reports a field that violates its constraint.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func invalid(field, format string, args ...any) *ValidationError {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// Validate checks the candidate's field constraints.
func (c Candidate) Validate() error {
	if c.Date.IsZero() {
		return invalid("date", "date is required")
	}
	if math.IsNaN(c.Weight) || c.Weight < MinWeight || c.Weight > MaxWeight {
		return invalid("weight", "%.1f kg is outside [%.1f, %.1f]", c.Weight, MinWeight, MaxWeight)
	}
	if c.CalorieTarget <= 0 {
		return invalid("calorie_target", "%d must be a positive integer", c.CalorieTarget)
	}
	if c.DeviationAmount < 0 {
		return invalid("deviation_amount", "%d must not be negative", c.DeviationAmount)
	}
	return nil
}

// ValidateMenu checks the candidate and additionally requires the deviation
// amount to be one of menu. An empty menu accepts any non-negative amount.
func (c Candidate) ValidateMenu(menu []int) error {
	if err := c.Validate(); err != nil {
		return err
	}
	if len(menu) > 0 && !slices.Contains(menu, c.DeviationAmount) {
		return invalid("deviation_amount", "%d is not one of %v", c.DeviationAmount, menu)
	}
	return nil
}

// Validate checks a fully derived entry, as read back from a data store.
func (e Entry) Validate() error {
	c := Candidate{Date: e.Date, Weight: e.Weight, CalorieTarget: e.CalorieTarget, DeviationAmount: e.DeviationAmount}
	if err := c.Validate(); err != nil {
		return err
	}
	if e.PhaseID < 1 {
		return invalid("phase_id", "%d must be a positive integer", e.PhaseID)
	}
	return nil
}

// Day truncates t to midnight in its own location.
func Day(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// FormatDate renders a date in DateLayout.
func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}

// ParseDate accepts DateLayout and ISO dates (2006-01-02).
func ParseDate(s string) (time.Time, error) {
	if t, err := time.ParseInLocation(DateLayout, s, time.Local); err == nil {
		return t, nil
	}
	t, err := time.ParseInLocation("2006-01-02", s, time.Local)
	if err != nil {
		return time.Time{}, fmt.Errorf("unrecognized date %q (want dd/mm/yyyy or yyyy-mm-dd)", s)
	}
	return t, nil
}
