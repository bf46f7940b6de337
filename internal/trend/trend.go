package trend

import (
	"errors"
	"fmt"
	"math"

	"github.com/kokistudios/kyber/internal/entry"
	"github.com/kokistudios/kyber/internal/signal"
)

// Defaults for the stall rule.
const (
	DefaultMinSamples = 21
	DefaultStallSlope = 0.005 // kg per sample
)

// ErrInsufficientData is returned when a regression input has fewer than two
// distinct x values or would otherwise produce a non-finite fit.
var ErrInsufficientData = errors.New("insufficient data for a linear fit")

// Kind classifies a trend.
type Kind int

const (
	Insufficient Kind = iota
	Progressing
	Stalled
)

func (k Kind) String() string {
	switch k {
	case Progressing:
		return "progressing"
	case Stalled:
		return "stalled"
	default:
		return "insufficient"
	}
}

// MarshalText renders the kind by name in JSON and YAML output.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// Params holds the stall rule.
type Params struct {
	MinSamples int     // clean samples required before a verdict is given
	StallSlope float64 // |slope| below this is a stall
}

// DefaultParams returns the stall rule used when nothing is configured.
func DefaultParams() Params {
	return Params{MinSamples: DefaultMinSamples, StallSlope: DefaultStallSlope}
}

// Validate checks that the params can produce a verdict.
func (p Params) Validate() error {
	if p.MinSamples < 2 {
		return fmt.Errorf("min samples must be at least 2, got %d", p.MinSamples)
	}
	if !(p.StallSlope > 0) || math.IsInf(p.StallSlope, 0) {
		return fmt.Errorf("stall slope must be a positive number, got %v", p.StallSlope)
	}
	return nil
}

// Verdict is the outcome of a trend estimate. Slope and Intercept are only
// meaningful when Kind is not Insufficient.
type Verdict struct {
	Kind      Kind    `json:"kind"`
	Slope     float64 `json:"slope"`
	Intercept float64 `json:"intercept"`
	Samples   int     `json:"samples"`
}

// Alert returns the message to show for the verdict, or "" for no alert.
func (v Verdict) Alert() string {
	switch v.Kind {
	case Progressing:
		return "progressing"
	case Stalled:
		return "stalled — escalate to a professional"
	default:
		return ""
	}
}

// Fit performs an ordinary least-squares fit of ys against their index.
// Values are centered on their means before accumulating.
func Fit(ys []float64) (slope, intercept float64, err error) {
	n := len(ys)
	if n < 2 {
		return 0, 0, ErrInsufficientData
	}

	xMean := float64(n-1) / 2
	var yMean float64
	for _, y := range ys {
		yMean += y
	}
	yMean /= float64(n)

	var sxx, sxy float64
	for i, y := range ys {
		dx := float64(i) - xMean
		sxx += dx * dx
		sxy += dx * (y - yMean)
	}
	if sxx == 0 {
		return 0, 0, ErrInsufficientData
	}

	slope = sxy / sxx
	intercept = yMean - slope*xMean
	if math.IsNaN(slope) || math.IsInf(slope, 0) || math.IsNaN(intercept) || math.IsInf(intercept, 0) {
		return 0, 0, ErrInsufficientData
	}
	return slope, intercept, nil
}

// Estimate fits a trend over a phase signal. Samples are equally spaced by
// position; calendar gaps are ignored.
func Estimate(sig []entry.Entry, p Params) (Verdict, error) {
	n := len(sig)
	if n < p.MinSamples {
		return Verdict{Kind: Insufficient, Samples: n}, nil
	}

	m, b, err := Fit(signal.Weights(sig))
	if err != nil {
		return Verdict{Kind: Insufficient, Samples: n}, fmt.Errorf("trend over %d samples: %w", n, err)
	}

	v := Verdict{Kind: Progressing, Slope: m, Intercept: b, Samples: n}
	if math.Abs(m) < p.StallSlope {
		v.Kind = Stalled
	}
	return v, nil
}
