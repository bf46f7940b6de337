package trend

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/kokistudios/kyber/internal/entry"
)

func series(weights ...float64) []entry.Entry {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	out := make([]entry.Entry, len(weights))
	for i, w := range weights {
		out[i] = entry.Entry{Date: start.AddDate(0, 0, i), Weight: w, CalorieTarget: 2200, PhaseID: 1}
	}
	return out
}

func linear(n int, from, to float64) []float64 {
	ws := make([]float64, n)
	step := (to - from) / float64(n-1)
	for i := range ws {
		ws[i] = from + step*float64(i)
	}
	return ws
}

func constant(n int, w float64) []float64 {
	ws := make([]float64, n)
	for i := range ws {
		ws[i] = w
	}
	return ws
}

func TestFit_ExactLine(t *testing.T) {
	m, b, err := Fit([]float64{10, 12, 14, 16})
	if err != nil {
		t.Fatalf("Fit: %v", err)
	}
	if math.Abs(m-2) > 1e-12 || math.Abs(b-10) > 1e-12 {
		t.Errorf("Fit = (%v, %v), want (2, 10)", m, b)
	}
}

func TestFit_Degenerate(t *testing.T) {
	for _, ys := range [][]float64{nil, {80.0}} {
		if _, _, err := Fit(ys); !errors.Is(err, ErrInsufficientData) {
			t.Errorf("Fit(%v) err = %v, want ErrInsufficientData", ys, err)
		}
	}
	if _, _, err := Fit([]float64{80, math.Inf(1)}); !errors.Is(err, ErrInsufficientData) {
		t.Errorf("non-finite input should fail, got %v", err)
	}
}

func TestEstimate_Progressing(t *testing.T) {
	v, err := Estimate(series(linear(21, 80.0, 77.0)...), DefaultParams())
	if err != nil {
		t.Fatalf("Estimate: %v", err)
	}
	if v.Kind != Progressing {
		t.Fatalf("Kind = %v, want progressing", v.Kind)
	}
	if v.Slope >= 0 {
		t.Errorf("Slope = %v, want negative", v.Slope)
	}
	if math.Abs(v.Slope-(-0.15)) > 1e-9 {
		t.Errorf("Slope = %v, want -0.15", v.Slope)
	}
	if v.Samples != 21 {
		t.Errorf("Samples = %d, want 21", v.Samples)
	}
}

func TestEstimate_Stalled(t *testing.T) {
	v, err := Estimate(series(constant(21, 80.0)...), DefaultParams())
	if err != nil {
		t.Fatalf("Estimate: %v", err)
	}
	if v.Kind != Stalled {
		t.Fatalf("Kind = %v, want stalled", v.Kind)
	}
	if v.Slope != 0 {
		t.Errorf("Slope = %v, want 0", v.Slope)
	}
	if v.Alert() != "stalled — escalate to a professional" {
		t.Errorf("Alert = %q", v.Alert())
	}
}

func TestEstimate_NearThreshold(t *testing.T) {
	// 0.004 kg/sample is under the 0.005 stall slope.
	v, err := Estimate(series(linear(30, 80.0, 80.0-0.004*29)...), DefaultParams())
	if err != nil {
		t.Fatal(err)
	}
	if v.Kind != Stalled {
		t.Errorf("Kind = %v at slope %v, want stalled", v.Kind, v.Slope)
	}

	v, err = Estimate(series(linear(30, 80.0, 80.0-0.006*29)...), DefaultParams())
	if err != nil {
		t.Fatal(err)
	}
	if v.Kind != Progressing {
		t.Errorf("Kind = %v at slope %v, want progressing", v.Kind, v.Slope)
	}
}

func TestEstimate_InsufficientBelowGate(t *testing.T) {
	for _, n := range []int{0, 1, 2, 20} {
		v, err := Estimate(series(linear(max(n, 2), 90, 70)[:n]...), DefaultParams())
		if err != nil {
			t.Fatalf("n=%d: unexpected error %v", n, err)
		}
		if v.Kind != Insufficient {
			t.Errorf("n=%d: Kind = %v, want insufficient", n, v.Kind)
		}
		if v.Alert() != "" {
			t.Errorf("n=%d: insufficient verdict should carry no alert", n)
		}
	}
}

func TestEstimate_ConfiguredGate(t *testing.T) {
	p := Params{MinSamples: 3, StallSlope: 0.01}
	v, err := Estimate(series(81, 80, 79), p)
	if err != nil {
		t.Fatal(err)
	}
	if v.Kind != Progressing {
		t.Errorf("Kind = %v, want progressing", v.Kind)
	}
}

func TestEstimate_DegenerateGateSurfacesError(t *testing.T) {
	_, err := Estimate(series(80), Params{MinSamples: 1, StallSlope: 0.005})
	if !errors.Is(err, ErrInsufficientData) {
		t.Errorf("err = %v, want ErrInsufficientData", err)
	}
}

func TestParamsValidate(t *testing.T) {
	if err := DefaultParams().Validate(); err != nil {
		t.Errorf("defaults invalid: %v", err)
	}
	bad := []Params{
		{MinSamples: 1, StallSlope: 0.005},
		{MinSamples: 21, StallSlope: 0},
		{MinSamples: 21, StallSlope: math.NaN()},
	}
	for _, p := range bad {
		if err := p.Validate(); err == nil {
			t.Errorf("expected error for %+v", p)
		}
	}
}

func TestKindString(t *testing.T) {
	cases := map[Kind]string{Insufficient: "insufficient", Progressing: "progressing", Stalled: "stalled"}
	for k, want := range cases {
		if k.String() != want {
			t.Errorf("Kind(%d).String() = %q, want %q", k, k.String(), want)
		}
	}
}
