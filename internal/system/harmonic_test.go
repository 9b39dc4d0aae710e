package system

import (
	"math"
	"testing"
)

func TestNewHarmonicValidates(t *testing.T) {
	if _, err := NewHarmonic(0, 0.1, 0.5); err == nil {
		t.Fatal("expected error for zero bins")
	}
	if _, err := NewHarmonic(100, 0, 0.5); err == nil {
		t.Fatal("expected error for zero bin width")
	}
	if _, err := NewHarmonic(100, 0.1, -1); err == nil {
		t.Fatal("expected error for negative proposal width")
	}
	if _, err := NewHarmonic(100, 0.1, 0.5); err != nil {
		t.Fatalf("unexpected error for valid geometry: %v", err)
	}
}

func TestHarmonicEnergyBinning(t *testing.T) {
	h := DefaultHarmonic()
	space := h.Space()

	cases := []struct {
		x    float64
		want int
	}{
		{0, 0},      // E = 0
		{0.4, 0},    // E = 0.08
		{0.5, 1},    // E = 0.125
		{1.0, 5},    // E = 0.5
		{2.0, 20},   // E = 2.0
		{-2.0, 20},  // symmetric in x
		{4.5, 99},   // E = 10.125, clamped into the top bin
		{12, 99},    // E = 72, still the top bin
		{-1000, 99}, // far tail still clamps
	}
	for _, tc := range cases {
		if got := space.Locate(&HarmonicState{X: tc.x}); got != tc.want {
			t.Errorf("x=%v: expected bin %d, got %d", tc.x, tc.want, got)
		}
	}
}

func TestHarmonicBinValuesAreMidpoints(t *testing.T) {
	h := DefaultHarmonic()
	values := h.BinValues()
	if len(values) != 100 {
		t.Fatalf("expected 100 bin values, got %d", len(values))
	}
	if values[0] != 0.05 {
		t.Fatalf("expected first midpoint 0.05, got %v", values[0])
	}
	if math.Abs(values[99]-9.95) > 1e-12 {
		t.Fatalf("expected last midpoint 9.95, got %v", values[99])
	}
}
