package system

import (
	"math"
	"testing"

	"wanglandau/internal/wl"
)

func TestNewParamagnetValidates(t *testing.T) {
	if _, err := NewParamagnet(0); err == nil {
		t.Fatal("expected error for zero spins")
	}
	if _, err := NewParamagnet(-4); err == nil {
		t.Fatal("expected error for negative spins")
	}
	p, err := NewParamagnet(8)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Name() != "paramagnet-8" {
		t.Fatalf("unexpected name: %s", p.Name())
	}
	if p.Space().NumBins() != 9 {
		t.Fatalf("expected 9 bins for 8 spins, got %d", p.Space().NumBins())
	}
}

func TestParamagnetLocateCountsUpSpins(t *testing.T) {
	p := Paramagnet{Spins: 4}
	state := &SpinState{Up: []bool{true, false, true, true}}
	if bin := p.Space().Locate(state); bin != 3 {
		t.Fatalf("expected bin 3, got %d", bin)
	}
	if bin := p.Space().Locate(p.Initial()); bin != 0 {
		t.Fatalf("expected all-down initial state in bin 0, got %d", bin)
	}
}

func TestParamagnetCloneIsDeep(t *testing.T) {
	orig := &SpinState{Up: []bool{false, false}}
	clone := orig.Clone().(*SpinState)
	clone.Up[0] = true
	if orig.Up[0] {
		t.Fatal("clone shares spin storage with the original")
	}
}

func TestParamagnetMoveFlipsOneSpin(t *testing.T) {
	p := Paramagnet{Spins: 6}
	state := p.Initial().(*SpinState)
	rng := wl.Seeded(21)
	for i := 0; i < 50; i++ {
		before := state.Clone().(*SpinState)
		p.Move().Propose(state, rng)
		flipped := 0
		for j := range state.Up {
			if state.Up[j] != before.Up[j] {
				flipped++
			}
		}
		if flipped != 1 {
			t.Fatalf("expected exactly one flipped spin, got %d", flipped)
		}
	}
}

func TestParamagnetExactDensityIsBinomial(t *testing.T) {
	p := Paramagnet{Spins: 4}
	exact := p.ExactLnG()
	want := []float64{1, 4, 6, 4, 1}
	for k, w := range want {
		if diff := math.Abs(exact[k] - math.Log(w)); diff > 1e-12 {
			t.Fatalf("bin %d: expected ln %v, got %v", k, w, exact[k])
		}
	}
	// C(n,k) symmetry
	for k := 0; k <= 4; k++ {
		if math.Abs(exact[k]-exact[4-k]) > 1e-12 {
			t.Fatalf("expected symmetric density, bins %d and %d differ", k, 4-k)
		}
	}
}
