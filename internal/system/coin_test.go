package system

import (
	"testing"

	"wanglandau/internal/wl"
)

func TestCoinSpace(t *testing.T) {
	c := Coin{}
	if c.Space().NumBins() != 2 {
		t.Fatalf("expected 2 bins, got %d", c.Space().NumBins())
	}
	if bin := c.Space().Locate(&CoinState{Heads: false}); bin != 0 {
		t.Fatalf("tails must map to bin 0, got %d", bin)
	}
	if bin := c.Space().Locate(&CoinState{Heads: true}); bin != 1 {
		t.Fatalf("heads must map to bin 1, got %d", bin)
	}
}

func TestCoinMoveStaysInDeclaredBins(t *testing.T) {
	c := Coin{}
	state := c.Initial()
	move := c.Move()
	space := c.Space()
	rng := wl.Seeded(4)
	for i := 0; i < 100; i++ {
		move.Propose(state, rng)
		if bin := space.Locate(state); bin < 0 || bin >= space.NumBins() {
			t.Fatalf("move left the bin set at iteration %d: bin %d", i, bin)
		}
	}
}

func TestCoinCloneIsIndependent(t *testing.T) {
	orig := &CoinState{Heads: false}
	clone := orig.Clone().(*CoinState)
	clone.Heads = true
	if orig.Heads {
		t.Fatal("mutating the clone leaked into the original")
	}
}

func TestCoinExactDensityIsUniform(t *testing.T) {
	for i, v := range (Coin{}).ExactLnG() {
		if v != 0 {
			t.Fatalf("expected ln g = 0 for bin %d, got %v", i, v)
		}
	}
}
