package system

import (
	"math/rand"

	"wanglandau/internal/wl"
)

// CoinState is the microstate of the two-state coin model.
type CoinState struct {
	Heads bool
}

func (s *CoinState) Clone() wl.State {
	cp := *s
	return &cp
}

type coinFlip struct{}

func (coinFlip) Propose(s wl.State, rng *rand.Rand) {
	s.(*CoinState).Heads = rng.Intn(2) == 1
}

type coinSpace struct{}

func (coinSpace) Locate(s wl.State) int {
	if s.(*CoinState).Heads {
		return 1
	}
	return 0
}

func (coinSpace) NumBins() int {
	return 2
}

// Coin is the smallest symmetric system: one coin, bins tails=0 and
// heads=1, each holding exactly one microstate.
type Coin struct{}

func (Coin) Name() string {
	return "coin"
}

func (Coin) Description() string {
	return "two-state coin flip, both macrostates equally likely"
}

func (Coin) Initial() wl.State {
	return &CoinState{}
}

func (Coin) Move() wl.Move {
	return coinFlip{}
}

func (Coin) Space() wl.Macrospace {
	return coinSpace{}
}

func (Coin) ExactLnG() []float64 {
	return []float64{0, 0}
}
