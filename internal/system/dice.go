package system

import (
	"math/rand"

	"wanglandau/internal/wl"
)

// DiceState is the microstate of the six-face die model. Face runs 1..6.
type DiceState struct {
	Face int
}

func (s *DiceState) Clone() wl.State {
	cp := *s
	return &cp
}

type diceRoll struct{}

func (diceRoll) Propose(s wl.State, rng *rand.Rand) {
	s.(*DiceState).Face = 1 + rng.Intn(6)
}

type diceSpace struct{}

func (diceSpace) Locate(s wl.State) int {
	return s.(*DiceState).Face - 1
}

func (diceSpace) NumBins() int {
	return 6
}

// Dice is a six-state symmetric system: one die, one bin per face.
type Dice struct{}

func (Dice) Name() string {
	return "dice"
}

func (Dice) Description() string {
	return "fair six-face die, one macrostate per face"
}

func (Dice) Initial() wl.State {
	return &DiceState{Face: 1}
}

func (Dice) Move() wl.Move {
	return diceRoll{}
}

func (Dice) Space() wl.Macrospace {
	return diceSpace{}
}

func (Dice) ExactLnG() []float64 {
	return make([]float64, 6)
}
