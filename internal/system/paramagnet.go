package system

import (
	"fmt"
	"math"
	"math/rand"

	"wanglandau/internal/wl"
)

// SpinState is a chain of independent binary spins.
type SpinState struct {
	Up []bool
}

func (s *SpinState) Clone() wl.State {
	cp := &SpinState{Up: make([]bool, len(s.Up))}
	copy(cp.Up, s.Up)
	return cp
}

type spinFlip struct{}

func (spinFlip) Propose(s wl.State, rng *rand.Rand) {
	spins := s.(*SpinState).Up
	i := rng.Intn(len(spins))
	spins[i] = !spins[i]
}

type spinSpace struct {
	spins int
}

func (sp spinSpace) Locate(s wl.State) int {
	up := 0
	for _, v := range s.(*SpinState).Up {
		if v {
			up++
		}
	}
	return up
}

func (sp spinSpace) NumBins() int {
	return sp.spins + 1
}

// Paramagnet is a chain of Spins non-interacting spins binned by the
// number of up spins. The density of states is the binomial coefficient
// C(Spins, k), which makes it the standard exactness check for the
// sampler on a curved landscape.
type Paramagnet struct {
	Spins int
}

// NewParamagnet validates the chain length.
func NewParamagnet(spins int) (Paramagnet, error) {
	if spins <= 0 {
		return Paramagnet{}, fmt.Errorf("paramagnet spins must be > 0: %d", spins)
	}
	return Paramagnet{Spins: spins}, nil
}

func (p Paramagnet) Name() string {
	return fmt.Sprintf("paramagnet-%d", p.Spins)
}

func (p Paramagnet) Description() string {
	return fmt.Sprintf("%d non-interacting spins binned by up-spin count, exact binomial density", p.Spins)
}

func (p Paramagnet) Initial() wl.State {
	return &SpinState{Up: make([]bool, p.Spins)}
}

func (Paramagnet) Move() wl.Move {
	return spinFlip{}
}

func (p Paramagnet) Space() wl.Macrospace {
	return spinSpace{spins: p.Spins}
}

// BinValues reports the up-spin count of each bin.
func (p Paramagnet) BinValues() []float64 {
	values := make([]float64, p.Spins+1)
	for i := range values {
		values[i] = float64(i)
	}
	return values
}

// ExactLnG returns ln C(Spins, k) for each bin, normalized to lnG[0] = 0.
func (p Paramagnet) ExactLnG() []float64 {
	values := make([]float64, p.Spins+1)
	for k := range values {
		values[k] = lnChoose(p.Spins, k)
	}
	return values
}

func lnChoose(n, k int) float64 {
	ln, _ := math.Lgamma(float64(n + 1))
	lk, _ := math.Lgamma(float64(k + 1))
	lnk, _ := math.Lgamma(float64(n - k + 1))
	return ln - lk - lnk
}
