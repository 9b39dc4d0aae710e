package system

import (
	"fmt"
	"math/rand"

	"wanglandau/internal/wl"
)

// HarmonicState is the position of a one-dimensional harmonic oscillator.
type HarmonicState struct {
	X float64
}

func (s *HarmonicState) Clone() wl.State {
	cp := *s
	return &cp
}

type displaceMove struct {
	halfWidth float64
}

func (m displaceMove) Propose(s wl.State, rng *rand.Rand) {
	s.(*HarmonicState).X += (2*rng.Float64() - 1) * m.halfWidth
}

type energyBins struct {
	binWidth float64
	bins     int
}

// Locate maps E = x^2/2 onto bins of width binWidth; everything at or
// beyond the top edge lands in the last bin.
func (b energyBins) Locate(s wl.State) int {
	x := s.(*HarmonicState).X
	idx := int(0.5 * x * x / b.binWidth)
	if idx > b.bins-1 {
		idx = b.bins - 1
	}
	return idx
}

func (b energyBins) NumBins() int {
	return b.bins
}

// Harmonic is a continuous system: a 1-D oscillator discretized into
// energy bins. It exercises the sampler on a curved density of states.
type Harmonic struct {
	Bins      int
	BinWidth  float64
	HalfWidth float64
}

// NewHarmonic validates the binning geometry and the proposal width.
func NewHarmonic(bins int, binWidth, halfWidth float64) (Harmonic, error) {
	if bins <= 0 {
		return Harmonic{}, fmt.Errorf("harmonic bins must be > 0: %d", bins)
	}
	if binWidth <= 0 {
		return Harmonic{}, fmt.Errorf("harmonic bin width must be > 0: %v", binWidth)
	}
	if halfWidth <= 0 {
		return Harmonic{}, fmt.Errorf("harmonic proposal half-width must be > 0: %v", halfWidth)
	}
	return Harmonic{Bins: bins, BinWidth: binWidth, HalfWidth: halfWidth}, nil
}

// DefaultHarmonic is the standard geometry: 100 bins of width 0.1 covering
// 0 <= E < 10, displacement proposals in [-0.5, 0.5].
func DefaultHarmonic() Harmonic {
	return Harmonic{Bins: 100, BinWidth: 0.1, HalfWidth: 0.5}
}

func (Harmonic) Name() string {
	return "harmonic"
}

func (h Harmonic) Description() string {
	return fmt.Sprintf("1-d harmonic oscillator, %d energy bins of width %v", h.Bins, h.BinWidth)
}

func (Harmonic) Initial() wl.State {
	return &HarmonicState{}
}

func (h Harmonic) Move() wl.Move {
	return displaceMove{halfWidth: h.HalfWidth}
}

func (h Harmonic) Space() wl.Macrospace {
	return energyBins{binWidth: h.BinWidth, bins: h.Bins}
}

// BinValues reports the energy at each bin midpoint.
func (h Harmonic) BinValues() []float64 {
	values := make([]float64, h.Bins)
	for i := range values {
		values[i] = (float64(i) + 0.5) * h.BinWidth
	}
	return values
}
