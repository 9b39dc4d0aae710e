// Package wl implements the Wang-Landau density-of-states sampler: the
// random-walk driver, the modification-factor schedules, and the histogram
// flatness criteria. State, move, and binning policies are supplied by the
// caller.
package wl

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
)

var (
	ErrNoBins          = errors.New("macrospace declares no bins")
	ErrFlatnessRange   = errors.New("flatness threshold must be in (0, 1)")
	ErrStateOutOfRange = errors.New("initial state maps outside the declared bins")
)

// Params holds the immutable configuration of a sampling walk. Zero values
// are replaced with the defaults from DefaultParams at construction.
type Params struct {
	LnF0     float64 `json:"ln_f0"`
	LnFMin   float64 `json:"ln_f_min"`
	Flat     float64 `json:"flat"`
	SweepLen int     `json:"sweep_len"`
}

// DefaultParams returns the standard Wang-Landau configuration: initial
// modification factor 1.0, convergence backstop 1e-8, flatness threshold
// 0.8, and one proposal per step.
func DefaultParams() Params {
	return Params{
		LnF0:     1.0,
		LnFMin:   1e-8,
		Flat:     0.8,
		SweepLen: 1,
	}
}

// EpochRecord captures the histogram shape at one flatness-triggered
// schedule advance, before the histogram reset.
type EpochRecord struct {
	Epoch      int     `json:"epoch"`
	LnF        float64 `json:"ln_f"`
	Steps      uint64  `json:"steps"`
	MinVisits  uint64  `json:"min_visits"`
	MeanVisits float64 `json:"mean_visits"`
	MaxVisits  uint64  `json:"max_visits"`
}

// Config wires the collaborators of a walk. Schedule defaults to
// Geometric{Alpha: 0.5, Tol: 1e-8} and Flatness to Fraction when nil.
type Config struct {
	State    State
	Move     Move
	Space    Macrospace
	Schedule Schedule
	Flatness Flatness
	Params   Params
	Rand     *rand.Rand
}

// Driver executes the Wang-Landau random walk: it owns the current state,
// the modification factor, and the per-bin density estimate, and advances
// the schedule whenever the flatness criterion fires.
type Driver struct {
	cfg       Config
	state     State
	lnG       []float64
	hist      []uint64
	lnF       float64
	rng       *rand.Rand
	steps     uint64
	epoch     int
	converged bool
	epochs    []EpochRecord
}

// New validates the configuration and builds a driver ready to run. All
// configuration errors are reported here, before the walk starts.
func New(cfg Config) (*Driver, error) {
	if cfg.State == nil {
		return nil, fmt.Errorf("initial state is required")
	}
	if cfg.Move == nil {
		return nil, fmt.Errorf("move policy is required")
	}
	if cfg.Space == nil {
		return nil, fmt.Errorf("macrospace is required")
	}
	if cfg.Rand == nil {
		return nil, fmt.Errorf("random source is required")
	}
	if cfg.Schedule == nil {
		cfg.Schedule = Geometric{Alpha: 0.5, Tol: 1e-8}
	}
	if cfg.Flatness == nil {
		cfg.Flatness = Fraction{}
	}

	p := cfg.Params
	if p.LnF0 == 0 {
		p.LnF0 = DefaultParams().LnF0
	}
	if p.LnFMin == 0 {
		p.LnFMin = DefaultParams().LnFMin
	}
	if p.Flat == 0 {
		p.Flat = DefaultParams().Flat
	}
	if p.SweepLen == 0 {
		p.SweepLen = DefaultParams().SweepLen
	}
	if p.LnF0 < 0 {
		return nil, fmt.Errorf("initial modification factor must be > 0: %v", p.LnF0)
	}
	if p.LnFMin < 0 || p.LnFMin >= p.LnF0 {
		return nil, fmt.Errorf("minimum modification factor must be in (0, ln_f0): %v", p.LnFMin)
	}
	if p.Flat < 0 || p.Flat >= 1 {
		return nil, fmt.Errorf("%w: %v", ErrFlatnessRange, p.Flat)
	}
	if p.SweepLen < 0 {
		return nil, fmt.Errorf("sweep length must be > 0: %d", p.SweepLen)
	}
	cfg.Params = p

	if err := cfg.Schedule.Validate(); err != nil {
		return nil, fmt.Errorf("schedule: %w", err)
	}

	n := cfg.Space.NumBins()
	if n <= 0 {
		return nil, ErrNoBins
	}
	start := cfg.Space.Locate(cfg.State)
	if start < 0 || start >= n {
		return nil, fmt.Errorf("%w: bin %d of %d", ErrStateOutOfRange, start, n)
	}

	return &Driver{
		cfg:   cfg,
		state: cfg.State.Clone(),
		lnG:   make([]float64, n),
		hist:  make([]uint64, n),
		lnF:   p.LnF0,
		rng:   cfg.Rand,
	}, nil
}

// Step performs one Wang-Landau step: SweepLen move proposals under the
// inverse-density acceptance rule, then a flatness check that may advance
// the modification factor. It reports whether the walk has converged.
func (d *Driver) Step() bool {
	if d.converged {
		return true
	}

	n := len(d.lnG)
	for i := 0; i < d.cfg.Params.SweepLen; i++ {
		binOld := d.cfg.Space.Locate(d.state)
		prev := d.state.Clone()

		d.cfg.Move.Propose(d.state, d.rng)
		binNew := d.cfg.Space.Locate(d.state)

		var accept bool
		switch {
		case binNew < 0 || binNew >= n:
			// candidate left the declared bin set: unconditional rejection
			accept = false
		case binNew == binOld:
			accept = true
		default:
			delta := d.lnG[binOld] - d.lnG[binNew]
			accept = d.rng.Float64() < math.Exp(delta)
		}

		binFinal := binNew
		if !accept {
			d.state = prev
			binFinal = binOld
		}

		// Both outcomes update the resulting bin. This is the defining
		// Wang-Landau rule, not plain Metropolis sampling.
		d.lnG[binFinal] += d.lnF
		d.hist[binFinal]++
	}
	d.steps++

	if d.cfg.Flatness.IsFlat(d.hist, d.cfg.Params.Flat) {
		d.advanceEpoch()
	}
	return d.converged
}

// advanceEpoch records the epoch diagnostics, resets the histogram, and
// moves the modification factor along the schedule.
func (d *Driver) advanceEpoch() {
	minV, meanV, maxV := histSummary(d.hist)
	d.epochs = append(d.epochs, EpochRecord{
		Epoch:      d.epoch,
		LnF:        d.lnF,
		Steps:      d.steps,
		MinVisits:  minV,
		MeanVisits: meanV,
		MaxVisits:  maxV,
	})

	for i := range d.hist {
		d.hist[i] = 0
	}

	next, done := d.cfg.Schedule.Advance(d.lnF, d.steps*uint64(d.cfg.Params.SweepLen))
	d.lnF = next
	d.epoch++
	if done || d.lnF < d.cfg.Params.LnFMin {
		d.converged = true
	}
}

// Run executes steps until convergence or until maxSteps steps have been
// consumed, whichever comes first. The driver stays inspectable afterwards
// and Run may be called again to continue a non-converged walk.
func (d *Driver) Run(maxSteps uint64) {
	for i := uint64(0); i < maxSteps; i++ {
		if d.Step() {
			break
		}
	}
}

// LnG returns a copy of the current estimate of the unnormalized log
// density of states, one value per declared bin.
func (d *Driver) LnG() []float64 {
	return append([]float64(nil), d.lnG...)
}

// Histogram returns a copy of the current epoch's visit histogram.
func (d *Driver) Histogram() []uint64 {
	return append([]uint64(nil), d.hist...)
}

// LnF returns the current modification factor.
func (d *Driver) LnF() float64 {
	return d.lnF
}

// Params returns the effective walk parameters after defaulting.
func (d *Driver) Params() Params {
	return d.cfg.Params
}

// Steps returns the number of completed Wang-Landau steps.
func (d *Driver) Steps() uint64 {
	return d.steps
}

// Epoch returns the index of the current modification-factor epoch.
func (d *Driver) Epoch() int {
	return d.epoch
}

// Converged reports whether the schedule declared convergence or the
// modification factor fell below the configured minimum.
func (d *Driver) Converged() bool {
	return d.converged
}

// State returns a copy of the current microstate.
func (d *Driver) State() State {
	return d.state.Clone()
}

// Epochs returns the per-epoch diagnostics recorded at each schedule
// advance so far.
func (d *Driver) Epochs() []EpochRecord {
	return append([]EpochRecord(nil), d.epochs...)
}

func histSummary(hist []uint64) (min uint64, mean float64, max uint64) {
	if len(hist) == 0 {
		return 0, 0, 0
	}
	min = hist[0]
	max = hist[0]
	var total uint64
	for _, h := range hist {
		if h < min {
			min = h
		}
		if h > max {
			max = h
		}
		total += h
	}
	return min, float64(total) / float64(len(hist)), max
}
