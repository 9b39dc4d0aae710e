// Package system provides the built-in sample systems: bundles of state,
// move, and binning policies that a sampling run can be pointed at by name.
package system

import "wanglandau/internal/wl"

// System bundles the collaborators of one sampled model.
type System interface {
	Name() string
	Initial() wl.State
	Move() wl.Move
	Space() wl.Macrospace
}

// Describer optionally provides a human-readable summary for listings.
type Describer interface {
	Description() string
}

// BinLabeler optionally exposes the physical value of each bin, e.g. the
// energy at the bin midpoint, for density tables and plots.
type BinLabeler interface {
	BinValues() []float64
}

// Solver optionally exposes the analytic log density of states, normalized
// to lnG[0] = 0, for validating converged estimates.
type Solver interface {
	ExactLnG() []float64
}
