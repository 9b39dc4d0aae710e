package wl

import "math/rand"

// State is an opaque microstate owned by the driver for the duration of a
// run. Clone must return a deep copy so a rejected candidate can be
// discarded without touching the retained walk state.
type State interface {
	Clone() State
}

// Move mutates a state in place into a candidate configuration. A proposal
// may consume any number of draws from rng.
type Move interface {
	Propose(s State, rng *rand.Rand)
}

// Macrospace maps microstates onto a fixed set of macrostate bins. Bins are
// the dense indices 0..NumBins()-1; a Locate result outside that range marks
// a state that falls outside the declared set. Locate must be a pure
// function of the state.
type Macrospace interface {
	Locate(s State) int
	NumBins() int
}
