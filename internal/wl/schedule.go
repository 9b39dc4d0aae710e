package wl

import "fmt"

// Schedule produces the next modification factor at an epoch transition.
// Advance must be monotonically non-increasing and strictly positive for
// positive inputs; it reports convergence together with the next factor.
// Step-aware variants receive the total number of move proposals consumed.
type Schedule interface {
	Name() string
	Validate() error
	Advance(lnF float64, proposals uint64) (next float64, converged bool)
}

// Geometric multiplies the modification factor by a constant Alpha at every
// flatness-triggered advance. This is the schedule of the original
// Wang-Landau formulation, typically with Alpha = 0.5.
type Geometric struct {
	Alpha float64
	Tol   float64
}

func (Geometric) Name() string {
	return "geometric"
}

func (s Geometric) Validate() error {
	if s.Alpha <= 0 || s.Alpha >= 1 {
		return fmt.Errorf("geometric alpha must be in (0, 1): %v", s.Alpha)
	}
	if s.Tol <= 0 {
		return fmt.Errorf("geometric tolerance must be > 0: %v", s.Tol)
	}
	return nil
}

func (s Geometric) Advance(lnF float64, _ uint64) (float64, bool) {
	next := s.Alpha * lnF
	return next, next < s.Tol
}

// OneOverT follows the Belardinelli-Pereyra rule: geometric decay by Alpha
// in early epochs, crossing over to a TargetBins/proposals decay once the
// geometric value falls below it. The outer clamp against the current
// factor keeps the sequence monotonically non-increasing.
type OneOverT struct {
	Alpha      float64
	TargetBins int
	Tol        float64
}

func (OneOverT) Name() string {
	return "one-over-t"
}

func (s OneOverT) Validate() error {
	if s.Alpha <= 0 || s.Alpha >= 1 {
		return fmt.Errorf("one-over-t alpha must be in (0, 1): %v", s.Alpha)
	}
	if s.TargetBins <= 0 {
		return fmt.Errorf("one-over-t target bins must be > 0: %d", s.TargetBins)
	}
	if s.Tol <= 0 {
		return fmt.Errorf("one-over-t tolerance must be > 0: %v", s.Tol)
	}
	return nil
}

func (s OneOverT) Advance(lnF float64, proposals uint64) (float64, bool) {
	next := s.Alpha * lnF
	if proposals > 0 {
		if floor := float64(s.TargetBins) / float64(proposals); next < floor {
			next = floor
		}
	}
	if next > lnF {
		next = lnF
	}
	return next, next < s.Tol
}
