package wl

import "math"

// Flatness decides whether an epoch's visit histogram is flat enough to
// advance the schedule. Implementations are pure predicates over the full
// declared bin set; an all-zero histogram is never flat.
type Flatness interface {
	Name() string
	IsFlat(hist []uint64, flat float64) bool
}

// Fraction considers a histogram flat when min(H) >= flat*mean(H). The
// minimum runs over every declared bin, so a bin with zero visits keeps the
// epoch non-flat until the walk has reached it.
type Fraction struct{}

func (Fraction) Name() string {
	return "fraction"
}

func (Fraction) IsFlat(hist []uint64, flat float64) bool {
	if len(hist) == 0 {
		return false
	}
	min := hist[0]
	var total uint64
	for _, h := range hist {
		if h < min {
			min = h
		}
		total += h
	}
	if total == 0 {
		return false
	}
	mean := float64(total) / float64(len(hist))
	return float64(min) >= flat*mean
}

// RMS considers a histogram flat when the relative standard deviation
// std(H)/mean(H) is at most 1-flat.
type RMS struct{}

func (RMS) Name() string {
	return "rms"
}

func (RMS) IsFlat(hist []uint64, flat float64) bool {
	if len(hist) == 0 {
		return false
	}
	var total uint64
	for _, h := range hist {
		total += h
	}
	if total == 0 {
		return false
	}
	mean := float64(total) / float64(len(hist))
	var variance float64
	for _, h := range hist {
		d := float64(h) - mean
		variance += d * d
	}
	variance /= float64(len(hist))
	return math.Sqrt(variance)/mean <= 1-flat
}
