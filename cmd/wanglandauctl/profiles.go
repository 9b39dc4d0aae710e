package main

import (
	"fmt"
	"sort"

	wlapi "wanglandau/pkg/wanglandau"
)

// runProfile is a named experiment preset. Zero-valued numeric fields
// defer to the runtime defaults when the profile is applied.
type runProfile struct {
	ID          string  `json:"id"`
	Description string  `json:"description"`
	System      string  `json:"system"`
	Schedule    string  `json:"schedule"`
	Flatness    string  `json:"flatness"`
	Seed        int64   `json:"seed"`
	MaxSteps    uint64  `json:"max_steps"`
	SweepLen    int     `json:"sweep_len"`
	LnF0        float64 `json:"ln_f0"`
	LnFMin      float64 `json:"ln_f_min"`
	Flat        float64 `json:"flat"`
	Alpha       float64 `json:"alpha"`
	Tol         float64 `json:"tol"`
}

var builtinProfiles = map[string]runProfile{
	"coin-quick": {
		ID:          "coin-quick",
		Description: "two-bin smoke run with a coarse ln f backstop",
		System:      "coin",
		Schedule:    "geometric",
		Flatness:    "fraction",
		Seed:        1,
		LnFMin:      1e-4,
	},
	"dice-reference": {
		ID:          "dice-reference",
		Description: "six-bin uniform density reference at full schedule depth",
		System:      "dice",
		Schedule:    "geometric",
		Flatness:    "fraction",
		Seed:        1,
	},
	"dice-one-over-t": {
		ID:          "dice-one-over-t",
		Description: "six-bin run on the 1/t schedule with rms flatness",
		System:      "dice",
		Schedule:    "one-over-t",
		Flatness:    "rms",
		Seed:        1,
		LnFMin:      1e-6,
	},
	"harmonic-deep": {
		ID:          "harmonic-deep",
		Description: "100-bin oscillator with long sweeps and a strict flatness threshold",
		System:      "harmonic",
		Schedule:    "geometric",
		Flatness:    "fraction",
		Seed:        1,
		MaxSteps:    50_000_000,
		SweepLen:    100,
		Flat:        0.9,
	},
	"paramagnet-exact": {
		ID:          "paramagnet-exact",
		Description: "eight-spin paramagnet for comparison against the binomial density",
		System:      "paramagnet-8",
		Schedule:    "geometric",
		Flatness:    "fraction",
		Seed:        1,
		SweepLen:    8,
		LnFMin:      1e-6,
	},
}

func listProfiles() []runProfile {
	out := make([]runProfile, 0, len(builtinProfiles))
	for _, profile := range builtinProfiles {
		out = append(out, profile)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].ID < out[j].ID
	})
	return out
}

func resolveProfile(id string) (runProfile, error) {
	profile, ok := builtinProfiles[id]
	if !ok {
		return runProfile{}, fmt.Errorf("unknown profile: %s", id)
	}
	return profile, nil
}

// applyProfile overlays a preset onto the request. Identifier fields are
// always taken from the profile; numeric fields only where the profile
// pins them.
func applyProfile(req *wlapi.RunRequest, profile runProfile) {
	req.System = profile.System
	req.Schedule = profile.Schedule
	req.Flatness = profile.Flatness
	if profile.Seed != 0 {
		req.Seed = profile.Seed
	}
	if profile.MaxSteps != 0 {
		req.MaxSteps = profile.MaxSteps
	}
	if profile.SweepLen != 0 {
		req.SweepLen = profile.SweepLen
	}
	if profile.LnF0 != 0 {
		req.LnF0 = profile.LnF0
	}
	if profile.LnFMin != 0 {
		req.LnFMin = profile.LnFMin
	}
	if profile.Flat != 0 {
		req.Flat = profile.Flat
	}
	if profile.Alpha != 0 {
		req.Alpha = profile.Alpha
	}
	if profile.Tol != 0 {
		req.Tol = profile.Tol
	}
}
