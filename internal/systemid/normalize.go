// Package systemid canonicalizes the user-facing names of sample systems,
// modification-factor schedules, and flatness criteria.
package systemid

import "strings"

// Normalize lowercases a name and folds separators to hyphens.
func Normalize(name string) string {
	normalized := strings.TrimSpace(strings.ToLower(name))
	normalized = strings.ReplaceAll(normalized, "_", "-")
	normalized = strings.ReplaceAll(normalized, " ", "-")
	normalized = strings.ReplaceAll(normalized, "/", "-")
	normalized = strings.Trim(normalized, "-")
	return normalized
}

// System resolves a sample system name or alias to its canonical form.
// Unknown names pass through normalized so registries can reject them.
func System(name string) string {
	normalized := Normalize(name)
	if canonical, ok := canonicalSystemName(normalized); ok {
		return canonical
	}
	return normalized
}

// Schedule resolves a schedule name or alias to its canonical form.
func Schedule(name string) string {
	normalized := Normalize(name)
	if canonical, ok := canonicalScheduleName(normalized); ok {
		return canonical
	}
	return normalized
}

// Flatness resolves a flatness criterion name or alias to its canonical form.
func Flatness(name string) string {
	normalized := Normalize(name)
	if canonical, ok := canonicalFlatnessName(normalized); ok {
		return canonical
	}
	return normalized
}

func canonicalSystemName(alias string) (string, bool) {
	switch alias {
	case "coin":
		return "coin", true
	case "die", "d6", "dice":
		return "dice", true
	case "harmonic", "oscillator", "ho", "sho":
		return "harmonic", true
	case "paramagnet":
		return "paramagnet-8", true
	}

	compact := strings.ReplaceAll(alias, "-", "")
	switch compact {
	case "coinflip":
		return "coin", true
	case "harmonicoscillator":
		return "harmonic", true
	default:
		return "", false
	}
}

func canonicalScheduleName(alias string) (string, bool) {
	switch alias {
	case "geometric", "geo":
		return "geometric", true
	case "one-over-t", "1-t", "bp", "belardinelli-pereyra":
		return "one-over-t", true
	}

	compact := strings.ReplaceAll(alias, "-", "")
	switch compact {
	case "geometric":
		return "geometric", true
	case "oneovert", "1t", "1overt":
		return "one-over-t", true
	default:
		return "", false
	}
}

func canonicalFlatnessName(alias string) (string, bool) {
	switch alias {
	case "fraction", "frac":
		return "fraction", true
	case "rms", "root-mean-square":
		return "rms", true
	}

	compact := strings.ReplaceAll(alias, "-", "")
	switch compact {
	case "fraction":
		return "fraction", true
	case "rootmeansquare":
		return "rms", true
	default:
		return "", false
	}
}
