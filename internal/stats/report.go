package stats

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// FormatConvergenceReport renders a plain text account of one run's
// schedule progression. The steps column holds the steps spent inside
// each epoch, min/mean the flatness ratio at the moment the epoch closed.
func FormatConvergenceReport(artifacts RunArtifacts) string {
	var b strings.Builder

	cfg := artifacts.Config
	fmt.Fprintf(&b, "run:        %s\n", cfg.RunID)
	fmt.Fprintf(&b, "system:     %s\n", cfg.System)
	fmt.Fprintf(&b, "seed:       %d\n", cfg.Seed)
	fmt.Fprintf(&b, "schedule:   %s (alpha=%g tol=%g)\n", cfg.Schedule, cfg.Alpha, cfg.Tol)
	fmt.Fprintf(&b, "flatness:   %s (flat=%g)\n", cfg.Flatness, cfg.Flat)
	fmt.Fprintf(&b, "sweep len:  %d\n", cfg.SweepLen)
	fmt.Fprintf(&b, "steps:      %d\n", artifacts.Steps)
	fmt.Fprintf(&b, "epochs:     %d\n", len(artifacts.Epochs))
	fmt.Fprintf(&b, "converged:  %t\n", artifacts.Converged)
	fmt.Fprintf(&b, "final ln f: %.6e\n", artifacts.FinalLnF)

	if len(artifacts.Epochs) > 0 {
		fmt.Fprintf(&b, "\n%-6s %-13s %-10s %-8s %-10s %-8s %s\n",
			"epoch", "ln_f", "steps", "min", "mean", "max", "min/mean")
		var previous uint64
		for _, epoch := range artifacts.Epochs {
			ratio := 0.0
			if epoch.MeanVisits > 0 {
				ratio = float64(epoch.MinVisits) / epoch.MeanVisits
			}
			fmt.Fprintf(&b, "%-6d %-13.6e %-10d %-8d %-10.1f %-8d %.3f\n",
				epoch.Epoch, epoch.LnF, epoch.Steps-previous,
				epoch.MinVisits, epoch.MeanVisits, epoch.MaxVisits, ratio)
			previous = epoch.Steps
		}
	}

	return b.String()
}

// WriteConvergenceReport writes the text report into runDir and returns
// the file path.
func WriteConvergenceReport(runDir string, artifacts RunArtifacts) (string, error) {
	path := filepath.Join(runDir, "convergence_report.txt")
	if err := os.WriteFile(path, []byte(FormatConvergenceReport(artifacts)), 0o644); err != nil {
		return "", err
	}
	return path, nil
}
