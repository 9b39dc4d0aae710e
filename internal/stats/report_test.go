package stats

import (
	"os"
	"strings"
	"testing"
)

func TestFormatConvergenceReport(t *testing.T) {
	report := FormatConvergenceReport(sampleArtifacts("coin-42-1700000000"))

	for _, want := range []string{
		"run:        coin-42-1700000000",
		"system:     coin",
		"schedule:   geometric",
		"converged:  false",
		"epochs:     2",
		"min/mean",
	} {
		if !strings.Contains(report, want) {
			t.Fatalf("report missing %q:\n%s", want, report)
		}
	}

	// Second epoch ran 260-120 steps.
	if !strings.Contains(report, "140") {
		t.Fatalf("report missing per-epoch step delta:\n%s", report)
	}
}

func TestFormatConvergenceReportWithoutEpochs(t *testing.T) {
	artifacts := sampleArtifacts("coin-42-1700000000")
	artifacts.Epochs = nil

	report := FormatConvergenceReport(artifacts)
	if strings.Contains(report, "min/mean") {
		t.Fatalf("expected no epoch table:\n%s", report)
	}
	if !strings.Contains(report, "epochs:     0") {
		t.Fatalf("report missing epoch count:\n%s", report)
	}
}

func TestWriteConvergenceReport(t *testing.T) {
	runDir := t.TempDir()

	path, err := WriteConvergenceReport(runDir, sampleArtifacts("coin-42-1700000000"))
	if err != nil {
		t.Fatalf("write report: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read report: %v", err)
	}
	if !strings.Contains(string(data), "final ln f:") {
		t.Fatalf("unexpected report contents:\n%s", data)
	}
}
