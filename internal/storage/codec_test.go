package storage

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"wanglandau/internal/model"
)

func TestDecodeRunFixture(t *testing.T) {
	run := decodeRunFixture(t, "minimal_run_v1.json")
	if run.ID != "coin-42-1700000000" {
		t.Fatalf("unexpected run id: %s", run.ID)
	}
	if run.System != "coin" || run.Seed != 42 {
		t.Fatalf("unexpected run identity: %+v", run)
	}
	if !run.Converged || run.Epochs != 27 {
		t.Fatalf("unexpected run outcome: %+v", run)
	}
	if run.Params.Alpha != 0.5 {
		t.Fatalf("unexpected run params: %+v", run.Params)
	}
}

func TestDecodeDensityFixture(t *testing.T) {
	path := fixturePath("minimal_density_v1.json")
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read fixture: %v", err)
	}

	density, err := DecodeDensity(data)
	if err != nil {
		t.Fatalf("decode fixture: %v", err)
	}
	if density.RunID != "coin-42-1700000000" {
		t.Fatalf("unexpected run id: %s", density.RunID)
	}
	if density.Bins != 2 || len(density.LnG) != 2 || len(density.Histogram) != 2 {
		t.Fatalf("unexpected density shape: %+v", density)
	}
	if density.LnG[0] != 12.5 {
		t.Fatalf("unexpected ln g: %+v", density.LnG)
	}
}

func TestDecodeSystemSummaryFixture(t *testing.T) {
	path := fixturePath("minimal_system_summary_v1.json")
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read fixture: %v", err)
	}

	summary, err := DecodeSystemSummary(data)
	if err != nil {
		t.Fatalf("decode fixture: %v", err)
	}
	if summary.Name != "coin" {
		t.Fatalf("unexpected system name: %s", summary.Name)
	}
	if summary.Runs != 3 {
		t.Fatalf("unexpected run count: %d", summary.Runs)
	}
}

func TestRunCodecRoundTrip(t *testing.T) {
	input := model.RunRecord{
		VersionedRecord: Versioned(),
		ID:              "dice-2025-1700000001",
		System:          "dice",
		Seed:            2025,
		Schedule:        "geometric",
		Flatness:        "fraction",
		Params: model.RunParams{
			LnF0:     1.0,
			LnFMin:   1e-8,
			Flat:     0.8,
			SweepLen: 1,
			Alpha:    0.5,
			Tol:      1e-8,
		},
		MaxSteps:     2_000_000,
		Steps:        40_000,
		Epochs:       27,
		Converged:    true,
		FinalLnF:     7.450580596923828e-09,
		CreatedAtUTC: "2026-08-25T12:00:00Z",
	}

	encoded, err := EncodeRun(input)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	decoded, err := DecodeRun(encoded)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}

	if !reflect.DeepEqual(decoded, input) {
		t.Fatalf("roundtrip mismatch\nactual=%+v\nexpected=%+v", decoded, input)
	}
}

func TestRunCodecRoundTripFixtureEquality(t *testing.T) {
	expected := decodeRunFixture(t, "minimal_run_v1.json")

	encoded, err := EncodeRun(expected)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	actual, err := DecodeRun(encoded)
	if err != nil {
		t.Fatalf("decode roundtrip: %v", err)
	}

	if !reflect.DeepEqual(actual, expected) {
		t.Fatalf("roundtrip mismatch\nactual=%+v\nexpected=%+v", actual, expected)
	}
}

func TestDensityCodecRoundTrip(t *testing.T) {
	input := model.DensityRecord{
		VersionedRecord: Versioned(),
		RunID:           "harmonic-7-1700000002",
		System:          "harmonic",
		Bins:            3,
		LnG:             []float64{0, 1.1, 2.3},
		Histogram:       []uint64{120, 118, 121},
		BinValues:       []float64{0.05, 0.15, 0.25},
	}

	encoded, err := EncodeDensity(input)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	decoded, err := DecodeDensity(encoded)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}

	if !reflect.DeepEqual(decoded, input) {
		t.Fatalf("roundtrip mismatch\nactual=%+v\nexpected=%+v", decoded, input)
	}
}

func TestSystemSummaryCodecRoundTrip(t *testing.T) {
	input := model.SystemSummary{
		VersionedRecord: Versioned(),
		Name:            "paramagnet-8",
		Description:     "eight non-interacting spins binned by up count",
		Bins:            9,
		Runs:            2,
		BestFinalLnF:    1e-6,
	}

	encoded, err := EncodeSystemSummary(input)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	decoded, err := DecodeSystemSummary(encoded)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}

	if decoded.Name != input.Name || decoded.Bins != input.Bins {
		t.Fatalf("decoded summary mismatch: got=%+v want=%+v", decoded, input)
	}
}

func TestConvergenceTraceCodecRoundTrip(t *testing.T) {
	input := []float64{1.0, 0.5, 0.25, 0.125}
	encoded, err := EncodeConvergenceTrace(input)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	decoded, err := DecodeConvergenceTrace(encoded)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !reflect.DeepEqual(decoded, input) {
		t.Fatalf("decoded trace mismatch: got=%+v want=%+v", decoded, input)
	}
}

func TestEpochDiagnosticsCodecRoundTrip(t *testing.T) {
	input := []model.EpochDiagnostics{
		{Epoch: 0, LnF: 1.0, Steps: 120, MinVisits: 41, MeanVisits: 60, MaxVisits: 80},
		{Epoch: 1, LnF: 0.5, Steps: 260, MinVisits: 45, MeanVisits: 70, MaxVisits: 91},
	}
	encoded, err := EncodeEpochDiagnostics(input)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	decoded, err := DecodeEpochDiagnostics(encoded)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !reflect.DeepEqual(decoded, input) {
		t.Fatalf("decoded diagnostics mismatch: got=%+v want=%+v", decoded, input)
	}
}

func TestDecodeRunVersionMismatch(t *testing.T) {
	run := decodeRunFixture(t, "minimal_run_v1.json")
	run.CodecVersion++

	encoded, err := EncodeRun(run)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	_, err = DecodeRun(encoded)
	if !errors.Is(err, ErrVersionMismatch) {
		t.Fatalf("expected ErrVersionMismatch, got: %v", err)
	}
}

func TestDecodeDensityVersionMismatch(t *testing.T) {
	input := model.DensityRecord{
		VersionedRecord: model.VersionedRecord{SchemaVersion: CurrentSchemaVersion + 1, CodecVersion: CurrentCodecVersion},
		RunID:           "coin-42-1700000000",
	}
	encoded, err := EncodeDensity(input)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	_, err = DecodeDensity(encoded)
	if !errors.Is(err, ErrVersionMismatch) {
		t.Fatalf("expected ErrVersionMismatch, got: %v", err)
	}
}

func TestDecodeSystemSummaryVersionMismatch(t *testing.T) {
	input := model.SystemSummary{
		VersionedRecord: model.VersionedRecord{SchemaVersion: CurrentSchemaVersion, CodecVersion: CurrentCodecVersion + 1},
		Name:            "coin",
	}
	encoded, err := EncodeSystemSummary(input)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	_, err = DecodeSystemSummary(encoded)
	if !errors.Is(err, ErrVersionMismatch) {
		t.Fatalf("expected ErrVersionMismatch, got: %v", err)
	}
}

func fixturePath(name string) string {
	return filepath.Join("..", "..", "testdata", "fixtures", name)
}

func decodeRunFixture(t *testing.T, name string) model.RunRecord {
	t.Helper()

	path := fixturePath(name)
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read fixture: %v", err)
	}

	run, err := DecodeRun(data)
	if err != nil {
		t.Fatalf("decode fixture: %v", err)
	}

	return run
}
