package platform

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"wanglandau/internal/storage"
	"wanglandau/internal/system"
	"wanglandau/internal/wl"
)

func newTestLab(t *testing.T, systems ...system.System) (*Lab, *storage.MemoryStore) {
	t.Helper()
	store := storage.NewMemoryStore()
	lab := NewLab(Config{Store: store, Systems: systems})
	if err := lab.Init(context.Background()); err != nil {
		t.Fatalf("init lab: %v", err)
	}
	return lab, store
}

func TestLabInitRequiresStore(t *testing.T) {
	lab := NewLab(Config{})
	if err := lab.Init(context.Background()); err == nil {
		t.Fatal("expected init without store to fail")
	}
}

func TestLabInitRejectsNilSystem(t *testing.T) {
	lab := NewLab(Config{Store: storage.NewMemoryStore(), Systems: []system.System{nil}})
	if err := lab.Init(context.Background()); err == nil {
		t.Fatal("expected nil system to fail init")
	}
	if lab.Started() {
		t.Fatal("expected lab to stay uninitialized after failed init")
	}
}

func TestLabInitRejectsDuplicateSystem(t *testing.T) {
	lab := NewLab(Config{
		Store:   storage.NewMemoryStore(),
		Systems: []system.System{system.Coin{}, system.Coin{}},
	})
	err := lab.Init(context.Background())
	if err == nil || !strings.Contains(err.Error(), "duplicate system") {
		t.Fatalf("expected duplicate system error, got=%v", err)
	}
}

func TestLabInitIsIdempotent(t *testing.T) {
	lab, _ := newTestLab(t, system.Coin{})
	if err := lab.Init(context.Background()); err != nil {
		t.Fatalf("second init: %v", err)
	}
	if got := lab.RegisteredSystems(); len(got) != 1 || got[0] != "coin" {
		t.Fatalf("unexpected systems after second init: %v", got)
	}
}

func TestLabRegisterSystemRequiresInit(t *testing.T) {
	lab := NewLab(Config{Store: storage.NewMemoryStore()})
	if err := lab.RegisterSystem(system.Coin{}); err == nil {
		t.Fatal("expected register before init to fail")
	}
}

func TestLabGetSystemResolvesAliases(t *testing.T) {
	lab, _ := newTestLab(t, system.Coin{}, system.Dice{}, system.DefaultHarmonic())
	cases := map[string]string{
		"coin":                "coin",
		"die":                 "dice",
		"D6":                  "dice",
		"Harmonic Oscillator": "harmonic",
	}
	for alias, want := range cases {
		sys, ok := lab.GetSystem(alias)
		if !ok {
			t.Fatalf("expected alias %q to resolve", alias)
		}
		if sys.Name() != want {
			t.Fatalf("alias %q resolved to %q, want %q", alias, sys.Name(), want)
		}
	}
	if _, ok := lab.GetSystem("unknown"); ok {
		t.Fatal("expected unknown system to stay unresolved")
	}
}

func TestLabRegisteredSystemsSorted(t *testing.T) {
	lab, _ := newTestLab(t, system.DefaultHarmonic(), system.Coin{}, system.Dice{})
	got := lab.RegisteredSystems()
	want := []string{"coin", "dice", "harmonic"}
	if len(got) != len(want) {
		t.Fatalf("unexpected registry size: got=%v want=%v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("unexpected registry order: got=%v want=%v", got, want)
		}
	}
}

func TestLabRunSamplingPersistsRecords(t *testing.T) {
	lab, store := newTestLab(t, system.Coin{})
	ctx := context.Background()

	result, err := lab.RunSampling(ctx, SamplingConfig{
		RunID:      "coin-smoke",
		SystemName: "coin",
		Seed:       42,
		Params:     wl.Params{LnFMin: 1e-4},
		MaxSteps:   2_000_000,
	})
	if err != nil {
		t.Fatalf("run sampling: %v", err)
	}
	if !result.Converged {
		t.Fatalf("expected coin walk to converge within budget, steps=%d", result.Steps)
	}
	if result.RunID != "coin-smoke" || result.System != "coin" {
		t.Fatalf("unexpected run identity: id=%q system=%q", result.RunID, result.System)
	}
	if len(result.LnG) != 2 || len(result.Histogram) != 2 {
		t.Fatalf("expected two bins, got lnG=%v hist=%v", result.LnG, result.Histogram)
	}
	if len(result.Trace) != len(result.Epochs)+1 {
		t.Fatalf("expected trace to cover every epoch plus the final value, trace=%d epochs=%d", len(result.Trace), len(result.Epochs))
	}
	if result.Trace[len(result.Trace)-1] != result.FinalLnF {
		t.Fatalf("expected trace to end at final ln f, got=%v want=%v", result.Trace[len(result.Trace)-1], result.FinalLnF)
	}

	run, ok, err := store.GetRun(ctx, "coin-smoke")
	if err != nil || !ok {
		t.Fatalf("get run: ok=%v err=%v", ok, err)
	}
	if run.System != "coin" || run.Seed != 42 || !run.Converged {
		t.Fatalf("unexpected run record: %+v", run)
	}
	if run.Schedule != "geometric" || run.Flatness != "fraction" {
		t.Fatalf("expected defaulted policies in record, got schedule=%q flatness=%q", run.Schedule, run.Flatness)
	}
	if run.Params.LnF0 != 1.0 || run.Params.LnFMin != 1e-4 || run.Params.Alpha != 0.5 {
		t.Fatalf("unexpected recorded params: %+v", run.Params)
	}
	if run.Steps != result.Steps || run.FinalLnF != result.FinalLnF {
		t.Fatalf("run record does not match result: %+v vs %+v", run, result)
	}
	if run.CreatedAtUTC == "" {
		t.Fatal("expected run record timestamp")
	}

	density, ok, err := store.GetDensity(ctx, "coin-smoke")
	if err != nil || !ok {
		t.Fatalf("get density: ok=%v err=%v", ok, err)
	}
	if density.System != "coin" || density.Bins != 2 || len(density.LnG) != 2 {
		t.Fatalf("unexpected density record: %+v", density)
	}

	trace, ok, err := store.GetConvergenceTrace(ctx, "coin-smoke")
	if err != nil || !ok {
		t.Fatalf("get convergence trace: ok=%v err=%v", ok, err)
	}
	if len(trace) != len(result.Trace) {
		t.Fatalf("unexpected trace length: got=%d want=%d", len(trace), len(result.Trace))
	}

	diags, ok, err := store.GetEpochDiagnostics(ctx, "coin-smoke")
	if err != nil || !ok {
		t.Fatalf("get epoch diagnostics: ok=%v err=%v", ok, err)
	}
	if len(diags) != len(result.Epochs) {
		t.Fatalf("unexpected diagnostics length: got=%d want=%d", len(diags), len(result.Epochs))
	}

	summary, ok, err := store.GetSystemSummary(ctx, "coin")
	if err != nil || !ok {
		t.Fatalf("get system summary: ok=%v err=%v", ok, err)
	}
	if summary.Runs != 1 || summary.Bins != 2 {
		t.Fatalf("unexpected system summary: %+v", summary)
	}
	if summary.BestFinalLnF != result.FinalLnF {
		t.Fatalf("expected best final ln f %v, got=%v", result.FinalLnF, summary.BestFinalLnF)
	}
	if summary.Description == "" {
		t.Fatal("expected summary to carry the system description")
	}
}

func TestLabRunSamplingDefaultsRunID(t *testing.T) {
	lab, store := newTestLab(t, system.Dice{})
	ctx := context.Background()

	result, err := lab.RunSampling(ctx, SamplingConfig{
		SystemName: "die",
		Seed:       7,
		Params:     wl.Params{LnFMin: 0.2},
		MaxSteps:   200_000,
	})
	if err != nil {
		t.Fatalf("run sampling: %v", err)
	}
	if !strings.HasPrefix(result.RunID, "dice-7-") {
		t.Fatalf("expected generated run id with system and seed, got=%q", result.RunID)
	}
	if result.System != "dice" {
		t.Fatalf("expected alias to resolve to dice, got=%q", result.System)
	}
	if _, ok, err := store.GetRun(ctx, result.RunID); err != nil || !ok {
		t.Fatalf("expected run record under generated id, ok=%v err=%v", ok, err)
	}
}

func TestLabRunSamplingRecordsBinValues(t *testing.T) {
	lab, store := newTestLab(t, system.Paramagnet{Spins: 8})
	ctx := context.Background()

	result, err := lab.RunSampling(ctx, SamplingConfig{
		RunID:      "pm-run",
		SystemName: "paramagnet-8",
		Seed:       3,
		Params:     wl.Params{LnFMin: 0.6},
		MaxSteps:   500_000,
	})
	if err != nil {
		t.Fatalf("run sampling: %v", err)
	}
	if len(result.BinValues) != 9 {
		t.Fatalf("expected nine bin labels, got=%v", result.BinValues)
	}

	density, ok, err := store.GetDensity(ctx, "pm-run")
	if err != nil || !ok {
		t.Fatalf("get density: ok=%v err=%v", ok, err)
	}
	if len(density.BinValues) != 9 || density.BinValues[0] != 0 || density.BinValues[8] != 8 {
		t.Fatalf("unexpected density bin labels: %v", density.BinValues)
	}
}

func TestLabRunSamplingValidation(t *testing.T) {
	lab, _ := newTestLab(t, system.Coin{})
	ctx := context.Background()

	if _, err := lab.RunSampling(ctx, SamplingConfig{}); err == nil {
		t.Fatal("expected missing system name to fail")
	}
	if _, err := lab.RunSampling(ctx, SamplingConfig{SystemName: "unknown"}); err == nil || !strings.Contains(err.Error(), "system not registered") {
		t.Fatalf("expected unknown system error, got=%v", err)
	}

	fresh := NewLab(Config{Store: storage.NewMemoryStore()})
	if _, err := fresh.RunSampling(ctx, SamplingConfig{SystemName: "coin"}); err == nil || !strings.Contains(err.Error(), "not initialized") {
		t.Fatalf("expected uninitialized lab error, got=%v", err)
	}
}

func TestLabRunSamplingCanceledRunPersistsNothing(t *testing.T) {
	lab, store := newTestLab(t, system.Coin{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := lab.RunSampling(ctx, SamplingConfig{RunID: "canceled", SystemName: "coin", Seed: 1})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context cancellation error, got=%v", err)
	}
	if _, ok, err := store.GetRun(context.Background(), "canceled"); err != nil || ok {
		t.Fatalf("expected no persisted run after cancellation, ok=%v err=%v", ok, err)
	}
}

func TestLabStopRunCancelsActiveRun(t *testing.T) {
	lab, store := newTestLab(t, system.DefaultHarmonic())

	errCh := make(chan error, 1)
	go func() {
		_, err := lab.RunSampling(context.Background(), SamplingConfig{
			RunID:      "long-walk",
			SystemName: "harmonic",
			Seed:       11,
			Params:     wl.Params{Flat: 0.999},
			SegmentLen: 64,
		})
		errCh <- err
	}()

	deadline := time.Now().Add(250 * time.Millisecond)
	for time.Now().Before(deadline) {
		if len(lab.ActiveRuns()) > 0 {
			break
		}
		time.Sleep(time.Millisecond)
	}
	if runs := lab.ActiveRuns(); len(runs) != 1 || runs[0] != "long-walk" {
		t.Fatalf("expected long-walk to be active, got=%v", runs)
	}

	if _, err := lab.RunSampling(context.Background(), SamplingConfig{RunID: "long-walk", SystemName: "harmonic"}); err == nil || !strings.Contains(err.Error(), "already active") {
		t.Fatalf("expected duplicate run id error, got=%v", err)
	}

	if err := lab.StopRun("long-walk"); err != nil {
		t.Fatalf("stop run: %v", err)
	}
	select {
	case err := <-errCh:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected canceled walk to fail, got=%v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("expected canceled walk to return")
	}

	if len(lab.ActiveRuns()) != 0 {
		t.Fatalf("expected no active runs after stop, got=%v", lab.ActiveRuns())
	}
	if _, ok, _ := store.GetRun(context.Background(), "long-walk"); ok {
		t.Fatal("expected canceled run to persist nothing")
	}
}

func TestLabStopRunUnknown(t *testing.T) {
	lab, _ := newTestLab(t, system.Coin{})
	if err := lab.StopRun("missing"); err == nil {
		t.Fatal("expected unknown run id to fail")
	}
	if err := lab.StopRun(""); err == nil {
		t.Fatal("expected empty run id to fail")
	}
}

func TestLabSystemSummaryTracksBestRun(t *testing.T) {
	lab, store := newTestLab(t, system.Coin{})
	ctx := context.Background()

	first, err := lab.RunSampling(ctx, SamplingConfig{
		RunID:      "coarse",
		SystemName: "coin",
		Seed:       1,
		Params:     wl.Params{LnFMin: 0.4},
		MaxSteps:   200_000,
	})
	if err != nil {
		t.Fatalf("first run: %v", err)
	}
	second, err := lab.RunSampling(ctx, SamplingConfig{
		RunID:      "fine",
		SystemName: "coin",
		Seed:       1,
		Params:     wl.Params{LnFMin: 1e-3},
		MaxSteps:   2_000_000,
	})
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if second.FinalLnF >= first.FinalLnF {
		t.Fatalf("expected finer run to reach lower ln f: first=%v second=%v", first.FinalLnF, second.FinalLnF)
	}

	summary, ok, err := store.GetSystemSummary(ctx, "coin")
	if err != nil || !ok {
		t.Fatalf("get system summary: ok=%v err=%v", ok, err)
	}
	if summary.Runs != 2 {
		t.Fatalf("expected two recorded runs, got=%d", summary.Runs)
	}
	if summary.BestFinalLnF != second.FinalLnF {
		t.Fatalf("expected best final ln f %v, got=%v", second.FinalLnF, summary.BestFinalLnF)
	}
}

func TestLabResetClearsRecords(t *testing.T) {
	lab, store := newTestLab(t, system.Coin{})
	ctx := context.Background()

	if _, err := lab.RunSampling(ctx, SamplingConfig{
		RunID:      "pre-reset",
		SystemName: "coin",
		Seed:       5,
		Params:     wl.Params{LnFMin: 0.4},
		MaxSteps:   200_000,
	}); err != nil {
		t.Fatalf("run sampling: %v", err)
	}
	if err := lab.Reset(ctx); err != nil {
		t.Fatalf("reset lab: %v", err)
	}
	if !lab.Started() {
		t.Fatal("expected lab to be reinitialized after reset")
	}
	if got := lab.RegisteredSystems(); len(got) != 1 || got[0] != "coin" {
		t.Fatalf("unexpected systems after reset: %v", got)
	}
	if _, ok, _ := store.GetRun(ctx, "pre-reset"); ok {
		t.Fatal("expected reset to drop persisted runs")
	}
}

func TestLabStopDropsRegistry(t *testing.T) {
	lab, _ := newTestLab(t, system.Coin{})
	lab.Stop()
	if lab.Started() {
		t.Fatal("expected lab to stop")
	}
	if got := lab.RegisteredSystems(); len(got) != 0 {
		t.Fatalf("expected empty registry after stop, got=%v", got)
	}
}
