// Package platform assembles the sampling runtime: a Lab that owns the
// storage backend and the registry of sample systems, executes sampling
// runs, and persists their results.
package platform

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"wanglandau/internal/model"
	"wanglandau/internal/storage"
	"wanglandau/internal/system"
	"wanglandau/internal/systemid"
	"wanglandau/internal/wl"
)

const (
	defaultMaxSteps   uint64 = 10_000_000
	defaultSegmentLen uint64 = 10_000
)

// Config assembles a Lab from its storage backend and initial systems.
type Config struct {
	Store   storage.Store
	Systems []system.System
}

// SamplingConfig selects a registered system and the walk parameters for
// one sampling run. Nil Schedule and Flatness fall back to the standard
// geometric schedule and the min-over-mean criterion.
type SamplingConfig struct {
	RunID      string
	SystemName string
	Seed       int64
	Schedule   wl.Schedule
	Flatness   wl.Flatness
	Params     wl.Params
	MaxSteps   uint64
	SegmentLen uint64
}

// SamplingResult reports one finished or budget-exhausted run.
type SamplingResult struct {
	RunID        string
	System       string
	Steps        uint64
	Epochs       []wl.EpochRecord
	Converged    bool
	FinalLnF     float64
	LnG          []float64
	Histogram    []uint64
	BinValues    []float64
	Trace        []float64
	CreatedAtUTC string
}

// Lab owns the store and the system registry and runs sampling walks
// against them.
type Lab struct {
	store storage.Store

	mu      sync.RWMutex
	systems map[string]system.System
	started bool
	runs    map[string]context.CancelFunc

	config Config
}

func NewLab(cfg Config) *Lab {
	return &Lab{
		store:   cfg.Store,
		systems: make(map[string]system.System),
		runs:    make(map[string]context.CancelFunc),
		config:  cfg,
	}
}

func (l *Lab) Init(ctx context.Context) error {
	if l.store == nil {
		return fmt.Errorf("store is required")
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.started {
		return nil
	}
	if err := l.store.Init(ctx); err != nil {
		return err
	}

	for i, sys := range l.config.Systems {
		if sys == nil {
			l.systems = make(map[string]system.System)
			return fmt.Errorf("system is nil at index %d", i)
		}
		name := systemid.System(sys.Name())
		if name == "" {
			l.systems = make(map[string]system.System)
			return fmt.Errorf("system name is required at index %d", i)
		}
		if _, exists := l.systems[name]; exists {
			l.systems = make(map[string]system.System)
			return fmt.Errorf("duplicate system: %s", name)
		}
		l.systems[name] = sys
	}

	l.started = true
	return nil
}

// Stop cancels active runs and drops the registry. Init restores the
// configured systems.
func (l *Lab) Stop() {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, cancel := range l.runs {
		cancel()
	}
	l.runs = make(map[string]context.CancelFunc)
	l.systems = make(map[string]system.System)
	l.started = false
}

// Reset drops every persisted record and reinitializes the lab.
func (l *Lab) Reset(ctx context.Context) error {
	l.Stop()
	if resetter, ok := l.store.(storage.Resetter); ok {
		if err := resetter.Reset(ctx); err != nil {
			return err
		}
	}
	return l.Init(ctx)
}

func (l *Lab) RegisterSystem(sys system.System) error {
	if sys == nil {
		return fmt.Errorf("system is nil")
	}
	name := systemid.System(sys.Name())
	if name == "" {
		return fmt.Errorf("system name is required")
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.started {
		return fmt.Errorf("lab is not initialized")
	}
	l.systems[name] = sys
	return nil
}

// GetSystem resolves a system by name or alias.
func (l *Lab) GetSystem(name string) (system.System, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	sys, ok := l.systems[systemid.System(name)]
	return sys, ok
}

func (l *Lab) RegisteredSystems() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()

	names := make([]string, 0, len(l.systems))
	for name := range l.systems {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (l *Lab) Started() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.started
}

// RunSampling executes one Wang-Landau walk to convergence or step budget
// and persists its records. The walk runs in bounded segments so that
// context cancellation is honored between segments; a canceled run
// persists nothing.
func (l *Lab) RunSampling(ctx context.Context, cfg SamplingConfig) (SamplingResult, error) {
	if cfg.SystemName == "" {
		return SamplingResult{}, fmt.Errorf("system name is required")
	}

	name := systemid.System(cfg.SystemName)
	l.mu.RLock()
	sys, ok := l.systems[name]
	started := l.started
	l.mu.RUnlock()

	if !started {
		return SamplingResult{}, fmt.Errorf("lab is not initialized")
	}
	if !ok {
		return SamplingResult{}, fmt.Errorf("system not registered: %s", cfg.SystemName)
	}

	if cfg.Schedule == nil {
		cfg.Schedule = wl.Geometric{Alpha: 0.5, Tol: 1e-8}
	}
	if cfg.Flatness == nil {
		cfg.Flatness = wl.Fraction{}
	}
	maxSteps := cfg.MaxSteps
	if maxSteps == 0 {
		maxSteps = defaultMaxSteps
	}
	segment := cfg.SegmentLen
	if segment == 0 {
		segment = defaultSegmentLen
	}

	runID := cfg.RunID
	if runID == "" {
		runID = fmt.Sprintf("%s-%d-%d", name, cfg.Seed, time.Now().UTC().Unix())
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	if err := l.registerRun(runID, cancel); err != nil {
		return SamplingResult{}, err
	}
	defer l.unregisterRun(runID)

	driver, err := wl.New(wl.Config{
		State:    sys.Initial(),
		Move:     sys.Move(),
		Space:    sys.Space(),
		Schedule: cfg.Schedule,
		Flatness: cfg.Flatness,
		Params:   cfg.Params,
		Rand:     wl.Seeded(cfg.Seed),
	})
	if err != nil {
		return SamplingResult{}, err
	}

	for driver.Steps() < maxSteps && !driver.Converged() {
		if err := runCtx.Err(); err != nil {
			return SamplingResult{}, err
		}
		budget := maxSteps - driver.Steps()
		if budget > segment {
			budget = segment
		}
		driver.Run(budget)
	}

	epochs := driver.Epochs()
	trace := make([]float64, 0, len(epochs)+1)
	for _, epoch := range epochs {
		trace = append(trace, epoch.LnF)
	}
	trace = append(trace, driver.LnF())

	var binValues []float64
	if labeler, ok := sys.(system.BinLabeler); ok {
		binValues = labeler.BinValues()
	}

	params := driver.Params()
	alpha, tol := scheduleCoefficients(cfg.Schedule)
	createdAt := time.Now().UTC().Format(time.RFC3339)

	record := model.RunRecord{
		VersionedRecord: storage.Versioned(),
		ID:              runID,
		System:          name,
		Seed:            cfg.Seed,
		Schedule:        cfg.Schedule.Name(),
		Flatness:        cfg.Flatness.Name(),
		Params: model.RunParams{
			LnF0:     params.LnF0,
			LnFMin:   params.LnFMin,
			Flat:     params.Flat,
			SweepLen: params.SweepLen,
			Alpha:    alpha,
			Tol:      tol,
		},
		MaxSteps:     maxSteps,
		Steps:        driver.Steps(),
		Epochs:       driver.Epoch(),
		Converged:    driver.Converged(),
		FinalLnF:     driver.LnF(),
		CreatedAtUTC: createdAt,
	}
	if err := l.store.SaveRun(ctx, record); err != nil {
		return SamplingResult{}, err
	}

	density := model.DensityRecord{
		VersionedRecord: storage.Versioned(),
		RunID:           runID,
		System:          name,
		Bins:            sys.Space().NumBins(),
		LnG:             driver.LnG(),
		Histogram:       driver.Histogram(),
		BinValues:       binValues,
	}
	if err := l.store.SaveDensity(ctx, density); err != nil {
		return SamplingResult{}, err
	}
	if err := l.store.SaveConvergenceTrace(ctx, runID, trace); err != nil {
		return SamplingResult{}, err
	}
	if err := l.store.SaveEpochDiagnostics(ctx, runID, toModelEpochs(epochs)); err != nil {
		return SamplingResult{}, err
	}
	if err := l.updateSystemSummary(ctx, sys, name, driver.LnF()); err != nil {
		return SamplingResult{}, err
	}

	return SamplingResult{
		RunID:        runID,
		System:       name,
		Steps:        driver.Steps(),
		Epochs:       epochs,
		Converged:    driver.Converged(),
		FinalLnF:     driver.LnF(),
		LnG:          driver.LnG(),
		Histogram:    driver.Histogram(),
		BinValues:    binValues,
		Trace:        trace,
		CreatedAtUTC: createdAt,
	}, nil
}

// StopRun cancels the context of an active run.
func (l *Lab) StopRun(runID string) error {
	if runID == "" {
		return fmt.Errorf("run id is required")
	}
	l.mu.RLock()
	cancel, ok := l.runs[runID]
	l.mu.RUnlock()
	if !ok {
		return fmt.Errorf("run not active: %s", runID)
	}
	cancel()
	return nil
}

func (l *Lab) ActiveRuns() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()

	names := make([]string, 0, len(l.runs))
	for name := range l.runs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (l *Lab) registerRun(runID string, cancel context.CancelFunc) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.started {
		return fmt.Errorf("lab is not initialized")
	}
	if _, exists := l.runs[runID]; exists {
		return fmt.Errorf("run already active: %s", runID)
	}
	l.runs[runID] = cancel
	return nil
}

func (l *Lab) unregisterRun(runID string) {
	l.mu.Lock()
	delete(l.runs, runID)
	l.mu.Unlock()
}

func (l *Lab) updateSystemSummary(ctx context.Context, sys system.System, name string, finalLnF float64) error {
	summary, ok, err := l.store.GetSystemSummary(ctx, name)
	if err != nil {
		return err
	}
	if !ok {
		summary = model.SystemSummary{
			VersionedRecord: storage.Versioned(),
			Name:            name,
			Bins:            sys.Space().NumBins(),
			BestFinalLnF:    finalLnF,
		}
		if describer, ok := sys.(system.Describer); ok {
			summary.Description = describer.Description()
		}
	}
	summary.Runs++
	if finalLnF < summary.BestFinalLnF {
		summary.BestFinalLnF = finalLnF
	}
	return l.store.SaveSystemSummary(ctx, summary)
}

func toModelEpochs(epochs []wl.EpochRecord) []model.EpochDiagnostics {
	out := make([]model.EpochDiagnostics, 0, len(epochs))
	for _, epoch := range epochs {
		out = append(out, model.EpochDiagnostics{
			Epoch:      epoch.Epoch,
			LnF:        epoch.LnF,
			Steps:      epoch.Steps,
			MinVisits:  epoch.MinVisits,
			MeanVisits: epoch.MeanVisits,
			MaxVisits:  epoch.MaxVisits,
		})
	}
	return out
}

func scheduleCoefficients(schedule wl.Schedule) (alpha, tol float64) {
	switch s := schedule.(type) {
	case wl.Geometric:
		return s.Alpha, s.Tol
	case wl.OneOverT:
		return s.Alpha, s.Tol
	default:
		return 0, 0
	}
}
