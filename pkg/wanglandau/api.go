// Package wanglandau is the public client surface of the sampling lab: it
// owns a store and a platform Lab, executes runs, and writes their on-disk
// artifacts.
package wanglandau

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"wanglandau/internal/model"
	"wanglandau/internal/platform"
	"wanglandau/internal/stats"
	"wanglandau/internal/storage"
	"wanglandau/internal/system"
	"wanglandau/internal/systemid"
	"wanglandau/internal/wl"
)

const (
	defaultResultsDir = "results"
	defaultExportsDir = "exports"
	defaultDBPath     = "wanglandau.db"

	batchMaxRestarts = 2
)

type Options struct {
	StoreKind  string
	DBPath     string
	ResultsDir string
	ExportsDir string
}

type Client struct {
	store storage.Store
	lab   *platform.Lab

	resultsDir string
	exportsDir string
}

// RunRequest selects a system and the walk parameters for one sampling
// run. Zero values fall back to the standard Wang-Landau configuration.
type RunRequest struct {
	System   string
	Schedule string
	Flatness string
	RunID    string
	Seed     int64
	MaxSteps uint64
	SweepLen int
	LnF0     float64
	LnFMin   float64
	Flat     float64
	Alpha    float64
	Tol      float64
}

type RunSummary struct {
	RunID        string
	System       string
	ArtifactsDir string
	Steps        uint64
	Epochs       int
	Converged    bool
	FinalLnF     float64
}

type RunsRequest struct {
	Limit int
}

type RunItem struct {
	RunID        string
	CreatedAtUTC string
	System       string
	Schedule     string
	Flatness     string
	Seed         int64
	Steps        uint64
	Epochs       int
	Converged    bool
	FinalLnF     float64
}

type ShowRequest struct {
	RunID  string
	Latest bool
}

// RunDetail is one run's record plus whatever walk history is available.
type RunDetail struct {
	Run    model.RunRecord
	Trace  []float64
	Epochs []model.EpochDiagnostics
}

type DensityRequest struct {
	RunID      string
	Latest     bool
	Normalized bool
}

type ConvergenceRequest struct {
	RunID  string
	Latest bool
}

type DiagnosticsRequest struct {
	RunID  string
	Latest bool
	Limit  int
}

type ExportRequest struct {
	RunID  string
	Latest bool
	OutDir string
}

type ExportSummary struct {
	RunID     string
	Directory string
}

type SystemSummaryItem struct {
	Name         string
	Description  string
	Bins         int
	Runs         int
	BestFinalLnF float64
}

func New(opts Options) (*Client, error) {
	storeKind := opts.StoreKind
	if storeKind == "" {
		storeKind = storage.DefaultStoreKind()
	}
	dbPath := opts.DBPath
	if dbPath == "" {
		dbPath = defaultDBPath
	}
	resultsDir := opts.ResultsDir
	if resultsDir == "" {
		resultsDir = defaultResultsDir
	}
	exportsDir := opts.ExportsDir
	if exportsDir == "" {
		exportsDir = defaultExportsDir
	}

	store, err := storage.NewStore(storeKind, dbPath)
	if err != nil {
		return nil, err
	}

	return &Client{
		store:      store,
		resultsDir: resultsDir,
		exportsDir: exportsDir,
	}, nil
}

func (c *Client) Close() error {
	if c.lab != nil {
		c.lab.Stop()
	}
	return storage.CloseIfSupported(c.store)
}

func (c *Client) Init(ctx context.Context) error {
	_, err := c.ensureLab(ctx)
	return err
}

// Reset drops every persisted record and reinitializes the lab. On-disk
// artifacts are left in place.
func (c *Client) Reset(ctx context.Context) error {
	lab, err := c.ensureLab(ctx)
	if err != nil {
		return err
	}
	return lab.Reset(ctx)
}

// Run executes one sampling walk to convergence or step budget, persists
// its records, and writes the run's artifacts and index entry.
func (c *Client) Run(ctx context.Context, req RunRequest) (RunSummary, error) {
	req = withRunDefaults(req)
	if req.RunID == "" {
		req.RunID = newRunID(req.System, req.Seed)
	}
	return c.executeRun(ctx, req)
}

// RunBatch executes several sampling walks concurrently under a
// supervisor. Failed walks are retried a bounded number of times; the
// deterministic seed and keyed persistence make a retry idempotent.
func (c *Client) RunBatch(ctx context.Context, reqs []RunRequest) ([]RunSummary, error) {
	if len(reqs) == 0 {
		return nil, errors.New("batch requires at least one run")
	}
	if _, err := c.ensureLab(ctx); err != nil {
		return nil, err
	}

	resolved := make([]RunRequest, len(reqs))
	seen := make(map[string]struct{}, len(reqs))
	for i, req := range reqs {
		req = withRunDefaults(req)
		if req.Seed == 0 {
			// zero-seed requests get decorrelated per-position streams,
			// keeping the batch reproducible without colliding run ids
			req.Seed = wl.DeriveSeed(0, uint64(i))
		}
		if req.RunID == "" {
			req.RunID = newRunID(req.System, req.Seed)
		}
		if _, dup := seen[req.RunID]; dup {
			return nil, fmt.Errorf("duplicate run in batch: %s", req.RunID)
		}
		seen[req.RunID] = struct{}{}
		resolved[i] = req
	}

	var mu sync.Mutex
	summaries := make([]RunSummary, len(resolved))
	runErrs := make([]error, len(resolved))
	indexByTask := make(map[string]int, len(resolved))
	for i, req := range resolved {
		indexByTask[req.RunID] = i
	}

	var wg sync.WaitGroup
	wg.Add(len(resolved))
	supervisor := platform.NewSupervisorWithHooks(platform.SupervisorPolicy{
		MaxRestarts: batchMaxRestarts,
	}, platform.SupervisorHooks{
		OnTaskPermanentFailure: func(name string, err error, _ int) {
			mu.Lock()
			if i, ok := indexByTask[name]; ok && runErrs[i] == nil {
				runErrs[i] = fmt.Errorf("run %s: %w", name, err)
			}
			mu.Unlock()
			wg.Done()
		},
	})
	defer supervisor.StopAll()

	for i, req := range resolved {
		spec := platform.SupervisorChildSpec{Name: req.RunID, Restart: platform.SupervisorRestartTransient}
		err := supervisor.StartSpec(spec, func(context.Context) error {
			summary, err := c.executeRun(ctx, req)
			if err == nil {
				mu.Lock()
				summaries[i] = summary
				mu.Unlock()
				wg.Done()
				return nil
			}
			if ctx.Err() != nil {
				mu.Lock()
				runErrs[i] = fmt.Errorf("run %s: %w", req.RunID, err)
				mu.Unlock()
				wg.Done()
				return nil
			}
			return err
		})
		if err != nil {
			mu.Lock()
			runErrs[i] = err
			mu.Unlock()
			wg.Done()
		}
	}
	wg.Wait()

	if err := errors.Join(runErrs...); err != nil {
		return summaries, err
	}
	return summaries, nil
}

func (c *Client) ListRuns(_ context.Context, req RunsRequest) ([]RunItem, error) {
	if req.Limit <= 0 {
		req.Limit = 20
	}

	entries, err := stats.ListRunIndex(c.resultsDir)
	if err != nil {
		return nil, err
	}
	if len(entries) > req.Limit {
		entries = entries[:req.Limit]
	}

	out := make([]RunItem, 0, len(entries))
	for _, e := range entries {
		out = append(out, RunItem{
			RunID:        e.RunID,
			CreatedAtUTC: e.CreatedAtUTC,
			System:       e.System,
			Schedule:     e.Schedule,
			Flatness:     e.Flatness,
			Seed:         e.Seed,
			Steps:        e.Steps,
			Epochs:       e.Epochs,
			Converged:    e.Converged,
			FinalLnF:     e.FinalLnF,
		})
	}
	return out, nil
}

// ShowRun reports one run's record with its convergence trace and epoch
// diagnostics. The store is consulted first; runs known only through the
// artifacts directory are reconstructed from their files.
func (c *Client) ShowRun(ctx context.Context, req ShowRequest) (RunDetail, error) {
	if req.RunID != "" && req.Latest {
		return RunDetail{}, errors.New("use either run id or latest")
	}

	runID := req.RunID
	if req.Latest {
		entries, err := stats.ListRunIndex(c.resultsDir)
		if err != nil {
			return RunDetail{}, err
		}
		if len(entries) == 0 {
			return RunDetail{}, errors.New("no runs available")
		}
		runID = entries[0].RunID
	}
	if runID == "" {
		return RunDetail{}, errors.New("show requires run id or latest")
	}

	if _, err := c.ensureLab(ctx); err != nil {
		return RunDetail{}, err
	}
	record, ok, err := c.store.GetRun(ctx, runID)
	if err != nil {
		return RunDetail{}, err
	}
	if ok {
		detail := RunDetail{Run: record}
		if trace, ok, err := c.store.GetConvergenceTrace(ctx, runID); err != nil {
			return RunDetail{}, err
		} else if ok {
			detail.Trace = trace
		}
		if epochs, ok, err := c.store.GetEpochDiagnostics(ctx, runID); err != nil {
			return RunDetail{}, err
		} else if ok {
			detail.Epochs = epochs
		}
		return detail, nil
	}
	return c.runDetailFromArtifacts(runID)
}

// Density reports a run's estimated density of states. Normalized shifts
// ln g so the first bin reads zero, the convention of the exact
// references shipped with the sample systems.
func (c *Client) Density(ctx context.Context, req DensityRequest) (model.DensityRecord, error) {
	if req.RunID != "" && req.Latest {
		return model.DensityRecord{}, errors.New("use either run id or latest")
	}

	runID := req.RunID
	if req.Latest {
		entries, err := stats.ListRunIndex(c.resultsDir)
		if err != nil {
			return model.DensityRecord{}, err
		}
		if len(entries) == 0 {
			return model.DensityRecord{}, errors.New("no runs available")
		}
		runID = entries[0].RunID
	}
	if runID == "" {
		return model.DensityRecord{}, errors.New("density requires run id or latest")
	}

	if _, err := c.ensureLab(ctx); err != nil {
		return model.DensityRecord{}, err
	}
	density, ok, err := c.store.GetDensity(ctx, runID)
	if err != nil {
		return model.DensityRecord{}, err
	}
	if !ok {
		table, found, err := stats.ReadDensity(c.resultsDir, runID)
		if err != nil {
			return model.DensityRecord{}, err
		}
		if !found {
			return model.DensityRecord{}, fmt.Errorf("density not found for run id: %s", runID)
		}
		density = model.DensityRecord{
			VersionedRecord: storage.Versioned(),
			RunID:           runID,
			Bins:            table.Bins,
			LnG:             table.LnG,
			Histogram:       table.Histogram,
			BinValues:       table.BinValues,
		}
		if config, found, err := stats.ReadRunConfig(c.resultsDir, runID); err != nil {
			return model.DensityRecord{}, err
		} else if found {
			density.System = config.System
		}
	}
	if req.Normalized && len(density.LnG) > 0 {
		base := density.LnG[0]
		for i := range density.LnG {
			density.LnG[i] -= base
		}
	}
	return density, nil
}

// ConvergenceReport renders the epoch-by-epoch report of one run.
func (c *Client) ConvergenceReport(ctx context.Context, req ConvergenceRequest) (string, error) {
	if req.RunID != "" && req.Latest {
		return "", errors.New("use either run id or latest")
	}

	runID := req.RunID
	if req.Latest {
		entries, err := stats.ListRunIndex(c.resultsDir)
		if err != nil {
			return "", err
		}
		if len(entries) == 0 {
			return "", errors.New("no runs available")
		}
		runID = entries[0].RunID
	}
	if runID == "" {
		return "", errors.New("convergence requires run id or latest")
	}

	detail, err := c.ShowRun(ctx, ShowRequest{RunID: runID})
	if err != nil {
		return "", err
	}
	density, err := c.Density(ctx, DensityRequest{RunID: runID})
	if err != nil {
		return "", err
	}

	run := detail.Run
	return stats.FormatConvergenceReport(stats.RunArtifacts{
		Config: stats.RunConfig{
			RunID:    run.ID,
			System:   run.System,
			Seed:     run.Seed,
			Schedule: run.Schedule,
			Flatness: run.Flatness,
			LnF0:     run.Params.LnF0,
			LnFMin:   run.Params.LnFMin,
			Flat:     run.Params.Flat,
			SweepLen: run.Params.SweepLen,
			Alpha:    run.Params.Alpha,
			Tol:      run.Params.Tol,
			MaxSteps: run.MaxSteps,
		},
		Density: stats.DensityTable{
			Bins:      density.Bins,
			LnG:       density.LnG,
			Histogram: density.Histogram,
			BinValues: density.BinValues,
		},
		ConvergenceTrace: detail.Trace,
		Epochs:           detail.Epochs,
		Steps:            run.Steps,
		Converged:        run.Converged,
		FinalLnF:         run.FinalLnF,
	}), nil
}

func (c *Client) Diagnostics(ctx context.Context, req DiagnosticsRequest) ([]model.EpochDiagnostics, error) {
	if req.RunID != "" && req.Latest {
		return nil, errors.New("use either run id or latest")
	}
	if req.Limit < 0 {
		return nil, errors.New("limit must be >= 0")
	}

	runID := req.RunID
	if req.Latest {
		entries, err := stats.ListRunIndex(c.resultsDir)
		if err != nil {
			return nil, err
		}
		if len(entries) == 0 {
			return nil, errors.New("no runs available")
		}
		runID = entries[0].RunID
	}
	if runID == "" {
		return nil, errors.New("diagnostics requires run id or latest")
	}

	if _, err := c.ensureLab(ctx); err != nil {
		return nil, err
	}
	diagnostics, ok, err := c.store.GetEpochDiagnostics(ctx, runID)
	if err != nil {
		return nil, err
	}
	if !ok {
		diagnostics, ok, err = stats.ReadEpochDiagnostics(c.resultsDir, runID)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, fmt.Errorf("diagnostics not found for run id: %s", runID)
		}
	}
	if req.Limit > 0 && len(diagnostics) > req.Limit {
		diagnostics = diagnostics[:req.Limit]
	}
	out := make([]model.EpochDiagnostics, len(diagnostics))
	copy(out, diagnostics)
	return out, nil
}

func (c *Client) ExportRun(_ context.Context, req ExportRequest) (ExportSummary, error) {
	if req.RunID != "" && req.Latest {
		return ExportSummary{}, errors.New("use either run id or latest")
	}
	if req.RunID == "" && !req.Latest {
		return ExportSummary{}, errors.New("export requires run id or latest")
	}
	if req.OutDir == "" {
		req.OutDir = c.exportsDir
	}

	runID := req.RunID
	if req.Latest {
		entries, err := stats.ListRunIndex(c.resultsDir)
		if err != nil {
			return ExportSummary{}, err
		}
		if len(entries) == 0 {
			return ExportSummary{}, errors.New("no runs available to export")
		}
		runID = entries[0].RunID
	}

	exportedDir, err := stats.ExportRunArtifacts(c.resultsDir, runID, req.OutDir)
	if err != nil {
		return ExportSummary{}, err
	}
	return ExportSummary{RunID: runID, Directory: filepath.Clean(exportedDir)}, nil
}

// Systems lists the registered sample systems, merged with what the store
// has recorded about their past runs.
func (c *Client) Systems(ctx context.Context) ([]SystemSummaryItem, error) {
	lab, err := c.ensureLab(ctx)
	if err != nil {
		return nil, err
	}

	names := lab.RegisteredSystems()
	out := make([]SystemSummaryItem, 0, len(names))
	for _, name := range names {
		item := SystemSummaryItem{Name: name}
		if sys, ok := lab.GetSystem(name); ok {
			item.Bins = sys.Space().NumBins()
			if describer, ok := sys.(system.Describer); ok {
				item.Description = describer.Description()
			}
		}
		summary, ok, err := c.store.GetSystemSummary(ctx, name)
		if err != nil {
			return nil, err
		}
		if ok {
			item.Runs = summary.Runs
			item.BestFinalLnF = summary.BestFinalLnF
		}
		out = append(out, item)
	}
	return out, nil
}

func (c *Client) SystemSummary(ctx context.Context, name string) (SystemSummaryItem, error) {
	if name == "" {
		return SystemSummaryItem{}, errors.New("system name is required")
	}
	if _, err := c.ensureLab(ctx); err != nil {
		return SystemSummaryItem{}, err
	}
	summary, ok, err := c.store.GetSystemSummary(ctx, systemid.System(name))
	if err != nil {
		return SystemSummaryItem{}, err
	}
	if !ok {
		return SystemSummaryItem{}, fmt.Errorf("system summary not found: %s", name)
	}
	return SystemSummaryItem{
		Name:         summary.Name,
		Description:  summary.Description,
		Bins:         summary.Bins,
		Runs:         summary.Runs,
		BestFinalLnF: summary.BestFinalLnF,
	}, nil
}

func (c *Client) executeRun(ctx context.Context, req RunRequest) (RunSummary, error) {
	lab, err := c.ensureLab(ctx)
	if err != nil {
		return RunSummary{}, err
	}
	sys, ok := lab.GetSystem(req.System)
	if !ok {
		return RunSummary{}, fmt.Errorf("system not registered: %s", req.System)
	}

	schedule, err := scheduleFromName(req.Schedule, req.Alpha, req.Tol, sys.Space().NumBins())
	if err != nil {
		return RunSummary{}, err
	}
	flatness, err := flatnessFromName(req.Flatness)
	if err != nil {
		return RunSummary{}, err
	}

	result, err := lab.RunSampling(ctx, platform.SamplingConfig{
		RunID:      req.RunID,
		SystemName: req.System,
		Seed:       req.Seed,
		Schedule:   schedule,
		Flatness:   flatness,
		Params: wl.Params{
			LnF0:     req.LnF0,
			LnFMin:   req.LnFMin,
			Flat:     req.Flat,
			SweepLen: req.SweepLen,
		},
		MaxSteps: req.MaxSteps,
	})
	if err != nil {
		return RunSummary{}, err
	}

	artifacts := stats.RunArtifacts{
		Config: stats.RunConfig{
			RunID:    result.RunID,
			System:   result.System,
			Seed:     req.Seed,
			Schedule: schedule.Name(),
			Flatness: flatness.Name(),
			LnF0:     req.LnF0,
			LnFMin:   req.LnFMin,
			Flat:     req.Flat,
			SweepLen: req.SweepLen,
			Alpha:    req.Alpha,
			Tol:      req.Tol,
			MaxSteps: req.MaxSteps,
		},
		Density: stats.DensityTable{
			Bins:      len(result.LnG),
			LnG:       result.LnG,
			Histogram: result.Histogram,
			BinValues: result.BinValues,
		},
		ConvergenceTrace: result.Trace,
		Epochs:           epochDiagnostics(result.Epochs),
		Steps:            result.Steps,
		Converged:        result.Converged,
		FinalLnF:         result.FinalLnF,
	}
	runDir, err := stats.WriteRunArtifacts(c.resultsDir, artifacts)
	if err != nil {
		return RunSummary{}, err
	}
	if _, err := stats.WriteConvergenceReport(runDir, artifacts); err != nil {
		return RunSummary{}, err
	}
	if err := stats.AppendRunIndex(c.resultsDir, stats.RunIndexEntry{
		RunID:        result.RunID,
		System:       result.System,
		Schedule:     schedule.Name(),
		Flatness:     flatness.Name(),
		Seed:         req.Seed,
		Steps:        result.Steps,
		Epochs:       len(result.Epochs),
		Converged:    result.Converged,
		FinalLnF:     result.FinalLnF,
		CreatedAtUTC: result.CreatedAtUTC,
	}); err != nil {
		return RunSummary{}, err
	}

	return RunSummary{
		RunID:        result.RunID,
		System:       result.System,
		ArtifactsDir: filepath.Clean(runDir),
		Steps:        result.Steps,
		Epochs:       len(result.Epochs),
		Converged:    result.Converged,
		FinalLnF:     result.FinalLnF,
	}, nil
}

func (c *Client) runDetailFromArtifacts(runID string) (RunDetail, error) {
	config, ok, err := stats.ReadRunConfig(c.resultsDir, runID)
	if err != nil {
		return RunDetail{}, err
	}
	if !ok {
		return RunDetail{}, fmt.Errorf("run not found: %s", runID)
	}

	record := model.RunRecord{
		VersionedRecord: storage.Versioned(),
		ID:              config.RunID,
		System:          config.System,
		Seed:            config.Seed,
		Schedule:        config.Schedule,
		Flatness:        config.Flatness,
		Params: model.RunParams{
			LnF0:     config.LnF0,
			LnFMin:   config.LnFMin,
			Flat:     config.Flat,
			SweepLen: config.SweepLen,
			Alpha:    config.Alpha,
			Tol:      config.Tol,
		},
		MaxSteps: config.MaxSteps,
	}

	entries, err := stats.ListRunIndex(c.resultsDir)
	if err != nil {
		return RunDetail{}, err
	}
	for _, entry := range entries {
		if entry.RunID == runID {
			record.Steps = entry.Steps
			record.Epochs = entry.Epochs
			record.Converged = entry.Converged
			record.FinalLnF = entry.FinalLnF
			record.CreatedAtUTC = entry.CreatedAtUTC
			break
		}
	}

	detail := RunDetail{Run: record}
	if trace, ok, err := stats.ReadConvergenceTrace(c.resultsDir, runID); err != nil {
		return RunDetail{}, err
	} else if ok {
		detail.Trace = trace
	}
	if epochs, ok, err := stats.ReadEpochDiagnostics(c.resultsDir, runID); err != nil {
		return RunDetail{}, err
	} else if ok {
		detail.Epochs = epochs
	}
	return detail, nil
}

func (c *Client) ensureLab(ctx context.Context) (*platform.Lab, error) {
	if c.lab != nil {
		return c.lab, nil
	}
	lab := platform.NewLab(platform.Config{Store: c.store, Systems: DefaultSystems()})
	if err := lab.Init(ctx); err != nil {
		return nil, err
	}
	c.lab = lab
	return c.lab, nil
}

// DefaultSystems returns the sample systems every client registers.
func DefaultSystems() []system.System {
	return []system.System{
		system.Coin{},
		system.Dice{},
		system.DefaultHarmonic(),
		system.Paramagnet{Spins: 8},
	}
}

func withRunDefaults(req RunRequest) RunRequest {
	if req.System == "" {
		req.System = "coin"
	}
	if req.Schedule == "" {
		req.Schedule = "geometric"
	}
	if req.Flatness == "" {
		req.Flatness = "fraction"
	}
	if req.MaxSteps == 0 {
		req.MaxSteps = 10_000_000
	}
	defaults := wl.DefaultParams()
	if req.LnF0 == 0 {
		req.LnF0 = defaults.LnF0
	}
	if req.LnFMin == 0 {
		req.LnFMin = defaults.LnFMin
	}
	if req.Flat == 0 {
		req.Flat = defaults.Flat
	}
	if req.SweepLen == 0 {
		req.SweepLen = defaults.SweepLen
	}
	if req.Alpha == 0 {
		req.Alpha = 0.5
	}
	if req.Tol == 0 {
		req.Tol = 1e-8
	}
	return req
}

func newRunID(systemName string, seed int64) string {
	return fmt.Sprintf("%s-%d-%d", systemid.System(systemName), seed, time.Now().UTC().Unix())
}

func epochDiagnostics(epochs []wl.EpochRecord) []model.EpochDiagnostics {
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

func scheduleFromName(name string, alpha, tol float64, bins int) (wl.Schedule, error) {
	switch systemid.Schedule(name) {
	case "geometric":
		return wl.Geometric{Alpha: alpha, Tol: tol}, nil
	case "one-over-t":
		return wl.OneOverT{Alpha: alpha, TargetBins: bins, Tol: tol}, nil
	default:
		return nil, fmt.Errorf("unsupported schedule: %s", name)
	}
}

func flatnessFromName(name string) (wl.Flatness, error) {
	switch systemid.Flatness(name) {
	case "fraction":
		return wl.Fraction{}, nil
	case "rms":
		return wl.RMS{}, nil
	default:
		return nil, fmt.Errorf("unsupported flatness criterion: %s", name)
	}
}
