package storage

import (
	"context"
	"sync"

	"wanglandau/internal/model"
)

type MemoryStore struct {
	mu          sync.RWMutex
	initialized bool
	runs        map[string]model.RunRecord
	densities   map[string]model.DensityRecord
	traces      map[string][]float64
	diagnostics map[string][]model.EpochDiagnostics
	systems     map[string]model.SystemSummary
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Init(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.initialized = true
	s.runs = make(map[string]model.RunRecord)
	s.densities = make(map[string]model.DensityRecord)
	s.traces = make(map[string][]float64)
	s.diagnostics = make(map[string][]model.EpochDiagnostics)
	s.systems = make(map[string]model.SystemSummary)
	return nil
}

// Reset drops every record; Init state is preserved.
func (s *MemoryStore) Reset(ctx context.Context) error {
	return s.Init(ctx)
}

func (s *MemoryStore) SaveRun(_ context.Context, run model.RunRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.runs[run.ID] = run
	return nil
}

func (s *MemoryStore) GetRun(_ context.Context, id string) (model.RunRecord, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	run, ok := s.runs[id]
	return run, ok, nil
}

func (s *MemoryStore) SaveDensity(_ context.Context, density model.DensityRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	copied := density
	copied.LnG = append([]float64(nil), density.LnG...)
	copied.Histogram = append([]uint64(nil), density.Histogram...)
	copied.BinValues = append([]float64(nil), density.BinValues...)
	s.densities[density.RunID] = copied
	return nil
}

func (s *MemoryStore) GetDensity(_ context.Context, runID string) (model.DensityRecord, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	density, ok := s.densities[runID]
	if !ok {
		return model.DensityRecord{}, false, nil
	}
	copied := density
	copied.LnG = append([]float64(nil), density.LnG...)
	copied.Histogram = append([]uint64(nil), density.Histogram...)
	copied.BinValues = append([]float64(nil), density.BinValues...)
	return copied, true, nil
}

func (s *MemoryStore) SaveConvergenceTrace(_ context.Context, runID string, trace []float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.traces[runID] = append([]float64(nil), trace...)
	return nil
}

func (s *MemoryStore) GetConvergenceTrace(_ context.Context, runID string) ([]float64, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	trace, ok := s.traces[runID]
	if !ok {
		return nil, false, nil
	}
	return append([]float64(nil), trace...), true, nil
}

func (s *MemoryStore) SaveEpochDiagnostics(_ context.Context, runID string, diagnostics []model.EpochDiagnostics) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	copied := make([]model.EpochDiagnostics, len(diagnostics))
	copy(copied, diagnostics)
	s.diagnostics[runID] = copied
	return nil
}

func (s *MemoryStore) GetEpochDiagnostics(_ context.Context, runID string) ([]model.EpochDiagnostics, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	diagnostics, ok := s.diagnostics[runID]
	if !ok {
		return nil, false, nil
	}
	copied := make([]model.EpochDiagnostics, len(diagnostics))
	copy(copied, diagnostics)
	return copied, true, nil
}

func (s *MemoryStore) SaveSystemSummary(_ context.Context, summary model.SystemSummary) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.systems[summary.Name] = summary
	return nil
}

func (s *MemoryStore) GetSystemSummary(_ context.Context, name string) (model.SystemSummary, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	summary, ok := s.systems[name]
	return summary, ok, nil
}
