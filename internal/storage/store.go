package storage

import (
	"context"

	"wanglandau/internal/model"
)

// Store defines persistence operations for sampling results.
type Store interface {
	Init(ctx context.Context) error
	SaveRun(ctx context.Context, run model.RunRecord) error
	GetRun(ctx context.Context, id string) (model.RunRecord, bool, error)
	SaveDensity(ctx context.Context, density model.DensityRecord) error
	GetDensity(ctx context.Context, runID string) (model.DensityRecord, bool, error)
	SaveConvergenceTrace(ctx context.Context, runID string, trace []float64) error
	GetConvergenceTrace(ctx context.Context, runID string) ([]float64, bool, error)
	SaveEpochDiagnostics(ctx context.Context, runID string, diagnostics []model.EpochDiagnostics) error
	GetEpochDiagnostics(ctx context.Context, runID string) ([]model.EpochDiagnostics, bool, error)
	SaveSystemSummary(ctx context.Context, summary model.SystemSummary) error
	GetSystemSummary(ctx context.Context, name string) (model.SystemSummary, bool, error)
}

// Resetter is implemented by stores that can drop all persisted records.
type Resetter interface {
	Reset(ctx context.Context) error
}
