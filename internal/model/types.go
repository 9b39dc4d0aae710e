package model

// VersionedRecord captures schema and codec evolution for persistent data.
type VersionedRecord struct {
	SchemaVersion int `json:"schema_version"`
	CodecVersion  int `json:"codec_version"`
}

// RunRecord is the persisted configuration and outcome of one sampling run.
type RunRecord struct {
	VersionedRecord
	ID           string    `json:"id"`
	System       string    `json:"system"`
	Seed         int64     `json:"seed"`
	Schedule     string    `json:"schedule"`
	Flatness     string    `json:"flatness"`
	Params       RunParams `json:"params"`
	MaxSteps     uint64    `json:"max_steps"`
	Steps        uint64    `json:"steps"`
	Epochs       int       `json:"epochs"`
	Converged    bool      `json:"converged"`
	FinalLnF     float64   `json:"final_ln_f"`
	CreatedAtUTC string    `json:"created_at_utc"`
}

// RunParams flattens the walk parameters for persistence. Alpha and Tol
// belong to the schedule named in the run record.
type RunParams struct {
	LnF0     float64 `json:"ln_f0"`
	LnFMin   float64 `json:"ln_f_min"`
	Flat     float64 `json:"flat"`
	SweepLen int     `json:"sweep_len"`
	Alpha    float64 `json:"alpha"`
	Tol      float64 `json:"tol"`
}

// DensityRecord holds the converged (or partial) density-of-states table
// of a run, with the final epoch's histogram alongside.
type DensityRecord struct {
	VersionedRecord
	RunID     string    `json:"run_id"`
	System    string    `json:"system"`
	Bins      int       `json:"bins"`
	LnG       []float64 `json:"ln_g"`
	Histogram []uint64  `json:"histogram"`
	BinValues []float64 `json:"bin_values,omitempty"`
}

// EpochDiagnostics mirrors one flatness-triggered schedule advance.
type EpochDiagnostics struct {
	Epoch      int     `json:"epoch"`
	LnF        float64 `json:"ln_f"`
	Steps      uint64  `json:"steps"`
	MinVisits  uint64  `json:"min_visits"`
	MeanVisits float64 `json:"mean_visits"`
	MaxVisits  uint64  `json:"max_visits"`
}

// SystemSummary aggregates what the store knows about one sample system.
type SystemSummary struct {
	VersionedRecord
	Name         string  `json:"name"`
	Description  string  `json:"description"`
	Bins         int     `json:"bins"`
	Runs         int     `json:"runs"`
	BestFinalLnF float64 `json:"best_final_ln_f"`
}
