package storage

import (
	"encoding/json"
	"errors"

	"wanglandau/internal/model"
)

const (
	CurrentSchemaVersion = 1
	CurrentCodecVersion  = 1
)

var ErrVersionMismatch = errors.New("record version mismatch")

// Versioned stamps a record with the versions this codec writes.
func Versioned() model.VersionedRecord {
	return model.VersionedRecord{
		SchemaVersion: CurrentSchemaVersion,
		CodecVersion:  CurrentCodecVersion,
	}
}

func EncodeRun(r model.RunRecord) ([]byte, error) {
	return json.Marshal(r)
}

func DecodeRun(data []byte) (model.RunRecord, error) {
	var run model.RunRecord
	if err := json.Unmarshal(data, &run); err != nil {
		return model.RunRecord{}, err
	}
	if err := checkVersion(run.VersionedRecord); err != nil {
		return model.RunRecord{}, err
	}
	return run, nil
}

func EncodeDensity(d model.DensityRecord) ([]byte, error) {
	return json.Marshal(d)
}

func DecodeDensity(data []byte) (model.DensityRecord, error) {
	var density model.DensityRecord
	if err := json.Unmarshal(data, &density); err != nil {
		return model.DensityRecord{}, err
	}
	if err := checkVersion(density.VersionedRecord); err != nil {
		return model.DensityRecord{}, err
	}
	return density, nil
}

func EncodeSystemSummary(s model.SystemSummary) ([]byte, error) {
	return json.Marshal(s)
}

func DecodeSystemSummary(data []byte) (model.SystemSummary, error) {
	var summary model.SystemSummary
	if err := json.Unmarshal(data, &summary); err != nil {
		return model.SystemSummary{}, err
	}
	if err := checkVersion(summary.VersionedRecord); err != nil {
		return model.SystemSummary{}, err
	}
	return summary, nil
}

func EncodeConvergenceTrace(trace []float64) ([]byte, error) {
	return json.Marshal(trace)
}

func DecodeConvergenceTrace(data []byte) ([]float64, error) {
	var trace []float64
	if err := json.Unmarshal(data, &trace); err != nil {
		return nil, err
	}
	return trace, nil
}

func EncodeEpochDiagnostics(diagnostics []model.EpochDiagnostics) ([]byte, error) {
	return json.Marshal(diagnostics)
}

func DecodeEpochDiagnostics(data []byte) ([]model.EpochDiagnostics, error) {
	var diagnostics []model.EpochDiagnostics
	if err := json.Unmarshal(data, &diagnostics); err != nil {
		return nil, err
	}
	return diagnostics, nil
}

func checkVersion(v model.VersionedRecord) error {
	if v.SchemaVersion != CurrentSchemaVersion || v.CodecVersion != CurrentCodecVersion {
		return ErrVersionMismatch
	}
	return nil
}
