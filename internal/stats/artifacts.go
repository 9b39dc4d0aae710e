// Package stats writes the on-disk artifacts of sampling runs: per-run
// JSON tables, a CSV rendering of the density, a run index, and plain
// text convergence reports.
package stats

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"wanglandau/internal/model"
)

const runIndexFile = "run_index.json"

// RunConfig is the file-level view of one run's configuration.
type RunConfig struct {
	RunID    string  `json:"run_id"`
	System   string  `json:"system"`
	Seed     int64   `json:"seed"`
	Schedule string  `json:"schedule"`
	Flatness string  `json:"flatness"`
	LnF0     float64 `json:"ln_f0"`
	LnFMin   float64 `json:"ln_f_min"`
	Flat     float64 `json:"flat"`
	SweepLen int     `json:"sweep_len"`
	Alpha    float64 `json:"alpha"`
	Tol      float64 `json:"tol"`
	MaxSteps uint64  `json:"max_steps"`
}

// DensityTable is the file-level view of an estimated density of states.
type DensityTable struct {
	Bins      int       `json:"bins"`
	LnG       []float64 `json:"ln_g"`
	Histogram []uint64  `json:"histogram"`
	BinValues []float64 `json:"bin_values,omitempty"`
}

// RunArtifacts bundles everything WriteRunArtifacts persists for one run.
type RunArtifacts struct {
	Config           RunConfig                `json:"config"`
	Density          DensityTable             `json:"density"`
	ConvergenceTrace []float64                `json:"convergence_trace"`
	Epochs           []model.EpochDiagnostics `json:"epochs,omitempty"`
	Steps            uint64                   `json:"steps"`
	Converged        bool                     `json:"converged"`
	FinalLnF         float64                  `json:"final_ln_f"`
}

type RunIndexEntry struct {
	RunID        string  `json:"run_id"`
	System       string  `json:"system"`
	Schedule     string  `json:"schedule"`
	Flatness     string  `json:"flatness"`
	Seed         int64   `json:"seed"`
	Steps        uint64  `json:"steps"`
	Epochs       int     `json:"epochs"`
	Converged    bool    `json:"converged"`
	FinalLnF     float64 `json:"final_ln_f"`
	CreatedAtUTC string  `json:"created_at_utc"`
}

// WriteRunArtifacts persists one run under baseDir/<runID> and returns
// the run directory.
func WriteRunArtifacts(baseDir string, artifacts RunArtifacts) (string, error) {
	if artifacts.Config.RunID == "" {
		return "", fmt.Errorf("run id is required")
	}

	runDir := filepath.Join(baseDir, artifacts.Config.RunID)
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		return "", err
	}

	if err := writeJSON(filepath.Join(runDir, "config.json"), artifacts.Config); err != nil {
		return "", err
	}
	if err := writeJSON(filepath.Join(runDir, "density.json"), artifacts.Density); err != nil {
		return "", err
	}
	if err := writeJSON(filepath.Join(runDir, "convergence.json"), map[string]any{
		"ln_f_by_epoch": artifacts.ConvergenceTrace,
		"final_ln_f":    artifacts.FinalLnF,
		"steps":         artifacts.Steps,
		"converged":     artifacts.Converged,
	}); err != nil {
		return "", err
	}
	if err := writeJSON(filepath.Join(runDir, "epochs.json"), artifacts.Epochs); err != nil {
		return "", err
	}
	if err := WriteDensityCSV(runDir, artifacts.Density); err != nil {
		return "", err
	}

	return runDir, nil
}

// AppendRunIndex upserts an entry into baseDir's run index keyed by run id.
func AppendRunIndex(baseDir string, entry RunIndexEntry) error {
	if entry.RunID == "" {
		return fmt.Errorf("run id is required")
	}
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return err
	}

	index, err := ListRunIndex(baseDir)
	if err != nil {
		return err
	}

	for i := range index {
		if index[i].RunID == entry.RunID {
			index[i] = entry
			return writeJSON(filepath.Join(baseDir, runIndexFile), index)
		}
	}

	index = append(index, entry)
	return writeJSON(filepath.Join(baseDir, runIndexFile), index)
}

// ListRunIndex returns the run index newest first.
func ListRunIndex(baseDir string) ([]RunIndexEntry, error) {
	path := filepath.Join(baseDir, runIndexFile)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return []RunIndexEntry{}, nil
		}
		return nil, err
	}

	var entries []RunIndexEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, err
	}

	type indexedEntry struct {
		entry RunIndexEntry
		idx   int
	}
	indexed := make([]indexedEntry, len(entries))
	for i := range entries {
		indexed[i] = indexedEntry{entry: entries[i], idx: i}
	}
	sort.Slice(indexed, func(i, j int) bool {
		if indexed[i].entry.CreatedAtUTC == indexed[j].entry.CreatedAtUTC {
			// Prefer later appended entries for equal timestamps.
			return indexed[i].idx > indexed[j].idx
		}
		return indexed[i].entry.CreatedAtUTC > indexed[j].entry.CreatedAtUTC
	})

	sorted := make([]RunIndexEntry, 0, len(indexed))
	for _, item := range indexed {
		sorted = append(sorted, item.entry)
	}
	return sorted, nil
}

// ExportRunArtifacts copies one run's artifact files into outDir/<runID>.
func ExportRunArtifacts(baseDir, runID, outDir string) (string, error) {
	if runID == "" {
		return "", fmt.Errorf("run id is required")
	}

	src := filepath.Join(baseDir, runID)
	if _, err := os.Stat(src); err != nil {
		return "", err
	}

	dst := filepath.Join(outDir, runID)
	if err := os.MkdirAll(dst, 0o755); err != nil {
		return "", err
	}

	files := []string{"config.json", "density.json", "convergence.json", "epochs.json"}
	for _, file := range files {
		if err := copyFile(filepath.Join(src, file), filepath.Join(dst, file)); err != nil {
			return "", err
		}
	}
	for _, optional := range []string{"density.csv", "convergence_report.txt"} {
		path := filepath.Join(src, optional)
		if _, err := os.Stat(path); err == nil {
			if err := copyFile(path, filepath.Join(dst, optional)); err != nil {
				return "", err
			}
		} else if !os.IsNotExist(err) {
			return "", err
		}
	}

	return dst, nil
}

func ReadRunConfig(baseDir, runID string) (RunConfig, bool, error) {
	path := filepath.Join(baseDir, runID, "config.json")
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return RunConfig{}, false, nil
		}
		return RunConfig{}, false, err
	}

	var cfg RunConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return RunConfig{}, false, err
	}
	return cfg, true, nil
}

func ReadDensity(baseDir, runID string) (DensityTable, bool, error) {
	path := filepath.Join(baseDir, runID, "density.json")
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DensityTable{}, false, nil
		}
		return DensityTable{}, false, err
	}

	var table DensityTable
	if err := json.Unmarshal(data, &table); err != nil {
		return DensityTable{}, false, err
	}
	return table, true, nil
}

func ReadEpochDiagnostics(baseDir, runID string) ([]model.EpochDiagnostics, bool, error) {
	path := filepath.Join(baseDir, runID, "epochs.json")
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, err
	}

	var epochs []model.EpochDiagnostics
	if err := json.Unmarshal(data, &epochs); err != nil {
		return nil, false, err
	}
	return epochs, true, nil
}

func ReadConvergenceTrace(baseDir, runID string) ([]float64, bool, error) {
	path := filepath.Join(baseDir, runID, "convergence.json")
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, err
	}

	var payload struct {
		LnFByEpoch []float64 `json:"ln_f_by_epoch"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, false, err
	}
	return payload.LnFByEpoch, true, nil
}

// WriteDensityCSV renders the density table as density.csv in runDir.
// The bin_value column is present only when the table carries bin values.
func WriteDensityCSV(runDir string, table DensityTable) error {
	path := filepath.Join(runDir, "density.csv")
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	labeled := len(table.BinValues) == len(table.LnG) && len(table.BinValues) > 0

	writer := csv.NewWriter(file)
	header := []string{"bin", "ln_g", "visits"}
	if labeled {
		header = []string{"bin", "bin_value", "ln_g", "visits"}
	}
	if err := writer.Write(header); err != nil {
		return err
	}
	for i, lnG := range table.LnG {
		var visits uint64
		if i < len(table.Histogram) {
			visits = table.Histogram[i]
		}
		row := []string{
			strconv.Itoa(i),
			strconv.FormatFloat(lnG, 'f', -1, 64),
			strconv.FormatUint(visits, 10),
		}
		if labeled {
			row = []string{
				strconv.Itoa(i),
				strconv.FormatFloat(table.BinValues[i], 'f', -1, 64),
				strconv.FormatFloat(lnG, 'f', -1, 64),
				strconv.FormatUint(visits, 10),
			}
		}
		if err := writer.Write(row); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

// ReadDensityCSV parses a density.csv back into ln g values by header
// position.
func ReadDensityCSV(baseDir, runID string) ([]float64, bool, error) {
	path := filepath.Join(baseDir, runID, "density.csv")
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, err
	}
	defer file.Close()

	reader := csv.NewReader(file)
	header, err := reader.Read()
	if err != nil {
		if err == io.EOF {
			return []float64{}, true, nil
		}
		return nil, false, err
	}
	column := -1
	for i, name := range header {
		if strings.TrimSpace(name) == "ln_g" {
			column = i
			break
		}
	}
	if column < 0 {
		return nil, false, fmt.Errorf("density csv header has no ln_g column")
	}

	values := make([]float64, 0, 128)
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, false, err
		}
		if column >= len(record) {
			return nil, false, fmt.Errorf("density csv row has %d columns, need %d", len(record), column+1)
		}
		value, err := strconv.ParseFloat(record[column], 64)
		if err != nil {
			return nil, false, err
		}
		values = append(values, value)
	}
	return values, true, nil
}

func writeJSON(path string, value any) error {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	return os.WriteFile(path, data, 0o644)
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Sync()
}
