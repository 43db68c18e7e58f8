package metrics

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// FileResult is one benchmark row: which capture was reconstructed, how long
// it took, and how it scored when a ground-truth pair existed.
type FileResult struct {
	File       string             `json:"file"`
	Iterations int                `json:"iterations"`
	Seconds    float64            `json:"seconds"`
	Metrics    map[string]float64 `json:"metrics,omitempty"`
}

// Summary carries the aggregate statistics over all scored files.
type Summary struct {
	Mean map[string]float64 `json:"mean"`
	Std  map[string]float64 `json:"std"`
}

// Report is the metrics.json document a benchmark run writes to its output
// directory.
type Report struct {
	RunID   string       `json:"run_id"`
	Method  string       `json:"method"`
	Files   []FileResult `json:"files"`
	Summary *Summary     `json:"summary,omitempty"`
}

// Summarize fills the aggregate section from the scored file rows. Rows
// without metrics (no ground truth) are skipped; if none were scored the
// summary stays nil.
func (r *Report) Summarize() {
	var scored []map[string]float64
	for _, f := range r.Files {
		if len(f.Metrics) > 0 {
			scored = append(scored, f.Metrics)
		}
	}
	if len(scored) == 0 {
		return
	}
	mean, std := Aggregate(scored)
	r.Summary = &Summary{Mean: mean, Std: std}
}

// WriteFile writes the report as indented JSON, creating parent directories
// as needed.
func (r *Report) WriteFile(path string) error {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding metrics report: %w", err)
	}
	data = append(data, '\n')
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating report directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing metrics report: %w", err)
	}
	return nil
}
