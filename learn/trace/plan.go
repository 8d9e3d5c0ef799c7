package trace

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

// TrainingPlan is the append-only audit trail of admission decisions: one
// record per step where trust failed, keyed by step index. Replaying the
// plan against a fresh surrogate reproduces the run's training set.
type TrainingPlan struct {
	Steps map[int][]PlanEntry `json:"steps"`
}

// NewTrainingPlan creates an empty TrainingPlan.
func NewTrainingPlan() *TrainingPlan {
	return &TrainingPlan{Steps: make(map[int][]PlanEntry)}
}

// Record stores the flagged-atom entries for a step. Records are never
// mutated after creation; re-recording a step index is a programmer error.
func (p *TrainingPlan) Record(step int, entries []PlanEntry) {
	p.Steps[step] = entries
}

// StepIndices returns the recorded step indices, ascending.
func (p *TrainingPlan) StepIndices() []int {
	out := make([]int, 0, len(p.Steps))
	for step := range p.Steps {
		out = append(out, step)
	}
	sort.Ints(out)
	return out
}

// WriteFile persists the plan as a single structured JSON file, atomically.
func (p *TrainingPlan) WriteFile(path string) error {
	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding training plan: %w", err)
	}
	return writeFileAtomic(path, data)
}

// LoadTrainingPlan reads a plan previously written by WriteFile.
func LoadTrainingPlan(path string) (*TrainingPlan, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading training plan: %w", err)
	}
	plan := NewTrainingPlan()
	if err := json.Unmarshal(raw, plan); err != nil {
		return nil, fmt.Errorf("parsing training plan: %w", err)
	}
	return plan, nil
}

// RunLog collects the per-step observational records of a run.
type RunLog struct {
	Steps []StepRecord `json:"steps"`
}

// NewRunLog creates a RunLog ready for recording.
func NewRunLog() *RunLog {
	return &RunLog{Steps: make([]StepRecord, 0)}
}

// Append adds a step record.
func (l *RunLog) Append(record StepRecord) {
	l.Steps = append(l.Steps, record)
}

// WriteFile persists the log as JSON, atomically.
func (l *RunLog) WriteFile(path string) error {
	data, err := json.MarshalIndent(l, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding run log: %w", err)
	}
	return writeFileAtomic(path, data)
}

// writeFileAtomic writes via a temp file in the target directory followed
// by a rename, so a reader never observes a partially written file.
func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("writing %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("closing %s: %w", path, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("renaming %s: %w", path, err)
	}
	return nil
}
