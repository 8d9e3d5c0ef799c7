package learn

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Counters are the four independent monotone-until-reset integers owned by
// the loop controller. Each is reset only by its corresponding scheduler
// firing.
type Counters struct {
	AtomsSinceTrain  int `yaml:"atoms_since_train"`
	AtomsSinceWrite  int `yaml:"atoms_since_write"`
	TrainsSinceWrite int `yaml:"trains_since_write"`
	TrainingsDone    int `yaml:"trainings_done"`
}

// Checkpoint is a serialized snapshot of run state sufficient to resume the
// loop from the next unprocessed step. Written atomically so a reader never
// observes a partial checkpoint.
type Checkpoint struct {
	StepIndex   int       `yaml:"step_index"`
	OracleCalls int       `yaml:"oracle_calls"`
	Counters    Counters  `yaml:"counters"`
	Saturated   bool      `yaml:"saturated"`
	ModelPath   string    `yaml:"model_path"`
	Config      RunConfig `yaml:"config"`

	// Structure state. Velocities are present only for on-the-fly runs.
	Frame      *Frame     `yaml:"frame,omitempty"`
	Velocities []Vec3     `yaml:"velocities,omitempty"`
	OTF        *OTFConfig `yaml:"otf,omitempty"`
}

// Write persists the checkpoint to path with write-to-temp-then-rename
// semantics.
func (c *Checkpoint) Write(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("encoding checkpoint: %w", err)
	}
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp*")
	if err != nil {
		return fmt.Errorf("creating checkpoint temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("writing checkpoint: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("closing checkpoint temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("renaming checkpoint into place: %w", err)
	}
	return nil
}

// LoadCheckpoint reads a checkpoint previously written by Write.
func LoadCheckpoint(path string) (*Checkpoint, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading checkpoint: %w", err)
	}
	var c Checkpoint
	if err := yaml.Unmarshal(raw, &c); err != nil {
		return nil, fmt.Errorf("parsing checkpoint: %w", err)
	}
	if err := c.Config.Validate(); err != nil {
		return nil, fmt.Errorf("checkpoint carries invalid config: %w", err)
	}
	return &c, nil
}
