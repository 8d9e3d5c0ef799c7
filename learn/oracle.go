package learn

import (
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
)

// OracleResult is the ground-truth calculation's output for one frame.
type OracleResult struct {
	Forces []Vec3      `json:"forces"`
	Energy *float64    `json:"energy,omitempty"`
	Stress *[6]float64 `json:"stress,omitempty"`
}

// Oracle is the expensive ground-truth calculation used to label selected
// atoms. Compute blocks until the calculation finishes and returns an error
// on any failure; the controller treats oracle failure as fatal to the run.
type Oracle interface {
	Compute(frame *Frame) (OracleResult, error)
}

// OracleFunc adapts a plain function to the Oracle interface.
type OracleFunc func(frame *Frame) (OracleResult, error)

func (f OracleFunc) Compute(frame *Frame) (OracleResult, error) {
	return f(frame)
}

// CommandOracle invokes an external ground-truth program. The frame is
// serialized to an input file inside WorkDir, the program is run with
// worker/pool counts on its command line, and its JSON output file is
// parsed back. The call is synchronous; any internal parallelism belongs to
// the external program.
type CommandOracle struct {
	Path      string   // executable to run
	WorkDir   string   // scratch directory for input/output files
	Workers   int      // worker-process count passed to the program
	Pools     int      // pool count passed to the program
	ExtraArgs []string // program-specific extra arguments
}

// NewCommandOracle validates the adapter's configuration.
func NewCommandOracle(path, workDir string, workers, pools int, extraArgs []string) (*CommandOracle, error) {
	if path == "" {
		return nil, fmt.Errorf("oracle executable path is empty")
	}
	if workers < 1 || pools < 0 {
		return nil, fmt.Errorf("oracle workers must be >= 1 and pools >= 0, got workers=%d pools=%d", workers, pools)
	}
	return &CommandOracle{Path: path, WorkDir: workDir, Workers: workers, Pools: pools, ExtraArgs: extraArgs}, nil
}

type oracleInput struct {
	Species   []SpeciesCode `json:"species"`
	Positions []Vec3        `json:"positions"`
	Cell      [3][3]float64 `json:"cell"`
}

// Compute runs the external program on the frame and parses its output.
func (o *CommandOracle) Compute(frame *Frame) (OracleResult, error) {
	inPath := filepath.Join(o.WorkDir, "oracle_input.json")
	outPath := filepath.Join(o.WorkDir, "oracle_output.json")

	in, err := json.Marshal(oracleInput{Species: frame.Species, Positions: frame.Positions, Cell: frame.Cell})
	if err != nil {
		return OracleResult{}, fmt.Errorf("encoding oracle input: %w", err)
	}
	if err := os.WriteFile(inPath, in, 0o644); err != nil {
		return OracleResult{}, fmt.Errorf("writing oracle input: %w", err)
	}

	args := []string{
		"--input", inPath,
		"--output", outPath,
		"--workers", strconv.Itoa(o.Workers),
	}
	if o.Pools > 0 {
		args = append(args, "--pools", strconv.Itoa(o.Pools))
	}
	args = append(args, o.ExtraArgs...)

	cmd := exec.Command(o.Path, args...)
	cmd.Dir = o.WorkDir
	var stderr strings.Builder
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return OracleResult{}, fmt.Errorf("oracle %s failed: %w (stderr: %s)", o.Path, err, strings.TrimSpace(stderr.String()))
	}

	raw, err := os.ReadFile(outPath)
	if err != nil {
		return OracleResult{}, fmt.Errorf("reading oracle output: %w", err)
	}
	var result OracleResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return OracleResult{}, fmt.Errorf("parsing oracle output: %w", err)
	}
	if len(result.Forces) != frame.NumAtoms() {
		return OracleResult{}, fmt.Errorf("oracle returned %d forces for %d atoms", len(result.Forces), frame.NumAtoms())
	}
	return result, nil
}
