package learn

import (
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckpoint_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "run_checkpoint.yaml")

	cfg := DefaultRunConfig()
	cfg.Selection.MaxModelSize = 100
	cp := &Checkpoint{
		StepIndex:   17,
		OracleCalls: 4,
		Counters:    Counters{AtomsSinceTrain: 2, AtomsSinceWrite: 9, TrainsSinceWrite: 1, TrainingsDone: 3},
		Saturated:   true,
		ModelPath:   "run_model.json",
		Config:      cfg,
	}
	require.NoError(t, cp.Write(path))

	got, err := LoadCheckpoint(path)
	require.NoError(t, err)
	assert.Equal(t, cp.StepIndex, got.StepIndex)
	assert.Equal(t, cp.OracleCalls, got.OracleCalls)
	assert.Equal(t, cp.Counters, got.Counters)
	assert.True(t, got.Saturated)
	assert.Equal(t, cp.ModelPath, got.ModelPath)
	assert.Equal(t, 100, got.Config.Selection.MaxModelSize)
	// The default no-ceiling value survives serialization.
	assert.True(t, math.IsInf(got.Config.Trust.MaxForceError, 1))
}

func TestCheckpoint_StructureState(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "run_checkpoint.yaml")

	cfg := DefaultRunConfig()
	cp := &Checkpoint{
		Config: cfg,
		Frame: &Frame{
			Species:   []SpeciesCode{1, 8},
			Positions: []Vec3{{0, 0, 0}, {1.2, 0, 0}},
		},
		Velocities: []Vec3{{0.1, 0, 0}, {0, 0, 0}},
		OTF: &OTFConfig{
			MD: MDConfig{Timestep: 0.001, Steps: 50, Masses: map[SpeciesCode]float64{1: 1.008, 8: 15.999}},
		},
	}
	require.NoError(t, cp.Write(path))

	got, err := LoadCheckpoint(path)
	require.NoError(t, err)
	require.NotNil(t, got.Frame)
	assert.Equal(t, cp.Frame.Species, got.Frame.Species)
	assert.Equal(t, cp.Velocities, got.Velocities)
	require.NotNil(t, got.OTF)
	assert.Equal(t, 0.001, got.OTF.MD.Timestep)
}

func TestCheckpoint_WriteLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "run_checkpoint.yaml")
	cp := &Checkpoint{Config: DefaultRunConfig()}
	require.NoError(t, cp.Write(path))
	require.NoError(t, cp.Write(path)) // overwrite in place

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.False(t, strings.Contains(entries[0].Name(), ".tmp"))
}

func TestLoadCheckpoint_RejectsInvalidConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.yaml")
	cfg := DefaultRunConfig()
	cfg.FrameStride = 0
	cp := &Checkpoint{Config: cfg}
	require.NoError(t, cp.Write(path))

	_, err := LoadCheckpoint(path)
	assert.Error(t, err)
}

func TestLoadCheckpoint_MissingFile(t *testing.T) {
	_, err := LoadCheckpoint(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}
