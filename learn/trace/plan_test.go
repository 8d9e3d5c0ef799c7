package trace

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTrainingPlan_RecordAndStepIndices(t *testing.T) {
	p := NewTrainingPlan()
	p.Record(7, []PlanEntry{{Atom: 2, Uncertainty: 0.4}})
	p.Record(3, []PlanEntry{{Atom: 0, Error: 0.9}, {Atom: 5, Error: 0.2}})

	assert.Equal(t, []int{3, 7}, p.StepIndices())
	assert.Len(t, p.Steps[3], 2)
}

func TestTrainingPlan_WriteAndLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "plan.json")

	p := NewTrainingPlan()
	p.Record(0, []PlanEntry{{Atom: 1, Uncertainty: 0.5, Error: 0.1}})
	p.Record(4, nil)
	require.NoError(t, p.WriteFile(path))

	got, err := LoadTrainingPlan(path)
	require.NoError(t, err)
	assert.Equal(t, p.StepIndices(), got.StepIndices())
	assert.Equal(t, p.Steps[0], got.Steps[0])
}

func TestTrainingPlan_WriteIsAtomic(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "plan.json")

	p := NewTrainingPlan()
	require.NoError(t, p.WriteFile(path))
	require.NoError(t, p.WriteFile(path))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.False(t, strings.Contains(entries[0].Name(), ".tmp"))
}

func TestLoadTrainingPlan_Errors(t *testing.T) {
	dir := t.TempDir()
	_, err := LoadTrainingPlan(filepath.Join(dir, "absent.json"))
	assert.Error(t, err)

	bad := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte("{steps:"), 0o644))
	_, err = LoadTrainingPlan(bad)
	assert.Error(t, err)
}

func TestRunLog_AppendAndWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "log.json")

	l := NewRunLog()
	l.Append(StepRecord{Step: 0, OracleCalled: true, AtomsAdded: 3, MAE: 0.12})
	l.Append(StepRecord{Step: 1})
	require.NoError(t, l.WriteFile(path))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"oracle_called": true`)
	assert.Contains(t, string(raw), `"atoms_added": 3`)
}
