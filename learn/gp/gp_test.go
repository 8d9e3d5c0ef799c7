package gp

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/otf-learn/otf-learn/learn"
)

// dimer builds a two-atom frame separated by d along x in open boundary
// conditions.
func dimer(d float64) *learn.Frame {
	return &learn.Frame{
		Species:   []learn.SpeciesCode{1, 1},
		Positions: []learn.Vec3{{0, 0, 0}, {d, 0, 0}},
	}
}

func trainedModel(t *testing.T) *Model {
	t.Helper()
	m, err := New(DefaultConfig())
	require.NoError(t, err)

	// Both dimer atoms share the same distance descriptor, so they carry
	// the same label: the force magnitude as a function of separation.
	for _, d := range []float64{0.8, 1.0, 1.2} {
		f := dimer(d)
		labels := []learn.Vec3{{d, 0, 0}, {d, 0, 0}}
		require.NoError(t, m.AddOrUpdate(f, labels, []int{0, 1}, nil))
	}
	require.NoError(t, m.RefreshFactorization())
	return m
}

func TestNew_Validation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero signal", func(c *Config) { c.SignalStd = 0 }},
		{"negative length scale", func(c *Config) { c.LengthScale = -1 }},
		{"zero noise", func(c *Config) { c.NoiseStd = 0 }},
		{"no neighbors", func(c *Config) { c.Neighbors = 0 }},
		{"negative budget", func(c *Config) { c.MaxIter = -1 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			_, err := New(cfg)
			assert.Error(t, err)
		})
	}
}

func TestPredict_EmptyModelReturnsPrior(t *testing.T) {
	m, err := New(DefaultConfig())
	require.NoError(t, err)

	preds, err := m.Predict(dimer(1.0), nil, 1)
	require.NoError(t, err)
	require.Len(t, preds, 2)
	for _, p := range preds {
		assert.True(t, p.Evaluated)
		assert.Equal(t, learn.Vec3{}, p.Force)
		assert.Equal(t, m.Config().SignalStd, p.MaxStd())
	}
}

func TestPredict_TrainedPointHasReducedUncertainty(t *testing.T) {
	m := trainedModel(t)

	preds, err := m.Predict(dimer(1.0), nil, 1)
	require.NoError(t, err)

	// Uncertainty at a training geometry drops well below the prior, and
	// the mean lands near the training label.
	assert.Less(t, preds[0].MaxStd(), m.Config().SignalStd/2)
	assert.InDelta(t, 1.0, preds[0].Force[0], 0.3)
	assert.InDelta(t, 1.0, preds[1].Force[0], 0.3)
}

func TestPredict_SelectiveSubset(t *testing.T) {
	m := trainedModel(t)

	preds, err := m.Predict(dimer(1.0), []int{1}, 1)
	require.NoError(t, err)
	assert.False(t, preds[0].Evaluated)
	assert.True(t, preds[1].Evaluated)
}

func TestPredict_WorkerCountsAgree(t *testing.T) {
	m := trainedModel(t)
	f := dimer(1.0)

	sequential, err := m.Predict(f, nil, 1)
	require.NoError(t, err)
	parallel, err := m.Predict(f, nil, 4)
	require.NoError(t, err)
	assert.Equal(t, sequential, parallel)
}

func TestAddOrUpdate_Validation(t *testing.T) {
	m, err := New(DefaultConfig())
	require.NoError(t, err)
	f := dimer(1.0)

	assert.Error(t, m.AddOrUpdate(f, nil, []int{0}, nil))
	assert.Error(t, m.AddOrUpdate(f, []learn.Vec3{{0, 0, 0}, {0, 0, 0}}, []int{5}, nil))
}

func TestTrainingStatistics(t *testing.T) {
	m := trainedModel(t)
	stats := m.TrainingStatistics()
	assert.Equal(t, 6, stats.Total)
	assert.Equal(t, 6, stats.BySpecies[1])
	assert.True(t, m.SupportsIncrementalUpdate())
}

func TestOptimizeHyperparameters_ImprovesLikelihood(t *testing.T) {
	m := trainedModel(t)
	require.NoError(t, m.RefreshFactorization())
	before := m.logLikelihood()

	result, err := m.OptimizeHyperparameters(-1)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, result.Likelihood, before)
	assert.Len(t, result.Hyperparameters, 3)
	assert.Equal(t, []string{"signal_std", "length_scale", "noise_std"}, result.Labels)
}

func TestOptimizeHyperparameters_ZeroIterRefreshOnly(t *testing.T) {
	m := trainedModel(t)
	cfgBefore := m.Config()

	result, err := m.OptimizeHyperparameters(0)
	require.NoError(t, err)
	assert.True(t, result.Converged)
	assert.Equal(t, cfgBefore, m.Config())
}

func TestSerializeLoad_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "model.json")

	m := trainedModel(t)
	require.NoError(t, m.Serialize(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, m.Config(), loaded.Config())
	assert.Equal(t, m.TrainingStatistics(), loaded.TrainingStatistics())

	// The loaded model predicts identically after refactorization.
	want, err := m.Predict(dimer(1.0), nil, 1)
	require.NoError(t, err)
	got, err := loaded.Predict(dimer(1.0), nil, 1)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestFrozen_ReadOnlyBehavior(t *testing.T) {
	f := NewFrozen(trainedModel(t))

	assert.False(t, f.SupportsIncrementalUpdate())
	assert.Zero(t, f.NoiseScale())

	err := f.AddOrUpdate(dimer(1.0), []learn.Vec3{{0, 0, 0}, {0, 0, 0}}, []int{0}, nil)
	assert.ErrorIs(t, err, learn.ErrReadOnly)

	_, err = f.OptimizeHyperparameters(10)
	assert.ErrorIs(t, err, learn.ErrReadOnly)

	assert.NoError(t, f.RefreshFactorization())

	preds, err := f.Predict(dimer(1.0), nil, 1)
	require.NoError(t, err)
	assert.True(t, preds[0].Evaluated)
	assert.Equal(t, 6, f.TrainingStatistics().Total)
}

func TestDescriptor_MinimumImageConvention(t *testing.T) {
	// Two atoms 9 apart in a 10-box are 1 apart under periodic wrap.
	f := dimer(9)
	f.Cell = [3][3]float64{{10, 0, 0}, {0, 10, 0}, {0, 0, 10}}
	g := newFrameGeometry(f)
	assert.InDelta(t, 1.0, g.distance(0, 1), 1e-12)

	// Open boundaries: the raw distance stands.
	open := dimer(9)
	assert.InDelta(t, 9.0, newFrameGeometry(open).distance(0, 1), 1e-12)
}

func TestDescriptor_SortedAndPadded(t *testing.T) {
	f := &learn.Frame{
		Species:   []learn.SpeciesCode{1, 1, 1},
		Positions: []learn.Vec3{{0, 0, 0}, {3, 0, 0}, {1, 0, 0}},
	}
	g := newFrameGeometry(f)
	desc := g.descriptor(0, 4)
	require.Len(t, desc, 4)
	assert.Equal(t, []float64{1, 3, 0, 0}, desc)
}
