package gp

import (
	"github.com/otf-learn/otf-learn/learn"
)

// Frozen wraps a trained Model as a read-only surrogate: predictions work,
// admissions do not. Used to replay a trajectory against a fixed model in
// observation-only mode, recording the training plan without mutating the
// training set.
type Frozen struct {
	inner *Model
}

// NewFrozen freezes the given model.
func NewFrozen(m *Model) *Frozen {
	return &Frozen{inner: m}
}

// Predict delegates to the wrapped model.
func (f *Frozen) Predict(frame *learn.Frame, selective []int, workers int) ([]learn.Prediction, error) {
	return f.inner.Predict(frame, selective, workers)
}

// AddOrUpdate always fails: the model is read-only after construction.
func (f *Frozen) AddOrUpdate(_ *learn.Frame, _ []learn.Vec3, _ []int, _ *float64) error {
	return learn.ErrReadOnly
}

// RefreshFactorization is a no-op on a frozen model.
func (f *Frozen) RefreshFactorization() error { return nil }

// OptimizeHyperparameters always fails: hyperparameters are fixed.
func (f *Frozen) OptimizeHyperparameters(_ int) (learn.OptimizeResult, error) {
	return learn.OptimizeResult{}, learn.ErrReadOnly
}

// NoiseScale returns 0: relative uncertainty tolerances are not meaningful
// for a frozen model, so only absolute thresholds apply.
func (f *Frozen) NoiseScale() float64 { return 0 }

// TrainingStatistics delegates to the wrapped model.
func (f *Frozen) TrainingStatistics() learn.TrainingStatistics {
	return f.inner.TrainingStatistics()
}

// SupportsIncrementalUpdate reports false; the drivers run in
// observation-only mode.
func (f *Frozen) SupportsIncrementalUpdate() bool { return false }

// Serialize delegates to the wrapped model.
func (f *Frozen) Serialize(path string) error { return f.inner.Serialize(path) }
