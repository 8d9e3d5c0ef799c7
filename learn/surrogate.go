package learn

import "errors"

// ErrReadOnly is returned by surrogates that do not support incremental
// updates when an admission is attempted. The controller recovers by
// continuing in observation-only mode.
var ErrReadOnly = errors.New("surrogate does not support incremental updates")

// TrainingStatistics describes the surrogate's training set, partitioned by
// species.
type TrainingStatistics struct {
	Total     int
	BySpecies map[SpeciesCode]int
}

// OptimizeResult carries the outcome of a hyperparameter optimization.
// Converged false is not an error: the scheduler proceeds with best-effort
// hyperparameters and logs a warning.
type OptimizeResult struct {
	Hyperparameters    []float64
	Labels             []string
	Likelihood         float64
	LikelihoodGradient []float64
	Converged          bool
}

// Surrogate is the trainable regression model standing in for the oracle.
// The control loop owns exactly one Surrogate and mutates it only through
// admissions, refreshes, and optimizations on its single thread.
type Surrogate interface {
	// Predict returns per-atom force and uncertainty estimates for the
	// frame. selective lists the atom indices to evaluate (nil = all);
	// atoms outside the subset come back with Evaluated=false. workers
	// bounds the internal prediction fan-out; the call must fully join
	// before returning.
	Predict(frame *Frame, selective []int, workers int) ([]Prediction, error)

	// AddOrUpdate admits the listed atoms of the frame, labeled with the
	// given forces (and optionally the frame energy), to the training set.
	// Surrogates that are read-only after construction return ErrReadOnly.
	AddOrUpdate(frame *Frame, labels []Vec3, atoms []int, energy *float64) error

	// RefreshFactorization recomputes internal matrices so predictions
	// reflect all admissions, without touching hyperparameters.
	RefreshFactorization() error

	// OptimizeHyperparameters runs the hyperparameter optimizer.
	// maxIter 0 means skip optimization and just refresh the
	// factorization; maxIter < 0 means use the surrogate's own default
	// budget.
	OptimizeHyperparameters(maxIter int) (OptimizeResult, error)

	// NoiseScale returns the current noise hyperparameter, the scale
	// against which relative uncertainty tolerances are measured.
	NoiseScale() float64

	// TrainingStatistics reports training-set size totals.
	TrainingStatistics() TrainingStatistics

	// SupportsIncrementalUpdate reports whether AddOrUpdate is usable.
	// Queried once at construction by the drivers, not per step.
	SupportsIncrementalUpdate() bool

	// Serialize writes the model to path.
	Serialize(path string) error
}
