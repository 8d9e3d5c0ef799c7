package learn

import (
	"os"
	"sync"
)

// stubSurrogate is a scriptable Surrogate for driver tests. Predictions are
// produced by predictFn when set, otherwise every atom in the subset comes
// back evaluated with zero force and zero uncertainty.
type stubSurrogate struct {
	mu sync.Mutex

	noise     float64
	readOnly  bool
	total     int
	bySpecies map[SpeciesCode]int

	predictFn func(f *Frame, selective []int) []Prediction

	admissions  [][]int
	refreshes   int
	optimizes   int
	serialized  []string
	optimizeErr error
	unconverged bool
}

func newStubSurrogate() *stubSurrogate {
	return &stubSurrogate{bySpecies: make(map[SpeciesCode]int)}
}

func (s *stubSurrogate) Predict(f *Frame, selective []int, workers int) ([]Prediction, error) {
	if s.predictFn != nil {
		return s.predictFn(f, selective), nil
	}
	preds := make([]Prediction, f.NumAtoms())
	if selective == nil {
		for i := range preds {
			preds[i].Evaluated = true
		}
		return preds, nil
	}
	for _, i := range selective {
		preds[i].Evaluated = true
	}
	return preds, nil
}

func (s *stubSurrogate) AddOrUpdate(f *Frame, labels []Vec3, atoms []int, energy *float64) error {
	if s.readOnly {
		return ErrReadOnly
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.admissions = append(s.admissions, append([]int(nil), atoms...))
	for _, i := range atoms {
		s.total++
		s.bySpecies[f.Species[i]]++
	}
	return nil
}

func (s *stubSurrogate) RefreshFactorization() error {
	s.refreshes++
	return nil
}

func (s *stubSurrogate) OptimizeHyperparameters(maxIter int) (OptimizeResult, error) {
	s.optimizes++
	if s.optimizeErr != nil {
		return OptimizeResult{}, s.optimizeErr
	}
	return OptimizeResult{
		Hyperparameters: []float64{1, 1, s.noise},
		Labels:          []string{"signal", "length", "noise"},
		Converged:       !s.unconverged,
	}, nil
}

func (s *stubSurrogate) NoiseScale() float64 { return s.noise }

func (s *stubSurrogate) TrainingStatistics() TrainingStatistics {
	s.mu.Lock()
	defer s.mu.Unlock()
	by := make(map[SpeciesCode]int, len(s.bySpecies))
	for k, v := range s.bySpecies {
		by[k] = v
	}
	return TrainingStatistics{Total: s.total, BySpecies: by}
}

func (s *stubSurrogate) SupportsIncrementalUpdate() bool { return !s.readOnly }

func (s *stubSurrogate) Serialize(path string) error {
	s.serialized = append(s.serialized, path)
	return os.WriteFile(path, []byte("{}"), 0o644)
}

// admittedAtoms flattens the admission history.
func (s *stubSurrogate) admittedAtoms() []int {
	var out []int
	for _, a := range s.admissions {
		out = append(out, a...)
	}
	return out
}
