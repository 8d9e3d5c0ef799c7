// Package gp provides a reference surrogate: a Gaussian-process regressor
// over per-atom distance descriptors with an RBF kernel. It implements
// learn.Surrogate so the control loop runs end-to-end without an external
// regression engine; production deployments swap in their own surrogate
// behind the same interface.
package gp

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sync"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/otf-learn/otf-learn/learn"
)

// Config holds the GP's hyperparameters and sizing.
type Config struct {
	SignalStd   float64 `json:"signal_std"`   // prior std of the force components
	LengthScale float64 `json:"length_scale"` // RBF kernel length scale
	NoiseStd    float64 `json:"noise_std"`    // observation noise std
	Neighbors   int     `json:"neighbors"`    // descriptor length (nearest-neighbor distances)
	MaxIter     int     `json:"max_iter"`     // default optimizer budget
}

// DefaultConfig returns a usable starting configuration.
func DefaultConfig() Config {
	return Config{SignalStd: 1, LengthScale: 1, NoiseStd: 0.1, Neighbors: 8, MaxIter: 40}
}

type entry struct {
	Desc    []float64         `json:"desc"`
	Force   learn.Vec3        `json:"force"`
	Species learn.SpeciesCode `json:"species"`
}

// Model is an incremental-update-capable Gaussian process. Not safe for
// concurrent mutation; the control loop owns it on a single thread.
// Prediction fan-out inside Predict is read-only.
type Model struct {
	cfg     Config
	entries []entry

	chol  mat.Cholesky
	alpha [3][]float64
	fresh bool
}

// New validates the configuration and builds an empty model.
func New(cfg Config) (*Model, error) {
	if cfg.SignalStd <= 0 || cfg.LengthScale <= 0 || cfg.NoiseStd <= 0 {
		return nil, fmt.Errorf("gp hyperparameters must be positive, got signal=%v length=%v noise=%v",
			cfg.SignalStd, cfg.LengthScale, cfg.NoiseStd)
	}
	if cfg.Neighbors < 1 {
		return nil, fmt.Errorf("gp descriptor needs at least 1 neighbor, got %d", cfg.Neighbors)
	}
	if cfg.MaxIter < 0 {
		return nil, fmt.Errorf("gp default optimizer budget must be non-negative, got %d", cfg.MaxIter)
	}
	return &Model{cfg: cfg}, nil
}

// Config returns the current hyperparameters.
func (m *Model) Config() Config { return m.cfg }

func (m *Model) kernel(a, b []float64) float64 {
	d := floats.Distance(a, b, 2)
	return m.cfg.SignalStd * m.cfg.SignalStd * math.Exp(-d*d/(2*m.cfg.LengthScale*m.cfg.LengthScale))
}

// Predict implements learn.Surrogate. selective lists atom indices to
// evaluate (nil = all); workers bounds the fan-out and the call joins fully
// before returning.
func (m *Model) Predict(frame *learn.Frame, selective []int, workers int) ([]learn.Prediction, error) {
	if err := m.ensureFresh(); err != nil {
		return nil, err
	}
	preds := make([]learn.Prediction, frame.NumAtoms())

	atoms := selective
	if atoms == nil {
		atoms = make([]int, frame.NumAtoms())
		for i := range atoms {
			atoms[i] = i
		}
	}

	geom := newFrameGeometry(frame)
	if workers < 1 {
		workers = 1
	}
	if workers > len(atoms) {
		workers = len(atoms)
	}
	if workers == 0 {
		return preds, nil
	}

	work := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range work {
				preds[i] = m.predictAtom(geom, i)
			}
		}()
	}
	for _, i := range atoms {
		work <- i
	}
	close(work)
	wg.Wait()
	return preds, nil
}

func (m *Model) predictAtom(geom *frameGeometry, i int) learn.Prediction {
	if len(m.entries) == 0 {
		// Prior prediction: zero mean, full prior uncertainty.
		return learn.Prediction{Std: learn.Vec3{m.cfg.SignalStd, m.cfg.SignalStd, m.cfg.SignalStd}, Evaluated: true}
	}
	desc := geom.descriptor(i, m.cfg.Neighbors)
	n := len(m.entries)
	k := make([]float64, n)
	for j, e := range m.entries {
		k[j] = m.kernel(desc, e.Desc)
	}

	var p learn.Prediction
	p.Evaluated = true
	for c := 0; c < 3; c++ {
		p.Force[c] = floats.Dot(k, m.alpha[c])
	}

	kv := mat.NewVecDense(n, k)
	var solved mat.VecDense
	if err := m.chol.SolveVecTo(&solved, kv); err == nil {
		variance := m.kernel(desc, desc) - mat.Dot(kv, &solved)
		std := math.Sqrt(math.Max(variance, 0))
		p.Std = learn.Vec3{std, std, std}
	} else {
		// Factorization went bad under us; report prior uncertainty so the
		// trust evaluator errs toward calling the oracle.
		p.Std = learn.Vec3{m.cfg.SignalStd, m.cfg.SignalStd, m.cfg.SignalStd}
	}
	return p
}

// AddOrUpdate implements learn.Surrogate: the listed atoms' local
// environments join the training set with the given force labels. The
// energy label is accepted but unused; this is a force-only kernel.
func (m *Model) AddOrUpdate(frame *learn.Frame, labels []learn.Vec3, atoms []int, _ *float64) error {
	if labels == nil {
		return fmt.Errorf("cannot admit atoms without force labels")
	}
	geom := newFrameGeometry(frame)
	for _, i := range atoms {
		if i < 0 || i >= frame.NumAtoms() {
			return fmt.Errorf("atom index %d out of range for %d-atom frame", i, frame.NumAtoms())
		}
		m.entries = append(m.entries, entry{
			Desc:    geom.descriptor(i, m.cfg.Neighbors),
			Force:   labels[i],
			Species: frame.Species[i],
		})
	}
	m.fresh = false
	return nil
}

// RefreshFactorization implements learn.Surrogate: rebuild the Cholesky
// factorization and the weight vectors for the current training set.
func (m *Model) RefreshFactorization() error {
	n := len(m.entries)
	if n == 0 {
		m.fresh = true
		return nil
	}
	K := mat.NewSymDense(n, nil)
	noise2 := m.cfg.NoiseStd * m.cfg.NoiseStd
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			v := m.kernel(m.entries[i].Desc, m.entries[j].Desc)
			if i == j {
				v += noise2
			}
			K.SetSym(i, j, v)
		}
	}
	if ok := m.chol.Factorize(K); !ok {
		return fmt.Errorf("covariance matrix of %d environments is not positive definite", n)
	}
	for c := 0; c < 3; c++ {
		y := mat.NewVecDense(n, nil)
		for i, e := range m.entries {
			y.SetVec(i, e.Force[c])
		}
		var a mat.VecDense
		if err := m.chol.SolveVecTo(&a, y); err != nil {
			return fmt.Errorf("solving GP weights: %w", err)
		}
		m.alpha[c] = make([]float64, n)
		copy(m.alpha[c], a.RawVector().Data)
	}
	m.fresh = true
	return nil
}

func (m *Model) ensureFresh() error {
	if m.fresh {
		return nil
	}
	return m.RefreshFactorization()
}

// logLikelihood computes the summed log marginal likelihood of the three
// force components under the current hyperparameters. Requires a fresh
// factorization.
func (m *Model) logLikelihood() float64 {
	n := len(m.entries)
	if n == 0 {
		return 0
	}
	logDet := m.chol.LogDet()
	ll := 0.0
	for c := 0; c < 3; c++ {
		fit := 0.0
		for i, e := range m.entries {
			fit += e.Force[c] * m.alpha[c][i]
		}
		ll += -0.5*fit - 0.5*logDet - 0.5*float64(n)*math.Log(2*math.Pi)
	}
	return ll
}

// OptimizeHyperparameters implements learn.Surrogate with a log-space
// coordinate descent over (signal, length scale, noise). maxIter counts
// likelihood evaluations; 0 skips optimization and just refreshes the
// factorization, negative uses the configured default budget.
func (m *Model) OptimizeHyperparameters(maxIter int) (learn.OptimizeResult, error) {
	if maxIter < 0 {
		maxIter = m.cfg.MaxIter
	}
	if maxIter == 0 || len(m.entries) == 0 {
		if err := m.RefreshFactorization(); err != nil {
			return learn.OptimizeResult{}, err
		}
		return m.optimizeResult(true), nil
	}

	if err := m.RefreshFactorization(); err != nil {
		return learn.OptimizeResult{}, err
	}
	best := m.logLikelihood()
	step := 0.4 // multiplicative step in log space
	evals := 0
	converged := false

	params := []*float64{&m.cfg.SignalStd, &m.cfg.LengthScale, &m.cfg.NoiseStd}
	for evals < maxIter {
		improved := false
		for _, p := range params {
			if evals >= maxIter {
				break
			}
			orig := *p
			for _, factor := range []float64{math.Exp(step), math.Exp(-step)} {
				*p = orig * factor
				if err := m.RefreshFactorization(); err != nil {
					// A hyperparameter move that makes the covariance
					// singular is simply rejected.
					*p = orig
					continue
				}
				evals++
				if ll := m.logLikelihood(); ll > best {
					best = ll
					improved = true
					orig = *p
					break
				}
				*p = orig
			}
			*p = orig
		}
		if !improved {
			step /= 2
			if step < 1e-3 {
				converged = true
				break
			}
		}
	}

	if err := m.RefreshFactorization(); err != nil {
		return learn.OptimizeResult{}, err
	}
	return m.optimizeResult(converged), nil
}

func (m *Model) optimizeResult(converged bool) learn.OptimizeResult {
	return learn.OptimizeResult{
		Hyperparameters:    []float64{m.cfg.SignalStd, m.cfg.LengthScale, m.cfg.NoiseStd},
		Labels:             []string{"signal_std", "length_scale", "noise_std"},
		Likelihood:         m.logLikelihood(),
		LikelihoodGradient: m.likelihoodGradient(),
		Converged:          converged,
	}
}

// likelihoodGradient returns a central finite-difference gradient of the
// log likelihood in the three hyperparameters. Diagnostic only.
func (m *Model) likelihoodGradient() []float64 {
	if len(m.entries) == 0 {
		return []float64{0, 0, 0}
	}
	grad := make([]float64, 3)
	params := []*float64{&m.cfg.SignalStd, &m.cfg.LengthScale, &m.cfg.NoiseStd}
	for i, p := range params {
		orig := *p
		h := orig * 1e-4
		*p = orig + h
		if err := m.RefreshFactorization(); err != nil {
			*p = orig
			continue
		}
		hi := m.logLikelihood()
		*p = orig - h
		if err := m.RefreshFactorization(); err != nil {
			*p = orig
			continue
		}
		lo := m.logLikelihood()
		*p = orig
		grad[i] = (hi - lo) / (2 * h)
	}
	// Restore the factorization at the original hyperparameters.
	if err := m.RefreshFactorization(); err == nil {
		m.fresh = true
	}
	return grad
}

// NoiseScale implements learn.Surrogate.
func (m *Model) NoiseScale() float64 { return m.cfg.NoiseStd }

// TrainingStatistics implements learn.Surrogate.
func (m *Model) TrainingStatistics() learn.TrainingStatistics {
	stats := learn.TrainingStatistics{
		Total:     len(m.entries),
		BySpecies: make(map[learn.SpeciesCode]int),
	}
	for _, e := range m.entries {
		stats.BySpecies[e.Species]++
	}
	return stats
}

// SupportsIncrementalUpdate implements learn.Surrogate.
func (m *Model) SupportsIncrementalUpdate() bool { return true }

type serializedModel struct {
	Config  Config  `json:"config"`
	Entries []entry `json:"entries"`
}

// Serialize implements learn.Surrogate: the model is written as JSON via a
// temp file and rename so readers never see a partial model.
func (m *Model) Serialize(path string) error {
	data, err := json.Marshal(serializedModel{Config: m.cfg, Entries: m.entries})
	if err != nil {
		return fmt.Errorf("encoding gp model: %w", err)
	}
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp*")
	if err != nil {
		return fmt.Errorf("creating model temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("writing gp model: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("closing gp model temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("renaming gp model into place: %w", err)
	}
	return nil
}

// Load reads a model previously written by Serialize.
func Load(path string) (*Model, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading gp model: %w", err)
	}
	var s serializedModel
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("parsing gp model: %w", err)
	}
	m, err := New(s.Config)
	if err != nil {
		return nil, err
	}
	m.entries = s.Entries
	return m, nil
}
