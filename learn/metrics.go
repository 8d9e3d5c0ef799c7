package learn

import (
	"fmt"
	"math"
	"time"

	"gonum.org/v1/gonum/stat"
)

// FrameMAE computes the mean absolute error between predicted and
// ground-truth forces over the frame's evaluated atoms, overall and per
// species. ok is false when no atom is comparable.
func FrameMAE(frame *Frame) (mae float64, bySpecies map[SpeciesCode]float64, ok bool) {
	if frame.TrueForces == nil {
		return 0, nil, false
	}
	var all []float64
	perSpecies := make(map[SpeciesCode][]float64)
	for i := range frame.Predictions {
		if !frame.Predictions[i].Evaluated {
			continue
		}
		for c := 0; c < 3; c++ {
			err := math.Abs(frame.Predictions[i].Force[c] - frame.TrueForces[i][c])
			all = append(all, err)
			perSpecies[frame.Species[i]] = append(perSpecies[frame.Species[i]], err)
		}
	}
	if len(all) == 0 {
		return 0, nil, false
	}
	bySpecies = make(map[SpeciesCode]float64, len(perSpecies))
	for species, errs := range perSpecies {
		bySpecies[species] = stat.Mean(errs, nil)
	}
	return stat.Mean(all, nil), bySpecies, true
}

// RunMetrics aggregates statistics about a learning run for final
// reporting. Useful for evaluating surrogate quality and debugging decision
// behavior over time.
type RunMetrics struct {
	FramesProcessed  int // frames the loop predicted on
	FramesFlagged    int // frames where trust failed
	OracleCalls      int // ground-truth invocations
	AtomsAdded       int // total admissions to the training set
	FullRetrains     int // hyperparameter optimizations run
	Refreshes        int // factorization-only updates
	ModelWrites      int // surrogate serializations
	CheckpointWrites int // full run-state checkpoints

	maeSum   float64
	maeCount int

	StartTime time.Time
}

// NewRunMetrics creates a RunMetrics with the clock started.
func NewRunMetrics() *RunMetrics {
	return &RunMetrics{StartTime: time.Now()}
}

// ObserveMAE folds one frame's mean absolute error into the running mean.
func (m *RunMetrics) ObserveMAE(mae float64) {
	m.maeSum += mae
	m.maeCount++
}

// MeanMAE returns the mean of the per-frame MAEs observed so far.
func (m *RunMetrics) MeanMAE() float64 {
	if m.maeCount == 0 {
		return math.NaN()
	}
	return m.maeSum / float64(m.maeCount)
}

// Print displays aggregated metrics at the end of the run.
func (m *RunMetrics) Print() {
	fmt.Println("=== Learning Run Metrics ===")
	fmt.Printf("Frames processed     : %d\n", m.FramesProcessed)
	fmt.Printf("Frames flagged       : %d\n", m.FramesFlagged)
	fmt.Printf("Oracle calls         : %d\n", m.OracleCalls)
	fmt.Printf("Atoms admitted       : %d\n", m.AtomsAdded)
	fmt.Printf("Full retrains        : %d\n", m.FullRetrains)
	fmt.Printf("Refreshes            : %d\n", m.Refreshes)
	fmt.Printf("Model writes         : %d\n", m.ModelWrites)
	fmt.Printf("Checkpoint writes    : %d\n", m.CheckpointWrites)
	if m.maeCount > 0 {
		fmt.Printf("Mean force MAE       : %.4f\n", m.MeanMAE())
	}
	fmt.Printf("Wall time            : %s\n", time.Since(m.StartTime).Round(time.Millisecond))
}
