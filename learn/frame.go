package learn

import (
	"fmt"
	"math"
)

// Vec3 is a single 3D vector quantity (position, force).
type Vec3 [3]float64

// Prediction is the surrogate's per-atom output. Atoms outside the
// configured predict subset carry Evaluated=false rather than a numeric
// sentinel, so consumers can distinguish "not evaluated" from "evaluated as
// zero".
type Prediction struct {
	Force     Vec3
	Std       Vec3
	Evaluated bool
}

// MaxStd returns the largest per-component uncertainty of the prediction.
func (p Prediction) MaxStd() float64 {
	return math.Max(p.Std[0], math.Max(p.Std[1], p.Std[2]))
}

// Frame is an ordered collection of atoms at one simulation or trajectory
// step. Ground-truth forces may be nil until the oracle runs. Once a step
// concludes a frame is logically immutable history.
type Frame struct {
	Species   []SpeciesCode
	Positions []Vec3
	Cell      [3][3]float64

	// TrueForces holds oracle-labeled forces; nil when no label exists yet.
	TrueForces []Vec3 `yaml:"trueforces,omitempty"`
	// Energy is the frame's ground-truth potential energy, when known.
	Energy *float64 `yaml:"energy,omitempty"`

	// Predictions is populated by the PREDICT stage each step.
	Predictions []Prediction `yaml:"predictions,omitempty"`
}

// NumAtoms returns the atom count of the frame.
func (f *Frame) NumAtoms() int {
	return len(f.Species)
}

// Validate checks the frame's internal consistency.
func (f *Frame) Validate() error {
	if len(f.Positions) != len(f.Species) {
		return fmt.Errorf("frame has %d positions for %d species", len(f.Positions), len(f.Species))
	}
	if f.TrueForces != nil && len(f.TrueForces) != len(f.Species) {
		return fmt.Errorf("frame has %d forces for %d atoms", len(f.TrueForces), len(f.Species))
	}
	return nil
}

// IndicesOfSpecies returns the ascending atom indices with the given code.
func (f *Frame) IndicesOfSpecies(code SpeciesCode) []int {
	var out []int
	for i, s := range f.Species {
		if s == code {
			out = append(out, i)
		}
	}
	return out
}

// ForceError returns the largest per-component absolute deviation between
// the predicted and ground-truth force on atom i. Returns NaN when the atom
// was not evaluated or no ground truth is attached; callers must gate on
// those conditions first.
func (f *Frame) ForceError(i int) float64 {
	if f.TrueForces == nil || !f.Predictions[i].Evaluated {
		return math.NaN()
	}
	err := 0.0
	for c := 0; c < 3; c++ {
		err = math.Max(err, math.Abs(f.Predictions[i].Force[c]-f.TrueForces[i][c]))
	}
	return err
}

// Clone returns a deep copy of the frame. Used by drivers that need a
// mutable working copy while keeping the recorded history frame intact.
func (f *Frame) Clone() *Frame {
	c := &Frame{
		Species:   append([]SpeciesCode(nil), f.Species...),
		Positions: append([]Vec3(nil), f.Positions...),
		Cell:      f.Cell,
	}
	if f.TrueForces != nil {
		c.TrueForces = append([]Vec3(nil), f.TrueForces...)
	}
	if f.Energy != nil {
		e := *f.Energy
		c.Energy = &e
	}
	if f.Predictions != nil {
		c.Predictions = append([]Prediction(nil), f.Predictions...)
	}
	return c
}
