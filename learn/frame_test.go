package learn

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFrameValidate(t *testing.T) {
	f := &Frame{Species: []SpeciesCode{1, 8}, Positions: make([]Vec3, 2)}
	require.NoError(t, f.Validate())

	f.Positions = make([]Vec3, 1)
	assert.Error(t, f.Validate())

	f.Positions = make([]Vec3, 2)
	f.TrueForces = make([]Vec3, 3)
	assert.Error(t, f.Validate())
}

func TestFrameForceError_MaxComponentDeviation(t *testing.T) {
	f := &Frame{
		Species:    []SpeciesCode{1},
		Positions:  make([]Vec3, 1),
		TrueForces: []Vec3{{1, 2, 3}},
		Predictions: []Prediction{
			{Force: Vec3{1.1, 1.5, 3}, Evaluated: true},
		},
	}
	assert.InDelta(t, 0.5, f.ForceError(0), 1e-12)
}

func TestFrameForceError_UnevaluatedIsNaN(t *testing.T) {
	f := &Frame{
		Species:     []SpeciesCode{1},
		Positions:   make([]Vec3, 1),
		TrueForces:  []Vec3{{0, 0, 0}},
		Predictions: []Prediction{{}},
	}
	assert.True(t, math.IsNaN(f.ForceError(0)))

	f.Predictions[0].Evaluated = true
	f.TrueForces = nil
	assert.True(t, math.IsNaN(f.ForceError(0)))
}

func TestPredictionMaxStd(t *testing.T) {
	p := Prediction{Std: Vec3{0.1, 0.7, 0.3}}
	assert.Equal(t, 0.7, p.MaxStd())
}

func TestFrameClone_Independent(t *testing.T) {
	e := 1.5
	f := &Frame{
		Species:    []SpeciesCode{1, 8},
		Positions:  []Vec3{{1, 0, 0}, {0, 1, 0}},
		TrueForces: []Vec3{{0.1, 0, 0}, {0, 0.1, 0}},
		Energy:     &e,
	}
	c := f.Clone()
	require.Equal(t, f, c)

	c.Positions[0][0] = 99
	*c.Energy = 0
	assert.Equal(t, 1.0, f.Positions[0][0])
	assert.Equal(t, 1.5, *f.Energy)
}

func TestIndicesOfSpecies(t *testing.T) {
	f := &Frame{Species: []SpeciesCode{8, 1, 8, 1}, Positions: make([]Vec3, 4)}
	assert.Equal(t, []int{1, 3}, f.IndicesOfSpecies(1))
	assert.Empty(t, f.IndicesOfSpecies(6))
}
