package learn

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func speciesFrame(species ...SpeciesCode) *Frame {
	return &Frame{Species: species, Positions: make([]Vec3, len(species))}
}

func TestSelectAdmission_Unconstrained(t *testing.T) {
	f := speciesFrame(1, 1, 8)
	admitted, saturated := SelectAdmission(f, []int{2, 0, 1}, TrainingStatistics{}, SelectionConfig{})
	assert.False(t, saturated)
	assert.Equal(t, []int{0, 1, 2}, admitted)
}

func TestSelectAdmission_GlobalCap(t *testing.T) {
	f := speciesFrame(1, 1, 1, 1)
	sel := SelectionConfig{MaxModelSize: 5}

	// Three slots remain: the first three candidates in priority order are
	// kept (atoms 3, 1, 0), returned ascending.
	admitted, saturated := SelectAdmission(f, []int{3, 1, 0, 2}, TrainingStatistics{Total: 2}, sel)
	assert.False(t, saturated)
	assert.Equal(t, []int{0, 1, 3}, admitted)
}

func TestSelectAdmission_SaturationSignal(t *testing.T) {
	f := speciesFrame(1, 1)
	sel := SelectionConfig{MaxModelSize: 4}
	admitted, saturated := SelectAdmission(f, []int{0, 1}, TrainingStatistics{Total: 4}, sel)
	assert.True(t, saturated)
	assert.Empty(t, admitted)
}

func TestSelectAdmission_PerSpeciesModelCap(t *testing.T) {
	f := speciesFrame(1, 1, 8)
	sel := SelectionConfig{MaxModelPerSpecies: map[SpeciesCode]int{1: 3}}
	stats := TrainingStatistics{Total: 2, BySpecies: map[SpeciesCode]int{1: 2}}

	// One hydrogen slot remains; the oxygen is unconstrained.
	admitted, saturated := SelectAdmission(f, []int{0, 1, 2}, stats, sel)
	assert.False(t, saturated)
	assert.Equal(t, []int{0, 2}, admitted)
}

func TestSelectAdmission_NoCandidates(t *testing.T) {
	f := speciesFrame(1)
	admitted, saturated := SelectAdmission(f, nil, TrainingStatistics{}, SelectionConfig{})
	assert.False(t, saturated)
	assert.Empty(t, admitted)
}

func TestSelectSeed_PerSpeciesFormula(t *testing.T) {
	// 3 H, 2 O; seed cap 2 per species but only 1 slot left globally after
	// the frame budget.
	f := speciesFrame(1, 1, 1, 8, 8)
	rng := rand.New(rand.NewSource(1))

	picked := SelectSeed(f, SeedCaps{PerSpecies: map[SpeciesCode]int{1: 2, 8: 2}},
		TrainingStatistics{}, SelectionConfig{}, rng)
	// min(3 available, 2 cap) hydrogens plus min(2, 2) oxygens.
	require.Len(t, picked, 4)
	assert.True(t, sortedInts(picked))
}

func TestSelectSeed_FrameBudgetSpansSpecies(t *testing.T) {
	f := speciesFrame(1, 1, 8, 8)
	rng := rand.New(rand.NewSource(1))
	picked := SelectSeed(f, SeedCaps{MaxFromFrame: 3}, TrainingStatistics{}, SelectionConfig{}, rng)
	assert.Len(t, picked, 3)
}

func TestSelectSeed_GlobalCapClamps(t *testing.T) {
	f := speciesFrame(1, 1, 1, 1)
	rng := rand.New(rand.NewSource(1))
	picked := SelectSeed(f, SeedCaps{}, TrainingStatistics{Total: 3},
		SelectionConfig{MaxModelSize: 5}, rng)
	assert.Len(t, picked, 2)
}

func TestSelectSeed_ExhaustedGlobalCap(t *testing.T) {
	f := speciesFrame(1, 1)
	rng := rand.New(rand.NewSource(1))
	picked := SelectSeed(f, SeedCaps{}, TrainingStatistics{Total: 5},
		SelectionConfig{MaxModelSize: 5}, rng)
	assert.Empty(t, picked)
}

func TestSelectSeed_ModelSpeciesCapNeverNegative(t *testing.T) {
	// Species already over its model cap contributes max(0, ...) = 0 atoms.
	f := speciesFrame(1, 1, 8)
	rng := rand.New(rand.NewSource(1))
	picked := SelectSeed(f, SeedCaps{}, TrainingStatistics{Total: 4, BySpecies: map[SpeciesCode]int{1: 4}},
		SelectionConfig{MaxModelPerSpecies: map[SpeciesCode]int{1: 3}}, rng)
	assert.Equal(t, []int{2}, picked)
}

func TestSelectSeed_Reproducible(t *testing.T) {
	f := speciesFrame(1, 1, 1, 1, 1, 1, 1, 1)
	caps := SeedCaps{PerSpecies: map[SpeciesCode]int{1: 3}}

	a := SelectSeed(f, caps, TrainingStatistics{}, SelectionConfig{}, rand.New(rand.NewSource(9)))
	b := SelectSeed(f, caps, TrainingStatistics{}, SelectionConfig{}, rand.New(rand.NewSource(9)))
	assert.Equal(t, a, b)
}

func sortedInts(s []int) bool {
	for i := 1; i < len(s); i++ {
		if s[i-1] > s[i] {
			return false
		}
	}
	return true
}
