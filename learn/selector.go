package learn

import (
	"math/rand"
	"sort"
)

// SelectAdmission applies the model-level caps to a batch of candidate
// atoms (normally the Trust Evaluator's output) and returns the subset that
// may actually be admitted to the training set. Candidates are consumed in
// the order given, so callers that rank candidates keep their priority.
//
// The second return is true when the global model cap was already exhausted
// before this call; the caller then degrades to prediction-only mode for
// the remainder of the run.
//
// No side effects; the caller applies the admission to the surrogate.
func SelectAdmission(frame *Frame, candidates []int, stats TrainingStatistics, sel SelectionConfig) (admitted []int, saturated bool) {
	globalRemaining := -1 // unlimited
	if sel.MaxModelSize > 0 {
		globalRemaining = sel.MaxModelSize - stats.Total
		if globalRemaining <= 0 {
			return nil, true
		}
	}

	speciesAdded := make(map[SpeciesCode]int)
	for _, idx := range candidates {
		if globalRemaining == 0 {
			break
		}
		species := frame.Species[idx]
		if limit, ok := sel.MaxModelPerSpecies[species]; ok {
			if stats.BySpecies[species]+speciesAdded[species] >= limit {
				continue
			}
		}
		admitted = append(admitted, idx)
		speciesAdded[species]++
		if globalRemaining > 0 {
			globalRemaining--
		}
	}
	sort.Ints(admitted)
	return admitted, false
}

// SeedCaps bounds a single passive-learning (seeding) pass over one frame.
type SeedCaps struct {
	PerSpecies   map[SpeciesCode]int // max atoms of each species from this frame
	MaxFromFrame int                 // max atoms from this frame in total (0 = unlimited)
}

// SelectSeed picks atoms from the frame for passive learning. For each
// species present the count admitted is
//
//	max(0, min(available, perSpeciesCap, frameBudgetRemaining, globalRemaining, modelSpeciesCapRemaining))
//
// and the sampled subset is chosen uniformly at random without replacement,
// not "first N", to avoid index-order bias. Species are visited in
// ascending code order so runs with the same RNG stream are reproducible.
func SelectSeed(frame *Frame, caps SeedCaps, stats TrainingStatistics, sel SelectionConfig, rng *rand.Rand) []int {
	globalRemaining := -1
	if sel.MaxModelSize > 0 {
		globalRemaining = sel.MaxModelSize - stats.Total
		if globalRemaining <= 0 {
			return nil
		}
	}

	frameBudget := -1
	if caps.MaxFromFrame > 0 {
		frameBudget = caps.MaxFromFrame
	}

	var picked []int
	for _, species := range DistinctSpecies(frame.Species) {
		atoms := frame.IndicesOfSpecies(species)
		n := len(atoms)
		if limit, ok := caps.PerSpecies[species]; ok && limit < n {
			n = limit
		}
		if limit, ok := sel.MaxModelPerSpecies[species]; ok {
			if remaining := limit - stats.BySpecies[species]; remaining < n {
				n = remaining
			}
		}
		if frameBudget >= 0 && frameBudget < n {
			n = frameBudget
		}
		if globalRemaining >= 0 && globalRemaining < n {
			n = globalRemaining
		}
		if n <= 0 {
			continue
		}
		for _, pi := range rng.Perm(len(atoms))[:n] {
			picked = append(picked, atoms[pi])
		}
		if frameBudget >= 0 {
			frameBudget -= n
		}
		if globalRemaining >= 0 {
			globalRemaining -= n
		}
	}
	sort.Ints(picked)
	return picked
}
