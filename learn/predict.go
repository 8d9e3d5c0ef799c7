package learn

import (
	"math/rand"
	"sort"
)

// SubsetByElement builds the predict-atom subset for a frame. For each
// species listed in perSpecies, a uniform random subset of that size is
// kept; species not listed are predicted in full. Returns nil when no
// subsetting is configured, which callers treat as "all atoms".
//
// Bounding prediction to a per-species subset trades exhaustiveness for
// speed on large systems where only some elements are of interest.
func SubsetByElement(frame *Frame, perSpecies map[SpeciesCode]int, rng *rand.Rand) []int {
	if len(perSpecies) == 0 {
		return nil
	}
	var subset []int
	for _, species := range DistinctSpecies(frame.Species) {
		atoms := frame.IndicesOfSpecies(species)
		limit, constrained := perSpecies[species]
		if !constrained || limit >= len(atoms) {
			subset = append(subset, atoms...)
			continue
		}
		for _, pi := range rng.Perm(len(atoms))[:limit] {
			subset = append(subset, atoms[pi])
		}
	}
	sort.Ints(subset)
	return subset
}
