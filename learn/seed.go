package learn

import (
	"fmt"

	"github.com/sirupsen/logrus"
)

// runSeeding performs a passive-learning pass over the given seed frames:
// atoms are sampled per species under the seed caps and admitted without
// any trust evaluation. After a non-empty pass the surrogate is either
// trained (maxIter > 0 or default), or its factorization rebuilt (maxIter
// 0), so uncertainty estimates are usable before the first step.
//
// Returns the number of atoms admitted.
func (lc *loopCore) runSeeding(seedFrames []*Frame, caps SeedCaps) (int, error) {
	if !lc.incremental {
		return 0, fmt.Errorf("cannot seed a surrogate that is read-only after construction: %w", ErrReadOnly)
	}
	logrus.Debug("beginning passive learning")

	total := 0
	for _, frame := range seedFrames {
		picked := SelectSeed(frame, caps, lc.surrogate.TrainingStatistics(), lc.cfg.Selection, lc.rng.Get(SubsystemSeed))
		if len(picked) == 0 {
			continue
		}
		var energy *float64
		if lc.cfg.IncludeEnergy {
			energy = frame.Energy
		}
		if err := lc.surrogate.AddOrUpdate(frame, frame.TrueForces, picked, energy); err != nil {
			return total, fmt.Errorf("seeding %d atoms: %w", len(picked), err)
		}
		total += len(picked)
	}

	stats := lc.surrogate.TrainingStatistics()
	logrus.Infof("seeded %d atom(s); training set now %d total, by species %v", total, stats.Total, stats.BySpecies)

	if total == 0 {
		return 0, nil
	}
	if lc.cfg.Schedule.SeedMaxIter == 0 {
		if err := lc.surrogate.RefreshFactorization(); err != nil {
			return total, fmt.Errorf("building factorization after seeding: %w", err)
		}
		return total, nil
	}
	result, err := lc.surrogate.OptimizeHyperparameters(lc.cfg.Schedule.SeedMaxIter)
	if err != nil {
		return total, fmt.Errorf("training after seeding: %w", err)
	}
	if !result.Converged {
		logrus.Warn("post-seed optimizer did not converge, proceeding with best-effort hyperparameters")
	}
	logHyperparameters(result)
	return total, nil
}

// onePerSpeciesCaps builds the seed caps for the blank-slate case: one atom
// of each species present in the frame, so every species has at least one
// labeled example before uncertainty estimates are trusted.
func onePerSpeciesCaps(frame *Frame) SeedCaps {
	caps := SeedCaps{PerSpecies: make(map[SpeciesCode]int)}
	for _, species := range DistinctSpecies(frame.Species) {
		caps.PerSpecies[species] = 1
	}
	return caps
}
