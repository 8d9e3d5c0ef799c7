package learn

import (
	"hash/fnv"
	"math/rand"
)

// RunKey uniquely identifies a reproducible learning run.
// Two runs with the same RunKey and identical configuration MUST make
// bit-for-bit identical sampling decisions.
type RunKey int64

const (
	// SubsystemSeed is the RNG subsystem for seed-batch atom sampling.
	SubsystemSeed = "seed"

	// SubsystemSelect is the RNG subsystem for selector sampling during
	// passive learning.
	SubsystemSelect = "select"

	// SubsystemShuffle is the RNG subsystem for frame shuffling.
	SubsystemShuffle = "shuffle"

	// SubsystemPredict is the RNG subsystem for predict-atom subsetting.
	SubsystemPredict = "predict"
)

// PartitionedRNG provides deterministic, isolated RNG instances per
// subsystem, so adding a sampling site to one stage cannot perturb the
// stream consumed by another.
//
// Derivation: masterSeed XOR fnv1a64(subsystemName).
//
// Thread-safety: NOT thread-safe. Must be called from the controller's
// single thread.
type PartitionedRNG struct {
	key        RunKey
	subsystems map[string]*rand.Rand
}

// NewPartitionedRNG creates a PartitionedRNG from a RunKey.
func NewPartitionedRNG(key RunKey) *PartitionedRNG {
	return &PartitionedRNG{
		key:        key,
		subsystems: make(map[string]*rand.Rand),
	}
}

// Get returns the RNG for a subsystem, creating it on first use.
func (p *PartitionedRNG) Get(subsystem string) *rand.Rand {
	if r, ok := p.subsystems[subsystem]; ok {
		return r
	}
	h := fnv.New64a()
	h.Write([]byte(subsystem))
	seed := int64(p.key) ^ int64(h.Sum64())
	r := rand.New(rand.NewSource(seed))
	p.subsystems[subsystem] = r
	return r
}
