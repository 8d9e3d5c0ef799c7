package learn

import (
	"math"
	"sort"
)

// TrustResult is the Trust Evaluator's verdict on one frame.
type TrustResult struct {
	// InBound is true when every evaluated atom passed both trust signals.
	InBound bool
	// Flagged holds the ascending atom indices worth learning from, after
	// per-frame and per-species caps. Atoms whose force error exceeds the
	// hard-reject ceiling drive InBound false but never appear here.
	Flagged []int
}

type flaggedAtom struct {
	idx   int
	score float64
}

// EvaluateTrust scores the frame's predictions against the configured
// thresholds and returns the bounded set of atoms that violate trust.
//
// Two independent signals are combined. The uncertainty signal flags atoms
// whose predicted std exceeds max(AbsStdTolerance, RelStdTolerance*|noise|);
// a (0, 0) tolerance pair disables it. The error signal, active only when
// ground-truth forces are attached, flags atoms whose force error exceeds
// AbsForceTolerance and hard-rejects atoms beyond MaxForceError. The union
// is de-duplicated and capped, keeping the largest uncertainty/error first
// (tie-break: lowest atom index).
//
// Pure function of its inputs; the frame is not modified.
func EvaluateTrust(frame *Frame, noise float64, cfg TrustConfig, sel SelectionConfig) TrustResult {
	stdEnabled := cfg.AbsStdTolerance != 0 || cfg.RelStdTolerance != 0
	stdThreshold := math.Max(cfg.AbsStdTolerance, cfg.RelStdTolerance*math.Abs(noise))

	outOfBound := false
	scores := make(map[int]float64)

	for i := range frame.Predictions {
		p := frame.Predictions[i]
		if !p.Evaluated {
			continue
		}
		if stdEnabled {
			if std := p.MaxStd(); std > stdThreshold {
				outOfBound = true
				scores[i] = math.Max(scores[i], std)
			}
		}
		if frame.TrueForces != nil {
			if err := frame.ForceError(i); err > cfg.AbsForceTolerance {
				outOfBound = true
				if err > cfg.MaxForceError {
					// Too anomalous to trust as a label.
					delete(scores, i)
					continue
				}
				scores[i] = math.Max(scores[i], err)
			}
		}
	}

	if !outOfBound {
		return TrustResult{InBound: true}
	}

	candidates := make([]flaggedAtom, 0, len(scores))
	for idx, score := range scores {
		if idx < 0 {
			// Sentinel "no atom qualifies" markers are never real indices.
			continue
		}
		candidates = append(candidates, flaggedAtom{idx: idx, score: score})
	}
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].score != candidates[j].score {
			return candidates[i].score > candidates[j].score
		}
		return candidates[i].idx < candidates[j].idx
	})

	perSpecies := make(map[SpeciesCode]int)
	var flagged []int
	for _, cand := range candidates {
		if sel.MaxAtomsFromFrame > 0 && len(flagged) >= sel.MaxAtomsFromFrame {
			break
		}
		species := frame.Species[cand.idx]
		if limit, ok := sel.MaxPerSpeciesPerFrame[species]; ok && perSpecies[species] >= limit {
			continue
		}
		perSpecies[species]++
		flagged = append(flagged, cand.idx)
	}
	sort.Ints(flagged)

	return TrustResult{InBound: false, Flagged: flagged}
}
