package learn

import "fmt"

// TrainAction is the Training Scheduler's verdict for one step.
type TrainAction int

const (
	// TrainSkip leaves the surrogate untouched.
	TrainSkip TrainAction = iota
	// TrainRefresh recomputes the surrogate's factorization without
	// touching hyperparameters, so predictions stay consistent with newly
	// admitted data.
	TrainRefresh
	// TrainFull runs the surrogate's hyperparameter optimizer and then
	// refreshes the factorization.
	TrainFull
)

func (a TrainAction) String() string {
	switch a {
	case TrainSkip:
		return "skip"
	case TrainRefresh:
		return "refresh"
	case TrainFull:
		return "full-retrain"
	default:
		return fmt.Sprintf("TrainAction(%d)", int(a))
	}
}

// TrainDecision pairs the action with whether the atoms-since-train counter
// should reset. The counter resets exactly when the firing condition
// (threshold or end-of-run flush) was met, even if the retrain budget
// downgraded the action to a refresh.
type TrainDecision struct {
	Action     TrainAction
	ResetAtoms bool
}

// ShouldTrain decides between a full retrain, a cheap refresh, and no
// action. The priority order is explicit:
//
//  1. No atoms accumulated since the last training: nothing to learn, skip.
//  2. The atoms threshold is met, or this is the last frame eligible for
//     training (end-of-run flush): fire. The atom counter resets either way.
//  3. A fired condition becomes a full retrain while trainings remain in
//     the budget, and degrades to a refresh once the budget is exhausted.
//  4. Atoms accumulated but below threshold: refresh only, no reset, so the
//     factorization tracks the growing training set between retrains.
//
// maxTrainings <= 0 means an unlimited retrain budget.
func ShouldTrain(atomsSinceTrain, minAtomsPerTrain int, lastEligibleFrame bool, trainingsDone, maxTrainings int) TrainDecision {
	if atomsSinceTrain == 0 {
		return TrainDecision{Action: TrainSkip}
	}
	if atomsSinceTrain >= minAtomsPerTrain || lastEligibleFrame {
		if maxTrainings <= 0 || trainingsDone < maxTrainings {
			return TrainDecision{Action: TrainFull, ResetAtoms: true}
		}
		return TrainDecision{Action: TrainRefresh, ResetAtoms: true}
	}
	return TrainDecision{Action: TrainRefresh}
}
