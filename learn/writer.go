package learn

// WriteDecision reports which of the write scheduler's firing conditions
// triggered. Only the counters whose condition fired are reset; the others
// keep accumulating.
type WriteDecision struct {
	Write       bool
	ResetTrains bool
	ResetAtoms  bool
}

// ShouldWrite decides whether to persist the surrogate model and/or the run
// checkpoint this step. Three independent conditions can fire, any one of
// which triggers a write:
//
//   - trainings since the last write reached trainInterval
//   - atoms admitted since the last write reached atomInterval
//   - the step index is a positive multiple of stepInterval
//
// A zero interval disables its condition. With all counters at zero and all
// intervals positive, the answer is false: firing requires accumulation.
func ShouldWrite(trainsSinceWrite, trainInterval, atomsSinceWrite, atomInterval, stepIndex, stepInterval int) WriteDecision {
	var d WriteDecision
	if trainInterval > 0 && trainsSinceWrite > 0 && trainsSinceWrite >= trainInterval {
		d.Write = true
		d.ResetTrains = true
	}
	if atomInterval > 0 && atomsSinceWrite > 0 && atomsSinceWrite >= atomInterval {
		d.Write = true
		d.ResetAtoms = true
	}
	if stepInterval > 0 && stepIndex > 0 && stepIndex%stepInterval == 0 {
		d.Write = true
	}
	return d
}
