package learn

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/otf-learn/otf-learn/learn/trace"
)

// loopCore is the decision-and-update state shared by both drivers. It owns
// the surrogate, the counters, and the audit logs; drivers own the frame
// source and the ADVANCE stage. All mutation happens on the driver's single
// thread: step N+1 never begins before step N's admissions and scheduler
// decisions complete.
type loopCore struct {
	cfg       RunConfig
	surrogate Surrogate
	// incremental is resolved once at construction; read-only surrogates
	// put the run in observation-only mode.
	incremental bool
	rng         *PartitionedRNG
	counters    Counters
	metrics     *RunMetrics
	plan        *trace.TrainingPlan
	runLog      *trace.RunLog

	// saturated flips when the global model cap is exhausted; admission is
	// skipped for the remainder of the run but prediction continues.
	saturated         bool
	saturationWritten bool

	// warnedReadOnly gates the observation-only warning to one log line.
	warnedReadOnly bool

	// writeCheckpoint is installed by the driver; nil when the driver has
	// no full-state checkpoint (then only model writes happen).
	writeCheckpoint func() error

	// lastModelPath tracks the most recent successful model write, so
	// checkpoints reference a model file that actually exists.
	lastModelPath string
}

func newLoopCore(cfg RunConfig, s Surrogate) (*loopCore, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid run config: %w", err)
	}
	if s == nil {
		return nil, fmt.Errorf("surrogate must not be nil")
	}
	return &loopCore{
		cfg:         cfg,
		surrogate:   s,
		incremental: s.SupportsIncrementalUpdate(),
		rng:         NewPartitionedRNG(RunKey(cfg.Seed)),
		metrics:     NewRunMetrics(),
		plan:        trace.NewTrainingPlan(),
		runLog:      trace.NewRunLog(),
	}, nil
}

// predict runs the surrogate over the frame, restricted to the configured
// per-species subset, and attaches the tagged predictions. The prediction
// fan-out joins inside Predict before this returns.
func (lc *loopCore) predict(frame *Frame) error {
	subset := SubsetByElement(frame, lc.cfg.Predict.AtomsPerSpecies, lc.rng.Get(SubsystemPredict))
	preds, err := lc.surrogate.Predict(frame, subset, lc.cfg.Predict.Workers)
	if err != nil {
		return fmt.Errorf("surrogate prediction failed: %w", err)
	}
	if len(preds) != frame.NumAtoms() {
		return fmt.Errorf("surrogate returned %d predictions for %d atoms", len(preds), frame.NumAtoms())
	}
	frame.Predictions = preds
	return nil
}

// planEntries builds the training-plan record for the flagged atoms.
func planEntries(frame *Frame, flagged []int) []trace.PlanEntry {
	entries := make([]trace.PlanEntry, 0, len(flagged))
	for _, idx := range flagged {
		e := trace.PlanEntry{Atom: idx, Uncertainty: frame.Predictions[idx].MaxStd()}
		if frame.TrueForces != nil {
			e.Error = frame.ForceError(idx)
		}
		entries = append(entries, e)
	}
	return entries
}

// admit applies the Data Selector to the flagged atoms and appends the
// admitted (environment, label) pairs to the surrogate. Returns the number
// of atoms admitted. Handles capacity exhaustion and read-only surrogates
// as recoverable conditions.
func (lc *loopCore) admit(step int, frame *Frame, flagged []int) (int, error) {
	if !lc.incremental {
		if !lc.warnedReadOnly {
			logrus.Warn("surrogate is read-only; recording decisions without admission for the rest of the run")
			lc.warnedReadOnly = true
		}
		return 0, nil
	}
	if lc.saturated {
		return 0, nil
	}

	admitted, saturated := SelectAdmission(frame, flagged, lc.surrogate.TrainingStatistics(), lc.cfg.Selection)
	if saturated {
		lc.enterSaturation(step)
		return 0, nil
	}
	if len(admitted) == 0 {
		return 0, nil
	}

	var energy *float64
	if lc.cfg.IncludeEnergy {
		energy = frame.Energy
	}
	if err := lc.surrogate.AddOrUpdate(frame, frame.TrueForces, admitted, energy); err != nil {
		return 0, fmt.Errorf("admitting %d atoms at step %d: %w", len(admitted), step, err)
	}

	lc.counters.AtomsSinceTrain += len(admitted)
	lc.counters.AtomsSinceWrite += len(admitted)
	lc.metrics.AtomsAdded += len(admitted)
	stats := lc.surrogate.TrainingStatistics()
	logrus.Infof("step %d: admitted %d atom(s) %v, training set now %d", step, len(admitted), admitted, stats.Total)
	return len(admitted), nil
}

// enterSaturation degrades the run to prediction-only mode and writes the
// saturation model/checkpoint exactly once.
func (lc *loopCore) enterSaturation(step int) {
	lc.saturated = true
	logrus.Infof("step %d: training set reached the global cap of %d; no further atoms will be added, predictions continue",
		step, lc.cfg.Selection.MaxModelSize)
	if lc.saturationWritten {
		return
	}
	lc.saturationWritten = true
	if lc.cfg.Write.WriteModel {
		path := lc.cfg.Write.OutputPrefix + "_saturated.json"
		if err := lc.surrogate.Serialize(path); err != nil {
			logrus.Warnf("writing saturated model: %v", err)
		} else {
			lc.metrics.ModelWrites++
			lc.lastModelPath = path
		}
	}
	if lc.writeCheckpoint != nil {
		if err := lc.writeCheckpoint(); err != nil {
			logrus.Warnf("writing saturation checkpoint: %v", err)
		} else {
			lc.metrics.CheckpointWrites++
		}
	}
}

// trainOrRefresh runs the Training Scheduler and applies its decision.
// Optimizer non-convergence is recovered with a warning; a factorization
// failure is fatal and propagates to the driver.
func (lc *loopCore) trainOrRefresh(step int, lastEligibleFrame bool) error {
	d := ShouldTrain(lc.counters.AtomsSinceTrain, lc.cfg.Schedule.MinAtomsPerTrain,
		lastEligibleFrame, lc.counters.TrainingsDone, lc.cfg.Schedule.MaxTrainings)

	switch d.Action {
	case TrainSkip:
		return nil
	case TrainFull:
		result, err := lc.surrogate.OptimizeHyperparameters(lc.cfg.Schedule.OptimizeMaxIter)
		if err != nil {
			return fmt.Errorf("hyperparameter optimization at step %d: %w", step, err)
		}
		if !result.Converged {
			logrus.Warnf("step %d: optimizer did not converge, proceeding with best-effort hyperparameters", step)
		}
		logHyperparameters(result)
		lc.counters.TrainingsDone++
		lc.counters.TrainsSinceWrite++
		lc.metrics.FullRetrains++
	case TrainRefresh:
		if err := lc.surrogate.RefreshFactorization(); err != nil {
			return fmt.Errorf("refreshing factorization at step %d: %w", step, err)
		}
		lc.metrics.Refreshes++
	}
	if d.ResetAtoms {
		lc.counters.AtomsSinceTrain = 0
	}
	return nil
}

// logHyperparameters writes optimized hyperparameters and diagnostics to
// the run log after every full retrain.
func logHyperparameters(result OptimizeResult) {
	labels := result.Labels
	for i, h := range result.Hyperparameters {
		label := fmt.Sprintf("hyp_%d", i)
		if i < len(labels) {
			label = labels[i]
		}
		logrus.Infof("hyperparameter %s = %.6g", label, h)
	}
	logrus.Infof("log marginal likelihood: %.6g (gradient %v)", result.Likelihood, result.LikelihoodGradient)
}

// maybeWrite runs the Checkpoint/Write Scheduler and persists the model
// and/or run checkpoint when a condition fires. Only the counters whose
// condition fired are reset.
func (lc *loopCore) maybeWrite(step int) {
	d := ShouldWrite(lc.counters.TrainsSinceWrite, lc.cfg.Write.TrainInterval,
		lc.counters.AtomsSinceWrite, lc.cfg.Write.AtomInterval,
		step, lc.cfg.Write.StepInterval)
	if d.Write {
		if lc.cfg.Write.WriteModel {
			path := lc.cfg.Write.OutputPrefix + "_checkpt.json"
			if err := lc.surrogate.Serialize(path); err != nil {
				logrus.Warnf("step %d: writing model checkpoint: %v", step, err)
			} else {
				lc.metrics.ModelWrites++
				lc.lastModelPath = path
			}
		}
		if lc.cfg.Write.WriteCheckpoint && lc.writeCheckpoint != nil {
			if err := lc.writeCheckpoint(); err != nil {
				logrus.Warnf("step %d: writing run checkpoint: %v", step, err)
			} else {
				lc.metrics.CheckpointWrites++
			}
		}
	}
	if d.ResetTrains {
		lc.counters.TrainsSinceWrite = 0
	}
	if d.ResetAtoms {
		lc.counters.AtomsSinceWrite = 0
	}
}

// concludeRun writes the training plan, the observational log, and the
// final model.
func (lc *loopCore) concludeRun() error {
	stats := lc.surrogate.TrainingStatistics()
	logrus.Infof("final training set: %d total, by species %v", stats.Total, stats.BySpecies)

	if err := lc.plan.WriteFile(lc.cfg.Write.OutputPrefix + "_training_plan.json"); err != nil {
		return fmt.Errorf("writing training plan: %w", err)
	}
	if err := lc.runLog.WriteFile(lc.cfg.Write.OutputPrefix + "_run_log.json"); err != nil {
		return fmt.Errorf("writing run log: %w", err)
	}
	if lc.cfg.Write.WriteModel {
		path := lc.cfg.Write.OutputPrefix + "_model.json"
		if err := lc.surrogate.Serialize(path); err != nil {
			return fmt.Errorf("writing final model: %w", err)
		}
		lc.metrics.ModelWrites++
		lc.lastModelPath = path
	}
	return nil
}

// failFatal attempts one best-effort checkpoint write before propagating a
// fatal error, so the last state on disk stays valid for resumption.
func (lc *loopCore) failFatal(err error) error {
	if lc.writeCheckpoint != nil {
		if cpErr := lc.writeCheckpoint(); cpErr != nil {
			logrus.Warnf("best-effort checkpoint before abort failed: %v", cpErr)
		}
	}
	return err
}
