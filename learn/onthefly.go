package learn

import (
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/otf-learn/otf-learn/learn/trace"
)

// OnTheFlyLearner trains the surrogate during a live molecular-dynamics
// run. Each step it predicts forces with the current surrogate; when the
// uncertainty trust signal fails, the oracle is invoked in-line, the
// flagged atoms are admitted with oracle labels, and MD continues on the
// oracle forces for that step.
//
// Ground truth only exists on steps where the oracle ran, so only the
// uncertainty signal gates the oracle decision; the force-error signal
// applies after the fact, when labels are in hand.
type OnTheFlyLearner struct {
	core       *loopCore
	otf        OTFConfig
	oracle     Oracle
	frame      *Frame
	integrator *Integrator

	step             int
	oracleCalls      int
	stepsSinceOracle int
}

// NewOnTheFlyLearner validates configuration and builds the driver. The
// surrogate must support incremental updates; on-the-fly training is
// meaningless against a read-only model.
func NewOnTheFlyLearner(initial *Frame, s Surrogate, o Oracle, cfg RunConfig, otf OTFConfig) (*OnTheFlyLearner, error) {
	applyWriteLevel(&cfg, otf.WriteModelLevel)
	core, err := newLoopCore(cfg, s)
	if err != nil {
		return nil, err
	}
	if err := otf.Validate(); err != nil {
		return nil, fmt.Errorf("invalid on-the-fly config: %w", err)
	}
	if o == nil {
		return nil, fmt.Errorf("oracle must not be nil")
	}
	if err := initial.Validate(); err != nil {
		return nil, fmt.Errorf("initial structure: %w", err)
	}
	if !core.incremental {
		return nil, fmt.Errorf("on-the-fly training requires incremental updates: %w", ErrReadOnly)
	}
	integrator, err := NewIntegrator(otf.MD, initial)
	if err != nil {
		return nil, err
	}
	l := &OnTheFlyLearner{
		core:       core,
		otf:        otf,
		oracle:     o,
		frame:      initial,
		integrator: integrator,
	}
	core.writeCheckpoint = l.checkpoint
	return l, nil
}

// applyWriteLevel maps the on-the-fly write-model level onto the interval
// scheduler: 0 never writes, 1 writes only at run end, 2 writes after every
// training, 3 writes after every admission and checkpoints every step.
func applyWriteLevel(cfg *RunConfig, level int) {
	switch level {
	case 0:
		cfg.Write.WriteModel = false
		cfg.Write.WriteCheckpoint = false
		cfg.Write.TrainInterval = 0
		cfg.Write.AtomInterval = 0
		cfg.Write.StepInterval = 0
	case 1:
		cfg.Write.WriteModel = true
		cfg.Write.TrainInterval = 0
		cfg.Write.AtomInterval = 0
		cfg.Write.StepInterval = 0
	case 2:
		cfg.Write.WriteModel = true
		cfg.Write.TrainInterval = 1
		cfg.Write.AtomInterval = 0
	case 3:
		cfg.Write.WriteModel = true
		cfg.Write.WriteCheckpoint = true
		cfg.Write.TrainInterval = 1
		cfg.Write.AtomInterval = 1
	}
}

// Metrics exposes the run's aggregated statistics.
func (l *OnTheFlyLearner) Metrics() *RunMetrics { return l.core.metrics }

// OracleCalls reports how many times the ground truth was invoked.
func (l *OnTheFlyLearner) OracleCalls() int { return l.oracleCalls }

// TrainingPlan exposes the admission audit trail.
func (l *OnTheFlyLearner) TrainingPlan() *trace.TrainingPlan { return l.core.plan }

// Run executes the on-the-fly loop until the step budget is exhausted or a
// fatal error aborts the run.
func (l *OnTheFlyLearner) Run() error {
	cfg := l.core.cfg
	stdEnabled := cfg.Trust.AbsStdTolerance != 0 || cfg.Trust.RelStdTolerance != 0

	for l.step < l.otf.MD.Steps {
		stepStart := time.Now()
		record := trace.StepRecord{Step: l.step}

		if l.step == 0 && stdEnabled && l.core.surrogate.TrainingStatistics().Total == 0 {
			if err := l.initialTrain(); err != nil {
				return l.core.failFatal(err)
			}
			record.OracleCalled = true
		} else {
			if err := l.core.predict(l.frame); err != nil {
				return l.core.failFatal(err)
			}
			l.core.metrics.FramesProcessed++

			// No ground truth on the live frame yet: trust is judged on
			// uncertainty alone.
			l.frame.TrueForces = nil
			l.frame.Energy = nil
			result := EvaluateTrust(l.frame, l.core.surrogate.NoiseScale(), cfg.Trust, cfg.Selection)

			if !result.InBound && l.stepsSinceOracle > l.otf.MinStepsWithModel {
				l.core.metrics.FramesFlagged++
				if err := l.callOracle(); err != nil {
					return l.core.failFatal(err)
				}
				record.OracleCalled = true

				if mae, _, ok := FrameMAE(l.frame); ok {
					record.MAE = mae
					l.core.metrics.ObserveMAE(mae)
					logrus.Infof("step %d: mean absolute error vs oracle %.4f", l.step, mae)
				}
				l.core.plan.Record(l.step, planEntries(l.frame, result.Flagged))

				added, err := l.core.admit(l.step, l.frame, result.Flagged)
				if err != nil {
					return l.core.failFatal(err)
				}
				record.AtomsAdded = added
				if err := l.core.trainOrRefresh(l.step, false); err != nil {
					return l.core.failFatal(err)
				}
				l.core.maybeWrite(l.step)
			}
		}

		// ADVANCE: integrate to the next frame on the freshest forces
		// available (oracle labels on oracle steps, predictions otherwise).
		l.integrator.Step(l.frame, l.currentForces())
		ke, temp := l.integrator.Temperature()
		logrus.Debugf("step %d: KE %.4f, temperature %.1f", l.step, ke, temp)
		l.frame.TrueForces = nil
		l.frame.Energy = nil
		l.frame.Predictions = nil
		l.stepsSinceOracle++
		l.step++

		record.WallTimeMS = float64(time.Since(stepStart).Microseconds()) / 1000
		l.core.runLog.Append(record)

		if l.otf.WriteModelLevel == 3 {
			if err := l.checkpoint(); err != nil {
				logrus.Warnf("step %d: writing checkpoint: %v", l.step, err)
			} else {
				l.core.metrics.CheckpointWrites++
			}
		}
	}

	if err := l.core.concludeRun(); err != nil {
		return err
	}
	if l.otf.WriteModelLevel >= 1 {
		if err := l.checkpoint(); err != nil {
			return fmt.Errorf("writing final checkpoint: %w", err)
		}
		l.core.metrics.CheckpointWrites++
	}
	return nil
}

// initialTrain runs the oracle on the initial structure and seeds the
// surrogate before the first prediction is attempted.
func (l *OnTheFlyLearner) initialTrain() error {
	logrus.Info("empty surrogate at step 0: calling oracle for the initial training batch")
	if err := l.callOracle(); err != nil {
		return err
	}
	caps := SeedCaps{PerSpecies: l.core.cfg.Selection.SeedPerSpecies, MaxFromFrame: l.core.cfg.Selection.MaxAtomsFromFrame}
	if len(caps.PerSpecies) == 0 && caps.MaxFromFrame == 0 {
		// No seed caps configured: every atom of the first structure seeds
		// the model, matching a from-scratch run's first oracle call.
		caps = SeedCaps{}
	}
	_, err := l.core.runSeeding([]*Frame{l.frame}, caps)
	return err
}

// callOracle invokes the blocking ground-truth calculation and attaches
// its labels to the live frame. Failure is fatal to the run.
func (l *OnTheFlyLearner) callOracle() error {
	logrus.Info("calling oracle...")
	start := time.Now()
	result, err := l.oracle.Compute(l.frame)
	if err != nil {
		return fmt.Errorf("oracle call %d at step %d: %w", l.oracleCalls+1, l.step, err)
	}
	l.frame.TrueForces = result.Forces
	l.frame.Energy = result.Energy
	l.oracleCalls++
	l.stepsSinceOracle = 0
	l.core.metrics.OracleCalls++
	logrus.Infof("oracle call %d finished in %s", l.oracleCalls, time.Since(start).Round(time.Millisecond))
	return nil
}

// currentForces returns the freshest per-atom forces for the MD step:
// oracle labels when present, otherwise the surrogate's predictions (zero
// for atoms the predict subset skipped).
func (l *OnTheFlyLearner) currentForces() []Vec3 {
	if l.frame.TrueForces != nil {
		return l.frame.TrueForces
	}
	forces := make([]Vec3, l.frame.NumAtoms())
	for i, p := range l.frame.Predictions {
		if p.Evaluated {
			forces[i] = p.Force
		}
	}
	return forces
}

// checkpoint persists the full run state, including the structure and
// integrator state needed to resume MD before the next unprocessed step.
func (l *OnTheFlyLearner) checkpoint() error {
	cp := &Checkpoint{
		StepIndex:   l.step,
		OracleCalls: l.oracleCalls,
		Counters:    l.core.counters,
		Saturated:   l.core.saturated,
		ModelPath:   l.core.lastModelPath,
		Config:      l.core.cfg,
		OTF:         &l.otf,
		Frame:       l.frame.Clone(),
		Velocities:  append([]Vec3(nil), l.integrator.Velocities()...),
	}
	return cp.Write(l.core.cfg.Write.OutputPrefix + "_checkpoint.yaml")
}

// ResumeOnTheFly rebuilds an on-the-fly learner from the last checkpoint.
// The caller deserializes the surrogate from the checkpoint's model path
// and supplies the oracle; the loop resumes before the next unprocessed
// step.
func ResumeOnTheFly(path string, s Surrogate, o Oracle) (*OnTheFlyLearner, error) {
	cp, err := LoadCheckpoint(path)
	if err != nil {
		return nil, err
	}
	if cp.OTF == nil || cp.Frame == nil {
		return nil, fmt.Errorf("checkpoint %s does not describe an on-the-fly run", path)
	}
	l, err := NewOnTheFlyLearner(cp.Frame, s, o, cp.Config, *cp.OTF)
	if err != nil {
		return nil, err
	}
	l.step = cp.StepIndex
	l.oracleCalls = cp.OracleCalls
	l.core.counters = cp.Counters
	l.core.saturated = cp.Saturated
	l.core.saturationWritten = cp.Saturated
	l.core.lastModelPath = cp.ModelPath
	if cp.Velocities != nil {
		prev := make([]Vec3, len(cp.Frame.Positions))
		for i := range prev {
			for c := 0; c < 3; c++ {
				prev[i][c] = cp.Frame.Positions[i][c] - cp.Velocities[i][c]*cp.OTF.MD.Timestep
			}
		}
		if err := l.integrator.SetState(prev, cp.Velocities); err != nil {
			return nil, err
		}
	}
	return l, nil
}
