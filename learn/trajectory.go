package learn

import (
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/otf-learn/otf-learn/learn/trace"
)

// TrajectoryLearner replays a pre-computed trajectory of oracle-labeled
// frames, training the surrogate wherever its predictions fall out of
// trust. Ground truth is already attached to every frame, so the
// force-error trust signal is always active and no oracle is invoked.
type TrajectoryLearner struct {
	core   *loopCore
	frames []*Frame

	// SeedFrames, when set, are passively learned from before the main
	// loop. When empty and the surrogate has no training data, the first
	// trajectory frame seeds the model with one atom per species and is
	// excluded from the step loop.
	SeedFrames []*Frame

	resumeStep int
}

// NewTrajectoryLearner validates the configuration and trajectory and
// builds the driver. Every frame must carry ground-truth forces.
func NewTrajectoryLearner(frames []*Frame, s Surrogate, cfg RunConfig) (*TrajectoryLearner, error) {
	core, err := newLoopCore(cfg, s)
	if err != nil {
		return nil, err
	}
	if len(frames) == 0 {
		return nil, fmt.Errorf("trajectory is empty")
	}
	for i, frame := range frames {
		if err := frame.Validate(); err != nil {
			return nil, fmt.Errorf("frame %d: %w", i, err)
		}
		if frame.TrueForces == nil {
			return nil, fmt.Errorf("frame %d has no ground-truth forces", i)
		}
	}
	t := &TrajectoryLearner{core: core, frames: frames}
	core.writeCheckpoint = t.checkpoint
	return t, nil
}

// Metrics exposes the run's aggregated statistics.
func (t *TrajectoryLearner) Metrics() *RunMetrics { return t.core.metrics }

// TrainingPlan exposes the admission audit trail.
func (t *TrajectoryLearner) TrainingPlan() *trace.TrainingPlan { return t.core.plan }

// RunLog exposes the per-step observational records.
func (t *TrajectoryLearner) RunLog() *trace.RunLog { return t.core.runLog }

// Saturated reports whether the run hit the global model cap.
func (t *TrajectoryLearner) Saturated() bool { return t.core.saturated }

// Run executes the replay: seed, then one step per frame until the
// trajectory is exhausted or a fatal error aborts the run.
func (t *TrajectoryLearner) Run() error {
	cfg := t.core.cfg

	frames := t.frames
	if cfg.FrameStride > 1 {
		var strided []*Frame
		for i := 0; i < len(frames); i += cfg.FrameStride {
			strided = append(strided, frames[i])
		}
		frames = strided
	}
	if cfg.ShuffleFrames {
		logrus.Warn("frames are shuffled; the training plan will not map onto the source trajectory order")
		rng := t.core.rng.Get(SubsystemShuffle)
		frames = append([]*Frame(nil), frames...)
		rng.Shuffle(len(frames), func(i, j int) { frames[i], frames[j] = frames[j], frames[i] })
	}

	// PRETRAIN/SEED. A blank-slate run consumes the first frame as a seed
	// batch so every species has at least one labeled example.
	seedFrames := t.SeedFrames
	caps := SeedCaps{PerSpecies: cfg.Selection.SeedPerSpecies, MaxFromFrame: cfg.Selection.MaxAtomsFromFrame}
	if len(seedFrames) == 0 && t.core.surrogate.TrainingStatistics().Total == 0 {
		logrus.Warn("active learning with an empty model: seeding one atom per species from the first frame; " +
			"hyperparameters will take time to become representative")
		seedFrames = frames[:1]
		frames = frames[1:]
		caps = onePerSpeciesCaps(seedFrames[0])
	}
	if len(seedFrames) > 0 && t.core.incremental {
		if _, err := t.core.runSeeding(seedFrames, caps); err != nil {
			return err
		}
	}

	// Past this frame, stop adding atoms to the training set (held out for
	// validation of the model).
	trainBoundary := int(float64(len(frames)) * (1 - cfg.ValidateRatio))

	for i, frame := range frames {
		t.resumeStep = i
		stepStart := time.Now()
		logrus.Infof("===== now on frame %d =====", i)

		if err := t.core.predict(frame); err != nil {
			return t.core.failFatal(err)
		}

		record := trace.StepRecord{Step: i, WallTimeMS: float64(time.Since(stepStart).Microseconds()) / 1000}
		if mae, bySpecies, ok := FrameMAE(frame); ok {
			record.MAE = mae
			record.MAEBySpecies = make(map[string]float64, len(bySpecies))
			for species, v := range bySpecies {
				record.MAEBySpecies[SpeciesLabel(species)] = v
			}
			t.core.metrics.ObserveMAE(mae)
			logrus.Infof("frame %d: mean absolute error %.4f", i, mae)
		}
		t.core.metrics.FramesProcessed++

		if i < trainBoundary {
			result := EvaluateTrust(frame, t.core.surrogate.NoiseScale(), cfg.Trust, cfg.Selection)
			if !result.InBound {
				t.core.metrics.FramesFlagged++
				t.core.plan.Record(i, planEntries(frame, result.Flagged))
				added, err := t.core.admit(i, frame, result.Flagged)
				if err != nil {
					return t.core.failFatal(err)
				}
				record.AtomsAdded = added
			}
			if err := t.core.trainOrRefresh(i, i+1 == trainBoundary); err != nil {
				return t.core.failFatal(err)
			}
			t.resumeStep = i + 1
			t.core.maybeWrite(i)
		} else {
			t.resumeStep = i + 1
		}
		t.core.runLog.Append(record)
	}
	t.resumeStep = len(frames)

	if err := t.core.concludeRun(); err != nil {
		return err
	}
	if cfg.Write.WriteCheckpoint {
		if err := t.checkpoint(); err != nil {
			return fmt.Errorf("writing final checkpoint: %w", err)
		}
		t.core.metrics.CheckpointWrites++
	}
	return nil
}

// checkpoint persists the run state needed to resume before the next
// unprocessed step.
func (t *TrajectoryLearner) checkpoint() error {
	cp := &Checkpoint{
		StepIndex: t.resumeStep,
		Counters:  t.core.counters,
		Saturated: t.core.saturated,
		ModelPath: t.core.lastModelPath,
		Config:    t.core.cfg,
	}
	return cp.Write(t.core.cfg.Write.OutputPrefix + "_checkpoint.yaml")
}
