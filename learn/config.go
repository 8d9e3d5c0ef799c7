package learn

import (
	"fmt"
	"math"
)

// TrustConfig groups the thresholds that decide when a prediction is
// trusted. A std tolerance pair of (0, 0) disables the uncertainty signal;
// the force-error signal is active whenever ground-truth forces exist.
type TrustConfig struct {
	RelStdTolerance   float64 // untrusted if std > RelStdTolerance * |noise| (0 = defer to abs)
	AbsStdTolerance   float64 // untrusted if std > AbsStdTolerance (0 = defer to rel)
	AbsForceTolerance float64 // untrusted if |predicted - truth| > this
	MaxForceError     float64 // hard-reject atoms whose error exceeds this (+Inf = no ceiling)
}

// SelectionConfig groups the admission caps. A zero int cap means
// unlimited; per-species maps omit unconstrained species.
type SelectionConfig struct {
	MaxAtomsFromFrame     int                 // max atoms admitted from any one frame
	MaxPerSpeciesPerFrame map[SpeciesCode]int // per-frame cap per species
	MaxModelSize          int                 // global training-set cap
	MaxModelPerSpecies    map[SpeciesCode]int // training-set cap per species
	SeedPerSpecies        map[SpeciesCode]int // per-species cap for seed-frame sampling
}

// ScheduleConfig groups training-schedule parameters.
type ScheduleConfig struct {
	MinAtomsPerTrain int // retrain once this many atoms accumulated (min 1)
	MaxTrainings     int // full-retrain budget (0 = unlimited)
	OptimizeMaxIter  int // optimizer iteration cap (-1 = surrogate default, 0 = refresh only)
	SeedMaxIter      int // optimizer iteration cap for the post-seed training pass
}

// WriteConfig groups model-write and checkpoint cadence. A zero interval
// disables that firing condition.
type WriteConfig struct {
	TrainInterval   int    // write after this many trainings
	AtomInterval    int    // write after this many admitted atoms
	StepInterval    int    // write every this many steps
	WriteModel      bool   // persist the surrogate model on firing
	WriteCheckpoint bool   // persist the full run checkpoint on firing
	OutputPrefix    string // path prefix for model/checkpoint/plan files
}

// PredictConfig bounds the PREDICT stage on large systems.
type PredictConfig struct {
	AtomsPerSpecies map[SpeciesCode]int // random per-species predict subset (absent = all atoms)
	Workers         int                 // prediction fan-out width (<=1 = sequential)
}

// RunConfig is the full configuration surface of the control loop.
type RunConfig struct {
	Trust     TrustConfig
	Selection SelectionConfig
	Schedule  ScheduleConfig
	Write     WriteConfig
	Predict   PredictConfig

	ValidateRatio float64 // trailing fraction of frames held out from training, in [0,1]
	FrameStride   int     // process every Nth frame (min 1)
	ShuffleFrames bool    // randomize frame order before the run
	Seed          int64   // master seed for the partitioned RNG
	IncludeEnergy bool    // pass frame energies to the surrogate on admission
}

// DefaultRunConfig returns the configuration used when a field is not set
// by the caller. Mirrors the defaults of the original trajectory trainer.
func DefaultRunConfig() RunConfig {
	return RunConfig{
		Trust: TrustConfig{
			RelStdTolerance: 4,
			AbsStdTolerance: 1,
			MaxForceError:   math.Inf(1),
		},
		Schedule: ScheduleConfig{
			MinAtomsPerTrain: 1,
			OptimizeMaxIter:  -1,
			SeedMaxIter:      50,
		},
		Write: WriteConfig{
			TrainInterval: 1,
			AtomInterval:  100,
			WriteModel:    true,
			OutputPrefix:  "learn_run",
		},
		FrameStride: 1,
	}
}

// Validate rejects out-of-range thresholds and caps. Invalid configuration
// is fatal at construction and never silently clamped.
func (c *RunConfig) Validate() error {
	t := c.Trust
	if t.RelStdTolerance < 0 || t.AbsStdTolerance < 0 || t.AbsForceTolerance < 0 {
		return fmt.Errorf("trust tolerances must be non-negative, got rel=%v abs=%v force=%v",
			t.RelStdTolerance, t.AbsStdTolerance, t.AbsForceTolerance)
	}
	if t.MaxForceError <= 0 {
		return fmt.Errorf("max_force_error must be positive, got %v", t.MaxForceError)
	}
	s := c.Selection
	if s.MaxAtomsFromFrame < 0 || s.MaxModelSize < 0 {
		return fmt.Errorf("selection caps must be non-negative, got frame=%d model=%d",
			s.MaxAtomsFromFrame, s.MaxModelSize)
	}
	for code, cap := range s.MaxPerSpeciesPerFrame {
		if cap < 0 {
			return fmt.Errorf("per-frame cap for species %s must be non-negative, got %d", SpeciesLabel(code), cap)
		}
	}
	for code, cap := range s.MaxModelPerSpecies {
		if cap < 0 {
			return fmt.Errorf("model cap for species %s must be non-negative, got %d", SpeciesLabel(code), cap)
		}
	}
	for code, cap := range s.SeedPerSpecies {
		if cap < 0 {
			return fmt.Errorf("seed cap for species %s must be non-negative, got %d", SpeciesLabel(code), cap)
		}
	}
	if c.Schedule.MinAtomsPerTrain < 1 {
		return fmt.Errorf("min_atoms_per_train must be at least 1, got %d", c.Schedule.MinAtomsPerTrain)
	}
	if c.Schedule.MaxTrainings < 0 {
		return fmt.Errorf("max_trainings must be non-negative, got %d", c.Schedule.MaxTrainings)
	}
	if c.Schedule.OptimizeMaxIter < -1 {
		return fmt.Errorf("optimize_max_iter must be -1, 0, or positive, got %d", c.Schedule.OptimizeMaxIter)
	}
	w := c.Write
	if w.TrainInterval < 0 || w.AtomInterval < 0 || w.StepInterval < 0 {
		return fmt.Errorf("write intervals must be non-negative, got train=%d atom=%d step=%d",
			w.TrainInterval, w.AtomInterval, w.StepInterval)
	}
	if c.Predict.Workers < 0 {
		return fmt.Errorf("predict workers must be non-negative, got %d", c.Predict.Workers)
	}
	for code, n := range c.Predict.AtomsPerSpecies {
		if n < 0 {
			return fmt.Errorf("predict subset for species %s must be non-negative, got %d", SpeciesLabel(code), n)
		}
	}
	if c.ValidateRatio < 0 || c.ValidateRatio > 1 {
		return fmt.Errorf("validate_ratio must be in [0,1], got %v", c.ValidateRatio)
	}
	if c.FrameStride < 1 {
		return fmt.Errorf("frame_stride must be at least 1, got %d", c.FrameStride)
	}
	return nil
}

// MDConfig groups the molecular-dynamics parameters of the on-the-fly
// driver.
type MDConfig struct {
	Timestep float64                 // integration timestep
	Steps    int                     // step budget for the run
	Masses   map[SpeciesCode]float64 // atomic mass per species
}

// OTFConfig extends RunConfig with on-the-fly-only knobs.
type OTFConfig struct {
	MD                MDConfig
	MinStepsWithModel int    // min MD steps between oracle calls
	WriteModelLevel   int    // 0 never, 1 at end, 2 after training, 3 after admission
	WorkDir           string // oracle scratch directory
}

// Validate rejects out-of-range on-the-fly parameters.
func (c *OTFConfig) Validate() error {
	if c.MD.Timestep <= 0 {
		return fmt.Errorf("md timestep must be positive, got %v", c.MD.Timestep)
	}
	if c.MD.Steps < 0 {
		return fmt.Errorf("md step budget must be non-negative, got %d", c.MD.Steps)
	}
	for code, m := range c.MD.Masses {
		if m <= 0 {
			return fmt.Errorf("mass for species %s must be positive, got %v", SpeciesLabel(code), m)
		}
	}
	if c.MinStepsWithModel < 0 {
		return fmt.Errorf("min_steps_with_model must be non-negative, got %d", c.MinStepsWithModel)
	}
	if c.WriteModelLevel < 0 || c.WriteModelLevel > 3 {
		return fmt.Errorf("write_model_level must be 0..3, got %d", c.WriteModelLevel)
	}
	return nil
}
