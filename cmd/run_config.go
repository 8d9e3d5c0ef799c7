package cmd

import (
	"fmt"
	"math"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/otf-learn/otf-learn/learn"
	"github.com/otf-learn/otf-learn/learn/gp"
)

// The YAML run configuration mirrors the Go config structs, with species
// keyed by element symbol. Symbols are translated to species codes here and
// nowhere else.

type trustSpec struct {
	RelStdTolerance   float64 `yaml:"rel_std_tolerance"`
	AbsStdTolerance   float64 `yaml:"abs_std_tolerance"`
	AbsForceTolerance float64 `yaml:"abs_force_tolerance"`
	MaxForceError     float64 `yaml:"max_force_error"` // 0 = no ceiling
}

type selectionSpec struct {
	MaxAtomsFromFrame     int            `yaml:"max_atoms_from_frame"`
	MaxPerSpeciesPerFrame map[string]int `yaml:"max_per_species_per_frame"`
	MaxModelSize          int            `yaml:"max_model_size"`
	MaxModelPerSpecies    map[string]int `yaml:"max_model_per_species"`
	SeedPerSpecies        map[string]int `yaml:"seed_per_species"`
}

type scheduleSpec struct {
	MinAtomsPerTrain int `yaml:"min_atoms_per_train"`
	MaxTrainings     int `yaml:"max_trainings"`
	OptimizeMaxIter  int `yaml:"optimize_max_iter"`
	SeedMaxIter      int `yaml:"seed_max_iter"`
}

type writeSpec struct {
	TrainInterval   int    `yaml:"train_interval"`
	AtomInterval    int    `yaml:"atom_interval"`
	StepInterval    int    `yaml:"step_interval"`
	WriteModel      bool   `yaml:"write_model"`
	WriteCheckpoint bool   `yaml:"write_checkpoint"`
	OutputPrefix    string `yaml:"output_prefix"`
}

type predictSpec struct {
	AtomsPerSpecies map[string]int `yaml:"atoms_per_species"`
	Workers         int            `yaml:"workers"`
}

type runSpec struct {
	ValidateRatio float64 `yaml:"validate_ratio"`
	FrameStride   int     `yaml:"frame_stride"`
	ShuffleFrames bool    `yaml:"shuffle_frames"`
	Seed          int64   `yaml:"seed"`
	IncludeEnergy bool    `yaml:"include_energy"`
}

type otfSpec struct {
	Timestep          float64            `yaml:"timestep"`
	Steps             int                `yaml:"steps"`
	Masses            map[string]float64 `yaml:"masses"`
	MinStepsWithModel int                `yaml:"min_steps_with_model"`
	WriteModelLevel   int                `yaml:"write_model_level"`
	WorkDir           string             `yaml:"workdir"`
}

type oracleSpec struct {
	Path    string   `yaml:"path"`
	Workers int      `yaml:"workers"`
	Pools   int      `yaml:"pools"`
	Args    []string `yaml:"args"`
}

type gpSpec struct {
	SignalStd   float64 `yaml:"signal_std"`
	LengthScale float64 `yaml:"length_scale"`
	NoiseStd    float64 `yaml:"noise_std"`
	Neighbors   int     `yaml:"neighbors"`
	MaxIter     int     `yaml:"max_iter"`
}

// RunFileConfig is the top-level YAML document.
type RunFileConfig struct {
	Trust     trustSpec     `yaml:"trust"`
	Selection selectionSpec `yaml:"selection"`
	Schedule  scheduleSpec  `yaml:"schedule"`
	Write     writeSpec     `yaml:"write"`
	Predict   predictSpec   `yaml:"predict"`
	Run       runSpec       `yaml:"run"`
	GP        gpSpec        `yaml:"gp"`
	OTF       otfSpec       `yaml:"otf"`
	Oracle    oracleSpec    `yaml:"oracle"`
}

// LoadRunFileConfig reads and parses the YAML run configuration, filling
// unset fields with the library defaults.
func LoadRunFileConfig(path string) (*RunFileConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading run configuration: %w", err)
	}

	defaults := learn.DefaultRunConfig()
	cfg := &RunFileConfig{
		Trust: trustSpec{
			RelStdTolerance: defaults.Trust.RelStdTolerance,
			AbsStdTolerance: defaults.Trust.AbsStdTolerance,
		},
		Schedule: scheduleSpec{
			MinAtomsPerTrain: defaults.Schedule.MinAtomsPerTrain,
			OptimizeMaxIter:  defaults.Schedule.OptimizeMaxIter,
			SeedMaxIter:      defaults.Schedule.SeedMaxIter,
		},
		Write: writeSpec{
			TrainInterval: defaults.Write.TrainInterval,
			AtomInterval:  defaults.Write.AtomInterval,
			WriteModel:    defaults.Write.WriteModel,
			OutputPrefix:  defaults.Write.OutputPrefix,
		},
		Run: runSpec{
			FrameStride: defaults.FrameStride,
			Seed:        42,
		},
		GP: gpSpec(gp.DefaultConfig()),
		OTF: otfSpec{
			WriteModelLevel: 1,
			WorkDir:         ".",
		},
		Oracle: oracleSpec{Workers: 1, Pools: 1},
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing run configuration: %w", err)
	}
	return cfg, nil
}

// RunConfig translates the YAML document into the validated loop
// configuration.
func (c *RunFileConfig) RunConfig() (learn.RunConfig, error) {
	perFrame, err := speciesIntMap(c.Selection.MaxPerSpeciesPerFrame)
	if err != nil {
		return learn.RunConfig{}, fmt.Errorf("max_per_species_per_frame: %w", err)
	}
	perModel, err := speciesIntMap(c.Selection.MaxModelPerSpecies)
	if err != nil {
		return learn.RunConfig{}, fmt.Errorf("max_model_per_species: %w", err)
	}
	seedCaps, err := speciesIntMap(c.Selection.SeedPerSpecies)
	if err != nil {
		return learn.RunConfig{}, fmt.Errorf("seed_per_species: %w", err)
	}
	predictSubset, err := speciesIntMap(c.Predict.AtomsPerSpecies)
	if err != nil {
		return learn.RunConfig{}, fmt.Errorf("atoms_per_species: %w", err)
	}

	maxForceError := c.Trust.MaxForceError
	if maxForceError == 0 {
		maxForceError = math.Inf(1)
	}

	cfg := learn.RunConfig{
		Trust: learn.TrustConfig{
			RelStdTolerance:   c.Trust.RelStdTolerance,
			AbsStdTolerance:   c.Trust.AbsStdTolerance,
			AbsForceTolerance: c.Trust.AbsForceTolerance,
			MaxForceError:     maxForceError,
		},
		Selection: learn.SelectionConfig{
			MaxAtomsFromFrame:     c.Selection.MaxAtomsFromFrame,
			MaxPerSpeciesPerFrame: perFrame,
			MaxModelSize:          c.Selection.MaxModelSize,
			MaxModelPerSpecies:    perModel,
			SeedPerSpecies:        seedCaps,
		},
		Schedule: learn.ScheduleConfig{
			MinAtomsPerTrain: c.Schedule.MinAtomsPerTrain,
			MaxTrainings:     c.Schedule.MaxTrainings,
			OptimizeMaxIter:  c.Schedule.OptimizeMaxIter,
			SeedMaxIter:      c.Schedule.SeedMaxIter,
		},
		Write: learn.WriteConfig{
			TrainInterval:   c.Write.TrainInterval,
			AtomInterval:    c.Write.AtomInterval,
			StepInterval:    c.Write.StepInterval,
			WriteModel:      c.Write.WriteModel,
			WriteCheckpoint: c.Write.WriteCheckpoint,
			OutputPrefix:    c.Write.OutputPrefix,
		},
		Predict: learn.PredictConfig{
			AtomsPerSpecies: predictSubset,
			Workers:         c.Predict.Workers,
		},
		ValidateRatio: c.Run.ValidateRatio,
		FrameStride:   c.Run.FrameStride,
		ShuffleFrames: c.Run.ShuffleFrames,
		Seed:          c.Run.Seed,
		IncludeEnergy: c.Run.IncludeEnergy,
	}
	if err := cfg.Validate(); err != nil {
		return learn.RunConfig{}, err
	}
	return cfg, nil
}

// OTFConfig translates the on-the-fly section.
func (c *RunFileConfig) OTFConfig() (learn.OTFConfig, error) {
	masses := make(map[learn.SpeciesCode]float64, len(c.OTF.Masses))
	for label, m := range c.OTF.Masses {
		code, err := learn.ParseSpecies(label)
		if err != nil {
			return learn.OTFConfig{}, fmt.Errorf("masses: %w", err)
		}
		masses[code] = m
	}
	cfg := learn.OTFConfig{
		MD: learn.MDConfig{
			Timestep: c.OTF.Timestep,
			Steps:    c.OTF.Steps,
			Masses:   masses,
		},
		MinStepsWithModel: c.OTF.MinStepsWithModel,
		WriteModelLevel:   c.OTF.WriteModelLevel,
		WorkDir:           c.OTF.WorkDir,
	}
	if err := cfg.Validate(); err != nil {
		return learn.OTFConfig{}, err
	}
	return cfg, nil
}

// GPConfig translates the reference-surrogate section.
func (c *RunFileConfig) GPConfig() gp.Config { return gp.Config(c.GP) }

// speciesIntMap translates element-symbol keys to species codes.
func speciesIntMap(in map[string]int) (map[learn.SpeciesCode]int, error) {
	if len(in) == 0 {
		return nil, nil
	}
	out := make(map[learn.SpeciesCode]int, len(in))
	for label, v := range in {
		code, err := learn.ParseSpecies(label)
		if err != nil {
			return nil, err
		}
		out[code] = v
	}
	return out, nil
}
