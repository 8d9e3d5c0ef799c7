package cmd

import (
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/otf-learn/otf-learn/learn"
	"github.com/otf-learn/otf-learn/learn/gp"
)

var (
	trajectoryPath string // Path to the labeled trajectory (JSON array of frames)
	seedPath       string // Optional path to a labeled seed trajectory
	modelPath      string // Optional pre-trained model to start from
	frozen         bool   // Replay against a fixed model without admitting atoms
)

// replayCmd trains the surrogate against a pre-computed labeled trajectory
var replayCmd = &cobra.Command{
	Use:   "replay",
	Short: "Train the surrogate against a labeled trajectory",
	Run: func(cmd *cobra.Command, args []string) {
		if trajectoryPath == "" {
			logrus.Fatal("No trajectory provided. Exiting.")
		}
		cfg, fileCfg := loadConfig()

		frames, err := LoadTrajectory(trajectoryPath)
		if err != nil {
			logrus.Fatalf("Loading trajectory: %v", err)
		}
		logrus.Infof("Loaded %d frames from %s", len(frames), trajectoryPath)

		surrogate := buildSurrogate(fileCfg)
		learner, err := learn.NewTrajectoryLearner(frames, surrogate, cfg)
		if err != nil {
			logrus.Fatalf("Building learner: %v", err)
		}
		if seedPath != "" {
			seedFrames, err := LoadTrajectory(seedPath)
			if err != nil {
				logrus.Fatalf("Loading seed trajectory: %v", err)
			}
			learner.SeedFrames = seedFrames
		}

		if err := learner.Run(); err != nil {
			logrus.Fatalf("Run aborted: %v", err)
		}
		learner.Metrics().Print()
	},
}

// loadConfig reads the YAML run configuration, or falls back to defaults
// when no file is given.
func loadConfig() (learn.RunConfig, *RunFileConfig) {
	if configPath == "" {
		logrus.Info("No run configuration provided; using defaults")
		return learn.DefaultRunConfig(), &RunFileConfig{GP: gpSpec(gp.DefaultConfig())}
	}
	fileCfg, err := LoadRunFileConfig(configPath)
	if err != nil {
		logrus.Fatalf("Loading run configuration: %v", err)
	}
	cfg, err := fileCfg.RunConfig()
	if err != nil {
		logrus.Fatalf("Invalid run configuration: %v", err)
	}
	return cfg, fileCfg
}

// buildSurrogate creates or loads the reference GP, optionally frozen for
// observation-only replays.
func buildSurrogate(fileCfg *RunFileConfig) learn.Surrogate {
	var model *gp.Model
	var err error
	if modelPath != "" {
		model, err = gp.Load(modelPath)
		if err != nil {
			logrus.Fatalf("Loading model: %v", err)
		}
		logrus.Infof("Loaded model with %d training atoms", model.TrainingStatistics().Total)
	} else {
		model, err = gp.New(fileCfg.GPConfig())
		if err != nil {
			logrus.Fatalf("Building surrogate: %v", err)
		}
	}
	if frozen {
		return gp.NewFrozen(model)
	}
	return model
}

// init sets up replay flags
func init() {
	replayCmd.Flags().StringVar(&trajectoryPath, "trajectory", "", "Labeled trajectory file (JSON)")
	replayCmd.Flags().StringVar(&seedPath, "seed-frames", "", "Labeled seed trajectory file (JSON)")
	replayCmd.Flags().StringVar(&modelPath, "model", "", "Pre-trained model to start from")
	replayCmd.Flags().BoolVar(&frozen, "frozen", false, "Record decisions without admitting atoms")
}
