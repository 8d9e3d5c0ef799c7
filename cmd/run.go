package cmd

import (
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/otf-learn/otf-learn/learn"
	"github.com/otf-learn/otf-learn/learn/gp"
)

var (
	structurePath string // Initial structure for the MD run (JSON frame)
	resumePath    string // Checkpoint to resume from
)

// runCmd runs molecular dynamics with in-line oracle calls and training
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run on-the-fly learning inside a molecular-dynamics loop",
	Run: func(cmd *cobra.Command, args []string) {
		cfg, fileCfg := loadConfig()

		if fileCfg.Oracle.Path == "" {
			logrus.Fatal("No oracle command configured. Exiting.")
		}
		oracle, err := learn.NewCommandOracle(fileCfg.Oracle.Path, fileCfg.OTF.WorkDir,
			fileCfg.Oracle.Workers, fileCfg.Oracle.Pools, fileCfg.Oracle.Args)
		if err != nil {
			logrus.Fatalf("Building oracle: %v", err)
		}

		var learner *learn.OnTheFlyLearner
		if resumePath != "" {
			cp, err := learn.LoadCheckpoint(resumePath)
			if err != nil {
				logrus.Fatalf("Loading checkpoint: %v", err)
			}
			model, err := gp.Load(cp.ModelPath)
			if err != nil {
				logrus.Fatalf("Loading checkpointed model: %v", err)
			}
			learner, err = learn.ResumeOnTheFly(resumePath, model, oracle)
			if err != nil {
				logrus.Fatalf("Resuming run: %v", err)
			}
			logrus.Infof("Resumed at step %d with %d oracle calls", cp.StepIndex, cp.OracleCalls)
		} else {
			if structurePath == "" {
				logrus.Fatal("No initial structure provided. Exiting.")
			}
			initial, err := LoadStructure(structurePath)
			if err != nil {
				logrus.Fatalf("Loading structure: %v", err)
			}
			otfCfg, err := fileCfg.OTFConfig()
			if err != nil {
				logrus.Fatalf("Invalid run configuration: %v", err)
			}
			model, err := gp.New(fileCfg.GPConfig())
			if err != nil {
				logrus.Fatalf("Building surrogate: %v", err)
			}
			learner, err = learn.NewOnTheFlyLearner(initial, model, oracle, cfg, otfCfg)
			if err != nil {
				logrus.Fatalf("Building learner: %v", err)
			}
		}

		if err := learner.Run(); err != nil {
			logrus.Fatalf("Run aborted: %v", err)
		}
		learner.Metrics().Print()
	},
}

// init sets up run flags
func init() {
	runCmd.Flags().StringVar(&structurePath, "structure", "", "Initial structure file (JSON frame)")
	runCmd.Flags().StringVar(&resumePath, "resume", "", "Checkpoint file to resume from")
}
