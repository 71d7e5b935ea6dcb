// cmd/root.go
package cmd

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/remimazolam/tci-engine/sim"
	"github.com/remimazolam/tci-engine/sim/solver"
)

var (
	scenarioPath string
	logLevel     string
	exportPath   string
	dryRun       bool

	patientID      string
	ageYears       float64
	weightKg       float64
	heightCm       float64
	sexFlag        string
	asaFlag        string
	bolusMg        float64
	contRateMgKgH  float64
	durationMin    float64
	targetCeUgMl   float64
	targetTimeMin  float64
	solverMethod   string
	solverTimeStep float64
)

var rootCmd = &cobra.Command{
	Use:   "tci-engine",
	Short: "Target-controlled infusion simulation engine for remimazolam",
}

// Execute runs the root command; it is the sole entry point main.go calls.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&scenarioPath, "scenario", "", "Path to a scenario YAML file (overrides individual patient/dose flags)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log", "info", "Log level (debug, info, warn, error)")

	for _, c := range []*cobra.Command{simulateCmd, optimizeCmd, controlCmd} {
		c.Flags().StringVar(&patientID, "id", "p1", "Patient identifier")
		c.Flags().Float64Var(&ageYears, "age", 45, "Patient age in years")
		c.Flags().Float64Var(&weightKg, "weight", 70, "Patient total body weight in kg")
		c.Flags().Float64Var(&heightCm, "height", 170, "Patient height in cm")
		c.Flags().StringVar(&sexFlag, "sex", "male", "Patient sex (male, female)")
		c.Flags().StringVar(&asaFlag, "asa", "I-II", "ASA physical status (I-II, III-IV)")
		c.Flags().Float64Var(&bolusMg, "bolus", 12, "Bolus dose in mg")
		c.Flags().StringVar(&solverMethod, "solver", "rk4", "Numerical solver (euler, rk4, dopri5)")
		c.Flags().Float64Var(&solverTimeStep, "time-step", 0.1, "Fixed-step solver step size in minutes")
		c.Flags().StringVar(&exportPath, "export", "", "Optional CSV export path")
		c.Flags().BoolVar(&dryRun, "dry-run", false, "Validate patient covariates and dose schedule, then exit without running the numerics")
	}

	simulateCmd.Flags().Float64Var(&contRateMgKgH, "rate", 1.0, "Continuous infusion rate in mg/kg/h")
	simulateCmd.Flags().Float64Var(&durationMin, "duration", 60, "Simulation duration in minutes")

	optimizeCmd.Flags().Float64Var(&targetCeUgMl, "target-ce", 1.0, "Target effect-site concentration in ug/ml")
	optimizeCmd.Flags().Float64Var(&targetTimeMin, "target-time", 20, "Time at which to reach the target, in minutes")

	controlCmd.Flags().Float64Var(&targetCeUgMl, "target-ce", 1.0, "Target effect-site concentration in ug/ml")
	controlCmd.Flags().Float64Var(&contRateMgKgH, "rate", 1.0, "Initial continuous infusion rate in mg/kg/h")
	controlCmd.Flags().Float64Var(&durationMin, "duration", 180, "Controlled run duration in minutes")

	rootCmd.AddCommand(simulateCmd, optimizeCmd, controlCmd)
}

func setLogLevel() {
	level, err := logrus.ParseLevel(logLevel)
	if err != nil {
		logrus.Fatalf("invalid log level: %s", logLevel)
	}
	logrus.SetLevel(level)
}

// loadBundle builds a ScenarioBundle from --scenario if given, else from
// the flat patient/dose flags bound above.
func loadBundle() (*sim.ScenarioBundle, error) {
	if scenarioPath != "" {
		return sim.LoadScenarioBundle(scenarioPath)
	}
	b := &sim.ScenarioBundle{
		Patient: sim.PatientConfig{
			ID: patientID, AgeYears: ageYears, WeightKg: weightKg, HeightCm: heightCm,
			Sex: sexFlag, ASAPS: asaFlag,
		},
		Dose:   sim.DoseConfig{BolusMg: bolusMg},
		Target: &sim.TargetConfig{CeUgMl: targetCeUgMl, TimeMin: targetTimeMin},
		Solver: sim.SolverConfig{Method: solverMethod, TimeStep: &solverTimeStep},
	}
	if err := b.Validate(); err != nil {
		return nil, err
	}
	return b, nil
}

func solverMethodFromFlag() solver.Method {
	return sim.SolverConfig{Method: solverMethod}.SolverMethod()
}

// checkDryRun builds the patient and dose schedule the bundle describes
// (surfacing any covariate-range or negative-dose error) and, if --dry-run
// was given, reports success and signals the caller to stop before
// running any numerics.
func checkDryRun(bundle *sim.ScenarioBundle) (stop bool, err error) {
	if _, err := bundle.ToPatient(); err != nil {
		return false, err
	}
	if _, err := bundle.ToSchedule(); err != nil {
		return false, err
	}
	if !dryRun {
		return false, nil
	}
	fmt.Println("scenario valid")
	return true, nil
}

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Simulate plasma and effect-site concentrations for a fixed dosing protocol",
	RunE: func(cmd *cobra.Command, args []string) error {
		setLogLevel()
		bundle, err := loadBundle()
		if err != nil {
			return err
		}
		bundle.Dose.Events = append(bundle.Dose.Events, sim.DoseEventConfig{TimeMin: 0, ContMgKgH: contRateMgKgH})

		if stop, err := checkDryRun(bundle); err != nil || stop {
			return err
		}

		patient, err := bundle.ToPatient()
		if err != nil {
			return err
		}
		pk, err := sim.DerivePKParameters(patient)
		if err != nil {
			return err
		}
		schedule, err := bundle.ToSchedule()
		if err != nil {
			return err
		}
		logrus.Infof("simulating patient=%s weight=%.1fkg rate=%.2fmg/kg/h duration=%.0fmin solver=%s",
			patient.ID, patient.WeightKg, contRateMgKgH, durationMin, solverMethod)

		simulator := sim.NewSimulator(pk, schedule)
		opts := bundle.Solver.ToSimulatorOptions()
		result, err := simulator.Run(durationMin, opts)
		if err != nil {
			return err
		}
		logrus.Infof("done: %d points, max Ce=%.4f at final Cp=%.4f", len(result.Points), result.MaxCe, result.FinalCp)
		logrus.Infof("solver stats: method=%s total=%d accepted=%d rejected=%d min_h=%g max_h=%g evals=%d",
			result.Stats.Method, result.Stats.TotalSteps, result.Stats.AcceptedSteps, result.Stats.RejectedSteps,
			result.Stats.MinStep, result.Stats.MaxStep, result.Stats.FuncEvals)

		if exportPath != "" {
			if err := exportTimePoints(exportPath, patient, result.Points); err != nil {
				return err
			}
			logrus.Infof("exported trajectory to %s", exportPath)
		}
		fmt.Printf("final: t=%.1f Cp=%.4f Ce=%.4f\n", durationMin, result.FinalCp, result.FinalCe)
		return nil
	},
}

var optimizeCmd = &cobra.Command{
	Use:   "optimize",
	Short: "Grid-search a continuous infusion rate that reaches a target Ce at a target time",
	RunE: func(cmd *cobra.Command, args []string) error {
		setLogLevel()
		bundle, err := loadBundle()
		if err != nil {
			return err
		}
		if stop, err := checkDryRun(bundle); err != nil || stop {
			return err
		}
		patient, err := bundle.ToPatient()
		if err != nil {
			return err
		}
		pk, err := sim.DerivePKParameters(patient)
		if err != nil {
			return err
		}
		logrus.Infof("optimizing for target Ce=%.3f at t=%.1fmin", targetCeUgMl, targetTimeMin)

		result, err := sim.Optimize(pk, patient.WeightKg, bundle.Dose.BolusMg, targetCeUgMl, targetTimeMin, solverMethodFromFlag())
		if err != nil {
			return err
		}
		if result.Infeasible {
			logrus.Warnf("target not reachable within tolerance; reporting best effort")
		}
		fmt.Printf("rate=%.3f mg/kg/h predicted_ce=%.4f infeasible=%v\n", result.RateMgKgH, result.PredictedCe, result.Infeasible)
		return nil
	},
}

var controlCmd = &cobra.Command{
	Use:   "control",
	Short: "Run a longer simulation with the step-down controller active",
	RunE: func(cmd *cobra.Command, args []string) error {
		setLogLevel()
		bundle, err := loadBundle()
		if err != nil {
			return err
		}
		if stop, err := checkDryRun(bundle); err != nil || stop {
			return err
		}
		patient, err := bundle.ToPatient()
		if err != nil {
			return err
		}
		pk, err := sim.DerivePKParameters(patient)
		if err != nil {
			return err
		}
		logrus.Infof("running controlled simulation: target Ce=%.3f initial rate=%.2f duration=%.0fmin",
			targetCeUgMl, contRateMgKgH, durationMin)

		opts := bundle.Controller.ToControllerOptions(durationMin)
		run, err := sim.RunControlled(pk, patient.WeightKg, bundle.Dose.BolusMg, contRateMgKgH, targetCeUgMl, opts)
		if err != nil {
			return err
		}
		logrus.Infof("%d adjustments recorded", len(run.Adjustments))

		eval, err := sim.Evaluate(run.Trajectory, targetCeUgMl)
		if err != nil {
			return err
		}
		fmt.Printf("composite_score=%.2f target_accuracy=%.1f%% stability=%.1f convergence_time=%.1fmin overshoot=%.1f%% undershoot=%.1f%%\n",
			eval.CompositeScore, eval.TargetAccuracy, eval.StabilityIndex, eval.ConvergenceTime, eval.OvershootPct, eval.UndershootPct)

		if exportPath != "" {
			if err := exportTimePoints(exportPath, patient, run.Trajectory.Points); err != nil {
				return err
			}
			logrus.Infof("exported trajectory to %s", exportPath)
		}
		return nil
	},
}
