package cmd

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/remimazolam/tci-engine/sim"
)

// scenarioCmd runs the full C1->C9 pipeline from a single scenario YAML
// file: derive PK parameters, optimize a rate against bundle.Target
// (which must be set), then run the controlled simulation and report its
// performance evaluation. It exists for scenario files that specify a
// target Ce without a fixed continuous rate, where `simulate` would use
// the --rate flag instead.
var scenarioCmd = &cobra.Command{
	Use:   "scenario",
	Short: "Run a full scenario (optimize + controlled simulation + evaluation) from a YAML file",
	RunE: func(cmd *cobra.Command, args []string) error {
		setLogLevel()
		if scenarioPath == "" {
			return fmt.Errorf("scenario command requires --scenario")
		}
		bundle, err := sim.LoadScenarioBundle(scenarioPath)
		if err != nil {
			return err
		}
		if bundle.Target == nil {
			return fmt.Errorf("scenario file must set target.ce_ug_ml for the scenario pipeline")
		}

		patient, err := bundle.ToPatient()
		if err != nil {
			return err
		}
		pk, err := sim.DerivePKParameters(patient)
		if err != nil {
			return err
		}

		targetTime := bundle.Target.TimeMin
		if targetTime <= 0 {
			targetTime = 20
		}
		logrus.Infof("optimizing rate for patient=%s target Ce=%.3f at t=%.1fmin", patient.ID, bundle.Target.CeUgMl, targetTime)
		optResult, err := sim.Optimize(pk, patient.WeightKg, bundle.Dose.BolusMg, bundle.Target.CeUgMl, targetTime, bundle.Solver.SolverMethod())
		if err != nil {
			return err
		}
		fmt.Printf("optimized rate=%.3f mg/kg/h predicted_ce=%.4f infeasible=%v\n", optResult.RateMgKgH, optResult.PredictedCe, optResult.Infeasible)

		duration := bundle.Target.DurationMin
		controllerOpts := bundle.Controller.ToControllerOptions(duration)
		logrus.Infof("running controlled simulation for %.0f min", controllerOpts.Duration)
		run, err := sim.RunControlled(pk, patient.WeightKg, bundle.Dose.BolusMg, optResult.RateMgKgH, bundle.Target.CeUgMl, controllerOpts)
		if err != nil {
			return err
		}

		eval, err := sim.Evaluate(run.Trajectory, bundle.Target.CeUgMl)
		if err != nil {
			return err
		}
		fmt.Printf("composite_score=%.2f target_accuracy=%.1f%% stability=%.1f convergence_time=%.1fmin adjustments=%d\n",
			eval.CompositeScore, eval.TargetAccuracy, eval.StabilityIndex, eval.ConvergenceTime, len(run.Adjustments))

		if exportPath != "" {
			if err := exportTimePoints(exportPath, patient, run.Trajectory.Points); err != nil {
				return err
			}
			logrus.Infof("exported trajectory to %s", exportPath)
		}
		return nil
	},
}

func init() {
	scenarioCmd.Flags().StringVar(&exportPath, "export", "", "Optional CSV export path")
	rootCmd.AddCommand(scenarioCmd)
}
