package sim

import "github.com/remimazolam/tci-engine/sim/solver"

// ControllerOptions configures StepDownController (C8, §4.8), with the
// §6-listed defaults.
type ControllerOptions struct {
	Duration            float64 // min, default 180
	TimeStep            float64 // min, default 0.1
	UpperThresholdRatio float64 // default 1.2
	ReductionFactor     float64 // default 0.70
	MinimumRateMgKgH    float64 // default 0.1
	AdjustmentInterval  float64 // min, default 5.0
}

// DefaultControllerOptions returns the §6 defaults.
func DefaultControllerOptions() ControllerOptions {
	return ControllerOptions{
		Duration:            180,
		TimeStep:            0.1,
		UpperThresholdRatio: 1.2,
		ReductionFactor:     0.70,
		MinimumRateMgKgH:    0.1,
		AdjustmentInterval:  5.0,
	}
}

// Adjustment records one step-down event (§4.8).
type Adjustment struct {
	Index        int
	T            float64
	OldRateMgKgH float64
	NewRateMgKgH float64
	Ce           float64
	ReductionPct float64
	CeOverTau    float64
}

// ControlledRunResult is the §6 `run_controlled` output.
type ControlledRunResult struct {
	Trajectory  *SimulationResult
	Adjustments []Adjustment
}

// RunControlled drives a fixed-step RK4 simulation over [0,Duration] with
// the step-down controller active (C8, §4.8). It is implemented as a
// sequence of single-TimeStep solves over a schedule that the controller
// mutates in place, so the controller's rule can run "at every integrator
// output time" as spec.md requires: that output cadence is exactly
// opts.TimeStep for the fixed-step RK4 driver used here (the spec does
// not define controller behavior under the adaptive solver, so this
// operation does not expose a solver choice).
func RunControlled(pk *PKParameters, weightKg, bolusMg, initialRateMgKgH, targetCe float64, opts ControllerOptions) (ControlledRunResult, error) {
	schedule := constantRateSchedule(weightKg, bolusMg, initialRateMgKgH)
	system := NewPKPDSystem(pk)
	rhs := func(t float64, y solver.State, rate float64) solver.State {
		return solver.State(system.RHS(t, SystemState(y), rate))
	}

	solverOpts := solver.DefaultOptions(solver.RK4)
	solverOpts.TimeStep = opts.TimeStep

	y := solver.State{schedule.BolusAt(0), 0, 0, 0}
	upperThreshold := targetCe * opts.UpperThresholdRatio

	var times []float64
	var states []solver.State
	times = append(times, 0)
	states = append(states, y)

	currentRate := initialRateMgKgH
	tLastAdj := -1e18 // no earlier adjustment, so the interval rule never blocks the first one
	var adjustments []Adjustment
	combinedStats := solver.Stats{Method: solver.RK4, MinStep: opts.TimeStep, MaxStep: opts.TimeStep}

	t := 0.0
	for t < opts.Duration-1e-12 {
		hStep := opts.TimeStep
		if t+hStep > opts.Duration {
			hStep = opts.Duration - t
		}
		rate := func(tt float64) float64 { return schedule.Rate(tt) }
		r, err := solver.Solve(rhs, y, t, t+hStep, rate, solverOpts)
		if err != nil {
			return ControlledRunResult{}, newErr(KindSolverDiverged, err, "controlled run at t=%g", t)
		}
		mergeStats(&combinedStats, r.Stats)
		y = r.States[len(r.States)-1]
		t += hStep

		ce := y[3]
		times = append(times, t)
		states = append(states, y)

		if ce >= upperThreshold && (t-tLastAdj) >= opts.AdjustmentInterval && currentRate > opts.MinimumRateMgKgH {
			newRate := currentRate * opts.ReductionFactor
			if newRate < opts.MinimumRateMgKgH {
				newRate = opts.MinimumRateMgKgH
			}
			adjustments = append(adjustments, Adjustment{
				Index:        len(adjustments),
				T:            t,
				OldRateMgKgH: currentRate,
				NewRateMgKgH: newRate,
				Ce:           ce,
				ReductionPct: 100 * (1 - newRate/currentRate),
				CeOverTau:    ce / targetCe,
			})
			currentRate = newRate
			schedule.SetRate(t, currentRate)
			tLastAdj = t
		}
	}

	if err := checkMonotone(times); err != nil {
		return ControlledRunResult{}, err
	}

	points := make([]TimePoint, len(times))
	for i, tt := range times {
		st := states[i]
		points[i] = TimePoint{T: tt, Cp: st[0] / pk.V1, Ce: st[3]}
	}
	trajectory := &SimulationResult{Points: points, Stats: combinedStats}
	trajectory.summarize()

	return ControlledRunResult{Trajectory: trajectory, Adjustments: adjustments}, nil
}
