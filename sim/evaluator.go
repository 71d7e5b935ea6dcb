package sim

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// maintenanceWindowStart is the §4.9 cutoff (minutes) after which a
// trajectory is assumed to have reached its maintenance phase.
const maintenanceWindowStart = 60.0

// Evaluation is the C9 PerformanceEvaluator output (§4.9).
type Evaluation struct {
	TargetAccuracy    float64 // A, percent of the maintenance window within +/-10% of tau
	AverageDeviation  float64 // mean |Ce-tau| over the maintenance window
	StabilityIndex    float64 // S
	ConvergenceTime   float64 // T_c, minutes; math.Inf(1) if never reached
	OvershootPct      float64
	UndershootPct     float64
	CompositeScore    float64
	MaintenanceWindow int // |W|, number of points with t>=60
}

// Evaluate scores a trajectory against target Ce tau (C9, §4.9). It
// operates on any SimulationResult, whether produced by Simulator.Run or
// RunControlled.Trajectory, since both satisfy the same TimePoint shape.
func Evaluate(traj *SimulationResult, targetCe float64) (Evaluation, error) {
	if targetCe <= 0 {
		return Evaluation{}, newErr(KindInvalidDose, nil, "target Ce must be positive, got %g", targetCe)
	}

	var windowCe []float64
	withinBand := 0

	for _, p := range traj.Points {
		if p.T < maintenanceWindowStart {
			continue
		}
		windowCe = append(windowCe, p.Ce)
		if math.Abs(p.Ce-targetCe) <= 0.1*targetCe {
			withinBand++
		}
	}

	eval := Evaluation{MaintenanceWindow: len(windowCe)}

	if len(windowCe) > 0 {
		eval.TargetAccuracy = 100 * float64(withinBand) / float64(len(windowCe))

		deviations := make([]float64, len(windowCe))
		for i, ce := range windowCe {
			deviations[i] = math.Abs(ce - targetCe)
		}
		eval.AverageDeviation = stat.Mean(deviations, nil)

		if len(windowCe) > 1 {
			consecutiveAbsDiffs := make([]float64, len(windowCe)-1)
			for i := 1; i < len(windowCe); i++ {
				consecutiveAbsDiffs[i-1] = math.Abs(windowCe[i] - windowCe[i-1])
			}
			eval.StabilityIndex = math.Max(0, 100-1000*stat.Mean(consecutiveAbsDiffs, nil))
		} else {
			eval.StabilityIndex = 100
		}

		undershoot := 0
		for _, ce := range windowCe {
			if ce < 0.9*targetCe {
				undershoot++
			}
		}
		eval.UndershootPct = 100 * float64(undershoot) / float64(len(windowCe))
	}

	eval.ConvergenceTime = convergenceTime(traj.Points, targetCe)
	eval.OvershootPct = overshootPct(traj.Points, targetCe)

	var convergenceScore float64
	if eval.ConvergenceTime < 30 {
		convergenceScore = 100
	} else if math.IsInf(eval.ConvergenceTime, 1) {
		convergenceScore = 0
	} else {
		convergenceScore = math.Max(0, 100-2*(eval.ConvergenceTime-30))
	}

	overshootPenalty := 2 * math.Max(0, eval.OvershootPct-10)
	eval.CompositeScore = math.Max(0, 0.4*eval.TargetAccuracy+0.3*eval.StabilityIndex+0.3*convergenceScore-overshootPenalty)

	return eval, nil
}

// convergenceTime returns the first t (over the whole trajectory, not
// just the maintenance window) with |Ce(t)-tau| <= 0.05*tau, or +Inf if
// the band is never entered.
func convergenceTime(points []TimePoint, targetCe float64) float64 {
	band := 0.05 * targetCe
	for _, p := range points {
		if math.Abs(p.Ce-targetCe) <= band {
			return p.T
		}
	}
	return math.Inf(1)
}

// overshootPct computes 100*(max Ce - tau)/tau restricted to points
// where Ce exceeds 1.1*tau; 0 if no such point exists.
func overshootPct(points []TimePoint, targetCe float64) float64 {
	var excursions []float64
	for _, p := range points {
		if p.Ce > 1.1*targetCe {
			excursions = append(excursions, p.Ce)
		}
	}
	if len(excursions) == 0 {
		return 0
	}
	maxCe := floats.Max(excursions)
	return 100 * (maxCe - targetCe) / targetCe
}
