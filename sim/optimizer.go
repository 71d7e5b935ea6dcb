package sim

import (
	"math"

	"github.com/remimazolam/tci-engine/sim/solver"
)

const (
	rateGridMin   = 0.1
	rateGridMax   = 6.0
	coarseStep    = 0.1
	fineHalfWidth = 0.3
	fineStep      = 0.02
)

// GridEval is one (rate, predicted Ce) sample from a ProtocolOptimizer
// grid search stage.
type GridEval struct {
	RateMgKgH float64
	PredCe    float64
	AbsErr    float64
}

// ProtocolResult is the outcome of optimize(): the chosen rate, its
// predicted Ce at targetTime, the full evaluation table from both grid
// stages, and whether the search was infeasible (§7 KindOptimizerInfeasible
// is reported via Infeasible, not returned as an error — callers may
// accept or reject a best-effort result per §7).
type ProtocolResult struct {
	RateMgKgH  float64
	PredictedCe float64
	Evaluations []GridEval
	Infeasible  bool
}

// Optimize runs the two-stage grid search of C7/§4.7: given a bolus B
// (mg), a target effect-site concentration, and a target time, choose a
// constant continuous rate r* ∈ [0.1,6.0] mg/kg/h minimizing
// |Ce(targetTime; r) - targetCe|. Every evaluation runs a full simulation
// from t=0 to targetTime with the given solverMethod (RK4 by default).
func Optimize(pk *PKParameters, weightKg, bolusMg, targetCe, targetTime float64, solverMethod solver.Method) (ProtocolResult, error) {
	if solverMethod == "" {
		solverMethod = solver.RK4
	}
	opts := DefaultSimulatorOptions()
	opts.Solver = solverMethod

	evalAt := func(rate float64) (GridEval, error) {
		schedule := constantRateSchedule(weightKg, bolusMg, rate)
		sim := NewSimulator(pk, schedule)
		result, err := sim.Run(targetTime, opts)
		if err != nil {
			return GridEval{}, err
		}
		ce := ceAtOrNearest(result, targetTime)
		return GridEval{RateMgKgH: rate, PredCe: ce, AbsErr: math.Abs(ce - targetCe)}, nil
	}

	var all []GridEval

	// Stage 1: coarse grid, step 0.1.
	best := GridEval{AbsErr: math.Inf(1)}
	for r := rateGridMin; r <= rateGridMax+1e-9; r += coarseStep {
		e, err := evalAt(round2(r))
		if err != nil {
			return ProtocolResult{}, err
		}
		all = append(all, e)
		if e.AbsErr < best.AbsErr || (e.AbsErr == best.AbsErr && e.RateMgKgH < best.RateMgKgH) {
			best = e
		}
	}

	// Stage 2: fine grid, step 0.02, within +/-0.3 of the coarse winner.
	lo := math.Max(rateGridMin, best.RateMgKgH-fineHalfWidth)
	hi := math.Min(rateGridMax, best.RateMgKgH+fineHalfWidth)
	finest := best
	for r := lo; r <= hi+1e-9; r += fineStep {
		e, err := evalAt(round2(r))
		if err != nil {
			return ProtocolResult{}, err
		}
		all = append(all, e)
		if e.AbsErr < finest.AbsErr || (e.AbsErr == finest.AbsErr && e.RateMgKgH < finest.RateMgKgH) {
			finest = e
		}
	}

	result := ProtocolResult{
		RateMgKgH:   finest.RateMgKgH,
		PredictedCe: finest.PredCe,
		Evaluations: all,
	}
	if targetCe > 0 && finest.AbsErr/targetCe > 0.03 {
		// Best-effort result still returned; spec.md §7 marks this
		// infeasible rather than failing the call outright.
		result.Infeasible = true
	}
	return result, nil
}

// ceAtOrNearest returns Ce at the recorded point closest to t (exact match
// expected since the simulation runs exactly to t).
func ceAtOrNearest(r *SimulationResult, t float64) float64 {
	if len(r.Points) == 0 {
		return 0
	}
	best := r.Points[0]
	bestDiff := math.Abs(best.T - t)
	for _, p := range r.Points[1:] {
		if d := math.Abs(p.T - t); d < bestDiff {
			best, bestDiff = p, d
		}
	}
	return best.Ce
}

// round2 rounds to 2 decimal places, keeping the grid's rate labels exact
// (0.1, 0.12, ... instead of float accumulation drift like 0.120000001).
func round2(x float64) float64 {
	return math.Round(x*100) / 100
}
