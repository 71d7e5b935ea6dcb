// Package solver provides the unified numerical integration contract for
// the PK/PD ODE system (C5, §4.5): a single `Solve` operation with three
// variants — fixed-step Euler and RK4, and adaptive Dormand-Prince 5(4).
//
// The package is deliberately agnostic of the PK/PD domain: State is a
// fixed 4-vector and RHSFunc is a plain function, so sim.PKPDSystem's
// RHS method is adapted to RHSFunc at the call site (sim/simulator.go)
// rather than this package importing sim and creating an import cycle.
//
// Design note (§9 Open Question): the teacher/example corpus's closest
// analog, godesim's RK4Solver/DormandPrinceSolver
// (_examples/other_examples/8490ca05_soypat-godesim__algorithms.go.go),
// operates on a generic multi-symbol state; here the state is always the
// fixed 4-vector (a1,a2,a3,ce), so the stage bookkeeping is done with plain
// arrays rather than a generic State interface. LSODA is not implemented:
// no LSODA binding exists in the retrieved Go corpus, and spec.md §9
// permits the omission, noting RK4 at h=0.1 min is adequate across the
// clinical kₑ₀ range.
package solver

import "fmt"

// State is the fixed four-component PK/PD state vector (a1,a2,a3,ce).
type State [4]float64

// Clamp zeroes negative components in place (§4.5 non-negativity clamp,
// applied by callers only after an *accepted* step).
func (s *State) Clamp() {
	for i, v := range s {
		if v < 0 {
			s[i] = 0
		}
	}
}

// RHSFunc is the ODE right-hand side f(t, y, rate).
type RHSFunc func(t float64, y State, rate float64) State

// RateFunc is the piecewise-constant infusion-rate signal rate(t).
type RateFunc func(t float64) float64

// Method names a solver variant.
type Method string

const (
	Euler  Method = "euler"
	RK4    Method = "rk4"
	DoPri5 Method = "dopri5"
)

// Options configures a solve, with defaults per §6.
type Options struct {
	Method Method

	// Fixed-step methods (Euler, RK4).
	TimeStep float64 // min, default 0.1

	// Adaptive method (DoPri5).
	Atol, Rtol float64 // default 1e-4, 1e-2
	Hmin, Hmax float64 // default 1e-3, 1.0
	MaxSteps   int     // default 5e5

	// StepBudget is an optional caller-supplied step budget; when
	// StepBudget > 0 the solver stops (with Result.Terminated=true) once
	// AcceptedSteps would exceed it, independent of MaxSteps.
	StepBudget int
}

// DefaultOptions returns the §6 defaults for the given method.
func DefaultOptions(method Method) Options {
	return Options{
		Method:   method,
		TimeStep: 0.1,
		Atol:     1e-4,
		Rtol:     1e-2,
		Hmin:     1e-3,
		Hmax:     1.0,
		MaxSteps: 500_000,
	}
}

// Stats are the unified solver statistics returned by every variant
// (§4.5 "Unified stats").
type Stats struct {
	Method          Method
	TotalSteps      int
	AcceptedSteps   int
	RejectedSteps   int
	MinStep         float64
	MaxStep         float64
	FuncEvals       int
}

// Result is the unified solve output: strictly time-ordered times/states
// plus stats, and an early-termination flag (§5 cancellation/timeouts).
type Result struct {
	Times      []float64
	States     []State
	Stats      Stats
	Terminated bool
	Reason     string
}

// Solve integrates y' = f(t,y,rate(t)) from t0 to t1 starting at y0, using
// the variant and options requested. Non-negativity is clamped after every
// *accepted* step only (§4.5, §9 design note); rejected adaptive steps are
// never recorded.
func Solve(f RHSFunc, y0 State, t0, t1 float64, rate RateFunc, opts Options) (Result, error) {
	switch opts.Method {
	case Euler:
		return solveFixedStep(f, y0, t0, t1, rate, opts, eulerStep)
	case RK4:
		return solveFixedStep(f, y0, t0, t1, rate, opts, rk4Step)
	case DoPri5:
		return solveDoPri5(f, y0, t0, t1, rate, opts)
	default:
		return Result{}, fmt.Errorf("solver: unknown method %q", opts.Method)
	}
}
