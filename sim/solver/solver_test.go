package solver

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// decay is a linear single-component RHS: y' = -k*y, with a known
// analytic solution y(t) = y0*exp(-k*t), used for solver order checks (P8).
func decay(k float64) RHSFunc {
	return func(t float64, y State, rate float64) State {
		return State{-k * y[0], 0, 0, 0}
	}
}

func zeroRate(t float64) float64 { return 0 }

func TestSolve_UnknownMethod(t *testing.T) {
	_, err := Solve(decay(1), State{1, 0, 0, 0}, 0, 1, zeroRate, Options{Method: "bogus"})
	assert.Error(t, err)
}

func TestSolve_Euler_MatchesAnalyticSolutionApproximately(t *testing.T) {
	k := 0.5
	opts := DefaultOptions(Euler)
	opts.TimeStep = 0.01
	result, err := Solve(decay(k), State{1, 0, 0, 0}, 0, 10, zeroRate, opts)
	require.NoError(t, err)

	got := result.States[len(result.States)-1][0]
	want := math.Exp(-k * 10)
	assert.InDelta(t, want, got, 0.01)
}

// P8: halving the time step for Euler (order 1) roughly halves the error
// at a fixed final time; for RK4 (order 4) the error shrinks much faster.
func TestSolve_OrderOfConvergence(t *testing.T) {
	k := 1.0
	t1 := 2.0
	exact := math.Exp(-k * t1)

	errAt := func(method Method, h float64) float64 {
		opts := DefaultOptions(method)
		opts.TimeStep = h
		result, err := Solve(decay(k), State{1, 0, 0, 0}, 0, t1, zeroRate, opts)
		require.NoError(t, err)
		got := result.States[len(result.States)-1][0]
		return math.Abs(got - exact)
	}

	eulerCoarse := errAt(Euler, 0.1)
	eulerFine := errAt(Euler, 0.05)
	// Halving h should roughly halve Euler's error (order 1): ratio near 2,
	// comfortably between 1.2 (too little improvement) and 3.5 (noise floor).
	ratio := eulerCoarse / eulerFine
	assert.Greater(t, ratio, 1.2)
	assert.Less(t, ratio, 3.5)

	rk4Coarse := errAt(RK4, 0.2)
	rk4Fine := errAt(RK4, 0.1)
	// RK4 is order 4: halving h should shrink error by roughly 16x. Allow a
	// wide band since rk4Coarse may already be near machine precision.
	if rk4Coarse > 1e-12 {
		rk4Ratio := rk4Coarse / rk4Fine
		assert.Greater(t, rk4Ratio, 4.0)
	}
}

func TestSolve_FixedStep_RecordsEveryStepAsAccepted(t *testing.T) {
	opts := DefaultOptions(RK4)
	opts.TimeStep = 0.1
	result, err := Solve(decay(0.1), State{1, 0, 0, 0}, 0, 1, zeroRate, opts)
	require.NoError(t, err)
	assert.Equal(t, 0, result.Stats.RejectedSteps)
	assert.Equal(t, result.Stats.TotalSteps, result.Stats.AcceptedSteps)
	assert.Equal(t, 4*result.Stats.AcceptedSteps, result.Stats.FuncEvals)
}

func TestSolve_FixedStep_TerminatesOnStepBudget(t *testing.T) {
	opts := DefaultOptions(RK4)
	opts.TimeStep = 0.1
	opts.StepBudget = 3
	result, err := Solve(decay(0.1), State{1, 0, 0, 0}, 0, 10, zeroRate, opts)
	require.NoError(t, err)
	assert.True(t, result.Terminated)
	assert.Equal(t, 3, result.Stats.AcceptedSteps)
}

func TestSolve_FixedStep_ClampsNegativeComponents(t *testing.T) {
	// A huge decay rate with a coarse Euler step can overshoot past zero;
	// the solver must clamp rather than allow negative mass.
	opts := DefaultOptions(Euler)
	opts.TimeStep = 1.0
	result, err := Solve(decay(5.0), State{1, 0, 0, 0}, 0, 2, zeroRate, opts)
	require.NoError(t, err)
	for _, s := range result.States {
		assert.GreaterOrEqual(t, s[0], 0.0)
	}
}

func TestSolve_DoPri5_MatchesAnalyticSolution(t *testing.T) {
	k := 0.5
	opts := DefaultOptions(DoPri5)
	result, err := Solve(decay(k), State{1, 0, 0, 0}, 0, 10, zeroRate, opts)
	require.NoError(t, err)

	got := result.States[len(result.States)-1][0]
	want := math.Exp(-k * 10)
	assert.InDelta(t, want, got, 1e-3)
}

func TestSolve_DoPri5_TimesStrictlyIncreasing(t *testing.T) {
	opts := DefaultOptions(DoPri5)
	result, err := Solve(decay(0.3), State{1, 0, 0, 0}, 0, 5, zeroRate, opts)
	require.NoError(t, err)
	require.Equal(t, 0.0, result.Times[0])
	for i := 1; i < len(result.Times); i++ {
		assert.Greater(t, result.Times[i], result.Times[i-1])
	}
	assert.InDelta(t, 5.0, result.Times[len(result.Times)-1], 1e-9)
}

func TestSolve_DoPri5_FuncEvalsNotDoubleCounted(t *testing.T) {
	opts := DefaultOptions(DoPri5)
	result, err := Solve(decay(0.3), State{1, 0, 0, 0}, 0, 5, zeroRate, opts)
	require.NoError(t, err)
	// Every step costs 6 new evaluations, plus one more only when FSAL's
	// k1 isn't available (the very first step, or right after a rejection).
	totalSteps := result.Stats.AcceptedSteps + result.Stats.RejectedSteps
	assert.LessOrEqual(t, result.Stats.FuncEvals, 7*totalSteps)
}
