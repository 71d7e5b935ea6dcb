package sim

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEvaluate_RejectsNonPositiveTarget(t *testing.T) {
	_, err := Evaluate(&SimulationResult{}, 0)
	assert.Error(t, err)
}

func TestEvaluate_PerfectTrackingScoresHigh(t *testing.T) {
	targetCe := 1.0
	var points []TimePoint
	for tm := 0.0; tm <= 120; tm += 1 {
		points = append(points, TimePoint{T: tm, Cp: targetCe, Ce: targetCe})
	}
	eval, err := Evaluate(&SimulationResult{Points: points}, targetCe)
	require.NoError(t, err)

	assert.Equal(t, 100.0, eval.TargetAccuracy)
	assert.InDelta(t, 0, eval.AverageDeviation, 1e-9)
	assert.Equal(t, 100.0, eval.StabilityIndex)
	assert.Equal(t, 0.0, eval.OvershootPct)
	assert.Equal(t, 0.0, eval.UndershootPct)
	assert.Less(t, eval.ConvergenceTime, 1.0)
	assert.InDelta(t, 100.0, eval.CompositeScore, 1e-6)
}

func TestEvaluate_OvershootPenalizesCompositeScore(t *testing.T) {
	targetCe := 1.0
	var points []TimePoint
	for tm := 0.0; tm <= 120; tm += 1 {
		ce := targetCe
		if tm < 10 {
			ce = targetCe * 1.5 // early overshoot
		}
		points = append(points, TimePoint{T: tm, Cp: ce, Ce: ce})
	}
	eval, err := Evaluate(&SimulationResult{Points: points}, targetCe)
	require.NoError(t, err)
	assert.Greater(t, eval.OvershootPct, 0.0)
}

func TestEvaluate_UndershootFraction(t *testing.T) {
	targetCe := 1.0
	var points []TimePoint
	for tm := 60.0; tm <= 120; tm += 1 {
		points = append(points, TimePoint{T: tm, Ce: 0.5 * targetCe}) // always below 0.9*tau
	}
	eval, err := Evaluate(&SimulationResult{Points: points}, targetCe)
	require.NoError(t, err)
	assert.Equal(t, 100.0, eval.UndershootPct)
}

func TestEvaluate_NeverConvergesGivesInfiniteConvergenceTime(t *testing.T) {
	targetCe := 1.0
	points := []TimePoint{
		{T: 0, Ce: 0}, {T: 30, Ce: 2.0}, {T: 60, Ce: 2.0}, {T: 90, Ce: 2.0},
	}
	eval, err := Evaluate(&SimulationResult{Points: points}, targetCe)
	require.NoError(t, err)
	assert.True(t, math.IsInf(eval.ConvergenceTime, 1))
}

func TestEvaluate_EmptyMaintenanceWindow(t *testing.T) {
	points := []TimePoint{{T: 0, Ce: 0}, {T: 30, Ce: 0.5}}
	eval, err := Evaluate(&SimulationResult{Points: points}, 1.0)
	require.NoError(t, err)
	assert.Equal(t, 0, eval.MaintenanceWindow)
	assert.Equal(t, 0.0, eval.TargetAccuracy)
}

func TestEvaluate_CompositeScoreNeverNegative(t *testing.T) {
	targetCe := 1.0
	var points []TimePoint
	for tm := 0.0; tm <= 120; tm += 1 {
		points = append(points, TimePoint{T: tm, Ce: 5.0}) // wildly overshot the whole time
	}
	eval, err := Evaluate(&SimulationResult{Points: points}, targetCe)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, eval.CompositeScore, 0.0)
}
