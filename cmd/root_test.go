package cmd

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/remimazolam/tci-engine/sim"
	"github.com/remimazolam/tci-engine/sim/solver"
)

func TestSimulateCmd_DryRunFlagRegistered(t *testing.T) {
	flag := simulateCmd.Flags().Lookup("dry-run")
	require.NotNil(t, flag, "dry-run flag must be registered on simulate")
	assert.Equal(t, "false", flag.DefValue)
}

func TestControlCmd_DryRunFlagRegistered(t *testing.T) {
	flag := controlCmd.Flags().Lookup("dry-run")
	require.NotNil(t, flag, "dry-run flag must be registered on control")
}

func TestCheckDryRun_ValidScenarioStopsWithoutError(t *testing.T) {
	dryRun = true
	defer func() { dryRun = false }()

	b := &sim.ScenarioBundle{
		Patient: sim.PatientConfig{ID: "p1", AgeYears: 45, WeightKg: 70, HeightCm: 170, Sex: "male", ASAPS: "I-II"},
		Dose:    sim.DoseConfig{BolusMg: 12},
	}
	stop, err := checkDryRun(b)
	require.NoError(t, err)
	assert.True(t, stop)
}

func TestCheckDryRun_InvalidCovariatesErrors(t *testing.T) {
	dryRun = true
	defer func() { dryRun = false }()

	b := &sim.ScenarioBundle{
		Patient: sim.PatientConfig{ID: "p1", AgeYears: 5, WeightKg: 70, HeightCm: 170, Sex: "male", ASAPS: "I-II"},
	}
	stop, err := checkDryRun(b)
	assert.Error(t, err)
	assert.False(t, stop)
}

func TestCheckDryRun_NotDryRunNeverStops(t *testing.T) {
	dryRun = false

	b := &sim.ScenarioBundle{
		Patient: sim.PatientConfig{ID: "p1", AgeYears: 45, WeightKg: 70, HeightCm: 170, Sex: "male", ASAPS: "I-II"},
		Dose:    sim.DoseConfig{BolusMg: 12},
	}
	stop, err := checkDryRun(b)
	require.NoError(t, err)
	assert.False(t, stop)
}

func TestSolverMethodFromFlag_DefaultsToRK4(t *testing.T) {
	solverMethod = "bogus"
	defer func() { solverMethod = "rk4" }()
	assert.Equal(t, solver.RK4, solverMethodFromFlag())
}

func TestSolverMethodFromFlag_Euler(t *testing.T) {
	solverMethod = "euler"
	defer func() { solverMethod = "rk4" }()
	assert.Equal(t, solver.Euler, solverMethodFromFlag())
}
