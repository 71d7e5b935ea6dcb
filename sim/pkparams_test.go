package sim

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func standardPatient(t *testing.T) *Patient {
	t.Helper()
	p, err := NewPatient("std", 45, 70, 170, Male, ASA_I_II, time.Time{})
	require.NoError(t, err)
	return p
}

// Scenario 1: standard adult, bolus only (§8.1).
func TestDerivePKParameters_StandardAdult(t *testing.T) {
	p := standardPatient(t)
	pk, err := DerivePKParameters(p)
	require.NoError(t, err)

	abwRatio := p.ABW() / standardABW
	assert.InDelta(t, 3.57*abwRatio, pk.V1, 1e-6)
	assert.Greater(t, pk.V1, 0.0)
	assert.Greater(t, pk.Ke0, 0.0)
}

// P1: PK parameters are strictly positive and within sanity bounds, for
// a range of valid covariate combinations.
func TestDerivePKParameters_AlwaysPositiveAndInBounds(t *testing.T) {
	cases := []struct {
		age, weight, height float64
		sex                 Sex
		asa                 ASAStatus
	}{
		{18, 30, 120, Male, ASA_I_II},
		{100, 200, 220, Female, ASA_III_IV},
		{54, 67.3, 160, Female, ASA_I_II},
		{70, 90, 185, Male, ASA_III_IV},
	}
	for _, c := range cases {
		p, err := NewPatient("x", c.age, c.weight, c.height, c.sex, c.asa, time.Time{})
		require.NoError(t, err)
		pk, err := DerivePKParameters(p)
		require.NoError(t, err)

		assert.Greater(t, pk.V1, 0.0)
		assert.Greater(t, pk.V2, 0.0)
		assert.Greater(t, pk.V3, 0.0)
		assert.Greater(t, pk.CL, 0.0)
		assert.Greater(t, pk.Q2, 0.0)
		assert.Greater(t, pk.Q3, 0.0)
		assert.Greater(t, pk.Ke0, 0.0)
		assert.GreaterOrEqual(t, pk.V1, v1Min)
		assert.LessOrEqual(t, pk.V1, v1Max)
		assert.GreaterOrEqual(t, pk.Ke0, ke0Min)
		assert.LessOrEqual(t, pk.Ke0, ke0Max)
	}
}

func TestDerivePKParameters_MicroconstantsFromMacro(t *testing.T) {
	p := standardPatient(t)
	pk, err := DerivePKParameters(p)
	require.NoError(t, err)

	assert.InDelta(t, pk.CL/pk.V1, pk.K10, 1e-9)
	assert.InDelta(t, pk.Q2/pk.V1, pk.K12, 1e-9)
	assert.InDelta(t, pk.Q2/pk.V2, pk.K21, 1e-9)
	assert.InDelta(t, pk.Q3/pk.V1, pk.K13, 1e-9)
	assert.InDelta(t, pk.Q3/pk.V3, pk.K31, 1e-9)
}
