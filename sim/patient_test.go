package sim

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPatient_StandardAdult(t *testing.T) {
	p, err := NewPatient("p1", 45, 70, 170, Male, ASA_I_II, time.Time{})
	require.NoError(t, err)
	assert.InDelta(t, 65.564, p.IBW(), 0.05)
	assert.InDelta(t, 67.338, p.ABW(), 0.05)
}

func TestNewPatient_ValidationBounds(t *testing.T) {
	tests := []struct {
		name     string
		age      float64
		weight   float64
		height   float64
	}{
		{"age too low", 17, 70, 170},
		{"age too high", 101, 70, 170},
		{"weight too low", 45, 29, 170},
		{"weight too high", 45, 201, 170},
		{"height too low", 45, 70, 119},
		{"height too high", 45, 70, 221},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewPatient("p1", tt.age, tt.weight, tt.height, Male, ASA_I_II, time.Time{})
			require.Error(t, err)
			var simErr *Error
			require.ErrorAs(t, err, &simErr)
			assert.Equal(t, KindInvalidPatient, simErr.Kind)
		})
	}
}

func TestNewPatient_InvalidEnumValues(t *testing.T) {
	_, err := NewPatient("p1", 45, 70, 170, Sex(9), ASA_I_II, time.Time{})
	assert.Error(t, err)

	_, err = NewPatient("p1", 45, 70, 170, Male, ASAStatus(9), time.Time{})
	assert.Error(t, err)
}

func TestPatient_BMI(t *testing.T) {
	p, err := NewPatient("p1", 45, 70, 170, Male, ASA_I_II, time.Time{})
	require.NoError(t, err)
	assert.InDelta(t, 70/(1.7*1.7), p.BMI(), 1e-9)
}

func TestPatient_FemaleHasNoSexTermInIBW(t *testing.T) {
	p, err := NewPatient("p2", 45, 70, 170, Female, ASA_I_II, time.Time{})
	require.NoError(t, err)
	assert.InDelta(t, 45.4+0.89*(170-152.4), p.IBW(), 1e-9)
}
