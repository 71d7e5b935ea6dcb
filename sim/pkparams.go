package sim

import "math"

// standardABW and standardAge are the Masui 2022 reference covariates that
// the macroconstant regressions are normalized against.
const (
	standardABW = 67.3 // kg
	standardAge = 54.0 // years
)

// PKParameters holds the individualized three-compartment macroconstants
// plus kₑ₀, and the microconstants derived from them. All fields are
// strictly positive for any Patient that passed NewPatient's validation and
// produced a physiologically sane result (§3 invariant).
type PKParameters struct {
	V1, V2, V3 float64 // L
	CL, Q2, Q3 float64 // L/min
	Ke0        float64 // 1/min

	K10, K12, K21, K13, K31 float64 // 1/min, derived microconstants

	Ke0Result Ke0Result // full regression/numerical branch record (C2)
}

// sanity bounds from §3.
const (
	v1Min, v1Max   = 1.0, 50.0
	ke0Min, ke0Max = 0.01, 2.0
)

// DerivePKParameters computes individualized PK macro/microconstants and
// kₑ₀ for a Patient using the Masui (2022) / Masui-Hagihira (2022) model
// (C1, §4.1). Returns a *Error with KindParameterError if the result fails
// the §3 positivity/sanity invariant.
func DerivePKParameters(p *Patient) (*PKParameters, error) {
	abwRatio := p.ABW() / standardABW
	abwRatio075 := math.Pow(abwRatio, 0.75)

	sexCoef := 0.0
	if p.Sex == Female {
		sexCoef = 1.0
	}
	asaCoef := 0.0
	if p.ASAPS == ASA_III_IV {
		asaCoef = 1.0
	}

	params := &PKParameters{
		V1: 3.57 * abwRatio,
		V2: 11.3 * abwRatio,
		V3: (27.2 + 0.308*(p.Age-standardAge)) * abwRatio,
		CL: (1.03 + 0.146*sexCoef + (-0.184)*asaCoef) * abwRatio075,
		Q2: 1.10 * abwRatio075,
		Q3: 0.401 * abwRatio075,
	}

	// The numerical kₑ₀ branch reads the microconstants, so they are
	// derived first.
	if err := params.deriveMicroconstants(); err != nil {
		return nil, err
	}

	ke0Result, err := SolveKe0(p, params)
	if err != nil {
		return nil, err
	}
	params.Ke0Result = ke0Result
	params.Ke0 = ke0Result.Selected

	if err := params.validate(); err != nil {
		return nil, err
	}
	return params, nil
}

// deriveMicroconstants computes k10..k31 from the macroconstants.
func (pk *PKParameters) deriveMicroconstants() error {
	if pk.V1 <= 0 || pk.V2 <= 0 || pk.V3 <= 0 {
		return newErr(KindParameterError, nil, "non-positive volume of distribution")
	}
	pk.K10 = pk.CL / pk.V1
	pk.K12 = pk.Q2 / pk.V1
	pk.K21 = pk.Q2 / pk.V2
	pk.K13 = pk.Q3 / pk.V1
	pk.K31 = pk.Q3 / pk.V3
	return nil
}

// validate enforces the §3 strict-positivity and sanity-bound invariant.
func (pk *PKParameters) validate() error {
	for name, v := range map[string]float64{
		"V1": pk.V1, "V2": pk.V2, "V3": pk.V3,
		"CL": pk.CL, "Q2": pk.Q2, "Q3": pk.Q3, "ke0": pk.Ke0,
		"k10": pk.K10, "k12": pk.K12, "k21": pk.K21, "k13": pk.K13, "k31": pk.K31,
	} {
		if !(v > 0) {
			return newErr(KindParameterError, nil, "%s = %g is not strictly positive", name, v)
		}
	}
	if pk.V1 < v1Min || pk.V1 > v1Max {
		return newErr(KindParameterError, nil, "V1 = %g L out of sanity bound [%g,%g]", pk.V1, v1Min, v1Max)
	}
	if pk.Ke0 < ke0Min || pk.Ke0 > ke0Max {
		return newErr(KindParameterError, nil, "ke0 = %g 1/min out of sanity bound [%g,%g]", pk.Ke0, ke0Min, ke0Max)
	}
	return nil
}
