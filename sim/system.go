package sim

// PKPDSystem is the stateless four-state right-hand side of the
// three-compartment PK plus effect-site PD model (C4, §4.4). It is safe
// to share across concurrent simulations (§5): it holds only the derived
// PKParameters, never mutable state.
type PKPDSystem struct {
	PK *PKParameters
}

// NewPKPDSystem wraps PKParameters as an ODE right-hand side.
func NewPKPDSystem(pk *PKParameters) *PKPDSystem {
	return &PKPDSystem{PK: pk}
}

// RHS evaluates f(t, y, rate) for y=(a1,a2,a3,ce):
//
//	a1' = rate(t) - (k10+k12+k13)*a1 + k21*a2 + k31*a3
//	a2' = k12*a1 - k21*a2
//	a3' = k13*a1 - k31*a3
//	ce' = ke0*(a1/V1 - ce)
func (s *PKPDSystem) RHS(t float64, y SystemState, rate float64) SystemState {
	pk := s.PK
	a1, a2, a3, ce := y[0], y[1], y[2], y[3]

	return SystemState{
		rate - (pk.K10+pk.K12+pk.K13)*a1 + pk.K21*a2 + pk.K31*a3,
		pk.K12*a1 - pk.K21*a2,
		pk.K13*a1 - pk.K31*a3,
		pk.Ke0 * (a1/pk.V1 - ce),
	}
}
