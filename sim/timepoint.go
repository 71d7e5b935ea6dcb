package sim

import "github.com/remimazolam/tci-engine/sim/solver"

// SystemState is the quadruple (a1,a2,a3,ce): compartment drug amounts
// (mg) plus effect-site concentration (µg/mL) (§3). All components must be
// >=0 at every recorded time point; the solver enforces this by clamping
// after each accepted step, never inside error estimation.
type SystemState [4]float64

// Clamp zeroes any negative component in place, enforcing the §3
// non-negativity invariant.
func (s *SystemState) Clamp() {
	for i, v := range s {
		if v < 0 {
			s[i] = 0
		}
	}
}

// Add returns the element-wise sum of s and other.
func (s SystemState) Add(other SystemState) SystemState {
	var out SystemState
	for i := range s {
		out[i] = s[i] + other[i]
	}
	return out
}

// Scale returns s scaled by k.
func (s SystemState) Scale(k float64) SystemState {
	var out SystemState
	for i := range s {
		out[i] = s[i] * k
	}
	return out
}

// TimePoint is one recorded sample (t, Cp, Ce), with Cp = a1/V1 (§3).
type TimePoint struct {
	T  float64
	Cp float64
	Ce float64
}

// SimulationResult owns the complete, strictly time-ordered sequence of
// TimePoints produced by one Simulator run (t0=0), plus derived summary
// statistics and the solver's stats record (§3, §4.6).
type SimulationResult struct {
	Points []TimePoint

	MaxCp   float64
	MaxCe   float64
	FinalCp float64
	FinalCe float64

	Stats solver.Stats

	// Terminated is true when the run stopped early against a step budget
	// (§5); Reason explains why. No wall-clock deadline is checked.
	Terminated bool
	Reason     string
}

// summarize populates Max/Final fields from Points. Called once after all
// partitions have been concatenated.
func (r *SimulationResult) summarize() {
	if len(r.Points) == 0 {
		return
	}
	for _, p := range r.Points {
		if p.Cp > r.MaxCp {
			r.MaxCp = p.Cp
		}
		if p.Ce > r.MaxCe {
			r.MaxCe = p.Ce
		}
	}
	last := r.Points[len(r.Points)-1]
	r.FinalCp, r.FinalCe = last.Cp, last.Ce
}
