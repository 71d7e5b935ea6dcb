package sim

import "sort"

// DoseEvent is one entry in a dosing protocol: a bolus (mg) and/or a
// continuous infusion rate (mg/kg/h) that takes effect at Time and
// persists until the next event (§3).
type DoseEvent struct {
	Time      float64 // minutes since anesthesia start
	BolusMg   float64 // mg, >=0
	ContMgKgH float64 // mg/kg/h, >=0, effective from Time onward
}

// InfusionSchedule is an ordered, validated list of DoseEvents, scaled by
// patient weight. Boluses are applied as instantaneous additive jumps to
// a1 at their event time (§4.3) — never approximated as a large rate over
// a small dt, which the spec explicitly rejects as numerically fragile.
//
// InfusionSchedule only needs the patient's weight (for the mg/kg/h ->
// mg/min conversion), not the full Patient record; this lets
// ProtocolOptimizer (C7) build ad hoc constant-rate schedules for a grid
// search without constructing a throwaway Patient.
type InfusionSchedule struct {
	weightKg float64
	events   []DoseEvent
}

// NewInfusionSchedule validates and wraps a dose event list for a patient
// of the given weight (kg). Events need not be pre-sorted;
// NewInfusionSchedule sorts by time. Returns a *Error with KindInvalidDose
// if any bolus or continuous rate is negative.
func NewInfusionSchedule(weightKg float64, events []DoseEvent) (*InfusionSchedule, error) {
	sorted := make([]DoseEvent, len(events))
	copy(sorted, events)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Time < sorted[j].Time })

	for _, e := range sorted {
		if e.BolusMg < 0 {
			return nil, newErr(KindInvalidDose, nil, "negative bolus %.3f mg at t=%.3f", e.BolusMg, e.Time)
		}
		if e.ContMgKgH < 0 {
			return nil, newErr(KindInvalidDose, nil, "negative continuous rate %.3f mg/kg/h at t=%.3f", e.ContMgKgH, e.Time)
		}
	}
	return &InfusionSchedule{weightKg: weightKg, events: sorted}, nil
}

// constantRateSchedule builds a bolus-at-0 plus constant-continuous-rate
// schedule, the shape every ProtocolOptimizer grid evaluation and every
// StepDownController segment uses.
func constantRateSchedule(weightKg, bolusMg, contMgKgH float64) *InfusionSchedule {
	return &InfusionSchedule{
		weightKg: weightKg,
		events:   []DoseEvent{{Time: 0, BolusMg: bolusMg, ContMgKgH: contMgKgH}},
	}
}

// Rate returns the continuous infusion rate in effect at time t, in
// mg/min: (cont[k]*weight)/60 where k is the largest index with
// time[k] <= t, else 0 (§4.3).
func (s *InfusionSchedule) Rate(t float64) float64 {
	var contMgKgH float64
	for _, e := range s.events {
		if e.Time > t {
			break
		}
		contMgKgH = e.ContMgKgH
	}
	return (contMgKgH * s.weightKg) / 60.0
}

// Boluses returns the finite, time-ordered sequence of (time, bolus_mg)
// pairs with bolus_mg > 0.
func (s *InfusionSchedule) Boluses() []DoseEvent {
	var out []DoseEvent
	for _, e := range s.events {
		if e.BolusMg > 0 {
			out = append(out, DoseEvent{Time: e.Time, BolusMg: e.BolusMg})
		}
	}
	return out
}

// BolusAt returns the bolus amount (mg) scheduled exactly at time t, or 0
// if none.
func (s *InfusionSchedule) BolusAt(t float64) float64 {
	for _, e := range s.events {
		if e.Time == t && e.BolusMg > 0 {
			return e.BolusMg
		}
	}
	return 0
}

// SetRate replaces the continuous rate in effect from time t onward,
// inserting a new DoseEvent (or updating the one already at t). Used by
// StepDownController to apply rate reductions mid-simulation.
func (s *InfusionSchedule) SetRate(t, contMgKgH float64) {
	for i, e := range s.events {
		if e.Time == t {
			s.events[i].ContMgKgH = contMgKgH
			return
		}
	}
	s.events = append(s.events, DoseEvent{Time: t, ContMgKgH: contMgKgH})
	sort.SliceStable(s.events, func(i, j int) bool { return s.events[i].Time < s.events[j].Time })
}
