package sim

import "github.com/remimazolam/tci-engine/sim/solver"

// SimulatorOptions configures one Simulator run (§6 configuration options
// recognized by simulate/run_controlled).
type SimulatorOptions struct {
	Solver   solver.Method
	TimeStep float64 // min, default 0.1 (0.01 for fine mode)

	Atol, Rtol float64
	Hmin, Hmax float64
	MaxSteps   int

	// StepBudget, if >0, overrides the default per-partition step budget
	// (§5 cancellation/timeouts).
	StepBudget int
}

// DefaultSimulatorOptions returns the §6 defaults with RK4 at h=0.1 min,
// the clinical default per spec.md §9 (DoPri5 is reserved for reference
// checks and must be requested explicitly).
func DefaultSimulatorOptions() SimulatorOptions {
	opts := solver.DefaultOptions(solver.RK4)
	return SimulatorOptions{
		Solver:   opts.Method,
		TimeStep: opts.TimeStep,
		Atol:     opts.Atol,
		Rtol:     opts.Rtol,
		Hmin:     opts.Hmin,
		Hmax:     opts.Hmax,
		MaxSteps: opts.MaxSteps,
	}
}

func (o SimulatorOptions) toSolverOptions() solver.Options {
	return solver.Options{
		Method:     o.Solver,
		TimeStep:   o.TimeStep,
		Atol:       o.Atol,
		Rtol:       o.Rtol,
		Hmin:       o.Hmin,
		Hmax:       o.Hmax,
		MaxSteps:   o.MaxSteps,
		StepBudget: o.StepBudget,
	}
}

// Simulator drives the PK/PD ODE system over [0,T] under a piecewise
// infusion schedule, splitting the integration interval at every bolus
// time and applying the bolus as an instantaneous a1 jump (C6, §4.6) —
// never as a tall narrow rate, which spec.md explicitly rejects.
type Simulator struct {
	PK       *PKParameters
	Schedule *InfusionSchedule
}

// NewSimulator constructs a Simulator for one patient's PKParameters and
// dosing schedule.
func NewSimulator(pk *PKParameters, schedule *InfusionSchedule) *Simulator {
	return &Simulator{PK: pk, Schedule: schedule}
}

// Run simulates [0, duration] and returns the complete SimulationResult
// (C6, §4.6). Propagates *Error (KindSolverDiverged) without partial
// mutation of caller state; a partial trajectory is only ever present
// inside a returned SimulationResult with Terminated=true, never as a
// side effect of an error return (§7).
func (s *Simulator) Run(duration float64, opts SimulatorOptions) (*SimulationResult, error) {
	system := NewPKPDSystem(s.PK)
	rhs := func(t float64, y solver.State, rate float64) solver.State {
		return solver.State(system.RHS(t, SystemState(y), rate))
	}
	rate := func(t float64) float64 { return s.Schedule.Rate(t) }

	boundaries := partitionBoundaries(s.Schedule, duration)

	result := &SimulationResult{}
	var allTimes []float64
	var allStates []solver.State

	y := solver.State{s.Schedule.BolusAt(0), 0, 0, 0}
	tStart := 0.0
	combinedStats := solver.Stats{Method: opts.Solver, MinStep: -1}

	if duration <= 0 {
		result.Points = []TimePoint{{T: 0, Cp: y[0] / s.PK.V1, Ce: y[3]}}
		result.summarize()
		return result, nil
	}

	for _, tEnd := range boundaries {
		if tEnd > tStart {
			r, err := solver.Solve(rhs, y, tStart, tEnd, rate, opts.toSolverOptions())
			if err != nil {
				return nil, newErr(KindSolverDiverged, err, "solving [%g,%g]", tStart, tEnd)
			}
			mergeStats(&combinedStats, r.Stats)

			start := 0
			if len(allTimes) > 0 {
				start = 1 // drop duplicate boundary point
			}
			allTimes = append(allTimes, r.Times[start:]...)
			allStates = append(allStates, r.States[start:]...)
			y = r.States[len(r.States)-1]

			if r.Terminated {
				result.Terminated = true
				result.Reason = r.Reason
				break
			}
		}

		if bolus := s.Schedule.BolusAt(tEnd); bolus > 0 && tEnd > 0 {
			y[0] += bolus
		}
		tStart = tEnd
	}

	if err := checkMonotone(allTimes); err != nil {
		return nil, err
	}

	result.Points = make([]TimePoint, len(allTimes))
	for i, t := range allTimes {
		st := allStates[i]
		result.Points[i] = TimePoint{T: t, Cp: st[0] / s.PK.V1, Ce: st[3]}
	}
	result.Stats = combinedStats
	result.summarize()
	return result, nil
}

// partitionBoundaries returns the ascending list of interval end-points
// that split [0,duration] at every bolus time strictly between 0 and
// duration, always ending with duration itself (§4.6 step 2).
func partitionBoundaries(schedule *InfusionSchedule, duration float64) []float64 {
	var boundaries []float64
	for _, b := range schedule.Boluses() {
		if b.Time > 0 && b.Time < duration {
			boundaries = append(boundaries, b.Time)
		}
	}
	boundaries = append(boundaries, duration)
	return boundaries
}

// mergeStats folds one partition's solver stats into a running total.
func mergeStats(acc *solver.Stats, s solver.Stats) {
	acc.Method = s.Method
	acc.TotalSteps += s.TotalSteps
	acc.AcceptedSteps += s.AcceptedSteps
	acc.RejectedSteps += s.RejectedSteps
	acc.FuncEvals += s.FuncEvals
	if acc.MinStep < 0 || (s.MinStep > 0 && s.MinStep < acc.MinStep) {
		acc.MinStep = s.MinStep
	}
	if s.MaxStep > acc.MaxStep {
		acc.MaxStep = s.MaxStep
	}
}

// checkMonotone enforces §8 P3: recorded times strictly increasing, t0=0.
func checkMonotone(times []float64) error {
	if len(times) == 0 || times[0] != 0 {
		return newErr(KindInternalInvariant, nil, "recorded times do not start at t=0")
	}
	for i := 1; i < len(times); i++ {
		if times[i] <= times[i-1] {
			return newErr(KindInternalInvariant, nil, "recorded times not strictly increasing at index %d (%g <= %g)", i, times[i], times[i-1])
		}
	}
	return nil
}
