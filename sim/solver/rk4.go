package solver

// rk4Step advances one classical explicit RK4 step (order 4): four stages
// weighted (1,2,2,1)/6.
func rk4Step(f RHSFunc, t float64, y State, h float64, rate RateFunc) (State, int) {
	k1 := f(t, y, rate(t))
	k2 := f(t+h/2, addScaled(y, h/2, k1), rate(t+h/2))
	k3 := f(t+h/2, addScaled(y, h/2, k2), rate(t+h/2))
	k4 := f(t+h, addScaled(y, h, k3), rate(t+h))

	var out State
	for i := range out {
		out[i] = y[i] + (h/6)*(k1[i]+2*k2[i]+2*k3[i]+k4[i])
	}
	return out, 4
}

// addScaled returns y + k*deriv element-wise.
func addScaled(y State, k float64, deriv State) State {
	var out State
	for i := range out {
		out[i] = y[i] + k*deriv[i]
	}
	return out
}

// fixedStepFunc is the shape shared by eulerStep and rk4Step: advance one
// step of length h, returning the new state and the number of RHS
// evaluations it consumed.
type fixedStepFunc func(f RHSFunc, t float64, y State, h float64, rate RateFunc) (State, int)

// solveFixedStep drives a fixed-step method (Euler or RK4) from t0 to t1,
// clamping to non-negativity after every step (§4.5) and recording every
// step as accepted (fixed-step methods have no rejection concept).
func solveFixedStep(f RHSFunc, y0 State, t0, t1 float64, rate RateFunc, opts Options, step fixedStepFunc) (Result, error) {
	h := opts.TimeStep
	if h <= 0 {
		h = 0.1
	}
	budget := opts.StepBudget
	if budget <= 0 {
		budget = opts.MaxSteps
		if budget <= 0 {
			n := int((t1-t0)/h + 0.5)
			budget = n + 1
		}
	}

	result := Result{
		Times:  []float64{t0},
		States: []State{y0},
		Stats:  Stats{Method: opts.Method, MinStep: h, MaxStep: h},
	}

	t, y := t0, y0
	for t < t1-1e-12 {
		if result.Stats.AcceptedSteps >= budget {
			result.Terminated = true
			result.Reason = "step budget exceeded before reaching t1"
			break
		}
		hStep := h
		if t+hStep > t1 {
			hStep = t1 - t
		}
		next, evals := step(f, t, y, hStep, rate)
		next.Clamp()

		t += hStep
		y = next
		result.Times = append(result.Times, t)
		result.States = append(result.States, y)

		result.Stats.AcceptedSteps++
		result.Stats.TotalSteps++
		result.Stats.FuncEvals += evals
	}
	return result, nil
}
