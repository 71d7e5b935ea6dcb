package solver

import "math"

// Dormand-Prince 5(4) Butcher tableau (the embedded pair used by Matlab's
// ode45 and, in this corpus, by godesim's DormandPrinceSolver
// (_examples/other_examples/8490ca05_soypat-godesim__algorithms.go.go),
// whose stage structure this mirrors, generalized to a 4-vector State).
const (
	dpC2, dpC3, dpC4, dpC5, dpC6, dpC7 = 1. / 5., 3. / 10., 4. / 5., 8. / 9., 1., 1.

	dpA21 = 1. / 5.
	dpA31, dpA32 = 3. / 40., 9. / 40.
	dpA41, dpA42, dpA43 = 44. / 45., -56. / 15., 32. / 9.
	dpA51, dpA52, dpA53, dpA54 = 19372. / 6561., -25360. / 2187., 64448. / 6561., -212. / 729.
	dpA61, dpA62, dpA63, dpA64, dpA65 = 9017. / 3168., -355. / 33., 46732. / 5247., 49. / 176., -5103. / 18656.
	dpA71, dpA73, dpA74, dpA75, dpA76 = 35. / 384., 500. / 1113., 125. / 192., -2187. / 6784., 11. / 84.

	// 4th-order embedded solution coefficients (bhat), for the error
	// estimate only; the 5th-order solution reuses dpA7x (FSAL).
	dpBhat1, dpBhat3, dpBhat4, dpBhat5, dpBhat6, dpBhat7 = 5179. / 57600., 7571. / 16695., 393. / 640., -92097. / 339200., 187. / 2100., 1. / 40.
)

const (
	dopriSafety  = 0.9
	dopriMinFac  = 0.2
	dopriMaxFac  = 10.0
)

// dopriStage evaluates all seven RK stages of one trial step of length h
// from (t,y), returning the 5th-order solution y5, the error estimate
// (y5-y4hat component-wise), and the FSAL derivative k7 = f(t+h, y5, ...).
func dopriStage(f RHSFunc, t float64, y State, h float64, rate RateFunc, k1 State) (y5, errEst, k7 State, evals int) {
	k2 := f(t+dpC2*h, addScaled(y, h*dpA21, k1), rate(t+dpC2*h))
	y3 := addScaled(addScaled(y, h*dpA31, k1), h*dpA32, k2)
	k3 := f(t+dpC3*h, y3, rate(t+dpC3*h))
	y4 := addScaled(addScaled(addScaled(y, h*dpA41, k1), h*dpA42, k2), h*dpA43, k3)
	k4 := f(t+dpC4*h, y4, rate(t+dpC4*h))
	y5in := addScaled(addScaled(addScaled(addScaled(y, h*dpA51, k1), h*dpA52, k2), h*dpA53, k3), h*dpA54, k4)
	k5 := f(t+dpC5*h, y5in, rate(t+dpC5*h))
	y6 := addScaled(addScaled(addScaled(addScaled(addScaled(y, h*dpA61, k1), h*dpA62, k2), h*dpA63, k3), h*dpA64, k4), h*dpA65, k5)
	k6 := f(t+dpC6*h, y6, rate(t+dpC6*h))

	y5 = addScaled(addScaled(addScaled(addScaled(y, h*dpA71, k1), h*dpA73, k3), h*dpA74, k4), h*dpA75, k5)
	for i := range y5 {
		y5[i] += h * dpA76 * k6[i]
	}
	k7 = f(t+dpC7*h, y5, rate(t+dpC7*h))

	var y4hat State
	y4hat = addScaled(addScaled(addScaled(addScaled(y, h*dpBhat1, k1), h*dpBhat3, k3), h*dpBhat4, k4), h*dpBhat5, k5)
	for i := range y4hat {
		y4hat[i] += h*dpBhat6*k6[i] + h*dpBhat7*k7[i]
	}

	for i := range errEst {
		errEst[i] = y5[i] - y4hat[i]
	}
	return y5, errEst, k7, 6
}

// errorNorm computes e = sqrt((1/n)*sum((err_i/(atol+rtol*|y_i|))^2))
// (§4.5).
func errorNorm(errEst, y State, atol, rtol float64) float64 {
	var sumSq float64
	for i := range errEst {
		scale := atol + rtol*math.Abs(y[i])
		ratio := errEst[i] / scale
		sumSq += ratio * ratio
	}
	return math.Sqrt(sumSq / float64(len(errEst)))
}

// solveDoPri5 integrates with adaptive Dormand-Prince 5(4) step control
// (§4.5). Rejected steps reduce h and retry without being recorded;
// accepted steps clamp to non-negativity and advance. Terminates with
// Result.Terminated=true if the step count exceeds opts.MaxSteps or h
// falls below opts.Hmin.
func solveDoPri5(f RHSFunc, y0 State, t0, t1 float64, rate RateFunc, opts Options) (Result, error) {
	atol, rtol := opts.Atol, opts.Rtol
	if atol <= 0 {
		atol = 1e-4
	}
	if rtol <= 0 {
		rtol = 1e-2
	}
	hmin, hmax := opts.Hmin, opts.Hmax
	if hmin <= 0 {
		hmin = 1e-3
	}
	if hmax <= 0 {
		hmax = 1.0
	}
	maxSteps := opts.MaxSteps
	if maxSteps <= 0 {
		maxSteps = 500_000
	}
	budget := opts.StepBudget
	if budget <= 0 {
		budget = maxSteps
	}

	result := Result{
		Times:  []float64{t0},
		States: []State{y0},
		Stats:  Stats{Method: DoPri5, MinStep: math.Inf(1), MaxStep: 0},
	}

	t, y := t0, y0
	h := math.Min(hmax, math.Max(hmin, opts.TimeStep))
	if h <= 0 {
		h = hmax
	}
	haveK1 := false
	var k1 State

	for t < t1-1e-12 {
		if result.Stats.TotalSteps >= maxSteps || result.Stats.AcceptedSteps >= budget {
			result.Terminated = true
			result.Reason = "adaptive step budget exceeded before reaching t1"
			break
		}
		hStep := h
		if t+hStep > t1 {
			hStep = t1 - t
		}

		if !haveK1 {
			k1 = f(t, y, rate(t))
			result.Stats.FuncEvals++
		}
		y5, errEst, k7, evals := dopriStage(f, t, y, hStep, rate, k1)
		result.Stats.FuncEvals += evals
		result.Stats.TotalSteps++

		e := errorNorm(errEst, y5, atol, rtol)
		accepted := e <= 1

		var factor float64
		if e == 0 {
			factor = dopriMaxFac
		} else {
			factor = dopriSafety * math.Pow(e, -1.0/5.0)
		}
		factor = math.Max(dopriMinFac, math.Min(dopriMaxFac, factor))
		hNew := math.Max(hmin, math.Min(hmax, hStep*factor))

		if accepted {
			y5.Clamp()
			t += hStep
			y = y5
			k1 = k7
			haveK1 = true

			result.Times = append(result.Times, t)
			result.States = append(result.States, y)
			result.Stats.AcceptedSteps++
			if hStep < result.Stats.MinStep {
				result.Stats.MinStep = hStep
			}
			if hStep > result.Stats.MaxStep {
				result.Stats.MaxStep = hStep
			}
			h = hNew
		} else {
			result.Stats.RejectedSteps++
			haveK1 = false
			if hNew >= hStep {
				// Error estimate says we could grow but we just failed;
				// force shrink to guarantee progress toward convergence.
				hNew = hStep * dopriMinFac
			}
			h = math.Max(hmin, hNew)
			if h <= hmin && hStep <= hmin {
				result.Terminated = true
				result.Reason = "adaptive step size collapsed below hmin"
				break
			}
		}
	}
	if result.Stats.AcceptedSteps == 0 {
		result.Stats.MinStep, result.Stats.MaxStep = 0, 0
	}
	return result, nil
}
