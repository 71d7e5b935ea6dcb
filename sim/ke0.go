package sim

import "math"

// tPeak is the published peak-time assumption for remimazolam: the time
// after a unit bolus at which Ce is maximal (Masui & Hagihira 2022).
const tPeak = 2.6 // min

// ke0Bracket is the numerical branch's search interval (§4.2).
var ke0Bracket = [2]float64{0.15, 0.26}

const (
	brentTol     = 1e-12
	brentMaxIter = 100
)

// Ke0Result records both kₑ₀ estimators and which one was selected, per the
// §4.2 contract `{ke0_regression, ke0_numerical?, selected}`. The numerical
// branch is preferred; NumericalOK reports whether it converged.
type Ke0Result struct {
	Regression  float64
	Numerical   float64 // only meaningful if NumericalOK
	NumericalOK bool
	Selected    float64
	FailReason  string // populated iff !NumericalOK
}

// SolveKe0 computes kₑ₀ via both the closed-form regression and the
// peak-time Brent root-find, preferring the numerical value and recording
// which one was selected (C2, §4.2). The regression branch never fails;
// the numerical branch falls back to the regression value on bracket or
// convergence failure, and the fallback is reported via FailReason.
func SolveKe0(p *Patient, pk *PKParameters) (Ke0Result, error) {
	regression := ke0Regression(p)

	result := Ke0Result{Regression: regression, Selected: regression}

	eigen, err := plasmaEigenCoeffs(pk)
	if err != nil {
		result.FailReason = err.Error()
		return result, nil
	}

	numerical, ok, reason := solveKe0Numerical(eigen)
	if ok {
		result.Numerical = numerical
		result.NumericalOK = true
		result.Selected = numerical
	} else {
		result.FailReason = reason
	}
	return result, nil
}

// === Regression branch (§4.2, closed-form) ===

// regression centers and offsets, per spec.md §4.2.
const (
	centerAge    = 55.0
	centerTBW    = 90.0
	centerHeight = 167.5

	offsetAge    = 0.227
	offsetTBW    = 0.227
	offsetHeight = 0.226
	offsetSex    = 0.226
	offsetASA    = 0.226
)

// fAge is the quartic univariate polynomial in (age-55).
func fAge(age float64) float64 {
	x := age - centerAge
	const c0, c1, c2, c3, c4 = 0.227, -0.00183, 0.0000163, -2.75e-7, 1.08e-9
	return c0 + c1*x + c2*x*x + c3*x*x*x + c4*x*x*x*x
}

// fTBW is the quadratic univariate polynomial in (TBW-90).
func fTBW(tbw float64) float64 {
	x := tbw - centerTBW
	const c0, c1, c2 = 0.227, 0.00146, -0.0000450
	return c0 + c1*x + c2*x*x
}

// fHeight is the quadratic univariate polynomial in (height-167.5).
func fHeight(height float64) float64 {
	x := height - centerHeight
	const c0, c1, c2 = 0.226, 0.00121, -0.0000191
	return c0 + c1*x + c2*x*x
}

// fSex is the linear polynomial in sex (0=male, 1=female).
func fSex(sex Sex) float64 {
	const c0, c1 = 0.226, 0.0190
	return c0 + c1*float64(sex)
}

// fASA is the linear polynomial in ASA-PS (0=I-II, 1=III-IV).
func fASA(asa ASAStatus) float64 {
	const c0, c1 = 0.226, -0.0129
	return c0 + c1*float64(asa)
}

// pairCoeffs are the 10 pairwise cross-term coefficients, ordered
// (age,tbw), (age,height), (age,sex), (age,asa), (tbw,height), (tbw,sex),
// (tbw,asa), (height,sex), (height,asa), (sex,asa).
var pairCoeffs = [10]float64{
	0.0254, -0.0171, 0.0117, -0.00831,
	0.0142, -0.00963, 0.00683,
	-0.0126, 0.00902,
	0.00610,
}

// linearCoeffs are the 5 linear coefficients on F2(age), F2(tbw),
// F2(height), F2(sex), F2(asa) respectively.
var linearCoeffs = [5]float64{0.847, 0.523, -0.304, 0.211, -0.176}

const ke0Intercept = 0.2202

// ke0Regression computes kₑ₀ from the 15-term multivariate polynomial in
// the F2 (centered, offset) covariate terms (§4.2). The 5 linear terms
// plus the 10 pairwise cross terms make the 15 terms named by the spec.
func ke0Regression(p *Patient) float64 {
	f2 := [5]float64{
		fAge(p.Age) - offsetAge,
		fTBW(p.WeightKg) - offsetTBW,
		fHeight(p.HeightCm) - offsetHeight,
		fSex(p.Sex) - offsetSex,
		fASA(p.ASAPS) - offsetASA,
	}

	ke0 := ke0Intercept
	for i, c := range linearCoeffs {
		ke0 += c * f2[i]
	}

	idx := 0
	for i := 0; i < len(f2); i++ {
		for j := i + 1; j < len(f2); j++ {
			ke0 += pairCoeffs[idx] * f2[i] * f2[j]
			idx++
		}
	}
	return ke0
}

// === Numerical branch (§4.2, peak-time Brent root-find) ===

// eigenTerm is one (coefficient, rate) pair of the plasma impulse response
// Cp(t)/dose ∝ Σ Xi·e^(-xi·t).
type eigenTerm struct {
	X float64
	x float64
}

// plasmaEigenCoeffs analytically derives the three (Xi, xi) eigen-pairs of
// the plasma compartment's impulse response from the PK microconstants, by
// finding the roots of the characteristic cubic
// λ^3 + a1·λ^2 + a2·λ + a3 = 0  (a1,a2,a3 from k10,k12,k21,k13,k31)
// and computing residues via partial fractions.
func plasmaEigenCoeffs(pk *PKParameters) ([3]eigenTerm, error) {
	a1 := pk.K10 + pk.K12 + pk.K13 + pk.K21 + pk.K31
	a2 := pk.K10*pk.K21 + pk.K10*pk.K31 + pk.K12*pk.K31 + pk.K13*pk.K21 + pk.K21*pk.K31
	a3 := pk.K10 * pk.K21 * pk.K31

	rates, err := solveCubicThreeRealRoots(a1, a2, a3)
	if err != nil {
		return [3]eigenTerm{}, err
	}
	alpha, beta, gamma := rates[0], rates[1], rates[2]

	A := (pk.K21 - alpha) * (pk.K31 - alpha) / ((beta - alpha) * (gamma - alpha))
	B := (pk.K21 - beta) * (pk.K31 - beta) / ((alpha - beta) * (gamma - beta))
	C := (pk.K21 - gamma) * (pk.K31 - gamma) / ((alpha - gamma) * (beta - gamma))

	return [3]eigenTerm{{A, alpha}, {B, beta}, {C, gamma}}, nil
}

// solveCubicThreeRealRoots solves λ^3 + a1λ^2 + a2λ + a3 = 0, whose three
// real roots are negative for a stable compartmental model, via the
// trigonometric depressed-cubic method, and returns the positive rates -λ
// in ascending order.
func solveCubicThreeRealRoots(a1, a2, a3 float64) ([3]float64, error) {
	// Depress: λ = x - a1/3  =>  x^3 + p·x + q = 0
	p := a2 - a1*a1/3
	q := 2*a1*a1*a1/27 - a1*a2/3 + a3

	if p >= 0 {
		return [3]float64{}, newErr(KindInternalInvariant, nil, "cubic discriminant non-negative p=%g (expected three real roots)", p)
	}
	m := 2 * math.Sqrt(-p/3)
	arg := (3 * q) / (p * m)
	arg = math.Max(-1, math.Min(1, arg)) // clamp for float round-off
	theta := math.Acos(arg) / 3

	var roots [3]float64
	for k := 0; k < 3; k++ {
		x := m * math.Cos(theta-2*math.Pi*float64(k)/3)
		roots[k] = x - a1/3
	}
	// λ roots are negative (stable system); rates = -λ, ascending.
	rates := [3]float64{-roots[0], -roots[1], -roots[2]}
	if rates[0] > rates[1] {
		rates[0], rates[1] = rates[1], rates[0]
	}
	if rates[1] > rates[2] {
		rates[1], rates[2] = rates[2], rates[1]
	}
	if rates[0] > rates[1] {
		rates[0], rates[1] = rates[1], rates[0]
	}
	for _, r := range rates {
		if r <= 0 {
			return [3]float64{}, newErr(KindInternalInvariant, nil, "non-positive eigenvalue rate %g", r)
		}
	}
	return rates, nil
}

// peakTimeResidual evaluates g(ke0): the (normalized) time derivative of
// Ce(t) under a unit bolus, at t=tPeak. With
// Ce(t) ∝ ke0·Σ Xi·(e^(-xi·t) - e^(-ke0·t))/(ke0-xi), dividing dCe/dt by
// ke0 gives Σ Xi·(ke0·e^(-ke0·t) - xi·e^(-xi·t))/(ke0-xi).
func peakTimeResidual(ke0 float64, eigen [3]eigenTerm) float64 {
	var sum float64
	expKe0 := math.Exp(-ke0 * tPeak)
	for _, e := range eigen {
		expX := math.Exp(-e.x * tPeak)
		sum += e.X * (ke0*expKe0 - e.x*expX) / (ke0 - e.x)
	}
	return sum
}

// solveKe0Numerical finds kₑ₀ ∈ ke0Bracket with peakTimeResidual(kₑ₀)=0 via
// Brent's method. Returns (value, ok, failReason).
func solveKe0Numerical(eigen [3]eigenTerm) (float64, bool, string) {
	lo, hi := ke0Bracket[0], ke0Bracket[1]
	flo := peakTimeResidual(lo, eigen)
	fhi := peakTimeResidual(hi, eigen)
	if flo*fhi > 0 {
		return 0, false, "peak-time residual does not change sign across [0.15,0.26]"
	}
	root, iters, err := brent(func(x float64) float64 { return peakTimeResidual(x, eigen) }, lo, hi, flo, fhi, brentTol, brentMaxIter)
	if err != nil {
		return 0, false, err.Error()
	}
	_ = iters
	return root, true, ""
}

// brent finds a root of f in [a,b] (with f(a),f(b) already evaluated and of
// opposite sign) via Brent's method (bisection/secant/inverse-quadratic
// hybrid), to absolute tolerance tol, in at most maxIter iterations.
func brent(f func(float64) float64, a, b, fa, fb, tol float64, maxIter int) (float64, int, error) {
	if math.Abs(fa) < math.Abs(fb) {
		a, b = b, a
		fa, fb = fb, fa
	}
	c, fc := a, fa
	mflag := true
	var d float64

	for i := 0; i < maxIter; i++ {
		if fb == 0 || math.Abs(b-a) < tol {
			return b, i, nil
		}
		var s float64
		if fa != fc && fb != fc {
			// inverse quadratic interpolation
			s = a*fb*fc/((fa-fb)*(fa-fc)) +
				b*fa*fc/((fb-fa)*(fb-fc)) +
				c*fa*fb/((fc-fa)*(fc-fb))
		} else {
			// secant
			s = b - fb*(b-a)/(fb-fa)
		}

		cond := (s < (3*a+b)/4 || s > b) ||
			(mflag && math.Abs(s-b) >= math.Abs(b-c)/2) ||
			(!mflag && math.Abs(s-b) >= math.Abs(c-d)/2) ||
			(mflag && math.Abs(b-c) < tol) ||
			(!mflag && math.Abs(c-d) < tol)
		if cond {
			s = (a + b) / 2
			mflag = true
		} else {
			mflag = false
		}

		fs := f(s)
		d, c, fc = c, b, fb
		if fa*fs < 0 {
			b, fb = s, fs
		} else {
			a, fa = s, fs
		}
		if math.Abs(fa) < math.Abs(fb) {
			a, b = b, a
			fa, fb = fb, fa
		}
	}
	return 0, maxIter, newErr(KindInternalInvariant, nil, "brent: %d iterations without convergence to tol=%g", maxIter, tol)
}
