package solver

// eulerStep advances one explicit Euler step (order 1):
// y_{n+1} = y_n + h·f(t_n, y_n, rate(t_n)).
func eulerStep(f RHSFunc, t float64, y State, h float64, rate RateFunc) (State, int) {
	k1 := f(t, y, rate(t))
	return addScaled(y, h, k1), 1
}
