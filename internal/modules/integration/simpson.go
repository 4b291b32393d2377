package integration

import (
	"math"
)

// simpsonMaxPoints bounds the grid reached by repeated doubling
const simpsonMaxPoints = 1 << 16

// simpsonPoints rounds n up to a multiple of 8 and at least 16, so that the
// coarsest of the three nested Simpson sums still has whole panels
func simpsonPoints(n int) int {
	if n < 16 {
		n = 16
	}
	if r := n % 8; r != 0 {
		n += 8 - r
	}
	return n
}

// simpsonSums returns composite Simpson sums with steps 4h, 2h and h of the
// n+1 grid values y spaced by h
func simpsonSums(y []float64, h float64) (q0, q1, q2 float64) {
	n := len(y) - 1
	for k := 0; k+2 <= n; k += 2 {
		q2 += y[k] + 4*y[k+1] + y[k+2]
	}
	for k := 0; k+4 <= n; k += 4 {
		q1 += y[k] + 4*y[k+2] + y[k+4]
	}
	for k := 0; k+8 <= n; k += 8 {
		q0 += y[k] + 4*y[k+4] + y[k+8]
	}
	return q0 * 4 * h / 3, q1 * 2 * h / 3, q2 * h / 3
}

// extrapolate applies the Richardson (Aitken) correction to the three
// Simpson sums. It reports false when the correction is not small compared
// with the finest sum and the grid must be refined.
func extrapolate(q0, q1, q2 float64) (float64, bool) {
	if math.Abs(q2-q1) <= 4*epsilon*math.Abs(q2) {
		// the sums agree to rounding
		return q2, true
	}
	corr := (q2 - q1) * (q2 - q1) / (q0 + q2 - 2*q1)
	if math.IsNaN(corr) {
		// 0/0: the sums agree exactly
		return q2, true
	}
	if math.Abs(corr/q2) < 1 {
		return q2 - corr, true
	}
	return q2, false
}

// Simpson integrates f over [a, b] on a fixed grid of n intervals using
// composite Simpson sums with Richardson extrapolation. The grid is doubled
// while the extrapolation correction is not small, up to a fixed budget.
func Simpson(f Func, n int, a, b float64) (float64, error) {
	if a == b {
		return 0, nil
	}
	if a > b {
		v, err := Simpson(f, n, b, a)
		return -v, err
	}

	for n = simpsonPoints(n); ; n *= 2 {
		h := (b - a) / float64(n)
		y := make([]float64, n+1)
		for k := range y {
			x := a + float64(k)*h
			if k == n {
				x = b
			}
			y[k] = f(x)
			if !finite(y[k]) {
				return math.NaN(), &Error{Method: MethodSimpson, A: a, B: b, Intervals: n, Reason: "non-finite integrand"}
			}
		}

		q0, q1, q2 := simpsonSums(y, h)
		v, ok := extrapolate(q0, q1, q2)
		if ok {
			return v, nil
		}
		if 2*n > simpsonMaxPoints {
			return q2, &Error{Method: MethodSimpson, A: a, B: b, Estimate: q2, AbsErr: math.Abs(q2 - q1),
				Intervals: n, Reason: "grid budget exhausted"}
		}
	}
}

// SimpsonVector is Simpson for a vector-valued integrand; the grid is
// refined until the extrapolation is acceptable for every component
func SimpsonVector(f VectorFunc, dim, n int, a, b float64) ([]float64, error) {
	if a == b {
		return make([]float64, dim), nil
	}
	if a > b {
		v, err := SimpsonVector(f, dim, n, b, a)
		for i := range v {
			v[i] = -v[i]
		}
		return v, err
	}

	out := make([]float64, dim)
	buf := make([]float64, dim)
	for n = simpsonPoints(n); ; n *= 2 {
		h := (b - a) / float64(n)
		ys := make([][]float64, dim)
		for c := range ys {
			ys[c] = make([]float64, n+1)
		}
		for k := 0; k <= n; k++ {
			x := a + float64(k)*h
			if k == n {
				x = b
			}
			f(x, buf)
			for c := 0; c < dim; c++ {
				if !finite(buf[c]) {
					return out, &Error{Method: MethodSimpson, A: a, B: b, Intervals: n, Reason: "non-finite integrand"}
				}
				ys[c][k] = buf[c]
			}
		}

		accepted := true
		var worstQ2, worstDiff float64
		for c := 0; c < dim; c++ {
			q0, q1, q2 := simpsonSums(ys[c], h)
			v, ok := extrapolate(q0, q1, q2)
			out[c] = v
			if !ok {
				accepted = false
				worstQ2, worstDiff = q2, math.Abs(q2-q1)
			}
		}
		if accepted {
			return out, nil
		}
		if 2*n > simpsonMaxPoints {
			return out, &Error{Method: MethodSimpson, A: a, B: b, Estimate: worstQ2, AbsErr: worstDiff,
				Intervals: n, Reason: "grid budget exhausted"}
		}
	}
}
