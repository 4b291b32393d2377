package integration

import (
	"gonum.org/v1/gonum/integrate/quad"
)

// Legendre applies the n-point Gauss-Legendre rule on [a, b]
func Legendre(f Func, a, b float64, n int) float64 {
	if a == b {
		return 0
	}
	if a > b {
		return -Legendre(f, b, a, n)
	}
	if n < 1 {
		n = 1
	}
	return quad.Fixed(f, a, b, n, quad.Legendre{}, 0)
}

// LegendreVector applies the n-point Gauss-Legendre rule to every component
func LegendreVector(f VectorFunc, dim int, a, b float64, n int) []float64 {
	out := make([]float64, dim)
	if a == b {
		return out
	}
	sign := 1.0
	if a > b {
		a, b, sign = b, a, -1.0
	}
	if n < 1 {
		n = 1
	}
	xs := make([]float64, n)
	ws := make([]float64, n)
	quad.Legendre{}.FixedLocations(xs, ws, a, b)

	buf := make([]float64, dim)
	for i, x := range xs {
		f(x, buf)
		for c := range out {
			out[c] += ws[i] * buf[c]
		}
	}
	for c := range out {
		out[c] *= sign
	}
	return out
}
