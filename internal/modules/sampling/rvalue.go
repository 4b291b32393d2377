package sampling

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"
)

type rvalueMoments struct {
	m, n           float64
	meanOfMeans    float64
	meanOfVars     float64
	varOfMeans     float64
	varOfVars      float64
	between        float64 // B
	within         float64 // W
	pooledVariance float64 // sigma^2
}

func newRValueMoments(means, variances []float64, length int) (rvalueMoments, error) {
	if len(means) != len(variances) {
		return rvalueMoments{}, fmt.Errorf("chain means (%d) and variances (%d) are not aligned", len(means), len(variances))
	}
	if len(means) < 2 {
		return rvalueMoments{}, fmt.Errorf("need at least two chains to compute an R-value, got %d", len(means))
	}
	if length <= 0 {
		return rvalueMoments{}, fmt.Errorf("chain length must be positive, got %d", length)
	}
	var r rvalueMoments
	r.m, r.n = float64(len(means)), float64(length)
	r.meanOfMeans, r.varOfMeans = stat.MeanVariance(means, nil)
	r.meanOfVars, r.varOfVars = stat.MeanVariance(variances, nil)
	r.between = r.varOfMeans * r.n
	r.within = r.meanOfVars
	r.pooledVariance = (r.n-1)/r.n*r.within + r.between/r.n
	return r, nil
}

// GelmanRubin returns the potential scale reduction factor of one parameter
// from per-chain means and variances, including the correction for the
// degrees of freedom of the t-distributed pooled estimate. A vanishing
// within-chain variance or too few degrees of freedom yield math.MaxFloat64.
func GelmanRubin(means, variances []float64, length int) (float64, error) {
	r, err := newRValueMoments(means, variances, length)
	if err != nil {
		return 0, err
	}
	if r.within == 0 {
		return math.MaxFloat64, nil
	}

	var cov21, cov22 float64 // cov(s^2, xbar), cov(s^2, xbar^2)
	for i := range means {
		dv := variances[i] - r.meanOfVars
		cov21 += dv * (means[i] - r.meanOfMeans)
		cov22 += dv * (means[i]*means[i] - r.meanOfMeans*r.meanOfMeans)
	}
	cov21 /= r.m - 1
	cov22 /= r.m - 1

	m, n, b := r.m, r.n, r.between
	v := r.pooledVariance + b/(m*n)

	a := (n - 1) * (n - 1) / (n * n * m) * r.varOfVars
	bb := (m + 1) * (m + 1) / (m * n * m * n) * 2 / (m - 1) * b * b
	c := 2 * (m + 1) * (n - 1) / (m * n * n) * n / m * (cov22 - 2*r.meanOfMeans*cov21)
	varV := a + bb + c

	if varV <= 0 {
		// identical chains: infinitely many degrees of freedom
		return math.Sqrt(v / r.within), nil
	}
	df := 2 * v * v / varV
	if !(df > 2) {
		return math.MaxFloat64, nil
	}
	return math.Sqrt(v / r.within * df / (df - 2)), nil
}

// Approximation returns sqrt(sigma^2 / W) without the degrees-of-freedom correction
func Approximation(means, variances []float64, length int) (float64, error) {
	r, err := newRValueMoments(means, variances, length)
	if err != nil {
		return 0, err
	}
	if r.within == 0 {
		return math.MaxFloat64, nil
	}
	return math.Sqrt(r.pooledVariance / r.within), nil
}
