package formfactors

import "math"

// bernoulliDilog holds B_2k/(2k+1)! for the series of Li2 in u = -ln(1 - x)
var bernoulliDilog = [...]float64{
	1.0 / 36.0,
	-1.0 / 3600.0,
	1.0 / 211680.0,
	-1.0 / 10886400.0,
	1.0 / 526901760.0,
	-691.0 / 16999766784000.0,
	1.0 / 1120863744000.0,
	-3617.0 / 181400588328960000.0,
	43867.0 / 97072790126247936000.0,
	-174611.0 / 16860010916664115200000.0,
}

// dilog is the real dilogarithm Li2(x) for x <= 1; it is NaN above the cut
func dilog(x float64) float64 {
	switch {
	case math.IsNaN(x) || x > 1:
		return math.NaN()
	case x == 1:
		return math.Pi * math.Pi / 6.0
	case x < -1:
		l := math.Log(-x)
		return -math.Pi*math.Pi/6.0 - 0.5*l*l - dilog(1.0/x)
	case x > 0.5:
		return math.Pi*math.Pi/6.0 - math.Log(x)*math.Log1p(-x) - dilog(1.0-x)
	}

	// |u| <= ln 2 on [-1, 1/2]
	u := -math.Log1p(-x)
	u2 := u * u
	sum, p := 0.0, u
	for _, c := range bernoulliDilog {
		p *= u2
		sum += c * p
	}
	return u - u2/4.0 + sum
}
