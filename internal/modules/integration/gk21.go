package integration

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// 21-point Kronrod abscissae with the embedded 10-point Gauss rule at the odd indices
var xgk = [11]float64{
	0.995657163025808080735527280689003,
	0.973906528517171720077964012084452,
	0.930157491355708226001207180059508,
	0.865063366688984510732096688423493,
	0.780817726586416897063717578345042,
	0.679409568299024406234327365114874,
	0.562757134668604683339000099272694,
	0.433395394129247190799265943165784,
	0.294392862701460198131126603103866,
	0.148874338981631210884826001129720,
	0.000000000000000000000000000000000,
}

var wgk = [11]float64{
	0.011694638867371874278064396062192,
	0.032558162307964727478818972459390,
	0.054755896574351996031381300244580,
	0.075039674810919952767043140916190,
	0.093125454583697605535065465083366,
	0.109387158802297641899210590325805,
	0.123491976262065851077548047022881,
	0.134709217311473325928054001771707,
	0.142775938577060080797094273138717,
	0.147739104901338491374841515972068,
	0.149445554002916905664936468389821,
}

// Gauss weights of the nodes xgk[1], xgk[3], ..., xgk[9]
var wg = [5]float64{
	0.066671344308688137593568809893332,
	0.149451349150580593145776339657697,
	0.219086362515982043995534934228163,
	0.269266719309996355091226921569469,
	0.295524224714752870173892994651338,
}

const epsilon = 2.220446049250313e-16

// rescaleError turns the Kronrod-Gauss difference into the QUADPACK error estimate
func rescaleError(err, resabs, resasc float64) float64 {
	err = math.Abs(err)
	if resasc != 0 && err != 0 {
		scale := math.Pow(200*err/resasc, 1.5)
		if scale < 1 {
			err = resasc * scale
		} else {
			err = resasc
		}
	}
	if resabs > math.SmallestNonzeroFloat64/(50*epsilon) {
		if minErr := 50 * epsilon * resabs; minErr > err {
			err = minErr
		}
	}
	return err
}

// qk21 applies the Gauss-Kronrod pair to [a, b]
func qk21(f Func, a, b float64) (result, abserr float64, ok bool) {
	center := 0.5 * (a + b)
	half := 0.5 * (b - a)
	absHalf := math.Abs(half)

	var fv1, fv2 [10]float64
	fc := f(center)
	resg := 0.0
	resk := fc * wgk[10]
	resabs := math.Abs(resk)
	ok = finite(fc)

	for j := 0; j < 10; j++ {
		dx := half * xgk[j]
		f1, f2 := f(center-dx), f(center+dx)
		if !finite(f1) || !finite(f2) {
			ok = false
		}
		fv1[j], fv2[j] = f1, f2
		resk += wgk[j] * (f1 + f2)
		resabs += wgk[j] * (math.Abs(f1) + math.Abs(f2))
		if j%2 == 1 {
			resg += wg[j/2] * (f1 + f2)
		}
	}

	mean := 0.5 * resk
	resasc := wgk[10] * math.Abs(fc-mean)
	for j := 0; j < 10; j++ {
		resasc += wgk[j] * (math.Abs(fv1[j]-mean) + math.Abs(fv2[j]-mean))
	}

	result = resk * half
	abserr = rescaleError((resk-resg)*half, resabs*absHalf, resasc*absHalf)
	return result, abserr, ok
}

// qk21Vector applies the Gauss-Kronrod pair to every component of f on [a, b]
func qk21Vector(f VectorFunc, n int, a, b float64, result, abserr []float64) bool {
	center := 0.5 * (a + b)
	half := 0.5 * (b - a)
	absHalf := math.Abs(half)

	// node values: index 0 is the center, 1..10 left, 11..20 right
	values := make([][]float64, 21)
	for i := range values {
		values[i] = make([]float64, n)
	}
	f(center, values[0])
	for j := 0; j < 10; j++ {
		dx := half * xgk[j]
		f(center-dx, values[1+j])
		f(center+dx, values[11+j])
	}

	ok := true
	for c := 0; c < n; c++ {
		fc := values[0][c]
		resg := 0.0
		resk := fc * wgk[10]
		resabs := math.Abs(resk)
		if !finite(fc) {
			ok = false
		}
		for j := 0; j < 10; j++ {
			f1, f2 := values[1+j][c], values[11+j][c]
			if !finite(f1) || !finite(f2) {
				ok = false
			}
			resk += wgk[j] * (f1 + f2)
			resabs += wgk[j] * (math.Abs(f1) + math.Abs(f2))
			if j%2 == 1 {
				resg += wg[j/2] * (f1 + f2)
			}
		}
		mean := 0.5 * resk
		resasc := wgk[10] * math.Abs(fc-mean)
		for j := 0; j < 10; j++ {
			resasc += wgk[j] * (math.Abs(values[1+j][c]-mean) + math.Abs(values[11+j][c]-mean))
		}
		result[c] = resk * half
		abserr[c] = rescaleError((resk-resg)*half, resabs*absHalf, resasc*absHalf)
	}
	return ok
}

func clampEpsRel(epsRel float64) float64 {
	if epsRel < 50*epsilon {
		return 50 * epsilon
	}
	return epsRel
}

// tooNarrow reports that bisecting [a, b] no longer changes the abscissae
func tooNarrow(a, b float64) bool {
	mid := 0.5 * (a + b)
	return math.Abs(b-a) <= 1000*epsilon*math.Max(math.Abs(mid), math.SmallestNonzeroFloat64)
}

type interval struct {
	a, b   float64
	result float64
	err    float64
}

// QAG integrates f over [a, b] by adaptive bisection of the interval with
// the largest error estimate, each interval done with the 21-point
// Gauss-Kronrod rule. It stops once the summed error estimate is below
// max(EpsAbs, EpsRel*|I|) and fails when MaxIntervals is exhausted.
func QAG(f Func, a, b float64, cfg Config) (float64, error) {
	if a == b {
		return 0, nil
	}
	if a > b {
		v, err := QAG(f, b, a, cfg)
		return -v, err
	}

	epsRel := clampEpsRel(cfg.EpsRel)
	maxIntervals := cfg.MaxIntervals
	if maxIntervals < 1 {
		maxIntervals = 1
	}
	fail := func(reason string, estimate, abserr float64, n int) error {
		return &Error{Method: MethodGK21, A: a, B: b, Estimate: estimate, AbsErr: abserr, Intervals: n, Reason: reason}
	}

	r, e, ok := qk21(f, a, b)
	if !ok {
		return math.NaN(), fail("non-finite integrand", r, e, 1)
	}
	if e <= math.Max(cfg.EpsAbs, epsRel*math.Abs(r)) {
		return r, nil
	}

	intervals := []interval{{a: a, b: b, result: r, err: e}}
	for len(intervals) < maxIntervals {
		// bisect the worst interval
		worst := 0
		for i := range intervals {
			if intervals[i].err > intervals[worst].err {
				worst = i
			}
		}
		w := intervals[worst]
		if tooNarrow(w.a, w.b) {
			total, totalErr := sumIntervals(intervals)
			return total, fail("interval too small to bisect", total, totalErr, len(intervals))
		}
		mid := 0.5 * (w.a + w.b)
		r1, e1, ok1 := qk21(f, w.a, mid)
		r2, e2, ok2 := qk21(f, mid, w.b)
		if !ok1 || !ok2 {
			return math.NaN(), fail("non-finite integrand", w.result, w.err, len(intervals))
		}
		intervals[worst] = interval{a: w.a, b: mid, result: r1, err: e1}
		intervals = append(intervals, interval{a: mid, b: w.b, result: r2, err: e2})

		total, totalErr := sumIntervals(intervals)
		if totalErr <= math.Max(cfg.EpsAbs, epsRel*math.Abs(total)) {
			return total, nil
		}
	}

	total, totalErr := sumIntervals(intervals)
	return total, fail("maximum number of subintervals reached", total, totalErr, len(intervals))
}

func sumIntervals(intervals []interval) (float64, float64) {
	total, totalErr := 0.0, 0.0
	for _, iv := range intervals {
		total += iv.result
		totalErr += iv.err
	}
	return total, totalErr
}

type vectorInterval struct {
	a, b   float64
	result []float64
	err    []float64
	worst  float64 // largest component error
}

// QAGVector integrates n components with a shared subdivision. The interval
// with the largest component error is bisected until that error is below
// max(EpsAbs, EpsRel*max_i|I_i|) for every component.
func QAGVector(f VectorFunc, n int, a, b float64, cfg Config) ([]float64, error) {
	if a == b {
		return make([]float64, n), nil
	}
	if a > b {
		v, err := QAGVector(f, n, b, a, cfg)
		floats.Scale(-1, v)
		return v, err
	}

	epsRel := clampEpsRel(cfg.EpsRel)
	maxIntervals := cfg.MaxIntervals
	if maxIntervals < 1 {
		maxIntervals = 1
	}

	eval := func(lo, hi float64) (vectorInterval, bool) {
		iv := vectorInterval{a: lo, b: hi, result: make([]float64, n), err: make([]float64, n)}
		ok := qk21Vector(f, n, lo, hi, iv.result, iv.err)
		if n > 0 {
			iv.worst = floats.Max(iv.err)
		}
		return iv, ok
	}
	totals := func(list []vectorInterval) ([]float64, []float64) {
		total, totalErr := make([]float64, n), make([]float64, n)
		for _, iv := range list {
			floats.Add(total, iv.result)
			floats.Add(totalErr, iv.err)
		}
		return total, totalErr
	}
	converged := func(total, totalErr []float64) bool {
		if n == 0 {
			return true
		}
		scale := 0.0
		for _, v := range total {
			scale = math.Max(scale, math.Abs(v))
		}
		return floats.Max(totalErr) <= math.Max(cfg.EpsAbs, epsRel*scale)
	}
	fail := func(reason string, total, totalErr []float64, count int) error {
		e := &Error{Method: MethodGK21, A: a, B: b, Intervals: count, Reason: reason}
		if n > 0 {
			i := floats.MaxIdx(totalErr)
			e.Estimate, e.AbsErr = total[i], totalErr[i]
		}
		return e
	}

	first, ok := eval(a, b)
	if !ok {
		return first.result, fail("non-finite integrand", first.result, first.err, 1)
	}
	list := []vectorInterval{first}
	total, totalErr := totals(list)
	if converged(total, totalErr) {
		return total, nil
	}

	for len(list) < maxIntervals {
		worst := 0
		for i := range list {
			if list[i].worst > list[worst].worst {
				worst = i
			}
		}
		w := list[worst]
		if tooNarrow(w.a, w.b) {
			return total, fail("interval too small to bisect", total, totalErr, len(list))
		}
		mid := 0.5 * (w.a + w.b)
		left, ok1 := eval(w.a, mid)
		right, ok2 := eval(mid, w.b)
		if !ok1 || !ok2 {
			return total, fail("non-finite integrand", total, totalErr, len(list))
		}
		list[worst] = left
		list = append(list, right)

		total, totalErr = totals(list)
		if converged(total, totalErr) {
			return total, nil
		}
	}
	return total, fail("maximum number of subintervals reached", total, totalErr, len(list))
}
