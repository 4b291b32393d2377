package formfactors

import (
	"fmt"
	"math"
	"strings"

	"github.com/eos/eos-sub010/internal/modules/parameters"
)

// Heavy-quark inputs of the 1S scheme; the pole masses and alpha_s are fixed
// at mu = sqrt(m_b m_c)
const (
	hqetAlphaS  = 0.26
	hqetMb1S    = 4.71
	hqetLambda1 = -0.30
	hqetMbPole  = hqetMb1S * (1.0 + 2.0/9.0*hqetAlphaS*hqetAlphaS)
	hqetMcPole  = hqetMbPole - 3.40
	hqetZ       = hqetMcPole / hqetMbPole
)

// hqetProcess names the external masses and the parameter prefix of a b -> c transition
type hqetProcess struct {
	initial string
	final   string
	prefix  string
}

const hqetDefaultPrefix = "B(*)->D(*)"

var hqetProcesses = map[string]hqetProcess{
	"B->D^*":     {initial: "B_d", final: "D_u^*", prefix: hqetDefaultPrefix},
	"B_s->D_s^*": {initial: "B_s", final: "D_s^*", prefix: "B_s(*)->D_s(*)"},
	"B->D":       {initial: "B_d", final: "D_u", prefix: hqetDefaultPrefix},
	"B_s->D_s":   {initial: "B_s", final: "D_s", prefix: "B_s(*)->D_s(*)"},
}

// hqetOptions holds the truncation switches of the Isgur-Wise expansions,
// each 1 when the order is kept and 0 otherwise
type hqetOptions struct {
	exponential      bool
	lpZ3, lpZ4, lpZ5 float64
	slpZ2            float64
	sslpZ1, sslpZ2   float64
	su3fLimit        bool
}

func enabled(on bool) float64 {
	if on {
		return 1.0
	}
	return 0.0
}

func parseHQETOptions(o parameters.Options) (hqetOptions, error) {
	var opts hqetOptions
	model, err := o.Restrict("model-lp", []string{"power-series", "exponential"}, "power-series")
	if err != nil {
		return opts, err
	}
	lp, err := o.Restrict("z-order-lp", []string{"2", "3", "4", "5"}, "3")
	if err != nil {
		return opts, err
	}
	slp, err := o.Restrict("z-order-slp", []string{"1", "2"}, "2")
	if err != nil {
		return opts, err
	}
	sslp, err := o.Restrict("z-order-sslp", []string{"0", "1", "2"}, "1")
	if err != nil {
		return opts, err
	}
	limit, err := o.Restrict("SU3F-limit-sslp", []string{"0", "1"}, "0")
	if err != nil {
		return opts, err
	}

	opts.exponential = model == "exponential"
	opts.lpZ3, opts.lpZ4, opts.lpZ5 = enabled(lp >= "3"), enabled(lp >= "4"), enabled(lp == "5")
	opts.slpZ2 = enabled(slp == "2")
	opts.sslpZ1, opts.sslpZ2 = enabled(sslp >= "1"), enabled(sslp == "2")
	opts.su3fLimit = limit == "1"
	return opts, nil
}

// series is a function expanded to second order around zero recoil and
// re-expanded in z; a nil value at zero recoil means f(1) = 0
type series struct {
	one, prime, second *parameters.Handle
}

func readSeries(r *parameters.Reader, prefix, name string, withOne bool) series {
	var s series
	if withOne {
		s.one = r.Handle(fmt.Sprintf("%s::%s(1)@HQET", prefix, name))
	}
	s.prime = r.Handle(fmt.Sprintf("%s::%s'(1)@HQET", prefix, name))
	s.second = r.Handle(fmt.Sprintf("%s::%s''(1)@HQET", prefix, name))
	return s
}

// at evaluates the series for the shifted z with the z^2 term scaled by z2On
func (s series) at(a, z, z2On float64) float64 {
	z2 := z * z * z2On
	wm11 := 2.0*math.Pow(1.0+a, 2)/a*z + (3.0+a)*math.Pow(1.0+a, 3)/(2.0*a*a)*z2
	wm12 := 4.0 * math.Pow(1.0+a, 4) / (a * a) * z2

	v := s.prime.Value()*wm11 + s.second.Value()/2.0*wm12
	if s.one != nil {
		v += s.one.Value()
	}
	return v
}

// hqet holds the Isgur-Wise functions up to 1/m_c^2 shared by the B(*) -> D(*) form factors
type hqet struct {
	mB, mF *parameters.Handle
	mBar   *parameters.Handle
	a      *parameters.Handle

	xi              [5]*parameters.Handle // xi'(1) through xi'''''(1)
	chi2, chi3, eta series
	l               [6]series // l_1 through l_6

	opts hqetOptions
}

func newHQET(process string, p *parameters.Parameters, o parameters.Options, user string) (*hqet, error) {
	proc, ok := hqetProcesses[process]
	if !ok {
		return nil, parameters.NewConfigurationError("form-factors", process, "no BGJvD2019 parameters")
	}
	opts, err := parseHQETOptions(o)
	if err != nil {
		return nil, err
	}

	r := parameters.NewReader(p, user)
	h := &hqet{
		mB:   r.Handle("mass::" + proc.initial),
		mF:   r.Handle("mass::" + proc.final),
		mBar: r.Handle(proc.prefix + "::mBar@HQET"),
		a:    r.Handle(proc.prefix + "::a@HQET"),
		chi2: readSeries(r, proc.prefix, "chi_2", true),
		chi3: readSeries(r, proc.prefix, "chi_3", false),
		eta:  readSeries(r, proc.prefix, "eta", true),
		opts: opts,
	}
	for k := range h.xi {
		h.xi[k] = r.Handle(fmt.Sprintf("%s::xi%s(1)@HQET", proc.prefix, strings.Repeat("'", k+1)))
	}
	sslp := proc.prefix
	if opts.su3fLimit {
		sslp = hqetDefaultPrefix
	}
	for k := range h.l {
		h.l[k] = readSeries(r, sslp, fmt.Sprintf("l_%d", k+1), true)
	}
	if err := r.Err(); err != nil {
		return nil, fmt.Errorf("%s::BGJvD2019: %w", process, err)
	}
	return h, nil
}

func (h *hqet) w(s float64) float64 {
	mB, mF := h.mB.Value(), h.mF.Value()
	return (mB*mB + mF*mF - s) / (2.0 * mB * mF)
}

// z maps the recoil onto the unit disk, z(w) = (sqrt(w+1) - sqrt(2) a)/(sqrt(w+1) + sqrt(2) a)
func (h *hqet) z(w float64) float64 {
	a := math.Sqrt2 * h.a.Value()
	sw := math.Sqrt(w + 1.0)
	return (sw - a) / (sw + a)
}

// dz is z(w) - z(1)
func (h *hqet) dz(w float64) float64 {
	a := h.a.Value()
	return h.z(w) - (1.0-a)/(1.0+a)
}

// leading is the Isgur-Wise function xi(w)
func (h *hqet) leading(w float64) float64 {
	a := h.a.Value()
	a2 := a * a
	a3, a4, a5 := a2*a, a2*a2, a2*a2*a

	z := h.dz(w)
	z2 := z * z
	z3 := z2 * z * h.opts.lpZ3
	z4 := z2 * z2 * h.opts.lpZ4
	z5 := z3 * z2 * h.opts.lpZ5
	pa := func(n float64) float64 { return math.Pow(1.0+a, n) }

	wm11 := 2.0*pa(2)/a*z + (3.0+a)*pa(3)/(2.0*a2)*z2 + (2.0+a)*pa(4)/(2.0*a3)*z3 +
		(5.0+3.0*a)*pa(5)/(8.0*a4)*z4 + (3.0+2.0*a)*pa(6)/(8.0*a5)*z5
	wm12 := 4.0*pa(4)/a2*z2 + (6.0+2.0*a)*pa(5)/a3*z3 +
		(25.0+14.0*a+a2)*pa(6)/(4.0*a4)*z4 + (11.0+8.0*a+a2)*pa(7)/(2.0*a5)*z5
	wm13 := 8.0*pa(6)/a3*z3 + (18.0+6.0*a)*pa(7)/a4*z4 + (51.0+30.0*a+a2)*pa(8)/(2.0*a5)*z5
	wm14 := 16.0*pa(8)/a4*z4 + (48.0+16.0*a)*pa(9)/a5*z5
	wm15 := 32.0 * pa(5) / a5 * z5

	x1, x2 := h.xi[0].Value(), h.xi[1].Value()
	if h.opts.exponential {
		// exponential ansatz, expanded in w - 1 before the expansion in z
		return (1.0 + x1*wm11 - x1*wm12 + x1*2.0/3.0*wm13 - x1/3.0*wm14 + x1*2.0/15.0*wm15) *
			(1.0 + x2*wm11)
	}
	return 1.0 + x1*wm11 + x2/2.0*wm12 + h.xi[2].Value()/6.0*wm13 +
		h.xi[3].Value()/24.0*wm14 + h.xi[4].Value()/120.0*wm15
}

func (h *hqet) lambdaBar() float64 {
	return h.mBar.Value() - hqetMbPole + hqetLambda1/(2.0*hqetMb1S)
}

// hqetTerms collects the w-dependent pieces entering the h_i at one s
type hqetTerms struct {
	w, xi      float64
	as         float64 // alpha_s / pi
	epsB, epsC float64
	L          [7]float64 // L_1 ... L_6, index 0 unused
	l          [7]float64 // l_1(w) ... l_6(w), index 0 unused
}

func (h *hqet) terms(s float64) hqetTerms {
	w := h.w(s)
	a := h.a.Value()
	lb := h.lambdaBar()
	t := hqetTerms{
		w:    w,
		xi:   h.leading(w),
		as:   hqetAlphaS / math.Pi,
		epsB: lb / (2.0 * hqetMbPole),
		epsC: lb / (2.0 * hqetMcPole),
	}

	dz := h.dz(w)
	chi2 := h.chi2.at(a, dz, h.opts.slpZ2)
	chi3 := h.chi3.at(a, dz, h.opts.slpZ2)
	eta := h.eta.at(a, dz, h.opts.slpZ2)
	t.L[1] = -4.0*(w-1.0)*chi2 + 12.0*chi3
	t.L[2] = -4.0 * chi3
	t.L[3] = 4.0 * chi2
	t.L[4] = 2.0*eta - 1.0
	t.L[5] = -1.0
	t.L[6] = -2.0 * (1.0 + eta) / (w + 1.0)

	for k, l := range h.l {
		t.l[k+1] = l.at(a, dz*h.opts.sslpZ1, h.opts.sslpZ2)
	}
	return t
}

// r is ln(w + sqrt(w^2 - 1)) / sqrt(w^2 - 1)
func r(w float64) float64 {
	switch {
	case w < 1.0:
		return math.NaN()
	case w-1.0 < 1e-5:
		return 1.0 - (w-1.0)/3.0
	}
	s := math.Sqrt(w*w - 1.0)
	return math.Log(w+s) / s
}

// omega is the one-loop vertex function Omega(w, z) of the heavy-heavy current
func omega(w, z float64) float64 {
	if w < 1.0 {
		return math.NaN()
	}
	lnz := math.Log(z)
	if w-1.0 < 1e-5 {
		return -1.0 - (1.0+z)/(1.0-z)*lnz
	}
	s := math.Sqrt(w*w - 1.0)
	wm, wp := w-s, w+s
	li := 2.0*(dilog(1.0-wm*z)-dilog(1.0-wp*z)) + dilog(1.0-wp*wp) - dilog(1.0-wm*wm)
	return w*li/(2.0*s) - w*r(w)*lnz + 1.0
}

func wz(z float64) float64 { return 0.5 * (z + 1.0/z) }

// One-loop matching coefficients of the scalar, pseudoscalar, vector, axial
// and tensor currents at recoil w and mass ratio z = m_c/m_b

func cS(w, z float64) float64 {
	d, lnz := w-wz(z), math.Log(z)
	return (2.0*z*d*omega(w, z) - (w-1.0)*(z+1.0)*(z+1.0)*r(w) + (z*z-1.0)*lnz) / (3.0 * z * d)
}

func cP(w, z float64) float64 {
	d, lnz := w-wz(z), math.Log(z)
	return (2.0*z*d*omega(w, z) - (w+1.0)*(z-1.0)*(z-1.0)*r(w) + (z*z-1.0)*lnz) / (3.0 * z * d)
}

func cV1(w, z float64) float64 {
	d, lnz := w-wz(z), math.Log(z)
	v := 2.0*(w+1.0)*((3.0*w-1.0)*z-z*z-1.0)*r(w) - 12.0*z*d - (z*z-1.0)*lnz + 4.0*z*d*omega(w, z)
	return v / (6.0 * z * d)
}

func cV2(w, z float64) float64 {
	d, lnz := w-wz(z), math.Log(z)
	z2, w2 := z*z, w*w
	v := ((4.0*w2+2.0*w)*z2 - (2.0*w2+5.0*w-1.0)*z - (1.0+w)*z2*z + 2.0) * r(w)
	v += z * (-2.0*(z-1.0)*d + (z2-(4.0*w-2.0)*z+(3.0-2.0*w))*lnz)
	return -v / (6.0 * z2 * d * d)
}

func cV3(w, z float64) float64 {
	d, lnz := w-wz(z), math.Log(z)
	z2, w2 := z*z, w*w
	v := (-2.0*z2*z + (2.0*w2+5.0*w-1.0)*z2 - (4.0*w2+2.0*w)*z + w + 1.0) * r(w)
	v += -2.0*z*(z-1.0)*d + ((3.0-2.0*w)*z2+(2.0-4.0*w)*z+1.0)*lnz
	return v / (6.0 * z * d * d)
}

func cA1(w, z float64) float64 {
	d, lnz := w-wz(z), math.Log(z)
	v := 2.0*(w-1.0)*((3.0*w+1.0)*z-z*z-1.0)*r(w) - 12.0*z*d - (z*z-1.0)*lnz + 4.0*z*d*omega(w, z)
	return v / (6.0 * z * d)
}

func cA2(w, z float64) float64 {
	d, lnz := w-wz(z), math.Log(z)
	z2, w2 := z*z, w*w
	v := ((4.0*w2-2.0*w)*z2 + (2.0*w2-5.0*w-1.0)*z + (1.0-w)*z2*z + 2.0) * r(w)
	v += z * (-2.0*(z+1.0)*d + (z2-(4.0*w+2.0)*z+(2.0*w+3.0))*lnz)
	return -v / (6.0 * z2 * d * d)
}

func cA3(w, z float64) float64 {
	d, lnz := w-wz(z), math.Log(z)
	z2, w2 := z*z, w*w
	v := (2.0*z2*z + (2.0*w2-5.0*w-1.0)*z2 + (4.0*w2-2.0*w)*z - w + 1.0) * r(w)
	v += -2.0*z*(z+1.0)*d - ((2.0*w+3.0)*z2-(4.0*w+2.0)*z+1.0)*lnz
	return v / (6.0 * z * d * d)
}

func cT1(w, z float64) float64 {
	d, lnz := w-wz(z), math.Log(z)
	v := (w-1.0)*((4.0*w+2.0)*z-z*z-1.0)*r(w) - 6.0*z*d - (z*z-1.0)*lnz + 2.0*z*d*omega(w, z)
	return v / (3.0 * z * d)
}

func cT2(w, z float64) float64 {
	d := w - wz(z)
	return 2.0 * ((1.0-w*z)*r(w) + z*math.Log(z)) / (3.0 * z * d)
}

func cT3(w, z float64) float64 {
	d := w - wz(z)
	return 2.0 * ((w-z)*r(w) + math.Log(z)) / (3.0 * d)
}

// HQETPToP implements the BGJvD2019 heavy-quark expansion of B(s) -> D(s)
type HQETPToP struct {
	*hqet
}

func newHQETPToP(process string, p *parameters.Parameters, o parameters.Options, user string) (PToP, error) {
	h, err := newHQET(process, p, o, user)
	if err != nil {
		return nil, err
	}
	return &HQETPToP{hqet: h}, nil
}

func (f *HQETPToP) hPlus(t hqetTerms) float64 {
	w, z := t.w, hqetZ
	v := 1.0 + t.as*(cV1(w, z)+(w+1.0)/2.0*(cV2(w, z)+cV3(w, z)))
	v += (t.epsC + t.epsB) * t.L[1]
	v += t.epsC * t.epsC * t.l[1]
	return v * t.xi
}

func (f *HQETPToP) hMinus(t hqetTerms) float64 {
	w, z := t.w, hqetZ
	v := t.as * (w + 1.0) / 2.0 * (cV2(w, z) - cV3(w, z))
	v += (t.epsC - t.epsB) * t.L[4]
	v += t.epsC * t.epsC * t.l[4]
	return v * t.xi
}

func (f *HQETPToP) hT(t hqetTerms) float64 {
	w, z := t.w, hqetZ
	v := 1.0 + t.as*(cT1(w, z)-cT2(w, z)+cT3(w, z))
	v += (t.epsC + t.epsB) * (t.L[1] - t.L[4])
	v += t.epsC * t.epsC * (t.l[1] - t.l[4])
	return v * t.xi
}

func (f *HQETPToP) ratio() float64 { return f.mF.Value() / f.mB.Value() }

func (f *HQETPToP) FPlus(s float64) float64 {
	t, rr := f.terms(s), f.ratio()
	return ((1.0+rr)*f.hPlus(t) - (1.0-rr)*f.hMinus(t)) / (2.0 * math.Sqrt(rr))
}

func (f *HQETPToP) fMinus(t hqetTerms) float64 {
	rr := f.ratio()
	return ((1.0+rr)*f.hMinus(t) - (1.0-rr)*f.hPlus(t)) / (2.0 * math.Sqrt(rr))
}

// FZero follows from f+ and f-, not from the scale-dependent h_S
func (f *HQETPToP) FZero(s float64) float64 {
	mB, mP := f.mB.Value(), f.mF.Value()
	return f.FPlus(s) + s/(mB*mB-mP*mP)*f.fMinus(f.terms(s))
}

func (f *HQETPToP) FT(s float64) float64 {
	rr := f.ratio()
	return (1.0 + rr) / (2.0 * math.Sqrt(rr)) * f.hT(f.terms(s))
}

// HQETPToV implements the BGJvD2019 heavy-quark expansion of B(s) -> D(s)^*
type HQETPToV struct {
	*hqet
}

func newHQETPToV(process string, p *parameters.Parameters, o parameters.Options, user string) (PToV, error) {
	h, err := newHQET(process, p, o, user)
	if err != nil {
		return nil, err
	}
	return &HQETPToV{hqet: h}, nil
}

// hqetPToVAmplitudes are the h_i of a pseudoscalar to vector transition at one s
type hqetPToVAmplitudes struct {
	a1, a2, a3, v float64
	t1, t2, t3    float64
	w, r, sqrtR   float64
}

func (f *HQETPToV) amplitudes(s float64) hqetPToVAmplitudes {
	t := f.terms(s)
	w, z := t.w, hqetZ
	L, l := t.L, t.l
	ec, eb := t.epsC, t.epsB
	ec2 := ec * ec
	wr := (w - 1.0) / (w + 1.0)

	var h hqetPToVAmplitudes
	h.a1 = 1.0 + t.as*cA1(w, z) + ec*(L[2]-L[5]*wr) + eb*(L[1]-L[4]*wr) + ec2*(l[2]-wr*l[5])
	h.a2 = t.as*cA2(w, z) + ec*(L[3]+L[6]) + ec2*(l[3]+l[6])
	h.a3 = 1.0 + t.as*(cA1(w, z)+cA3(w, z)) + ec*(L[2]-L[3]+L[6]-L[5]) + eb*(L[1]-L[4]) +
		ec2*(l[2]-l[3]+l[6]-l[5])
	h.v = 1.0 + t.as*cV1(w, z) + ec*(L[2]-L[5]) + eb*(L[1]-L[4]) + ec2*(l[2]-l[5])
	h.t1 = 1.0 + t.as*(cT1(w, z)+(w-1.0)/2.0*(cT2(w, z)-cT3(w, z))) + ec*L[2] + eb*L[1] + ec2*l[2]
	h.t2 = t.as*(w+1.0)/2.0*(cT2(w, z)+cT3(w, z)) + ec*L[5] - eb*L[4] + ec2*l[5]
	h.t3 = t.as*cT2(w, z) + ec*(L[6]-L[3]) + ec2*(l[6]-l[3])
	for _, p := range []*float64{&h.a1, &h.a2, &h.a3, &h.v, &h.t1, &h.t2, &h.t3} {
		*p *= t.xi
	}

	h.w = w
	h.r = f.mF.Value() / f.mB.Value()
	h.sqrtR = math.Sqrt(h.r)
	return h
}

func (f *HQETPToV) V(s float64) float64 {
	h := f.amplitudes(s)
	return (1.0 + h.r) / (2.0 * h.sqrtR) * h.v
}

func (f *HQETPToV) A0(s float64) float64 {
	h := f.amplitudes(s)
	return ((1.0+h.w)*h.a1 + (h.r*h.w-1.0)*h.a2 + (h.r-h.w)*h.a3) / (2.0 * h.sqrtR)
}

func (f *HQETPToV) A1(s float64) float64 {
	h := f.amplitudes(s)
	return h.sqrtR * (1.0 + h.w) / (1.0 + h.r) * h.a1
}

func (f *HQETPToV) A2(s float64) float64 {
	h := f.amplitudes(s)
	return (1.0 + h.r) / (2.0 * h.sqrtR) * (h.r*h.a2 + h.a3)
}

func (f *HQETPToV) lambda(s float64) float64 {
	mB2, mV2 := f.mB.Value()*f.mB.Value(), f.mF.Value()*f.mF.Value()
	return mB2*mB2 + mV2*mV2 + s*s - 2.0*(mB2*mV2+mB2*s+mV2*s)
}

func (f *HQETPToV) A12(s float64) float64 {
	mB, mV := f.mB.Value(), f.mF.Value()
	v := (mB+mV)*(mB+mV)*(mB*mB-mV*mV-s)*f.A1(s) - f.lambda(s)*f.A2(s)
	return v / (16.0 * mB * mV * mV * (mB + mV))
}

func (f *HQETPToV) T1(s float64) float64 {
	h := f.amplitudes(s)
	return ((1.0+h.r)*h.t1 - (1.0-h.r)*h.t2) / (2.0 * h.sqrtR)
}

func (f *HQETPToV) T2(s float64) float64 {
	h := f.amplitudes(s)
	return (2.0*h.r*(h.w+1.0)/(1.0+h.r)*h.t1 - 2.0*h.r*(h.w-1.0)/(1.0-h.r)*h.t2) / (2.0 * h.sqrtR)
}

func (f *HQETPToV) T3(s float64) float64 {
	h := f.amplitudes(s)
	return ((1.0-h.r)*h.t1 - (1.0+h.r)*h.t2 + (1.0-h.r*h.r)*h.t3) / (2.0 * h.sqrtR)
}

func (f *HQETPToV) T23(s float64) float64 {
	mB, mV := f.mB.Value(), f.mF.Value()
	mB2, mV2 := mB*mB, mV*mV
	return ((mB2-mV2)*(mB2+3.0*mV2-s)*f.T2(s) - f.lambda(s)*f.T3(s)) / (8.0 * mB * mV2 * (mB - mV))
}
