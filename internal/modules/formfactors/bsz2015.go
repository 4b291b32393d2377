package formfactors

import (
	"fmt"
	"math"
	"math/cmplx"

	"github.com/eos/eos-sub010/internal/modules/parameters"
)

// bszProcess names the external states and the resonance family of a transition
type bszProcess struct {
	initial   string // "mass::<B>"
	final     string // "mass::<V or P>"
	resonance string // "c" or "u", the partner quark of the b
}

var bszProcesses = map[string]bszProcess{
	"B->D^*":     {initial: "B_d", final: "D_d^*", resonance: "c"},
	"B_s->D_s^*": {initial: "B_s", final: "D_s^*", resonance: "c"},
	"B->rho":     {initial: "B_d", final: "rho^+", resonance: "u"},
	"B->omega":   {initial: "B_d", final: "omega", resonance: "u"},
	"B_s->K^*":   {initial: "B_s", final: "K_u^*", resonance: "u"},
	"B->D":       {initial: "B_d", final: "D_d", resonance: "c"},
	"B_s->D_s":   {initial: "B_s", final: "D_s", resonance: "c"},
	"B->pi":      {initial: "B_d", final: "pi^+", resonance: "u"},
	"B_s->K":     {initial: "B_s", final: "K_u", resonance: "u"},
}

// resonance masses by J^P; B_U^(*) with U the partner quark
func resonanceName(family, jp string) string {
	suffix := map[string]string{"0-": "", "1-": "^*", "1+": ",1", "0+": ",0"}[jp]
	return fmt.Sprintf("mass::B_%s%s@BSZ2015", family, suffix)
}

// bszKinematics carries the masses shared by all BSZ2015 form factors
type bszKinematics struct {
	mB *parameters.Handle
	mF *parameters.Handle
}

// z maps s onto the unit disk using t_+ = (mB + mF)^2 and the optimal t_0
func (k bszKinematics) z(s float64) float64 {
	mB, mF := k.mB.Value(), k.mF.Value()
	tp := (mB + mF) * (mB + mF)
	tm := (mB - mF) * (mB - mF)
	t0 := tp * (1.0 - math.Sqrt(1.0-tm/tp))

	a := cmplx.Sqrt(complex(tp-s, 0))
	b := complex(math.Sqrt(tp-t0), 0)
	return real((a - b) / (a + b))
}

// series evaluates the second-order z expansion with a single pole
func (k bszKinematics) series(s, mR, a0, a1, a2 float64) float64 {
	dz := k.z(s) - k.z(0)
	return (a0 + a1*dz + a2*dz*dz) / (1.0 - s/(mR*mR))
}

func (k bszKinematics) lambda(s float64) float64 {
	mB2, mF2 := k.mB.Value()*k.mB.Value(), k.mF.Value()*k.mF.Value()
	return mB2*mB2 + mF2*mF2 + s*s - 2.0*(mB2*mF2+mB2*s+mF2*s)
}

type coefficients [3]*parameters.Handle

// values returns the coefficients; a nil order-0 handle is replaced by a0
func (c coefficients) values(a0 float64) (float64, float64, float64) {
	if c[0] != nil {
		a0 = c[0].Value()
	}
	return a0, c[1].Value(), c[2].Value()
}

func readCoefficients(r *parameters.Reader, process, ff string, withZeroth bool) coefficients {
	var c coefficients
	for k := 0; k < 3; k++ {
		if k == 0 && !withZeroth {
			continue
		}
		c[k] = r.Handle(fmt.Sprintf("%s::alpha^%s_%d@BSZ2015", process, ff, k))
	}
	return c
}

// BSZ2015PToV implements the Bharucha-Straub-Zwicky parametrisation of P -> V
type BSZ2015PToV struct {
	bszKinematics

	m0m *parameters.Handle
	m1m *parameters.Handle
	m1p *parameters.Handle

	a0, a1, a12, v, t1, t2, t23 coefficients
}

func newBSZ2015PToV(process string, p *parameters.Parameters, _ parameters.Options, user string) (PToV, error) {
	proc, ok := bszProcesses[process]
	if !ok {
		return nil, parameters.NewConfigurationError("form-factors", process, "no BSZ2015 P->V parameters")
	}
	r := parameters.NewReader(p, user)
	f := &BSZ2015PToV{
		bszKinematics: bszKinematics{
			mB: r.Handle("mass::" + proc.initial),
			mF: r.Handle("mass::" + proc.final),
		},
		m0m: r.Handle(resonanceName(proc.resonance, "0-")),
		m1m: r.Handle(resonanceName(proc.resonance, "1-")),
		m1p: r.Handle(resonanceName(proc.resonance, "1+")),
		a0:  readCoefficients(r, process, "A0", true),
		a1:  readCoefficients(r, process, "A1", true),
		a12: readCoefficients(r, process, "A12", false),
		v:   readCoefficients(r, process, "V", true),
		t1:  readCoefficients(r, process, "T1", true),
		t2:  readCoefficients(r, process, "T2", false),
		t23: readCoefficients(r, process, "T23", true),
	}
	if err := r.Err(); err != nil {
		return nil, fmt.Errorf("%s::BSZ2015: %w", process, err)
	}
	return f, nil
}

func (f *BSZ2015PToV) V(s float64) float64 {
	a0, a1, a2 := f.v.values(0)
	return f.series(s, f.m1m.Value(), a0, a1, a2)
}

func (f *BSZ2015PToV) A0(s float64) float64 {
	a0, a1, a2 := f.a0.values(0)
	return f.series(s, f.m0m.Value(), a0, a1, a2)
}

func (f *BSZ2015PToV) A1(s float64) float64 {
	a0, a1, a2 := f.a1.values(0)
	return f.series(s, f.m1p.Value(), a0, a1, a2)
}

// A12 at s = 0 is fixed by A0(0)
func (f *BSZ2015PToV) A12(s float64) float64 {
	mB, mV := f.mB.Value(), f.mF.Value()
	a0, a1, a2 := f.a12.values((mB*mB - mV*mV) / (8.0 * mB * mV) * f.a0[0].Value())
	return f.series(s, f.m1p.Value(), a0, a1, a2)
}

func (f *BSZ2015PToV) A2(s float64) float64 {
	mB, mV := f.mB.Value(), f.mF.Value()
	return ((mB+mV)*(mB+mV)*(mB*mB-mV*mV-s)*f.A1(s) - 16.0*mB*mV*mV*(mB+mV)*f.A12(s)) / f.lambda(s)
}

func (f *BSZ2015PToV) T1(s float64) float64 {
	a0, a1, a2 := f.t1.values(0)
	return f.series(s, f.m1m.Value(), a0, a1, a2)
}

// T2 at s = 0 equals T1(0)
func (f *BSZ2015PToV) T2(s float64) float64 {
	a0, a1, a2 := f.t2.values(f.t1[0].Value())
	return f.series(s, f.m1p.Value(), a0, a1, a2)
}

func (f *BSZ2015PToV) T3(s float64) float64 {
	mB, mV := f.mB.Value(), f.mF.Value()
	return ((mB*mB-mV*mV)*(mB*mB+3.0*mV*mV-s)*f.T2(s) - 8.0*mB*mV*mV*(mB-mV)*f.T23(s)) / f.lambda(s)
}

func (f *BSZ2015PToV) T23(s float64) float64 {
	a0, a1, a2 := f.t23.values(0)
	return f.series(s, f.m1p.Value(), a0, a1, a2)
}

// BSZ2015PToP implements the z expansion of P -> P form factors
type BSZ2015PToP struct {
	bszKinematics

	m1m *parameters.Handle
	m0p *parameters.Handle

	fp, f0, ft coefficients
}

func newBSZ2015PToP(process string, p *parameters.Parameters, _ parameters.Options, user string) (PToP, error) {
	proc, ok := bszProcesses[process]
	if !ok {
		return nil, parameters.NewConfigurationError("form-factors", process, "no BSZ2015 P->P parameters")
	}
	r := parameters.NewReader(p, user)
	f := &BSZ2015PToP{
		bszKinematics: bszKinematics{
			mB: r.Handle("mass::" + proc.initial),
			mF: r.Handle("mass::" + proc.final),
		},
		m1m: r.Handle(resonanceName(proc.resonance, "1-")),
		m0p: r.Handle(resonanceName(proc.resonance, "0+")),
		fp:  readCoefficients(r, process, "f+", true),
		f0:  readCoefficients(r, process, "f0", false),
		ft:  readCoefficients(r, process, "fT", true),
	}
	if err := r.Err(); err != nil {
		return nil, fmt.Errorf("%s::BSZ2015: %w", process, err)
	}
	return f, nil
}

func (f *BSZ2015PToP) FPlus(s float64) float64 {
	a0, a1, a2 := f.fp.values(0)
	return f.series(s, f.m1m.Value(), a0, a1, a2)
}

// FZero shares its normalisation with f+ since f+(0) = f0(0)
func (f *BSZ2015PToP) FZero(s float64) float64 {
	a0, a1, a2 := f.f0.values(f.fp[0].Value())
	return f.series(s, f.m0p.Value(), a0, a1, a2)
}

func (f *BSZ2015PToP) FT(s float64) float64 {
	a0, a1, a2 := f.ft.values(0)
	return f.series(s, f.m1m.Value(), a0, a1, a2)
}
