package decays

import (
	"fmt"
	"math"
	"math/cmplx"

	"github.com/eos/eos-sub010/internal/modules/formfactors"
	"github.com/eos/eos-sub010/internal/modules/integration"
	"github.com/eos/eos-sub010/internal/modules/parameters"
)

// PToVAmplitudes are the transversity amplitudes of P -> V l nu at one q2
type PToVAmplitudes struct {
	A0, A0T         complex128
	APlus, AMinus   complex128
	APlusT, AMinusT complex128
	ATime, AP       complex128
	APara, APerp    complex128
	AParaT, APerpT  complex128

	MLHat float64 // m_l / sqrt(q2)
	NF    float64 // normalisation with |V_Ub| = 1
}

// Coefficient indexes the angular coefficient array
type Coefficient int

const (
	J1c Coefficient = iota
	J2c
	J6c
	J1s
	J2s
	J6s
	J3
	J9
	J4
	J5
	J7
	J8
	numCoefficients
)

var coefficientNames = [numCoefficients]string{"1c", "2c", "6c", "1s", "2s", "6s", "3", "9", "4", "5", "7", "8"}

func (c Coefficient) String() string {
	if c < 0 || c >= numCoefficients {
		return fmt.Sprintf("Coefficient(%d)", int(c))
	}
	return "J_" + coefficientNames[c]
}

// ParseCoefficient reads "1c", "2s", "9" and the like
func ParseCoefficient(s string) (Coefficient, error) {
	for i, n := range coefficientNames {
		if n == s {
			return Coefficient(i), nil
		}
	}
	return 0, parameters.NewConfigurationError("J", s, "unknown angular coefficient")
}

// Coefficients lists all angular coefficients in storage order
func Coefficients() []Coefficient {
	out := make([]Coefficient, numCoefficients)
	for i := range out {
		out[i] = Coefficient(i)
	}
	return out
}

// AngularObservables holds the bilinears of the transversity amplitudes, at
// one q2 or integrated over a range. The angular coefficients are J_i = 3/4 v_i.
type AngularObservables [numCoefficients]float64

func sq(z complex128) float64 {
	return real(z)*real(z) + imag(z)*imag(z)
}

// NewAngularObservables builds the coefficient array from the amplitudes
func NewAngularObservables(a PToVAmplitudes) AngularObservables {
	var vv AngularObservables
	nf, m := a.NF, a.MLHat
	m2 := m * m
	cm := complex(m, 0)
	conj := cmplx.Conj
	tp := cm*a.ATime + a.AP // m_l-weighted timelike plus pseudoscalar

	vv[J1c] = nf * 2.0 * ((1+m2)*(sq(a.A0)+16*sq(a.A0T)) + 2*m2*sq(a.ATime) + 2*sq(a.AP) +
		4*m*real(a.ATime*conj(a.AP)) - 16*m*real(a.A0T*conj(a.A0)))
	vv[J2c] = nf * 2.0 * (1 - m2) * (-sq(a.A0) + 16*sq(a.A0T))
	vv[J6c] = -nf * 8.0 * real(cm*tp*conj(a.A0)-4*tp*conj(a.A0T))

	transverse := sq(a.APara) + sq(a.APerp)
	transverseT := sq(a.AParaT) + sq(a.APerpT)
	vv[J1s] = nf * ((3+m2)*transverse/2 + 8*(1+3*m2)*transverseT -
		16*m*real(a.AParaT*conj(a.APara)+a.APerpT*conj(a.APerp)))
	vv[J2s] = nf * (1 - m2) * (transverse/2 - 8*transverseT)
	vv[J6s] = nf * 4.0 * real(-a.APara*conj(a.APerp)-complex(16*m2, 0)*a.AParaT*conj(a.APerpT)+
		4*cm*(a.APerpT*conj(a.APara)+a.AParaT*conj(a.APerp)))
	vv[J3] = nf * (1 - m2) * (-(sq(a.APara) - sq(a.APerp)) + 16*(sq(a.AParaT)-sq(a.APerpT)))
	vv[J9] = nf * 2.0 * (1 - m2) * imag(a.APara*conj(a.APerp))
	vv[J4] = nf * math.Sqrt2 * (1 - m2) * real(a.APara*conj(a.A0)-16*a.AParaT*conj(a.A0T))
	vv[J5] = nf * 2.0 * math.Sqrt2 * real(-a.APerp*conj(a.A0)+a.APara*cm*conj(tp)-
		complex(16*m2, 0)*a.APerpT*conj(a.A0T)+4*cm*(a.A0T*conj(a.APerp)+a.APerpT*conj(a.A0))-
		4*a.AParaT*conj(tp))
	vv[J7] = nf * 2.0 * math.Sqrt2 * imag(-a.APara*conj(a.A0)+cm*a.APerp*conj(tp)+
		4*cm*(a.A0T*conj(a.APara)-a.AParaT*conj(a.A0))+4*a.APerpT*conj(tp))
	vv[J8] = nf * math.Sqrt2 * (1 - m2) * imag(a.APerp*conj(a.A0))
	return vv
}

// J returns the angular coefficient J_c
func (vv AngularObservables) J(c Coefficient) float64 {
	return 0.75 * vv[c]
}

// LongitudinalWidth is the longitudinal part A_L of the width
func (vv AngularObservables) LongitudinalWidth() float64 {
	return vv[J1c] - vv[J2c]/3.0
}

// TransverseWidth is the transverse part A_T of the width
func (vv AngularObservables) TransverseWidth() float64 {
	return 2.0 * (vv[J1s] - vv[J2s]/3.0)
}

func (vv AngularObservables) total() float64 {
	return vv.LongitudinalWidth() + vv.TransverseWidth()
}

// NormalizedDecayWidth is the width with |V_Ub| = 1
func (vv AngularObservables) NormalizedDecayWidth() float64 {
	return 0.75 * vv.total()
}

func (vv AngularObservables) FL() float64 {
	return vv.LongitudinalWidth() / vv.total()
}

func (vv AngularObservables) FTildeL() float64 {
	return 1.0/3.0 - 16.0/9.0*(vv[J2s]+vv[J2c]/2.0)/vv.total()
}

func (vv AngularObservables) AFB() float64 {
	return (vv[J6s] + vv[J6c]/2.0) / vv.total()
}

func (vv AngularObservables) AC1() float64 { return 4.0 * vv[J3] / (3.0 * vv.total()) }
func (vv AngularObservables) AC2() float64 { return vv[J5] / vv.total() }
func (vv AngularObservables) AC3() float64 { return vv[J4] / vv.total() }
func (vv AngularObservables) AT1() float64 { return 4.0 * vv[J9] / (3.0 * vv.total()) }
func (vv AngularObservables) AT2() float64 { return vv[J7] / vv.total() }
func (vv AngularObservables) AT3() float64 { return vv[J8] / vv.total() }

// FourDifferentialDecayWidth is the normalized distribution in q2 and the
// three decay angles for the given coefficient array
func (vv AngularObservables) FourDifferentialDecayWidth(cThetaL, cThetaD, phi float64) float64 {
	c2l := 2.0*cThetaL*cThetaL - 1.0
	sl := math.Sqrt(math.Max(0, 1.0-cThetaL*cThetaL))
	sd := math.Sqrt(math.Max(0, 1.0-cThetaD*cThetaD))
	s2l := 2.0 * sl * cThetaL
	s2d := 2.0 * sd * cThetaD
	cd2, sd2, sl2 := cThetaD*cThetaD, sd*sd, sl*sl
	cphi, sphi := math.Cos(phi), math.Sin(phi)
	c2phi, s2phi := math.Cos(2*phi), math.Sin(2*phi)

	return 9.0 / (32.0 * math.Pi) * ((vv[J1c]+vv[J2c]*c2l+vv[J6c]*cThetaL)*cd2 +
		(vv[J1s]+vv[J2s]*c2l+vv[J6s]*cThetaL)*sd2 +
		vv[J3]*sd2*sl2*c2phi +
		vv[J4]*s2d*s2l*cphi +
		vv[J5]*s2d*sl*cphi +
		vv[J9]*sd2*sl2*s2phi +
		vv[J7]*s2d*sl*sphi +
		vv[J8]*s2d*s2l*sphi)
}

// PToVLeptonNeutrino generates the observables of P -> V l nu
type PToVLeptonNeutrino struct {
	*generator
	ff formfactors.PToV
}

// NewPToVLeptonNeutrino resolves the options q, V, l, cp-conjugate, model,
// form-factors and integration*, and registers the parameters it reads
func NewPToVLeptonNeutrino(p *parameters.Parameters, o parameters.Options) (*PToVLeptonNeutrino, error) {
	base := integration.DefaultConfig().WithMethod(integration.MethodSimpson, 256)
	if o.Has("integration-points") {
		if _, err := o.Restrict("integration-points", []string{"256", "4096"}, "256"); err != nil {
			return nil, err
		}
	}
	g, user, err := newGenerator(p, o, pToVProcesses, "V", "lnu", base)
	if err != nil {
		return nil, fmt.Errorf("P->Vlnu: %w", err)
	}
	ff, err := formfactors.NewPToV(g.Label+"::"+o.Get("form-factors", "BSZ2015"), p, o, user)
	if err != nil {
		return nil, fmt.Errorf("P->Vlnu: %w", err)
	}
	return &PToVLeptonNeutrino{generator: g, ff: ff}, nil
}

// Amplitudes computes the transversity amplitudes; outside the physical
// window every amplitude and the normalisation vanish
func (d *PToVLeptonNeutrino) Amplitudes(q2 float64) (PToVAmplitudes, error) {
	var a PToVAmplitudes
	if !d.inPhaseSpace(q2) {
		return a, nil
	}

	cc, err := d.couplings()
	if err != nil {
		return a, err
	}
	gVPlus := cc.CVL + cc.CVR
	gVMinus := cc.CVL - cc.CVR
	gP := cc.CSR - cc.CSL
	tl := cc.CT

	mb, mU, err := d.quarkMasses()
	if err != nil {
		return a, err
	}

	mB, mV, mL := d.mB.Value(), d.mF.Value(), d.mL.Value()
	mB2, mV2 := mB*mB, mV*mV
	lam := lambda(mB2, mV2, q2)
	sqrtLam := 0.0
	if lam > 0 {
		sqrtLam = math.Sqrt(lam)
	}
	sqrtQ2 := math.Sqrt(q2)
	iso := complex(d.Isospin, 0)

	a0 := d.ff.A0(q2)
	a1 := d.ff.A1(q2)
	a12 := d.ff.A12(q2)
	v := d.ff.V(q2)
	t1 := d.ff.T1(q2)
	t2 := d.ff.T2(q2)
	lamT3 := 0.0
	if lam > 0 {
		lamT3 = lam * d.ff.T3(q2)
	}

	re := func(x float64) complex128 { return complex(x, 0) }

	a.A0 = iso * gVMinus * re(8.0*mB*mV/sqrtQ2*a12)
	a.A0T = iso * tl * re(((mB2+3.0*mV2-q2)*t2-lamT3/(mB2-mV2))/(2.0*mV))
	a.APlus = iso * (re((mB+mV)*a1)*gVMinus - re(sqrtLam*v/(mB+mV))*gVPlus)
	a.AMinus = iso * (re((mB+mV)*a1)*gVMinus + re(sqrtLam*v/(mB+mV))*gVPlus)
	a.APlusT = iso * tl * re(((mB2-mV2)*t2+sqrtLam*t1)/sqrtQ2)
	a.AMinusT = iso * tl * re(((mB2-mV2)*t2-sqrtLam*t1)/sqrtQ2)
	a.ATime = iso * re(sqrtLam*a0/sqrtQ2) * gVMinus
	a.AP = iso * re(sqrtLam*a0/(mb+mU)) * gP
	a.APara = (a.APlus + a.AMinus) / math.Sqrt2
	a.APerp = (a.APlus - a.AMinus) / math.Sqrt2
	a.AParaT = (a.APlusT + a.AMinusT) / math.Sqrt2
	a.APerpT = (a.APlusT - a.AMinusT) / math.Sqrt2

	if mL > 0 {
		a.MLHat = math.Sqrt(mL * mL / q2)
	}
	p := sqrtLam / (2.0 * mB)
	r := 1.0 - mL*mL/q2
	gF := d.gF.Value()
	a.NF = gF * gF * p * q2 * r * r / (3.0 * 64.0 * math.Pi * math.Pi * math.Pi * mB2)
	return a, nil
}

// DifferentialAngularObservables returns the coefficient array at q2
func (d *PToVLeptonNeutrino) DifferentialAngularObservables(q2 float64) (AngularObservables, error) {
	a, err := d.Amplitudes(q2)
	if err != nil {
		return AngularObservables{}, err
	}
	return NewAngularObservables(a), nil
}

// NormalizedDifferentialDecayWidth is dGamma/dq2 with |V_Ub| = 1
func (d *PToVLeptonNeutrino) NormalizedDifferentialDecayWidth(q2 float64) (float64, error) {
	vv, err := d.DifferentialAngularObservables(q2)
	if err != nil {
		return 0, err
	}
	return vv.NormalizedDecayWidth(), nil
}

// DifferentialBranchingRatio is dBR/dq2
func (d *PToVLeptonNeutrino) DifferentialBranchingRatio(q2 float64) (float64, error) {
	w, err := d.NormalizedDifferentialDecayWidth(q2)
	if err != nil {
		return 0, err
	}
	v2, err := d.ckm2()
	if err != nil {
		return 0, err
	}
	return w * v2 * d.lifetimeFactor(), nil
}

// NormalizedDifferentialBranchingRatio is dBR/dq2 with |V_Ub| = 1
func (d *PToVLeptonNeutrino) NormalizedDifferentialBranchingRatio(q2 float64) (float64, error) {
	w, err := d.NormalizedDifferentialDecayWidth(q2)
	if err != nil {
		return 0, err
	}
	return w * d.lifetimeFactor(), nil
}

func (d *PToVLeptonNeutrino) DifferentialAFB(q2 float64) (float64, error) {
	vv, err := d.DifferentialAngularObservables(q2)
	if err != nil {
		return 0, err
	}
	return vv.AFB(), nil
}

func (d *PToVLeptonNeutrino) DifferentialFL(q2 float64) (float64, error) {
	vv, err := d.DifferentialAngularObservables(q2)
	if err != nil {
		return 0, err
	}
	return vv.FL(), nil
}

// DifferentialJ returns the angular coefficient c at q2
func (d *PToVLeptonNeutrino) DifferentialJ(c Coefficient, q2 float64) (float64, error) {
	vv, err := d.DifferentialAngularObservables(q2)
	if err != nil {
		return 0, err
	}
	return vv.J(c), nil
}

// FourDifferentialDecayWidth is the normalized d^4Gamma/(dq2 dcos_l dcos_d dphi)
func (d *PToVLeptonNeutrino) FourDifferentialDecayWidth(q2, cThetaL, cThetaD, phi float64) (float64, error) {
	vv, err := d.DifferentialAngularObservables(q2)
	if err != nil {
		return 0, err
	}
	return vv.FourDifferentialDecayWidth(cThetaL, cThetaD, phi), nil
}

// PToVIntermediateResult carries the coefficient array integrated over one
// q2 range together with the flavour and life-time factors read at Prepare.
// Every method is a pure function of this data.
type PToVIntermediateResult struct {
	Q2Min, Q2Max float64
	Observables  AngularObservables

	ckm2     float64
	lifetime float64
}

// Prepare integrates the coefficient array over [q2Min, q2Max] once
func (d *PToVLeptonNeutrino) Prepare(q2Min, q2Max float64) (*PToVIntermediateResult, error) {
	var first firstError
	integrand := func(q2 float64, out []float64) {
		vv, err := d.DifferentialAngularObservables(q2)
		first.set(err)
		copy(out, vv[:])
	}
	values, err := integration.IntegrateVector(integrand, int(numCoefficients), q2Min, q2Max, d.cfg)
	if first.err != nil {
		return nil, first.err
	}
	if err != nil {
		return nil, fmt.Errorf("%s: failed to integrate angular observables on [%g, %g]: %w", d.Label, q2Min, q2Max, err)
	}
	v2, err := d.ckm2()
	if err != nil {
		return nil, err
	}

	ir := &PToVIntermediateResult{Q2Min: q2Min, Q2Max: q2Max, ckm2: v2, lifetime: d.lifetimeFactor()}
	copy(ir.Observables[:], values)
	return ir, nil
}

func (ir *PToVIntermediateResult) ratio(f func(AngularObservables) float64) (float64, error) {
	if ir.Observables.total() == 0 {
		return 0, fmt.Errorf("q2 range [%g, %g]: %w", ir.Q2Min, ir.Q2Max, ErrEmptyPhaseSpace)
	}
	return f(ir.Observables), nil
}

func (ir *PToVIntermediateResult) BranchingRatio() float64 {
	return ir.Observables.NormalizedDecayWidth() * ir.ckm2 * ir.lifetime
}

func (ir *PToVIntermediateResult) NormalizedBranchingRatio() float64 {
	return ir.Observables.NormalizedDecayWidth() * ir.lifetime
}

// LongitudinalWidth is A_L including |V_Ub|^2
func (ir *PToVIntermediateResult) LongitudinalWidth() float64 {
	return ir.Observables.LongitudinalWidth() * ir.ckm2
}

// TransverseWidth is A_T including |V_Ub|^2
func (ir *PToVIntermediateResult) TransverseWidth() float64 {
	return ir.Observables.TransverseWidth() * ir.ckm2
}

func (ir *PToVIntermediateResult) AFB() (float64, error) { return ir.ratio(AngularObservables.AFB) }
func (ir *PToVIntermediateResult) FL() (float64, error)  { return ir.ratio(AngularObservables.FL) }
func (ir *PToVIntermediateResult) FTildeL() (float64, error) {
	return ir.ratio(AngularObservables.FTildeL)
}
func (ir *PToVIntermediateResult) AC1() (float64, error) { return ir.ratio(AngularObservables.AC1) }
func (ir *PToVIntermediateResult) AC2() (float64, error) { return ir.ratio(AngularObservables.AC2) }
func (ir *PToVIntermediateResult) AC3() (float64, error) { return ir.ratio(AngularObservables.AC3) }
func (ir *PToVIntermediateResult) AT1() (float64, error) { return ir.ratio(AngularObservables.AT1) }
func (ir *PToVIntermediateResult) AT2() (float64, error) { return ir.ratio(AngularObservables.AT2) }
func (ir *PToVIntermediateResult) AT3() (float64, error) { return ir.ratio(AngularObservables.AT3) }

// J returns the integrated angular coefficient c, with |V_Ub| = 1
func (ir *PToVIntermediateResult) J(c Coefficient) float64 {
	return ir.Observables.J(c)
}

// IntegratedBranchingRatio is the single-shot form of Prepare + BranchingRatio
func (d *PToVLeptonNeutrino) IntegratedBranchingRatio(q2Min, q2Max float64) (float64, error) {
	ir, err := d.Prepare(q2Min, q2Max)
	if err != nil {
		return 0, err
	}
	return ir.BranchingRatio(), nil
}

// NormalizedIntegratedBranchingRatio is the single-shot form of Prepare + NormalizedBranchingRatio
func (d *PToVLeptonNeutrino) NormalizedIntegratedBranchingRatio(q2Min, q2Max float64) (float64, error) {
	ir, err := d.Prepare(q2Min, q2Max)
	if err != nil {
		return 0, err
	}
	return ir.NormalizedBranchingRatio(), nil
}

// IntegratedFL is the single-shot form of Prepare + FL
func (d *PToVLeptonNeutrino) IntegratedFL(q2Min, q2Max float64) (float64, error) {
	ir, err := d.Prepare(q2Min, q2Max)
	if err != nil {
		return 0, err
	}
	return ir.FL()
}

// IntegratedAFB is the single-shot form of Prepare + AFB
func (d *PToVLeptonNeutrino) IntegratedAFB(q2Min, q2Max float64) (float64, error) {
	ir, err := d.Prepare(q2Min, q2Max)
	if err != nil {
		return 0, err
	}
	return ir.AFB()
}

// pdfIntegral is the adaptive integral of the normalized width
func (d *PToVLeptonNeutrino) pdfIntegral(q2Min, q2Max float64) (float64, error) {
	var first firstError
	f := func(q2 float64) float64 {
		w, err := d.NormalizedDifferentialDecayWidth(q2)
		first.set(err)
		return w
	}
	cfg := d.cfg
	cfg.Method = integration.MethodGK21
	v, err := integration.Integrate(f, q2Min, q2Max, cfg)
	if first.err != nil {
		return 0, first.err
	}
	return v, err
}

// IntegratedPDFQ2 is the probability density averaged over [q2Min, q2Max]
func (d *PToVLeptonNeutrino) IntegratedPDFQ2(q2Min, q2Max float64) (float64, error) {
	return integratedPDF(d.generator, d.pdfIntegral, q2Min, q2Max)
}

// IntegratedPDFW is the probability density averaged over the recoil range [wMin, wMax]
func (d *PToVLeptonNeutrino) IntegratedPDFW(wMin, wMax float64) (float64, error) {
	q2Max, q2Min := d.wToQ2(wMin), d.wToQ2(wMax)
	v, err := d.IntegratedPDFQ2(q2Min, q2Max)
	if err != nil {
		return 0, err
	}
	return v * (q2Max - q2Min) / (wMax - wMin), nil
}

func integratedPDF(g *generator, integral func(a, b float64) (float64, error), q2Min, q2Max float64) (float64, error) {
	lo, hi := g.physicalRange()
	num, err := integral(q2Min, q2Max)
	if err != nil {
		return 0, err
	}
	den, err := integral(lo, hi)
	if err != nil {
		return 0, err
	}
	if den == 0 {
		return 0, ErrEmptyPhaseSpace
	}
	return num / den / (q2Max - q2Min), nil
}
