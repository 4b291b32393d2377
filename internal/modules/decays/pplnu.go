package decays

import (
	"fmt"
	"math"
	"math/cmplx"

	"github.com/eos/eos-sub010/internal/modules/formfactors"
	"github.com/eos/eos-sub010/internal/modules/integration"
	"github.com/eos/eos-sub010/internal/modules/parameters"
)

// PToPAmplitudes are the helicity amplitudes of P -> P l nu at one s
type PToPAmplitudes struct {
	H0, HT, HS, HTensor complex128

	// HTS combines the timelike and scalar amplitudes, h_t - h_S/m̂_l. It is
	// left at h_t for massless leptons, where only HTSHat is defined.
	HTS complex128
	// HTSHat is m̂_l HTS = m̂_l h_t - h_S, finite for every lepton mass
	HTSHat complex128

	V  float64 // 1 - m_l^2/s
	P  float64 // daughter momentum in the parent rest frame
	NF float64 // normalisation with |V_Ub| = 1
}

// outsideVelocity keeps sqrt(1 - v) finite where every amplitude vanishes
const outsideVelocity = 0.99

// PToPLeptonNeutrino generates the observables of P -> P l nu
type PToPLeptonNeutrino struct {
	*generator
	ff formfactors.PToP
}

// NewPToPLeptonNeutrino resolves the options q, P, l, cp-conjugate, model,
// form-factors and integration*, and registers the parameters it reads
func NewPToPLeptonNeutrino(p *parameters.Parameters, o parameters.Options) (*PToPLeptonNeutrino, error) {
	base := integration.DefaultConfig().WithEpsRel(0.5e-3)
	g, user, err := newGenerator(p, o, pToPProcesses, "P", "lnu", base)
	if err != nil {
		return nil, fmt.Errorf("P->Plnu: %w", err)
	}
	ff, err := formfactors.NewPToP(g.Label+"::"+o.Get("form-factors", "BSZ2015"), p, o, user)
	if err != nil {
		return nil, fmt.Errorf("P->Plnu: %w", err)
	}
	return &PToPLeptonNeutrino{generator: g, ff: ff}, nil
}

// Amplitudes computes the helicity amplitudes at s
func (d *PToPLeptonNeutrino) Amplitudes(s float64) (PToPAmplitudes, error) {
	a := PToPAmplitudes{V: outsideVelocity}
	if !d.inPhaseSpace(s) {
		return a, nil
	}

	cc, err := d.couplings()
	if err != nil {
		return a, err
	}
	// SM-normalised vector coupling, cVL = 1 in the SM
	gV := cc.CVR + (cc.CVL - 1.0)
	gS := cc.CSR + cc.CSL
	gT := cc.CT

	mb, mU, err := d.quarkMasses()
	if err != nil {
		return a, err
	}

	fp := d.ff.FPlus(s)
	f0 := d.ff.FZero(s)
	fT := d.ff.FT(s)

	mB, mP, mL := d.mB.Value(), d.mF.Value(), d.mL.Value()
	mB2, mP2 := mB*mB, mP*mP
	lam := lambda(mB2, mP2, s)
	p := 0.0
	if lam > 0 {
		p = math.Sqrt(lam) / (2.0 * mB)
	}
	v := 1.0 - mL*mL/s
	mlHat := math.Sqrt(1.0 - v)
	gF := d.gF.Value()
	iso := complex(d.Isospin, 0)
	sqrtS := math.Sqrt(s)
	re := func(x float64) complex128 { return complex(x, 0) }

	a.H0 = iso * re(2.0*mB*p*fp/sqrtS) * (1.0 + gV)
	a.HT = iso * (1.0 + gV) * re((mB2-mP2)*f0/sqrtS)
	a.HS = -iso * gS * re((mB2-mP2)*f0/(mb-mU))
	a.HTensor = -iso * re(2.0*mB*p*fT/(mB+mP)) * gT
	a.HTS = a.HT
	if mlHat > 0 {
		a.HTS -= a.HS / re(mlHat)
	}
	a.HTSHat = re(mlHat)*a.HT - a.HS

	a.V = v
	a.P = p
	a.NF = v * v * s * gF * gF / (256.0 * math.Pi * math.Pi * math.Pi * mB2)
	return a, nil
}

// widths holds the differential quantities integrated together by Prepare
type widths struct {
	total, plus, zero   float64
	afb, flat, polarity float64
}

const numWidths = 6

func (w widths) slice(out []float64) {
	out[0], out[1], out[2] = w.total, w.plus, w.zero
	out[3], out[4], out[5] = w.afb, w.flat, w.polarity
}

func newWidths(a PToPAmplitudes) widths {
	h0, ht, hS, hT, htSHat := a.H0, a.HT, a.HS, a.HTensor, a.HTSHat
	v := a.V
	sv := math.Sqrt(1.0 - v)
	pre := a.NF * a.P
	conj := cmplx.Conj

	// (1 - v) |h_tS|^2 = |m̂_l h_tS|^2 and sqrt(1 - v) h_tS = m̂_l h_tS
	var w widths
	w.total = 4.0 / 3.0 * pre * (sq(h0)*(3.0-v) + 3.0*sq(htSHat) + 16.0*sq(hT)*(3.0-2.0*v) -
		24.0*sv*real(hT*conj(h0)))
	w.plus = 4.0 / 3.0 * pre * sq(h0) * (3.0 - v)
	w.zero = 4.0 / 3.0 * pre * 3.0 * sq(ht) * (1.0 - v)
	w.afb = -4.0 * pre * (sv*real(h0*conj(htSHat)) - 4.0*real(hT*conj(htSHat)))
	w.flat = pre * (sq(h0)*(1.0-v) + sq(htSHat) + 16.0*sq(hT) - 8.0*sv*real(hT*conj(h0)))

	dGPlus := (sq(h0)+3.0*sq(ht))*(1.0-v)/2.0 + 1.5*sq(hS) + 8.0*sq(hT) -
		sv*real(3.0*ht*conj(hS)+4.0*h0*conj(hT))
	dGMinus := sq(h0) + 16.0*sq(hT)*(1.0-v) - 8.0*sv*real(h0*conj(hT))
	w.polarity = 8.0 / 3.0 * pre * (dGPlus - dGMinus)
	return w
}

func (d *PToPLeptonNeutrino) widths(s float64) (widths, error) {
	a, err := d.Amplitudes(s)
	if err != nil {
		return widths{}, err
	}
	return newWidths(a), nil
}

// NormalizedDifferentialDecayWidth is dGamma/ds with |V_Ub| = 1
func (d *PToPLeptonNeutrino) NormalizedDifferentialDecayWidth(s float64) (float64, error) {
	w, err := d.widths(s)
	return w.total, err
}

// NormalizedTwoDifferentialDecayWidth is d^2Gamma/(ds dcos(theta_l)) with |V_Ub| = 1
func (d *PToPLeptonNeutrino) NormalizedTwoDifferentialDecayWidth(s, cThetaL float64) (float64, error) {
	a, err := d.Amplitudes(s)
	if err != nil {
		return 0, err
	}
	h0, htSHat, hT := a.H0, a.HTSHat, a.HTensor
	v := a.V
	sv := math.Sqrt(1.0 - v)
	svc := complex(sv, 0)
	c := complex(cThetaL, 0)
	s2 := 1.0 - cThetaL*cThetaL
	c2 := 2.0*cThetaL*cThetaL - 1.0

	return 2.0 * a.NF * a.P * (sq(h0)*s2 + sq(svc*h0*c-htSHat) +
		8.0*(((2.0-v)+v*c2)*sq(hT)-real(hT*(svc*cmplx.Conj(h0)-cmplx.Conj(htSHat)*c)))), nil
}

// TwoDifferentialBranchingRatio is d^2BR/(ds dcos(theta_l))
func (d *PToPLeptonNeutrino) TwoDifferentialBranchingRatio(s, cThetaL float64) (float64, error) {
	w, err := d.NormalizedTwoDifferentialDecayWidth(s, cThetaL)
	if err != nil {
		return 0, err
	}
	v2, err := d.ckm2()
	if err != nil {
		return 0, err
	}
	return w * v2 * d.lifetimeFactor(), nil
}

// DifferentialBranchingRatio is dBR/ds
func (d *PToPLeptonNeutrino) DifferentialBranchingRatio(s float64) (float64, error) {
	w, err := d.NormalizedDifferentialDecayWidth(s)
	if err != nil {
		return 0, err
	}
	v2, err := d.ckm2()
	if err != nil {
		return 0, err
	}
	return w * v2 * d.lifetimeFactor(), nil
}

// NormalizedDifferentialBranchingRatio is dBR/ds with |V_Ub| = 1
func (d *PToPLeptonNeutrino) NormalizedDifferentialBranchingRatio(s float64) (float64, error) {
	w, err := d.NormalizedDifferentialDecayWidth(s)
	if err != nil {
		return 0, err
	}
	return w * d.lifetimeFactor(), nil
}

func ratioAt(w widths, num float64) float64 {
	if w.total == 0 {
		return 0
	}
	return num / w.total
}

// DifferentialAFB is the leptonic forward-backward asymmetry at s
func (d *PToPLeptonNeutrino) DifferentialAFB(s float64) (float64, error) {
	w, err := d.widths(s)
	return ratioAt(w, w.afb), err
}

// DifferentialFlatTerm is the flat term F_H at s
func (d *PToPLeptonNeutrino) DifferentialFlatTerm(s float64) (float64, error) {
	w, err := d.widths(s)
	return ratioAt(w, w.flat), err
}

// DifferentialLeptonPolarization is the longitudinal lepton polarisation at s
func (d *PToPLeptonNeutrino) DifferentialLeptonPolarization(s float64) (float64, error) {
	w, err := d.widths(s)
	return ratioAt(w, w.polarity), err
}

// DifferentialPDFQ2 is dBR/ds normalised to the full phase space
func (d *PToPLeptonNeutrino) DifferentialPDFQ2(s float64) (float64, error) {
	num, err := d.NormalizedDifferentialDecayWidth(s)
	if err != nil {
		return 0, err
	}
	lo, hi := d.physicalRange()
	den, err := d.pdfIntegral(lo, hi)
	if err != nil {
		return 0, err
	}
	if den == 0 {
		return 0, ErrEmptyPhaseSpace
	}
	return num / den, nil
}

// DifferentialPDFW is the density in the recoil variable w
func (d *PToPLeptonNeutrino) DifferentialPDFW(w float64) (float64, error) {
	v, err := d.DifferentialPDFQ2(d.wToQ2(w))
	if err != nil {
		return 0, err
	}
	return 2.0 * d.mB.Value() * d.mF.Value() * v, nil
}

func (d *PToPLeptonNeutrino) pdfIntegral(sMin, sMax float64) (float64, error) {
	var first firstError
	f := func(s float64) float64 {
		w, err := d.NormalizedDifferentialDecayWidth(s)
		first.set(err)
		return w
	}
	cfg := d.cfg
	cfg.Method = integration.MethodGK21
	v, err := integration.Integrate(f, sMin, sMax, cfg)
	if first.err != nil {
		return 0, first.err
	}
	return v, err
}

// IntegratedPDFQ2 is the probability density averaged over [sMin, sMax]
func (d *PToPLeptonNeutrino) IntegratedPDFQ2(sMin, sMax float64) (float64, error) {
	return integratedPDF(d.generator, d.pdfIntegral, sMin, sMax)
}

// IntegratedPDFW is the probability density averaged over the recoil range [wMin, wMax]
func (d *PToPLeptonNeutrino) IntegratedPDFW(wMin, wMax float64) (float64, error) {
	sMax, sMin := d.wToQ2(wMin), d.wToQ2(wMax)
	v, err := d.IntegratedPDFQ2(sMin, sMax)
	if err != nil {
		return 0, err
	}
	return v * (sMax - sMin) / (wMax - wMin), nil
}

// PToPIntermediateResult carries the widths and asymmetry numerators
// integrated over one s range
type PToPIntermediateResult struct {
	SMin, SMax float64

	integrated widths
	ckm2       float64
	lifetime   float64
}

// Prepare integrates the widths and numerators over [sMin, sMax] in one pass
func (d *PToPLeptonNeutrino) Prepare(sMin, sMax float64) (*PToPIntermediateResult, error) {
	var first firstError
	integrand := func(s float64, out []float64) {
		w, err := d.widths(s)
		first.set(err)
		w.slice(out)
	}
	values, err := integration.IntegrateVector(integrand, numWidths, sMin, sMax, d.cfg)
	if first.err != nil {
		return nil, first.err
	}
	if err != nil {
		return nil, fmt.Errorf("%s: failed to integrate widths on [%g, %g]: %w", d.Label, sMin, sMax, err)
	}
	v2, err := d.ckm2()
	if err != nil {
		return nil, err
	}
	return &PToPIntermediateResult{
		SMin: sMin,
		SMax: sMax,
		integrated: widths{
			total: values[0], plus: values[1], zero: values[2],
			afb: values[3], flat: values[4], polarity: values[5],
		},
		ckm2:     v2,
		lifetime: d.lifetimeFactor(),
	}, nil
}

func (ir *PToPIntermediateResult) ratio(num float64) (float64, error) {
	if ir.integrated.total == 0 {
		return 0, fmt.Errorf("s range [%g, %g]: %w", ir.SMin, ir.SMax, ErrEmptyPhaseSpace)
	}
	return num / ir.integrated.total, nil
}

func (ir *PToPIntermediateResult) BranchingRatio() float64 {
	return ir.integrated.total * ir.ckm2 * ir.lifetime
}

func (ir *PToPIntermediateResult) NormalizedBranchingRatio() float64 {
	return ir.integrated.total * ir.lifetime
}

// NormalizedDecayWidth is the integrated width with |V_Ub| = 1
func (ir *PToPIntermediateResult) NormalizedDecayWidth() float64 { return ir.integrated.total }

// NormalizedDecayWidthPlus is the h_0 part of the integrated width
func (ir *PToPIntermediateResult) NormalizedDecayWidthPlus() float64 { return ir.integrated.plus }

// NormalizedDecayWidthZero is the h_t part of the integrated width
func (ir *PToPIntermediateResult) NormalizedDecayWidthZero() float64 { return ir.integrated.zero }

func (ir *PToPIntermediateResult) AFB() (float64, error) { return ir.ratio(ir.integrated.afb) }

func (ir *PToPIntermediateResult) FlatTerm() (float64, error) { return ir.ratio(ir.integrated.flat) }

func (ir *PToPIntermediateResult) LeptonPolarization() (float64, error) {
	return ir.ratio(ir.integrated.polarity)
}

// IntegratedBranchingRatio is the single-shot form of Prepare + BranchingRatio
func (d *PToPLeptonNeutrino) IntegratedBranchingRatio(sMin, sMax float64) (float64, error) {
	ir, err := d.Prepare(sMin, sMax)
	if err != nil {
		return 0, err
	}
	return ir.BranchingRatio(), nil
}

// NormalizedIntegratedBranchingRatio is the single-shot form of Prepare + NormalizedBranchingRatio
func (d *PToPLeptonNeutrino) NormalizedIntegratedBranchingRatio(sMin, sMax float64) (float64, error) {
	ir, err := d.Prepare(sMin, sMax)
	if err != nil {
		return 0, err
	}
	return ir.NormalizedBranchingRatio(), nil
}

// IntegratedAFB is the single-shot form of Prepare + AFB
func (d *PToPLeptonNeutrino) IntegratedAFB(sMin, sMax float64) (float64, error) {
	ir, err := d.Prepare(sMin, sMax)
	if err != nil {
		return 0, err
	}
	return ir.AFB()
}

// IntegratedFlatTerm is the single-shot form of Prepare + FlatTerm
func (d *PToPLeptonNeutrino) IntegratedFlatTerm(sMin, sMax float64) (float64, error) {
	ir, err := d.Prepare(sMin, sMax)
	if err != nil {
		return 0, err
	}
	return ir.FlatTerm()
}

// IntegratedLeptonPolarization is the single-shot form of Prepare + LeptonPolarization
func (d *PToPLeptonNeutrino) IntegratedLeptonPolarization(sMin, sMax float64) (float64, error) {
	ir, err := d.Prepare(sMin, sMax)
	if err != nil {
		return 0, err
	}
	return ir.LeptonPolarization()
}
