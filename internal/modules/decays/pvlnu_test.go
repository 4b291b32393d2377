package decays

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eos/eos-sub010/internal/modules/integration"
	"github.com/eos/eos-sub010/internal/modules/parameters"
)

func defaults(t *testing.T) *parameters.Parameters {
	t.Helper()
	p, err := parameters.Defaults()
	require.NoError(t, err)
	return p
}

func newPToV(t *testing.T, p *parameters.Parameters, opts map[string]string) *PToVLeptonNeutrino {
	t.Helper()
	d, err := NewPToVLeptonNeutrino(p, parameters.NewOptions(opts))
	require.NoError(t, err)
	return d
}

func TestNewPToVLeptonNeutrino_Options(t *testing.T) {
	p := defaults(t)

	tests := []struct {
		name    string
		opts    map[string]string
		wantErr bool
		label   string
	}{
		{"default spectator", map[string]string{"V": "D^*"}, false, "B->D^*"},
		{"charged B to rho", map[string]string{"V": "rho", "q": "u"}, false, "B->rho"},
		{"B_s to K^*", map[string]string{"V": "K^*", "q": "s", "l": "e"}, false, "B_s->K^*"},
		{"missing V", map[string]string{}, true, ""},
		{"no B_s to rho", map[string]string{"V": "rho", "q": "s"}, true, ""},
		{"unknown lepton", map[string]string{"V": "D^*", "l": "nu"}, true, ""},
		{"unknown model", map[string]string{"V": "D^*", "model": "2HDM"}, true, ""},
		{"unknown form factors", map[string]string{"V": "D^*", "form-factors": "CLN"}, true, ""},
		{"unsupported grid", map[string]string{"V": "D^*", "integration-points": "100"}, true, ""},
		{"bad cp flag", map[string]string{"V": "D^*", "cp-conjugate": "maybe"}, true, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := NewPToVLeptonNeutrino(p, parameters.NewOptions(tt.opts))
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, parameters.ErrConfiguration), "got %v", err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.label, d.Label)
		})
	}
}

func TestPToV_RegistersUsedParameters(t *testing.T) {
	p := defaults(t)
	newPToV(t, p, map[string]string{"V": "D^*", "l": "tau"})

	used := p.UsedBy("B->D^*lnu")
	for _, name := range []string{
		"QM::hbar", "life_time::B_d", "mass::tau", "mass::D_d^*", "cbtaunutau::mu",
		"CKM::abs(V_cb)", "mass::b(MSbar)", "B->D^*::alpha^A1_0@BSZ2015",
	} {
		assert.Contains(t, used, name)
	}
	assert.NotContains(t, used, "cbtaunutau::Re{cVL}", "the SM reads no couplings")
}

func TestPToV_AmplitudesVanishOutsidePhaseSpace(t *testing.T) {
	d := newPToV(t, defaults(t), map[string]string{"V": "D^*", "l": "tau"})

	for _, q2 := range []float64{0.5, 3.0, 11.0, -1.0} {
		a, err := d.Amplitudes(q2)
		require.NoError(t, err)
		assert.Equal(t, PToVAmplitudes{}, a, "q2 = %g", q2)

		vv := NewAngularObservables(a)
		assert.Equal(t, AngularObservables{}, vv)
	}

	a, err := d.Amplitudes(6.0)
	require.NoError(t, err)
	assert.Greater(t, a.NF, 0.0)
	assert.Greater(t, a.MLHat, 0.0)
	assert.NotEqual(t, complex128(0), a.A0)
}

func TestPToV_SMAngularStructure(t *testing.T) {
	d := newPToV(t, defaults(t), map[string]string{"V": "D^*", "l": "mu"})

	vv, err := d.DifferentialAngularObservables(5.0)
	require.NoError(t, err)

	// real couplings: the T-odd coefficients vanish
	assert.Equal(t, 0.0, vv[J7])
	assert.Equal(t, 0.0, vv[J8])
	assert.Equal(t, 0.0, vv[J9])

	fl := vv.FL()
	assert.Greater(t, fl, 0.0)
	assert.Less(t, fl, 1.0)
	assert.InDelta(t, 0.75*vv[J1c], vv.J(J1c), 1e-30)
	assert.InDelta(t, vv.NormalizedDecayWidth(), 0.75*(vv.LongitudinalWidth()+vv.TransverseWidth()), 1e-30)
}

func TestPToV_FourFoldIntegratesToWidth(t *testing.T) {
	d := newPToV(t, defaults(t), map[string]string{"V": "D^*", "l": "tau", "model": "WET"})

	vv, err := d.DifferentialAngularObservables(7.0)
	require.NoError(t, err)

	overPhi := func(cl, cd float64) float64 {
		return integration.Legendre(func(phi float64) float64 {
			return vv.FourDifferentialDecayWidth(cl, cd, phi)
		}, 0, 2*math.Pi, 16)
	}
	overD := func(cl float64) float64 {
		return integration.Legendre(func(cd float64) float64 { return overPhi(cl, cd) }, -1, 1, 8)
	}
	total := integration.Legendre(overD, -1, 1, 8)

	want := vv.NormalizedDecayWidth()
	require.Greater(t, want, 0.0)
	assert.InDelta(t, want, total, 1e-9*want)

	direct, err := d.FourDifferentialDecayWidth(7.0, 0.3, -0.2, 1.1)
	require.NoError(t, err)
	assert.Equal(t, vv.FourDifferentialDecayWidth(0.3, -0.2, 1.1), direct)
}

func TestPToV_PrepareMatchesSingleShot(t *testing.T) {
	d := newPToV(t, defaults(t), map[string]string{"V": "D^*", "l": "mu"})

	ir, err := d.Prepare(1.0, 10.0)
	require.NoError(t, err)

	br, err := d.IntegratedBranchingRatio(1.0, 10.0)
	require.NoError(t, err)
	assert.Equal(t, br, ir.BranchingRatio())

	fl, err := d.IntegratedFL(1.0, 10.0)
	require.NoError(t, err)
	irFL, err := ir.FL()
	require.NoError(t, err)
	assert.Equal(t, fl, irFL)

	afb, err := d.IntegratedAFB(1.0, 10.0)
	require.NoError(t, err)
	irAFB, err := ir.AFB()
	require.NoError(t, err)
	assert.Equal(t, afb, irAFB)

	nbr, err := d.NormalizedIntegratedBranchingRatio(1.0, 10.0)
	require.NoError(t, err)
	assert.Equal(t, nbr, ir.NormalizedBranchingRatio())
	assert.InDelta(t, 0.0408*0.0408, br/nbr, 1e-12)
}

func TestPToV_BranchingRatioIsPhysical(t *testing.T) {
	p := defaults(t)
	mu := newPToV(t, p, map[string]string{"V": "D^*", "l": "mu"})
	tau := newPToV(t, p, map[string]string{"V": "D^*", "l": "tau"})

	brMu, err := mu.IntegratedBranchingRatio(0.011, 10.68)
	require.NoError(t, err)
	brTau, err := tau.IntegratedBranchingRatio(3.16, 10.68)
	require.NoError(t, err)

	assert.Greater(t, brMu, 0.01)
	assert.Less(t, brMu, 0.15)

	r := brTau / brMu
	assert.Greater(t, r, 0.15)
	assert.Less(t, r, 0.45)

	ir, err := tau.Prepare(3.16, 10.68)
	require.NoError(t, err)
	fl, err := ir.FL()
	require.NoError(t, err)
	assert.Greater(t, fl, 0.2)
	assert.Less(t, fl, 0.8)

	// ratios from a range outside phase space
	empty, err := tau.Prepare(11.0, 12.0)
	require.NoError(t, err)
	_, err = empty.FL()
	assert.True(t, errors.Is(err, ErrEmptyPhaseSpace))
	assert.Equal(t, 0.0, empty.BranchingRatio())
}

func TestPToV_IntegrationMethodsAgree(t *testing.T) {
	p := defaults(t)
	simpson := newPToV(t, p, map[string]string{"V": "D^*", "l": "mu"})
	fine := newPToV(t, p, map[string]string{"V": "D^*", "l": "mu", "integration-points": "4096"})
	gk := newPToV(t, p, map[string]string{"V": "D^*", "l": "mu", "integration": "gk21", "integration-epsrel": "1e-8"})

	a, err := simpson.IntegratedBranchingRatio(0.011, 10.68)
	require.NoError(t, err)
	b, err := fine.IntegratedBranchingRatio(0.011, 10.68)
	require.NoError(t, err)
	c, err := gk.IntegratedBranchingRatio(0.011, 10.68)
	require.NoError(t, err)

	assert.InDelta(t, c, a, 1e-3*c)
	assert.InDelta(t, c, b, 1e-4*c)
}

func TestPToV_PrepareCommutesWithPDFIntegral(t *testing.T) {
	tests := []struct {
		name         string
		lepton       string
		q2Min, q2Max float64
	}{
		{"muon full range", "mu", 0.02, 10.68},
		{"muon low recoil", "mu", 7.0, 10.68},
		{"tau full range", "tau", 3.16, 10.68},
		{"tau window", "tau", 5.0, 8.0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := newPToV(t, defaults(t), map[string]string{
				"V": "D^*", "l": tt.lepton, "integration-points": "4096", "integration-epsrel": "1e-8",
			})
			ir, err := d.Prepare(tt.q2Min, tt.q2Max)
			require.NoError(t, err)
			direct, err := d.pdfIntegral(tt.q2Min, tt.q2Max)
			require.NoError(t, err)

			require.Greater(t, direct, 0.0)
			assert.InEpsilon(t, direct, ir.Observables.NormalizedDecayWidth(), 1e-4)
		})
	}
}

func TestPToV_CPConjugationFlipsTOddCoefficient(t *testing.T) {
	p := defaults(t)
	require.NoError(t, p.Set("cbmunumu::Re{cVR}", 0.1))
	require.NoError(t, p.Set("cbmunumu::Im{cVR}", 0.2))

	d := newPToV(t, p, map[string]string{"V": "D^*", "model": "WET"})
	bar := newPToV(t, p, map[string]string{"V": "D^*", "model": "WET", "cp-conjugate": "true"})

	vv, err := d.DifferentialAngularObservables(6.0)
	require.NoError(t, err)
	vvBar, err := bar.DifferentialAngularObservables(6.0)
	require.NoError(t, err)

	require.NotEqual(t, 0.0, vv[J9])
	assert.InDelta(t, -vv[J9], vvBar[J9], 1e-12*math.Abs(vv[J9]))
	assert.InDelta(t, vv.NormalizedDecayWidth(), vvBar.NormalizedDecayWidth(), 1e-12*vv.NormalizedDecayWidth())
}

func TestPToV_PDFs(t *testing.T) {
	d := newPToV(t, defaults(t), map[string]string{"V": "D^*", "l": "mu"})
	lo, hi := d.physicalRange()

	full, err := d.IntegratedPDFQ2(lo, hi)
	require.NoError(t, err)
	assert.InDelta(t, 1.0/(hi-lo), full, 1e-12)

	mid := 5.0
	left, err := d.IntegratedPDFQ2(lo, mid)
	require.NoError(t, err)
	right, err := d.IntegratedPDFQ2(mid, hi)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, left*(mid-lo)+right*(hi-mid), 1e-5)

	mB, mV, mL := d.mB.Value(), d.mF.Value(), d.mL.Value()
	wMax := (mB*mB + mV*mV - mL*mL) / (2 * mB * mV)
	pw, err := d.IntegratedPDFW(1.0, wMax)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, pw*(wMax-1.0), 1e-6)
}

func TestCoefficientNames(t *testing.T) {
	c, err := ParseCoefficient("6s")
	require.NoError(t, err)
	assert.Equal(t, J6s, c)
	assert.Equal(t, "J_6s", c.String())
	assert.Len(t, Coefficients(), 12)

	_, err = ParseCoefficient("10")
	assert.Error(t, err)
}

// bsz2015Point sets the B->D^* BSZ2015 coefficients of the [DSD2014] benchmark
func bsz2015Point(t *testing.T, extra map[string]float64) *parameters.Parameters {
	t.Helper()
	p := defaults(t)
	values := map[string]float64{
		"B->D^*::alpha^A0_0@BSZ2015":  1.0,
		"B->D^*::alpha^A0_1@BSZ2015":  0.24,
		"B->D^*::alpha^A0_2@BSZ2015":  0.21,
		"B->D^*::alpha^A1_0@BSZ2015":  0.5,
		"B->D^*::alpha^A1_1@BSZ2015":  0.4,
		"B->D^*::alpha^A1_2@BSZ2015":  0.3,
		"B->D^*::alpha^A12_1@BSZ2015": 0.72,
		"B->D^*::alpha^A12_2@BSZ2015": 1.33,
		"B->D^*::alpha^V_0@BSZ2015":   0.01,
		"B->D^*::alpha^V_1@BSZ2015":   0.02,
		"B->D^*::alpha^V_2@BSZ2015":   0.03,
		"B->D^*::alpha^T1_0@BSZ2015":  0.27,
		"B->D^*::alpha^T1_1@BSZ2015":  -0.74,
		"B->D^*::alpha^T1_2@BSZ2015":  1.45,
		"B->D^*::alpha^T2_1@BSZ2015":  0.47,
		"B->D^*::alpha^T2_2@BSZ2015":  0.58,
		"B->D^*::alpha^T23_0@BSZ2015": 0.75,
		"B->D^*::alpha^T23_1@BSZ2015": 1.90,
		"B->D^*::alpha^T23_2@BSZ2015": 2.93,
		"mass::B_d":                   5.279,
		"mass::D_d^*":                 2.0103,
		"CKM::abs(V_cb)":              0.041996951916414726,
		// lifetime the benchmark was produced with
		"life_time::B_d": 1.515e-12,
	}
	for name, v := range extra {
		values[name] = v
	}
	for name, v := range values {
		require.NoError(t, p.Set(name, v), name)
	}
	return p
}

func TestPToV_BSZ2015Benchmarks(t *testing.T) {
	const etaEW = 1.0066

	type expected struct {
		normBR, afb, fl, ac1, ac2, ac3, rDst float64
	}
	tests := []struct {
		name  string
		extra map[string]float64
		want  expected
		// relative tolerance of the asymmetries; BR, F_L and R_D^* use 1e-3
		epsAsym float64
	}{
		{
			name: "standard model",
			extra: map[string]float64{
				"cbmunumu::Re{cVL}":   etaEW,
				"cbtaunutau::Re{cVL}": etaEW,
			},
			want:    expected{25.4230, 0.000494949, 0.737489, -0.130926, 0.00266046, 0.230111, 0.379092},
			epsAsym: 2e-3,
		},
		{
			name: "new physics",
			extra: map[string]float64{
				"cbmunumu::mu":        4.18,
				"cbtaunutau::mu":      4.18,
				"mass::b(MSbar)":      4.18,
				"mass::c":             1.275,
				"cbmunumu::Re{cVL}":   1.0 * etaEW,
				"cbmunumu::Im{cVL}":   -2.0 * etaEW,
				"cbmunumu::Re{cVR}":   2.0 * etaEW,
				"cbmunumu::Im{cVR}":   -2.0 * etaEW,
				"cbmunumu::Re{cSL}":   3.0 * etaEW,
				"cbmunumu::Im{cSL}":   -3.0 * etaEW,
				"cbmunumu::Re{cSR}":   4.0 * etaEW,
				"cbmunumu::Im{cSR}":   -4.0 * etaEW,
				"cbmunumu::Re{cT}":    5.0 * etaEW,
				"cbmunumu::Im{cT}":    -5.0 * etaEW,
				"cbtaunutau::Re{cVL}": 1.0 * etaEW,
				"cbtaunutau::Im{cVL}": -5.0 * etaEW,
				"cbtaunutau::Re{cVR}": 2.1 * etaEW,
				"cbtaunutau::Im{cVR}": -6.0 * etaEW,
				"cbtaunutau::Re{cSL}": 3.1 * etaEW,
				"cbtaunutau::Im{cSL}": -7.0 * etaEW,
				"cbtaunutau::Re{cSR}": 4.1 * etaEW,
				"cbtaunutau::Im{cSR}": -8.0 * etaEW,
				"cbtaunutau::Re{cT}":  5.1 * etaEW,
				"cbtaunutau::Im{cT}":  -9.0 * etaEW,
			},
			want:    expected{3431.13, 0.0409932, 0.50729, 0.184031, -0.0282197, -0.42545, 1.20331},
			epsAsym: 2e-3,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := bsz2015Point(t, tt.extra)
			opts := map[string]string{
				"V": "D^*", "q": "d", "model": "WET", "form-factors": "BSZ2015", "integration-points": "4096",
			}
			mu := newPToV(t, p, opts)
			opts["l"] = "tau"
			tau := newPToV(t, p, opts)

			nbr, err := mu.NormalizedIntegratedBranchingRatio(4.0, 10.68)
			require.NoError(t, err)
			assert.InEpsilon(t, tt.want.normBR, nbr, 1e-3)

			ir, err := mu.Prepare(4.0, 10.68)
			require.NoError(t, err)
			asymmetries := []struct {
				name string
				get  func() (float64, error)
				want float64
				eps  float64
			}{
				{"A_FB", ir.AFB, tt.want.afb, tt.epsAsym},
				{"F_L", ir.FL, tt.want.fl, 1e-3},
				{"A_C^1", ir.AC1, tt.want.ac1, tt.epsAsym},
				{"A_C^2", ir.AC2, tt.want.ac2, tt.epsAsym},
				{"A_C^3", ir.AC3, tt.want.ac3, tt.epsAsym},
			}
			for _, a := range asymmetries {
				v, err := a.get()
				require.NoError(t, err, a.name)
				assert.InEpsilon(t, a.want, v, a.eps, a.name)
			}

			brMu, err := mu.IntegratedBranchingRatio(4.0, 10.68)
			require.NoError(t, err)
			brTau, err := tau.IntegratedBranchingRatio(4.0, 10.68)
			require.NoError(t, err)
			assert.InEpsilon(t, tt.want.rDst, brTau/brMu, 1e-3, "R_D^*")
		})
	}
}

func TestPToV_HQETBenchmarks(t *testing.T) {
	tests := []struct {
		name         string
		lepton       string
		q2Min, q2Max float64
		br, fl       float64
	}{
		{"electron", "e", 0.001, 10.689, 33.3247, 0.546},
		{"tau", "tau", 3.157, 10.689, 8.213, 0.475},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := defaults(t)
			for name, v := range map[string]float64{
				"CKM::abs(V_cb)":          1.0,
				"mass::e":                 1e-6,
				"mass::B_d":               5.27942,
				"mass::D_u^*":             2.01,
				"mass::D_d^*":             2.01,
				"life_time::B_d":          1.520e-12,
				"B(*)->D(*)::a@HQET":      1.0,
				"B(*)->D(*)::mBar@HQET":   5.313,
				"B(*)->D(*)::xi'(1)@HQET": -1.06919,
			} {
				require.NoError(t, p.Set(name, v), name)
			}
			d := newPToV(t, p, map[string]string{
				"V": "D^*", "q": "d", "l": tt.lepton, "model": "CKM",
				"form-factors": "BGJvD2019", "integration-points": "4096",
				"z-order-lp": "3", "z-order-slp": "2", "z-order-sslp": "1",
			})

			br, err := d.IntegratedBranchingRatio(tt.q2Min, tt.q2Max)
			require.NoError(t, err)
			assert.InEpsilon(t, tt.br, br, 1e-3)

			ir, err := d.Prepare(tt.q2Min, tt.q2Max)
			require.NoError(t, err)
			fl, err := ir.FL()
			require.NoError(t, err)
			assert.InDelta(t, tt.fl, fl, 1e-3)
		})
	}
}
