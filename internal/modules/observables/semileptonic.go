package observables

import (
	"github.com/eos/eos-sub010/internal/modules/decays"
	"github.com/eos/eos-sub010/internal/modules/parameters"
)

type semileptonicProcess struct {
	name   string            // observable prefix, e.g. "B->D^*lnu"
	forced map[string]string // options selecting the process
	ratio  string            // name of the tau/mu ratio
}

var pToVObservableProcesses = []semileptonicProcess{
	{name: "B->D^*lnu", forced: map[string]string{"V": "D^*"}, ratio: "R_D^*"},
	{name: "B_s->D_s^*lnu", forced: map[string]string{"V": "D_s^*", "q": "s"}, ratio: "R_D_s^*"},
	{name: "B->rholnu", forced: map[string]string{"V": "rho"}, ratio: "R_rho"},
	{name: "B->omegalnu", forced: map[string]string{"V": "omega", "q": "u"}, ratio: "R_omega"},
	{name: "B_s->K^*lnu", forced: map[string]string{"V": "K^*", "q": "s"}, ratio: "R_K^*"},
}

var pToPObservableProcesses = []semileptonicProcess{
	{name: "B->Dlnu", forced: map[string]string{"P": "D"}, ratio: "R_D"},
	{name: "B_s->D_slnu", forced: map[string]string{"P": "D", "q": "s"}, ratio: "R_D_s"},
	{name: "B->pilnu", forced: map[string]string{"P": "pi"}, ratio: "R_pi"},
	{name: "B_s->Klnu", forced: map[string]string{"P": "K", "q": "s"}, ratio: "R_K"},
}

var (
	pointQ2 = []string{"q2"}
	rangeQ2 = []string{"q2_min", "q2_max"}
)

func registerSemileptonic(r *Registry) {
	for _, p := range pToVObservableProcesses {
		registerPToV(r, p)
	}
	for _, p := range pToPObservableProcesses {
		registerPToP(r, p)
	}
}

// group registers the entries of one process
type group struct {
	r      *Registry
	proc   semileptonicProcess
	forced parameters.Options
}

func newGroup(r *Registry, p semileptonicProcess) *group {
	return &group{r: r, proc: p, forced: parameters.NewOptions(p.forced)}
}

func (g *group) qualified(quantity string) string {
	return g.proc.name + "::" + quantity
}

func (g *group) add(quantity string, vars []string, construct makeFunc) {
	g.r.register(Entry{Name: g.qualified(quantity), Kinematics: vars, Forced: g.forced, construct: construct})
}

func (g *group) addCacheable(quantity string, construct makeFunc) {
	g.r.register(Entry{Name: g.qualified(quantity), Kinematics: rangeQ2, Forced: g.forced, Cacheable: true, construct: construct})
}

func (g *group) addExpression(quantity string, numerator, denominator []component) {
	g.r.register(Entry{Name: g.qualified(quantity), Forced: g.forced, Expression: true,
		construct: combination(numerator, denominator)})
}

func rangeOf(lepton string) map[string]string {
	return map[string]string{
		"q2_min": "q2_" + lepton + "_min",
		"q2_max": "q2_" + lepton + "_max",
	}
}

// cpAverage is the mean of the CP-specific observable and its conjugate
func (g *group) cpAverage(quantity, specific string) {
	g.addExpression(quantity, []component{
		{coefficient: 0.5, name: g.qualified(specific), options: map[string]string{"cp-conjugate": "false"}},
		{coefficient: 0.5, name: g.qualified(specific), options: map[string]string{"cp-conjugate": "true"}},
	}, nil)
}

// leptonAverage is the mean of the muon and electron observables over their own ranges
func (g *group) leptonAverage(quantity, of string) {
	g.addExpression(quantity, []component{
		{coefficient: 0.5, name: g.qualified(of), options: map[string]string{"l": "mu"}, rename: rangeOf("mu")},
		{coefficient: 0.5, name: g.qualified(of), options: map[string]string{"l": "e"}, rename: rangeOf("e")},
	}, nil)
}

// leptonDifference is the muon observable minus the electron one
func (g *group) leptonDifference(quantity, of string) {
	g.addExpression(quantity, []component{
		{coefficient: 1, name: g.qualified(of), options: map[string]string{"l": "mu"}, rename: rangeOf("mu")},
		{coefficient: -1, name: g.qualified(of), options: map[string]string{"l": "e"}, rename: rangeOf("e")},
	}, nil)
}

// tauRatios registers BR(tau)/BR(mu) integrated and differential
func (g *group) tauRatios(br, dbr string) {
	g.addExpression(g.proc.ratio,
		[]component{{coefficient: 1, name: g.qualified(br), options: map[string]string{"l": "tau"}, rename: rangeOf("tau")}},
		[]component{{coefficient: 1, name: g.qualified(br), options: map[string]string{"l": "mu"}, rename: rangeOf("mu")}})
	g.addExpression(g.proc.ratio+"(q2)",
		[]component{{coefficient: 1, name: g.qualified(dbr), options: map[string]string{"l": "tau"}}},
		[]component{{coefficient: 1, name: g.qualified(dbr), options: map[string]string{"l": "mu"}}})
}

type (
	pToV   = decays.PToVLeptonNeutrino
	pToVIR = decays.PToVIntermediateResult
	pToP   = decays.PToPLeptonNeutrino
	pToPIR = decays.PToPIntermediateResult
)

func registerPToV(r *Registry, p semileptonicProcess) {
	g := newGroup(r, p)
	gen := decays.NewPToVLeptonNeutrino

	atQ2 := func(fn func(d *pToV, q2 float64) (float64, error)) makeFunc {
		return differential(gen, func(d *pToV, x []float64) (float64, error) { return fn(d, x[0]) })
	}
	integrated := func(eval func(ir *pToVIR) (float64, error)) makeFunc {
		return prepared(gen, func(d *pToV, x []float64) (*pToVIR, error) { return d.Prepare(x[0], x[1]) }, eval)
	}

	// q2-differential
	g.add("dBR/dq2", pointQ2, atQ2((*pToV).DifferentialBranchingRatio))
	g.add("normdBR/dq2", pointQ2, atQ2((*pToV).NormalizedDifferentialBranchingRatio))
	g.add("A_FB(q2)", pointQ2, atQ2((*pToV).DifferentialAFB))
	g.add("F_L(q2)", pointQ2, atQ2((*pToV).DifferentialFL))
	for _, c := range decays.Coefficients() {
		g.add(c.String()+"(q2)", pointQ2, atQ2(func(d *pToV, q2 float64) (float64, error) { return d.DifferentialJ(c, q2) }))
	}
	g.add("d^4Gamma", []string{"q2", "cos(theta_l)", "cos(theta_d)", "phi"},
		differential(gen, func(d *pToV, x []float64) (float64, error) {
			return d.FourDifferentialDecayWidth(x[0], x[1], x[2], x[3])
		}))

	// q2-integrated, sharing one Prepare per range
	g.addCacheable("BR_CP_specific", integrated(plain((*pToVIR).BranchingRatio)))
	g.addCacheable("normBR", integrated(plain((*pToVIR).NormalizedBranchingRatio)))
	g.addCacheable("normGamma_CP_specific", integrated(plain(func(ir *pToVIR) float64 {
		return ir.Observables.NormalizedDecayWidth()
	})))
	g.addCacheable("A_FB_CP_specific", integrated((*pToVIR).AFB))
	g.addCacheable("F_L_CP_specific", integrated((*pToVIR).FL))
	g.addCacheable("Ftilde_L_CP_specific", integrated((*pToVIR).FTildeL))
	g.addCacheable("A_L", integrated(plain((*pToVIR).LongitudinalWidth)))
	g.addCacheable("A_T", integrated(plain((*pToVIR).TransverseWidth)))
	g.addCacheable("A_C^1", integrated((*pToVIR).AC1))
	g.addCacheable("A_C^2", integrated((*pToVIR).AC2))
	g.addCacheable("A_C^3", integrated((*pToVIR).AC3))
	g.addCacheable("A_T^1", integrated((*pToVIR).AT1))
	g.addCacheable("A_T^2", integrated((*pToVIR).AT2))
	g.addCacheable("A_T^3", integrated((*pToVIR).AT3))
	for _, c := range decays.Coefficients() {
		g.addCacheable(c.String(), integrated(plain(func(ir *pToVIR) float64 { return ir.J(c) })))
	}

	g.add("P(q2_min,q2_max)", rangeQ2, differential(gen, func(d *pToV, x []float64) (float64, error) {
		return d.IntegratedPDFQ2(x[0], x[1])
	}))
	g.add("P(w_min,w_max)", []string{"w_min", "w_max"}, differential(gen, func(d *pToV, x []float64) (float64, error) {
		return d.IntegratedPDFW(x[0], x[1])
	}))

	// CP averages and lepton-flavour combinations
	g.cpAverage("BR", "BR_CP_specific")
	g.cpAverage("normGamma", "normGamma_CP_specific")
	g.cpAverage("A_FB", "A_FB_CP_specific")
	g.cpAverage("F_L", "F_L_CP_specific")
	g.cpAverage("Ftilde_L", "Ftilde_L_CP_specific")
	g.leptonAverage("BRbar", "BR")
	g.leptonDifference("DeltaBR", "BR")
	g.leptonAverage("Abar_FB", "A_FB")
	g.leptonDifference("DeltaA_FB", "A_FB")
	g.leptonAverage("Fbar_L", "F_L")
	g.leptonDifference("DeltaF_L", "F_L")
	g.tauRatios("BR", "dBR/dq2")
}

func registerPToP(r *Registry, p semileptonicProcess) {
	g := newGroup(r, p)
	gen := decays.NewPToPLeptonNeutrino

	atQ2 := func(fn func(d *pToP, q2 float64) (float64, error)) makeFunc {
		return differential(gen, func(d *pToP, x []float64) (float64, error) { return fn(d, x[0]) })
	}
	integrated := func(eval func(ir *pToPIR) (float64, error)) makeFunc {
		return prepared(gen, func(d *pToP, x []float64) (*pToPIR, error) { return d.Prepare(x[0], x[1]) }, eval)
	}

	g.add("dBR/dq2", pointQ2, atQ2((*pToP).DifferentialBranchingRatio))
	g.add("normdBR/dq2", pointQ2, atQ2((*pToP).NormalizedDifferentialBranchingRatio))
	g.add("A_FB(q2)", pointQ2, atQ2((*pToP).DifferentialAFB))
	g.add("flat_term(q2)", pointQ2, atQ2((*pToP).DifferentialFlatTerm))
	g.add("A_l(q2)", pointQ2, atQ2((*pToP).DifferentialLeptonPolarization))
	g.add("P(q2)", pointQ2, atQ2((*pToP).DifferentialPDFQ2))
	g.add("P(w)", []string{"w"}, differential(gen, func(d *pToP, x []float64) (float64, error) {
		return d.DifferentialPDFW(x[0])
	}))
	g.add("d^2BR/dq2/dcos(theta_l)", []string{"q2", "cos(theta_l)"},
		differential(gen, func(d *pToP, x []float64) (float64, error) {
			return d.TwoDifferentialBranchingRatio(x[0], x[1])
		}))

	g.addCacheable("BR", integrated(plain((*pToPIR).BranchingRatio)))
	g.addCacheable("normBR", integrated(plain((*pToPIR).NormalizedBranchingRatio)))
	g.addCacheable("normGamma", integrated(plain((*pToPIR).NormalizedDecayWidth)))
	g.addCacheable("A_FB", integrated((*pToPIR).AFB))
	g.addCacheable("flat_term", integrated((*pToPIR).FlatTerm))
	g.addCacheable("A_l", integrated((*pToPIR).LeptonPolarization))

	g.add("P(q2_min,q2_max)", rangeQ2, differential(gen, func(d *pToP, x []float64) (float64, error) {
		return d.IntegratedPDFQ2(x[0], x[1])
	}))
	g.add("P(w_min,w_max)", []string{"w_min", "w_max"}, differential(gen, func(d *pToP, x []float64) (float64, error) {
		return d.IntegratedPDFW(x[0], x[1])
	}))

	g.leptonAverage("BRbar", "BR")
	g.leptonDifference("DeltaBR", "BR")
	g.leptonAverage("Abar_FB", "A_FB")
	g.leptonDifference("DeltaA_FB", "A_FB")
	g.tauRatios("BR", "dBR/dq2")
}
