// Package decays implements the amplitude generators and observable
// evaluators of the semileptonic decays P -> V l nu and P -> P l nu.
//
// A generator is bound to one parameter set at construction: it resolves
// its options, registers every parameter it reads and afterwards only reads
// through handles. A generator is owned by a single chain.
package decays

import (
	"errors"
	"fmt"
	"math"
	"math/cmplx"
	"sort"
	"strconv"

	"github.com/eos/eos-sub010/internal/modules/integration"
	"github.com/eos/eos-sub010/internal/modules/models"
	"github.com/eos/eos-sub010/internal/modules/parameters"
)

// ErrEmptyPhaseSpace is returned by ratios whose integrated denominator
// vanishes, i.e. for ranges outside the physical phase space
var ErrEmptyPhaseSpace = errors.New("integrated decay width vanishes")

// Process describes one transition of a family of decays
type Process struct {
	Label    string             // form factor process label, e.g. "B->D^*"
	U        models.QuarkFlavor // quark produced in the weak transition
	Parent   string             // parent meson, selects mass and life time
	Daughter string             // daughter meson, selects the mass
	Isospin  float64
}

type processKey struct {
	spectator string
	daughter  string
}

var pToVProcesses = map[processKey]Process{
	{"u", "D^*"}:   {Label: "B->D^*", U: models.Charm, Parent: "B_u", Daughter: "D_u^*", Isospin: 1.0},
	{"d", "D^*"}:   {Label: "B->D^*", U: models.Charm, Parent: "B_d", Daughter: "D_d^*", Isospin: 1.0},
	{"s", "D_s^*"}: {Label: "B_s->D_s^*", U: models.Charm, Parent: "B_s", Daughter: "D_s^*", Isospin: 1.0},
	{"u", "rho"}:   {Label: "B->rho", U: models.Up, Parent: "B_u", Daughter: "rho^0", Isospin: 1.0 / math.Sqrt2},
	{"u", "omega"}: {Label: "B->omega", U: models.Up, Parent: "B_u", Daughter: "omega", Isospin: 1.0 / math.Sqrt2},
	{"d", "rho"}:   {Label: "B->rho", U: models.Up, Parent: "B_d", Daughter: "rho^+", Isospin: 1.0},
	{"s", "K^*"}:   {Label: "B_s->K^*", U: models.Up, Parent: "B_s", Daughter: "K_u^*", Isospin: 1.0},
}

var pToPProcesses = map[processKey]Process{
	{"u", "D"}:  {Label: "B->D", U: models.Charm, Parent: "B_u", Daughter: "D_u", Isospin: 1.0},
	{"d", "D"}:  {Label: "B->D", U: models.Charm, Parent: "B_d", Daughter: "D_d", Isospin: 1.0},
	{"s", "D"}:  {Label: "B_s->D_s", U: models.Charm, Parent: "B_s", Daughter: "D_s", Isospin: 1.0},
	{"u", "pi"}: {Label: "B->pi", U: models.Up, Parent: "B_u", Daughter: "pi^0", Isospin: 1.0 / math.Sqrt2},
	{"d", "pi"}: {Label: "B->pi", U: models.Up, Parent: "B_d", Daughter: "pi^+", Isospin: 1.0},
	{"s", "K"}:  {Label: "B_s->K", U: models.Up, Parent: "B_s", Daughter: "K_u", Isospin: 1.0},
}

func daughters(table map[processKey]Process, spectator string) []string {
	var out []string
	for k := range table {
		if k.spectator == spectator {
			out = append(out, k.daughter)
		}
	}
	sort.Strings(out)
	return out
}

// lambda is the Kallen function
func lambda(a, b, c float64) float64 {
	return a*a + b*b + c*c - 2.0*(a*b+a*c+b*c)
}

// IntegrationFromOptions overrides base with the integration-* options
func IntegrationFromOptions(o parameters.Options, base integration.Config) (integration.Config, error) {
	cfg := base
	if o.Has("integration") {
		m, err := integration.ParseMethod(o.Get("integration", ""))
		if err != nil {
			return cfg, parameters.NewConfigurationError("integration", o.Get("integration", ""), err.Error())
		}
		cfg.Method = m
	}
	if o.Has("integration-points") {
		n, err := strconv.Atoi(o.Get("integration-points", ""))
		if err != nil || n < 1 {
			return cfg, parameters.NewConfigurationError("integration-points", o.Get("integration-points", ""), "expected a positive integer")
		}
		cfg.Points = n
	}
	if o.Has("integration-epsrel") {
		v, err := strconv.ParseFloat(o.Get("integration-epsrel", ""), 64)
		if err != nil || v <= 0 {
			return cfg, parameters.NewConfigurationError("integration-epsrel", o.Get("integration-epsrel", ""), "expected a positive number")
		}
		cfg.EpsRel = v
	}
	if o.Has("integration-max-intervals") {
		n, err := strconv.Atoi(o.Get("integration-max-intervals", ""))
		if err != nil || n < 1 {
			return cfg, parameters.NewConfigurationError("integration-max-intervals", o.Get("integration-max-intervals", ""), "expected a positive integer")
		}
		cfg.MaxIntervals = n
	}
	return cfg, nil
}

// IntegrationOptions renders the tolerances of cfg as integration-* options
func IntegrationOptions(cfg integration.Config) parameters.Options {
	return parameters.NewOptions(map[string]string{
		"integration-epsrel":        strconv.FormatFloat(cfg.EpsRel, 'g', -1, 64),
		"integration-max-intervals": strconv.Itoa(cfg.MaxIntervals),
	})
}

// generator holds what the P -> V and P -> P generators share
type generator struct {
	Process
	lepton models.LeptonFlavor
	cp     bool
	model  models.Model
	cfg    integration.Config

	hbar *parameters.Handle
	tauB *parameters.Handle
	gF   *parameters.Handle
	mL   *parameters.Handle
	mB   *parameters.Handle
	mF   *parameters.Handle
	mu   *parameters.Handle
}

// newGenerator resolves the options in the order q, daughter, l, cp-conjugate,
// model, integration and reads the kinematic parameters
func newGenerator(p *parameters.Parameters, o parameters.Options, table map[processKey]Process,
	daughterKey, family string, base integration.Config) (*generator, string, error) {

	q, err := o.Restrict("q", []string{"u", "d", "s"}, "d")
	if err != nil {
		return nil, "", err
	}
	if !o.Has(daughterKey) {
		return nil, "", parameters.NewConfigurationError(daughterKey, "", "option is required")
	}
	daughter := o.Get(daughterKey, "")
	proc, ok := table[processKey{spectator: q, daughter: daughter}]
	if !ok {
		return nil, "", parameters.NewConfigurationError(daughterKey, daughter,
			fmt.Sprintf("unsupported for q=%s, choose one of %v", q, daughters(table, q)))
	}

	lName, err := o.Restrict("l", []string{"e", "mu", "tau"}, "mu")
	if err != nil {
		return nil, "", err
	}
	lepton, err := models.ParseLeptonFlavor(lName)
	if err != nil {
		return nil, "", err
	}
	cp, err := o.Bool("cp-conjugate", false)
	if err != nil {
		return nil, "", err
	}

	user := proc.Label + family
	model, err := models.Make(p, o, user)
	if err != nil {
		return nil, "", err
	}
	cfg, err := IntegrationFromOptions(o, base)
	if err != nil {
		return nil, "", err
	}

	r := parameters.NewReader(p, user)
	g := &generator{
		Process: proc,
		lepton:  lepton,
		cp:      cp,
		model:   model,
		cfg:     cfg,
		hbar:    r.Handle("QM::hbar"),
		tauB:    r.Handle("life_time::" + proc.Parent),
		gF:      r.Handle("WET::G_Fermi"),
		mL:      r.Handle("mass::" + lName),
		mB:      r.Handle("mass::" + proc.Parent),
		mF:      r.Handle("mass::" + proc.Daughter),
		mu:      r.Handle(models.Sector(proc.U, lepton) + "::mu"),
	}
	if err := r.Err(); err != nil {
		return nil, "", err
	}
	return g, user, nil
}

// couplings returns the effective couplings of the configured sector
func (g *generator) couplings() (models.ChargedCurrent, error) {
	return g.model.ChargedCurrent(g.U, g.lepton, g.cp)
}

// quarkMasses returns m_b(mu) and m_U(mu) at the process scale
func (g *generator) quarkMasses() (float64, float64, error) {
	mu := g.mu.Value()
	mb, err := g.model.MSbarMass(models.Bottom, mu)
	if err != nil {
		return 0, 0, err
	}
	mU, err := g.model.MSbarMass(g.U, mu)
	if err != nil {
		return 0, 0, err
	}
	return mb, mU, nil
}

// ckm2 returns |V_Ub|^2
func (g *generator) ckm2() (float64, error) {
	v, err := g.model.CKM(g.U)
	if err != nil {
		return 0, err
	}
	a := cmplx.Abs(v)
	return a * a, nil
}

// lifetimeFactor converts a width in GeV into a branching ratio
func (g *generator) lifetimeFactor() float64 {
	return g.tauB.Value() / g.hbar.Value()
}

// physicalRange returns [m_l^2, (m_B - m_F)^2]
func (g *generator) physicalRange() (float64, float64) {
	mL, mB, mF := g.mL.Value(), g.mB.Value(), g.mF.Value()
	return mL * mL, (mB - mF) * (mB - mF)
}

// inPhaseSpace reports whether q2 lies in the physical window
func (g *generator) inPhaseSpace(q2 float64) bool {
	lo, hi := g.physicalRange()
	return q2 > 0 && q2 >= lo && q2 <= hi
}

// wToQ2 maps the recoil variable w onto q2
func (g *generator) wToQ2(w float64) float64 {
	mB, mF := g.mB.Value(), g.mF.Value()
	return mB*mB + mF*mF - 2.0*mB*mF*w
}

// Lepton returns the configured lepton flavor
func (g *generator) Lepton() models.LeptonFlavor { return g.lepton }

// CPConjugate reports whether the CP-conjugated process is computed
func (g *generator) CPConjugate() bool { return g.cp }

// firstError keeps the first error raised inside an integrand
type firstError struct {
	err error
}

func (f *firstError) set(err error) {
	if err != nil && f.err == nil {
		f.err = err
	}
}
