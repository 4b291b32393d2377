// Package statistics assembles priors and experimental constraints on
// observables into a posterior density for the sampler.
package statistics

import (
	"fmt"
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/eos/eos-sub010/internal/modules/parameters"
	"github.com/eos/eos-sub010/internal/modules/sampling"
)

// LogPrior is the log-density of a one-dimensional prior on a parameter
type LogPrior interface {
	// Evaluate returns the log prior at the parameter's current value
	Evaluate() float64
	Sample(rng *rand.Rand) float64
	Description() sampling.ParameterDescription
	Parameter() string
	Mean() float64
	Variance() float64
	Clone(p *parameters.Parameters) (LogPrior, error)
}

// PriorOption changes how a prior describes its parameter
type PriorOption func(*priorBase)

// AsNuisance marks the parameter as a nuisance parameter
func AsNuisance() PriorOption {
	return func(b *priorBase) { b.nuisance = true }
}

type priorBase struct {
	handle   *parameters.Handle
	name     string
	min, max float64
	nuisance bool
	options  []PriorOption
}

func newPriorBase(p *parameters.Parameters, name string, min, max float64, opts []PriorOption) (priorBase, error) {
	if !(min < max) {
		return priorBase{}, parameters.NewConfigurationError(name, fmt.Sprintf("[%g, %g]", min, max), "prior minimum must be smaller than maximum")
	}
	h, err := p.Handle(name)
	if err != nil {
		return priorBase{}, err
	}
	b := priorBase{handle: h, name: name, min: min, max: max, options: opts}
	for _, o := range opts {
		o(&b)
	}
	return b, nil
}

func (b *priorBase) Parameter() string { return b.name }

func (b *priorBase) Description() sampling.ParameterDescription {
	return sampling.ParameterDescription{Name: b.name, Min: b.min, Max: b.max, Nuisance: b.nuisance}
}

func (b *priorBase) inside(x float64) bool {
	return x >= b.min && x <= b.max
}

// Flat is a uniform prior over [min, max]
type Flat struct {
	priorBase
	value float64
}

// NewFlat creates a uniform prior on parameter name
func NewFlat(p *parameters.Parameters, name string, min, max float64, opts ...PriorOption) (*Flat, error) {
	b, err := newPriorBase(p, name, min, max, opts)
	if err != nil {
		return nil, err
	}
	return &Flat{priorBase: b, value: -math.Log(max - min)}, nil
}

func (f *Flat) Evaluate() float64 {
	if !f.inside(f.handle.Value()) {
		return math.Inf(-1)
	}
	return f.value
}

func (f *Flat) Sample(rng *rand.Rand) float64 {
	return distuv.Uniform{Min: f.min, Max: f.max, Src: rng}.Rand()
}

func (f *Flat) Mean() float64 { return (f.min + f.max) / 2 }

func (f *Flat) Variance() float64 { return (f.max - f.min) * (f.max - f.min) / 12 }

func (f *Flat) Clone(p *parameters.Parameters) (LogPrior, error) {
	return NewFlat(p, f.name, f.min, f.max, f.options...)
}

// Gauss is an asymmetric Gaussian prior with widths central-lower and
// upper-central, truncated to [min, max] and normalized there
type Gauss struct {
	priorBase
	lower, central, upper  float64
	sigmaLower, sigmaUpper float64
	normLower, normUpper   float64
	probLower              float64 // prior mass below central
	cdfScale, cdfOffset    float64 // CDF(x) = cdfScale * Phi((x - central) / sigma) + cdfOffset
	unit                   distuv.Normal
}

// NewGauss creates an asymmetric Gaussian prior on parameter name
func NewGauss(p *parameters.Parameters, name string, min, max, lower, central, upper float64, opts ...PriorOption) (*Gauss, error) {
	b, err := newPriorBase(p, name, min, max, opts)
	if err != nil {
		return nil, err
	}
	if !(lower < central && central < upper) {
		return nil, parameters.NewConfigurationError(name, fmt.Sprintf("%g < %g < %g", lower, central, upper), "Gaussian prior needs lower < central < upper")
	}
	g := &Gauss{
		priorBase:  b,
		lower:      lower,
		central:    central,
		upper:      upper,
		sigmaLower: central - lower,
		sigmaUpper: upper - central,
		unit:       distuv.UnitNormal,
	}
	lo := g.unit.CDF((min - central) / g.sigmaLower)
	hi := g.unit.CDF((max - central) / g.sigmaUpper)
	if !(hi > lo) {
		return nil, parameters.NewConfigurationError(name, "", "Gaussian prior has no mass inside its range")
	}
	g.cdfScale = 1 / (hi - lo)
	g.cdfOffset = -lo * g.cdfScale
	g.normLower = math.Log(g.cdfScale / (math.Sqrt(2*math.Pi) * g.sigmaLower))
	g.normUpper = math.Log(g.cdfScale / (math.Sqrt(2*math.Pi) * g.sigmaUpper))
	g.probLower = g.cdfScale/2 + g.cdfOffset
	return g, nil
}

func (g *Gauss) Evaluate() float64 {
	x := g.handle.Value()
	if !g.inside(x) {
		return math.Inf(-1)
	}
	sigma, norm := g.sigmaUpper, g.normUpper
	if x < g.central {
		sigma, norm = g.sigmaLower, g.normLower
	}
	z := (x - g.central) / sigma
	return norm - z*z/2
}

// Sample inverts the piecewise CDF
func (g *Gauss) Sample(rng *rand.Rand) float64 {
	u := distuv.Uniform{Min: 0, Max: 1, Src: rng}.Rand()
	sigma := g.sigmaUpper
	if u < g.probLower {
		sigma = g.sigmaLower
	}
	return g.central + sigma*g.unit.Quantile((u-g.cdfOffset)/g.cdfScale)
}

func (g *Gauss) Mean() float64 { return g.central }

// Variance is exact only for an infinite range
func (g *Gauss) Variance() float64 {
	return (g.sigmaLower*g.sigmaLower + g.sigmaUpper*g.sigmaUpper) / 2
}

func (g *Gauss) Clone(p *parameters.Parameters) (LogPrior, error) {
	return NewGauss(p, g.name, g.min, g.max, g.lower, g.central, g.upper, g.options...)
}
