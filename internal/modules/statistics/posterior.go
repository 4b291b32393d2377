package statistics

import (
	"fmt"
	"math"
	"math/rand/v2"

	"github.com/rs/zerolog"

	"github.com/eos/eos-sub010/internal/modules/parameters"
	"github.com/eos/eos-sub010/internal/modules/sampling"
	"github.com/eos/eos-sub010/pkg/logger"
)

// Posterior is log prior + log likelihood over the parameters carrying a prior.
// The i-th dimension of a point is the parameter of the i-th prior.
type Posterior struct {
	params       *parameters.Parameters
	priors       []LogPrior
	handles      []*parameters.Handle
	likelihood   *LogLikelihood
	descriptions []sampling.ParameterDescription
	log          zerolog.Logger
	base         zerolog.Logger
}

// NewPosterior combines priors and likelihood, both built on p
func NewPosterior(p *parameters.Parameters, priors []LogPrior, likelihood *LogLikelihood, log zerolog.Logger) (*Posterior, error) {
	if len(priors) == 0 {
		return nil, parameters.NewConfigurationError("priors", "", "posterior needs at least one prior")
	}
	post := &Posterior{
		params:     p,
		priors:     priors,
		likelihood: likelihood,
		log:        logger.WithComponent(log, "posterior"),
		base:       log,
	}
	seen := make(map[string]bool, len(priors))
	for _, pr := range priors {
		name := pr.Parameter()
		if seen[name] {
			return nil, parameters.NewConfigurationError(name, "", "parameter has more than one prior")
		}
		seen[name] = true
		h, err := p.Handle(name)
		if err != nil {
			return nil, err
		}
		post.handles = append(post.handles, h)
		post.descriptions = append(post.descriptions, pr.Description())
	}
	return post, nil
}

// Evaluate sets the parameters to point and returns the log posterior.
// Points outside a prior's support give -Inf without evaluating the likelihood.
func (p *Posterior) Evaluate(point []float64) (float64, error) {
	if len(point) != len(p.handles) {
		return 0, fmt.Errorf("point has dimension %d, posterior has %d", len(point), len(p.handles))
	}
	for i, h := range p.handles {
		h.Set(point[i])
	}
	return p.evaluateCurrent()
}

func (p *Posterior) evaluateCurrent() (float64, error) {
	sum := 0.0
	for _, pr := range p.priors {
		sum += pr.Evaluate()
		if math.IsInf(sum, -1) {
			return sum, nil
		}
	}
	if p.likelihood == nil {
		return sum, nil
	}
	l, err := p.likelihood.Evaluate()
	if err != nil {
		return 0, err
	}
	return sum + l, nil
}

// LogPrior returns the summed log prior at the current parameter values
func (p *Posterior) LogPrior() float64 {
	sum := 0.0
	for _, pr := range p.priors {
		sum += pr.Evaluate()
	}
	return sum
}

// SamplePrior draws every dimension independently from its prior
func (p *Posterior) SamplePrior(rng *rand.Rand) []float64 {
	point := make([]float64, len(p.priors))
	for i, pr := range p.priors {
		point[i] = pr.Sample(rng)
	}
	return point
}

func (p *Posterior) Dimension() int { return len(p.priors) }

func (p *Posterior) Descriptions() []sampling.ParameterDescription {
	return append([]sampling.ParameterDescription(nil), p.descriptions...)
}

func (p *Posterior) Parameters() *parameters.Parameters { return p.params }

func (p *Posterior) Priors() []LogPrior { return p.priors }

func (p *Posterior) Likelihood() *LogLikelihood { return p.likelihood }

// Clone rebuilds the posterior on an independent copy of the parameters
func (p *Posterior) Clone() (sampling.Density, error) {
	params := p.params.Clone()
	priors := make([]LogPrior, len(p.priors))
	for i, pr := range p.priors {
		c, err := pr.Clone(params)
		if err != nil {
			return nil, fmt.Errorf("failed to clone prior on %s: %w", pr.Parameter(), err)
		}
		priors[i] = c
	}
	var likelihood *LogLikelihood
	if p.likelihood != nil {
		l, err := p.likelihood.Clone(params)
		if err != nil {
			return nil, fmt.Errorf("failed to clone likelihood: %w", err)
		}
		likelihood = l
	}
	return NewPosterior(params, priors, likelihood, p.base)
}
