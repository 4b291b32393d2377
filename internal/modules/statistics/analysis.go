package statistics

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"github.com/eos/eos-sub010/internal/modules/parameters"
)

// Prior types accepted in analysis files
const (
	PriorFlat  = "flat"
	PriorGauss = "gauss"
)

// ParameterSpec overrides the value or range of a parameter
type ParameterSpec struct {
	Name  string   `yaml:"name"`
	Value *float64 `yaml:"value"`
	Min   *float64 `yaml:"min"`
	Max   *float64 `yaml:"max"`
}

// PriorSpec describes the prior of one varied parameter
type PriorSpec struct {
	Parameter string  `yaml:"parameter"`
	Type      string  `yaml:"type"`
	Min       float64 `yaml:"min"`
	Max       float64 `yaml:"max"`
	Lower     float64 `yaml:"lower"`
	Central   float64 `yaml:"central"`
	Upper     float64 `yaml:"upper"`
	Nuisance  bool    `yaml:"nuisance"`
}

// AnalysisSpec is the content of an analysis file
type AnalysisSpec struct {
	Name          string            `yaml:"name"`
	GlobalOptions map[string]string `yaml:"global_options"`
	Parameters    []ParameterSpec   `yaml:"parameters"`
	Priors        []PriorSpec       `yaml:"priors"`
	Constraints   []ConstraintSpec  `yaml:"constraints"`
}

// LoadAnalysis reads and validates an analysis file
func LoadAnalysis(path string) (*AnalysisSpec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read analysis file: %w", err)
	}
	a, err := ParseAnalysis(data)
	if err != nil {
		return nil, fmt.Errorf("analysis file %s: %w", path, err)
	}
	return a, nil
}

// ParseAnalysis decodes and validates YAML analysis content
func ParseAnalysis(data []byte) (*AnalysisSpec, error) {
	var a AnalysisSpec
	if err := yaml.Unmarshal(data, &a); err != nil {
		return nil, fmt.Errorf("failed to parse analysis: %w", err)
	}
	if err := a.Validate(); err != nil {
		return nil, err
	}
	return &a, nil
}

// Validate checks the structure without touching any parameter set
func (a *AnalysisSpec) Validate() error {
	if len(a.Priors) == 0 {
		return parameters.NewConfigurationError("priors", "", "analysis needs at least one prior")
	}
	seen := make(map[string]bool)
	for _, pr := range a.Priors {
		if pr.Parameter == "" {
			return parameters.NewConfigurationError("priors", "", "prior without parameter name")
		}
		if seen[pr.Parameter] {
			return parameters.NewConfigurationError(pr.Parameter, "", "parameter has more than one prior")
		}
		seen[pr.Parameter] = true
		switch pr.Type {
		case PriorFlat, PriorGauss:
		default:
			return parameters.NewConfigurationError(pr.Parameter, pr.Type, "unknown prior type")
		}
	}
	for i, c := range a.Constraints {
		if c.Name == "" {
			return parameters.NewConfigurationError("constraints", fmt.Sprint(i), "constraint without name")
		}
	}
	return nil
}

// Build applies the overrides to a clone of base and returns the posterior on it.
// Options from the file take precedence over global.
func (a *AnalysisSpec) Build(base *parameters.Parameters, global parameters.Options, log zerolog.Logger) (*Posterior, error) {
	p := base.Clone()
	for _, ps := range a.Parameters {
		if err := applyOverride(p, ps); err != nil {
			return nil, err
		}
	}

	priors := make([]LogPrior, 0, len(a.Priors))
	for _, ps := range a.Priors {
		var opts []PriorOption
		if ps.Nuisance {
			opts = append(opts, AsNuisance())
		}
		var (
			pr  LogPrior
			err error
		)
		switch ps.Type {
		case PriorFlat:
			pr, err = NewFlat(p, ps.Parameter, ps.Min, ps.Max, opts...)
		case PriorGauss:
			pr, err = NewGauss(p, ps.Parameter, ps.Min, ps.Max, ps.Lower, ps.Central, ps.Upper, opts...)
		default:
			err = parameters.NewConfigurationError(ps.Parameter, ps.Type, "unknown prior type")
		}
		if err != nil {
			return nil, fmt.Errorf("failed to build prior: %w", err)
		}
		priors = append(priors, pr)
	}

	likelihood, err := NewLogLikelihood(p, a.Constraints, global.Merge(parameters.NewOptions(a.GlobalOptions)), log)
	if err != nil {
		return nil, fmt.Errorf("failed to build likelihood: %w", err)
	}

	post, err := NewPosterior(p, priors, likelihood, log)
	if err != nil {
		return nil, err
	}
	log.Info().
		Str("analysis", a.Name).
		Int("parameters", post.Dimension()).
		Int("constraints", likelihood.Len()).
		Msg("Analysis built")
	return post, nil
}

func applyOverride(p *parameters.Parameters, ps ParameterSpec) error {
	if !p.Has(ps.Name) {
		if ps.Value == nil || ps.Min == nil || ps.Max == nil {
			return parameters.NewConfigurationError(ps.Name, "", "new parameter needs value, min and max")
		}
		p.Declare(ps.Name, *ps.Value, *ps.Min, *ps.Max)
		return nil
	}
	min, max, err := p.Range(ps.Name)
	if err != nil {
		return err
	}
	value, err := p.Get(ps.Name)
	if err != nil {
		return err
	}
	if ps.Value != nil {
		value = *ps.Value
	}
	if ps.Min != nil {
		min = *ps.Min
	}
	if ps.Max != nil {
		max = *ps.Max
	}
	if min > max {
		return parameters.NewConfigurationError(ps.Name, fmt.Sprintf("[%g, %g]", min, max), "min exceeds max")
	}
	p.Declare(ps.Name, value, min, max)
	return nil
}
