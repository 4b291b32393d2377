package observables

import (
	"fmt"

	"github.com/eos/eos-sub010/internal/modules/parameters"
)

// differential binds fn to a freshly constructed generator
func differential[G any](
	gen func(*parameters.Parameters, parameters.Options) (G, error),
	fn func(g G, x []float64) (float64, error),
) makeFunc {
	return func(_ *Registry, b base) (Observable, error) {
		g, err := gen(b.params, b.opts)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", b.name, err)
		}
		return &computed{base: b, fn: func(x []float64) (float64, error) { return fn(g, x) }}, nil
	}
}

// prepared binds a Prepare/evaluate pair to a freshly constructed generator
func prepared[G, IR any](
	gen func(*parameters.Parameters, parameters.Options) (G, error),
	prepare func(g G, x []float64) (IR, error),
	eval func(ir IR) (float64, error),
) makeFunc {
	return func(_ *Registry, b base) (Observable, error) {
		g, err := gen(b.params, b.opts)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", b.name, err)
		}
		return &cacheable[IR]{
			base:    b,
			prepare: func(x []float64) (IR, error) { return prepare(g, x) },
			eval:    eval,
		}, nil
	}
}

// plain lifts an infallible lookup
func plain[IR any](f func(IR) float64) func(IR) (float64, error) {
	return func(ir IR) (float64, error) { return f(ir), nil }
}

// component is one term of an expression observable
type component struct {
	coefficient float64
	name        string
	options     map[string]string
	rename      map[string]string // child variable -> parent variable
}

// combination builds sum(numerator) or sum(numerator) / sum(denominator)
func combination(numerator, denominator []component) makeFunc {
	return func(r *Registry, b base) (Observable, error) {
		num, err := r.terms(b, numerator)
		if err != nil {
			return nil, err
		}
		den, err := r.terms(b, denominator)
		if err != nil {
			return nil, err
		}
		return &expression{base: b, numerator: num, denominator: den}, nil
	}
}

func (r *Registry) terms(b base, cs []component) ([]term, error) {
	out := make([]term, 0, len(cs))
	for _, c := range cs {
		kin := b.kin
		if len(c.rename) > 0 {
			renamed, err := b.kin.Renamed(c.rename)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", b.name, err)
			}
			kin = renamed
		}
		obs, err := r.build(c.name, b.params, kin, b.opts.Merge(parameters.NewOptions(c.options)))
		if err != nil {
			return nil, fmt.Errorf("%s: %w", b.name, err)
		}
		out = append(out, term{coefficient: c.coefficient, obs: obs})
	}
	return out, nil
}
