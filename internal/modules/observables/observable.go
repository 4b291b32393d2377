// Package observables exposes every physical prediction as a named,
// string-addressable function of (Parameters, Kinematics, Options).
//
// A name has the form "<process>::<quantity>" and may carry options after a
// semicolon, e.g. "B->D^*lnu::BR;l=tau". Observables that integrate over the
// same range with the same options share one Prepare when evaluated through
// an ObservableCache.
package observables

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/eos/eos-sub010/internal/modules/parameters"
)

// ErrVanishingDenominator is returned by ratio expressions whose denominator evaluates to zero
var ErrVanishingDenominator = errors.New("denominator vanishes")

// Observable is a named prediction bound to one parameter set
type Observable interface {
	Name() string
	Evaluate() (float64, error)
	Parameters() *parameters.Parameters
	Kinematics() *parameters.Kinematics
	Options() parameters.Options
}

// evaluator is implemented by the observables of this package so that
// prepared intermediate results can be shared within one session
type evaluator interface {
	evaluate(s *session) (float64, error)
}

// session collects the intermediate results prepared during one evaluation pass
type session struct {
	prepared map[string]any
	prepares int
}

func newSession() *session {
	return &session{prepared: make(map[string]any)}
}

func evaluateIn(o Observable, s *session) (float64, error) {
	if e, ok := o.(evaluator); ok {
		return e.evaluate(s)
	}
	return o.Evaluate()
}

// base carries what every observable exposes
type base struct {
	name   string
	params *parameters.Parameters
	kin    *parameters.Kinematics
	opts   parameters.Options
	vars   []string
}

func (b *base) Name() string                       { return b.name }
func (b *base) Parameters() *parameters.Parameters { return b.params }
func (b *base) Kinematics() *parameters.Kinematics { return b.kin }
func (b *base) Options() parameters.Options        { return b.opts }

// process is the part of the name before "::"
func (b *base) process() string {
	p, _, _ := strings.Cut(b.name, "::")
	return p
}

// kinematics reads the registered kinematic variables in order
func (b *base) kinematics() ([]float64, error) {
	x := make([]float64, len(b.vars))
	for i, v := range b.vars {
		val, err := b.kin.Get(v)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", b.name, err)
		}
		x[i] = val
	}
	return x, nil
}

// key identifies an observable for deduplication
func key(o Observable) string {
	return o.Name() + "|" + o.Kinematics().String() + "|" + o.Options().String()
}

// computed evaluates a generator function at the kinematic point
type computed struct {
	base
	fn func(x []float64) (float64, error)
}

func (c *computed) Evaluate() (float64, error) { return c.evaluate(nil) }

func (c *computed) evaluate(*session) (float64, error) {
	x, err := c.kinematics()
	if err != nil {
		return 0, err
	}
	return c.fn(x)
}

// cacheable splits evaluation into a Prepare over the kinematic range and
// a cheap lookup on the intermediate result
type cacheable[IR any] struct {
	base
	prepare func(x []float64) (IR, error)
	eval    func(ir IR) (float64, error)
}

func (c *cacheable[IR]) Evaluate() (float64, error) { return c.evaluate(nil) }

// groupKey is shared by every cacheable observable of the same process,
// options and kinematic range
func (c *cacheable[IR]) groupKey(x []float64) string {
	var b strings.Builder
	b.WriteString(c.process())
	b.WriteByte(';')
	b.WriteString(c.opts.String())
	for _, v := range x {
		b.WriteByte('|')
		b.WriteString(strconv.FormatFloat(v, 'g', 17, 64))
	}
	return b.String()
}

func (c *cacheable[IR]) evaluate(s *session) (float64, error) {
	x, err := c.kinematics()
	if err != nil {
		return 0, err
	}
	if s == nil {
		ir, err := c.prepare(x)
		if err != nil {
			return 0, err
		}
		return c.eval(ir)
	}

	k := c.groupKey(x)
	if v, ok := s.prepared[k]; ok {
		return c.eval(v.(IR))
	}
	ir, err := c.prepare(x)
	if err != nil {
		return 0, err
	}
	s.prepared[k] = ir
	s.prepares++
	return c.eval(ir)
}

type term struct {
	coefficient float64
	obs         Observable
}

// expression is a linear combination of observables, optionally divided by another one
type expression struct {
	base
	numerator   []term
	denominator []term
}

func (e *expression) Evaluate() (float64, error) { return e.evaluate(newSession()) }

func sum(terms []term, s *session) (float64, error) {
	var total float64
	for _, t := range terms {
		v, err := evaluateIn(t.obs, s)
		if err != nil {
			return 0, err
		}
		total += t.coefficient * v
	}
	return total, nil
}

func (e *expression) evaluate(s *session) (float64, error) {
	num, err := sum(e.numerator, s)
	if err != nil {
		return 0, err
	}
	if len(e.denominator) == 0 {
		return num, nil
	}
	den, err := sum(e.denominator, s)
	if err != nil {
		return 0, err
	}
	if den == 0 {
		return 0, fmt.Errorf("%s: %w", e.name, ErrVanishingDenominator)
	}
	return num / den, nil
}
