// Package integration provides the one-dimensional quadratures used to build
// bin-integrated observables: adaptive Gauss-Kronrod (scalar and vector
// valued), Richardson-extrapolated Simpson and fixed Gauss-Legendre rules.
//
// Integrators are synchronous and keep no state between calls, so they are
// safe to use from any number of chains at once.
package integration

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

// Method selects the quadrature used by Integrate
type Method string

const (
	MethodGK21     Method = "gk21"
	MethodSimpson  Method = "simpson"
	MethodLegendre Method = "legendre"
)

// ParseMethod reads a method name, case-insensitively
func ParseMethod(s string) (Method, error) {
	switch m := Method(strings.ToLower(strings.TrimSpace(s))); m {
	case MethodGK21, MethodSimpson, MethodLegendre:
		return m, nil
	}
	return "", fmt.Errorf("unknown integration method %q", s)
}

// Config holds integrator tolerances and budgets
type Config struct {
	EpsRel       float64
	EpsAbs       float64
	MaxIntervals int    // adaptive subdivision budget
	Method       Method // used by Integrate and IntegrateVector
	Points       int    // grid size of the fixed-grid methods
}

// DefaultConfig returns GK21 with a relative tolerance of 1e-4
func DefaultConfig() Config {
	return Config{
		EpsRel:       1e-4,
		EpsAbs:       0,
		MaxIntervals: 1000,
		Method:       MethodGK21,
		Points:       256,
	}
}

// WithEpsRel returns a copy with a different relative tolerance
func (c Config) WithEpsRel(epsRel float64) Config {
	c.EpsRel = epsRel
	return c
}

// WithMethod returns a copy using the given method and grid size
func (c Config) WithMethod(m Method, points int) Config {
	c.Method = m
	c.Points = points
	return c
}

// ErrIntegration is wrapped by every integration failure
var ErrIntegration = errors.New("integration failed")

// Error reports a quadrature that did not reach its tolerance or met a
// non-finite integrand value
type Error struct {
	Method    Method
	A, B      float64
	Estimate  float64
	AbsErr    float64
	Intervals int
	Reason    string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s integration on [%g, %g] failed: %s (estimate %g, error %g, %d intervals)",
		e.Method, e.A, e.B, e.Reason, e.Estimate, e.AbsErr, e.Intervals)
}

func (e *Error) Unwrap() error {
	return ErrIntegration
}

func finite(x float64) bool {
	return !math.IsNaN(x) && !math.IsInf(x, 0)
}

// Func is a scalar integrand
type Func func(x float64) float64

// VectorFunc writes the components of a vector-valued integrand at x into out
type VectorFunc func(x float64, out []float64)

// Integrate integrates f over [a, b] with the configured method
func Integrate(f Func, a, b float64, cfg Config) (float64, error) {
	switch cfg.Method {
	case MethodSimpson:
		return Simpson(f, cfg.Points, a, b)
	case MethodLegendre:
		return Legendre(f, a, b, cfg.Points), nil
	default:
		return QAG(f, a, b, cfg)
	}
}

// IntegrateVector integrates the n components of f over [a, b] in one pass
func IntegrateVector(f VectorFunc, n int, a, b float64, cfg Config) ([]float64, error) {
	switch cfg.Method {
	case MethodSimpson:
		return SimpsonVector(f, n, cfg.Points, a, b)
	case MethodLegendre:
		return LegendreVector(f, n, a, b, cfg.Points), nil
	default:
		return QAGVector(f, n, a, b, cfg)
	}
}

// Integrate2D integrates f(x, y) over [ax, bx] x [ay, by] as a nested pair of
// one-dimensional integrals; the first inner failure is reported
func Integrate2D(f func(x, y float64) float64, ax, bx, ay, by float64, cfg Config) (float64, error) {
	var innerErr error
	outer := func(x float64) float64 {
		v, err := Integrate(func(y float64) float64 { return f(x, y) }, ay, by, cfg)
		if err != nil && innerErr == nil {
			innerErr = err
		}
		return v
	}
	v, err := Integrate(outer, ax, bx, cfg)
	if innerErr != nil {
		return v, innerErr
	}
	return v, err
}
