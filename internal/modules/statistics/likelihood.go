package statistics

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/eos/eos-sub010/internal/modules/observables"
	"github.com/eos/eos-sub010/internal/modules/parameters"
	"github.com/eos/eos-sub010/pkg/logger"
)

// LogLikelihood sums the log-likelihood blocks of a set of constraints.
// All observables share one cache, evaluated once per call.
type LogLikelihood struct {
	specs  []ConstraintSpec
	global parameters.Options
	cache  *observables.ObservableCache
	blocks []block
	log    zerolog.Logger
	base   zerolog.Logger
}

// NewLogLikelihood builds the observables of every constraint on p
func NewLogLikelihood(p *parameters.Parameters, specs []ConstraintSpec, global parameters.Options, log zerolog.Logger) (*LogLikelihood, error) {
	l := &LogLikelihood{
		specs:  specs,
		global: global,
		cache:  observables.NewObservableCache(log),
		log:    logger.WithComponent(log, "likelihood"),
		base:   log,
	}
	for _, c := range specs {
		b, err := c.build(p, global, l.cache)
		if err != nil {
			return nil, err
		}
		l.blocks = append(l.blocks, b)
	}
	l.log.Debug().
		Int("constraints", len(l.blocks)).
		Int("observables", l.cache.Len()).
		Msg("Likelihood built")
	return l, nil
}

// Evaluate updates the observables at the current parameters and returns the log-likelihood
func (l *LogLikelihood) Evaluate() (float64, error) {
	if err := l.cache.Update(); err != nil {
		return 0, fmt.Errorf("failed to update observables: %w", err)
	}
	sum := 0.0
	for _, b := range l.blocks {
		sum += b.evaluate(l.cache)
	}
	return sum, nil
}

// Cache returns the shared observable cache
func (l *LogLikelihood) Cache() *observables.ObservableCache {
	return l.cache
}

// Len returns the number of constraints
func (l *LogLikelihood) Len() int {
	return len(l.blocks)
}

// Clone rebuilds the likelihood on p
func (l *LogLikelihood) Clone(p *parameters.Parameters) (*LogLikelihood, error) {
	return NewLogLikelihood(p, l.specs, l.global, l.base)
}
