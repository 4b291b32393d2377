package observables

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/eos/eos-sub010/pkg/logger"
)

// ObservableCache evaluates a fixed list of observables together. Identical
// observables are stored once, and cacheable observables sharing process,
// options and range are prepared once per Update.
type ObservableCache struct {
	observables []Observable
	values      []float64
	index       map[string]int
	prepares    int
	log         zerolog.Logger
}

// NewObservableCache creates an empty cache
func NewObservableCache(log zerolog.Logger) *ObservableCache {
	return &ObservableCache{
		index: make(map[string]int),
		log:   logger.WithComponent(log, "observable_cache"),
	}
}

// Add stores o unless an identical observable is present and returns its id
func (c *ObservableCache) Add(o Observable) int {
	k := key(o)
	if id, ok := c.index[k]; ok {
		return id
	}
	id := len(c.observables)
	c.observables = append(c.observables, o)
	c.values = append(c.values, 0)
	c.index[k] = id
	return id
}

// Update evaluates every observable at the current parameter values
func (c *ObservableCache) Update() error {
	s := newSession()
	for i, o := range c.observables {
		v, err := evaluateIn(o, s)
		if err != nil {
			return fmt.Errorf("failed to evaluate %s: %w", o.Name(), err)
		}
		c.values[i] = v
	}
	c.prepares = s.prepares

	c.log.Debug().
		Int("observables", len(c.observables)).
		Int("prepares", s.prepares).
		Msg("Observables updated")
	return nil
}

// Value returns the value of observable id from the last Update
func (c *ObservableCache) Value(id int) float64 {
	return c.values[id]
}

// Observable returns the observable stored under id
func (c *ObservableCache) Observable(id int) Observable {
	return c.observables[id]
}

// Len returns the number of distinct observables
func (c *ObservableCache) Len() int {
	return len(c.observables)
}

// Prepares returns the number of intermediate results computed by the last Update
func (c *ObservableCache) Prepares() int {
	return c.prepares
}
