package sampling

import (
	"fmt"
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/stat/distuv"
)

// streamIncrement separates chain streams sharing a seed
const streamIncrement = 0x9e3779b97f4a7c15

// Chain is a single random-walk Metropolis-Hastings chain with its own
// random-number stream, density and proposal
type Chain struct {
	index        int
	density      Density
	descriptions []ParameterDescription
	proposal     Proposal

	rng     *rand.Rand
	uniform distuv.Uniform

	current   State
	candidate []float64

	history     History
	keepHistory bool
	stats       Statistics
}

// NewChain seeds chain index from the stream (seed, index) and draws the
// initial point uniformly from the parameter box, or from the prior of
// density when fromPrior is set and density implements PriorSampler
func NewChain(density Density, index int, seed uint64, proposal Proposal, fromPrior bool) (*Chain, error) {
	d := density.Dimension()
	if d == 0 {
		return nil, fmt.Errorf("chain %d: density has no parameters", index)
	}
	rng := rand.New(rand.NewPCG(seed, uint64(index)*streamIncrement+1))
	c := &Chain{
		index:        index,
		density:      density,
		descriptions: density.Descriptions(),
		proposal:     proposal,
		rng:          rng,
		uniform:      distuv.Uniform{Min: 0, Max: 1, Src: rng},
		candidate:    make([]float64, d),
		keepHistory:  true,
		stats:        newStatistics(d),
	}

	var initial []float64
	if ps, ok := density.(PriorSampler); ok && fromPrior {
		initial = ps.SamplePrior(rng)
	} else {
		initial = make([]float64, d)
		for i, desc := range c.descriptions {
			initial[i] = distuv.Uniform{Min: desc.Min, Max: desc.Max, Src: rng}.Rand()
		}
	}
	if err := c.SetPoint(initial); err != nil {
		return nil, err
	}
	return c, nil
}

// SetPoint moves the chain to point and evaluates the density there
func (c *Chain) SetPoint(point []float64) error {
	if len(point) != len(c.descriptions) {
		return fmt.Errorf("chain %d: point has %d components, expected %d", c.index, len(point), len(c.descriptions))
	}
	for i, desc := range c.descriptions {
		if !desc.Contains(point[i]) {
			return fmt.Errorf("chain %d: parameter %s = %g outside [%g, %g]", c.index, desc.Name, point[i], desc.Min, desc.Max)
		}
	}
	ld, err := c.density.Evaluate(point)
	if err != nil {
		return fmt.Errorf("chain %d: failed to evaluate initial point: %w", c.index, err)
	}
	if math.IsNaN(ld) || math.IsInf(ld, 0) {
		return newDomainError("initial point", c.index, "log density %g", ld)
	}
	c.current = State{Point: append([]float64(nil), point...), LogDensity: ld}
	c.stats.observeMode(c.current)
	return nil
}

// Run advances the chain by n iterations. Acceptance counters restart at
// zero, moments and the mode accumulate.
func (c *Chain) Run(n int) error {
	c.stats.resetCounters()
	for it := 0; it < n; it++ {
		if err := c.step(); err != nil {
			return err
		}
		c.stats.observe(c.current)
		if c.keepHistory {
			c.history.Append(c.current)
		}
	}
	return nil
}

func (c *Chain) step() error {
	c.proposal.Propose(c.rng, c.current.Point, c.candidate)
	for i, desc := range c.descriptions {
		if !desc.Contains(c.candidate[i]) {
			c.stats.Invalid++
			return nil
		}
	}

	ld, err := c.density.Evaluate(c.candidate)
	if err != nil {
		return fmt.Errorf("chain %d: failed to evaluate density: %w", c.index, err)
	}
	if math.IsInf(ld, -1) {
		c.stats.Rejected++
		return nil
	}
	logR := ld - c.current.LogDensity + c.proposal.LogRatio(c.current.Point, c.candidate)
	if math.IsNaN(logR) || math.IsInf(logR, 0) {
		return newDomainError("metropolis ratio", c.index, "log r = %g at %v", logR, c.candidate)
	}

	if math.Log(c.uniform.Rand()) < logR {
		copy(c.current.Point, c.candidate)
		c.current.LogDensity = ld
		c.stats.Accepted++
		return nil
	}
	c.stats.Rejected++
	return nil
}

// Index returns the chain number
func (c *Chain) Index() int { return c.index }

// Current returns a copy of the current state
func (c *Chain) Current() State { return c.current.Clone() }

// History returns the stored states
func (c *Chain) History() *History { return &c.history }

// Statistics returns a snapshot of the counters and moments
func (c *Chain) Statistics() Statistics {
	s := c.stats
	s.Means = append([]float64(nil), c.stats.Means...)
	s.Variances = append([]float64(nil), c.stats.Variances...)
	s.Mode = c.stats.Mode.Clone()
	return s
}

// Proposal returns the proposal in use
func (c *Chain) Proposal() Proposal { return c.proposal }

// SetProposal replaces the proposal
func (c *Chain) SetProposal(p Proposal) { c.proposal = p }

// Descriptions returns the parameter box
func (c *Chain) Descriptions() []ParameterDescription { return c.descriptions }

// KeepHistory switches recording of visited states
func (c *Chain) KeepHistory(keep bool) { c.keepHistory = keep }

// Clear drops the history and zeroes the acceptance counters
func (c *Chain) Clear() {
	c.history.Clear()
	c.stats.resetCounters()
}

// Reset zeroes the acceptance counters; a hard reset also drops moments and the mode
func (c *Chain) Reset(hard bool) {
	c.stats.resetCounters()
	if hard {
		c.stats = newStatistics(len(c.descriptions))
	}
}
