// Package sampling explores log-densities with adaptive random-walk Markov chains.
//
// A Sampler owns one Chain per random-number stream. Chains advance in
// parallel chunks on a worker pool; between chunks the controller adapts
// proposals, checks Gelman-Rubin R-values and persists output.
package sampling

import "math/rand/v2"

// ParameterDescription names one sampled dimension and its box
type ParameterDescription struct {
	Name     string
	Min      float64
	Max      float64
	Nuisance bool
}

// Range returns Max - Min
func (d ParameterDescription) Range() float64 {
	return d.Max - d.Min
}

// Contains reports whether x lies inside the closed box
func (d ParameterDescription) Contains(x float64) bool {
	return x >= d.Min && x <= d.Max
}

// Density is a log-density over a bounded box.
// A Density is used by one goroutine at a time; chains receive their own Clone.
type Density interface {
	Evaluate(point []float64) (float64, error)
	Dimension() int
	Descriptions() []ParameterDescription
	Clone() (Density, error)
}

// PriorSampler is implemented by densities able to draw initial points from their prior
type PriorSampler interface {
	SamplePrior(rng *rand.Rand) []float64
}

// Store receives sampler output. It is only called from the controller goroutine.
type Store interface {
	AppendChunk(phase Phase, chain int, states []State) error
	SaveMode(phase Phase, chain int, mode State) error
	SaveProposal(phase Phase, chain int, state ProposalState) error
}

// Phase distinguishes pre-run and main-run output
type Phase string

const (
	PhasePreRun Phase = "prerun"
	PhaseMain   Phase = "main"
)
