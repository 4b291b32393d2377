package testing

import (
	"math"
	"math/rand/v2"

	"github.com/eos/eos-sub010/internal/modules/sampling"
)

// NewBoxFixtures returns a box of n parameters x0..x(n-1), each in [lo, hi]
func NewBoxFixtures(n int, lo, hi float64) []sampling.ParameterDescription {
	names := []string{"x0", "x1", "x2", "x3", "x4", "x5", "x6", "x7"}
	out := make([]sampling.ParameterDescription, n)
	for i := range out {
		out[i] = sampling.ParameterDescription{Name: names[i%len(names)], Min: lo, Max: hi}
	}
	return out
}

// FlatDensity is constant inside its box
type FlatDensity struct {
	Box         []sampling.ParameterDescription
	Evaluations int
}

// NewFlatDensity creates a flat density over box
func NewFlatDensity(box []sampling.ParameterDescription) *FlatDensity {
	return &FlatDensity{Box: box}
}

func (f *FlatDensity) Evaluate(point []float64) (float64, error) {
	f.Evaluations++
	return 0, nil
}

func (f *FlatDensity) Dimension() int { return len(f.Box) }

func (f *FlatDensity) Descriptions() []sampling.ParameterDescription { return f.Box }

func (f *FlatDensity) Clone() (sampling.Density, error) {
	return &FlatDensity{Box: f.Box}, nil
}

// SamplePrior draws uniformly from the box
func (f *FlatDensity) SamplePrior(rng *rand.Rand) []float64 {
	out := make([]float64, len(f.Box))
	for i, d := range f.Box {
		out[i] = d.Min + rng.Float64()*(d.Max-d.Min)
	}
	return out
}

// GaussianDensity is an uncorrelated normal density truncated to its box
type GaussianDensity struct {
	Box    []sampling.ParameterDescription
	Means  []float64
	Sigmas []float64
}

// NewGaussianDensity creates a Gaussian density with the given means and widths
func NewGaussianDensity(box []sampling.ParameterDescription, means, sigmas []float64) *GaussianDensity {
	return &GaussianDensity{Box: box, Means: means, Sigmas: sigmas}
}

func (g *GaussianDensity) Evaluate(point []float64) (float64, error) {
	sum := 0.0
	for i, x := range point {
		z := (x - g.Means[i]) / g.Sigmas[i]
		sum -= 0.5 * z * z
	}
	return sum, nil
}

func (g *GaussianDensity) Dimension() int { return len(g.Box) }

func (g *GaussianDensity) Descriptions() []sampling.ParameterDescription { return g.Box }

func (g *GaussianDensity) Clone() (sampling.Density, error) {
	return &GaussianDensity{Box: g.Box, Means: g.Means, Sigmas: g.Sigmas}, nil
}

// BimodalDensity is a mixture of two narrow equal-weight normals at -Offset and +Offset in every dimension
type BimodalDensity struct {
	Box    []sampling.ParameterDescription
	Offset float64
	Sigma  float64
}

// NewBimodalDensity creates a well-separated two-mode density
func NewBimodalDensity(box []sampling.ParameterDescription, offset, sigma float64) *BimodalDensity {
	return &BimodalDensity{Box: box, Offset: offset, Sigma: sigma}
}

func (b *BimodalDensity) Evaluate(point []float64) (float64, error) {
	var left, right float64
	for _, x := range point {
		zl := (x + b.Offset) / b.Sigma
		zr := (x - b.Offset) / b.Sigma
		left -= 0.5 * zl * zl
		right -= 0.5 * zr * zr
	}
	hi := math.Max(left, right)
	return hi + math.Log(math.Exp(left-hi)+math.Exp(right-hi)), nil
}

func (b *BimodalDensity) Dimension() int { return len(b.Box) }

func (b *BimodalDensity) Descriptions() []sampling.ParameterDescription { return b.Box }

func (b *BimodalDensity) Clone() (sampling.Density, error) {
	return &BimodalDensity{Box: b.Box, Offset: b.Offset, Sigma: b.Sigma}, nil
}

// FailingDensity returns Err after After successful evaluations
type FailingDensity struct {
	Box   []sampling.ParameterDescription
	After int
	Err   error
	calls int
}

func (f *FailingDensity) Evaluate(point []float64) (float64, error) {
	f.calls++
	if f.calls > f.After {
		return 0, f.Err
	}
	return 0, nil
}

func (f *FailingDensity) Dimension() int { return len(f.Box) }

func (f *FailingDensity) Descriptions() []sampling.ParameterDescription { return f.Box }

func (f *FailingDensity) Clone() (sampling.Density, error) {
	return &FailingDensity{Box: f.Box, After: f.After, Err: f.Err}, nil
}
