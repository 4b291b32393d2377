package sampling

import (
	"errors"
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func historyOf(points ...[]float64) *History {
	h := &History{}
	for i, p := range points {
		h.Append(State{Point: p, LogDensity: -float64(i)})
	}
	return h
}

func TestHistory_MeanAndVariance(t *testing.T) {
	h := historyOf([]float64{1, 10}, []float64{2, 20}, []float64{3, 30}, []float64{4, 40})

	means, variances, err := h.MeanAndVariance(0, 4)
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{2.5, 25}, means, 1e-12)
	assert.InDeltaSlice(t, []float64{5.0 / 3, 500.0 / 3}, variances, 1e-12)

	means, variances, err = h.MeanAndVariance(2, 4)
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{3.5, 35}, means, 1e-12)
	assert.InDeltaSlice(t, []float64{0.5, 50}, variances, 1e-12)

	_, variances, err = h.MeanAndVariance(3, 4)
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 0}, variances)
}

func TestHistory_MeanAndCovariance(t *testing.T) {
	h := historyOf([]float64{1, 2}, []float64{2, 4}, []float64{3, 6})

	means, cov, err := h.MeanAndCovariance(0, 3)
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{2, 4}, means, 1e-12)
	assert.InDelta(t, 1.0, cov.At(0, 0), 1e-12)
	assert.InDelta(t, 2.0, cov.At(0, 1), 1e-12)
	assert.InDelta(t, 4.0, cov.At(1, 1), 1e-12)
}

func TestHistory_LocalModeAndWindows(t *testing.T) {
	h := &History{}
	h.Append(State{Point: []float64{0}, LogDensity: -3})
	h.Append(State{Point: []float64{1}, LogDensity: -1})
	h.Append(State{Point: []float64{2}, LogDensity: -2})

	mode, err := h.LocalMode(0, 3)
	require.NoError(t, err)
	assert.Equal(t, []float64{1}, mode.Point)

	mode, err = h.LocalMode(2, 3)
	require.NoError(t, err)
	assert.Equal(t, -2.0, mode.LogDensity)

	for _, w := range [][2]int{{-1, 2}, {0, 4}, {2, 2}} {
		_, err := h.LocalMode(w[0], w[1])
		assert.Error(t, err, "window %v", w)
	}

	h.Clear()
	assert.Equal(t, 0, h.Len())
}

func TestHistory_Trim(t *testing.T) {
	h := historyOf([]float64{1}, []float64{2}, []float64{3}, []float64{4}, []float64{5})

	h.Trim(10)
	assert.Equal(t, 5, h.Len())

	h.Trim(2)
	require.Equal(t, 2, h.Len())
	assert.Equal(t, []float64{4}, h.States[0].Point)
	assert.Equal(t, []float64{5}, h.States[1].Point)

	h.Trim(0)
	assert.Equal(t, 0, h.Len())
}

func TestHistory_AppendCopies(t *testing.T) {
	p := []float64{1, 2}
	h := &History{}
	h.Append(State{Point: p})
	p[0] = 99
	assert.Equal(t, 1.0, h.States[0].Point[0])
}

func TestStatistics_Welford(t *testing.T) {
	rng := rand.New(rand.NewPCG(3, 5))
	s := newStatistics(2)
	h := &History{}
	for i := 0; i < 1000; i++ {
		st := State{Point: []float64{rng.NormFloat64(), 5 + rng.Float64()}, LogDensity: rng.Float64()}
		s.observe(st)
		h.Append(st)
	}
	means, variances, err := h.MeanAndVariance(0, h.Len())
	require.NoError(t, err)
	assert.InDeltaSlice(t, means, s.Means, 1e-10)
	assert.InDeltaSlice(t, variances, s.Variances, 1e-10)

	mode, err := h.LocalMode(0, h.Len())
	require.NoError(t, err)
	assert.Equal(t, mode, s.Mode)
	assert.Equal(t, 1000, s.Iterations)
}

func TestStatistics_Efficiency(t *testing.T) {
	s := newStatistics(1)
	assert.Equal(t, 0.0, s.Efficiency())
	s.Accepted, s.Rejected, s.Invalid = 3, 5, 2
	assert.InDelta(t, 0.3, s.Efficiency(), 1e-15)
	s.resetCounters()
	assert.Equal(t, 0, s.Accepted+s.Rejected+s.Invalid)
}

func TestProposal_UnknownKind(t *testing.T) {
	_, err := NewProposal("Cauchy", mat.NewSymDense(1, []float64{1}), 0)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNumericalDomain))

	_, err = NewProposal(ProposalStudentT, mat.NewSymDense(1, []float64{1}), 0)
	assert.Error(t, err, "Student-t needs positive degrees of freedom")
}

func TestProposal_GaussianStepCovariance(t *testing.T) {
	cov := mat.NewSymDense(2, []float64{1, 0.5, 0.5, 4})
	p, err := NewProposal(ProposalGaussian, cov, 0)
	require.NoError(t, err)
	scale := p.State().Scale
	assert.InDelta(t, 2.38*2.38/2, scale, 1e-12)

	rng := rand.New(rand.NewPCG(1, 2))
	current := []float64{0, 0}
	candidate := make([]float64, 2)
	h := &History{}
	for i := 0; i < 40000; i++ {
		p.Propose(rng, current, candidate)
		h.Append(State{Point: candidate})
	}
	means, sample, err := h.MeanAndCovariance(0, h.Len())
	require.NoError(t, err)
	assert.InDelta(t, 0, means[0], 0.05)
	assert.InDelta(t, scale*1, sample.At(0, 0), 0.05*scale)
	assert.InDelta(t, scale*0.5, sample.At(0, 1), 0.05*scale)
	assert.InDelta(t, scale*4, sample.At(1, 1), 0.2*scale)

	assert.Equal(t, 0.0, p.LogRatio(current, candidate), "random walk is symmetric")
}

func TestProposal_StudentTStepVariance(t *testing.T) {
	dof := 10.0
	p, err := NewProposal(ProposalStudentT, mat.NewSymDense(1, []float64{1}), dof)
	require.NoError(t, err)
	scale := p.State().Scale

	rng := rand.New(rand.NewPCG(9, 9))
	candidate := make([]float64, 1)
	h := &History{}
	for i := 0; i < 50000; i++ {
		p.Propose(rng, []float64{1}, candidate)
		h.Append(State{Point: candidate})
	}
	_, variances, err := h.MeanAndVariance(0, h.Len())
	require.NoError(t, err)
	want := scale * dof / (dof - 2)
	assert.InDelta(t, want, variances[0], 0.05*want)
}

func TestProposal_AdaptScale(t *testing.T) {
	p, err := NewProposal(ProposalGaussian, mat.NewSymDense(1, []float64{1}), 0)
	require.NoError(t, err)
	s0 := p.State().Scale

	require.NoError(t, p.Adapt(nil, 0.5, 0.15, 0.35))
	assert.InDelta(t, s0*1.5, p.State().Scale, 1e-12)

	require.NoError(t, p.Adapt(nil, 0.25, 0.15, 0.35))
	assert.InDelta(t, s0*1.5, p.State().Scale, 1e-12, "inside the band")

	require.NoError(t, p.Adapt(nil, 0.05, 0.15, 0.35))
	assert.InDelta(t, s0, p.State().Scale, 1e-12)

	for i := 0; i < 100; i++ {
		require.NoError(t, p.Adapt(nil, 0.0, 0.15, 0.35))
	}
	assert.Equal(t, 1e-4, p.State().Scale)
	assert.Equal(t, 103, p.State().Adaptations)

	for i := 0; i < 100; i++ {
		require.NoError(t, p.Adapt(nil, 1.0, 0.15, 0.35))
	}
	assert.Equal(t, 100.0, p.State().Scale)
}

func TestProposal_AdaptBlendsSampleCovariance(t *testing.T) {
	p, err := NewProposal(ProposalGaussian, mat.NewSymDense(1, []float64{100}), 0)
	require.NoError(t, err)

	rng := rand.New(rand.NewPCG(4, 4))
	states := make([]State, 5000)
	for i := range states {
		states[i] = State{Point: []float64{rng.NormFloat64()}}
	}
	require.NoError(t, p.Adapt(states, 0.25, 0.15, 0.35))

	w := 1 / math.Sqrt(2)
	want := (1-w)*100 + w*1
	assert.InDelta(t, want, p.State().Covariance[0], 0.1)
}

func TestProposal_StateRoundTrip(t *testing.T) {
	p, err := NewProposal(ProposalStudentT, mat.NewSymDense(2, []float64{2, 0.3, 0.3, 1}), 3)
	require.NoError(t, err)
	require.NoError(t, p.Adapt(nil, 0.9, 0.15, 0.35))

	restored, err := RestoreProposal(p.State())
	require.NoError(t, err)
	assert.Equal(t, p.State(), restored.State())

	clone := p.Clone()
	require.NoError(t, clone.Adapt(nil, 0.9, 0.15, 0.35))
	assert.NotEqual(t, p.State().Scale, clone.State().Scale, "clones adapt independently")

	_, err = RestoreProposal(ProposalState{Kind: ProposalGaussian, Dimension: 2, Covariance: []float64{1}})
	assert.Error(t, err)
}

func TestProposal_CovarianceFallbacks(t *testing.T) {
	p, err := NewProposal(ProposalGaussian, mat.NewSymDense(2, []float64{1, 2, 2, 1}), 0)
	require.NoError(t, err, "indefinite covariance falls back to its diagonal")
	assert.Equal(t, []float64{1, 0, 0, 1}, p.State().Covariance)

	_, err = NewProposal(ProposalGaussian, mat.NewSymDense(2, []float64{-1, 0, 0, 1}), 0)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNumericalDomain))
}

func TestDiagonalCovariance(t *testing.T) {
	cov := DiagonalCovariance([]ParameterDescription{{Min: 0, Max: 6}, {Min: -1, Max: 1}})
	assert.Equal(t, 3.0, cov.At(0, 0))
	assert.InDelta(t, 4.0/12, cov.At(1, 1), 1e-15)
	assert.Equal(t, 0.0, cov.At(0, 1))
}
