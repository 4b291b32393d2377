package sampling_test

import (
	"bytes"
	"context"
	"errors"
	"math"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/eos/eos-sub010/internal/modules/sampling"
	testutil "github.com/eos/eos-sub010/internal/testing"
)

func TestChain_FlatDensityMoments(t *testing.T) {
	box := testutil.NewBoxFixtures(2, -1, 3)
	density := testutil.NewFlatDensity(box)
	p, err := sampling.NewProposal(sampling.ProposalGaussian, sampling.DiagonalCovariance(box), 0)
	require.NoError(t, err)

	chain, err := sampling.NewChain(density, 0, 42, p, false)
	require.NoError(t, err)
	for _, x := range chain.Current().Point {
		assert.True(t, x >= -1 && x <= 3)
	}

	n := 200000
	require.NoError(t, chain.Run(n))

	st := chain.Statistics()
	assert.Equal(t, n, st.Accepted+st.Rejected+st.Invalid)
	assert.Equal(t, n, st.Iterations)
	assert.Greater(t, st.Invalid, 0, "wide steps leave the box")
	assert.Equal(t, 0, st.Rejected, "a flat density accepts every candidate inside the box")

	for i := range box {
		assert.InDelta(t, 1.0, st.Means[i], 0.05)
		assert.InDelta(t, 16.0/12, st.Variances[i], 0.05)
	}
	assert.Equal(t, n, chain.History().Len())
}

func TestChain_InitialPointFromPrior(t *testing.T) {
	box := testutil.NewBoxFixtures(1, 10, 11)
	p, err := sampling.NewProposal(sampling.ProposalGaussian, sampling.DiagonalCovariance(box), 0)
	require.NoError(t, err)

	chain, err := sampling.NewChain(testutil.NewFlatDensity(box), 3, 1, p, true)
	require.NoError(t, err)
	x := chain.Current().Point[0]
	assert.True(t, x >= 10 && x <= 11)
}

func TestChain_SetPointValidation(t *testing.T) {
	box := testutil.NewBoxFixtures(2, 0, 1)
	p, err := sampling.NewProposal(sampling.ProposalGaussian, sampling.DiagonalCovariance(box), 0)
	require.NoError(t, err)
	chain, err := sampling.NewChain(testutil.NewFlatDensity(box), 0, 1, p, false)
	require.NoError(t, err)

	assert.Error(t, chain.SetPoint([]float64{0.5}))
	assert.Error(t, chain.SetPoint([]float64{0.5, 1.5}))
	require.NoError(t, chain.SetPoint([]float64{0.25, 0.75}))
	assert.Equal(t, []float64{0.25, 0.75}, chain.Current().Point)
}

// constantDensity returns the same value everywhere
type constantDensity struct {
	box   []sampling.ParameterDescription
	value float64
	after float64 // returned after the first evaluation
	calls int
}

func (c *constantDensity) Evaluate([]float64) (float64, error) {
	c.calls++
	if c.calls > 1 {
		return c.after, nil
	}
	return c.value, nil
}
func (c *constantDensity) Dimension() int                                { return len(c.box) }
func (c *constantDensity) Descriptions() []sampling.ParameterDescription { return c.box }
func (c *constantDensity) Clone() (sampling.Density, error) {
	return &constantDensity{box: c.box, value: c.value, after: c.after}, nil
}

func TestChain_NumericalDomainErrors(t *testing.T) {
	box := testutil.NewBoxFixtures(1, 0, 1)
	p, err := sampling.NewProposal(sampling.ProposalGaussian, mat.NewSymDense(1, []float64{1e-4}), 0)
	require.NoError(t, err)

	_, err = sampling.NewChain(&constantDensity{box: box, value: math.NaN()}, 0, 1, p, false)
	require.Error(t, err)
	assert.True(t, errors.Is(err, sampling.ErrNumericalDomain))

	chain, err := sampling.NewChain(&constantDensity{box: box, value: 0, after: math.Inf(1)}, 0, 1, p, false)
	require.NoError(t, err)
	err = chain.Run(100)
	require.Error(t, err)
	var de *sampling.DomainError
	require.True(t, errors.As(err, &de))
	assert.Equal(t, 0, de.Chain)

	// a vanishing density is a rejection, not an error
	chain, err = sampling.NewChain(&constantDensity{box: box, value: 0, after: math.Inf(-1)}, 0, 1, p, false)
	require.NoError(t, err)
	require.NoError(t, chain.Run(100))
	st := chain.Statistics()
	assert.Equal(t, 0, st.Accepted)
	assert.Equal(t, 100, st.Rejected+st.Invalid)
}

func TestChain_ResetAndClear(t *testing.T) {
	box := testutil.NewBoxFixtures(1, 0, 1)
	p, err := sampling.NewProposal(sampling.ProposalGaussian, sampling.DiagonalCovariance(box), 0)
	require.NoError(t, err)
	chain, err := sampling.NewChain(testutil.NewFlatDensity(box), 0, 1, p, false)
	require.NoError(t, err)

	require.NoError(t, chain.Run(50))
	chain.Clear()
	assert.Equal(t, 0, chain.History().Len())
	assert.Equal(t, 50, chain.Statistics().Iterations, "clearing keeps the moments")

	chain.Reset(true)
	assert.Equal(t, 0, chain.Statistics().Iterations)
	assert.True(t, math.IsInf(chain.Statistics().Mode.LogDensity, -1))

	chain.KeepHistory(false)
	require.NoError(t, chain.Run(10))
	assert.Equal(t, 0, chain.History().Len())
}

func gaussianConfig() sampling.Config {
	cfg := sampling.DefaultConfig()
	cfg.Chains = 4
	cfg.Seed = 1234
	cfg.Workers = 2
	cfg.PreRunMin = 2000
	cfg.PreRunUpdate = 2000
	cfg.PreRunMax = 200000
	cfg.Chunks = 2
	cfg.ChunkSize = 500
	return cfg
}

func TestSampler_ConvergesOnUnimodalTarget(t *testing.T) {
	box := testutil.NewBoxFixtures(2, -10, 10)
	density := testutil.NewGaussianDensity(box, []float64{1, -2}, []float64{1, 0.5})

	s, err := sampling.New(density, gaussianConfig(), nil, zerolog.Nop())
	require.NoError(t, err)
	require.Len(t, s.Chains(), 4)

	info, err := s.PreRun(context.Background())
	require.NoError(t, err)
	require.True(t, info.Converged, "R-values %v, efficiencies %v", info.RValues, info.Efficiencies)
	assert.Equal(t, info.Iterations, info.IterationsAtConvergence)
	for _, r := range info.RValues {
		assert.Less(t, r, 1.1)
	}
	for _, e := range info.Efficiencies {
		assert.GreaterOrEqual(t, e, 0.15)
		assert.LessOrEqual(t, e, 0.35)
	}

	for _, c := range s.Chains() {
		h := c.History()
		means, _, err := h.MeanAndVariance(h.Len()/2, h.Len())
		require.NoError(t, err)
		assert.InDelta(t, 1.0, means[0], 0.25)
		assert.InDelta(t, -2.0, means[1], 0.15)
	}
}

func TestSampler_DisjointModesDoNotConverge(t *testing.T) {
	box := testutil.NewBoxFixtures(1, -10, 10)
	density := testutil.NewBimodalDensity(box, 5, 0.1)

	cfg := gaussianConfig()
	cfg.Chains = 2
	cfg.PreRunMin = 2000
	cfg.PreRunMax = 2000
	cfg.PreRunUpdate = 1000

	s, err := sampling.New(density, cfg, nil, zerolog.Nop())
	require.NoError(t, err)

	local := mat.NewSymDense(1, []float64{0.01})
	for i, c := range s.Chains() {
		p, err := sampling.NewProposal(sampling.ProposalGaussian, local, 0)
		require.NoError(t, err)
		c.SetProposal(p)
		require.NoError(t, c.SetPoint([]float64{[]float64{-5, 5}[i]}))
	}

	info, err := s.PreRun(context.Background())
	require.NoError(t, err)
	assert.False(t, info.Converged)
	assert.Equal(t, 2000, info.Iterations)
	assert.Greater(t, info.RValues[0], 1.1)

	assert.Less(t, s.Chains()[0].Statistics().Means[0], 0.0)
	assert.Greater(t, s.Chains()[1].Statistics().Means[0], 0.0)
}

func TestSampler_ParallelMatchesSequential(t *testing.T) {
	box := testutil.NewBoxFixtures(2, -5, 5)
	density := testutil.NewGaussianDensity(box, []float64{0, 0}, []float64{1, 2})

	run := func(parallel bool, workers int) [][]float64 {
		cfg := gaussianConfig()
		cfg.PreRunMin, cfg.PreRunMax, cfg.PreRunUpdate = 1000, 3000, 500
		cfg.Parallelize = parallel
		cfg.Workers = workers
		cfg.ForceMainRun = true

		s, err := sampling.New(density, cfg, nil, zerolog.Nop())
		require.NoError(t, err)
		_, err = s.Run(context.Background())
		require.NoError(t, err)

		var out [][]float64
		for _, c := range s.Chains() {
			out = append(out, c.Current().Point)
		}
		return out
	}

	sequential := run(false, 1)
	assert.Equal(t, sequential, run(true, 4))
	assert.Equal(t, sequential, run(true, 1))
}

func TestSampler_PersistsAfterEveryChunk(t *testing.T) {
	box := testutil.NewBoxFixtures(2, -5, 5)
	density := testutil.NewGaussianDensity(box, []float64{0, 0}, []float64{1, 1})
	store := testutil.NewMockStore()

	cfg := gaussianConfig()
	cfg.Chains = 2
	cfg.PreRunMin, cfg.PreRunMax, cfg.PreRunUpdate = 600, 600, 200
	cfg.Chunks, cfg.ChunkSize = 3, 50
	cfg.ForceMainRun = true

	s, err := sampling.New(density, cfg, store, zerolog.Nop())
	require.NoError(t, err)
	_, err = s.Run(context.Background())
	require.NoError(t, err)

	for c := 0; c < 2; c++ {
		pre := store.Chunks(sampling.PhasePreRun, c)
		require.Len(t, pre, 3)
		for _, chunk := range pre {
			assert.Len(t, chunk, 200)
		}
		main := store.Chunks(sampling.PhaseMain, c)
		require.Len(t, main, 3)
		for _, chunk := range main {
			assert.Len(t, chunk, 50)
		}
		assert.Len(t, store.Proposals(sampling.PhasePreRun, c), 3)
		assert.Len(t, store.Proposals(sampling.PhaseMain, c), 3)

		mode, ok := store.Mode(sampling.PhaseMain, c)
		require.True(t, ok)
		for _, chunk := range main {
			for _, st := range chunk {
				assert.LessOrEqual(t, st.LogDensity, mode.LogDensity)
			}
		}
		_, ok = store.Mode(sampling.PhasePreRun, c)
		assert.True(t, ok)

		assert.Equal(t, 0, s.Chains()[c].History().Len(), "main run clears histories after each chunk")
	}
}

func TestSampler_PreRunHistoryIsBounded(t *testing.T) {
	box := testutil.NewBoxFixtures(1, -10, 10)
	store := testutil.NewMockStore()

	cfg := gaussianConfig()
	cfg.Chains = 2
	cfg.PreRunMin, cfg.PreRunMax, cfg.PreRunUpdate = 4000, 4000, 500
	cfg.PreRunHistory = 1500

	s, err := sampling.New(testutil.NewBimodalDensity(box, 5, 0.1), cfg, store, zerolog.Nop())
	require.NoError(t, err)
	for i, c := range s.Chains() {
		require.NoError(t, c.SetPoint([]float64{[]float64{-5, 5}[i]}))
	}

	info, err := s.PreRun(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 4000, info.Iterations)

	for c := 0; c < 2; c++ {
		assert.Equal(t, 1500, s.Chains()[c].History().Len())
		assert.Equal(t, 4000, s.Chains()[c].Statistics().Iterations)

		pre := store.Chunks(sampling.PhasePreRun, c)
		require.Len(t, pre, 8)
		for _, chunk := range pre {
			assert.Len(t, chunk, 500, "every chunk is stored in full")
		}
	}

	bad := cfg
	bad.PreRunHistory = 100
	_, err = sampling.New(testutil.NewFlatDensity(box), bad, nil, zerolog.Nop())
	assert.Error(t, err)
}

func TestSampler_SkipsMainRunWithoutConvergence(t *testing.T) {
	box := testutil.NewBoxFixtures(1, -10, 10)
	store := testutil.NewMockStore()

	cfg := gaussianConfig()
	cfg.Chains = 2
	cfg.PreRunMin, cfg.PreRunMax, cfg.PreRunUpdate = 100, 100, 100
	cfg.ForceMainRun = false

	s, err := sampling.New(testutil.NewBimodalDensity(box, 5, 0.1), cfg, store, zerolog.Nop())
	require.NoError(t, err)
	for i, c := range s.Chains() {
		require.NoError(t, c.SetPoint([]float64{[]float64{-5, 5}[i]}))
	}

	info, err := s.Run(context.Background())
	require.NoError(t, err, "not converging is not an error")
	assert.False(t, info.Converged)
	assert.Empty(t, store.Chunks(sampling.PhaseMain, 0))
	assert.Len(t, store.Chunks(sampling.PhasePreRun, 0), 1)
}

func TestSampler_LogsComponent(t *testing.T) {
	var buf bytes.Buffer
	box := testutil.NewBoxFixtures(1, 0, 1)
	_, err := sampling.New(testutil.NewFlatDensity(box), gaussianConfig(), nil, zerolog.New(&buf))
	require.NoError(t, err)
	assert.Contains(t, buf.String(), `"component":"sampler"`)
	assert.Contains(t, buf.String(), "Sampler initialized")
}

func TestSampler_Errors(t *testing.T) {
	box := testutil.NewBoxFixtures(1, 0, 1)

	bad := sampling.DefaultConfig()
	bad.Chains = 0
	_, err := sampling.New(testutil.NewFlatDensity(box), bad, nil, zerolog.Nop())
	assert.Error(t, err)

	boom := errors.New("boom")
	cfg := gaussianConfig()
	cfg.Chains = 2
	s, err := sampling.New(&testutil.FailingDensity{Box: box, After: 10, Err: boom}, cfg, nil, zerolog.Nop())
	require.NoError(t, err)
	_, err = s.PreRun(context.Background())
	assert.True(t, errors.Is(err, boom))

	store := testutil.NewMockStore()
	store.SetError(boom)
	s, err = sampling.New(testutil.NewFlatDensity(box), cfg, store, zerolog.Nop())
	require.NoError(t, err)
	_, err = s.PreRun(context.Background())
	assert.True(t, errors.Is(err, boom))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	s, err = sampling.New(testutil.NewFlatDensity(box), cfg, nil, zerolog.Nop())
	require.NoError(t, err)
	_, err = s.PreRun(ctx)
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestConfigPresets(t *testing.T) {
	d := sampling.DefaultConfig()
	assert.Equal(t, 4, d.Chains)
	assert.Equal(t, sampling.ProposalGaussian, d.Proposal)
	assert.True(t, d.StrictRValue)

	q := sampling.QuickConfig()
	assert.Equal(t, 1, q.Chains)
	assert.False(t, q.StrictRValue)
	assert.Equal(t, 400, q.PreRunUpdate)
	assert.Equal(t, 100000, q.PreRunMax)
	assert.Equal(t, 10, q.Chunks)
	assert.Equal(t, 100, q.ChunkSize)
}
