package statistics

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eos/eos-sub010/internal/modules/parameters"
)

func analysisYAML(central float64) string {
	return fmt.Sprintf(`
name: vcb-from-br
global_options:
  model: SM
parameters:
  - name: "CKM::abs(V_cb)"
    min: 0.030
    max: 0.050
  - name: "scratch::dummy"
    value: 0.5
    min: 0
    max: 1
priors:
  - parameter: "CKM::abs(V_cb)"
    type: flat
    min: 0.030
    max: 0.050
  - parameter: "scratch::dummy"
    type: gauss
    min: 0
    max: 1
    lower: 0.4
    central: 0.5
    upper: 0.6
    nuisance: true
constraints:
  - name: "BR(B->D^*munu)"
    type: gaussian
    observable:
      name: "B->D^*lnu::BR_CP_specific"
      kinematics: { q2_min: 0.02, q2_max: 10.68 }
      options: { l: mu }
    central: %g
    sigma_lower: %g
    sigma_upper: %g
`, central, central/10, central/10)
}

func buildPosterior(t *testing.T) (*Posterior, float64) {
	t.Helper()
	br := branchingRatio(t, "mu", 0.0408)
	a, err := ParseAnalysis([]byte(analysisYAML(br)))
	require.NoError(t, err)
	post, err := a.Build(defaults(t), parameters.NewOptions(nil), zerolog.Nop())
	require.NoError(t, err)
	return post, br
}

func TestParseAnalysis(t *testing.T) {
	a, err := ParseAnalysis([]byte(analysisYAML(1e-2)))
	require.NoError(t, err)

	assert.Equal(t, "vcb-from-br", a.Name)
	assert.Equal(t, "SM", a.GlobalOptions["model"])
	require.Len(t, a.Parameters, 2)
	assert.Nil(t, a.Parameters[0].Value)
	require.NotNil(t, a.Parameters[0].Min)
	assert.Equal(t, 0.030, *a.Parameters[0].Min)

	require.Len(t, a.Priors, 2)
	assert.Equal(t, PriorGauss, a.Priors[1].Type)
	assert.True(t, a.Priors[1].Nuisance)

	require.Len(t, a.Constraints, 1)
	c := a.Constraints[0]
	assert.Equal(t, "mu", c.Observable.Options["l"])
	assert.Equal(t, 10.68, c.Observable.Kinematics["q2_max"])
	assert.InDelta(t, 1e-3, c.SigmaUpper, 1e-15)
}

func TestLoadAnalysis(t *testing.T) {
	path := filepath.Join(t.TempDir(), "analysis.yaml")
	require.NoError(t, os.WriteFile(path, []byte(analysisYAML(1e-2)), 0o644))

	a, err := LoadAnalysis(path)
	require.NoError(t, err)
	assert.Len(t, a.Priors, 2)

	_, err = LoadAnalysis(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestParseAnalysis_Invalid(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"no priors", "name: empty\n"},
		{"unknown prior type", "priors:\n  - parameter: x\n    type: cauchy\n"},
		{"duplicate prior", "priors:\n  - parameter: x\n    type: flat\n  - parameter: x\n    type: flat\n"},
		{"unnamed constraint", "priors:\n  - parameter: x\n    type: flat\nconstraints:\n  - type: gaussian\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseAnalysis([]byte(tt.doc))
			require.Error(t, err)
			assert.True(t, errors.Is(err, parameters.ErrConfiguration), "got %v", err)
		})
	}

	_, err := ParseAnalysis([]byte("priors: [unterminated"))
	assert.Error(t, err)
}

func TestBuild_Errors(t *testing.T) {
	a, err := ParseAnalysis([]byte("parameters:\n  - name: fresh\n    value: 1\npriors:\n  - parameter: fresh\n    type: flat\n    min: 0\n    max: 2\n"))
	require.NoError(t, err)
	_, err = a.Build(defaults(t), parameters.NewOptions(nil), zerolog.Nop())
	assert.True(t, errors.Is(err, parameters.ErrConfiguration), "new parameters need a range")

	a, err = ParseAnalysis([]byte("priors:\n  - parameter: unknown::x\n    type: flat\n    min: 0\n    max: 2\n"))
	require.NoError(t, err)
	_, err = a.Build(defaults(t), parameters.NewOptions(nil), zerolog.Nop())
	assert.True(t, errors.Is(err, parameters.ErrConfiguration), "priors need declared parameters")
}

func TestBuild_DoesNotTouchBase(t *testing.T) {
	base := defaults(t)
	br := branchingRatio(t, "mu", 0.0408)
	a, err := ParseAnalysis([]byte(analysisYAML(br)))
	require.NoError(t, err)
	post, err := a.Build(base, parameters.NewOptions(nil), zerolog.Nop())
	require.NoError(t, err)

	assert.False(t, base.Has("scratch::dummy"))
	min, max, err := base.Range("CKM::abs(V_cb)")
	require.NoError(t, err)
	assert.Equal(t, [2]float64{0.0380, 0.0440}, [2]float64{min, max})

	min, max, err = post.Parameters().Range("CKM::abs(V_cb)")
	require.NoError(t, err)
	assert.Equal(t, [2]float64{0.030, 0.050}, [2]float64{min, max})
}

func TestPosterior_Evaluate(t *testing.T) {
	post, br := buildPosterior(t)
	require.Equal(t, 2, post.Dimension())

	descs := post.Descriptions()
	assert.Equal(t, "CKM::abs(V_cb)", descs[0].Name)
	assert.False(t, descs[0].Nuisance)
	assert.Equal(t, "scratch::dummy", descs[1].Name)
	assert.True(t, descs[1].Nuisance)

	got, err := post.Evaluate([]float64{0.0408, 0.5})
	require.NoError(t, err)

	sigma := br / 10
	flat := -math.Log(0.020)
	gauss := post.Priors()[1].Evaluate() // prior at its centre
	likelihood := math.Log(math.Sqrt(2/math.Pi) / (2 * sigma))
	assert.InDelta(t, flat+gauss+likelihood, got, 1e-9*math.Abs(got))

	// the likelihood falls off with |V_cb|^2 scaling of the branching ratio
	off, err := post.Evaluate([]float64{0.0440, 0.5})
	require.NoError(t, err)
	moved := br * (0.0440 / 0.0408) * (0.0440 / 0.0408)
	chi := (moved - br) / sigma
	assert.InDelta(t, got-chi*chi/2, off, 1e-6*math.Abs(off))

	out, err := post.Evaluate([]float64{0.0600, 0.5})
	require.NoError(t, err)
	assert.True(t, math.IsInf(out, -1))

	_, err = post.Evaluate([]float64{0.0408})
	assert.Error(t, err)
}

func TestPosterior_CloneIsIndependent(t *testing.T) {
	post, _ := buildPosterior(t)
	want, err := post.Evaluate([]float64{0.0408, 0.5})
	require.NoError(t, err)

	d, err := post.Clone()
	require.NoError(t, err)
	c := d.(*Posterior)
	assert.NotSame(t, post.Parameters(), c.Parameters())

	_, err = c.Evaluate([]float64{0.0350, 0.45})
	require.NoError(t, err)

	v, err := post.Parameters().Get("CKM::abs(V_cb)")
	require.NoError(t, err)
	assert.Equal(t, 0.0408, v)

	again, err := c.Evaluate([]float64{0.0408, 0.5})
	require.NoError(t, err)
	assert.InDelta(t, want, again, 1e-12*math.Abs(want))
}

func TestPosterior_SamplePrior(t *testing.T) {
	post, _ := buildPosterior(t)
	rng := rand.New(rand.NewPCG(42, 1))
	for i := 0; i < 500; i++ {
		x := post.SamplePrior(rng)
		require.Len(t, x, 2)
		for j, d := range post.Descriptions() {
			assert.True(t, d.Contains(x[j]))
		}
	}
}

func TestNewPosterior_Errors(t *testing.T) {
	p := scratchParameters()
	_, err := NewPosterior(p, nil, nil, zerolog.Nop())
	assert.True(t, errors.Is(err, parameters.ErrConfiguration))

	a, err := NewFlat(p, "x", 0, 1)
	require.NoError(t, err)
	b, err := NewFlat(p, "x", 0, 2)
	require.NoError(t, err)
	_, err = NewPosterior(p, []LogPrior{a, b}, nil, zerolog.Nop())
	assert.True(t, errors.Is(err, parameters.ErrConfiguration))
}

func TestPosterior_PriorOnly(t *testing.T) {
	p := scratchParameters()
	x, err := NewFlat(p, "x", -1, 1)
	require.NoError(t, err)
	y, err := NewGauss(p, "y", -10, 10, -1, 0, 1)
	require.NoError(t, err)
	post, err := NewPosterior(p, []LogPrior{x, y}, nil, zerolog.Nop())
	require.NoError(t, err)

	got, err := post.Evaluate([]float64{0.2, 0})
	require.NoError(t, err)
	assert.InDelta(t, -math.Log(2)-0.5*math.Log(2*math.Pi), got, 1e-9)
	assert.InDelta(t, got, post.LogPrior(), 1e-15)
}
