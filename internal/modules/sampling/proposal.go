package sampling

import (
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"
)

const (
	minScale     = 1e-4
	maxScale     = 100.0
	scaleFactor  = 1.5
	optimalScale = 2.38 * 2.38
)

// Proposal draws candidates around the current point
type Proposal interface {
	Propose(rng *rand.Rand, current, candidate []float64)
	// LogRatio returns log q(current|candidate) - log q(candidate|current)
	LogRatio(current, candidate []float64) float64
	Adapt(states []State, efficiency, minEfficiency, maxEfficiency float64) error
	State() ProposalState
	Clone() Proposal
}

// ProposalState is the persisted form of a proposal
type ProposalState struct {
	Kind        string    `msgpack:"kind"`
	Dimension   int       `msgpack:"dimension"`
	Covariance  []float64 `msgpack:"covariance"` // row-major, unscaled
	Scale       float64   `msgpack:"scale"`
	Adaptations int       `msgpack:"adaptations"`
	DOF         float64   `msgpack:"dof,omitempty"`
}

// randomWalk is a symmetric proposal x' = x + s^(1/2) L z, with L L^T = covariance
type randomWalk struct {
	kind        string
	covariance  *mat.SymDense
	scale       float64
	adaptations int
	lower       *mat.TriDense
	z           []float64

	dof float64 // Student-t degrees of freedom, 0 for a Gaussian
}

// NewProposal creates a proposal of the named kind. The covariance is copied.
func NewProposal(kind string, covariance mat.Symmetric, dof float64) (Proposal, error) {
	d := covariance.SymmetricDim()
	rw := &randomWalk{
		kind:       kind,
		covariance: mat.NewSymDense(d, nil),
		scale:      optimalScale / float64(d),
		z:          make([]float64, d),
	}
	rw.covariance.CopySym(covariance)
	switch kind {
	case ProposalGaussian:
	case ProposalStudentT:
		if !(dof > 0) {
			return nil, newDomainError("proposal", -1, "Student-t degrees of freedom must be positive, got %g", dof)
		}
		rw.dof = dof
	default:
		return nil, newDomainError("proposal", -1, "unknown proposal %q", kind)
	}
	if err := rw.factorize(); err != nil {
		return nil, err
	}
	return rw, nil
}

// RestoreProposal rebuilds a proposal from its persisted state
func RestoreProposal(s ProposalState) (Proposal, error) {
	if s.Dimension <= 0 || len(s.Covariance) != s.Dimension*s.Dimension {
		return nil, newDomainError("proposal", -1, "covariance of length %d does not match dimension %d", len(s.Covariance), s.Dimension)
	}
	cov := mat.NewSymDense(s.Dimension, append([]float64(nil), s.Covariance...))
	p, err := NewProposal(s.Kind, cov, s.DOF)
	if err != nil {
		return nil, err
	}
	rw := p.(*randomWalk)
	rw.scale = s.Scale
	rw.adaptations = s.Adaptations
	if err := rw.factorize(); err != nil {
		return nil, err
	}
	return rw, nil
}

// DiagonalCovariance returns the variance of a uniform distribution over each range
func DiagonalCovariance(descriptions []ParameterDescription) *mat.SymDense {
	cov := mat.NewSymDense(len(descriptions), nil)
	for i, d := range descriptions {
		r := d.Range()
		cov.SetSym(i, i, r*r/12)
	}
	return cov
}

// factorize computes the Cholesky factor of the scaled covariance and falls
// back to its diagonal
func (rw *randomWalk) factorize() error {
	d := rw.covariance.SymmetricDim()
	scaled := mat.NewSymDense(d, nil)
	scaled.ScaleSym(rw.scale, rw.covariance)

	var chol mat.Cholesky
	if chol.Factorize(scaled) {
		rw.lower = mat.NewTriDense(d, mat.Lower, nil)
		chol.LTo(rw.lower)
		return nil
	}

	diag := mat.NewSymDense(d, nil)
	for i := 0; i < d; i++ {
		diag.SetSym(i, i, rw.covariance.At(i, i))
	}
	diagScaled := mat.NewSymDense(d, nil)
	diagScaled.ScaleSym(rw.scale, diag)
	if !chol.Factorize(diagScaled) {
		return newDomainError("proposal", -1, "covariance is not positive definite")
	}
	rw.covariance = diag
	rw.lower = mat.NewTriDense(d, mat.Lower, nil)
	chol.LTo(rw.lower)
	return nil
}

func (rw *randomWalk) Propose(rng *rand.Rand, current, candidate []float64) {
	for i := range rw.z {
		rw.z[i] = rng.NormFloat64()
	}
	factor := 1.0
	if rw.dof > 0 {
		chi2 := distuv.ChiSquared{K: rw.dof, Src: rng}.Rand()
		factor = math.Sqrt(rw.dof / chi2)
	}
	d := len(rw.z)
	for i := 0; i < d; i++ {
		step := 0.0
		for j := 0; j <= i; j++ {
			step += rw.lower.At(i, j) * rw.z[j]
		}
		candidate[i] = current[i] + factor*step
	}
}

func (rw *randomWalk) LogRatio(_, _ []float64) float64 {
	return 0
}

// Adapt blends the chunk covariance into the proposal with weight
// 1/sqrt(n+1) and rescales towards the efficiency band
func (rw *randomWalk) Adapt(states []State, efficiency, minEfficiency, maxEfficiency float64) error {
	d := rw.covariance.SymmetricDim()
	rw.adaptations++

	if len(states) > d {
		_, sample, err := sampleMoments(states)
		if err != nil {
			return err
		}
		w := 1 / math.Sqrt(float64(rw.adaptations+1))
		blended := mat.NewSymDense(d, nil)
		blended.ScaleSym(1-w, rw.covariance)
		sample.ScaleSym(w, sample)
		blended.AddSym(blended, sample)
		rw.covariance = blended
	}

	switch {
	case efficiency > maxEfficiency:
		rw.scale = math.Min(rw.scale*scaleFactor, maxScale)
	case efficiency < minEfficiency:
		rw.scale = math.Max(rw.scale/scaleFactor, minScale)
	}
	return rw.factorize()
}

func (rw *randomWalk) State() ProposalState {
	d := rw.covariance.SymmetricDim()
	cov := make([]float64, 0, d*d)
	for i := 0; i < d; i++ {
		for j := 0; j < d; j++ {
			cov = append(cov, rw.covariance.At(i, j))
		}
	}
	return ProposalState{
		Kind:        rw.kind,
		Dimension:   d,
		Covariance:  cov,
		Scale:       rw.scale,
		Adaptations: rw.adaptations,
		DOF:         rw.dof,
	}
}

func (rw *randomWalk) Clone() Proposal {
	d := rw.covariance.SymmetricDim()
	c := &randomWalk{
		kind:        rw.kind,
		covariance:  mat.NewSymDense(d, nil),
		scale:       rw.scale,
		adaptations: rw.adaptations,
		lower:       mat.NewTriDense(d, mat.Lower, nil),
		z:           make([]float64, d),
		dof:         rw.dof,
	}
	c.covariance.CopySym(rw.covariance)
	c.lower.Copy(rw.lower)
	return c
}
