package statistics

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/eos/eos-sub010/internal/modules/observables"
	"github.com/eos/eos-sub010/internal/modules/parameters"
)

// Constraint types accepted in analysis files
const (
	ConstraintGaussian             = "gaussian"
	ConstraintMultivariateGaussian = "multivariate-gaussian"
)

// ObservableSpec names one observable with its kinematics and options
type ObservableSpec struct {
	Name       string             `yaml:"name"`
	Kinematics map[string]float64 `yaml:"kinematics"`
	Options    map[string]string  `yaml:"options"`
}

// ConstraintSpec is one measurement entering the likelihood
type ConstraintSpec struct {
	Name string `yaml:"name"`
	Type string `yaml:"type"`

	// gaussian: central value with asymmetric uncertainties
	Observable ObservableSpec `yaml:"observable"`
	Central    float64        `yaml:"central"`
	SigmaLower float64        `yaml:"sigma_lower"`
	SigmaUpper float64        `yaml:"sigma_upper"`

	// multivariate-gaussian: correlated measurements
	Observables []ObservableSpec `yaml:"observables"`
	Means       []float64        `yaml:"means"`
	Covariance  [][]float64      `yaml:"covariance"`
}

// block is one term of the log-likelihood, reading from the observable cache
type block interface {
	evaluate(cache *observables.ObservableCache) float64
}

type gaussianBlock struct {
	id                     int
	central                float64
	sigmaLower, sigmaUpper float64
	norm                   float64
}

func (b *gaussianBlock) evaluate(cache *observables.ObservableCache) float64 {
	x := cache.Value(b.id)
	sigma := b.sigmaLower
	if x > b.central {
		sigma = b.sigmaUpper
	}
	chi := (x - b.central) / sigma
	return b.norm - chi*chi/2
}

type multivariateBlock struct {
	ids      []int
	means    *mat.VecDense
	chol     mat.Cholesky
	norm     float64
	residual *mat.VecDense
	solved   *mat.VecDense
}

func (b *multivariateBlock) evaluate(cache *observables.ObservableCache) float64 {
	for i, id := range b.ids {
		b.residual.SetVec(i, cache.Value(id)-b.means.AtVec(i))
	}
	if err := b.chol.SolveVecTo(b.solved, b.residual); err != nil {
		return math.Inf(-1)
	}
	return b.norm - 0.5*mat.Dot(b.residual, b.solved)
}

func makeObservable(p *parameters.Parameters, o ObservableSpec, global parameters.Options) (observables.Observable, error) {
	return observables.Make(o.Name, p, parameters.NewKinematics(o.Kinematics), global.Merge(parameters.NewOptions(o.Options)))
}

// build adds the constraint's observables to cache and returns its block
func (c ConstraintSpec) build(p *parameters.Parameters, global parameters.Options, cache *observables.ObservableCache) (block, error) {
	switch c.Type {
	case ConstraintGaussian, "":
		if !(c.SigmaLower > 0 && c.SigmaUpper > 0) {
			return nil, parameters.NewConfigurationError(c.Name, fmt.Sprintf("-%g +%g", c.SigmaLower, c.SigmaUpper), "uncertainties must be positive")
		}
		obs, err := makeObservable(p, c.Observable, global)
		if err != nil {
			return nil, fmt.Errorf("constraint %s: %w", c.Name, err)
		}
		return &gaussianBlock{
			id:         cache.Add(obs),
			central:    c.Central,
			sigmaLower: c.SigmaLower,
			sigmaUpper: c.SigmaUpper,
			norm:       math.Log(math.Sqrt(2/math.Pi) / (c.SigmaLower + c.SigmaUpper)),
		}, nil

	case ConstraintMultivariateGaussian:
		k := len(c.Observables)
		if k == 0 || len(c.Means) != k || len(c.Covariance) != k {
			return nil, parameters.NewConfigurationError(c.Name, "", "observables, means and covariance must have equal length")
		}
		cov := mat.NewSymDense(k, nil)
		for i, row := range c.Covariance {
			if len(row) != k {
				return nil, parameters.NewConfigurationError(c.Name, "", "covariance must be square")
			}
			for j := i; j < k; j++ {
				if row[j] != c.Covariance[j][i] {
					return nil, parameters.NewConfigurationError(c.Name, "", "covariance must be symmetric")
				}
				cov.SetSym(i, j, row[j])
			}
		}
		b := &multivariateBlock{
			means:    mat.NewVecDense(k, append([]float64(nil), c.Means...)),
			residual: mat.NewVecDense(k, nil),
			solved:   mat.NewVecDense(k, nil),
		}
		if !b.chol.Factorize(cov) {
			return nil, parameters.NewConfigurationError(c.Name, "", "covariance is not positive definite")
		}
		b.norm = -0.5*float64(k)*math.Log(2*math.Pi) - 0.5*b.chol.LogDet()
		for _, o := range c.Observables {
			obs, err := makeObservable(p, o, global)
			if err != nil {
				return nil, fmt.Errorf("constraint %s: %w", c.Name, err)
			}
			b.ids = append(b.ids, cache.Add(obs))
		}
		return b, nil

	default:
		return nil, parameters.NewConfigurationError(c.Name, c.Type, "unknown constraint type")
	}
}
