package sampling

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// State is one point of a chain with its log-density
type State struct {
	Point      []float64 `msgpack:"point"`
	LogDensity float64   `msgpack:"log_density"`
}

// Clone returns a copy that does not share the point slice
func (s State) Clone() State {
	return State{Point: append([]float64(nil), s.Point...), LogDensity: s.LogDensity}
}

// History is the ordered list of states visited by a chain
type History struct {
	States []State
}

// Len returns the number of states
func (h *History) Len() int {
	return len(h.States)
}

// Append stores a copy of s
func (h *History) Append(s State) {
	h.States = append(h.States, s.Clone())
}

// Clear drops every state
func (h *History) Clear() {
	h.States = h.States[:0]
}

// Trim keeps the last n states
func (h *History) Trim(n int) {
	if n < 0 || len(h.States) <= n {
		return
	}
	h.States = append(h.States[:0], h.States[len(h.States)-n:]...)
}

func (h *History) window(from, to int) ([]State, error) {
	if from < 0 || to > len(h.States) || from >= to {
		return nil, fmt.Errorf("invalid history window [%d, %d) of %d states", from, to, len(h.States))
	}
	return h.States[from:to], nil
}

func column(states []State, i int) []float64 {
	col := make([]float64, len(states))
	for k, s := range states {
		col[k] = s.Point[i]
	}
	return col
}

// MeanAndVariance returns the per-dimension mean and unbiased variance over [from, to)
func (h *History) MeanAndVariance(from, to int) ([]float64, []float64, error) {
	states, err := h.window(from, to)
	if err != nil {
		return nil, nil, err
	}
	d := len(states[0].Point)
	means := make([]float64, d)
	variances := make([]float64, d)
	for i := 0; i < d; i++ {
		means[i], variances[i] = stat.MeanVariance(column(states, i), nil)
		if len(states) < 2 {
			variances[i] = 0
		}
	}
	return means, variances, nil
}

// MeanAndCovariance returns the mean and unbiased sample covariance over [from, to)
func (h *History) MeanAndCovariance(from, to int) ([]float64, *mat.SymDense, error) {
	states, err := h.window(from, to)
	if err != nil {
		return nil, nil, err
	}
	return sampleMoments(states)
}

// LocalMode returns the state with the highest log-density in [from, to)
func (h *History) LocalMode(from, to int) (State, error) {
	states, err := h.window(from, to)
	if err != nil {
		return State{}, err
	}
	best := states[0]
	for _, s := range states[1:] {
		if s.LogDensity > best.LogDensity {
			best = s
		}
	}
	return best.Clone(), nil
}

func sampleMoments(states []State) ([]float64, *mat.SymDense, error) {
	n := len(states)
	d := len(states[0].Point)
	data := mat.NewDense(n, d, nil)
	for k, s := range states {
		data.SetRow(k, s.Point)
	}
	means := make([]float64, d)
	for i := 0; i < d; i++ {
		means[i] = stat.Mean(mat.Col(nil, i, data), nil)
	}
	cov := mat.NewSymDense(d, nil)
	if n < 2 {
		return means, cov, nil
	}
	stat.CovarianceMatrix(cov, data, nil)
	for i := 0; i < d; i++ {
		if math.IsNaN(cov.At(i, i)) {
			return nil, nil, newDomainError("covariance", -1, "non-finite sample variance in dimension %d", i)
		}
	}
	return means, cov, nil
}
