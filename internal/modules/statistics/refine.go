package statistics

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/optimize"

	"github.com/eos/eos-sub010/internal/modules/sampling"
)

// RefineConfig bounds the mode refinement
type RefineConfig struct {
	MaxEvaluations int
	SimplexSize    float64 // initial simplex size in units of the box edges
}

// DefaultRefineConfig returns the settings used after a sampler run
func DefaultRefineConfig() RefineConfig {
	return RefineConfig{MaxEvaluations: 5000, SimplexSize: 0.01}
}

// RefineMode polishes start into a local maximum of density with Nelder-Mead.
// The search runs in box coordinates scaled to [0, 1]; points outside the box
// count as +Inf. The start point is returned if no better point is found.
func RefineMode(density sampling.Density, start []float64, cfg RefineConfig) (sampling.State, error) {
	descs := density.Descriptions()
	if len(start) != len(descs) {
		return sampling.State{}, fmt.Errorf("start point has dimension %d, density has %d", len(start), len(descs))
	}

	toBox := func(u []float64, x []float64) bool {
		for i, d := range descs {
			if u[i] < 0 || u[i] > 1 {
				return false
			}
			x[i] = d.Min + u[i]*d.Range()
		}
		return true
	}

	x := make([]float64, len(descs))
	objective := func(u []float64) float64 {
		if !toBox(u, x) {
			return math.Inf(1)
		}
		v, err := density.Evaluate(x)
		if err != nil || math.IsNaN(v) {
			return math.Inf(1)
		}
		return -v
	}

	initial := make([]float64, len(descs))
	for i, d := range descs {
		if !d.Contains(start[i]) {
			return sampling.State{}, fmt.Errorf("start point outside the box in %s", d.Name)
		}
		initial[i] = (start[i] - d.Min) / d.Range()
	}
	startValue := -objective(initial)
	if math.IsInf(startValue, -1) {
		return sampling.State{}, fmt.Errorf("density vanishes at the start point")
	}

	settings := &optimize.Settings{FuncEvaluations: cfg.MaxEvaluations}
	result, err := optimize.Minimize(optimize.Problem{Func: objective}, initial, settings, &optimize.NelderMead{SimplexSize: cfg.SimplexSize})
	if err != nil && result == nil {
		return sampling.State{}, fmt.Errorf("failed to refine mode: %w", err)
	}

	best := sampling.State{Point: append([]float64(nil), start...), LogDensity: startValue}
	if result != nil && -result.F > startValue {
		point := make([]float64, len(descs))
		if toBox(result.X, point) {
			best = sampling.State{Point: point, LogDensity: -result.F}
		}
	}
	return best, nil
}
