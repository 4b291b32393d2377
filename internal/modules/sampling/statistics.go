package sampling

import "math"

// Statistics accumulates per-chain counters and running moments
type Statistics struct {
	Accepted int
	Rejected int
	Invalid  int // candidates outside the parameter box

	Iterations int
	Means      []float64
	Variances  []float64 // unbiased variance of the visited points

	MeanLogDensity     float64
	VarianceLogDensity float64

	Mode State

	m2   []float64
	m2LD float64
}

func newStatistics(d int) Statistics {
	return Statistics{
		Means:     make([]float64, d),
		Variances: make([]float64, d),
		m2:        make([]float64, d),
		Mode:      State{Point: make([]float64, d), LogDensity: math.Inf(-1)},
	}
}

// Efficiency returns the accepted fraction of all proposals
func (s *Statistics) Efficiency() float64 {
	total := s.Accepted + s.Rejected + s.Invalid
	if total == 0 {
		return 0
	}
	return float64(s.Accepted) / float64(total)
}

// observe adds the current state with Welford's update and tracks the mode
func (s *Statistics) observe(st State) {
	s.Iterations++
	n := float64(s.Iterations)
	for i, x := range st.Point {
		delta := x - s.Means[i]
		s.Means[i] += delta / n
		s.m2[i] += delta * (x - s.Means[i])
		if s.Iterations > 1 {
			s.Variances[i] = s.m2[i] / (n - 1)
		}
	}
	delta := st.LogDensity - s.MeanLogDensity
	s.MeanLogDensity += delta / n
	s.m2LD += delta * (st.LogDensity - s.MeanLogDensity)
	if s.Iterations > 1 {
		s.VarianceLogDensity = s.m2LD / (n - 1)
	}

	s.observeMode(st)
}

func (s *Statistics) observeMode(st State) {
	if st.LogDensity > s.Mode.LogDensity {
		copy(s.Mode.Point, st.Point)
		s.Mode.LogDensity = st.LogDensity
	}
}

// resetCounters zeroes acceptance counters, keeping moments and mode
func (s *Statistics) resetCounters() {
	s.Accepted, s.Rejected, s.Invalid = 0, 0, 0
}
