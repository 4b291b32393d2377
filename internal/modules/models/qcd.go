package models

import (
	"fmt"
	"math"
	"sort"

	"github.com/eos/eos-sub010/internal/modules/parameters"
)

// qcd runs alpha_s and MSbar masses at one loop across the flavour thresholds
type qcd struct {
	alphaSZ *parameters.Handle
	mZ      *parameters.Handle
	muT     *parameters.Handle
	muB     *parameters.Handle
	muC     *parameters.Handle

	mB *parameters.Handle
	mC *parameters.Handle
	mS *parameters.Handle
	mU *parameters.Handle
	mD *parameters.Handle
}

// lightQuarkScale is the reference scale of the u, d, s masses
const lightQuarkScale = 2.0

func newQCD(r *parameters.Reader) *qcd {
	return &qcd{
		alphaSZ: r.Handle("QCD::alpha_s(MZ)"),
		mZ:      r.Handle("mass::Z"),
		muT:     r.Handle("QCD::mu_t"),
		muB:     r.Handle("QCD::mu_b"),
		muC:     r.Handle("QCD::mu_c"),
		mB:      r.Handle("mass::b(MSbar)"),
		mC:      r.Handle("mass::c"),
		mS:      r.Handle("mass::s(2GeV)"),
		mU:      r.Handle("mass::u(2GeV)"),
		mD:      r.Handle("mass::d(2GeV)"),
	}
}

func beta0(nf int) float64 {
	return 11.0 - 2.0*float64(nf)/3.0
}

// flavours returns the number of active flavours at mu
func (q *qcd) flavours(mu float64) int {
	switch {
	case mu < q.muC.Value():
		return 3
	case mu < q.muB.Value():
		return 4
	case mu < q.muT.Value():
		return 5
	default:
		return 6
	}
}

// path returns the scales visited when running from mu0 to mu, thresholds included
func (q *qcd) path(mu0, mu float64) []float64 {
	points := []float64{mu0}
	lo, hi := math.Min(mu0, mu), math.Max(mu0, mu)
	var crossed []float64
	for _, t := range []float64{q.muC.Value(), q.muB.Value(), q.muT.Value()} {
		if t > lo && t < hi {
			crossed = append(crossed, t)
		}
	}
	sort.Float64s(crossed)
	if mu < mu0 {
		sort.Sort(sort.Reverse(sort.Float64Slice(crossed)))
	}
	points = append(points, crossed...)
	return append(points, mu)
}

func runOneLoop(alpha, from, to float64, nf int) float64 {
	return alpha / (1.0 + alpha*beta0(nf)/(4.0*math.Pi)*math.Log(to*to/(from*from)))
}

// alphaS evolves alpha_s(M_Z) to mu
func (q *qcd) alphaS(mu float64) (float64, error) {
	if mu <= 0 || math.IsNaN(mu) {
		return 0, fmt.Errorf("alpha_s: invalid scale %g", mu)
	}
	alpha := q.alphaSZ.Value()
	pts := q.path(q.mZ.Value(), mu)
	for i := 0; i+1 < len(pts); i++ {
		from, to := pts[i], pts[i+1]
		alpha = runOneLoop(alpha, from, to, q.flavours(math.Sqrt(from*to)))
		if alpha <= 0 || math.IsInf(alpha, 0) || math.IsNaN(alpha) {
			return 0, fmt.Errorf("alpha_s: non-perturbative at scale %g", mu)
		}
	}
	return alpha, nil
}

// msbarMass runs the MSbar mass of q from its reference scale to mu at leading order
func (q *qcd) msbarMass(flavor QuarkFlavor, mu float64) (float64, error) {
	var m0, mu0 float64
	switch flavor {
	case Bottom:
		m0 = q.mB.Value()
		mu0 = m0
	case Charm:
		m0 = q.mC.Value()
		mu0 = m0
	case Strange:
		m0, mu0 = q.mS.Value(), lightQuarkScale
	case Up:
		m0, mu0 = q.mU.Value(), lightQuarkScale
	case Down:
		m0, mu0 = q.mD.Value(), lightQuarkScale
	default:
		return 0, parameters.NewConfigurationError("q", flavor.String(), "no MSbar mass")
	}

	m := m0
	pts := q.path(mu0, mu)
	for i := 0; i+1 < len(pts); i++ {
		from, to := pts[i], pts[i+1]
		nf := q.flavours(math.Sqrt(from * to))
		aFrom, err := q.alphaS(from)
		if err != nil {
			return 0, err
		}
		aTo, err := q.alphaS(to)
		if err != nil {
			return 0, err
		}
		m *= math.Pow(aTo/aFrom, 4.0/beta0(nf))
	}
	return m, nil
}
