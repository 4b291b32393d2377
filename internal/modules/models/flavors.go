// Package models provides the effective couplings, running quark masses,
// strong coupling and CKM elements consumed by the amplitude generators.
package models

import (
	"math/cmplx"

	"github.com/eos/eos-sub010/internal/modules/parameters"
)

// QuarkFlavor identifies a quark
type QuarkFlavor int

const (
	Up QuarkFlavor = iota
	Down
	Strange
	Charm
	Bottom
)

var quarkNames = map[QuarkFlavor]string{
	Up: "u", Down: "d", Strange: "s", Charm: "c", Bottom: "b",
}

func (q QuarkFlavor) String() string {
	return quarkNames[q]
}

// ParseQuarkFlavor reads the one-letter option form
func ParseQuarkFlavor(s string) (QuarkFlavor, error) {
	for q, name := range quarkNames {
		if name == s {
			return q, nil
		}
	}
	return 0, parameters.NewConfigurationError("q", s, "unknown quark flavor")
}

// LeptonFlavor identifies a charged lepton
type LeptonFlavor int

const (
	Electron LeptonFlavor = iota
	Muon
	Tau
)

var leptonNames = map[LeptonFlavor]string{
	Electron: "e", Muon: "mu", Tau: "tau",
}

func (l LeptonFlavor) String() string {
	return leptonNames[l]
}

// ParseLeptonFlavor reads the option form (e, mu, tau)
func ParseLeptonFlavor(s string) (LeptonFlavor, error) {
	for l, name := range leptonNames {
		if name == s {
			return l, nil
		}
	}
	return 0, parameters.NewConfigurationError("l", s, "unknown lepton flavor")
}

// Sector returns the parameter prefix of the b -> U l nu operators, e.g. "cbmunumu"
func Sector(u QuarkFlavor, l LeptonFlavor) string {
	return u.String() + "b" + l.String() + "nu" + l.String()
}

// ChargedCurrent holds the couplings of the b -> U l nu effective operators
type ChargedCurrent struct {
	CVL complex128
	CVR complex128
	CSL complex128
	CSR complex128
	CT  complex128
}

// Conjugate returns the CP-conjugated couplings
func (c ChargedCurrent) Conjugate() ChargedCurrent {
	return ChargedCurrent{
		CVL: cmplx.Conj(c.CVL),
		CVR: cmplx.Conj(c.CVR),
		CSL: cmplx.Conj(c.CSL),
		CSR: cmplx.Conj(c.CSR),
		CT:  cmplx.Conj(c.CT),
	}
}
