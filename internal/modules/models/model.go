package models

import (
	"fmt"
	"math/cmplx"

	"github.com/eos/eos-sub010/internal/modules/parameters"
)

// Model supplies the short-distance inputs of the b -> U l nu decays
type Model interface {
	// Name returns the model name as used in the "model" option
	Name() string

	// ChargedCurrent returns the couplings for the b -> u l nu sector.
	// cp selects the CP-conjugated process.
	ChargedCurrent(u QuarkFlavor, l LeptonFlavor, cp bool) (ChargedCurrent, error)

	// AlphaS returns the strong coupling at scale mu
	AlphaS(mu float64) (float64, error)

	// MSbarMass returns the running quark mass at scale mu
	MSbarMass(q QuarkFlavor, mu float64) (float64, error)

	// CKM returns V_ub (u = Up) or V_cb (u = Charm)
	CKM(u QuarkFlavor) (complex128, error)
}

// Names of the available models
const (
	ModelSM  = "SM"
	ModelCKM = "CKM"
	ModelWET = "WET"
)

// electroweakCorrection is the Sirlin factor eta_EW multiplying cVL in the SM
const electroweakCorrection = 1.0066

// Make builds the model named by the "model" option (default SM).
// Every parameter the model reads is registered under user.
func Make(p *parameters.Parameters, o parameters.Options, user string) (Model, error) {
	name, err := o.Restrict("model", []string{ModelSM, ModelCKM, ModelWET}, ModelSM)
	if err != nil {
		return nil, err
	}
	switch name {
	case ModelWET:
		return NewWET(p, user)
	case ModelCKM:
		return NewCKMScan(p, user)
	default:
		return NewStandardModel(p, user)
	}
}

type ckmElement struct {
	abs *parameters.Handle
	arg *parameters.Handle
}

func (e ckmElement) value() complex128 {
	return cmplx.Rect(e.abs.Value(), e.arg.Value())
}

// StandardModel has cVL = eta_EW and vanishing non-standard couplings
type StandardModel struct {
	qcd *qcd
	vcb ckmElement
	vub ckmElement
}

// NewStandardModel resolves the QCD, quark mass and CKM parameters
func NewStandardModel(p *parameters.Parameters, user string) (*StandardModel, error) {
	r := parameters.NewReader(p, user)
	m := &StandardModel{
		qcd: newQCD(r),
		vcb: ckmElement{abs: r.Handle("CKM::abs(V_cb)"), arg: r.Handle("CKM::arg(V_cb)")},
		vub: ckmElement{abs: r.Handle("CKM::abs(V_ub)"), arg: r.Handle("CKM::arg(V_ub)")},
	}
	if err := r.Err(); err != nil {
		return nil, fmt.Errorf("standard model: %w", err)
	}
	return m, nil
}

func (m *StandardModel) Name() string { return ModelSM }

// CKMScan is the standard model with the CKM elements taken as free
// parameters, for fits that extract |V_cb| or |V_ub|
type CKMScan struct {
	*StandardModel
}

func NewCKMScan(p *parameters.Parameters, user string) (*CKMScan, error) {
	sm, err := NewStandardModel(p, user)
	if err != nil {
		return nil, err
	}
	return &CKMScan{StandardModel: sm}, nil
}

func (m *CKMScan) Name() string { return ModelCKM }

func checkSector(u QuarkFlavor, l LeptonFlavor) error {
	if u != Up && u != Charm {
		return parameters.NewConfigurationError("U", u.String(), "charged currents exist for U = u or c only")
	}
	if _, ok := leptonNames[l]; !ok {
		return parameters.NewConfigurationError("l", fmt.Sprint(int(l)), "unknown lepton flavor")
	}
	return nil
}

func (m *StandardModel) ChargedCurrent(u QuarkFlavor, l LeptonFlavor, cp bool) (ChargedCurrent, error) {
	if err := checkSector(u, l); err != nil {
		return ChargedCurrent{}, err
	}
	return ChargedCurrent{CVL: complex(electroweakCorrection, 0)}, nil
}

func (m *StandardModel) AlphaS(mu float64) (float64, error) {
	return m.qcd.alphaS(mu)
}

func (m *StandardModel) MSbarMass(q QuarkFlavor, mu float64) (float64, error) {
	return m.qcd.msbarMass(q, mu)
}

func (m *StandardModel) CKM(u QuarkFlavor) (complex128, error) {
	switch u {
	case Charm:
		return m.vcb.value(), nil
	case Up:
		return m.vub.value(), nil
	}
	return 0, parameters.NewConfigurationError("U", u.String(), "no CKM element V_Ub")
}

type couplingHandles struct {
	re [5]*parameters.Handle
	im [5]*parameters.Handle
}

var couplingNames = [5]string{"cVL", "cVR", "cSL", "cSR", "cT"}

func (h couplingHandles) value(i int) complex128 {
	return complex(h.re[i].Value(), h.im[i].Value())
}

// WET reads the b -> U l nu couplings from the parameter set and shares
// QCD and CKM inputs with the Standard Model
type WET struct {
	*StandardModel
	sectors map[string]couplingHandles
}

// NewWET resolves the couplings of every b -> U l nu sector
func NewWET(p *parameters.Parameters, user string) (*WET, error) {
	sm, err := NewStandardModel(p, user)
	if err != nil {
		return nil, err
	}
	w := &WET{StandardModel: sm, sectors: make(map[string]couplingHandles)}
	r := parameters.NewReader(p, user)
	for _, u := range []QuarkFlavor{Up, Charm} {
		for _, l := range []LeptonFlavor{Electron, Muon, Tau} {
			sector := Sector(u, l)
			var h couplingHandles
			for i, c := range couplingNames {
				h.re[i] = r.Handle(fmt.Sprintf("%s::Re{%s}", sector, c))
				h.im[i] = r.Handle(fmt.Sprintf("%s::Im{%s}", sector, c))
			}
			w.sectors[sector] = h
		}
	}
	if err := r.Err(); err != nil {
		return nil, fmt.Errorf("weak effective theory: %w", err)
	}
	return w, nil
}

func (w *WET) Name() string { return ModelWET }

func (w *WET) ChargedCurrent(u QuarkFlavor, l LeptonFlavor, cp bool) (ChargedCurrent, error) {
	if err := checkSector(u, l); err != nil {
		return ChargedCurrent{}, err
	}
	h := w.sectors[Sector(u, l)]
	cc := ChargedCurrent{
		CVL: h.value(0),
		CVR: h.value(1),
		CSL: h.value(2),
		CSR: h.value(3),
		CT:  h.value(4),
	}
	if cp {
		cc = cc.Conjugate()
	}
	return cc, nil
}
