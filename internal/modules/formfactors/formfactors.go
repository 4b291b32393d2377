// Package formfactors provides hadronic transition form factors and a
// factory resolving them by "<process>::<parametrisation>" names.
package formfactors

import (
	"fmt"
	"sort"
	"strings"

	"github.com/eos/eos-sub010/internal/modules/parameters"
)

// PToV holds the form factors of a pseudoscalar to vector transition
type PToV interface {
	V(s float64) float64
	A0(s float64) float64
	A1(s float64) float64
	A2(s float64) float64
	A12(s float64) float64
	T1(s float64) float64
	T2(s float64) float64
	T3(s float64) float64
	T23(s float64) float64
}

// PToP holds the form factors of a pseudoscalar to pseudoscalar transition
type PToP interface {
	FPlus(s float64) float64
	FZero(s float64) float64
	FT(s float64) float64
}

type pToVMaker func(process string, p *parameters.Parameters, o parameters.Options, user string) (PToV, error)
type pToPMaker func(process string, p *parameters.Parameters, o parameters.Options, user string) (PToP, error)

var (
	pToVRegistry = map[string]pToVMaker{}
	pToPRegistry = map[string]pToPMaker{}
)

func init() {
	for _, process := range []string{"B->D^*", "B_s->D_s^*", "B->rho", "B->omega", "B_s->K^*"} {
		pToVRegistry[process+"::BSZ2015"] = newBSZ2015PToV
	}
	for _, process := range []string{"B->D", "B_s->D_s", "B->pi", "B_s->K"} {
		pToPRegistry[process+"::BSZ2015"] = newBSZ2015PToP
	}
	for _, process := range []string{"B->D^*", "B_s->D_s^*"} {
		pToVRegistry[process+"::BGJvD2019"] = newHQETPToV
	}
	for _, process := range []string{"B->D", "B_s->D_s"} {
		pToPRegistry[process+"::BGJvD2019"] = newHQETPToP
	}
}

func splitName(name string) (string, string, error) {
	i := strings.LastIndex(name, "::")
	if i <= 0 || i+2 >= len(name) {
		return "", "", parameters.NewConfigurationError("form-factors", name, "expected <process>::<parametrisation>")
	}
	return name[:i], name[i+2:], nil
}

// NewPToV creates the P -> V form factors registered under name,
// e.g. "B->D^*::BSZ2015"
func NewPToV(name string, p *parameters.Parameters, o parameters.Options, user string) (PToV, error) {
	process, _, err := splitName(name)
	if err != nil {
		return nil, err
	}
	ctor, ok := pToVRegistry[name]
	if !ok {
		return nil, parameters.NewConfigurationError("form-factors", name,
			fmt.Sprintf("unknown P->V form factors, known are %s", strings.Join(PToVNames(), ", ")))
	}
	return ctor(process, p, o, user)
}

// NewPToP creates the P -> P form factors registered under name,
// e.g. "B->D::BSZ2015"
func NewPToP(name string, p *parameters.Parameters, o parameters.Options, user string) (PToP, error) {
	process, _, err := splitName(name)
	if err != nil {
		return nil, err
	}
	ctor, ok := pToPRegistry[name]
	if !ok {
		return nil, parameters.NewConfigurationError("form-factors", name,
			fmt.Sprintf("unknown P->P form factors, known are %s", strings.Join(PToPNames(), ", ")))
	}
	return ctor(process, p, o, user)
}

// PToVNames lists the registered P -> V names
func PToVNames() []string {
	out := make([]string, 0, len(pToVRegistry))
	for k := range pToVRegistry {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// PToPNames lists the registered P -> P names
func PToPNames() []string {
	out := make([]string, 0, len(pToPRegistry))
	for k := range pToPRegistry {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
