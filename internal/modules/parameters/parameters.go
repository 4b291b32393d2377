// Package parameters holds the named numeric inputs of every calculation.
//
// A Parameters set is mutated by the sampler and read by amplitude generators
// through handles. Consumers register which parameters they read, once, at
// construction. Chains never share a live set; each works on its own Clone.
package parameters

import (
	"fmt"
	"sort"
)

type entry struct {
	name  string
	value float64
	min   float64
	max   float64
}

// Parameters is an ordered collection of named real values with ranges
type Parameters struct {
	entries []*entry
	index   map[string]int
	users   map[string]map[string]struct{} // parameter -> users
	version uint64
}

// New returns an empty parameter set
func New() *Parameters {
	return &Parameters{
		index: make(map[string]int),
		users: make(map[string]map[string]struct{}),
	}
}

// Declare adds a parameter or replaces the value and range of an existing one
func (p *Parameters) Declare(name string, value, min, max float64) {
	if i, ok := p.index[name]; ok {
		e := p.entries[i]
		e.value, e.min, e.max = value, min, max
		p.version++
		return
	}
	p.index[name] = len(p.entries)
	p.entries = append(p.entries, &entry{name: name, value: value, min: min, max: max})
	p.version++
}

func (p *Parameters) lookup(name string) (*entry, error) {
	i, ok := p.index[name]
	if !ok {
		return nil, NewConfigurationError(name, "", "unknown parameter")
	}
	return p.entries[i], nil
}

// Get returns the current value of a parameter
func (p *Parameters) Get(name string) (float64, error) {
	e, err := p.lookup(name)
	if err != nil {
		return 0, err
	}
	return e.value, nil
}

// Set changes the current value of a parameter and bumps the version
func (p *Parameters) Set(name string, value float64) error {
	e, err := p.lookup(name)
	if err != nil {
		return err
	}
	e.value = value
	p.version++
	return nil
}

// Range returns the declared [min, max] of a parameter
func (p *Parameters) Range(name string) (float64, float64, error) {
	e, err := p.lookup(name)
	if err != nil {
		return 0, 0, err
	}
	return e.min, e.max, nil
}

// Has reports whether the parameter is declared
func (p *Parameters) Has(name string) bool {
	_, ok := p.index[name]
	return ok
}

// Names returns parameter names in declaration order
func (p *Parameters) Names() []string {
	names := make([]string, len(p.entries))
	for i, e := range p.entries {
		names[i] = e.name
	}
	return names
}

// Len returns the number of declared parameters
func (p *Parameters) Len() int {
	return len(p.entries)
}

// Version increases with every successful Set or Declare
func (p *Parameters) Version() uint64 {
	return p.version
}

// Handle returns a read handle bound to this set
func (p *Parameters) Handle(name string) (*Handle, error) {
	e, err := p.lookup(name)
	if err != nil {
		return nil, err
	}
	return &Handle{entry: e, owner: p}, nil
}

// Uses records that user reads the named parameter
func (p *Parameters) Uses(user, name string) error {
	if !p.Has(name) {
		return NewConfigurationError(name, "", fmt.Sprintf("unknown parameter used by %s", user))
	}
	set, ok := p.users[name]
	if !ok {
		set = make(map[string]struct{})
		p.users[name] = set
	}
	set[user] = struct{}{}
	return nil
}

// UsersOf returns the sorted users registered for a parameter
func (p *Parameters) UsersOf(name string) []string {
	out := make([]string, 0, len(p.users[name]))
	for u := range p.users[name] {
		out = append(out, u)
	}
	sort.Strings(out)
	return out
}

// UsedBy returns the sorted parameter names registered by a user
func (p *Parameters) UsedBy(user string) []string {
	var out []string
	for name, set := range p.users {
		if _, ok := set[user]; ok {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

// Clone returns a deep, independent copy of values, ranges and the used-by registry
func (p *Parameters) Clone() *Parameters {
	c := &Parameters{
		entries: make([]*entry, len(p.entries)),
		index:   make(map[string]int, len(p.index)),
		users:   make(map[string]map[string]struct{}, len(p.users)),
		version: p.version,
	}
	for i, e := range p.entries {
		cp := *e
		c.entries[i] = &cp
	}
	for k, v := range p.index {
		c.index[k] = v
	}
	for name, set := range p.users {
		cs := make(map[string]struct{}, len(set))
		for u := range set {
			cs[u] = struct{}{}
		}
		c.users[name] = cs
	}
	return c
}

// Handle is a cheap read/write accessor for a single parameter
type Handle struct {
	entry *entry
	owner *Parameters
}

// Value returns the current value
func (h *Handle) Value() float64 {
	return h.entry.value
}

// Name returns the parameter name
func (h *Handle) Name() string {
	return h.entry.name
}

// Set changes the value through the owning set so that its version advances
func (h *Handle) Set(value float64) {
	h.entry.value = value
	h.owner.version++
}

// Min returns the lower end of the declared range
func (h *Handle) Min() float64 {
	return h.entry.min
}

// Max returns the upper end of the declared range
func (h *Handle) Max() float64 {
	return h.entry.max
}

// Reader resolves handles for one user and records the usage.
// The first failure is kept and reported by Err.
type Reader struct {
	params *Parameters
	user   string
	err    error
}

// NewReader creates a Reader registering usage under user
func NewReader(p *Parameters, user string) *Reader {
	return &Reader{params: p, user: user}
}

// Handle resolves name, records usage and remembers the first error
func (r *Reader) Handle(name string) *Handle {
	if r.err != nil {
		return nil
	}
	h, err := r.params.Handle(name)
	if err != nil {
		r.err = err
		return nil
	}
	if err := r.params.Uses(r.user, name); err != nil {
		r.err = err
		return nil
	}
	return h
}

// Err returns the first resolution error
func (r *Reader) Err() error {
	return r.err
}
