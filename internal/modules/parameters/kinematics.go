package parameters

import (
	"sort"
	"strconv"
	"strings"
)

// Kinematics holds the named real scalars of one kinematic point or range
type Kinematics struct {
	values map[string]float64
}

// NewKinematics builds a Kinematics from a map; the map is copied
func NewKinematics(values map[string]float64) *Kinematics {
	k := &Kinematics{values: make(map[string]float64, len(values))}
	for name, v := range values {
		k.values[name] = v
	}
	return k
}

// Get returns a kinematic variable
func (k *Kinematics) Get(name string) (float64, error) {
	v, ok := k.values[name]
	if !ok {
		return 0, NewConfigurationError(name, "", "missing kinematic variable")
	}
	return v, nil
}

// Has reports whether the variable is present
func (k *Kinematics) Has(name string) bool {
	_, ok := k.values[name]
	return ok
}

// Set declares or updates a variable
func (k *Kinematics) Set(name string, value float64) {
	k.values[name] = value
}

// Names returns the sorted variable names
func (k *Kinematics) Names() []string {
	names := make([]string, 0, len(k.values))
	for n := range k.values {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Clone returns an independent copy
func (k *Kinematics) Clone() *Kinematics {
	return NewKinematics(k.values)
}

// Renamed returns a new Kinematics where each target name takes the value of its source name.
// Variables without a mapping are copied unchanged.
func (k *Kinematics) Renamed(mapping map[string]string) (*Kinematics, error) {
	out := k.Clone()
	for target, source := range mapping {
		v, err := k.Get(source)
		if err != nil {
			return nil, err
		}
		out.values[target] = v
	}
	return out, nil
}

// String is a canonical representation usable as a cache key
func (k *Kinematics) String() string {
	var b strings.Builder
	for i, n := range k.Names() {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(n)
		b.WriteByte('=')
		b.WriteString(strconv.FormatFloat(k.values[n], 'g', 17, 64))
	}
	return b.String()
}
