package parameters

import (
	"sort"
	"strings"
)

// Options are string-valued switches selecting process variants
type Options struct {
	values map[string]string
}

// NewOptions builds Options from a map; the map is copied
func NewOptions(values map[string]string) Options {
	o := Options{values: make(map[string]string, len(values))}
	for k, v := range values {
		o.values[k] = v
	}
	return o
}

// ParseOptions reads "key=value" pairs separated by ',' or ';'
func ParseOptions(s string) (Options, error) {
	o := NewOptions(nil)
	for _, part := range strings.FieldsFunc(s, func(r rune) bool { return r == ',' || r == ';' }) {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		key, value, ok := strings.Cut(part, "=")
		if !ok || key == "" {
			return Options{}, NewConfigurationError(part, "", "malformed option, expected key=value")
		}
		o.values[strings.TrimSpace(key)] = strings.TrimSpace(value)
	}
	return o, nil
}

// Get returns the option value or def when unset
func (o Options) Get(key, def string) string {
	if v, ok := o.values[key]; ok {
		return v
	}
	return def
}

// Has reports whether the option is set
func (o Options) Has(key string) bool {
	_, ok := o.values[key]
	return ok
}

// Restrict returns the option value (or def) and fails unless it is one of allowed
func (o Options) Restrict(key string, allowed []string, def string) (string, error) {
	v := o.Get(key, def)
	for _, a := range allowed {
		if a == v {
			return v, nil
		}
	}
	return "", NewConfigurationError(key, v, "allowed values are "+strings.Join(allowed, ", "))
}

// Bool parses a true/false option
func (o Options) Bool(key string, def bool) (bool, error) {
	d := "false"
	if def {
		d = "true"
	}
	v, err := o.Restrict(key, []string{"true", "false"}, d)
	if err != nil {
		return false, err
	}
	return v == "true", nil
}

// With returns a copy with key set to value
func (o Options) With(key, value string) Options {
	c := NewOptions(o.values)
	c.values[key] = value
	return c
}

// Merge returns a copy where every option of other overrides this one
func (o Options) Merge(other Options) Options {
	c := NewOptions(o.values)
	for k, v := range other.values {
		c.values[k] = v
	}
	return c
}

// Keys returns the sorted option keys
func (o Options) Keys() []string {
	keys := make([]string, 0, len(o.values))
	for k := range o.values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// String is the canonical "k=v,k=v" form, sorted by key
func (o Options) String() string {
	var b strings.Builder
	for i, k := range o.Keys() {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(o.values[k])
	}
	return b.String()
}
