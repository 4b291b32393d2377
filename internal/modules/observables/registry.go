package observables

import (
	"sort"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/eos/eos-sub010/internal/modules/parameters"
	"github.com/eos/eos-sub010/pkg/logger"
)

type makeFunc func(r *Registry, b base) (Observable, error)

// Entry describes one registered observable
type Entry struct {
	Name       string
	Kinematics []string           // required kinematic variables, in evaluation order
	Forced     parameters.Options // options fixed by the entry, e.g. V=D^*
	Cacheable  bool
	Expression bool

	construct makeFunc
}

// Registry manages the string-keyed observable entries
type Registry struct {
	entries map[string]*Entry
	mu      sync.RWMutex
	log     zerolog.Logger
}

// NewRegistry creates an empty registry
func NewRegistry(log zerolog.Logger) *Registry {
	return &Registry{
		entries: make(map[string]*Entry),
		log:     logger.WithComponent(log, "observable_registry"),
	}
}

// NewPopulatedRegistry creates a registry with every semileptonic observable registered
func NewPopulatedRegistry(log zerolog.Logger) *Registry {
	r := NewRegistry(log)
	registerSemileptonic(r)
	r.log.Debug().Int("observables", r.Len()).Msg("Observable registry initialized")
	return r
}

var defaultRegistry = sync.OnceValue(func() *Registry {
	return NewPopulatedRegistry(log.Logger)
})

// Default returns the process-wide populated registry
func Default() *Registry {
	return defaultRegistry()
}

func (r *Registry) register(e Entry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[e.Name] = &e
}

// Get retrieves an entry by its qualified name, without options
func (r *Registry) Get(name string) (Entry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.entries[name]
	if !ok {
		return Entry{}, parameters.NewConfigurationError("observable", name, "unknown observable")
	}
	return *e, nil
}

// Len returns the number of registered entries
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// List returns the sorted registered names
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.entries))
	for n := range r.entries {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Make builds the observable called name. Options after a ';' in the name
// override o; the entry's forced options override both. A nil k stands for
// an empty kinematics set.
func (r *Registry) Make(name string, p *parameters.Parameters, k *parameters.Kinematics, o parameters.Options) (Observable, error) {
	qualified, suffix, _ := strings.Cut(name, ";")
	if suffix != "" {
		extra, err := parameters.ParseOptions(suffix)
		if err != nil {
			return nil, err
		}
		o = o.Merge(extra)
	}
	if k == nil {
		k = parameters.NewKinematics(nil)
	}
	return r.build(qualified, p, k, o)
}

func (r *Registry) build(name string, p *parameters.Parameters, k *parameters.Kinematics, o parameters.Options) (Observable, error) {
	e, err := r.Get(name)
	if err != nil {
		return nil, err
	}
	for _, v := range e.Kinematics {
		if !k.Has(v) {
			return nil, parameters.NewConfigurationError(v, "", "missing kinematic variable for "+name)
		}
	}
	return e.construct(r, base{
		name:   name,
		params: p,
		kin:    k,
		opts:   o.Merge(e.Forced),
		vars:   e.Kinematics,
	})
}

// Make builds an observable from the default registry
func Make(name string, p *parameters.Parameters, k *parameters.Kinematics, o parameters.Options) (Observable, error) {
	return Default().Make(name, p, k, o)
}

// List returns the sorted names of the default registry
func List() []string {
	return Default().List()
}
