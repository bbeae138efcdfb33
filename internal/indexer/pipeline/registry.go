package pipeline

import (
	"sort"
	"sync"

	apperrors "github.com/Adithya-Monish-Kumar-K/textindex/pkg/errors"
)

// Factory builds a fresh Stage instance.
type Factory func() Stage

// Registry maps stage names to factories. It is passed explicitly into index
// configuration; there is no package-level registry.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// DefaultRegistry returns a new registry pre-populated with the built-in
// stages. Callers may register more stages on it.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.mustRegister(Lowercase, NewLowercase)
	r.mustRegister(Trimmer, NewTrimmer)
	r.mustRegister(StopWordFilter, NewEnglishStopWordFilter)
	r.mustRegister(Stemmer, NewStemmer)
	r.mustRegister(SuffixStemmer, NewSuffixStemmer)
	r.mustRegister(MinLength, func() Stage { return NewMinLength(2) })
	return r
}

func (r *Registry) mustRegister(name string, f Factory) {
	if err := r.Register(name, f); err != nil {
		panic(err)
	}
}

// Register adds a named factory. The name must match the Name of the stages
// the factory builds, so a snapshot's stage list can be checked against a
// rebuilt pipeline.
func (r *Registry) Register(name string, f Factory) error {
	if name == "" || f == nil {
		return apperrors.Configf("stage factory needs a name and a constructor")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dup := r.factories[name]; dup {
		return apperrors.Configf("stage factory %q registered twice", name)
	}
	r.factories[name] = f
	return nil
}

// Build instantiates the named stage.
func (r *Registry) Build(name string) (Stage, error) {
	r.mu.RLock()
	f, ok := r.factories[name]
	r.mu.RUnlock()
	if !ok {
		return nil, apperrors.Configf("unknown pipeline stage %q", name)
	}
	stage := f()
	if stage == nil || stage.Name() != name {
		return nil, apperrors.Configf("stage factory %q built a stage with a different name", name)
	}
	return stage, nil
}

// Names lists registered factory names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// BuildPipeline instantiates the named stages in order.
func (r *Registry) BuildPipeline(names ...string) (*Pipeline, error) {
	stages := make([]Stage, 0, len(names))
	for _, name := range names {
		s, err := r.Build(name)
		if err != nil {
			return nil, err
		}
		stages = append(stages, s)
	}
	return New(stages...)
}
