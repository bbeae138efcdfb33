// Package field declares the indexed fields of a document and their
// relative boost weights.
package field

import (
	"math"

	apperrors "github.com/Adithya-Monish-Kumar-K/textindex/pkg/errors"
)

// Extractor pulls the text of one field out of a document's raw field map.
type Extractor func(fields map[string]string) string

type Definition struct {
	Name      string
	Boost     float64
	Extractor Extractor
}

func (d Definition) Text(fields map[string]string) string {
	return d.Extractor(fields)
}

// ByName is the default extractor: the raw value stored under name.
func ByName(name string) Extractor {
	return func(fields map[string]string) string {
		return fields[name]
	}
}

type Registry struct {
	defs   []Definition
	byName map[string]int
}

func NewRegistry() *Registry {
	return &Registry{byName: make(map[string]int)}
}

// Register declares a field. A nil extractor reads the field's own name.
func (r *Registry) Register(name string, boost float64, extractor Extractor) error {
	if name == "" {
		return apperrors.Configf("field name must not be empty")
	}
	if _, dup := r.byName[name]; dup {
		return apperrors.Configf("field %q already registered", name)
	}
	if !(boost > 0) || math.IsInf(boost, 0) {
		return apperrors.Configf("field %q: boost must be a positive number, got %v", name, boost)
	}
	if extractor == nil {
		extractor = ByName(name)
	}
	r.byName[name] = len(r.defs)
	r.defs = append(r.defs, Definition{Name: name, Boost: boost, Extractor: extractor})
	return nil
}

func (r *Registry) Lookup(name string) (Definition, bool) {
	idx, ok := r.byName[name]
	if !ok {
		return Definition{}, false
	}
	return r.defs[idx], true
}

func (r *Registry) Boost(name string) float64 {
	if d, ok := r.Lookup(name); ok {
		return d.Boost
	}
	return 0
}

func (r *Registry) Fields() []Definition {
	out := make([]Definition, len(r.defs))
	copy(out, r.defs)
	return out
}

func (r *Registry) Names() []string {
	names := make([]string, len(r.defs))
	for i, d := range r.defs {
		names[i] = d.Name
	}
	return names
}

// Order returns the registration index of a field, or -1.
func (r *Registry) Order(name string) int {
	if idx, ok := r.byName[name]; ok {
		return idx
	}
	return -1
}

func (r *Registry) Len() int {
	return len(r.defs)
}
