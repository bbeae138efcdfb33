// Package pipeline runs tokens through an ordered list of named stages.
// The same pipeline is applied to document fields at index time and to
// query text at search time; matching depends on that symmetry.
package pipeline

import (
	apperrors "github.com/Adithya-Monish-Kumar-K/textindex/pkg/errors"
)

// Stage transforms a single token. Returning nil drops the token, one
// element rewrites it and several elements expand it. Implementations must
// be pure: the same input always yields the same output and no state is
// shared between calls.
type Stage interface {
	Name() string
	Transform(token string, i int, tokens []string) []string
}

type funcStage struct {
	name string
	fn   func(token string, i int, tokens []string) []string
}

func (s funcStage) Name() string { return s.name }

func (s funcStage) Transform(token string, i int, tokens []string) []string {
	return s.fn(token, i, tokens)
}

// StageFunc adapts a plain function into a named Stage.
func StageFunc(name string, fn func(token string, i int, tokens []string) []string) Stage {
	return funcStage{name: name, fn: fn}
}

// MapFunc adapts a one-to-one rewrite. An empty result drops the token.
func MapFunc(name string, fn func(string) string) Stage {
	return StageFunc(name, func(token string, _ int, _ []string) []string {
		out := fn(token)
		if out == "" {
			return nil
		}
		return []string{out}
	})
}

// Pipeline is an ordered list of stages with a name index for anchored
// insertion. Configure it before handing it to an index; Run is safe for
// concurrent use once configuration is finished.
type Pipeline struct {
	stages []Stage
	byName map[string]int
}

func New(stages ...Stage) (*Pipeline, error) {
	p := &Pipeline{byName: make(map[string]int)}
	if err := p.Add(stages...); err != nil {
		return nil, err
	}
	return p, nil
}

// Add appends stages in order.
func (p *Pipeline) Add(stages ...Stage) error {
	for _, s := range stages {
		if err := p.insert(len(p.stages), s); err != nil {
			return err
		}
	}
	return nil
}

// Before inserts stage immediately ahead of the stage named anchor.
func (p *Pipeline) Before(anchor string, stage Stage) error {
	idx, ok := p.byName[anchor]
	if !ok {
		return apperrors.Configf("pipeline anchor %q is not registered", anchor)
	}
	return p.insert(idx, stage)
}

// After inserts stage immediately behind the stage named anchor.
func (p *Pipeline) After(anchor string, stage Stage) error {
	idx, ok := p.byName[anchor]
	if !ok {
		return apperrors.Configf("pipeline anchor %q is not registered", anchor)
	}
	return p.insert(idx+1, stage)
}

// Remove drops the named stage. Removing an unknown stage is a no-op.
func (p *Pipeline) Remove(name string) {
	idx, ok := p.byName[name]
	if !ok {
		return
	}
	p.stages = append(p.stages[:idx], p.stages[idx+1:]...)
	p.reindex()
}

func (p *Pipeline) insert(at int, stage Stage) error {
	if stage == nil {
		return apperrors.Configf("nil pipeline stage")
	}
	name := stage.Name()
	if name == "" {
		return apperrors.Configf("pipeline stage without a name")
	}
	if _, dup := p.byName[name]; dup {
		return apperrors.Configf("pipeline stage %q registered twice", name)
	}
	p.stages = append(p.stages, nil)
	copy(p.stages[at+1:], p.stages[at:])
	p.stages[at] = stage
	p.reindex()
	return nil
}

func (p *Pipeline) reindex() {
	clear(p.byName)
	for i, s := range p.stages {
		p.byName[s.Name()] = i
	}
}

// Has reports whether a stage with the given name is registered.
func (p *Pipeline) Has(name string) bool {
	_, ok := p.byName[name]
	return ok
}

// Names lists stage names in execution order.
func (p *Pipeline) Names() []string {
	names := make([]string, len(p.stages))
	for i, s := range p.stages {
		names[i] = s.Name()
	}
	return names
}

func (p *Pipeline) Len() int {
	return len(p.stages)
}

// Run passes tokens through every stage in order. Zero-length outputs are
// dropped. The input slice is not modified.
func (p *Pipeline) Run(tokens []string) []string {
	out := dropEmpty(tokens)
	for _, stage := range p.stages {
		if len(out) == 0 {
			return out
		}
		next := make([]string, 0, len(out))
		for i, tok := range out {
			for _, t := range stage.Transform(tok, i, out) {
				if t != "" {
					next = append(next, t)
				}
			}
		}
		out = next
	}
	return out
}

// Positioned is a pipeline output token tagged with the position of the raw
// token it came from.
type Positioned struct {
	Term     string
	Position int
}

// RunPositioned is Run for tokens that carry source positions. Every output
// token keeps the position of the input token that produced it, so an
// expanding stage yields several terms at one position.
func (p *Pipeline) RunPositioned(tokens []Positioned) []Positioned {
	out := make([]Positioned, 0, len(tokens))
	for _, t := range tokens {
		if t.Term != "" {
			out = append(out, t)
		}
	}
	for _, stage := range p.stages {
		if len(out) == 0 {
			return out
		}
		seq := make([]string, len(out))
		for i, t := range out {
			seq[i] = t.Term
		}
		next := make([]Positioned, 0, len(out))
		for i, t := range out {
			for _, term := range stage.Transform(t.Term, i, seq) {
				if term != "" {
					next = append(next, Positioned{Term: term, Position: t.Position})
				}
			}
		}
		out = next
	}
	return out
}

func dropEmpty(tokens []string) []string {
	out := make([]string, 0, len(tokens))
	for _, t := range tokens {
		if t != "" {
			out = append(out, t)
		}
	}
	return out
}
