package textindex

import (
	"errors"
	"log/slog"
	"math"

	"github.com/Adithya-Monish-Kumar-K/textindex/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/textindex/internal/indexer/field"
	"github.com/Adithya-Monish-Kumar-K/textindex/internal/indexer/pipeline"
	"github.com/Adithya-Monish-Kumar-K/textindex/internal/indexer/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/textindex/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/textindex/internal/searcher/ranker"
	"github.com/Adithya-Monish-Kumar-K/textindex/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/textindex/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/textindex/pkg/metrics"
)

// DefaultRef is the document field used as the ref when none is set.
const DefaultRef = "id"

// Extractor pulls a field's text out of a document.
type Extractor = field.Extractor

// Stage is a pipeline stage.
type Stage = pipeline.Stage

// StageFunc adapts fn into a Stage called name.
func StageFunc(name string, fn func(token string, i int, tokens []string) []string) Stage {
	return pipeline.StageFunc(name, fn)
}

// FieldOption customizes a field declaration.
type FieldOption func(*fieldSpec)

// WithExtractor reads the field's text through fn instead of Fields[name].
func WithExtractor(fn Extractor) FieldOption {
	return func(f *fieldSpec) { f.extractor = fn }
}

type fieldSpec struct {
	name      string
	boost     float64
	extractor Extractor
}

type stagePosition int

const (
	appendStage stagePosition = iota
	beforeStage
	afterStage
)

// stageOp is a deferred pipeline edit. Either stage or name (resolved
// through the registry at Build) is set.
type stageOp struct {
	position stagePosition
	anchor   string
	stage    Stage
	name     string
}

// Builder collects an index configuration. Mistakes are recorded and
// reported together by Build, so calls can be chained.
type Builder struct {
	ref        string
	fields     []fieldSpec
	separators string
	stages     []string
	ops        []stageOp
	registry   *pipeline.Registry
	params     ranker.Params
	expand     bool
	strict     bool
	maxResults int
	metrics    *metrics.Metrics
	logger     *slog.Logger
	errs       []error
}

// NewBuilder starts with ref "id", the default separators and the default
// pipeline (lowercase, trimmer, stopWordFilter, stemmer).
func NewBuilder() *Builder {
	return &Builder{
		ref:        DefaultRef,
		separators: tokenizer.DefaultSeparators,
		stages:     append([]string(nil), pipeline.DefaultStages...),
		params:     ranker.DefaultParams(),
	}
}

func (b *Builder) fail(err error) *Builder {
	b.errs = append(b.errs, err)
	return b
}

// Ref names the document field that identifies documents.
func (b *Builder) Ref(name string) *Builder {
	if name == "" {
		return b.fail(apperrors.Configf("ref field name must not be empty"))
	}
	b.ref = name
	return b
}

// Field declares an indexed field. Fields are scored in declaration order
// for ties within a document and exported in that order.
func (b *Builder) Field(name string, boost float64, opts ...FieldOption) *Builder {
	spec := fieldSpec{name: name, boost: boost}
	for _, opt := range opts {
		opt(&spec)
	}
	b.fields = append(b.fields, spec)
	return b
}

// Separators replaces the extra token separators (whitespace always splits).
func (b *Builder) Separators(s string) *Builder {
	b.separators = s
	return b
}

// Pipeline replaces the base stage list with registry stages. Calling it
// with no names yields an empty base pipeline.
func (b *Builder) Pipeline(names ...string) *Builder {
	b.stages = append([]string{}, names...)
	return b
}

// AddStage appends stage after every configured stage.
func (b *Builder) AddStage(stage Stage) *Builder {
	b.ops = append(b.ops, stageOp{position: appendStage, stage: stage})
	return b
}

// StageBefore inserts stage immediately before the stage named anchor.
func (b *Builder) StageBefore(anchor string, stage Stage) *Builder {
	b.ops = append(b.ops, stageOp{position: beforeStage, anchor: anchor, stage: stage})
	return b
}

// StageAfter inserts stage immediately after the stage named anchor.
func (b *Builder) StageAfter(anchor string, stage Stage) *Builder {
	b.ops = append(b.ops, stageOp{position: afterStage, anchor: anchor, stage: stage})
	return b
}

// RegistryStage inserts the registry stage called name. position is
// "before", "after" or empty (append).
func (b *Builder) RegistryStage(name, anchor, position string) *Builder {
	op := stageOp{anchor: anchor, name: name}
	switch position {
	case "":
		op.position = appendStage
		if anchor != "" {
			op.position = afterStage
		}
	case "before":
		op.position = beforeStage
	case "after":
		op.position = afterStage
	default:
		return b.fail(apperrors.Configf("stage %q: unknown position %q", name, position))
	}
	if op.position != appendStage && anchor == "" {
		return b.fail(apperrors.Configf("stage %q: position %q needs an anchor", name, position))
	}
	b.ops = append(b.ops, op)
	return b
}

// Registry sets the stage-factory registry used to resolve stage names.
// The default is pipeline.DefaultRegistry().
func (b *Builder) Registry(r *pipeline.Registry) *Builder {
	b.registry = r
	return b
}

// Scoring sets the BM25 term-frequency saturation k1 (>= 0) and length
// normalisation b (in [0, 1]).
func (b *Builder) Scoring(k1, bNorm float64) *Builder {
	if math.IsNaN(k1) || k1 < 0 || math.IsInf(k1, 0) {
		return b.fail(apperrors.Configf("k1 must be a finite number >= 0, got %v", k1))
	}
	if math.IsNaN(bNorm) || bNorm < 0 || bNorm > 1 {
		return b.fail(apperrors.Configf("b must be in [0, 1], got %v", bNorm))
	}
	b.params = ranker.Params{K1: k1, B: bNorm}
	return b
}

// ExpandQuery lets query terms also match vocabulary terms they prefix.
func (b *Builder) ExpandQuery(on bool) *Builder {
	b.expand = on
	return b
}

// StrictFields rejects documents carrying fields that were not declared.
func (b *Builder) StrictFields(on bool) *Builder {
	b.strict = on
	return b
}

// MaxResults caps every search limit, including "all" (limit <= 0).
func (b *Builder) MaxResults(n int) *Builder {
	if n < 0 {
		return b.fail(apperrors.Configf("max results must be >= 0, got %d", n))
	}
	b.maxResults = n
	return b
}

func (b *Builder) Metrics(m *metrics.Metrics) *Builder {
	b.metrics = m
	return b
}

func (b *Builder) Logger(l *slog.Logger) *Builder {
	b.logger = l
	return b
}

// Build validates the configuration and returns an empty index. Every
// recorded mistake is returned, joined, and each matches ErrConfiguration.
func (b *Builder) Build() (*Index, error) {
	errs := append([]error(nil), b.errs...)

	fields := field.NewRegistry()
	for _, f := range b.fields {
		if err := fields.Register(f.name, f.boost, f.extractor); err != nil {
			errs = append(errs, err)
		}
	}
	if len(b.fields) == 0 {
		errs = append(errs, apperrors.Configf("at least one field must be declared"))
	}

	p, err := b.buildPipeline()
	if err != nil {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	engine, err := indexer.NewEngine(indexer.Options{
		RefField:     b.ref,
		Fields:       fields,
		Pipeline:     p,
		Tokenizer:    tokenizer.New(b.separators),
		StrictFields: b.strict,
		Metrics:      b.metrics,
		Logger:       b.logger,
	})
	if err != nil {
		return nil, err
	}
	exec := executor.New(engine, executor.Options{
		Params:     b.params,
		Expand:     b.expand,
		MaxResults: b.maxResults,
		Metrics:    b.metrics,
		Logger:     b.logger,
	})
	return &Index{engine: engine, exec: exec}, nil
}

func (b *Builder) buildPipeline() (*pipeline.Pipeline, error) {
	reg := b.registry
	if reg == nil {
		reg = pipeline.DefaultRegistry()
	}
	p, err := reg.BuildPipeline(b.stages...)
	if err != nil {
		return nil, err
	}
	for _, op := range b.ops {
		stage := op.stage
		if stage == nil {
			if op.name == "" {
				return nil, apperrors.Configf("nil pipeline stage")
			}
			if stage, err = reg.Build(op.name); err != nil {
				return nil, err
			}
		}
		switch op.position {
		case beforeStage:
			err = p.Before(op.anchor, stage)
		case afterStage:
			err = p.After(op.anchor, stage)
		default:
			err = p.Add(stage)
		}
		if err != nil {
			return nil, err
		}
	}
	return p, nil
}

// FromConfig returns a builder preloaded from cfg's index, scoring and query
// sections. Callers may keep configuring it (custom stages, metrics) before
// calling Build.
func FromConfig(cfg *config.Config) *Builder {
	b := NewBuilder()
	ic := cfg.Index
	if ic.Ref != "" {
		b.Ref(ic.Ref)
	}
	for _, f := range ic.Fields {
		boost := 1.0
		if f.Boost != nil {
			boost = *f.Boost
		}
		b.Field(f.Name, boost)
	}
	if ic.Separators != "" {
		b.Separators(ic.Separators)
	}
	if ic.Pipeline != nil {
		b.Pipeline(ic.Pipeline...)
	}
	for _, s := range ic.Stages {
		b.RegistryStage(s.Name, s.Anchor, s.Position)
	}
	b.StrictFields(ic.StrictFields)
	b.Scoring(cfg.Scoring.K1, cfg.Scoring.B)
	b.ExpandQuery(cfg.Query.Expand)
	b.MaxResults(cfg.Query.MaxResults)
	return b
}
