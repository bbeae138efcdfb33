package indexer

import (
	"log/slog"
	"slices"

	"github.com/Adithya-Monish-Kumar-K/textindex/internal/indexer/field"
	"github.com/Adithya-Monish-Kumar-K/textindex/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/textindex/internal/indexer/pipeline"
	"github.com/Adithya-Monish-Kumar-K/textindex/internal/indexer/tokenizer"
	apperrors "github.com/Adithya-Monish-Kumar-K/textindex/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/textindex/pkg/metrics"
)

// Options configures an Engine. Fields must hold at least one definition;
// a nil Pipeline indexes raw tokens and a nil Tokenizer uses the defaults.
type Options struct {
	RefField     string
	Fields       *field.Registry
	Pipeline     *pipeline.Pipeline
	Tokenizer    *tokenizer.Tokenizer
	StrictFields bool
	Metrics      *metrics.Metrics
	Logger       *slog.Logger
}

// Engine turns documents into postings and owns the MemoryIndex. Analysis
// runs outside the index lock; only the final Apply is serialized.
type Engine struct {
	memIndex  *index.MemoryIndex
	refField  string
	fields    *field.Registry
	pipeline  *pipeline.Pipeline
	tokenizer *tokenizer.Tokenizer
	strict    bool
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

func NewEngine(opts Options) (*Engine, error) {
	if opts.Fields == nil || opts.Fields.Len() == 0 {
		return nil, apperrors.Configf("at least one field must be registered")
	}
	if opts.Pipeline == nil {
		p, err := pipeline.New()
		if err != nil {
			return nil, err
		}
		opts.Pipeline = p
	}
	if opts.Tokenizer == nil {
		opts.Tokenizer = tokenizer.Default()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	e := &Engine{
		memIndex:  index.NewMemoryIndex(opts.Fields.Names()),
		refField:  opts.RefField,
		fields:    opts.Fields,
		pipeline:  opts.Pipeline,
		tokenizer: opts.Tokenizer,
		strict:    opts.StrictFields,
		metrics:   opts.Metrics,
		logger:    opts.Logger.With("component", "indexer"),
	}
	return e, nil
}

// Analyze runs text through the tokenizer and the pipeline. Every term
// keeps the position of the raw token it came from.
func (e *Engine) Analyze(text string) []pipeline.Positioned {
	raw := make([]pipeline.Positioned, 0, len(text)/6)
	for tok := range e.tokenizer.Tokens(text) {
		raw = append(raw, pipeline.Positioned{Term: tok.Text, Position: tok.Position})
	}
	return e.pipeline.RunPositioned(raw)
}

// AnalyzeTerms is Analyze without positions.
func (e *Engine) AnalyzeTerms(text string) []string {
	analyzed := e.Analyze(text)
	terms := make([]string, len(analyzed))
	for i, t := range analyzed {
		terms[i] = t.Term
	}
	return terms
}

// AnalyzeDocument extracts and analyzes every registered field of a
// document without touching the index. An empty ref is taken from the ref
// field, which is then not stored with the document.
func (e *Engine) AnalyzeDocument(ref string, fields map[string]string) (index.AnalyzedDocument, error) {
	if ref == "" && fields[e.refField] != "" {
		ref = fields[e.refField]
		rest := make(map[string]string, len(fields)-1)
		for name, text := range fields {
			if name != e.refField {
				rest[name] = text
			}
		}
		fields = rest
	}
	if ref == "" {
		return index.AnalyzedDocument{}, apperrors.New(apperrors.ErrInvalidInput, "document ref must not be empty")
	}
	if e.strict {
		for name := range fields {
			if name == e.refField {
				continue
			}
			if _, ok := e.fields.Lookup(name); !ok {
				return index.AnalyzedDocument{}, apperrors.Newf(apperrors.ErrInvalidInput, "document %q: field %q is not declared", ref, name)
			}
		}
	}
	doc := index.AnalyzedDocument{
		Ref:    ref,
		Raw:    fields,
		Fields: make([]index.AnalyzedField, 0, e.fields.Len()),
	}
	for _, def := range e.fields.Fields() {
		analyzed := e.Analyze(def.Text(fields))
		af := index.AnalyzedField{
			Name:      def.Name,
			Terms:     make([]string, len(analyzed)),
			Positions: make([]int, len(analyzed)),
		}
		for i, t := range analyzed {
			af.Terms[i] = t.Term
			af.Positions[i] = t.Position
		}
		doc.Fields = append(doc.Fields, af)
	}
	return doc, nil
}

// IndexDocument adds or replaces the document stored under ref.
func (e *Engine) IndexDocument(ref string, fields map[string]string) error {
	doc, err := e.AnalyzeDocument(ref, fields)
	if err != nil {
		return err
	}
	e.Apply(doc)
	return nil
}

// Apply inserts documents produced by AnalyzeDocument, in order, as one
// mutation. Callers analyze a whole batch first so an invalid document
// leaves the index untouched.
func (e *Engine) Apply(docs ...index.AnalyzedDocument) {
	if len(docs) == 0 {
		return
	}
	e.memIndex.Apply(docs...)

	stats := e.memIndex.Stats()
	e.metrics.ObserveIndex(len(docs), stats.DocCount, stats.TermCount, stats.Size)
	e.logger.Debug("documents indexed",
		"count", len(docs),
		"last_ref", docs[len(docs)-1].Ref,
		"docs", stats.DocCount,
		"mem_size", stats.Size,
	)
}

// Remove deletes ref from the index and reports whether it was present.
func (e *Engine) Remove(ref string) bool {
	if !e.memIndex.Remove(ref) {
		return false
	}
	stats := e.memIndex.Stats()
	e.metrics.ObserveRemove(stats.DocCount, stats.TermCount, stats.Size)
	e.logger.Debug("document removed", "ref", ref, "docs", stats.DocCount)
	return true
}

// Lookup returns the postings of an already processed term.
func (e *Engine) Lookup(term string) index.PostingList {
	return e.memIndex.Lookup(term)
}

func (e *Engine) Document(ref string) (index.StoredDocument, error) {
	return e.memIndex.Document(ref)
}

// View gives fn a consistent read-only picture of the index.
func (e *Engine) View(fn func(v *index.View)) {
	e.memIndex.View(fn)
}

func (e *Engine) Stats() index.Stats {
	return e.memIndex.Stats()
}

func (e *Engine) Generation() uint64 {
	return e.memIndex.Generation()
}

func (e *Engine) Terms() []string {
	return e.memIndex.Terms()
}

func (e *Engine) Fields() *field.Registry {
	return e.fields
}

func (e *Engine) RefField() string {
	return e.refField
}

func (e *Engine) PipelineNames() []string {
	return e.pipeline.Names()
}

func (e *Engine) fieldInfo() []index.FieldInfo {
	defs := e.fields.Fields()
	out := make([]index.FieldInfo, len(defs))
	for i, d := range defs {
		out[i] = index.FieldInfo{Name: d.Name, Boost: d.Boost}
	}
	return out
}

// Snapshot exports the index together with the configuration it was built
// with, so Restore can refuse data analyzed differently.
func (e *Engine) Snapshot() *index.Snapshot {
	snap := e.memIndex.Snapshot()
	snap.Ref = e.refField
	snap.Fields = e.fieldInfo()
	snap.Pipeline = e.pipeline.Names()
	snap.Separators = e.tokenizer.Separators()
	return snap
}

// Restore replaces the index contents with snap. The snapshot must have
// been exported by an engine with the same ref field, fields, boosts,
// pipeline and separators.
func (e *Engine) Restore(snap *index.Snapshot) error {
	if snap == nil {
		return apperrors.New(apperrors.ErrInvalidInput, "nil snapshot")
	}
	if snap.Ref != e.refField {
		return apperrors.Configf("snapshot ref field %q does not match %q", snap.Ref, e.refField)
	}
	if !slices.Equal(snap.Fields, e.fieldInfo()) {
		return apperrors.Configf("snapshot fields %v do not match %v", snap.Fields, e.fieldInfo())
	}
	if !slices.Equal(snap.Pipeline, e.pipeline.Names()) {
		return apperrors.Configf("snapshot pipeline %v does not match %v", snap.Pipeline, e.pipeline.Names())
	}
	if snap.Separators != e.tokenizer.Separators() {
		return apperrors.Configf("snapshot separators %q do not match %q", snap.Separators, e.tokenizer.Separators())
	}
	if err := e.memIndex.Restore(snap); err != nil {
		return err
	}
	stats := e.memIndex.Stats()
	e.metrics.ObserveShape(stats.DocCount, stats.TermCount, stats.Size)
	e.logger.Info("index restored from snapshot",
		"docs", stats.DocCount,
		"terms", stats.TermCount,
	)
	return nil
}

// Reset drops every document.
func (e *Engine) Reset() {
	e.memIndex.Reset()
	e.metrics.ObserveShape(0, 0, 0)
}
