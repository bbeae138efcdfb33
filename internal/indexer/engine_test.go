package indexer

import (
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/textindex/internal/indexer/field"
	"github.com/Adithya-Monish-Kumar-K/textindex/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/textindex/internal/indexer/pipeline"
	"github.com/Adithya-Monish-Kumar-K/textindex/internal/indexer/tokenizer"
	apperrors "github.com/Adithya-Monish-Kumar-K/textindex/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/textindex/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func newTestEngine(t testing.TB, strict bool) *Engine {
	t.Helper()
	fields := field.NewRegistry()
	if err := fields.Register("title", 10, nil); err != nil {
		t.Fatal(err)
	}
	if err := fields.Register("body", 1, nil); err != nil {
		t.Fatal(err)
	}
	p, err := pipeline.DefaultRegistry().BuildPipeline(pipeline.DefaultStages...)
	if err != nil {
		t.Fatal(err)
	}
	e, err := NewEngine(Options{
		RefField:     "id",
		Fields:       fields,
		Pipeline:     p,
		StrictFields: strict,
	})
	if err != nil {
		t.Fatal(err)
	}
	return e
}

func TestNewEngineRequiresFields(t *testing.T) {
	_, err := NewEngine(Options{Fields: field.NewRegistry()})
	if !errors.Is(err, apperrors.ErrConfiguration) {
		t.Fatalf("expected ErrConfiguration, got %v", err)
	}
}

func TestAnalyzeKeepsSourcePositions(t *testing.T) {
	e := newTestEngine(t, false)
	got := e.Analyze("The Running foxes")
	want := []pipeline.Positioned{{Term: "run", Position: 1}, {Term: "fox", Position: 2}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Analyze = %+v, want %+v", got, want)
	}
	if terms := e.AnalyzeTerms("the and of"); len(terms) != 0 {
		t.Fatalf("stop words survived: %v", terms)
	}
}

func TestIndexDocumentPostings(t *testing.T) {
	e := newTestEngine(t, false)
	if err := e.IndexDocument("1", map[string]string{"title": "Foo", "body": "Foo foo foo"}); err != nil {
		t.Fatal(err)
	}
	got := e.Lookup("foo")
	want := index.PostingList{
		{DocRef: "1", Field: "title", Frequency: 1, Positions: []int{0}},
		{DocRef: "1", Field: "body", Frequency: 3, Positions: []int{0, 1, 2}},
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("postings = %+v, want %+v", got, want)
	}
	doc, err := e.Document("1")
	if err != nil {
		t.Fatal(err)
	}
	if doc.Fields["title"] != "Foo" {
		t.Fatalf("stored title = %q", doc.Fields["title"])
	}
}

func TestIndexDocumentValidation(t *testing.T) {
	e := newTestEngine(t, true)
	if err := e.IndexDocument("", map[string]string{"title": "x"}); !errors.Is(err, apperrors.ErrInvalidInput) {
		t.Fatalf("empty ref: %v", err)
	}
	err := e.IndexDocument("1", map[string]string{"title": "x", "author": "y"})
	if !errors.Is(err, apperrors.ErrInvalidInput) {
		t.Fatalf("undeclared field: %v", err)
	}
	if e.Stats().DocCount != 0 {
		t.Fatal("rejected document was indexed")
	}
	// the ref field itself may travel with the document
	if err := e.IndexDocument("1", map[string]string{"id": "1", "title": "x"}); err != nil {
		t.Fatalf("ref field rejected: %v", err)
	}

	lenient := newTestEngine(t, false)
	if err := lenient.IndexDocument("1", map[string]string{"author": "y"}); err != nil {
		t.Fatalf("lenient engine rejected extra field: %v", err)
	}
}

func TestCustomExtractor(t *testing.T) {
	fields := field.NewRegistry()
	join := func(doc map[string]string) string { return doc["first"] + " " + doc["last"] }
	if err := fields.Register("name", 1, join); err != nil {
		t.Fatal(err)
	}
	e, err := NewEngine(Options{Fields: fields, Tokenizer: tokenizer.New("")})
	if err != nil {
		t.Fatal(err)
	}
	if err := e.IndexDocument("p", map[string]string{"first": "Ada", "last": "Lovelace"}); err != nil {
		t.Fatal(err)
	}
	if len(e.Lookup("Lovelace")) != 1 {
		t.Fatal("extracted text was not indexed")
	}
}

func TestDiscardAllStageEmptiesVocabulary(t *testing.T) {
	fields := field.NewRegistry()
	_ = fields.Register("body", 1, nil)
	p, _ := pipeline.New(pipeline.StageFunc("drop", func(string, int, []string) []string { return nil }))
	e, err := NewEngine(Options{Fields: fields, Pipeline: p})
	if err != nil {
		t.Fatal(err)
	}
	for _, ref := range []string{"a", "b"} {
		if err := e.IndexDocument(ref, map[string]string{"body": "lots of words here"}); err != nil {
			t.Fatal(err)
		}
	}
	if terms := e.Terms(); len(terms) != 0 {
		t.Fatalf("vocabulary = %v", terms)
	}
	if e.Stats().DocCount != 2 {
		t.Fatal("documents must still be stored")
	}
}

func TestRemoveObservesMetrics(t *testing.T) {
	m := metrics.New()
	fields := field.NewRegistry()
	_ = fields.Register("body", 1, nil)
	e, _ := NewEngine(Options{Fields: fields, Metrics: m})
	_ = e.IndexDocument("1", map[string]string{"body": "alpha"})
	_ = e.IndexDocument("2", map[string]string{"body": "beta"})
	if !e.Remove("1") || e.Remove("1") {
		t.Fatal("unexpected Remove results")
	}
	if got := testutil.ToFloat64(m.DocsRemovedTotal); got != 1 {
		t.Fatalf("removed counter = %v", got)
	}
	if got := testutil.ToFloat64(m.DocumentCount); got != 1 {
		t.Fatalf("document gauge = %v", got)
	}
}

func TestSnapshotRestore(t *testing.T) {
	src := newTestEngine(t, false)
	_ = src.IndexDocument("1", map[string]string{"title": "Foo", "body": "Foo foo foo"})
	_ = src.IndexDocument("2", map[string]string{"title": "Bar", "body": "Bar bar bar"})
	snap := src.Snapshot()
	if snap.Ref != "id" || !reflect.DeepEqual(snap.Pipeline, pipeline.DefaultStages) {
		t.Fatalf("snapshot fingerprint = %q %v", snap.Ref, snap.Pipeline)
	}

	dst := newTestEngine(t, false)
	if err := dst.Restore(snap); err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(snap, dst.Snapshot()) {
		t.Fatal("restore is not exact")
	}
}

func TestRestoreRejectsMismatchedConfiguration(t *testing.T) {
	src := newTestEngine(t, false)
	_ = src.IndexDocument("1", map[string]string{"title": "Foo"})

	tests := []struct {
		name   string
		mutate func(s *index.Snapshot)
	}{
		{"ref", func(s *index.Snapshot) { s.Ref = "key" }},
		{"boost", func(s *index.Snapshot) { s.Fields[0].Boost = 2 }},
		{"fields", func(s *index.Snapshot) { s.Fields = s.Fields[:1] }},
		{"pipeline", func(s *index.Snapshot) { s.Pipeline = []string{"lowercase"} }},
		{"separators", func(s *index.Snapshot) { s.Separators = strings.Repeat(s.Separators, 2) + "_" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			snap := src.Snapshot()
			tt.mutate(snap)
			dst := newTestEngine(t, false)
			if err := dst.Restore(snap); !errors.Is(err, apperrors.ErrConfiguration) {
				t.Fatalf("expected ErrConfiguration, got %v", err)
			}
			if dst.Stats().DocCount != 0 {
				t.Fatal("mismatched snapshot was applied")
			}
		})
	}
}
