package index

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"
	"testing"

	apperrors "github.com/Adithya-Monish-Kumar-K/textindex/pkg/errors"
)

// analyzed builds an AnalyzedDocument from whitespace-separated, already
// processed terms per field.
func analyzed(ref string, fields map[string]string) AnalyzedDocument {
	doc := AnalyzedDocument{Ref: ref, Raw: fields}
	for _, name := range []string{"title", "body"} {
		text, ok := fields[name]
		if !ok {
			continue
		}
		terms := strings.Fields(text)
		positions := make([]int, len(terms))
		for i := range terms {
			positions[i] = i
		}
		doc.Fields = append(doc.Fields, AnalyzedField{Name: name, Terms: terms, Positions: positions})
	}
	return doc
}

// checkDocFreq recomputes every document frequency from the postings.
func checkDocFreq(t *testing.T, m *MemoryIndex) {
	t.Helper()
	m.View(func(v *View) {
		for _, term := range v.PrefixTerms("") {
			refs := make(map[string]struct{})
			for _, p := range v.Lookup(term) {
				refs[p.DocRef] = struct{}{}
			}
			if len(refs) == 0 {
				t.Errorf("term %q in vocabulary without postings", term)
			}
			if df := v.DocFreq(term); df != len(refs) {
				t.Errorf("term %q: df %d, postings cover %d docs", term, df, len(refs))
			}
		}
	})
}

func TestApplyAndLookup(t *testing.T) {
	m := NewMemoryIndex([]string{"title", "body"})
	m.Apply(analyzed("1", map[string]string{"title": "foo", "body": "foo foo foo"}))
	m.Apply(analyzed("2", map[string]string{"title": "bar", "body": "bar bar bar"}))

	got := m.Lookup("foo")
	want := PostingList{
		{DocRef: "1", Field: "title", Frequency: 1, Positions: []int{0}},
		{DocRef: "1", Field: "body", Frequency: 3, Positions: []int{0, 1, 2}},
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Lookup(foo) = %+v, want %+v", got, want)
	}
	if got := m.Lookup("missing"); got == nil || len(got) != 0 {
		t.Fatalf("Lookup(missing) = %#v, want empty non-nil", got)
	}

	stats := m.Stats()
	if stats.DocCount != 2 || stats.TermCount != 2 {
		t.Fatalf("stats = %+v", stats)
	}
	if stats.AvgFieldLength["body"] != 3 || stats.AvgFieldLength["title"] != 1 {
		t.Errorf("avg field lengths = %v", stats.AvgFieldLength)
	}
	m.View(func(v *View) {
		if v.DocFreq("foo") != 1 || v.DocFreq("bar") != 1 {
			t.Errorf("unexpected df")
		}
		if v.FieldLength("1", "body") != 3 || v.FieldLength("9", "body") != 0 {
			t.Errorf("unexpected field lengths")
		}
	})
	checkDocFreq(t, m)
}

func TestDocFreqCountsDocumentsNotFields(t *testing.T) {
	m := NewMemoryIndex([]string{"title", "body"})
	m.Apply(analyzed("1", map[string]string{"title": "foo", "body": "foo"}))
	m.Apply(analyzed("2", map[string]string{"body": "foo foo"}))
	m.View(func(v *View) {
		if df := v.DocFreq("foo"); df != 2 {
			t.Fatalf("df(foo) = %d, want 2", df)
		}
	})
	if n := len(m.Lookup("foo")); n != 3 {
		t.Fatalf("expected 3 postings, got %d", n)
	}
}

func TestReplaceIsIdempotent(t *testing.T) {
	doc := analyzed("1", map[string]string{"title": "foo", "body": "foo baz"})
	once := NewMemoryIndex([]string{"title", "body"})
	once.Apply(doc)

	twice := NewMemoryIndex([]string{"title", "body"})
	twice.Apply(doc)
	twice.Apply(doc)

	a, b := once.Snapshot(), twice.Snapshot()
	if !reflect.DeepEqual(a, b) {
		t.Fatalf("replace is not idempotent:\n%+v\n%+v", a, b)
	}
	sa, sb := once.Stats(), twice.Stats()
	sa.Generation, sb.Generation = 0, 0
	if !reflect.DeepEqual(sa, sb) {
		t.Fatalf("stats differ: %+v vs %+v", sa, sb)
	}
}

func TestReplaceDropsStalePostings(t *testing.T) {
	m := NewMemoryIndex([]string{"title", "body"})
	m.Apply(analyzed("1", map[string]string{"body": "old words"}))
	m.Apply(analyzed("1", map[string]string{"body": "new words"}))
	if got := m.Lookup("old"); len(got) != 0 {
		t.Fatalf("stale postings remain: %+v", got)
	}
	if m.DocCount() != 1 {
		t.Fatalf("doc count = %d", m.DocCount())
	}
	m.View(func(v *View) {
		if v.DocFreq("words") != 1 {
			t.Errorf("df(words) = %d", v.DocFreq("words"))
		}
	})
	checkDocFreq(t, m)
}

func TestRemoveRestoresStats(t *testing.T) {
	m := NewMemoryIndex([]string{"title", "body"})
	m.Apply(analyzed("1", map[string]string{"title": "foo", "body": "shared"}))
	before := m.Stats()
	beforeSnap := m.Snapshot()

	m.Apply(analyzed("2", map[string]string{"title": "bar", "body": "shared shared"}))
	if !m.Remove("2") {
		t.Fatal("Remove(2) reported missing")
	}
	after := m.Stats()
	before.Generation, after.Generation = 0, 0
	if !reflect.DeepEqual(before, after) {
		t.Fatalf("stats not restored:\nbefore %+v\nafter  %+v", before, after)
	}
	if !reflect.DeepEqual(beforeSnap, m.Snapshot()) {
		t.Fatal("postings not restored")
	}
	if m.Remove("2") {
		t.Fatal("second Remove should be a no-op")
	}
	if m.Remove("unknown") {
		t.Fatal("Remove(unknown) should be a no-op")
	}
	checkDocFreq(t, m)
}

func TestRemoveLastDocumentEmptiesVocabulary(t *testing.T) {
	m := NewMemoryIndex([]string{"body"})
	m.Apply(analyzed("1", map[string]string{"body": "alpha beta"}))
	m.Remove("1")
	if terms := m.Terms(); len(terms) != 0 {
		t.Fatalf("vocabulary = %v", terms)
	}
	if m.Size() != 0 {
		t.Fatalf("size = %d after removing everything", m.Size())
	}
	s := m.Stats()
	if s.DocCount != 0 || len(s.FieldLengthTotal) != 0 {
		t.Fatalf("stats = %+v", s)
	}
}

func TestDocument(t *testing.T) {
	m := NewMemoryIndex([]string{"title"})
	m.Apply(analyzed("a", map[string]string{"title": "hello"}))
	doc, err := m.Document("a")
	if err != nil {
		t.Fatalf("Document: %v", err)
	}
	doc.Fields["title"] = "mutated"
	again, _ := m.Document("a")
	if again.Fields["title"] != "hello" {
		t.Fatal("Document returned shared state")
	}
	if _, err := m.Document("zzz"); !errors.Is(err, apperrors.ErrDocumentNotFound) {
		t.Fatalf("expected ErrDocumentNotFound, got %v", err)
	}
}

func TestPrefixTerms(t *testing.T) {
	m := NewMemoryIndex([]string{"body"})
	m.Apply(analyzed("1", map[string]string{"body": "search searcher seal sea apple zebra"}))
	m.View(func(v *View) {
		got := v.PrefixTerms("sea")
		want := []string{"sea", "seal", "search", "searcher"}
		if !reflect.DeepEqual(got, want) {
			t.Errorf("PrefixTerms(sea) = %v, want %v", got, want)
		}
		if got := v.PrefixTerms("q"); len(got) != 0 {
			t.Errorf("PrefixTerms(q) = %v", got)
		}
	})
	if got := m.Terms(); !reflect.DeepEqual(got, []string{"apple", "sea", "seal", "search", "searcher", "zebra"}) {
		t.Errorf("Terms = %v", got)
	}
}

func TestGenerationAdvancesOnMutation(t *testing.T) {
	m := NewMemoryIndex([]string{"body"})
	g0 := m.Generation()
	m.Apply(analyzed("1", map[string]string{"body": "x"}))
	g1 := m.Generation()
	m.Remove("missing")
	if m.Generation() != g1 {
		t.Fatal("no-op remove must not advance generation")
	}
	m.Remove("1")
	if !(g0 < g1 && g1 < m.Generation()) {
		t.Fatalf("generations %d %d %d", g0, g1, m.Generation())
	}
}

func TestConcurrentReadersSeeWholeMutations(t *testing.T) {
	m := NewMemoryIndex([]string{"body"})
	var wg sync.WaitGroup
	stop := make(chan struct{})
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				m.View(func(v *View) {
					// every document holds "common" exactly once
					if df := v.DocFreq("common"); df != v.DocCount() {
						t.Errorf("df(common) = %d with %d docs", df, v.DocCount())
					}
				})
			}
		}()
	}
	for i := 0; i < 500; i++ {
		ref := fmt.Sprintf("doc-%d", i%50)
		if i%7 == 0 {
			m.Remove(ref)
			continue
		}
		m.Apply(analyzed(ref, map[string]string{"body": fmt.Sprintf("common term%d", i)}))
	}
	close(stop)
	wg.Wait()
	checkDocFreq(t, m)
}
