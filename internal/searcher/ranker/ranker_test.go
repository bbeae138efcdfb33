package ranker

import (
	"fmt"
	"math"
	"reflect"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/textindex/internal/indexer/index"
)

type fakeCorpus struct {
	docs    int
	lengths map[string]int
	avg     float64
}

func (c fakeCorpus) DocCount() int { return c.docs }

func (c fakeCorpus) FieldLength(ref, field string) int { return c.lengths[ref+"/"+field] }

func (c fakeCorpus) AvgFieldLength(string) float64 { return c.avg }

func uniform(string) float64 { return 1 }

func TestIDFMonotone(t *testing.T) {
	prev := math.Inf(1)
	for df := 1; df <= 100; df++ {
		idf := IDF(100, df)
		if idf > prev {
			t.Fatalf("idf increased at df=%d", df)
		}
		if idf <= 0 {
			t.Fatalf("idf(100, %d) = %v, want > 0", df, idf)
		}
		prev = idf
	}
}

func TestTFNormMonotone(t *testing.T) {
	p := DefaultParams()
	prev := 0.0
	for tf := 1; tf <= 50; tf++ {
		v := p.TFNorm(float64(tf), 10, 10)
		if v < prev {
			t.Fatalf("tfNorm decreased at tf=%d", tf)
		}
		prev = v
	}
	if p.TFNorm(0, 10, 10) != 0 {
		t.Fatal("tf 0 must score 0")
	}
	if p.TFNorm(2, 5, 0) <= 0 {
		t.Fatal("zero average length must not zero the score")
	}
}

func TestRankFieldBoost(t *testing.T) {
	corpus := fakeCorpus{docs: 2, avg: 2, lengths: map[string]int{"1/title": 2, "2/body": 2}}
	matches := []TermMatch{{
		Term:    "foo",
		Weight:  1,
		DocFreq: 2,
		Postings: index.PostingList{
			{DocRef: "1", Field: "title", Frequency: 1, Positions: []int{0}},
			{DocRef: "2", Field: "body", Frequency: 1, Positions: []int{0}},
		},
	}}
	boost := func(f string) float64 {
		if f == "title" {
			return 10
		}
		return 1
	}
	got := DefaultParams().Rank(matches, corpus, boost, 0)
	if len(got) != 2 || got[0].Ref != "1" {
		t.Fatalf("title match should rank first: %+v", got)
	}
	if math.Abs(got[0].Score-10*got[1].Score) > 0.001 {
		t.Fatalf("boost not applied proportionally: %+v", got)
	}
}

func TestRankTiesByRef(t *testing.T) {
	corpus := fakeCorpus{docs: 3, avg: 1, lengths: map[string]int{"c/body": 1, "a/body": 1, "b/body": 1}}
	matches := []TermMatch{{
		Term:    "x",
		Weight:  1,
		DocFreq: 3,
		Postings: index.PostingList{
			{DocRef: "c", Field: "body", Frequency: 1},
			{DocRef: "a", Field: "body", Frequency: 1},
			{DocRef: "b", Field: "body", Frequency: 1},
		},
	}}
	got := DefaultParams().Rank(matches, corpus, uniform, 2)
	want := []string{"a", "b"}
	if len(got) != 2 || got[0].Ref != want[0] || got[1].Ref != want[1] {
		t.Fatalf("Rank = %+v, want refs %v", got, want)
	}
	if got[0].Score != got[1].Score {
		t.Fatal("equal documents should tie")
	}
}

func TestRankSumsTerms(t *testing.T) {
	corpus := fakeCorpus{docs: 10, avg: 3, lengths: map[string]int{"1/body": 3}}
	p := DefaultParams()
	a := TermMatch{Term: "a", Weight: 1, DocFreq: 1, Postings: index.PostingList{{DocRef: "1", Field: "body", Frequency: 1}}}
	b := TermMatch{Term: "b", Weight: 1, DocFreq: 4, Postings: index.PostingList{{DocRef: "1", Field: "body", Frequency: 2}}}

	got := p.Rank([]TermMatch{a, b}, corpus, uniform, 0)
	want := IDF(10, 1)*p.TFNorm(1, 3, 3) + IDF(10, 4)*p.TFNorm(2, 3, 3)
	if len(got) != 1 || got[0].Score != want {
		t.Fatalf("Rank = %+v, want score %v", got, want)
	}
	if got := p.Rank(nil, corpus, uniform, 0); got == nil || len(got) != 0 {
		t.Fatalf("no matches should give empty non-nil result, got %#v", got)
	}
}

func TestRankKeepsSmallScoresPositive(t *testing.T) {
	common := func(n int) TermMatch {
		m := TermMatch{Term: "common", Weight: 1, DocFreq: n}
		for i := 0; i < 2; i++ {
			m.Postings = append(m.Postings, index.Posting{DocRef: fmt.Sprintf("%07d", i), Field: "body", Frequency: 1})
		}
		return m
	}
	tests := []struct {
		name   string
		corpus fakeCorpus
		match  TermMatch
		boost  func(string) float64
	}{
		{"tiny boost", fakeCorpus{docs: 1, avg: 2}, common(1), func(string) float64 { return 1e-5 }},
		{"term in every document", fakeCorpus{docs: 200000, avg: 2}, common(200000), uniform},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DefaultParams().Rank([]TermMatch{tt.match}, tt.corpus, tt.boost, 0)
			if len(got) == 0 {
				t.Fatal("expected matches")
			}
			for _, d := range got {
				if d.Score <= 0 {
					t.Errorf("matched document %s scored %v", d.Ref, d.Score)
				}
			}
		})
	}
}

func TestRankOrdersTinyDifferences(t *testing.T) {
	corpus := fakeCorpus{docs: 2, avg: 2, lengths: map[string]int{"a/body": 2, "b/title": 2}}
	matches := []TermMatch{{
		Term:    "x",
		Weight:  1,
		DocFreq: 2,
		Postings: index.PostingList{
			{DocRef: "a", Field: "body", Frequency: 1},
			{DocRef: "b", Field: "title", Frequency: 1},
		},
	}}
	boost := func(f string) float64 {
		if f == "title" {
			return 1.00001
		}
		return 1
	}
	got := DefaultParams().Rank(matches, corpus, boost, 0)
	if len(got) != 2 || got[0].Ref != "b" || !(got[0].Score > got[1].Score) {
		t.Fatalf("higher score must rank first regardless of ref: %+v", got)
	}
}

func TestExpansionWeight(t *testing.T) {
	if ExpansionWeight("foo", "foo") != 1 {
		t.Fatal("exact term must weigh 1")
	}
	near := ExpansionWeight("sea", "seal")
	far := ExpansionWeight("sea", "searchable")
	if !(near < 1 && far < near) {
		t.Fatalf("weights near=%v far=%v", near, far)
	}
	if near != 1/math.Log(3) {
		t.Fatalf("short extensions use the floor: %v", near)
	}
}

func TestSort(t *testing.T) {
	docs := []ScoredDoc{{"b", 1}, {"a", 1}, {"c", 2}}
	Sort(docs)
	want := []ScoredDoc{{"c", 2}, {"a", 1}, {"b", 1}}
	if !reflect.DeepEqual(docs, want) {
		t.Fatalf("Sort = %v", docs)
	}
}

func BenchmarkRank(b *testing.B) {
	for _, numDocs := range []int{100, 1000, 10000} {
		b.Run(fmt.Sprintf("docs_%d", numDocs), func(b *testing.B) {
			pl := make(index.PostingList, numDocs)
			lengths := make(map[string]int, numDocs)
			for i := 0; i < numDocs; i++ {
				ref := fmt.Sprintf("doc-%d", i)
				pl[i] = index.Posting{DocRef: ref, Field: "body", Frequency: (i % 10) + 1, Positions: []int{0, 5, 10}}
				lengths[ref+"/body"] = 100 + i%50
			}
			corpus := fakeCorpus{docs: numDocs * 2, avg: 125, lengths: lengths}
			matches := []TermMatch{{Term: "search", Weight: 1, DocFreq: numDocs, Postings: pl}}
			p := DefaultParams()

			b.ReportAllocs()
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				_ = p.Rank(matches, corpus, uniform, 10)
			}
		})
	}
}
