// Package ranker scores documents with a per-field BM25 variant: each field
// is normalised against its own average length and weighted by its boost,
// and the per-field, per-term contributions are summed.
package ranker

import (
	"math"
	"sort"

	"github.com/Adithya-Monish-Kumar-K/textindex/internal/indexer/index"
)

const (
	DefaultK1 = 1.2
	DefaultB  = 0.75
)

type ScoredDoc struct {
	Ref   string  `json:"ref"`
	Score float64 `json:"score"`
}

type Params struct {
	K1 float64
	B  float64
}

func DefaultParams() Params {
	return Params{K1: DefaultK1, B: DefaultB}
}

// TermMatch is one query term with its postings. Weight scales the term's
// contribution; exact terms use 1, prefix expansions less.
type TermMatch struct {
	Term     string
	Weight   float64
	DocFreq  int
	Postings index.PostingList
}

// Corpus supplies the statistics the formula needs. *index.View satisfies
// it.
type Corpus interface {
	DocCount() int
	FieldLength(ref, field string) int
	AvgFieldLength(field string) float64
}

// Rank scores every document that appears in matches, orders by score
// descending and ref ascending, and cuts to limit when limit > 0. boost
// returns a field's weight.
func (p Params) Rank(matches []TermMatch, corpus Corpus, boost func(field string) float64, limit int) []ScoredDoc {
	scores := make(map[string]float64)
	n := corpus.DocCount()
	for _, m := range matches {
		if len(m.Postings) == 0 {
			continue
		}
		idf := IDF(n, m.DocFreq)
		for _, posting := range m.Postings {
			tfNorm := p.TFNorm(
				float64(posting.Frequency),
				float64(corpus.FieldLength(posting.DocRef, posting.Field)),
				corpus.AvgFieldLength(posting.Field),
			)
			scores[posting.DocRef] += m.Weight * boost(posting.Field) * idf * tfNorm
		}
	}
	result := make([]ScoredDoc, 0, len(scores))
	for ref, score := range scores {
		result = append(result, ScoredDoc{Ref: ref, Score: score})
	}
	Sort(result)
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result
}

func Sort(docs []ScoredDoc) {
	sort.Slice(docs, func(i, j int) bool {
		if docs[i].Score != docs[j].Score {
			return docs[i].Score > docs[j].Score
		}
		return docs[i].Ref < docs[j].Ref
	})
}

// IDF is the Lucene flavour of the BM25 inverse document frequency. It stays
// positive for terms present in every document, so a match always scores.
func IDF(totalDocs, docFreq int) float64 {
	numerator := float64(totalDocs) - float64(docFreq) + 0.5
	denominator := float64(docFreq) + 0.5
	return math.Log(1 + numerator/denominator)
}

func (p Params) TFNorm(termFreq, fieldLength, avgFieldLength float64) float64 {
	if termFreq <= 0 {
		return 0
	}
	lengthRatio := 1.0
	if avgFieldLength > 0 {
		lengthRatio = fieldLength / avgFieldLength
	}
	denominator := termFreq + p.K1*(1-p.B+p.B*lengthRatio)
	return (termFreq * (p.K1 + 1)) / denominator
}

// ExpansionWeight scales a vocabulary term found by prefix expansion of a
// query term: the further it extends the query, the less it counts.
func ExpansionWeight(queryTerm, indexTerm string) float64 {
	if queryTerm == indexTerm {
		return 1
	}
	diff := float64(len(indexTerm) - len(queryTerm))
	return 1 / math.Log(math.Max(3, diff))
}
