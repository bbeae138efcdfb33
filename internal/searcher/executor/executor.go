package executor

import (
	"context"
	"log/slog"
	"time"

	"github.com/Adithya-Monish-Kumar-K/textindex/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/textindex/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/textindex/internal/searcher/parser"
	"github.com/Adithya-Monish-Kumar-K/textindex/internal/searcher/ranker"
	"github.com/Adithya-Monish-Kumar-K/textindex/pkg/metrics"
)

type SearchResult struct {
	Query      string             `json:"query"`
	TotalHits  int                `json:"total_hits"`
	Results    []ranker.ScoredDoc `json:"results"`
	TermStats  map[string]int     `json:"term_stats"`
	Generation uint64             `json:"generation"`
}

// Options tunes query execution. MaxResults caps every limit when > 0.
type Options struct {
	Params     ranker.Params
	Expand     bool
	MaxResults int
	Metrics    *metrics.Metrics
	Logger     *slog.Logger
}

type Executor struct {
	engine  *indexer.Engine
	opts    Options
	metrics *metrics.Metrics
	logger  *slog.Logger
}

func New(engine *indexer.Engine, opts Options) *Executor {
	if opts.Params == (ranker.Params{}) {
		opts.Params = ranker.DefaultParams()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Executor{
		engine:  engine,
		opts:    opts,
		metrics: opts.Metrics,
		logger:  opts.Logger.With("component", "query-executor"),
	}
}

func (e *Executor) Generation() uint64 {
	return e.engine.Generation()
}

func (e *Executor) Plain(text string) *parser.QueryPlan {
	return parser.Plain(text, e.engine.AnalyzeTerms)
}

func (e *Executor) Parse(text string) *parser.QueryPlan {
	return parser.Parse(text, e.engine.AnalyzeTerms)
}

func (e *Executor) Search(ctx context.Context, text string, limit int) (*SearchResult, error) {
	return e.Execute(ctx, e.Plain(text), limit)
}

// Query is Search with AND/OR/NOT and +/- modifiers.
func (e *Executor) Query(ctx context.Context, text string, limit int) (*SearchResult, error) {
	return e.Execute(ctx, e.Parse(text), limit)
}

type termHits struct {
	matches []ranker.TermMatch
	refs    map[string]struct{}
}

// Execute runs plan against one consistent view of the index, so the
// result reflects a whole number of mutations.
func (e *Executor) Execute(ctx context.Context, plan *parser.QueryPlan, limit int) (*SearchResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	start := time.Now()
	if e.opts.MaxResults > 0 && (limit <= 0 || limit > e.opts.MaxResults) {
		limit = e.opts.MaxResults
	}
	result := &SearchResult{
		Query:     plan.RawQuery,
		Results:   []ranker.ScoredDoc{},
		TermStats: make(map[string]int),
	}
	if plan.Empty() {
		result.Generation = e.engine.Generation()
		return result, nil
	}

	boost := e.engine.Fields().Boost
	e.engine.View(func(v *index.View) {
		result.Generation = v.Generation()

		hits := make(map[string]termHits, len(plan.Terms)+len(plan.Required))
		for _, term := range plan.Scored() {
			h := e.collect(v, term)
			hits[term] = h
			result.TermStats[term] = len(h.refs)
		}

		candidates := e.candidates(plan, hits)
		for _, term := range plan.ExcludeTerms {
			for _, p := range v.Lookup(term) {
				delete(candidates, p.DocRef)
			}
		}
		result.TotalHits = len(candidates)
		if len(candidates) == 0 {
			return
		}

		matches := make([]ranker.TermMatch, 0, len(hits))
		for _, term := range plan.Scored() {
			for _, m := range hits[term].matches {
				filtered := make(index.PostingList, 0, len(m.Postings))
				for _, p := range m.Postings {
					if _, ok := candidates[p.DocRef]; ok {
						filtered = append(filtered, p)
					}
				}
				m.Postings = filtered
				matches = append(matches, m)
			}
		}
		result.Results = e.opts.Params.Rank(matches, v, boost, limit)
	})

	elapsed := time.Since(start)
	e.metrics.ObserveSearch("computed", len(result.Results), elapsed)
	e.logger.Debug("query executed",
		"query", plan.RawQuery,
		"type", plan.Type.String(),
		"terms", plan.Scored(),
		"candidates", result.TotalHits,
		"results", len(result.Results),
		"latency_ms", elapsed.Milliseconds(),
	)
	return result, nil
}

// collect finds the postings of one query term, expanded to every
// vocabulary term it prefixes when expansion is on.
func (e *Executor) collect(v *index.View, term string) termHits {
	h := termHits{refs: make(map[string]struct{})}
	indexTerms := []string{term}
	if e.opts.Expand {
		indexTerms = v.PrefixTerms(term)
	}
	for _, it := range indexTerms {
		postings := v.Lookup(it)
		if len(postings) == 0 {
			continue
		}
		for _, p := range postings {
			h.refs[p.DocRef] = struct{}{}
		}
		h.matches = append(h.matches, ranker.TermMatch{
			Term:     it,
			Weight:   ranker.ExpansionWeight(term, it),
			DocFreq:  v.DocFreq(it),
			Postings: postings,
		})
	}
	return h
}

func (e *Executor) candidates(plan *parser.QueryPlan, hits map[string]termHits) map[string]struct{} {
	var sets []map[string]struct{}
	switch plan.Type {
	case parser.QueryAND:
		for _, term := range plan.Terms {
			sets = append(sets, hits[term].refs)
		}
	default:
		// with required terms present, optional terms only add score
		if len(plan.Terms) > 0 && len(plan.Required) == 0 {
			union := make(map[string]struct{})
			for _, term := range plan.Terms {
				for ref := range hits[term].refs {
					union[ref] = struct{}{}
				}
			}
			sets = append(sets, union)
		}
	}
	for _, term := range plan.Required {
		sets = append(sets, hits[term].refs)
	}
	return intersect(sets)
}

func intersect(sets []map[string]struct{}) map[string]struct{} {
	if len(sets) == 0 {
		return make(map[string]struct{})
	}
	smallest := 0
	for i, s := range sets {
		if len(s) < len(sets[smallest]) {
			smallest = i
		}
	}
	out := make(map[string]struct{}, len(sets[smallest]))
	for ref := range sets[smallest] {
		out[ref] = struct{}{}
	}
	for i, s := range sets {
		if i == smallest {
			continue
		}
		for ref := range out {
			if _, ok := s[ref]; !ok {
				delete(out, ref)
			}
		}
	}
	return out
}
