// Package parser turns query text into a QueryPlan. Operators are
// recognised only in upper case (AND, OR, NOT) so that the lower-case words
// stay ordinary terms for the analysis pipeline to handle.
package parser

import (
	"slices"
	"strings"
)

type QueryType int

const (
	QueryAND QueryType = iota
	QueryOR
)

func (t QueryType) String() string {
	if t == QueryAND {
		return "AND"
	}
	return "OR"
}

// QueryPlan holds analyzed terms. In OR mode a document must match at least
// one of Terms, unless Required is non-empty, in which case Terms only add
// score. In AND mode it must match all of Terms. Required terms must always
// match and excluded terms must never match.
type QueryPlan struct {
	Terms        []string
	Required     []string
	ExcludeTerms []string
	Type         QueryType
	RawQuery     string
}

// Empty reports whether the plan can match nothing.
func (p *QueryPlan) Empty() bool {
	return len(p.Terms) == 0 && len(p.Required) == 0
}

// Scored lists the terms that contribute to the score, in first-seen order.
func (p *QueryPlan) Scored() []string {
	out := make([]string, 0, len(p.Terms)+len(p.Required))
	out = append(out, p.Required...)
	for _, t := range p.Terms {
		if !slices.Contains(out, t) {
			out = append(out, t)
		}
	}
	return out
}

// Analyzer runs raw query text through the same tokenizer and pipeline as
// the indexed documents.
type Analyzer func(text string) []string

// Plain builds the plan used by Index.Search: every analyzed term,
// disjunctive, no operators.
func Plain(query string, analyze Analyzer) *QueryPlan {
	plan := newPlan(query, QueryOR)
	for _, term := range analyze(query) {
		plan.Terms = appendUnique(plan.Terms, term)
	}
	return plan
}

// Parse reads the operator syntax: AND and OR switch the plan type, NOT or
// a leading '-' excludes the following word, and a leading '+' makes it
// required. A word may analyze to several terms or to none.
func Parse(query string, analyze Analyzer) *QueryPlan {
	plan := newPlan(query, QueryOR)
	if strings.TrimSpace(query) == "" {
		return plan
	}
	excludeNext := false
	for _, word := range strings.Fields(query) {
		switch word {
		case "AND":
			plan.Type = QueryAND
			continue
		case "OR":
			plan.Type = QueryOR
			continue
		case "NOT":
			excludeNext = true
			continue
		}

		exclude, required := excludeNext, false
		excludeNext = false
		switch {
		case strings.HasPrefix(word, "-") && len(word) > 1:
			exclude = true
			word = word[1:]
		case strings.HasPrefix(word, "+") && len(word) > 1:
			required = !exclude
			word = word[1:]
		}

		for _, term := range analyze(word) {
			switch {
			case exclude:
				plan.ExcludeTerms = appendUnique(plan.ExcludeTerms, term)
			case required:
				plan.Required = appendUnique(plan.Required, term)
			default:
				plan.Terms = appendUnique(plan.Terms, term)
			}
		}
	}

	// exclusion wins over inclusion
	plan.Terms = slices.DeleteFunc(plan.Terms, func(t string) bool {
		return slices.Contains(plan.ExcludeTerms, t) || slices.Contains(plan.Required, t)
	})
	plan.Required = slices.DeleteFunc(plan.Required, func(t string) bool {
		return slices.Contains(plan.ExcludeTerms, t)
	})
	return plan
}

func newPlan(query string, t QueryType) *QueryPlan {
	return &QueryPlan{
		Terms:        make([]string, 0),
		Required:     make([]string, 0),
		ExcludeTerms: make([]string, 0),
		Type:         t,
		RawQuery:     query,
	}
}

func appendUnique(list []string, term string) []string {
	if slices.Contains(list, term) {
		return list
	}
	return append(list, term)
}

// Normalize renders a plan canonically, for cache keys: terms are sorted so
// that equivalent queries share an entry.
func Normalize(plan *QueryPlan) string {
	terms := slices.Sorted(slices.Values(plan.Terms))
	required := slices.Sorted(slices.Values(plan.Required))
	excludes := slices.Sorted(slices.Values(plan.ExcludeTerms))

	parts := []string{plan.Type.String(), strings.Join(terms, ",")}
	if len(required) > 0 {
		parts = append(parts, "REQ:"+strings.Join(required, ","))
	}
	if len(excludes) > 0 {
		parts = append(parts, "NOT:"+strings.Join(excludes, ","))
	}
	return strings.Join(parts, "|")
}
