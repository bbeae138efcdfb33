package pipeline

import (
	"strings"
	"unicode"

	porterstemmer "github.com/blevesearch/go-porterstemmer"
)

// Reserved names of the built-in stages.
const (
	Lowercase      = "lowercase"
	Trimmer        = "trimmer"
	StopWordFilter = "stopWordFilter"
	Stemmer        = "stemmer"
	SuffixStemmer  = "suffixStemmer"
	MinLength      = "minLength"
)

// DefaultStages is the stage order used when nothing else is configured.
var DefaultStages = []string{Lowercase, Trimmer, StopWordFilter, Stemmer}

var englishStopWords = []string{
	"a", "an", "and", "are", "as", "at",
	"be", "by", "for", "from", "has", "he",
	"in", "is", "it", "its", "of", "on",
	"or", "that", "the", "to", "was", "were",
	"will", "with", "this", "but", "they",
	"have", "had", "what", "when", "where",
	"who", "which", "their", "if", "each",
	"do", "not", "no", "so", "can",
}

func NewLowercase() Stage {
	return MapFunc(Lowercase, strings.ToLower)
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}

// NewTrimmer strips leading and trailing runes that are neither letters nor
// digits, so "foo!" and "(foo" both become "foo".
func NewTrimmer() Stage {
	return MapFunc(Trimmer, func(token string) string {
		return strings.TrimFunc(token, func(r rune) bool { return !isWordRune(r) })
	})
}

// NewStopWordFilter drops tokens contained in words. The comparison is
// exact, so it belongs after lowercase.
func NewStopWordFilter(words []string) Stage {
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[w] = struct{}{}
	}
	return StageFunc(StopWordFilter, func(token string, _ int, _ []string) []string {
		if _, stop := set[token]; stop {
			return nil
		}
		return []string{token}
	})
}

// NewEnglishStopWordFilter uses the built-in English stop-word list.
func NewEnglishStopWordFilter() Stage {
	return NewStopWordFilter(englishStopWords)
}

// NewStemmer applies the Porter algorithm.
func NewStemmer() Stage {
	return MapFunc(Stemmer, func(token string) string {
		stemmed := porterstemmer.StemString(token)
		if stemmed == "" {
			return token
		}
		return stemmed
	})
}

// NewMinLength drops tokens shorter than n runes.
func NewMinLength(n int) Stage {
	return StageFunc(MinLength, func(token string, _ int, _ []string) []string {
		if len([]rune(token)) < n {
			return nil
		}
		return []string{token}
	})
}

type suffixRule struct {
	suffix      string
	replacement string
	minLen      int
}

var suffixRules = []suffixRule{
	{"ational", "ate", 2},
	{"tional", "tion", 2},
	{"encies", "ence", 2},
	{"ances", "ance", 2},
	{"ments", "ment", 2},
	{"izing", "ize", 2},
	{"ating", "ate", 2},
	{"iness", "y", 2},
	{"ously", "ous", 2},
	{"ively", "ive", 2},
	{"eness", "ene", 2},
	{"tion", "t", 3},
	{"sion", "s", 3},
	{"ying", "y", 2},
	{"ling", "l", 3},
	{"ies", "y", 2},
	{"ing", "", 3},
	{"ers", "er", 2},
	{"est", "", 3},
	{"ful", "", 3},
	{"ous", "", 3},
	{"ess", "", 3},
	{"ble", "", 3},
	{"ed", "", 3},
	{"er", "", 3},
	{"ly", "", 3},
	{"es", "", 3},
	{"ss", "ss", 2},
	{"s", "", 3},
}

// NewSuffixStemmer is a light, rule-table stemmer. It is cheaper and more
// aggressive than Porter; the first matching rule whose result keeps at
// least minLen bytes wins.
func NewSuffixStemmer() Stage {
	return MapFunc(SuffixStemmer, stripSuffix)
}

func stripSuffix(word string) string {
	for _, rule := range suffixRules {
		if strings.HasSuffix(word, rule.suffix) {
			newWord := word[:len(word)-len(rule.suffix)] + rule.replacement
			if len(newWord) >= rule.minLen {
				return newWord
			}
		}
	}
	return word
}
