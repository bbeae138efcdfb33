// Package tokenizer splits raw field text into tokens. It only segments:
// case folding, stop-word removal and stemming are pipeline stages, so the
// same Tokenizer serves both documents and queries.
package tokenizer

import (
	"iter"
	"strings"
	"unicode"
)

// DefaultSeparators are split on in addition to whitespace.
const DefaultSeparators = "-"

// Token is a raw token, its byte offset in the source text and its ordinal
// position among the tokens of that text.
type Token struct {
	Text     string
	Start    int
	Position int
}

type Tokenizer struct {
	separators string
}

func New(separators string) *Tokenizer {
	return &Tokenizer{separators: separators}
}

// Default splits on whitespace and hyphens.
func Default() *Tokenizer {
	return New(DefaultSeparators)
}

// Separators returns the extra separator runes, for snapshot fingerprints.
func (t *Tokenizer) Separators() string {
	return t.separators
}

func (t *Tokenizer) isBoundary(r rune) bool {
	return unicode.IsSpace(r) || strings.ContainsRune(t.separators, r)
}

// Tokens returns a lazy sequence over text. Every range over the returned
// sequence scans text again from the start.
func (t *Tokenizer) Tokens(text string) iter.Seq[Token] {
	return func(yield func(Token) bool) {
		pos := 0
		start := -1
		for i, r := range text {
			if t.isBoundary(r) {
				if start >= 0 {
					if !yield(Token{Text: text[start:i], Start: start, Position: pos}) {
						return
					}
					pos++
					start = -1
				}
				continue
			}
			if start < 0 {
				start = i
			}
		}
		if start >= 0 {
			yield(Token{Text: text[start:], Start: start, Position: pos})
		}
	}
}

// Collect materialises Tokens(text).
func (t *Tokenizer) Collect(text string) []Token {
	tokens := make([]Token, 0, len(text)/6)
	for tok := range t.Tokens(text) {
		tokens = append(tokens, tok)
	}
	return tokens
}

// Strings returns only the token texts, in order.
func (t *Tokenizer) Strings(text string) []string {
	out := make([]string, 0, len(text)/6)
	for tok := range t.Tokens(text) {
		out = append(out, tok.Text)
	}
	return out
}
