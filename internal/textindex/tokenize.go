// Package textindex implements §4.2: an inverted full-text index over
// path_text and body_text with phrase queries, snapshot readers, and
// the bm25-like ranking formula.
package textindex

import (
	"strings"
	"unicode"

	"github.com/surgebase/porter2"
	"golang.org/x/text/unicode/norm"
)

// isCJK reports whether r belongs to a CJK Unicode block, selecting
// the script-aware tokenizer branch per §4.2 "Tokenization is
// script-aware".
func isCJK(r rune) bool {
	return unicode.In(r,
		unicode.Han, unicode.Hiragana, unicode.Katakana, unicode.Hangul)
}

// Tokenize splits text into case-folded, NFKC-normalized tokens.
// Non-CJK runs use Unicode word-boundary splitting followed by Porter2
// stemming; CJK runs are tokenized per-rune (a bundled morphological
// dictionary is out of scope for this core and is approximated here by
// single-character tokens, which still support prefix/substring
// queries over CJK text).
func Tokenize(text string) []string {
	text = norm.NFKC.String(text)

	var tokens []string
	var buf strings.Builder

	flush := func() {
		if buf.Len() == 0 {
			return
		}
		tok := strings.ToLower(buf.String())
		tok = porter2.Stem(tok)
		tokens = append(tokens, tok)
		buf.Reset()
	}

	for _, r := range text {
		switch {
		case isCJK(r):
			flush()
			tokens = append(tokens, strings.ToLower(string(r)))
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			buf.WriteRune(r)
		default:
			flush()
		}
	}
	flush()
	return tokens
}

// TokenizeQuery splits a query string into AND-tokens and phrase
// groups per §4.2 "Query language": whitespace = AND, "quoted phrase"
// = phrase.
type QueryTerm struct {
	Phrase bool
	Tokens []string // single token for Phrase=false; the full phrase's tokens otherwise
}

func TokenizeQuery(q string) []QueryTerm {
	var terms []QueryTerm
	runes := []rune(q)
	i := 0
	for i < len(runes) {
		switch {
		case unicode.IsSpace(runes[i]):
			i++
		case runes[i] == '"':
			j := i + 1
			for j < len(runes) && runes[j] != '"' {
				j++
			}
			phrase := string(runes[i+1 : j])
			if toks := Tokenize(phrase); len(toks) > 0 {
				terms = append(terms, QueryTerm{Phrase: true, Tokens: toks})
			}
			if j < len(runes) {
				j++
			}
			i = j
		default:
			j := i
			for j < len(runes) && !unicode.IsSpace(runes[j]) && runes[j] != '"' {
				j++
			}
			word := string(runes[i:j])
			for _, tok := range Tokenize(word) {
				terms = append(terms, QueryTerm{Tokens: []string{tok}})
			}
			i = j
		}
	}
	return terms
}
