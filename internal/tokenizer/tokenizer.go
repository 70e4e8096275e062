// Package tokenizer provides text tokenisation for the search engine.
// It lower-cases input and splits on non-word boundaries. No stemming is
// applied: the index stores surface forms, and stopword removal happens in
// the build pipeline where the document's languages are known.
package tokenizer

import (
	"strings"
	"unicode"
)

// Tokenize breaks text into lowercased word tokens. A token is a maximal run
// of letters, digits, or underscores. Tokens of length one are kept here;
// dropping them is the builder's job so that query-side normalisation can
// share this function.
func Tokenize(text string) []string {
	text = strings.ToLower(text)
	return strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_'
	})
}

// Normalize lowercases and trims a single query word using the same rules the
// indexer applied at build time. It returns "" when the input holds no word
// characters.
func Normalize(word string) string {
	tokens := Tokenize(strings.TrimSpace(word))
	if len(tokens) == 0 {
		return ""
	}
	return tokens[0]
}
