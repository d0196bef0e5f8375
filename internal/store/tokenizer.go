package store

import "strings"

// Tokenize lowercases text and splits on whitespace. Corpus and queries
// must go through the same function so BM25 term statistics line up.
func Tokenize(text string) []string {
	return strings.Fields(strings.ToLower(text))
}

// TokenizeAll tokenizes every passage text in corpus order.
func TokenizeAll(passages []Passage) [][]string {
	out := make([][]string, len(passages))
	for i, p := range passages {
		out[i] = Tokenize(p.Text)
	}
	return out
}
