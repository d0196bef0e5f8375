package store

import (
	"fmt"
)

// LexicalBackend selects the lexical index implementation.
type LexicalBackend string

const (
	// LexicalBackendOkapi computes Okapi BM25 in process (default).
	LexicalBackendOkapi LexicalBackend = "okapi"

	// LexicalBackendBleve delegates scoring to an in-memory bleve index.
	// Scores follow bleve's similarity model rather than textbook Okapi.
	LexicalBackendBleve LexicalBackend = "bleve"
)

// ParseLexicalBackend validates a backend name. Empty selects okapi.
func ParseLexicalBackend(s string) (LexicalBackend, error) {
	switch LexicalBackend(s) {
	case LexicalBackendOkapi, "":
		return LexicalBackendOkapi, nil
	case LexicalBackendBleve:
		return LexicalBackendBleve, nil
	default:
		return "", fmt.Errorf("unknown lexical backend: %s (valid options: okapi, bleve)", s)
	}
}

// NewLexicalIndex builds a lexical index over passages with the given backend.
func NewLexicalIndex(backend string, passages []Passage) (LexicalIndex, error) {
	b, err := ParseLexicalBackend(backend)
	if err != nil {
		return nil, err
	}

	switch b {
	case LexicalBackendBleve:
		return NewBleveBM25(passages)
	default:
		return NewOkapiBM25(TokenizeAll(passages), DefaultBM25Config()), nil
	}
}
