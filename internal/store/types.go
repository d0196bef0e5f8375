// Package store holds the read-only retrieval state of smarthr: the passage
// metadata, the dense vector matrix, and the lexical (BM25) index built over
// the same corpus. Row i of every structure refers to the same passage.
package store

import "fmt"

// Artifact file names under <data_dir>/index/.
const (
	VectorsFile  = "vectors.npy"
	MetadataFile = "meta.jsonl"
	lockFile     = ".index.lock"
)

// Passage is one chunk of a policy document. Immutable after build.
type Passage struct {
	ID            string `json:"id"`             // content hash
	PolicyID      string `json:"policy_id"`      // source document stem
	Section       string `json:"section"`        // e.g. "sec-03"
	Text          string `json:"text"`           // 60-500 chars
	Region        string `json:"region"`         // display only
	EffectiveFrom string `json:"effective_from"` // display only, ISO date
	Source        string `json:"source,omitempty"`
}

// SourceOrDefault returns the passage source, or policy://{policy_id}/{section}
// when none was recorded.
func (p Passage) SourceOrDefault() string {
	if p.Source != "" {
		return p.Source
	}
	return fmt.Sprintf("policy://%s/%s", p.PolicyID, p.Section)
}

// ScoredIndex pairs a corpus ordinal with a raw signal score.
type ScoredIndex struct {
	Index int
	Score float64
}

// LexicalIndex scores every passage of a fixed corpus against a token list.
// Implementations are read-only after construction and safe for concurrent use.
type LexicalIndex interface {
	// Scores returns one score per passage, in corpus order.
	Scores(tokens []string) []float64

	// Len returns the number of indexed passages.
	Len() int

	// Close releases resources.
	Close() error
}

// VectorIndex answers top-K dense similarity queries.
type VectorIndex interface {
	// Search returns up to k rows by descending similarity to q.
	// ok is false when the dense signal is unusable for this query:
	// dimension mismatch, a degenerate (d <= 1) matrix, or an empty corpus.
	Search(q []float32, k int) (hits []ScoredIndex, ok bool)

	// Dimensions returns d.
	Dimensions() int

	// Len returns N.
	Len() int
}
