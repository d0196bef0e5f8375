package store

import "math"

// BM25Config holds Okapi BM25 parameters.
type BM25Config struct {
	K1      float64 // term frequency saturation
	B       float64 // length normalization
	Epsilon float64 // floor factor for negative idf, as a fraction of average idf
}

// DefaultBM25Config returns the standard Okapi parameters.
func DefaultBM25Config() BM25Config {
	return BM25Config{
		K1:      1.5,
		B:       0.75,
		Epsilon: 0.25,
	}
}

// OkapiBM25 scores a fixed, pre-tokenized corpus with Okapi BM25.
//
// idf(t) = ln((N - n_t + 0.5) / (n_t + 0.5)). Terms occurring in more than
// half the corpus get a negative idf, which is replaced by
// Epsilon * mean(idf) so very common terms still contribute a little.
type OkapiBM25 struct {
	config   BM25Config
	termFreq []map[string]int
	docLen   []float64
	avgdl    float64
	idf      map[string]float64
}

var _ LexicalIndex = (*OkapiBM25)(nil)

// NewOkapiBM25 builds the index from tokenized documents.
func NewOkapiBM25(docs [][]string, config BM25Config) *OkapiBM25 {
	idx := &OkapiBM25{
		config:   config,
		termFreq: make([]map[string]int, len(docs)),
		docLen:   make([]float64, len(docs)),
		idf:      make(map[string]float64),
	}
	if len(docs) == 0 {
		return idx
	}

	docFreq := make(map[string]int)
	var total float64
	for i, doc := range docs {
		tf := make(map[string]int, len(doc))
		for _, tok := range doc {
			tf[tok]++
		}
		for tok := range tf {
			docFreq[tok]++
		}
		idx.termFreq[i] = tf
		idx.docLen[i] = float64(len(doc))
		total += float64(len(doc))
	}
	idx.avgdl = total / float64(len(docs))

	n := float64(len(docs))
	var idfSum float64
	var negative []string
	for tok, df := range docFreq {
		v := math.Log(n-float64(df)+0.5) - math.Log(float64(df)+0.5)
		idx.idf[tok] = v
		idfSum += v
		if v < 0 {
			negative = append(negative, tok)
		}
	}
	if len(docFreq) > 0 {
		floor := config.Epsilon * idfSum / float64(len(docFreq))
		for _, tok := range negative {
			idx.idf[tok] = floor
		}
	}

	return idx
}

// Scores returns the BM25 score of every document for the query tokens.
// A token repeated in the query contributes once per occurrence; unknown
// tokens contribute nothing. An empty query yields all zeros.
func (b *OkapiBM25) Scores(tokens []string) []float64 {
	scores := make([]float64, len(b.termFreq))
	if len(scores) == 0 || b.avgdl == 0 {
		return scores
	}

	k1, bb := b.config.K1, b.config.B
	for _, tok := range tokens {
		idf, ok := b.idf[tok]
		if !ok || idf == 0 {
			continue
		}
		for i, tf := range b.termFreq {
			f := float64(tf[tok])
			if f == 0 {
				continue
			}
			norm := k1 * (1 - bb + bb*b.docLen[i]/b.avgdl)
			scores[i] += idf * f * (k1 + 1) / (f + norm)
		}
	}
	return scores
}

// IDF returns the (floored) idf of a term and whether it occurs in the corpus.
func (b *OkapiBM25) IDF(term string) (float64, bool) {
	v, ok := b.idf[term]
	return v, ok
}

// Len returns the number of documents.
func (b *OkapiBM25) Len() int {
	return len(b.termFreq)
}

// Close is a no-op; the index is purely in memory.
func (b *OkapiBM25) Close() error {
	return nil
}
