package store

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func smallCorpus() [][]string {
	return [][]string{
		Tokenize("pto days carry over"),
		Tokenize("sick leave policy"),
		Tokenize("pto requests need approval"),
	}
}

func TestOkapiBM25_Scores_MatchesReferenceValues(t *testing.T) {
	// Given: a three-document corpus
	idx := NewOkapiBM25(smallCorpus(), DefaultBM25Config())

	// When: scoring a term unique to the first document
	scores := idx.Scores([]string{"carry"})

	// Then: only document 0 scores, with the Okapi value
	require.Len(t, scores, 3)
	assert.InDelta(t, 0.4907495075, scores[0], 1e-9)
	assert.Zero(t, scores[1])
	assert.Zero(t, scores[2])
}

func TestOkapiBM25_RepeatedQueryTokensCountRepeatedly(t *testing.T) {
	idx := NewOkapiBM25(smallCorpus(), DefaultBM25Config())

	once := idx.Scores([]string{"carry"})
	twice := idx.Scores([]string{"carry", "carry"})

	assert.InDelta(t, 2*once[0], twice[0], 1e-12)
}

func TestOkapiBM25_NegativeIDFFloored(t *testing.T) {
	// Given: "pto" appears in 2 of 3 documents, so raw idf is negative
	idx := NewOkapiBM25(smallCorpus(), DefaultBM25Config())

	// Then: idf is replaced with epsilon * mean idf over the vocabulary
	idf, ok := idx.IDF("pto")
	require.True(t, ok)
	expected := 0.25 * 8 * math.Log(2.5/1.5) / 10
	assert.InDelta(t, expected, idf, 1e-12)
	assert.InDelta(t, 0.1021651248, idf, 1e-9)

	scores := idx.Scores([]string{"pto"})
	assert.Greater(t, scores[0], 0.0)
	assert.InDelta(t, scores[0], scores[2], 1e-12)
	assert.Zero(t, scores[1])
}

func TestOkapiBM25_EmptyQueryAllZeros(t *testing.T) {
	idx := NewOkapiBM25(smallCorpus(), DefaultBM25Config())

	assert.Equal(t, []float64{0, 0, 0}, idx.Scores(nil))
	assert.Equal(t, []float64{0, 0, 0}, idx.Scores([]string{"unknown"}))
}

func TestOkapiBM25_EmptyCorpus(t *testing.T) {
	idx := NewOkapiBM25(nil, DefaultBM25Config())

	assert.Empty(t, idx.Scores([]string{"pto"}))
	assert.Equal(t, 0, idx.Len())
	assert.NoError(t, idx.Close())
}

func TestOkapiBM25_ShorterDocumentWinsAtEqualTF(t *testing.T) {
	// Given: the same term once in a short and once in a long document
	docs := [][]string{
		Tokenize("vacation accrual"),
		Tokenize("vacation accrual is computed monthly for all full time staff"),
		Tokenize("unrelated text"),
	}
	idx := NewOkapiBM25(docs, DefaultBM25Config())

	// When
	scores := idx.Scores([]string{"monthly", "vacation"})

	// Then: length normalization favors the short document for "vacation"
	short := idx.Scores([]string{"vacation"})
	assert.Greater(t, short[0], short[1])
	assert.Greater(t, scores[1], scores[0])
}
