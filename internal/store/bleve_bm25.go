package store

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/custom"
	"github.com/blevesearch/bleve/v2/analysis/token/lowercase"
	"github.com/blevesearch/bleve/v2/analysis/tokenizer/whitespace"
	"github.com/blevesearch/bleve/v2/mapping"
)

// PolicyAnalyzerName is the bleve analyzer mirroring Tokenize:
// whitespace split, then lowercase.
const PolicyAnalyzerName = "policy_analyzer"

// BleveBM25 is an in-memory bleve index over the passage texts. Document ids
// are corpus ordinals so hits map straight back into the score vector.
type BleveBM25 struct {
	mu     sync.RWMutex
	index  bleve.Index
	size   int
	closed bool
}

var _ LexicalIndex = (*BleveBM25)(nil)

// bleveDocument is the indexed document shape.
type bleveDocument struct {
	Text string `json:"text"`
}

// NewBleveBM25 indexes passages into a memory-only bleve index.
func NewBleveBM25(passages []Passage) (*BleveBM25, error) {
	indexMapping, err := createIndexMapping()
	if err != nil {
		return nil, fmt.Errorf("failed to create index mapping: %w", err)
	}

	idx, err := bleve.NewMemOnly(indexMapping)
	if err != nil {
		return nil, fmt.Errorf("failed to create bleve index: %w", err)
	}

	batch := idx.NewBatch()
	for i, p := range passages {
		if err := batch.Index(strconv.Itoa(i), bleveDocument{Text: p.Text}); err != nil {
			_ = idx.Close()
			return nil, fmt.Errorf("failed to index passage %d: %w", i, err)
		}
	}
	if err := idx.Batch(batch); err != nil {
		_ = idx.Close()
		return nil, fmt.Errorf("failed to execute batch: %w", err)
	}

	return &BleveBM25{index: idx, size: len(passages)}, nil
}

func createIndexMapping() (*mapping.IndexMappingImpl, error) {
	indexMapping := bleve.NewIndexMapping()

	err := indexMapping.AddCustomAnalyzer(PolicyAnalyzerName, map[string]interface{}{
		"type":      custom.Name,
		"tokenizer": whitespace.Name,
		"token_filters": []string{
			lowercase.Name,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to add custom analyzer: %w", err)
	}

	indexMapping.DefaultAnalyzer = PolicyAnalyzerName
	indexMapping.StoreDynamic = false
	return indexMapping, nil
}

// Scores runs a disjunctive match query and spreads the hit scores over a
// full-length vector. Passages without a match score 0.
func (b *BleveBM25) Scores(tokens []string) []float64 {
	scores := make([]float64, b.size)
	if len(tokens) == 0 || b.size == 0 {
		return scores
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return scores
	}

	query := bleve.NewMatchQuery(strings.Join(tokens, " "))
	query.SetField("text")

	req := bleve.NewSearchRequest(query)
	req.Size = b.size

	result, err := b.index.SearchInContext(context.Background(), req)
	if err != nil {
		slog.Warn("bleve_search_failed", slog.String("error", err.Error()))
		return scores
	}

	for _, hit := range result.Hits {
		i, err := strconv.Atoi(hit.ID)
		if err != nil || i < 0 || i >= b.size {
			continue
		}
		scores[i] = hit.Score
	}
	return scores
}

// Len returns the number of indexed passages.
func (b *BleveBM25) Len() int {
	return b.size
}

// Close releases the bleve index. Safe to call more than once.
func (b *BleveBM25) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true
	return b.index.Close()
}
