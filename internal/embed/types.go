package embed

import (
	"context"
	"math"
	"time"
)

// Common embedding constants
const (
	// DefaultBatchSize is the number of texts sent per embedding request.
	DefaultBatchSize = 32

	// MaxBatchSize caps a single request.
	MaxBatchSize = 256

	// DefaultTimeout bounds one remote embedding call.
	DefaultTimeout = 30 * time.Second

	// DefaultOpenAIModel is the hosted embedding model.
	DefaultOpenAIModel = "text-embedding-3-small"

	// DefaultLocalModel is the local fallback model (all-MiniLM-L6-v2 in Ollama).
	DefaultLocalModel = "all-minilm"

	// DefaultOllamaHost is where a local Ollama server listens.
	DefaultOllamaHost = "http://localhost:11434"

	// StaticDimensions is the embedding dimension for the static embedder.
	StaticDimensions = 256

	// normEpsilon keeps normalization finite for zero vectors.
	normEpsilon = 1e-12
)

// knownDimensions lists output sizes of common models so Dimensions() can
// answer before the first request.
var knownDimensions = map[string]int{
	"text-embedding-3-small": 1536,
	"text-embedding-3-large": 3072,
	"text-embedding-ada-002": 1536,
	"all-minilm":             384,
	"all-minilm:l6-v2":       384,
	"all-MiniLM-L6-v2":       384,
	"nomic-embed-text":       768,
	"mxbai-embed-large":      1024,
}

// Embedder generates vector embeddings for text.
// Every returned vector is L2-normalized.
type Embedder interface {
	// Embed generates embedding for a single text
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch generates embeddings for multiple texts, in input order
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions returns the embedding dimension, or 0 if not yet known
	Dimensions() int

	// ModelName returns the model identifier
	ModelName() string

	// Close releases resources
	Close() error
}

// normalizeVector returns v scaled to unit length. A zero vector stays zero.
func normalizeVector(v []float32) []float32 {
	var sumSquares float64
	for _, val := range v {
		sumSquares += float64(val) * float64(val)
	}

	magnitude := math.Sqrt(sumSquares) + normEpsilon

	normalized := make([]float32, len(v))
	for i, val := range v {
		normalized[i] = float32(float64(val) / magnitude)
	}
	return normalized
}

// embedOne adapts a batch call for a single text.
func embedOne(ctx context.Context, e Embedder, text string) ([]float32, error) {
	vecs, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vecs) == 0 {
		return nil, errEmptyResult
	}
	return vecs[0], nil
}
