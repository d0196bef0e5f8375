package index

import (
	"context"
	"errors"
	"io"
	"os"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	hrerrors "github.com/Aman-CERP/smarthr/internal/errors"
	"github.com/Aman-CERP/smarthr/internal/search"
	"github.com/Aman-CERP/smarthr/internal/store"
)

func handleConfig(dir string) HandleConfig {
	return HandleConfig{Dir: dir, Engine: search.DefaultConfig()}
}

func TestHandle_NotReadyBeforeBuild(t *testing.T) {
	// Given: a handle over an empty data dir
	corpus, indexDir := writeCorpus(t, corpusPassages())
	h := NewHandle(handleConfig(indexDir), &keywordEmbedder{})

	// When
	_, err := h.HybridSearch(context.Background(), "PTO carry over")

	// Then: not ready, wrapping the missing artifact with the build hint
	require.Error(t, err)
	assert.Equal(t, hrerrors.ErrCodeIndexNotReady, hrerrors.GetCode(err))
	assert.True(t, errors.Is(err, hrerrors.MissingArtifact("", "")))
	assert.Contains(t, errors.Unwrap(err).Error(), store.BuildCommand)

	status := h.Status()
	assert.False(t, status.Ready)
	assert.NotEmpty(t, status.Error)

	// When: the index is built afterwards
	buildIndex(t, corpus, indexDir, &keywordEmbedder{})

	// Then: the earlier failure was not cached
	hits, err := h.HybridSearch(context.Background(), "PTO carry over")
	require.NoError(t, err)
	require.NotEmpty(t, hits)
	assert.Equal(t, "leave", hits[0].PolicyID)
}

func TestHandle_LoadsOnceForConcurrentCallers(t *testing.T) {
	corpus, indexDir := writeCorpus(t, corpusPassages())
	buildIndex(t, corpus, indexDir, &keywordEmbedder{})
	h := NewHandle(handleConfig(indexDir), &keywordEmbedder{})
	defer h.Close()

	var wg sync.WaitGroup
	engines := make([]*search.Engine, 8)
	for i := range engines {
		wg.Add(1)
		go func() {
			defer wg.Done()
			e, err := h.Engine(context.Background())
			assert.NoError(t, err)
			engines[i] = e
		}()
	}
	wg.Wait()

	for _, e := range engines {
		assert.Same(t, engines[0], e)
	}
	status := h.Status()
	assert.True(t, status.Ready)
	assert.Equal(t, 5, status.Passages)
	assert.Equal(t, 4, status.Dimensions)
	assert.True(t, status.Dense)
	assert.False(t, status.LoadedAt.IsZero())
}

func TestHandle_DenseAndLexicalFuse(t *testing.T) {
	// Given: a dense index where "leave" points at the parental passage
	corpus, indexDir := writeCorpus(t, corpusPassages())
	buildIndex(t, corpus, indexDir, &keywordEmbedder{})
	h := NewHandle(handleConfig(indexDir), &keywordEmbedder{})
	defer h.Close()

	// When
	res, err := h.Search(context.Background(), "how much parental leave", search.SearchOptions{})

	// Then
	require.NoError(t, err)
	assert.True(t, res.Explain.DenseUsed)
	assert.Equal(t, "keyword", res.Explain.Provider)
	assert.Equal(t, "parental", res.Hits[0].PolicyID)
	assert.Equal(t, "policy://parental/sec-00", res.Hits[0].Source)
}

func TestHandle_PlaceholderIndexRunsLexicalOnly(t *testing.T) {
	// Given: an index built while embeddings were unavailable
	corpus, indexDir := writeCorpus(t, corpusPassages())
	buildIndex(t, corpus, indexDir, &keywordEmbedder{unavailable: true})
	h := NewHandle(handleConfig(indexDir), &keywordEmbedder{})
	defer h.Close()

	// When: embeddings work at query time
	res, err := h.Search(context.Background(), "PTO days", search.SearchOptions{})

	// Then: the N x 1 matrix disables the dense signal
	require.NoError(t, err)
	assert.False(t, res.Explain.DenseUsed)
	assert.Equal(t, "leave", res.Hits[0].PolicyID)
	assert.False(t, h.Status().Dense)
}

func TestHandle_NilEmbedderRunsLexicalOnly(t *testing.T) {
	corpus, indexDir := writeCorpus(t, corpusPassages())
	buildIndex(t, corpus, indexDir, &keywordEmbedder{})
	h := NewHandle(handleConfig(indexDir), nil)
	defer h.Close()

	res, err := h.Search(context.Background(), "remote approval", search.SearchOptions{})

	require.NoError(t, err)
	assert.False(t, res.Explain.DenseUsed)
	assert.Equal(t, "remote-work", res.Hits[0].PolicyID)
}

func TestHandle_MisalignedArtifactsAreCorrupt(t *testing.T) {
	// Given: meta.jsonl rewritten with fewer lines than vectors.npy rows
	passages := corpusPassages()
	corpus, indexDir := writeCorpus(t, passages)
	buildIndex(t, corpus, indexDir, &keywordEmbedder{})
	_, metaPath := store.ArtifactPaths(indexDir)
	f, err := os.Create(metaPath)
	require.NoError(t, err)
	require.NoError(t, store.WritePassages(f, passages[:3]))
	require.NoError(t, f.Close())

	h := NewHandle(handleConfig(indexDir), nil)

	// When
	_, err = h.Engine(context.Background())

	// Then
	require.Error(t, err)
	assert.True(t, hrerrors.HasCode(err, hrerrors.ErrCodeCorruptIndex))
	assert.True(t, hrerrors.IsFatal(err))
}

func TestHandle_UnknownBackendIsConfigError(t *testing.T) {
	corpus, indexDir := writeCorpus(t, corpusPassages())
	buildIndex(t, corpus, indexDir, nil)

	for _, cfg := range []HandleConfig{
		{Dir: indexDir, LexicalBackend: "sqlite", Engine: search.DefaultConfig()},
		{Dir: indexDir, VectorBackend: "faiss", Engine: search.DefaultConfig()},
	} {
		_, err := NewHandle(cfg, nil).Engine(context.Background())
		assert.True(t, hrerrors.HasCode(err, hrerrors.ErrCodeConfigInvalid))
	}
}

func TestHandle_AlternateBackends(t *testing.T) {
	corpus, indexDir := writeCorpus(t, corpusPassages())
	buildIndex(t, corpus, indexDir, &keywordEmbedder{})
	cfg := handleConfig(indexDir)
	cfg.LexicalBackend = "bleve"
	cfg.VectorBackend = "hnsw"
	h := NewHandle(cfg, &keywordEmbedder{})
	defer h.Close()

	hits, err := h.HybridSearch(context.Background(), "remote work approval")

	require.NoError(t, err)
	require.NotEmpty(t, hits)
	assert.Equal(t, "remote-work", hits[0].PolicyID)
}

func TestHandle_ResetReloads(t *testing.T) {
	passages := corpusPassages()
	corpus, indexDir := writeCorpus(t, passages)
	buildIndex(t, corpus, indexDir, nil)
	h := NewHandle(handleConfig(indexDir), nil)
	defer h.Close()

	first, err := h.Engine(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 5, first.Len())

	// When: the index is rebuilt from a smaller corpus and the handle reset
	require.NoError(t, store.WriteFileAtomic(corpus, func(w io.Writer) error {
		return store.WritePassages(w, passages[:2])
	}))
	buildIndex(t, corpus, indexDir, nil)
	require.NoError(t, h.Reset())

	// Then
	second, err := h.Engine(context.Background())
	require.NoError(t, err)
	assert.NotSame(t, first, second)
	assert.Equal(t, 2, second.Len())
}

func TestHandle_PassageLookup(t *testing.T) {
	// Given: a built index
	corpus, indexDir := writeCorpus(t, corpusPassages())
	buildIndex(t, corpus, indexDir, nil)
	h := NewHandle(handleConfig(indexDir), nil)
	defer h.Close()

	// When / Then: a known policy section resolves
	p, ok, err := h.Passage(context.Background(), "expenses", "sec-01")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "d4", p.ID)

	// When / Then: an unknown section is reported as absent
	_, ok, err = h.Passage(context.Background(), "expenses", "sec-09")
	require.NoError(t, err)
	assert.False(t, ok)
}
