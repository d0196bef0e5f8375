package index

import (
	"context"
	"io"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/smarthr/internal/embed"
	"github.com/Aman-CERP/smarthr/internal/store"
)

// keywordEmbedder maps text to [leave, pto, remote, 1] keyword counts, so
// dense scores are predictable. providerFor lets a test vary the provider
// per call; available=false simulates every provider failing.
type keywordEmbedder struct {
	unavailable bool
	providerFor func(call int) string
	calls       atomic.Int32
}

func (k *keywordEmbedder) vector(text string) []float32 {
	v := []float32{0, 0, 0, 1}
	for _, tok := range store.Tokenize(text) {
		switch strings.Trim(tok, ".,?") {
		case "leave":
			v[0]++
		case "pto":
			v[1]++
		case "remote":
			v[2]++
		}
	}
	return v
}

func (k *keywordEmbedder) Resolve(ctx context.Context, texts []string) embed.Outcome {
	call := int(k.calls.Add(1)) - 1
	if k.unavailable || ctx.Err() != nil {
		return embed.Outcome{}
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = k.vector(t)
	}
	provider := "keyword"
	if k.providerFor != nil {
		provider = k.providerFor(call)
	}
	return embed.Outcome{Vectors: out, Provider: provider, Available: true}
}

func (k *keywordEmbedder) ResolveOne(ctx context.Context, text string) ([]float32, string, bool) {
	out := k.Resolve(ctx, []string{text})
	if !out.Available {
		return nil, "", false
	}
	return out.Vectors[0], out.Provider, true
}

func corpusPassages() []store.Passage {
	return []store.Passage{
		{ID: "a1", PolicyID: "remote-work", Section: "sec-00", Text: "Remote work requires written approval from your manager each quarter.", Region: "GLOBAL", EffectiveFrom: "2025-01-01"},
		{ID: "b2", PolicyID: "leave", Section: "sec-00", Text: "Employees may carry over up to five unused PTO days into the next calendar year.", Region: "GLOBAL", EffectiveFrom: "2025-01-01"},
		{ID: "c3", PolicyID: "parental", Section: "sec-00", Text: "Parental leave provides sixteen weeks of paid leave for all new parents.", Region: "GLOBAL", EffectiveFrom: "2025-01-01"},
		{ID: "d4", PolicyID: "expenses", Section: "sec-01", Text: "Submit travel expense reports within thirty days with itemized receipts attached.", Region: "GLOBAL", EffectiveFrom: "2025-01-01"},
		{ID: "e5", PolicyID: "holidays", Section: "sec-00", Text: "The company observes eleven paid public holidays in every office region.", Region: "GLOBAL", EffectiveFrom: "2025-01-01"},
	}
}

// writeCorpus writes passages as corpus.jsonl under a temp data dir and
// returns (corpusPath, indexDir).
func writeCorpus(t *testing.T, passages []store.Passage) (string, string) {
	t.Helper()
	dir := t.TempDir()
	corpus := filepath.Join(dir, "processed", "corpus.jsonl")
	require.NoError(t, store.WriteFileAtomic(corpus, func(w io.Writer) error {
		return store.WritePassages(w, passages)
	}))
	return corpus, filepath.Join(dir, "index")
}

func buildIndex(t *testing.T, corpus, indexDir string, emb BatchEmbedder) *BuildStats {
	t.Helper()
	b, err := NewBuilder(BuilderConfig{CorpusPath: corpus, IndexDir: indexDir, BatchSize: 2}, emb, nil)
	require.NoError(t, err)
	stats, err := b.Build(context.Background())
	require.NoError(t, err)
	return stats
}
