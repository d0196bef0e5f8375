package preflight

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	hrerrors "github.com/Aman-CERP/smarthr/internal/errors"
	"github.com/Aman-CERP/smarthr/internal/index"
	"github.com/Aman-CERP/smarthr/internal/store"
)

// CheckRawPolicies counts the markdown policies awaiting ingestion.
func (c *Checker) CheckRawPolicies(dir string) CheckResult {
	result := CheckResult{
		Name:    "raw_policies",
		Details: dir,
	}

	matches, err := filepath.Glob(filepath.Join(dir, "*.md"))
	if err != nil {
		result.Status = StatusWarn
		result.Message = fmt.Sprintf("cannot list policies: %v", err)
		return result
	}
	if len(matches) == 0 {
		result.Status = StatusWarn
		result.Message = "no policy markdown files found"
		return result
	}

	result.Status = StatusPass
	result.Message = fmt.Sprintf("%d policy files", len(matches))
	return result
}

// CheckCorpus validates corpus.jsonl.
func (c *Checker) CheckCorpus(path string) CheckResult {
	result := CheckResult{
		Name:    "corpus",
		Details: path,
	}

	passages, err := store.ReadPassagesFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		result.Status = StatusWarn
		result.Message = fmt.Sprintf("not found; run '%s'", index.IngestCommand)
		return result
	case err != nil:
		result.Status = StatusFail
		result.Message = fmt.Sprintf("unreadable: %v", err)
		return result
	case len(passages) == 0:
		result.Status = StatusWarn
		result.Message = "empty; no passages survived ingestion"
		return result
	}

	result.Status = StatusPass
	result.Message = fmt.Sprintf("%d passages", len(passages))
	return result
}

// CheckIndex loads the index artifacts the way a query would and compares
// them with the corpus they were built from.
func (c *Checker) CheckIndex(ctx context.Context, dir, corpusPath string) CheckResult {
	result := CheckResult{
		Name:    "index",
		Details: dir,
	}

	art, err := store.LoadArtifacts(ctx, dir)
	if err != nil {
		if hrerrors.GetCode(err) == hrerrors.ErrCodeMissingArtifact {
			result.Status = StatusWarn
			result.Message = fmt.Sprintf("not built; run '%s'", store.BuildCommand)
			return result
		}
		result.Status = StatusFail
		result.Message = err.Error()
		return result
	}

	n := len(art.Passages)
	result.Status = StatusPass
	result.Message = fmt.Sprintf("%d passages, %d dimensions", n, art.Vectors.Cols)

	if art.Vectors.Cols <= 1 {
		result.Status = StatusWarn
		result.Message = fmt.Sprintf("%d passages without embeddings; queries use BM25 only", n)
	}

	if corpus, err := store.ReadPassagesFile(corpusPath); err == nil && len(corpus) != n {
		result.Status = StatusWarn
		result.Message = fmt.Sprintf("stale: corpus has %d passages, index has %d; run '%s'",
			len(corpus), n, store.BuildCommand)
	} else if err == nil && newer(corpusPath, dir) {
		result.Status = StatusWarn
		result.Message = fmt.Sprintf("corpus changed after the last build; run '%s'", store.BuildCommand)
	}

	return result
}

// newer reports whether path was modified after the index metadata.
func newer(path, dir string) bool {
	_, metaPath := store.ArtifactPaths(dir)
	a, err := os.Stat(path)
	if err != nil {
		return false
	}
	b, err := os.Stat(metaPath)
	if err != nil {
		return false
	}
	return a.ModTime().After(b.ModTime())
}
