// Package preflight runs the diagnostics behind `smarthr doctor`.
//
// The checks cover the environment (data directory permissions, free disk
// space, file descriptor limits), the pipeline artifacts (raw policies,
// corpus.jsonl, vectors.npy and meta.jsonl) and the embedding provider
// chain:
//
//	checker := preflight.New(preflight.WithEmbedder(chain))
//	results := checker.RunAll(ctx, preflight.Paths{...})
//	if checker.HasCriticalFailures(results) {
//	    // Handle failures
//	}
//
// Only environment checks are required. Missing artifacts and an
// unreachable provider are warnings: the pipeline can be rerun and queries
// degrade to BM25.
package preflight
