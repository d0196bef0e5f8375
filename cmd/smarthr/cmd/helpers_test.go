package cmd

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// envKeys are every variable the config layer reads.
var envKeys = []string{
	"SMARTHR_DATA_DIR", "SMARTHR_TOP_K", "TOP_K", "SMARTHR_USE_DENSE", "USE_DENSE",
	"SMARTHR_DENSE_WEIGHT", "SMARTHR_LEXICAL_WEIGHT", "SMARTHR_LEXICAL_BACKEND", "SMARTHR_VECTOR_BACKEND",
	"SMARTHR_EMBEDDINGS_PROVIDER", "EMBEDDINGS_PROVIDER", "SMARTHR_EMBEDDINGS_MODEL", "EMBEDDINGS_MODEL",
	"SMARTHR_LOCAL_MODEL", "ST_MODEL", "SMARTHR_OLLAMA_HOST", "OLLAMA_HOST",
	"SMARTHR_OPENAI_BASE_URL", "OPENAI_BASE_URL", "OPENAI_API_KEY", "SMARTHR_EMBEDDINGS_TIMEOUT",
	"SMARTHR_GEN_MODEL", "GEN_MODEL", "SMARTHR_USE_LLM", "USE_LLM", "SMARTHR_ANSWER_STYLE",
	"SMARTHR_LOG_LEVEL", "SMARTHR_TRANSPORT",
}

// isolate clears config env vars, points user config at a temp dir and
// selects offline static embeddings. Returns a fresh project dir.
func isolate(t *testing.T) string {
	t.Helper()
	for _, k := range envKeys {
		t.Setenv(k, "")
	}
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("HOME", t.TempDir())
	t.Setenv("NO_COLOR", "1")
	t.Setenv("SMARTHR_EMBEDDINGS_PROVIDER", "static")
	return t.TempDir()
}

// run executes the root command with args and returns combined output.
func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCmd()
	buf := &bytes.Buffer{}
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return buf.String(), err
}

var policies = map[string]string{
	"leave.md": `# Leave

Employees may carry over up to five unused PTO days into the next calendar
year. Carried days must be used before the end of March.`,
	"remote-work.md": `# Remote work

Remote work requires written approval from your manager each quarter.
Approved staff may work remotely up to three days per week.`,
	"parental.md": `# Parental leave

Parental leave provides sixteen weeks of paid time off for all new parents,
including adoptive parents, starting from the date of birth or placement.`,
}

// writePolicies creates <project>/data/raw_policies with the sample policies.
func writePolicies(t *testing.T, project string) {
	t.Helper()
	dir := filepath.Join(project, "data", "raw_policies")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	for name, body := range policies {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644))
	}
}

// buildProject runs ingest and index build for project.
func buildProject(t *testing.T, project string) {
	t.Helper()
	writePolicies(t, project)
	_, err := run(t, "--project", project, "ingest")
	require.NoError(t, err)
	_, err = run(t, "--project", project, "index", "build")
	require.NoError(t, err)
}
