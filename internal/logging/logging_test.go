package logging

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultLogPath(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(home, ".smarthr", "logs"), DefaultLogDir())
	assert.Equal(t, filepath.Join(home, ".smarthr", "logs", "smarthr.log"), DefaultLogPath())
}

func TestConfigs(t *testing.T) {
	def := DefaultConfig()
	assert.Equal(t, "info", def.Level)
	assert.Empty(t, def.FilePath)
	assert.True(t, def.WriteToStderr)

	dbg := DebugConfig()
	assert.Equal(t, "debug", dbg.Level)
	assert.Equal(t, DefaultLogPath(), dbg.FilePath)

	srv := ServeConfig("warn")
	assert.Equal(t, "warn", srv.Level)
	assert.False(t, srv.WriteToStderr)
	assert.Equal(t, DefaultLogPath(), srv.FilePath)
}

func TestSetup_WritesJSONToFile(t *testing.T) {
	// Given: file-only logging at info
	path := filepath.Join(t.TempDir(), "logs", "smarthr.log")
	logger, cleanup, err := Setup(Config{Level: "info", FilePath: path})
	require.NoError(t, err)

	// When
	logger.Debug("hidden")
	logger.Info("search_complete", slog.Int("results", 6))
	cleanup()

	// Then: one JSON line, debug filtered out
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 1)

	var rec map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &rec))
	assert.Equal(t, "search_complete", rec["msg"])
	assert.Equal(t, float64(6), rec["results"])
}

func TestSetup_NoOutputs(t *testing.T) {
	logger, cleanup, err := Setup(Config{Level: "debug"})

	require.NoError(t, err)
	require.NotNil(t, cleanup)
	logger.Info("discarded")
	cleanup()
}

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"INFO":    slog.LevelInfo,
		"warn":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"Error":   slog.LevelError,
		"bogus":   slog.LevelInfo,
	}
	for in, want := range tests {
		assert.Equal(t, want, ParseLevel(in), in)
	}
}

func TestFindLogFile(t *testing.T) {
	t.Run("explicit path", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "x.log")
		require.NoError(t, os.WriteFile(path, nil, 0o644))

		got, err := FindLogFile(path)

		require.NoError(t, err)
		assert.Equal(t, path, got)
	})

	t.Run("explicit path missing", func(t *testing.T) {
		_, err := FindLogFile(filepath.Join(t.TempDir(), "missing.log"))

		assert.ErrorContains(t, err, "log file not found")
	})
}

func TestRotatingWriter_Rotation(t *testing.T) {
	// Given: a writer that rotates past 16 bytes and keeps 2 files
	path := filepath.Join(t.TempDir(), "rotate.log")
	w, err := NewRotatingWriter(path, 1, 2)
	require.NoError(t, err)
	defer w.Close()
	w.maxSize = 16

	// When: four 10-byte writes
	for _, line := range []string{"first-----", "second----", "third-----", "fourth----"} {
		_, err := w.Write([]byte(line))
		require.NoError(t, err)
	}

	// Then: newest in the live file, older ones shifted, oldest dropped
	current, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "fourth----", string(current))

	one, err := os.ReadFile(path + ".1")
	require.NoError(t, err)
	assert.Equal(t, "third-----", string(one))

	two, err := os.ReadFile(path + ".2")
	require.NoError(t, err)
	assert.Equal(t, "second----", string(two))

	assert.NoFileExists(t, path+".3")
}

func TestRotatingWriter_AppendsToExisting(t *testing.T) {
	path := filepath.Join(t.TempDir(), "append.log")
	require.NoError(t, os.WriteFile(path, []byte("old\n"), 0o644))

	w, err := NewRotatingWriter(path, 1, 3)
	require.NoError(t, err)
	_, err = w.Write([]byte("new\n"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "old\nnew\n", string(data))
}

func TestRotatingWriter_WriteAfterClose(t *testing.T) {
	w, err := NewRotatingWriter(filepath.Join(t.TempDir(), "c.log"), 1, 3)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	require.NoError(t, w.Close())

	_, err = w.Write([]byte("x"))
	assert.ErrorIs(t, err, os.ErrClosed)
}

func TestRotatingWriter_ConcurrentWrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "concurrent.log")
	w, err := NewRotatingWriter(path, 1, 3)
	require.NoError(t, err)
	defer w.Close()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 25; j++ {
				_, _ = w.Write([]byte("line\n"))
			}
		}()
	}
	wg.Wait()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 200, strings.Count(string(data), "line\n"))
}

const sampleLog = `{"time":"2026-03-01T10:00:00.000Z","level":"DEBUG","msg":"dense_branch_disabled","reason":"dimension mismatch"}
{"time":"2026-03-01T10:00:01.000Z","level":"INFO","msg":"search_complete","results":6,"query_id":"q-1"}
not json
{"time":"2026-03-01T10:00:02.000Z","level":"WARN","msg":"embedding_provider_failed","provider":"openai"}
{"time":"2026-03-01T10:00:03.000Z","level":"ERROR","msg":"index_load_failed"}
`

func writeSample(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "smarthr.log")
	require.NoError(t, os.WriteFile(path, []byte(sampleLog), 0o644))
	return path
}

func TestParseLine(t *testing.T) {
	e := ParseLine(`{"time":"2026-03-01T10:00:01.000Z","level":"INFO","msg":"search_complete","results":6}`)

	assert.True(t, e.Valid)
	assert.Equal(t, "INFO", e.Level)
	assert.Equal(t, "search_complete", e.Msg)
	assert.Equal(t, map[string]any{"results": float64(6)}, e.Attrs)
	assert.Equal(t, 2026, e.Time.Year())

	assert.False(t, ParseLine("plain text").Valid)
}

func TestViewer_Tail(t *testing.T) {
	path := writeSample(t)

	t.Run("last n lines", func(t *testing.T) {
		v := NewViewer(ViewerConfig{NoColor: true}, &strings.Builder{})

		entries, err := v.Tail(path, 2)

		require.NoError(t, err)
		require.Len(t, entries, 2)
		assert.Equal(t, "embedding_provider_failed", entries[0].Msg)
		assert.Equal(t, "index_load_failed", entries[1].Msg)
	})

	t.Run("level filter keeps non-JSON lines", func(t *testing.T) {
		v := NewViewer(ViewerConfig{Level: "warn", NoColor: true}, &strings.Builder{})

		entries, err := v.Tail(path, 100)

		require.NoError(t, err)
		require.Len(t, entries, 3)
		assert.Equal(t, "not json", entries[0].Raw)
	})

	t.Run("pattern filter", func(t *testing.T) {
		v := NewViewer(ViewerConfig{Pattern: regexp.MustCompile(`openai`), NoColor: true}, &strings.Builder{})

		entries, err := v.Tail(path, 100)

		require.NoError(t, err)
		require.Len(t, entries, 1)
		assert.Equal(t, "openai", entries[0].Attrs["provider"])
	})

	t.Run("missing file", func(t *testing.T) {
		v := NewViewer(ViewerConfig{}, &strings.Builder{})

		_, err := v.Tail(filepath.Join(t.TempDir(), "none.log"), 10)

		assert.Error(t, err)
	})
}

func TestViewer_Print(t *testing.T) {
	var out strings.Builder
	v := NewViewer(ViewerConfig{NoColor: true}, &out)

	v.Print([]Entry{
		ParseLine(`{"time":"2026-03-01T10:00:01.000Z","level":"INFO","msg":"search_complete","results":6,"query_id":"q-1"}`),
		ParseLine("not json"),
	})

	assert.Equal(t, "10:00:01.000 INFO  search_complete query_id=q-1 results=6\nnot json\n", out.String())
}

func TestViewer_Follow(t *testing.T) {
	// Given: a log file with history
	path := writeSample(t)
	v := NewViewer(ViewerConfig{Level: "info"}, &strings.Builder{})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	got := make(chan Entry, 4)
	done := make(chan error, 1)
	go func() {
		done <- v.Follow(ctx, path, func(e Entry) { got <- e })
	}()

	// When: new lines are appended after Follow starts
	time.Sleep(2 * followInterval)
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	require.NoError(t, err)
	_, err = f.WriteString(`{"time":"2026-03-01T10:00:04.000Z","level":"DEBUG","msg":"skipped"}` + "\n" +
		`{"time":"2026-03-01T10:00:05.000Z","level":"INFO","msg":"index_loaded"}` + "\n")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	// Then: only the new matching entry is emitted
	select {
	case e := <-got:
		assert.Equal(t, "index_loaded", e.Msg)
	case <-time.After(2 * time.Second):
		t.Fatal("no entry followed")
	}

	cancel()
	assert.NoError(t, <-done)
	assert.Empty(t, got)
}
