package cmd

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/smarthr/internal/async"
	hrerrors "github.com/Aman-CERP/smarthr/internal/errors"
	"github.com/Aman-CERP/smarthr/internal/store"
	"github.com/Aman-CERP/smarthr/internal/watcher"
)

// syncBuffer is a bytes.Buffer safe for a concurrent writer and reader.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestDescribeBatch(t *testing.T) {
	batch := []watcher.FileEvent{
		{Path: "a.md", Operation: watcher.OpCreate},
		{Path: "b.md", Operation: watcher.OpModify},
		{Path: "c.md", Operation: watcher.OpDelete},
		{Path: "d.md", Operation: watcher.OpRename},
		{Path: "e.md", Operation: watcher.OpModify},
	}

	assert.Equal(t, "a.md created", describeBatch(batch[:1]))
	assert.Equal(t, "a.md created, b.md modified, c.md deleted, 2 more", describeBatch(batch))
	assert.Equal(t, "d.md renamed", describeBatch(batch[3:4]))
}

func TestWatch_MissingPolicyFolder(t *testing.T) {
	project := isolate(t)

	_, err := run(t, "--project", project, "watch")

	require.Error(t, err)
	assert.Equal(t, hrerrors.ErrCodeFileNotFound, hrerrors.GetCode(err))
}

func TestWatch_RebuildsOnChange(t *testing.T) {
	// Given: policies but no corpus yet
	project := isolate(t)
	writePolicies(t, project)
	corpus := filepath.Join(project, "data", "processed", "corpus.jsonl")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	cmd := NewRootCmd()
	buf := &syncBuffer{}
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{"--project", project, "watch", "--debounce", "50ms"})
	done := make(chan error, 1)
	go func() { done <- cmd.ExecuteContext(ctx) }()

	// Then: the startup rebuild writes the corpus before watching starts
	require.Eventually(t, func() bool {
		return strings.Contains(buf.String(), "Watching")
	}, 10*time.Second, 20*time.Millisecond)
	passages, err := store.ReadPassagesFile(corpus)
	require.NoError(t, err)
	assert.Len(t, passages, 3)

	// When: a policy is added once the watcher is up
	time.Sleep(300 * time.Millisecond)
	body := "# Travel\n\nBusiness travel must be booked through the corporate portal at least two weeks ahead."
	require.NoError(t, os.WriteFile(filepath.Join(project, "data", "raw_policies", "travel.md"), []byte(body), 0o644))

	// Then: the corpus picks it up
	require.Eventually(t, func() bool {
		return strings.Contains(buf.String(), "Rebuilt after travel.md created")
	}, 10*time.Second, 20*time.Millisecond)
	passages, err = store.ReadPassagesFile(corpus)
	require.NoError(t, err)
	assert.Len(t, passages, 4)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("watch did not stop")
	}
	assert.False(t, async.HasIncompleteLock(filepath.Join(project, "data")))
}
