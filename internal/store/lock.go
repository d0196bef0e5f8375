package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
)

// lockRetryDelay is the poll interval while waiting for a contended lock.
const lockRetryDelay = 50 * time.Millisecond

// IndexLock coordinates index readers and the builder across processes.
// Loading takes the shared lock; a build takes the exclusive lock, so a
// query process never reads a half-replaced artifact pair.
type IndexLock struct {
	path   string
	flock  *flock.Flock
	locked bool
}

// NewIndexLock creates a lock for the index directory.
// The lock file lives at <dir>/.index.lock.
func NewIndexLock(dir string) *IndexLock {
	lockPath := filepath.Join(dir, lockFile)
	return &IndexLock{
		path:  lockPath,
		flock: flock.New(lockPath),
	}
}

// Lock acquires the exclusive lock, waiting until ctx is done.
func (l *IndexLock) Lock(ctx context.Context) error {
	if err := os.MkdirAll(filepath.Dir(l.path), 0755); err != nil {
		return fmt.Errorf("failed to create lock directory: %w", err)
	}

	ok, err := l.flock.TryLockContext(ctx, lockRetryDelay)
	if err != nil {
		return fmt.Errorf("failed to acquire index lock: %w", err)
	}
	if !ok {
		return fmt.Errorf("index lock %s is held by another process", l.path)
	}
	l.locked = true
	return nil
}

// RLock acquires the shared lock, waiting until ctx is done.
func (l *IndexLock) RLock(ctx context.Context) error {
	if err := os.MkdirAll(filepath.Dir(l.path), 0755); err != nil {
		return fmt.Errorf("failed to create lock directory: %w", err)
	}

	ok, err := l.flock.TryRLockContext(ctx, lockRetryDelay)
	if err != nil {
		return fmt.Errorf("failed to acquire shared index lock: %w", err)
	}
	if !ok {
		return fmt.Errorf("index %s is being rebuilt", filepath.Dir(l.path))
	}
	l.locked = true
	return nil
}

// Unlock releases the lock. Safe to call on an unlocked IndexLock.
func (l *IndexLock) Unlock() error {
	if !l.locked {
		return nil
	}
	l.locked = false
	if err := l.flock.Unlock(); err != nil {
		return fmt.Errorf("failed to release index lock: %w", err)
	}
	return nil
}

// Path returns the lock file path.
func (l *IndexLock) Path() string {
	return l.path
}
