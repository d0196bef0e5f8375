package store

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	hrerrors "github.com/Aman-CERP/smarthr/internal/errors"
)

// BuildCommand is the remedy suggested when index artifacts are absent.
const BuildCommand = "smarthr index build"

// Artifacts is the loaded, co-indexed pair of vector matrix and passages.
type Artifacts struct {
	Dir      string
	Vectors  *Matrix
	Passages []Passage
}

// ArtifactPaths returns the vectors and metadata paths inside dir.
func ArtifactPaths(dir string) (vectors, metadata string) {
	return filepath.Join(dir, VectorsFile), filepath.Join(dir, MetadataFile)
}

// CheckArtifacts returns a MissingArtifact error for the first absent file.
func CheckArtifacts(dir string) error {
	vecPath, metaPath := ArtifactPaths(dir)
	for _, p := range []string{vecPath, metaPath} {
		if _, err := os.Stat(p); errors.Is(err, fs.ErrNotExist) {
			return hrerrors.MissingArtifact(p, BuildCommand)
		} else if err != nil {
			return hrerrors.New(hrerrors.ErrCodeFilePermission, fmt.Sprintf("cannot stat %s", p), err)
		}
	}
	return nil
}

// LoadArtifacts reads vectors.npy and meta.jsonl under a shared index lock.
// Row counts must agree; the placeholder N x 1 matrix written when no
// embedder was available is accepted and later disables the dense signal.
func LoadArtifacts(ctx context.Context, dir string) (*Artifacts, error) {
	if err := CheckArtifacts(dir); err != nil {
		return nil, err
	}

	lock := NewIndexLock(dir)
	if err := lock.RLock(ctx); err != nil {
		return nil, hrerrors.New(hrerrors.ErrCodeIndexLocked, err.Error(), err)
	}
	defer func() { _ = lock.Unlock() }()

	vecPath, metaPath := ArtifactPaths(dir)

	f, err := os.Open(vecPath)
	if err != nil {
		return nil, hrerrors.CorruptIndex(fmt.Sprintf("cannot open %s", vecPath), err)
	}
	vectors, err := ReadNpy(f)
	f.Close()
	if err != nil {
		return nil, hrerrors.CorruptIndex(fmt.Sprintf("cannot decode %s", vecPath), err)
	}

	passages, err := ReadPassagesFile(metaPath)
	if err != nil {
		return nil, hrerrors.CorruptIndex(fmt.Sprintf("cannot decode %s", metaPath), err)
	}

	if vectors.Rows != len(passages) {
		return nil, hrerrors.CorruptIndex(
			fmt.Sprintf("%s has %d rows but %s has %d passages", VectorsFile, vectors.Rows, MetadataFile, len(passages)),
			nil,
		).WithDetail("dir", dir)
	}

	slog.Debug("artifacts_loaded",
		slog.String("dir", dir),
		slog.Int("passages", len(passages)),
		slog.Int("dimensions", vectors.Cols))

	return &Artifacts{Dir: dir, Vectors: vectors, Passages: passages}, nil
}

// SaveArtifacts writes both files atomically. Callers hold the exclusive lock.
func SaveArtifacts(dir string, vectors *Matrix, passages []Passage) error {
	if vectors.Rows != len(passages) {
		return fmt.Errorf("vectors have %d rows, passages %d", vectors.Rows, len(passages))
	}
	vecPath, metaPath := ArtifactPaths(dir)

	if err := WriteFileAtomic(vecPath, func(w io.Writer) error {
		return WriteNpy(w, vectors)
	}); err != nil {
		return fmt.Errorf("write %s: %w", VectorsFile, err)
	}
	if err := WriteFileAtomic(metaPath, func(w io.Writer) error {
		return WritePassages(w, passages)
	}); err != nil {
		return fmt.Errorf("write %s: %w", MetadataFile, err)
	}
	return nil
}
