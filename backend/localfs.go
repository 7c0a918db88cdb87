package backend

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// LocalFS is a Backend that serves blobs stored as plain files in a
// directory, named by blob id. It's the backend for the local-filesystem
// deployment mode spec.md §1 lists alongside object store / registry /
// in-kernel cache.
type LocalFS struct {
	Dir string
}

// NewLocalFS creates a LocalFS backend rooted at dir.
func NewLocalFS(dir string) *LocalFS {
	return &LocalFS{Dir: dir}
}

func (l *LocalFS) path(blobID string) string {
	return filepath.Join(l.Dir, blobID)
}

// Check reports whether the blob file exists (it is stat'ed, not opened).
func (l *LocalFS) Check(ctx context.Context, blobID string) error {
	_, err := os.Stat(l.path(blobID))
	if err != nil {
		return fmt.Errorf("localfs: blob %s unreachable: %w", blobID, err)
	}
	return nil
}

// Fetch opens the blob's file and returns a section reader covering
// [offset, offset+size).
func (l *LocalFS) Fetch(ctx context.Context, blobID string, offset, size uint64) (io.ReadCloser, error) {
	f, err := os.Open(l.path(blobID))
	if err != nil {
		return nil, fmt.Errorf("localfs: failed to open blob %s: %w", blobID, err)
	}
	return &sectionReadCloser{
		SectionReader: io.NewSectionReader(f, int64(offset), int64(size)),
		closer:        f,
	}, nil
}

type sectionReadCloser struct {
	*io.SectionReader
	closer io.Closer
}

func (s *sectionReadCloser) Close() error { return s.closer.Close() }
