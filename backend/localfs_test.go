package backend

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalFSFetchAndCheck(t *testing.T) {
	dir := t.TempDir()
	content := []byte("0123456789abcdef")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "blob-1"), content, 0o644))

	be := NewLocalFS(dir)
	require.NoError(t, be.Check(context.Background(), "blob-1"))

	rc, err := be.Fetch(context.Background(), "blob-1", 4, 6)
	require.NoError(t, err)
	defer rc.Close()

	got, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, []byte("456789"), got)
}

func TestLocalFSCheckMissingBlob(t *testing.T) {
	be := NewLocalFS(t.TempDir())
	err := be.Check(context.Background(), "missing")
	assert.Error(t, err)
}
