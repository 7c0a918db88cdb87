package factory

import (
	"context"
	"io"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	storage "github.com/aa624545345/image-service"
	"github.com/aa624545345/image-service/backend"
)

type nopBackend struct{}

func (nopBackend) Check(ctx context.Context, blobID string) error { return nil }
func (nopBackend) Fetch(ctx context.Context, blobID string, offset, size uint64) (io.ReadCloser, error) {
	return io.NopCloser(nil), nil
}

func TestBlobFactoryDedupesByFingerprint(t *testing.T) {
	var builds int32
	builder := func(cfg FactoryConfig) (backend.Backend, error) {
		atomic.AddInt32(&builds, 1)
		return nopBackend{}, nil
	}
	chunksFor := func(blob *storage.BlobInfo) ([]storage.ChunkInfo, error) {
		return nil, nil
	}

	cfg := FactoryConfig{BackendType: "localfs", CacheDir: t.TempDir()}
	f := NewBlobFactory(cfg, builder, chunksFor)

	blobA := storage.NewBlobInfo(0, "blob-a", 4096, 4096, 1024, 0, 0)
	blobB := storage.NewBlobInfo(1, "blob-b", 4096, 4096, 1024, 0, 0)

	c1, err := f.NewBlobCache(blobA)
	require.NoError(t, err)
	c2, err := f.NewBlobCache(blobB)
	require.NoError(t, err)
	c1Again, err := f.NewBlobCache(blobA)
	require.NoError(t, err)

	assert.Same(t, c1, c1Again, "repeated requests for the same blob must return the same cache")
	assert.NotEqual(t, c1.BlobID(), c2.BlobID())
	assert.Equal(t, int32(1), atomic.LoadInt32(&builds), "one fingerprint should build its backend exactly once")
}

func TestBlobFactoryEvict(t *testing.T) {
	builder := func(cfg FactoryConfig) (backend.Backend, error) { return nopBackend{}, nil }
	chunksFor := func(blob *storage.BlobInfo) ([]storage.ChunkInfo, error) { return nil, nil }

	cfg := FactoryConfig{BackendType: "localfs", CacheDir: t.TempDir()}
	f := NewBlobFactory(cfg, builder, chunksFor)

	blobA := storage.NewBlobInfo(0, "blob-a", 4096, 4096, 1024, 0, 0)
	c1, err := f.NewBlobCache(blobA)
	require.NoError(t, err)

	require.NoError(t, f.Evict(blobA))

	c2, err := f.NewBlobCache(blobA)
	require.NoError(t, err)
	assert.NotSame(t, c1, c2, "eviction must force a fresh cache on next request")
}
