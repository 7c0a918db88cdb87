package cache

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	storage "github.com/aa624545345/image-service"
	"github.com/aa624545345/image-service/digest"
)

func TestBitsetChunkMap(t *testing.T) {
	dir := t.TempDir()
	path := dir + "/blob-a.chunk_map"

	m, err := newBitsetChunkMap(8, path)
	require.NoError(t, err)
	d := digest.Compute(digest.Blake3, []byte("x"))
	c, err := storage.NewChunkInfo(3, d, 0, storage.BlobChunkCompressed, 0, 10, 0, 20)
	require.NoError(t, err)

	ready, err := m.IsReady(c)
	require.NoError(t, err)
	assert.False(t, ready)

	require.NoError(t, m.SetReady(c))

	ready, err = m.IsReady(c)
	require.NoError(t, err)
	assert.True(t, ready)
	assert.Equal(t, uint(1), m.count())
}

func TestBitsetChunkMapReloadsPersistedState(t *testing.T) {
	dir := t.TempDir()
	path := dir + "/blob-a.chunk_map"

	m, err := newBitsetChunkMap(8, path)
	require.NoError(t, err)
	d := digest.Compute(digest.Blake3, []byte("x"))
	c, err := storage.NewChunkInfo(3, d, 0, storage.BlobChunkCompressed, 0, 10, 0, 20)
	require.NoError(t, err)
	require.NoError(t, m.SetReady(c))

	reloaded, err := newBitsetChunkMap(8, path)
	require.NoError(t, err)
	ready, err := reloaded.IsReady(c)
	require.NoError(t, err)
	assert.True(t, ready, "readiness must survive across a ChunkMap reload from its sidecar file")
}
