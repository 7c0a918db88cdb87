package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aa624545345/image-service/digest"
)

func TestNewChunkInfoValidation(t *testing.T) {
	d := digest.Compute(digest.Blake3, []byte("chunk"))

	t.Run("zero uncompress size rejected", func(t *testing.T) {
		_, err := NewChunkInfo(0, d, 0, 0, 0, 0, 0, 0)
		require.ErrorIs(t, err, ErrInvalidInput)
	})

	t.Run("plain chunk requires equal sizes", func(t *testing.T) {
		_, err := NewChunkInfo(0, d, 0, 0, 0, 100, 0, 200)
		require.ErrorIs(t, err, ErrInvalidInput)
	})

	t.Run("compressed chunk allows differing sizes", func(t *testing.T) {
		c, err := NewChunkInfo(1, d, 0, BlobChunkCompressed, 0, 50, 0, 200)
		require.NoError(t, err)
		assert.True(t, c.IsCompressed())
		assert.False(t, c.IsHole())
		assert.Equal(t, uint32(50), c.CompressSize())
		assert.Equal(t, uint32(200), c.UncompressSize())
	})

	t.Run("hole chunk ignores compress size mismatch", func(t *testing.T) {
		c, err := NewChunkInfo(2, d, 0, BlobChunkHole, 0, 0, 0, 4096)
		require.NoError(t, err)
		assert.True(t, c.IsHole())
	})
}

func TestAsV5(t *testing.T) {
	d := digest.Compute(digest.Blake3, []byte("chunk"))

	base, err := NewChunkInfo(0, d, 0, BlobChunkCompressed, 0, 50, 0, 200)
	require.NoError(t, err)
	_, err = AsV5(base)
	require.ErrorIs(t, err, ErrInvalidInput)

	v5, err := NewV5ChunkInfo(0, d, 0, BlobChunkCompressed, 0, 50, 0, 200, 7, 1024)
	require.NoError(t, err)
	got, err := AsV5(v5)
	require.NoError(t, err)
	assert.Equal(t, uint32(7), got.Index())
	assert.Equal(t, uint64(1024), got.FileOffset())
}

func TestBlobChunkFlagsHas(t *testing.T) {
	f := BlobChunkCompressed | BlobChunkHole
	assert.True(t, f.Has(BlobChunkCompressed))
	assert.True(t, f.Has(BlobChunkHole))
	assert.True(t, f.Has(BlobChunkCompressed|BlobChunkHole))
	assert.False(t, BlobChunkCompressed.Has(BlobChunkHole))
}
