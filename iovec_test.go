package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aa624545345/image-service/digest"
)

func mustChunk(t *testing.T, id uint32, blobIndex uint32, flags BlobChunkFlags, compressOffset uint64, compressSize uint32, uncompressOffset uint64, uncompressSize uint32) ChunkInfo {
	t.Helper()
	d := digest.Compute(digest.Blake3, []byte{byte(id)})
	c, err := NewChunkInfo(id, d, blobIndex, flags, compressOffset, compressSize, uncompressOffset, uncompressSize)
	require.NoError(t, err)
	return c
}

func TestIoDescValidation(t *testing.T) {
	bi := NewBlobInfo(0, "blob-a", 4096, 4096, 1024, 4, 0)
	c := mustChunk(t, 0, 0, BlobChunkCompressed, 0, 100, 0, 1024)

	_, err := NewIoDesc(bi, c, 1000, 100, true)
	require.ErrorIs(t, err, ErrInvalidInput)

	d, err := NewIoDesc(bi, c, 0, 1024, true)
	require.NoError(t, err)
	assert.Equal(t, uint32(1024), d.Size)
}

// TestIsContinuousMerging exercises S4: two chunks laid out back-to-back
// in the compressed blob should merge into one range.
func TestIsContinuousMerging(t *testing.T) {
	bi := NewBlobInfo(0, "blob-a", 4096, 4096, 1024, 4, 0)
	c0 := mustChunk(t, 0, 0, BlobChunkCompressed, 0, 100, 0, 1024)
	c1 := mustChunk(t, 1, 0, BlobChunkCompressed, 100, 150, 1024, 1024)
	c2Other := mustChunk(t, 2, 1, BlobChunkCompressed, 250, 50, 0, 1024)

	bi2 := NewBlobInfo(1, "blob-b", 4096, 4096, 1024, 4, 0)

	d0, err := NewIoDesc(bi, c0, 0, 1024, true)
	require.NoError(t, err)
	d1, err := NewIoDesc(bi, c1, 0, 1024, true)
	require.NoError(t, err)
	d2, err := NewIoDesc(bi2, c2Other, 0, 1024, true)
	require.NoError(t, err)

	assert.True(t, d1.IsContinuous(d0))
	assert.False(t, d2.IsContinuous(d1), "different blob index must not merge")

	r := NewIoRange(d0, 4)
	require.NoError(t, r.Merge(d1))
	assert.Equal(t, uint64(250), r.BlobSize)
	assert.Len(t, r.Chunks, 2)

	err = r.Merge(d2)
	require.ErrorIs(t, err, ErrInvalidInput)
}

// TestIoVecSingleBlobInvariant exercises S3: mixed-blob vectors fail
// Validate.
func TestIoVecSingleBlobInvariant(t *testing.T) {
	bi0 := NewBlobInfo(0, "blob-a", 4096, 4096, 1024, 4, 0)
	bi1 := NewBlobInfo(1, "blob-b", 4096, 4096, 1024, 4, 0)
	c0 := mustChunk(t, 0, 0, BlobChunkCompressed, 0, 100, 0, 1024)
	c1 := mustChunk(t, 0, 1, BlobChunkCompressed, 0, 100, 0, 1024)

	d0, err := NewIoDesc(bi0, c0, 0, 1024, true)
	require.NoError(t, err)
	d1, err := NewIoDesc(bi1, c1, 0, 1024, true)
	require.NoError(t, err)

	v := NewIoVec()
	v.Descs = append(v.Descs, d0, d1)
	assert.False(t, v.Validate())

	idx, ok := v.GetTargetBlobIndex()
	assert.True(t, ok)
	assert.Equal(t, uint32(0), idx)
}

// TestHoleChunkHasNoCompressedBytes exercises S5: a hole chunk reads as
// zero-producing with no backend interaction, independent of this
// package (the device layer never calls the backend for hole chunks;
// see cache.fileCache.ensureChunksReady).
func TestHoleChunkHasNoCompressedBytes(t *testing.T) {
	hole := mustChunk(t, 0, 0, BlobChunkHole, 0, 0, 0, 4096)
	assert.True(t, hole.IsHole())
	assert.Equal(t, uint32(0), hole.CompressSize())
}

func TestIoSegmentIsEmptyEdgeCase(t *testing.T) {
	// Preserved open question: offset > 0 with len 0 reports non-empty.
	s := NewIoSegment(10, 0)
	assert.False(t, s.IsEmpty())

	z := NewIoSegment(0, 0)
	assert.True(t, z.IsEmpty())
}

func TestIoRangeValidateUsesUncompressedUpperBound(t *testing.T) {
	// Preserved open question: Validate bounds BlobOffset/BlobSize (which
	// are compressed-domain) against UncompressedSize.
	bi := NewBlobInfo(0, "blob-a", 2000, 100000, 1024, 4, 0)
	c := mustChunk(t, 0, 0, BlobChunkCompressed, 1500, 400, 0, 1024)
	d, err := NewIoDesc(bi, c, 0, 1024, true)
	require.NoError(t, err)
	r := NewIoRange(d, 1)
	assert.True(t, r.Validate(), "range fits under uncompressed_size even though it's a compressed-domain offset")
}

func TestIoVecAppendAndReset(t *testing.T) {
	bi := NewBlobInfo(0, "blob-a", 4096, 4096, 1024, 4, 0)
	c := mustChunk(t, 0, 0, BlobChunkCompressed, 0, 100, 0, 1024)
	d, err := NewIoDesc(bi, c, 0, 1024, true)
	require.NoError(t, err)

	a := NewIoVec()
	a.Descs = append(a.Descs, d)
	a.Size = 1024

	b := NewIoVec()
	b.Append(a)
	assert.Len(t, b.Descs, 1)
	assert.Equal(t, uint64(1024), b.Size)

	b.Reset()
	assert.Empty(t, b.Descs)
	assert.Equal(t, uint64(0), b.Size)
}
