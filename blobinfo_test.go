package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/aa624545345/image-service/compress"
)

func TestNewBlobInfoFeatures(t *testing.T) {
	bi := NewBlobInfo(0, "blob-a", 1024, 512, 256, 0, 0)
	assert.True(t, bi.HasFeature(BlobFeatureNoExtBlobTable), "chunk_count 0 implies no ext blob table")

	bi2 := NewBlobInfo(1, "blob-b", 1024, 512, 256, 4, 0)
	assert.False(t, bi2.HasFeature(BlobFeatureNoExtBlobTable))
}

func TestSetCompressorRecomputesStargz(t *testing.T) {
	bi := NewBlobInfo(0, "blob-a", 1024, 512, 256, 4, 0)
	assert.False(t, bi.IsStargz())

	bi.SetCompressor(compress.GZip)
	assert.True(t, bi.IsStargz())

	bi.SetCompressor(compress.Zstd)
	assert.False(t, bi.IsStargz())
}

func TestBlobMetaInfoIsValid(t *testing.T) {
	var m BlobMetaInfo
	assert.False(t, m.IsValid())

	m = BlobMetaInfo{Offset: 10, CompressedSize: 20, UncompressedSize: 30}
	assert.True(t, m.IsValid())

	m.UncompressedSize = 0
	assert.False(t, m.IsValid())
}

func TestBlobInfoMutators(t *testing.T) {
	bi := NewBlobInfo(0, "blob-a", 1024, 512, 256, 4, 0)

	bi.SetReadahead(100, 200)
	assert.Equal(t, uint64(100), bi.ReadaheadOffset())
	assert.Equal(t, uint64(200), bi.ReadaheadSize())

	bi.EnableDataValidation(true)
	assert.True(t, bi.ValidateData())

	bi.SetBlobMetaInfo(1, 10, 20, 30, compress.Zstd)
	assert.True(t, bi.MetaCIIsValid())
	assert.Equal(t, compress.Zstd, bi.MetaInfo().Compressor)
}
