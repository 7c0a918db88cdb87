package storage

import (
	"os"

	"github.com/aa624545345/image-service/compress"
	"github.com/aa624545345/image-service/digest"
)

// BlobFeatures are derived feature bits describing a blob's metadata
// layout, recomputed by computeFeatures whenever chunk_count or
// compressor change.
type BlobFeatures uint32

const (
	// BlobFeatureNoExtBlobTable marks a Rafs v5 image without an
	// extended blob table; derived from chunk_count == 0.
	BlobFeatureNoExtBlobTable BlobFeatures = 1 << iota
)

// BlobMetaInfo describes the v6 trailing chunk-information array
// embedded in a blob, laid out as
// [compressed chunk data][compressed metadata][uncompressed header].
type BlobMetaInfo struct {
	Flags              uint32
	Offset             uint64
	CompressedSize     uint64
	UncompressedSize   uint64
	Compressor         compress.Algorithm
}

// IsValid reports whether the meta chunk-info block is present, per
// spec.md: valid iff offset, compressed_size and uncompressed_size are
// all non-zero.
func (m BlobMetaInfo) IsValid() bool {
	return m.Offset != 0 && m.CompressedSize != 0 && m.UncompressedSize != 0
}

// BlobInfo is the immutable, shared configuration for a metadata/data
// blob. It's constructed once (when the metadata blob is parsed) and
// never mutated concurrently with reads against it in practice; the few
// mutators below are used only during blob-table construction.
type BlobInfo struct {
	blobIndex         uint32
	blobID            string
	features          BlobFeatures
	compressedSize    uint64
	uncompressedSize  uint64
	chunkSize         uint32
	chunkCount        uint32
	compressor        compress.Algorithm
	digester          digest.Algorithm
	readaheadOffset   uint32
	readaheadSize     uint32
	validateData      bool
	stargz            bool
	metaInfo          BlobMetaInfo
	fsCacheFile       *os.File
}

// NewBlobInfo creates a new BlobInfo and derives its feature bits.
func NewBlobInfo(blobIndex uint32, blobID string, uncompressedSize, compressedSize uint64,
	chunkSize, chunkCount uint32, features BlobFeatures) *BlobInfo {
	bi := &BlobInfo{
		blobIndex:        blobIndex,
		blobID:           blobID,
		features:         features,
		uncompressedSize: uncompressedSize,
		compressedSize:   compressedSize,
		chunkSize:        chunkSize,
		chunkCount:       chunkCount,
		compressor:       compress.None,
		digester:         digest.Blake3,
	}
	bi.computeFeatures()
	return bi
}

// computeFeatures recomputes derived flags from the blob's current
// chunk_count/compressor, mirroring BlobInfo::compute_features in the
// original Rust implementation.
func (b *BlobInfo) computeFeatures() {
	if b.chunkCount == 0 {
		b.features |= BlobFeatureNoExtBlobTable
	}
	b.stargz = b.compressor == compress.GZip
}

// HasFeature reports whether all bits of features are set.
func (b *BlobInfo) HasFeature(features BlobFeatures) bool {
	return b.features&features == features
}

func (b *BlobInfo) BlobIndex() uint32          { return b.blobIndex }
func (b *BlobInfo) BlobID() string             { return b.blobID }
func (b *BlobInfo) CompressedSize() uint64     { return b.compressedSize }
func (b *BlobInfo) UncompressedSize() uint64   { return b.uncompressedSize }
func (b *BlobInfo) ChunkSize() uint32          { return b.chunkSize }
func (b *BlobInfo) ChunkCount() uint32         { return b.chunkCount }
func (b *BlobInfo) Compressor() compress.Algorithm { return b.compressor }
func (b *BlobInfo) Digester() digest.Algorithm { return b.digester }
func (b *BlobInfo) ValidateData() bool         { return b.validateData }
func (b *BlobInfo) IsStargz() bool             { return b.stargz }

// ReadaheadOffset returns the prefetch range's starting offset.
func (b *BlobInfo) ReadaheadOffset() uint64 { return uint64(b.readaheadOffset) }

// ReadaheadSize returns the prefetch range's size. Zero disables
// prefetch for this blob.
func (b *BlobInfo) ReadaheadSize() uint64 { return uint64(b.readaheadSize) }

// SetCompressor sets the blob's compression algorithm and recomputes
// derived feature bits (compressor == GZip implies stargz).
func (b *BlobInfo) SetCompressor(c compress.Algorithm) {
	b.compressor = c
	b.computeFeatures()
}

// SetDigester sets the blob's message digest algorithm.
func (b *BlobInfo) SetDigester(d digest.Algorithm) {
	b.digester = d
}

// SetReadahead configures the blob's prefetch range. Only one range can
// be configured per blob; size == 0 disables prefetch.
func (b *BlobInfo) SetReadahead(offset, size uint64) {
	b.readaheadOffset = uint32(offset)
	b.readaheadSize = uint32(size)
}

// EnableDataValidation turns digest validation of fetched chunks on or off.
func (b *BlobInfo) EnableDataValidation(validate bool) {
	b.validateData = validate
}

// SetBlobMetaInfo sets the v6 trailing chunk-information block location.
func (b *BlobInfo) SetBlobMetaInfo(flags uint32, offset, compressedSize, uncompressedSize uint64, compressor compress.Algorithm) {
	b.metaInfo = BlobMetaInfo{
		Flags:            flags,
		Offset:           offset,
		CompressedSize:   compressedSize,
		UncompressedSize: uncompressedSize,
		Compressor:       compressor,
	}
}

// MetaCIIsValid reports whether the v6 meta chunk-info block is present.
func (b *BlobInfo) MetaCIIsValid() bool {
	return b.metaInfo.IsValid()
}

// MetaInfo returns the v6 meta chunk-info block.
func (b *BlobInfo) MetaInfo() BlobMetaInfo {
	return b.metaInfo
}

// SetFscacheFile attaches (or clears, with nil) the file handle provided
// by the Linux fscache subsystem for this blob.
func (b *BlobInfo) SetFscacheFile(f *os.File) {
	b.fsCacheFile = f
}

// FscacheFile returns the fscache file handle, or nil if none is set.
func (b *BlobInfo) FscacheFile() *os.File {
	return b.fsCacheFile
}
