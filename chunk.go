package storage

import (
	"fmt"

	"github.com/aa624545345/image-service/digest"
)

// BlobChunkFlags are per-chunk flags recorded on a ChunkInfo.
type BlobChunkFlags uint32

const (
	// BlobChunkCompressed marks that the chunk's data is stored
	// compressed in the blob. When clear, compress_size equals
	// uncompress_size (plain storage of incompressible data).
	BlobChunkCompressed BlobChunkFlags = 1 << iota
	// BlobChunkHole marks a chunk that has no compressed bytes and
	// produces zeros when read.
	BlobChunkHole
)

// Has reports whether f contains all bits of other.
func (f BlobChunkFlags) Has(other BlobChunkFlags) bool {
	return f&other == other
}

// ChunkInfo describes how a chunk is located within the compressed and
// uncompressed data blobs. Implementations are immutable and shared by
// every IoDesc that references them.
type ChunkInfo interface {
	// ChunkID returns the content digest identifying the chunk.
	ChunkID() digest.Digest
	// ID returns a 32-bit identifier unique within the owning blob,
	// generally used as a chunk-map/hash key.
	ID() uint32
	// BlobIndex returns the index of the owning blob.
	BlobIndex() uint32
	// CompressOffset returns the chunk's offset within the compressed blob.
	CompressOffset() uint64
	// CompressSize returns the size of the chunk in the compressed blob.
	CompressSize() uint32
	// UncompressOffset returns the chunk's offset within the uncompressed
	// (cache) blob.
	UncompressOffset() uint64
	// UncompressSize returns the size of the chunk once decompressed.
	UncompressSize() uint32
	// IsCompressed reports whether the chunk is stored compressed.
	IsCompressed() bool
	// IsHole reports whether the chunk is a hole (all zeros, no backend
	// fetch required).
	IsHole() bool
}

// V5ChunkInfo extends ChunkInfo with fields only meaningful for Rafs v5
// images, which fuse filesystem and blob metadata.
type V5ChunkInfo interface {
	ChunkInfo
	// Index returns the chunk's index in the v5 metadata's chunk array.
	Index() uint32
	// FileOffset returns the file offset within the owning Rafs file.
	FileOffset() uint64
	// Flags returns the raw v5 chunk flags.
	Flags() BlobChunkFlags
}

// AsV5 downcasts a ChunkInfo to a V5ChunkInfo. It fails with
// ErrInvalidInput if chunk isn't a v5 chunk.
func AsV5(chunk ChunkInfo) (V5ChunkInfo, error) {
	v5, ok := chunk.(V5ChunkInfo)
	if !ok {
		return nil, fmt.Errorf("chunk is not a v5 chunk: %w", ErrInvalidInput)
	}
	return v5, nil
}

// baseChunk is the canonical ChunkInfo implementation, built when parsing
// a v6 (or backend-agnostic) metadata blob.
type baseChunk struct {
	id               uint32
	chunkID          digest.Digest
	blobIndex        uint32
	flags            BlobChunkFlags
	compressOffset   uint64
	compressSize     uint32
	uncompressOffset uint64
	uncompressSize   uint32
}

// NewChunkInfo creates a new immutable ChunkInfo.
//
// uncompressSize must be > 0. When flags has BlobChunkHole set,
// compressSize is ignored (a hole has no compressed bytes). When flags
// lacks BlobChunkCompressed, compressSize must equal uncompressSize.
func NewChunkInfo(id uint32, chunkID digest.Digest, blobIndex uint32, flags BlobChunkFlags,
	compressOffset uint64, compressSize uint32, uncompressOffset uint64, uncompressSize uint32) (ChunkInfo, error) {
	if uncompressSize == 0 {
		return nil, fmt.Errorf("chunk uncompress_size must be > 0: %w", ErrInvalidInput)
	}
	if !flags.Has(BlobChunkHole) && !flags.Has(BlobChunkCompressed) && compressSize != uncompressSize {
		return nil, fmt.Errorf("plain chunk must have compress_size == uncompress_size: %w", ErrInvalidInput)
	}
	return &baseChunk{
		id:               id,
		chunkID:          chunkID,
		blobIndex:        blobIndex,
		flags:            flags,
		compressOffset:   compressOffset,
		compressSize:     compressSize,
		uncompressOffset: uncompressOffset,
		uncompressSize:   uncompressSize,
	}, nil
}

func (c *baseChunk) ChunkID() digest.Digest    { return c.chunkID }
func (c *baseChunk) ID() uint32                { return c.id }
func (c *baseChunk) BlobIndex() uint32         { return c.blobIndex }
func (c *baseChunk) CompressOffset() uint64    { return c.compressOffset }
func (c *baseChunk) CompressSize() uint32      { return c.compressSize }
func (c *baseChunk) UncompressOffset() uint64  { return c.uncompressOffset }
func (c *baseChunk) UncompressSize() uint32    { return c.uncompressSize }
func (c *baseChunk) IsCompressed() bool        { return c.flags.Has(BlobChunkCompressed) }
func (c *baseChunk) IsHole() bool              { return c.flags.Has(BlobChunkHole) }

// v5Chunk extends baseChunk with Rafs v5 filesystem metadata.
type v5Chunk struct {
	baseChunk
	index      uint32
	fileOffset uint64
}

// NewV5ChunkInfo creates a new immutable V5ChunkInfo.
func NewV5ChunkInfo(id uint32, chunkID digest.Digest, blobIndex uint32, flags BlobChunkFlags,
	compressOffset uint64, compressSize uint32, uncompressOffset uint64, uncompressSize uint32,
	index uint32, fileOffset uint64) (V5ChunkInfo, error) {
	base, err := NewChunkInfo(id, chunkID, blobIndex, flags, compressOffset, compressSize, uncompressOffset, uncompressSize)
	if err != nil {
		return nil, err
	}
	return &v5Chunk{baseChunk: *base.(*baseChunk), index: index, fileOffset: fileOffset}, nil
}

func (c *v5Chunk) Index() uint32           { return c.index }
func (c *v5Chunk) FileOffset() uint64      { return c.fileOffset }
func (c *v5Chunk) Flags() BlobChunkFlags   { return c.flags }
