package storage

import "io"

// ChunkMap is a bitmap-like readiness oracle, one bit per chunk id.
// IsReady is a hint: true means the chunk is guaranteed present in local
// storage; false means the caller must fetch it.
type ChunkMap interface {
	IsReady(chunk ChunkInfo) (bool, error)
	SetReady(chunk ChunkInfo) error
}

// BlobCache is the per-blob service that serves chunk reads: it checks
// readiness, fetches from the backend, decompresses, validates, caches to
// local storage, and reports readiness.
type BlobCache interface {
	// BlobID returns the identity used for id-based lookup.
	BlobID() string
	// GetChunkMap returns the cache's readiness oracle.
	GetChunkMap() ChunkMap
	// Read serves the IoVec's descriptors into the given output buffers,
	// whose total capacity must equal iovec.Size, returning the number of
	// bytes written.
	Read(iovec *IoVec, buffers [][]byte) (int, error)
	// Prefetch schedules asynchronous warming covering the given prefetch
	// ranges and/or the chunks referenced by descs.
	Prefetch(requests []PrefetchRequest, descs []*IoDesc) error
	// StartPrefetch starts this cache's background prefetch worker(s).
	StartPrefetch() error
	// StopPrefetch stops this cache's background prefetch worker(s),
	// blocking until they've exited. Required before releasing strong
	// references to the cache during hot reconfiguration (spec.md §4.E).
	StopPrefetch() error
	// GetBlobObject returns a direct-access handle when the cache is
	// backed by a file the caller may read directly, or nil otherwise.
	GetBlobObject() BlobObject
	// Close releases the cache's resources.
	Close() error
}

// BlobObject permits direct file access to a blob's cached uncompressed
// data, when available. The intended use pattern: check
// IsAllDataReady; if false, FetchRangeUncompressed(off, size); then read
// directly from the underlying file at BaseOffset()+off.
type BlobObject interface {
	io.ReaderAt
	// BaseOffset returns where the blob starts within the underlying file.
	BaseOffset() uint64
	// IsAllDataReady reports whether every chunk of the blob is cached.
	IsAllDataReady() bool
	// FetchRangeCompressed ensures compressed range [offset, offset+size)
	// has been fetched and cached. Idempotent.
	FetchRangeCompressed(offset, size uint64) (int, error)
	// FetchRangeUncompressed ensures uncompressed range
	// [offset, offset+size) is ready for use. Idempotent.
	FetchRangeUncompressed(offset, size uint64) (int, error)
	// FetchChunks ensures every chunk referenced by an IoRange is cached.
	FetchChunks(r *IoRange) (int, error)
}
