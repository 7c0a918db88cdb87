package storage

import "errors"

// Sentinel error kinds surfaced by the blob device layer. Call sites wrap
// one of these with fmt.Errorf("...: %w", ...) so errors.Is keeps working
// across package boundaries.
var (
	// ErrInvalidInput covers malformed BlobIoVec (multi-blob, out-of-range
	// blob_index, size/length mismatch), unsupported operation arguments,
	// and misconfiguration such as a blob count mismatch on Update.
	ErrInvalidInput = errors.New("invalid input")

	// ErrNotFound is reported when a storage backend says the blob or the
	// requested range doesn't exist.
	ErrNotFound = errors.New("blob or range not found")

	// ErrIO covers transport-level backend failures, local disk failures,
	// and short reads from a backend.
	ErrIO = errors.New("io error")

	// ErrDataCorrupted is reported when digest validation fails after
	// decompression. The chunk is left absent so a later read retries it.
	ErrDataCorrupted = errors.New("data corrupted")

	// ErrUnsupported is reported when a request targets a capability the
	// current cache implementation doesn't have. (A synchronous fetch
	// against a cache with no BlobObject is reported as ErrInvalidInput.)
	ErrUnsupported = errors.New("unsupported operation")
)
