// Package backend defines the capability the blob device layer uses to
// pull compressed bytes from wherever a blob actually lives. The wire
// protocol of any one backend is out of scope for this repository
// (spec.md §1); this package only renders the interface boundary plus
// two concrete, minimal implementations so the cache layer above it is
// exercised by something real.
package backend

import (
	"context"
	"io"
)

// Backend fetches compressed bytes for a blob and checks blob liveness.
// It mirrors the teacher's fetcher interface (check/fetch) generalized
// from a single-registry-blob scope to an arbitrary blob id.
type Backend interface {
	// Fetch returns the compressed bytes of blob blobID in range
	// [offset, offset+size). The returned reader must be closed by the
	// caller.
	Fetch(ctx context.Context, blobID string, offset, size uint64) (io.ReadCloser, error)
	// Check verifies the blob is still reachable, without transferring
	// its data.
	Check(ctx context.Context, blobID string) error
}
