package storage

import (
	"fmt"
	"sync/atomic"

	"github.com/sirupsen/logrus"
)

// BlobCacheBuilder constructs a BlobCache for the given blob, using
// whatever backend/cache configuration a FactoryConfig carries. It's the
// seam BlobDevice uses to ask the factory for a cache without importing
// the factory package directly (which would otherwise create an import
// cycle, since the factory builds caches that implement this package's
// BlobCache interface).
type BlobCacheBuilder interface {
	NewBlobCache(blob *BlobInfo) (BlobCache, error)
}

// BlobDevice is a fan-out façade over a group of per-blob BlobCache
// objects, routing each IoVec to its target cache and supervising
// prefetch start/stop across reconfiguration.
type BlobDevice struct {
	// blobs holds *[]BlobCache, indexed by blob index, swapped atomically
	// so readers never observe a partially-updated vector. This is the Go
	// rendering of the Rust implementation's ArcSwap<Vec<Arc<dyn
	// BlobCache>>> (spec.md §9 DESIGN NOTES: "Shared mutable backend
	// table").
	blobs     atomic.Pointer[[]BlobCache]
	blobCount int
}

// NewBlobDevice constructs a BlobDevice, building one cache per blob via
// builder.
func NewBlobDevice(builder BlobCacheBuilder, blobInfos []*BlobInfo) (*BlobDevice, error) {
	blobs := make([]BlobCache, 0, len(blobInfos))
	for _, bi := range blobInfos {
		c, err := builder.NewBlobCache(bi)
		if err != nil {
			return nil, err
		}
		blobs = append(blobs, c)
	}
	dev := &BlobDevice{blobCount: len(blobInfos)}
	dev.blobs.Store(&blobs)
	return dev, nil
}

// Update hot-reconfigures the device's backends. If fsPrefetch, the old
// cache set's StopPrefetch is called before the swap and the new set's
// StartPrefetch after. This ordering is mandatory: prefetch workers hold
// strong references to their cache, so stopping them first is the only
// way the old caches can be released once the swap drops the last
// reference to the old vector.
func (d *BlobDevice) Update(builder BlobCacheBuilder, blobInfos []*BlobInfo, fsPrefetch bool) error {
	old := *d.blobs.Load()
	if len(old) != len(blobInfos) {
		return fmt.Errorf("number of blobs doesn't match: have %d, want %d: %w", len(old), len(blobInfos), ErrInvalidInput)
	}

	next := make([]BlobCache, 0, len(blobInfos))
	for _, bi := range blobInfos {
		c, err := builder.NewBlobCache(bi)
		if err != nil {
			return err
		}
		next = append(next, c)
	}

	if fsPrefetch {
		stopPrefetchAll(old)
	}
	d.blobs.Store(&next)
	if fsPrefetch {
		startPrefetchAll(next)
	}

	return nil
}

// Close releases all resources held by the device's caches.
func (d *BlobDevice) Close() error {
	for _, b := range *d.blobs.Load() {
		if err := b.Close(); err != nil {
			return err
		}
	}
	return nil
}

// ReadTo reads iovec's descriptors into buffers, validating that:
//   - an empty iovec with zero Size returns 0,
//   - an empty iovec with non-zero Size is an error,
//   - iovec.Validate() holds (single-blob invariant), and
//   - iovec's blob index is within range.
func (d *BlobDevice) ReadTo(buffers [][]byte, iovec *IoVec) (int, error) {
	if len(iovec.Descs) == 0 {
		if iovec.Size == 0 {
			return 0, nil
		}
		return 0, fmt.Errorf("blob io vector size doesn't match: %w", ErrInvalidInput)
	}
	if !iovec.Validate() {
		return 0, fmt.Errorf("blob io vector targets multiple blobs: %w", ErrInvalidInput)
	}
	blobIndex := iovec.Descs[0].Blob.BlobIndex()
	blobs := *d.blobs.Load()
	if int(blobIndex) >= len(blobs) {
		return 0, fmt.Errorf("blob io vector has out of range blob_index %d: %w", blobIndex, ErrInvalidInput)
	}
	return blobs[blobIndex].Read(iovec, buffers)
}

// Prefetch issues best-effort prefetch for each prefetch request (by blob
// id) and each iovec (by blob index). Errors against individual blobs are
// logged, not propagated.
func (d *BlobDevice) Prefetch(iovecs []*IoVec, prefetches []PrefetchRequest) error {
	for i := range prefetches {
		c := d.getBlobByID(prefetches[i].BlobID)
		if c == nil {
			continue
		}
		if err := c.Prefetch(prefetches[i:i+1], nil); err != nil {
			logrus.WithError(err).WithField("blob_id", prefetches[i].BlobID).Warn("failed to prefetch blob range")
		}
	}
	for _, iovec := range iovecs {
		c := d.getBlobByIoVec(iovec)
		if c == nil {
			continue
		}
		if err := c.Prefetch(nil, iovec.Descs); err != nil {
			logrus.WithError(err).WithField("blob_id", c.BlobID()).Warn("failed to prefetch blob data")
		}
	}
	return nil
}

// StartPrefetch starts prefetch workers for every cache currently in
// service.
func (d *BlobDevice) StartPrefetch() {
	startPrefetchAll(*d.blobs.Load())
}

// StopPrefetch stops prefetch workers for every cache currently in
// service.
func (d *BlobDevice) StopPrefetch() {
	stopPrefetchAll(*d.blobs.Load())
}

func startPrefetchAll(blobs []BlobCache) {
	for _, b := range blobs {
		if err := b.StartPrefetch(); err != nil {
			logrus.WithError(err).WithField("blob_id", b.BlobID()).Warn("failed to start prefetch")
		}
	}
}

func stopPrefetchAll(blobs []BlobCache) {
	for _, b := range blobs {
		if err := b.StopPrefetch(); err != nil {
			logrus.WithError(err).WithField("blob_id", b.BlobID()).Warn("failed to stop prefetch")
		}
	}
}

// AllChunksReady reports whether every descriptor in every iovec is
// backed by a chunk the owning cache already has ready. It returns false
// on any missing chunk or unknown blob index.
func (d *BlobDevice) AllChunksReady(iovecs []*IoVec) bool {
	for _, iovec := range iovecs {
		c := d.getBlobByIoVec(iovec)
		if c == nil {
			return false
		}
		cm := c.GetChunkMap()
		for _, desc := range iovec.Descs {
			ready, err := cm.IsReady(desc.Chunk)
			if err != nil || !ready {
				return false
			}
		}
	}
	return true
}

// FetchRangeSynchronous synchronously warms the cache for each prefetch
// request with non-zero length. Fails with ErrInvalidInput if the
// resolved cache has no direct-access BlobObject. Backend failures are
// logged and propagated.
func (d *BlobDevice) FetchRangeSynchronous(requests []PrefetchRequest) error {
	for _, req := range requests {
		if req.Len == 0 {
			continue
		}
		c := d.getBlobByID(req.BlobID)
		if c == nil {
			continue
		}
		obj := c.GetBlobObject()
		if obj == nil {
			return fmt.Errorf("no support for fetching uncompressed blob data for %s: %w", req.BlobID, ErrInvalidInput)
		}
		if _, err := obj.FetchRangeUncompressed(req.Offset, req.Len); err != nil {
			logrus.WithError(err).WithFields(logrus.Fields{
				"blob_id": req.BlobID,
				"offset":  req.Offset,
				"len":     req.Len,
			}).Warn("failed to prefetch blob range synchronously")
			return err
		}
	}
	return nil
}

func (d *BlobDevice) getBlobByIoVec(iovec *IoVec) BlobCache {
	blobIndex, ok := iovec.GetTargetBlobIndex()
	if !ok {
		return nil
	}
	blobs := *d.blobs.Load()
	if int(blobIndex) >= len(blobs) {
		return nil
	}
	return blobs[blobIndex]
}

func (d *BlobDevice) getBlobByID(blobID string) BlobCache {
	for _, b := range *d.blobs.Load() {
		if b.BlobID() == blobID {
			return b
		}
	}
	return nil
}
