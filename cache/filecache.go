package cache

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/sirupsen/logrus"

	storage "github.com/aa624545345/image-service"
	"github.com/aa624545345/image-service/backend"
	"github.com/aa624545345/image-service/compress"
	"github.com/aa624545345/image-service/digest"
)

// fileCache is the default BlobCache: a single local file holding the
// blob's uncompressed data, one chunk at a time, fetched from a Backend
// on demand and deduplicated across concurrent readers with a
// singleflight.Group the way the teacher's blob.fetchedRegionGroup
// dedupes concurrent fetches of the same region (fs/remote/blob.go).
type fileCache struct {
	blob    *storage.BlobInfo
	backend backend.Backend
	file    *os.File

	// chunks is every chunk of the blob, sorted by UncompressOffset, used
	// to resolve FetchRange*/Prefetch byte ranges into chunk lists. It's
	// supplied once at construction by whatever parses the blob's
	// metadata (out of scope here, per spec.md §1).
	chunks   []storage.ChunkInfo
	numHoles uint

	chunkMap *bitsetChunkMap
	group    singleflight.Group

	mu             sync.Mutex
	prefetchCancel context.CancelFunc
	prefetchWG     sync.WaitGroup
}

// NewFileCache creates a BlobCache backed by a single uncompressed cache
// file under cacheDir, named after the blob id. chunks must list every
// chunk belonging to blob; order is irrelevant, NewFileCache sorts it.
func NewFileCache(blob *storage.BlobInfo, be backend.Backend, chunks []storage.ChunkInfo, cacheDir string) (storage.BlobCache, error) {
	sorted := make([]storage.ChunkInfo, len(chunks))
	copy(sorted, chunks)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].UncompressOffset() < sorted[j].UncompressOffset()
	})

	if err := os.MkdirAll(cacheDir, 0o755); err != nil {
		return nil, fmt.Errorf("filecache: failed to create cache dir %s: %w", cacheDir, storage.ErrIO)
	}
	f, err := os.OpenFile(filepath.Join(cacheDir, blob.BlobID()), os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, fmt.Errorf("filecache: failed to open cache file for blob %s: %w", blob.BlobID(), storage.ErrIO)
	}
	if err := f.Truncate(int64(blob.UncompressedSize())); err != nil {
		f.Close()
		return nil, fmt.Errorf("filecache: failed to size cache file for blob %s: %w", blob.BlobID(), storage.ErrIO)
	}

	var numHoles uint
	for _, c := range sorted {
		if c.IsHole() {
			numHoles++
		}
	}

	chunkMapPath := filepath.Join(cacheDir, blob.BlobID()+".chunk_map")
	chunkMap, err := newBitsetChunkMap(blob.ChunkCount(), chunkMapPath)
	if err != nil {
		f.Close()
		return nil, err
	}

	return &fileCache{
		blob:     blob,
		backend:  be,
		file:     f,
		chunks:   sorted,
		numHoles: numHoles,
		chunkMap: chunkMap,
	}, nil
}

func (c *fileCache) BlobID() string                  { return c.blob.BlobID() }
func (c *fileCache) GetChunkMap() storage.ChunkMap    { return c.chunkMap }
func (c *fileCache) GetBlobObject() storage.BlobObject { return &blobObject{cache: c} }

func (c *fileCache) Close() error {
	c.StopPrefetch()
	return c.file.Close()
}

// Read implements spec.md §4.D's read algorithm: scan descriptors for
// readiness, coalesce the missing ones into merged backend ranges,
// fetch/decompress/validate/cache each range, then copy every
// descriptor's exact sub-range into the caller's buffers in order.
func (c *fileCache) Read(iovec *storage.IoVec, buffers [][]byte) (int, error) {
	if len(iovec.Descs) == 0 {
		if iovec.Size == 0 {
			return 0, nil
		}
		return 0, fmt.Errorf("filecache: io vector size doesn't match: %w", storage.ErrInvalidInput)
	}
	if !iovec.Validate() {
		return 0, fmt.Errorf("filecache: io vector targets multiple blobs: %w", storage.ErrInvalidInput)
	}

	chunks := make([]storage.ChunkInfo, 0, len(iovec.Descs))
	for _, d := range iovec.Descs {
		chunks = append(chunks, d.Chunk)
	}
	if err := c.ensureChunksReady(context.Background(), chunks); err != nil {
		return 0, err
	}

	w := newScatterWriter(buffers)
	for _, d := range iovec.Descs {
		if d.Chunk.IsHole() {
			if _, err := w.WriteZeros(int(d.Size)); err != nil {
				return w.written, fmt.Errorf("filecache: write failed: %w", storage.ErrIO)
			}
			continue
		}
		buf := make([]byte, d.Size)
		if _, err := c.file.ReadAt(buf, int64(d.Chunk.UncompressOffset())+int64(d.Offset)); err != nil {
			return w.written, fmt.Errorf("filecache: cache read failed for blob %s: %w", c.blob.BlobID(), storage.ErrIO)
		}
		if _, err := w.Write(buf); err != nil {
			return w.written, fmt.Errorf("filecache: write failed: %w", storage.ErrIO)
		}
	}
	return w.written, nil
}

// Prefetch warms the cache for explicit byte ranges (requests, resolved
// against the blob's uncompressed layout) and/or for the chunks a set of
// descriptors names directly.
func (c *fileCache) Prefetch(requests []storage.PrefetchRequest, descs []*storage.IoDesc) error {
	ctx := context.Background()
	if len(descs) > 0 {
		chunks := make([]storage.ChunkInfo, 0, len(descs))
		for _, d := range descs {
			chunks = append(chunks, d.Chunk)
		}
		if err := c.ensureChunksReady(ctx, chunks); err != nil {
			return err
		}
	}
	for _, req := range requests {
		if req.Len == 0 || req.BlobID != c.blob.BlobID() {
			continue
		}
		chunks := c.chunksInUncompressedRange(req.Offset, req.Offset+req.Len)
		if err := c.ensureChunksReady(ctx, chunks); err != nil {
			return err
		}
	}
	return nil
}

// StartPrefetch launches a background fetch of the blob's configured
// readahead range, if any. It's idempotent: calling it while a prefetch
// is already running is a no-op.
func (c *fileCache) StartPrefetch() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.prefetchCancel != nil || c.blob.ReadaheadSize() == 0 {
		return nil
	}
	ctx, cancel := context.WithCancel(context.Background())
	c.prefetchCancel = cancel
	c.prefetchWG.Add(1)
	go func() {
		defer c.prefetchWG.Done()
		chunks := c.chunksInUncompressedRange(c.blob.ReadaheadOffset(), c.blob.ReadaheadOffset()+c.blob.ReadaheadSize())
		if err := c.ensureChunksReady(ctx, chunks); err != nil && ctx.Err() == nil {
			logrus.WithError(err).WithField("blob_id", c.blob.BlobID()).Warn("background readahead failed")
		}
	}()
	return nil
}

// StopPrefetch cancels and waits for any running background prefetch.
func (c *fileCache) StopPrefetch() error {
	c.mu.Lock()
	cancel := c.prefetchCancel
	c.prefetchCancel = nil
	c.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	c.prefetchWG.Wait()
	return nil
}

// ensureChunksReady fetches, decompresses, validates and caches every
// chunk in chunks that isn't already ready, skipping holes (which never
// touch the backend). Missing chunks are coalesced into contiguous
// backend ranges before fetching, mirroring the teacher's walkChunks
// region-merging.
func (c *fileCache) ensureChunksReady(ctx context.Context, chunks []storage.ChunkInfo) error {
	missing := make([]storage.ChunkInfo, 0, len(chunks))
	for _, ch := range chunks {
		if ch.IsHole() {
			continue
		}
		ready, err := c.chunkMap.IsReady(ch)
		if err != nil {
			return err
		}
		if !ready {
			missing = append(missing, ch)
		}
	}
	if len(missing) == 0 {
		return nil
	}

	for _, group := range groupContiguous(missing) {
		if err := c.fetchAndCacheGroup(ctx, group); err != nil {
			return err
		}
	}
	return nil
}

// groupContiguous partitions chunks, in the order given, into maximal
// runs of consecutive entries that are physically adjacent in the
// compressed blob.
func groupContiguous(chunks []storage.ChunkInfo) [][]storage.ChunkInfo {
	var groups [][]storage.ChunkInfo
	start := 0
	for i := 1; i <= len(chunks); i++ {
		if i == len(chunks) || chunks[i].CompressOffset() != chunks[i-1].CompressOffset()+uint64(chunks[i-1].CompressSize()) {
			groups = append(groups, chunks[start:i])
			start = i
		}
	}
	return groups
}

func (c *fileCache) fetchAndCacheGroup(ctx context.Context, group []storage.ChunkInfo) error {
	start := group[0].CompressOffset()
	var size uint64
	for _, ch := range group {
		size += uint64(ch.CompressSize())
	}

	key := fmt.Sprintf("%s:%d:%d", c.blob.BlobID(), start, size)
	v, err, _ := c.group.Do(key, func() (interface{}, error) {
		rc, err := c.backend.Fetch(ctx, c.blob.BlobID(), start, size)
		if err != nil {
			return nil, fmt.Errorf("filecache: fetch blob %s [%d,%d) failed: %w", c.blob.BlobID(), start, start+size, storage.ErrIO)
		}
		defer rc.Close()
		buf, err := io.ReadAll(rc)
		if err != nil {
			return nil, fmt.Errorf("filecache: read blob %s body failed: %w", c.blob.BlobID(), storage.ErrIO)
		}
		if uint64(len(buf)) != size {
			return nil, fmt.Errorf("filecache: short read fetching blob %s: got %d bytes, want %d: %w",
				c.blob.BlobID(), len(buf), size, storage.ErrIO)
		}
		return buf, nil
	})
	if err != nil {
		return err
	}
	buf := v.([]byte)

	for _, ch := range group {
		off := ch.CompressOffset() - start
		sub := buf[off : off+uint64(ch.CompressSize())]

		decompressed, err := compress.Decompress(c.blob.Compressor(), sub, int(ch.UncompressSize()))
		if err != nil {
			return fmt.Errorf("filecache: decompress chunk %s of blob %s failed: %w", ch.ChunkID(), c.blob.BlobID(), storage.ErrDataCorrupted)
		}
		if c.blob.ValidateData() {
			if !digest.Verify(c.blob.Digester(), ch.ChunkID(), decompressed) {
				return fmt.Errorf("filecache: chunk %s of blob %s failed digest validation: %w", ch.ChunkID(), c.blob.BlobID(), storage.ErrDataCorrupted)
			}
		}
		if _, err := c.file.WriteAt(decompressed, int64(ch.UncompressOffset())); err != nil {
			return fmt.Errorf("filecache: cache write failed for blob %s: %w", c.blob.BlobID(), storage.ErrIO)
		}
		if err := c.chunkMap.SetReady(ch); err != nil {
			return err
		}
	}
	return nil
}

// chunksInUncompressedRange returns every chunk overlapping
// [lo, hi) in the blob's uncompressed layout.
func (c *fileCache) chunksInUncompressedRange(lo, hi uint64) []storage.ChunkInfo {
	var out []storage.ChunkInfo
	for _, ch := range c.chunks {
		chStart := ch.UncompressOffset()
		chEnd := chStart + uint64(ch.UncompressSize())
		if chEnd > lo && chStart < hi {
			out = append(out, ch)
		}
	}
	return out
}

// isAllDataReady reports whether every non-hole chunk is cached.
func (c *fileCache) isAllDataReady() bool {
	return c.chunkMap.count()+c.numHoles >= uint(c.blob.ChunkCount())
}
