package storage

import "fmt"

// IoDesc is one contiguous byte range inside a single chunk:
// offset_in_chunk + size <= uncompress_size(chunk) is an invariant callers
// must maintain (checked at construction below).
type IoDesc struct {
	// Blob is the blob this IO operation targets.
	Blob *BlobInfo
	// Chunk is the chunk this IO operation reads from.
	Chunk ChunkInfo
	// Offset is the offset from the start of the chunk's uncompressed
	// payload.
	Offset uint32
	// Size is the number of bytes to read.
	Size uint32
	// UserIO distinguishes caller-driven reads from internal
	// amplification/prefetch reads; lower layers use it for
	// prioritization.
	UserIO bool
}

// NewIoDesc creates a new IoDesc, validating that the requested range
// fits within the chunk's uncompressed payload.
func NewIoDesc(blob *BlobInfo, chunk ChunkInfo, offset, size uint32, userIO bool) (*IoDesc, error) {
	if uint64(offset)+uint64(size) > uint64(chunk.UncompressSize()) {
		return nil, fmt.Errorf("io range [%d,%d) exceeds chunk uncompress_size %d: %w",
			offset, offset+size, chunk.UncompressSize(), ErrInvalidInput)
	}
	return &IoDesc{Blob: blob, Chunk: chunk, Offset: offset, Size: size, UserIO: userIO}, nil
}

// IsContinuous reports whether self physically follows prev in the
// compressed blob: same blob index and prev's compressed range ends
// exactly where self's begins. Overflow of prev's range is treated as
// non-continuous rather than panicking.
func (d *IoDesc) IsContinuous(prev *IoDesc) bool {
	prevEnd := prev.Chunk.CompressOffset() + uint64(prev.Chunk.CompressSize())
	if prevEnd < prev.Chunk.CompressOffset() {
		// overflow
		return false
	}
	return prevEnd == d.Chunk.CompressOffset() && d.Blob.BlobIndex() == prev.Blob.BlobIndex()
}

// IoVec is an ordered scatter/gather list of IoDesc, all targeting the
// same blob. The single-blob invariant is the critical property checked
// by Validate and asserted before every dispatch.
type IoVec struct {
	// Flags are caller-defined flags for the whole vector.
	Flags uint32
	// Size is the total number of bytes the vector's descriptors cover.
	Size uint64
	// Descs are the ordered descriptors, executed sequentially.
	Descs []*IoDesc
}

// NewIoVec creates a new, empty IoVec.
func NewIoVec() *IoVec {
	return &IoVec{}
}

// Append concatenates other's descriptors onto v and sums the sizes.
func (v *IoVec) Append(other *IoVec) {
	v.Descs = append(v.Descs, other.Descs...)
	v.Size += other.Size
}

// Reset truncates the vector to empty and zeroes its size.
func (v *IoVec) Reset() {
	v.Size = 0
	v.Descs = v.Descs[:0]
}

// GetTargetBlob returns the blob the vector targets, or nil if empty.
func (v *IoVec) GetTargetBlob() *BlobInfo {
	if len(v.Descs) == 0 {
		return nil
	}
	return v.Descs[0].Blob
}

// GetTargetBlobIndex returns the blob index the vector targets, or
// (0, false) if empty.
func (v *IoVec) GetTargetBlobIndex() (uint32, bool) {
	if len(v.Descs) == 0 {
		return 0, false
	}
	return v.Descs[0].Blob.BlobIndex(), true
}

// IsTargetBlob reports whether the vector targets the blob with the given
// index.
func (v *IoVec) IsTargetBlob(blobIndex uint32) bool {
	return len(v.Descs) != 0 && v.Descs[0].Blob.BlobIndex() == blobIndex
}

// HasSameBlob reports whether v and other target the same blob.
func (v *IoVec) HasSameBlob(other *IoVec) bool {
	return len(v.Descs) != 0 && len(other.Descs) != 0 &&
		v.Descs[0].Blob.BlobIndex() == other.Descs[0].Blob.BlobIndex()
}

// Validate reports whether every descriptor in v shares one blob_index.
// An empty vector is trivially valid.
func (v *IoVec) Validate() bool {
	if len(v.Descs) > 1 {
		blobIndex := v.Descs[0].Blob.BlobIndex()
		for _, d := range v.Descs[1:] {
			if d.Blob.BlobIndex() != blobIndex {
				return false
			}
		}
	}
	return true
}

// IoSegment is a continuous range within a chunk's uncompressed payload.
type IoSegment struct {
	Offset uint32
	Len    uint32
}

// NewIoSegment creates a new IoSegment.
func NewIoSegment(offset, length uint32) IoSegment {
	return IoSegment{Offset: offset, Len: length}
}

// Append extends the segment in place, assuming offset directly follows
// the segment's current end (the caller guarantees this; mismatches are a
// programming error, not a runtime condition to validate here, mirroring
// the original's debug_assert-only checks).
func (s *IoSegment) Append(offset, length uint32) {
	s.Len += length
}

// IsEmpty reports whether the segment is empty. As flagged in spec.md §9
// (Open Question), this only returns true when both fields are zero — a
// segment at offset > 0 with len 0 is reported non-empty. Preserved as
// observed rather than silently "fixed".
func (s IoSegment) IsEmpty() bool {
	return s.Offset == 0 && s.Len == 0
}

// IoTag records why an IoRange needs a given chunk: to satisfy a user
// read (carrying the in-chunk sub-range) or to satisfy internal
// amplification (carrying just the chunk's compressed offset).
type IoTag struct {
	User     bool
	Segment  IoSegment
	Internal uint64
}

// IsUserIO reports whether the tag was produced for a user-issued IO.
func (t IoTag) IsUserIO() bool {
	return t.User
}

func tagFromDesc(d *IoDesc) IoTag {
	if d.UserIO {
		return IoTag{User: true, Segment: NewIoSegment(d.Offset, d.Size)}
	}
	return IoTag{User: false, Internal: d.Chunk.CompressOffset()}
}

// IoRange is a merged backend request: a contiguous compressed
// byte-range within one blob covering one or more physically adjacent
// chunks.
type IoRange struct {
	Blob      *BlobInfo
	BlobOffset uint64
	BlobSize   uint64
	Chunks     []ChunkInfo
	Tags       []IoTag
}

// NewIoRange initializes an IoRange from a single descriptor, with
// capacity pre-reserved for capacity total chunks.
func NewIoRange(d *IoDesc, capacity int) *IoRange {
	chunks := make([]ChunkInfo, 0, capacity)
	tags := make([]IoTag, 0, capacity)
	chunks = append(chunks, d.Chunk)
	tags = append(tags, tagFromDesc(d))
	return &IoRange{
		Blob:       d.Blob,
		BlobOffset: d.Chunk.CompressOffset(),
		BlobSize:   uint64(d.Chunk.CompressSize()),
		Chunks:     chunks,
		Tags:       tags,
	}
}

// Merge appends d to the range, asserting that d targets the range's blob
// and is physically contiguous with the range's current end before
// extending BlobSize.
func (r *IoRange) Merge(d *IoDesc) error {
	if d.Blob.BlobIndex() != r.Blob.BlobIndex() {
		return fmt.Errorf("chunk of blob %d can't join range of blob %d: %w",
			d.Blob.BlobIndex(), r.Blob.BlobIndex(), ErrInvalidInput)
	}
	if r.BlobOffset+r.BlobSize != d.Chunk.CompressOffset() {
		return fmt.Errorf("chunk at %d doesn't extend range ending at %d: %w",
			d.Chunk.CompressOffset(), r.BlobOffset+r.BlobSize, ErrInvalidInput)
	}
	r.Tags = append(r.Tags, tagFromDesc(d))
	r.Chunks = append(r.Chunks, d.Chunk)
	r.BlobSize += uint64(d.Chunk.CompressSize())
	return nil
}

// Validate checks the range's invariants: the range must lie within the
// blob, the parallel chunks/tags arrays must have equal length, and no two
// neighbouring chunks may share an id. Chunk id order is not otherwise
// checked, so non-adjacent duplicates pass.
//
// As flagged in spec.md §9 (Open Question, likely latent bug in the
// original): the upper bound used here is UncompressedSize, even though
// BlobOffset is derived from compressed-domain offsets. Preserved
// verbatim rather than silently changed to CompressedSize.
func (r *IoRange) Validate() bool {
	blobEnd := r.Blob.UncompressedSize()
	if r.BlobOffset >= blobEnd || r.BlobSize > blobEnd {
		return false
	}
	end := r.BlobOffset + r.BlobSize
	if end < r.BlobOffset || end > blobEnd {
		return false
	}
	if len(r.Chunks) != len(r.Tags) {
		return false
	}
	for i := 1; i < len(r.Chunks); i++ {
		if r.Chunks[i-1].ID() == r.Chunks[i].ID() {
			return false
		}
	}
	return true
}

// PrefetchRequest is an advisory to warm the cache for blob BlobID over
// [Offset, Offset+Len) in the uncompressed domain.
type PrefetchRequest struct {
	BlobID string
	Offset uint64
	Len    uint64
}
