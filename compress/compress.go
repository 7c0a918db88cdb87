// Package compress dispatches chunk decompression according to a blob's
// declared compression algorithm.
package compress

import (
	"bytes"
	"compress/gzip"
	"fmt"
	"io"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Algorithm identifies the compression algorithm used to store a blob's
// chunk data, mirroring BlobInfo.compressor.
type Algorithm int

const (
	// None means the chunk is stored verbatim; compressed_size equals
	// uncompressed_size for such chunks.
	None Algorithm = iota
	// Lz4Block is raw LZ4 block-mode compression (no frame header).
	Lz4Block
	// GZip is also used to flag a stargz-layout blob (see BlobInfo.IsStargz).
	GZip
	// Zstd is Zstandard compression. New BlobInfo values default to None,
	// not Zstd.
	Zstd
)

func (a Algorithm) String() string {
	switch a {
	case None:
		return "none"
	case Lz4Block:
		return "lz4_block"
	case GZip:
		return "gzip"
	case Zstd:
		return "zstd"
	default:
		return "unknown"
	}
}

var zstdDecoder *zstd.Decoder

func init() {
	// A shared decoder is safe for concurrent DecodeAll use and avoids
	// paying zstd's table-setup cost on every chunk.
	d, err := zstd.NewReader(nil)
	if err != nil {
		panic(fmt.Sprintf("compress: failed to initialize zstd decoder: %v", err))
	}
	zstdDecoder = d
}

// Decompress decompresses src into a buffer sized to uncompressedSize
// according to algo. For None it is a verbatim copy.
func Decompress(algo Algorithm, src []byte, uncompressedSize int) ([]byte, error) {
	switch algo {
	case None:
		if len(src) != uncompressedSize {
			return nil, fmt.Errorf("compress: plain chunk size mismatch: got %d want %d", len(src), uncompressedSize)
		}
		out := make([]byte, uncompressedSize)
		copy(out, src)
		return out, nil
	case Lz4Block:
		out := make([]byte, uncompressedSize)
		n, err := lz4.UncompressBlock(src, out)
		if err != nil {
			return nil, fmt.Errorf("compress: lz4 block decompression failed: %w", err)
		}
		if n != uncompressedSize {
			return nil, fmt.Errorf("compress: lz4 block produced %d bytes, want %d", n, uncompressedSize)
		}
		return out, nil
	case GZip:
		zr, err := gzip.NewReader(bytes.NewReader(src))
		if err != nil {
			return nil, fmt.Errorf("compress: gzip header invalid: %w", err)
		}
		defer zr.Close()
		out, err := io.ReadAll(io.LimitReader(zr, int64(uncompressedSize)+1))
		if err != nil {
			return nil, fmt.Errorf("compress: gzip decompression failed: %w", err)
		}
		if len(out) != uncompressedSize {
			return nil, fmt.Errorf("compress: gzip produced %d bytes, want %d", len(out), uncompressedSize)
		}
		return out, nil
	case Zstd:
		out, err := zstdDecoder.DecodeAll(src, make([]byte, 0, uncompressedSize))
		if err != nil {
			return nil, fmt.Errorf("compress: zstd decompression failed: %w", err)
		}
		if len(out) != uncompressedSize {
			return nil, fmt.Errorf("compress: zstd produced %d bytes, want %d", len(out), uncompressedSize)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("compress: unknown algorithm %d", algo)
	}
}
