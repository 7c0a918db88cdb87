// Package digest computes and verifies the content digests used to
// identify and validate blob chunks.
package digest

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/zeebo/blake3"
)

// Algorithm identifies a message digest algorithm usable as a blob's
// BlobInfo.digester.
type Algorithm int

const (
	// Blake3 is the default digester for new blobs.
	Blake3 Algorithm = iota
	// Sha256 is kept for compatibility with older images.
	Sha256
)

func (a Algorithm) String() string {
	switch a {
	case Blake3:
		return "blake3"
	case Sha256:
		return "sha256"
	default:
		return "unknown"
	}
}

// Digest is a 32-byte content digest, used as a chunk's identifier.
type Digest [32]byte

// IsEmpty reports whether d is the zero digest.
func (d Digest) IsEmpty() bool {
	return d == Digest{}
}

// String renders the digest as a lower-case hex string.
func (d Digest) String() string {
	return hex.EncodeToString(d[:])
}

// Compute hashes data with the given algorithm and returns the resulting
// digest.
func Compute(algo Algorithm, data []byte) Digest {
	switch algo {
	case Sha256:
		return Digest(sha256.Sum256(data))
	default:
		return Digest(blake3.Sum256(data))
	}
}

// Verify reports whether data hashes to want under the given algorithm.
func Verify(algo Algorithm, want Digest, data []byte) bool {
	return Compute(algo, data) == want
}
