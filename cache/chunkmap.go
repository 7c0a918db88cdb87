package cache

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/bits-and-blooms/bitset"

	storage "github.com/aa624545345/image-service"
)

// bitsetChunkMap is a ChunkMap backed by a single bitset, one bit per
// chunk id. It's the single authoritative readiness oracle for its blob
// and must be updated exactly once per chunk transition (absent->ready).
//
// The bitset is mirrored to a sidecar file alongside the blob's cache
// data file, so readiness survives process restarts the way the cache
// data itself does: the data file says what bytes are on disk, the
// sidecar says which of them are trustworthy.
type bitsetChunkMap struct {
	mu   sync.RWMutex
	bits *bitset.BitSet
	path string
}

// newBitsetChunkMap loads path if it already holds a persisted bitset
// (from a prior process), otherwise starts all-zero.
func newBitsetChunkMap(chunkCount uint32, path string) (*bitsetChunkMap, error) {
	m := &bitsetChunkMap{bits: bitset.New(uint(chunkCount)), path: path}

	raw, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
		return m, nil
	case err != nil:
		return nil, fmt.Errorf("chunkmap: failed to read sidecar %s: %w", path, storage.ErrIO)
	}
	if len(raw) == 0 {
		return m, nil
	}
	loaded := &bitset.BitSet{}
	if err := loaded.UnmarshalBinary(raw); err != nil {
		return nil, fmt.Errorf("chunkmap: failed to decode sidecar %s: %w", path, storage.ErrDataCorrupted)
	}
	m.bits = loaded
	return m, nil
}

func (m *bitsetChunkMap) IsReady(chunk storage.ChunkInfo) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.bits.Test(uint(chunk.ID())), nil
}

// SetReady marks chunk ready and writes the updated bitset to its sidecar
// file before returning. Neither the sidecar nor the cache data file is
// fsynced.
func (m *bitsetChunkMap) SetReady(chunk storage.ChunkInfo) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bits.Set(uint(chunk.ID()))
	return m.persistLocked()
}

// count returns the number of chunks currently marked ready.
func (m *bitsetChunkMap) count() uint {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.bits.Count()
}

// persistLocked writes the bitset to a temp file and renames it over
// path, so a concurrent reader (or a crash mid-write) never observes a
// partially-written sidecar.
func (m *bitsetChunkMap) persistLocked() error {
	if m.path == "" {
		return nil
	}
	raw, err := m.bits.MarshalBinary()
	if err != nil {
		return fmt.Errorf("chunkmap: failed to encode sidecar %s: %w", m.path, storage.ErrIO)
	}
	tmp, err := os.CreateTemp(filepath.Dir(m.path), filepath.Base(m.path)+".tmp")
	if err != nil {
		return fmt.Errorf("chunkmap: failed to create sidecar temp file for %s: %w", m.path, storage.ErrIO)
	}
	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("chunkmap: failed to write sidecar temp file for %s: %w", m.path, storage.ErrIO)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("chunkmap: failed to close sidecar temp file for %s: %w", m.path, storage.ErrIO)
	}
	if err := os.Rename(tmp.Name(), m.path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("chunkmap: failed to persist sidecar %s: %w", m.path, storage.ErrIO)
	}
	return nil
}
