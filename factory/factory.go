// Package factory builds and deduplicates BlobCache instances. A
// BlobFactory is a long-lived object owned by whoever constructs the
// first BlobDevice; it's explicitly not a package-level singleton, so
// independent devices in the same process (e.g. tests) never share
// cache state.
package factory

import (
	"fmt"
	"sync"

	storage "github.com/aa624545345/image-service"
	"github.com/aa624545345/image-service/backend"
	"github.com/aa624545345/image-service/cache"
)

// FactoryConfig names the backend and cache setup a group of blobs
// share. Two configs with equal Fingerprint reuse the same backendGroup,
// so blobs opened under one fingerprint are never duplicated across
// concurrent callers.
type FactoryConfig struct {
	BackendType string
	// BackendConfig is opaque to the factory; it's whatever the chosen
	// Builder needs to construct a backend.Backend.
	BackendConfig interface{}
	CacheDir      string
}

// Fingerprint identifies a FactoryConfig for cache-group reuse. Two
// configs that would build equivalent backends must produce equal
// fingerprints.
func (c FactoryConfig) Fingerprint() string {
	return fmt.Sprintf("%s:%v:%s", c.BackendType, c.BackendConfig, c.CacheDir)
}

// Builder constructs the backend.Backend a FactoryConfig describes.
type Builder func(cfg FactoryConfig) (backend.Backend, error)

type backendGroup struct {
	mu      sync.Mutex
	backend backend.Backend
	blobs   map[string]storage.BlobCache
}

// BlobFactory deduplicates BlobCache construction across blobs sharing a
// backend configuration, implementing storage.BlobCacheBuilder.
type BlobFactory struct {
	mu      sync.Mutex
	groups  map[string]*backendGroup
	builder Builder
	config  FactoryConfig
	// chunksFor resolves a blob's chunk list, needed to construct a
	// cache.fileCache. Supplied by whoever owns blob metadata parsing,
	// out of scope for this package per spec.md §1.
	chunksFor func(blob *storage.BlobInfo) ([]storage.ChunkInfo, error)
}

// NewBlobFactory creates a BlobFactory that builds backends with
// builder under config, resolving each blob's chunk list with
// chunksFor.
func NewBlobFactory(config FactoryConfig, builder Builder, chunksFor func(blob *storage.BlobInfo) ([]storage.ChunkInfo, error)) *BlobFactory {
	return &BlobFactory{
		groups:    make(map[string]*backendGroup),
		builder:   builder,
		config:    config,
		chunksFor: chunksFor,
	}
}

// NewBlobCache returns the cache for blob, constructing it (and its
// backend group, if this is the group's first blob) on first request.
// Implements storage.BlobCacheBuilder.
func (f *BlobFactory) NewBlobCache(blob *storage.BlobInfo) (storage.BlobCache, error) {
	fp := f.config.Fingerprint()

	f.mu.Lock()
	g, ok := f.groups[fp]
	if !ok {
		be, err := f.builder(f.config)
		if err != nil {
			f.mu.Unlock()
			return nil, fmt.Errorf("factory: failed to build backend for %s: %w", fp, err)
		}
		g = &backendGroup{backend: be, blobs: make(map[string]storage.BlobCache)}
		f.groups[fp] = g
	}
	f.mu.Unlock()

	g.mu.Lock()
	defer g.mu.Unlock()
	if c, ok := g.blobs[blob.BlobID()]; ok {
		return c, nil
	}

	chunks, err := f.chunksFor(blob)
	if err != nil {
		return nil, fmt.Errorf("factory: failed to resolve chunks for blob %s: %w", blob.BlobID(), err)
	}
	c, err := cache.NewFileCache(blob, g.backend, chunks, f.config.CacheDir)
	if err != nil {
		return nil, err
	}
	g.blobs[blob.BlobID()] = c
	return c, nil
}

// Evict drops a blob's cache from its backend group, closing it first.
// Eviction is explicit and caller-driven: the factory keeps strong
// references to every cache it has built, matching the long-lived
// resident-in-memory model used elsewhere in this package (no
// size-bounded LRU is implemented; see DESIGN.md).
func (f *BlobFactory) Evict(blob *storage.BlobInfo) error {
	fp := f.config.Fingerprint()
	f.mu.Lock()
	g, ok := f.groups[fp]
	f.mu.Unlock()
	if !ok {
		return nil
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	c, ok := g.blobs[blob.BlobID()]
	if !ok {
		return nil
	}
	delete(g.blobs, blob.BlobID())
	return c.Close()
}
