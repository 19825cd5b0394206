package repository

import (
	"context"
	"sync"

	"github.com/albertocavalcante/go-depgraph/engine"
	"github.com/albertocavalcante/go-depgraph/ident"
)

// MetadataCache stores rendered descriptors between resolutions.
// Implementations must be safe for concurrent use.
type MetadataCache interface {
	Get(ctx context.Context, id ident.ModuleVersionIdentifier) ([]byte, bool, error)
	Put(ctx context.Context, id ident.ModuleVersionIdentifier, content []byte) error
}

// Compile-time interface compliance checks
var (
	_ MetadataCache = NoopCache{}
	_ MetadataCache = (*MemoryCache)(nil)
)

// NoopCache discards all writes and always misses.
type NoopCache struct{}

// Get always returns a cache miss.
func (NoopCache) Get(context.Context, ident.ModuleVersionIdentifier) ([]byte, bool, error) {
	return nil, false, nil
}

// Put discards the content and returns success.
func (NoopCache) Put(context.Context, ident.ModuleVersionIdentifier, []byte) error { return nil }

// MemoryCache is a thread-safe in-memory cache.
type MemoryCache struct {
	mu    sync.RWMutex
	items map[ident.ModuleVersionIdentifier][]byte
}

// NewMemoryCache creates a new in-memory cache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{items: make(map[ident.ModuleVersionIdentifier][]byte)}
}

// Get retrieves a cached descriptor.
func (c *MemoryCache) Get(_ context.Context, id ident.ModuleVersionIdentifier) ([]byte, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	content, ok := c.items[id]
	if !ok {
		return nil, false, nil
	}
	// Return a copy to prevent mutation
	result := make([]byte, len(content))
	copy(result, content)
	return result, true, nil
}

// Put stores a descriptor.
func (c *MemoryCache) Put(_ context.Context, id ident.ModuleVersionIdentifier, content []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	stored := make([]byte, len(content))
	copy(stored, content)
	c.items[id] = stored
	return nil
}

// Clear removes all entries from the cache.
func (c *MemoryCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = make(map[ident.ModuleVersionIdentifier][]byte)
}

// Len returns the number of cached entries.
func (c *MemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

// Cached serves metadata from a MetadataCache before asking the wrapped
// repository. Cache failures are logged and never fail a fetch.
type Cached struct {
	Repository
	cache MetadataCache
	opts  options
}

// NewCached wraps a repository with a cache.
func NewCached(r Repository, cache MetadataCache, opts ...Option) *Cached {
	if cache == nil {
		cache = NoopCache{}
	}
	return &Cached{Repository: r, cache: cache, opts: newOptions(opts)}
}

// ResolveMetadata returns cached metadata, or fetches and caches it.
func (c *Cached) ResolveMetadata(ctx context.Context, id ident.ModuleVersionIdentifier) (*engine.ComponentMetadata, error) {
	log := c.opts.logger.With("component", id.String())

	data, ok, err := c.cache.Get(ctx, id)
	switch {
	case err != nil:
		log.Warn("cache get failed", "error", err)
	case ok:
		md, err := ParseDescriptor(id.String(), data)
		if err == nil && md.ID == id {
			log.Debug("cache hit")
			return md, nil
		}
		log.Warn("ignoring invalid cache entry", "error", err)
	}

	md, err := c.Repository.ResolveMetadata(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := c.cache.Put(ctx, id, FormatDescriptor(md)); err != nil {
		log.Warn("cache put failed", "error", err)
	}
	return md, nil
}

var _ Repository = (*Cached)(nil)

// IsFetchingMetadataCheap delegates to the wrapped repository.
func (c *Cached) IsFetchingMetadataCheap(id ident.ModuleVersionIdentifier) bool {
	return c.Repository.IsFetchingMetadataCheap(id)
}
