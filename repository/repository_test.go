package repository

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/albertocavalcante/go-depgraph/engine"
	"github.com/albertocavalcante/go-depgraph/ident"
	"github.com/albertocavalcante/go-depgraph/version"
)

func component(id string) *engine.ComponentMetadata {
	return &engine.ComponentMetadata{ID: ident.MustParseModuleVersion(id)}
}

func selector(module, v string, reject ...string) engine.ComponentSelector {
	return engine.ComponentSelector{Module: ident.MustParseModule(module), Version: v, Reject: reject}
}

func TestMemory(t *testing.T) {
	ctx := context.Background()
	m := NewMemory("mem")
	m.Add(component("org:a:1.0"), component("org:a:1.1"), component("org:a:2.0-rc1"), component("org:a:2.0"))

	tests := []struct {
		name string
		sel  engine.ComponentSelector
		want string
	}{
		{"exact", selector("org:a", "1.0"), "org:a:1.0"},
		{"prefix", selector("org:a", "1.+"), "org:a:1.1"},
		{"range", selector("org:a", "[1.0,2.0)"), "org:a:1.1"},
		{"latest", selector("org:a", "latest.integration"), "org:a:2.0"},
		{"reject", selector("org:a", "1.+", "1.1"), "org:a:1.0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, err := m.ResolveID(ctx, tt.sel)
			require.NoError(t, err)
			assert.Equal(t, tt.want, id.String())
		})
	}

	_, err := m.ResolveID(ctx, selector("org:missing", "1.0"))
	assert.ErrorIs(t, err, ErrModuleNotFound)
	assert.ErrorIs(t, err, engine.ErrNotFound)

	_, err = m.ResolveID(ctx, selector("org:a", "3.+"))
	assert.ErrorIs(t, err, ErrVersionNotFound)
	assert.ErrorIs(t, err, engine.ErrNotFound)
	assert.NotErrorIs(t, err, ErrModuleNotFound)

	md, err := m.ResolveMetadata(ctx, ident.MustParseModuleVersion("org:a:1.1"))
	require.NoError(t, err)
	assert.Equal(t, "org:a:1.1", md.ID.String())

	_, err = m.ResolveMetadata(ctx, ident.MustParseModuleVersion("org:a:9.9"))
	assert.ErrorIs(t, err, ErrVersionNotFound)
	assert.True(t, m.IsFetchingMetadataCheap(md.ID))
}

func TestMemory_SemverComparator(t *testing.T) {
	// Given: versions whose order differs between the two comparators
	// Expected: the semver comparator ranks the release above the pre-release
	m := NewMemory("mem", WithComparator(version.SemverCompare))
	m.Add(component("org:a:1.0.0-rc.1"), component("org:a:1.0.0"))

	id, err := m.ResolveID(context.Background(), selector("org:a", "latest.integration"))
	require.NoError(t, err)
	assert.Equal(t, "1.0.0", id.Version)
}

func TestMemory_AddDescriptor(t *testing.T) {
	m := NewMemory("mem")
	md, err := m.AddDescriptor(`component(group = "org", name = "a", version = "1.0")`)
	require.NoError(t, err)

	versions, err := m.Versions(context.Background(), md.ID.Module)
	require.NoError(t, err)
	assert.Equal(t, []string{"1.0"}, versions)

	_, err = m.AddDescriptor(`dependency("org:b:1.0")`)
	assert.Error(t, err)
}

func TestLocal(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	l := NewLocal(root)

	require.NoError(t, l.Publish(component("org.example:core:1.10")))
	require.NoError(t, l.Publish(component("org.example:core:1.9")))
	// A version directory without descriptor is ignored.
	require.NoError(t, os.MkdirAll(filepath.Join(root, "org.example", "core", "2.0"), 0o755))

	versions, err := l.Versions(ctx, ident.Module("org.example", "core"))
	require.NoError(t, err)
	assert.Equal(t, []string{"1.9", "1.10"}, versions)

	id, err := l.ResolveID(ctx, selector("org.example:core", "1.+"))
	require.NoError(t, err)
	assert.Equal(t, "1.10", id.Version)

	assert.False(t, l.IsFetchingMetadataCheap(id))
	md, err := l.ResolveMetadata(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, id, md.ID)
	assert.True(t, l.IsFetchingMetadataCheap(id))

	_, err = l.Versions(ctx, ident.Module("org.example", "missing"))
	assert.ErrorIs(t, err, ErrModuleNotFound)

	_, err = l.ResolveMetadata(ctx, ident.MustParseModuleVersion("org.example:core:3.0"))
	assert.ErrorIs(t, err, ErrVersionNotFound)
}

func TestLocal_DescriptorMismatch(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "org", "a", "1.0")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, DescriptorFileName),
		[]byte(`component(group = "org", name = "b", version = "1.0")`), 0o644))

	_, err := NewLocal(root).ResolveMetadata(context.Background(), ident.MustParseModuleVersion("org:a:1.0"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "declares org:b:1.0")
}

func TestLocal_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewLocal(t.TempDir()).ResolveMetadata(ctx, ident.MustParseModuleVersion("org:a:1.0"))
	assert.ErrorIs(t, err, context.Canceled)
}

// failingRepo fails every lookup with a non not-found error.
type failingRepo struct{ *Memory }

func (f failingRepo) Versions(context.Context, ident.ModuleIdentifier) ([]string, error) {
	return nil, errors.New("connection refused")
}

func TestChain(t *testing.T) {
	ctx := context.Background()
	first := NewMemory("first")
	first.Add(component("org:a:1.0"))
	second := NewMemory("second")
	second.Add(component("org:a:2.0"), component("org:b:1.0"))

	chain, err := NewChain(failingRepo{NewMemory("broken")}, first, second)
	require.NoError(t, err)

	t.Run("first repository knowing the module wins", func(t *testing.T) {
		id, err := chain.ResolveID(ctx, selector("org:a", "latest.integration"))
		require.NoError(t, err)
		assert.Equal(t, "org:a:1.0", id.String())

		versions, err := chain.Versions(ctx, ident.Module("org", "a"))
		require.NoError(t, err)
		assert.Equal(t, []string{"1.0"}, versions)
	})

	t.Run("falls back to later repositories", func(t *testing.T) {
		md, err := chain.ResolveMetadata(ctx, ident.MustParseModuleVersion("org:b:1.0"))
		require.NoError(t, err)
		assert.Equal(t, "org:b:1.0", md.ID.String())
		assert.True(t, chain.IsFetchingMetadataCheap(md.ID))
	})

	t.Run("unknown module", func(t *testing.T) {
		allMissing, err := NewChain(first, second)
		require.NoError(t, err)
		_, err = allMissing.ResolveID(ctx, selector("org:missing", "1.0"))
		assert.ErrorIs(t, err, ErrModuleNotFound)
		assert.False(t, allMissing.IsFetchingMetadataCheap(ident.MustParseModuleVersion("org:missing:1.0")))
	})

	t.Run("broken repository is reported", func(t *testing.T) {
		_, err := chain.ResolveID(ctx, selector("org:missing", "1.0"))
		require.Error(t, err)
		assert.NotErrorIs(t, err, engine.ErrNotFound)
		assert.Contains(t, err.Error(), "connection refused")
	})

	_, err = NewChain()
	assert.Error(t, err)
	assert.Equal(t, "chain(first, second)", mustChain(t, first, second).Name())
}

func mustChain(t *testing.T, repos ...Repository) *Chain {
	t.Helper()
	c, err := NewChain(repos...)
	require.NoError(t, err)
	return c
}

// failingCache fails every operation.
type failingCache struct{}

func (failingCache) Get(context.Context, ident.ModuleVersionIdentifier) ([]byte, bool, error) {
	return nil, false, errors.New("cache get failed")
}

func (failingCache) Put(context.Context, ident.ModuleVersionIdentifier, []byte) error {
	return errors.New("cache put failed")
}

// countingRepo counts metadata fetches.
type countingRepo struct {
	*Memory
	fetches int
}

func (c *countingRepo) ResolveMetadata(ctx context.Context, id ident.ModuleVersionIdentifier) (*engine.ComponentMetadata, error) {
	c.fetches++
	return c.Memory.ResolveMetadata(ctx, id)
}

func TestCached(t *testing.T) {
	ctx := context.Background()
	inner := &countingRepo{Memory: NewMemory("mem")}
	_, err := inner.AddDescriptor(`
component(group = "org", name = "a", version = "1.0")
dependency("org:b:1.+", excludes = ["org:c"])
`)
	require.NoError(t, err)
	id := ident.MustParseModuleVersion("org:a:1.0")

	t.Run("serves from cache after first fetch", func(t *testing.T) {
		cache := NewMemoryCache()
		c := NewCached(inner, cache)
		inner.fetches = 0

		first, err := c.ResolveMetadata(ctx, id)
		require.NoError(t, err)
		second, err := c.ResolveMetadata(ctx, id)
		require.NoError(t, err)

		assert.Equal(t, 1, inner.fetches)
		assert.Equal(t, 1, cache.Len())
		assert.Equal(t, first, second)

		resolved, err := c.ResolveID(ctx, selector("org:a", "1.+"))
		require.NoError(t, err)
		assert.Equal(t, id, resolved)
	})

	t.Run("cache failures fall back to the repository", func(t *testing.T) {
		c := NewCached(inner, failingCache{})
		inner.fetches = 0

		md, err := c.ResolveMetadata(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, id, md.ID)
		assert.Equal(t, 1, inner.fetches)
	})

	t.Run("invalid entries are ignored", func(t *testing.T) {
		cache := NewMemoryCache()
		require.NoError(t, cache.Put(ctx, id, []byte("not a descriptor(")))
		c := NewCached(inner, cache)
		inner.fetches = 0

		_, err := c.ResolveMetadata(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, 1, inner.fetches)
	})

	t.Run("noop cache", func(t *testing.T) {
		c := NewCached(inner, nil)
		inner.fetches = 0
		_, err := c.ResolveMetadata(ctx, id)
		require.NoError(t, err)
		_, err = c.ResolveMetadata(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, 2, inner.fetches)
	})

	cache := NewMemoryCache()
	require.NoError(t, cache.Put(ctx, id, []byte("x")))
	cache.Clear()
	assert.Zero(t, cache.Len())
}
