package repository

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/albertocavalcante/go-depgraph/engine"
	"github.com/albertocavalcante/go-depgraph/ident"
)

// Local serves components from a directory. This enables offline workflows
// where descriptors are pre-downloaded or vendored.
//
// The directory layout is:
//
//	{root}/{group}/{name}/{version}/component.star
//
// Parsed descriptors are kept in memory; fetching is only reported as cheap
// for components that were already read.
type Local struct {
	root string
	opts options

	cache sync.Map // map[ident.ModuleVersionIdentifier]*engine.ComponentMetadata
}

var _ Repository = (*Local)(nil)

// NewLocal creates a repository for a local directory.
func NewLocal(root string, opts ...Option) *Local {
	return &Local{root: filepath.Clean(root), opts: newOptions(opts)}
}

// Name returns the root directory.
func (l *Local) Name() string { return l.root }

func (l *Local) moduleDir(m ident.ModuleIdentifier) string {
	return filepath.Join(l.root, m.Group, m.Name)
}

func (l *Local) descriptorPath(id ident.ModuleVersionIdentifier) string {
	return filepath.Join(l.moduleDir(id.Module), id.Version, DescriptorFileName)
}

// Versions lists the version directories that hold a descriptor, in
// ascending order.
func (l *Local) Versions(ctx context.Context, module ident.ModuleIdentifier) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(l.moduleDir(module))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%s in %s: %w", module, l.root, ErrModuleNotFound)
		}
		return nil, fmt.Errorf("list versions of %s: %w", module, err)
	}

	var versions []string
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		if _, err := os.Stat(l.descriptorPath(module.Version(e.Name()))); err == nil {
			versions = append(versions, e.Name())
		}
	}
	if len(versions) == 0 {
		return nil, fmt.Errorf("%s in %s: %w", module, l.root, ErrModuleNotFound)
	}
	sortVersions(versions, l.opts.compare)
	return versions, nil
}

// ResolveID resolves a selector to the highest matching version on disk.
func (l *Local) ResolveID(ctx context.Context, sel engine.ComponentSelector) (ident.ModuleVersionIdentifier, error) {
	return resolveID(ctx, l, l.opts.compare, sel)
}

// ResolveMetadata reads and parses the descriptor of a component.
func (l *Local) ResolveMetadata(ctx context.Context, id ident.ModuleVersionIdentifier) (*engine.ComponentMetadata, error) {
	if cached, ok := l.cache.Load(id); ok {
		return cached.(*engine.ComponentMetadata), nil
	}

	// Check for context cancellation
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	path := l.descriptorPath(id)
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%s in %s: %w", id, l.root, ErrVersionNotFound)
		}
		return nil, fmt.Errorf("read descriptor %s: %w", path, err)
	}

	md, err := ParseDescriptor(path, data)
	if err != nil {
		return nil, err
	}
	if md.ID != id {
		return nil, fmt.Errorf("descriptor %s declares %s, expected %s", path, md.ID, id)
	}

	l.opts.logger.Debug("read descriptor", "component", id.String(), "path", path)
	l.cache.Store(id, md)
	return md, nil
}

// IsFetchingMetadataCheap reports whether the descriptor was already read.
func (l *Local) IsFetchingMetadataCheap(id ident.ModuleVersionIdentifier) bool {
	_, ok := l.cache.Load(id)
	return ok
}

// Publish writes the descriptor of a component into the repository.
func (l *Local) Publish(md *engine.ComponentMetadata) error {
	path := l.descriptorPath(md.ID)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("publish %s: %w", md.ID, err)
	}
	if err := os.WriteFile(path, FormatDescriptor(md), 0o644); err != nil {
		return fmt.Errorf("publish %s: %w", md.ID, err)
	}
	l.cache.Delete(md.ID)
	return nil
}
