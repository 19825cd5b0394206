package repository

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/albertocavalcante/go-depgraph/engine"
	"github.com/albertocavalcante/go-depgraph/ident"
)

// Memory is an in-memory repository. Fetching its metadata is cheap.
type Memory struct {
	name string
	opts options

	mu         sync.RWMutex
	components map[ident.ModuleVersionIdentifier]*engine.ComponentMetadata
	versions   map[ident.ModuleIdentifier][]string
}

var _ Repository = (*Memory)(nil)

// NewMemory creates an empty in-memory repository.
func NewMemory(name string, opts ...Option) *Memory {
	return &Memory{
		name:       name,
		opts:       newOptions(opts),
		components: make(map[ident.ModuleVersionIdentifier]*engine.ComponentMetadata),
		versions:   make(map[ident.ModuleIdentifier][]string),
	}
}

// Add registers components, replacing any previous metadata of the same id.
func (m *Memory) Add(mds ...*engine.ComponentMetadata) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, md := range mds {
		if _, ok := m.components[md.ID]; !ok {
			m.versions[md.ID.Module] = append(m.versions[md.ID.Module], md.ID.Version)
		}
		m.components[md.ID] = md
	}
}

// AddDescriptor parses a descriptor and registers its component.
func (m *Memory) AddDescriptor(content string) (*engine.ComponentMetadata, error) {
	md, err := ParseDescriptor(m.name, []byte(content))
	if err != nil {
		return nil, err
	}
	m.Add(md)
	return md, nil
}

// Name returns the repository name.
func (m *Memory) Name() string { return m.name }

// Versions lists the registered versions of a module.
func (m *Memory) Versions(_ context.Context, module ident.ModuleIdentifier) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	versions, ok := m.versions[module]
	if !ok {
		return nil, fmt.Errorf("%s in %s: %w", module, m.name, ErrModuleNotFound)
	}
	return slices.Clone(versions), nil
}

// ResolveID resolves a selector to the highest matching registered version.
func (m *Memory) ResolveID(ctx context.Context, sel engine.ComponentSelector) (ident.ModuleVersionIdentifier, error) {
	return resolveID(ctx, m, m.opts.compare, sel)
}

// ResolveMetadata returns the registered metadata.
func (m *Memory) ResolveMetadata(_ context.Context, id ident.ModuleVersionIdentifier) (*engine.ComponentMetadata, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	md, ok := m.components[id]
	if !ok {
		if _, known := m.versions[id.Module]; !known {
			return nil, fmt.Errorf("%s in %s: %w", id, m.name, ErrModuleNotFound)
		}
		return nil, fmt.Errorf("%s in %s: %w", id, m.name, ErrVersionNotFound)
	}
	return md, nil
}

// IsFetchingMetadataCheap returns true.
func (m *Memory) IsFetchingMetadataCheap(ident.ModuleVersionIdentifier) bool { return true }
