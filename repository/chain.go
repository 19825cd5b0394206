package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/albertocavalcante/go-depgraph/engine"
	"github.com/albertocavalcante/go-depgraph/ident"
)

// Chain looks modules up in several repositories.
//
//  1. Modules are looked up in repository order (first to last)
//  2. The first repository that knows a module is used for ALL versions of it
//  3. If no repository knows the module, the error matches ErrModuleNotFound
//
// A repository that fails for any other reason is skipped as well, so one
// broken source does not hide the others.
type Chain struct {
	repos []Repository

	// owner tracks which repository provides each module.
	owner   map[ident.ModuleIdentifier]int
	ownerMu sync.RWMutex
}

var _ Repository = (*Chain)(nil)

// NewChain creates a chain of repositories.
func NewChain(repos ...Repository) (*Chain, error) {
	if len(repos) == 0 {
		return nil, errors.New("no repositories provided")
	}
	return &Chain{repos: repos, owner: make(map[ident.ModuleIdentifier]int)}, nil
}

// Name lists the chained repositories.
func (c *Chain) Name() string {
	names := make([]string, len(c.repos))
	for i, r := range c.repos {
		names[i] = r.Name()
	}
	return "chain(" + strings.Join(names, ", ") + ")"
}

// find returns the repository providing a module, and its versions when
// they had to be listed to find it.
func (c *Chain) find(ctx context.Context, module ident.ModuleIdentifier) (Repository, []string, error) {
	c.ownerMu.RLock()
	idx, found := c.owner[module]
	c.ownerMu.RUnlock()
	if found {
		return c.repos[idx], nil, nil
	}

	var errs []string
	allNotFound := true
	for i, r := range c.repos {
		versions, err := r.Versions(ctx, module)
		if err == nil {
			c.ownerMu.Lock()
			if _, exists := c.owner[module]; !exists {
				c.owner[module] = i
			}
			c.ownerMu.Unlock()
			return r, versions, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, nil, ctxErr
		}
		allNotFound = allNotFound && errors.Is(err, ErrModuleNotFound)
		errs = append(errs, fmt.Sprintf("%s: %v", r.Name(), err))
	}

	if allNotFound {
		return nil, nil, fmt.Errorf("%s not found in any repository: %w", module, ErrModuleNotFound)
	}
	return nil, nil, fmt.Errorf("%s could not be looked up:\n  %s", module, strings.Join(errs, "\n  "))
}

// Versions lists the versions of the repository providing the module.
func (c *Chain) Versions(ctx context.Context, module ident.ModuleIdentifier) ([]string, error) {
	r, versions, err := c.find(ctx, module)
	if err != nil || versions != nil {
		return versions, err
	}
	return r.Versions(ctx, module)
}

// ResolveID resolves a selector in the repository providing the module.
func (c *Chain) ResolveID(ctx context.Context, sel engine.ComponentSelector) (ident.ModuleVersionIdentifier, error) {
	r, _, err := c.find(ctx, sel.Module)
	if err != nil {
		return ident.ModuleVersionIdentifier{}, err
	}
	return r.ResolveID(ctx, sel)
}

// ResolveMetadata fetches metadata from the repository providing the module.
func (c *Chain) ResolveMetadata(ctx context.Context, id ident.ModuleVersionIdentifier) (*engine.ComponentMetadata, error) {
	r, _, err := c.find(ctx, id.Module)
	if err != nil {
		return nil, err
	}
	return r.ResolveMetadata(ctx, id)
}

// IsFetchingMetadataCheap delegates to the repository providing the module,
// and is false while that repository is unknown.
func (c *Chain) IsFetchingMetadataCheap(id ident.ModuleVersionIdentifier) bool {
	c.ownerMu.RLock()
	idx, found := c.owner[id.Module]
	c.ownerMu.RUnlock()
	return found && c.repos[idx].IsFetchingMetadataCheap(id)
}
