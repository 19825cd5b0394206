// Package depgraph resolves dependency graphs of versioned components.
//
// A resolution starts from a root component and follows its declared
// dependencies through one or more repositories. Every module ends up with
// one selected version: version conflicts select the highest requested
// version by default, capability conflicts are settled by rules, exclusions
// prune the graph and virtual platforms keep the versions of their members
// aligned.
//
// # Quick Start
//
//	repo := repository.NewLocal("/srv/components")
//	result, err := depgraph.ResolveFile(ctx, "component.star",
//	    depgraph.WithRepositories(repo))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Print(result.Graph.ToText())
//
// A result is returned alongside resolution failures, so the partial graph
// can still be inspected:
//
//	result, err := depgraph.Resolve(ctx, root, opts...)
//	if result != nil {
//	    fmt.Print(result.Graph.ToExplainText(module))
//	}
//
// # Locking
//
// Lock records the selected versions. WithLockedVersions replays them as
// forced constraints of the root:
//
//	lf, err := depgraph.Lock(result)
//	result, err = depgraph.Resolve(ctx, root, depgraph.WithLockedVersions(lf), ...)
//
// # Thread Safety
//
// Resolutions share no state and may run concurrently.
package depgraph

import (
	"context"
	"errors"
	"fmt"

	"github.com/albertocavalcante/go-depgraph/engine"
	"github.com/albertocavalcante/go-depgraph/graph"
	"github.com/albertocavalcante/go-depgraph/lockfile"
	"github.com/albertocavalcante/go-depgraph/repository"
)

// Result is the outcome of a resolution.
type Result struct {
	// Engine holds the resolution state: selection reasons, failures and
	// the node and edge states.
	Engine *engine.Result

	// Graph is the resolved graph for queries and output.
	Graph *graph.Graph
}

// Resolve resolves the dependency graph of root.
//
// When the resolution completes with failures, both the result and an
// *engine.ResolveError are returned.
func Resolve(ctx context.Context, root *engine.ComponentMetadata, opts ...Option) (*Result, error) {
	if root == nil {
		return nil, ErrNoRoot
	}
	cfg, err := newResolverConfig(opts...)
	if err != nil {
		return nil, err
	}
	repo, err := cfg.repository()
	if err != nil {
		return nil, err
	}
	builder, err := engine.NewBuilder(cfg.engineConfig(repo))
	if err != nil {
		return nil, err
	}

	if cfg.locked != nil {
		root, err = withLockConstraints(root, cfg.locked)
		if err != nil {
			return nil, fmt.Errorf("apply lockfile: %w", err)
		}
	}

	cfg.log().Debug("resolving", "root", root.ID.String(), "repository", repo.Name())
	gb := graph.NewBuilder()
	res, err := builder.Resolve(ctx, root, gb)
	if res == nil {
		return nil, err
	}
	gb.Record(res)
	return &Result{Engine: res, Graph: gb.Graph()}, err
}

// ResolveFile resolves the dependency graph of the component described by
// a descriptor file.
func ResolveFile(ctx context.Context, path string, opts ...Option) (*Result, error) {
	root, err := repository.ParseDescriptorFile(path)
	if err != nil {
		return nil, fmt.Errorf("parse root descriptor: %w", err)
	}
	return Resolve(ctx, root, opts...)
}

// ResolveDescriptor resolves the dependency graph of the component
// described by descriptor content.
func ResolveDescriptor(ctx context.Context, content string, opts ...Option) (*Result, error) {
	root, err := repository.ParseDescriptor(repository.DescriptorFileName, []byte(content))
	if err != nil {
		return nil, fmt.Errorf("parse root descriptor: %w", err)
	}
	return Resolve(ctx, root, opts...)
}

// withLockConstraints returns a copy of root whose variants also carry the
// locked versions as forced constraints.
func withLockConstraints(root *engine.ComponentMetadata, lf *lockfile.Lockfile) (*engine.ComponentMetadata, error) {
	constraints, err := lf.Constraints()
	if err != nil {
		return nil, err
	}
	// The root itself is never constrained by its own lock entry.
	pinned := constraints[:0:0]
	for _, c := range constraints {
		if c.Selector.Module != root.ID.Module {
			pinned = append(pinned, c)
		}
	}

	md := *root
	variants := root.Variants
	if len(variants) == 0 {
		variants = []*engine.VariantMetadata{{Name: engine.DefaultVariantName}}
	}
	md.Variants = make([]*engine.VariantMetadata, len(variants))
	for i, v := range variants {
		cp := *v
		cp.Dependencies = append(append([]engine.DependencyMetadata(nil), v.Dependencies...), pinned...)
		md.Variants[i] = &cp
	}
	return &md, nil
}

// Lock records the version selected for every module of a result, with the
// hash of each component descriptor.
func Lock(r *Result) (*lockfile.Lockfile, error) {
	if r == nil || r.Engine == nil {
		return nil, ErrNoRoot
	}
	if r.Engine.HasFailures() {
		return nil, fmt.Errorf("cannot lock a failed resolution: %w", r.Engine.Err())
	}

	lf := lockfile.New()
	lf.Root = r.Engine.Root().Component().ID().String()
	for _, c := range r.Engine.Components() {
		// Virtual platforms exist only through their members.
		if c.IsRoot() || c.IsVirtualPlatform() {
			continue
		}
		lf.Lock(c.ID(), descriptor(c))
	}
	return lf, nil
}

// VerifyLock checks the descriptors of a result against the hashes
// recorded in lf.
func VerifyLock(r *Result, lf *lockfile.Lockfile) error {
	if r == nil || r.Engine == nil {
		return ErrNoRoot
	}
	var errs []error
	for _, c := range r.Engine.Components() {
		if c.IsRoot() {
			continue
		}
		if content := descriptor(c); content != nil {
			errs = append(errs, lf.Verify(c.ID(), content))
		}
	}
	return errors.Join(errs...)
}

// descriptor renders the metadata of a component, or nil for components
// without metadata such as virtual platforms.
func descriptor(c *engine.ComponentState) []byte {
	if c.IsVirtualPlatform() || c.Metadata() == nil {
		return nil
	}
	return repository.FormatDescriptor(c.Metadata())
}
