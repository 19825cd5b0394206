package engine

import (
	"context"
	"log/slog"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/albertocavalcante/go-depgraph/version"
)

// Config holds the collaborators and rules of a Builder.
type Config struct {
	IDResolver       IDResolver
	MetadataResolver MetadataResolver

	// ConflictResolver settles module version conflicts. Defaults to
	// LatestResolver.
	ConflictResolver VersionConflictResolver

	// CapabilityResolver settles capability conflicts. Without one every
	// capability conflict fails the resolution.
	CapabilityResolver CapabilityResolver

	Substitutions []SubstitutionRule
	EdgeFilter    EdgeFilter

	// Attributes are the consumer attributes used for variant selection.
	Attributes Attributes

	// RootVariant names the variant of the root to resolve. Defaults to
	// the default variant, or the first declared one.
	RootVariant string

	// Comparator orders versions. Defaults to version.Compare.
	Comparator version.Comparator

	// MaxParallelFetch bounds concurrent metadata fetches. Defaults to
	// GOMAXPROCS.
	MaxParallelFetch int

	Logger  *slog.Logger
	Metrics *Metrics
}

func (c *Config) logger() *slog.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return slog.New(slog.DiscardHandler)
}

func (c *Config) comparator() version.Comparator {
	if c.Comparator != nil {
		return c.Comparator
	}
	return version.Compare
}

func (c *Config) maxParallelFetch() int {
	if c.MaxParallelFetch > 0 {
		return c.MaxParallelFetch
	}
	return runtime.GOMAXPROCS(0)
}

// Builder resolves dependency graphs. It holds no per-resolution state and
// may be used for concurrent resolutions.
type Builder struct {
	cfg Config
}

// NewBuilder returns a builder for the configuration.
func NewBuilder(cfg Config) (*Builder, error) {
	if cfg.IDResolver == nil || cfg.MetadataResolver == nil {
		return nil, ErrNoResolver
	}
	return &Builder{cfg: cfg}, nil
}

// Resolve builds the graph of root and reports it to visitor, which may be
// nil. Failures are collected during traversal; the returned error is the
// *ResolveError of the result, or the context error if ctx was cancelled.
func (b *Builder) Resolve(ctx context.Context, root *ComponentMetadata, visitor Visitor) (*Result, error) {
	start := time.Now()
	cfg := b.cfg
	s := newResolveState(ctx, &cfg)

	m := s.Module(root.ID.Module)
	rc := m.version(root.ID.Version)
	rc.metadata = root
	rc.root = true
	rc.addReason(SelectionReason{Kind: ReasonRoot})
	m.selectComponent(rc)

	v := root.Variant(cfg.RootVariant)
	if v == nil {
		v = root.Variant(DefaultVariantName)
	}
	if v == nil {
		v = root.allVariants()[0]
	}
	n := rc.node(v)
	n.root = true
	s.root = n
	s.enqueue(n)

	s.log.Debug("resolution started", "root", root.ID.String(), "variant", v.Name)
	if err := s.traverse(); err != nil {
		cfg.Metrics.resolved(true, time.Since(start))
		return nil, err
	}
	result := s.assemble(visitor)
	cfg.Metrics.resolved(result.HasFailures(), time.Since(start))
	s.log.Debug("resolution finished",
		"root", root.ID.String(),
		"failures", len(result.failures),
		"duration", time.Since(start))
	return result, result.Err()
}

// traverse runs the fixpoint loop: dirty nodes first, then one batched
// conflict at a time, until nothing is left.
func (s *ResolveState) traverse() error {
	for {
		if err := s.ctx.Err(); err != nil {
			return err
		}
		if n := s.pop(); n != nil {
			if n.component.isSelected() && n.isSelected() {
				s.capabilityConflicts.register(n.component)
			}
			edges := n.visitOutgoingDependencies(nil)
			edges = append(edges, s.takeDeferred()...)
			s.resolveEdges(edges)
			continue
		}
		if edges := s.takeDeferred(); len(edges) > 0 {
			s.resolveEdges(edges)
			continue
		}
		if s.moduleConflicts.hasConflicts() {
			s.moduleConflicts.resolveNext()
			continue
		}
		if s.capabilityConflicts.hasConflicts() {
			s.capabilityConflicts.resolveNext()
			continue
		}
		return nil
	}
}

// resolveEdges selects the targets of new edges serially, prefetches
// their metadata and attaches them in declaration order.
func (s *ResolveState) resolveEdges(edges []*EdgeState) {
	if len(edges) == 0 {
		return
	}
	for _, e := range edges {
		if !e.removed {
			s.performSelection(e)
		}
	}
	s.prefetch(edges)
	for _, e := range edges {
		e.attach()
	}
}

// performSelection resolves the selector of an edge and updates the
// selection of the target module, registering a conflict when the new
// candidate cannot coexist with the current selection.
func (s *ResolveState) performSelection(e *EdgeState) {
	sel := e.selector
	m := sel.module
	m.addUnattached(e)

	cand := sel.resolve()
	if cand == nil {
		return
	}
	if sel.lenient && !sel.ignored {
		cand.resolveMetadata()
		if cand.failure != nil {
			s.log.Debug("ignoring missing platform member", "component", cand.id.String())
			sel.ignored = true
			sel.candidate = nil
			return
		}
	}
	cand.addSelector(sel)
	if cand.state == Evicted || m.replaced {
		return
	}

	cur := m.selected
	switch {
	case cur == nil:
		if !s.moduleConflicts.isPending(m) {
			m.selectComponent(cand)
		}
		return
	case cur == cand:
		return
	}
	if s.tryCompatibleSelection(sel, m, cur, cand) {
		return
	}
	m.clearSelection()
	s.moduleConflicts.register(m)
}

// tryCompatibleSelection avoids a conflict when the selectors agree: either
// the new selector accepts the current selection, or every other selector
// accepts the new candidate and the module never left it before.
func (s *ResolveState) tryCompatibleSelection(sel *SelectorState, m *ModuleResolveState, cur, cand *ComponentState) bool {
	if sel.accepts(cur.Version()) {
		sel.overrideSelection(cur)
		return true
	}
	// A module never switches back to a version it left, which bounds the
	// number of switches.
	if cur.root || cand.switchedAway {
		return false
	}
	for _, other := range m.selectors {
		if other == sel || other.failure != nil || other.ignored {
			continue
		}
		if !other.accepts(cand.Version()) {
			return false
		}
		if other.force && other.candidate != cand {
			return false
		}
	}
	s.log.Debug("compatible selection", "module", m.id.String(), "from", cur.Version(), "to", cand.Version())
	m.switchSelection(cand)
	return true
}

// prefetch fetches the metadata of the selected targets in parallel when
// more than one of them is expensive to fetch. Workers only write to their
// own component, and attachment happens afterwards in edge order.
func (s *ResolveState) prefetch(edges []*EdgeState) {
	var targets []*ComponentState
	seen := make(map[*ComponentState]bool)
	for _, e := range edges {
		if e.removed {
			continue
		}
		c := e.selector.module.selected
		if c == nil || !c.isSelected() || c.alreadyResolved() || seen[c] {
			continue
		}
		seen[c] = true
		if s.cfg.MetadataResolver.IsFetchingMetadataCheap(c.id) {
			continue
		}
		targets = append(targets, c)
	}
	if len(targets) < 2 {
		return
	}

	s.log.Debug("fetching metadata in parallel", "components", len(targets))
	var g errgroup.Group
	g.SetLimit(s.cfg.maxParallelFetch())
	for _, c := range targets {
		g.Go(func() error {
			c.fetchMetadata(fetchParallel)
			return nil
		})
	}
	_ = g.Wait()
}
