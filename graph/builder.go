package graph

import (
	"slices"

	"github.com/albertocavalcante/go-depgraph/engine"
	"github.com/albertocavalcante/go-depgraph/ident"
)

// Builder constructs a Graph from a resolution. It implements
// engine.Visitor and is passed to engine.Builder.Resolve.
type Builder struct {
	// selectors are the selectors with edges, per target module.
	selectors map[ident.ModuleIdentifier][]*engine.SelectorState

	graph *Graph
}

var _ engine.Visitor = (*Builder)(nil)

// NewBuilder creates a new graph builder.
func NewBuilder() *Builder {
	return &Builder{
		selectors: make(map[ident.ModuleIdentifier][]*engine.SelectorState),
		graph:     newGraph(),
	}
}

// Graph returns the graph built so far. It is complete once the resolution
// returned.
func (b *Builder) Graph() *Graph { return b.graph }

// Start records the root.
func (b *Builder) Start(root *engine.NodeState) {
	b.graph.Root = root.ID()
}

// VisitSelector records the selector so candidates can list who asked for them.
func (b *Builder) VisitSelector(sel *engine.SelectorState) {
	if m := sel.Module(); m != nil {
		b.selectors[m.ID()] = append(b.selectors[m.ID()], sel)
	}
}

// requesters returns the components whose selectors accept version v.
func (b *Builder) requesters(module ident.ModuleIdentifier, v string) []Key {
	var out []Key
	for _, sel := range b.selectors[module] {
		if sel.Failure() != nil || !sel.Accepts(v) {
			continue
		}
		for _, e := range sel.Edges() {
			if from := e.From().ID(); !slices.Contains(out, from) {
				out = append(out, from)
			}
		}
	}
	return out
}

// VisitNode adds the node's component to the graph.
func (b *Builder) VisitNode(n *engine.NodeState) {
	c := n.Component()
	node := b.graph.add(c.ID())
	node.IsRoot = n.IsRoot()
	node.VirtualPlatform = c.IsVirtualPlatform()
	if v := n.Variant(); v != nil && !slices.Contains(node.Variants, v.Name) {
		node.Variants = append(node.Variants, v.Name)
	}
	if node.Selection == nil {
		node.Selection = b.buildSelectionInfo(c)
	}
}

// VisitEdges adds the node's outgoing edges and their failures.
func (b *Builder) VisitEdges(n *engine.NodeState) {
	node := b.graph.add(n.ID())
	for _, e := range n.Outgoing() {
		if err := e.Failure(); err != nil {
			if !e.Dependency().IsLenient() {
				node.Failures = append(node.Failures, err.Error())
			}
			continue
		}
		requested := e.Selector().Requested().Version
		for _, target := range e.TargetNodes() {
			key := target.ID()
			if key == node.Key {
				continue
			}
			if !slices.Contains(node.Dependencies, key) {
				node.Dependencies = append(node.Dependencies, key)
			}
			dep := b.graph.add(key)
			if !slices.Contains(dep.Dependents, node.Key) {
				dep.Dependents = append(dep.Dependents, node.Key)
			}
			if _, ok := dep.RequestedVersions[node.Key]; !ok {
				dep.RequestedVersions[node.Key] = requested
			}
		}
	}
}

// Finish is a no-op; the graph is complete once every edge was visited.
func (b *Builder) Finish(*engine.NodeState) {}

// Record copies the failures of a resolution into the graph.
func (b *Builder) Record(r *engine.Result) {
	for _, f := range r.Failures() {
		b.graph.Failures = append(b.graph.Failures, f.Error())
	}
}

// buildSelectionInfo creates selection info for a component.
func (b *Builder) buildSelectionInfo(c *engine.ComponentState) *SelectionInfo {
	info := &SelectionInfo{
		SelectedVersion: c.Version(),
		Candidates:      make([]VersionCandidate, 0),
	}
	kinds := make(map[engine.ReasonKind]bool)
	for _, r := range c.SelectionReasons() {
		info.Reasons = append(info.Reasons, r.String())
		kinds[r.Kind] = true
	}

	if c.IsRoot() {
		info.Strategy = StrategyRoot
		info.DecidingFactor = "root component"
		return info
	}

	if m := c.Module(); m != nil {
		for _, other := range m.AllVersions() {
			candidate := VersionCandidate{
				Version:     other.Version(),
				RequestedBy: b.requesters(m.ID(), other.Version()),
				Selected:    other == c,
			}
			if !candidate.Selected {
				switch other.State() {
				case engine.Evicted:
					candidate.RejectionReason = "evicted by conflict resolution"
				default:
					candidate.RejectionReason = "not selected"
				}
			}
			info.Candidates = append(info.Candidates, candidate)
		}
	}

	switch {
	case kinds[engine.ReasonForced]:
		info.Strategy = StrategyForced
		info.DecidingFactor = "forced by a dependency"
	case kinds[engine.ReasonCapabilityConflict]:
		info.Strategy = StrategyCapability
		info.DecidingFactor = "won a capability conflict"
	case kinds[engine.ReasonConflictResolution]:
		info.Strategy = StrategyConflictResolution
		info.DecidingFactor = "highest version among candidates"
	case kinds[engine.ReasonPlatform]:
		info.Strategy = StrategyPlatform
		info.DecidingFactor = "aligned by platform"
	default:
		info.Strategy = StrategyRequested
		info.DecidingFactor = "only version requested"
		if len(info.Candidates) > 1 {
			info.DecidingFactor = "accepted by every selector"
		}
	}
	return info
}

// Build constructs a Graph from a simple module list.
// This is a convenience method when no resolution is available.
func Build(root Key, modules []SimpleModule) *Graph {
	g := newGraph()
	g.Root = root

	for _, m := range modules {
		node := g.add(m.Key)
		node.IsRoot = m.Key == root
		node.Dependencies = append(node.Dependencies, m.Dependencies...)
	}

	// Build reverse edges
	for _, key := range g.order {
		for _, depKey := range g.Modules[key].Dependencies {
			if depNode, ok := g.Modules[depKey]; ok {
				depNode.Dependents = append(depNode.Dependents, key)
			}
		}
	}

	return g
}

// SimpleModule is a simplified component representation for building graphs.
type SimpleModule struct {
	Key          Key
	Dependencies []Key
}
