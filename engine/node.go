package engine

import (
	"container/list"
	"fmt"
	"slices"

	"github.com/albertocavalcante/go-depgraph/ident"
)

// NodeState is one variant of a component: a vertex of the graph.
type NodeState struct {
	resultID  int64
	state     *ResolveState
	component *ComponentState
	variant   *VariantMetadata
	root      bool

	incoming []*EdgeState
	outgoing []*EdgeState

	queued *list.Element

	// previous is the exclusion filter of the last full visit. It is nil
	// when the outgoing edges have to be recomputed.
	previous  *ExcludeSpec
	recompute bool

	// deferred lists the pending modules this node is a constraint
	// provider of.
	deferred []*ModuleResolveState

	platformGeneration int
}

func newNodeState(s *ResolveState, c *ComponentState, v *VariantMetadata) *NodeState {
	n := &NodeState{
		resultID:  s.newID(),
		state:     s,
		component: c,
		variant:   v,
	}
	s.addNode(n)
	return n
}

// ResultID is a stable numeric id, unique within one resolution.
func (n *NodeState) ResultID() int64 { return n.resultID }

// Component returns the owning component.
func (n *NodeState) Component() *ComponentState { return n.component }

// ID returns the owning component id.
func (n *NodeState) ID() ident.ModuleVersionIdentifier { return n.component.id }

// Variant returns the variant metadata.
func (n *NodeState) Variant() *VariantMetadata { return n.variant }

// IsRoot reports whether this is the root node.
func (n *NodeState) IsRoot() bool { return n.root }

// Incoming returns the attached incoming edges.
func (n *NodeState) Incoming() []*EdgeState { return n.incoming }

// Outgoing returns the materialized outgoing edges.
func (n *NodeState) Outgoing() []*EdgeState { return n.outgoing }

func (n *NodeState) String() string {
	return fmt.Sprintf("%s(%s)", n.component.id, n.variant.Name)
}

// isSelected reports whether the node is part of the graph: the root
// always is, any other node while it has incoming edges.
func (n *NodeState) isSelected() bool {
	return n.root || len(n.incoming) > 0
}

func (n *NodeState) addIncoming(e *EdgeState) {
	if slices.Contains(n.incoming, e) {
		return
	}
	n.incoming = append(n.incoming, e)
	n.state.enqueue(n)
}

func (n *NodeState) removeIncoming(e *EdgeState) {
	n.incoming = slices.DeleteFunc(n.incoming, func(x *EdgeState) bool { return x == e })
	n.state.enqueueFront(n)
}

// resetSelectionState forces the next visit to recompute the outgoing
// edges.
func (n *NodeState) resetSelectionState() {
	n.recompute = true
	n.state.enqueue(n)
}

// removeOutgoingEdges drops every outgoing edge and forgets the last
// exclusion filter.
func (n *NodeState) removeOutgoingEdges() {
	edges := n.outgoing
	n.outgoing = nil
	n.previous = nil
	for _, m := range n.deferred {
		m.pending.unregisterConstraintProvider(n)
	}
	n.deferred = nil
	for _, e := range edges {
		e.cleanup()
	}
}

// removeOutgoingEdge drops a single edge, used when the target module
// becomes pending again.
func (n *NodeState) removeOutgoingEdge(e *EdgeState) {
	n.outgoing = slices.DeleteFunc(n.outgoing, func(x *EdgeState) bool { return x == e })
	e.cleanup()
}

// transitiveIncoming returns the incoming edges through which dependencies
// are followed.
func (n *NodeState) transitiveIncoming() []*EdgeState {
	var out []*EdgeState
	for _, e := range n.incoming {
		if e.IsTransitive() {
			out = append(out, e)
		}
	}
	return out
}

// exclusions computes the filter applied to the node's dependencies: the
// intersection of what every transitive consumer excludes, plus what the
// variant excludes itself.
func (n *NodeState) exclusions(transitive []*EdgeState) ExcludeSpec {
	own := Excluding(n.variant.Excludes...)
	if len(transitive) == 0 {
		return own
	}
	result := transitive[0].exclusions
	for _, e := range transitive[1:] {
		result = result.Intersect(e.exclusions)
	}
	return result.Union(own)
}

// visitOutgoingDependencies refreshes the outgoing edges and appends the
// new ones to discovered.
func (n *NodeState) visitOutgoingDependencies(discovered []*EdgeState) []*EdgeState {
	log := n.state.log
	if !n.component.isSelected() {
		log.Debug("skipping node of unselected component", "node", n.String())
		return discovered
	}
	if !n.isSelected() {
		log.Debug("node no longer in graph", "node", n.String())
		n.removeOutgoingEdges()
		return discovered
	}

	transitive := n.transitiveIncoming()
	if len(transitive) == 0 && !n.root {
		n.removeOutgoingEdges()
		return discovered
	}

	excludes := n.exclusions(transitive)
	if !n.recompute && n.previous != nil && n.previous.Equal(excludes) && !n.platformChanged() {
		return discovered
	}

	n.removeOutgoingEdges()
	n.recompute = false
	n.previous = &excludes
	log.Debug("visiting dependencies", "node", n.String(), "excludes", excludes.String())

	filter := n.state.cfg.EdgeFilter
	var deps []*DependencyMetadata
	all := n.dependencies()
	for i := range all {
		dep := &all[i]
		if filter != nil && !filter(dep) {
			continue
		}
		if excludes.Excludes(dep.Selector.Module) {
			log.Debug("dependency excluded", "node", n.String(), "dependency", dep.Selector.String())
			continue
		}
		deps = append(deps, dep)
	}

	// Only dependencies that become edges count as hard.
	hard := make(map[ident.ModuleIdentifier]bool)
	for _, dep := range deps {
		if !dep.IsDeferrable() {
			hard[n.state.substitute(dep.Selector).Module] = true
		}
	}

	for _, dep := range deps {
		if n.defer_(dep, hard) {
			continue
		}
		discovered = append(discovered, n.addEdge(dep, excludes))
	}
	return n.visitOwners(discovered, excludes)
}

// dependencies returns the declared dependencies of the variant, or the
// synthetic ones of a virtual platform.
func (n *NodeState) dependencies() []DependencyMetadata {
	if n.component.virtual && n.component.module.platform != nil {
		p := n.component.module.platform
		n.platformGeneration = p.generation
		return p.dependencies(n.component)
	}
	return n.variant.Dependencies
}

func (n *NodeState) platformChanged() bool {
	p := n.component.module.platform
	return n.component.virtual && p != nil && p.generation != n.platformGeneration
}

// defer_ parks a constraint or optional dependency on a module that no
// hard edge targets yet.
func (n *NodeState) defer_(dep *DependencyMetadata, hard map[ident.ModuleIdentifier]bool) bool {
	if !dep.IsDeferrable() {
		return false
	}
	target := n.state.Module(n.state.substitute(dep.Selector).Module)
	if !target.isPending() || hard[target.id] {
		return false
	}
	n.state.log.Debug("deferring dependency", "node", n.String(), "dependency", dep.Selector.String())
	n.parkOn(target)
	return true
}

// parkOn registers the node as a constraint provider of a pending module.
func (n *NodeState) parkOn(m *ModuleResolveState) {
	m.pending.registerConstraintProvider(n)
	if !slices.Contains(n.deferred, m) {
		n.deferred = append(n.deferred, m)
	}
}

func (n *NodeState) addEdge(dep *DependencyMetadata, excludes ExcludeSpec) *EdgeState {
	sel := n.state.selector(dep)
	e := newEdgeState(n, dep, sel, excludes)
	n.outgoing = append(n.outgoing, e)
	if !dep.IsDeferrable() {
		sel.module.increaseHardEdgeCount()
	}
	return e
}

// visitOwners registers the component with the virtual platforms it
// belongs to and depends on each of them at its own version.
func (n *NodeState) visitOwners(discovered []*EdgeState, excludes ExcludeSpec) []*EdgeState {
	md := n.component.metadata
	if md == nil || len(md.Platforms) == 0 {
		return discovered
	}
	for _, id := range md.Platforms {
		p := n.state.Module(id).platformState()
		p.addParticipant(n.component.module)
		dep := &DependencyMetadata{
			Selector: ComponentSelector{Module: id, Version: n.component.Version()},
			Kind:     KindPlatform,
			Reason:   "belongs to platform " + id.String(),
		}
		discovered = append(discovered, n.addEdge(dep, excludes))
	}
	return discovered
}

// path returns a dependency path from the root to the node.
func (n *NodeState) path() []ident.ModuleVersionIdentifier {
	var rev []ident.ModuleVersionIdentifier
	seen := make(map[*NodeState]bool)
	for cur := n; cur != nil && !seen[cur]; {
		seen[cur] = true
		rev = append(rev, cur.component.id)
		if cur.root || len(cur.incoming) == 0 {
			break
		}
		cur = cur.incoming[0].from
	}
	slices.Reverse(rev)
	return rev
}
