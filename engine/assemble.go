package engine

import (
	"slices"

	"github.com/albertocavalcante/go-depgraph/ident"
)

// Visitor receives the resolved graph. Nodes are all reported before any
// edges, and edges are reported consumer first.
type Visitor interface {
	Start(root *NodeState)
	VisitSelector(sel *SelectorState)
	VisitNode(n *NodeState)
	VisitEdges(n *NodeState)
	Finish(root *NodeState)
}

// Result is the outcome of one resolution.
type Result struct {
	state    *ResolveState
	failures []error
}

// Root returns the root node.
func (r *Result) Root() *NodeState { return r.state.root }

// Failures returns every failure reachable from the root.
func (r *Result) Failures() []error { return r.failures }

// HasFailures reports whether the resolution failed.
func (r *Result) HasFailures() bool { return len(r.failures) > 0 }

// Err returns a *ResolveError, or nil when there are no failures.
func (r *Result) Err() error {
	if len(r.failures) == 0 {
		return nil
	}
	return &ResolveError{Failures: r.failures}
}

// Modules returns every module met during the resolution.
func (r *Result) Modules() []*ModuleResolveState { return r.state.moduleOrder }

// Module returns the state of a module, or nil.
func (r *Result) Module(id ident.ModuleIdentifier) *ModuleResolveState {
	return r.state.lookupModule(id)
}

// Components returns the selected components in the graph, root first.
func (r *Result) Components() []*ComponentState { return r.state.graphComponents() }

// Nodes returns the nodes in the graph, root first.
func (r *Result) Nodes() []*NodeState { return r.state.graphNodes() }

// graphNodes returns the active nodes of selected components in creation
// order.
func (s *ResolveState) graphNodes() []*NodeState {
	var out []*NodeState
	for _, n := range s.nodes {
		if n.component.isSelected() && n.isSelected() {
			out = append(out, n)
		}
	}
	return out
}

func (s *ResolveState) graphComponents() []*ComponentState {
	var out []*ComponentState
	for _, n := range s.graphNodes() {
		if !slices.Contains(out, n.component) {
			out = append(out, n.component)
		}
	}
	return out
}

// assemble validates the graph and reports it to the visitor.
func (s *ResolveState) assemble(v Visitor) *Result {
	r := &Result{state: s, failures: s.validate()}
	if v == nil {
		return r
	}
	v.Start(s.root)
	for _, sel := range s.selectorOrder {
		if len(sel.edges) > 0 {
			v.VisitSelector(sel)
		}
	}
	nodes := s.graphNodes()
	for _, n := range nodes {
		v.VisitNode(n)
	}
	s.visitEdgesConsumerFirst(v)
	v.Finish(s.root)
	return r
}

// visitEdgesConsumerFirst reports the edges of each component once all of
// its consumers were reported. A consumer that is still being visited
// belongs to a cycle and counts as reported.
func (s *ResolveState) visitEdgesConsumerFirst(v Visitor) {
	queue := s.graphComponents()
	for _, c := range queue {
		c.visit = notSeen
	}
	for len(queue) > 0 {
		c := queue[0]
		switch c.visit {
		case visited:
			queue = queue[1:]
		case visiting:
			queue = queue[1:]
			s.finishComponent(c, v)
		default:
			c.visit = visiting
			var consumers []*ComponentState
			for _, n := range c.nodes {
				if !n.isSelected() {
					continue
				}
				for _, e := range n.incoming {
					owner := e.from.component
					if owner.visit == notSeen && !slices.Contains(consumers, owner) {
						consumers = append(consumers, owner)
					}
				}
			}
			if len(consumers) == 0 {
				queue = queue[1:]
				s.finishComponent(c, v)
				continue
			}
			queue = slices.Insert(queue, 0, consumers...)
		}
	}
}

func (s *ResolveState) finishComponent(c *ComponentState, v Visitor) {
	c.visit = visited
	for _, n := range c.nodes {
		if n.isSelected() {
			v.VisitEdges(n)
		}
	}
}

// validate collects the failures reachable from the root: rejected
// selections, unresolved edges of nodes in the graph and the failures
// recorded during traversal.
func (s *ResolveState) validate() []error {
	var failures []error
	seen := make(map[string]bool)
	add := func(err error) {
		if msg := err.Error(); !seen[msg] {
			seen[msg] = true
			failures = append(failures, err)
		}
	}

	for _, m := range s.moduleOrder {
		if f := m.rejection(); f != nil {
			add(f)
		}
	}
	for _, n := range s.graphNodes() {
		for _, e := range n.outgoing {
			if e.failure == nil || e.dep.IsLenient() {
				continue
			}
			add(withPath(e.failure, n.path()))
		}
	}
	for _, f := range s.failures {
		add(f)
	}
	return failures
}

// rejection returns a failure when a selector of the module rejects the
// selected version.
func (m *ModuleResolveState) rejection() *RejectedModuleFailure {
	c := m.selected
	if c == nil || c.module != m || !c.hasActiveNode() {
		return nil
	}
	rejected := false
	var constraints []RejectedConstraint
	for _, sel := range m.selectors {
		if len(sel.edges) == 0 {
			continue
		}
		rc := RejectedConstraint{
			Selector:  sel.requested,
			Rejecting: sel.isRejected(c.Version()),
			Paths:     sel.paths(),
		}
		rejected = rejected || rc.Rejecting
		constraints = append(constraints, rc)
	}
	if !rejected {
		return nil
	}
	return &RejectedModuleFailure{Module: m.id, Version: c.Version(), Constraints: constraints}
}
