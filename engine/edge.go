package engine

// EdgeState is one dependency of a node, resolved through a shared
// selector. An edge is attached to nodes of its target only while the
// target component is selected.
type EdgeState struct {
	from     *NodeState
	selector *SelectorState
	dep      *DependencyMetadata

	// exclusions apply to the transitive closure reached through the edge.
	exclusions ExcludeSpec

	target      *ComponentState
	targetNodes []*NodeState
	failure     error
	removed     bool
}

func newEdgeState(from *NodeState, dep *DependencyMetadata, sel *SelectorState, nodeExclusions ExcludeSpec) *EdgeState {
	e := &EdgeState{
		from:       from,
		selector:   sel,
		dep:        dep,
		exclusions: nodeExclusions.Union(Excluding(dep.Excludes...)),
	}
	sel.addEdge(e)
	return e
}

// From returns the declaring node.
func (e *EdgeState) From() *NodeState { return e.from }

// Selector returns the shared selector.
func (e *EdgeState) Selector() *SelectorState { return e.selector }

// Dependency returns the declared dependency.
func (e *EdgeState) Dependency() *DependencyMetadata { return e.dep }

// Target returns the component the edge is attached to, or nil.
func (e *EdgeState) Target() *ComponentState { return e.target }

// TargetNodes returns the nodes the edge is attached to.
func (e *EdgeState) TargetNodes() []*NodeState { return e.targetNodes }

// Failure returns the failure that prevented attachment, or nil.
func (e *EdgeState) Failure() error { return e.failure }

// Exclusions returns the exclusions applied below this edge.
func (e *EdgeState) Exclusions() ExcludeSpec { return e.exclusions }

// IsTransitive reports whether the target's own dependencies are followed
// through this edge. Constraints never are.
func (e *EdgeState) IsTransitive() bool {
	return e.dep.IsTransitive() && !e.dep.IsConstraint()
}

// IsConstraint reports whether the edge only constrains the version.
func (e *EdgeState) IsConstraint() bool { return e.dep.IsConstraint() }

func (e *EdgeState) String() string {
	return e.from.String() + " -> " + e.selector.String()
}

// attach binds the edge to the nodes of the component currently selected
// for its module. It is a no-op when the edge already points there.
func (e *EdgeState) attach() {
	if e.removed {
		return
	}
	sel := e.selector
	m := sel.module
	target := m.selected

	if e.target != nil {
		if e.target == target {
			return
		}
		e.detach()
	}
	e.failure = nil

	switch {
	case sel.failure != nil:
		e.failure = sel.failure
		m.removeUnattached(e)
		e.maybeOrphan()
		return
	case sel.ignored:
		m.removeUnattached(e)
		return
	case target == nil || target.state != Selected:
		m.addUnattached(e)
		return
	}

	target.resolveMetadata()
	if target.failure != nil {
		e.failure = target.failure
		m.removeUnattached(e)
		if target.isMissing() {
			e.maybeOrphan()
		}
		return
	}

	variants, err := e.selectVariants(target)
	if err != nil {
		e.failure = err
		m.removeUnattached(e)
		return
	}

	m.removeUnattached(e)
	e.target = target
	for _, v := range variants {
		n := target.node(v)
		e.targetNodes = append(e.targetNodes, n)
		n.addIncoming(e)
	}
}

// maybeOrphan parks a platform edge whose target does not exist yet.
func (e *EdgeState) maybeOrphan() {
	if e.dep.Kind == KindPlatform {
		e.selector.module.platformState().addOrphan(e)
	}
}

// detach reverses attach.
func (e *EdgeState) detach() {
	for _, n := range e.targetNodes {
		n.removeIncoming(e)
	}
	e.targetNodes = nil
	e.target = nil
}

// restart rebinds the edge after conflict resolution changed the selection
// of its module.
func (e *EdgeState) restart() {
	if e.removed {
		return
	}
	e.detach()
	e.attach()
}

// cleanup is called once the declaring node drops the edge.
func (e *EdgeState) cleanup() {
	if e.removed {
		return
	}
	e.detach()
	e.removed = true
	m := e.selector.module
	m.removeUnattached(e)
	if m.platform != nil {
		m.platform.removeOrphan(e)
	}
	e.selector.removeEdge(e)
	if !e.dep.IsDeferrable() {
		m.decreaseHardEdgeCount(e.from)
	}
}

// requestedAttributes merges the consumer attributes with the ones declared
// on the dependency.
func (e *EdgeState) requestedAttributes() Attributes {
	return e.from.state.cfg.Attributes.merge(e.dep.Attributes)
}

// selectVariants picks the target variants for the edge. An explicit
// configuration wins; otherwise the compatible variant matching the most
// requested attributes is chosen. Without requested attributes the default
// variant, or the first declared one, is used.
func (e *EdgeState) selectVariants(target *ComponentState) ([]*VariantMetadata, error) {
	md := target.metadata
	variants := md.allVariants()
	path := e.from.path()

	if name := e.dep.Configuration; name != "" {
		if v := md.Variant(name); v != nil {
			return []*VariantMetadata{v}, nil
		}
		if name == DefaultVariantName && len(md.Variants) == 0 {
			return variants, nil
		}
		return nil, &IncompatibleVariantFailure{
			Component:     target.id,
			Configuration: name,
			Variants:      describeVariants(variants),
			Path:          path,
		}
	}

	requested := e.requestedAttributes()
	if len(requested) == 0 {
		if v := md.Variant(DefaultVariantName); v != nil {
			return []*VariantMetadata{v}, nil
		}
		return variants[:1], nil
	}

	best := -1
	var matches []*VariantMetadata
	for _, v := range variants {
		score, ok := matchAttributes(requested, v.Attributes)
		switch {
		case !ok:
		case score > best:
			best = score
			matches = []*VariantMetadata{v}
		case score == best:
			matches = append(matches, v)
		}
	}
	switch len(matches) {
	case 0:
		return nil, &IncompatibleVariantFailure{
			Component: target.id,
			Requested: requested,
			Variants:  describeVariants(variants),
			Path:      path,
		}
	case 1:
		return matches, nil
	default:
		names := make([]string, len(matches))
		for i, v := range matches {
			names[i] = v.Name
		}
		return nil, &AmbiguousVariantFailure{
			Component:  target.id,
			Requested:  requested,
			Candidates: names,
			Path:       path,
		}
	}
}

// matchAttributes returns how many requested attributes the variant
// declares with the same value. A conflicting value makes it incompatible.
func matchAttributes(requested, declared Attributes) (int, bool) {
	score := 0
	for k, want := range requested {
		got, ok := declared[k]
		if !ok {
			continue
		}
		if got != want {
			return 0, false
		}
		score++
	}
	return score, true
}

func describeVariants(variants []*VariantMetadata) []VariantDescription {
	out := make([]VariantDescription, len(variants))
	for i, v := range variants {
		out[i] = VariantDescription{Name: v.Name, Attributes: v.Attributes}
	}
	return out
}
