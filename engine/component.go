package engine

import (
	"errors"
	"slices"

	"github.com/albertocavalcante/go-depgraph/ident"
)

// SelectionState is the conflict-resolution state of a component.
type SelectionState int

const (
	// Selectable components are candidates that are not currently selected.
	Selectable SelectionState = iota
	// Selected is the component chosen for its module.
	Selected
	// Evicted components lost conflict resolution. Eviction is terminal.
	Evicted
)

func (s SelectionState) String() string {
	switch s {
	case Selectable:
		return "selectable"
	case Selected:
		return "selected"
	case Evicted:
		return "evicted"
	default:
		return "unknown"
	}
}

type visitState int

const (
	notSeen visitState = iota
	visiting
	visited
)

// ComponentState is the resolution state of one module version.
type ComponentState struct {
	id       ident.ModuleVersionIdentifier
	resultID int64
	module   *ModuleResolveState

	metadata *ComponentMetadata
	failure  error
	virtual  bool

	state      SelectionState
	nodes      []*NodeState
	selectedBy []*SelectorState
	reasons    []SelectionReason

	// requested is set once any selector asked for the component. A
	// requested component stays a conflict candidate until evicted, even
	// after the edges that requested it are gone.
	requested bool

	// switchedAway is set when a compatible selection moved the module
	// off this component. It can then only come back through conflict
	// resolution.
	switchedAway bool

	visit visitState
	root  bool
}

func newComponentState(m *ModuleResolveState, id ident.ModuleVersionIdentifier, resultID int64) *ComponentState {
	return &ComponentState{id: id, module: m, resultID: resultID}
}

// ID returns the component id.
func (c *ComponentState) ID() ident.ModuleVersionIdentifier { return c.id }

// ResultID is a stable numeric id, unique within one resolution.
func (c *ComponentState) ResultID() int64 { return c.resultID }

// Version returns the component version.
func (c *ComponentState) Version() string { return c.id.Version }

// Module returns the owning module state.
func (c *ComponentState) Module() *ModuleResolveState { return c.module }

// Metadata returns the resolved metadata, or nil.
func (c *ComponentState) Metadata() *ComponentMetadata { return c.metadata }

// Failure returns the metadata resolution failure, or nil.
func (c *ComponentState) Failure() error { return c.failure }

// State returns the selection state.
func (c *ComponentState) State() SelectionState { return c.state }

// IsVirtualPlatform reports whether the metadata was synthesized for a
// virtual platform.
func (c *ComponentState) IsVirtualPlatform() bool { return c.virtual }

// IsRoot reports whether this is the root component.
func (c *ComponentState) IsRoot() bool { return c.root }

// Nodes returns all nodes of the component.
func (c *ComponentState) Nodes() []*NodeState { return c.nodes }

// SelectionReasons explains why the component was selected: its own
// reasons followed by those of the selectors that requested it.
func (c *ComponentState) SelectionReasons() []SelectionReason {
	out := slices.Clone(c.reasons)
	for _, sel := range c.selectedBy {
		for _, r := range sel.reasons {
			if !slices.Contains(out, r) {
				out = append(out, r)
			}
		}
	}
	return out
}

// SelectedBy returns the selectors that requested the component.
func (c *ComponentState) SelectedBy() []*SelectorState { return c.selectedBy }

func (c *ComponentState) String() string { return c.id.String() }

func (c *ComponentState) isSelected() bool { return c.state == Selected }

func (c *ComponentState) isCandidateForConflictResolution() bool {
	return c.state != Evicted && (c.requested || c.state == Selected)
}

// alreadyResolved reports whether metadata or a failure is recorded.
func (c *ComponentState) alreadyResolved() bool {
	return c.metadata != nil || c.failure != nil
}

// resolveMetadata fetches the metadata once, serially.
func (c *ComponentState) resolveMetadata() {
	c.fetchMetadata(fetchSerial)
}

// fetchMetadata records the metadata or the failure, never retrying. Only
// this component's own fields are written, so distinct components may be
// fetched concurrently while the traversal waits.
func (c *ComponentState) fetchMetadata(mode string) {
	if c.alreadyResolved() {
		return
	}
	s := c.module.state
	s.cfg.Metrics.fetched(mode)
	md, err := s.cfg.MetadataResolver.ResolveMetadata(s.ctx, c.id)
	switch {
	case err == nil && md == nil:
		err = ErrNotFound
	case err == nil:
		c.metadata = md
		return
	}
	if errors.Is(err, ErrNotFound) && c.module.isVirtualPlatform() {
		c.makeVirtual()
		return
	}
	c.failure = &MetadataFailure{ID: c.id, Err: err}
}

// makeVirtual replaces a missing component with the synthetic metadata of a
// virtual platform.
func (c *ComponentState) makeVirtual() {
	c.failure = nil
	c.virtual = true
	c.metadata = &ComponentMetadata{
		ID:       c.id,
		Variants: []*VariantMetadata{{Name: PlatformVariantName}},
	}
}

// isMissing reports whether metadata resolution failed because the
// component does not exist.
func (c *ComponentState) isMissing() bool {
	var mf *MetadataFailure
	return errors.As(c.failure, &mf) && errors.Is(mf.Err, ErrNotFound)
}

// node returns the node for a variant, creating it on first use.
func (c *ComponentState) node(v *VariantMetadata) *NodeState {
	for _, n := range c.nodes {
		if n.variant.Name == v.Name {
			return n
		}
	}
	n := newNodeState(c.module.state, c, v)
	c.nodes = append(c.nodes, n)
	return n
}

func (c *ComponentState) select_() {
	c.state = Selected
}

func (c *ComponentState) makeSelectable() {
	if c.state == Selected {
		c.state = Selectable
	}
}

func (c *ComponentState) evict() {
	c.state = Evicted
}

func (c *ComponentState) addSelector(sel *SelectorState) {
	c.requested = true
	if !slices.Contains(c.selectedBy, sel) {
		c.selectedBy = append(c.selectedBy, sel)
	}
}

func (c *ComponentState) removeSelector(sel *SelectorState) {
	c.selectedBy = slices.DeleteFunc(c.selectedBy, func(s *SelectorState) bool { return s == sel })
}

func (c *ComponentState) addReason(r SelectionReason) {
	if !slices.Contains(c.reasons, r) {
		c.reasons = append(c.reasons, r)
	}
}

// isForced reports whether a forcing selector requested this component.
func (c *ComponentState) isForced() bool {
	for _, sel := range c.selectedBy {
		if sel.force {
			return true
		}
	}
	return false
}

// removeOutgoingEdges removes the outgoing edges of every node, used when
// the component stops being selected.
func (c *ComponentState) removeOutgoingEdges() {
	for _, n := range c.nodes {
		n.removeOutgoingEdges()
	}
}

// restartIncomingEdges rebinds edges that targeted this component to the
// winner of a conflict. The winner's own nodes are replayed because their
// outgoing edges were dropped while the conflict was pending.
func (c *ComponentState) restartIncomingEdges(winner *ComponentState) {
	if c == winner {
		for _, n := range c.nodes {
			if n.isSelected() {
				n.resetSelectionState()
			}
		}
		return
	}
	for _, n := range c.nodes {
		for _, e := range slices.Clone(n.incoming) {
			e.restart()
		}
	}
}

// hasActiveNode reports whether any node of the component is in the graph.
func (c *ComponentState) hasActiveNode() bool {
	for _, n := range c.nodes {
		if n.isSelected() {
			return true
		}
	}
	return false
}

// capabilities returns the declared capabilities.
func (c *ComponentState) capabilities() []ident.Capability {
	if c.metadata == nil {
		return nil
	}
	return c.metadata.Capabilities
}
