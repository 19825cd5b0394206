package engine

import (
	"slices"

	"github.com/albertocavalcante/go-depgraph/ident"
)

// ModuleResolveState tracks every known version of one module and which of
// them is currently selected. At most one component of a module is Selected
// at any time.
type ModuleResolveState struct {
	state *ResolveState
	id    ident.ModuleIdentifier

	versions     map[string]*ComponentState
	versionOrder []*ComponentState
	selected     *ComponentState

	selectors  []*SelectorState
	unattached []*EdgeState

	pending        PendingDependencies
	platform       *VirtualPlatformState
	platformOwners []*VirtualPlatformState

	// replaced is set when a capability conflict selected a component of
	// another module for this one.
	replaced bool
}

func newModuleResolveState(s *ResolveState, id ident.ModuleIdentifier) *ModuleResolveState {
	return &ModuleResolveState{
		state:    s,
		id:       id,
		versions: make(map[string]*ComponentState),
	}
}

// ID returns the module identifier.
func (m *ModuleResolveState) ID() ident.ModuleIdentifier { return m.id }

// Selected returns the selected component, or nil.
func (m *ModuleResolveState) Selected() *ComponentState { return m.selected }

// Replaced reports whether a component of another module was selected in
// place of this module.
func (m *ModuleResolveState) Replaced() bool { return m.replaced }

// AllVersions returns every known component, including evicted ones.
func (m *ModuleResolveState) AllVersions() []*ComponentState { return m.versionOrder }

// Selectors returns the selectors that target this module.
func (m *ModuleResolveState) Selectors() []*SelectorState { return m.selectors }

func (m *ModuleResolveState) String() string { return m.id.String() }

func (m *ModuleResolveState) version(v string) *ComponentState {
	if c, ok := m.versions[v]; ok {
		return c
	}
	c := newComponentState(m, m.id.Version(v), m.state.newID())
	m.versions[v] = c
	m.versionOrder = append(m.versionOrder, c)
	return c
}

// candidates returns the components that take part in conflict resolution:
// those not evicted that some selector requested, even if that selector
// has since lost its edges.
func (m *ModuleResolveState) candidates() []*ComponentState {
	var out []*ComponentState
	for _, c := range m.versionOrder {
		if c.isCandidateForConflictResolution() {
			out = append(out, c)
		}
	}
	return out
}

// selectComponent selects a component for the first time.
func (m *ModuleResolveState) selectComponent(c *ComponentState) {
	m.state.log.Debug("selecting module version", "component", c.id.String())
	m.selected = c
	m.replaced = false
	c.select_()
}

// clearSelection prepares the module for conflict resolution: the outgoing
// edges of the selected component are removed and it becomes selectable.
func (m *ModuleResolveState) clearSelection() {
	if m.selected == nil {
		return
	}
	if m.selected.module == m {
		m.selected.removeOutgoingEdges()
		m.selected.makeSelectable()
	}
	m.selected = nil
	m.replaced = false
}

// restart makes winner the selection of this module, evicts every other
// version and rebinds all selectors and edges that targeted this module.
func (m *ModuleResolveState) restart(winner *ComponentState) {
	if m.selected != nil && m.selected != winner {
		m.clearSelection()
	}
	m.selected = winner
	m.replaced = winner.module != m

	evicted := 0
	for _, c := range m.versionOrder {
		if c != winner && c.state != Evicted {
			c.evict()
			evicted++
		}
	}
	m.state.cfg.Metrics.evicted(evicted)
	if !m.replaced {
		winner.select_()
	}
	m.rebind(winner)
}

// switchSelection moves the selection to winner without a conflict. The
// previous selection becomes selectable again, so a later selector can
// still pick it, but only through conflict resolution.
func (m *ModuleResolveState) switchSelection(winner *ComponentState) {
	if m.selected != nil {
		m.selected.switchedAway = true
	}
	m.clearSelection()
	m.selectComponent(winner)
	m.rebind(winner)
}

// rebind points every selector and edge of the module at winner.
func (m *ModuleResolveState) rebind(winner *ComponentState) {
	for _, c := range slices.Clone(m.versionOrder) {
		c.restartIncomingEdges(winner)
	}
	for _, sel := range m.selectors {
		sel.overrideSelection(winner)
	}
	for _, e := range slices.Clone(m.unattached) {
		e.restart()
	}
}

// replaceWith selects a component of another module in place of this one.
func (m *ModuleResolveState) replaceWith(winner *ComponentState) {
	m.state.log.Debug("replacing module", "module", m.id.String(), "with", winner.id.String())
	m.restart(winner)
}

func (m *ModuleResolveState) addSelector(sel *SelectorState) {
	if !slices.Contains(m.selectors, sel) {
		m.selectors = append(m.selectors, sel)
	}
}

func (m *ModuleResolveState) removeSelector(sel *SelectorState) {
	m.selectors = slices.DeleteFunc(m.selectors, func(s *SelectorState) bool { return s == sel })
}

func (m *ModuleResolveState) addUnattached(e *EdgeState) {
	if !slices.Contains(m.unattached, e) {
		m.unattached = append(m.unattached, e)
	}
}

func (m *ModuleResolveState) removeUnattached(e *EdgeState) {
	m.unattached = slices.DeleteFunc(m.unattached, func(x *EdgeState) bool { return x == e })
}

// isPending reports whether no hard edge targets the module.
func (m *ModuleResolveState) isPending() bool {
	return m.pending.isPending()
}

// increaseHardEdgeCount records a new hard edge. When the module stops being
// pending, every node that parked a constraint on it is replayed.
func (m *ModuleResolveState) increaseHardEdgeCount() {
	providers := m.pending.increaseHardEdgeCount()
	for _, n := range providers {
		m.state.log.Debug("constraint activated", "module", m.id.String(), "provider", n.String())
		n.resetSelectionState()
	}
}

// decreaseHardEdgeCount records a removed hard edge. When the last one goes,
// the module is pending again: constraint edges targeting it are dropped and
// their nodes parked as providers. removalSource is the node dropping the
// hard edge, which handles its own edges.
func (m *ModuleResolveState) decreaseHardEdgeCount(removalSource *NodeState) {
	m.pending.decreaseHardEdgeCount()
	if !m.pending.isPending() {
		return
	}
	for _, sel := range slices.Clone(m.selectors) {
		for _, e := range slices.Clone(sel.edges) {
			if !e.dep.IsDeferrable() || e.from == removalSource {
				continue
			}
			m.state.log.Debug("constraint deactivated", "module", m.id.String(), "provider", e.from.String())
			e.from.removeOutgoingEdge(e)
			e.from.parkOn(m)
		}
	}
}

// platformState returns the virtual platform state, creating it on first use.
func (m *ModuleResolveState) platformState() *VirtualPlatformState {
	if m.platform == nil {
		m.platform = newVirtualPlatformState(m)
	}
	return m.platform
}

// isVirtualPlatform reports whether at least one component declared that it
// belongs to this module as a platform.
func (m *ModuleResolveState) isVirtualPlatform() bool {
	return m.platform != nil && len(m.platform.participants) > 0
}

func (m *ModuleResolveState) registerPlatformOwner(p *VirtualPlatformState) {
	if !slices.Contains(m.platformOwners, p) {
		m.platformOwners = append(m.platformOwners, p)
	}
}
