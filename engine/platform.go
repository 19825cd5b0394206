package engine

import "slices"

// PlatformVariantName is the single variant of a virtual platform.
const PlatformVariantName = "platform"

// VirtualPlatformState aligns the versions of the modules that declare
// they belong to a platform module. A platform without repository
// metadata is virtual: its only variant depends on every participant at
// the platform's selected version.
type VirtualPlatformState struct {
	module       *ModuleResolveState
	participants []*ModuleResolveState
	generation   int
	orphans      []*EdgeState
}

func newVirtualPlatformState(m *ModuleResolveState) *VirtualPlatformState {
	return &VirtualPlatformState{module: m}
}

// Participants returns the modules aligned by the platform.
func (p *VirtualPlatformState) Participants() []*ModuleResolveState { return p.participants }

// addParticipant adds a module to the platform. Nodes of the selected
// platform component are replayed so the newcomer gets aligned too.
func (p *VirtualPlatformState) addParticipant(m *ModuleResolveState) {
	if slices.Contains(p.participants, m) {
		return
	}
	first := len(p.participants) == 0
	p.participants = append(p.participants, m)
	p.generation++
	m.registerPlatformOwner(p)
	p.module.state.log.Debug("platform participant added", "platform", p.module.id.String(), "module", m.id.String())

	if first {
		p.materialize()
	}
	if sel := p.module.selected; sel != nil && sel.virtual {
		for _, n := range sel.nodes {
			if n.isSelected() {
				n.resetSelectionState()
			}
		}
	}
}

// materialize turns missing components of the platform module into
// virtual ones and retries the edges that found nothing there.
func (p *VirtualPlatformState) materialize() {
	for _, c := range p.module.versionOrder {
		if c.isMissing() {
			c.makeVirtual()
		}
	}
	orphans := p.orphans
	p.orphans = nil
	for _, e := range orphans {
		if e.removed {
			continue
		}
		e.selector.reset()
		e.detach()
		p.module.state.deferEdges(e)
	}
}

func (p *VirtualPlatformState) addOrphan(e *EdgeState) {
	if len(p.participants) > 0 || slices.Contains(p.orphans, e) {
		return
	}
	p.orphans = append(p.orphans, e)
}

func (p *VirtualPlatformState) removeOrphan(e *EdgeState) {
	p.orphans = slices.DeleteFunc(p.orphans, func(x *EdgeState) bool { return x == e })
}

// dependencies returns the synthetic constraints of a platform component:
// one per participant at the component's version, forced when the
// platform itself is forced.
func (p *VirtualPlatformState) dependencies(c *ComponentState) []DependencyMetadata {
	forced := c.isForced()
	deps := make([]DependencyMetadata, 0, len(p.participants))
	for _, m := range p.participants {
		deps = append(deps, DependencyMetadata{
			Selector: ComponentSelector{Module: m.id, Version: c.Version()},
			Kind:     KindPlatformMember,
			Force:    forced,
			Reason:   "aligned by platform " + p.module.id.String(),
		})
	}
	return deps
}
