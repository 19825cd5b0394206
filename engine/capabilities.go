package engine

import (
	"slices"

	"github.com/albertocavalcante/go-depgraph/ident"
	"github.com/albertocavalcante/go-depgraph/version"
)

// CapabilityConflict is a set of components from distinct modules that
// provide the same capability.
type CapabilityConflict struct {
	Capability ident.ModuleIdentifier
	Candidates []*ComponentState
	Compare    version.Comparator
}

// CapabilityResolver picks the provider of a conflicting capability. It
// returns false when it has no rule for the conflict.
type CapabilityResolver interface {
	Resolve(CapabilityConflict) (*ComponentState, bool)
}

// CapabilityRules tries each rule in order.
type CapabilityRules []CapabilityResolver

func (r CapabilityRules) Resolve(c CapabilityConflict) (*ComponentState, bool) {
	for _, rule := range r {
		if winner, ok := rule.Resolve(c); ok {
			return winner, true
		}
	}
	return nil, false
}

// PreferModule selects the provider from Module for the capability.
type PreferModule struct {
	Capability ident.ModuleIdentifier
	Module     ident.ModuleIdentifier
}

func (p PreferModule) Resolve(c CapabilityConflict) (*ComponentState, bool) {
	if c.Capability != p.Capability {
		return nil, false
	}
	for _, cand := range c.Candidates {
		if cand.id.Module == p.Module {
			return cand, true
		}
	}
	return nil, false
}

// PreferHighestVersion selects the provider declaring the highest
// capability version. An empty Capability applies to every capability.
type PreferHighestVersion struct {
	Capability ident.ModuleIdentifier
}

func (p PreferHighestVersion) Resolve(c CapabilityConflict) (*ComponentState, bool) {
	if !p.Capability.IsEmpty() && c.Capability != p.Capability {
		return nil, false
	}
	compare := c.Compare
	if compare == nil {
		compare = version.Compare
	}
	var best *ComponentState
	var bestVersion string
	for _, cand := range c.Candidates {
		v := capabilityVersion(cand, c.Capability)
		if best == nil || compare(v, bestVersion) > 0 {
			best, bestVersion = cand, v
		}
	}
	return best, best != nil
}

// capabilityVersion returns the version a component declares for a
// capability; the implicit capability has the component version.
func capabilityVersion(c *ComponentState, key ident.ModuleIdentifier) string {
	for _, capability := range c.capabilities() {
		if capability.Key() == key && capability.Version != "" {
			return capability.Version
		}
	}
	return c.id.Version
}

// capabilitiesConflictHandler detects components of distinct modules that
// provide the same capability.
type capabilitiesConflictHandler struct {
	state    *ResolveState
	resolver CapabilityResolver

	providers map[ident.ModuleIdentifier][]*ComponentState
	queue     []ident.ModuleIdentifier
	queued    map[ident.ModuleIdentifier]bool
	failed    map[ident.ModuleIdentifier]bool
}

func newCapabilitiesConflictHandler(s *ResolveState, r CapabilityResolver) *capabilitiesConflictHandler {
	return &capabilitiesConflictHandler{
		state:     s,
		resolver:  r,
		providers: make(map[ident.ModuleIdentifier][]*ComponentState),
		queued:    make(map[ident.ModuleIdentifier]bool),
		failed:    make(map[ident.ModuleIdentifier]bool),
	}
}

func (h *capabilitiesConflictHandler) addProvider(key ident.ModuleIdentifier, c *ComponentState) {
	if !slices.Contains(h.providers[key], c) {
		h.providers[key] = append(h.providers[key], c)
	}
}

// register records the capabilities of a component entering the graph.
// Once a capability is declared, the module of the same name is an
// implicit provider of it.
func (h *capabilitiesConflictHandler) register(c *ComponentState) {
	var touched []ident.ModuleIdentifier
	for _, capability := range c.capabilities() {
		key := capability.Key()
		if key == c.id.Module {
			continue
		}
		h.addProvider(key, c)
		if m := h.state.lookupModule(key); m != nil && m.selected != nil && m.selected.module == m {
			h.addProvider(key, m.selected)
		}
		touched = append(touched, key)
	}
	if _, ok := h.providers[c.id.Module]; ok {
		h.addProvider(c.id.Module, c)
		touched = append(touched, c.id.Module)
	}
	for _, key := range touched {
		if len(h.active(key)) > 1 && !h.queued[key] && !h.failed[key] {
			h.state.log.Debug("capability conflict detected", "capability", key.String())
			h.state.cfg.Metrics.conflict("capability")
			h.queued[key] = true
			h.queue = append(h.queue, key)
		}
	}
}

// active returns the providers in the graph, one per module.
func (h *capabilitiesConflictHandler) active(key ident.ModuleIdentifier) []*ComponentState {
	var out []*ComponentState
	seen := make(map[*ModuleResolveState]bool)
	for _, c := range h.providers[key] {
		if !c.isSelected() || c.module.selected != c || !c.hasActiveNode() || seen[c.module] {
			continue
		}
		seen[c.module] = true
		out = append(out, c)
	}
	return out
}

func (h *capabilitiesConflictHandler) hasConflicts() bool {
	return len(h.queue) > 0
}

// resolveNext resolves the oldest capability conflict. Without a rule the
// conflict is recorded as a failure and every provider stays in the graph.
func (h *capabilitiesConflictHandler) resolveNext() {
	key := h.queue[0]
	h.queue = h.queue[1:]
	delete(h.queued, key)

	cands := h.active(key)
	if len(cands) < 2 {
		return
	}
	conflict := CapabilityConflict{Capability: key, Candidates: cands, Compare: h.state.compare}
	var winner *ComponentState
	ok := false
	if h.resolver != nil {
		winner, ok = h.resolver.Resolve(conflict)
		ok = ok && slices.Contains(cands, winner)
	}
	if !ok {
		if h.failed[key] {
			return
		}
		h.failed[key] = true
		f := &CapabilityConflictFailure{Capability: key}
		for _, c := range cands {
			p := CapabilityProvider{ID: c.id}
			for _, n := range c.nodes {
				if n.isSelected() {
					p.Paths = append(p.Paths, n.path())
				}
			}
			f.Providers = append(f.Providers, p)
		}
		h.state.recordFailure(f)
		return
	}

	h.state.log.Debug("capability conflict resolved", "capability", key.String(), "winner", winner.id.String())
	winner.addReason(SelectionReason{Kind: ReasonCapabilityConflict, Description: "provides " + key.String()})
	for _, c := range cands {
		if c != winner {
			c.module.replaceWith(winner)
		}
	}
}
