package engine

import "slices"

// PendingDependencies tracks the deferred dependencies of one module. A
// module is pending while no hard edge targets it; constraint and optional
// dependencies on a pending module are parked, and the nodes that declared
// them are remembered as constraint providers.
type PendingDependencies struct {
	hardEdges int
	providers []*NodeState
}

func (p *PendingDependencies) isPending() bool {
	return p.hardEdges == 0
}

// HardEdges returns the number of hard edges targeting the module.
func (p *PendingDependencies) HardEdges() int { return p.hardEdges }

// increaseHardEdgeCount counts a new hard edge. On the transition out of
// pending it returns the parked providers and forgets them.
func (p *PendingDependencies) increaseHardEdgeCount() []*NodeState {
	p.hardEdges++
	if p.hardEdges != 1 {
		return nil
	}
	providers := p.providers
	p.providers = nil
	return providers
}

func (p *PendingDependencies) decreaseHardEdgeCount() {
	if p.hardEdges > 0 {
		p.hardEdges--
	}
}

func (p *PendingDependencies) registerConstraintProvider(n *NodeState) {
	if !slices.Contains(p.providers, n) {
		p.providers = append(p.providers, n)
	}
}

func (p *PendingDependencies) unregisterConstraintProvider(n *NodeState) {
	p.providers = slices.DeleteFunc(p.providers, func(x *NodeState) bool { return x == n })
}
