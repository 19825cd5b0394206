package engine

import (
	"slices"
	"strings"

	"github.com/albertocavalcante/go-depgraph/ident"
	"github.com/albertocavalcante/go-depgraph/version"
)

// ConflictCandidates are the competing versions of one module.
type ConflictCandidates struct {
	Module     ident.ModuleIdentifier
	Candidates []*ComponentState
	Compare    version.Comparator
}

// Highest returns the candidate with the highest version.
func (c ConflictCandidates) Highest() *ComponentState {
	compare := c.Compare
	if compare == nil {
		compare = version.Compare
	}
	var best *ComponentState
	for _, cand := range c.Candidates {
		if best == nil || compare(cand.Version(), best.Version()) > 0 {
			best = cand
		}
	}
	return best
}

// Versions returns the candidate versions in discovery order.
func (c ConflictCandidates) Versions() []string {
	out := make([]string, len(c.Candidates))
	for i, cand := range c.Candidates {
		out[i] = cand.Version()
	}
	return out
}

// VersionConflictResolver picks the winner of a module version conflict.
// Forced candidates are handled before the resolver is consulted.
type VersionConflictResolver interface {
	Select(ConflictCandidates) (*ComponentState, error)
}

// LatestResolver selects the highest version using the comparator of the
// resolution.
type LatestResolver struct{}

func (LatestResolver) Select(c ConflictCandidates) (*ComponentState, error) {
	return c.Highest(), nil
}

// SemverLatestResolver selects the highest version by semantic versioning
// precedence.
type SemverLatestResolver struct{}

func (SemverLatestResolver) Select(c ConflictCandidates) (*ComponentState, error) {
	c.Compare = version.SemverCompare
	return c.Highest(), nil
}

// FailOnConflictResolver refuses every version conflict.
type FailOnConflictResolver struct{}

func (FailOnConflictResolver) Select(ConflictCandidates) (*ComponentState, error) {
	return nil, ErrVersionConflict
}

// moduleConflictHandler batches module version conflicts and resolves them
// one at a time, in registration order.
type moduleConflictHandler struct {
	state    *ResolveState
	resolver VersionConflictResolver
	queue    []*ModuleResolveState
	pending  map[*ModuleResolveState]bool
}

func newModuleConflictHandler(s *ResolveState, r VersionConflictResolver) *moduleConflictHandler {
	if r == nil {
		r = LatestResolver{}
	}
	return &moduleConflictHandler{
		state:    s,
		resolver: r,
		pending:  make(map[*ModuleResolveState]bool),
	}
}

// register queues a conflict for the module. Registering twice is a no-op.
func (h *moduleConflictHandler) register(m *ModuleResolveState) {
	if h.pending[m] {
		return
	}
	h.state.log.Debug("version conflict detected", "module", m.id.String())
	h.state.cfg.Metrics.conflict("version")
	h.pending[m] = true
	h.queue = append(h.queue, m)
}

func (h *moduleConflictHandler) isPending(m *ModuleResolveState) bool {
	return h.pending[m]
}

func (h *moduleConflictHandler) hasConflicts() bool {
	return len(h.queue) > 0
}

// resolveNext resolves the oldest conflict and restarts the module with the
// winner.
func (h *moduleConflictHandler) resolveNext() {
	m := h.queue[0]
	h.queue = h.queue[1:]
	delete(h.pending, m)

	cands := m.candidates()
	if len(cands) == 0 {
		return
	}
	winner := cands[0]
	if len(cands) > 1 {
		winner = h.pick(m, cands)
	}
	h.state.log.Debug("version conflict resolved",
		"module", m.id.String(),
		"candidates", strings.Join(ConflictCandidates{Candidates: cands}.Versions(), ","),
		"winner", winner.Version())
	m.restart(winner)
}

func (h *moduleConflictHandler) pick(m *ModuleResolveState, cands []*ComponentState) *ComponentState {
	s := h.state
	conflict := ConflictCandidates{Module: m.id, Candidates: cands, Compare: s.compare}
	description := "between versions " + strings.Join(conflict.Versions(), ", ")

	for _, c := range cands {
		if c.root {
			return c
		}
	}

	var forced []*ComponentState
	for _, c := range cands {
		if c.isForced() {
			forced = append(forced, c)
		}
	}
	if len(forced) > 0 {
		winner := ConflictCandidates{Candidates: forced, Compare: s.compare}.Highest()
		winner.addReason(SelectionReason{Kind: ReasonForced, Description: description})
		return winner
	}

	winner, err := h.resolver.Select(conflict)
	if err != nil || winner == nil || !slices.Contains(cands, winner) {
		f := &VersionConflictFailure{Module: m.id, Versions: conflict.Versions(), Err: err}
		for _, c := range cands {
			for _, sel := range c.selectedBy {
				f.Paths = append(f.Paths, sel.paths()...)
			}
		}
		s.recordFailure(f)
		winner = conflict.Highest()
	}
	winner.addReason(SelectionReason{Kind: ReasonConflictResolution, Description: description})
	return winner
}
