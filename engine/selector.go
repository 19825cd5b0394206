package engine

import (
	"fmt"
	"slices"

	"github.com/albertocavalcante/go-depgraph/ident"
	"github.com/albertocavalcante/go-depgraph/version"
)

// ReasonKind classifies why a component was selected.
type ReasonKind int

const (
	ReasonRoot ReasonKind = iota
	ReasonRequested
	ReasonConstraint
	ReasonForced
	ReasonConflictResolution
	ReasonSubstitution
	ReasonCapabilityConflict
	ReasonPlatform
)

func (k ReasonKind) String() string {
	switch k {
	case ReasonRoot:
		return "root"
	case ReasonRequested:
		return "requested"
	case ReasonConstraint:
		return "constraint"
	case ReasonForced:
		return "forced"
	case ReasonConflictResolution:
		return "conflict resolution"
	case ReasonSubstitution:
		return "substitution"
	case ReasonCapabilityConflict:
		return "capability conflict"
	case ReasonPlatform:
		return "platform"
	default:
		return "unknown"
	}
}

// SelectionReason is one explanation of a selection.
type SelectionReason struct {
	Kind        ReasonKind
	Description string
}

func (r SelectionReason) String() string {
	if r.Description == "" {
		return r.Kind.String()
	}
	return r.Kind.String() + ": " + r.Description
}

// SelectorState is a requested selector shared by every edge that requests
// exactly the same thing. The id is resolved at most once.
type SelectorState struct {
	id        int64
	state     *ResolveState
	requested ComponentSelector
	module    *ModuleResolveState

	substituted bool
	force       bool
	lenient     bool
	reasons     []SelectionReason

	versionSelector version.Selector
	rejects         []version.Selector

	resolved bool
	failure  error
	ignored  bool
	// candidate is the component the id resolution pointed at, replaced by
	// the winner when conflict resolution overrides it.
	candidate *ComponentState

	edges []*EdgeState
}

func newSelectorState(s *ResolveState, id int64, dep *DependencyMetadata, requested ComponentSelector, substituted bool) *SelectorState {
	sel := &SelectorState{
		id:          id,
		state:       s,
		requested:   requested,
		module:      s.Module(requested.Module),
		substituted: substituted,
		lenient:     dep.IsLenient(),
	}
	sel.update(dep)
	return sel
}

// ID returns the selector id, unique within one resolution.
func (sel *SelectorState) ID() int64 { return sel.id }

// Requested returns the selector after substitution rules were applied.
func (sel *SelectorState) Requested() ComponentSelector { return sel.requested }

// Module returns the targeted module.
func (sel *SelectorState) Module() *ModuleResolveState { return sel.module }

// Failure returns the resolution failure, or nil.
func (sel *SelectorState) Failure() error { return sel.failure }

// IsForced reports whether any dependency using this selector is forced.
func (sel *SelectorState) IsForced() bool { return sel.force }

// Selected returns the component the selector currently points at.
func (sel *SelectorState) Selected() *ComponentState { return sel.candidate }

// Edges returns the edges that use the selector.
func (sel *SelectorState) Edges() []*EdgeState { return sel.edges }

func (sel *SelectorState) String() string { return sel.requested.String() }

// update merges the flags of another dependency sharing this selector.
func (sel *SelectorState) update(dep *DependencyMetadata) {
	if dep.Force {
		sel.force = true
	}
	var r SelectionReason
	switch {
	case dep.Force:
		r = SelectionReason{Kind: ReasonForced, Description: dep.Reason}
	case dep.Kind == KindPlatformMember:
		r = SelectionReason{Kind: ReasonPlatform, Description: dep.Reason}
	case dep.IsConstraint():
		r = SelectionReason{Kind: ReasonConstraint, Description: dep.Reason}
	default:
		r = SelectionReason{Kind: ReasonRequested, Description: dep.Reason}
	}
	sel.addReason(r)
	if sel.substituted {
		sel.addReason(SelectionReason{Kind: ReasonSubstitution, Description: "using " + sel.requested.String()})
	}
}

func (sel *SelectorState) addReason(r SelectionReason) {
	if !slices.Contains(sel.reasons, r) {
		sel.reasons = append(sel.reasons, r)
	}
}

// resolve resolves the requested selector once and returns the candidate
// component, or nil when the selector failed or was ignored.
func (sel *SelectorState) resolve() *ComponentState {
	if sel.resolved {
		return sel.candidate
	}
	sel.resolved = true

	vs, err := version.ParseSelector(sel.requested.Version)
	if err != nil {
		sel.failure = &SelectorFailure{Selector: sel.requested, Err: err}
		return nil
	}
	sel.versionSelector = vs
	for _, r := range sel.requested.Reject {
		rs, err := version.ParseSelector(r)
		if err != nil {
			sel.failure = &SelectorFailure{Selector: sel.requested, Err: fmt.Errorf("reject %q: %w", r, err)}
			return nil
		}
		sel.rejects = append(sel.rejects, rs)
	}

	if sel.module.isVirtualPlatform() {
		// Platforms have no repository presence: any requested version exists.
		if ex, ok := vs.(version.ExactSelector); ok {
			sel.candidate = sel.module.version(ex.Version())
			return sel.candidate
		}
	}

	s := sel.state
	id, err := s.cfg.IDResolver.ResolveID(s.ctx, sel.requested)
	if err != nil {
		if sel.lenient {
			s.log.Debug("ignoring unresolvable platform member", "selector", sel.String(), "error", err)
			sel.ignored = true
			return nil
		}
		sel.failure = &SelectorFailure{Selector: sel.requested, Err: err}
		return nil
	}
	if id.Module != sel.module.id {
		sel.failure = &SelectorFailure{
			Selector: sel.requested,
			Err:      fmt.Errorf("resolved to %s, a different module", id),
		}
		return nil
	}
	sel.candidate = sel.module.version(id.Version)
	return sel.candidate
}

// reset forgets the resolution so the selector is resolved again, used
// once a missing platform becomes virtual.
func (sel *SelectorState) reset() {
	if sel.candidate != nil {
		sel.candidate.removeSelector(sel)
	}
	sel.resolved = false
	sel.failure = nil
	sel.ignored = false
	sel.candidate = nil
	sel.versionSelector = nil
	sel.rejects = nil
}

// accepts reports whether the selector would be satisfied by a version.
// Failed or ignored selectors accept anything.
func (sel *SelectorState) accepts(v string) bool {
	if sel.versionSelector == nil {
		return true
	}
	for _, r := range sel.rejects {
		if r.Accept(v) {
			return false
		}
	}
	return sel.versionSelector.Accept(v)
}

// Accepts reports whether the selector is satisfied by version v.
func (sel *SelectorState) Accepts(v string) bool { return sel.accepts(v) }

// isRejected reports whether v is explicitly rejected.
func (sel *SelectorState) isRejected(v string) bool {
	for _, r := range sel.rejects {
		if r.Accept(v) {
			return true
		}
	}
	return false
}

// overrideSelection points the selector at the conflict winner without
// resolving it again.
func (sel *SelectorState) overrideSelection(winner *ComponentState) {
	if sel.candidate == winner {
		return
	}
	if sel.candidate != nil {
		sel.candidate.removeSelector(sel)
	}
	sel.candidate = winner
	sel.resolved = true
	if len(sel.edges) > 0 && winner.module == sel.module {
		winner.addSelector(sel)
	}
}

// addEdge registers an edge using the selector. The first edge makes the
// selector count for conflict resolution.
func (sel *SelectorState) addEdge(e *EdgeState) {
	if slices.Contains(sel.edges, e) {
		return
	}
	sel.edges = append(sel.edges, e)
	if len(sel.edges) == 1 {
		sel.module.addSelector(sel)
		if sel.candidate != nil {
			sel.candidate.addSelector(sel)
		}
	}
}

// removeEdge unregisters an edge. A selector without edges no longer
// takes part in conflict resolution.
func (sel *SelectorState) removeEdge(e *EdgeState) {
	sel.edges = slices.DeleteFunc(sel.edges, func(x *EdgeState) bool { return x == e })
	if len(sel.edges) > 0 {
		return
	}
	sel.module.removeSelector(sel)
	if sel.candidate != nil {
		sel.candidate.removeSelector(sel)
	}
}

// paths returns one dependency path per edge using the selector.
func (sel *SelectorState) paths() [][]ident.ModuleVersionIdentifier {
	var out [][]ident.ModuleVersionIdentifier
	for _, e := range sel.edges {
		out = append(out, e.from.path())
	}
	return out
}
