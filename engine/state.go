package engine

import (
	"container/list"
	"context"
	"log/slog"

	"github.com/albertocavalcante/go-depgraph/ident"
	"github.com/albertocavalcante/go-depgraph/version"
)

// ResolveState is the registry for one resolution: every module, component,
// node, edge and selector created while traversing belongs to exactly one
// ResolveState. It is never shared between resolutions.
type ResolveState struct {
	ctx     context.Context
	cfg     *Config
	log     *slog.Logger
	compare version.Comparator

	modules     map[ident.ModuleIdentifier]*ModuleResolveState
	moduleOrder []*ModuleResolveState

	selectors     map[string]*SelectorState
	selectorOrder []*SelectorState

	nodes    []*NodeState
	queue    *list.List
	root     *NodeState
	deferred []*EdgeState

	moduleConflicts     *moduleConflictHandler
	capabilityConflicts *capabilitiesConflictHandler

	// failures that are not attached to an edge, e.g. unresolvable
	// capability conflicts.
	failures []error

	nextID int64
}

func newResolveState(ctx context.Context, cfg *Config) *ResolveState {
	s := &ResolveState{
		ctx:       ctx,
		cfg:       cfg,
		log:       cfg.logger(),
		compare:   cfg.comparator(),
		modules:   make(map[ident.ModuleIdentifier]*ModuleResolveState),
		selectors: make(map[string]*SelectorState),
		queue:     list.New(),
	}
	s.moduleConflicts = newModuleConflictHandler(s, cfg.ConflictResolver)
	s.capabilityConflicts = newCapabilitiesConflictHandler(s, cfg.CapabilityResolver)
	return s
}

func (s *ResolveState) newID() int64 {
	s.nextID++
	return s.nextID
}

// Module returns the state for a module, creating it on first use.
func (s *ResolveState) Module(id ident.ModuleIdentifier) *ModuleResolveState {
	if m, ok := s.modules[id]; ok {
		return m
	}
	m := newModuleResolveState(s, id)
	s.modules[id] = m
	s.moduleOrder = append(s.moduleOrder, m)
	return m
}

// lookupModule returns the module state if it exists.
func (s *ResolveState) lookupModule(id ident.ModuleIdentifier) *ModuleResolveState {
	return s.modules[id]
}

// Component returns the state for a module version, creating it on first use.
func (s *ResolveState) Component(module *ModuleResolveState, v string) *ComponentState {
	return module.version(v)
}

// Modules returns all modules in creation order.
func (s *ResolveState) Modules() []*ModuleResolveState {
	return s.moduleOrder
}

// Root returns the root node.
func (s *ResolveState) Root() *NodeState {
	return s.root
}

// substitute applies the first matching substitution rule.
func (s *ResolveState) substitute(requested ComponentSelector) ComponentSelector {
	for _, rule := range s.cfg.Substitutions {
		if next, ok := rule(requested); ok {
			return next
		}
	}
	return requested
}

// selector returns the shared selector state for a dependency. Selectors
// are keyed by the substituted selector string; lenient platform member
// selectors are kept apart from ordinary ones.
func (s *ResolveState) selector(dep *DependencyMetadata) *SelectorState {
	requested := s.substitute(dep.Selector)
	substituted := requested.String() != dep.Selector.String()
	key := requested.String()
	if dep.IsLenient() {
		key += "#lenient"
	}
	if sel, ok := s.selectors[key]; ok {
		sel.update(dep)
		return sel
	}
	sel := newSelectorState(s, s.newID(), dep, requested, substituted)
	s.selectors[key] = sel
	s.selectorOrder = append(s.selectorOrder, sel)
	return sel
}

// deferEdges queues edges for selection outside of a node visit.
func (s *ResolveState) deferEdges(edges ...*EdgeState) {
	s.deferred = append(s.deferred, edges...)
}

func (s *ResolveState) takeDeferred() []*EdgeState {
	out := s.deferred
	s.deferred = nil
	return out
}

// enqueue schedules a node whose set of incoming edges grew. Nodes already
// queued keep their position.
func (s *ResolveState) enqueue(n *NodeState) {
	if n.queued != nil {
		return
	}
	n.queued = s.queue.PushBack(n)
}

// enqueueFront schedules a node whose set of incoming edges shrank, so stale
// work is flushed before the rest of the queue.
func (s *ResolveState) enqueueFront(n *NodeState) {
	if n.queued != nil {
		s.queue.MoveToFront(n.queued)
		return
	}
	n.queued = s.queue.PushFront(n)
}

func (s *ResolveState) pop() *NodeState {
	e := s.queue.Front()
	if e == nil {
		return nil
	}
	s.queue.Remove(e)
	n := e.Value.(*NodeState)
	n.queued = nil
	return n
}

func (s *ResolveState) addNode(n *NodeState) {
	s.nodes = append(s.nodes, n)
}

func (s *ResolveState) recordFailure(err error) {
	s.failures = append(s.failures, err)
}
