package graph

import (
	"strings"

	"github.com/albertocavalcante/go-depgraph/ident"
)

// Key identifies a component in the graph.
type Key = ident.ModuleVersionIdentifier

// Graph represents a resolved dependency graph.
// It supports bidirectional traversal (dependencies and dependents)
// and provides query methods for explaining version selections.
type Graph struct {
	// Root is the root component of the graph.
	Root Key

	// Modules contains all nodes in the graph, keyed by component id.
	Modules map[Key]*Node

	// Failures are the resolution failures, in the order they were reported.
	Failures []string

	// order is the order in which nodes were added.
	order []Key
}

func newGraph() *Graph {
	return &Graph{Modules: make(map[Key]*Node)}
}

// Keys returns the component ids of the graph in insertion order.
func (g *Graph) Keys() []Key {
	out := make([]Key, len(g.order))
	copy(out, g.order)
	return out
}

func (g *Graph) add(key Key) *Node {
	if n, ok := g.Modules[key]; ok {
		return n
	}
	n := &Node{
		Key:               key,
		Dependencies:      make([]Key, 0),
		Dependents:        make([]Key, 0),
		RequestedVersions: make(map[Key]string),
	}
	g.Modules[key] = n
	g.order = append(g.order, key)
	return n
}

// Node represents a selected component in the dependency graph.
type Node struct {
	// Key uniquely identifies this component.
	Key Key

	// Variants are the selected variants of the component.
	Variants []string

	// Dependencies are the direct dependencies of this component (resolved versions).
	Dependencies []Key

	// Dependents are components that directly depend on this one (reverse edges).
	Dependents []Key

	// RequestedVersions tracks which components requested which versions of this one.
	// Key is the requesting component, value is the selector it declared.
	RequestedVersions map[Key]string

	// Selection contains information about why this version was selected.
	Selection *SelectionInfo

	// Failures are the unresolved outgoing edges of this component.
	Failures []string

	// IsRoot is true if this is the root component.
	IsRoot bool

	// VirtualPlatform is true for platforms without metadata of their own.
	VirtualPlatform bool
}

// SelectionInfo explains why a particular version was selected.
type SelectionInfo struct {
	// Strategy summarizes the strongest selection reason.
	Strategy SelectionStrategy

	// SelectedVersion is the version that was selected.
	SelectedVersion string

	// Reasons are every recorded selection reason.
	Reasons []string

	// Candidates are all versions that were considered during selection.
	Candidates []VersionCandidate

	// DecidingFactor explains what determined the selection.
	DecidingFactor string
}

// SelectionStrategy indicates how a version was selected.
type SelectionStrategy string

const (
	// StrategyRoot indicates this is the root component (no selection needed).
	StrategyRoot SelectionStrategy = "root"

	// StrategyRequested indicates the only requested version was selected.
	StrategyRequested SelectionStrategy = "requested"

	// StrategyForced indicates the version was forced by a dependency.
	StrategyForced SelectionStrategy = "forced"

	// StrategyConflictResolution indicates the version won a version conflict.
	StrategyConflictResolution SelectionStrategy = "conflict_resolution"

	// StrategyCapability indicates the component won a capability conflict.
	StrategyCapability SelectionStrategy = "capability"

	// StrategyPlatform indicates the version was aligned by a platform.
	StrategyPlatform SelectionStrategy = "platform"
)

// VersionCandidate represents a version that was considered during selection.
type VersionCandidate struct {
	// Version is the version string.
	Version string

	// RequestedBy lists components whose selectors preferred this version.
	RequestedBy []Key

	// Selected indicates if this version was selected.
	Selected bool

	// RejectionReason explains why this version was not selected (if applicable).
	RejectionReason string
}

// Explanation provides a detailed explanation of why a component is at its current version.
type Explanation struct {
	// Module is the component being explained.
	Module Key

	// Selection explains how the version was selected.
	Selection *SelectionInfo

	// DependencyChains shows all paths from the root to this component.
	DependencyChains []DependencyChain

	// RequestSummary summarizes all version requests for this module.
	RequestSummary string
}

// DependencyChain represents a path of dependencies from root to a component.
type DependencyChain struct {
	// Path is the sequence of components from root to target.
	Path []Key

	// RequestedVersion is the selector declared at the end of this chain.
	RequestedVersion string
}

// String returns a human-readable representation of the chain.
func (c DependencyChain) String() string {
	if len(c.Path) == 0 {
		return ""
	}
	parts := make([]string, len(c.Path))
	for i, k := range c.Path {
		parts[i] = k.String()
	}
	result := strings.Join(parts, " -> ")
	if c.RequestedVersion != "" {
		result += " (requested " + c.RequestedVersion + ")"
	}
	return result
}

// Stats provides statistics about the graph.
type Stats struct {
	// TotalModules is the total number of components in the graph.
	TotalModules int

	// DirectDependencies is the number of direct dependencies of the root.
	DirectDependencies int

	// TransitiveDependencies is the number of transitive dependencies.
	TransitiveDependencies int

	// MaxDepth is the maximum depth of the dependency tree.
	MaxDepth int

	// VirtualPlatforms is the number of virtual platforms.
	VirtualPlatforms int
}
