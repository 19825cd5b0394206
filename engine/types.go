package engine

import (
	"context"
	"sort"
	"strings"

	"github.com/albertocavalcante/go-depgraph/ident"
)

// DependencyKind is the shape of a declared dependency. The set is closed.
type DependencyKind int

const (
	// KindHard is an ordinary dependency: the target must be in the graph.
	KindHard DependencyKind = iota

	// KindConstraint expresses a version preference without requiring the
	// target to be present.
	KindConstraint

	// KindPlatform is a hard dependency on a platform module, either declared
	// directly or added for a component that belongs to a virtual platform.
	KindPlatform

	// KindPlatformMember is the synthetic, lenient constraint a virtual
	// platform places on each participating module.
	KindPlatformMember
)

func (k DependencyKind) String() string {
	switch k {
	case KindHard:
		return "hard"
	case KindConstraint:
		return "constraint"
	case KindPlatform:
		return "platform"
	case KindPlatformMember:
		return "platform-member"
	default:
		return "unknown"
	}
}

// Attributes are variant attributes, e.g. {"usage": "runtime"}.
type Attributes map[string]string

// String renders attributes in key order.
func (a Attributes) String() string {
	keys := make([]string, 0, len(a))
	for k := range a {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + "=" + a[k]
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

// merge returns a copy of a overlaid with b.
func (a Attributes) merge(b Attributes) Attributes {
	if len(b) == 0 {
		return a
	}
	out := make(Attributes, len(a)+len(b))
	for k, v := range a {
		out[k] = v
	}
	for k, v := range b {
		out[k] = v
	}
	return out
}

// ComponentSelector is a requested reference to a module at a version
// selector, possibly with rejected versions.
type ComponentSelector struct {
	Module  ident.ModuleIdentifier
	Version string
	Reject  []string
}

// String returns the selector in "group:name:version" form, followed by the
// rejected versions if any. Equal strings denote equal selectors.
func (s ComponentSelector) String() string {
	out := s.Module.String() + ":" + s.Version
	if len(s.Reject) > 0 {
		out += " !{" + strings.Join(s.Reject, ",") + "}"
	}
	return out
}

// DependencyMetadata describes one declared dependency.
type DependencyMetadata struct {
	Selector ComponentSelector
	Kind     DependencyKind

	// Intransitive stops the traversal at the target: its own dependencies
	// are not followed through this edge.
	Intransitive bool

	// Force makes the requested version win module conflicts outright.
	Force bool

	// Optional marks a maven-style optional dependency. It is deferred like
	// a constraint until something else requires the module.
	Optional bool

	// FromOptionalConfiguration marks a dependency declared in the legacy
	// "optional" configuration. Such dependencies are never deferred.
	FromOptionalConfiguration bool

	// Configuration names the target variant explicitly.
	Configuration string

	// Attributes are requested in addition to the consumer attributes.
	Attributes Attributes

	// Excludes are applied to the transitive closure of this dependency.
	Excludes []ExcludeRule

	// Reason is a free-form explanation recorded as a selection reason.
	Reason string
}

// IsConstraint reports whether the dependency only constrains versions.
func (d *DependencyMetadata) IsConstraint() bool {
	return d.Kind == KindConstraint || d.Kind == KindPlatformMember
}

// IsTransitive reports whether the target's dependencies are followed.
func (d *DependencyMetadata) IsTransitive() bool {
	return !d.Intransitive
}

// IsDeferrable reports whether the dependency is parked while no hard
// dependency on the target module exists.
func (d *DependencyMetadata) IsDeferrable() bool {
	if d.FromOptionalConfiguration {
		return false
	}
	return d.IsConstraint() || d.Optional
}

// IsLenient reports whether a missing target is silently ignored.
func (d *DependencyMetadata) IsLenient() bool {
	return d.Kind == KindPlatformMember
}

// VariantMetadata is one configuration or variant of a component.
type VariantMetadata struct {
	Name         string
	Attributes   Attributes
	Dependencies []DependencyMetadata

	// Excludes are applied to everything reached through this variant.
	Excludes []ExcludeRule
}

// DefaultVariantName is the name of the implicit variant of components that
// declare none.
const DefaultVariantName = "default"

// ComponentMetadata is the resolved metadata of one component.
type ComponentMetadata struct {
	ID       ident.ModuleVersionIdentifier
	Variants []*VariantMetadata

	// Capabilities are declared in addition to the implicit capability.
	Capabilities []ident.Capability

	// Platforms are the virtual platforms this component belongs to.
	Platforms []ident.ModuleIdentifier
}

// Variant returns the named variant, or nil.
func (m *ComponentMetadata) Variant(name string) *VariantMetadata {
	for _, v := range m.Variants {
		if v.Name == name {
			return v
		}
	}
	return nil
}

var defaultVariant = &VariantMetadata{Name: DefaultVariantName}

// allVariants returns the declared variants, or the shared empty default.
// Metadata may be shared between resolutions, so it is never mutated.
func (m *ComponentMetadata) allVariants() []*VariantMetadata {
	if len(m.Variants) == 0 {
		return []*VariantMetadata{defaultVariant}
	}
	return m.Variants
}

// IDResolver resolves a requested selector to a component id.
//
// Implementations pick a concrete version for dynamic selectors and must
// honour the selector's rejected versions.
type IDResolver interface {
	ResolveID(ctx context.Context, selector ComponentSelector) (ident.ModuleVersionIdentifier, error)
}

// MetadataResolver fetches component metadata.
//
// ResolveMetadata may be called from several goroutines at once for distinct
// ids. IsFetchingMetadataCheap reports whether the fetch is cheap enough
// (e.g. in memory) that it should not be batched in parallel.
type MetadataResolver interface {
	ResolveMetadata(ctx context.Context, id ident.ModuleVersionIdentifier) (*ComponentMetadata, error)
	IsFetchingMetadataCheap(id ident.ModuleVersionIdentifier) bool
}

// SubstitutionRule rewrites a requested selector before it is resolved.
// It returns false when the rule does not apply.
type SubstitutionRule func(ComponentSelector) (ComponentSelector, bool)

// EdgeFilter decides whether a declared dependency takes part in
// resolution. Returning false discards the dependency globally.
type EdgeFilter func(*DependencyMetadata) bool
