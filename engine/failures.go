package engine

import (
	"errors"
	"fmt"
	"strings"

	"github.com/albertocavalcante/go-depgraph/ident"
)

var (
	// ErrNotFound is wrapped by resolvers when a module or version does not
	// exist.
	ErrNotFound = errors.New("not found")

	// ErrVersionConflict is returned by FailOnConflictResolver.
	ErrVersionConflict = errors.New("version conflict")

	// ErrNoResolver is returned by NewBuilder without id or metadata resolver.
	ErrNoResolver = errors.New("id and metadata resolvers are required")
)

func formatPath(path []ident.ModuleVersionIdentifier) string {
	parts := make([]string, len(path))
	for i, id := range path {
		parts[i] = id.String()
	}
	return strings.Join(parts, " -> ")
}

func formatPaths(paths [][]ident.ModuleVersionIdentifier) string {
	var b strings.Builder
	for _, p := range paths {
		b.WriteString("\n    ")
		b.WriteString(formatPath(p))
	}
	return b.String()
}

func requiredBy(path []ident.ModuleVersionIdentifier) string {
	if len(path) == 0 {
		return ""
	}
	return " (required by " + formatPath(path) + ")"
}

// SelectorFailure records that a selector could not be resolved to a
// component id.
type SelectorFailure struct {
	Selector ComponentSelector
	Path     []ident.ModuleVersionIdentifier
	Err      error
}

func (f *SelectorFailure) Error() string {
	return fmt.Sprintf("could not resolve %s: %v%s", f.Selector, f.Err, requiredBy(f.Path))
}

func (f *SelectorFailure) Unwrap() error { return f.Err }

// MetadataFailure records that the metadata of a component could not be
// fetched.
type MetadataFailure struct {
	ID   ident.ModuleVersionIdentifier
	Path []ident.ModuleVersionIdentifier
	Err  error
}

func (f *MetadataFailure) Error() string {
	return fmt.Sprintf("could not fetch metadata of %s: %v%s", f.ID, f.Err, requiredBy(f.Path))
}

func (f *MetadataFailure) Unwrap() error { return f.Err }

// VariantDescription names a variant and its attributes in diagnostics.
type VariantDescription struct {
	Name       string
	Attributes Attributes
}

// IncompatibleVariantFailure records that no variant of the target matches
// the requested attributes or configuration.
type IncompatibleVariantFailure struct {
	Component     ident.ModuleVersionIdentifier
	Configuration string
	Requested     Attributes
	Variants      []VariantDescription
	Path          []ident.ModuleVersionIdentifier
}

func (f *IncompatibleVariantFailure) Error() string {
	var b strings.Builder
	if f.Configuration != "" {
		fmt.Fprintf(&b, "%s has no variant named %q", f.Component, f.Configuration)
	} else {
		fmt.Fprintf(&b, "no variant of %s matches %s", f.Component, f.Requested)
	}
	b.WriteString(requiredBy(f.Path))
	for _, v := range f.Variants {
		fmt.Fprintf(&b, "\n    variant %s %s", v.Name, v.Attributes)
	}
	return b.String()
}

// AmbiguousVariantFailure records that several variants match equally well.
type AmbiguousVariantFailure struct {
	Component  ident.ModuleVersionIdentifier
	Requested  Attributes
	Candidates []string
	Path       []ident.ModuleVersionIdentifier
}

func (f *AmbiguousVariantFailure) Error() string {
	return fmt.Sprintf("variants %s of %s all match %s%s",
		strings.Join(f.Candidates, ", "), f.Component, f.Requested, requiredBy(f.Path))
}

// RejectedConstraint is one selector of a module whose selected version was
// rejected, with the paths that declared it.
type RejectedConstraint struct {
	Selector  ComponentSelector
	Rejecting bool
	Paths     [][]ident.ModuleVersionIdentifier
}

// RejectedModuleFailure records that the selected version of a module is
// rejected by at least one selector. Every selector of the module is
// listed.
type RejectedModuleFailure struct {
	Module      ident.ModuleIdentifier
	Version     string
	Constraints []RejectedConstraint
}

func (f *RejectedModuleFailure) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "module %s: selected version %s is rejected", f.Module, f.Version)
	for _, c := range f.Constraints {
		mark := ""
		if c.Rejecting {
			mark = " (rejects " + f.Version + ")"
		}
		fmt.Fprintf(&b, "\n  %s%s", c.Selector, mark)
		b.WriteString(formatPaths(c.Paths))
	}
	return b.String()
}

// CapabilityProvider is one provider of a conflicting capability.
type CapabilityProvider struct {
	ID    ident.ModuleVersionIdentifier
	Paths [][]ident.ModuleVersionIdentifier
}

// CapabilityConflictFailure records a capability provided by components of
// several modules with no rule to pick one.
type CapabilityConflictFailure struct {
	Capability ident.ModuleIdentifier
	Providers  []CapabilityProvider
}

func (f *CapabilityConflictFailure) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "capability %s is provided by %d modules", f.Capability, len(f.Providers))
	for _, p := range f.Providers {
		fmt.Fprintf(&b, "\n  %s", p.ID)
		b.WriteString(formatPaths(p.Paths))
	}
	return b.String()
}

// VersionConflictFailure records a version conflict the configured resolver
// refused to settle. The highest version is used in its place.
type VersionConflictFailure struct {
	Module   ident.ModuleIdentifier
	Versions []string
	Paths    [][]ident.ModuleVersionIdentifier
	Err      error
}

func (f *VersionConflictFailure) Error() string {
	msg := fmt.Sprintf("conflict on %s between versions %s", f.Module, strings.Join(f.Versions, ", "))
	if f.Err != nil {
		msg += ": " + f.Err.Error()
	}
	return msg + formatPaths(f.Paths)
}

func (f *VersionConflictFailure) Unwrap() error { return f.Err }

// withPath returns a copy of an edge failure annotated with the path of
// the edge.
func withPath(err error, path []ident.ModuleVersionIdentifier) error {
	switch f := err.(type) {
	case *SelectorFailure:
		c := *f
		c.Path = path
		return &c
	case *MetadataFailure:
		c := *f
		c.Path = path
		return &c
	default:
		return err
	}
}

// ResolveError aggregates every failure of a resolution.
type ResolveError struct {
	Failures []error
}

func (e *ResolveError) Error() string {
	if len(e.Failures) == 1 {
		return "resolution failed: " + e.Failures[0].Error()
	}
	var b strings.Builder
	fmt.Fprintf(&b, "resolution failed with %d failures:", len(e.Failures))
	for _, f := range e.Failures {
		b.WriteString("\n- ")
		b.WriteString(f.Error())
	}
	return b.String()
}

func (e *ResolveError) Unwrap() []error { return e.Failures }
