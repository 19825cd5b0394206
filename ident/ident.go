// Package ident provides the value types that identify modules, components
// and capabilities during dependency resolution.
//
// All types in this package are comparable and immutable, so they can be used
// directly as map keys. Two identifiers are equal when their fields are equal;
// no interning is needed.
//
// # Types
//
//   - [ModuleIdentifier]: a group and name pair (e.g. "org.example:core")
//   - [ModuleVersionIdentifier]: a module at one version (e.g. "org.example:core:1.2")
//   - [Capability]: a named feature provided by a component
//
// # Validation Patterns
//
// Groups and names must match: [A-Za-z0-9_]([A-Za-z0-9._-]*)?
package ident

import (
	"fmt"
	"regexp"
	"strings"
)

var segmentRegex = regexp.MustCompile(`^[A-Za-z0-9_][A-Za-z0-9._-]*$`)

// ModuleIdentifier identifies a logical module regardless of version.
type ModuleIdentifier struct {
	Group string
	Name  string
}

// Module creates a ModuleIdentifier without validation.
func Module(group, name string) ModuleIdentifier {
	return ModuleIdentifier{Group: group, Name: name}
}

// NewModule creates a validated ModuleIdentifier.
func NewModule(group, name string) (ModuleIdentifier, error) {
	if err := validateSegment("group", group); err != nil {
		return ModuleIdentifier{}, err
	}
	if err := validateSegment("name", name); err != nil {
		return ModuleIdentifier{}, err
	}
	return ModuleIdentifier{Group: group, Name: name}, nil
}

// ParseModule parses "group:name".
func ParseModule(s string) (ModuleIdentifier, error) {
	parts := strings.Split(s, ":")
	if len(parts) != 2 {
		return ModuleIdentifier{}, fmt.Errorf("invalid module %q: expected group:name", s)
	}
	return NewModule(parts[0], parts[1])
}

// MustParseModule parses a module or panics. Use only for constants/tests.
func MustParseModule(s string) ModuleIdentifier {
	m, err := ParseModule(s)
	if err != nil {
		panic(err)
	}
	return m
}

// String returns "group:name".
func (m ModuleIdentifier) String() string {
	return m.Group + ":" + m.Name
}

// IsEmpty returns true for the zero value.
func (m ModuleIdentifier) IsEmpty() bool {
	return m.Group == "" && m.Name == ""
}

// Version returns the identifier of this module at the given version.
func (m ModuleIdentifier) Version(v string) ModuleVersionIdentifier {
	return ModuleVersionIdentifier{Module: m, Version: v}
}

// Compare orders modules by group, then name.
func (m ModuleIdentifier) Compare(o ModuleIdentifier) int {
	if c := strings.Compare(m.Group, o.Group); c != 0 {
		return c
	}
	return strings.Compare(m.Name, o.Name)
}

// ModuleVersionIdentifier identifies one concrete component.
type ModuleVersionIdentifier struct {
	Module  ModuleIdentifier
	Version string
}

// ParseModuleVersion parses "group:name:version".
func ParseModuleVersion(s string) (ModuleVersionIdentifier, error) {
	parts := strings.Split(s, ":")
	if len(parts) != 3 {
		return ModuleVersionIdentifier{}, fmt.Errorf("invalid component %q: expected group:name:version", s)
	}
	m, err := NewModule(parts[0], parts[1])
	if err != nil {
		return ModuleVersionIdentifier{}, err
	}
	if parts[2] == "" {
		return ModuleVersionIdentifier{}, fmt.Errorf("invalid component %q: version cannot be empty", s)
	}
	return m.Version(parts[2]), nil
}

// MustParseModuleVersion parses a component id or panics. Use only for constants/tests.
func MustParseModuleVersion(s string) ModuleVersionIdentifier {
	id, err := ParseModuleVersion(s)
	if err != nil {
		panic(err)
	}
	return id
}

// String returns "group:name:version", or "group:name" for an unversioned id.
func (id ModuleVersionIdentifier) String() string {
	if id.Version == "" {
		return id.Module.String()
	}
	return id.Module.String() + ":" + id.Version
}

// Capability is a named feature that a component provides. Every component
// implicitly provides the capability matching its own module id.
type Capability struct {
	Group   string
	Name    string
	Version string
}

// ParseCapability parses "group:name" or "group:name:version".
func ParseCapability(s string) (Capability, error) {
	parts := strings.Split(s, ":")
	if len(parts) < 2 || len(parts) > 3 {
		return Capability{}, fmt.Errorf("invalid capability %q: expected group:name[:version]", s)
	}
	if _, err := NewModule(parts[0], parts[1]); err != nil {
		return Capability{}, fmt.Errorf("invalid capability %q: %w", s, err)
	}
	c := Capability{Group: parts[0], Name: parts[1]}
	if len(parts) == 3 {
		c.Version = parts[2]
	}
	return c, nil
}

// Key returns the version-less identity of the capability. Two capabilities
// with the same key conflict.
func (c Capability) Key() ModuleIdentifier {
	return ModuleIdentifier{Group: c.Group, Name: c.Name}
}

// String returns "group:name[:version]".
func (c Capability) String() string {
	if c.Version == "" {
		return c.Group + ":" + c.Name
	}
	return c.Group + ":" + c.Name + ":" + c.Version
}

// ImplicitCapability returns the capability a component provides by virtue
// of its own coordinates.
func ImplicitCapability(id ModuleVersionIdentifier) Capability {
	return Capability{Group: id.Module.Group, Name: id.Module.Name, Version: id.Version}
}

func validateSegment(kind, s string) error {
	if s == "" {
		return fmt.Errorf("module %s cannot be empty", kind)
	}
	if !segmentRegex.MatchString(s) {
		return fmt.Errorf("invalid module %s %q: must match pattern [A-Za-z0-9_][A-Za-z0-9._-]*", kind, s)
	}
	return nil
}
