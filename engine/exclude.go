package engine

import (
	"slices"
	"strings"

	"github.com/albertocavalcante/go-depgraph/ident"
)

// ExcludeRule excludes modules by group and/or name. An empty field matches
// anything.
type ExcludeRule struct {
	Group string
	Name  string
}

// ParseExcludeRule parses "group:name", "group:*" or "*:name".
func ParseExcludeRule(s string) (ExcludeRule, bool) {
	group, name, ok := strings.Cut(s, ":")
	if !ok {
		return ExcludeRule{Group: s}, s != ""
	}
	if group == "*" {
		group = ""
	}
	if name == "*" {
		name = ""
	}
	return ExcludeRule{Group: group, Name: name}, group != "" || name != ""
}

// Matches reports whether the rule excludes the module.
func (r ExcludeRule) Matches(m ident.ModuleIdentifier) bool {
	return (r.Group == "" || r.Group == m.Group) && (r.Name == "" || r.Name == m.Name)
}

func (r ExcludeRule) String() string {
	group, name := r.Group, r.Name
	if group == "" {
		group = "*"
	}
	if name == "" {
		name = "*"
	}
	return group + ":" + name
}

// covers reports whether every module matched by o is matched by r.
func (r ExcludeRule) covers(o ExcludeRule) bool {
	return (r.Group == "" || r.Group == o.Group) && (r.Name == "" || r.Name == o.Name)
}

// intersect returns the rule matching modules matched by both rules.
func (r ExcludeRule) intersect(o ExcludeRule) (ExcludeRule, bool) {
	out := r
	switch {
	case r.Group == "":
		out.Group = o.Group
	case o.Group != "" && o.Group != r.Group:
		return ExcludeRule{}, false
	}
	switch {
	case r.Name == "":
		out.Name = o.Name
	case o.Name != "" && o.Name != r.Name:
		return ExcludeRule{}, false
	}
	return out, true
}

// ExcludeSpec is a set of excluded modules, expressed as the union of its
// rules. The zero value excludes nothing.
type ExcludeSpec struct {
	rules []ExcludeRule
}

// Excluding builds a spec from rules.
func Excluding(rules ...ExcludeRule) ExcludeSpec {
	var s ExcludeSpec
	for _, r := range rules {
		s = s.add(r)
	}
	return s
}

// IsEmpty reports whether the spec excludes nothing.
func (s ExcludeSpec) IsEmpty() bool { return len(s.rules) == 0 }

// Excludes reports whether the module is excluded.
func (s ExcludeSpec) Excludes(m ident.ModuleIdentifier) bool {
	for _, r := range s.rules {
		if r.Matches(m) {
			return true
		}
	}
	return false
}

// Rules returns the normalized rules.
func (s ExcludeSpec) Rules() []ExcludeRule { return slices.Clone(s.rules) }

// Union excludes what either spec excludes.
func (s ExcludeSpec) Union(o ExcludeSpec) ExcludeSpec {
	out := s
	for _, r := range o.rules {
		out = out.add(r)
	}
	return out
}

// Intersect excludes only what both specs exclude.
func (s ExcludeSpec) Intersect(o ExcludeSpec) ExcludeSpec {
	var out ExcludeSpec
	for _, a := range s.rules {
		for _, b := range o.rules {
			if r, ok := a.intersect(b); ok {
				out = out.add(r)
			}
		}
	}
	return out
}

// Equal reports structural equality of the normalized rule sets.
func (s ExcludeSpec) Equal(o ExcludeSpec) bool {
	return slices.Equal(s.rules, o.rules)
}

func (s ExcludeSpec) String() string {
	if s.IsEmpty() {
		return "excludes(none)"
	}
	parts := make([]string, len(s.rules))
	for i, r := range s.rules {
		parts[i] = r.String()
	}
	return "excludes(" + strings.Join(parts, ", ") + ")"
}

// add inserts a rule keeping the set minimal and sorted.
func (s ExcludeSpec) add(r ExcludeRule) ExcludeSpec {
	for _, existing := range s.rules {
		if existing.covers(r) {
			return s
		}
	}
	rules := make([]ExcludeRule, 0, len(s.rules)+1)
	for _, existing := range s.rules {
		if !r.covers(existing) {
			rules = append(rules, existing)
		}
	}
	rules = append(rules, r)
	slices.SortFunc(rules, func(a, b ExcludeRule) int {
		if c := strings.Compare(a.Group, b.Group); c != 0 {
			return c
		}
		return strings.Compare(a.Name, b.Name)
	})
	return ExcludeSpec{rules: rules}
}
