package version

import (
	"errors"
	"fmt"
	"strings"

	"github.com/Masterminds/semver/v3"
)

// Selector decides which versions satisfy a requested version string.
type Selector interface {
	// Accept reports whether the candidate version satisfies the selector.
	Accept(candidate string) bool

	// IsDynamic reports whether the selector needs the list of available
	// versions to pick a candidate. Exact selectors are static.
	IsDynamic() bool

	// String returns the selector as it was requested.
	String() string
}

// ErrEmptySelector is returned when parsing an empty version selector.
var ErrEmptySelector = errors.New("version selector cannot be empty")

// ParseSelector parses a requested version.
//
// Supported forms:
//
//	1.2.3              exact
//	1.+  +             prefix
//	[1.0,2.0)  ]1,2]   range; an empty bound is open
//	latest.release     highest non-qualified version
//	latest.integration highest version
//	^1.2  ~1.2  >=1 <2 semantic version constraint
func ParseSelector(s string) (Selector, error) {
	s = strings.TrimSpace(s)
	switch {
	case s == "":
		return nil, ErrEmptySelector
	case s == "latest.release":
		return LatestSelector{source: s, releaseOnly: true}, nil
	case s == "latest.integration":
		return LatestSelector{source: s}, nil
	case strings.HasSuffix(s, "+") && !strings.ContainsAny(s, "[]()"):
		return PrefixSelector{prefix: strings.TrimSuffix(s, "+")}, nil
	case strings.ContainsAny(s[:1], "[]("):
		return parseRange(s)
	case strings.ContainsAny(s[:1], "^~<>=!") || strings.Contains(s, "||"):
		c, err := semver.NewConstraint(s)
		if err != nil {
			return nil, fmt.Errorf("invalid semver constraint %q: %w", s, err)
		}
		return SemverSelector{source: s, constraint: c}, nil
	}
	return Exact(s), nil
}

// MustParseSelector parses a selector or panics. Use only for constants/tests.
func MustParseSelector(s string) Selector {
	sel, err := ParseSelector(s)
	if err != nil {
		panic(err)
	}
	return sel
}

// ExactSelector accepts a single version.
type ExactSelector struct {
	version string
}

// Exact returns a selector that only accepts v.
func Exact(v string) ExactSelector { return ExactSelector{version: v} }

func (s ExactSelector) Accept(candidate string) bool { return Compare(s.version, candidate) == 0 }
func (s ExactSelector) IsDynamic() bool              { return false }
func (s ExactSelector) String() string               { return s.version }

// Version returns the requested version.
func (s ExactSelector) Version() string { return s.version }

// PrefixSelector accepts versions starting with a prefix ("1.+").
type PrefixSelector struct {
	prefix string
}

func (s PrefixSelector) Accept(candidate string) bool { return strings.HasPrefix(candidate, s.prefix) }
func (s PrefixSelector) IsDynamic() bool              { return true }
func (s PrefixSelector) String() string               { return s.prefix + "+" }

// LatestSelector accepts every version, or every non-qualified version for
// latest.release.
type LatestSelector struct {
	source      string
	releaseOnly bool
}

func (s LatestSelector) Accept(candidate string) bool {
	return !s.releaseOnly || !Parse(candidate).IsQualified()
}
func (s LatestSelector) IsDynamic() bool { return true }
func (s LatestSelector) String() string  { return s.source }

// RangeSelector accepts versions between two bounds.
type RangeSelector struct {
	source         string
	lower, upper   string
	lowerInclusive bool
	upperInclusive bool
}

func parseRange(s string) (Selector, error) {
	if len(s) < 3 {
		return nil, fmt.Errorf("invalid version range %q", s)
	}
	open, closing := s[0], s[len(s)-1]
	body := s[1 : len(s)-1]
	bounds := strings.Split(body, ",")
	if len(bounds) != 2 || !strings.ContainsRune("])[", rune(closing)) {
		return nil, fmt.Errorf("invalid version range %q", s)
	}
	r := RangeSelector{
		source:         s,
		lower:          strings.TrimSpace(bounds[0]),
		upper:          strings.TrimSpace(bounds[1]),
		lowerInclusive: open == '[',
		upperInclusive: closing == ']',
	}
	if r.lower != "" && r.upper != "" && Compare(r.lower, r.upper) > 0 {
		return nil, fmt.Errorf("invalid version range %q: lower bound is above upper bound", s)
	}
	return r, nil
}

func (s RangeSelector) Accept(candidate string) bool {
	if s.lower != "" {
		c := Compare(candidate, s.lower)
		if c < 0 || (c == 0 && !s.lowerInclusive) {
			return false
		}
	}
	if s.upper != "" {
		c := Compare(candidate, s.upper)
		if c > 0 || (c == 0 && !s.upperInclusive) {
			return false
		}
		// [1.0,2.0) stops before any 2.0 pre-release.
		if !s.upperInclusive && isQualifierOf(candidate, s.upper) {
			return false
		}
	}
	return true
}

// isQualifierOf reports whether candidate is base followed by a qualifier,
// as 2.0-rc1 is for 2.0.
func isQualifierOf(candidate, base string) bool {
	pc, pb := Parse(candidate), Parse(base)
	if len(pc.Parts) <= len(pb.Parts) || pc.Parts[len(pb.Parts)].IsNumeric {
		return false
	}
	for i, p := range pb.Parts {
		if CompareParts(pc.Parts[i], p) != 0 {
			return false
		}
	}
	return pc.IsQualified()
}
func (s RangeSelector) IsDynamic() bool { return true }
func (s RangeSelector) String() string  { return s.source }

// SemverSelector accepts versions matching a semantic version constraint.
// Candidates that are not valid semantic versions are rejected.
type SemverSelector struct {
	source     string
	constraint *semver.Constraints
}

func (s SemverSelector) Accept(candidate string) bool {
	v, err := semver.NewVersion(candidate)
	if err != nil {
		return false
	}
	return s.constraint.Check(v)
}
func (s SemverSelector) IsDynamic() bool { return true }
func (s SemverSelector) String() string  { return s.source }

// SemverCompare orders versions by semantic version precedence. Versions
// that are not valid semantic versions fall back to Compare.
func SemverCompare(a, b string) int {
	va, errA := semver.NewVersion(a)
	vb, errB := semver.NewVersion(b)
	if errA != nil || errB != nil {
		return Compare(a, b)
	}
	return va.Compare(vb)
}

// Highest returns the highest version accepted by sel and not rejected by
// any of rejects, or "" if none qualifies.
func Highest(sel Selector, candidates []string, rejects []Selector, compare Comparator) string {
	if compare == nil {
		compare = Compare
	}
	best := ""
	for _, c := range candidates {
		if !sel.Accept(c) || rejectedBy(c, rejects) {
			continue
		}
		if best == "" || compare(c, best) > 0 {
			best = c
		}
	}
	return best
}

func rejectedBy(v string, rejects []Selector) bool {
	for _, r := range rejects {
		if r.Accept(v) {
			return true
		}
	}
	return false
}
