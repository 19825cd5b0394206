// Package version implements version ordering and version selectors.
//
// Version format: parts separated by '.', '-', '_' or '+'. A transition
// between digits and letters also starts a new part, so "1.0rc1" is read as
// [1 0 rc 1].
//
// Ordering rules:
//   - numeric parts compare numerically and sort after alphabetic parts
//   - alphabetic parts compare case-insensitively, except for the special
//     qualifiers: dev < (any other word) < rc < snapshot < final < ga < release < sp
//   - when one version is a prefix of the other, the longer one is higher if
//     its next part is numeric ("1.0.1" > "1.0") and lower otherwise
//     ("1.0-beta" < "1.0")
package version

import (
	"cmp"
	"slices"
	"strconv"
	"strings"
	"unicode"
)

// Comparator orders two version strings. It returns -1, 0 or 1.
type Comparator func(a, b string) int

// specialQualifiers ranks the qualifiers that do not sort alphabetically.
// Words not listed here rank between "dev" and "rc".
var specialQualifiers = map[string]int{
	"dev":      -1,
	"rc":       1,
	"snapshot": 2,
	"final":    3,
	"ga":       4,
	"release":  5,
	"sp":       6,
}

// Part is one segment of a parsed version.
type Part struct {
	IsNumeric bool
	AsNumber  uint64 // Only valid if IsNumeric
	AsString  string
}

// ParsePart creates a Part from a segment.
func ParsePart(s string) Part {
	if s != "" && isDigits(s) {
		if n, err := strconv.ParseUint(s, 10, 64); err == nil {
			return Part{IsNumeric: true, AsNumber: n, AsString: s}
		}
	}
	return Part{AsString: s}
}

// CompareParts compares two parts.
func CompareParts(a, b Part) int {
	if a.IsNumeric != b.IsNumeric {
		if a.IsNumeric {
			return 1
		}
		return -1
	}
	if a.IsNumeric {
		return cmp.Compare(a.AsNumber, b.AsNumber)
	}
	la, lb := strings.ToLower(a.AsString), strings.ToLower(b.AsString)
	ra, okA := specialQualifiers[la]
	rb, okB := specialQualifiers[lb]
	if okA || okB {
		return cmp.Compare(ra, rb)
	}
	return strings.Compare(la, lb)
}

// ParsedVersion is a version split into parts.
type ParsedVersion struct {
	Source string
	Parts  []Part
}

// Parse splits a version string into parts. Parsing never fails; any string
// is a version.
func Parse(s string) ParsedVersion {
	var parts []Part
	var cur strings.Builder
	flush := func() {
		if cur.Len() > 0 {
			parts = append(parts, ParsePart(cur.String()))
			cur.Reset()
		}
	}
	var prevDigit, started bool
	for _, r := range s {
		switch {
		case r == '.' || r == '-' || r == '_' || r == '+':
			flush()
			started = false
			continue
		case started && unicode.IsDigit(r) != prevDigit:
			flush()
		}
		cur.WriteRune(r)
		prevDigit = unicode.IsDigit(r)
		started = true
	}
	flush()
	return ParsedVersion{Source: s, Parts: parts}
}

// IsQualified reports whether the version carries a non-numeric part, which
// marks it as a pre-release or otherwise non-final version.
func (v ParsedVersion) IsQualified() bool {
	for _, p := range v.Parts {
		if !p.IsNumeric {
			if r, ok := specialQualifiers[strings.ToLower(p.AsString)]; ok && r >= specialQualifiers["final"] {
				continue
			}
			return true
		}
	}
	return false
}

// Compare compares two version strings.
// Returns -1 if a < b, 0 if a == b, 1 if a > b.
func Compare(a, b string) int {
	if a == b {
		return 0
	}
	va, vb := Parse(a), Parse(b)
	n := min(len(va.Parts), len(vb.Parts))
	for i := range n {
		if c := CompareParts(va.Parts[i], vb.Parts[i]); c != 0 {
			return c
		}
	}
	switch {
	case len(va.Parts) > n:
		if va.Parts[n].IsNumeric {
			return 1
		}
		return -1
	case len(vb.Parts) > n:
		if vb.Parts[n].IsNumeric {
			return -1
		}
		return 1
	}
	// Same parts, different separators: fall back to a stable order.
	return strings.Compare(a, b)
}

// Sort sorts a slice of version strings in ascending order.
func Sort(versions []string) {
	slices.SortFunc(versions, Compare)
}

// Max returns the higher of two versions.
func Max(a, b string) string {
	if Compare(a, b) >= 0 {
		return a
	}
	return b
}

func isDigits(s string) bool {
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}
