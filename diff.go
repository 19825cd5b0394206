package depgraph

import (
	"cmp"
	"fmt"
	"slices"
	"strings"

	"github.com/albertocavalcante/go-depgraph/ident"
	"github.com/albertocavalcante/go-depgraph/version"
)

// ChangeKind classifies a module difference between two resolutions.
type ChangeKind int

const (
	Added ChangeKind = iota
	Removed
	Upgraded
	Downgraded
)

func (k ChangeKind) String() string {
	switch k {
	case Added:
		return "added"
	case Removed:
		return "removed"
	case Upgraded:
		return "upgraded"
	case Downgraded:
		return "downgraded"
	default:
		return "unknown"
	}
}

// ModuleDiff is the change of one module. OldVersion is empty for added
// modules and NewVersion for removed ones.
type ModuleDiff struct {
	Module     ident.ModuleIdentifier `json:"module"`
	Kind       ChangeKind             `json:"kind"`
	OldVersion string                 `json:"old_version,omitempty"`
	NewVersion string                 `json:"new_version,omitempty"`

	// Platform is set for virtual platforms, which only follow their members.
	Platform bool `json:"platform,omitempty"`
}

func (m ModuleDiff) String() string {
	switch m.Kind {
	case Added:
		return fmt.Sprintf("+ %s:%s", m.Module, m.NewVersion)
	case Removed:
		return fmt.Sprintf("- %s:%s", m.Module, m.OldVersion)
	case Upgraded:
		return fmt.Sprintf("^ %s: %s -> %s", m.Module, m.OldVersion, m.NewVersion)
	default:
		return fmt.Sprintf("v %s: %s -> %s", m.Module, m.OldVersion, m.NewVersion)
	}
}

// ResolutionDiff lists the module changes between two resolutions, ordered
// by kind then module.
//
//	diff := DiffResults(before, after)
//	for _, m := range diff.Of(Upgraded) {
//		fmt.Println(m.Module, m.OldVersion, "->", m.NewVersion)
//	}
type ResolutionDiff struct {
	Changes []ModuleDiff `json:"changes"`
}

// IsEmpty reports whether both resolutions selected the same versions.
func (d *ResolutionDiff) IsEmpty() bool { return len(d.Changes) == 0 }

// Of returns the changes of one kind.
func (d *ResolutionDiff) Of(kind ChangeKind) []ModuleDiff {
	var out []ModuleDiff
	for _, m := range d.Changes {
		if m.Kind == kind {
			out = append(out, m)
		}
	}
	return out
}

// Summary returns one line per change, or "no changes".
func (d *ResolutionDiff) Summary() string {
	if d.IsEmpty() {
		return "no changes"
	}
	var sb strings.Builder
	for _, m := range d.Changes {
		sb.WriteString(m.String())
		sb.WriteByte('\n')
	}
	return sb.String()
}

// DiffResults compares the selected versions of two results with
// version.Compare. A nil result counts as empty and the root is ignored.
func DiffResults(old, new *Result) *ResolutionDiff {
	return DiffResultsFunc(old, new, version.Compare)
}

// DiffResultsFunc is DiffResults with a custom version ordering. Distinct
// versions that order equally are not reported.
func DiffResultsFunc(old, new *Result, compare version.Comparator) *ResolutionDiff {
	before, after := selectedComponents(old), selectedComponents(new)
	diff := &ResolutionDiff{}

	for m, now := range after {
		was, ok := before[m]
		switch {
		case !ok:
			diff.Changes = append(diff.Changes, ModuleDiff{Module: m, Kind: Added, NewVersion: now.version, Platform: now.platform})
		case compare(now.version, was.version) > 0:
			diff.Changes = append(diff.Changes, ModuleDiff{Module: m, Kind: Upgraded, OldVersion: was.version, NewVersion: now.version, Platform: now.platform})
		case compare(now.version, was.version) < 0:
			diff.Changes = append(diff.Changes, ModuleDiff{Module: m, Kind: Downgraded, OldVersion: was.version, NewVersion: now.version, Platform: now.platform})
		}
	}
	for m, was := range before {
		if _, ok := after[m]; !ok {
			diff.Changes = append(diff.Changes, ModuleDiff{Module: m, Kind: Removed, OldVersion: was.version, Platform: was.platform})
		}
	}

	slices.SortFunc(diff.Changes, func(a, b ModuleDiff) int {
		if c := cmp.Compare(a.Kind, b.Kind); c != 0 {
			return c
		}
		return cmp.Compare(a.Module.String(), b.Module.String())
	})
	return diff
}

type selectedComponent struct {
	version  string
	platform bool
}

func selectedComponents(r *Result) map[ident.ModuleIdentifier]selectedComponent {
	out := make(map[ident.ModuleIdentifier]selectedComponent)
	if r == nil || r.Graph == nil {
		return out
	}
	for key, node := range r.Graph.Modules {
		if node.IsRoot {
			continue
		}
		out[key.Module] = selectedComponent{version: key.Version, platform: node.VirtualPlatform}
	}
	return out
}
