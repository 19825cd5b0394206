package lockfile

import (
	"fmt"
	"sort"
	"strings"
)

// MergeStrategy defines how to handle conflicts when merging lockfiles.
type MergeStrategy int

const (
	// MergePreferExisting keeps existing values on conflict.
	MergePreferExisting MergeStrategy = iota

	// MergePreferNew overwrites with new values on conflict.
	MergePreferNew

	// MergeErrorOnConflict returns an error if values differ.
	MergeErrorOnConflict
)

// MergeOptions configures lockfile merge behavior.
type MergeOptions struct {
	// Strategy determines how conflicts are resolved.
	Strategy MergeStrategy
}

// DefaultMergeOptions returns sensible defaults for merging.
func DefaultMergeOptions() MergeOptions {
	return MergeOptions{Strategy: MergePreferNew}
}

// Merge combines another lockfile into this one. Entries present in only
// one lockfile are kept; entries locked to different versions or hashes
// are settled by the strategy.
func (l *Lockfile) Merge(other *Lockfile, opts MergeOptions) error {
	if other == nil {
		return nil
	}
	if l.Modules == nil {
		l.Modules = make(map[string]Entry)
	}

	keys := make([]string, 0, len(other.Modules))
	for k := range other.Modules {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		newEntry := other.Modules[key]
		existing, exists := l.Modules[key]
		if !exists {
			l.Modules[key] = newEntry
			continue
		}

		if existing == newEntry {
			continue
		}

		switch opts.Strategy {
		case MergePreferExisting:
			// Keep existing
		case MergePreferNew:
			l.Modules[key] = newEntry
		case MergeErrorOnConflict:
			return fmt.Errorf("lock conflict for %s: existing=%s, new=%s", key, existing.Version, newEntry.Version)
		}
	}

	if l.Root == "" {
		l.Root = other.Root
	}
	return nil
}

// Change is a module locked to different versions in two lockfiles.
type Change struct {
	Module string
	Old    Entry
	New    Entry
}

// Diff describes differences between two lockfiles.
type Diff struct {
	Added   map[string]Entry
	Removed map[string]Entry
	Changed []Change
}

// Diff returns the differences from l to other.
func (l *Lockfile) Diff(other *Lockfile) *Diff {
	diff := &Diff{
		Added:   make(map[string]Entry),
		Removed: make(map[string]Entry),
	}

	for key, entry := range other.Modules {
		existing, exists := l.Modules[key]
		if !exists {
			diff.Added[key] = entry
		} else if existing != entry {
			diff.Changed = append(diff.Changed, Change{Module: key, Old: existing, New: entry})
		}
	}
	for key, entry := range l.Modules {
		if _, exists := other.Modules[key]; !exists {
			diff.Removed[key] = entry
		}
	}

	sort.Slice(diff.Changed, func(i, j int) bool {
		return diff.Changed[i].Module < diff.Changed[j].Module
	})
	return diff
}

// IsEmpty returns true if there are no differences.
func (d *Diff) IsEmpty() bool {
	return len(d.Added) == 0 && len(d.Removed) == 0 && len(d.Changed) == 0
}

// Summary returns a human-readable summary of the differences, one module
// per line.
func (d *Diff) Summary() string {
	if d.IsEmpty() {
		return "no changes"
	}

	var sb strings.Builder
	for _, key := range sortedKeys(d.Added) {
		fmt.Fprintf(&sb, "+ %s:%s\n", key, d.Added[key].Version)
	}
	for _, key := range sortedKeys(d.Removed) {
		fmt.Fprintf(&sb, "- %s:%s\n", key, d.Removed[key].Version)
	}
	for _, c := range d.Changed {
		if c.Old.Version == c.New.Version {
			fmt.Fprintf(&sb, "~ %s:%s (hash changed)\n", c.Module, c.New.Version)
			continue
		}
		fmt.Fprintf(&sb, "~ %s: %s -> %s\n", c.Module, c.Old.Version, c.New.Version)
	}
	return sb.String()
}

func sortedKeys(m map[string]Entry) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
