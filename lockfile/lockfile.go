package lockfile

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"sort"

	"github.com/albertocavalcante/go-depgraph/engine"
	"github.com/albertocavalcante/go-depgraph/ident"
)

// FormatVersion is the lockfile schema version written by this package.
// Lockfiles are only read when their version matches exactly.
const FormatVersion = 1

// DefaultFileName is the conventional lockfile name next to a root descriptor.
const DefaultFileName = "depgraph.lock"

// LockedReason is the selection reason recorded for locked constraints.
const LockedReason = "dependency locking"

// ErrUnsupportedVersion is returned when reading a lockfile written with a
// different schema version.
var ErrUnsupportedVersion = errors.New("unsupported lockfile version")

// Lockfile records the version selected for every module of a resolution.
type Lockfile struct {
	// Version is the schema version.
	Version int `json:"lockFileVersion"`

	// Root is the root component the lock was produced for.
	Root string `json:"root,omitempty"`

	// Modules maps "group:name" to the locked selection.
	Modules map[string]Entry `json:"modules"`
}

// Entry is one locked module.
type Entry struct {
	// Version is the selected version.
	Version string `json:"version"`

	// Hash is the sha256 of the component descriptor, if known.
	Hash string `json:"hash,omitempty"`
}

// New returns an empty lockfile at the current schema version.
func New() *Lockfile {
	return &Lockfile{Version: FormatVersion, Modules: make(map[string]Entry)}
}

// Lock records the selected version of a module. content is the rendered
// descriptor of the component and may be nil.
func (l *Lockfile) Lock(id ident.ModuleVersionIdentifier, content []byte) {
	e := Entry{Version: id.Version}
	if content != nil {
		e.Hash = HashContent(content)
	}
	l.Modules[id.Module.String()] = e
}

// Get returns the locked entry of a module.
func (l *Lockfile) Get(m ident.ModuleIdentifier) (Entry, bool) {
	e, ok := l.Modules[m.String()]
	return e, ok
}

// IDs returns the locked components sorted by module.
func (l *Lockfile) IDs() ([]ident.ModuleVersionIdentifier, error) {
	keys := make([]string, 0, len(l.Modules))
	for k := range l.Modules {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	ids := make([]ident.ModuleVersionIdentifier, 0, len(keys))
	for _, k := range keys {
		m, err := ident.ParseModule(k)
		if err != nil {
			return nil, fmt.Errorf("lockfile entry %q: %w", k, err)
		}
		ids = append(ids, m.Version(l.Modules[k].Version))
	}
	return ids, nil
}

// Constraints turns the locked versions into forced constraints for the
// root component. They pin modules that end up in the graph without
// pulling in modules that no longer are.
func (l *Lockfile) Constraints() ([]engine.DependencyMetadata, error) {
	ids, err := l.IDs()
	if err != nil {
		return nil, err
	}
	deps := make([]engine.DependencyMetadata, 0, len(ids))
	for _, id := range ids {
		deps = append(deps, engine.DependencyMetadata{
			Selector: engine.ComponentSelector{Module: id.Module, Version: id.Version},
			Kind:     engine.KindConstraint,
			Force:    true,
			Reason:   LockedReason,
		})
	}
	return deps, nil
}

// Verify checks the descriptor of a locked component against its hash.
// Components that are not locked, or locked without hash, always verify.
func (l *Lockfile) Verify(id ident.ModuleVersionIdentifier, content []byte) error {
	e, ok := l.Get(id.Module)
	if !ok || e.Hash == "" || e.Version != id.Version {
		return nil
	}
	if !VerifyHash(content, e.Hash) {
		return fmt.Errorf("%s: descriptor hash %s does not match locked %s", id, HashContent(content), e.Hash)
	}
	return nil
}

// HashContent computes a SHA256 hash of content for use in lockfiles.
func HashContent(content []byte) string {
	hash := sha256.Sum256(content)
	return "sha256:" + hex.EncodeToString(hash[:])
}

// VerifyHash checks if content matches the expected hash.
func VerifyHash(content []byte, expectedHash string) bool {
	return HashContent(content) == expectedHash
}
