package lockfile

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
)

// lockfilePermissions is the file permission mode for lockfiles.
// Using 0600 for security (owner read/write only).
const lockfilePermissions = 0o600

// ReadFile reads and parses a lockfile from the given path.
func ReadFile(path string) (*Lockfile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read lockfile: %w", err)
	}
	return Parse(data)
}

// Parse parses lockfile JSON data.
func Parse(data []byte) (*Lockfile, error) {
	var lf Lockfile
	if err := json.Unmarshal(data, &lf); err != nil {
		return nil, fmt.Errorf("failed to parse lockfile JSON: %w", err)
	}
	if lf.Version != FormatVersion {
		return nil, fmt.Errorf("%w: %d (expected %d)", ErrUnsupportedVersion, lf.Version, FormatVersion)
	}

	// Initialize nil maps to empty maps for consistency
	if lf.Modules == nil {
		lf.Modules = make(map[string]Entry)
	}

	return &lf, nil
}

// WriteFile writes the lockfile to the given path with deterministic formatting.
func (l *Lockfile) WriteFile(path string) error {
	data, err := l.Marshal()
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, lockfilePermissions)
}

// WriteTo writes the lockfile to the given writer.
func (l *Lockfile) WriteTo(w io.Writer) (int64, error) {
	data, err := l.Marshal()
	if err != nil {
		return 0, err
	}
	n, err := w.Write(data)
	return int64(n), err
}

// Marshal serializes the lockfile to indented JSON with sorted module keys.
func (l *Lockfile) Marshal() ([]byte, error) {
	ordered := orderedLockfile{
		Version: l.Version,
		Root:    l.Root,
		Modules: sortedEntries(l.Modules),
	}

	var buf bytes.Buffer
	encoder := json.NewEncoder(&buf)
	encoder.SetEscapeHTML(false)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(ordered); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// orderedLockfile is used for deterministic JSON output.
type orderedLockfile struct {
	Version int             `json:"lockFileVersion"`
	Root    string          `json:"root,omitempty"`
	Modules orderedEntryMap `json:"modules"`
}

// orderedEntryMap marshals entries in key order.
type orderedEntryMap struct {
	keys   []string
	values map[string]Entry
}

func sortedEntries(m map[string]Entry) orderedEntryMap {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return orderedEntryMap{keys: keys, values: m}
}

func (o orderedEntryMap) MarshalJSON() ([]byte, error) {
	if len(o.keys) == 0 {
		return []byte("{}"), nil
	}

	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range o.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		keyJSON, _ := json.Marshal(k)
		valJSON, err := json.Marshal(o.values[k])
		if err != nil {
			return nil, err
		}
		buf.Write(keyJSON)
		buf.WriteByte(':')
		buf.Write(valJSON)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// Exists returns true if a lockfile exists at the given path.
func Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// DefaultPath returns the lockfile path for a root descriptor: the
// lockfile lives next to it.
func DefaultPath(descriptor string) string {
	if descriptor == "" {
		return DefaultFileName
	}
	return filepath.Join(filepath.Dir(descriptor), DefaultFileName)
}
