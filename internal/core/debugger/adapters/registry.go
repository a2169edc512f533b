// Package adapters resolves a Configuration's `kind` field (§6) to an
// installed adapter binary and argument template. It only resolves an
// already-installed binary; fetching or installing one is out of
// scope (§9).
package adapters

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// Entry describes one adapter kind's launch shape.
type Entry struct {
	Command   string            `toml:"command"`
	Args      []string          `toml:"args"`
	Transport string            `toml:"transport"` // "stdio", "stdio+pty", or "tcp"
	Env       map[string]string `toml:"env"`
}

// file is the on-disk shape of adapters.toml: a flat table keyed by
// kind name (e.g. "Python", "Go", "Lldb").
type file struct {
	Adapters map[string]Entry `toml:"adapters"`
}

// Registry is a read-only, loaded-once mapping from kind name to
// Entry. It is safe for concurrent reads after Load returns.
type Registry struct {
	entries map[string]Entry
}

// Load parses an adapters.toml file at path. A missing file is not an
// error: it yields an empty registry, since every Configuration can
// still specify an explicit Command/Args instead of a registry kind.
func Load(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &Registry{entries: map[string]Entry{}}, nil
		}
		return nil, fmt.Errorf("adapters: reading %s: %w", path, err)
	}

	var f file
	if _, err := toml.Decode(string(data), &f); err != nil {
		return nil, fmt.Errorf("adapters: parsing %s: %w", path, err)
	}
	return &Registry{entries: f.Adapters}, nil
}

// Lookup returns the Entry registered for kind, if any.
func (r *Registry) Lookup(kind string) (Entry, bool) {
	e, ok := r.entries[kind]
	return e, ok
}
