package harness

import (
	"sort"
	"sync"
)

// Package-level suite registry. Packages register their suites in init();
// the CLI runs whatever is registered. This keeps the harness library free
// of any discovery mechanism - registration is explicit.
var (
	regMu    sync.Mutex
	registry = make(map[string]*Suite)
)

// Register adds a suite to the registry. Duplicate names are an error -
// a silently shadowed suite is a silently skipped suite.
func Register(s *Suite) error {
	if s.Name == "" {
		return NewConfigurationError("suite name must not be empty")
	}
	regMu.Lock()
	defer regMu.Unlock()
	if _, exists := registry[s.Name]; exists {
		return NewConfigurationError("duplicate suite %q", s.Name)
	}
	registry[s.Name] = s
	return nil
}

// MustRegister is Register for init() blocks; it panics on error.
func MustRegister(s *Suite) {
	if err := Register(s); err != nil {
		panic(err)
	}
}

// Suites returns the registered suites sorted by name.
func Suites() []*Suite {
	regMu.Lock()
	defer regMu.Unlock()
	out := make([]*Suite, 0, len(registry))
	for _, s := range registry {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Lookup finds a registered suite by name.
func Lookup(name string) (*Suite, bool) {
	regMu.Lock()
	defer regMu.Unlock()
	s, ok := registry[name]
	return s, ok
}

// ClearRegistryForTesting empties the registry. Not intended for
// production use.
func ClearRegistryForTesting() {
	regMu.Lock()
	defer regMu.Unlock()
	registry = make(map[string]*Suite)
}
