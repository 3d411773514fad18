package model

import (
	"fmt"
	"regexp"
	"sync"
)

// Factory builds a Model instance for a concrete model name.
type Factory func(name string) (Model, error)

type registryEntry struct {
	pattern *regexp.Regexp
	factory Factory
}

// Registry resolves model names to Model instances via ordered regular
// expression patterns. Registration order is priority order: the first
// matching pattern wins. Resolution is deterministic and driven purely by
// registered entries plus an injectable default; the registry never sniffs
// the environment.
type Registry struct {
	mu             sync.RWMutex
	entries        []registryEntry
	defaultFactory Factory
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Register adds a pattern/factory pair. The pattern is anchored implicitly.
func (r *Registry) Register(pattern string, factory Factory) error {
	re, err := regexp.Compile("^(?:" + pattern + ")$")
	if err != nil {
		return fmt.Errorf("compile model pattern %q: %w", pattern, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.entries = append(r.entries, registryEntry{pattern: re, factory: factory})

	return nil
}

// SetDefault installs the factory used when no pattern matches.
func (r *Registry) SetDefault(factory Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.defaultFactory = factory
}

// Resolve returns a Model for the given name, consulting patterns in
// registration order and falling back to the default factory.
func (r *Registry) Resolve(name string) (Model, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, e := range r.entries {
		if e.pattern.MatchString(name) {
			return e.factory(name)
		}
	}

	if r.defaultFactory != nil {
		return r.defaultFactory(name)
	}

	return nil, fmt.Errorf("%w: %q", ErrNoModel, name)
}
