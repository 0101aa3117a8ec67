package opforge

import (
	"fmt"
	"sort"
	"sync"
)

type registryKey struct {
	domain  string
	name    string
	version int
}

// Registry maps a domain/name/version triple to an operator factory.
// Registration is guarded so multiple initialization paths may race;
// duplicate detection is the synchronization point. After initialization
// completes, resolution takes only the read lock.
type Registry struct {
	mu      sync.RWMutex
	entries map[registryKey]Factory
}

// NewRegistry creates an empty operator registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[registryKey]Factory)}
}

// Register stores a factory for (domain, name, version). Registering the
// exact same triple twice fails with ErrDuplicateRegistration: duplicates
// are rejected, never overwritten. The same name with a different version
// adds a new entry.
func (r *Registry) Register(domain, name string, version int, factory Factory) error {
	if factory == nil {
		return fmt.Errorf("register %s.%s v%d: nil factory", domain, name, version)
	}
	key := registryKey{domain: domain, name: name, version: version}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.entries[key]; exists {
		return fmt.Errorf("%w: %s.%s v%d", ErrDuplicateRegistration, domain, name, version)
	}
	r.entries[key] = factory
	return nil
}

// Lookup returns the factory for (domain, name, version). It fails with
// ErrUnknownOperator when no version of the name is registered in the
// domain, and with ErrVersionMismatch when the name exists but not at
// the requested version.
func (r *Registry) Lookup(domain, name string, version int) (Factory, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if f, ok := r.entries[registryKey{domain: domain, name: name, version: version}]; ok {
		return f, nil
	}
	for key := range r.entries {
		if key.domain == domain && key.name == name {
			return nil, fmt.Errorf("%w: %s.%s v%d", ErrVersionMismatch, domain, name, version)
		}
	}
	return nil, fmt.Errorf("%w: %s.%s", ErrUnknownOperator, domain, name)
}

// Resolve constructs an operator instance for the descriptor.
func (r *Registry) Resolve(desc *OperatorDescriptor) (Operator, error) {
	factory, err := r.Lookup(desc.Domain(), desc.Name(), desc.Version())
	if err != nil {
		return nil, err
	}
	return factory(desc)
}

// Operators returns the registered domain-qualified names, sorted.
func (r *Registry) Operators() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.entries))
	for key := range r.entries {
		names = append(names, fmt.Sprintf("%s.%s:%d", key.domain, key.name, key.version))
	}
	sort.Strings(names)
	return names
}

// defaultRegistry is the process-wide table the host's plugin loader
// populates at load time.
var defaultRegistry = NewRegistry()

// Default returns the process-wide registry.
func Default() *Registry {
	return defaultRegistry
}

// Register adds a factory to the process-wide registry.
func Register(domain, name string, version int, factory Factory) error {
	return defaultRegistry.Register(domain, name, version, factory)
}

// Resolve constructs an operator from the process-wide registry.
func Resolve(desc *OperatorDescriptor) (Operator, error) {
	return defaultRegistry.Resolve(desc)
}
