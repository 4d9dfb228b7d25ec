package schema

import (
	"sort"
	"sync"

	"github.com/pkg/errors"
)

// Registry holds the named schemas a program produces. Schemas are
// registered once at startup and looked up by name afterwards.
type Registry struct {
	mu      sync.RWMutex
	schemas map[string]*Schema
}

// NewRegistry returns a registry holding schemas.
func NewRegistry(schemas ...*Schema) (*Registry, error) {
	r := &Registry{schemas: make(map[string]*Schema, len(schemas))}
	for _, s := range schemas {
		if err := r.Register(s); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Register adds s. Names must be unique and the declaration well formed.
// The description is rendered here so later prompts reuse it.
func (r *Registry) Register(s *Schema) error {
	if err := s.check(); err != nil {
		return errors.Wrap(err, "register schema")
	}
	if s.Name == "" {
		return errors.New("register schema: name is empty")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.schemas[s.Name]; exists {
		return errors.Errorf("register schema: %s already registered", s.Name)
	}
	s.Describe()
	r.schemas[s.Name] = s
	return nil
}

// Lookup returns the schema registered under name.
func (r *Registry) Lookup(name string) (*Schema, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.schemas[name]
	return s, ok
}

// Names lists registered schema names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.schemas))
	for name := range r.schemas {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Describe returns the description of the named schema.
func (r *Registry) Describe(name string) ([]byte, error) {
	s, ok := r.Lookup(name)
	if !ok {
		return nil, errors.Errorf("unknown schema %q", name)
	}
	return s.Describe(), nil
}

// Validate checks text against the named schema.
func (r *Registry) Validate(name, text string) (map[string]any, error) {
	s, ok := r.Lookup(name)
	if !ok {
		return nil, errors.Errorf("unknown schema %q", name)
	}
	return Validate(s, text)
}
