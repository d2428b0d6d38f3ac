package rset

import (
	"fmt"
	"sort"
	"strings"
)

// Property is a computed or virtual record property.
//
// Get receives the raw field value (or Default when the record has no such
// field) and returns the property value. Set receives the value being
// assigned and returns what to store; returning false vetoes the write.
// A property with Get but no Set is read-only unless a field of the same
// name exists.
type Property struct {
	Default any
	Get     func(rec *Record, value any) any
	Set     func(rec *Record, value any) (any, bool)
}

// Model describes records of one kind: their computed properties and
// key field.
type Model struct {
	Name       string
	Properties map[string]Property
	IDProperty string
	// CacheAll caches every computed value, not only reference-typed ones.
	CacheAll bool
}

func (m *Model) property(name string) (Property, bool) {
	if m == nil {
		return Property{}, false
	}
	p, ok := m.Properties[name]
	return p, ok
}

// PropertyNames returns the names of computed properties, sorted.
func (m *Model) PropertyNames() []string {
	if m == nil {
		return nil
	}
	names := make([]string, 0, len(m.Properties))
	for name := range m.Properties {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// AdapterFactory builds a fresh adapter instance.
type AdapterFactory func() Adapter

// Registry resolves models and adapters by name. Pass it where resolution
// is needed; there is no process-wide instance.
type Registry struct {
	models   map[string]*Model
	adapters map[string]AdapterFactory
}

// NewRegistry returns a registry that knows the built-in adapters.
func NewRegistry() *Registry {
	reg := &Registry{
		models:   make(map[string]*Model),
		adapters: make(map[string]AdapterFactory),
	}
	reg.RegisterAdapter(AdapterPlain, func() Adapter { return NewPlainAdapter() })
	reg.RegisterAdapter(AdapterColumnar, func() Adapter { return NewColumnarAdapter() })
	reg.RegisterAdapter(AdapterEntity, func() Adapter { return NewEntityAdapter() })
	return reg
}

func (reg *Registry) RegisterModel(m *Model) {
	if m == nil || m.Name == "" {
		panic("rset: model must have a name")
	}
	key := strings.ToLower(m.Name)
	if reg.models[key] != nil {
		panic(fmt.Errorf("rset: duplicate model %q", m.Name))
	}
	reg.models[key] = m
}

// Model returns the named model, or nil.
func (reg *Registry) Model(name string) *Model {
	return reg.models[strings.ToLower(name)]
}

func (reg *Registry) RegisterAdapter(name string, factory AdapterFactory) {
	if name == "" || factory == nil {
		panic("rset: adapter must have a name and a factory")
	}
	reg.adapters[strings.ToLower(name)] = factory
}

func (reg *Registry) Adapter(name string) (Adapter, error) {
	factory := reg.adapters[strings.ToLower(name)]
	if factory == nil {
		return nil, fmt.Errorf("%w: adapter %q", ErrUnknownModule, name)
	}
	return factory(), nil
}

// Adapters returns registered adapter names, sorted.
func (reg *Registry) Adapters() []string {
	names := make([]string, 0, len(reg.adapters))
	for name := range reg.adapters {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
