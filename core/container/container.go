// Package container provides the configuration container: fragments are
// merged in import order by a Builder, then compiled into a Container with
// every placeholder resolved.
//
// Usage:
//
//	b := container.NewBuilder()
//	b.SetParameter("kernel.environment", "dev")
//	b.Merge("config/packages/doctrine.yaml", doc)
//	c, err := b.Compile(lookupEnv)
//	cfg := c.Extension("doctrine")
package container

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/artpar/appkernel/ports"
)

// Reserved top-level keys of a fragment.
const (
	KeyParameters = "parameters"
	KeyServices   = "services"
	KeyImports    = "imports"
)

// Builder accumulates fragments. Later fragments override earlier ones.
type Builder struct {
	parameters  map[string]any
	services    map[string]Definition
	order       []string
	extensions  map[string]map[string]any
	resources   []string
	seenSources map[string]bool
}

// NewBuilder creates an empty builder.
func NewBuilder() *Builder {
	return &Builder{
		parameters:  make(map[string]any),
		services:    make(map[string]Definition),
		extensions:  make(map[string]map[string]any),
		seenSources: make(map[string]bool),
	}
}

// SetParameter sets a parameter, replacing any previous value.
func (b *Builder) SetParameter(name string, value any) {
	b.parameters[name] = copyValue(value)
}

// Merge applies one decoded fragment. The imports key must already have
// been resolved by the caller.
func (b *Builder) Merge(source string, doc map[string]any) error {
	if _, ok := doc[KeyImports]; ok {
		return fmt.Errorf("merge %s: unresolved %q key", source, KeyImports)
	}

	// Deterministic order so error messages do not depend on map iteration.
	keys := make([]string, 0, len(doc))
	for k := range doc {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		value := doc[key]
		switch key {
		case KeyParameters:
			if err := b.mergeParameters(value); err != nil {
				return fmt.Errorf("merge %s: %w", source, err)
			}
		case KeyServices:
			if err := b.mergeServices(source, value); err != nil {
				return fmt.Errorf("merge %s: %w", source, err)
			}
		default:
			if err := b.mergeExtension(key, value); err != nil {
				return fmt.Errorf("merge %s: %w", source, err)
			}
		}
	}

	if !b.seenSources[source] {
		b.seenSources[source] = true
		b.resources = append(b.resources, source)
	}
	return nil
}

func (b *Builder) mergeParameters(value any) error {
	if value == nil {
		return nil
	}
	params, ok := value.(map[string]any)
	if !ok {
		return fmt.Errorf("parameters must be a mapping, got %T", value)
	}
	for name, v := range params {
		b.parameters[name] = copyValue(v)
	}
	return nil
}

func (b *Builder) mergeServices(source string, value any) error {
	if value == nil {
		return nil
	}
	services, ok := value.(map[string]any)
	if !ok {
		return fmt.Errorf("services must be a mapping, got %T", value)
	}

	ids := make([]string, 0, len(services))
	for id := range services {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		// _defaults and _instanceof are per-file directives.
		if strings.HasPrefix(id, "_") {
			continue
		}
		def, err := parseDefinition(id, services[id], source)
		if err != nil {
			return err
		}
		if _, exists := b.services[id]; !exists {
			b.order = append(b.order, id)
		}
		b.services[id] = def
	}
	return nil
}

func (b *Builder) mergeExtension(name string, value any) error {
	if value == nil {
		if _, ok := b.extensions[name]; !ok {
			b.extensions[name] = map[string]any{}
		}
		return nil
	}
	cfg, ok := value.(map[string]any)
	if !ok {
		return fmt.Errorf("extension %q config must be a mapping, got %T", name, value)
	}
	b.extensions[name] = DeepMerge(b.extensions[name], cfg)
	return nil
}

// Resources returns the merged sources in first-merge order.
func (b *Builder) Resources() []string {
	out := make([]string, len(b.resources))
	copy(out, b.resources)
	return out
}

// Compile resolves every placeholder and validates aliases. lookupEnv
// resolves %env(NAME)% placeholders; it must not read ambient state.
func (b *Builder) Compile(lookupEnv func(string) (string, bool)) (*Container, error) {
	r := newResolver(b.parameters, lookupEnv)

	params, err := r.resolveAll()
	if err != nil {
		return nil, err
	}

	extensions := make(map[string]map[string]any, len(b.extensions))
	for _, name := range sortedKeys(b.extensions) {
		resolved, err := r.resolveValue(b.extensions[name])
		if err != nil {
			return nil, fmt.Errorf("extension %q: %w", name, err)
		}
		extensions[name] = resolved.(map[string]any)
	}

	definitions := make(map[string]Definition, len(b.services))
	for _, id := range b.order {
		def := b.services[id]
		if len(def.Arguments) > 0 {
			resolved, err := r.resolveValue(def.Arguments)
			if err != nil {
				return nil, fmt.Errorf("service %q: %w", id, err)
			}
			def.Arguments = resolved.([]any)
		}
		if def.Class != "" {
			resolved, err := r.resolveString(def.Class)
			if err != nil {
				return nil, fmt.Errorf("service %q: %w", id, err)
			}
			def.Class = fmt.Sprint(resolved)
		}
		definitions[id] = def
	}

	if err := validateAliases(definitions, b.order); err != nil {
		return nil, err
	}

	order := make([]string, len(b.order))
	copy(order, b.order)

	return &Container{
		parameters:  params,
		extensions:  extensions,
		definitions: definitions,
		order:       order,
		resources:   b.Resources(),
		services:    make(map[string]any),
	}, nil
}

func validateAliases(defs map[string]Definition, order []string) error {
	for _, id := range order {
		seen := map[string]bool{id: true}
		cur := defs[id]
		for cur.IsAlias() {
			target, ok := defs[cur.Alias]
			if !ok {
				return fmt.Errorf("service %q: alias target %q is not defined", id, cur.Alias)
			}
			if seen[cur.Alias] {
				return fmt.Errorf("service %q: circular alias through %q", id, cur.Alias)
			}
			seen[cur.Alias] = true
			cur = target
		}
	}
	return nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Container is a compiled configuration container. Parameters, extension
// configs and definitions are read-only after Compile; runtime services are
// registered by bundles through Set.
type Container struct {
	parameters  map[string]any
	extensions  map[string]map[string]any
	definitions map[string]Definition
	order       []string
	resources   []string

	mu       sync.RWMutex
	services map[string]any
}

// Parameter returns a resolved parameter.
func (c *Container) Parameter(name string) (any, bool) {
	v, ok := c.parameters[name]
	return copyValue(v), ok
}

// ParameterNames returns all parameter names, sorted.
func (c *Container) ParameterNames() []string {
	return sortedKeys(c.parameters)
}

// Extension returns a copy of the merged configuration of an extension.
func (c *Container) Extension(name string) map[string]any {
	return DeepCopy(c.extensions[name])
}

// HasExtension reports whether any fragment configured the extension.
func (c *Container) HasExtension(name string) bool {
	_, ok := c.extensions[name]
	return ok
}

// Extensions returns the configured extension names, sorted.
func (c *Container) Extensions() []string {
	return sortedKeys(c.extensions)
}

// Definition returns the definition registered under id, following aliases.
func (c *Container) Definition(id string) (Definition, bool) {
	def, ok := c.definitions[id]
	for ok && def.IsAlias() {
		def, ok = c.definitions[def.Alias]
	}
	return def, ok
}

// Definitions returns every definition in first-declaration order.
func (c *Container) Definitions() []Definition {
	out := make([]Definition, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.definitions[id])
	}
	return out
}

// Resources returns the files that contributed to the container.
func (c *Container) Resources() []string {
	out := make([]string, len(c.resources))
	copy(out, c.resources)
	return out
}

// Set registers a runtime service instance.
func (c *Container) Set(id string, service any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.services[id] = service
}

// Get returns a runtime service instance.
func (c *Container) Get(id string) (any, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s, ok := c.services[id]
	return s, ok
}

// ServiceIDs returns the ids of registered runtime services, sorted.
func (c *Container) ServiceIDs() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return sortedKeys(c.services)
}

// Ensure interface compliance.
var _ ports.Services = (*Container)(nil)
