// Package routing holds the route table built from route fragments.
// The table is assembled at boot and inspected by diagnostics; it is
// never used to dispatch requests.
package routing

import (
	"fmt"
	"sort"
	"strings"

	"github.com/artpar/appkernel/ports"
)

// Route is one named entry of a route fragment. Resource routes import
// another route source and are recorded as-is.
type Route struct {
	Name         string
	Path         string
	Controller   string
	Methods      []string
	Defaults     map[string]any
	Requirements map[string]string
	Host         string
	Schemes      []string
	Condition    string

	// Set for resource imports instead of Path.
	Resource   string
	Type       string
	Prefix     string
	NamePrefix string

	Source string
}

// IsImport reports whether the route imports another resource.
func (r Route) IsImport() bool {
	return r.Resource != ""
}

var routeKeys = map[string]bool{
	"path":         true,
	"controller":   true,
	"methods":      true,
	"defaults":     true,
	"requirements": true,
	"host":         true,
	"schemes":      true,
	"condition":    true,
	"resource":     true,
	"type":         true,
	"prefix":       true,
	"name_prefix":  true,
}

// Table is an ordered set of routes keyed by name.
type Table struct {
	routes    []Route
	index     map[string]int
	resources []string
}

// New creates an empty table.
func New() *Table {
	return &Table{index: make(map[string]int)}
}

// Add inserts r. A route with the same name is removed first, so the new
// route takes the last position.
func (t *Table) Add(r Route) {
	if i, ok := t.index[r.Name]; ok {
		t.routes = append(t.routes[:i], t.routes[i+1:]...)
		for j := i; j < len(t.routes); j++ {
			t.index[t.routes[j].Name] = j
		}
	}
	t.index[r.Name] = len(t.routes)
	t.routes = append(t.routes, r)
}

// Merge parses a route fragment and adds its routes in name order.
func (t *Table) Merge(source string, doc map[string]any) error {
	names := make([]string, 0, len(doc))
	for name := range doc {
		names = append(names, name)
	}
	sort.Strings(names)

	parsed := make([]Route, 0, len(names))
	for _, name := range names {
		r, err := parseRoute(name, doc[name], source)
		if err != nil {
			return fmt.Errorf("merge routes %s: %w", source, err)
		}
		parsed = append(parsed, r)
	}

	for _, r := range parsed {
		t.Add(r)
	}
	t.resources = append(t.resources, source)
	return nil
}

// Get returns the route registered under name.
func (t *Table) Get(name string) (Route, bool) {
	i, ok := t.index[name]
	if !ok {
		return Route{}, false
	}
	return t.routes[i], true
}

// All returns every route in table order.
func (t *Table) All() []Route {
	out := make([]Route, len(t.routes))
	copy(out, t.routes)
	return out
}

// Len returns the number of routes.
func (t *Table) Len() int {
	return len(t.routes)
}

// Resources returns the route files merged into the table.
func (t *Table) Resources() []string {
	out := make([]string, len(t.resources))
	copy(out, t.resources)
	return out
}

func parseRoute(name string, raw any, source string) (Route, error) {
	m, ok := raw.(map[string]any)
	if !ok {
		return Route{}, fmt.Errorf("route %q: must be a mapping, got %T", name, raw)
	}

	var unknown []string
	for k := range m {
		if !routeKeys[k] {
			unknown = append(unknown, k)
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return Route{}, fmt.Errorf("route %q: unsupported keys %s", name, strings.Join(unknown, ", "))
	}

	r := Route{Name: name, Source: source}
	var err error

	str := func(key string) string {
		if err != nil {
			return ""
		}
		v, ok := m[key]
		if !ok || v == nil {
			return ""
		}
		s, ok := v.(string)
		if !ok {
			err = fmt.Errorf("route %q: %s must be a string", name, key)
		}
		return s
	}

	r.Path = str("path")
	r.Controller = str("controller")
	r.Host = str("host")
	r.Condition = str("condition")
	r.Resource = str("resource")
	r.Type = str("type")
	r.Prefix = str("prefix")
	r.NamePrefix = str("name_prefix")
	if err != nil {
		return Route{}, err
	}

	if r.Path == "" && r.Resource == "" {
		return Route{}, fmt.Errorf("route %q: path or resource is required", name)
	}
	if r.Path != "" && r.Resource != "" {
		return Route{}, fmt.Errorf("route %q: path and resource are mutually exclusive", name)
	}

	if r.Methods, err = stringList(m["methods"], true); err != nil {
		return Route{}, fmt.Errorf("route %q: methods: %w", name, err)
	}
	if r.Schemes, err = stringList(m["schemes"], false); err != nil {
		return Route{}, fmt.Errorf("route %q: schemes: %w", name, err)
	}

	if d, ok := m["defaults"]; ok && d != nil {
		defaults, ok := d.(map[string]any)
		if !ok {
			return Route{}, fmt.Errorf("route %q: defaults must be a mapping", name)
		}
		r.Defaults = defaults
	}

	if req, ok := m["requirements"]; ok && req != nil {
		reqs, ok := req.(map[string]any)
		if !ok {
			return Route{}, fmt.Errorf("route %q: requirements must be a mapping", name)
		}
		r.Requirements = make(map[string]string, len(reqs))
		for k, v := range reqs {
			r.Requirements[k] = fmt.Sprint(v)
		}
	}

	return r, nil
}

// stringList accepts "GET|POST" or [GET, POST].
func stringList(v any, upper bool) ([]string, error) {
	var parts []string
	switch t := v.(type) {
	case nil:
		return nil, nil
	case string:
		parts = strings.Split(t, "|")
	case []any:
		for _, item := range t {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("expected strings, got %T", item)
			}
			parts = append(parts, s)
		}
	default:
		return nil, fmt.Errorf("expected a string or list, got %T", v)
	}

	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if upper {
			p = strings.ToUpper(p)
		}
		out = append(out, p)
	}
	return out, nil
}

// Ensure interface compliance.
var _ ports.Sink = (*Table)(nil)
