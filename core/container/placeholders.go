package container

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Sentinel errors wrapped by PlaceholderError.
var (
	ErrUnknownParameter   = errors.New("unknown parameter")
	ErrCircularReference  = errors.New("circular parameter reference")
	ErrEnvNotFound        = errors.New("environment variable not found")
	ErrInvalidPlaceholder = errors.New("invalid placeholder")
)

// PlaceholderError reports a placeholder that could not be resolved.
type PlaceholderError struct {
	Placeholder string
	Err         error
}

func (e *PlaceholderError) Error() string {
	return fmt.Sprintf("resolve %%%s%%: %v", e.Placeholder, e.Err)
}

func (e *PlaceholderError) Unwrap() error {
	return e.Err
}

var (
	wholePlaceholder = regexp.MustCompile(`^%([^%\s]+)%$`)
	anyPlaceholder   = regexp.MustCompile(`%%|%([^%\s]+)%`)
	envPlaceholder   = regexp.MustCompile(`^env\((?:([a-z]+):)?([A-Za-z_][A-Za-z0-9_]*)\)$`)
)

// resolver resolves %param% and %env(NAME)% placeholders.
// Resolved parameters are memoized; resolving tracks the current chain
// to detect cycles.
type resolver struct {
	raw       map[string]any
	lookupEnv func(string) (string, bool)
	resolved  map[string]any
	resolving map[string]bool
}

func newResolver(raw map[string]any, lookupEnv func(string) (string, bool)) *resolver {
	if lookupEnv == nil {
		lookupEnv = func(string) (string, bool) { return "", false }
	}
	return &resolver{
		raw:       raw,
		lookupEnv: lookupEnv,
		resolved:  make(map[string]any, len(raw)),
		resolving: make(map[string]bool),
	}
}

func (r *resolver) resolveAll() (map[string]any, error) {
	out := make(map[string]any, len(r.raw))
	for _, name := range sortedKeys(r.raw) {
		// env(NAME) parameters are defaults for env placeholders, kept verbatim.
		if strings.HasPrefix(name, "env(") {
			out[name] = copyValue(r.raw[name])
			continue
		}
		v, err := r.parameter(name)
		if err != nil {
			return nil, fmt.Errorf("parameter %q: %w", name, err)
		}
		out[name] = v
	}
	return out, nil
}

func (r *resolver) parameter(name string) (any, error) {
	if v, ok := r.resolved[name]; ok {
		return copyValue(v), nil
	}
	raw, ok := r.raw[name]
	if !ok {
		return nil, &PlaceholderError{Placeholder: name, Err: ErrUnknownParameter}
	}
	if r.resolving[name] {
		return nil, &PlaceholderError{Placeholder: name, Err: ErrCircularReference}
	}

	r.resolving[name] = true
	v, err := r.resolveValue(raw)
	delete(r.resolving, name)
	if err != nil {
		return nil, err
	}

	r.resolved[name] = v
	return copyValue(v), nil
}

func (r *resolver) resolveValue(v any) (any, error) {
	switch t := v.(type) {
	case string:
		return r.resolveString(t)
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			res, err := r.resolveValue(item)
			if err != nil {
				return nil, err
			}
			out[i] = res
		}
		return out, nil
	case map[string]any:
		out := make(map[string]any, len(t))
		for _, k := range sortedKeys(t) {
			res, err := r.resolveValue(t[k])
			if err != nil {
				return nil, err
			}
			out[k] = res
		}
		return out, nil
	default:
		return v, nil
	}
}

// resolveString resolves a string. A string that is exactly one placeholder
// keeps the referenced value's type; embedded placeholders are interpolated.
func (r *resolver) resolveString(s string) (any, error) {
	if !strings.Contains(s, "%") {
		return s, nil
	}

	if m := wholePlaceholder.FindStringSubmatch(s); m != nil {
		return r.placeholder(m[1])
	}

	var firstErr error
	out := anyPlaceholder.ReplaceAllStringFunc(s, func(match string) string {
		if firstErr != nil {
			return match
		}
		if match == "%%" {
			return "%"
		}
		name := match[1 : len(match)-1]
		v, err := r.placeholder(name)
		if err != nil {
			firstErr = err
			return match
		}
		switch v.(type) {
		case map[string]any, []any:
			firstErr = &PlaceholderError{
				Placeholder: name,
				Err:         fmt.Errorf("%w: cannot embed a non-scalar value in %q", ErrInvalidPlaceholder, s),
			}
			return match
		case nil:
			return ""
		}
		return fmt.Sprint(v)
	})
	if firstErr != nil {
		return nil, firstErr
	}
	return out, nil
}

func (r *resolver) placeholder(name string) (any, error) {
	if strings.HasPrefix(name, "env(") {
		return r.env(name)
	}
	return r.parameter(name)
}

// env resolves env(NAME) and env(processor:NAME). A variable missing from
// the snapshot falls back to the env(NAME) parameter.
func (r *resolver) env(name string) (any, error) {
	m := envPlaceholder.FindStringSubmatch(name)
	if m == nil {
		return nil, &PlaceholderError{Placeholder: name, Err: ErrInvalidPlaceholder}
	}
	processor, variable := m[1], m[2]

	value, ok := r.lookupEnv(variable)
	if !ok {
		def, hasDefault := r.raw["env("+variable+")"]
		if !hasDefault {
			return nil, &PlaceholderError{Placeholder: name, Err: fmt.Errorf("%w: %s", ErrEnvNotFound, variable)}
		}
		if def == nil {
			value = ""
		} else {
			value = fmt.Sprint(def)
		}
	}

	switch processor {
	case "", "string":
		return value, nil
	case "bool":
		return envBool(value), nil
	case "int":
		n, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil {
			return nil, &PlaceholderError{Placeholder: name, Err: fmt.Errorf("%w: %q is not an integer", ErrInvalidPlaceholder, value)}
		}
		return n, nil
	default:
		return nil, &PlaceholderError{Placeholder: name, Err: fmt.Errorf("%w: unknown processor %q", ErrInvalidPlaceholder, processor)}
	}
}

func envBool(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "on", "yes":
		return true
	default:
		return false
	}
}
