package bundles

import (
	"fmt"
	"path/filepath"
	"time"
)

// settings reads typed values from an extension config. The first type
// error is kept and reported by Err; later reads return defaults.
type settings struct {
	path string
	m    map[string]any
	err  *error
}

func newSettings(ext string, m map[string]any) settings {
	var err error
	return settings{path: ext, m: m, err: &err}
}

func (s settings) fail(key, want string, got any) {
	if *s.err == nil {
		*s.err = fmt.Errorf("%s.%s must be %s, got %T", s.path, key, want, got)
	}
}

// Err returns the first type error.
func (s settings) Err() error {
	return *s.err
}

// Has reports whether key is set to a non-null value.
func (s settings) Has(key string) bool {
	v, ok := s.m[key]
	return ok && v != nil
}

func (s settings) String(key, def string) string {
	v, ok := s.m[key]
	if !ok || v == nil {
		return def
	}
	str, ok := v.(string)
	if !ok {
		s.fail(key, "a string", v)
		return def
	}
	return str
}

func (s settings) Bool(key string, def bool) bool {
	v, ok := s.m[key]
	if !ok || v == nil {
		return def
	}
	b, ok := v.(bool)
	if !ok {
		s.fail(key, "a boolean", v)
		return def
	}
	return b
}

func (s settings) Int(key string, def int) int {
	v, ok := s.m[key]
	if !ok || v == nil {
		return def
	}
	n, ok := v.(int)
	if !ok {
		s.fail(key, "an integer", v)
		return def
	}
	return n
}

// Duration accepts "5s" style strings or a number of seconds.
func (s settings) Duration(key string, def time.Duration) time.Duration {
	v, ok := s.m[key]
	if !ok || v == nil {
		return def
	}
	switch t := v.(type) {
	case int:
		return time.Duration(t) * time.Second
	case string:
		d, err := time.ParseDuration(t)
		if err != nil {
			s.fail(key, "a duration", v)
			return def
		}
		return d
	default:
		s.fail(key, "a duration", v)
		return def
	}
}

func (s settings) Strings(key string, def []string) []string {
	v, ok := s.m[key]
	if !ok || v == nil {
		return def
	}
	switch t := v.(type) {
	case string:
		return []string{t}
	case []any:
		out := make([]string, 0, len(t))
		for _, item := range t {
			str, ok := item.(string)
			if !ok {
				s.fail(key, "a list of strings", v)
				return def
			}
			out = append(out, str)
		}
		return out
	default:
		s.fail(key, "a list of strings", v)
		return def
	}
}

// Section returns the nested mapping at key; a missing key is empty.
func (s settings) Section(key string) settings {
	sub := settings{path: s.path + "." + key, err: s.err}
	v, ok := s.m[key]
	if !ok || v == nil {
		return sub
	}
	m, ok := v.(map[string]any)
	if !ok {
		s.fail(key, "a mapping", v)
		return sub
	}
	sub.m = m
	return sub
}

// projectPath makes p absolute relative to the project directory.
func projectPath(projectDir, p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(projectDir, filepath.FromSlash(p))
}
