package fs

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/artpar/appkernel/ports"
)

// YAMLReader decodes YAML configuration fragments.
type YAMLReader struct{}

// Read parses the file at path. An empty document yields an empty mapping;
// a document whose root is not a mapping is an error.
func (YAMLReader) Read(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file %s: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes a YAML fragment from bytes.
func Parse(data []byte) (map[string]any, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))

	var root any
	if err := dec.Decode(&root); err != nil {
		if errors.Is(err, io.EOF) {
			return map[string]any{}, nil
		}
		return nil, fmt.Errorf("parse yaml: %w", err)
	}

	var extra any
	if err := dec.Decode(&extra); !errors.Is(err, io.EOF) {
		if err != nil {
			return nil, fmt.Errorf("parse yaml: %w", err)
		}
		return nil, fmt.Errorf("parse yaml: multiple documents are not supported")
	}

	switch v := normalize(root).(type) {
	case nil:
		return map[string]any{}, nil
	case map[string]any:
		return v, nil
	default:
		return nil, fmt.Errorf("parse yaml: root must be a mapping, got %T", v)
	}
}

// normalize converts mappings with non-string keys into map[string]any so
// that the rest of the loader only deals with one map type.
func normalize(v any) any {
	switch t := v.(type) {
	case map[string]any:
		for k, val := range t {
			t[k] = normalize(val)
		}
		return t
	case map[any]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[fmt.Sprint(k)] = normalize(val)
		}
		return out
	case []any:
		for i, val := range t {
			t[i] = normalize(val)
		}
		return t
	default:
		return v
	}
}

// Ensure interface compliance.
var _ ports.FragmentReader = YAMLReader{}
