package loader

import "fmt"

type importEntry struct {
	resource      string
	ignoreMissing bool // ignore_errors: not_found
	ignoreAll     bool // ignore_errors: true
}

// parseImports decodes the imports key of a fragment. Entries are either a
// resource string or a mapping with resource and ignore_errors.
func parseImports(v any) ([]importEntry, error) {
	if v == nil {
		return nil, nil
	}
	list, ok := v.([]any)
	if !ok {
		return nil, fmt.Errorf("imports must be a list, got %T", v)
	}

	entries := make([]importEntry, 0, len(list))
	for i, item := range list {
		switch t := item.(type) {
		case string:
			entries = append(entries, importEntry{resource: t})
		case map[string]any:
			res, ok := t["resource"].(string)
			if !ok || res == "" {
				return nil, fmt.Errorf("imports[%d]: resource must be a non-empty string", i)
			}
			e := importEntry{resource: res}
			switch ie := t["ignore_errors"].(type) {
			case nil:
			case bool:
				e.ignoreAll = ie
				e.ignoreMissing = ie
			case string:
				if ie != "not_found" {
					return nil, fmt.Errorf("imports[%d]: ignore_errors must be a boolean or \"not_found\"", i)
				}
				e.ignoreMissing = true
			default:
				return nil, fmt.Errorf("imports[%d]: ignore_errors must be a boolean or \"not_found\"", i)
			}
			entries = append(entries, e)
		default:
			return nil, fmt.Errorf("imports[%d]: unsupported entry %T", i, item)
		}
	}
	return entries, nil
}
