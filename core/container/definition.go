package container

import (
	"fmt"
	"sort"
	"strings"
)

// Definition describes a service declared in configuration.
type Definition struct {
	ID        string
	Class     string
	Arguments []any
	Alias     string // non-empty when the service is an alias of another id
	Public    bool
	Source    string // file that last defined the service
}

// IsAlias reports whether the definition points to another service.
func (d Definition) IsAlias() bool {
	return d.Alias != ""
}

var definitionKeys = map[string]bool{
	"class":     true,
	"arguments": true,
	"alias":     true,
	"public":    true,
}

// parseDefinition decodes one entry of a services mapping.
//
//	App\Mailer: ~                    -> class App\Mailer
//	mailer: '@App\Mailer'            -> alias
//	mailer: {class: X, arguments: [] }
func parseDefinition(id string, raw any, source string) (Definition, error) {
	def := Definition{ID: id, Source: source}

	switch v := raw.(type) {
	case nil:
		def.Class = id
		return def, nil
	case string:
		if !strings.HasPrefix(v, "@") || len(v) < 2 {
			return Definition{}, fmt.Errorf("service %q: string definitions must be an alias like '@id'", id)
		}
		def.Alias = v[1:]
		return def, nil
	case map[string]any:
		var unknown []string
		for k := range v {
			if !definitionKeys[k] {
				unknown = append(unknown, k)
			}
		}
		if len(unknown) > 0 {
			sort.Strings(unknown)
			return Definition{}, fmt.Errorf("service %q: unsupported keys %s", id, strings.Join(unknown, ", "))
		}

		if c, ok := v["class"]; ok {
			s, ok := c.(string)
			if !ok {
				return Definition{}, fmt.Errorf("service %q: class must be a string", id)
			}
			def.Class = s
		}
		if a, ok := v["alias"]; ok {
			s, ok := a.(string)
			if !ok || s == "" {
				return Definition{}, fmt.Errorf("service %q: alias must be a non-empty string", id)
			}
			def.Alias = strings.TrimPrefix(s, "@")
		}
		if args, ok := v["arguments"]; ok && args != nil {
			list, ok := args.([]any)
			if !ok {
				return Definition{}, fmt.Errorf("service %q: arguments must be a list", id)
			}
			def.Arguments = list
		}
		if p, ok := v["public"]; ok {
			b, ok := p.(bool)
			if !ok {
				return Definition{}, fmt.Errorf("service %q: public must be a boolean", id)
			}
			def.Public = b
		}

		if def.Alias != "" && (def.Class != "" || len(def.Arguments) > 0) {
			return Definition{}, fmt.Errorf("service %q: an alias cannot declare class or arguments", id)
		}
		if def.Alias == "" && def.Class == "" {
			def.Class = id
		}
		return def, nil
	default:
		return Definition{}, fmt.Errorf("service %q: unsupported definition type %T", id, raw)
	}
}
