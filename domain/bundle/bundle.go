// Package bundle provides the bundle table value types and pure resolution
// functions. A bundle is active for a process when its profile is selected
// by the persistence mode and its rule matches the environment name.
package bundle

import (
	"fmt"
	"sort"
	"strings"

	"github.com/artpar/appkernel/domain/persistence"
)

// Profile groups bundles by the persistence stack they belong to.
type Profile string

const (
	ProfileShared     Profile = "shared"     // active regardless of persistence mode
	ProfileRelational Profile = "relational" // ORM, migrations, fixtures
	ProfileDocument   Profile = "document"   // document mapper
)

// ProfileFor returns the persistence profile selected by mode.
func ProfileFor(mode persistence.Mode) Profile {
	if mode.IsDocument() {
		return ProfileDocument
	}
	return ProfileRelational
}

// Rule decides in which environments a bundle is active.
// The zero value matches nothing.
type Rule struct {
	all  bool
	envs []string
}

// All returns a rule matching every environment.
func All() Rule {
	return Rule{all: true}
}

// Only returns a rule matching exactly the given environment names.
func Only(envs ...string) Rule {
	cp := make([]string, len(envs))
	copy(cp, envs)
	return Rule{envs: cp}
}

// Matches reports whether the rule activates a bundle in env.
func (r Rule) Matches(env string) bool {
	if r.all {
		return true
	}
	for _, e := range r.envs {
		if e == env {
			return true
		}
	}
	return false
}

// IsAll reports whether the rule matches every environment.
func (r Rule) IsAll() bool {
	return r.all
}

// Envs returns the explicit environment names of the rule.
func (r Rule) Envs() []string {
	cp := make([]string, len(r.envs))
	copy(cp, r.envs)
	return cp
}

// String renders the rule as "all" or a comma-separated list.
func (r Rule) String() string {
	if r.all {
		return "all"
	}
	return strings.Join(r.envs, ",")
}

// Descriptor identifies a bundle and its activation rule (immutable value type).
type Descriptor struct {
	ID      string
	Profile Profile
	Rule    Rule
}

// Table is the ordered bundle table. Declaration order is boot order.
type Table []Descriptor

// Registered returns the bundles registered for mode: the shared bundles
// plus the selected profile. The other profile is omitted, not deactivated.
func Registered(t Table, mode persistence.Mode) []Descriptor {
	selected := ProfileFor(mode)
	out := make([]Descriptor, 0, len(t))
	for _, d := range t {
		if d.Profile == ProfileShared || d.Profile == selected {
			out = append(out, d)
		}
	}
	return out
}

// Resolve returns the bundles active for mode and env, in table order.
func Resolve(t Table, mode persistence.Mode, env string) []Descriptor {
	registered := Registered(t, mode)
	out := make([]Descriptor, 0, len(registered))
	for _, d := range registered {
		if d.Rule.Matches(env) {
			out = append(out, d)
		}
	}
	return out
}

// IDs returns the identifiers of descriptors, preserving order.
func IDs(ds []Descriptor) []string {
	ids := make([]string, len(ds))
	for i, d := range ds {
		ids[i] = d.ID
	}
	return ids
}

// TableError reports problems found by Validate.
type TableError struct {
	Problems []string
}

func (e *TableError) Error() string {
	return fmt.Sprintf("invalid bundle table: %s", strings.Join(e.Problems, "; "))
}

// Validate checks the table for duplicate identifiers, unknown profiles and
// rules that can never match.
func Validate(t Table) error {
	var problems []string
	seen := make(map[string]bool, len(t))

	for i, d := range t {
		if d.ID == "" {
			problems = append(problems, fmt.Sprintf("entry %d has no identifier", i))
			continue
		}
		if seen[d.ID] {
			problems = append(problems, fmt.Sprintf("bundle %q declared twice", d.ID))
		}
		seen[d.ID] = true

		switch d.Profile {
		case ProfileShared, ProfileRelational, ProfileDocument:
		default:
			problems = append(problems, fmt.Sprintf("bundle %q has unknown profile %q", d.ID, d.Profile))
		}

		if !d.Rule.all && len(d.Rule.envs) == 0 {
			problems = append(problems, fmt.Sprintf("bundle %q has an empty environment rule", d.ID))
		}
	}

	if len(problems) > 0 {
		sort.Strings(problems)
		return &TableError{Problems: problems}
	}
	return nil
}
