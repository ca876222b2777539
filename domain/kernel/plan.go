// Package kernel provides the configuration import plan as pure functions.
// A plan is the ordered list of resources the loader imports; later imports
// override earlier ones, so order is part of the contract.
package kernel

import (
	"path"

	"github.com/artpar/appkernel/domain/persistence"
)

// Ext is the extension of configuration fragments.
const Ext = ".yaml"

// TestEnv is the environment that receives the test packages import.
const TestEnv = "test"

// Kind describes how an import resource is resolved.
type Kind int

const (
	KindGlob     Kind = iota // zero or more files matched by a pattern
	KindFile                 // exactly one file that must exist
	KindOptional             // one file imported only when it exists
)

func (k Kind) String() string {
	switch k {
	case KindGlob:
		return "glob"
	case KindFile:
		return "file"
	case KindOptional:
		return "optional"
	default:
		return "unknown"
	}
}

// Target is the container an import merges into.
type Target int

const (
	TargetContainer Target = iota
	TargetRoutes
)

func (t Target) String() string {
	if t == TargetRoutes {
		return "routes"
	}
	return "container"
}

// Import is a single step of a plan (immutable value type).
// Resource is slash-separated and relative to the configuration root.
type Import struct {
	Resource string
	Kind     Kind
	Target   Target
}

func glob(target Target, elem ...string) Import {
	return Import{Resource: path.Join(elem...), Kind: KindGlob, Target: target}
}

func file(target Target, elem ...string) Import {
	return Import{Resource: path.Join(elem...), Kind: KindFile, Target: target}
}

// ContainerPlan returns the ordered service container imports for env and mode.
func ContainerPlan(env string, mode persistence.Mode) []Import {
	plan := []Import{
		glob(TargetContainer, "packages", "*"+Ext),
		glob(TargetContainer, "packages", env, "*"+Ext),
	}

	if mode.IsDocument() {
		plan = append(plan,
			glob(TargetContainer, "packages", "mongodb", "*"+Ext),
			file(TargetContainer, "services", "services_mongo"+Ext),
		)
	} else {
		plan = append(plan,
			glob(TargetContainer, "packages", "orm", "*"+Ext),
			file(TargetContainer, "services", "services_orm"+Ext),
		)
	}

	// Imported in both persistence modes, after the mode-specific imports.
	if env == TestEnv {
		plan = append(plan, glob(TargetContainer, "packages", "test", "*"+Ext))
	}

	plan = append(plan,
		file(TargetContainer, "services"+Ext),
		Import{Resource: "services_" + env + Ext, Kind: KindOptional, Target: TargetContainer},
	)

	return plan
}

// RoutePlan returns the ordered route imports for env. The route plan does
// not depend on the persistence mode.
func RoutePlan(env string) []Import {
	return []Import{
		glob(TargetRoutes, "routes", env, "*"+Ext),
		glob(TargetRoutes, "routes", "*"+Ext),
		file(TargetRoutes, "routes"+Ext),
	}
}

// Plan returns the container plan followed by the route plan.
func Plan(env string, mode persistence.Mode) []Import {
	return append(ContainerPlan(env, mode), RoutePlan(env)...)
}
