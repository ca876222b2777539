// Package bundles implements every bundle of the bundle table. Each bundle
// reads its extension config from the compiled container, registers its
// runtime services and may contribute console commands or diagnostics
// routes.
package bundles

import (
	"context"
	"sort"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/artpar/appkernel/core/container"
	"github.com/artpar/appkernel/domain/bundle"
	"github.com/artpar/appkernel/ports"
)

// Deps is handed to every bundle at construction.
type Deps struct {
	Logger     zerolog.Logger
	Env        string
	Debug      bool
	ProjectDir string
	ConfigDir  string

	// Boot boots the kernel if needed and returns its container.
	// Commands call it; bundles must not call it from Boot.
	Boot func(ctx context.Context) (*container.Container, error)

	// Report returns the kernel boot report, JSON encodable.
	Report func() any
}

// Constructor builds a bundle.
type Constructor func(Deps) ports.Bundle

// CommandProvider is implemented by bundles that add console commands.
type CommandProvider interface {
	Commands() []*cobra.Command
}

// HTTPMounter is implemented by bundles that add diagnostics routes.
type HTTPMounter interface {
	MountHTTP(r chi.Router)
}

// Catalog maps bundle identifiers to their implementation.
func Catalog() map[string]Constructor {
	return map[string]Constructor{
		bundle.Framework:         NewFramework,
		bundle.Security:          NewSecurity,
		bundle.Twig:              NewTwig,
		bundle.Monolog:           NewMonolog,
		bundle.WebProfiler:       NewWebProfiler,
		bundle.Debug:             NewDebug,
		bundle.Maker:             NewMaker,
		bundle.Doctrine:          NewDoctrine,
		bundle.DoctrineMigration: NewDoctrineMigrations,
		bundle.DoctrineFixtures:  NewDoctrineFixtures,
		bundle.DoctrineMongoDB:   NewDoctrineMongoDB,
	}
}

// Missing returns the identifiers of t that have no implementation, sorted.
func Missing(t bundle.Table, catalog map[string]Constructor) []string {
	var out []string
	for _, d := range t {
		if _, ok := catalog[d.ID]; !ok {
			out = append(out, d.ID)
		}
	}
	sort.Strings(out)
	return out
}

// base carries the identity shared by all bundles.
type base struct {
	name   string
	deps   Deps
	logger zerolog.Logger
}

func newBase(name string, deps Deps) base {
	return base{
		name:   name,
		deps:   deps,
		logger: deps.Logger.With().Str("bundle", name).Logger(),
	}
}

// Name returns the bundle identifier.
func (b *base) Name() string {
	return b.name
}

// Shutdown is a no-op for bundles that hold no resources.
func (b *base) Shutdown(context.Context) error {
	return nil
}
