package bundles

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/artpar/appkernel/adapters/sqlite"
	"github.com/artpar/appkernel/domain/bundle"
	"github.com/artpar/appkernel/ports"
)

// ServiceMigrator is the *sqlite.Migrator registered by DoctrineMigrationsBundle.
const ServiceMigrator = "doctrine.migrations.migrator"

// DoctrineMigrations is DoctrineMigrationsBundle.
//
//	doctrine_migrations:
//	  migrations_path: migrations
//	  table_name: doctrine_migration_versions
//	  migrate_on_boot: false
type DoctrineMigrations struct {
	base
	Dir      string
	Migrator *sqlite.Migrator
}

// NewDoctrineMigrations creates DoctrineMigrationsBundle.
func NewDoctrineMigrations(deps Deps) ports.Bundle {
	return &DoctrineMigrations{base: newBase(bundle.DoctrineMigration, deps)}
}

// Boot prepares the migrator and optionally migrates. A missing migrations
// directory disables the bundle's commands without failing boot.
func (b *DoctrineMigrations) Boot(_ context.Context, c ports.Services) error {
	s := newSettings("doctrine_migrations", c.Extension("doctrine_migrations"))
	dir := s.String("migrations_path", "migrations")
	table := s.String("table_name", "doctrine_migration_versions")
	onBoot := s.Bool("migrate_on_boot", false)
	if err := s.Err(); err != nil {
		return err
	}

	db, err := connection(c, b.name)
	if err != nil {
		return err
	}

	b.Dir = projectPath(b.deps.ProjectDir, dir)
	if _, err := os.Stat(b.Dir); errors.Is(err, os.ErrNotExist) {
		b.logger.Debug().Str("dir", b.Dir).Msg("no migrations directory")
		return nil
	}

	m, err := sqlite.NewMigrator(db, os.DirFS(b.Dir), ".", table)
	if err != nil {
		return fmt.Errorf("doctrine_migrations: %w", err)
	}
	b.Migrator = m
	c.Set(ServiceMigrator, m)

	if onBoot {
		changed, err := m.Up()
		if err != nil {
			return fmt.Errorf("migrate on boot: %w", err)
		}
		b.logger.Info().Bool("changed", changed).Msg("migrations applied on boot")
	}
	return nil
}

// Commands returns doctrine:migrations:migrate and doctrine:migrations:status.
func (b *DoctrineMigrations) Commands() []*cobra.Command {
	migrateCmd := &cobra.Command{
		Use:   "doctrine:migrations:migrate",
		Short: "Apply all pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := b.migrator(cmd.Context())
			if err != nil {
				return err
			}
			changed, err := m.Up()
			if err != nil {
				return err
			}
			if !changed {
				fmt.Fprintln(cmd.OutOrStdout(), "Already at the latest version.")
				return nil
			}
			st, err := m.Status()
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Migrated to version %d.\n", st.Current)
			return nil
		},
	}

	statusCmd := &cobra.Command{
		Use:   "doctrine:migrations:status",
		Short: "Show the migration status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := b.migrator(cmd.Context())
			if err != nil {
				return err
			}
			st, err := m.Status()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Current version: %d\n", st.Current)
			fmt.Fprintf(out, "Latest version:  %d\n", st.Latest)
			fmt.Fprintf(out, "Pending:         %d\n", st.Pending)
			if st.Dirty {
				fmt.Fprintln(out, "Dirty:           yes")
			}
			return nil
		},
	}

	return []*cobra.Command{migrateCmd, statusCmd}
}

func (b *DoctrineMigrations) migrator(ctx context.Context) (*sqlite.Migrator, error) {
	if _, err := b.deps.Boot(ctx); err != nil {
		return nil, err
	}
	if b.Migrator == nil {
		return nil, fmt.Errorf("migrations directory %s does not exist", b.Dir)
	}
	return b.Migrator, nil
}
