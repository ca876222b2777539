package sqlite

import (
	"errors"
	"fmt"
	"io/fs"
	"slices"
	"strconv"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

// DefaultMigrationsTable is the version table used when none is configured.
const DefaultMigrationsTable = "schema_migrations"

// ErrDirty is returned when a previous migration failed half way.
var ErrDirty = errors.New("migration is dirty, please fix it before proceeding")

// Status is the migration state of a database.
type Status struct {
	Current uint // 0 when no migration was applied
	Latest  uint
	Pending int
	Dirty   bool
}

// Migrator applies golang-migrate style migrations
// (<version>_<name>.up.sql / .down.sql) from a filesystem.
type Migrator struct {
	m        *migrate.Migrate
	versions []uint
}

// NewMigrator creates a migrator reading dir of fsys.
// The migrator does not own db; closing db is the caller's job.
func NewMigrator(db *DB, fsys fs.FS, dir, table string) (*Migrator, error) {
	if table == "" {
		table = DefaultMigrationsTable
	}

	versions, err := upVersions(fsys, dir)
	if err != nil {
		return nil, err
	}

	sourceDriver, err := iofs.New(fsys, dir)
	if err != nil {
		return nil, fmt.Errorf("create iofs driver: %w", err)
	}

	dbDriver, err := migratesqlite.WithInstance(db.DB, &migratesqlite.Config{
		MigrationsTable: table,
	})
	if err != nil {
		return nil, fmt.Errorf("create sqlite3 driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", sourceDriver, "sqlite3", dbDriver)
	if err != nil {
		return nil, fmt.Errorf("create migrate instance: %w", err)
	}

	return &Migrator{m: m, versions: versions}, nil
}

// Up applies all pending migrations. It reports whether anything changed.
func (mg *Migrator) Up() (bool, error) {
	_, dirty, err := mg.m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return false, fmt.Errorf("get current version: %w", err)
	}
	if dirty {
		return false, ErrDirty
	}

	if err := mg.m.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			return false, nil
		}
		return false, fmt.Errorf("migration failed: %w", err)
	}
	return true, nil
}

// Status reports the current and latest versions.
func (mg *Migrator) Status() (Status, error) {
	var st Status
	if n := len(mg.versions); n > 0 {
		st.Latest = mg.versions[n-1]
	}

	version, dirty, err := mg.m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return st, fmt.Errorf("get current version: %w", err)
	}
	st.Current, st.Dirty = version, dirty

	for _, v := range mg.versions {
		if v > st.Current {
			st.Pending++
		}
	}
	return st, nil
}

// upVersions returns the sorted versions of the .up.sql files in dir.
func upVersions(fsys fs.FS, dir string) ([]uint, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, fmt.Errorf("read migration directory: %w", err)
	}

	var versions []uint
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".up.sql") {
			continue
		}
		prefix, _, _ := strings.Cut(name, "_")
		v, err := strconv.ParseUint(prefix, 10, 64)
		if err != nil {
			continue
		}
		versions = append(versions, uint(v))
	}

	// Names sort lexically; versions may differ in width.
	slices.Sort(versions)
	return versions, nil
}
