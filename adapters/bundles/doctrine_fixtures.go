package bundles

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/artpar/appkernel/adapters/sqlite"
	"github.com/artpar/appkernel/domain/bundle"
	"github.com/artpar/appkernel/ports"
)

var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Fixture is the rows of one table, in file order.
type Fixture struct {
	Table string
	Rows  []map[string]any
}

// DoctrineFixtures is DoctrineFixturesBundle.
//
// Fixture files are YAML mappings of table name to a list of rows:
//
//	users:
//	  - { id: 1, email: admin@example.com }
//	  - { id: 2, email: user@example.com }
type DoctrineFixtures struct {
	base
	Dir string
	db  *sqlite.DB
}

// NewDoctrineFixtures creates DoctrineFixturesBundle.
func NewDoctrineFixtures(deps Deps) ports.Bundle {
	return &DoctrineFixtures{base: newBase(bundle.DoctrineFixtures, deps)}
}

// Boot resolves doctrine_fixtures.path.
func (b *DoctrineFixtures) Boot(_ context.Context, c ports.Services) error {
	s := newSettings("doctrine_fixtures", c.Extension("doctrine_fixtures"))
	dir := s.String("path", "fixtures")
	if err := s.Err(); err != nil {
		return err
	}

	db, err := connection(c, b.name)
	if err != nil {
		return err
	}
	b.db = db
	b.Dir = projectPath(b.deps.ProjectDir, dir)
	return nil
}

// Commands returns doctrine:fixtures:load.
func (b *DoctrineFixtures) Commands() []*cobra.Command {
	var appendMode bool

	cmd := &cobra.Command{
		Use:   "doctrine:fixtures:load",
		Short: "Load data fixtures into the database",
		Long: `Load every *.yaml file of the fixtures directory, in name order.

Tables named in the fixtures are purged first unless --append is given.
The whole load runs in one transaction.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := b.deps.Boot(cmd.Context()); err != nil {
				return err
			}
			fixtures, err := ReadFixtures(b.Dir)
			if err != nil {
				return err
			}
			n, err := LoadFixtures(cmd.Context(), b.db.DB, fixtures, appendMode)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "loaded %d rows from %d tables\n", n, len(fixtures))
			return nil
		},
	}
	cmd.Flags().BoolVar(&appendMode, "append", false, "Append the data instead of purging the tables first")
	return []*cobra.Command{cmd}
}

// ReadFixtures reads every *.yaml file of dir in name order.
func ReadFixtures(dir string) ([]Fixture, error) {
	files, err := filepath.Glob(filepath.Join(dir, "*.yaml"))
	if err != nil {
		return nil, fmt.Errorf("glob fixtures: %w", err)
	}
	if len(files) == 0 {
		if _, err := os.Stat(dir); errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("fixtures directory %s does not exist", dir)
		}
	}
	sort.Strings(files)

	var out []Fixture
	for _, f := range files {
		data, err := os.ReadFile(f)
		if err != nil {
			return nil, fmt.Errorf("read fixture: %w", err)
		}
		fixtures, err := parseFixtures(data)
		if err != nil {
			return nil, fmt.Errorf("fixture %s: %w", filepath.Base(f), err)
		}
		out = append(out, fixtures...)
	}
	return out, nil
}

func parseFixtures(data []byte) ([]Fixture, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse yaml: %w", err)
	}
	if len(doc.Content) == 0 {
		return nil, nil
	}
	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("root must be a mapping of table names")
	}

	// Walk the node so tables keep their file order.
	var out []Fixture
	for i := 0; i+1 < len(root.Content); i += 2 {
		table := root.Content[i].Value
		if !identifierPattern.MatchString(table) {
			return nil, fmt.Errorf("invalid table name %q", table)
		}
		var rows []map[string]any
		if err := root.Content[i+1].Decode(&rows); err != nil {
			return nil, fmt.Errorf("table %s: rows must be a list of mappings: %w", table, err)
		}
		for _, row := range rows {
			for col := range row {
				if !identifierPattern.MatchString(col) {
					return nil, fmt.Errorf("table %s: invalid column name %q", table, col)
				}
			}
		}
		out = append(out, Fixture{Table: table, Rows: rows})
	}
	return out, nil
}

// LoadFixtures inserts fixtures in one transaction and returns the number
// of rows inserted. Unless appendMode is set, every table is purged first,
// in reverse order so that child tables empty before their parents.
func LoadFixtures(ctx context.Context, db *sql.DB, fixtures []Fixture, appendMode bool) (int, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if !appendMode {
		purged := make(map[string]bool)
		for i := len(fixtures) - 1; i >= 0; i-- {
			table := fixtures[i].Table
			if purged[table] {
				continue
			}
			purged[table] = true
			if _, err := tx.ExecContext(ctx, `DELETE FROM "`+table+`"`); err != nil {
				return 0, fmt.Errorf("purge %s: %w", table, err)
			}
		}
	}

	n := 0
	for _, f := range fixtures {
		for i, row := range f.Rows {
			cols := make([]string, 0, len(row))
			for col := range row {
				cols = append(cols, col)
			}
			sort.Strings(cols)

			quoted := make([]string, len(cols))
			args := make([]any, len(cols))
			for j, col := range cols {
				quoted[j] = `"` + col + `"`
				args[j] = row[col]
			}
			query := fmt.Sprintf(`INSERT INTO "%s" (%s) VALUES (%s)`,
				f.Table, strings.Join(quoted, ", "), strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", "))

			if _, err := tx.ExecContext(ctx, query, args...); err != nil {
				return 0, fmt.Errorf("insert %s row %d: %w", f.Table, i, err)
			}
			n++
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit fixtures: %w", err)
	}
	return n, nil
}
