package bundles_test

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/artpar/appkernel/adapters/bundles"
	"github.com/artpar/appkernel/adapters/sqlite"
	"github.com/artpar/appkernel/core/container"
	"github.com/artpar/appkernel/ports"
)

func bootDoctrine(t *testing.T, deps bundles.Deps, c *container.Container) ports.Bundle {
	t.Helper()
	b := bundles.NewDoctrine(deps)
	if err := b.Boot(context.Background(), c); err != nil {
		t.Fatalf("DoctrineBundle Boot() error = %v", err)
	}
	t.Cleanup(func() { b.Shutdown(context.Background()) })
	return b
}

func TestDoctrine_Boot(t *testing.T) {
	deps := testDeps(t, "dev")
	c := compile(t, "doctrine: { dbal: { url: 'sqlite:///:memory:' } }")

	b := bundles.NewDoctrine(deps).(*bundles.Doctrine)
	if err := b.Boot(context.Background(), c); err != nil {
		t.Fatalf("Boot() error = %v", err)
	}

	svc, ok := c.Get(bundles.ServiceDatabaseConnection)
	if !ok {
		t.Fatal("database_connection not registered")
	}
	if svc.(*sqlite.DB) != b.DB {
		t.Error("registered connection differs from the bundle's")
	}
	if err := b.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown() error = %v", err)
	}
	if b.DB != nil {
		t.Error("DB not cleared by Shutdown")
	}
	// A second shutdown is a no-op.
	if err := b.Shutdown(context.Background()); err != nil {
		t.Errorf("second Shutdown() error = %v", err)
	}
}

func TestDoctrine_RelativePath(t *testing.T) {
	deps := testDeps(t, "dev")
	c := compile(t, "doctrine: { dbal: { url: 'sqlite://var/data/app.db' } }")

	b := bootDoctrine(t, deps, c).(*bundles.Doctrine)
	if want := filepath.Join(deps.ProjectDir, "var", "data", "app.db"); b.DB.Path != want {
		t.Errorf("Path = %s, want %s", b.DB.Path, want)
	}
}

func TestDoctrine_BootErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{"missing url", "doctrine: { dbal: {} }"},
		{"no extension", "framework: ~"},
		{"wrong scheme", "doctrine: { dbal: { url: 'mysql://localhost/app' } }"},
		{"dbal not a mapping", "doctrine: { dbal: sqlite }"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := bundles.NewDoctrine(testDeps(t, "dev"))
			if err := b.Boot(context.Background(), compile(t, tt.src)); err == nil {
				t.Error("Boot() should fail")
			}
		})
	}
}

func TestDoctrineMigrations_RequiresConnection(t *testing.T) {
	b := bundles.NewDoctrineMigrations(testDeps(t, "dev"))
	err := b.Boot(context.Background(), compile(t, "doctrine_migrations: ~"))
	if err == nil || !strings.Contains(err.Error(), "DoctrineBundle") {
		t.Fatalf("Boot() error = %v", err)
	}
}

func TestDoctrineMigrations_NoDirectory(t *testing.T) {
	deps := testDeps(t, "dev")
	c := compile(t, "doctrine: { dbal: { url: 'sqlite:///:memory:' } }")
	bootDoctrine(t, deps, c)

	b := bundles.NewDoctrineMigrations(deps).(*bundles.DoctrineMigrations)
	if err := b.Boot(context.Background(), c); err != nil {
		t.Fatalf("Boot() error = %v", err)
	}
	if b.Migrator != nil {
		t.Error("Migrator set without a migrations directory")
	}
	if _, ok := c.Get(bundles.ServiceMigrator); ok {
		t.Error("migrator registered without a migrations directory")
	}
}

func writeMigrations(t *testing.T, dir string) {
	t.Helper()
	files := map[string]string{
		"1_users.up.sql":   "CREATE TABLE users (id INTEGER PRIMARY KEY, email TEXT NOT NULL);",
		"1_users.down.sql": "DROP TABLE users;",
		"2_posts.up.sql":   "CREATE TABLE posts (id INTEGER PRIMARY KEY, user_id INTEGER REFERENCES users(id), title TEXT);",
		"2_posts.down.sql": "DROP TABLE posts;",
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	for name, sql := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(sql), 0o644); err != nil {
			t.Fatal(err)
		}
	}
}

func TestDoctrineMigrations_MigrateOnBoot(t *testing.T) {
	deps := testDeps(t, "dev")
	writeMigrations(t, filepath.Join(deps.ProjectDir, "migrations"))

	c := compile(t, `
doctrine: { dbal: { url: 'sqlite://var/app.db' } }
doctrine_migrations: { migrate_on_boot: true }
`)
	db := bootDoctrine(t, deps, c).(*bundles.Doctrine).DB

	b := bundles.NewDoctrineMigrations(deps).(*bundles.DoctrineMigrations)
	if err := b.Boot(context.Background(), c); err != nil {
		t.Fatalf("Boot() error = %v", err)
	}

	st, err := b.Migrator.Status()
	if err != nil {
		t.Fatalf("Status() error = %v", err)
	}
	if st.Current != 2 || st.Pending != 0 {
		t.Errorf("Status() = %+v", st)
	}

	var n int
	if err := db.QueryRow(`SELECT COUNT(*) FROM doctrine_migration_versions`).Scan(&n); err != nil {
		t.Fatalf("query version table: %v", err)
	}
	if n != 1 {
		t.Errorf("version rows = %d", n)
	}
}

func TestDoctrineMigrations_Commands(t *testing.T) {
	deps := testDeps(t, "dev")
	writeMigrations(t, filepath.Join(deps.ProjectDir, "db", "migrations"))

	c := compile(t, `
doctrine: { dbal: { url: 'sqlite://var/app.db' } }
doctrine_migrations: { migrations_path: db/migrations }
`)
	bootDoctrine(t, deps, c)

	deps.Boot = func(context.Context) (*container.Container, error) { return c, nil }
	b := bundles.NewDoctrineMigrations(deps).(*bundles.DoctrineMigrations)
	if err := b.Boot(context.Background(), c); err != nil {
		t.Fatalf("Boot() error = %v", err)
	}

	run := func(name string) string {
		t.Helper()
		for _, cmd := range b.Commands() {
			if cmd.Name() != name {
				continue
			}
			var out bytes.Buffer
			cmd.SetOut(&out)
			cmd.SetArgs(nil)
			if err := cmd.ExecuteContext(context.Background()); err != nil {
				t.Fatalf("%s error = %v", name, err)
			}
			return out.String()
		}
		t.Fatalf("command %s not found", name)
		return ""
	}

	if out := run("doctrine:migrations:status"); !strings.Contains(out, "Pending:         2") {
		t.Errorf("status before migrate:\n%s", out)
	}
	if out := run("doctrine:migrations:migrate"); !strings.Contains(out, "Migrated to version 2.") {
		t.Errorf("migrate:\n%s", out)
	}
	if out := run("doctrine:migrations:migrate"); !strings.Contains(out, "Already at the latest version.") {
		t.Errorf("second migrate:\n%s", out)
	}
}

func TestReadFixtures(t *testing.T) {
	dir := t.TempDir()
	files := map[string]string{
		"02_posts.yaml": "posts:\n  - { id: 1, user_id: 1, title: Hello }\n",
		"01_users.yaml": "users:\n  - { id: 1, email: admin@example.com }\n  - { id: 2, email: user@example.com }\n",
		"notes.txt":     "ignored",
	}
	for name, data := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(data), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	fixtures, err := bundles.ReadFixtures(dir)
	if err != nil {
		t.Fatalf("ReadFixtures() error = %v", err)
	}
	if len(fixtures) != 2 || fixtures[0].Table != "users" || fixtures[1].Table != "posts" {
		t.Fatalf("fixtures = %+v", fixtures)
	}
	if len(fixtures[0].Rows) != 2 {
		t.Errorf("users rows = %d", len(fixtures[0].Rows))
	}
}

func TestReadFixtures_Errors(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"scalar root", "users"},
		{"bad table name", "\"users; DROP\":\n  - { id: 1 }\n"},
		{"bad column name", "users:\n  - { \"id)\": 1 }\n"},
		{"rows not a list", "users: { id: 1 }\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			if err := os.WriteFile(filepath.Join(dir, "f.yaml"), []byte(tt.data), 0o644); err != nil {
				t.Fatal(err)
			}
			if _, err := bundles.ReadFixtures(dir); err == nil {
				t.Error("ReadFixtures() should fail")
			}
		})
	}

	if _, err := bundles.ReadFixtures(filepath.Join(t.TempDir(), "missing")); err == nil {
		t.Error("ReadFixtures() should fail for a missing directory")
	}
}

func TestLoadFixtures(t *testing.T) {
	db, err := sqlite.Open(sqlite.MemoryPath)
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	if _, err := db.Exec(`CREATE TABLE users (id INTEGER PRIMARY KEY, email TEXT NOT NULL)`); err != nil {
		t.Fatal(err)
	}

	fixtures := []bundles.Fixture{{
		Table: "users",
		Rows: []map[string]any{
			{"id": 1, "email": "a@example.com"},
			{"id": 2, "email": "b@example.com"},
		},
	}}

	ctx := context.Background()
	for i := 0; i < 2; i++ {
		n, err := bundles.LoadFixtures(ctx, db.DB, fixtures, false)
		if err != nil {
			t.Fatalf("LoadFixtures() run %d error = %v", i, err)
		}
		if n != 2 {
			t.Errorf("inserted = %d", n)
		}
	}

	// Append mode keeps existing rows, so the same ids collide.
	if _, err := bundles.LoadFixtures(ctx, db.DB, fixtures, true); err == nil {
		t.Error("LoadFixtures(append) should fail on duplicate ids")
	}

	var count int
	if err := db.QueryRow(`SELECT COUNT(*) FROM users`).Scan(&count); err != nil {
		t.Fatal(err)
	}
	if count != 2 {
		t.Errorf("rows after failed append = %d, want 2 (rolled back)", count)
	}
}

func TestDoctrineFixtures_Command(t *testing.T) {
	deps := testDeps(t, "test")
	fixturesDir := filepath.Join(deps.ProjectDir, "fixtures")
	if err := os.MkdirAll(fixturesDir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(fixturesDir, "users.yaml"),
		[]byte("users:\n  - { id: 1, email: admin@example.com }\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	c := compile(t, "doctrine: { dbal: { url: 'sqlite:///:memory:' } }")
	db := bootDoctrine(t, deps, c).(*bundles.Doctrine).DB
	if _, err := db.Exec(`CREATE TABLE users (id INTEGER PRIMARY KEY, email TEXT)`); err != nil {
		t.Fatal(err)
	}

	deps.Boot = func(context.Context) (*container.Container, error) { return c, nil }
	b := bundles.NewDoctrineFixtures(deps).(*bundles.DoctrineFixtures)
	if err := b.Boot(context.Background(), c); err != nil {
		t.Fatalf("Boot() error = %v", err)
	}

	var out bytes.Buffer
	cmd := b.Commands()[0]
	cmd.SetOut(&out)
	cmd.SetArgs(nil)
	if err := cmd.ExecuteContext(context.Background()); err != nil {
		t.Fatalf("doctrine:fixtures:load error = %v", err)
	}
	if !strings.Contains(out.String(), "loaded 1 rows from 1 tables") {
		t.Errorf("output = %s", out.String())
	}
}

func TestDoctrineMongoDB_Boot(t *testing.T) {
	c := compile(t, `
doctrine_mongodb:
    connections:
        default:
            server: 'mongodb://localhost:27017'
            connect_timeout: 2s
    default_database: app
`)

	b := bundles.NewDoctrineMongoDB(testDeps(t, "dev")).(*bundles.DoctrineMongoDB)
	if err := b.Boot(context.Background(), c); err != nil {
		t.Fatalf("Boot() error = %v", err)
	}
	if got := b.Conn.Database.Name(); got != "app" {
		t.Errorf("database = %s", got)
	}
	if _, ok := c.Get(bundles.ServiceMongoConnection); !ok {
		t.Error("connection not registered")
	}
	if err := b.Shutdown(context.Background()); err != nil {
		t.Errorf("Shutdown() error = %v", err)
	}
}

func TestDoctrineMongoDB_BootErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{"missing server", "doctrine_mongodb: { default_database: app }"},
		{"invalid uri", "doctrine_mongodb: { connections: { default: { server: 'http://x' } }, default_database: app }"},
		{"no database", "doctrine_mongodb: { connections: { default: { server: 'mongodb://localhost:27017' } } }"},
		{"bad timeout", "doctrine_mongodb: { connections: { default: { server: 'mongodb://localhost/app', connect_timeout: soon } } }"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := bundles.NewDoctrineMongoDB(testDeps(t, "dev"))
			if err := b.Boot(context.Background(), compile(t, tt.src)); err == nil {
				t.Error("Boot() should fail")
			}
		})
	}
}
