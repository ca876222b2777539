package sqlite_test

import (
	"errors"
	"path/filepath"
	"testing"
	"testing/fstest"

	"github.com/artpar/appkernel/adapters/sqlite"
)

func openTestDB(t *testing.T) *sqlite.DB {
	t.Helper()
	db, err := sqlite.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func migrations() fstest.MapFS {
	return fstest.MapFS{
		"migrations/1_users.up.sql":   {Data: []byte("CREATE TABLE users (id INTEGER PRIMARY KEY, email TEXT NOT NULL);")},
		"migrations/1_users.down.sql": {Data: []byte("DROP TABLE users;")},
		"migrations/2_posts.up.sql":   {Data: []byte("CREATE TABLE posts (id INTEGER PRIMARY KEY, user_id INTEGER REFERENCES users(id));")},
		"migrations/2_posts.down.sql": {Data: []byte("DROP TABLE posts;")},
		"migrations/10_tags.up.sql":   {Data: []byte("CREATE TABLE tags (name TEXT PRIMARY KEY);")},
		"migrations/10_tags.down.sql": {Data: []byte("DROP TABLE tags;")},
		"migrations/README.md":        {Data: []byte("not a migration")},
	}
}

func TestParseURL(t *testing.T) {
	tests := []struct {
		url     string
		want    string
		wantErr bool
	}{
		{"sqlite:///var/data/app.db", "/var/data/app.db", false},
		{"sqlite:///:memory:", ":memory:", false},
		{"sqlite://:memory:", ":memory:", false},
		{"sqlite://var/app.db?mode=rwc", "var/app.db", false},
		{"data.db", "data.db", false},
		{"mysql://root@localhost/app", "", true},
		{"sqlite://", "", true},
	}

	for _, tt := range tests {
		got, err := sqlite.ParseURL(tt.url)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseURL(%q) error = %v, wantErr %v", tt.url, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseURL(%q) = %q, want %q", tt.url, got, tt.want)
		}
	}
}

func TestOpen_Memory(t *testing.T) {
	db, err := sqlite.Open(sqlite.MemoryPath)
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	if _, err := db.Exec("CREATE TABLE t (v INTEGER)"); err != nil {
		t.Fatal(err)
	}
	if _, err := db.Exec("INSERT INTO t VALUES (1)"); err != nil {
		t.Fatalf("table not visible on the next statement: %v", err)
	}
}

func TestMigrator_UpAndStatus(t *testing.T) {
	db := openTestDB(t)

	m, err := sqlite.NewMigrator(db, migrations(), "migrations", "")
	if err != nil {
		t.Fatalf("NewMigrator: %v", err)
	}

	st, err := m.Status()
	if err != nil {
		t.Fatal(err)
	}
	if st.Current != 0 || st.Latest != 10 || st.Pending != 3 {
		t.Errorf("Status before = %+v, want current 0 latest 10 pending 3", st)
	}

	changed, err := m.Up()
	if err != nil {
		t.Fatalf("Up: %v", err)
	}
	if !changed {
		t.Error("Up reported no change on a fresh database")
	}

	st, err = m.Status()
	if err != nil {
		t.Fatal(err)
	}
	if st.Current != 10 || st.Pending != 0 || st.Dirty {
		t.Errorf("Status after = %+v", st)
	}

	if _, err := db.Exec("INSERT INTO users (email) VALUES ('a@example.com')"); err != nil {
		t.Errorf("users table missing: %v", err)
	}

	changed, err = m.Up()
	if err != nil || changed {
		t.Errorf("second Up = %v, %v; want no change", changed, err)
	}
}

func TestMigrator_CustomTable(t *testing.T) {
	db := openTestDB(t)

	m, err := sqlite.NewMigrator(db, migrations(), "migrations", "doctrine_migration_versions")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := m.Up(); err != nil {
		t.Fatal(err)
	}

	var n int
	if err := db.QueryRow("SELECT COUNT(*) FROM doctrine_migration_versions").Scan(&n); err != nil {
		t.Errorf("version table not created: %v", err)
	}
}

func TestMigrator_FailedMigration(t *testing.T) {
	db := openTestDB(t)
	fsys := fstest.MapFS{
		"m/1_bad.up.sql":   {Data: []byte("CREATE TABLE;")},
		"m/1_bad.down.sql": {Data: []byte("")},
	}

	m, err := sqlite.NewMigrator(db, fsys, "m", "")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := m.Up(); err == nil {
		t.Fatal("Up succeeded with invalid SQL")
	}
	if _, err := m.Up(); !errors.Is(err, sqlite.ErrDirty) {
		t.Errorf("second Up error = %v, want ErrDirty", err)
	}
}

func TestNewMigrator_MissingDir(t *testing.T) {
	db := openTestDB(t)
	if _, err := sqlite.NewMigrator(db, fstest.MapFS{}, "nope", ""); err == nil {
		t.Error("NewMigrator succeeded without a migration directory")
	}
}
