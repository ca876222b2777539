// Package sqlite provides the SQLite connection used by the relational
// persistence profile, plus its migration runner.
package sqlite

import (
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/mattn/go-sqlite3"
)

// MemoryPath is the special path of a private in-memory database.
const MemoryPath = ":memory:"

// DB wraps a SQLite database connection.
type DB struct {
	*sql.DB
	Path string
}

// Open creates a new SQLite database connection.
func Open(path string) (*DB, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// Every connection to :memory: is a separate database.
	if path == MemoryPath {
		db.SetMaxOpenConns(1)
	}

	// Set pragmas for performance
	pragmas := []string{
		"PRAGMA synchronous = NORMAL",
		"PRAGMA cache_size = -64000", // 64MB
		"PRAGMA temp_store = MEMORY",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("set pragma: %w", err)
		}
	}

	return &DB{DB: db, Path: path}, nil
}

// ParseURL extracts the database path from a DBAL style URL:
//
//	sqlite:///var/data/app.db  -> /var/data/app.db
//	sqlite:///:memory:         -> :memory:
//	sqlite://var/app.db        -> var/app.db
func ParseURL(url string) (string, error) {
	rest, ok := strings.CutPrefix(url, "sqlite://")
	if !ok {
		if strings.Contains(url, "://") {
			return "", fmt.Errorf("unsupported database url scheme in %q", url)
		}
		rest = url
	}
	if i := strings.IndexByte(rest, '?'); i >= 0 {
		rest = rest[:i]
	}
	if rest == "/"+MemoryPath || rest == MemoryPath {
		return MemoryPath, nil
	}
	if rest == "" || rest == "/" {
		return "", fmt.Errorf("database url %q has no path", url)
	}
	return rest, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.DB.Close()
}
