// Package ports defines interfaces (contracts) between layers.
// These interfaces enable dependency injection and testability.
// Implementations live in adapters/.
package ports

import (
	"context"
	"time"
)

// -----------------------------------------------------------------------------
// Infrastructure Ports
// -----------------------------------------------------------------------------

// Clock abstracts time for testability.
type Clock interface {
	Now() time.Time
}

// IDGenerator generates unique identifiers.
type IDGenerator interface {
	New() string
}

// PasswordHasher hashes and verifies passwords.
type PasswordHasher interface {
	Hash(plaintext string) ([]byte, error)
	Compare(hash []byte, plaintext string) bool
	NeedsRehash(hash []byte) bool
}

// -----------------------------------------------------------------------------
// Configuration Ports
// -----------------------------------------------------------------------------

// Locator resolves import resources relative to a configuration root.
type Locator interface {
	// Root returns the absolute configuration root.
	Root() string

	// Path joins a slash-separated resource onto the root.
	Path(resource string) string

	// Glob returns regular files matching a slash-separated pattern,
	// sorted lexically. No match is not an error.
	Glob(pattern string) ([]string, error)

	// Exists reports whether a regular file exists at path. Paths outside
	// the root are an error.
	Exists(path string) (bool, error)
}

// FragmentReader decodes one configuration file into a mapping.
type FragmentReader interface {
	Read(path string) (map[string]any, error)
}

// Sink receives decoded fragments in import order.
type Sink interface {
	Merge(source string, doc map[string]any) error
}

// -----------------------------------------------------------------------------
// Bundle Ports
// -----------------------------------------------------------------------------

// Services is the compiled container as seen by bundles.
type Services interface {
	// Parameter returns a resolved parameter.
	Parameter(name string) (any, bool)

	// Extension returns the merged, resolved configuration of a bundle
	// extension (for example "doctrine"). Missing extensions return nil.
	Extension(name string) map[string]any

	// Set registers a runtime service instance.
	Set(id string, service any)

	// Get returns a runtime service instance.
	Get(id string) (any, bool)
}

// Bundle is a unit of configuration and services booted by the kernel.
type Bundle interface {
	// Name returns the bundle identifier from the bundle table.
	Name() string

	// Boot configures the bundle from the compiled container.
	Boot(ctx context.Context, c Services) error

	// Shutdown releases resources acquired in Boot.
	Shutdown(ctx context.Context) error
}
