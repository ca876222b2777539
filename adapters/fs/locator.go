// Package fs provides filesystem implementations of the configuration ports.
package fs

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/artpar/appkernel/ports"
)

// ErrOutsideRoot is returned for a path that resolves outside the
// configuration root.
var ErrOutsideRoot = errors.New("path outside configuration root")

// Locator resolves resources under a configuration directory. Glob and
// Exists refuse paths outside the root.
type Locator struct {
	root string
}

// NewLocator creates a locator rooted at dir.
func NewLocator(dir string) (*Locator, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("absolute path: %w", err)
	}
	return &Locator{root: abs}, nil
}

// Root returns the absolute configuration root.
func (l *Locator) Root() string {
	return l.root
}

// Path joins a slash-separated resource onto the root. Absolute resources
// are cleaned and returned as-is; Glob and Exists confine them.
func (l *Locator) Path(resource string) string {
	if filepath.IsAbs(resource) {
		return filepath.Clean(resource)
	}
	return filepath.Join(l.root, filepath.FromSlash(resource))
}

// Glob returns the regular files matching pattern, sorted lexically.
func (l *Locator) Glob(pattern string) ([]string, error) {
	full := l.Path(pattern)
	if !l.within(full) {
		return nil, fmt.Errorf("glob %s: %w", pattern, ErrOutsideRoot)
	}
	matches, err := filepath.Glob(full)
	if err != nil {
		return nil, fmt.Errorf("glob %s: %w", pattern, err)
	}

	files := matches[:0]
	for _, m := range matches {
		info, err := os.Stat(m)
		if err != nil {
			return nil, fmt.Errorf("stat %s: %w", m, err)
		}
		if info.Mode().IsRegular() {
			files = append(files, m)
		}
	}

	sort.Strings(files)
	return files, nil
}

// Exists reports whether a regular file exists at path.
// A missing file is not an error; any other stat failure is.
func (l *Locator) Exists(path string) (bool, error) {
	if !l.within(filepath.Clean(path)) {
		return false, fmt.Errorf("stat %s: %w", path, ErrOutsideRoot)
	}
	info, err := os.Stat(path)
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("stat %s: %w", path, err)
	}
	return info.Mode().IsRegular(), nil
}

func (l *Locator) within(p string) bool {
	rel, err := filepath.Rel(l.root, p)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// Ensure interface compliance.
var _ ports.Locator = (*Locator)(nil)
