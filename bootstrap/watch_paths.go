package bootstrap

import (
	"os"
	"path"
	"path/filepath"
	"sort"

	"github.com/artpar/appkernel/domain/kernel"
)

// WatchPaths returns the existing directories whose changes can alter
// the next boot: the project directory (dotenv files), the config root,
// the directory of every planned import and of every loaded file.
func (k *Kernel) WatchPaths() []string {
	seen := make(map[string]bool)
	add := func(dir string) {
		if seen[dir] {
			return
		}
		if info, err := os.Stat(dir); err != nil || !info.IsDir() {
			return
		}
		seen[dir] = true
	}

	if k.snapshot.ProjectDir != "" {
		add(filepath.Clean(k.snapshot.ProjectDir))
	}
	add(k.locator.Root())

	for _, imp := range kernel.Plan(k.snapshot.Env, k.snapshot.Mode) {
		dir := path.Dir(imp.Resource)
		// A missing per-environment directory is seen through its parent.
		for {
			p := k.locator.Path(dir)
			if info, err := os.Stat(p); err == nil && info.IsDir() {
				add(p)
				break
			}
			if dir == "." || dir == "/" {
				break
			}
			dir = path.Dir(dir)
		}
	}

	for _, f := range k.Trace().Files() {
		add(filepath.Dir(k.locator.Path(f)))
	}

	out := make([]string, 0, len(seen))
	for dir := range seen {
		out = append(out, dir)
	}
	sort.Strings(out)
	return out
}
