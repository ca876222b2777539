package bundles

import (
	"context"
	"fmt"
	"os"

	"github.com/artpar/appkernel/domain/bundle"
	"github.com/artpar/appkernel/ports"
)

// ServiceTemplatePaths lists the template directories, default path first.
const ServiceTemplatePaths = "twig.paths"

// Twig is TwigBundle. It resolves template directories; rendering is out
// of scope for the kernel.
type Twig struct {
	base
	Paths []string
}

// NewTwig creates TwigBundle.
func NewTwig(deps Deps) ports.Bundle {
	return &Twig{base: newBase(bundle.Twig, deps)}
}

// Boot resolves twig.default_path and twig.paths. With strict_paths every
// directory must exist.
func (b *Twig) Boot(_ context.Context, c ports.Services) error {
	s := newSettings("twig", c.Extension("twig"))
	defaultPath := s.String("default_path", "templates")
	extra := s.Strings("paths", nil)
	strict := s.Bool("strict_paths", false)
	if err := s.Err(); err != nil {
		return err
	}

	b.Paths = b.Paths[:0]
	for _, p := range append([]string{defaultPath}, extra...) {
		abs := projectPath(b.deps.ProjectDir, p)
		info, err := os.Stat(abs)
		switch {
		case err == nil && !info.IsDir():
			return fmt.Errorf("twig path %s is not a directory", abs)
		case err != nil && strict:
			return fmt.Errorf("twig path %s: %w", abs, err)
		case err != nil:
			b.logger.Debug().Str("path", abs).Msg("template directory does not exist")
		}
		b.Paths = append(b.Paths, abs)
	}

	c.Set(ServiceTemplatePaths, b.Paths)
	return nil
}
