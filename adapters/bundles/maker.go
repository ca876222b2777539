package bundles

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"github.com/spf13/cobra"

	"github.com/artpar/appkernel/domain/bundle"
	"github.com/artpar/appkernel/ports"
)

var packageNamePattern = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

// Maker is MakerBundle. It scaffolds configuration files.
type Maker struct {
	base
	RootNamespace string
}

// NewMaker creates MakerBundle.
func NewMaker(deps Deps) ports.Bundle {
	return &Maker{base: newBase(bundle.Maker, deps)}
}

// Boot reads maker.root_namespace.
func (b *Maker) Boot(_ context.Context, c ports.Services) error {
	s := newSettings("maker", c.Extension("maker"))
	b.RootNamespace = s.String("root_namespace", "App")
	return s.Err()
}

// Commands returns make:package-config.
func (b *Maker) Commands() []*cobra.Command {
	var env string
	var force bool

	cmd := &cobra.Command{
		Use:   "make:package-config <extension>",
		Short: "Create a package configuration file",
		Long: `Create config/packages/<extension>.yaml with an empty extension block.

Use --for-env to create the file under config/packages/<env>/ instead.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := MakePackageConfig(b.deps.ConfigDir, args[0], env, force)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created: %s\n", path)
			return nil
		},
	}
	cmd.Flags().StringVar(&env, "for-env", "", "Environment directory to create the file in")
	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing file")
	return []*cobra.Command{cmd}
}

// MakePackageConfig writes a skeleton package file and returns its path.
func MakePackageConfig(configDir, name, env string, force bool) (string, error) {
	if !packageNamePattern.MatchString(name) {
		return "", fmt.Errorf("extension name %q must match %s", name, packageNamePattern)
	}
	dir := filepath.Join(configDir, "packages")
	if env != "" {
		if !packageNamePattern.MatchString(env) {
			return "", fmt.Errorf("environment name %q must match %s", env, packageNamePattern)
		}
		dir = filepath.Join(dir, env)
	}
	path := filepath.Join(dir, name+".yaml")

	if _, err := os.Stat(path); err == nil && !force {
		return "", fmt.Errorf("%s already exists (use --force to overwrite)", path)
	} else if err != nil && !errors.Is(err, os.ErrNotExist) {
		return "", fmt.Errorf("stat %s: %w", path, err)
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create directory: %w", err)
	}
	content := fmt.Sprintf("%s:\n    # Configuration for the %s extension.\n", name, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return "", fmt.Errorf("write %s: %w", path, err)
	}
	return path, nil
}
