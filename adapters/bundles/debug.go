package bundles

import (
	"context"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/artpar/appkernel/core/container"
	"github.com/artpar/appkernel/domain/bundle"
	"github.com/artpar/appkernel/ports"
)

// Debug is DebugBundle. It adds container inspection commands.
type Debug struct {
	base
	MaxItems int
}

// NewDebug creates DebugBundle.
func NewDebug(deps Deps) ports.Bundle {
	return &Debug{base: newBase(bundle.Debug, deps)}
}

// Boot reads debug.max_items.
func (b *Debug) Boot(_ context.Context, c ports.Services) error {
	s := newSettings("debug", c.Extension("debug"))
	b.MaxItems = s.Int("max_items", 2500)
	return s.Err()
}

// Commands returns debug:container and debug:config.
func (b *Debug) Commands() []*cobra.Command {
	var showParams bool

	containerCmd := &cobra.Command{
		Use:   "debug:container",
		Short: "List service definitions, runtime services and parameters",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := b.deps.Boot(cmd.Context())
			if err != nil {
				return err
			}
			if showParams {
				return WriteParameters(cmd.OutOrStdout(), c)
			}
			return WriteServices(cmd.OutOrStdout(), c)
		},
	}
	containerCmd.Flags().BoolVar(&showParams, "parameters", false, "List parameters instead of services")

	configCmd := &cobra.Command{
		Use:   "debug:config [extension]",
		Short: "Dump the resolved configuration of an extension",
		Long: `Dump the resolved configuration of an extension as YAML.

Without an argument, lists the configured extensions.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := b.deps.Boot(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(args) == 0 {
				for _, name := range c.Extensions() {
					fmt.Fprintln(out, name)
				}
				return nil
			}
			if !c.HasExtension(args[0]) {
				return fmt.Errorf("no extension with alias %q is configured", args[0])
			}
			return WriteExtension(out, args[0], c.Extension(args[0]))
		},
	}

	return []*cobra.Command{containerCmd, configCmd}
}

// WriteServices prints definitions and runtime services as a table.
func WriteServices(w io.Writer, c *container.Container) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "SERVICE ID\tCLASS / ALIAS\tSOURCE")
	for _, d := range c.Definitions() {
		target := d.Class
		if d.IsAlias() {
			target = "alias for " + d.Alias
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\n", d.ID, target, d.Source)
	}
	for _, id := range c.ServiceIDs() {
		svc, _ := c.Get(id)
		fmt.Fprintf(tw, "%s\t%T\t(runtime)\n", id, svc)
	}
	return tw.Flush()
}

// WriteParameters prints resolved parameters as a table.
func WriteParameters(w io.Writer, c *container.Container) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "PARAMETER\tVALUE")
	for _, name := range c.ParameterNames() {
		v, _ := c.Parameter(name)
		fmt.Fprintf(tw, "%s\t%s\n", name, inline(v))
	}
	return tw.Flush()
}

// WriteExtension prints one extension config as YAML.
func WriteExtension(w io.Writer, name string, cfg map[string]any) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(4)
	if err := enc.Encode(map[string]any{name: cfg}); err != nil {
		return fmt.Errorf("encode %s: %w", name, err)
	}
	return enc.Close()
}

func inline(v any) string {
	switch v.(type) {
	case map[string]any, []any:
		out, err := yaml.Marshal(v)
		if err != nil {
			return fmt.Sprint(v)
		}
		return strings.Join(strings.Fields(strings.TrimSpace(string(out))), " ")
	case nil:
		return "null"
	default:
		return fmt.Sprint(v)
	}
}
