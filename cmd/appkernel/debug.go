package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/artpar/appkernel/domain/bundle"
	"github.com/artpar/appkernel/domain/kernel"
)

func newBundlesCmd(app *application) *cobra.Command {
	return &cobra.Command{
		Use:   "debug:bundles",
		Short: "List the bundle table and which bundles are active",
		Long: `List the bundle table and which bundles are active.

A bundle is "active" when it belongs to the shared profile or the selected
persistence profile and its rule matches the environment. Bundles of the
other persistence profile are "not registered".

Examples:
  appkernel debug:bundles
  USE_MONGODB=true appkernel debug:bundles --env test`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s := app.snapshot
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Environment: %s, persistence: %s\n\n", s.Env, s.Mode)
			writeBundles(out, app.kernel.Table(), app.kernel.Bundles(), bundle.ProfileFor(s.Mode))
			return nil
		},
	}
}

func writeBundles(out io.Writer, table bundle.Table, active []bundle.Descriptor, profile bundle.Profile) {
	on := make(map[string]bool, len(active))
	for _, d := range active {
		on[d.ID] = true
	}

	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "BUNDLE\tPROFILE\tRULE\tSTATUS")
	for _, d := range table {
		status := "inactive"
		switch {
		case on[d.ID]:
			status = "active"
		case d.Profile != bundle.ProfileShared && d.Profile != profile:
			status = "not registered"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", d.ID, d.Profile, d.Rule, status)
	}
	tw.Flush()
}

func newImportsCmd(app *application) *cobra.Command {
	var planOnly bool

	cmd := &cobra.Command{
		Use:   "debug:imports",
		Short: "Show the configuration import plan and trace",
		Long: `Show the configuration import plan and trace.

Without flags the kernel is booted and each import is listed with the
files it matched. With --plan only the ordered plan is printed; nothing
is read from disk.

Examples:
  appkernel debug:imports
  appkernel debug:imports --plan --env test`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s := app.snapshot
			out := cmd.OutOrStdout()

			if planOnly {
				tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
				fmt.Fprintln(tw, "#\tTARGET\tKIND\tRESOURCE")
				for i, imp := range kernel.Plan(s.Env, s.Mode) {
					fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", i+1, imp.Target, imp.Kind, imp.Resource)
				}
				return tw.Flush()
			}

			k, err := app.boot(cmd.Context())
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "#\tTARGET\tKIND\tRESOURCE\tFILES")
			for i, step := range k.Trace() {
				files := strings.Join(step.Files, ", ")
				switch {
				case step.Skipped:
					files = "(skipped)"
				case files == "":
					files = "-"
				}
				fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n", i+1, step.Import.Target, step.Import.Kind, step.Import.Resource, files)
			}
			return tw.Flush()
		},
	}

	cmd.Flags().BoolVar(&planOnly, "plan", false, "print the plan without booting")
	return cmd
}

func newRouterCmd(app *application) *cobra.Command {
	return &cobra.Command{
		Use:   "debug:router",
		Short: "List the route table",
		Long: `List the route table in the order routes were added.

Resource routes import another route source; they are shown with their
resource and prefix instead of a path.

Examples:
  appkernel debug:router
  appkernel debug:router --env prod`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			k, err := app.boot(cmd.Context())
			if err != nil {
				return err
			}

			routes := k.Routes()
			out := cmd.OutOrStdout()
			if len(routes) == 0 {
				fmt.Fprintln(out, "No routes defined.")
				return nil
			}

			tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "NAME\tMETHODS\tPATH\tSOURCE")
			for _, r := range routes {
				methods := "ANY"
				if len(r.Methods) > 0 {
					methods = strings.Join(r.Methods, "|")
				}
				p := r.Path
				if r.IsImport() {
					methods = "-"
					p = r.Prefix + " <- " + r.Resource
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", r.Name, methods, p, r.Source)
			}
			return tw.Flush()
		},
	}
}
