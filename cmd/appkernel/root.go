package main

import (
	"github.com/spf13/cobra"
)

func newRootCmd(app *application) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "appkernel",
		Short: "Application kernel: bundle registry and configuration loader",
		Long: `appkernel boots an application from a directory of YAML fragments.

The environment (APP_ENV, default dev) and the persistence toggle
(USE_MONGODB, "true" selects the document stack) decide which bundles
are active and which configuration files are imported.

Quick start:
  appkernel validate        # Boot once and report
  appkernel serve           # Boot and serve diagnostics

Inspection:
  appkernel debug:bundles   # Bundle table and activation
  appkernel debug:imports   # Import plan and trace
  appkernel debug:router    # Route table`,
		SilenceUsage: true,
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return app.kernel.Shutdown(cmd.Context())
		},
	}

	// Read before the kernel is created; declared so cobra accepts them.
	rootCmd.PersistentFlags().StringP("env", "e", app.snapshot.Env, "environment name")
	rootCmd.PersistentFlags().Bool("no-debug", false, "disable debug mode")

	rootCmd.AddCommand(
		newServeCmd(app),
		newValidateCmd(app),
		newBundlesCmd(app),
		newImportsCmd(app),
		newRouterCmd(app),
		newVersionCmd(),
	)
	rootCmd.AddCommand(app.kernel.Commands()...)

	return rootCmd
}
