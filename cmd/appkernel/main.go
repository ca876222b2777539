// Package main is the console entry point of appkernel.
//
// The environment is chosen before any command runs: APP_ENV and
// USE_MONGODB are read from the process and the dotenv files, and the
// --env/-e and --no-debug flags override them. The active bundles then
// contribute their own commands.
//
//	@title			appkernel diagnostics API
//	@version		1.0
//	@description	Diagnostics endpoints of the application kernel: health, boot summary, active bundles, import trace and route table.
//
//	@license.name	MIT
//	@license.url	https://opensource.org/licenses/MIT
//
//	@host			localhost:8000
//	@BasePath		/
package main

import (
	"fmt"
	"os"
)

var (
	// Set via ldflags at build time
	version   = "dev"
	commit    = "none"
	buildDate = "unknown"
)

func main() {
	app, err := newApplication(os.Args[1:], nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error initializing: %v\n", err)
		os.Exit(1)
	}

	if err := newRootCmd(app).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
