package main

import (
	"context"
	"os"

	"github.com/rs/zerolog"

	"github.com/artpar/appkernel/bootstrap"
	"github.com/artpar/appkernel/config"
)

// application holds what every command shares: the startup snapshot and
// a kernel that boots on first use.
type application struct {
	opts     config.Options
	snapshot config.Snapshot
	logger   zerolog.Logger
	kernel   *bootstrap.Kernel
}

// newApplication scans args for the environment flags, loads the snapshot
// and creates the kernel. environ replaces os.Environ() when non-nil.
func newApplication(args []string, environ []string) (*application, error) {
	opts := config.ScanArgs(args)
	opts.Environ = environ

	s, err := config.Load(opts)
	if err != nil {
		return nil, err
	}
	logger := bootstrap.NewLogger(s, os.Stderr)

	k, err := bootstrap.New(s, logger)
	if err != nil {
		return nil, err
	}

	return &application{
		opts:     opts,
		snapshot: s,
		logger:   logger,
		kernel:   k,
	}, nil
}

// build reloads the snapshot and creates a fresh kernel. Used by the
// watcher, so that dotenv edits take effect on reload.
func (a *application) build(opts ...bootstrap.Option) bootstrap.BuildFunc {
	return func() (*bootstrap.Kernel, error) {
		s, err := config.Load(a.opts)
		if err != nil {
			return nil, err
		}
		return bootstrap.New(s, a.logger, opts...)
	}
}

// boot boots the shared kernel.
func (a *application) boot(ctx context.Context) (*bootstrap.Kernel, error) {
	if err := a.kernel.Boot(ctx); err != nil {
		return nil, err
	}
	return a.kernel, nil
}
