// Package bootstrap builds and boots the kernel: it resolves the active
// bundles, loads the configuration fragments in plan order, compiles the
// container and boots every bundle against it.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/artpar/appkernel/adapters/bundles"
	"github.com/artpar/appkernel/adapters/clock"
	"github.com/artpar/appkernel/adapters/fs"
	apihttp "github.com/artpar/appkernel/adapters/http"
	"github.com/artpar/appkernel/adapters/idgen"
	"github.com/artpar/appkernel/adapters/metrics"
	"github.com/artpar/appkernel/config"
	"github.com/artpar/appkernel/core/container"
	"github.com/artpar/appkernel/core/events"
	"github.com/artpar/appkernel/core/loader"
	"github.com/artpar/appkernel/core/routing"
	"github.com/artpar/appkernel/domain/bundle"
	"github.com/artpar/appkernel/domain/kernel"
	"github.com/artpar/appkernel/domain/persistence"
	"github.com/artpar/appkernel/ports"
)

// Kernel parameters set before any fragment is merged.
const (
	ParamEnvironment     = "kernel.environment"
	ParamDebug           = "kernel.debug"
	ParamProjectDir      = "kernel.project_dir"
	ParamConfigDir       = "kernel.config_dir"
	ParamPersistenceMode = "kernel.persistence_mode"
	ParamBundles         = "kernel.bundles"
	ParamBootID          = "kernel.boot_id"
)

// ErrShutdown is returned by Boot after Shutdown.
var ErrShutdown = errors.New("kernel is shut down")

// Kernel is one configured application instance. A kernel boots at most
// once; the Watcher builds a fresh kernel for every reload.
type Kernel struct {
	snapshot config.Snapshot
	logger   zerolog.Logger
	table    bundle.Table
	catalog  map[string]bundles.Constructor
	metrics  *metrics.Collector
	ids      ports.IDGenerator
	clock    ports.Clock
	locator  ports.Locator
	reader   ports.FragmentReader
	events   *events.Dispatcher

	active    []bundle.Descriptor
	instances []ports.Bundle
	handler   http.Handler

	mu        sync.RWMutex
	attempted bool
	shutdown  bool
	bootErr   error
	booted    int // instances booted, in order
	bootID    string
	bootedAt  time.Time
	duration  time.Duration
	container *container.Container
	routes    *routing.Table
	trace     loader.Trace
	pending   []events.Event // dispatched once mu is released
}

// Option configures a Kernel.
type Option func(*Kernel)

// WithTable replaces the bundle table.
func WithTable(t bundle.Table) Option {
	return func(k *Kernel) { k.table = t }
}

// WithCatalog replaces the bundle implementations.
func WithCatalog(c map[string]bundles.Constructor) Option {
	return func(k *Kernel) { k.catalog = c }
}

// WithMetrics records boot metrics into m.
func WithMetrics(m *metrics.Collector) Option {
	return func(k *Kernel) { k.metrics = m }
}

// WithIDGenerator sets the boot id generator.
func WithIDGenerator(g ports.IDGenerator) Option {
	return func(k *Kernel) { k.ids = g }
}

// WithClock sets the clock used to time boots.
func WithClock(c ports.Clock) Option {
	return func(k *Kernel) { k.clock = c }
}

// WithLocator replaces the filesystem locator rooted at the config dir.
func WithLocator(l ports.Locator) Option {
	return func(k *Kernel) { k.locator = l }
}

// WithDispatcher sends lifecycle events to d. Kernels built by a Watcher
// share one dispatcher so listeners survive reloads.
func WithDispatcher(d *events.Dispatcher) Option {
	return func(k *Kernel) { k.events = d }
}

// New creates a kernel for the snapshot and instantiates its active
// bundles. Nothing is read from disk until Boot.
func New(s config.Snapshot, logger zerolog.Logger, opts ...Option) (*Kernel, error) {
	k := &Kernel{
		snapshot: s,
		logger:   logger.With().Str("component", "kernel").Logger(),
		table:    bundle.DefaultTable(),
		catalog:  bundles.Catalog(),
		ids:      idgen.UUID{},
		clock:    clock.Real{},
		reader:   fs.YAMLReader{},
	}
	for _, opt := range opts {
		opt(k)
	}
	if k.events == nil {
		k.events = events.NewDispatcher(logger)
	}

	if k.locator == nil {
		l, err := fs.NewLocator(s.ConfigDir)
		if err != nil {
			return nil, fmt.Errorf("config dir: %w", err)
		}
		k.locator = l
	}

	if err := bundle.Validate(k.table); err != nil {
		return nil, fmt.Errorf("bundle table: %w", err)
	}
	if missing := bundles.Missing(k.table, k.catalog); len(missing) > 0 {
		return nil, fmt.Errorf("bundles without implementation: %v", missing)
	}

	k.active = bundle.Resolve(k.table, s.Mode, s.Env)

	deps := bundles.Deps{
		Logger:     logger.With().Str("component", "bundle").Logger(),
		Env:        s.Env,
		Debug:      s.Debug,
		ProjectDir: s.ProjectDir,
		ConfigDir:  k.locator.Root(),
		Boot:       k.bootContainer,
		Report:     func() any { return k.Report() },
	}

	var router chi.Router
	for _, d := range k.active {
		b := k.catalog[d.ID](deps)
		k.instances = append(k.instances, b)

		if m, ok := b.(bundles.HTTPMounter); ok {
			if router == nil {
				router = chi.NewRouter()
			}
			m.MountHTTP(router)
		}
	}
	if router != nil {
		k.handler = router
	}

	return k, nil
}

// Boot loads the configuration and boots the active bundles. It runs
// once; later calls return the first result.
func (k *Kernel) Boot(ctx context.Context) error {
	k.mu.Lock()
	if k.shutdown {
		k.mu.Unlock()
		return ErrShutdown
	}
	if k.attempted {
		err := k.bootErr
		k.mu.Unlock()
		return err
	}
	k.attempted = true

	start := k.clock.Now()
	k.bootErr = k.boot(ctx)
	k.duration = k.clock.Now().Sub(start)
	k.recordBoot()
	err := k.bootErr

	if err != nil {
		k.logger.Error().Err(err).Msg("kernel boot failed")
		k.emit(events.KernelBootFailed, "", err)
	} else {
		k.bootedAt = start
		k.logBoot()
		k.emit(events.KernelBoot, "", nil)
	}
	k.flush(ctx)
	return err
}

func (k *Kernel) logBoot() {
	k.logger.Info().
		Str("env", k.snapshot.Env).
		Str("mode", k.snapshot.Mode.String()).
		Str("boot_id", k.bootID).
		Int("bundles", len(k.active)).
		Int("routes", k.routes.Len()).
		Dur("duration", k.duration).
		Msg("kernel booted")
}

// emit queues a lifecycle event. Callers hold mu.
func (k *Kernel) emit(name, bundleID string, err error) {
	k.pending = append(k.pending, events.Event{
		Name:   name,
		Env:    k.snapshot.Env,
		Mode:   k.snapshot.Mode.String(),
		BootID: k.bootID,
		Bundle: bundleID,
		Err:    err,
	})
}

// flush stamps the queued events, releases mu and dispatches them.
func (k *Kernel) flush(ctx context.Context) {
	pending := k.pending
	k.pending = nil
	if len(pending) > 0 {
		at := k.clock.Now()
		for i := range pending {
			pending[i].At = at
		}
	}
	k.mu.Unlock()

	for _, e := range pending {
		k.events.Dispatch(ctx, e)
	}
}

func (k *Kernel) boot(ctx context.Context) error {
	s := k.snapshot
	k.bootID = k.ids.New()

	ids := bundle.IDs(k.active)
	bundleParam := make([]any, len(ids))
	for i, id := range ids {
		bundleParam[i] = id
	}

	b := container.NewBuilder()
	b.SetParameter(ParamEnvironment, s.Env)
	b.SetParameter(ParamDebug, s.Debug)
	b.SetParameter(ParamProjectDir, s.ProjectDir)
	b.SetParameter(ParamConfigDir, k.locator.Root())
	b.SetParameter(ParamPersistenceMode, s.Mode.String())
	b.SetParameter(ParamBundles, bundleParam)
	b.SetParameter(ParamBootID, k.bootID)

	routes := routing.New()
	ld := loader.New(k.locator, k.reader, s.Env, k.logger)
	trace, err := ld.Run(kernel.Plan(s.Env, s.Mode), b, routes)
	k.trace = trace
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	c, err := b.Compile(s.LookupEnv)
	if err != nil {
		return fmt.Errorf("compile container: %w", err)
	}
	c.Set(bundles.ServiceRoutingTable, routes)

	for i, inst := range k.instances {
		if err := inst.Boot(ctx, c); err != nil {
			if k.metrics != nil {
				k.metrics.BundleBootErr.WithLabelValues(inst.Name()).Inc()
			}
			k.rollback(ctx, i)
			return fmt.Errorf("boot %s: %w", inst.Name(), err)
		}
		k.booted = i + 1
		k.logger.Debug().Str("bundle", inst.Name()).Msg("bundle booted")
		k.emit(events.BundleBoot, inst.Name(), nil)
	}

	k.container = c
	k.routes = routes
	return nil
}

// rollback shuts down the first n instances in reverse order.
func (k *Kernel) rollback(ctx context.Context, n int) {
	for i := n - 1; i >= 0; i-- {
		err := k.instances[i].Shutdown(ctx)
		if err != nil {
			k.logger.Error().Err(err).Str("bundle", k.instances[i].Name()).Msg("bundle shutdown failed during rollback")
		}
		k.emit(events.BundleShutdown, k.instances[i].Name(), err)
	}
	k.booted = 0
}

func (k *Kernel) recordBoot() {
	if k.metrics == nil {
		return
	}
	result := "ok"
	if k.bootErr != nil {
		result = "error"
	}
	k.metrics.BootsTotal.WithLabelValues(k.snapshot.Env, k.snapshot.Mode.String(), result).Inc()
	k.metrics.BootDuration.Observe(k.duration.Seconds())

	for _, step := range k.trace {
		target := step.Import.Target.String()
		k.metrics.ImportsTotal.WithLabelValues(target, step.Import.Kind.String()).Inc()
		k.metrics.FilesLoaded.WithLabelValues(target).Add(float64(len(step.Files) + len(step.Imported)))
		if step.Skipped {
			k.metrics.OptionalSkipped.Inc()
		}
	}

	if k.bootErr != nil {
		return
	}
	k.metrics.BootLast.Set(float64(k.clock.Now().Unix()))
	counts := map[bundle.Profile]int{
		bundle.ProfileShared:     0,
		bundle.ProfileRelational: 0,
		bundle.ProfileDocument:   0,
	}
	for _, d := range k.active {
		counts[d.Profile]++
	}
	for p, n := range counts {
		k.metrics.BundlesActive.WithLabelValues(string(p)).Set(float64(n))
	}
}

// bootContainer boots the kernel if needed and returns its container.
func (k *Kernel) bootContainer(ctx context.Context) (*container.Container, error) {
	if err := k.Boot(ctx); err != nil {
		return nil, err
	}
	return k.Container(), nil
}

// Shutdown shuts the booted bundles down in reverse boot order.
func (k *Kernel) Shutdown(ctx context.Context) error {
	k.mu.Lock()
	if k.shutdown {
		k.mu.Unlock()
		return nil
	}
	k.shutdown = true

	var errs []error
	for i := k.booted - 1; i >= 0; i-- {
		inst := k.instances[i]
		err := inst.Shutdown(ctx)
		if err != nil {
			errs = append(errs, fmt.Errorf("shutdown %s: %w", inst.Name(), err))
		}
		k.emit(events.BundleShutdown, inst.Name(), err)
	}
	k.booted = 0
	err := errors.Join(errs...)

	k.logger.Debug().Int("errors", len(errs)).Msg("kernel shut down")
	k.emit(events.KernelShutdown, "", err)
	k.flush(ctx)
	return err
}

// Dispatcher returns the lifecycle event dispatcher.
func (k *Kernel) Dispatcher() *events.Dispatcher {
	return k.events
}

// Booted reports whether Boot succeeded and Shutdown has not run.
func (k *Kernel) Booted() bool {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return k.container != nil && !k.shutdown
}

// Snapshot returns the configuration the kernel was built from.
func (k *Kernel) Snapshot() config.Snapshot {
	return k.snapshot
}

// Env returns the environment name.
func (k *Kernel) Env() string {
	return k.snapshot.Env
}

// Mode returns the persistence mode.
func (k *Kernel) Mode() persistence.Mode {
	return k.snapshot.Mode
}

// BootID returns the id of the boot, empty before Boot.
func (k *Kernel) BootID() string {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return k.bootID
}

// Table returns the bundle table the kernel resolved from.
func (k *Kernel) Table() bundle.Table {
	out := make(bundle.Table, len(k.table))
	copy(out, k.table)
	return out
}

// Bundles returns the active bundles in boot order.
func (k *Kernel) Bundles() []bundle.Descriptor {
	out := make([]bundle.Descriptor, len(k.active))
	copy(out, k.active)
	return out
}

// Instances returns the active bundle implementations in boot order.
func (k *Kernel) Instances() []ports.Bundle {
	out := make([]ports.Bundle, len(k.instances))
	copy(out, k.instances)
	return out
}

// Container returns the compiled container, nil before a successful boot.
func (k *Kernel) Container() *container.Container {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return k.container
}

// Trace returns the import trace of the last boot, partial on failure.
func (k *Kernel) Trace() loader.Trace {
	k.mu.RLock()
	defer k.mu.RUnlock()
	out := make(loader.Trace, len(k.trace))
	copy(out, k.trace)
	return out
}

// RouteTable returns the route table, nil before a successful boot.
func (k *Kernel) RouteTable() *routing.Table {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return k.routes
}

// Routes returns every route in table order.
func (k *Kernel) Routes() []routing.Route {
	t := k.RouteTable()
	if t == nil {
		return nil
	}
	return t.All()
}

// Handler serves the routes mounted by bundles; nil when no active
// bundle mounts any.
func (k *Kernel) Handler() http.Handler {
	return k.handler
}

// Commands returns the console commands of the active bundles.
func (k *Kernel) Commands() []*cobra.Command {
	var out []*cobra.Command
	for _, inst := range k.instances {
		if p, ok := inst.(bundles.CommandProvider); ok {
			out = append(out, p.Commands()...)
		}
	}
	return out
}

// Ensure interface compliance.
var _ apihttp.Kernel = (*Kernel)(nil)
