package bootstrap

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"

	apihttp "github.com/artpar/appkernel/adapters/http"
	"github.com/artpar/appkernel/adapters/metrics"
	"github.com/artpar/appkernel/core/events"
)

// DefaultDebounce groups the burst of events an editor save produces.
const DefaultDebounce = 200 * time.Millisecond

// BuildFunc creates a fresh, unbooted kernel. It may reload the snapshot
// so that dotenv changes are picked up.
type BuildFunc func() (*Kernel, error)

// Watcher owns the current kernel and replaces it with a freshly booted
// one when the configuration changes. A failed reload keeps the old kernel.
type Watcher struct {
	mu       sync.RWMutex
	current  *Kernel
	build    BuildFunc
	logger   zerolog.Logger
	metrics  *metrics.Collector
	onChange []func(*Kernel)

	// Debounce is the quiet period after the last event before reloading.
	Debounce time.Duration

	reloadMu sync.Mutex // serializes reloads and watched
	watcher  *fsnotify.Watcher
	watched  map[string]bool
	stopCh   chan struct{}
	stopped  bool
}

// NewWatcher builds and boots the initial kernel.
func NewWatcher(ctx context.Context, build BuildFunc, logger zerolog.Logger, m *metrics.Collector) (*Watcher, error) {
	k, err := build()
	if err != nil {
		return nil, fmt.Errorf("build kernel: %w", err)
	}
	if err := k.Boot(ctx); err != nil {
		k.Shutdown(ctx)
		return nil, err
	}

	return &Watcher{
		current:  k,
		build:    build,
		logger:   logger.With().Str("component", "watcher").Logger(),
		metrics:  m,
		Debounce: DefaultDebounce,
		watched:  make(map[string]bool),
		stopCh:   make(chan struct{}),
	}, nil
}

// Current returns the running kernel (thread-safe).
func (w *Watcher) Current() *Kernel {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.current
}

// KernelFunc adapts Current for the diagnostics server.
func (w *Watcher) KernelFunc() apihttp.KernelFunc {
	return func() apihttp.Kernel {
		k := w.Current()
		if k == nil {
			return nil
		}
		return k
	}
}

// OnChange registers a callback run after every successful reload.
func (w *Watcher) OnChange(fn func(*Kernel)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.onChange = append(w.onChange, fn)
}

// Reload builds and boots a new kernel, then shuts the old one down.
// Returns error if the new kernel fails (keeps the old one).
func (w *Watcher) Reload(ctx context.Context) error {
	w.reloadMu.Lock()
	defer w.reloadMu.Unlock()

	w.logger.Info().Msg("reloading kernel")

	next, err := w.build()
	if err == nil {
		err = next.Boot(ctx)
		if err != nil {
			next.Shutdown(ctx)
		}
	}
	if err != nil {
		if w.metrics != nil {
			w.metrics.ReloadErrors.Inc()
		}
		w.logger.Error().Err(err).Msg("kernel reload failed, keeping old kernel")
		return fmt.Errorf("reload kernel: %w", err)
	}

	w.mu.Lock()
	old := w.current
	w.current = next
	callbacks := append([]func(*Kernel){}, w.onChange...)
	w.mu.Unlock()

	if old != nil {
		if err := old.Shutdown(ctx); err != nil {
			w.logger.Error().Err(err).Msg("old kernel shutdown failed")
		}
	}
	if w.metrics != nil {
		w.metrics.Reloads.Inc()
	}

	if w.watcher != nil {
		w.addPaths(next.WatchPaths())
	}

	for _, fn := range callbacks {
		fn(next)
	}
	next.Dispatcher().Dispatch(ctx, events.Event{
		Name:   events.KernelReload,
		Env:    next.Env(),
		Mode:   next.Mode().String(),
		BootID: next.BootID(),
		At:     next.clock.Now(),
	})

	w.logger.Info().Str("boot_id", next.BootID()).Msg("kernel reloaded successfully")
	return nil
}

// WatchFiles starts watching the configuration directories. Changes
// trigger an automatic reload.
func (w *Watcher) WatchFiles() error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}

	w.reloadMu.Lock()
	paths := w.Current().WatchPaths()
	if len(paths) == 0 {
		w.reloadMu.Unlock()
		watcher.Close()
		return fmt.Errorf("no configuration directory to watch")
	}
	w.watcher = watcher
	w.addPaths(paths)
	w.reloadMu.Unlock()

	go w.watchLoop(watcher)

	w.logger.Info().Int("directories", len(paths)).Msg("watching configuration for changes")
	return nil
}

func (w *Watcher) addPaths(paths []string) {
	for _, p := range paths {
		if w.watched[p] {
			continue
		}
		if err := w.watcher.Add(p); err != nil {
			w.logger.Warn().Err(err).Str("dir", p).Msg("cannot watch directory")
			continue
		}
		w.watched[p] = true
	}
}

// WatchSignals starts listening for SIGHUP to trigger reload.
func (w *Watcher) WatchSignals() {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGHUP)

	go func() {
		for {
			select {
			case <-sigCh:
				w.logger.Info().Msg("received SIGHUP, reloading kernel")
				if err := w.Reload(context.Background()); err != nil {
					w.logger.Error().Err(err).Msg("SIGHUP reload failed")
				}
			case <-w.stopCh:
				signal.Stop(sigCh)
				return
			}
		}
	}()

	w.logger.Info().Msg("listening for SIGHUP to reload kernel")
}

// Stop stops watching for file changes and signals.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		return
	}
	w.stopped = true
	close(w.stopCh)
	w.mu.Unlock()

	w.reloadMu.Lock()
	if w.watcher != nil {
		w.watcher.Close()
	}
	w.reloadMu.Unlock()
}

// Shutdown stops watching and shuts the current kernel down.
func (w *Watcher) Shutdown(ctx context.Context) error {
	w.Stop()
	return w.Current().Shutdown(ctx)
}

func (w *Watcher) watchLoop(watcher *fsnotify.Watcher) {
	var timer *time.Timer
	var fire <-chan time.Time

	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if !relevant(event) {
				continue
			}

			w.logger.Debug().
				Str("event", event.Op.String()).
				Str("file", event.Name).
				Msg("configuration changed")

			if timer == nil {
				timer = time.NewTimer(w.Debounce)
			} else {
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				timer.Reset(w.Debounce)
			}
			fire = timer.C

		case <-fire:
			fire = nil
			if err := w.Reload(context.Background()); err != nil {
				w.logger.Error().Err(err).Msg("file watch reload failed")
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error().Err(err).Msg("file watcher error")

		case <-w.stopCh:
			if timer != nil {
				timer.Stop()
			}
			return
		}
	}
}

// relevant reports whether an event can change the next boot: YAML
// fragments, dotenv files and new directories.
func relevant(event fsnotify.Event) bool {
	if event.Op == fsnotify.Chmod {
		return false
	}
	name := filepath.Base(event.Name)
	switch {
	case strings.HasSuffix(name, ".yaml"):
		return true
	case name == ".env" || strings.HasPrefix(name, ".env."):
		return true
	case event.Op&fsnotify.Create != 0:
		info, err := os.Stat(event.Name)
		return err == nil && info.IsDir()
	default:
		return false
	}
}
