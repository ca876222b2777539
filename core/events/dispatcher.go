// Package events dispatches kernel lifecycle events to listeners.
package events

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Lifecycle event names.
const (
	KernelBoot       = "kernel.boot"
	KernelBootFailed = "kernel.boot_failed"
	KernelShutdown   = "kernel.shutdown"
	KernelReload     = "kernel.reload"
	BundleBoot       = "bundle.boot"
	BundleShutdown   = "bundle.shutdown"
)

// Event is one lifecycle notification.
type Event struct {
	Name   string
	Env    string
	Mode   string
	BootID string

	// Bundle is set for bundle.* events.
	Bundle string

	// Err is set for kernel.boot_failed and failed bundle shutdowns.
	Err error

	At time.Time
}

// Listener handles an event. A listener error is logged and returned by
// Dispatch; it never stops the remaining listeners.
type Listener func(ctx context.Context, e Event) error

type entry struct {
	priority int
	fn       Listener
}

// Dispatcher calls listeners by event name. Subscriptions may use
// "kernel.*" style prefixes or "*" for every event.
type Dispatcher struct {
	mu        sync.RWMutex
	listeners map[string][]entry
	logger    zerolog.Logger
}

// NewDispatcher creates an empty dispatcher.
func NewDispatcher(logger zerolog.Logger) *Dispatcher {
	return &Dispatcher{
		listeners: make(map[string][]entry),
		logger:    logger.With().Str("component", "events").Logger(),
	}
}

// Subscribe registers fn for name. Higher priorities run first. Within a
// priority, exact subscriptions run before "prefix.*" ones, then "*", each
// in registration order.
func (d *Dispatcher) Subscribe(name string, priority int, fn Listener) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.listeners[name] = append(d.listeners[name], entry{priority: priority, fn: fn})
}

// Dispatch calls every listener matching e.Name synchronously and returns
// their errors joined. A nil dispatcher does nothing.
func (d *Dispatcher) Dispatch(ctx context.Context, e Event) error {
	if d == nil {
		return nil
	}
	matched := d.match(e.Name)

	d.logger.Debug().
		Str("event", e.Name).
		Str("bundle", e.Bundle).
		Int("listeners", len(matched)).
		Msg("event dispatched")

	var errs []error
	for _, l := range matched {
		if err := l.fn(ctx, e); err != nil {
			d.logger.Error().Err(err).Str("event", e.Name).Msg("event listener error")
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// HasListeners reports whether any listener matches name.
func (d *Dispatcher) HasListeners(name string) bool {
	if d == nil {
		return false
	}
	return len(d.match(name)) > 0
}

func (d *Dispatcher) match(name string) []entry {
	d.mu.RLock()
	defer d.mu.RUnlock()

	var out []entry
	out = append(out, d.listeners[name]...)
	if prefix, _, ok := strings.Cut(name, "."); ok {
		out = append(out, d.listeners[prefix+".*"]...)
	}
	out = append(out, d.listeners["*"]...)

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].priority > out[j].priority
	})
	return out
}
