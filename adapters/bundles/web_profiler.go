package bundles

import (
	"context"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"

	"github.com/artpar/appkernel/domain/bundle"
	"github.com/artpar/appkernel/pkg/jsonapi"
	"github.com/artpar/appkernel/ports"
)

// WebProfiler is WebProfilerBundle. It exposes the boot report and the
// resolved extension configs under /_profiler on the diagnostics server.
type WebProfiler struct {
	base

	mu        sync.RWMutex
	services  ports.Services
	toolbar   bool
	intercept bool
}

// NewWebProfiler creates WebProfilerBundle.
func NewWebProfiler(deps Deps) ports.Bundle {
	return &WebProfiler{base: newBase(bundle.WebProfiler, deps)}
}

// Boot reads web_profiler.toolbar and web_profiler.intercept_redirects.
func (b *WebProfiler) Boot(_ context.Context, c ports.Services) error {
	s := newSettings("web_profiler", c.Extension("web_profiler"))
	toolbar := s.Bool("toolbar", true)
	intercept := s.Bool("intercept_redirects", false)
	if err := s.Err(); err != nil {
		return err
	}

	b.mu.Lock()
	b.services, b.toolbar, b.intercept = c, toolbar, intercept
	b.mu.Unlock()
	return nil
}

// Shutdown detaches the profiler from the container.
func (b *WebProfiler) Shutdown(context.Context) error {
	b.mu.Lock()
	b.services = nil
	b.mu.Unlock()
	return nil
}

// MountHTTP registers the profiler routes.
func (b *WebProfiler) MountHTTP(r chi.Router) {
	r.Route("/_profiler", func(r chi.Router) {
		r.Get("/", b.handleReport)
		r.Get("/config/{extension}", b.handleConfig)
	})
}

func (b *WebProfiler) handleReport(w http.ResponseWriter, _ *http.Request) {
	b.mu.RLock()
	booted, toolbar, intercept := b.services != nil, b.toolbar, b.intercept
	b.mu.RUnlock()

	if !booted {
		jsonapi.WriteError(w, jsonapi.ErrServiceUnavailable("kernel is not booted"))
		return
	}

	meta := jsonapi.Meta{
		"toolbar":             toolbar,
		"intercept_redirects": intercept,
	}
	if b.deps.Report != nil {
		meta["report"] = b.deps.Report()
	}
	jsonapi.WriteMeta(w, http.StatusOK, meta)
}

func (b *WebProfiler) handleConfig(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "extension")

	b.mu.RLock()
	services := b.services
	b.mu.RUnlock()

	if services == nil {
		jsonapi.WriteError(w, jsonapi.ErrServiceUnavailable("kernel is not booted"))
		return
	}

	cfg := services.Extension(name)
	if cfg == nil {
		jsonapi.WriteNotFound(w, "extension")
		return
	}
	jsonapi.WriteResource(w, http.StatusOK, jsonapi.NewResource("extension", name).Attrs(cfg).Build())
}
