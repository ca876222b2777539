// Package http serves the kernel diagnostics endpoints: health, metrics,
// the boot report and the routes contributed by bundles.
package http

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	httpSwagger "github.com/swaggo/http-swagger"

	"github.com/artpar/appkernel/adapters/metrics"
	"github.com/artpar/appkernel/core/loader"
	"github.com/artpar/appkernel/core/routing"
	"github.com/artpar/appkernel/domain/bundle"
	"github.com/artpar/appkernel/docs/swagger"
	"github.com/artpar/appkernel/domain/persistence"
	"github.com/artpar/appkernel/pkg/jsonapi"
)

//go:generate swag init -g ../../cmd/appkernel/main.go -d ./,../../pkg/jsonapi -o ../../docs/swagger --outputTypes go,json

// HealthResponse represents a health check response.
type HealthResponse struct {
	Status string `json:"status" example:"ok"`
	Error  string `json:"error,omitempty" example:"kernel is not booted"`
}

// VersionResponse represents the version endpoint response.
type VersionResponse struct {
	Version string `json:"version" example:"1.0.0"`
	Service string `json:"service" example:"appkernel"`
}

// Kernel is the booted kernel as seen by the diagnostics server.
type Kernel interface {
	Env() string
	Mode() persistence.Mode
	BootID() string
	Bundles() []bundle.Descriptor
	Trace() loader.Trace
	Routes() []routing.Route

	// Handler serves the routes mounted by bundles; nil when none.
	Handler() http.Handler
}

// KernelFunc returns the current kernel, or nil before the first boot.
// It is called on every request so that a reloaded kernel is picked up.
type KernelFunc func() Kernel

// RouterConfig holds optional configuration for the router.
type RouterConfig struct {
	Metrics  *metrics.Collector
	Gatherer prometheus.Gatherer // defaults to prometheus.DefaultGatherer
	Version  string

	// EnableOpenAPI serves /.well-known/openapi.json and the Swagger UI.
	EnableOpenAPI bool
}

// NewRouter creates the diagnostics router.
func NewRouter(current KernelFunc, logger zerolog.Logger, cfg RouterConfig) chi.Router {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(NewLoggingMiddleware(logger))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	if cfg.Metrics != nil {
		r.Use(NewMetricsMiddleware(cfg.Metrics))
	}

	h := &handlers{current: current, version: cfg.Version}

	r.Get("/health", h.liveness)
	r.Get("/health/live", h.liveness)
	r.Get("/health/ready", h.readiness)

	gatherer := cfg.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	r.Get("/version", h.versionInfo)

	// OpenAPI/Swagger endpoints (if enabled)
	if cfg.EnableOpenAPI {
		r.Get("/.well-known/openapi.json", openAPISpec)
		r.Get("/swagger/*", httpSwagger.Handler(
			httpSwagger.URL("/.well-known/openapi.json"),
		))
	}

	r.Route("/_kernel", func(r chi.Router) {
		r.Get("/", h.summary)
		r.Get("/bundles", h.bundles)
		r.Get("/imports", h.imports)
		r.Get("/routes", h.routes)
	})

	// Everything else goes to the routes mounted by the current kernel's bundles.
	r.Handle("/*", http.HandlerFunc(h.bundleRoutes))

	return r
}

type handlers struct {
	current KernelFunc
	version string
}

// openAPISpec serves the generated OpenAPI document.
func openAPISpec(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Write([]byte(swagger.SwaggerInfo.ReadDoc()))
}

// liveness reports that the process is up.
//
//	@Summary		Liveness check
//	@Description	Always ok while the process serves requests
//	@Tags			Health
//	@Produce		json
//	@Success		200	{object}	HealthResponse
//	@Router			/health [get]
func (h *handlers) liveness(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(HealthResponse{Status: "ok"})
}

// readiness reports unavailable until a kernel has booted.
//
//	@Summary		Readiness check
//	@Description	Ok once a kernel has booted
//	@Tags			Health
//	@Produce		json
//	@Success		200	{object}	HealthResponse
//	@Failure		503	{object}	HealthResponse
//	@Router			/health/ready [get]
func (h *handlers) readiness(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if h.current() == nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		json.NewEncoder(w).Encode(HealthResponse{
			Status: "unavailable",
			Error:  "kernel is not booted",
		})
		return
	}
	json.NewEncoder(w).Encode(HealthResponse{Status: "ok"})
}

// versionInfo returns the build version.
//
//	@Summary		Version
//	@Tags			Health
//	@Produce		json
//	@Success		200	{object}	VersionResponse
//	@Router			/version [get]
func (h *handlers) versionInfo(w http.ResponseWriter, r *http.Request) {
	version := h.version
	if version == "" {
		version = "dev"
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(VersionResponse{
		Version: version,
		Service: "appkernel",
	})
}

// kernel writes a 503 and returns nil when no kernel has booted.
func (h *handlers) kernel(w http.ResponseWriter) Kernel {
	k := h.current()
	if k == nil {
		jsonapi.WriteError(w, jsonapi.ErrServiceUnavailable("kernel is not booted"))
	}
	return k
}

// summary returns the boot summary of the current kernel.
//
//	@Summary		Kernel summary
//	@Description	Environment, persistence mode, boot id and counts
//	@Tags			Kernel
//	@Produce		json
//	@Success		200	{object}	jsonapi.Document
//	@Failure		503	{object}	jsonapi.Document	"Kernel is not booted"
//	@Router			/_kernel/ [get]
func (h *handlers) summary(w http.ResponseWriter, r *http.Request) {
	k := h.kernel(w)
	if k == nil {
		return
	}
	jsonapi.WriteMeta(w, http.StatusOK, jsonapi.Meta{
		"environment":      k.Env(),
		"persistence_mode": k.Mode().String(),
		"boot_id":          k.BootID(),
		"bundles":          len(k.Bundles()),
		"imports":          len(k.Trace()),
		"routes":           len(k.Routes()),
	})
}

// bundles lists the active bundles in boot order.
//
//	@Summary		Active bundles
//	@Tags			Kernel
//	@Produce		json
//	@Success		200	{object}	jsonapi.Document	"Collection of bundle resources"
//	@Failure		503	{object}	jsonapi.Document	"Kernel is not booted"
//	@Router			/_kernel/bundles [get]
func (h *handlers) bundles(w http.ResponseWriter, r *http.Request) {
	k := h.kernel(w)
	if k == nil {
		return
	}
	active := k.Bundles()
	out := make([]jsonapi.Resource, 0, len(active))
	for i, d := range active {
		out = append(out, jsonapi.NewResource("bundle", d.ID).
			Attr("profile", string(d.Profile)).
			Attr("rule", d.Rule.String()).
			Meta("order", i).
			Build())
	}
	jsonapi.WriteCollection(w, http.StatusOK, out, jsonapi.Meta{"count": len(out)})
}

// imports lists the import trace of the last boot.
//
//	@Summary		Import trace
//	@Tags			Kernel
//	@Produce		json
//	@Success		200	{object}	jsonapi.Document	"Collection of import resources"
//	@Failure		503	{object}	jsonapi.Document	"Kernel is not booted"
//	@Router			/_kernel/imports [get]
func (h *handlers) imports(w http.ResponseWriter, r *http.Request) {
	k := h.kernel(w)
	if k == nil {
		return
	}
	trace := k.Trace()
	out := make([]jsonapi.Resource, 0, len(trace))
	for i, step := range trace {
		files := step.Files
		if files == nil {
			files = []string{}
		}
		res := jsonapi.NewResource("import", strconv.Itoa(i)).
			Attr("target", step.Import.Target.String()).
			Attr("kind", step.Import.Kind.String()).
			Attr("resource", step.Import.Resource).
			Attr("files", files).
			Attr("skipped", step.Skipped)
		if len(step.Imported) > 0 {
			res.Attr("imported", step.Imported)
		}
		out = append(out, res.Build())
	}
	jsonapi.WriteCollection(w, http.StatusOK, out, jsonapi.Meta{"count": len(out)})
}

// routes lists the route table.
//
//	@Summary		Route table
//	@Tags			Kernel
//	@Produce		json
//	@Success		200	{object}	jsonapi.Document	"Collection of route resources"
//	@Failure		503	{object}	jsonapi.Document	"Kernel is not booted"
//	@Router			/_kernel/routes [get]
func (h *handlers) routes(w http.ResponseWriter, r *http.Request) {
	k := h.kernel(w)
	if k == nil {
		return
	}
	routes := k.Routes()
	out := make([]jsonapi.Resource, 0, len(routes))
	for _, rt := range routes {
		res := jsonapi.NewResource("route", rt.Name).Attr("source", rt.Source)
		if rt.IsImport() {
			res.Attr("resource", rt.Resource).
				Attr("type", rt.Type).
				Attr("prefix", rt.Prefix)
		} else {
			res.Attr("path", rt.Path).
				Attr("controller", rt.Controller).
				Attr("methods", rt.Methods)
		}
		out = append(out, res.Build())
	}
	jsonapi.WriteCollection(w, http.StatusOK, out, jsonapi.Meta{"count": len(out)})
}

func (h *handlers) bundleRoutes(w http.ResponseWriter, r *http.Request) {
	k := h.current()
	if k == nil {
		jsonapi.WriteNotFound(w, "route")
		return
	}
	handler := k.Handler()
	if handler == nil {
		jsonapi.WriteNotFound(w, "route")
		return
	}
	handler.ServeHTTP(w, r)
}

// NewMetricsMiddleware records request durations by chi route pattern.
func NewMetricsMiddleware(m *metrics.Collector) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Skip metrics for internal endpoints
			if internalPath(r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}

			m.RequestsInFlight.Inc()
			defer m.RequestsInFlight.Dec()

			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			route := "unmatched"
			if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
				route = rctx.RoutePattern()
			}
			m.RequestDuration.WithLabelValues(r.Method, route, statusLabel(ww.Status())).
				Observe(time.Since(start).Seconds())
		})
	}
}

// statusLabel returns a string label for the status code.
func statusLabel(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	case status >= 200:
		return "2xx"
	default:
		return "other"
	}
}

// NewLoggingMiddleware logs every request at debug level.
func NewLoggingMiddleware(logger zerolog.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			// Skip logging for internal endpoints
			if internalPath(r.URL.Path) {
				return
			}

			logger.Debug().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", ww.Status()).
				Int("bytes", ww.BytesWritten()).
				Dur("duration", time.Since(start)).
				Str("request_id", middleware.GetReqID(r.Context())).
				Msg("http request")
		})
	}
}

// internalPath reports whether path is a health, metrics or docs endpoint.
func internalPath(path string) bool {
	return strings.HasPrefix(path, "/health") || path == "/metrics" ||
		strings.HasPrefix(path, "/swagger") || strings.HasPrefix(path, "/.well-known")
}

// NewServer creates the diagnostics HTTP server.
func NewServer(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
	}
}
