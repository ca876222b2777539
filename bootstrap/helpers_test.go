package bootstrap_test

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/rs/zerolog"

	"github.com/artpar/appkernel/adapters/bundles"
	"github.com/artpar/appkernel/config"
	"github.com/artpar/appkernel/ports"
)

// appTree is a complete project covering both persistence modes.
var appTree = map[string]string{
	"config/packages/framework.yaml": `
parameters:
    env(APP_SECRET): dev-secret
framework:
    secret: '%env(APP_SECRET)%'
`,
	"config/packages/monolog.yaml": `
monolog:
    level: error
    format: json
    output: '%kernel.project_dir%/var/log/app.log'
`,
	"config/packages/security.yaml": `
security:
    password_hashers: { cost: 4 }
`,
	"config/packages/dev/web_profiler.yaml":             "web_profiler: { toolbar: true }\n",
	"config/packages/test/framework.yaml":               "framework: { test: true }\n",
	"config/packages/orm/doctrine.yaml":                 "doctrine: { dbal: { url: 'sqlite:///:memory:' } }\n",
	"config/packages/mongodb/doctrine_mongodb.yaml":     "doctrine_mongodb: { connections: { default: { server: 'mongodb://localhost:27017/app' } } }\n",
	"config/services/services_orm.yaml":                 "services: { app.repository: { class: App\\OrmRepository } }\n",
	"config/services/services_mongo.yaml":               "services: { app.repository: { class: App\\MongoRepository } }\n",
	"config/services.yaml": `
parameters:
    app.name: demo
services:
    app.greeter:
        class: App\Greeter
        arguments: ['%app.name%', '%kernel.environment%']
`,
	"config/routes.yaml":             "home: { path: /, controller: App\\Home }\n",
	"config/routes/dev/profiler.yaml": "_profiler: { resource: '@WebProfilerBundle/config/routes.xml', prefix: /_profiler }\n",
}

// minimalTree has only the required files.
var minimalTree = map[string]string{
	"config/services/services_orm.yaml": "parameters: {}\n",
	"config/services.yaml":              "parameters: { app.name: minimal }\n",
	"config/routes.yaml":                "home: { path: / }\n",
}

func writeTree(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		p := filepath.Join(dir, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return dir
}

func snapshot(t *testing.T, dir, env string, environ ...string) config.Snapshot {
	t.Helper()
	s, err := config.Load(config.Options{
		Env:        env,
		ProjectDir: dir,
		Environ:    append([]string{}, environ...),
	})
	if err != nil {
		t.Fatalf("config.Load() error = %v", err)
	}
	return s
}

// recorder collects bundle lifecycle events.
type recorder struct {
	mu     sync.Mutex
	events []string
}

func (r *recorder) add(format string, args ...any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, fmt.Sprintf(format, args...))
}

func (r *recorder) list() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string{}, r.events...)
}

// fakeBundle records its lifecycle and fails Boot when told to.
type fakeBundle struct {
	name    string
	rec     *recorder
	failErr error
}

func (b *fakeBundle) Name() string { return b.name }

func (b *fakeBundle) Boot(_ context.Context, c ports.Services) error {
	b.rec.add("boot %s", b.name)
	return b.failErr
}

func (b *fakeBundle) Shutdown(context.Context) error {
	b.rec.add("shutdown %s", b.name)
	return nil
}

func fakeCatalog(rec *recorder, failing map[string]error, ids ...string) map[string]bundles.Constructor {
	out := make(map[string]bundles.Constructor, len(ids))
	for _, id := range ids {
		id := id
		out[id] = func(bundles.Deps) ports.Bundle {
			return &fakeBundle{name: id, rec: rec, failErr: failing[id]}
		}
	}
	return out
}

func nopLogger() zerolog.Logger {
	return zerolog.Nop()
}
