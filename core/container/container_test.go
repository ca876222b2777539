package container_test

import (
	"errors"
	"reflect"
	"testing"

	"github.com/artpar/appkernel/core/container"
)

func env(vars map[string]string) func(string) (string, bool) {
	return func(name string) (string, bool) {
		v, ok := vars[name]
		return v, ok
	}
}

func mustMerge(t *testing.T, b *container.Builder, source string, doc map[string]any) {
	t.Helper()
	if err := b.Merge(source, doc); err != nil {
		t.Fatalf("Merge(%s): %v", source, err)
	}
}

func TestBuilder_ExtensionDeepMerge(t *testing.T) {
	b := container.NewBuilder()
	mustMerge(t, b, "packages/framework.yaml", map[string]any{
		"framework": map[string]any{
			"secret": "base",
			"session": map[string]any{
				"enabled":   true,
				"cookie":    "sid",
				"providers": []any{"a", "b"},
			},
		},
	})
	mustMerge(t, b, "packages/prod/framework.yaml", map[string]any{
		"framework": map[string]any{
			"session": map[string]any{
				"cookie":    "prod_sid",
				"providers": []any{"c"},
			},
		},
	})

	c, err := b.Compile(nil)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}

	fw := c.Extension("framework")
	if fw["secret"] != "base" {
		t.Errorf("secret = %v, want base", fw["secret"])
	}
	session := fw["session"].(map[string]any)
	if session["enabled"] != true {
		t.Errorf("session.enabled = %v, want true", session["enabled"])
	}
	if session["cookie"] != "prod_sid" {
		t.Errorf("session.cookie = %v, want prod_sid", session["cookie"])
	}
	if !reflect.DeepEqual(session["providers"], []any{"c"}) {
		t.Errorf("session.providers = %v, want [c]", session["providers"])
	}
}

func TestBuilder_NullExtensionRegistersEmptyConfig(t *testing.T) {
	b := container.NewBuilder()
	mustMerge(t, b, "packages/twig.yaml", map[string]any{"twig": nil})

	c, err := b.Compile(nil)
	if err != nil {
		t.Fatal(err)
	}
	if !c.HasExtension("twig") {
		t.Error("twig extension not registered")
	}
	if c.HasExtension("doctrine") {
		t.Error("doctrine extension unexpectedly registered")
	}
	if c.Extension("doctrine") != nil {
		t.Error("missing extension should be nil")
	}
}

func TestBuilder_ParametersLaterWins(t *testing.T) {
	b := container.NewBuilder()
	b.SetParameter("kernel.environment", "dev")
	mustMerge(t, b, "a.yaml", map[string]any{"parameters": map[string]any{"locale": "en", "page": 10}})
	mustMerge(t, b, "b.yaml", map[string]any{"parameters": map[string]any{"locale": "fr"}})

	c, err := b.Compile(nil)
	if err != nil {
		t.Fatal(err)
	}
	if v, _ := c.Parameter("locale"); v != "fr" {
		t.Errorf("locale = %v, want fr", v)
	}
	if v, _ := c.Parameter("page"); v != 10 {
		t.Errorf("page = %v, want 10", v)
	}
	if v, _ := c.Parameter("kernel.environment"); v != "dev" {
		t.Errorf("kernel.environment = %v, want dev", v)
	}
}

func TestBuilder_ServicesReplacedWhole(t *testing.T) {
	b := container.NewBuilder()
	mustMerge(t, b, "services/services_orm.yaml", map[string]any{
		"services": map[string]any{
			"_defaults": map[string]any{"autowire": true},
			"app.repo": map[string]any{
				"class":     "App\\Repository\\OrmRepository",
				"arguments": []any{"@doctrine", "%kernel.environment%"},
			},
		},
	})
	mustMerge(t, b, "services.yaml", map[string]any{
		"services": map[string]any{
			"app.repo":    map[string]any{"class": "App\\Repository\\CachedRepository"},
			"repo":        "@app.repo",
			"App\\Mailer": nil,
		},
	})
	b.SetParameter("kernel.environment", "test")

	c, err := b.Compile(nil)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}

	def, ok := c.Definition("app.repo")
	if !ok {
		t.Fatal("app.repo not defined")
	}
	if def.Class != "App\\Repository\\CachedRepository" {
		t.Errorf("Class = %s, want CachedRepository", def.Class)
	}
	if len(def.Arguments) != 0 {
		t.Errorf("Arguments = %v, want none after replacement", def.Arguments)
	}
	if def.Source != "services.yaml" {
		t.Errorf("Source = %s, want services.yaml", def.Source)
	}

	alias, ok := c.Definition("repo")
	if !ok || alias.ID != "app.repo" {
		t.Errorf("Definition(repo) = %+v, %v; want app.repo", alias, ok)
	}

	mailer, _ := c.Definition("App\\Mailer")
	if mailer.Class != "App\\Mailer" {
		t.Errorf("null definition class = %s, want App\\Mailer", mailer.Class)
	}

	for _, d := range c.Definitions() {
		if d.ID == "_defaults" {
			t.Error("_defaults registered as a service")
		}
	}
}

func TestBuilder_ServiceArgumentsResolved(t *testing.T) {
	b := container.NewBuilder()
	b.SetParameter("kernel.project_dir", "/srv/app")
	mustMerge(t, b, "services.yaml", map[string]any{
		"services": map[string]any{
			"uploader": map[string]any{
				"class":     "App\\Uploader",
				"arguments": []any{"%kernel.project_dir%/var/uploads", "%env(int:UPLOAD_LIMIT)%"},
			},
		},
	})

	c, err := b.Compile(env(map[string]string{"UPLOAD_LIMIT": "42"}))
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	def, _ := c.Definition("uploader")
	want := []any{"/srv/app/var/uploads", 42}
	if !reflect.DeepEqual(def.Arguments, want) {
		t.Errorf("Arguments = %#v, want %#v", def.Arguments, want)
	}
}

func TestBuilder_MergeErrors(t *testing.T) {
	tests := []struct {
		name string
		doc  map[string]any
	}{
		{"scalar extension", map[string]any{"framework": "on"}},
		{"list parameters", map[string]any{"parameters": []any{"a"}}},
		{"list services", map[string]any{"services": []any{"a"}}},
		{"bad alias string", map[string]any{"services": map[string]any{"a": "b"}}},
		{"unknown service key", map[string]any{"services": map[string]any{"a": map[string]any{"autowire": true}}}},
		{"alias with class", map[string]any{"services": map[string]any{"a": map[string]any{"alias": "b", "class": "X"}}}},
		{"unresolved imports", map[string]any{"imports": []any{}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := container.NewBuilder().Merge("x.yaml", tt.doc); err == nil {
				t.Error("Merge succeeded, want error")
			}
		})
	}
}

func TestCompile_AliasErrors(t *testing.T) {
	b := container.NewBuilder()
	mustMerge(t, b, "s.yaml", map[string]any{"services": map[string]any{"a": "@missing"}})
	if _, err := b.Compile(nil); err == nil {
		t.Error("Compile with dangling alias succeeded")
	}

	b = container.NewBuilder()
	mustMerge(t, b, "s.yaml", map[string]any{"services": map[string]any{"a": "@b", "b": "@a"}})
	if _, err := b.Compile(nil); err == nil {
		t.Error("Compile with alias cycle succeeded")
	}
}

func TestContainer_Resources(t *testing.T) {
	b := container.NewBuilder()
	mustMerge(t, b, "a.yaml", map[string]any{})
	mustMerge(t, b, "b.yaml", map[string]any{})
	mustMerge(t, b, "a.yaml", map[string]any{})

	c, err := b.Compile(nil)
	if err != nil {
		t.Fatal(err)
	}
	if got := c.Resources(); !reflect.DeepEqual(got, []string{"a.yaml", "b.yaml"}) {
		t.Errorf("Resources = %v", got)
	}
}

func TestContainer_RuntimeServices(t *testing.T) {
	c, err := container.NewBuilder().Compile(nil)
	if err != nil {
		t.Fatal(err)
	}

	c.Set("logger", "zerolog")
	if v, ok := c.Get("logger"); !ok || v != "zerolog" {
		t.Errorf("Get(logger) = %v, %v", v, ok)
	}
	if _, ok := c.Get("missing"); ok {
		t.Error("Get(missing) = ok")
	}
	if ids := c.ServiceIDs(); !reflect.DeepEqual(ids, []string{"logger"}) {
		t.Errorf("ServiceIDs = %v", ids)
	}
}

func TestContainer_ExtensionIsCopy(t *testing.T) {
	b := container.NewBuilder()
	mustMerge(t, b, "a.yaml", map[string]any{"monolog": map[string]any{"level": "info"}})
	c, err := b.Compile(nil)
	if err != nil {
		t.Fatal(err)
	}

	cfg := c.Extension("monolog")
	cfg["level"] = "debug"

	if c.Extension("monolog")["level"] != "info" {
		t.Error("mutating a returned extension changed the container")
	}
}

func TestPlaceholders(t *testing.T) {
	tests := []struct {
		name   string
		params map[string]any
		vars   map[string]string
		key    string
		want   any
	}{
		{
			name:   "whole placeholder keeps type",
			params: map[string]any{"limit": 5, "copy": "%limit%"},
			key:    "copy",
			want:   5,
		},
		{
			name:   "embedded placeholder interpolates",
			params: map[string]any{"dir": "/srv", "cache": "%dir%/var/cache"},
			key:    "cache",
			want:   "/srv/var/cache",
		},
		{
			name:   "chained parameters",
			params: map[string]any{"a": "%b%", "b": "%c%-x", "c": "z"},
			key:    "a",
			want:   "z-x",
		},
		{
			name:   "escaped percent",
			params: map[string]any{"p": "100%% done"},
			key:    "p",
			want:   "100% done",
		},
		{
			name:   "lone percent untouched",
			params: map[string]any{"p": "50% off"},
			key:    "p",
			want:   "50% off",
		},
		{
			name:   "env string",
			params: map[string]any{"url": "%env(DATABASE_URL)%"},
			vars:   map[string]string{"DATABASE_URL": "sqlite:///data.db"},
			key:    "url",
			want:   "sqlite:///data.db",
		},
		{
			name:   "env bool",
			params: map[string]any{"flag": "%env(bool:FEATURE)%"},
			vars:   map[string]string{"FEATURE": "yes"},
			key:    "flag",
			want:   true,
		},
		{
			name:   "env default parameter",
			params: map[string]any{"env(PORT)": "8000", "port": "%env(int:PORT)%"},
			key:    "port",
			want:   8000,
		},
		{
			name:   "env value wins over default",
			params: map[string]any{"env(PORT)": "8000", "port": "%env(int:PORT)%"},
			vars:   map[string]string{"PORT": "9000"},
			key:    "port",
			want:   9000,
		},
		{
			name:   "nested list resolved",
			params: map[string]any{"host": "db", "hosts": []any{"%host%", "replica"}},
			key:    "hosts",
			want:   []any{"db", "replica"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := container.NewBuilder()
			for k, v := range tt.params {
				b.SetParameter(k, v)
			}
			c, err := b.Compile(env(tt.vars))
			if err != nil {
				t.Fatalf("Compile: %v", err)
			}
			got, ok := c.Parameter(tt.key)
			if !ok {
				t.Fatalf("parameter %s missing", tt.key)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("%s = %#v, want %#v", tt.key, got, tt.want)
			}
		})
	}
}

func TestPlaceholders_Errors(t *testing.T) {
	tests := []struct {
		name   string
		params map[string]any
		want   error
	}{
		{"unknown parameter", map[string]any{"a": "%missing%"}, container.ErrUnknownParameter},
		{"circular", map[string]any{"a": "%b%", "b": "x%a%"}, container.ErrCircularReference},
		{"self reference", map[string]any{"a": "%a%"}, container.ErrCircularReference},
		{"missing env", map[string]any{"a": "%env(NOPE)%"}, container.ErrEnvNotFound},
		{"bad int", map[string]any{"env(N)": "x", "a": "%env(int:N)%"}, container.ErrInvalidPlaceholder},
		{"unknown processor", map[string]any{"env(N)": "x", "a": "%env(json:N)%"}, container.ErrInvalidPlaceholder},
		{"embed list", map[string]any{"l": []any{1}, "a": "x-%l%"}, container.ErrInvalidPlaceholder},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := container.NewBuilder()
			for k, v := range tt.params {
				b.SetParameter(k, v)
			}
			_, err := b.Compile(nil)
			if !errors.Is(err, tt.want) {
				t.Fatalf("Compile error = %v, want %v", err, tt.want)
			}
			var perr *container.PlaceholderError
			if !errors.As(err, &perr) {
				t.Errorf("error %v is not a *PlaceholderError", err)
			}
		})
	}
}

func TestExtensionPlaceholdersResolved(t *testing.T) {
	b := container.NewBuilder()
	b.SetParameter("kernel.project_dir", "/srv/app")
	mustMerge(t, b, "doctrine.yaml", map[string]any{
		"doctrine": map[string]any{
			"dbal": map[string]any{"url": "sqlite:///%kernel.project_dir%/var/data.db"},
		},
	})

	c, err := b.Compile(nil)
	if err != nil {
		t.Fatal(err)
	}
	dbal := c.Extension("doctrine")["dbal"].(map[string]any)
	if dbal["url"] != "sqlite:////srv/app/var/data.db" {
		t.Errorf("url = %v", dbal["url"])
	}
}

func TestDeepMerge_DoesNotAliasInputs(t *testing.T) {
	dst := map[string]any{"a": map[string]any{"x": 1}}
	src := map[string]any{"a": map[string]any{"y": []any{1}}}

	out := container.DeepMerge(dst, src)
	out["a"].(map[string]any)["x"] = 2
	out["a"].(map[string]any)["y"].([]any)[0] = 9

	if dst["a"].(map[string]any)["x"] != 1 {
		t.Error("DeepMerge aliased dst")
	}
	if src["a"].(map[string]any)["y"].([]any)[0] != 1 {
		t.Error("DeepMerge aliased src")
	}
}
