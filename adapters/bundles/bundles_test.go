package bundles_test

import (
	"context"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/artpar/appkernel/adapters/bundles"
	"github.com/artpar/appkernel/adapters/fs"
	"github.com/artpar/appkernel/core/container"
	"github.com/artpar/appkernel/core/routing"
	"github.com/artpar/appkernel/domain/bundle"
)

// compile builds a container from one YAML fragment.
func compile(t *testing.T, src string) *container.Container {
	t.Helper()
	doc, err := fs.Parse([]byte(src))
	if err != nil {
		t.Fatalf("parse fragment: %v", err)
	}
	b := container.NewBuilder()
	if err := b.Merge("config/packages/test.yaml", doc); err != nil {
		t.Fatalf("merge fragment: %v", err)
	}
	c, err := b.Compile(nil)
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	return c
}

func testDeps(t *testing.T, env string) bundles.Deps {
	t.Helper()
	dir := t.TempDir()
	return bundles.Deps{
		Logger:     zerolog.Nop(),
		Env:        env,
		Debug:      env != "prod",
		ProjectDir: dir,
		ConfigDir:  dir + "/config",
	}
}

func TestCatalog_CoversDefaultTable(t *testing.T) {
	catalog := bundles.Catalog()
	if missing := bundles.Missing(bundle.DefaultTable(), catalog); len(missing) != 0 {
		t.Fatalf("bundles without implementation: %v", missing)
	}

	deps := bundles.Deps{Logger: zerolog.Nop(), Env: "dev"}
	for id, ctor := range catalog {
		if got := ctor(deps).Name(); got != id {
			t.Errorf("catalog[%s].Name() = %s", id, got)
		}
	}
}

func TestMissing(t *testing.T) {
	table := bundle.Table{
		{ID: "ZetaBundle", Profile: bundle.ProfileShared, Rule: bundle.All()},
		{ID: bundle.Framework, Profile: bundle.ProfileShared, Rule: bundle.All()},
		{ID: "AlphaBundle", Profile: bundle.ProfileShared, Rule: bundle.All()},
	}

	got := bundles.Missing(table, bundles.Catalog())
	if strings.Join(got, ",") != "AlphaBundle,ZetaBundle" {
		t.Errorf("Missing() = %v", got)
	}
}

func TestFramework_Boot(t *testing.T) {
	c := compile(t, `
framework:
    secret: s3cr3t
    default_locale: fr
    trusted_proxies: [127.0.0.1, 10.0.0.0/8]
`)
	table := routing.New()
	c.Set(bundles.ServiceRoutingTable, table)

	b := bundles.NewFramework(testDeps(t, "dev")).(*bundles.Framework)
	if err := b.Boot(context.Background(), c); err != nil {
		t.Fatalf("Boot() error = %v", err)
	}

	if b.Settings.DefaultLocale != "fr" {
		t.Errorf("DefaultLocale = %s", b.Settings.DefaultLocale)
	}
	if len(b.Settings.TrustedProxies) != 2 {
		t.Errorf("TrustedProxies = %v", b.Settings.TrustedProxies)
	}
	router, ok := c.Get(bundles.ServiceRouter)
	if !ok || router != table {
		t.Errorf("router service = %v, want the routing table", router)
	}
	if _, ok := c.Get(bundles.ServiceFrameworkSettings); !ok {
		t.Error("framework.settings not registered")
	}
}

func TestFramework_ProdRules(t *testing.T) {
	tests := []struct {
		name    string
		src     string
		wantErr string
	}{
		{"missing secret", "framework: { default_locale: en }", "secret is required"},
		{"test mode", "framework: { secret: x, test: true }", "framework.test"},
		{"wrong type", "framework: { secret: 123 }", "framework.secret must be a string"},
		{"valid", "framework: { secret: x }", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := bundles.NewFramework(testDeps(t, "prod"))
			err := b.Boot(context.Background(), compile(t, tt.src))
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Boot() error = %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("Boot() error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestSecurity_Boot(t *testing.T) {
	tests := []struct {
		name    string
		env     string
		src     string
		wantErr bool
	}{
		{"default", "dev", "framework: ~", false},
		{"bcrypt cost", "prod", "security: { password_hashers: { algorithm: bcrypt, cost: 4 } }", false},
		{"plaintext dev", "dev", "security: { password_hashers: { algorithm: plaintext } }", false},
		{"plaintext prod", "prod", "security: { password_hashers: { algorithm: plaintext } }", true},
		{"unknown algorithm", "dev", "security: { password_hashers: { algorithm: md5 } }", true},
		{"cost out of range", "dev", "security: { password_hashers: { cost: 99 } }", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := compile(t, tt.src)
			b := bundles.NewSecurity(testDeps(t, tt.env)).(*bundles.Security)
			err := b.Boot(context.Background(), c)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Boot() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				return
			}
			if _, ok := c.Get(bundles.ServicePasswordHasher); !ok {
				t.Error("password hasher not registered")
			}
		})
	}
}

func TestSecurity_HasherRoundTrip(t *testing.T) {
	c := compile(t, "security: { password_hashers: { cost: 4 } }")
	b := bundles.NewSecurity(testDeps(t, "test")).(*bundles.Security)
	if err := b.Boot(context.Background(), c); err != nil {
		t.Fatalf("Boot() error = %v", err)
	}

	hash, err := b.Hasher.Hash("hunter2")
	if err != nil {
		t.Fatalf("Hash() error = %v", err)
	}
	if !b.Hasher.Compare(hash, "hunter2") {
		t.Error("Compare() = false for the right password")
	}
	if b.Hasher.Compare(hash, "hunter3") {
		t.Error("Compare() = true for the wrong password")
	}
}
