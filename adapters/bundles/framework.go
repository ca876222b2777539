package bundles

import (
	"context"
	"fmt"

	"github.com/artpar/appkernel/domain/bundle"
	"github.com/artpar/appkernel/ports"
)

// Service ids registered by FrameworkBundle.
const (
	ServiceFrameworkSettings = "framework.settings"
	ServiceRouter            = "router"

	// ServiceRoutingTable is set by the kernel before bundles boot.
	ServiceRoutingTable = "routing.table"
)

// FrameworkSettings is the resolved framework extension.
type FrameworkSettings struct {
	Secret             string
	DefaultLocale      string
	HTTPMethodOverride bool
	TrustedProxies     []string
	Test               bool
}

// Framework is FrameworkBundle.
type Framework struct {
	base
	Settings FrameworkSettings
}

// NewFramework creates FrameworkBundle.
func NewFramework(deps Deps) ports.Bundle {
	return &Framework{base: newBase(bundle.Framework, deps)}
}

// Boot validates the framework extension and exposes the route table as
// the router service.
func (b *Framework) Boot(_ context.Context, c ports.Services) error {
	s := newSettings("framework", c.Extension("framework"))
	b.Settings = FrameworkSettings{
		Secret:             s.String("secret", ""),
		DefaultLocale:      s.String("default_locale", "en"),
		HTTPMethodOverride: s.Bool("http_method_override", false),
		TrustedProxies:     s.Strings("trusted_proxies", nil),
		Test:               s.Bool("test", false),
	}
	if err := s.Err(); err != nil {
		return err
	}

	if b.Settings.Secret == "" && b.deps.Env == "prod" {
		return fmt.Errorf("framework.secret is required in the prod environment")
	}
	if b.Settings.Test && b.deps.Env == "prod" {
		return fmt.Errorf("framework.test cannot be enabled in the prod environment")
	}

	c.Set(ServiceFrameworkSettings, b.Settings)
	if table, ok := c.Get(ServiceRoutingTable); ok {
		c.Set(ServiceRouter, table)
	}

	b.logger.Debug().
		Str("locale", b.Settings.DefaultLocale).
		Bool("secret_set", b.Settings.Secret != "").
		Msg("framework configured")
	return nil
}
