package bundles

import (
	"context"
	"fmt"

	"github.com/artpar/appkernel/adapters/hasher"
	"github.com/artpar/appkernel/domain/bundle"
	"github.com/artpar/appkernel/ports"
)

// ServicePasswordHasher is the ports.PasswordHasher registered by SecurityBundle.
const ServicePasswordHasher = "security.password_hasher"

// Security is SecurityBundle. It only provides password hashing; no
// firewall or access control is configured here.
type Security struct {
	base
	Hasher ports.PasswordHasher
}

// NewSecurity creates SecurityBundle.
func NewSecurity(deps Deps) ports.Bundle {
	return &Security{base: newBase(bundle.Security, deps)}
}

// Boot builds the password hasher from security.password_hashers.
//
//	security:
//	  password_hashers:
//	    algorithm: bcrypt   # bcrypt, auto or plaintext
//	    cost: 12
func (b *Security) Boot(_ context.Context, c ports.Services) error {
	s := newSettings("security", c.Extension("security")).Section("password_hashers")
	algorithm := s.String("algorithm", "auto")
	cost := s.Int("cost", 0)
	if err := s.Err(); err != nil {
		return err
	}

	switch algorithm {
	case "auto", "bcrypt":
		h, err := hasher.NewBcrypt(cost)
		if err != nil {
			return fmt.Errorf("security.password_hashers: %w", err)
		}
		b.Hasher = h
	case "plaintext":
		if b.deps.Env == "prod" {
			return fmt.Errorf("security.password_hashers: plaintext is not allowed in the prod environment")
		}
		b.Hasher = hasher.Plaintext{}
	default:
		return fmt.Errorf("security.password_hashers.algorithm %q is not supported", algorithm)
	}

	c.Set(ServicePasswordHasher, b.Hasher)
	b.logger.Debug().Str("algorithm", algorithm).Msg("password hasher configured")
	return nil
}
