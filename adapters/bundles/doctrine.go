package bundles

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/artpar/appkernel/adapters/sqlite"
	"github.com/artpar/appkernel/domain/bundle"
	"github.com/artpar/appkernel/ports"
)

// ServiceDatabaseConnection is the *sqlite.DB opened by DoctrineBundle.
const ServiceDatabaseConnection = "database_connection"

// Doctrine is DoctrineBundle: the relational connection.
//
//	doctrine:
//	  dbal:
//	    url: '%env(DATABASE_URL)%'   # sqlite:///%kernel.project_dir%/var/data.db
type Doctrine struct {
	base
	DB *sqlite.DB
}

// NewDoctrine creates DoctrineBundle.
func NewDoctrine(deps Deps) ports.Bundle {
	return &Doctrine{base: newBase(bundle.Doctrine, deps)}
}

// Boot opens the database named by doctrine.dbal.url.
func (b *Doctrine) Boot(ctx context.Context, c ports.Services) error {
	s := newSettings("doctrine", c.Extension("doctrine")).Section("dbal")
	url := s.String("url", "")
	if err := s.Err(); err != nil {
		return err
	}
	if url == "" {
		return fmt.Errorf("doctrine.dbal.url is required")
	}

	path, err := sqlite.ParseURL(url)
	if err != nil {
		return fmt.Errorf("doctrine.dbal.url: %w", err)
	}
	if path != sqlite.MemoryPath {
		path = projectPath(b.deps.ProjectDir, path)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return fmt.Errorf("create database directory: %w", err)
		}
	}

	db, err := sqlite.Open(path)
	if err != nil {
		return err
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return fmt.Errorf("ping database: %w", err)
	}

	b.DB = db
	c.Set(ServiceDatabaseConnection, db)
	b.logger.Info().Str("path", path).Msg("database connection opened")
	return nil
}

// Shutdown closes the connection.
func (b *Doctrine) Shutdown(context.Context) error {
	if b.DB == nil {
		return nil
	}
	err := b.DB.Close()
	b.DB = nil
	if err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	return nil
}

// connection returns the database opened by DoctrineBundle.
func connection(c ports.Services, owner string) (*sqlite.DB, error) {
	svc, ok := c.Get(ServiceDatabaseConnection)
	if !ok {
		return nil, fmt.Errorf("%s requires %s to be booted first", owner, bundle.Doctrine)
	}
	db, ok := svc.(*sqlite.DB)
	if !ok {
		return nil, fmt.Errorf("%s: service %s has unexpected type %T", owner, ServiceDatabaseConnection, svc)
	}
	return db, nil
}
