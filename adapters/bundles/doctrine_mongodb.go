package bundles

import (
	"context"
	"fmt"
	"time"

	"github.com/artpar/appkernel/adapters/mongo"
	"github.com/artpar/appkernel/domain/bundle"
	"github.com/artpar/appkernel/ports"
)

// ServiceMongoConnection is the *mongo.Conn opened by DoctrineMongoDBBundle.
const ServiceMongoConnection = "doctrine_mongodb.connection"

// DoctrineMongoDB is DoctrineMongoDBBundle: the document store connection.
//
//	doctrine_mongodb:
//	  connections:
//	    default:
//	      server: '%env(MONGODB_URL)%'
//	  default_database: app
//	  ping_on_boot: true
type DoctrineMongoDB struct {
	base
	Conn *mongo.Conn
}

// NewDoctrineMongoDB creates DoctrineMongoDBBundle.
func NewDoctrineMongoDB(deps Deps) ports.Bundle {
	return &DoctrineMongoDB{base: newBase(bundle.DoctrineMongoDB, deps)}
}

// Boot connects to connections.default.server.
func (b *DoctrineMongoDB) Boot(ctx context.Context, c ports.Services) error {
	s := newSettings("doctrine_mongodb", c.Extension("doctrine_mongodb"))
	conn := s.Section("connections").Section("default")
	server := conn.String("server", "")
	timeout := conn.Duration("connect_timeout", mongo.DefaultConnectTimeout)
	database := s.String("default_database", "")
	ping := s.Bool("ping_on_boot", false)
	if err := s.Err(); err != nil {
		return err
	}
	if server == "" {
		return fmt.Errorf("doctrine_mongodb.connections.default.server is required")
	}

	mc, err := mongo.Connect(ctx, mongo.Options{
		URI:            server,
		Database:       database,
		AppName:        "appkernel",
		ConnectTimeout: timeout,
	})
	if err != nil {
		return err
	}

	if ping {
		if err := mc.Ping(ctx, timeout); err != nil {
			mc.Disconnect(ctx)
			return err
		}
	}

	b.Conn = mc
	c.Set(ServiceMongoConnection, mc)
	b.logger.Info().Str("database", mc.Database.Name()).Bool("pinged", ping).Msg("mongodb client ready")
	return nil
}

// Shutdown disconnects the client.
func (b *DoctrineMongoDB) Shutdown(ctx context.Context) error {
	if b.Conn == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	err := b.Conn.Disconnect(ctx)
	b.Conn = nil
	return err
}
