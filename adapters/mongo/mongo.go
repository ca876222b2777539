// Package mongo provides the MongoDB client used by the document
// persistence profile.
package mongo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.mongodb.org/mongo-driver/x/mongo/driver/connstring"
)

// DefaultConnectTimeout bounds server selection when none is configured.
const DefaultConnectTimeout = 10 * time.Second

// Options configures a connection.
type Options struct {
	URI            string
	Database       string // overrides the database named in the URI
	AppName        string
	ConnectTimeout time.Duration
}

// Conn is a client bound to its default database.
type Conn struct {
	Client   *mongo.Client
	Database *mongo.Database
}

// Connect creates a client. The driver connects lazily, so a successful
// Connect does not mean a server is reachable; use Ping for that.
func Connect(ctx context.Context, opts Options) (*Conn, error) {
	cs, err := connstring.ParseAndValidate(opts.URI)
	if err != nil {
		return nil, fmt.Errorf("parse mongodb uri: %w", err)
	}

	dbName := opts.Database
	if dbName == "" {
		dbName = cs.Database
	}
	if dbName == "" {
		return nil, fmt.Errorf("mongodb uri %q names no database and none is configured", redact(cs))
	}

	timeout := opts.ConnectTimeout
	if timeout <= 0 {
		timeout = DefaultConnectTimeout
	}

	clientOpts := options.Client().
		ApplyURI(opts.URI).
		SetConnectTimeout(timeout).
		SetServerSelectionTimeout(timeout)
	if opts.AppName != "" {
		clientOpts.SetAppName(opts.AppName)
	}

	client, err := mongo.Connect(ctx, clientOpts)
	if err != nil {
		return nil, fmt.Errorf("connect mongodb: %w", err)
	}

	return &Conn{Client: client, Database: client.Database(dbName)}, nil
}

// Ping checks that the primary is reachable within timeout.
func (c *Conn) Ping(ctx context.Context, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := c.Client.Ping(ctx, readpref.Primary()); err != nil {
		return fmt.Errorf("ping mongodb: %w", err)
	}
	return nil
}

// Disconnect closes the client.
func (c *Conn) Disconnect(ctx context.Context) error {
	if err := c.Client.Disconnect(ctx); err != nil {
		return fmt.Errorf("disconnect mongodb: %w", err)
	}
	return nil
}

// redact returns the URI hosts without credentials, for error messages.
func redact(cs *connstring.ConnString) string {
	return fmt.Sprintf("%s://%v", cs.Scheme, cs.Hosts)
}
