// Package graph stores entities as nodes in Neo4j or Memgraph over Bolt
package graph

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	neo4jconfig "github.com/neo4j/neo4j-go-driver/v5/neo4j/config"

	"github.com/Ramsey-B/iris/pkg/tracing"
)

// Config holds graph database configuration
type Config struct {
	// Scheme is bolt, bolt+s, neo4j or neo4j+s. Empty means bolt.
	Scheme   string
	Host     string
	Port     int
	Username string
	Password string
	Database string
	// MaxPoolSize caps open connections. Rebuilds read every entity, decides read a few.
	MaxPoolSize    int
	AcquireTimeout time.Duration
}

// URI returns the Bolt address of the database
func (c Config) URI() string {
	scheme := c.Scheme
	if scheme == "" {
		scheme = "bolt"
	}
	return fmt.Sprintf("%s://%s", scheme, net.JoinHostPort(c.Host, strconv.Itoa(c.Port)))
}

// Client runs managed transactions against one database
type Client struct {
	driver   neo4j.DriverWithContext
	database string
	logger   ectologger.Logger
}

// NewClient creates the driver. It does not connect; call VerifyConnectivity.
func NewClient(cfg Config, logger ectologger.Logger) (*Client, error) {
	auth := neo4j.NoAuth()
	if cfg.Username != "" {
		auth = neo4j.BasicAuth(cfg.Username, cfg.Password, "")
	}

	driver, err := neo4j.NewDriverWithContext(cfg.URI(), auth, func(c *neo4jconfig.Config) {
		if cfg.MaxPoolSize > 0 {
			c.MaxConnectionPoolSize = cfg.MaxPoolSize
		}
		if cfg.AcquireTimeout > 0 {
			c.ConnectionAcquisitionTimeout = cfg.AcquireTimeout
		}
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create graph driver for %s: %w", cfg.URI(), err)
	}

	logger.WithField("uri", cfg.URI()).Debug("Created graph driver")
	return &Client{driver: driver, database: cfg.Database, logger: logger}, nil
}

func (c *Client) Close(ctx context.Context) error {
	return c.driver.Close(ctx)
}

// VerifyConnectivity reports whether the database answers
func (c *Client) VerifyConnectivity(ctx context.Context) error {
	return c.driver.VerifyConnectivity(ctx)
}

// ExecuteWrite runs work in a retried write transaction
func (c *Client) ExecuteWrite(ctx context.Context, work neo4j.ManagedTransactionWork) (any, error) {
	return c.execute(ctx, neo4j.AccessModeWrite, "graph.Client.ExecuteWrite", work)
}

// ExecuteRead runs work in a retried read transaction
func (c *Client) ExecuteRead(ctx context.Context, work neo4j.ManagedTransactionWork) (any, error) {
	return c.execute(ctx, neo4j.AccessModeRead, "graph.Client.ExecuteRead", work)
}

func (c *Client) execute(ctx context.Context, mode neo4j.AccessMode, spanName string, work neo4j.ManagedTransactionWork) (any, error) {
	ctx, span := tracing.StartSpan(ctx, spanName)
	defer span.End()

	session := c.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: mode, DatabaseName: c.database})
	defer session.Close(ctx)

	var (
		result any
		err    error
	)
	if mode == neo4j.AccessModeWrite {
		result, err = session.ExecuteWrite(ctx, work)
	} else {
		result, err = session.ExecuteRead(ctx, work)
	}
	if err != nil {
		tracing.RecordError(span, err)
	}
	return result, err
}
