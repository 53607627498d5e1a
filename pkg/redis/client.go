// Package redis backs the shared embedding cache so replicas reuse each other's vectors.
package redis

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/redis/go-redis/v9"
)

// ErrNotFound is returned by Get when the key does not exist
var ErrNotFound = redis.Nil

const (
	defaultDialTimeout = 5 * time.Second
	// cache calls sit on the decide path; a slow redis must not stall it
	defaultOpTimeout = 250 * time.Millisecond
)

// Config holds Redis connection configuration
type Config struct {
	Host     string
	Port     int
	Password string
	DB       int
	PoolSize int
	// DialTimeout bounds connecting and the startup ping
	DialTimeout time.Duration
	// OpTimeout bounds every Get and Set
	OpTimeout time.Duration
}

func (c Config) addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// Client is the key-value view of redis used by the embedding cache
type Client struct {
	rdb       *redis.Client
	opTimeout time.Duration
	logger    ectologger.Logger
}

// NewClient connects to redis and fails when the server does not answer a ping
func NewClient(ctx context.Context, cfg Config, logger ectologger.Logger) (*Client, error) {
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = defaultDialTimeout
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:        cfg.addr(),
		Password:    cfg.Password,
		DB:          cfg.DB,
		PoolSize:    cfg.PoolSize,
		DialTimeout: cfg.DialTimeout,
	})

	pingCtx, cancel := context.WithTimeout(ctx, cfg.DialTimeout)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.addr(), err)
	}

	logger.WithField("addr", cfg.addr()).Info("Connected to redis")
	return newClient(rdb, cfg.OpTimeout, logger), nil
}

func newClient(rdb *redis.Client, opTimeout time.Duration, logger ectologger.Logger) *Client {
	if opTimeout <= 0 {
		opTimeout = defaultOpTimeout
	}
	return &Client{rdb: rdb, opTimeout: opTimeout, logger: logger}
}

func (c *Client) Close() error {
	return c.rdb.Close()
}

// Ping reports whether redis is reachable
func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

// Get returns the raw value of key, or ErrNotFound
func (c *Client) Get(ctx context.Context, key string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, c.opTimeout)
	defer cancel()
	return c.rdb.Get(ctx, key).Bytes()
}

// Set stores value under key. A zero ttl keeps the key forever.
func (c *Client) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, c.opTimeout)
	defer cancel()
	return c.rdb.Set(ctx, key, value, ttl).Err()
}
