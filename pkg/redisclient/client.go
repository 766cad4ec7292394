package redisclient

import (
	"context"
	"crypto/tls"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"manim-service/pkg/config"
)

// Client owns the shared go-redis connection used by the job store.
type Client struct {
	native redis.UniversalClient
}

// New builds a client from service configuration and pings it once.
func New(cfg config.RedisConfig) (*Client, error) {
	opts := &redis.UniversalOptions{
		Addrs:        []string{cfg.GetRedisAddr()},
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
		DialTimeout:  pickDuration(cfg.DialTimeout, 5*time.Second),
		ReadTimeout:  pickDuration(cfg.ReadTimeout, 3*time.Second),
		WriteTimeout: pickDuration(cfg.WriteTimeout, 3*time.Second),
	}
	if cfg.EnableTLS {
		opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}

	cli := redis.NewUniversalClient(opts)
	c := &Client{native: cli}
	ctx, cancel := context.WithTimeout(context.Background(), opts.DialTimeout)
	defer cancel()
	if err := c.Ping(ctx); err != nil {
		_ = cli.Close()
		return nil, err
	}
	return c, nil
}

// Raw exposes the underlying go-redis client.
func (c *Client) Raw() redis.UniversalClient {
	return c.native
}

// Ping reports whether the server answers.
func (c *Client) Ping(ctx context.Context) error {
	if err := c.native.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}
	return nil
}

// Close releases pooled connections.
func (c *Client) Close() error {
	return c.native.Close()
}

// Keyspace namespaces keys so several deployments can share one database.
type Keyspace string

// NewKeyspace trims separators from prefix; an empty prefix falls back to def.
func NewKeyspace(prefix, def string) Keyspace {
	prefix = strings.Trim(strings.TrimSpace(prefix), ":")
	if prefix == "" {
		prefix = def
	}
	return Keyspace(prefix)
}

// Key joins the prefix and parts with ':'.
func (k Keyspace) Key(parts ...string) string {
	return string(k) + ":" + strings.Join(parts, ":")
}

func pickDuration(v time.Duration, fallback time.Duration) time.Duration {
	if v <= 0 {
		return fallback
	}
	return v
}
