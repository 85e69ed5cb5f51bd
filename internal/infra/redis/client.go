package redis

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/marketingkamdi24/Rowbooster-UI-sub009/internal/infra/config"
)

const connectTimeout = 5 * time.Second

// Client holds the connection pool backing the shared rate-limit windows.
type Client struct {
	client *redis.Client
	logger *zap.Logger
}

// newOptions keeps command timeouts short: the limiter fails open, so a slow
// Redis must not stall login or registration.
func newOptions(cfg config.RedisSettings) *redis.Options {
	opts := &redis.Options{
		Addr:     net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
		Password: cfg.Password,
		DB:       cfg.DB,

		PoolSize:     10,
		MinIdleConns: 2,
		MaxRetries:   1,

		DialTimeout:  2 * time.Second,
		ReadTimeout:  500 * time.Millisecond,
		WriteTimeout: 500 * time.Millisecond,

		PoolTimeout:     time.Second,
		ConnMaxIdleTime: 5 * time.Minute,
	}
	if cfg.TLSEnabled {
		opts.TLSConfig = &tls.Config{
			MinVersion: tls.VersionTLS12,
			ServerName: cfg.Host,
		}
	}
	return opts
}

// NewClient connects to Redis and verifies the connection with a ping.
func NewClient(ctx context.Context, cfg config.RedisSettings, logger *zap.Logger) (*Client, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	client := redis.NewClient(newOptions(cfg))

	pingCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	logger.Info("redis connection established",
		zap.String("addr", client.Options().Addr),
		zap.Int("db", cfg.DB),
		zap.Bool("tls_enabled", cfg.TLSEnabled),
	)
	return &Client{client: client, logger: logger}, nil
}

func (c *Client) Client() *redis.Client {
	return c.client
}

// Ping backs the readiness probe.
func (c *Client) Ping(ctx context.Context) error {
	if err := c.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}
	return nil
}

func (c *Client) Close() error {
	if err := c.client.Close(); err != nil {
		return fmt.Errorf("close redis client: %w", err)
	}
	c.logger.Info("redis connection closed")
	return nil
}
