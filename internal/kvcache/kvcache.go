// Package kvcache wraps a direct go-redis client for the render lock,
// active-job counter, and quota decrement script. asynq (internal/queue)
// speaks Redis for queue transport; this package speaks Redis directly
// for the compare-and-swap and atomic-counter primitives the queue
// itself doesn't expose.
package kvcache

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/gosom/vectorprint/internal/config"
)

// Client is the KV cache adapter. The system must remain correct when
// Redis is absent; callers distinguish "unavailable" (degrade to
// durable fallback) from "cache miss" (a legitimate cached-nil read)
// via the returned error.
type Client struct {
	rdb *redis.Client
}

// ErrUnavailable indicates a transport-level failure talking to Redis,
// as opposed to a well-formed miss or script-reported denial.
var ErrUnavailable = errors.New("kvcache: unavailable")

// New dials Redis using the shared RedisConfig.
func New(cfg *config.RedisConfig) *Client {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr(),
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	return &Client{rdb: rdb}
}

// Close releases the underlying connection pool.
func (c *Client) Close() error {
	return c.rdb.Close()
}

// IsHealthy pings Redis, mirroring the queue server's own health check.
func (c *Client) IsHealthy(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := c.rdb.Ping(ctx).Err(); err != nil {
		log.Printf("kvcache: health check failed: %v", err)
		return false
	}
	return true
}

func wrapTransportErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, redis.Nil) {
		return err
	}
	return fmt.Errorf("%w: %v", ErrUnavailable, err)
}
