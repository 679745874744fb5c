// Package queue wraps asynq for the batch/merge fan-out/fan-in job
// pipeline's client/server transport layer.
package queue

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/hibiken/asynq"

	"github.com/gosom/vectorprint/internal/config"
)

// Client enqueues batch and merge tasks.
type Client struct {
	client *asynq.Client
	mu     sync.RWMutex
}

// NewClient dials Redis for asynq task enqueueing.
func NewClient(cfg *config.RedisConfig) (*Client, error) {
	redisOpt := asynq.RedisClientOpt{
		Addr:     cfg.Addr(),
		Password: cfg.Password,
		DB:       cfg.DB,
	}

	client := asynq.NewClient(redisOpt)
	if err := testConnection(client); err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return &Client{client: client}, nil
}

// Enqueue enqueues a task of taskType with payload.
func (c *Client) Enqueue(ctx context.Context, taskType string, payload []byte, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	info, err := c.client.EnqueueContext(ctx, asynq.NewTask(taskType, payload), opts...)
	if err != nil {
		return nil, fmt.Errorf("enqueue task %s: %w", taskType, err)
	}
	return info, nil
}

// Close closes the underlying asynq client.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.client.Close(); err != nil {
		return fmt.Errorf("close queue client: %w", err)
	}
	return nil
}

// IsHealthy reports whether the client can reach Redis.
func (c *Client) IsHealthy(ctx context.Context) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	_, err := c.client.EnqueueContext(ctx, asynq.NewTask("health:check", nil))
	return err == nil
}

// RetryWithBackoff calls operation up to maxRetries times in total,
// sleeping between attempts with a delay that starts at
// initialInterval and doubles after each failure. The delay has no
// upper bound and no context is consulted.
func RetryWithBackoff(operation func() error, maxRetries int, initialInterval time.Duration) error {
	var err error
	interval := initialInterval

	for i := 0; i < maxRetries; i++ {
		if err = operation(); err == nil {
			return nil
		}
		if i == maxRetries-1 {
			break
		}
		time.Sleep(interval)
		interval *= 2
	}
	return fmt.Errorf("operation failed after %d retries: %w", maxRetries, err)
}

func testConnection(client *asynq.Client) error {
	_, err := client.EnqueueContext(context.Background(), asynq.NewTask("connection:test", nil))
	if err != nil {
		return fmt.Errorf("test connection: %w", err)
	}
	return nil
}
