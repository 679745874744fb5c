package queue

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/hibiken/asynq"

	"github.com/gosom/vectorprint/internal/config"
)

// Server wraps the asynq worker server processing batch and merge
// tasks.
type Server struct {
	server *asynq.Server
	mu     sync.RWMutex
}

// NewServer builds a Server from RedisConfig. Queue priorities give the
// merge queue precedence over batch (a single high-priority merge
// unblocks a whole job; batches are individually cheap).
func NewServer(cfg *config.RedisConfig) (*Server, error) {
	redisOpt := asynq.RedisClientOpt{
		Addr:         cfg.Addr(),
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
		PoolSize:     10,
	}

	srv := asynq.NewServer(
		redisOpt,
		asynq.Config{
			Concurrency: cfg.Workers,
			RetryDelayFunc: func(n int, err error, task *asynq.Task) time.Duration {
				if n >= cfg.MaxRetries {
					log.Printf("task %s exhausted retries: %v", task.Type(), err)
					return -1 * time.Second
				}
				delay := time.Duration(1<<uint(n)) * time.Second
				if delay > cfg.RetryInterval {
					delay = cfg.RetryInterval
				}
				log.Printf("task %s failed, retry %d scheduled in %v: %v", task.Type(), n, delay, err)
				return delay
			},
			Queues:         cfg.QueuePriorities,
			StrictPriority: true,
		},
	)

	return &Server{server: srv}, nil
}

// Start runs the server with mux until Shutdown is called.
func (s *Server) Start(ctx context.Context, mux *asynq.ServeMux) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.server.Start(mux); err != nil {
		return fmt.Errorf("start queue server: %w", err)
	}

	go s.monitorHealth(ctx)
	return nil
}

// Shutdown stops the server, waiting for in-flight tasks.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.server.Shutdown()
	return nil
}

// IsHealthy always reports true; it does not check whether the server
// is running or whether Redis is reachable.
func (s *Server) IsHealthy(ctx context.Context) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return true
}

func (s *Server) monitorHealth(ctx context.Context) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !s.IsHealthy(ctx) {
				log.Println("warning: queue server is not healthy")
			}
		}
	}
}
