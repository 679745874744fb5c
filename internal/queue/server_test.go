package queue_test

import (
	"context"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gosom/vectorprint/internal/queue"
	"github.com/gosom/vectorprint/internal/testcontainers"
)

func TestServerStartProcessesEnqueuedTask(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}
	testcontainers.WithTestContext(t, func(tc *testcontainers.TestContext) {
		cfg := newTestRedisConfig(tc)
		cfg.QueuePriorities = map[string]int{"default": 1}

		srv, err := queue.NewServer(cfg)
		require.NoError(t, err)

		client, err := queue.NewClient(cfg)
		require.NoError(t, err)
		defer client.Close()

		processed := make(chan struct{}, 1)
		mux := asynq.NewServeMux()
		mux.HandleFunc("render:batch", func(ctx context.Context, task *asynq.Task) error {
			processed <- struct{}{}
			return nil
		})

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		require.NoError(t, srv.Start(ctx, mux))
		defer srv.Shutdown(context.Background())

		_, err = client.Enqueue(context.Background(), "render:batch", []byte(`{}`), asynq.Queue("default"))
		require.NoError(t, err)

		select {
		case <-processed:
		case <-time.After(5 * time.Second):
			t.Fatal("task was not processed within timeout")
		}

		assert.True(t, srv.IsHealthy(context.Background()))
	})
}
