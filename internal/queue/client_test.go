package queue_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gosom/vectorprint/internal/config"
	"github.com/gosom/vectorprint/internal/queue"
	"github.com/gosom/vectorprint/internal/testcontainers"
)

func newTestRedisConfig(tc *testcontainers.TestContext) *config.RedisConfig {
	return &config.RedisConfig{
		Host:     tc.RedisConfig.Host,
		Port:     tc.RedisConfig.Port,
		Password: tc.RedisConfig.Password,
		Workers:  4,
	}
}

func TestNewClientConnectsAndEnqueues(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}
	testcontainers.WithTestContext(t, func(tc *testcontainers.TestContext) {
		client, err := queue.NewClient(newTestRedisConfig(tc))
		require.NoError(t, err)
		defer client.Close()

		info, err := client.Enqueue(context.Background(), "render:batch", []byte(`{"jobId":"job-1"}`))
		require.NoError(t, err)
		assert.Equal(t, "render:batch", info.Type)
	})
}

func TestClientIsHealthyAgainstLiveRedis(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}
	testcontainers.WithTestContext(t, func(tc *testcontainers.TestContext) {
		client, err := queue.NewClient(newTestRedisConfig(tc))
		require.NoError(t, err)
		defer client.Close()

		assert.True(t, client.IsHealthy(context.Background()))
	})
}

func TestRetryWithBackoffStopsAfterMaxRetries(t *testing.T) {
	attempts := 0
	err := queue.RetryWithBackoff(func() error {
		attempts++
		return errors.New("always fails")
	}, 3, time.Millisecond)

	require.Error(t, err)
	assert.Equal(t, 3, attempts)
}

func TestRetryWithBackoffSucceedsOnLaterAttempt(t *testing.T) {
	attempts := 0
	err := queue.RetryWithBackoff(func() error {
		attempts++
		if attempts < 2 {
			return errors.New("transient")
		}
		return nil
	}, 5, time.Millisecond)

	require.NoError(t, err)
	assert.Equal(t, 2, attempts)
}
