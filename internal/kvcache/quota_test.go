package kvcache_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gosom/vectorprint/internal/kvcache"
	"github.com/gosom/vectorprint/internal/testcontainers"
)

func TestDecrementQuotaReportsCacheMissWhenUnseeded(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	testcontainers.WithTestContext(t, func(tc *testcontainers.TestContext) {
		c := newTestClient(tc)
		ctx := context.Background()

		outcome, _, err := c.DecrementQuota(ctx, "doc-1", "user-1")
		require.NoError(t, err)
		assert.Equal(t, kvcache.DecrementCacheMiss, outcome)
	})
}

func TestSeedAndDecrementQuota(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	testcontainers.WithTestContext(t, func(tc *testcontainers.TestContext) {
		c := newTestClient(tc)
		ctx := context.Background()

		require.NoError(t, c.SeedQuota(ctx, "doc-1", "user-1", 2))

		outcome, remaining, err := c.DecrementQuota(ctx, "doc-1", "user-1")
		require.NoError(t, err)
		assert.Equal(t, kvcache.DecrementOK, outcome)
		assert.EqualValues(t, 1, remaining)

		outcome, remaining, err = c.DecrementQuota(ctx, "doc-1", "user-1")
		require.NoError(t, err)
		assert.Equal(t, kvcache.DecrementOK, outcome)
		assert.EqualValues(t, 0, remaining)

		outcome, _, err = c.DecrementQuota(ctx, "doc-1", "user-1")
		require.NoError(t, err)
		assert.Equal(t, kvcache.DecrementDenied, outcome)
	})
}

func TestIdempotencyGateSecondSetFails(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	testcontainers.WithTestContext(t, func(tc *testcontainers.TestContext) {
		c := newTestClient(tc)
		ctx := context.Background()

		ok, err := c.AcquireIdempotencyGate(ctx, "doc-1", "user-1", "req-1")
		require.NoError(t, err)
		assert.True(t, ok)

		// Replay of the same requestId within the window must not re-set.
		ok, err = c.AcquireIdempotencyGate(ctx, "doc-1", "user-1", "req-1")
		require.NoError(t, err)
		assert.False(t, ok)
	})
}

func TestDeleteIdempotencyGateAllowsRetry(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	testcontainers.WithTestContext(t, func(tc *testcontainers.TestContext) {
		c := newTestClient(tc)
		ctx := context.Background()

		ok, err := c.AcquireIdempotencyGate(ctx, "doc-1", "user-1", "req-1")
		require.NoError(t, err)
		require.True(t, ok)

		require.NoError(t, c.DeleteIdempotencyGate(ctx, "doc-1", "user-1", "req-1"))

		ok, err = c.AcquireIdempotencyGate(ctx, "doc-1", "user-1", "req-1")
		require.NoError(t, err)
		assert.True(t, ok)
	})
}
